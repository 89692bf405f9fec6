package health

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mora-interactive/prizevault-backend/internal/pool"
	"github.com/mora-interactive/prizevault-backend/pkg/config"
	"github.com/mora-interactive/prizevault-backend/pkg/db/models"
	"github.com/mora-interactive/prizevault-backend/pkg/enums"
	pkgerrors "github.com/mora-interactive/prizevault-backend/pkg/errors"
)

// RTP deviation thresholds, expressed as absolute distance from the target.
const (
	DeviationWarn     = 0.05
	DeviationCritical = 0.15
)

type containerLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ContainerType, error)
}

type periodFinder interface {
	FindPeriod(ctx context.Context, containerTypeID uuid.UUID, periodKey string) (*models.FinancialPeriod, error)
}

type poolReader interface {
	ActiveEntries(ctx context.Context, containerTypeID uuid.UUID) ([]models.PrizeEntry, error)
}

// Report is the operator-facing snapshot for one container's current period.
type Report struct {
	ContainerTypeID       uuid.UUID          `json:"containerTypeId"`
	PeriodKey             string             `json:"periodKey"`
	Status                enums.HealthStatus `json:"status"`
	CurrentRTP            decimal.Decimal    `json:"currentRtp"`
	TargetRTP             decimal.Decimal    `json:"targetRtp"`
	Deviation             decimal.Decimal    `json:"deviation"`
	DrawsCount            int64              `json:"drawsCount"`
	TotalSalesCents       int64              `json:"totalSalesCents"`
	TotalPrizesGivenCents int64              `json:"totalPrizesGivenCents"`
	DailyBudgetCents      int64              `json:"dailyBudgetCents"`
	RemainingBudgetCents  int64              `json:"remainingBudgetCents"`
	EmergencyStopped      bool               `json:"emergencyStopped"`
	PoolDrawable          bool               `json:"poolDrawable"`
}

// Service reports RTP health for containers.
type Service interface {
	ContainerHealth(ctx context.Context, containerTypeID uuid.UUID) (*Report, error)
}

type service struct {
	containers containerLoader
	periods    periodFinder
	pools      poolReader
	cfg        config.EngineConfig
	now        func() time.Time
}

// NewService builds the health reporting service.
func NewService(containers containerLoader, periods periodFinder, pools poolReader, cfg config.EngineConfig, now func() time.Time) (Service, error) {
	if containers == nil {
		return nil, fmt.Errorf("container loader required")
	}
	if periods == nil {
		return nil, fmt.Errorf("period finder required")
	}
	if pools == nil {
		return nil, fmt.Errorf("pool reader required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{containers: containers, periods: periods, pools: pools, cfg: cfg, now: now}, nil
}

func (s *service) ContainerHealth(ctx context.Context, containerTypeID uuid.UUID) (*Report, error) {
	if containerTypeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "container type id required")
	}
	container, err := s.containers.FindByID(ctx, containerTypeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load container type")
	}
	if container == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "container type not found")
	}

	report := &Report{
		ContainerTypeID: container.ID,
		PeriodKey:       models.PeriodKeyFor(s.now()),
		Status:          enums.HealthInsufficientData,
		TargetRTP:       decimal.NewFromFloat(container.RTPTarget),
	}

	entries, err := s.pools.ActiveEntries(ctx, container.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load prize pool")
	}
	report.PoolDrawable = pool.TotalWeight(entries) > 0

	period, err := s.periods.FindPeriod(ctx, container.ID, report.PeriodKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load financial period")
	}
	if period == nil {
		return report, nil
	}

	report.DrawsCount = period.DrawsCount
	report.TotalSalesCents = period.TotalSalesCents
	report.TotalPrizesGivenCents = period.TotalPrizesGivenCents
	report.DailyBudgetCents = period.DailyBudgetCents
	report.RemainingBudgetCents = period.RemainingBudgetCents
	report.EmergencyStopped = period.RemainingBudgetCents <= container.EmergencyStopCents

	if period.TotalSalesCents > 0 {
		report.CurrentRTP = decimal.NewFromInt(period.TotalPrizesGivenCents).
			Div(decimal.NewFromInt(period.TotalSalesCents)).
			Round(4)
	}
	report.Deviation = report.CurrentRTP.Sub(report.TargetRTP).Abs().Round(4)

	if period.DrawsCount < s.cfg.MinHealthSample {
		return report, nil
	}
	deviation, _ := report.Deviation.Float64()
	switch {
	case deviation <= DeviationWarn:
		report.Status = enums.HealthHealthy
	case deviation <= DeviationCritical:
		report.Status = enums.HealthWarning
	default:
		report.Status = enums.HealthCritical
	}
	return report, nil
}
