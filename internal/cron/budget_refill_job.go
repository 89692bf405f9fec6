package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/mora-interactive/prizevault-backend/pkg/db/models"
	"github.com/mora-interactive/prizevault-backend/pkg/logger"
)

type periodLister interface {
	ListPeriodsForDate(ctx context.Context, periodKey string) ([]models.FinancialPeriod, error)
	RefillIfLow(ctx context.Context, periodID uuid.UUID, ceilingCents int64, now time.Time) (bool, error)
}

type containerFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ContainerType, error)
}

// BudgetRefillJobParams configure the budget watchdog.
type BudgetRefillJobParams struct {
	Logger     *logger.Logger
	Ledger     periodLister
	Containers containerFinder
}

// NewBudgetRefillJob builds the cron job that tops up nearly drained daily
// budgets. The refill itself is a single conditional update, so a period
// drained concurrently with the sweep is never refilled twice.
func NewBudgetRefillJob(params BudgetRefillJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Containers == nil {
		return nil, fmt.Errorf("container repository required")
	}
	return &budgetRefillJob{
		logg:       params.Logger,
		ledger:     params.Ledger,
		containers: params.Containers,
		now:        time.Now,
	}, nil
}

type budgetRefillJob struct {
	logg       *logger.Logger
	ledger     periodLister
	containers containerFinder
	now        func() time.Time
}

func (j *budgetRefillJob) Name() string { return "budget-refill" }

func (j *budgetRefillJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	periods, err := j.ledger.ListPeriodsForDate(ctx, models.PeriodKeyFor(now))
	if err != nil {
		return fmt.Errorf("list current periods: %w", err)
	}

	var errs []error
	refilled := 0
	for _, period := range periods {
		container, err := j.containers.FindByID(ctx, period.ContainerTypeID)
		if err != nil {
			errs = append(errs, fmt.Errorf("load container %s: %w", period.ContainerTypeID, err))
			continue
		}
		if container == nil || !container.Active {
			continue
		}
		ceiling := container.RefillCeilingCents(period.DailyBudgetCents)
		ok, err := j.ledger.RefillIfLow(ctx, period.ID, ceiling, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("refill period %s: %w", period.ID, err))
			continue
		}
		if ok {
			refilled++
			refillCtx := j.logg.WithContainerID(ctx, container.ID.String())
			j.logg.Warn(refillCtx, "daily budget refilled by watchdog")
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"periods": len(periods), "refilled": refilled})
	j.logg.Info(logCtx, "budget refill sweep complete")
	return multierr.Combine(errs...)
}
