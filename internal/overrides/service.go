package overrides

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mora-interactive/prizevault-backend/pkg/db/models"
	"github.com/mora-interactive/prizevault-backend/pkg/enums"
	pkgerrors "github.com/mora-interactive/prizevault-backend/pkg/errors"
)

// Service is the admin-facing override management surface.
type Service interface {
	Schedule(ctx context.Context, input ScheduleInput) (*models.ProgrammedPrize, error)
	Revoke(ctx context.Context, id uuid.UUID) error
}

// ScheduleInput captures a new programmed prize.
type ScheduleInput struct {
	ContainerTypeID uuid.UUID
	ItemRef         string
	ItemName        string
	ItemValueCents  int64
	Priority        int
	TargetUserID    *uuid.UUID
	ManualRelease   bool
	ScheduledFor    time.Time
	ExpiresAt       time.Time
	MaxUses         int
}

// ServiceParams groups dependencies for the override service.
type ServiceParams struct {
	Repo Repository
	Now  func() time.Time
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs an override service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "override repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, now: now}, nil
}

func (s *service) Schedule(ctx context.Context, input ScheduleInput) (*models.ProgrammedPrize, error) {
	if input.ContainerTypeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "container type id is required")
	}
	if strings.TrimSpace(input.ItemRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item ref is required")
	}
	if input.ItemValueCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item value must not be negative")
	}
	if input.MaxUses < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max uses must be at least 1")
	}
	now := s.now().UTC()
	if !input.ExpiresAt.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiry must be in the future")
	}
	scheduledFor := input.ScheduledFor
	if scheduledFor.IsZero() {
		scheduledFor = now
	}
	if !input.ExpiresAt.After(scheduledFor) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiry must be after the scheduled time")
	}

	prize := &models.ProgrammedPrize{
		ID:              uuid.New(),
		ContainerTypeID: input.ContainerTypeID,
		ItemRef:         strings.TrimSpace(input.ItemRef),
		ItemName:        strings.TrimSpace(input.ItemName),
		ItemValueCents:  input.ItemValueCents,
		Priority:        input.Priority,
		TargetUserID:    input.TargetUserID,
		ManualRelease:   input.ManualRelease,
		ScheduledFor:    scheduledFor,
		ExpiresAt:       input.ExpiresAt,
		Status:          enums.ProgrammedPrizePending,
		MaxUses:         input.MaxUses,
	}
	if prize.ItemName == "" {
		prize.ItemName = prize.ItemRef
	}
	if err := s.repo.Create(ctx, prize); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create programmed prize")
	}
	return prize, nil
}

func (s *service) Revoke(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "programmed prize id is required")
	}
	ok, err := s.repo.Revoke(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke programmed prize")
	}
	if !ok {
		if _, findErr := s.repo.Find(ctx, id); findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "programmed prize not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load programmed prize")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "programmed prize is not pending")
	}
	return nil
}
