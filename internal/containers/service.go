package containers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mora-interactive/prizevault-backend/internal/pool"
	"github.com/mora-interactive/prizevault-backend/pkg/db/models"
	"github.com/mora-interactive/prizevault-backend/pkg/enums"
	pkgerrors "github.com/mora-interactive/prizevault-backend/pkg/errors"
)

// ConfigureInput carries the administrator-editable container settings.
// Pointer fields are optional; nil leaves the stored value untouched.
type ConfigureInput struct {
	Name                   *string
	PriceCents             *int64
	RTPTarget              *float64
	RTPEnabled             *bool
	OperatingMode          *enums.OperatingMode
	EmergencyStopCents     *int64
	DailyBudgetMultiplier  *int
	RefillBudgetMultiplier *int
	Active                 *bool
}

// EntryInput describes one prize pool entry upsert.
type EntryInput struct {
	EntryID        *uuid.UUID
	ItemRef        string
	ItemName       string
	ItemValueCents int64
	Rarity         *string
	Weight         int
	MinQuantity    int
	MaxQuantity    int
	Active         bool
}

// Service manages container type configuration and the prize pool.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.ContainerType, error)
	List(ctx context.Context, activeOnly bool) ([]models.ContainerType, error)
	Create(ctx context.Context, name string, input ConfigureInput) (*models.ContainerType, error)
	Configure(ctx context.Context, id uuid.UUID, input ConfigureInput) (*models.ContainerType, error)
	UpsertPrizeEntry(ctx context.Context, containerTypeID uuid.UUID, input EntryInput) (*models.PrizeEntry, error)
	PrizeEntries(ctx context.Context, containerTypeID uuid.UUID) ([]models.PrizeEntry, error)
}

type service struct {
	repo     Repository
	poolRepo pool.Repository
}

// NewService builds the container configuration service.
func NewService(repo Repository, poolRepo pool.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("container repository required")
	}
	if poolRepo == nil {
		return nil, fmt.Errorf("pool repository required")
	}
	return &service{repo: repo, poolRepo: poolRepo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.ContainerType, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "container type id required")
	}
	container, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load container type")
	}
	if container == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "container type not found")
	}
	return container, nil
}

func (s *service) List(ctx context.Context, activeOnly bool) ([]models.ContainerType, error) {
	containers, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list container types")
	}
	return containers, nil
}

func (s *service) Create(ctx context.Context, name string, input ConfigureInput) (*models.ContainerType, error) {
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	container := &models.ContainerType{
		ID:                     uuid.New(),
		Name:                   name,
		RTPTarget:              0.5,
		RTPEnabled:             true,
		OperatingMode:          enums.OperatingModeNormal,
		DailyBudgetMultiplier:  10,
		RefillBudgetMultiplier: 10,
		Active:                 true,
	}
	if err := applyConfigure(container, input); err != nil {
		return nil, err
	}
	if container.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if err := s.repo.Save(ctx, container); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save container type")
	}
	return container, nil
}

func (s *service) Configure(ctx context.Context, id uuid.UUID, input ConfigureInput) (*models.ContainerType, error) {
	container, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyConfigure(container, input); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, container); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save container type")
	}
	return container, nil
}

func applyConfigure(container *models.ContainerType, input ConfigureInput) error {
	if input.Name != nil {
		if *input.Name == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		container.Name = *input.Name
	}
	if input.PriceCents != nil {
		if *input.PriceCents <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		container.PriceCents = *input.PriceCents
	}
	if input.RTPTarget != nil {
		if *input.RTPTarget <= 0 || *input.RTPTarget > 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "rtp target must be in (0, 1]")
		}
		container.RTPTarget = *input.RTPTarget
	}
	if input.RTPEnabled != nil {
		container.RTPEnabled = *input.RTPEnabled
	}
	if input.OperatingMode != nil {
		if !input.OperatingMode.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid operating mode")
		}
		container.OperatingMode = *input.OperatingMode
	}
	if input.EmergencyStopCents != nil {
		if *input.EmergencyStopCents < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "emergency stop must not be negative")
		}
		container.EmergencyStopCents = *input.EmergencyStopCents
	}
	if input.DailyBudgetMultiplier != nil {
		if *input.DailyBudgetMultiplier < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "daily budget multiplier must be at least 1")
		}
		container.DailyBudgetMultiplier = *input.DailyBudgetMultiplier
	}
	if input.RefillBudgetMultiplier != nil {
		if *input.RefillBudgetMultiplier < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "refill budget multiplier must be at least 1")
		}
		container.RefillBudgetMultiplier = *input.RefillBudgetMultiplier
	}
	if input.Active != nil {
		container.Active = *input.Active
	}
	return nil
}

func (s *service) UpsertPrizeEntry(ctx context.Context, containerTypeID uuid.UUID, input EntryInput) (*models.PrizeEntry, error) {
	container, err := s.Get(ctx, containerTypeID)
	if err != nil {
		return nil, err
	}
	if input.ItemRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item ref required")
	}
	if input.ItemValueCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item value must not be negative")
	}
	if input.Weight < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "weight must not be negative")
	}
	minQty, maxQty := input.MinQuantity, input.MaxQuantity
	if minQty < 1 {
		minQty = 1
	}
	if maxQty < minQty {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max quantity must not be below min quantity")
	}

	entry := &models.PrizeEntry{
		ID:              uuid.New(),
		ContainerTypeID: container.ID,
	}
	if input.EntryID != nil {
		existing, err := s.poolRepo.FindEntry(ctx, *input.EntryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "prize entry not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load prize entry")
		}
		if existing.ContainerTypeID != container.ID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "prize entry not found")
		}
		entry = existing
	}
	entry.ItemRef = input.ItemRef
	entry.ItemName = input.ItemName
	if entry.ItemName == "" {
		entry.ItemName = input.ItemRef
	}
	entry.ItemValueCents = input.ItemValueCents
	entry.Rarity = input.Rarity
	entry.Weight = input.Weight
	entry.MinQuantity = minQty
	entry.MaxQuantity = maxQty
	entry.Active = input.Active

	if err := s.poolRepo.UpsertEntry(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save prize entry")
	}
	return entry, nil
}

func (s *service) PrizeEntries(ctx context.Context, containerTypeID uuid.UUID) ([]models.PrizeEntry, error) {
	if _, err := s.Get(ctx, containerTypeID); err != nil {
		return nil, err
	}
	entries, err := s.poolRepo.ActiveEntries(ctx, containerTypeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list prize entries")
	}
	return entries, nil
}
