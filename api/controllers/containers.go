package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mora-interactive/prizevault-backend/api/responses"
	"github.com/mora-interactive/prizevault-backend/api/validators"
	containersvc "github.com/mora-interactive/prizevault-backend/internal/containers"
	drawsvc "github.com/mora-interactive/prizevault-backend/internal/draw"
	healthsvc "github.com/mora-interactive/prizevault-backend/internal/health"
	"github.com/mora-interactive/prizevault-backend/pkg/enums"
	pkgerrors "github.com/mora-interactive/prizevault-backend/pkg/errors"
	"github.com/mora-interactive/prizevault-backend/pkg/logger"
)

const (
	defaultDecisionLimit = 100
	maxDecisionLimit     = 500
)

func containerIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "containerTypeId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid container type id")
	}
	return id, nil
}

// ListContainers handles GET /api/v1/containers.
func ListContainers(svc containersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "container service unavailable"))
			return
		}
		activeOnly := r.URL.Query().Get("active") == "true"
		containers, err := svc.List(r.Context(), activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, containers)
	}
}

// CreateContainer handles POST /api/v1/containers.
func CreateContainer(svc containersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "container service unavailable"))
			return
		}
		var payload containerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toConfigureInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		name := ""
		if payload.Name != nil {
			name = *payload.Name
		}
		container, err := svc.Create(r.Context(), name, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, container)
	}
}

// ConfigureContainer handles PUT /api/v1/containers/{containerTypeId}.
func ConfigureContainer(svc containersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "container service unavailable"))
			return
		}
		id, err := containerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload containerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toConfigureInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Name != nil {
			input.Name = payload.Name
		}
		container, err := svc.Configure(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, container)
	}
}

// UpsertPrizeEntry handles PUT /api/v1/containers/{containerTypeId}/entries.
func UpsertPrizeEntry(svc containersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "container service unavailable"))
			return
		}
		id, err := containerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload prizeEntryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toEntryInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.UpsertPrizeEntry(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

// ListPrizeEntries handles GET /api/v1/containers/{containerTypeId}/entries.
func ListPrizeEntries(svc containersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "container service unavailable"))
			return
		}
		id, err := containerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.PrizeEntries(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

// ContainerHealth handles GET /api/v1/containers/{containerTypeId}/health.
func ContainerHealth(svc healthsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "health service unavailable"))
			return
		}
		id, err := containerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.ContainerHealth(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// ListDrawDecisions handles GET /api/v1/containers/{containerTypeId}/decisions.
func ListDrawDecisions(repo drawsvc.DecisionRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "decision repository unavailable"))
			return
		}
		id, err := containerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		since := time.Now().UTC().Truncate(24 * time.Hour)
		if raw := r.URL.Query().Get("since"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid since timestamp"))
				return
			}
			since = parsed.UTC()
		}

		limit := defaultDecisionLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid limit"))
				return
			}
			limit = parsed
		}
		if limit > maxDecisionLimit {
			limit = maxDecisionLimit
		}

		decisions, err := repo.ListByContainerSince(r.Context(), id, since, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list decisions"))
			return
		}
		responses.WriteSuccess(w, decisions)
	}
}

type containerRequest struct {
	Name                   *string  `json:"name,omitempty"`
	PriceCents             *int64   `json:"price_cents,omitempty" validate:"omitempty,min=1"`
	RTPTarget              *float64 `json:"rtp_target,omitempty" validate:"omitempty,gt=0,lte=1"`
	RTPEnabled             *bool    `json:"rtp_enabled,omitempty"`
	OperatingMode          *string  `json:"operating_mode,omitempty"`
	EmergencyStopCents     *int64   `json:"emergency_stop_cents,omitempty" validate:"omitempty,min=0"`
	DailyBudgetMultiplier  *int     `json:"daily_budget_multiplier,omitempty" validate:"omitempty,min=1"`
	RefillBudgetMultiplier *int     `json:"refill_budget_multiplier,omitempty" validate:"omitempty,min=1"`
	Active                 *bool    `json:"active,omitempty"`
}

func (r containerRequest) toConfigureInput() (containersvc.ConfigureInput, error) {
	input := containersvc.ConfigureInput{
		PriceCents:             r.PriceCents,
		RTPTarget:              r.RTPTarget,
		RTPEnabled:             r.RTPEnabled,
		EmergencyStopCents:     r.EmergencyStopCents,
		DailyBudgetMultiplier:  r.DailyBudgetMultiplier,
		RefillBudgetMultiplier: r.RefillBudgetMultiplier,
		Active:                 r.Active,
	}
	if r.OperatingMode != nil {
		mode, err := enums.ParseOperatingMode(*r.OperatingMode)
		if err != nil {
			return containersvc.ConfigureInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid operating mode")
		}
		input.OperatingMode = &mode
	}
	return input, nil
}

type prizeEntryRequest struct {
	EntryID        *string `json:"entry_id,omitempty"`
	ItemRef        string  `json:"item_ref" validate:"required,max=128"`
	ItemName       string  `json:"item_name,omitempty" validate:"omitempty,max=256"`
	ItemValueCents int64   `json:"item_value_cents" validate:"min=0"`
	Rarity         *string `json:"rarity,omitempty"`
	Weight         int     `json:"weight" validate:"min=0"`
	MinQuantity    int     `json:"min_quantity,omitempty" validate:"omitempty,min=1"`
	MaxQuantity    int     `json:"max_quantity,omitempty" validate:"omitempty,min=1"`
	Active         bool    `json:"active"`
}

func (r prizeEntryRequest) toEntryInput() (containersvc.EntryInput, error) {
	input := containersvc.EntryInput{
		ItemRef:        r.ItemRef,
		ItemName:       r.ItemName,
		ItemValueCents: r.ItemValueCents,
		Rarity:         r.Rarity,
		Weight:         r.Weight,
		MinQuantity:    r.MinQuantity,
		MaxQuantity:    r.MaxQuantity,
		Active:         r.Active,
	}
	if r.EntryID != nil {
		id, err := uuid.Parse(*r.EntryID)
		if err != nil {
			return containersvc.EntryInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entry id")
		}
		input.EntryID = &id
	}
	return input, nil
}
