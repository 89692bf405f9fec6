package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mora-interactive/prizevault-backend/api/responses"
	"github.com/mora-interactive/prizevault-backend/api/validators"
	overridesvc "github.com/mora-interactive/prizevault-backend/internal/overrides"
	pkgerrors "github.com/mora-interactive/prizevault-backend/pkg/errors"
	"github.com/mora-interactive/prizevault-backend/pkg/logger"
)

// ScheduleProgrammedPrize handles POST /api/v1/containers/{containerTypeId}/programmed-prizes.
func ScheduleProgrammedPrize(svc overridesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}
		containerID, err := containerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload programmedPrizeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toScheduleInput(containerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		prize, err := svc.Schedule(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, prize)
	}
}

// RevokeProgrammedPrize handles DELETE /api/v1/programmed-prizes/{programmedPrizeId}.
func RevokeProgrammedPrize(svc overridesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "programmedPrizeId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid programmed prize id"))
			return
		}
		if err := svc.Revoke(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "revoked"})
	}
}

type programmedPrizeRequest struct {
	ItemRef        string     `json:"item_ref" validate:"required,max=128"`
	ItemName       string     `json:"item_name,omitempty" validate:"omitempty,max=256"`
	ItemValueCents int64      `json:"item_value_cents" validate:"min=0"`
	Priority       *int       `json:"priority,omitempty" validate:"omitempty,min=0"`
	TargetUserID   *string    `json:"target_user_id,omitempty"`
	ManualRelease  bool       `json:"manual_release"`
	ScheduledFor   *time.Time `json:"scheduled_for,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at" validate:"required"`
	MaxUses        *int       `json:"max_uses,omitempty" validate:"omitempty,min=1"`
}

func (r programmedPrizeRequest) toScheduleInput(containerID uuid.UUID) (overridesvc.ScheduleInput, error) {
	input := overridesvc.ScheduleInput{
		ContainerTypeID: containerID,
		ItemRef:         r.ItemRef,
		ItemName:        r.ItemName,
		ItemValueCents:  r.ItemValueCents,
		ManualRelease:   r.ManualRelease,
		ExpiresAt:       r.ExpiresAt,
	}
	if r.Priority != nil {
		input.Priority = *r.Priority
	}
	if r.MaxUses != nil {
		input.MaxUses = *r.MaxUses
	}
	if r.ScheduledFor != nil {
		input.ScheduledFor = *r.ScheduledFor
	}
	if r.TargetUserID != nil {
		target, err := uuid.Parse(*r.TargetUserID)
		if err != nil {
			return overridesvc.ScheduleInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target user id")
		}
		input.TargetUserID = &target
	}
	return input, nil
}
