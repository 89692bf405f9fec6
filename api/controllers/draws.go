package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mora-interactive/prizevault-backend/api/responses"
	"github.com/mora-interactive/prizevault-backend/api/validators"
	drawsvc "github.com/mora-interactive/prizevault-backend/internal/draw"
	pkgerrors "github.com/mora-interactive/prizevault-backend/pkg/errors"
	"github.com/mora-interactive/prizevault-backend/pkg/logger"
)

// ExecuteDraw handles POST /api/v1/draws. Budget blocks are presented to the
// player as ordinary losses; the full decision type stays in the audit log.
func ExecuteDraw(svc drawsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "draw service unavailable"))
			return
		}

		var payload drawRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Draw(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toDrawResponse(result))
	}
}

type drawRequest struct {
	ContainerTypeID string `json:"container_type_id" validate:"required,uuid"`
	UserID          string `json:"user_id" validate:"required,uuid"`
	PurchaseID      string `json:"purchase_id" validate:"required,max=128"`
	PriceCents      *int64 `json:"price_cents,omitempty" validate:"omitempty,min=1"`
}

func (r drawRequest) toInput() (drawsvc.Input, error) {
	containerID, err := uuid.Parse(r.ContainerTypeID)
	if err != nil {
		return drawsvc.Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid container type id")
	}
	userID, err := uuid.Parse(r.UserID)
	if err != nil {
		return drawsvc.Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	input := drawsvc.Input{
		ContainerTypeID: containerID,
		UserID:          userID,
		PurchaseID:      r.PurchaseID,
	}
	if r.PriceCents != nil {
		input.PriceCents = *r.PriceCents
	}
	return input, nil
}

type drawResponse struct {
	DecisionID string            `json:"decision_id"`
	Won        bool              `json:"won"`
	Item       *drawItemResponse `json:"item,omitempty"`
	Replayed   bool              `json:"replayed"`
}

type drawItemResponse struct {
	Ref        string `json:"ref"`
	Name       string `json:"name"`
	ValueCents int64  `json:"value_cents"`
	Quantity   int    `json:"quantity"`
}

func toDrawResponse(result *drawsvc.Result) drawResponse {
	resp := drawResponse{
		DecisionID: result.Decision.ID.String(),
		Won:        result.Won(),
		Replayed:   result.Replayed,
	}
	if result.Item != nil {
		resp.Item = &drawItemResponse{
			Ref:        result.Item.Ref,
			Name:       result.Item.Name,
			ValueCents: result.Item.ValueCents,
			Quantity:   result.Item.Quantity,
		}
	}
	return resp
}
