package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fuelstation-backend/api/responses"
	"github.com/angelmondragon/fuelstation-backend/api/validators"
	"github.com/angelmondragon/fuelstation-backend/internal/unloads"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

type unloadCreateRequest struct {
	TankID                uuid.UUID        `json:"tank_id" validate:"required"`
	Liters                decimal.Decimal  `json:"liters" validate:"gt=0"`
	InvoiceLiters         *decimal.Decimal `json:"invoice_liters,omitempty" validate:"omitempty,gt=0"`
	InvoiceRef            string           `json:"invoice_ref" validate:"max=120"`
	PurchaseTransactionID *uuid.UUID       `json:"purchase_transaction_id,omitempty"`
	UnloadedAt            *time.Time       `json:"unloaded_at,omitempty"`
}

func (r unloadCreateRequest) toInput() unloads.CreateInput {
	input := unloads.CreateInput{
		TankID:                r.TankID,
		Liters:                r.Liters,
		InvoiceLiters:         r.InvoiceLiters,
		InvoiceRef:            validators.SanitizeString(r.InvoiceRef, 120),
		PurchaseTransactionID: r.PurchaseTransactionID,
	}
	if r.UnloadedAt != nil {
		input.UnloadedAt = r.UnloadedAt.UTC()
	}
	return input
}

// UnloadCreate records a delivery as PENDING.
func UnloadCreate(svc unloads.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "unload")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload unloadCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		unload, err := svc.Create(r.Context(), grant, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, unload)
	}
}

func UnloadApprove(svc unloads.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "unload")
	}
	return approveHandler("unloadId", svc.Approve, logg)
}

func UnloadReject(svc unloads.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "unload")
	}
	return rejectHandler("unloadId", svc.Reject, logg)
}

func UnloadDetail(svc unloads.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "unload")
	}
	return byID("unloadId", svc.Get, logg)
}

// UnloadList pages a gas station's unloads, newest first.
func UnloadList(svc unloads.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "unload")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		gasStationID, err := validators.ParsePathUUID(r, "gasStationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tankID, err := validators.ParseQueryUUID(r, "tank_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := parseApprovalStatus(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), grant, unloads.ListInput{
			GasStationID: gasStationID,
			TankID:       tankID,
			Status:       status,
			Params:       page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func parseApprovalStatus(r *http.Request) (*enums.ApprovalStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}
	status, err := enums.ParseApprovalStatus(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"})
	}
	return &status, nil
}
