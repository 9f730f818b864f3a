package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fuelstation-backend/api/responses"
	"github.com/angelmondragon/fuelstation-backend/api/validators"
	"github.com/angelmondragon/fuelstation-backend/internal/deposits"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

type depositCreateRequest struct {
	ShiftID        uuid.UUID              `json:"shift_id" validate:"required"`
	OperatorAmount decimal.Decimal        `json:"operator_amount" validate:"gte=0"`
	Notes          string                 `json:"notes" validate:"max=500"`
	Details        []deposits.DetailInput `json:"details" validate:"required,min=1"`
}

// DepositCreate declares the cash of a completed shift.
func DepositCreate(svc deposits.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "deposit")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload depositCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deposit, err := svc.Create(r.Context(), grant, deposits.CreateInput{
			ShiftID:        payload.ShiftID,
			OperatorAmount: payload.OperatorAmount,
			Notes:          validators.SanitizeString(payload.Notes, 500),
			Details:        payload.Details,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, deposit)
	}
}

func DepositApprove(svc deposits.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "deposit")
	}
	return approveHandler("depositId", svc.Approve, logg)
}

func DepositReject(svc deposits.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "deposit")
	}
	return rejectHandler("depositId", svc.Reject, logg)
}

func DepositDetail(svc deposits.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "deposit")
	}
	return byID("depositId", svc.Get, logg)
}

func DepositList(svc deposits.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "deposit")
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
		shiftID, err := validators.ParseQueryUUID(r, "shift_id")
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

		list, err := svc.List(r.Context(), grant, deposits.ListInput{
			GasStationID: gasStationID,
			ShiftID:      shiftID,
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
