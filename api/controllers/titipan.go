package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fuelstation-backend/api/responses"
	"github.com/angelmondragon/fuelstation-backend/api/validators"
	"github.com/angelmondragon/fuelstation-backend/internal/titipan"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

type titipanAccountRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

// TitipanAccountCreate opens a consignment account with its own liability COA.
func TitipanAccountCreate(svc titipan.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "titipan")
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
		var payload titipanAccountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.CreateAccount(r.Context(), grant, titipan.CreateAccountInput{
			GasStationID: gasStationID,
			Name:         validators.SanitizeString(payload.Name, 120),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, account)
	}
}

func TitipanAccountList(svc titipan.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "titipan")
	}
	return byID("gasStationId", svc.ListAccounts, logg)
}

type titipanFillRequest struct {
	TankID           uuid.UUID       `json:"tank_id" validate:"required"`
	TitipanAccountID uuid.UUID       `json:"titipan_account_id" validate:"required"`
	Liters           decimal.Decimal `json:"liters" validate:"gt=0"`
	FilledAt         *time.Time      `json:"filled_at,omitempty"`
}

// TitipanFillCreate records consigned fuel poured into a tank as PENDING.
func TitipanFillCreate(svc titipan.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "titipan")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload titipanFillRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := titipan.CreateFillInput{
			TankID:           payload.TankID,
			TitipanAccountID: payload.TitipanAccountID,
			Liters:           payload.Liters,
		}
		if payload.FilledAt != nil {
			input.FilledAt = payload.FilledAt.UTC()
		}

		fill, err := svc.CreateFill(r.Context(), grant, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, fill)
	}
}

func TitipanFillApprove(svc titipan.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "titipan")
	}
	return approveHandler("fillId", svc.ApproveFill, logg)
}

func TitipanFillReject(svc titipan.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "titipan")
	}
	return rejectHandler("fillId", svc.RejectFill, logg)
}

func TitipanFillDetail(svc titipan.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "titipan")
	}
	return byID("fillId", svc.GetFill, logg)
}

func TitipanFillList(svc titipan.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "titipan")
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
		accountID, err := validators.ParseQueryUUID(r, "titipan_account_id")
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

		list, err := svc.ListFills(r.Context(), grant, titipan.ListFillsInput{
			GasStationID:     gasStationID,
			TitipanAccountID: accountID,
			Status:           status,
			Params:           page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
