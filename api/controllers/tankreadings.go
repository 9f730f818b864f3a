package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fuelstation-backend/api/responses"
	"github.com/angelmondragon/fuelstation-backend/api/validators"
	"github.com/angelmondragon/fuelstation-backend/internal/tankreadings"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

type tankReadingRequest struct {
	TankID     uuid.UUID       `json:"tank_id" validate:"required"`
	LiterValue decimal.Decimal `json:"liter_value" validate:"gte=0"`
	ReadingAt  *time.Time      `json:"reading_at,omitempty"`
}

// TankReadingCreate records a dip measurement for the tank's operational day.
func TankReadingCreate(svc tankreadings.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "tank reading")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload tankReadingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := tankreadings.CreateInput{TankID: payload.TankID, LiterValue: payload.LiterValue}
		if payload.ReadingAt != nil {
			input.ReadingAt = payload.ReadingAt.UTC()
		}

		reading, err := svc.Create(r.Context(), grant, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reading)
	}
}

func TankReadingApprove(svc tankreadings.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "tank reading")
	}
	return approveHandler("readingId", svc.Approve, logg)
}

func TankReadingReject(svc tankreadings.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "tank reading")
	}
	return rejectHandler("readingId", svc.Reject, logg)
}

func TankReadingDetail(svc tankreadings.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "tank reading")
	}
	return byID("readingId", svc.Get, logg)
}

func TankReadingList(svc tankreadings.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "tank reading")
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

		list, err := svc.List(r.Context(), grant, tankreadings.ListInput{
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
