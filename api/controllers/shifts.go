package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fuelstation-backend/api/responses"
	"github.com/angelmondragon/fuelstation-backend/api/validators"
	"github.com/angelmondragon/fuelstation-backend/internal/shifts"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

type checkInRequest struct {
	StationID uuid.UUID  `json:"station_id" validate:"required"`
	At        *time.Time `json:"at,omitempty"`
}

// ShiftCheckIn opens a shift for the calling operator and assigns its slot.
func ShiftCheckIn(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "shift")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload checkInRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := shifts.CheckInInput{StationID: payload.StationID}
		if payload.At != nil {
			input.At = payload.At.UTC()
		}

		shift, err := svc.CheckIn(r.Context(), grant, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, shift)
	}
}

type readingsRequest struct {
	Type     string                `json:"type" validate:"required,oneof=OPEN CLOSE"`
	Readings []shifts.ReadingInput `json:"readings" validate:"required,min=1"`
}

// ShiftReadings records a batch of OPEN or CLOSE totalizer readings.
func ShiftReadings(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "shift")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shiftID, err := validators.ParsePathUUID(r, "shiftId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload readingsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		readingType, err := enums.ParseReadingType(payload.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reading type"))
			return
		}

		readings, err := svc.RecordReadings(r.Context(), grant, shiftID, readingType, payload.Readings)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, readings)
	}
}

type checkOutRequest struct {
	At *time.Time `json:"at,omitempty"`
}

// ShiftCheckOut completes a shift once every nozzle has a CLOSE reading.
func ShiftCheckOut(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "shift")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shiftID, err := validators.ParsePathUUID(r, "shiftId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload checkOutRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		var at time.Time
		if payload.At != nil {
			at = payload.At.UTC()
		}

		shift, err := svc.CheckOut(r.Context(), grant, shiftID, at)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, shift)
	}
}

// ShiftDelete drops a started shift that never recorded a reading.
func ShiftDelete(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "shift")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shiftID, err := validators.ParsePathUUID(r, "shiftId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), grant, shiftID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type editCloseRequest struct {
	NozzleID  uuid.UUID        `json:"nozzle_id" validate:"required"`
	Totalizer decimal.Decimal  `json:"totalizer" validate:"gte=0"`
	PumpTest  *decimal.Decimal `json:"pump_test,omitempty" validate:"omitempty,gte=0"`
}

// ShiftEditClose corrects a CLOSE reading of a completed shift.
func ShiftEditClose(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "shift")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shiftID, err := validators.ParsePathUUID(r, "shiftId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload editCloseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reading, err := svc.EditClose(r.Context(), grant, shiftID, shifts.EditCloseInput{
			NozzleID:  payload.NozzleID,
			Totalizer: payload.Totalizer,
			PumpTest:  payload.PumpTest,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reading)
	}
}

func ShiftDetail(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "shift")
	}
	return byID("shiftId", svc.Get, logg)
}

func ShiftList(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "shift")
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
		stationID, err := validators.ParseQueryUUID(r, "station_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		operatorID, err := validators.ParseQueryUUID(r, "operator_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var status *enums.ShiftStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, err := enums.ParseShiftStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), grant, shifts.ListInput{
			GasStationID: gasStationID,
			StationID:    stationID,
			OperatorID:   operatorID,
			Status:       status,
			ShiftDate:    r.URL.Query().Get("date"),
			Params:       page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
