package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fuelstation-backend/api/responses"
	"github.com/angelmondragon/fuelstation-backend/api/validators"
	"github.com/angelmondragon/fuelstation-backend/internal/ledger"
	"github.com/angelmondragon/fuelstation-backend/internal/transactions"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

type cashRequest struct {
	GasStationID uuid.UUID       `json:"gas_station_id" validate:"required"`
	Kind         string          `json:"kind" validate:"required"`
	Amount       decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentCOAID uuid.UUID       `json:"payment_coa_id" validate:"required"`
	CounterCOAID uuid.UUID       `json:"counter_coa_id" validate:"required"`
	Date         *time.Time      `json:"date,omitempty"`
	Description  string          `json:"description" validate:"max=500"`
}

// TransactionCreateCash records income, expense or a transfer as a PENDING transaction.
func TransactionCreateCash(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "transactions")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cashRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := enums.ParseCashKind(payload.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind").
				WithDetails(map[string]any{"field": "kind"}))
			return
		}

		tx, err := svc.CreateCash(r.Context(), grant, transactions.CashInput{
			GasStationID: payload.GasStationID,
			Kind:         kind,
			Amount:       payload.Amount,
			PaymentCOAID: payload.PaymentCOAID,
			CounterCOAID: payload.CounterCOAID,
			Date:         dateOrZero(payload.Date),
			Description:  validators.SanitizeString(payload.Description, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, tx)
	}
}

type purchaseRequest struct {
	GasStationID uuid.UUID       `json:"gas_station_id" validate:"required"`
	ProductID    uuid.UUID       `json:"product_id" validate:"required"`
	Liters       decimal.Decimal `json:"liters" validate:"gt=0"`
	UnitPrice    decimal.Decimal `json:"unit_price" validate:"gt=0"`
	PaymentCOAID uuid.UUID       `json:"payment_coa_id" validate:"required"`
	Date         *time.Time      `json:"date,omitempty"`
	Description  string          `json:"description" validate:"max=500"`
}

// TransactionCreatePurchase records fuel bought from the supplier.
func TransactionCreatePurchase(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "transactions")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload purchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tx, err := svc.CreatePurchase(r.Context(), grant, transactions.PurchaseInput{
			GasStationID: payload.GasStationID,
			ProductID:    payload.ProductID,
			Liters:       payload.Liters,
			UnitPrice:    payload.UnitPrice,
			PaymentCOAID: payload.PaymentCOAID,
			Date:         dateOrZero(payload.Date),
			Description:  validators.SanitizeString(payload.Description, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, tx)
	}
}

type adjustmentRequest struct {
	GasStationID uuid.UUID           `json:"gas_station_id" validate:"required"`
	Date         *time.Time          `json:"date,omitempty"`
	Description  string              `json:"description" validate:"max=500"`
	Entries      []ledger.EntryInput `json:"entries" validate:"required,min=2"`
}

// TransactionCreateAdjustment posts admin-typed journal entries for approval.
func TransactionCreateAdjustment(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "transactions")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adjustmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tx, err := svc.CreateAdjustment(r.Context(), grant, transactions.AdjustmentInput{
			GasStationID: payload.GasStationID,
			Date:         dateOrZero(payload.Date),
			Description:  validators.SanitizeString(payload.Description, 500),
			Entries:      payload.Entries,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, tx)
	}
}

func dateOrZero(value *time.Time) time.Time {
	if value == nil {
		return time.Time{}
	}
	return value.UTC()
}
