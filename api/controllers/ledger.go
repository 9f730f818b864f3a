package controllers

import (
	"net/http"

	"github.com/angelmondragon/fuelstation-backend/api/responses"
	"github.com/angelmondragon/fuelstation-backend/api/validators"
	"github.com/angelmondragon/fuelstation-backend/internal/ledger"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

type coaRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=120"`
	Category string `json:"category" validate:"required"`
}

func COACreate(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "ledger")
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
		var payload coaRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := enums.ParseCOACategory(payload.Category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category").
				WithDetails(map[string]any{"field": "category"}))
			return
		}
		coa, err := svc.CreateCOA(r.Context(), grant, ledger.CreateCOAInput{
			GasStationID: gasStationID,
			Name:         validators.SanitizeString(payload.Name, 120),
			Category:     category,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, coa)
	}
}

// COAList returns the chart of accounts; ?include_retired=true adds retired accounts.
func COAList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "ledger")
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
		includeRetired, err := validators.ParseQueryBool(r, "include_retired")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		accounts, err := svc.ListCOA(r.Context(), grant, gasStationID, includeRetired)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, accounts)
	}
}

func COARetire(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "ledger")
	}
	return byID("coaId", svc.RetireCOA, logg)
}

func COABalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "ledger")
	}
	return byID("coaId", svc.Balance, logg)
}

func ProfitLoss(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "ledger")
	}
	return byID("gasStationId", svc.RealtimeProfitLoss, logg)
}

func TransactionDetail(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "ledger")
	}
	return byID("transactionId", svc.Get, logg)
}

func TransactionApprove(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "ledger")
	}
	return approveHandler("transactionId", svc.Approve, logg)
}

func TransactionReject(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "ledger")
	}
	return rejectHandler("transactionId", svc.Reject, logg)
}

type transactionUpdateRequest struct {
	Status  *string             `json:"status,omitempty"`
	Entries []ledger.EntryInput `json:"entries,omitempty"`
	Reason  string              `json:"reason" validate:"max=500"`
}

// TransactionUpdate replaces the entries of a PENDING transaction, decides it, or both.
func TransactionUpdate(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "ledger")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload transactionUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := ledger.UpdateInput{Entries: payload.Entries, Reason: validators.SanitizeString(payload.Reason, 500)}
		if payload.Status != nil {
			status, err := enums.ParseApprovalStatus(*payload.Status)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
					WithDetails(map[string]any{"field": "status"}))
				return
			}
			input.Status = &status
		}

		tx, err := svc.Update(r.Context(), grant, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tx)
	}
}

// TransactionList pages a gas station's journal, newest first.
func TransactionList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "ledger")
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
		input := ledger.ListInput{GasStationID: gasStationID}
		if raw := r.URL.Query().Get("type"); raw != "" {
			txType, err := enums.ParseTransactionType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type").
					WithDetails(map[string]any{"field": "type"}))
				return
			}
			input.Type = &txType
		}
		if input.Status, err = parseApprovalStatus(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.From, err = validators.ParseQueryTime(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.To, err = validators.ParseQueryTime(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.Params, err = validators.ParsePage(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), grant, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
