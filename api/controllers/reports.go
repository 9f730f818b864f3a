package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/angelmondragon/fuelstation-backend/api/responses"
	"github.com/angelmondragon/fuelstation-backend/api/validators"
	"github.com/angelmondragon/fuelstation-backend/internal/reconciliation"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

// Reconciliation returns the daily per-tank report for ?date=YYYY-MM-DD.
// An empty date resolves to the current operational date of the gas station.
func Reconciliation(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "reconciliation")
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

		report, err := svc.DailyReconciliation(r.Context(), grant, gasStationID, r.URL.Query().Get("date"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func TankStock(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "reconciliation")
	}
	return byID("tankId", svc.TankStock, logg)
}

// ReconciliationExport streams the daily report as a download, ?format=xlsx|pdf.
func ReconciliationExport(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "reconciliation")
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
		format, err := reconciliation.ParseExportFormat(r.URL.Query().Get("format"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.DailyReconciliation(r.Context(), grant, gasStationID, r.URL.Query().Get("date"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		data, err := reconciliation.Export(report, format)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(report)))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
