package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/fuelstation-backend/api/controllers"
	"github.com/angelmondragon/fuelstation-backend/api/middleware"
	"github.com/angelmondragon/fuelstation-backend/internal/access"
	"github.com/angelmondragon/fuelstation-backend/internal/deposits"
	"github.com/angelmondragon/fuelstation-backend/internal/ledger"
	"github.com/angelmondragon/fuelstation-backend/internal/masterdata"
	"github.com/angelmondragon/fuelstation-backend/internal/reconciliation"
	"github.com/angelmondragon/fuelstation-backend/internal/shifts"
	"github.com/angelmondragon/fuelstation-backend/internal/tankreadings"
	"github.com/angelmondragon/fuelstation-backend/internal/titipan"
	"github.com/angelmondragon/fuelstation-backend/internal/transactions"
	"github.com/angelmondragon/fuelstation-backend/internal/unloads"
	"github.com/angelmondragon/fuelstation-backend/pkg/config"
	"github.com/angelmondragon/fuelstation-backend/pkg/db"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
	"github.com/angelmondragon/fuelstation-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	masterDataService masterdata.Service,
	ledgerService ledger.Service,
	transactionsService transactions.Service,
	unloadService unloads.Service,
	titipanService titipan.Service,
	tankReadingService tankreadings.Service,
	shiftService shifts.Service,
	depositService deposits.Service,
	reconciliationService reconciliation.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins...),
	)

	var redisP redis.Pinger
	if redisClient != nil {
		redisP = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	reports := middleware.RequireCapability(access.CapReportView, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if redisClient != nil {
			r.Use(middleware.Idempotency(redisClient, logg))
		}

		r.Get("/ping", controllers.PrivatePing())

		r.Post("/gas-stations", controllers.GasStationCreate(masterDataService, logg))
		r.Route("/gas-stations/{gasStationId}", func(r chi.Router) {
			r.Get("/", controllers.GasStationDetail(masterDataService, logg))
			r.Get("/products", controllers.ProductList(masterDataService, logg))
			r.Post("/products", controllers.ProductCreate(masterDataService, logg))
			r.Get("/tanks", controllers.TankList(masterDataService, logg))
			r.Post("/tanks", controllers.TankCreate(masterDataService, logg))
			r.Get("/stations", controllers.StationList(masterDataService, logg))
			r.Post("/stations", controllers.StationCreate(masterDataService, logg))
			r.Get("/coa", controllers.COAList(ledgerService, logg))
			r.Post("/coa", controllers.COACreate(ledgerService, logg))
			r.Get("/titipan-accounts", controllers.TitipanAccountList(titipanService, logg))
			r.Post("/titipan-accounts", controllers.TitipanAccountCreate(titipanService, logg))
			r.Get("/titipan-fills", controllers.TitipanFillList(titipanService, logg))
			r.Get("/unloads", controllers.UnloadList(unloadService, logg))
			r.Get("/tank-readings", controllers.TankReadingList(tankReadingService, logg))
			r.Get("/shifts", controllers.ShiftList(shiftService, logg))
			r.Get("/deposits", controllers.DepositList(depositService, logg))
			r.Get("/transactions", controllers.TransactionList(ledgerService, logg))
			r.With(reports).Get("/reconciliation", controllers.Reconciliation(reconciliationService, logg))
			r.With(reports).Get("/reconciliation/export", controllers.ReconciliationExport(reconciliationService, logg))
			r.With(reports).Get("/profit-loss", controllers.ProfitLoss(ledgerService, logg))
		})

		r.Patch("/products/{productId}/prices", controllers.ProductUpdatePrices(masterDataService, logg))
		r.Post("/nozzles", controllers.NozzleCreate(masterDataService, logg))
		r.Post("/master-data/{kind}/{id}/retire", controllers.MasterDataRetire(masterDataService, logg))

		r.Route("/coa/{coaId}", func(r chi.Router) {
			r.Post("/retire", controllers.COARetire(ledgerService, logg))
			r.With(reports).Get("/balance", controllers.COABalance(ledgerService, logg))
		})
		r.With(reports).Get("/tanks/{tankId}/stock", controllers.TankStock(reconciliationService, logg))

		r.Route("/unloads", func(r chi.Router) {
			r.Post("/", controllers.UnloadCreate(unloadService, logg))
			r.Get("/{unloadId}", controllers.UnloadDetail(unloadService, logg))
			r.Post("/{unloadId}/approve", controllers.UnloadApprove(unloadService, logg))
			r.Post("/{unloadId}/reject", controllers.UnloadReject(unloadService, logg))
		})

		r.Route("/titipan-fills", func(r chi.Router) {
			r.Post("/", controllers.TitipanFillCreate(titipanService, logg))
			r.Get("/{fillId}", controllers.TitipanFillDetail(titipanService, logg))
			r.Post("/{fillId}/approve", controllers.TitipanFillApprove(titipanService, logg))
			r.Post("/{fillId}/reject", controllers.TitipanFillReject(titipanService, logg))
		})

		r.Route("/tank-readings", func(r chi.Router) {
			r.Post("/", controllers.TankReadingCreate(tankReadingService, logg))
			r.Get("/{readingId}", controllers.TankReadingDetail(tankReadingService, logg))
			r.Post("/{readingId}/approve", controllers.TankReadingApprove(tankReadingService, logg))
			r.Post("/{readingId}/reject", controllers.TankReadingReject(tankReadingService, logg))
		})

		r.Route("/shifts", func(r chi.Router) {
			r.Post("/check-in", controllers.ShiftCheckIn(shiftService, logg))
			r.Route("/{shiftId}", func(r chi.Router) {
				r.Get("/", controllers.ShiftDetail(shiftService, logg))
				r.Delete("/", controllers.ShiftDelete(shiftService, logg))
				r.Post("/readings", controllers.ShiftReadings(shiftService, logg))
				r.Post("/check-out", controllers.ShiftCheckOut(shiftService, logg))
				r.Patch("/close-readings", controllers.ShiftEditClose(shiftService, logg))
			})
		})

		r.Route("/deposits", func(r chi.Router) {
			r.Post("/", controllers.DepositCreate(depositService, logg))
			r.Get("/{depositId}", controllers.DepositDetail(depositService, logg))
			r.Post("/{depositId}/approve", controllers.DepositApprove(depositService, logg))
			r.Post("/{depositId}/reject", controllers.DepositReject(depositService, logg))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/cash", controllers.TransactionCreateCash(transactionsService, logg))
			r.Post("/purchases", controllers.TransactionCreatePurchase(transactionsService, logg))
			r.With(middleware.RequireCapability(access.CapAdjustmentCreate, logg)).
				Post("/adjustments", controllers.TransactionCreateAdjustment(transactionsService, logg))
			r.Route("/{transactionId}", func(r chi.Router) {
				r.Get("/", controllers.TransactionDetail(ledgerService, logg))
				r.Patch("/", controllers.TransactionUpdate(ledgerService, logg))
				r.Post("/approve", controllers.TransactionApprove(ledgerService, logg))
				r.Post("/reject", controllers.TransactionReject(ledgerService, logg))
			})
		})
	})

	return r
}
