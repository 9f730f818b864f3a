package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/fuelstation-backend/api/routes"
	"github.com/angelmondragon/fuelstation-backend/internal/deposits"
	"github.com/angelmondragon/fuelstation-backend/internal/inventory"
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
	"github.com/angelmondragon/fuelstation-backend/pkg/instance"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
	"github.com/angelmondragon/fuelstation-backend/pkg/metrics"
	"github.com/angelmondragon/fuelstation-backend/pkg/migrate"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox"
	"github.com/angelmondragon/fuelstation-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.NewLedgerMetrics(reg)

	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	inv, err := inventory.NewService(inventory.NewRepository(conn))
	exitOnErr(logg, "failed to create inventory service", err)

	ledgerService, err := ledger.NewService(ledger.NewRepository(conn), dbClient, emitter, logg, ledgerMetrics, cfg.Ledger.Tolerance())
	exitOnErr(logg, "failed to create ledger service", err)

	masterDataService, err := masterdata.NewService(masterdata.NewRepository(conn), dbClient, cfg.Station)
	exitOnErr(logg, "failed to create master data service", err)

	transactionsService, err := transactions.NewService(transactions.NewRepository(conn), dbClient, ledgerService)
	exitOnErr(logg, "failed to create transactions service", err)

	unloadService, err := unloads.NewService(unloads.NewRepository(conn), dbClient, inv, ledgerService, emitter, logg, ledgerMetrics)
	exitOnErr(logg, "failed to create unload service", err)

	titipanService, err := titipan.NewService(titipan.NewRepository(conn), dbClient, inv, ledgerService, emitter, logg, ledgerMetrics)
	exitOnErr(logg, "failed to create titipan service", err)

	tankReadingService, err := tankreadings.NewService(tankreadings.NewRepository(conn), dbClient, inv, ledgerService, emitter, logg, ledgerMetrics)
	exitOnErr(logg, "failed to create tank reading service", err)

	shiftService, err := shifts.NewService(shifts.NewRepository(conn), dbClient, emitter, logg)
	exitOnErr(logg, "failed to create shift service", err)

	depositService, err := deposits.NewService(deposits.NewRepository(conn), dbClient, ledgerService, emitter, logg, ledgerMetrics)
	exitOnErr(logg, "failed to create deposit service", err)

	reconciliationService, err := reconciliation.NewService(reconciliation.NewRepository(conn), inv)
	exitOnErr(logg, "failed to create reconciliation service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			masterDataService,
			ledgerService,
			transactionsService,
			unloadService,
			titipanService,
			tankReadingService,
			shiftService,
			depositService,
			reconciliationService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}

func exitOnErr(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
