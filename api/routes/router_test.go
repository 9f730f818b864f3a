package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fuelstation-backend/internal/access"
	"github.com/angelmondragon/fuelstation-backend/internal/reconciliation"
	pkgAuth "github.com/angelmondragon/fuelstation-backend/pkg/auth"
	"github.com/angelmondragon/fuelstation-backend/pkg/config"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
	"github.com/angelmondragon/fuelstation-backend/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubReconciliation struct{}

func (stubReconciliation) DailyReconciliation(ctx context.Context, grant access.Grant, gasStationID uuid.UUID, date string) (*reconciliation.Report, error) {
	if err := grant.Require(access.CapReportView, gasStationID); err != nil {
		return nil, err
	}
	return &reconciliation.Report{GasStationID: gasStationID, Date: date}, nil
}

func (stubReconciliation) TankStock(ctx context.Context, grant access.Grant, tankID uuid.UUID) (*reconciliation.TankStock, error) {
	return &reconciliation.TankStock{TankID: tankID, Stock: decimal.NewFromInt(1200)}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func newTestRouter(cfg *config.Config, dbP stubPinger) http.Handler {
	reg := prometheus.NewRegistry()
	metrics.NewLedgerMetrics(reg)
	return NewRouter(
		cfg,
		testLogger(),
		dbP,
		nil, // redis disabled
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		nil, // master data
		nil, // ledger
		nil, // transactions
		nil, // unloads
		nil, // titipan
		nil, // tank readings
		nil, // shifts
		nil, // deposits
		stubReconciliation{},
	)
}

func TestHealthLiveSetsEnvHeader(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-Fuelstation-Env"); got != "test" {
		t.Fatalf("expected env header test got %q", got)
	}
}

func TestHealthReadyReportsDatabaseFailure(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{err: errors.New("connection refused")})
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestHealthReadySucceeds(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestMetricsExposed(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPublicPingNeedsNoToken(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	req := httptest.NewRequest(http.MethodGet, "/api/public/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})
	gasStationID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleOperator, &gasStationID))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for private ping got %d", resp.Code)
	}
}

func TestReconciliationRequiresReportCapability(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})
	gasStationID := uuid.New()
	path := "/api/v1/gas-stations/" + gasStationID.String() + "/reconciliation?date=2026-03-01"

	operator := httptest.NewRequest(http.MethodGet, path, nil)
	operator.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleOperator, &gasStationID))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, operator)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for operator got %d", resp.Code)
	}

	owner := httptest.NewRequest(http.MethodGet, path, nil)
	owner.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleOwner, &gasStationID))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, owner)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner got %d", resp.Code)
	}
}

func TestReconciliationScopedToTokenStation(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})
	own := uuid.New()
	other := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/gas-stations/"+other.String()+"/reconciliation", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleManager, &own))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign station got %d", resp.Code)
	}
}

func TestTankStockRoute(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tanks/"+uuid.NewString()+"/stock", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleAdmin, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestAdjustmentsRequireAdmin(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})
	gasStationID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/adjustments", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleOwner, &gasStationID))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for owner got %d", resp.Code)
	}
}

func TestUnwiredServiceReturnsInternal(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/unloads/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleAdmin, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unwired service got %d", resp.Code)
	}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.Role, gasStationID *uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:       uuid.New(),
		GasStationID: gasStationID,
		Role:         role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestReconciliationExportDownload(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, stubPinger{})
	gasStationID := uuid.New()
	base := "/api/v1/gas-stations/" + gasStationID.String() + "/reconciliation/export?date=2026-03-01"

	req := httptest.NewRequest(http.MethodGet, base+"&format=pdf", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleFinance, &gasStationID))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("unexpected content type %q", got)
	}
	if !strings.Contains(resp.Header().Get("Content-Disposition"), "2026-03-01.pdf") {
		t.Fatalf("unexpected disposition %q", resp.Header().Get("Content-Disposition"))
	}

	req = httptest.NewRequest(http.MethodGet, base+"&format=csv", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleFinance, &gasStationID))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format got %d", resp.Code)
	}
}
