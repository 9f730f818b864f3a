package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/fuelstation-backend/internal/access"
	"github.com/angelmondragon/fuelstation-backend/internal/unloads"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
)

type testUnloadService struct {
	createFn func(ctx context.Context, grant access.Grant, input unloads.CreateInput) (*models.Unload, error)
	rejectFn func(ctx context.Context, grant access.Grant, id uuid.UUID, reason string) (*models.Unload, error)
	listFn   func(ctx context.Context, grant access.Grant, input unloads.ListInput) (*unloads.List, error)
}

func (s *testUnloadService) Create(ctx context.Context, grant access.Grant, input unloads.CreateInput) (*models.Unload, error) {
	if s.createFn != nil {
		return s.createFn(ctx, grant, input)
	}
	return &models.Unload{}, nil
}

func (s *testUnloadService) Approve(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.Unload, error) {
	return &models.Unload{ID: id, Status: enums.ApprovalApproved}, nil
}

func (s *testUnloadService) Reject(ctx context.Context, grant access.Grant, id uuid.UUID, reason string) (*models.Unload, error) {
	if s.rejectFn != nil {
		return s.rejectFn(ctx, grant, id, reason)
	}
	return &models.Unload{ID: id, Status: enums.ApprovalRejected}, nil
}

func (s *testUnloadService) Get(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.Unload, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unload not found")
}

func (s *testUnloadService) List(ctx context.Context, grant access.Grant, input unloads.ListInput) (*unloads.List, error) {
	if s.listFn != nil {
		return s.listFn(ctx, grant, input)
	}
	return &unloads.List{}, nil
}

func TestUnloadCreateSuccess(t *testing.T) {
	gasStationID := uuid.New()
	tankID := uuid.New()
	svc := &testUnloadService{
		createFn: func(ctx context.Context, grant access.Grant, input unloads.CreateInput) (*models.Unload, error) {
			if input.TankID != tankID {
				t.Fatalf("unexpected tank %s", input.TankID)
			}
			if input.Liters.String() != "5000" {
				t.Fatalf("unexpected liters %s", input.Liters)
			}
			if input.InvoiceRef != "INV-7" {
				t.Fatalf("unexpected invoice ref %q", input.InvoiceRef)
			}
			return &models.Unload{ID: uuid.New(), TankID: tankID, Liters: input.Liters, Status: enums.ApprovalPending}, nil
		},
	}

	body := `{"tank_id":"` + tankID.String() + `","liters":5000,"invoice_ref":"INV-7"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/unloads", strings.NewReader(body))
	req = withActor(req, enums.RoleUnloader, &gasStationID)
	resp := httptest.NewRecorder()
	UnloadCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Status string `json:"status"`
			TankID string `json:"tank_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Status != "PENDING" || envelope.Data.TankID != tankID.String() {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestUnloadCreateRejectsNonPositiveLiters(t *testing.T) {
	gasStationID := uuid.New()
	body := `{"tank_id":"` + uuid.NewString() + `","liters":0}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/unloads", strings.NewReader(body))
	req = withActor(req, enums.RoleUnloader, &gasStationID)
	resp := httptest.NewRecorder()
	UnloadCreate(&testUnloadService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestUnloadCreateWithoutActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/unloads", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	UnloadCreate(&testUnloadService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestUnloadRejectPassesReason(t *testing.T) {
	gasStationID := uuid.New()
	unloadID := uuid.New()
	called := false
	svc := &testUnloadService{
		rejectFn: func(ctx context.Context, grant access.Grant, id uuid.UUID, reason string) (*models.Unload, error) {
			called = true
			if id != unloadID {
				t.Fatalf("unexpected unload %s", id)
			}
			if reason != "wrong tank" {
				t.Fatalf("unexpected reason %q", reason)
			}
			return &models.Unload{ID: id, Status: enums.ApprovalRejected}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/unloads/"+unloadID.String()+"/reject", strings.NewReader(`{"reason":"wrong tank"}`))
	req = withActor(req, enums.RoleManager, &gasStationID)
	req = addRouteParam(req, "unloadId", unloadID.String())
	resp := httptest.NewRecorder()
	UnloadReject(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !called {
		t.Fatal("expected service called")
	}
}

func TestUnloadRejectWithoutBody(t *testing.T) {
	gasStationID := uuid.New()
	unloadID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/unloads/"+unloadID.String()+"/reject", nil)
	req = withActor(req, enums.RoleManager, &gasStationID)
	req = addRouteParam(req, "unloadId", unloadID.String())
	resp := httptest.NewRecorder()
	UnloadReject(&testUnloadService{}, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestUnloadDetailNotFound(t *testing.T) {
	gasStationID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/unloads/x", nil)
	req = withActor(req, enums.RoleManager, &gasStationID)
	req = addRouteParam(req, "unloadId", uuid.NewString())
	resp := httptest.NewRecorder()
	UnloadDetail(&testUnloadService{}, testLogger())(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestUnloadDetailInvalidID(t *testing.T) {
	gasStationID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/unloads/invalid", nil)
	req = withActor(req, enums.RoleManager, &gasStationID)
	req = addRouteParam(req, "unloadId", "invalid")
	resp := httptest.NewRecorder()
	UnloadDetail(&testUnloadService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestUnloadListFilters(t *testing.T) {
	gasStationID := uuid.New()
	tankID := uuid.New()
	svc := &testUnloadService{
		listFn: func(ctx context.Context, grant access.Grant, input unloads.ListInput) (*unloads.List, error) {
			if input.GasStationID != gasStationID {
				t.Fatalf("unexpected gas station %s", input.GasStationID)
			}
			if input.TankID == nil || *input.TankID != tankID {
				t.Fatalf("expected tank filter")
			}
			if input.Status == nil || *input.Status != enums.ApprovalPending {
				t.Fatalf("expected status filter")
			}
			if input.Params.Limit != 5 {
				t.Fatalf("unexpected limit %d", input.Params.Limit)
			}
			return &unloads.List{NextCursor: "next"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/gas-stations/x/unloads?tank_id="+tankID.String()+"&status=PENDING&limit=5", nil)
	req = withActor(req, enums.RoleManager, &gasStationID)
	req = addRouteParam(req, "gasStationId", gasStationID.String())
	resp := httptest.NewRecorder()
	UnloadList(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestUnloadListRejectsUnknownStatus(t *testing.T) {
	gasStationID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/gas-stations/x/unloads?status=MAYBE", nil)
	req = withActor(req, enums.RoleManager, &gasStationID)
	req = addRouteParam(req, "gasStationId", gasStationID.String())
	resp := httptest.NewRecorder()
	UnloadList(&testUnloadService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
