package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/fuelstation-backend/api/middleware"
	"github.com/angelmondragon/fuelstation-backend/internal/access"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.RouteContext(req.Context())
	if routeCtx == nil {
		routeCtx = chi.NewRouteContext()
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	}
	routeCtx.URLParams.Add(key, value)
	return req
}

func withActor(req *http.Request, role enums.Role, gasStationID *uuid.UUID) *http.Request {
	grant := access.GrantAll(access.Actor{UserID: uuid.New(), Role: role, GasStationID: gasStationID})
	return req.WithContext(middleware.WithGrant(req.Context(), grant))
}
