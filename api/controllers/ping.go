package controllers

import (
	"net/http"

	"github.com/angelmondragon/fuelstation-backend/api/middleware"
	"github.com/angelmondragon/fuelstation-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

// PrivatePing echoes the actor resolved from the bearer token.
func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if role := middleware.RoleFromContext(r.Context()); role != "" {
			payload["role"] = role
		}
		if gs := middleware.GasStationIDFromContext(r.Context()); gs != "" {
			payload["gas_station_id"] = gs
		}
		responses.WriteSuccess(w, payload)
	}
}
