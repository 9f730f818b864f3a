package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/fuelstation-backend/api/middleware"
	"github.com/angelmondragon/fuelstation-backend/api/responses"
	"github.com/angelmondragon/fuelstation-backend/api/validators"
	"github.com/angelmondragon/fuelstation-backend/internal/access"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

func grantFrom(r *http.Request) (access.Grant, error) {
	grant, ok := middleware.GrantFromContext(r.Context())
	if !ok {
		return access.Grant{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	return grant, nil
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// byID serves GET /{param} for any record loaded through the core.
func byID[T any](param string, load func(context.Context, access.Grant, uuid.UUID) (T, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathUUID(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := load(r.Context(), grant, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// approveHandler serves POST /{param}/approve.
func approveHandler[T any](param string, approve func(context.Context, access.Grant, uuid.UUID) (T, error), logg *logger.Logger) http.HandlerFunc {
	return byID(param, approve, logg)
}

// rejectHandler serves POST /{param}/reject with an optional reason.
func rejectHandler[T any](param string, reject func(context.Context, access.Grant, uuid.UUID, string) (T, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathUUID(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload rejectRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		record, err := reject(r.Context(), grant, id, validators.SanitizeString(payload.Reason, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

func unavailable(logg *logger.Logger, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
	}
}
