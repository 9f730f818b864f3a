package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fuelstation-backend/api/responses"
	"github.com/angelmondragon/fuelstation-backend/api/validators"
	"github.com/angelmondragon/fuelstation-backend/internal/masterdata"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

type gasStationRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=120"`
	Timezone  string `json:"timezone" validate:"max=64"`
	OpenTime  string `json:"open_time" validate:"omitempty,len=5"`
	CloseTime string `json:"close_time" validate:"omitempty,len=5"`
}

// GasStationCreate registers a tenant. Missing hours fall back to the configured defaults.
func GasStationCreate(svc masterdata.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "master data")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload gasStationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		gs, err := svc.CreateGasStation(r.Context(), grant, masterdata.CreateGasStationInput{
			Name:      validators.SanitizeString(payload.Name, 120),
			Timezone:  payload.Timezone,
			OpenTime:  payload.OpenTime,
			CloseTime: payload.CloseTime,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, gs)
	}
}

func GasStationDetail(svc masterdata.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "master data")
	}
	return byID("gasStationId", svc.GetGasStation, logg)
}

type productRequest struct {
	Name          string          `json:"name" validate:"required,min=1,max=120"`
	PurchasePrice decimal.Decimal `json:"purchase_price" validate:"gte=0"`
	SellingPrice  decimal.Decimal `json:"selling_price" validate:"gte=0"`
}

func ProductCreate(svc masterdata.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "master data")
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
		var payload productRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.CreateProduct(r.Context(), grant, masterdata.CreateProductInput{
			GasStationID:  gasStationID,
			Name:          validators.SanitizeString(payload.Name, 120),
			PurchasePrice: payload.PurchasePrice,
			SellingPrice:  payload.SellingPrice,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type productPricesRequest struct {
	PurchasePrice *decimal.Decimal `json:"purchase_price,omitempty" validate:"omitempty,gte=0"`
	SellingPrice  *decimal.Decimal `json:"selling_price,omitempty" validate:"omitempty,gte=0"`
}

// ProductUpdatePrices changes the prices used by postings created afterwards.
func ProductUpdatePrices(svc masterdata.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "master data")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParsePathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload productPricesRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.UpdateProductPrices(r.Context(), grant, productID, masterdata.UpdateProductPricesInput{
			PurchasePrice: payload.PurchasePrice,
			SellingPrice:  payload.SellingPrice,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductList(svc masterdata.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "master data")
	}
	return byID("gasStationId", svc.ListProducts, logg)
}

type tankRequest struct {
	ProductID    uuid.UUID       `json:"product_id" validate:"required"`
	Name         string          `json:"name" validate:"required,min=1,max=120"`
	Capacity     decimal.Decimal `json:"capacity" validate:"gt=0"`
	InitialStock decimal.Decimal `json:"initial_stock" validate:"gte=0"`
}

func TankCreate(svc masterdata.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "master data")
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
		var payload tankRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tank, err := svc.CreateTank(r.Context(), grant, masterdata.CreateTankInput{
			GasStationID: gasStationID,
			ProductID:    payload.ProductID,
			Name:         validators.SanitizeString(payload.Name, 120),
			Capacity:     payload.Capacity,
			InitialStock: payload.InitialStock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, tank)
	}
}

func TankList(svc masterdata.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "master data")
	}
	return byID("gasStationId", svc.ListTanks, logg)
}

type stationRequest struct {
	Code string `json:"code" validate:"required,min=1,max=32"`
	Name string `json:"name" validate:"max=120"`
}

// StationCreate adds a dispenser island to a gas station.
func StationCreate(svc masterdata.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "master data")
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
		var payload stationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		station, err := svc.CreateStation(r.Context(), grant, masterdata.CreateStationInput{
			GasStationID: gasStationID,
			Code:         validators.SanitizeString(payload.Code, 32),
			Name:         validators.SanitizeString(payload.Name, 120),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, station)
	}
}

func StationList(svc masterdata.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "master data")
	}
	return byID("gasStationId", svc.ListStations, logg)
}

type nozzleRequest struct {
	StationID uuid.UUID `json:"station_id" validate:"required"`
	TankID    uuid.UUID `json:"tank_id" validate:"required"`
	Code      string    `json:"code" validate:"required,min=1,max=32"`
}

func NozzleCreate(svc masterdata.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "master data")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload nozzleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		nozzle, err := svc.CreateNozzle(r.Context(), grant, masterdata.CreateNozzleInput{
			StationID: payload.StationID,
			TankID:    payload.TankID,
			Code:      validators.SanitizeString(payload.Code, 32),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, nozzle)
	}
}

// MasterDataRetire tags a record RETIRED; history that references it stays intact.
func MasterDataRetire(svc masterdata.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "master data")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := grantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, ok := masterdata.ParseKind(chi.URLParam(r, "kind"))
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown master data kind").
				WithDetails(map[string]any{"field": "kind"}))
			return
		}
		id, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Retire(r.Context(), grant, kind, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
