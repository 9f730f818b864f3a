// Package masterdata manages gas stations, products, tanks, dispensing
// stations and nozzles. Records are retired through their lifecycle tag and
// never deleted.
package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/internal/access"
	"github.com/angelmondragon/fuelstation-backend/internal/tankstock"
	"github.com/angelmondragon/fuelstation-backend/pkg/config"
	"github.com/angelmondragon/fuelstation-backend/pkg/db"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
)

// Service exposes master data operations.
type Service interface {
	CreateGasStation(ctx context.Context, grant access.Grant, input CreateGasStationInput) (*models.GasStation, error)
	GetGasStation(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.GasStation, error)
	CreateProduct(ctx context.Context, grant access.Grant, input CreateProductInput) (*models.Product, error)
	UpdateProductPrices(ctx context.Context, grant access.Grant, id uuid.UUID, input UpdateProductPricesInput) (*models.Product, error)
	CreateTank(ctx context.Context, grant access.Grant, input CreateTankInput) (*models.Tank, error)
	CreateStation(ctx context.Context, grant access.Grant, input CreateStationInput) (*models.Station, error)
	CreateNozzle(ctx context.Context, grant access.Grant, input CreateNozzleInput) (*models.Nozzle, error)
	Retire(ctx context.Context, grant access.Grant, kind Kind, id uuid.UUID) error
	ListProducts(ctx context.Context, grant access.Grant, gasStationID uuid.UUID) ([]models.Product, error)
	ListTanks(ctx context.Context, grant access.Grant, gasStationID uuid.UUID) ([]models.Tank, error)
	ListStations(ctx context.Context, grant access.Grant, gasStationID uuid.UUID) ([]models.Station, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo     *Repository
	tx       txRunner
	defaults config.StationConfig
}

// NewService wires master data with the station defaults from config.
func NewService(repo *Repository, tx txRunner, defaults config.StationConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("masterdata repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, defaults: defaults}, nil
}

// Hours returns the operational-day definition of a gas station.
func Hours(gs *models.GasStation) (tankstock.Hours, error) {
	hours, err := tankstock.ParseHours(gs.Timezone, gs.OpenTime, gs.CloseTime)
	if err != nil {
		return tankstock.Hours{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "gas station hours are invalid")
	}
	return hours, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}

func conflictOrDependency(err error, what string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, what+" already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create "+what)
}

func (s *service) CreateGasStation(ctx context.Context, grant access.Grant, input CreateGasStationInput) (*models.GasStation, error) {
	gs := &models.GasStation{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(input.Name),
		Timezone:  firstNonEmpty(input.Timezone, s.defaults.DefaultTimezone),
		OpenTime:  firstNonEmpty(input.OpenTime, s.defaults.DefaultOpenTime),
		CloseTime: firstNonEmpty(input.CloseTime, s.defaults.DefaultCloseTime),
		Lifecycle: enums.LifecycleActive,
	}
	if err := grant.Require(access.CapMasterDataManage, gs.ID); err != nil {
		return nil, err
	}
	if gs.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if _, err := tankstock.ParseHours(gs.Timezone, gs.OpenTime, gs.CloseTime); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid operating hours")
	}
	if err := s.repo.Create(ctx, gs); err != nil {
		return nil, conflictOrDependency(err, "gas station")
	}
	return gs, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func (s *service) GetGasStation(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.GasStation, error) {
	if err := grant.Require(access.CapMasterDataView, id); err != nil {
		return nil, err
	}
	gs, err := s.repo.FindGasStation(ctx, id)
	if err != nil {
		return nil, notFound(err, "gas station")
	}
	return gs, nil
}

// activeGasStation loads a gas station that accepts new master data.
func (s *service) activeGasStation(ctx context.Context, repo *Repository, id uuid.UUID) (*models.GasStation, error) {
	gs, err := repo.FindGasStation(ctx, id)
	if err != nil {
		return nil, notFound(err, "gas station")
	}
	if gs.Lifecycle != enums.LifecycleActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "gas station is retired")
	}
	return gs, nil
}

func (s *service) CreateProduct(ctx context.Context, grant access.Grant, input CreateProductInput) (*models.Product, error) {
	if err := grant.Require(access.CapMasterDataManage, input.GasStationID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.PurchasePrice.IsNegative() || input.SellingPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prices must not be negative")
	}
	if _, err := s.activeGasStation(ctx, s.repo, input.GasStationID); err != nil {
		return nil, err
	}
	product := &models.Product{
		GasStationID:  input.GasStationID,
		Name:          name,
		PurchasePrice: input.PurchasePrice,
		SellingPrice:  input.SellingPrice,
		Lifecycle:     enums.LifecycleActive,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, conflictOrDependency(err, "product")
	}
	return product, nil
}

func (s *service) UpdateProductPrices(ctx context.Context, grant access.Grant, id uuid.UUID, input UpdateProductPricesInput) (*models.Product, error) {
	updates := map[string]any{}
	if input.PurchasePrice != nil {
		if input.PurchasePrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase price must not be negative")
		}
		updates["purchase_price"] = *input.PurchasePrice
	}
	if input.SellingPrice != nil {
		if input.SellingPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "selling price must not be negative")
		}
		updates["selling_price"] = *input.SellingPrice
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no price provided")
	}

	var product *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindProduct(ctx, id)
		if err != nil {
			return notFound(err, "product")
		}
		if err := grant.Require(access.CapMasterDataManage, current.GasStationID); err != nil {
			return err
		}
		if err := repo.UpdateProductPrices(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
		product, err = repo.FindProduct(ctx, id)
		if err != nil {
			return notFound(err, "product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) CreateTank(ctx context.Context, grant access.Grant, input CreateTankInput) (*models.Tank, error) {
	if err := grant.Require(access.CapMasterDataManage, input.GasStationID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.Capacity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "capacity must be positive")
	}
	if input.InitialStock.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial stock must not be negative")
	}
	if input.InitialStock.GreaterThan(input.Capacity) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial stock exceeds capacity").
			WithDetails(map[string]any{"capacity": input.Capacity, "initial_stock": input.InitialStock})
	}

	var tank *models.Tank
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.activeGasStation(ctx, repo, input.GasStationID); err != nil {
			return err
		}
		product, err := repo.FindProduct(ctx, input.ProductID)
		if err != nil {
			return notFound(err, "product")
		}
		if product.GasStationID != input.GasStationID || product.Lifecycle != enums.LifecycleActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is not an active product of this gas station")
		}
		tank = &models.Tank{
			GasStationID: input.GasStationID,
			ProductID:    product.ID,
			Name:         name,
			Capacity:     input.Capacity,
			InitialStock: input.InitialStock,
			Lifecycle:    enums.LifecycleActive,
		}
		if err := repo.Create(ctx, tank); err != nil {
			return conflictOrDependency(err, "tank")
		}
		tank.Product = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tank, nil
}

func (s *service) CreateStation(ctx context.Context, grant access.Grant, input CreateStationInput) (*models.Station, error) {
	if err := grant.Require(access.CapMasterDataManage, input.GasStationID); err != nil {
		return nil, err
	}
	code, name := strings.TrimSpace(input.Code), strings.TrimSpace(input.Name)
	if code == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code and name are required")
	}
	if _, err := s.activeGasStation(ctx, s.repo, input.GasStationID); err != nil {
		return nil, err
	}
	station := &models.Station{
		GasStationID: input.GasStationID,
		Code:         code,
		Name:         name,
		Lifecycle:    enums.LifecycleActive,
	}
	if err := s.repo.Create(ctx, station); err != nil {
		return nil, conflictOrDependency(err, "station")
	}
	return station, nil
}

func (s *service) CreateNozzle(ctx context.Context, grant access.Grant, input CreateNozzleInput) (*models.Nozzle, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	var nozzle *models.Nozzle
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		station, err := repo.FindStation(ctx, input.StationID)
		if err != nil {
			return notFound(err, "station")
		}
		if err := grant.Require(access.CapMasterDataManage, station.GasStationID); err != nil {
			return err
		}
		tank, err := repo.FindTank(ctx, input.TankID)
		if err != nil {
			return notFound(err, "tank")
		}
		if tank.GasStationID != station.GasStationID {
			return pkgerrors.New(pkgerrors.CodeValidation, "tank belongs to another gas station")
		}
		if station.Lifecycle != enums.LifecycleActive || tank.Lifecycle != enums.LifecycleActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "station and tank must be active")
		}
		nozzle = &models.Nozzle{
			StationID: station.ID,
			TankID:    tank.ID,
			Code:      code,
			Lifecycle: enums.LifecycleActive,
		}
		if err := repo.Create(ctx, nozzle); err != nil {
			return conflictOrDependency(err, "nozzle")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nozzle, nil
}

// Retire tags one record RETIRED. History stays intact and retired records
// accept no new activity; retiring twice is a no-op.
func (s *service) Retire(ctx context.Context, grant access.Grant, kind Kind, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		gasStationID, lifecycle, model, err := s.ownerOf(ctx, repo, kind, id)
		if err != nil {
			return err
		}
		if err := grant.Require(access.CapMasterDataManage, gasStationID); err != nil {
			return err
		}
		if lifecycle == enums.LifecycleRetired {
			return nil
		}
		if err := repo.SetLifecycle(ctx, model, id, enums.LifecycleRetired); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire "+string(kind))
		}
		return nil
	})
}

func (s *service) ownerOf(ctx context.Context, repo *Repository, kind Kind, id uuid.UUID) (uuid.UUID, enums.Lifecycle, any, error) {
	switch kind {
	case KindGasStation:
		gs, err := repo.FindGasStation(ctx, id)
		if err != nil {
			return uuid.Nil, "", nil, notFound(err, "gas station")
		}
		return gs.ID, gs.Lifecycle, &models.GasStation{}, nil
	case KindProduct:
		product, err := repo.FindProduct(ctx, id)
		if err != nil {
			return uuid.Nil, "", nil, notFound(err, "product")
		}
		return product.GasStationID, product.Lifecycle, &models.Product{}, nil
	case KindTank:
		tank, err := repo.FindTank(ctx, id)
		if err != nil {
			return uuid.Nil, "", nil, notFound(err, "tank")
		}
		return tank.GasStationID, tank.Lifecycle, &models.Tank{}, nil
	case KindStation:
		station, err := repo.FindStation(ctx, id)
		if err != nil {
			return uuid.Nil, "", nil, notFound(err, "station")
		}
		return station.GasStationID, station.Lifecycle, &models.Station{}, nil
	case KindNozzle:
		nozzle, err := repo.FindNozzle(ctx, id)
		if err != nil {
			return uuid.Nil, "", nil, notFound(err, "nozzle")
		}
		station, err := repo.FindStation(ctx, nozzle.StationID)
		if err != nil {
			return uuid.Nil, "", nil, notFound(err, "station")
		}
		return station.GasStationID, nozzle.Lifecycle, &models.Nozzle{}, nil
	}
	return uuid.Nil, "", nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown record kind")
}

func (s *service) ListProducts(ctx context.Context, grant access.Grant, gasStationID uuid.UUID) ([]models.Product, error) {
	if err := grant.Require(access.CapMasterDataView, gasStationID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListProducts(ctx, gasStationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return rows, nil
}

func (s *service) ListTanks(ctx context.Context, grant access.Grant, gasStationID uuid.UUID) ([]models.Tank, error) {
	if err := grant.Require(access.CapMasterDataView, gasStationID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListTanks(ctx, gasStationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tanks")
	}
	return rows, nil
}

func (s *service) ListStations(ctx context.Context, grant access.Grant, gasStationID uuid.UUID) ([]models.Station, error) {
	if err := grant.Require(access.CapMasterDataView, gasStationID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListStations(ctx, gasStationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stations")
	}
	return rows, nil
}
