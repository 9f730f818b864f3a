// Package transactions builds balanced entry sets for human-entered money
// movements (cash, fuel purchases, admin adjustments) and hands them to the
// ledger as PENDING transactions.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/internal/access"
	"github.com/angelmondragon/fuelstation-backend/internal/ledger"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
)

// ReferenceProduct tags purchases with the product they restock.
const ReferenceProduct = "product"

type Service interface {
	CreateCash(ctx context.Context, grant access.Grant, input CashInput) (*models.Transaction, error)
	CreatePurchase(ctx context.Context, grant access.Grant, input PurchaseInput) (*models.Transaction, error)
	CreateAdjustment(ctx context.Context, grant access.Grant, input AdjustmentInput) (*models.Transaction, error)
}

// CashInput describes a CASH transaction. PaymentCOAID is the cash or bank
// account; CounterCOAID is the revenue account for INCOME, the expense
// account for EXPENSE and the destination account for TRANSFER.
type CashInput struct {
	GasStationID uuid.UUID
	Kind         enums.CashKind
	Amount       decimal.Decimal
	PaymentCOAID uuid.UUID
	CounterCOAID uuid.UUID
	Date         time.Time
	Description  string
}

// PurchaseInput records fuel bought for a product, paid from PaymentCOAID.
type PurchaseInput struct {
	GasStationID uuid.UUID
	ProductID    uuid.UUID
	Liters       decimal.Decimal
	UnitPrice    decimal.Decimal
	PaymentCOAID uuid.UUID
	Date         time.Time
	Description  string
}

// AdjustmentInput carries entries exactly as an admin typed them.
type AdjustmentInput struct {
	GasStationID uuid.UUID
	Date         time.Time
	Description  string
	Entries      []ledger.EntryInput
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo   Repository
	tx     txRunner
	poster ledger.Poster
}

func NewService(repo Repository, tx txRunner, poster ledger.Poster) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if poster == nil {
		return nil, fmt.Errorf("ledger poster required")
	}
	return &service{repo: repo, tx: tx, poster: poster}, nil
}

func (s *service) CreateCash(ctx context.Context, grant access.Grant, input CashInput) (*models.Transaction, error) {
	if err := grant.Require(access.CapTransactionCreate, input.GasStationID); err != nil {
		return nil, err
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cash kind")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.PaymentCOAID == uuid.Nil || input.CounterCOAID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment and counter accounts required")
	}
	if input.Kind == enums.CashTransfer && input.PaymentCOAID == input.CounterCOAID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer source and destination must differ")
	}

	var posted *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.expectCategory(ctx, repo, input.PaymentCOAID, "payment account", enums.COAAsset); err != nil {
			return err
		}
		var debit, credit uuid.UUID
		switch input.Kind {
		case enums.CashIncome:
			if err := s.expectCategory(ctx, repo, input.CounterCOAID, "revenue account", enums.COARevenue); err != nil {
				return err
			}
			debit, credit = input.PaymentCOAID, input.CounterCOAID
		case enums.CashExpense:
			if err := s.expectCategory(ctx, repo, input.CounterCOAID, "expense account", enums.COAExpense); err != nil {
				return err
			}
			debit, credit = input.CounterCOAID, input.PaymentCOAID
		case enums.CashTransfer:
			if err := s.expectCategory(ctx, repo, input.CounterCOAID, "destination account", enums.COAAsset); err != nil {
				return err
			}
			debit, credit = input.CounterCOAID, input.PaymentCOAID
		}

		var err error
		posted, err = s.poster.Post(ctx, tx, ledger.PostInput{
			GasStationID: input.GasStationID,
			Date:         input.Date,
			Type:         enums.TransactionCash,
			Origin:       enums.OriginManual,
			Description:  input.Description,
			CreatedBy:    grant.UserID(),
			Entries: []ledger.EntryInput{
				{COAID: debit, Debit: input.Amount, Description: string(input.Kind)},
				{COAID: credit, Credit: input.Amount, Description: string(input.Kind)},
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return posted, nil
}

// expectCategory leaves existence, station and lifecycle checks to the
// ledger and only pins the account's category.
func (s *service) expectCategory(ctx context.Context, repo Repository, id uuid.UUID, role string, category enums.COACategory) error {
	coa, err := repo.FindCOA(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, role+" not found").
				WithDetails(map[string]any{"coa_id": id})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+role)
	}
	if coa.Category != category {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be %s", role, category)).
			WithDetails(map[string]any{"coa_id": id, "category": coa.Category})
	}
	return nil
}

func (s *service) CreatePurchase(ctx context.Context, grant access.Grant, input PurchaseInput) (*models.Transaction, error) {
	if err := grant.Require(access.CapTransactionCreate, input.GasStationID); err != nil {
		return nil, err
	}
	if !input.Liters.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "liters must be positive")
	}
	if !input.UnitPrice.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must be positive")
	}

	var posted *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindProduct(ctx, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if product.GasStationID != input.GasStationID {
			return pkgerrors.New(pkgerrors.CodeValidation, "product belongs to another gas station")
		}
		if product.Lifecycle != enums.LifecycleActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "product is retired")
		}
		if err := s.expectCategory(ctx, repo, input.PaymentCOAID, "payment account", enums.COAAsset); err != nil {
			return err
		}
		inventory, err := s.poster.FindOrCreateCOA(ctx, tx, input.GasStationID, ledger.FuelInventory(product.Name))
		if err != nil {
			return err
		}

		total := input.Liters.Mul(input.UnitPrice).Round(2)
		description := input.Description
		if description == "" {
			description = fmt.Sprintf("Purchase %s L %s @ %s", input.Liters.String(), product.Name, input.UnitPrice.StringFixed(2))
		}
		posted, err = s.poster.Post(ctx, tx, ledger.PostInput{
			GasStationID:  input.GasStationID,
			Date:          input.Date,
			Type:          enums.TransactionPurchase,
			Origin:        enums.OriginManual,
			Description:   description,
			ReferenceType: ReferenceProduct,
			ReferenceID:   &product.ID,
			Liters:        &input.Liters,
			CreatedBy:     grant.UserID(),
			Entries: []ledger.EntryInput{
				{COAID: inventory.ID, Debit: total, Description: fmt.Sprintf("%s L", input.Liters.String())},
				{COAID: input.PaymentCOAID, Credit: total},
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return posted, nil
}

func (s *service) CreateAdjustment(ctx context.Context, grant access.Grant, input AdjustmentInput) (*models.Transaction, error) {
	if err := grant.Require(access.CapAdjustmentCreate, input.GasStationID); err != nil {
		return nil, err
	}
	return s.poster.Post(ctx, nil, ledger.PostInput{
		GasStationID: input.GasStationID,
		Date:         input.Date,
		Type:         enums.TransactionAdjustment,
		Origin:       enums.OriginManual,
		Description:  input.Description,
		CreatedBy:    grant.UserID(),
		Entries:      input.Entries,
	})
}
