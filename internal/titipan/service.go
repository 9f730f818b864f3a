// Package titipan tracks consignment fuel: third parties whose fuel the
// station stores in its own tanks. Each consignment owner has a liability
// account that approved fills are credited to.
package titipan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/internal/access"
	"github.com/angelmondragon/fuelstation-backend/internal/approval"
	"github.com/angelmondragon/fuelstation-backend/internal/inventory"
	"github.com/angelmondragon/fuelstation-backend/internal/ledger"
	"github.com/angelmondragon/fuelstation-backend/pkg/db"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
	"github.com/angelmondragon/fuelstation-backend/pkg/metrics"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fuelstation-backend/pkg/pagination"
)

// ReferenceTitipanFill tags the adjustment posted for an approved fill.
const ReferenceTitipanFill = "titipan_fill"

type Service interface {
	CreateAccount(ctx context.Context, grant access.Grant, input CreateAccountInput) (*models.TitipanAccount, error)
	ListAccounts(ctx context.Context, grant access.Grant, gasStationID uuid.UUID) ([]models.TitipanAccount, error)
	CreateFill(ctx context.Context, grant access.Grant, input CreateFillInput) (*models.TitipanFill, error)
	ApproveFill(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.TitipanFill, error)
	RejectFill(ctx context.Context, grant access.Grant, id uuid.UUID, reason string) (*models.TitipanFill, error)
	GetFill(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.TitipanFill, error)
	ListFills(ctx context.Context, grant access.Grant, input ListFillsInput) (*FillList, error)
}

type CreateAccountInput struct {
	GasStationID uuid.UUID
	Name         string
}

type CreateFillInput struct {
	TankID           uuid.UUID
	TitipanAccountID uuid.UUID
	Liters           decimal.Decimal
	FilledAt         time.Time
}

type ListFillsInput struct {
	GasStationID     uuid.UUID
	TitipanAccountID *uuid.UUID
	Status           *enums.ApprovalStatus
	Params           pagination.Params
}

type FillList struct {
	Items      []models.TitipanFill `json:"items"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory inventory.Service
	poster    ledger.Poster
	outbox    outbox.Emitter
	logg      *logger.Logger
	metrics   *metrics.LedgerMetrics
}

func NewService(repo Repository, tx txRunner, inv inventory.Service, poster ledger.Poster, emitter outbox.Emitter, logg *logger.Logger, m *metrics.LedgerMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("titipan repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if poster == nil {
		return nil, fmt.Errorf("ledger poster required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, inventory: inv, poster: poster, outbox: emitter, logg: logg, metrics: m}, nil
}

// CreateAccount opens a consignment owner together with its liability account.
func (s *service) CreateAccount(ctx context.Context, grant access.Grant, input CreateAccountInput) (*models.TitipanAccount, error) {
	if err := grant.Require(access.CapMasterDataManage, input.GasStationID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	var account *models.TitipanAccount
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		coa, err := s.poster.FindOrCreateCOA(ctx, tx, input.GasStationID, ledger.TitipanPayable(name))
		if err != nil {
			return err
		}
		account = &models.TitipanAccount{
			GasStationID: input.GasStationID,
			Name:         name,
			COAID:        coa.ID,
			Lifecycle:    enums.LifecycleActive,
		}
		if err := s.repo.WithTx(tx).CreateAccount(ctx, account); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "titipan account already exists").
					WithDetails(map[string]any{"name": name})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create titipan account")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *service) ListAccounts(ctx context.Context, grant access.Grant, gasStationID uuid.UUID) ([]models.TitipanAccount, error) {
	if err := grant.Require(access.CapMasterDataView, gasStationID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListAccounts(ctx, gasStationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list titipan accounts")
	}
	return rows, nil
}

func (s *service) CreateFill(ctx context.Context, grant access.Grant, input CreateFillInput) (*models.TitipanFill, error) {
	if !input.Liters.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "liters must be positive")
	}
	filledAt := input.FilledAt
	if filledAt.IsZero() {
		filledAt = db.NowUTC()
	}

	var fill *models.TitipanFill
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		tank, err := s.inventory.LockTank(ctx, tx, input.TankID)
		if err != nil {
			return err
		}
		if err := grant.Require(access.CapTitipanCreate, tank.GasStationID); err != nil {
			return err
		}
		if tank.Lifecycle != enums.LifecycleActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "tank is retired")
		}
		repo := s.repo.WithTx(tx)
		account, err := repo.FindAccount(ctx, input.TitipanAccountID)
		if err != nil {
			return accountError(err)
		}
		if account.GasStationID != tank.GasStationID {
			return pkgerrors.New(pkgerrors.CodeValidation, "titipan account belongs to another gas station")
		}
		if account.Lifecycle != enums.LifecycleActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "titipan account is retired")
		}
		anchor, err := s.inventory.CurrentAnchor(ctx, tx, tank)
		if err != nil {
			return err
		}
		if err := anchor.EnsureAfter(filledAt, pkgerrors.CodeValidation, "filled_at"); err != nil {
			return err
		}
		if err := s.inventory.EnsureCapacity(ctx, tx, tank, input.Liters, filledAt); err != nil {
			return err
		}
		fill = &models.TitipanFill{
			GasStationID:     tank.GasStationID,
			TankID:           tank.ID,
			TitipanAccountID: account.ID,
			Liters:           input.Liters,
			FilledAt:         filledAt.UTC(),
			Status:           enums.ApprovalPending,
			CreatedBy:        grant.UserID(),
		}
		if err := repo.CreateFill(ctx, fill); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create titipan fill")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fill, nil
}

func accountError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "titipan account not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load titipan account")
}

func fillError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "titipan fill not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load titipan fill")
}

func (s *service) ApproveFill(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.TitipanFill, error) {
	return s.decide(ctx, grant, id, enums.ApprovalApproved, "")
}

func (s *service) RejectFill(ctx context.Context, grant access.Grant, id uuid.UUID, reason string) (*models.TitipanFill, error) {
	return s.decide(ctx, grant, id, enums.ApprovalRejected, reason)
}

func (s *service) decide(ctx context.Context, grant access.Grant, id uuid.UUID, target enums.ApprovalStatus, reason string) (*models.TitipanFill, error) {
	var result *models.TitipanFill
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		fill, err := repo.LockFill(ctx, id)
		if err != nil {
			return fillError(err)
		}
		if err := grant.Require(access.CapTitipanApprove, fill.GasStationID); err != nil {
			return err
		}
		decision, err := approval.Decide(approval.RecordTitipanFill, fill.ID, fill.Status, target, grant.UserID(), db.NowUTC())
		if err != nil {
			return err
		}
		updates := decision.Updates()

		if decision.Approved() {
			tank, err := s.inventory.LockTank(ctx, tx, fill.TankID)
			if err != nil {
				return err
			}
			anchor, err := s.inventory.CurrentAnchor(ctx, tx, tank)
			if err != nil {
				return err
			}
			if err := anchor.EnsureAfter(fill.FilledAt, pkgerrors.CodeStateConflict, "filled_at"); err != nil {
				return err
			}
			if err := s.inventory.EnsureCapacity(ctx, tx, tank, fill.Liters, fill.FilledAt); err != nil {
				return err
			}
			account, err := repo.FindAccount(ctx, fill.TitipanAccountID)
			if err != nil {
				return accountError(err)
			}
			posted, err := s.postFill(ctx, tx, grant, fill, tank, account)
			if err != nil {
				return err
			}
			if posted != nil {
				updates["transaction_id"] = posted.ID
				fill.TransactionID = &posted.ID
			}
		}

		if err := repo.UpdateFill(ctx, fill.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update titipan fill status")
		}
		event := outbox.DomainEvent{
			EventType:     decision.EventType(enums.EventTitipanFillApproved, enums.EventTitipanFillRejected),
			AggregateType: enums.AggregateTitipanFill,
			AggregateID:   fill.ID,
			GasStationID:  fill.GasStationID,
			Actor:         grant.ActorRef(),
			Data: payloads.ApprovalDecidedEvent{
				RecordID:      fill.ID,
				GasStationID:  fill.GasStationID,
				Status:        decision.Status,
				DecidedBy:     decision.DecidedBy,
				CreatedBy:     fill.CreatedBy,
				TransactionID: fill.TransactionID,
				Reason:        strings.TrimSpace(reason),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit titipan fill decision")
		}
		s.metrics.IncDecision(approval.RecordTitipanFill, string(decision.Status))

		result, err = repo.FindFill(ctx, fill.ID)
		if err != nil {
			return fillError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// postFill brings the consigned liters onto the inventory account at
// purchase price against the owner's liability.
func (s *service) postFill(ctx context.Context, tx *gorm.DB, grant access.Grant, fill *models.TitipanFill, tank *models.Tank, account *models.TitipanAccount) (*models.Transaction, error) {
	if tank.Product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tank product not loaded")
	}
	amount := fill.Liters.Mul(tank.Product.PurchasePrice).Round(2)
	if !amount.IsPositive() {
		return nil, nil
	}
	inventoryCOA, err := s.poster.FindOrCreateCOA(ctx, tx, tank.GasStationID, ledger.FuelInventory(tank.Product.Name))
	if err != nil {
		return nil, err
	}
	note := fmt.Sprintf("Titipan %s: %s L into %s", account.Name, fill.Liters.String(), tank.Name)
	return s.poster.Post(ctx, tx, ledger.PostInput{
		GasStationID:  tank.GasStationID,
		Date:          fill.FilledAt,
		Type:          enums.TransactionAdjustment,
		Origin:        enums.OriginAuto,
		Description:   note,
		ReferenceType: ReferenceTitipanFill,
		ReferenceID:   &fill.ID,
		CreatedBy:     grant.UserID(),
		Entries: []ledger.EntryInput{
			{COAID: inventoryCOA.ID, Debit: amount, Description: note},
			{COAID: account.COAID, Credit: amount, Description: note},
		},
	})
}

func (s *service) GetFill(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.TitipanFill, error) {
	fill, err := s.repo.FindFill(ctx, id)
	if err != nil {
		return nil, fillError(err)
	}
	if err := grant.Require(access.CapMasterDataView, fill.GasStationID); err != nil {
		return nil, err
	}
	return fill, nil
}

func (s *service) ListFills(ctx context.Context, grant access.Grant, input ListFillsInput) (*FillList, error) {
	if err := grant.Require(access.CapMasterDataView, input.GasStationID); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(input.Params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListFills(ctx, FillFilter{
		GasStationID:     input.GasStationID,
		TitipanAccountID: input.TitipanAccountID,
		Status:           input.Status,
		Cursor:           cursor,
		Limit:            input.Params.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list titipan fills")
	}
	items, next := pagination.Page(rows, input.Params.Limit, func(f models.TitipanFill) pagination.Cursor {
		return pagination.Cursor{CreatedAt: f.CreatedAt, ID: f.ID}
	})
	return &FillList{Items: items, NextCursor: next}, nil
}
