// Package unloads records fuel deliveries. A delivery only counts toward tank
// stock once approved; approval of a delivery linked to a purchase also books
// the invoiced liters that never arrived as shrinkage.
package unloads

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

// ReferenceUnload tags ledger postings derived from an unload.
const ReferenceUnload = "unload"

type Service interface {
	Create(ctx context.Context, grant access.Grant, input CreateInput) (*models.Unload, error)
	Approve(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.Unload, error)
	Reject(ctx context.Context, grant access.Grant, id uuid.UUID, reason string) (*models.Unload, error)
	Get(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.Unload, error)
	List(ctx context.Context, grant access.Grant, input ListInput) (*List, error)
}

// CreateInput is createUnload. InvoiceLiters is the quantity on the delivery
// note; the difference to Liters is booked as shrinkage on approval.
type CreateInput struct {
	TankID                uuid.UUID
	Liters                decimal.Decimal
	InvoiceLiters         *decimal.Decimal
	InvoiceRef            string
	PurchaseTransactionID *uuid.UUID
	UnloadedAt            time.Time
}

type ListInput struct {
	GasStationID uuid.UUID
	TankID       *uuid.UUID
	Status       *enums.ApprovalStatus
	Params       pagination.Params
}

type List struct {
	Items      []models.Unload `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
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
		return nil, fmt.Errorf("unloads repository required")
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

func (s *service) Create(ctx context.Context, grant access.Grant, input CreateInput) (*models.Unload, error) {
	if !input.Liters.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "liters must be positive")
	}
	if input.InvoiceLiters != nil && !input.InvoiceLiters.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice liters must be positive")
	}
	unloadedAt := input.UnloadedAt
	if unloadedAt.IsZero() {
		unloadedAt = db.NowUTC()
	}

	var created *models.Unload
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		tank, err := s.inventory.LockTank(ctx, tx, input.TankID)
		if err != nil {
			return err
		}
		if err := grant.Require(access.CapUnloadCreate, tank.GasStationID); err != nil {
			return err
		}
		if tank.Lifecycle != enums.LifecycleActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "tank is retired")
		}
		anchor, err := s.inventory.CurrentAnchor(ctx, tx, tank)
		if err != nil {
			return err
		}
		if err := anchor.EnsureAfter(unloadedAt, pkgerrors.CodeValidation, "unloaded_at"); err != nil {
			return err
		}
		if err := s.inventory.EnsureCapacity(ctx, tx, tank, input.Liters, unloadedAt); err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		invoiceLiters := input.InvoiceLiters
		if input.PurchaseTransactionID != nil {
			invoiceLiters, err = s.linkPurchase(ctx, repo, tank, *input.PurchaseTransactionID, invoiceLiters)
			if err != nil {
				return err
			}
		}

		created = &models.Unload{
			GasStationID:          tank.GasStationID,
			TankID:                tank.ID,
			Liters:                input.Liters,
			InvoiceLiters:         invoiceLiters,
			InvoiceRef:            strings.TrimSpace(input.InvoiceRef),
			PurchaseTransactionID: input.PurchaseTransactionID,
			UnloadedAt:            unloadedAt.UTC(),
			Status:                enums.ApprovalPending,
			CreatedBy:             grant.UserID(),
		}
		if err := repo.Create(ctx, created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create unload")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// linkPurchase requires a live purchase of the tank's product and returns the
// invoiced liters for the new unload. Live unloads linked to one purchase never
// invoice more than it bought; an unload without its own invoice figure takes
// what is left of the purchase.
func (s *service) linkPurchase(ctx context.Context, repo Repository, tank *models.Tank, id uuid.UUID, invoice *decimal.Decimal) (*decimal.Decimal, error) {
	purchase, err := repo.LockTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}
	if purchase.Type != enums.TransactionPurchase || purchase.GasStationID != tank.GasStationID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "linked transaction is not a purchase of this gas station")
	}
	if purchase.Status == enums.ApprovalRejected {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "linked purchase was rejected")
	}
	if purchase.ReferenceID != nil && *purchase.ReferenceID != tank.ProductID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase is for another product")
	}
	if purchase.Liters == nil {
		return invoice, nil
	}

	linked, err := repo.LiveForPurchase(ctx, purchase.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load unloads of purchase")
	}
	claimed := decimal.Zero
	for _, u := range linked {
		claimed = claimed.Add(invoiced(u))
	}
	remaining := purchase.Liters.Sub(claimed)
	if invoice == nil {
		invoice = &remaining
	}
	if !remaining.IsPositive() || invoice.GreaterThan(remaining) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("purchase has %s L left to invoice", decimal.Max(remaining, decimal.Zero).String())).
			WithDetails(map[string]any{
				"purchase_id":      purchase.ID,
				"purchase_liters":  *purchase.Liters,
				"invoiced_liters":  claimed,
				"remaining_liters": remaining,
				"requested":        *invoice,
			})
	}
	return invoice, nil
}

// invoiced is what an unload claims against its purchase.
func invoiced(u models.Unload) decimal.Decimal {
	if u.InvoiceLiters != nil {
		return *u.InvoiceLiters
	}
	return u.Liters
}

func (s *service) Approve(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.Unload, error) {
	return s.decide(ctx, grant, id, enums.ApprovalApproved, "")
}

func (s *service) Reject(ctx context.Context, grant access.Grant, id uuid.UUID, reason string) (*models.Unload, error) {
	return s.decide(ctx, grant, id, enums.ApprovalRejected, reason)
}

// decide re-reads the unload under lock so two approvers cannot both apply it.
// Approval re-checks capacity against the stock as it is now, and refuses a
// delivery a reading approved since has already covered.
func (s *service) decide(ctx context.Context, grant access.Grant, id uuid.UUID, target enums.ApprovalStatus, reason string) (*models.Unload, error) {
	var result *models.Unload
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		unload, err := repo.Lock(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "unload not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load unload")
		}
		if err := grant.Require(access.CapUnloadApprove, unload.GasStationID); err != nil {
			return err
		}
		decision, err := approval.Decide(approval.RecordUnload, unload.ID, unload.Status, target, grant.UserID(), db.NowUTC())
		if err != nil {
			return err
		}
		updates := decision.Updates()

		if decision.Approved() {
			tank, err := s.inventory.LockTank(ctx, tx, unload.TankID)
			if err != nil {
				return err
			}
			anchor, err := s.inventory.CurrentAnchor(ctx, tx, tank)
			if err != nil {
				return err
			}
			if err := anchor.EnsureAfter(unload.UnloadedAt, pkgerrors.CodeStateConflict, "unloaded_at"); err != nil {
				return err
			}
			if err := s.inventory.EnsureCapacity(ctx, tx, tank, unload.Liters, unload.UnloadedAt); err != nil {
				return err
			}
			posted, err := s.postShrinkage(ctx, tx, grant, unload, tank)
			if err != nil {
				return err
			}
			if posted != nil {
				updates["transaction_id"] = posted.ID
				unload.TransactionID = &posted.ID
			}
		}

		if err := repo.Update(ctx, unload.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update unload status")
		}
		event := outbox.DomainEvent{
			EventType:     decision.EventType(enums.EventUnloadApproved, enums.EventUnloadRejected),
			AggregateType: enums.AggregateUnload,
			AggregateID:   unload.ID,
			GasStationID:  unload.GasStationID,
			Actor:         grant.ActorRef(),
			Data: payloads.ApprovalDecidedEvent{
				RecordID:      unload.ID,
				GasStationID:  unload.GasStationID,
				Status:        decision.Status,
				DecidedBy:     decision.DecidedBy,
				CreatedBy:     unload.CreatedBy,
				TransactionID: unload.TransactionID,
				Reason:        strings.TrimSpace(reason),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit unload decision")
		}
		s.metrics.IncDecision(approval.RecordUnload, string(decision.Status))

		result, err = repo.Find(ctx, unload.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload unload")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithEntity(ctx, "unload", result.ID)
	s.logg.Info(s.logg.WithField(logCtx, "status", string(result.Status)), "unload decided")
	return result, nil
}

// postShrinkage books invoiced-but-missing liters at the product's purchase
// price. Nothing is posted when the delivery matched or exceeded the invoice.
func (s *service) postShrinkage(ctx context.Context, tx *gorm.DB, grant access.Grant, unload *models.Unload, tank *models.Tank) (*models.Transaction, error) {
	if unload.InvoiceLiters == nil || tank.Product == nil {
		return nil, nil
	}
	missing := unload.InvoiceLiters.Sub(unload.Liters)
	if !missing.IsPositive() {
		return nil, nil
	}
	amount := missing.Mul(tank.Product.PurchasePrice).Round(2)
	if !amount.IsPositive() {
		return nil, nil
	}
	shrinkage, err := s.poster.FindOrCreateCOA(ctx, tx, tank.GasStationID, ledger.UnloadShrinkage)
	if err != nil {
		return nil, err
	}
	inventoryCOA, err := s.poster.FindOrCreateCOA(ctx, tx, tank.GasStationID, ledger.FuelInventory(tank.Product.Name))
	if err != nil {
		return nil, err
	}
	note := fmt.Sprintf("%s L short on %s", missing.String(), tank.Name)
	return s.poster.Post(ctx, tx, ledger.PostInput{
		GasStationID:  tank.GasStationID,
		Date:          unload.UnloadedAt,
		Type:          enums.TransactionUnload,
		Origin:        enums.OriginAuto,
		Description:   "Unload shrinkage: " + note,
		ReferenceType: ReferenceUnload,
		ReferenceID:   &unload.ID,
		CreatedBy:     grant.UserID(),
		Entries: []ledger.EntryInput{
			{COAID: shrinkage.ID, Debit: amount, Description: note},
			{COAID: inventoryCOA.ID, Credit: amount, Description: note},
		},
	})
}

func (s *service) Get(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.Unload, error) {
	unload, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unload not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load unload")
	}
	if err := grant.Require(access.CapMasterDataView, unload.GasStationID); err != nil {
		return nil, err
	}
	return unload, nil
}

func (s *service) List(ctx context.Context, grant access.Grant, input ListInput) (*List, error) {
	if err := grant.Require(access.CapMasterDataView, input.GasStationID); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(input.Params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, ListFilter{
		GasStationID: input.GasStationID,
		TankID:       input.TankID,
		Status:       input.Status,
		Cursor:       cursor,
		Limit:        input.Params.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unloads")
	}
	items, next := pagination.Page(rows, input.Params.Limit, func(u models.Unload) pagination.Cursor {
		return pagination.Cursor{CreatedAt: u.CreatedAt, ID: u.ID}
	})
	return &List{Items: items, NextCursor: next}, nil
}
