// Package deposits settles the cash of completed shifts. Approving a deposit
// books the shift's fuel sales against the payment accounts that received the
// money and moves the cost of the sold liters out of inventory.
package deposits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/internal/access"
	"github.com/angelmondragon/fuelstation-backend/internal/approval"
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

// ReferenceDeposit tags ledger postings derived from a deposit.
const ReferenceDeposit = "deposit"

type Service interface {
	Create(ctx context.Context, grant access.Grant, input CreateInput) (*models.Deposit, error)
	Approve(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.Deposit, error)
	Reject(ctx context.Context, grant access.Grant, id uuid.UUID, reason string) (*models.Deposit, error)
	Get(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.Deposit, error)
	List(ctx context.Context, grant access.Grant, input ListInput) (*List, error)
}

// CreateInput declares a shift's cash. OperatorAmount is what the operator
// says was collected; the details are what the station actually received.
type CreateInput struct {
	ShiftID        uuid.UUID
	OperatorAmount decimal.Decimal
	Notes          string
	Details        []DetailInput
}

type DetailInput struct {
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	COAID         uuid.UUID           `json:"coa_id"`
	Amount        decimal.Decimal     `json:"amount"`
}

type ListInput struct {
	GasStationID uuid.UUID
	ShiftID      *uuid.UUID
	Status       *enums.ApprovalStatus
	Params       pagination.Params
}

type List struct {
	Items      []models.Deposit `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo    Repository
	tx      txRunner
	poster  ledger.Poster
	outbox  outbox.Emitter
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
}

func NewService(repo Repository, tx txRunner, poster ledger.Poster, emitter outbox.Emitter, logg *logger.Logger, m *metrics.LedgerMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("deposits repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
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
	return &service{repo: repo, tx: tx, poster: poster, outbox: emitter, logg: logg, metrics: m}, nil
}

func checkDetails(details []DetailInput) error {
	if len(details) == 0 {
		return fmt.Errorf("at least one payment line is required")
	}
	var errs error
	for i, detail := range details {
		if !detail.PaymentMethod.IsValid() {
			errs = multierr.Append(errs, fmt.Errorf("line %d: unknown payment method %q", i, detail.PaymentMethod))
		}
		if detail.COAID == uuid.Nil {
			errs = multierr.Append(errs, fmt.Errorf("line %d: coa id is required", i))
		}
		if !detail.Amount.IsPositive() {
			errs = multierr.Append(errs, fmt.Errorf("line %d: amount must be positive", i))
		}
	}
	return errs
}

func checkPaymentAccounts(details []DetailInput, gasStationID uuid.UUID, accounts []models.COA) error {
	byID := make(map[uuid.UUID]models.COA, len(accounts))
	for _, coa := range accounts {
		byID[coa.ID] = coa
	}
	var errs error
	for i, detail := range details {
		coa, ok := byID[detail.COAID]
		switch {
		case !ok:
			errs = multierr.Append(errs, fmt.Errorf("line %d: coa %s not found", i, detail.COAID))
		case coa.GasStationID != gasStationID:
			errs = multierr.Append(errs, fmt.Errorf("line %d: coa %s belongs to another gas station", i, detail.COAID))
		case coa.Category != enums.COAAsset:
			errs = multierr.Append(errs, fmt.Errorf("line %d: coa %q is not an asset account", i, coa.Name))
		case coa.Status != enums.LifecycleActive:
			errs = multierr.Append(errs, fmt.Errorf("line %d: coa %q is retired", i, coa.Name))
		}
	}
	return errs
}

func invalid(message string, err error) error {
	details := make([]string, 0)
	for _, e := range multierr.Errors(err) {
		details = append(details, e.Error())
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{"problems": details})
}

func (s *service) Create(ctx context.Context, grant access.Grant, input CreateInput) (*models.Deposit, error) {
	if input.OperatorAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "operator amount must not be negative")
	}
	if err := checkDetails(input.Details); err != nil {
		return nil, invalid("invalid payment lines", err)
	}

	var created *models.Deposit
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		shift, err := repo.LockShift(ctx, input.ShiftID)
		if err != nil {
			return notFound(err, "shift")
		}
		if err := grant.Require(access.CapDepositCreate, shift.GasStationID); err != nil {
			return err
		}
		if grant.Actor.Role == enums.RoleOperator && shift.OperatorID != grant.UserID() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "shift belongs to another operator")
		}
		if shift.Status != enums.ShiftCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "shift is not completed")
		}
		live, err := repo.FindLiveForShift(ctx, shift.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shift deposit")
		}
		if live != nil {
			return depositExists(shift.ID, live)
		}

		ids := make([]uuid.UUID, 0, len(input.Details))
		for _, detail := range input.Details {
			ids = append(ids, detail.COAID)
		}
		accounts, err := repo.FindCOAs(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment accounts")
		}
		if err := checkPaymentAccounts(input.Details, shift.GasStationID, accounts); err != nil {
			return invalid("invalid payment accounts", err)
		}

		adminAmount := decimal.Zero
		details := make([]models.DepositDetail, 0, len(input.Details))
		for _, detail := range input.Details {
			adminAmount = adminAmount.Add(detail.Amount)
			details = append(details, models.DepositDetail{
				PaymentMethod: detail.PaymentMethod,
				COAID:         detail.COAID,
				Amount:        detail.Amount.Round(2),
			})
		}
		created = &models.Deposit{
			GasStationID:   shift.GasStationID,
			ShiftID:        shift.ID,
			OperatorAmount: input.OperatorAmount.Round(2),
			AdminAmount:    adminAmount.Round(2),
			Notes:          strings.TrimSpace(input.Notes),
			Status:         enums.ApprovalPending,
			Details:        details,
			CreatedBy:      grant.UserID(),
		}
		if err := repo.Create(ctx, created); err != nil {
			if db.IsUniqueViolation(err, "") {
				return depositExists(shift.ID, nil)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create deposit")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// depositExists reports the live deposit blocking another one; a rejected
// deposit does not count.
func depositExists(shiftID uuid.UUID, live *models.Deposit) error {
	details := map[string]any{"shift_id": shiftID}
	if live != nil {
		details["existing_id"] = live.ID
		details["existing_status"] = live.Status
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "shift already has a deposit").WithDetails(details)
}

func (s *service) Approve(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.Deposit, error) {
	return s.decide(ctx, grant, id, enums.ApprovalApproved, "")
}

func (s *service) Reject(ctx context.Context, grant access.Grant, id uuid.UUID, reason string) (*models.Deposit, error) {
	return s.decide(ctx, grant, id, enums.ApprovalRejected, reason)
}

func (s *service) decide(ctx context.Context, grant access.Grant, id uuid.UUID, target enums.ApprovalStatus, reason string) (*models.Deposit, error) {
	var result *models.Deposit
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		deposit, err := repo.Lock(ctx, id)
		if err != nil {
			return notFound(err, "deposit")
		}
		if err := grant.Require(access.CapDepositApprove, deposit.GasStationID); err != nil {
			return err
		}
		decision, err := approval.Decide(approval.RecordDeposit, deposit.ID, deposit.Status, target, grant.UserID(), db.NowUTC())
		if err != nil {
			return err
		}
		updates := decision.Updates()

		if decision.Approved() {
			shift, err := repo.LockShift(ctx, deposit.ShiftID)
			if err != nil {
				return notFound(err, "shift")
			}
			rows, err := repo.ShiftSales(ctx, shift.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shift sales")
			}
			sales := salesByProduct(shift.ID, rows)

			revenue, err := s.postRevenue(ctx, tx, grant, deposit, shift, sales)
			if err != nil {
				return err
			}
			updates["revenue_transaction_id"] = revenue.ID
			deposit.RevenueTxID = &revenue.ID

			cogs, err := s.postCOGS(ctx, tx, grant, deposit, shift, sales)
			if err != nil {
				return err
			}
			if cogs != nil {
				updates["cogs_transaction_id"] = cogs.ID
				deposit.COGSTxID = &cogs.ID
			}
		}

		if err := repo.Update(ctx, deposit.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update deposit status")
		}
		event := outbox.DomainEvent{
			EventType:     decision.EventType(enums.EventDepositApproved, enums.EventDepositRejected),
			AggregateType: enums.AggregateDeposit,
			AggregateID:   deposit.ID,
			GasStationID:  deposit.GasStationID,
			Actor:         grant.ActorRef(),
			Data: payloads.ApprovalDecidedEvent{
				RecordID:      deposit.ID,
				GasStationID:  deposit.GasStationID,
				Status:        decision.Status,
				DecidedBy:     decision.DecidedBy,
				CreatedBy:     deposit.CreatedBy,
				TransactionID: deposit.RevenueTxID,
				Reason:        strings.TrimSpace(reason),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit deposit decision")
		}
		s.metrics.IncDecision(approval.RecordDeposit, string(decision.Status))

		result, err = repo.Find(ctx, deposit.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload deposit")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithEntity(s.logg.WithEntity(ctx, "deposit", result.ID), "shift", result.ShiftID)
	s.logg.Info(s.logg.WithField(logCtx, "status", string(result.Status)), "deposit decided")
	return result, nil
}

// postRevenue debits what each payment account received, credits each
// product's fuel sales, and books the gap as cash shortage or overage.
func (s *service) postRevenue(ctx context.Context, tx *gorm.DB, grant access.Grant, deposit *models.Deposit, shift *models.OperatorShift, sales []ProductSales) (*models.Transaction, error) {
	note := fmt.Sprintf("Shift %s %s", shift.ShiftDate, shift.Slot)
	var entries []ledger.EntryInput

	order, amounts := received(deposit.Details)
	for _, coaID := range order {
		entries = append(entries, ledger.EntryInput{COAID: coaID, Debit: amounts[coaID], Description: note})
	}
	for _, product := range sales {
		amount := product.Revenue()
		if !amount.IsPositive() {
			continue
		}
		coa, err := s.poster.FindOrCreateCOA(ctx, tx, deposit.GasStationID, ledger.FuelSales(product.Name))
		if err != nil {
			return nil, err
		}
		entries = append(entries, ledger.EntryInput{
			COAID:       coa.ID,
			Credit:      amount,
			Description: fmt.Sprintf("%s L %s", product.Liters.String(), product.Name),
		})
	}

	gap := deposit.AdminAmount.Sub(expectedRevenue(sales))
	switch {
	case gap.IsNegative():
		coa, err := s.poster.FindOrCreateCOA(ctx, tx, deposit.GasStationID, ledger.CashShortage)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ledger.EntryInput{COAID: coa.ID, Debit: gap.Neg(), Description: note})
	case gap.IsPositive():
		coa, err := s.poster.FindOrCreateCOA(ctx, tx, deposit.GasStationID, ledger.CashOverage)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ledger.EntryInput{COAID: coa.ID, Credit: gap, Description: note})
	}

	return s.poster.Post(ctx, tx, ledger.PostInput{
		GasStationID:  deposit.GasStationID,
		Date:          endedAt(shift),
		Type:          enums.TransactionRevenue,
		Origin:        enums.OriginAuto,
		Description:   "Deposit revenue: " + note,
		ReferenceType: ReferenceDeposit,
		ReferenceID:   &deposit.ID,
		CreatedBy:     grant.UserID(),
		Entries:       entries,
	})
}

// postCOGS moves the sold and pump-tested liters out of inventory at cost.
// Nothing is posted for a shift that dispensed nothing.
func (s *service) postCOGS(ctx context.Context, tx *gorm.DB, grant access.Grant, deposit *models.Deposit, shift *models.OperatorShift, sales []ProductSales) (*models.Transaction, error) {
	var entries []ledger.EntryInput
	for _, product := range sales {
		cost, pumpTest := product.Cost(), product.PumpTestCost()
		total := cost.Add(pumpTest)
		if !total.IsPositive() {
			continue
		}
		if cost.IsPositive() {
			coa, err := s.poster.FindOrCreateCOA(ctx, tx, deposit.GasStationID, ledger.CostOfSales(product.Name))
			if err != nil {
				return nil, err
			}
			entries = append(entries, ledger.EntryInput{COAID: coa.ID, Debit: cost, Description: product.Liters.String() + " L sold"})
		}
		if pumpTest.IsPositive() {
			coa, err := s.poster.FindOrCreateCOA(ctx, tx, deposit.GasStationID, ledger.PumpTestExpense)
			if err != nil {
				return nil, err
			}
			entries = append(entries, ledger.EntryInput{COAID: coa.ID, Debit: pumpTest, Description: product.PumpTest.String() + " L pump test"})
		}
		inventoryCOA, err := s.poster.FindOrCreateCOA(ctx, tx, deposit.GasStationID, ledger.FuelInventory(product.Name))
		if err != nil {
			return nil, err
		}
		entries = append(entries, ledger.EntryInput{COAID: inventoryCOA.ID, Credit: total, Description: product.Name})
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return s.poster.Post(ctx, tx, ledger.PostInput{
		GasStationID:  deposit.GasStationID,
		Date:          endedAt(shift),
		Type:          enums.TransactionCOGS,
		Origin:        enums.OriginAuto,
		Description:   fmt.Sprintf("Cost of sales: shift %s %s", shift.ShiftDate, shift.Slot),
		ReferenceType: ReferenceDeposit,
		ReferenceID:   &deposit.ID,
		CreatedBy:     grant.UserID(),
		Entries:       entries,
	})
}

func endedAt(shift *models.OperatorShift) time.Time {
	if shift.EndedAt != nil {
		return *shift.EndedAt
	}
	return shift.StartedAt
}

func (s *service) Get(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.Deposit, error) {
	deposit, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, notFound(err, "deposit")
	}
	if err := grant.Require(access.CapMasterDataView, deposit.GasStationID); err != nil {
		return nil, err
	}
	return deposit, nil
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
		ShiftID:      input.ShiftID,
		Status:       input.Status,
		Cursor:       cursor,
		Limit:        input.Params.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list deposits")
	}
	items, next := pagination.Page(rows, input.Params.Limit, func(d models.Deposit) pagination.Cursor {
		return pagination.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
	})
	return &List{Items: items, NextCursor: next}, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}
