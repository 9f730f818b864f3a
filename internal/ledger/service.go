// Package ledger is the chart of accounts and double-entry journal. Every
// posting is validated before it is written; balances are recomputed from the
// APPROVED entry set on every read.
package ledger

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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Poster is the narrow surface orchestrators use inside their own transaction.
type Poster interface {
	Post(ctx context.Context, tx *gorm.DB, input PostInput) (*models.Transaction, error)
	FindOrCreateCOA(ctx context.Context, tx *gorm.DB, gasStationID uuid.UUID, account SystemAccount) (*models.COA, error)
}

// Service exposes the ledger and chart of accounts.
type Service interface {
	Poster
	Update(ctx context.Context, grant access.Grant, id uuid.UUID, input UpdateInput) (*models.Transaction, error)
	Approve(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.Transaction, error)
	Reject(ctx context.Context, grant access.Grant, id uuid.UUID, reason string) (*models.Transaction, error)
	Get(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.Transaction, error)
	List(ctx context.Context, grant access.Grant, input ListInput) (*TransactionList, error)
	Balance(ctx context.Context, grant access.Grant, coaID uuid.UUID) (*AccountBalance, error)
	RealtimeProfitLoss(ctx context.Context, grant access.Grant, gasStationID uuid.UUID) (*ProfitLoss, error)
	CreateCOA(ctx context.Context, grant access.Grant, input CreateCOAInput) (*models.COA, error)
	RetireCOA(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.COA, error)
	ListCOA(ctx context.Context, grant access.Grant, gasStationID uuid.UUID, includeRetired bool) ([]models.COA, error)
}

// PostInput is a transaction header plus its complete entry set.
type PostInput struct {
	GasStationID  uuid.UUID
	Date          time.Time
	Type          enums.TransactionType
	Origin        enums.TransactionOrigin
	Description   string
	ReferenceType string
	ReferenceID   *uuid.UUID
	Liters        *decimal.Decimal
	CreatedBy     uuid.UUID
	Entries       []EntryInput
}

// UpdateInput carries updateTransaction: replacement entries, a decision, or both.
type UpdateInput struct {
	Status  *enums.ApprovalStatus
	Entries []EntryInput
	Reason  string
}

// ListInput narrows listTransactions.
type ListInput struct {
	GasStationID uuid.UUID
	Type         *enums.TransactionType
	Status       *enums.ApprovalStatus
	From         *time.Time
	To           *time.Time
	Params       pagination.Params
}

// TransactionList is one page of transactions.
type TransactionList struct {
	Items      []models.Transaction `json:"items"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// AccountBalance is an account's balance under its category's sign convention.
type AccountBalance struct {
	COAID    uuid.UUID         `json:"coa_id"`
	Name     string            `json:"name"`
	Category enums.COACategory `json:"category"`
	Debit    decimal.Decimal   `json:"debit"`
	Credit   decimal.Decimal   `json:"credit"`
	Balance  decimal.Decimal   `json:"balance"`
}

// ProfitLoss is the rolling income statement of a gas station.
type ProfitLoss struct {
	GasStationID     uuid.UUID       `json:"gas_station_id"`
	Revenue          decimal.Decimal `json:"revenue"`
	Expense          decimal.Decimal `json:"expense"`
	COGS             decimal.Decimal `json:"cogs"`
	ClosingTransfers decimal.Decimal `json:"closing_transfers"`
	Balance          decimal.Decimal `json:"balance"`
}

// CreateCOAInput creates a user-managed account.
type CreateCOAInput struct {
	GasStationID uuid.UUID
	Name         string
	Category     enums.COACategory
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outbox.Emitter
	logg      *logger.Logger
	metrics   *metrics.LedgerMetrics
	tolerance decimal.Decimal
}

// NewService wires the ledger. A nil metrics recorder disables metrics.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, logg *logger.Logger, m *metrics.LedgerMetrics, tolerance decimal.Decimal) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if tolerance.IsNegative() {
		return nil, fmt.Errorf("balance tolerance must not be negative")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    emitter,
		logg:      logg,
		metrics:   m,
		tolerance: tolerance,
	}, nil
}

// Post validates and writes a transaction with tx. MANUAL postings are born
// PENDING; AUTO postings are born APPROVED and any problem with them is an
// integrity failure.
func (s *service) Post(ctx context.Context, tx *gorm.DB, input PostInput) (*models.Transaction, error) {
	if tx == nil {
		var posted *models.Transaction
		err := s.tx.WithTx(ctx, func(inner *gorm.DB) error {
			var err error
			posted, err = s.Post(ctx, inner, input)
			return err
		})
		return posted, err
	}

	if input.GasStationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gas station id required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type")
	}
	if !input.Origin.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction origin")
	}
	if input.CreatedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	entries := roundEntries(input.Entries)
	repo := s.repo.WithTx(tx)
	if err := s.validate(ctx, repo, input.GasStationID, input.Type, input.Origin, entries); err != nil {
		return nil, err
	}

	now := db.NowUTC()
	date := input.Date
	if date.IsZero() {
		date = now
	}
	txn := &models.Transaction{
		GasStationID: input.GasStationID,
		Date:         date.UTC(),
		Type:         input.Type,
		Status:       enums.ApprovalPending,
		Origin:       input.Origin,
		Description:  strings.TrimSpace(input.Description),
		ReferenceID:  input.ReferenceID,
		Liters:       input.Liters,
		CreatedBy:    input.CreatedBy,
		Entries:      toModels(entries),
	}
	if input.ReferenceType != "" {
		refType := input.ReferenceType
		txn.ReferenceType = &refType
	}
	if input.Origin == enums.OriginAuto {
		txn.Status = enums.ApprovalApproved
		txn.ApprovedBy = &input.CreatedBy
		txn.ApprovedAt = &now
	}

	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
	}
	s.metrics.IncPosting(string(txn.Type), string(txn.Origin))
	return txn, nil
}

func (s *service) validate(ctx context.Context, repo Repository, gasStationID uuid.UUID, txType enums.TransactionType, origin enums.TransactionOrigin, entries []EntryInput) error {
	_, shapeErr := CheckEntries(entries, s.tolerance)
	accounts, err := repo.FindCOAs(ctx, entryIDs(entries))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load accounts")
	}
	combined := multierr.Combine(shapeErr, checkAccounts(entries, gasStationID, accounts))
	if combined == nil {
		return nil
	}

	details := map[string]any{"problems": problems(combined)}
	if origin != enums.OriginAuto {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid journal entries").WithDetails(details)
	}

	s.metrics.IncIntegrityFailure()
	integrityErr := pkgerrors.Wrap(pkgerrors.CodeIntegrity, combined, "system posting failed ledger validation").
		WithDetails(details)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"gas_station_id":   gasStationID.String(),
		"transaction_type": string(txType),
		"problems":         details["problems"],
	})
	s.logg.Error(logCtx, "ledger integrity violated", integrityErr)
	return integrityErr
}

func (s *service) FindOrCreateCOA(ctx context.Context, tx *gorm.DB, gasStationID uuid.UUID, account SystemAccount) (*models.COA, error) {
	if gasStationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gas station id required")
	}
	if strings.TrimSpace(account.Name) == "" || !account.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account name and category required")
	}
	repo := s.repo.WithTx(tx)

	coa, err := repo.FindCOAByName(ctx, gasStationID, account.Name)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	if coa == nil {
		candidate := &models.COA{
			GasStationID: gasStationID,
			Name:         account.Name,
			Category:     account.Category,
			Status:       enums.LifecycleActive,
			System:       true,
		}
		if err := repo.CreateCOAIfAbsent(ctx, candidate); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
		}
		if coa, err = repo.FindCOAByName(ctx, gasStationID, account.Name); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload account")
		}
	}
	if coa.Category != account.Category {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "account exists with a different category").
			WithDetails(map[string]any{"name": coa.Name, "category": coa.Category, "expected": account.Category})
	}
	return coa, nil
}

func (s *service) Approve(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.Transaction, error) {
	status := enums.ApprovalApproved
	return s.Update(ctx, grant, id, UpdateInput{Status: &status})
}

func (s *service) Reject(ctx context.Context, grant access.Grant, id uuid.UUID, reason string) (*models.Transaction, error) {
	status := enums.ApprovalRejected
	return s.Update(ctx, grant, id, UpdateInput{Status: &status, Reason: reason})
}

// Update replaces the entries of a PENDING manual transaction and/or decides
// it. Approval re-validates the stored entries under the row lock and never
// synthesizes missing ones.
func (s *service) Update(ctx context.Context, grant access.Grant, id uuid.UUID, input UpdateInput) (*models.Transaction, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if input.Status == nil && input.Entries == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "approval status or journal entries required")
	}

	var result *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.LockTransaction(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
		}

		if input.Entries != nil {
			if err := grant.Require(access.CapTransactionCreate, txn.GasStationID); err != nil {
				return err
			}
			if txn.Status != enums.ApprovalPending || txn.Origin != enums.OriginManual {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending manual transactions can be edited").
					WithDetails(map[string]any{"record": approval.RecordTransaction, "id": txn.ID, "current": txn.Status, "origin": txn.Origin})
			}
			entries := roundEntries(input.Entries)
			if err := s.validate(ctx, repo, txn.GasStationID, txn.Type, txn.Origin, entries); err != nil {
				return err
			}
			rows := toModels(entries)
			if err := repo.ReplaceEntries(ctx, txn.ID, rows); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace journal entries")
			}
			txn.Entries = rows
		}

		if input.Status != nil {
			if err := grant.Require(access.CapTransactionApprove, txn.GasStationID); err != nil {
				return err
			}
			decision, err := approval.Decide(approval.RecordTransaction, txn.ID, txn.Status, *input.Status, grant.UserID(), db.NowUTC())
			if err != nil {
				return err
			}
			if decision.Approved() {
				if err := s.validate(ctx, repo, txn.GasStationID, txn.Type, txn.Origin, fromModels(txn.Entries)); err != nil {
					return err
				}
			}
			if err := repo.UpdateTransaction(ctx, txn.ID, decision.Updates()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update transaction status")
			}
			event := outbox.DomainEvent{
				EventType:     decision.EventType(enums.EventTransactionApproved, enums.EventTransactionRejected),
				AggregateType: enums.AggregateTransaction,
				AggregateID:   txn.ID,
				GasStationID:  txn.GasStationID,
				Actor:         grant.ActorRef(),
				Data: payloads.ApprovalDecidedEvent{
					RecordID:     txn.ID,
					GasStationID: txn.GasStationID,
					Status:       decision.Status,
					DecidedBy:    decision.DecidedBy,
					CreatedBy:    txn.CreatedBy,
					Reason:       strings.TrimSpace(input.Reason),
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit transaction decision")
			}
			s.metrics.IncDecision(approval.RecordTransaction, string(decision.Status))
		}

		result, err = repo.FindTransaction(ctx, txn.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload transaction")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.repo.FindTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	if err := grant.Require(access.CapReportView, txn.GasStationID); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) List(ctx context.Context, grant access.Grant, input ListInput) (*TransactionList, error) {
	if input.GasStationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gas station id required")
	}
	if err := grant.Require(access.CapReportView, input.GasStationID); err != nil {
		return nil, err
	}
	filter := ListFilter{
		GasStationID: input.GasStationID,
		Type:         input.Type,
		Status:       input.Status,
		From:         input.From,
		To:           input.To,
		Limit:        input.Params.Limit,
	}
	if input.Params.Cursor != "" {
		cursor, err := pagination.ParseCursor(input.Params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		filter.Cursor = cursor
	}
	rows, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	items, next := pagination.Page(rows, input.Params.Limit, func(t models.Transaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	return &TransactionList{Items: items, NextCursor: next}, nil
}

func (s *service) Balance(ctx context.Context, grant access.Grant, coaID uuid.UUID) (*AccountBalance, error) {
	coa, err := s.repo.FindCOA(ctx, coaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	if err := grant.Require(access.CapReportView, coa.GasStationID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ApprovedEntriesForCOA(ctx, coa.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load journal entries")
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, row := range rows {
		debit = debit.Add(row.Debit)
		credit = credit.Add(row.Credit)
	}
	return &AccountBalance{
		COAID:    coa.ID,
		Name:     coa.Name,
		Category: coa.Category,
		Debit:    debit,
		Credit:   credit,
		Balance:  SignedBalance(coa.Category, debit, credit),
	}, nil
}

// SignedBalance applies the category's convention to debit and credit totals.
func SignedBalance(category enums.COACategory, debit, credit decimal.Decimal) decimal.Decimal {
	if category.DebitNormal() {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// RealtimeProfitLoss is revenue - expense - COGS over APPROVED entries, plus
// the credit-normal balance of the Realtime Profit/Loss account so transfers
// already closed out of it are netted.
func (s *service) RealtimeProfitLoss(ctx context.Context, grant access.Grant, gasStationID uuid.UUID) (*ProfitLoss, error) {
	if gasStationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gas station id required")
	}
	if err := grant.Require(access.CapReportView, gasStationID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ApprovedEntriesByCategory(ctx, gasStationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load journal entries")
	}

	pl := &ProfitLoss{
		GasStationID:     gasStationID,
		Revenue:          decimal.Zero,
		Expense:          decimal.Zero,
		COGS:             decimal.Zero,
		ClosingTransfers: decimal.Zero,
	}
	for _, row := range rows {
		signed := SignedBalance(row.Category, row.Debit, row.Credit)
		switch {
		case row.Category == enums.COARevenue:
			pl.Revenue = pl.Revenue.Add(signed)
		case row.Category == enums.COAExpense:
			pl.Expense = pl.Expense.Add(signed)
		case row.Category == enums.COACOGS:
			pl.COGS = pl.COGS.Add(signed)
		case row.Name == RealtimeProfitLossName && row.Category == enums.COAEquity:
			pl.ClosingTransfers = pl.ClosingTransfers.Add(signed)
		}
	}
	pl.Balance = pl.Revenue.Sub(pl.Expense).Sub(pl.COGS).Add(pl.ClosingTransfers)
	return pl, nil
}

func (s *service) CreateCOA(ctx context.Context, grant access.Grant, input CreateCOAInput) (*models.COA, error) {
	name := strings.TrimSpace(input.Name)
	if input.GasStationID == uuid.Nil || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gas station id and name required")
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coa category")
	}
	if err := grant.Require(access.CapCOAManage, input.GasStationID); err != nil {
		return nil, err
	}
	coa := &models.COA{
		GasStationID: input.GasStationID,
		Name:         name,
		Category:     input.Category,
		Status:       enums.LifecycleActive,
	}
	if err := s.repo.CreateCOA(ctx, coa); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "account name already exists").
				WithDetails(map[string]any{"name": name})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
	}
	return coa, nil
}

// RetireCOA flips the lifecycle tag. Retired accounts keep their history and
// reject new postings. System accounts cannot be retired.
func (s *service) RetireCOA(ctx context.Context, grant access.Grant, id uuid.UUID) (*models.COA, error) {
	var coa *models.COA
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		coa, err = repo.FindCOA(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
		}
		if err := grant.Require(access.CapCOAManage, coa.GasStationID); err != nil {
			return err
		}
		if coa.System {
			return pkgerrors.New(pkgerrors.CodeConflict, "system accounts cannot be retired").
				WithDetails(map[string]any{"name": coa.Name})
		}
		if coa.Status == enums.LifecycleRetired {
			return nil
		}
		if err := repo.UpdateCOAStatus(ctx, coa.ID, enums.LifecycleRetired); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire account")
		}
		coa.Status = enums.LifecycleRetired
		return nil
	})
	if err != nil {
		return nil, err
	}
	return coa, nil
}

func (s *service) ListCOA(ctx context.Context, grant access.Grant, gasStationID uuid.UUID, includeRetired bool) ([]models.COA, error) {
	if err := grant.Require(access.CapReportView, gasStationID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListCOA(ctx, gasStationID, includeRetired)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list accounts")
	}
	return rows, nil
}
