// Package shifts runs the operator shift lifecycle on a dispensing island:
// check-in assigns the day's next slot, OPEN and CLOSE totalizers bracket the
// shift, and check-out completes it so its sales start to count against stock.
package shifts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/fuelstation-backend/internal/access"
	"github.com/angelmondragon/fuelstation-backend/internal/masterdata"
	"github.com/angelmondragon/fuelstation-backend/pkg/db"
	"github.com/angelmondragon/fuelstation-backend/pkg/db/models"
	"github.com/angelmondragon/fuelstation-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox"
	"github.com/angelmondragon/fuelstation-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fuelstation-backend/pkg/pagination"
)

type Service interface {
	CheckIn(ctx context.Context, grant access.Grant, input CheckInInput) (*models.OperatorShift, error)
	RecordReadings(ctx context.Context, grant access.Grant, shiftID uuid.UUID, readingType enums.ReadingType, inputs []ReadingInput) ([]models.NozzleReading, error)
	CheckOut(ctx context.Context, grant access.Grant, shiftID uuid.UUID, at time.Time) (*Shift, error)
	Delete(ctx context.Context, grant access.Grant, shiftID uuid.UUID) error
	EditClose(ctx context.Context, grant access.Grant, shiftID uuid.UUID, input EditCloseInput) (*models.NozzleReading, error)
	Get(ctx context.Context, grant access.Grant, id uuid.UUID) (*Shift, error)
	List(ctx context.Context, grant access.Grant, input ListInput) (*List, error)
}

// CheckInInput opens a shift on StationID. At defaults to now.
type CheckInInput struct {
	StationID uuid.UUID
	At        time.Time
}

// EditCloseInput corrects a CLOSE reading of a completed shift. A nil
// PumpTest keeps the recorded value.
type EditCloseInput struct {
	NozzleID  uuid.UUID
	Totalizer decimal.Decimal
	PumpTest  *decimal.Decimal
}

// Shift is a shift with its readings and the liters they account for.
type Shift struct {
	models.OperatorShift
	SoldLiters     decimal.Decimal `json:"sold_liters"`
	PumpTestLiters decimal.Decimal `json:"pump_test_liters"`
}

type ListInput struct {
	GasStationID uuid.UUID
	StationID    *uuid.UUID
	OperatorID   *uuid.UUID
	Status       *enums.ShiftStatus
	ShiftDate    string
	Params       pagination.Params
}

type List struct {
	Items      []models.OperatorShift `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
}

func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shifts repository required")
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
	return &service{repo: repo, tx: tx, outbox: emitter, logg: logg}, nil
}

// CheckIn assigns the next free slot of the operational day. The station row
// lock serialises competing check-ins; the unique indexes on active shifts and
// on (station, day, slot) reject whatever slips past it.
func (s *service) CheckIn(ctx context.Context, grant access.Grant, input CheckInInput) (*models.OperatorShift, error) {
	at := input.At
	if at.IsZero() {
		at = db.NowUTC()
	}
	operatorID := grant.UserID()

	var created *models.OperatorShift
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		station, err := repo.LockStation(ctx, input.StationID)
		if err != nil {
			return notFound(err, "station")
		}
		if err := grant.Require(access.CapShiftOperate, station.GasStationID); err != nil {
			return err
		}
		if station.Lifecycle != enums.LifecycleActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "station is retired")
		}
		if len(station.Nozzles) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "station has no active nozzles")
		}

		mine, err := repo.FindActiveByOperator(ctx, operatorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load operator shift")
		}
		if mine != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "operator already has an active shift").
				WithDetails(map[string]any{"shift_id": mine.ID, "station_id": mine.StationID})
		}
		occupied, err := repo.FindActiveByStation(ctx, station.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load station shift")
		}
		if occupied != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "station is occupied by another operator").
				WithDetails(map[string]any{"shift_id": occupied.ID, "operator_id": occupied.OperatorID})
		}

		gs, err := repo.FindGasStation(ctx, station.GasStationID)
		if err != nil {
			return notFound(err, "gas station")
		}
		hours, err := masterdata.Hours(gs)
		if err != nil {
			return err
		}
		shiftDate := hours.OperationalDate(at)
		count, err := repo.CountForDay(ctx, station.ID, shiftDate)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count shifts")
		}
		slot, ok := enums.SlotForCount(count)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "every shift of the day is taken").
				WithDetails(map[string]any{"station_id": station.ID, "shift_date": shiftDate})
		}

		created = &models.OperatorShift{
			GasStationID: station.GasStationID,
			StationID:    station.ID,
			OperatorID:   operatorID,
			ShiftDate:    shiftDate,
			Slot:         slot,
			Status:       enums.ShiftStarted,
			StartedAt:    at.UTC(),
		}
		if err := repo.Create(ctx, created); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "station was checked in concurrently")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shift")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"shift_id":   created.ID.String(),
		"station_id": created.StationID.String(),
		"slot":       string(created.Slot),
		"shift_date": created.ShiftDate,
	}), "shift started")
	return created, nil
}

// RecordReadings enters OPEN or CLOSE totalizers for nozzles of the shift's
// station. OPEN must continue the previous completed shift's CLOSE; CLOSE
// needs OPEN on every active nozzle first.
func (s *service) RecordReadings(ctx context.Context, grant access.Grant, shiftID uuid.UUID, readingType enums.ReadingType, inputs []ReadingInput) ([]models.NozzleReading, error) {
	if !readingType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reading type must be OPEN or CLOSE")
	}

	var created []models.NozzleReading
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		shift, err := s.lockOwned(ctx, repo, grant, shiftID)
		if err != nil {
			return err
		}
		if shift.Status != enums.ShiftStarted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "shift is already completed")
		}
		station, err := repo.LockStation(ctx, shift.StationID)
		if err != nil {
			return notFound(err, "station")
		}
		if err := checkBatch(readingType, inputs, station.Nozzles); err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid readings").
				WithDetails(map[string]any{"problems": problems(err)})
		}

		codes := make(map[uuid.UUID]string, len(station.Nozzles))
		for _, nozzle := range station.Nozzles {
			codes[nozzle.ID] = nozzle.Code
		}
		recorded := readingsByNozzle(shift.Readings, readingType)
		for _, input := range inputs {
			if _, ok := recorded[input.NozzleID]; ok {
				return pkgerrors.New(pkgerrors.CodeConflict,
					fmt.Sprintf("%s reading already recorded for nozzle %s", readingType, codes[input.NozzleID])).
					WithDetails(map[string]any{"nozzle_id": input.NozzleID, "type": readingType})
			}
		}

		switch readingType {
		case enums.ReadingOpen:
			err = s.checkOpenChain(ctx, repo, shift, inputs, codes)
		case enums.ReadingClose:
			err = checkCloseBatch(shift, inputs, station.Nozzles)
		}
		if err != nil {
			return err
		}

		created = make([]models.NozzleReading, 0, len(inputs))
		for _, input := range inputs {
			created = append(created, models.NozzleReading{
				ShiftID:   shift.ID,
				NozzleID:  input.NozzleID,
				Type:      readingType,
				Totalizer: input.Totalizer,
				PumpTest:  input.PumpTest,
				CreatedBy: grant.UserID(),
			})
		}
		if err := repo.CreateReadings(ctx, created); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "reading already recorded")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create readings")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// checkOpenChain requires each OPEN to equal the CLOSE the nozzle ended the
// previous completed shift with.
func (s *service) checkOpenChain(ctx context.Context, repo Repository, shift *models.OperatorShift, inputs []ReadingInput, codes map[uuid.UUID]string) error {
	for _, input := range inputs {
		previous, err := repo.PreviousClose(ctx, input.NozzleID, shift.StartedAt, shift.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load previous close")
		}
		if previous == nil || previous.Totalizer.Equal(input.Totalizer) {
			continue
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("nozzle %s closed the previous shift at %s; open %s does not continue it",
				codes[input.NozzleID], previous.Totalizer.String(), input.Totalizer.String())).
			WithDetails(map[string]any{
				"nozzle_id":         input.NozzleID,
				"previous_shift_id": previous.ShiftID,
				"previous_close":    previous.Totalizer,
				"attempted_open":    input.Totalizer,
				"delta":             input.Totalizer.Sub(previous.Totalizer),
			})
	}
	return nil
}

func checkCloseBatch(shift *models.OperatorShift, inputs []ReadingInput, nozzles []models.Nozzle) error {
	opens := readingsByNozzle(shift.Readings, enums.ReadingOpen)
	var missing []string
	codes := make(map[uuid.UUID]string, len(nozzles))
	for _, nozzle := range nozzles {
		codes[nozzle.ID] = nozzle.Code
		if _, ok := opens[nozzle.ID]; !ok {
			missing = append(missing, nozzle.Code)
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "open readings are missing").
			WithDetails(map[string]any{"missing_nozzles": missing})
	}
	var errs error
	for _, input := range inputs {
		errs = multierr.Append(errs, checkClose(codes[input.NozzleID], opens[input.NozzleID].Totalizer, input.Totalizer, input.PumpTest))
	}
	if errs != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid close readings").
			WithDetails(map[string]any{"problems": problems(errs)})
	}
	return nil
}

// CheckOut completes the shift once every active nozzle has a CLOSE reading.
func (s *service) CheckOut(ctx context.Context, grant access.Grant, shiftID uuid.UUID, at time.Time) (*Shift, error) {
	if at.IsZero() {
		at = db.NowUTC()
	}

	var result *Shift
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		shift, err := s.lockOwned(ctx, repo, grant, shiftID)
		if err != nil {
			return err
		}
		if shift.Status != enums.ShiftStarted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "shift is already completed")
		}
		if at.Before(shift.StartedAt) {
			return pkgerrors.New(pkgerrors.CodeValidation, "check-out cannot precede check-in")
		}
		station, err := repo.LockStation(ctx, shift.StationID)
		if err != nil {
			return notFound(err, "station")
		}
		closes := readingsByNozzle(shift.Readings, enums.ReadingClose)
		var missing []string
		for _, nozzle := range station.Nozzles {
			if _, ok := closes[nozzle.ID]; !ok {
				missing = append(missing, nozzle.Code)
			}
		}
		if len(missing) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "close readings are missing").
				WithDetails(map[string]any{"missing_nozzles": missing})
		}

		endedAt := at.UTC()
		if err := repo.Update(ctx, shift.ID, map[string]any{
			"status":   enums.ShiftCompleted,
			"ended_at": endedAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete shift")
		}
		shift.Status = enums.ShiftCompleted
		shift.EndedAt = &endedAt

		sales, pumpTest := sold(shift.ID, shift.Readings)
		event := outbox.DomainEvent{
			EventType:     enums.EventShiftCompleted,
			AggregateType: enums.AggregateShift,
			AggregateID:   shift.ID,
			GasStationID:  shift.GasStationID,
			Actor:         grant.ActorRef(),
			Data: payloads.ShiftCompletedEvent{
				ShiftID:      shift.ID,
				StationID:    shift.StationID,
				GasStationID: shift.GasStationID,
				OperatorID:   shift.OperatorID,
				Slot:         shift.Slot,
				ShiftDate:    shift.ShiftDate,
				EndedAt:      endedAt,
				SoldLiters:   sales,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit shift completed")
		}
		result = &Shift{OperatorShift: *shift, SoldLiters: sales, PumpTestLiters: pumpTest}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"shift_id":    result.ID.String(),
		"sold_liters": result.SoldLiters.String(),
	}), "shift completed")
	return result, nil
}

// Delete drops a shift its operator started by mistake. Once any reading
// exists the shift has to be completed instead.
func (s *service) Delete(ctx context.Context, grant access.Grant, shiftID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		shift, err := s.lockOwned(ctx, repo, grant, shiftID)
		if err != nil {
			return err
		}
		if shift.Status != enums.ShiftStarted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "completed shifts cannot be deleted")
		}
		if len(shift.Readings) > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "shift already has readings").
				WithDetails(map[string]any{"readings": len(shift.Readings)})
		}
		if err := repo.Delete(ctx, shift.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete shift")
		}
		return nil
	})
}

// EditClose corrects a CLOSE totalizer after check-out. The correction must
// keep the chain intact: when a later completed shift opened the same nozzle,
// the new CLOSE has to equal that OPEN.
func (s *service) EditClose(ctx context.Context, grant access.Grant, shiftID uuid.UUID, input EditCloseInput) (*models.NozzleReading, error) {
	if input.Totalizer.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "totalizer must not be negative")
	}
	if input.PumpTest != nil && input.PumpTest.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pump test must not be negative")
	}

	var (
		result   *models.NozzleReading
		previous decimal.Decimal
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		shift, err := repo.Lock(ctx, shiftID)
		if err != nil {
			return notFound(err, "shift")
		}
		if err := grant.Require(access.CapShiftEdit, shift.GasStationID); err != nil {
			return err
		}
		if shift.Status != enums.ShiftCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only completed shifts can be edited")
		}
		status, err := repo.DepositStatus(ctx, shift.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load deposit")
		}
		if status != nil && *status == enums.ApprovalApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "shift deposit is already approved")
		}

		closing, ok := readingsByNozzle(shift.Readings, enums.ReadingClose)[input.NozzleID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "close reading not found")
		}
		opening := readingsByNozzle(shift.Readings, enums.ReadingOpen)[input.NozzleID]
		pumpTest := closing.PumpTest
		if input.PumpTest != nil {
			pumpTest = *input.PumpTest
		}
		if err := checkClose(input.NozzleID.String(), opening.Totalizer, input.Totalizer, pumpTest); err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}

		next, err := repo.NextOpen(ctx, input.NozzleID, shift.StartedAt, shift.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load next open")
		}
		if next != nil && !next.Totalizer.Equal(input.Totalizer) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("next shift opened this nozzle at %s; close %s would break the chain",
					next.Totalizer.String(), input.Totalizer.String())).
				WithDetails(map[string]any{
					"nozzle_id":       input.NozzleID,
					"next_shift_id":   next.ShiftID,
					"next_open":       next.Totalizer,
					"attempted_close": input.Totalizer,
					"delta":           next.Totalizer.Sub(input.Totalizer),
				})
		}

		if err := repo.UpdateReading(ctx, closing.ID, map[string]any{
			"totalizer": input.Totalizer,
			"pump_test": pumpTest,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update close reading")
		}
		previous = closing.Totalizer
		closing.Totalizer = input.Totalizer
		closing.PumpTest = pumpTest
		result = &closing
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"shift_id":       shiftID.String(),
		"nozzle_id":      input.NozzleID.String(),
		"previous_close": previous.String(),
		"close":          result.Totalizer.String(),
		"edited_by":      grant.UserID().String(),
	}), "close reading edited")
	return result, nil
}

// lockOwned locks a shift that only its operator (or an admin) may drive.
func (s *service) lockOwned(ctx context.Context, repo Repository, grant access.Grant, shiftID uuid.UUID) (*models.OperatorShift, error) {
	shift, err := repo.Lock(ctx, shiftID)
	if err != nil {
		return nil, notFound(err, "shift")
	}
	if err := grant.Require(access.CapShiftOperate, shift.GasStationID); err != nil {
		return nil, err
	}
	if shift.OperatorID != grant.UserID() && grant.Actor.Role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shift belongs to another operator")
	}
	return shift, nil
}

func (s *service) Get(ctx context.Context, grant access.Grant, id uuid.UUID) (*Shift, error) {
	shift, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, notFound(err, "shift")
	}
	if err := grant.Require(access.CapMasterDataView, shift.GasStationID); err != nil {
		return nil, err
	}
	sales, pumpTest := sold(shift.ID, shift.Readings)
	return &Shift{OperatorShift: *shift, SoldLiters: sales, PumpTestLiters: pumpTest}, nil
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
		StationID:    input.StationID,
		OperatorID:   input.OperatorID,
		Status:       input.Status,
		ShiftDate:    input.ShiftDate,
		Cursor:       cursor,
		Limit:        input.Params.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shifts")
	}
	items, next := pagination.Page(rows, input.Params.Limit, func(s models.OperatorShift) pagination.Cursor {
		return pagination.Cursor{CreatedAt: s.CreatedAt, ID: s.ID}
	})
	return &List{Items: items, NextCursor: next}, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}
