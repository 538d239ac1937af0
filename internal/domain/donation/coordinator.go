package donation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bloodbank/bloodbank/internal/domain/audit"
	"github.com/bloodbank/bloodbank/internal/domain/inventory"
	"github.com/bloodbank/bloodbank/internal/domain/registry"
	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/lock"
	"github.com/bloodbank/bloodbank/internal/platform/metrics"
)

// Operation names used in logs and metrics.
const (
	OpCreate  = "create_donation"
	OpDelete  = "delete_donation"
	OpRestock = "restock"
)

// Transactor runs fn inside a single storage transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Coordinator is the only writer of inventory quantities. Every change it
// makes runs in one transaction that locks the unit, applies the delta,
// records the donation and appends exactly one audit record as its last
// statement.
type Coordinator struct {
	tx       Transactor
	units    inventory.Repository
	events   Repository
	donors   registry.DonorRepository
	patients registry.PatientRepository
	audit    audit.Log

	gate    lock.Gate
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewCoordinator(tx Transactor, units inventory.Repository, events Repository,
	donors registry.DonorRepository, patients registry.PatientRepository, log audit.Log) *Coordinator {
	return &Coordinator{
		tx:       tx,
		units:    units,
		events:   events,
		donors:   donors,
		patients: patients,
		audit:    log,
		gate:     lock.NoopGate{},
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
}

func (c *Coordinator) SetLogger(l zerolog.Logger) { c.logger = l }

func (c *Coordinator) SetGate(g lock.Gate) { c.gate = g }

func (c *Coordinator) SetMetrics(m *metrics.Metrics) { c.metrics = m }

// attempt tracks one operation through its states.
type attempt struct {
	op    string
	state State
	start time.Time
	log   zerolog.Logger
}

func (c *Coordinator) begin(op string) *attempt {
	return &attempt{op: op, state: StateReceived, start: c.now(), log: c.logger.With().Str("op", op).Logger()}
}

// finish moves the attempt to a terminal state, records the outcome and
// returns err as a typed error.
func (c *Coordinator) finish(a *attempt, err error) error {
	code := "OK"
	if err != nil {
		if apperr.CodeOf(err) == "" {
			err = apperr.Wrap(apperr.CodeStorageUnavailable, err, "")
		}
		code = string(apperr.CodeOf(err))
		reached := a.state
		a.state = StateRejected
		if apperr.IsInfrastructure(err) {
			a.log.Error().Err(err).Str("code", code).Str("reached", string(reached)).Msg("transaction failed")
		} else {
			a.log.Warn().Err(err).Str("code", code).Str("reached", string(reached)).Msg("rejected")
		}
		if apperr.CodeOf(err) == apperr.CodeTransactionTimeout && reached == StateReceived {
			c.metrics.IncGateTimeout()
		}
	} else {
		a.state = StateCommitted
	}
	c.metrics.ObserveOutcome(a.op, code, a.start)
	return err
}

// maxDateSkew tolerates client clocks running slightly ahead.
const maxDateSkew = time.Minute

func checkQuantity(q int) error {
	if q <= 0 {
		return apperr.New(apperr.CodeInvalidQuantity, "quantity must be positive, got %d", q)
	}
	if q > inventory.MaxQuantity {
		return apperr.New(apperr.CodeInvalidQuantity, "quantity must be at most %d, got %d", inventory.MaxQuantity, q)
	}
	return nil
}

// CreateDonation validates req against current stock and, if admitted,
// decrements the target unit, records the event and audits the change, all in
// one transaction. A rejected request changes nothing.
func (c *Coordinator) CreateDonation(ctx context.Context, req Request) (*Event, error) {
	a := c.begin(OpCreate)
	if err := checkQuantity(req.Quantity); err != nil {
		return nil, c.finish(a, err)
	}
	if req.Target.IsZero() {
		return nil, c.finish(a, apperr.New(apperr.CodeAmbiguousTarget, "one of blood_unit_id or organ_unit_id is required"))
	}
	if req.Date.After(c.now().Add(maxDateSkew)) {
		return nil, c.finish(a, apperr.InvalidArgument("donation date %s is in the future", req.Date.Format(time.RFC3339)))
	}
	unitID := req.Target.UnitID()

	release, err := c.gate.Acquire(ctx, lock.UnitKey(unitID))
	defer release()
	if err != nil {
		return nil, c.finish(a, err)
	}

	var (
		ev      *Event
		updated *inventory.Unit
	)
	err = c.tx.WithinTx(ctx, func(ctx context.Context) error {
		a.state = StateValidating
		unit, err := c.units.LockForUpdate(ctx, unitID)
		if err != nil {
			return err
		}
		if unit.Kind != req.Target.Kind() {
			return apperr.InvalidArgument("unit %s is a %s unit, not %s", unit.ID, unit.Kind, req.Target.Kind())
		}
		if err := c.checkParties(ctx, req.DonorID, req.PatientID); err != nil {
			return err
		}
		if req.Quantity > unit.Quantity {
			return apperr.InsufficientStock(unit.Quantity, req.Quantity)
		}

		a.state = StateAdmitted
		if updated, err = c.units.AdjustQuantity(ctx, unit.ID, -req.Quantity); err != nil {
			return err
		}
		date := req.Date
		if date.IsZero() {
			date = c.now()
		}
		ev = &Event{
			Date:      date,
			Quantity:  req.Quantity,
			DonorID:   req.DonorID,
			PatientID: req.PatientID,
			Target:    req.Target,
			BankID:    unit.BankID,
			Notes:     req.Notes,
		}
		if err := c.events.Create(ctx, ev); err != nil {
			return err
		}
		return c.audit.Append(ctx, &audit.Record{
			AffectedTable: audit.TableDonationEvent,
			Action:        audit.ActionInsert,
			UnitID:        &unit.ID,
			DonationID:    &ev.ID,
			Details: fmt.Sprintf("donation of %d %s %s: quantity %d -> %d",
				req.Quantity, unit.Kind, unit.Subtype, unit.Quantity, updated.Quantity),
		})
	})
	if err != nil {
		return nil, c.finish(a, err)
	}

	c.finish(a, nil)
	c.metrics.AddUnitsMoved(OpCreate, string(req.Target.Kind()), req.Quantity)
	a.log.Info().
		Str("unit_id", unitID.String()).
		Str("donation_id", ev.ID.String()).
		Int("quantity", req.Quantity).
		Int("remaining", updated.Quantity).
		Msg("donation committed")
	return ev, nil
}

// checkParties holds the donor and patient so neither can be deleted before
// the event that names them commits.
func (c *Coordinator) checkParties(ctx context.Context, donorID, patientID *uuid.UUID) error {
	if donorID != nil {
		if _, err := c.donors.LockForShare(ctx, *donorID); err != nil {
			return err
		}
	}
	if patientID != nil {
		if _, err := c.patients.LockForShare(ctx, *patientID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteDonation cancels a donation: the event is removed, its quantity is
// returned to the unit and a compensating audit record is appended.
func (c *Coordinator) DeleteDonation(ctx context.Context, id uuid.UUID) error {
	a := c.begin(OpDelete)
	ev, err := c.events.GetByID(ctx, id)
	if err != nil {
		return c.finish(a, err)
	}
	unitID := ev.Target.UnitID()

	release, err := c.gate.Acquire(ctx, lock.UnitKey(unitID))
	defer release()
	if err != nil {
		return c.finish(a, err)
	}

	var updated *inventory.Unit
	err = c.tx.WithinTx(ctx, func(ctx context.Context) error {
		a.state = StateValidating
		// Re-read under lock; a concurrent cancellation may have won.
		ev, err = c.events.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		unit, err := c.units.LockForUpdate(ctx, unitID)
		if err != nil {
			return err
		}

		a.state = StateAdmitted
		if updated, err = c.units.AdjustQuantity(ctx, unit.ID, ev.Quantity); err != nil {
			return err
		}
		if err := c.events.Delete(ctx, ev.ID); err != nil {
			return err
		}
		return c.audit.Append(ctx, &audit.Record{
			AffectedTable: audit.TableDonationEvent,
			Action:        audit.ActionDelete,
			UnitID:        &unit.ID,
			DonationID:    &ev.ID,
			Details: fmt.Sprintf("cancelled donation restored %d %s %s: quantity %d -> %d",
				ev.Quantity, unit.Kind, unit.Subtype, unit.Quantity, updated.Quantity),
		})
	})
	if err != nil {
		return c.finish(a, err)
	}

	c.finish(a, nil)
	c.metrics.AddUnitsMoved(OpDelete, string(ev.Target.Kind()), ev.Quantity)
	a.log.Info().
		Str("unit_id", unitID.String()).
		Str("donation_id", id.String()).
		Int("quantity", ev.Quantity).
		Int("remaining", updated.Quantity).
		Msg("donation cancelled")
	return nil
}

// Restock adds stock to a unit outside of any donation and audits it as an
// update of the unit.
func (c *Coordinator) Restock(ctx context.Context, unitID uuid.UUID, quantity int, note string) (*inventory.Unit, error) {
	a := c.begin(OpRestock)
	if err := checkQuantity(quantity); err != nil {
		return nil, c.finish(a, err)
	}

	release, err := c.gate.Acquire(ctx, lock.UnitKey(unitID))
	defer release()
	if err != nil {
		return nil, c.finish(a, err)
	}

	var updated *inventory.Unit
	err = c.tx.WithinTx(ctx, func(ctx context.Context) error {
		a.state = StateValidating
		unit, err := c.units.LockForUpdate(ctx, unitID)
		if err != nil {
			return err
		}

		if quantity > inventory.MaxQuantity-unit.Quantity {
			return apperr.InvalidArgument("restocking %d would take unit %s past %d", quantity, unit.ID, inventory.MaxQuantity)
		}

		a.state = StateAdmitted
		if updated, err = c.units.AdjustQuantity(ctx, unit.ID, quantity); err != nil {
			return err
		}
		details := fmt.Sprintf("restocked %d %s %s: quantity %d -> %d",
			quantity, unit.Kind, unit.Subtype, unit.Quantity, updated.Quantity)
		if note != "" {
			details += " (" + note + ")"
		}
		return c.audit.Append(ctx, &audit.Record{
			AffectedTable: audit.TableInventoryUnit,
			Action:        audit.ActionUpdate,
			UnitID:        &unit.ID,
			Details:       details,
		})
	})
	if err != nil {
		return nil, c.finish(a, err)
	}

	c.finish(a, nil)
	c.metrics.AddUnitsMoved(OpRestock, string(updated.Kind), quantity)
	a.log.Info().Str("unit_id", unitID.String()).Int("quantity", quantity).Int("remaining", updated.Quantity).Msg("unit restocked")
	return updated, nil
}

func (c *Coordinator) GetDonation(ctx context.Context, id uuid.UUID) (*Event, error) {
	return c.events.GetByID(ctx, id)
}

func (c *Coordinator) ListDonations(ctx context.Context, p ListParams) ([]*Event, int, error) {
	return c.events.List(ctx, p)
}
