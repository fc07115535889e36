package schedule

import (
	"time"

	"github.com/shopspring/decimal"

	"tattootrack/internal/models"
)

// Snapshot is the part of an appointment that drives financial side effects.
type Snapshot struct {
	Status        models.AppointmentStatus
	DepositPaid   bool
	DepositAmount decimal.Decimal
	DepositPaidAt *time.Time
	Price         decimal.Decimal
}

// Change is a partial update to the lifecycle fields. Nil means unchanged.
type Change struct {
	Status        *models.AppointmentStatus
	DepositPaid   *bool
	DepositAmount *decimal.Decimal
	Price         *decimal.Decimal
}

// Transition is the result of applying a Change to a Snapshot.
type Transition struct {
	Prior Snapshot
	Next  Snapshot

	// CompletedEdge is set only when the status moves into completed.
	CompletedEdge bool
	// DepositPaidEdge is set only when the deposit flips from unpaid to paid.
	DepositPaidEdge bool
}

// ZeroSnapshot is the prior state of an appointment that does not exist
// yet. Creating an appointment as completed or with a paid deposit is an
// edge from this state.
func ZeroSnapshot() Snapshot {
	return Snapshot{}
}

// ApplyStatus moves prior to next. Any status may follow any other.
func ApplyStatus(prior Snapshot, next models.AppointmentStatus) Transition {
	out := prior
	out.Status = next
	return Transition{
		Prior:         prior,
		Next:          out,
		CompletedEdge: prior.Status != models.AppointmentStatusCompleted && next == models.AppointmentStatusCompleted,
	}
}

// ApplyDeposit updates the deposit fields. DepositPaidAt is stamped with now
// on the false to true edge, cleared on true to false and kept otherwise.
func ApplyDeposit(prior Snapshot, paid *bool, amount *decimal.Decimal, now time.Time) Transition {
	out := prior
	if amount != nil {
		out.DepositAmount = *amount
	}

	edge := false
	if paid != nil {
		switch {
		case *paid && !prior.DepositPaid:
			stamp := now
			out.DepositPaidAt = &stamp
			edge = true
		case !*paid && prior.DepositPaid:
			out.DepositPaidAt = nil
		}
		out.DepositPaid = *paid
	}

	return Transition{Prior: prior, Next: out, DepositPaidEdge: edge}
}

// Apply runs a full Change through the deposit and status rules.
func Apply(prior Snapshot, change Change, now time.Time) Transition {
	t := ApplyDeposit(prior, change.DepositPaid, change.DepositAmount, now)
	if change.Price != nil {
		t.Next.Price = *change.Price
	}
	if change.Status != nil {
		st := ApplyStatus(t.Next, *change.Status)
		t.Next = st.Next
		t.CompletedEdge = prior.Status != models.AppointmentStatusCompleted &&
			*change.Status == models.AppointmentStatusCompleted
	}
	return t
}

// Reactivates reports whether the transition brings a cancelled appointment
// back onto the calendar, which needs a fresh conflict check.
func (t Transition) Reactivates() bool {
	return t.Prior.Status == models.AppointmentStatusCancelled &&
		t.Next.Status != models.AppointmentStatusCancelled
}
