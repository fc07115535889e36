package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tattootrack/internal/ledger"
	"tattootrack/internal/models"
	"tattootrack/internal/schedule"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type memStore struct {
	categories map[string]*models.Category
	recorded   []*models.Transaction
	recordErr  error
}

func newMemStore(names ...string) *memStore {
	s := &memStore{categories: map[string]*models.Category{}}
	for _, n := range names {
		c := &models.Category{Name: n, Type: models.CategoryTypeIncome}
		c.ID = "cat-" + n
		s.categories[n] = c
	}
	return s
}

func (s *memStore) ResolveCategory(_ context.Context, name string, categoryType models.CategoryType) (*models.Category, error) {
	c, ok := s.categories[name]
	if !ok || c.Type != categoryType {
		return nil, ledger.ErrCategoryNotConfigured
	}
	return c, nil
}

func (s *memStore) HasAutomatic(_ context.Context, appointmentID, categoryID string) (bool, error) {
	for _, tx := range s.recorded {
		if tx.IsAutomatic && *tx.AppointmentID == appointmentID && tx.CategoryID == categoryID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) SumAutomatic(_ context.Context, appointmentID, categoryID string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, tx := range s.recorded {
		if tx.IsAutomatic && *tx.AppointmentID == appointmentID && tx.CategoryID == categoryID {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

func (s *memStore) Record(_ context.Context, tx *models.Transaction) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.recorded = append(s.recorded, tx)
	return nil
}

const (
	depositCategory = "Sinal/Deposito"
	sessionCategory = "Sessao de Tatuagem"
)

var fixedNow = time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)

func newEngine() *ledger.Engine {
	return ledger.NewEngine(ledger.Categories{Deposit: depositCategory, Session: sessionCategory}).
		WithClock(func() time.Time { return fixedNow })
}

func subject() ledger.Subject {
	return ledger.Subject{AppointmentID: "appt-1", Title: "Fine line rose", ClientName: "Ana"}
}

func money(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func paid(b bool) *bool { return &b }

func status(s models.AppointmentStatus) *models.AppointmentStatus { return &s }

// =============================================================================
// DEPOSIT RULE
// =============================================================================

func TestEngine_DepositPaidCreatesIncome(t *testing.T) {
	// GIVEN: an appointment with a 200 deposit not yet paid
	// WHEN: the deposit is marked paid
	// THEN: one automatic income entry of 200 is booked to the deposit category
	store := newMemStore(depositCategory, sessionCategory)
	prior := schedule.Snapshot{Status: models.AppointmentStatusScheduled, DepositAmount: money(200), Price: money(800)}
	tr := schedule.ApplyDeposit(prior, paid(true), nil, fixedNow)

	entries, err := newEngine().Evaluate(context.Background(), store, subject(), tr)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	tx := entries[0].Transaction
	assert.Equal(t, ledger.RuleDeposit, entries[0].Rule)
	assert.Equal(t, models.TransactionTypeIncome, tx.Type)
	assert.True(t, tx.Amount.Equal(money(200)))
	assert.Equal(t, "Sinal - Fine line rose (Ana)", tx.Description)
	assert.Equal(t, "cat-"+depositCategory, tx.CategoryID)
	assert.Equal(t, "appt-1", *tx.AppointmentID)
	assert.True(t, tx.IsAutomatic)
	assert.True(t, tx.Date.Equal(fixedNow))
}

func TestEngine_DepositUsesPatchedAmount(t *testing.T) {
	store := newMemStore(depositCategory)
	amount := money(350)
	tr := schedule.ApplyDeposit(schedule.Snapshot{DepositAmount: money(100)}, paid(true), &amount, fixedNow)

	entries, err := newEngine().Evaluate(context.Background(), store, subject(), tr)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Transaction.Amount.Equal(money(350)))
}

func TestEngine_DepositZeroAmountSkipped(t *testing.T) {
	store := newMemStore(depositCategory)
	tr := schedule.ApplyDeposit(schedule.Snapshot{}, paid(true), nil, fixedNow)

	entries, err := newEngine().Evaluate(context.Background(), store, subject(), tr)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, store.recorded)
}

func TestEngine_DepositAtMostOnce(t *testing.T) {
	// GIVEN: a deposit that was paid, unpaid, and paid again
	// WHEN: the second false to true edge is evaluated
	// THEN: no second deposit entry is booked
	store := newMemStore(depositCategory)
	eng := newEngine()
	snap := schedule.Snapshot{DepositAmount: money(200)}

	first := schedule.ApplyDeposit(snap, paid(true), nil, fixedNow)
	_, err := eng.Evaluate(context.Background(), store, subject(), first)
	require.NoError(t, err)

	undo := schedule.ApplyDeposit(first.Next, paid(false), nil, fixedNow)
	again := schedule.ApplyDeposit(undo.Next, paid(true), nil, fixedNow)
	require.True(t, again.DepositPaidEdge)

	entries, err := eng.Evaluate(context.Background(), store, subject(), again)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Len(t, store.recorded, 1)
}

func TestEngine_MissingCategorySkipsSilently(t *testing.T) {
	store := newMemStore()
	tr := schedule.ApplyDeposit(schedule.Snapshot{DepositAmount: money(200)}, paid(true), nil, fixedNow)

	entries, err := newEngine().Evaluate(context.Background(), store, subject(), tr)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// =============================================================================
// COMPLETION RULE
// =============================================================================

func TestEngine_CompletionBooksRemainder(t *testing.T) {
	// GIVEN: a paid 200 deposit on an 800 session
	// WHEN: the appointment is completed
	// THEN: the remaining 600 is booked to the session category
	store := newMemStore(depositCategory, sessionCategory)
	eng := newEngine()

	dep := schedule.ApplyDeposit(schedule.Snapshot{Status: models.AppointmentStatusConfirmed, DepositAmount: money(200), Price: money(800)}, paid(true), nil, fixedNow)
	_, err := eng.Evaluate(context.Background(), store, subject(), dep)
	require.NoError(t, err)

	done := schedule.ApplyStatus(dep.Next, models.AppointmentStatusCompleted)
	entries, err := eng.Evaluate(context.Background(), store, subject(), done)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	tx := entries[0].Transaction
	assert.Equal(t, ledger.RuleCompletion, entries[0].Rule)
	assert.True(t, tx.Amount.Equal(money(600)))
	assert.Equal(t, "Sessao - Fine line rose (Ana)", tx.Description)
	assert.Equal(t, "cat-"+sessionCategory, tx.CategoryID)
}

func TestEngine_CompletionWithoutDeposit(t *testing.T) {
	store := newMemStore(depositCategory, sessionCategory)
	done := schedule.ApplyStatus(schedule.Snapshot{Status: models.AppointmentStatusInProgress, Price: money(500)}, models.AppointmentStatusCompleted)

	entries, err := newEngine().Evaluate(context.Background(), store, subject(), done)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Transaction.Amount.Equal(money(500)))
}

func TestEngine_CompletionFullyPrepaid(t *testing.T) {
	// GIVEN: a deposit equal to the price
	// WHEN: completing
	// THEN: nothing is left to book
	store := newMemStore(depositCategory, sessionCategory)
	eng := newEngine()

	dep := schedule.ApplyDeposit(schedule.Snapshot{DepositAmount: money(300), Price: money(300)}, paid(true), nil, fixedNow)
	_, err := eng.Evaluate(context.Background(), store, subject(), dep)
	require.NoError(t, err)

	entries, err := eng.Evaluate(context.Background(), store, subject(), schedule.ApplyStatus(dep.Next, models.AppointmentStatusCompleted))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEngine_CompletionAtMostOnce(t *testing.T) {
	store := newMemStore(sessionCategory)
	eng := newEngine()
	snap := schedule.Snapshot{Status: models.AppointmentStatusScheduled, Price: money(500)}

	first := schedule.ApplyStatus(snap, models.AppointmentStatusCompleted)
	_, err := eng.Evaluate(context.Background(), store, subject(), first)
	require.NoError(t, err)

	reopened := schedule.ApplyStatus(first.Next, models.AppointmentStatusInProgress)
	second := schedule.ApplyStatus(reopened.Next, models.AppointmentStatusCompleted)
	require.True(t, second.CompletedEdge)

	entries, err := eng.Evaluate(context.Background(), store, subject(), second)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Len(t, store.recorded, 1)
}

func TestEngine_CompletionMissingDepositCategoryCountsZero(t *testing.T) {
	store := newMemStore(sessionCategory)
	done := schedule.ApplyStatus(schedule.Snapshot{Price: money(400), DepositAmount: money(100), DepositPaid: true}, models.AppointmentStatusCompleted)

	entries, err := newEngine().Evaluate(context.Background(), store, subject(), done)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Transaction.Amount.Equal(money(400)))
}

func TestEngine_BothEdgesInOneUpdate(t *testing.T) {
	// GIVEN: deposit paid and completion arrive in the same update
	// WHEN: evaluating
	// THEN: the deposit is booked first and subtracted from the session entry
	store := newMemStore(depositCategory, sessionCategory)
	prior := schedule.Snapshot{Status: models.AppointmentStatusInProgress, DepositAmount: money(150), Price: money(600)}
	tr := schedule.Apply(prior, schedule.Change{Status: status(models.AppointmentStatusCompleted), DepositPaid: paid(true)}, fixedNow)

	entries, err := newEngine().Evaluate(context.Background(), store, subject(), tr)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Transaction.Amount.Equal(money(150)))
	assert.True(t, entries[1].Transaction.Amount.Equal(money(450)))
}

func TestEngine_NoEdgesNoWork(t *testing.T) {
	store := newMemStore(depositCategory, sessionCategory)
	tr := schedule.ApplyStatus(schedule.Snapshot{Status: models.AppointmentStatusScheduled, Price: money(100)}, models.AppointmentStatusConfirmed)

	entries, err := newEngine().Evaluate(context.Background(), store, subject(), tr)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEngine_StorageErrorPropagates(t *testing.T) {
	boom := errors.New("disk full")
	store := newMemStore(depositCategory)
	store.recordErr = boom
	tr := schedule.ApplyDeposit(schedule.Snapshot{DepositAmount: money(200)}, paid(true), nil, fixedNow)

	_, err := newEngine().Evaluate(context.Background(), store, subject(), tr)
	assert.ErrorIs(t, err, boom)
}
