// Package ledger turns appointment lifecycle edges into income
// transactions: one for a paid deposit and one for the remaining balance
// when the session is completed.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"tattootrack/internal/logger"
	"tattootrack/internal/models"
	"tattootrack/internal/schedule"
)

var tracer = otel.Tracer("tattootrack/ledger")

// ErrCategoryNotConfigured is returned by a Store when the named category
// does not exist. The engine treats it as "skip this rule".
var ErrCategoryNotConfigured = errors.New("category not configured")

// Rule names used for metrics and logs.
const (
	RuleDeposit    = "deposit"
	RuleCompletion = "completion"
)

// Store is what the engine needs from persistence.
type Store interface {
	ResolveCategory(ctx context.Context, name string, categoryType models.CategoryType) (*models.Category, error)
	HasAutomatic(ctx context.Context, appointmentID, categoryID string) (bool, error)
	SumAutomatic(ctx context.Context, appointmentID, categoryID string) (decimal.Decimal, error)
	Record(ctx context.Context, tx *models.Transaction) error
}

// Categories names the income categories the rules book into.
type Categories struct {
	Deposit string
	Session string
}

// Subject identifies the appointment a transition belongs to.
type Subject struct {
	AppointmentID string
	Title         string
	ClientName    string
}

// Entry is a transaction created by a rule.
type Entry struct {
	Rule        string
	Transaction *models.Transaction
}

// Engine evaluates the deposit and completion rules.
type Engine struct {
	categories Categories
	now        func() time.Time
}

// NewEngine creates an Engine booking into the given categories.
func NewEngine(categories Categories) *Engine {
	return &Engine{categories: categories, now: time.Now}
}

// WithClock returns a copy of the engine that stamps entries with now().
func (e *Engine) WithClock(now func() time.Time) *Engine {
	cp := *e
	cp.now = now
	return &cp
}

// Evaluate applies both rules to a transition. The deposit rule runs first
// so a completion in the same update subtracts the deposit just booked.
// Storage errors abort and are returned as is.
func (e *Engine) Evaluate(ctx context.Context, store Store, subject Subject, t schedule.Transition) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "ledger.Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.id", subject.AppointmentID),
		attribute.Bool("edge.deposit_paid", t.DepositPaidEdge),
		attribute.Bool("edge.completed", t.CompletedEdge),
	)

	var entries []Entry

	if t.DepositPaidEdge && t.Next.DepositAmount.IsPositive() {
		entry, err := e.depositRule(ctx, store, subject, t.Next.DepositAmount)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}

	if t.CompletedEdge && t.Next.Price.IsPositive() {
		entry, err := e.completionRule(ctx, store, subject, t.Next.Price)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}

	span.SetAttributes(attribute.Int("entries", len(entries)))
	return entries, nil
}

func (e *Engine) depositRule(ctx context.Context, store Store, subject Subject, amount decimal.Decimal) (*Entry, error) {
	category, ok, err := e.resolve(ctx, store, e.categories.Deposit, RuleDeposit)
	if err != nil || !ok {
		return nil, err
	}

	exists, err := store.HasAutomatic(ctx, subject.AppointmentID, category.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Get().Debugw("deposit already booked", "appointment_id", subject.AppointmentID)
		return nil, nil
	}

	tx := e.entry(subject, category.ID, amount, fmt.Sprintf("Sinal - %s (%s)", subject.Title, subject.ClientName))
	if err := store.Record(ctx, tx); err != nil {
		return nil, err
	}
	return &Entry{Rule: RuleDeposit, Transaction: tx}, nil
}

func (e *Engine) completionRule(ctx context.Context, store Store, subject Subject, price decimal.Decimal) (*Entry, error) {
	category, ok, err := e.resolve(ctx, store, e.categories.Session, RuleCompletion)
	if err != nil || !ok {
		return nil, err
	}

	exists, err := store.HasAutomatic(ctx, subject.AppointmentID, category.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Get().Debugw("session already booked", "appointment_id", subject.AppointmentID)
		return nil, nil
	}

	paid := decimal.Zero
	deposit, ok, err := e.resolve(ctx, store, e.categories.Deposit, RuleCompletion)
	if err != nil {
		return nil, err
	}
	if ok {
		paid, err = store.SumAutomatic(ctx, subject.AppointmentID, deposit.ID)
		if err != nil {
			return nil, err
		}
	}

	remaining := price.Sub(paid)
	if !remaining.IsPositive() {
		return nil, nil
	}

	tx := e.entry(subject, category.ID, remaining, fmt.Sprintf("Sessao - %s (%s)", subject.Title, subject.ClientName))
	if err := store.Record(ctx, tx); err != nil {
		return nil, err
	}
	return &Entry{Rule: RuleCompletion, Transaction: tx}, nil
}

// resolve looks up an income category. A missing category is logged and
// reported as ok=false.
func (e *Engine) resolve(ctx context.Context, store Store, name, rule string) (*models.Category, bool, error) {
	category, err := store.ResolveCategory(ctx, name, models.CategoryTypeIncome)
	if errors.Is(err, ErrCategoryNotConfigured) {
		logger.Get().Warnw("income category missing, skipping automatic transaction",
			"category", name,
			"rule", rule,
		)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return category, true, nil
}

func (e *Engine) entry(subject Subject, categoryID string, amount decimal.Decimal, description string) *models.Transaction {
	appointmentID := subject.AppointmentID
	return &models.Transaction{
		Type:          models.TransactionTypeIncome,
		Amount:        amount,
		Description:   description,
		Date:          e.now().UTC(),
		CategoryID:    categoryID,
		AppointmentID: &appointmentID,
		IsAutomatic:   true,
	}
}
