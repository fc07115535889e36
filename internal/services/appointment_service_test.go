package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tattootrack/internal/cache"
	"tattootrack/internal/ledger"
	"tattootrack/internal/metrics"
	"tattootrack/internal/models"
	"tattootrack/internal/testutil"

	"gorm.io/gorm"
)

var ruleCategories = ledger.Categories{
	Deposit: testutil.DepositCategoryName,
	Session: testutil.SessionCategoryName,
}

// fakeCalendar records the sync calls made after each write.
type fakeCalendar struct {
	mu      sync.Mutex
	synced  []string
	removed []string
}

func (f *fakeCalendar) AuthURL(string) (string, error) { return "", nil }

func (f *fakeCalendar) Connect(context.Context, string, string) (*models.User, error) {
	return nil, nil
}

func (f *fakeCalendar) Disconnect(string) error { return nil }

func (f *fakeCalendar) SyncAppointment(_ context.Context, _ string, appt *models.Appointment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, appt.ID)
}

func (f *fakeCalendar) RemoveAppointment(_ context.Context, _ string, appt *models.Appointment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, appt.ID)
}

func newTestAppointmentService(db *gorm.DB) AppointmentServicer {
	return NewAppointmentService(db, AppointmentDeps{Categories: ruleCategories})
}

func ptr[T any](v T) *T { return &v }

func bookingInput(clientID string, day time.Time, start string, hours float64) AppointmentInput {
	return AppointmentInput{
		ClientID:       &clientID,
		Title:          ptr("Fine line rose"),
		Date:           &day,
		StartTime:      &start,
		EstimatedHours: &hours,
	}
}

func countAutomatic(t *testing.T, db *gorm.DB, appointmentID string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.Transaction{}).
		Where("appointment_id = ? AND is_automatic = ?", appointmentID, true).
		Count(&n).Error; err != nil {
		t.Fatalf("failed to count transactions: %v", err)
	}
	return n
}

func TestCreateAppointment(t *testing.T) {
	ctx := context.Background()
	day := testutil.Day(2024, time.March, 10)

	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)

		res, err := svc.CreateAppointment(ctx, "", bookingInput(client.ID, day, "9:30", 2))
		testutil.AssertNoError(t, err)

		if res.Appointment.StartTime != "09:30" {
			t.Errorf("expected normalized start 09:30, got %s", res.Appointment.StartTime)
		}
		if res.Appointment.Status != models.AppointmentStatusScheduled {
			t.Errorf("expected scheduled, got %s", res.Appointment.Status)
		}
		if res.Appointment.Client == nil || res.Appointment.Client.Name != client.Name {
			t.Errorf("expected client to be attached")
		}
		if len(res.GeneratedTransactions) != 0 {
			t.Errorf("expected no transactions, got %d", len(res.GeneratedTransactions))
		}
	})

	t.Run("missing_fields", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)

		_, err := svc.CreateAppointment(ctx, "", AppointmentInput{Title: ptr("Rose")})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("unknown_client", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)

		_, err := svc.CreateAppointment(ctx, "", bookingInput("0190a6b2-0000-7000-8000-000000000000", day, "10:00", 1))
		testutil.AssertAppError(t, err, "CLIENT_NOT_FOUND")
	})

	t.Run("invalid_time", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)

		_, err := svc.CreateAppointment(ctx, "", bookingInput(client.ID, day, "25:00", 1))
		testutil.AssertAppError(t, err, "INVALID_TIME_FORMAT")
	})

	t.Run("hours_out_of_range", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)

		_, err := svc.CreateAppointment(ctx, "", bookingInput(client.ID, day, "10:00", 0.25))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		_, err = svc.CreateAppointment(ctx, "", bookingInput(client.ID, day, "08:00", 13))
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		for _, hours := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			_, err = svc.CreateAppointment(ctx, "", bookingInput(client.ID, day, "10:00", hours))
			testutil.AssertAppError(t, err, "INVALID_INPUT")
			_, err = svc.CheckConflict(ctx, day, "10:00", hours, "")
			testutil.AssertAppError(t, err, "INVALID_INPUT")
		}
	})

	t.Run("overnight", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)

		_, err := svc.CreateAppointment(ctx, "", bookingInput(client.ID, day, "22:00", 3))
		testutil.AssertAppError(t, err, "OVERNIGHT_APPOINTMENT")

		_, err = svc.CreateAppointment(ctx, "", bookingInput(client.ID, day, "22:00", 2))
		testutil.AssertNoError(t, err)
	})

	t.Run("conflict", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		m := metrics.New()
		svc := NewAppointmentService(db, AppointmentDeps{Categories: ruleCategories, Metrics: m})
		client := testutil.CreateTestClient(t, db)
		existing := testutil.CreateTestAppointment(t, db, client.ID, day, "10:00", 2)

		_, err := svc.CreateAppointment(ctx, "", bookingInput(client.ID, day, "11:00", 1))
		testutil.AssertAppError(t, err, "SCHEDULING_CONFLICT")

		if got := m.Snapshot().SchedulingConflicts; got != 1 {
			t.Errorf("expected 1 conflict counted, got %v", got)
		}

		conflict, err := svc.CheckConflict(ctx, day, "11:00", 1, "")
		testutil.AssertNoError(t, err)
		if conflict == nil || conflict.ID != existing.ID {
			t.Fatalf("expected conflict with %s, got %+v", existing.ID, conflict)
		}
		if conflict.EndTime != "12:00" {
			t.Errorf("expected end 12:00, got %s", conflict.EndTime)
		}
	})

	t.Run("adjacent_slots_do_not_conflict", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)
		testutil.CreateTestAppointment(t, db, client.ID, day, "10:00", 2)

		_, err := svc.CreateAppointment(ctx, "", bookingInput(client.ID, day, "12:00", 1))
		testutil.AssertNoError(t, err)
		_, err = svc.CreateAppointment(ctx, "", bookingInput(client.ID, day, "09:00", 1))
		testutil.AssertNoError(t, err)
	})

	t.Run("cancelled_slot_is_free", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)
		existing := testutil.CreateTestAppointment(t, db, client.ID, day, "10:00", 2)
		db.Model(existing).Update("status", models.AppointmentStatusCancelled)

		_, err := svc.CreateAppointment(ctx, "", bookingInput(client.ID, day, "10:00", 2))
		testutil.AssertNoError(t, err)
	})

	t.Run("created_completed_books_session", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		testutil.SeedRuleCategories(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)

		input := bookingInput(client.ID, day, "10:00", 2)
		input.Status = ptr(models.AppointmentStatusCompleted)
		input.Price = ptr(decimal.NewFromInt(800))
		input.DepositAmount = ptr(decimal.NewFromInt(200))
		input.DepositPaid = ptr(true)

		res, err := svc.CreateAppointment(ctx, "", input)
		testutil.AssertNoError(t, err)

		if len(res.GeneratedTransactions) != 2 {
			t.Fatalf("expected deposit and session transactions, got %d", len(res.GeneratedTransactions))
		}
		if !res.GeneratedTransactions[0].Amount.Equal(decimal.NewFromInt(200)) {
			t.Errorf("expected deposit 200, got %s", res.GeneratedTransactions[0].Amount)
		}
		if !res.GeneratedTransactions[1].Amount.Equal(decimal.NewFromInt(600)) {
			t.Errorf("expected remaining 600, got %s", res.GeneratedTransactions[1].Amount)
		}
		if res.Appointment.DepositPaidAt == nil {
			t.Error("expected deposit_paid_at to be stamped")
		}
	})
}

func TestUpdateAppointment(t *testing.T) {
	ctx := context.Background()
	day := testutil.Day(2024, time.March, 10)

	t.Run("move_into_conflict", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)
		testutil.CreateTestAppointment(t, db, client.ID, day, "10:00", 2)
		other := testutil.CreateTestAppointment(t, db, client.ID, day, "14:00", 1)

		_, err := svc.UpdateAppointment(ctx, "", other.ID, AppointmentInput{StartTime: ptr("11:30")})
		testutil.AssertAppError(t, err, "SCHEDULING_CONFLICT")
	})

	t.Run("own_slot_is_ignored", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)
		appt := testutil.CreateTestAppointment(t, db, client.ID, day, "10:00", 2)

		res, err := svc.UpdateAppointment(ctx, "", appt.ID, AppointmentInput{EstimatedHours: ptr(3.0), Title: ptr("Longer session")})
		testutil.AssertNoError(t, err)
		if res.Appointment.EstimatedHours != 3 || res.Appointment.Title != "Longer session" {
			t.Errorf("update not applied: %+v", res.Appointment)
		}
	})

	t.Run("move_to_other_day", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)
		appt := testutil.CreateTestAppointment(t, db, client.ID, day, "10:00", 2)
		testutil.CreateTestAppointment(t, db, client.ID, day.AddDate(0, 0, 1), "15:00", 2)

		next := day.AddDate(0, 0, 1)
		res, err := svc.UpdateAppointment(ctx, "", appt.ID, AppointmentInput{Date: &next})
		testutil.AssertNoError(t, err)
		if res.Appointment.Date.Format("2006-01-02") != "2024-03-11" {
			t.Errorf("expected 2024-03-11, got %s", res.Appointment.Date.Format("2006-01-02"))
		}
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)

		_, err := svc.UpdateAppointment(ctx, "", "0190a6b2-0000-7000-8000-000000000000", AppointmentInput{Title: ptr("Nope")})
		testutil.AssertAppError(t, err, "APPOINTMENT_NOT_FOUND")
	})

	t.Run("moved_while_waiting_for_lock", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db).(*appointmentService)
		client := testutil.CreateTestClient(t, db)
		appt := testutil.CreateTestAppointment(t, db, client.ID, day, "10:00", 2)

		// The caller read the appointment on the previous day and locked that day only.
		_, _, err := svc.applyUpdate(ctx, day.AddDate(0, 0, -1), appt.ID, AppointmentInput{StartTime: ptr("12:00")}, true)
		if !errors.Is(err, errDayMoved) {
			t.Fatalf("expected errDayMoved, got %v", err)
		}

		var stored models.Appointment
		if err := db.First(&stored, "id = ?", appt.ID).Error; err != nil {
			t.Fatalf("failed to reload appointment: %v", err)
		}
		if stored.StartTime != "10:00" {
			t.Errorf("expected start_time unchanged, got %s", stored.StartTime)
		}

		res, err := svc.UpdateAppointment(ctx, "", appt.ID, AppointmentInput{StartTime: ptr("12:00")})
		testutil.AssertNoError(t, err)
		if res.Appointment.StartTime != "12:00" {
			t.Errorf("expected 12:00, got %s", res.Appointment.StartTime)
		}
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	day := testutil.Day(2024, time.March, 10)

	t.Run("completion_books_remaining_once", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		testutil.SeedRuleCategories(t, db)
		m := metrics.New()
		svc := NewAppointmentService(db, AppointmentDeps{Categories: ruleCategories, Metrics: m})
		client := testutil.CreateTestClient(t, db)

		input := bookingInput(client.ID, day, "10:00", 2)
		input.Price = ptr(decimal.NewFromInt(500))
		input.DepositAmount = ptr(decimal.NewFromInt(150))
		created, err := svc.CreateAppointment(ctx, "", input)
		testutil.AssertNoError(t, err)

		res, err := svc.UpdateDeposit(ctx, "", created.Appointment.ID, ptr(true), nil)
		testutil.AssertNoError(t, err)
		if len(res.GeneratedTransactions) != 1 || !res.GeneratedTransactions[0].Amount.Equal(decimal.NewFromInt(150)) {
			t.Fatalf("expected a 150 deposit entry, got %+v", res.GeneratedTransactions)
		}

		res, err = svc.UpdateStatus(ctx, "", created.Appointment.ID, models.AppointmentStatusCompleted)
		testutil.AssertNoError(t, err)
		if len(res.GeneratedTransactions) != 1 || !res.GeneratedTransactions[0].Amount.Equal(decimal.NewFromInt(350)) {
			t.Fatalf("expected a 350 session entry, got %+v", res.GeneratedTransactions)
		}

		_, err = svc.UpdateStatus(ctx, "", created.Appointment.ID, models.AppointmentStatusInProgress)
		testutil.AssertNoError(t, err)
		res, err = svc.UpdateStatus(ctx, "", created.Appointment.ID, models.AppointmentStatusCompleted)
		testutil.AssertNoError(t, err)
		if len(res.GeneratedTransactions) != 0 {
			t.Errorf("expected no new entries on re-completion, got %d", len(res.GeneratedTransactions))
		}

		if n := countAutomatic(t, db, created.Appointment.ID); n != 2 {
			t.Errorf("expected 2 automatic transactions, got %d", n)
		}
		snap := m.Snapshot()
		if snap.AutomaticTransactions["deposit"] != 1 || snap.AutomaticTransactions["completion"] != 1 {
			t.Errorf("unexpected rule counters: %+v", snap.AutomaticTransactions)
		}
	})

	t.Run("deposit_covers_price", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		testutil.SeedRuleCategories(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)

		input := bookingInput(client.ID, day, "10:00", 2)
		input.Price = ptr(decimal.NewFromInt(300))
		input.DepositAmount = ptr(decimal.NewFromInt(300))
		input.DepositPaid = ptr(true)
		created, err := svc.CreateAppointment(ctx, "", input)
		testutil.AssertNoError(t, err)

		res, err := svc.UpdateStatus(ctx, "", created.Appointment.ID, models.AppointmentStatusCompleted)
		testutil.AssertNoError(t, err)
		if len(res.GeneratedTransactions) != 0 {
			t.Errorf("expected no session entry, got %d", len(res.GeneratedTransactions))
		}
	})

	t.Run("missing_category_skips_rule", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)
		appt := testutil.CreateTestAppointment(t, db, client.ID, day, "10:00", 2)
		db.Model(appt).Update("price", decimal.NewFromInt(400))

		res, err := svc.UpdateStatus(ctx, "", appt.ID, models.AppointmentStatusCompleted)
		testutil.AssertNoError(t, err)
		if res.Appointment.Status != models.AppointmentStatusCompleted {
			t.Errorf("expected completed, got %s", res.Appointment.Status)
		}
		if len(res.GeneratedTransactions) != 0 {
			t.Errorf("expected no entries without categories, got %d", len(res.GeneratedTransactions))
		}
	})

	t.Run("reactivation_rechecks_conflict", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)
		cancelled := testutil.CreateTestAppointment(t, db, client.ID, day, "10:00", 2)

		_, err := svc.UpdateStatus(ctx, "", cancelled.ID, models.AppointmentStatusCancelled)
		testutil.AssertNoError(t, err)
		testutil.CreateTestAppointment(t, db, client.ID, day, "10:30", 1)

		_, err = svc.UpdateStatus(ctx, "", cancelled.ID, models.AppointmentStatusConfirmed)
		testutil.AssertAppError(t, err, "SCHEDULING_CONFLICT")
	})

	t.Run("invalid_status", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)
		appt := testutil.CreateTestAppointment(t, db, client.ID, day, "10:00", 2)

		_, err := svc.UpdateStatus(ctx, "", appt.ID, models.AppointmentStatus("done"))
		testutil.AssertAppError(t, err, "INVALID_STATUS")
	})
}

func TestUpdateDeposit(t *testing.T) {
	ctx := context.Background()
	day := testutil.Day(2024, time.March, 10)

	t.Run("requires_a_field", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)
		appt := testutil.CreateTestAppointment(t, db, client.ID, day, "10:00", 2)

		_, err := svc.UpdateDeposit(ctx, "", appt.ID, nil, nil)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("unpay_clears_timestamp_and_repay_does_not_duplicate", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		testutil.SeedRuleCategories(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)
		appt := testutil.CreateTestAppointment(t, db, client.ID, day, "10:00", 2)

		_, err := svc.UpdateDeposit(ctx, "", appt.ID, ptr(true), ptr(decimal.NewFromInt(100)))
		testutil.AssertNoError(t, err)

		res, err := svc.UpdateDeposit(ctx, "", appt.ID, ptr(false), nil)
		testutil.AssertNoError(t, err)
		if res.Appointment.DepositPaidAt != nil {
			t.Error("expected deposit_paid_at to be cleared")
		}

		res, err = svc.UpdateDeposit(ctx, "", appt.ID, ptr(true), nil)
		testutil.AssertNoError(t, err)
		if len(res.GeneratedTransactions) != 0 {
			t.Errorf("expected no duplicate deposit, got %d", len(res.GeneratedTransactions))
		}
		if n := countAutomatic(t, db, appt.ID); n != 1 {
			t.Errorf("expected 1 automatic transaction, got %d", n)
		}
	})
}

func TestDeleteAppointment(t *testing.T) {
	ctx := context.Background()
	day := testutil.Day(2024, time.March, 10)

	t.Run("keeps_transactions", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		testutil.SeedRuleCategories(t, db)
		cal := &fakeCalendar{}
		svc := NewAppointmentService(db, AppointmentDeps{Categories: ruleCategories, Calendar: cal})
		client := testutil.CreateTestClient(t, db)

		input := bookingInput(client.ID, day, "10:00", 2)
		input.DepositAmount = ptr(decimal.NewFromInt(100))
		input.DepositPaid = ptr(true)
		created, err := svc.CreateAppointment(ctx, "", input)
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, svc.DeleteAppointment(ctx, "", created.Appointment.ID))

		_, err = svc.GetAppointment(ctx, created.Appointment.ID)
		testutil.AssertAppError(t, err, "APPOINTMENT_NOT_FOUND")

		var txs []models.Transaction
		db.Find(&txs)
		if len(txs) != 1 || txs[0].AppointmentID != nil {
			t.Errorf("expected one unlinked transaction, got %+v", txs)
		}
		if len(cal.synced) != 1 || len(cal.removed) != 1 {
			t.Errorf("expected one sync and one removal, got %d and %d", len(cal.synced), len(cal.removed))
		}
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)

		err := svc.DeleteAppointment(ctx, "", "0190a6b2-0000-7000-8000-000000000000")
		testutil.AssertAppError(t, err, "APPOINTMENT_NOT_FOUND")
	})
}

func TestCancelRemovesCalendarEvent(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	cal := &fakeCalendar{}
	svc := NewAppointmentService(db, AppointmentDeps{Categories: ruleCategories, Calendar: cal})
	client := testutil.CreateTestClient(t, db)
	appt := testutil.CreateTestAppointment(t, db, client.ID, testutil.Day(2024, time.March, 10), "10:00", 2)

	_, err := svc.UpdateStatus(ctx, "", appt.ID, models.AppointmentStatusCancelled)
	testutil.AssertNoError(t, err)

	if len(cal.removed) != 1 || cal.removed[0] != appt.ID {
		t.Errorf("expected event removal for %s, got %v", appt.ID, cal.removed)
	}
	if len(cal.synced) != 0 {
		t.Errorf("expected no upsert, got %v", cal.synced)
	}
}

func TestListAppointments(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestAppointmentService(db)
	client := testutil.CreateTestClient(t, db)
	other := testutil.CreateTestClient(t, db)

	testutil.CreateTestAppointment(t, db, client.ID, testutil.Day(2024, time.March, 10), "14:00", 1)
	testutil.CreateTestAppointment(t, db, client.ID, testutil.Day(2024, time.March, 10), "09:00", 1)
	testutil.CreateTestAppointment(t, db, other.ID, testutil.Day(2024, time.March, 20), "09:00", 1)

	t.Run("ordered_by_date_and_time", func(t *testing.T) {
		list, err := svc.ListAppointments(ctx, AppointmentFilter{})
		testutil.AssertNoError(t, err)
		if len(list) != 3 {
			t.Fatalf("expected 3, got %d", len(list))
		}
		if list[0].StartTime != "09:00" || list[1].StartTime != "14:00" {
			t.Errorf("unexpected order: %s, %s", list[0].StartTime, list[1].StartTime)
		}
	})

	t.Run("filter_by_range_and_client", func(t *testing.T) {
		from := testutil.Day(2024, time.March, 15)
		list, err := svc.ListAppointments(ctx, AppointmentFilter{StartDate: &from})
		testutil.AssertNoError(t, err)
		if len(list) != 1 {
			t.Errorf("expected 1 after the 15th, got %d", len(list))
		}

		list, err = svc.ListAppointments(ctx, AppointmentFilter{ClientID: &client.ID})
		testutil.AssertNoError(t, err)
		if len(list) != 2 {
			t.Errorf("expected 2 for client, got %d", len(list))
		}
	})
}

func TestGetCalendarMonth(t *testing.T) {
	ctx := context.Background()

	t.Run("grid_and_edges", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)
		client := testutil.CreateTestClient(t, db)

		// March 2024 starts on a Friday, so the grid opens on Sunday Feb 25.
		testutil.CreateTestAppointment(t, db, client.ID, testutil.Day(2024, time.February, 26), "10:00", 1)
		testutil.CreateTestAppointment(t, db, client.ID, testutil.Day(2024, time.March, 10), "15:00", 1)
		testutil.CreateTestAppointment(t, db, client.ID, testutil.Day(2024, time.March, 10), "09:00", 1)

		month, err := svc.GetCalendarMonth(ctx, 2024, time.March)
		testutil.AssertNoError(t, err)

		if len(month.Cells) != 42 {
			t.Fatalf("expected 42 cells, got %d", len(month.Cells))
		}
		if month.Cells[0].Date != "2024-02-25" || month.Cells[0].IsCurrentMonth {
			t.Errorf("unexpected first cell: %+v", month.Cells[0])
		}
		if len(month.Cells[1].Appointments) != 1 {
			t.Errorf("expected the Feb 26 appointment in the grid, got %d", len(month.Cells[1].Appointments))
		}

		var tenth CalendarDay
		for _, c := range month.Cells {
			if c.Date == "2024-03-10" {
				tenth = c
			}
		}
		if len(tenth.Appointments) != 2 || tenth.Appointments[0].StartTime != "09:00" {
			t.Errorf("expected two sorted appointments on the 10th, got %+v", tenth.Appointments)
		}
		if month.Cells[41].Appointments == nil {
			t.Error("empty days should hold an empty list")
		}
	})

	t.Run("invalid_month", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAppointmentService(db)

		_, err := svc.GetCalendarMonth(ctx, 2024, time.Month(13))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("cache_is_invalidated_by_writes", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		m := metrics.New()
		svc := NewAppointmentService(db, AppointmentDeps{
			Categories: ruleCategories,
			Cache:      cache.NewMonthCache(cache.NewMemory(), time.Minute),
			Metrics:    m,
		})
		client := testutil.CreateTestClient(t, db)

		_, err := svc.GetCalendarMonth(ctx, 2024, time.March)
		testutil.AssertNoError(t, err)
		_, err = svc.GetCalendarMonth(ctx, 2024, time.March)
		testutil.AssertNoError(t, err)
		if hit := m.Snapshot().CacheHitRate; hit != 0.5 {
			t.Errorf("expected hit rate 0.5, got %v", hit)
		}

		_, err = svc.CreateAppointment(ctx, "", bookingInput(client.ID, testutil.Day(2024, time.March, 5), "10:00", 1))
		testutil.AssertNoError(t, err)

		month, err := svc.GetCalendarMonth(ctx, 2024, time.March)
		testutil.AssertNoError(t, err)
		found := false
		for _, c := range month.Cells {
			if c.Date == "2024-03-05" && len(c.Appointments) == 1 {
				found = true
			}
		}
		if !found {
			t.Error("expected the new appointment after invalidation")
		}
	})
}

func TestConcurrentBookingsSameSlot(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestAppointmentService(db)
	client := testutil.CreateTestClient(t, db)
	day := testutil.Day(2024, time.April, 2)

	const workers = 5
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		oks int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateAppointment(ctx, "", bookingInput(client.ID, day, "10:00", 2)); err == nil {
				mu.Lock()
				oks++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if oks != 1 {
		t.Errorf("expected exactly one booking to succeed, got %d", oks)
	}
}
