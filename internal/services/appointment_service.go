package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tattootrack/internal/cache"
	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/ledger"
	"tattootrack/internal/logger"
	"tattootrack/internal/metrics"
	"tattootrack/internal/models"
	"tattootrack/internal/schedule"
)

var tracer = otel.Tracer("tattootrack/services")

// Bounds on a single session length, in hours.
const (
	MinEstimatedHours = 0.5
	MaxEstimatedHours = 12
)

// maxUpdateAttempts bounds the re-reads when an update races a move.
const maxUpdateAttempts = 3

var errDayMoved = errors.New("appointment moved to another day while waiting for the day lock")

// AppointmentDeps are the collaborators of the appointment service.
// Everything except Categories is optional.
type AppointmentDeps struct {
	Categories ledger.Categories
	Cache      *cache.MonthCache
	Calendar   CalendarServicer
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

// appointmentService handles the studio calendar.
type appointmentService struct {
	db       *gorm.DB
	engine   *ledger.Engine
	locks    *dayLocks
	cache    *cache.MonthCache
	calendar CalendarServicer
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewAppointmentService creates a new AppointmentServicer.
func NewAppointmentService(db *gorm.DB, deps AppointmentDeps) AppointmentServicer {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &appointmentService{
		db:       db,
		engine:   ledger.NewEngine(deps.Categories).WithClock(now),
		locks:    newDayLocks(),
		cache:    deps.Cache,
		calendar: deps.Calendar,
		metrics:  deps.Metrics,
		now:      now,
	}
}

// clientSummary limits the preloaded client to what lists and calendars show.
func clientSummary(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "phone", "instagram")
}

// ListAppointments returns appointments ordered by date and start time.
func (s *appointmentService) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error) {
	query := s.db.WithContext(ctx).Model(&models.Appointment{})
	if filter.StartDate != nil {
		query = query.Where("date >= ?", schedule.NormalizeDay(*filter.StartDate))
	}
	if filter.EndDate != nil {
		query = query.Where("date <= ?", schedule.NormalizeDay(*filter.EndDate))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}

	appointments := []models.Appointment{}
	if err := query.Preload("Client", clientSummary).
		Order("date ASC").Order("start_time ASC").
		Find(&appointments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return appointments, nil
}

// GetAppointment retrieves an appointment with its client.
func (s *appointmentService) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	return s.find(s.db.WithContext(ctx), id)
}

func (s *appointmentService) find(db *gorm.DB, id string) (*models.Appointment, error) {
	var appt models.Appointment
	err := db.Preload("Client", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "name", "phone", "email", "instagram")
	}).Where("id = ?", id).First(&appt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAppointmentNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &appt, nil
}

// CheckConflict reports the booking a proposed slot would collide with.
func (s *appointmentService) CheckConflict(ctx context.Context, date time.Time, startTime string, estimatedHours float64, excludeID string) (*schedule.Conflict, error) {
	if _, err := schedule.TimeToMinutes(startTime); err != nil {
		return nil, apperrors.ErrInvalidTimeFormat
	}
	if err := validateHours(estimatedHours); err != nil {
		return nil, err
	}
	return s.findConflict(s.db.WithContext(ctx), schedule.NormalizeDay(date), startTime, estimatedHours, excludeID)
}

func (s *appointmentService) findConflict(db *gorm.DB, day time.Time, startTime string, estimatedHours float64, excludeID string) (*schedule.Conflict, error) {
	var sameDay []models.Appointment
	if err := db.Preload("Client", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "name")
	}).Where("date = ? AND status <> ?", day, models.AppointmentStatusCancelled).
		Order("created_at ASC").
		Find(&sameDay).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	slots := make([]schedule.Slot, 0, len(sameDay))
	for _, a := range sameDay {
		slot := schedule.Slot{
			ID:             a.ID,
			Status:         a.Status,
			StartTime:      a.StartTime,
			EstimatedHours: a.EstimatedHours,
			Title:          a.Title,
		}
		if a.Client != nil {
			slot.ClientName = a.Client.Name
		}
		slots = append(slots, slot)
	}

	conflict, err := schedule.FindConflict(schedule.Candidate{StartTime: startTime, EstimatedHours: estimatedHours}, slots, excludeID)
	if errors.Is(err, schedule.ErrInvalidTimeFormat) {
		return nil, apperrors.ErrInvalidTimeFormat
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return conflict, nil
}

func (s *appointmentService) conflictError(c *schedule.Conflict) error {
	s.metrics.IncrConflict()
	return apperrors.WithDetails(apperrors.ErrSchedulingConflict,
		fmt.Sprintf("Time slot taken by %q with %s (%s - %s)", c.Title, c.ClientName, c.StartTime, c.EndTime),
		c)
}

// validateSlot normalizes the start time and rejects out-of-range lengths
// and sessions that run past midnight.
func validateSlot(startTime string, estimatedHours float64) (string, error) {
	normalized, err := schedule.NormalizeTime(strings.TrimSpace(startTime))
	if err != nil {
		return "", apperrors.ErrInvalidTimeFormat
	}
	if err := validateHours(estimatedHours); err != nil {
		return "", err
	}
	end, err := schedule.IntervalEnd(normalized, estimatedHours)
	if err != nil {
		return "", apperrors.ErrInvalidTimeFormat
	}
	if end > schedule.MinutesPerDay {
		return "", apperrors.ErrOvernightAppointment
	}
	return normalized, nil
}

// validateHours rejects lengths outside the session bounds, NaN included.
func validateHours(estimatedHours float64) error {
	if !(estimatedHours >= MinEstimatedHours && estimatedHours <= MaxEstimatedHours) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("estimated_hours must be between %.1f and %d", MinEstimatedHours, MaxEstimatedHours))
	}
	return nil
}

func validateMoney(field string, v *decimal.Decimal) error {
	if v != nil && v.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, field+" cannot be negative")
	}
	return nil
}

func snapshotOf(a *models.Appointment) schedule.Snapshot {
	return schedule.Snapshot{
		Status:        a.Status,
		DepositPaid:   a.DepositPaid,
		DepositAmount: a.DepositAmount,
		DepositPaidAt: a.DepositPaidAt,
		Price:         a.Price,
	}
}

func applySnapshot(a *models.Appointment, snap schedule.Snapshot) {
	a.Status = snap.Status
	a.DepositPaid = snap.DepositPaid
	a.DepositAmount = snap.DepositAmount
	a.DepositPaidAt = snap.DepositPaidAt
	a.Price = snap.Price
}

func loadClient(tx *gorm.DB, id string) (*models.Client, error) {
	var client models.Client
	if err := tx.Select("id", "name", "phone", "instagram").Where("id = ?", id).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrClientNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &client, nil
}

// CreateAppointment books a new appointment. The conflict check, the insert
// and any automatic transactions commit together.
func (s *appointmentService) CreateAppointment(ctx context.Context, actorID string, input AppointmentInput) (*AppointmentResult, error) {
	ctx, span := tracer.Start(ctx, "appointments.Create")
	defer span.End()

	if input.ClientID == nil || input.Title == nil || input.Date == nil || input.StartTime == nil || input.EstimatedHours == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "client_id, title, date, start_time and estimated_hours are required")
	}
	title := strings.TrimSpace(*input.Title)
	if len(title) < 2 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "title must have at least 2 characters")
	}
	startTime, err := validateSlot(*input.StartTime, *input.EstimatedHours)
	if err != nil {
		return nil, err
	}
	if err := validateMoney("price", input.Price); err != nil {
		return nil, err
	}
	if err := validateMoney("deposit_amount", input.DepositAmount); err != nil {
		return nil, err
	}

	status := models.AppointmentStatusScheduled
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, apperrors.ErrInvalidStatus
		}
		status = *input.Status
	}

	day := schedule.NormalizeDay(*input.Date)
	appt := &models.Appointment{
		ClientID:       *input.ClientID,
		Title:          title,
		Date:           day,
		StartTime:      startTime,
		EstimatedHours: *input.EstimatedHours,
	}
	if input.Description != nil {
		appt.Description = *input.Description
	}
	if input.Notes != nil {
		appt.Notes = *input.Notes
	}
	if actorID != "" {
		appt.CreatedByID = &actorID
	}

	transition := schedule.Apply(schedule.ZeroSnapshot(), schedule.Change{
		Status:        &status,
		DepositPaid:   input.DepositPaid,
		DepositAmount: input.DepositAmount,
		Price:         input.Price,
	}, s.now())
	applySnapshot(appt, transition.Next)

	span.SetAttributes(attribute.String("appointment.date", schedule.DateKey(day)))

	var entries []ledger.Entry
	err = inDayTransaction(ctx, s.db, s.locks, []time.Time{day}, func(tx *gorm.DB) error {
		client, err := loadClient(tx, appt.ClientID)
		if err != nil {
			return err
		}

		if appt.Status != models.AppointmentStatusCancelled {
			conflict, err := s.findConflict(tx, day, startTime, appt.EstimatedHours, "")
			if err != nil {
				return err
			}
			if conflict != nil {
				return s.conflictError(conflict)
			}
		}

		if err := tx.Omit(clause.Associations).Create(appt).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		appt.Client = client

		entries, err = s.engine.Evaluate(ctx, ledger.NewGormStore(tx), s.subject(appt), transition)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.afterWrite(ctx, actorID, appt, false)
	return s.result(appt, entries), nil
}

// UpdateAppointment applies a partial update. The slot is re-checked unless
// the appointment ends up cancelled.
func (s *appointmentService) UpdateAppointment(ctx context.Context, actorID, id string, input AppointmentInput) (*AppointmentResult, error) {
	ctx, span := tracer.Start(ctx, "appointments.Update")
	defer span.End()
	return s.update(ctx, actorID, id, input, true)
}

// UpdateStatus moves an appointment to a new status. Bringing a cancelled
// appointment back is checked for conflicts.
func (s *appointmentService) UpdateStatus(ctx context.Context, actorID, id string, status models.AppointmentStatus) (*AppointmentResult, error) {
	ctx, span := tracer.Start(ctx, "appointments.UpdateStatus")
	defer span.End()

	if !status.Valid() {
		return nil, apperrors.ErrInvalidStatus
	}
	return s.update(ctx, actorID, id, AppointmentInput{Status: &status}, false)
}

// UpdateDeposit sets the deposit flag and/or amount.
func (s *appointmentService) UpdateDeposit(ctx context.Context, actorID, id string, paid *bool, amount *decimal.Decimal) (*AppointmentResult, error) {
	ctx, span := tracer.Start(ctx, "appointments.UpdateDeposit")
	defer span.End()

	if paid == nil && amount == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "deposit_paid or deposit_amount is required")
	}
	return s.update(ctx, actorID, id, AppointmentInput{DepositPaid: paid, DepositAmount: amount}, false)
}

func (s *appointmentService) update(ctx context.Context, actorID, id string, input AppointmentInput, recheck bool) (*AppointmentResult, error) {
	if input.Title != nil && len(strings.TrimSpace(*input.Title)) < 2 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "title must have at least 2 characters")
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.ErrInvalidStatus
	}
	if err := validateMoney("price", input.Price); err != nil {
		return nil, err
	}
	if err := validateMoney("deposit_amount", input.DepositAmount); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		current, err := s.find(s.db.WithContext(ctx), id)
		if err != nil {
			return nil, err
		}
		appt, entries, err := s.applyUpdate(ctx, current.Date, id, input, recheck)
		if errors.Is(err, errDayMoved) {
			if attempt < maxUpdateAttempts {
				continue
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err != nil {
			return nil, err
		}

		s.afterWrite(ctx, actorID, appt, false)
		return s.result(appt, entries), nil
	}
}

// applyUpdate writes one update while holding the locks for lockedDay and
// the target day. It fails with errDayMoved when a concurrent write moved
// the appointment off lockedDay after it was read.
func (s *appointmentService) applyUpdate(ctx context.Context, lockedDay time.Time, id string, input AppointmentInput, recheck bool) (*models.Appointment, []ledger.Entry, error) {
	lockedDay = schedule.NormalizeDay(lockedDay)
	days := []time.Time{lockedDay}
	if input.Date != nil {
		days = append(days, schedule.NormalizeDay(*input.Date))
	}

	var (
		appt    *models.Appointment
		entries []ledger.Entry
	)
	err := inDayTransaction(ctx, s.db, s.locks, days, func(tx *gorm.DB) error {
		existing, err := s.find(tx, id)
		if err != nil {
			return err
		}
		if !schedule.NormalizeDay(existing.Date).Equal(lockedDay) {
			return errDayMoved
		}
		next := *existing

		if input.ClientID != nil && *input.ClientID != existing.ClientID {
			client, err := loadClient(tx, *input.ClientID)
			if err != nil {
				return err
			}
			next.ClientID = client.ID
			next.Client = client
		}
		if input.Title != nil {
			next.Title = strings.TrimSpace(*input.Title)
		}
		if input.Description != nil {
			next.Description = *input.Description
		}
		if input.Notes != nil {
			next.Notes = *input.Notes
		}
		if input.Date != nil {
			next.Date = schedule.NormalizeDay(*input.Date)
		}
		if input.StartTime != nil {
			next.StartTime = *input.StartTime
		}
		if input.EstimatedHours != nil {
			next.EstimatedHours = *input.EstimatedHours
		}

		slotChanged := input.Date != nil || input.StartTime != nil || input.EstimatedHours != nil
		if slotChanged {
			normalized, err := validateSlot(next.StartTime, next.EstimatedHours)
			if err != nil {
				return err
			}
			next.StartTime = normalized
		}

		transition := schedule.Apply(snapshotOf(existing), schedule.Change{
			Status:        input.Status,
			DepositPaid:   input.DepositPaid,
			DepositAmount: input.DepositAmount,
			Price:         input.Price,
		}, s.now())
		applySnapshot(&next, transition.Next)

		if next.Status != models.AppointmentStatusCancelled && (recheck || slotChanged || transition.Reactivates()) {
			conflict, err := s.findConflict(tx, next.Date, next.StartTime, next.EstimatedHours, next.ID)
			if err != nil {
				return err
			}
			if conflict != nil {
				return s.conflictError(conflict)
			}
		}

		if err := tx.Omit(clause.Associations).Save(&next).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		entries, err = s.engine.Evaluate(ctx, ledger.NewGormStore(tx), s.subject(&next), transition)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		appt = &next
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return appt, entries, nil
}

// DeleteAppointment removes an appointment. Its transactions are kept and
// unlinked.
func (s *appointmentService) DeleteAppointment(ctx context.Context, actorID, id string) error {
	ctx, span := tracer.Start(ctx, "appointments.Delete")
	defer span.End()

	appt, err := s.find(s.db.WithContext(ctx), id)
	if err != nil {
		return err
	}

	err = inDayTransaction(ctx, s.db, s.locks, []time.Time{appt.Date}, func(tx *gorm.DB) error {
		if err := tx.Model(&models.Transaction{}).
			Where("appointment_id = ?", appt.ID).
			Update("appointment_id", nil).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(&models.Appointment{}, "id = ?", appt.ID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.afterWrite(ctx, actorID, appt, true)
	return nil
}

// GetCalendarMonth builds the 42-day grid for a month with each day's
// appointments sorted by start time.
func (s *appointmentService) GetCalendarMonth(ctx context.Context, year int, month time.Month) (*CalendarMonth, error) {
	ctx, span := tracer.Start(ctx, "appointments.CalendarMonth")
	defer span.End()

	if month < time.January || month > time.December || year < 1 || year > 9999 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid year or month")
	}

	var cacheKey cache.Key
	if s.cache != nil {
		data, key, ok := s.cache.Get(ctx, year, month)
		cacheKey = key
		if ok {
			var cached CalendarMonth
			if err := json.Unmarshal(data, &cached); err == nil {
				s.metrics.IncrCacheHit()
				return &cached, nil
			}
		}
		s.metrics.IncrCacheMiss()
	}

	from, to := schedule.GridRange(year, month)
	var appointments []models.Appointment
	if err := s.db.WithContext(ctx).
		Preload("Client", clientSummary).
		Where("date >= ? AND date < ?", from, to).
		Order("date ASC").Order("start_time ASC").
		Find(&appointments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	byDay := schedule.GroupByDate(appointments, func(a models.Appointment) time.Time { return a.Date })
	grid := schedule.BuildMonthGrid(year, month)

	result := &CalendarMonth{Year: year, Month: int(month), Cells: make([]CalendarDay, len(grid))}
	for i, cell := range grid {
		key := schedule.DateKey(cell.Date)
		list := byDay[key]
		if list == nil {
			list = []models.Appointment{}
		}
		schedule.SortByStartTime(list, func(a models.Appointment) string { return a.StartTime })
		result.Cells[i] = CalendarDay{Date: key, IsCurrentMonth: cell.IsCurrentMonth, Appointments: list}
	}

	if s.cache != nil && cacheKey != "" {
		if data, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data); err != nil {
				logger.Get().Warnw("failed to cache calendar month", "error", err, "year", year, "month", int(month))
			}
		}
	}
	return result, nil
}

func (s *appointmentService) subject(a *models.Appointment) ledger.Subject {
	subject := ledger.Subject{AppointmentID: a.ID, Title: a.Title}
	if a.Client != nil {
		subject.ClientName = a.Client.Name
	}
	return subject
}

func (s *appointmentService) result(appt *models.Appointment, entries []ledger.Entry) *AppointmentResult {
	generated := make([]models.Transaction, 0, len(entries))
	for _, e := range entries {
		s.metrics.IncrAutomaticTransaction(e.Rule)
		logger.Get().Infow("automatic transaction recorded",
			"rule", e.Rule,
			"appointment_id", appt.ID,
			"transaction_id", e.Transaction.ID,
			"amount", e.Transaction.Amount.StringFixed(2),
		)
		generated = append(generated, *e.Transaction)
	}
	return &AppointmentResult{Appointment: appt, GeneratedTransactions: generated}
}

// afterWrite runs the best-effort side effects of a committed write.
func (s *appointmentService) afterWrite(ctx context.Context, actorID string, appt *models.Appointment, deleted bool) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.Get().Warnw("failed to invalidate calendar cache", "error", err, "appointment_id", appt.ID)
		}
	}

	if s.calendar == nil {
		return
	}
	if deleted || appt.Status == models.AppointmentStatusCancelled {
		s.calendar.RemoveAppointment(ctx, actorID, appt)
		return
	}
	s.calendar.SyncAppointment(ctx, actorID, appt)
}
