package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/models"
	"tattootrack/internal/schedule"
	"tattootrack/internal/services"
)

// AppointmentHandler handles the studio calendar.
type AppointmentHandler struct {
	appointmentService services.AppointmentServicer
	auditService       services.AuditServicer
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(appointmentService services.AppointmentServicer, auditService services.AuditServicer) *AppointmentHandler {
	return &AppointmentHandler{appointmentService: appointmentService, auditService: auditService}
}

// AppointmentRequest is the payload for creating or updating an
// appointment. On update omitted fields are left unchanged.
type AppointmentRequest struct {
	ClientID       *string                   `json:"client_id" binding:"omitempty,uuid"`
	Title          *string                   `json:"title" binding:"omitempty,min=1,max=200"`
	Description    *string                   `json:"description"`
	Date           *string                   `json:"date"`
	StartTime      *string                   `json:"start_time" binding:"omitempty,hhmm"`
	EstimatedHours *float64                  `json:"estimated_hours"`
	Status         *models.AppointmentStatus `json:"status" binding:"omitempty,appointment_status"`
	Price          *decimal.Decimal          `json:"price"`
	DepositAmount  *decimal.Decimal          `json:"deposit_amount"`
	DepositPaid    *bool                     `json:"deposit_paid"`
	Notes          *string                   `json:"notes"`
}

// UpdateStatusRequest changes the lifecycle state.
type UpdateStatusRequest struct {
	Status models.AppointmentStatus `json:"status" binding:"required,appointment_status"`
}

// UpdateDepositRequest marks the deposit paid or changes its amount.
type UpdateDepositRequest struct {
	DepositPaid   *bool            `json:"deposit_paid"`
	DepositAmount *decimal.Decimal `json:"deposit_amount"`
}

// ConflictResponse reports whether a proposed slot is taken.
type ConflictResponse struct {
	HasConflict bool               `json:"has_conflict"`
	Conflict    *schedule.Conflict `json:"conflict,omitempty"`
}

func bindAppointmentRequest(c *gin.Context) (services.AppointmentInput, bool) {
	var req AppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return services.AppointmentInput{}, false
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		respondWithError(c, err)
		return services.AppointmentInput{}, false
	}
	return services.AppointmentInput{
		ClientID:       req.ClientID,
		Title:          req.Title,
		Description:    req.Description,
		Date:           date,
		StartTime:      req.StartTime,
		EstimatedHours: req.EstimatedHours,
		Status:         req.Status,
		Price:          req.Price,
		DepositAmount:  req.DepositAmount,
		DepositPaid:    req.DepositPaid,
		Notes:          req.Notes,
	}, true
}

// ListAppointments handles listing appointments.
// @Summary     List appointments
// @Description Get appointments ordered by date and start time
// @Tags        appointments
// @Produce     json
// @Security    BearerAuth
// @Param       start_date query string false "First day (YYYY-MM-DD)"
// @Param       end_date   query string false "Last day (YYYY-MM-DD)"
// @Param       status     query string false "Status filter"
// @Param       client_id  query string false "Client filter"
// @Success     200 {array} models.Appointment "Appointments"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /appointments [get]
func (h *AppointmentHandler) ListAppointments(c *gin.Context) {
	var filter services.AppointmentFilter
	var err error
	if filter.StartDate, err = parseDateQuery(c, "start_date"); err != nil {
		respondWithError(c, err)
		return
	}
	if filter.EndDate, err = parseDateQuery(c, "end_date"); err != nil {
		respondWithError(c, err)
		return
	}
	if v := c.Query("status"); v != "" {
		status := models.AppointmentStatus(v)
		if !status.Valid() {
			respondWithError(c, apperrors.ErrInvalidStatus)
			return
		}
		filter.Status = &status
	}
	if v := c.Query("client_id"); v != "" {
		filter.ClientID = &v
	}

	appointments, err := h.appointmentService.ListAppointments(c.Request.Context(), filter)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appointments})
}

// GetAppointment handles retrieving an appointment.
// @Summary     Get appointment by ID
// @Tags        appointments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Appointment ID"
// @Success     200 {object} models.Appointment "Appointment details"
// @Failure     404 {object} ErrorResponse "Appointment not found"
// @Router      /appointments/{id} [get]
func (h *AppointmentHandler) GetAppointment(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	appt, err := h.appointmentService.GetAppointment(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment": appt})
}

// CreateAppointment handles booking a session.
// @Summary     Book an appointment
// @Description Book a session. Overlapping an active booking on the same day is rejected.
// @Tags        appointments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body AppointmentRequest true "Appointment details"
// @Success     201 {object} services.AppointmentResult "Appointment and generated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Client not found"
// @Failure     409 {object} ErrorResponse "Scheduling conflict"
// @Router      /appointments [post]
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	input, ok := bindAppointmentRequest(c)
	if !ok {
		return
	}

	result, err := h.appointmentService.CreateAppointment(c.Request.Context(), userID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	appt := result.Appointment
	h.auditService.Log(userID, "CREATE_APPOINTMENT", "appointment", appt.ID, c.ClientIP(),
		map[string]any{"date": schedule.DateKey(appt.Date), "start_time": appt.StartTime, "client_id": appt.ClientID})

	c.JSON(http.StatusCreated, result)
}

// UpdateAppointment handles a partial appointment update.
// @Summary     Update appointment
// @Tags        appointments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Appointment ID"
// @Param       request body AppointmentRequest true "Fields to change"
// @Success     200 {object} services.AppointmentResult "Appointment and generated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Appointment not found"
// @Failure     409 {object} ErrorResponse "Scheduling conflict"
// @Router      /appointments/{id} [put]
func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	input, ok := bindAppointmentRequest(c)
	if !ok {
		return
	}

	result, err := h.appointmentService.UpdateAppointment(c.Request.Context(), userID, id, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_APPOINTMENT", "appointment", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, result)
}

// UpdateStatus handles a lifecycle change.
// @Summary     Change appointment status
// @Description Completing a session books the remaining balance as income
// @Tags        appointments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Appointment ID"
// @Param       request body UpdateStatusRequest true "New status"
// @Success     200 {object} services.AppointmentResult "Appointment and generated transactions"
// @Failure     400 {object} ErrorResponse "Invalid status"
// @Failure     404 {object} ErrorResponse "Appointment not found"
// @Failure     409 {object} ErrorResponse "Scheduling conflict"
// @Router      /appointments/{id}/status [patch]
func (h *AppointmentHandler) UpdateStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.appointmentService.UpdateStatus(c.Request.Context(), userID, id, req.Status)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_APPOINTMENT_STATUS", "appointment", id, c.ClientIP(),
		map[string]any{"status": req.Status})

	c.JSON(http.StatusOK, result)
}

// UpdateDeposit handles deposit changes.
// @Summary     Change appointment deposit
// @Description Marking the deposit paid books it as income once
// @Tags        appointments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Appointment ID"
// @Param       request body UpdateDepositRequest true "Deposit fields"
// @Success     200 {object} services.AppointmentResult "Appointment and generated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Appointment not found"
// @Router      /appointments/{id}/deposit [patch]
func (h *AppointmentHandler) UpdateDeposit(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.appointmentService.UpdateDeposit(c.Request.Context(), userID, id, req.DepositPaid, req.DepositAmount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	changes := map[string]any{}
	if req.DepositPaid != nil {
		changes["deposit_paid"] = *req.DepositPaid
	}
	if req.DepositAmount != nil {
		changes["deposit_amount"] = req.DepositAmount.String()
	}
	h.auditService.Log(userID, "UPDATE_APPOINTMENT_DEPOSIT", "appointment", id, c.ClientIP(), changes)

	c.JSON(http.StatusOK, result)
}

// DeleteAppointment handles deleting an appointment.
// @Summary     Delete appointment
// @Description Delete an appointment. Its transactions are kept and unlinked.
// @Tags        appointments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Appointment ID"
// @Success     200 {object} MessageResponse "Appointment deleted"
// @Failure     404 {object} ErrorResponse "Appointment not found"
// @Router      /appointments/{id} [delete]
func (h *AppointmentHandler) DeleteAppointment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.appointmentService.DeleteAppointment(c.Request.Context(), userID, id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_APPOINTMENT", "appointment", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, MessageResponse{Message: "Appointment deleted successfully"})
}

// GetCalendarMonth handles the month view.
// @Summary     Month calendar
// @Description Get the 42-day grid for a month with appointments grouped by day
// @Tags        appointments
// @Produce     json
// @Security    BearerAuth
// @Param       year  path int true "Year"
// @Param       month path int true "Month (1-12)"
// @Success     200 {object} services.CalendarMonth "Month grid"
// @Failure     400 {object} ErrorResponse "Invalid year or month"
// @Router      /appointments/calendar/{year}/{month} [get]
func (h *AppointmentHandler) GetCalendarMonth(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid year"))
		return
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid month"))
		return
	}

	view, err := h.appointmentService.GetCalendarMonth(c.Request.Context(), year, time.Month(month))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CheckConflict handles probing a slot before booking.
// @Summary     Check a slot
// @Description Report the booking a proposed slot would overlap, if any
// @Tags        appointments
// @Produce     json
// @Security    BearerAuth
// @Param       date            query string true  "Day (YYYY-MM-DD)"
// @Param       start_time      query string true  "Start (HH:MM)"
// @Param       estimated_hours query number true  "Length in hours"
// @Param       exclude_id      query string false "Appointment being edited"
// @Success     200 {object} ConflictResponse "Conflict report"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /appointments/check-conflict [get]
func (h *AppointmentHandler) CheckConflict(c *gin.Context) {
	date, err := parseDateQuery(c, "date")
	if err != nil {
		respondWithError(c, err)
		return
	}
	if date == nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "date is required"))
		return
	}
	hours, err := strconv.ParseFloat(c.Query("estimated_hours"), 64)
	if err != nil || !(hours > 0 && hours <= services.MaxEstimatedHours) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "estimated_hours must be a positive number of at most 12"))
		return
	}

	conflict, err := h.appointmentService.CheckConflict(c.Request.Context(), *date, c.Query("start_time"), hours, c.Query("exclude_id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ConflictResponse{HasConflict: conflict != nil, Conflict: conflict})
}
