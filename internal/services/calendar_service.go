package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"tattootrack/internal/calendar"
	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/logger"
	"tattootrack/internal/metrics"
	"tattootrack/internal/models"
	"tattootrack/internal/schedule"
)

const (
	oauthStatePurpose = "google_calendar"
	oauthStateTTL     = 10 * time.Minute
)

// CalendarDeps configure the calendar service. A nil Gateway disables the
// integration.
type CalendarDeps struct {
	Gateway     calendar.Gateway
	StateSecret string
	Location    *time.Location
	Timeout     time.Duration
	Metrics     *metrics.Metrics
}

// calendarService connects users to Google Calendar and mirrors
// appointments into it.
type calendarService struct {
	db       *gorm.DB
	gateway  calendar.Gateway
	secret   []byte
	location *time.Location
	timeout  time.Duration
	metrics  *metrics.Metrics
}

// NewCalendarService creates a new CalendarServicer.
func NewCalendarService(db *gorm.DB, deps CalendarDeps) CalendarServicer {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &calendarService{
		db:       db,
		gateway:  deps.Gateway,
		secret:   []byte(deps.StateSecret),
		location: loc,
		timeout:  timeout,
		metrics:  deps.Metrics,
	}
}

type oauthStateClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// AuthURL returns the Google consent URL. The state parameter is a signed
// token naming the user so the callback needs no session.
func (s *calendarService) AuthURL(userID string) (string, error) {
	if s.gateway == nil {
		return "", apperrors.ErrCalendarNotConfigured
	}

	now := time.Now()
	claims := oauthStateClaims{
		Purpose: oauthStatePurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(oauthStateTTL)),
		},
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.gateway.AuthCodeURL(state), nil
}

func (s *calendarService) parseState(state string) (string, error) {
	claims := &oauthStateClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.Purpose != oauthStatePurpose || claims.Subject == "" {
		return "", apperrors.ErrInvalidState
	}
	return claims.Subject, nil
}

// Connect completes the OAuth flow and stores the user's tokens.
func (s *calendarService) Connect(ctx context.Context, state, code string) (*models.User, error) {
	if s.gateway == nil {
		return nil, apperrors.ErrCalendarNotConfigured
	}
	userID, err := s.parseState(state)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "authorization code is required")
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	token, profile, err := s.gateway.Exchange(ctx, code)
	if err != nil {
		logger.Get().Warnw("google oauth exchange failed", "error", err, "user_id", userID)
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "could not exchange authorization code")
	}

	updates := map[string]any{
		"google_email":        profile.Email,
		"google_access_token": token.AccessToken,
		"calendar_connected":  true,
	}
	if token.RefreshToken != "" {
		updates["google_refresh_token"] = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		updates["google_token_expiry"] = token.Expiry
	}
	if user.Picture == "" && profile.Picture != "" {
		updates["picture"] = profile.Picture
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("google calendar connected", "user_id", userID, "google_email", profile.Email)
	return &user, nil
}

// Disconnect clears the stored Google tokens.
func (s *calendarService) Disconnect(userID string) error {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !user.CalendarConnected {
		return apperrors.ErrCalendarNotConnected
	}

	if err := s.db.Model(&user).Updates(map[string]any{
		"google_access_token":  "",
		"google_refresh_token": "",
		"google_token_expiry":  nil,
		"calendar_connected":   false,
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// connectedUser returns the actor and its token, or nil when the actor has
// no calendar connection.
func (s *calendarService) connectedUser(ctx context.Context, actorID string) (*models.User, *oauth2.Token) {
	if s.gateway == nil || actorID == "" {
		return nil, nil
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", actorID).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Get().Warnw("failed to load user for calendar sync", "error", err, "user_id", actorID)
		}
		return nil, nil
	}
	if !user.CalendarConnected || (user.GoogleAccessToken == "" && user.GoogleRefresh == "") {
		return nil, nil
	}

	token := &oauth2.Token{
		AccessToken:  user.GoogleAccessToken,
		RefreshToken: user.GoogleRefresh,
		TokenType:    "Bearer",
	}
	if user.GoogleTokenExpiry != nil {
		token.Expiry = *user.GoogleTokenExpiry
	}
	return &user, token
}

// eventFor places the appointment at its wall-clock time in the studio zone.
func (s *calendarService) eventFor(appt *models.Appointment) (calendar.Event, error) {
	interval, err := schedule.SlotInterval(appt.StartTime, appt.EstimatedHours)
	if err != nil {
		return calendar.Event{}, err
	}
	day := appt.Date
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.location).
		Add(time.Duration(interval.Start) * time.Minute)
	end := start.Add(time.Duration(interval.End-interval.Start) * time.Minute)

	summary := appt.Title
	if appt.Client != nil && appt.Client.Name != "" {
		summary = appt.Title + " - " + appt.Client.Name
	}
	description := appt.Description
	if appt.Notes != "" {
		if description != "" {
			description += "\n\n"
		}
		description += appt.Notes
	}

	return calendar.Event{
		ID:          appt.GoogleEventID,
		Summary:     summary,
		Description: description,
		Start:       start,
		End:         end,
	}, nil
}

// SyncAppointment pushes the appointment to the actor's calendar. Failures
// are logged and counted only.
func (s *calendarService) SyncAppointment(ctx context.Context, actorID string, appt *models.Appointment) {
	user, token := s.connectedUser(ctx, actorID)
	if user == nil {
		return
	}

	ev, err := s.eventFor(appt)
	if err != nil {
		logger.Get().Warnw("cannot build calendar event", "error", err, "appointment_id", appt.ID)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	eventID, refreshed, err := s.gateway.Upsert(ctx, token, ev)
	if err != nil {
		s.metrics.IncrCalendarSync("upsert", "error")
		logger.Get().Warnw("google calendar sync failed", "error", err, "appointment_id", appt.ID, "user_id", user.ID)
		return
	}
	s.metrics.IncrCalendarSync("upsert", "success")
	s.storeToken(user, refreshed)

	if eventID != appt.GoogleEventID {
		appt.GoogleEventID = eventID
		if err := s.db.Model(&models.Appointment{}).Where("id = ?", appt.ID).
			UpdateColumn("google_event_id", eventID).Error; err != nil {
			logger.Get().Errorw("failed to store google event id", "error", err, "appointment_id", appt.ID)
		}
	}
}

// RemoveAppointment deletes the appointment's event, if it has one.
func (s *calendarService) RemoveAppointment(ctx context.Context, actorID string, appt *models.Appointment) {
	if appt.GoogleEventID == "" {
		return
	}
	user, token := s.connectedUser(ctx, actorID)
	if user == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	refreshed, err := s.gateway.Delete(ctx, token, appt.GoogleEventID)
	if err != nil {
		s.metrics.IncrCalendarSync("delete", "error")
		logger.Get().Warnw("google calendar delete failed", "error", err, "appointment_id", appt.ID, "user_id", user.ID)
		return
	}
	s.metrics.IncrCalendarSync("delete", "success")
	s.storeToken(user, refreshed)

	appt.GoogleEventID = ""
	if err := s.db.Model(&models.Appointment{}).Where("id = ?", appt.ID).
		UpdateColumn("google_event_id", "").Error; err != nil {
		logger.Get().Errorw("failed to clear google event id", "error", err, "appointment_id", appt.ID)
	}
}

func (s *calendarService) storeToken(user *models.User, token *oauth2.Token) {
	if token == nil {
		return
	}
	updates := map[string]any{"google_access_token": token.AccessToken}
	if token.RefreshToken != "" {
		updates["google_refresh_token"] = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		updates["google_token_expiry"] = token.Expiry
	}
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		logger.Get().Errorw("failed to persist refreshed google token", "error", err, "user_id", user.ID)
	}
}
