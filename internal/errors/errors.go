// Package errors provides custom error types for the TattooTrack API.
// All service-layer errors should use AppError so responses stay consistent
// and internal details never reach clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
// Details carries structured context that is safe to expose, such as the
// appointment that caused a scheduling conflict.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so wrapped
// copies still match their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// WithDetails creates a new AppError carrying client-visible details.
func WithDetails(sentinel *AppError, message string, details any) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		Details:    details,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid username or password", StatusCode: http.StatusUnauthorized}
	ErrInvalidState       = &AppError{Code: "INVALID_OAUTH_STATE", Message: "Invalid or expired OAuth state", StatusCode: http.StatusBadRequest}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound      = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateUsername = &AppError{Code: "DUPLICATE_USERNAME", Message: "Username is already taken", StatusCode: http.StatusConflict}
)

// Client errors.
var (
	ErrClientNotFound    = &AppError{Code: "CLIENT_NOT_FOUND", Message: "Client not found", StatusCode: http.StatusNotFound}
	ErrTagNotFound       = &AppError{Code: "TAG_NOT_FOUND", Message: "Tag not found", StatusCode: http.StatusNotFound}
	ErrDuplicateTag      = &AppError{Code: "DUPLICATE_TAG", Message: "A tag with this name already exists", StatusCode: http.StatusConflict}
	ErrTattooNotFound    = &AppError{Code: "TATTOO_NOT_FOUND", Message: "Tattoo not found", StatusCode: http.StatusNotFound}
	ErrReferenceNotFound = &AppError{Code: "REFERENCE_NOT_FOUND", Message: "Reference not found", StatusCode: http.StatusNotFound}
)

// Scheduling errors.
var (
	ErrAppointmentNotFound  = &AppError{Code: "APPOINTMENT_NOT_FOUND", Message: "Appointment not found", StatusCode: http.StatusNotFound}
	ErrInvalidTimeFormat    = &AppError{Code: "INVALID_TIME_FORMAT", Message: "Time must be in HH:MM format", StatusCode: http.StatusBadRequest}
	ErrSchedulingConflict   = &AppError{Code: "SCHEDULING_CONFLICT", Message: "The time slot overlaps an existing appointment", StatusCode: http.StatusConflict}
	ErrOvernightAppointment = &AppError{Code: "OVERNIGHT_APPOINTMENT", Message: "Appointments cannot extend past midnight", StatusCode: http.StatusBadRequest}
	ErrInvalidStatus        = &AppError{Code: "INVALID_STATUS", Message: "Unsupported appointment status", StatusCode: http.StatusBadRequest}
)

// Category errors.
var (
	ErrCategoryNotFound      = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrCategoryInUse         = &AppError{Code: "CATEGORY_IN_USE", Message: "Category is used by existing transactions", StatusCode: http.StatusConflict}
	ErrDuplicateCategory     = &AppError{Code: "DUPLICATE_CATEGORY", Message: "A category with this name and type already exists", StatusCode: http.StatusConflict}
	ErrCategoryTypeMismatch  = &AppError{Code: "CATEGORY_TYPE_MISMATCH", Message: "Category type does not match transaction type", StatusCode: http.StatusBadRequest}
	ErrCategoryNotConfigured = &AppError{Code: "CATEGORY_NOT_CONFIGURED", Message: "Required category is not configured", StatusCode: http.StatusInternalServerError}
)

// Transaction errors.
var (
	ErrTransactionNotFound    = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrTransactionNotEditable = &AppError{Code: "TRANSACTION_NOT_EDITABLE", Message: "Automatic transactions cannot be edited", StatusCode: http.StatusBadRequest}
)

// Calendar errors.
var (
	ErrCalendarNotConfigured = &AppError{Code: "CALENDAR_NOT_CONFIGURED", Message: "Google Calendar integration is not configured", StatusCode: http.StatusServiceUnavailable}
	ErrCalendarNotConnected  = &AppError{Code: "CALENDAR_NOT_CONNECTED", Message: "Google Calendar is not connected", StatusCode: http.StatusBadRequest}
)

// Upload errors.
var (
	ErrInvalidFileType = &AppError{Code: "INVALID_FILE_TYPE", Message: "Only jpeg, png, gif and webp images are allowed", StatusCode: http.StatusBadRequest}
	ErrFileTooLarge    = &AppError{Code: "FILE_TOO_LARGE", Message: "File exceeds the maximum upload size", StatusCode: http.StatusRequestEntityTooLarge}
)
