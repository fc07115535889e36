package services

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"tattootrack/internal/models"
	"tattootrack/internal/pagination"
	"tattootrack/internal/schedule"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(username, password, name string) (*models.User, error)
	Authenticate(username, password string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
}

// ClientFilter holds optional filter parameters for listing clients.
type ClientFilter struct {
	Search *string
	TagIDs []string
}

// ClientInput carries client fields. Nil pointers are left unchanged on
// update; TagIDs replaces the tag set when non-nil.
type ClientInput struct {
	Name         *string
	Phone        *string
	Email        *string
	Instagram    *string
	BirthDate    *time.Time
	Address      *string
	City         *string
	Allergies    *string
	MedicalNotes *string
	Notes        *string
	TagIDs       []string
}

// ClientServicer defines the contract for client records.
type ClientServicer interface {
	ListClients(page pagination.PageRequest, filter ClientFilter) (*pagination.PageResponse[models.Client], error)
	GetClient(id string) (*models.Client, error)
	CreateClient(input ClientInput) (*models.Client, error)
	UpdateClient(id string, input ClientInput) (*models.Client, error)
	DeleteClient(id string) error
	AddTag(clientID, tagID string) (*models.Client, error)
	RemoveTag(clientID, tagID string) (*models.Client, error)
}

// TagServicer defines the contract for client tags.
type TagServicer interface {
	ListTags() ([]models.Tag, error)
	CreateTag(name, color string) (*models.Tag, error)
	UpdateTag(id string, name, color *string) (*models.Tag, error)
	DeleteTag(id string) error
}

// TattooInput carries tattoo fields. Nil pointers are left unchanged on update.
type TattooInput struct {
	Description *string
	BodyPart    *string
	Date        *time.Time
	Price       *decimal.Decimal
	Notes       *string
	Images      []string
}

// TattooServicer defines the contract for a client's tattoo history.
type TattooServicer interface {
	ListTattoos(clientID string) ([]models.Tattoo, error)
	CreateTattoo(clientID string, input TattooInput) (*models.Tattoo, error)
	UpdateTattoo(id string, input TattooInput) (*models.Tattoo, error)
	DeleteTattoo(id string) error
}

// ReferenceServicer defines the contract for client reference images.
type ReferenceServicer interface {
	CreateReference(ctx context.Context, clientID string, image io.Reader, size int64, notes string) (*models.Reference, error)
	DeleteReference(ctx context.Context, id string) error
}

// AppointmentFilter holds optional filter parameters for listing appointments.
type AppointmentFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Status    *models.AppointmentStatus
	ClientID  *string
}

// AppointmentInput carries appointment fields. Nil pointers are left
// unchanged on update.
type AppointmentInput struct {
	ClientID       *string
	Title          *string
	Description    *string
	Date           *time.Time
	StartTime      *string
	EstimatedHours *float64
	Status         *models.AppointmentStatus
	Price          *decimal.Decimal
	DepositAmount  *decimal.Decimal
	DepositPaid    *bool
	Notes          *string
}

// AppointmentResult is an appointment write together with the automatic
// transactions it produced.
type AppointmentResult struct {
	Appointment           *models.Appointment  `json:"appointment"`
	GeneratedTransactions []models.Transaction `json:"generated_transactions"`
}

// CalendarDay is one cell of the month view.
type CalendarDay struct {
	Date           string               `json:"date"`
	IsCurrentMonth bool                 `json:"is_current_month"`
	Appointments   []models.Appointment `json:"appointments"`
}

// CalendarMonth is the 42-cell month view.
type CalendarMonth struct {
	Year  int           `json:"year"`
	Month int           `json:"month"`
	Cells []CalendarDay `json:"cells"`
}

// AppointmentServicer defines the contract for the studio calendar.
type AppointmentServicer interface {
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error)
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	CreateAppointment(ctx context.Context, actorID string, input AppointmentInput) (*AppointmentResult, error)
	UpdateAppointment(ctx context.Context, actorID, id string, input AppointmentInput) (*AppointmentResult, error)
	UpdateStatus(ctx context.Context, actorID, id string, status models.AppointmentStatus) (*AppointmentResult, error)
	UpdateDeposit(ctx context.Context, actorID, id string, paid *bool, amount *decimal.Decimal) (*AppointmentResult, error)
	DeleteAppointment(ctx context.Context, actorID, id string) error
	GetCalendarMonth(ctx context.Context, year int, month time.Month) (*CalendarMonth, error)
	CheckConflict(ctx context.Context, date time.Time, startTime string, estimatedHours float64, excludeID string) (*schedule.Conflict, error)
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	ListCategories(categoryType *models.CategoryType) ([]models.Category, error)
	GetCategoryByID(id string) (*models.Category, error)
	CreateCategory(name string, categoryType models.CategoryType, icon, color string) (*models.Category, error)
	UpdateCategory(id string, name, icon, color *string) (*models.Category, error)
	DeleteCategory(id string) error
	EnsureDefaults(ctx context.Context) error
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate      *time.Time
	ToDate        *time.Time
	Type          *models.TransactionType
	CategoryID    *string
	AppointmentID *string
}

// TransactionInput carries manual transaction fields. Nil pointers are left
// unchanged on update.
type TransactionInput struct {
	Type        *models.TransactionType
	Amount      *decimal.Decimal
	Description *string
	Date        *time.Time
	CategoryID  *string
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	ListTransactions(page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(id string) (*models.Transaction, error)
	CreateTransaction(input TransactionInput) (*models.Transaction, error)
	UpdateTransaction(id string, input TransactionInput) (*models.Transaction, error)
	DeleteTransaction(id string) error
}

// FinanceSummary totals income and expense over a period.
type FinanceSummary struct {
	Income           decimal.Decimal `json:"income"`
	Expense          decimal.Decimal `json:"expense"`
	Balance          decimal.Decimal `json:"balance"`
	TransactionCount int64           `json:"transaction_count"`
}

// CategoryTotal is the per-category slice of a period.
type CategoryTotal struct {
	CategoryID string              `json:"category_id"`
	Name       string              `json:"name"`
	Type       models.CategoryType `json:"type"`
	Color      string              `json:"color,omitempty"`
	Total      decimal.Decimal     `json:"total"`
	Count      int64               `json:"count"`
}

// FinanceReport combines the summary and category breakdown.
type FinanceReport struct {
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Summary    FinanceSummary  `json:"summary"`
	Categories []CategoryTotal `json:"categories"`
}

// FinanceServicer defines the contract for financial reporting.
type FinanceServicer interface {
	Summary(ctx context.Context, from, to time.Time) (*FinanceSummary, error)
	ByCategory(ctx context.Context, from, to time.Time) ([]CategoryTotal, error)
	Report(ctx context.Context, from, to time.Time) (*FinanceReport, error)
	Export(ctx context.Context, from, to time.Time, w io.Writer) error
}

// CalendarServicer defines the contract for the Google Calendar connection.
type CalendarServicer interface {
	AuthURL(userID string) (string, error)
	Connect(ctx context.Context, state, code string) (*models.User, error)
	Disconnect(userID string) error
	SyncAppointment(ctx context.Context, actorID string, appt *models.Appointment)
	RemoveAppointment(ctx context.Context, actorID string, appt *models.Appointment)
}

// AuditServicer defines the contract for audit log recording.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}
