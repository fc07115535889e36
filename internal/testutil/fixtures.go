package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"tattootrack/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Default names of the income categories the appointment rules book into.
const (
	DepositCategoryName = "Sinal/Deposito"
	SessionCategoryName = "Sessao de Tatuagem"
)

// CreateTestUser creates a user with password "password123" and a unique username.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithUsername(t, db, fmt.Sprintf("artist%d", nextID()))
}

// CreateTestUserWithUsername creates a user with the given username.
func CreateTestUserWithUsername(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username: username,
		Password: string(hash),
		Name:     "Test Artist",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestClient creates a client with a unique name.
func CreateTestClient(t *testing.T, db *gorm.DB) *models.Client {
	t.Helper()

	n := nextID()
	client := &models.Client{
		Name:  fmt.Sprintf("Client %d", n),
		Phone: fmt.Sprintf("11999%06d", n),
	}
	if err := db.Create(client).Error; err != nil {
		t.Fatalf("failed to create test client: %v", err)
	}
	return client
}

// CreateTestTag creates a tag with a unique name.
func CreateTestTag(t *testing.T, db *gorm.DB) *models.Tag {
	t.Helper()

	tag := &models.Tag{Name: fmt.Sprintf("Tag %d", nextID()), Color: "#ff0000"}
	if err := db.Create(tag).Error; err != nil {
		t.Fatalf("failed to create test tag: %v", err)
	}
	return tag
}

// CreateTestCategory creates a category of the given type.
func CreateTestCategory(t *testing.T, db *gorm.DB, categoryType models.CategoryType) *models.Category {
	t.Helper()
	return CreateTestCategoryNamed(t, db, fmt.Sprintf("Test Category %d", nextID()), categoryType)
}

// CreateTestCategoryNamed creates a category with the given name and type.
func CreateTestCategoryNamed(t *testing.T, db *gorm.DB, name string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{Name: name, Type: categoryType}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// SeedRuleCategories creates the deposit and session income categories.
func SeedRuleCategories(t *testing.T, db *gorm.DB) (deposit, session *models.Category) {
	t.Helper()
	deposit = CreateTestCategoryNamed(t, db, DepositCategoryName, models.CategoryTypeIncome)
	session = CreateTestCategoryNamed(t, db, SessionCategoryName, models.CategoryTypeIncome)
	return deposit, session
}

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateTestAppointment books a scheduled appointment for the client.
func CreateTestAppointment(t *testing.T, db *gorm.DB, clientID string, date time.Time, startTime string, hours float64) *models.Appointment {
	t.Helper()

	appt := &models.Appointment{
		ClientID:       clientID,
		Title:          fmt.Sprintf("Session %d", nextID()),
		Date:           date,
		StartTime:      startTime,
		EstimatedHours: hours,
		Status:         models.AppointmentStatusScheduled,
		Price:          decimal.Zero,
		DepositAmount:  decimal.Zero,
	}
	if err := db.Create(appt).Error; err != nil {
		t.Fatalf("failed to create test appointment: %v", err)
	}
	return appt
}

// CreateTestTransaction creates a manual transaction in the given category.
func CreateTestTransaction(t *testing.T, db *gorm.DB, categoryID string, txType models.TransactionType, amount decimal.Decimal, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		Type:       txType,
		Amount:     amount,
		Date:       date,
		CategoryID: categoryID,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}
