package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tattootrack/internal/models"
	"tattootrack/internal/pagination"
	"tattootrack/internal/testutil"
)

func TestCreateClient(t *testing.T) {
	t.Run("valid_with_tags", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewClientService(db)
		vip := testutil.CreateTestTag(t, db)

		client, err := svc.CreateClient(ClientInput{
			Name:   ptr(" Ana Souza "),
			Phone:  ptr("11987654321"),
			Email:  ptr("ana@example.test"),
			TagIDs: []string{vip.ID, vip.ID},
		})
		testutil.AssertNoError(t, err)

		if client.Name != "Ana Souza" {
			t.Errorf("expected trimmed name, got %q", client.Name)
		}
		if len(client.Tags) != 1 || client.Tags[0].ID != vip.ID {
			t.Errorf("expected one tag, got %+v", client.Tags)
		}
	})

	t.Run("validation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewClientService(db)

		_, err := svc.CreateClient(ClientInput{Name: ptr("A"), Phone: ptr("11987654321")})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		_, err = svc.CreateClient(ClientInput{Name: ptr("Ana"), Phone: ptr("123")})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		_, err = svc.CreateClient(ClientInput{Name: ptr("Ana"), Phone: ptr("11987654321"), Email: ptr("not-an-email")})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		_, err = svc.CreateClient(ClientInput{Name: ptr("Ana")})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("unknown_tag", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewClientService(db)

		_, err := svc.CreateClient(ClientInput{
			Name:   ptr("Ana"),
			Phone:  ptr("11987654321"),
			TagIDs: []string{"0190a6b2-0000-7000-8000-000000000000"},
		})
		testutil.AssertAppError(t, err, "TAG_NOT_FOUND")

		var count int64
		db.Model(&models.Client{}).Count(&count)
		if count != 0 {
			t.Errorf("expected the insert to roll back, got %d clients", count)
		}
	})
}

func TestListClients(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewClientService(db)
	vip := testutil.CreateTestTag(t, db)

	ana, err := svc.CreateClient(ClientInput{Name: ptr("Ana Souza"), Phone: ptr("11987654321"), Instagram: ptr("@ana.ink")})
	testutil.AssertNoError(t, err)
	_, err = svc.CreateClient(ClientInput{Name: ptr("Bruno Lima"), Phone: ptr("21912345678"), TagIDs: []string{vip.ID}})
	testutil.AssertNoError(t, err)
	_, err = svc.CreateClient(ClientInput{Name: ptr("Carla Dias"), Phone: ptr("31955554444"), Email: ptr("carla@ANA.test")})
	testutil.AssertNoError(t, err)

	page := pagination.PageRequest{Page: 1, PageSize: 20}

	t.Run("search_is_case_insensitive", func(t *testing.T) {
		result, err := svc.ListClients(page, ClientFilter{Search: ptr("ANA")})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 2 {
			t.Errorf("expected Ana and Carla, got %d", result.TotalItems)
		}
	})

	t.Run("search_by_phone", func(t *testing.T) {
		result, err := svc.ListClients(page, ClientFilter{Search: ptr("2191")})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 1 || result.Data[0].Name != "Bruno Lima" {
			t.Errorf("expected Bruno, got %+v", result.Data)
		}
	})

	t.Run("filter_by_tag", func(t *testing.T) {
		result, err := svc.ListClients(page, ClientFilter{TagIDs: []string{vip.ID}})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 1 || len(result.Data[0].Tags) != 1 {
			t.Errorf("expected one tagged client, got %+v", result.Data)
		}
	})

	t.Run("paginates", func(t *testing.T) {
		result, err := svc.ListClients(pagination.PageRequest{Page: 2, PageSize: 2}, ClientFilter{})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 3 || result.TotalPages != 2 || len(result.Data) != 1 {
			t.Errorf("unexpected page: %+v", result)
		}
	})

	t.Run("get_with_details", func(t *testing.T) {
		client, err := svc.GetClient(ana.ID)
		testutil.AssertNoError(t, err)
		if client.Tattoos == nil && client.References == nil && client.Tags == nil {
			t.Error("expected relations to be loaded")
		}
	})
}

func TestUpdateClient(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewClientService(db)
	first := testutil.CreateTestTag(t, db)
	second := testutil.CreateTestTag(t, db)

	client, err := svc.CreateClient(ClientInput{Name: ptr("Ana"), Phone: ptr("11987654321"), TagIDs: []string{first.ID}})
	testutil.AssertNoError(t, err)

	t.Run("partial_keeps_tags", func(t *testing.T) {
		updated, err := svc.UpdateClient(client.ID, ClientInput{Allergies: ptr("latex")})
		testutil.AssertNoError(t, err)
		if updated.Allergies != "latex" || updated.Phone != "11987654321" {
			t.Errorf("unexpected update: %+v", updated)
		}
		if len(updated.Tags) != 1 {
			t.Errorf("expected tags unchanged, got %d", len(updated.Tags))
		}
	})

	t.Run("replace_tags", func(t *testing.T) {
		updated, err := svc.UpdateClient(client.ID, ClientInput{TagIDs: []string{second.ID}})
		testutil.AssertNoError(t, err)
		if len(updated.Tags) != 1 || updated.Tags[0].ID != second.ID {
			t.Errorf("expected only the second tag, got %+v", updated.Tags)
		}

		updated, err = svc.UpdateClient(client.ID, ClientInput{TagIDs: []string{}})
		testutil.AssertNoError(t, err)
		if len(updated.Tags) != 0 {
			t.Errorf("expected tags cleared, got %d", len(updated.Tags))
		}
	})

	t.Run("not_found", func(t *testing.T) {
		_, err := svc.UpdateClient("0190a6b2-0000-7000-8000-000000000000", ClientInput{Notes: ptr("x")})
		testutil.AssertAppError(t, err, "CLIENT_NOT_FOUND")
	})
}

func TestClientTags(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewClientService(db)
	client := testutil.CreateTestClient(t, db)
	tag := testutil.CreateTestTag(t, db)

	updated, err := svc.AddTag(client.ID, tag.ID)
	testutil.AssertNoError(t, err)
	if len(updated.Tags) != 1 {
		t.Fatalf("expected 1 tag, got %d", len(updated.Tags))
	}

	updated, err = svc.AddTag(client.ID, tag.ID)
	testutil.AssertNoError(t, err)
	if len(updated.Tags) != 1 {
		t.Errorf("adding twice should be a no-op, got %d tags", len(updated.Tags))
	}

	updated, err = svc.RemoveTag(client.ID, tag.ID)
	testutil.AssertNoError(t, err)
	if len(updated.Tags) != 0 {
		t.Errorf("expected no tags, got %d", len(updated.Tags))
	}

	_, err = svc.RemoveTag(client.ID, tag.ID)
	testutil.AssertAppError(t, err, "TAG_NOT_FOUND")
	_, err = svc.AddTag(client.ID, "0190a6b2-0000-7000-8000-000000000000")
	testutil.AssertAppError(t, err, "TAG_NOT_FOUND")
}

func TestDeleteClient(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewClientService(db)
	deposit, _ := testutil.SeedRuleCategories(t, db)
	tag := testutil.CreateTestTag(t, db)
	client := testutil.CreateTestClient(t, db)
	_, err := svc.AddTag(client.ID, tag.ID)
	testutil.AssertNoError(t, err)

	appt := testutil.CreateTestAppointment(t, db, client.ID, testutil.Day(2024, time.March, 10), "10:00", 2)
	tx := testutil.CreateTestTransaction(t, db, deposit.ID, models.TransactionTypeIncome, decimal.NewFromInt(100), time.Now())
	db.Model(tx).Update("appointment_id", appt.ID)
	db.Create(&models.Tattoo{ClientID: client.ID, Description: "Rose", BodyPart: "arm"})

	testutil.AssertNoError(t, svc.DeleteClient(client.ID))

	_, err = svc.GetClient(client.ID)
	testutil.AssertAppError(t, err, "CLIENT_NOT_FOUND")

	var counts struct{ appts, tattoos, links int64 }
	db.Model(&models.Appointment{}).Where("client_id = ?", client.ID).Count(&counts.appts)
	db.Model(&models.Tattoo{}).Where("client_id = ?", client.ID).Count(&counts.tattoos)
	db.Model(&models.ClientTag{}).Where("client_id = ?", client.ID).Count(&counts.links)
	if counts.appts != 0 || counts.tattoos != 0 || counts.links != 0 {
		t.Errorf("expected related rows removed, got %+v", counts)
	}

	var kept models.Transaction
	testutil.AssertNoError(t, db.First(&kept, "id = ?", tx.ID).Error)
	if kept.AppointmentID != nil {
		t.Error("expected transaction to be unlinked from the deleted appointment")
	}

	err = svc.DeleteClient(client.ID)
	testutil.AssertAppError(t, err, "CLIENT_NOT_FOUND")
}
