package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/models"
	"tattootrack/internal/services"
)

const testTattooID = "0190a6b2-0000-7000-8000-0000000000d1"

type mockTattooService struct {
	listTattoosFn  func(clientID string) ([]models.Tattoo, error)
	createTattooFn func(clientID string, input services.TattooInput) (*models.Tattoo, error)
	updateTattooFn func(id string, input services.TattooInput) (*models.Tattoo, error)
	deleteTattooFn func(id string) error
}

func (m *mockTattooService) ListTattoos(clientID string) ([]models.Tattoo, error) {
	if m.listTattoosFn != nil {
		return m.listTattoosFn(clientID)
	}
	return []models.Tattoo{}, nil
}

func (m *mockTattooService) CreateTattoo(clientID string, input services.TattooInput) (*models.Tattoo, error) {
	if m.createTattooFn != nil {
		return m.createTattooFn(clientID, input)
	}
	return &models.Tattoo{}, nil
}

func (m *mockTattooService) UpdateTattoo(id string, input services.TattooInput) (*models.Tattoo, error) {
	if m.updateTattooFn != nil {
		return m.updateTattooFn(id, input)
	}
	return &models.Tattoo{}, nil
}

func (m *mockTattooService) DeleteTattoo(id string) error {
	if m.deleteTattooFn != nil {
		return m.deleteTattooFn(id)
	}
	return nil
}

var _ services.TattooServicer = (*mockTattooService)(nil)

func setupTattooRouter(handler *TattooHandler) *gin.Engine {
	r := gin.New()
	r.GET("/clients/:id/tattoos", handler.ListTattoos)
	r.POST("/clients/:id/tattoos", handler.CreateTattoo)
	r.PUT("/tattoos/:id", handler.UpdateTattoo)
	r.DELETE("/tattoos/:id", handler.DeleteTattoo)
	return r
}

func TestTattooHandler(t *testing.T) {
	t.Run("create parses price, date and images", func(t *testing.T) {
		svc := &mockTattooService{
			createTattooFn: func(clientID string, input services.TattooInput) (*models.Tattoo, error) {
				if clientID != testClientID {
					t.Errorf("unexpected client %s", clientID)
				}
				if input.Price == nil || input.Price.String() != "850.5" {
					t.Errorf("unexpected price %v", input.Price)
				}
				if input.Date == nil || input.Date.Month() != 3 {
					t.Errorf("unexpected date %v", input.Date)
				}
				if len(input.Images) != 2 {
					t.Errorf("expected 2 images, got %v", input.Images)
				}
				return &models.Tattoo{ClientID: clientID, Description: *input.Description}, nil
			},
		}
		rec := doRequest(setupTattooRouter(NewTattooHandler(svc)), "POST", "/clients/"+testClientID+"/tattoos",
			`{"description":"Rosa fine line","body_part":"antebraco","date":"2024-03-02","price":"850.50","images":["/uploads/a.png","/uploads/b.png"]}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("create returns 404 for unknown client", func(t *testing.T) {
		svc := &mockTattooService{
			createTattooFn: func(string, services.TattooInput) (*models.Tattoo, error) {
				return nil, apperrors.ErrClientNotFound
			},
		}
		rec := doRequest(setupTattooRouter(NewTattooHandler(svc)), "POST", "/clients/"+testClientID+"/tattoos",
			`{"description":"Rosa","body_part":"braco"}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("list returns tattoos", func(t *testing.T) {
		svc := &mockTattooService{
			listTattoosFn: func(string) ([]models.Tattoo, error) {
				return []models.Tattoo{{Description: "Rosa"}}, nil
			},
		}
		rec := doRequest(setupTattooRouter(NewTattooHandler(svc)), "GET", "/clients/"+testClientID+"/tattoos", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if list := parseJSON(t, rec)["tattoos"].([]any); len(list) != 1 {
			t.Errorf("expected 1 tattoo, got %d", len(list))
		}
	})

	t.Run("update rejects a bad date", func(t *testing.T) {
		rec := doRequest(setupTattooRouter(NewTattooHandler(&mockTattooService{})), "PUT", "/tattoos/"+testTattooID,
			`{"date":"yesterday"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("delete returns 404 when missing", func(t *testing.T) {
		svc := &mockTattooService{
			deleteTattooFn: func(string) error { return apperrors.ErrTattooNotFound },
		}
		rec := doRequest(setupTattooRouter(NewTattooHandler(svc)), "DELETE", "/tattoos/"+testTattooID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
