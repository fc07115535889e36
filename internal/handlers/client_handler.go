package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/pagination"
	"tattootrack/internal/services"
)

// ClientHandler handles client-related requests.
type ClientHandler struct {
	clientService services.ClientServicer
	auditService  services.AuditServicer
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(clientService services.ClientServicer, auditService services.AuditServicer) *ClientHandler {
	return &ClientHandler{clientService: clientService, auditService: auditService}
}

// ClientRequest is the payload for creating or updating a client. On update
// omitted fields are left unchanged.
type ClientRequest struct {
	Name         *string  `json:"name" binding:"omitempty,min=2,max=100"`
	Phone        *string  `json:"phone" binding:"omitempty,min=10,max=30"`
	Email        *string  `json:"email" binding:"omitempty,max=255"`
	Instagram    *string  `json:"instagram" binding:"omitempty,max=100"`
	BirthDate    *string  `json:"birth_date"`
	Address      *string  `json:"address"`
	City         *string  `json:"city" binding:"omitempty,max=100"`
	Allergies    *string  `json:"allergies"`
	MedicalNotes *string  `json:"medical_notes"`
	Notes        *string  `json:"notes"`
	TagIDs       []string `json:"tag_ids" binding:"omitempty,dive,uuid"`
}

// AddClientTagRequest attaches a tag to a client.
type AddClientTagRequest struct {
	TagID string `json:"tag_id" binding:"required,uuid"`
}

func (r ClientRequest) toInput() (services.ClientInput, error) {
	birthDate, err := parseDate("birth_date", r.BirthDate)
	if err != nil {
		return services.ClientInput{}, err
	}
	return services.ClientInput{
		Name:         r.Name,
		Phone:        r.Phone,
		Email:        r.Email,
		Instagram:    r.Instagram,
		BirthDate:    birthDate,
		Address:      r.Address,
		City:         r.City,
		Allergies:    r.Allergies,
		MedicalNotes: r.MedicalNotes,
		Notes:        r.Notes,
		TagIDs:       r.TagIDs,
	}, nil
}

// bindClientRequest binds and converts the body.
func bindClientRequest(c *gin.Context) (services.ClientInput, bool) {
	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return services.ClientInput{}, false
	}
	input, err := req.toInput()
	if err != nil {
		respondWithError(c, err)
		return services.ClientInput{}, false
	}
	return input, true
}

// ListClients handles listing clients.
// @Summary     List clients
// @Description Get a paginated list of clients, newest first
// @Tags        clients
// @Produce     json
// @Security    BearerAuth
// @Param       search    query string false "Matches name, phone, email or instagram"
// @Param       tag_ids   query string false "Comma separated tag IDs"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Client] "Paginated clients"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /clients [get]
func (h *ClientHandler) ListClients(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var filter services.ClientFilter
	if v := c.Query("search"); v != "" {
		filter.Search = &v
	}
	filter.TagIDs = splitList(c.Query("tag_ids"))

	result, err := h.clientService.ListClients(page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetClient handles retrieving a client.
// @Summary     Get client by ID
// @Description Get a client with tags, tattoos and references
// @Tags        clients
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Client ID"
// @Success     200 {object} models.Client "Client details"
// @Failure     400 {object} ErrorResponse "Invalid client ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Client not found"
// @Router      /clients/{id} [get]
func (h *ClientHandler) GetClient(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	client, err := h.clientService.GetClient(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"client": client})
}

// CreateClient handles creating a client.
// @Summary     Create a client
// @Tags        clients
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ClientRequest true "Client details"
// @Success     201 {object} models.Client "Client created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Tag not found"
// @Router      /clients [post]
func (h *ClientHandler) CreateClient(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	input, ok := bindClientRequest(c)
	if !ok {
		return
	}

	client, err := h.clientService.CreateClient(input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_CLIENT", "client", client.ID, c.ClientIP(),
		map[string]any{"name": client.Name})

	c.JSON(http.StatusCreated, gin.H{"client": client})
}

// UpdateClient handles a partial client update.
// @Summary     Update client
// @Tags        clients
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string        true "Client ID"
// @Param       request body ClientRequest true "Fields to change"
// @Success     200 {object} models.Client "Updated client"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Client or tag not found"
// @Router      /clients/{id} [put]
func (h *ClientHandler) UpdateClient(c *gin.Context) {
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

	input, ok := bindClientRequest(c)
	if !ok {
		return
	}

	client, err := h.clientService.UpdateClient(id, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_CLIENT", "client", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"client": client})
}

// DeleteClient handles deleting a client.
// @Summary     Delete client
// @Description Delete a client with its tattoos, references and appointments
// @Tags        clients
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Client ID"
// @Success     200 {object} MessageResponse "Client deleted"
// @Failure     400 {object} ErrorResponse "Invalid client ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Client not found"
// @Router      /clients/{id} [delete]
func (h *ClientHandler) DeleteClient(c *gin.Context) {
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

	if err := h.clientService.DeleteClient(id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_CLIENT", "client", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, MessageResponse{Message: "Client deleted successfully"})
}

// AddTag handles attaching a tag to a client.
// @Summary     Tag a client
// @Tags        clients
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Client ID"
// @Param       request body AddClientTagRequest true "Tag to attach"
// @Success     200 {object} models.Client "Updated client"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Client or tag not found"
// @Router      /clients/{id}/tags [post]
func (h *ClientHandler) AddTag(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AddClientTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	client, err := h.clientService.AddTag(id, req.TagID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"client": client})
}

// RemoveTag handles detaching a tag from a client.
// @Summary     Untag a client
// @Tags        clients
// @Produce     json
// @Security    BearerAuth
// @Param       id    path string true "Client ID"
// @Param       tagId path string true "Tag ID"
// @Success     200 {object} models.Client "Updated client"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     404 {object} ErrorResponse "Client or tag not found"
// @Router      /clients/{id}/tags/{tagId} [delete]
func (h *ClientHandler) RemoveTag(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	tagID, err := parsePathID(c, "tagId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	client, err := h.clientService.RemoveTag(id, tagID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"client": client})
}
