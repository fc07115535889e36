package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/services"
)

// TattooHandler handles a client's tattoo history.
type TattooHandler struct {
	tattooService services.TattooServicer
}

// NewTattooHandler creates a new TattooHandler.
func NewTattooHandler(tattooService services.TattooServicer) *TattooHandler {
	return &TattooHandler{tattooService: tattooService}
}

// TattooRequest is the payload for creating or updating a tattoo.
type TattooRequest struct {
	Description *string          `json:"description" binding:"omitempty,min=1"`
	BodyPart    *string          `json:"body_part" binding:"omitempty,min=1,max=100"`
	Date        *string          `json:"date"`
	Price       *decimal.Decimal `json:"price"`
	Notes       *string          `json:"notes"`
	Images      []string         `json:"images" binding:"omitempty,dive,min=1"`
}

func bindTattooRequest(c *gin.Context) (services.TattooInput, bool) {
	var req TattooRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return services.TattooInput{}, false
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		respondWithError(c, err)
		return services.TattooInput{}, false
	}
	return services.TattooInput{
		Description: req.Description,
		BodyPart:    req.BodyPart,
		Date:        date,
		Price:       req.Price,
		Notes:       req.Notes,
		Images:      req.Images,
	}, true
}

// ListTattoos handles listing a client's tattoos.
// @Summary     List tattoos
// @Tags        tattoos
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Client ID"
// @Success     200 {array} models.Tattoo "Tattoos, newest first"
// @Failure     404 {object} ErrorResponse "Client not found"
// @Router      /clients/{id}/tattoos [get]
func (h *TattooHandler) ListTattoos(c *gin.Context) {
	clientID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	tattoos, err := h.tattooService.ListTattoos(clientID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tattoos": tattoos})
}

// CreateTattoo handles recording a tattoo.
// @Summary     Record a tattoo
// @Tags        tattoos
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string        true "Client ID"
// @Param       request body TattooRequest true "Tattoo details"
// @Success     201 {object} models.Tattoo "Tattoo created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Client not found"
// @Router      /clients/{id}/tattoos [post]
func (h *TattooHandler) CreateTattoo(c *gin.Context) {
	clientID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	input, ok := bindTattooRequest(c)
	if !ok {
		return
	}

	tattoo, err := h.tattooService.CreateTattoo(clientID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tattoo": tattoo})
}

// UpdateTattoo handles a partial tattoo update.
// @Summary     Update tattoo
// @Tags        tattoos
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string        true "Tattoo ID"
// @Param       request body TattooRequest true "Fields to change"
// @Success     200 {object} models.Tattoo "Updated tattoo"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Tattoo not found"
// @Router      /tattoos/{id} [put]
func (h *TattooHandler) UpdateTattoo(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	input, ok := bindTattooRequest(c)
	if !ok {
		return
	}

	tattoo, err := h.tattooService.UpdateTattoo(id, input)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tattoo": tattoo})
}

// DeleteTattoo handles deleting a tattoo.
// @Summary     Delete tattoo
// @Tags        tattoos
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Tattoo ID"
// @Success     200 {object} MessageResponse "Tattoo deleted"
// @Failure     404 {object} ErrorResponse "Tattoo not found"
// @Router      /tattoos/{id} [delete]
func (h *TattooHandler) DeleteTattoo(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.tattooService.DeleteTattoo(id); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Tattoo deleted successfully"})
}
