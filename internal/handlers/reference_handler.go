package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/logger"
	"tattootrack/internal/services"
)

// multipartOverhead leaves room for the form fields around the image.
const multipartOverhead = 1 << 20

// ReferenceHandler handles image uploads and client reference images.
type ReferenceHandler struct {
	referenceService services.ReferenceServicer
	images           services.ImageStore
	auditService     services.AuditServicer
	maxBytes         int64
}

// NewReferenceHandler creates a new ReferenceHandler. maxBytes caps a single
// upload.
func NewReferenceHandler(
	referenceService services.ReferenceServicer,
	images services.ImageStore,
	auditService services.AuditServicer,
	maxBytes int64,
) *ReferenceHandler {
	return &ReferenceHandler{
		referenceService: referenceService,
		images:           images,
		auditService:     auditService,
		maxBytes:         maxBytes,
	}
}

// UploadResponse carries the public URL of a stored image.
type UploadResponse struct {
	URL string `json:"url"`
}

// openImage reads the "image" form file, enforcing the size cap.
func (h *ReferenceHandler) openImage(c *gin.Context) (multipart.File, int64, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)

	header, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(c, apperrors.ErrFileTooLarge)
			return nil, 0, false
		}
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "image file is required"))
		return nil, 0, false
	}
	if header.Size > h.maxBytes {
		respondWithError(c, apperrors.ErrFileTooLarge)
		return nil, 0, false
	}

	file, err := header.Open()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return nil, 0, false
	}
	return file, header.Size, true
}

func closeUpload(file multipart.File) {
	if err := file.Close(); err != nil {
		logger.Get().Warnw("failed to close upload", "error", err)
	}
}

// Upload handles storing a standalone image.
// @Summary     Upload an image
// @Description Store a jpeg, png, gif or webp image and return its URL
// @Tags        uploads
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       image formData file true "Image file"
// @Success     201 {object} UploadResponse "Stored image"
// @Failure     400 {object} ErrorResponse "Missing file or unsupported type"
// @Failure     413 {object} ErrorResponse "File too large"
// @Router      /upload [post]
func (h *ReferenceHandler) Upload(c *gin.Context) {
	file, size, ok := h.openImage(c)
	if !ok {
		return
	}
	defer closeUpload(file)

	url, err := h.images.Save(c.Request.Context(), file, size)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, UploadResponse{URL: url})
}

// CreateReference handles attaching a reference image to a client.
// @Summary     Add a reference image
// @Tags        references
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       id    path     string true  "Client ID"
// @Param       image formData file   true  "Image file"
// @Param       notes formData string false "Notes"
// @Success     201 {object} models.Reference "Reference created"
// @Failure     400 {object} ErrorResponse "Missing file or unsupported type"
// @Failure     404 {object} ErrorResponse "Client not found"
// @Failure     413 {object} ErrorResponse "File too large"
// @Router      /clients/{id}/references [post]
func (h *ReferenceHandler) CreateReference(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	clientID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	file, size, ok := h.openImage(c)
	if !ok {
		return
	}
	defer closeUpload(file)

	ref, err := h.referenceService.CreateReference(c.Request.Context(), clientID, file, size, c.PostForm("notes"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_REFERENCE", "reference", ref.ID, c.ClientIP(),
		map[string]any{"client_id": clientID})

	c.JSON(http.StatusCreated, gin.H{"reference": ref})
}

// DeleteReference handles deleting a reference image.
// @Summary     Delete reference image
// @Tags        references
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Reference ID"
// @Success     200 {object} MessageResponse "Reference deleted"
// @Failure     404 {object} ErrorResponse "Reference not found"
// @Router      /references/{id} [delete]
func (h *ReferenceHandler) DeleteReference(c *gin.Context) {
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

	if err := h.referenceService.DeleteReference(c.Request.Context(), id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_REFERENCE", "reference", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, MessageResponse{Message: "Reference deleted successfully"})
}
