package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/logger"
	"tattootrack/internal/middleware"
	"tattootrack/internal/models"
	"tattootrack/internal/services"
)

// AuthHandler handles authentication and the Google Calendar connection.
type AuthHandler struct {
	userService     services.UserServicer
	calendarService services.CalendarServicer
	auditService    services.AuditServicer
	issuer          *middleware.TokenIssuer
	frontendURL     string
}

// NewAuthHandler creates a new AuthHandler. frontendURL is where the Google
// callback sends the browser back to.
func NewAuthHandler(
	userService services.UserServicer,
	calendarService services.CalendarServicer,
	auditService services.AuditServicer,
	issuer *middleware.TokenIssuer,
	frontendURL string,
) *AuthHandler {
	return &AuthHandler{
		userService:     userService,
		calendarService: calendarService,
		auditService:    auditService,
		issuer:          issuer,
		frontendURL:     frontendURL,
	}
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Username string `json:"username" binding:"required,min=3,max=50,username"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserResponse represents the user data in the response
type UserResponse struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	Picture           string `json:"picture,omitempty"`
	CalendarConnected bool   `json:"calendar_connected"`
}

// AuthResponse represents the authentication response with token
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// AuthURLResponse carries the Google consent URL.
type AuthURLResponse struct {
	URL string `json:"url"`
}

func toUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:                user.ID,
		Username:          user.Username,
		Name:              user.Name,
		Picture:           user.Picture,
		CalendarConnected: user.CalendarConnected,
	}
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := h.issuer.GenerateToken(user)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	c.JSON(status, AuthResponse{Token: token, User: toUserResponse(user)})
}

// Register handles user registration
// @Summary     Register a new user
// @Description Create a studio login and return a session token
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body RegisterRequest true "User registration data"
// @Success     201 {object} AuthResponse "User registered and token generated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Username taken"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.CreateUser(req.Username, req.Password, req.Name)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(user.ID, "REGISTER", "user", user.ID, c.ClientIP(), nil)
	h.respondWithToken(c, http.StatusCreated, user)
}

// Login handles user login
// @Summary     Login user
// @Description Authenticate with username and password
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body LoginRequest true "User login credentials"
// @Success     200 {object} AuthResponse "User authenticated and token generated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid credentials"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.Authenticate(req.Username, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

// Me returns the authenticated user
// @Summary     Current user
// @Description Get the authenticated user's profile
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} UserResponse "User profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

// GoogleAuthURL returns the consent URL for connecting Google Calendar
// @Summary     Google consent URL
// @Description Get the URL that starts the Google Calendar connection
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} AuthURLResponse "Consent URL"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     503 {object} ErrorResponse "Integration not configured"
// @Router      /auth/google/url [get]
func (h *AuthHandler) GoogleAuthURL(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	authURL, err := h.calendarService.AuthURL(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthURLResponse{URL: authURL})
}

// GoogleCallback completes the Google Calendar connection
// @Summary     Google OAuth callback
// @Description Exchange the authorization code and redirect back to the web client
// @Tags        auth
// @Param       code  query string true "Authorization code"
// @Param       state query string true "Signed state"
// @Success     302 "Redirect to the web client"
// @Router      /auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		c.Redirect(http.StatusFound, h.redirectTarget("error"))
		return
	}

	user, err := h.calendarService.Connect(c.Request.Context(), state, code)
	if err != nil {
		logger.Get().Warnw("google calendar connection failed", "error", err)
		c.Redirect(http.StatusFound, h.redirectTarget("error"))
		return
	}

	h.auditService.Log(user.ID, "CONNECT_CALENDAR", "user", user.ID, c.ClientIP(), nil)
	c.Redirect(http.StatusFound, h.redirectTarget("connected"))
}

// redirectTarget builds the web client URL the callback lands on.
func (h *AuthHandler) redirectTarget(result string) string {
	base := strings.TrimRight(h.frontendURL, "/")
	if base == "*" {
		base = ""
	}
	return base + "/settings?calendar=" + url.QueryEscape(result)
}

// GoogleDisconnect removes the stored Google tokens
// @Summary     Disconnect Google Calendar
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} MessageResponse "Disconnected"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /auth/google/disconnect [post]
func (h *AuthHandler) GoogleDisconnect(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.calendarService.Disconnect(userID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DISCONNECT_CALENDAR", "user", userID, c.ClientIP(), nil)
	c.JSON(http.StatusOK, MessageResponse{Message: "Google Calendar disconnected"})
}
