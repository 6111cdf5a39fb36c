package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focusflow/backend/internal/identity"
	"focusflow/backend/internal/middleware"
	"focusflow/backend/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type meResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Guest  bool   `json:"guest"`
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func bindCredentials(c *gin.Context) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return req, false
	}
	return req, true
}

func (h *AuthHandler) Register(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok {
		return
	}

	result, apiErr := h.authService.Register(c.Request.Context(), req.Email, req.Password)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *AuthHandler) Login(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok {
		return
	}

	result, apiErr := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Me reports who the request resolved to. Guests get the guest id.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := middleware.UserID(c)
	resp := meResponse{UserID: userID, Guest: identity.IsGuest(userID)}
	if principal := middleware.Principal(c); principal != nil {
		resp.Email = principal.Email
	}
	c.JSON(http.StatusOK, resp)
}
