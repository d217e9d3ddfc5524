package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/expense-api/models"
	"github.com/LovationAdmin/expense-api/services"
)

type AuthHandler struct {
	Gateway *services.Gateway
}

func NewAuthHandler(gateway *services.Gateway) *AuthHandler {
	return &AuthHandler{Gateway: gateway}
}

// Handle dispatches POST /auth on the action field.
func (h *AuthHandler) Handle(c *gin.Context) {
	var req models.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON in request body"})
		return
	}

	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case models.ActionSignup:
		h.signup(c, req)
	case models.ActionSignin:
		h.signin(c, req)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
	}
}

func (h *AuthHandler) signup(c *gin.Context, req models.AuthRequest) {
	result, err := h.Gateway.Signup(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondError(c, SurfaceAuth, err)
		return
	}

	message := "User created successfully"
	if result.NeedsConfirmation {
		message = "User created successfully. Check your email to confirm your account."
	}

	c.JSON(http.StatusOK, models.SignupResponse{
		Success:           true,
		Message:           message,
		NeedsConfirmation: result.NeedsConfirmation,
		User:              result.User,
	})
}

func (h *AuthHandler) signin(c *gin.Context, req models.AuthRequest) {
	session, err := h.Gateway.Signin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondError(c, SurfaceAuth, err)
		return
	}

	c.JSON(http.StatusOK, models.SigninResponse{
		Success: true,
		Session: *session,
		User:    session.User,
	})
}

// Confirm handles the emailed confirmation link.
func (h *AuthHandler) Confirm(c *gin.Context) {
	user, err := h.Gateway.ConfirmEmail(c.Request.Context(), c.Query("token"))
	if err != nil {
		RespondError(c, SurfaceAuth, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Email confirmed. You can now sign in.",
		"user":    user.Ref(),
	})
}
