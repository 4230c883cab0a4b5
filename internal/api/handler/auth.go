package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/grievo/internal/domain"
	"github.com/timmy/grievo/internal/service"
)

// AuthHandler handles account registration and login.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Name     string      `json:"name"`
	Phone    string      `json:"phone"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Phone string      `json:"phone"`
	Role  domain.Role `json:"role"`
	Token string      `json:"token"`
}

func newAuthResponse(r *service.AuthResult) AuthResponse {
	return AuthResponse{
		ID:    r.User.ID,
		Name:  r.User.Name,
		Phone: r.User.Phone,
		Role:  r.User.Role,
		Token: r.Token,
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide name, phone and password")
		return
	}
	// Admins are provisioned out of band with grievctl create-admin.
	if req.Role == domain.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"message": "Admin accounts cannot be self-registered"})
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newAuthResponse(result))
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide phone and password")
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAuthResponse(result))
}
