package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/BazaarDev/bazaar_api/internal/middleware"
	"github.com/BazaarDev/bazaar_api/internal/service"
	"github.com/BazaarDev/bazaar_api/internal/utils"
)

// AuthHandler serves administrator authentication.
type AuthHandler struct {
	adminAuthSvc *service.AdminAuthService
	rateLimiter  *middleware.InvalidAuthRateLimiter
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(adminAuthSvc *service.AdminAuthService, rateLimiter *middleware.InvalidAuthRateLimiter) *AuthHandler {
	return &AuthHandler{adminAuthSvc: adminAuthSvc, rateLimiter: rateLimiter}
}

// Login handles POST /v1/admin/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	token, err := h.adminAuthSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if !h.rateLimiter.Allow(c.ClientIP()) {
			utils.Error(c, 429, "TOO_MANY_ATTEMPTS", "Too many failed attempts")
			return
		}
		utils.Error(c, 401, "BAD_CREDENTIALS", "Invalid email or password")
		return
	}

	utils.Success(c, 200, "Login successful", gin.H{"token": token})
}
