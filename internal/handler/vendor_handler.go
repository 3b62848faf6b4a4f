package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/BazaarDev/bazaar_api/internal/middleware"
	"github.com/BazaarDev/bazaar_api/internal/service"
	"github.com/BazaarDev/bazaar_api/internal/utils"
)

// VendorHandler serves vendor onboarding and authentication endpoints.
type VendorHandler struct {
	vendorSvc   *service.VendorService
	rateLimiter *middleware.InvalidAuthRateLimiter
}

// NewVendorHandler constructs a VendorHandler.
func NewVendorHandler(vendorSvc *service.VendorService, rateLimiter *middleware.InvalidAuthRateLimiter) *VendorHandler {
	return &VendorHandler{vendorSvc: vendorSvc, rateLimiter: rateLimiter}
}

// Register handles POST /v1/vendors/register
func (h *VendorHandler) Register(c *gin.Context) {
	var req service.RegisterVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	vendor, err := h.vendorSvc.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, utils.ErrEmailTaken) {
			utils.Error(c, 400, "EMAIL_TAKEN", "Email already registered")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to register vendor")
		return
	}

	utils.Success(c, 201, "Vendor registered", vendor)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /v1/vendors/login
func (h *VendorHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	token, vendor, err := h.vendorSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if !h.rateLimiter.Allow(c.ClientIP()) {
			utils.Error(c, 429, "TOO_MANY_ATTEMPTS", "Too many failed attempts")
			return
		}
		utils.Error(c, 401, "BAD_CREDENTIALS", "Invalid email or password")
		return
	}

	utils.Success(c, 200, "Login successful", gin.H{
		"token":  token,
		"vendor": vendor,
	})
}

// Profile handles GET /v1/vendors/me
func (h *VendorHandler) Profile(c *gin.Context) {
	vendor, err := h.vendorSvc.Profile(c.Request.Context(), c.GetString("actor_id"))
	if err != nil {
		utils.Error(c, 404, "VENDOR_NOT_FOUND", "Vendor not found")
		return
	}
	utils.Success(c, 200, "Vendor retrieved", vendor)
}
