package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/BazaarDev/bazaar_api/internal/models"
	"github.com/BazaarDev/bazaar_api/internal/repository"
	"github.com/BazaarDev/bazaar_api/internal/service"
	"github.com/BazaarDev/bazaar_api/internal/utils"
)

// maxImageBytes caps product image uploads at 5 MiB.
const maxImageBytes = 5 << 20

// VendorProductHandler serves the authenticated product mutation endpoints
// used by vendors and administrators.
type VendorProductHandler struct {
	productSvc    *service.ProductService
	mediaSvc      *service.MediaService
	moderationSvc *service.ModerationService
}

// NewVendorProductHandler constructs a VendorProductHandler.
func NewVendorProductHandler(productSvc *service.ProductService, mediaSvc *service.MediaService, moderationSvc *service.ModerationService) *VendorProductHandler {
	return &VendorProductHandler{
		productSvc:    productSvc,
		mediaSvc:      mediaSvc,
		moderationSvc: moderationSvc,
	}
}

// actorFrom builds the authenticated actor from context values set by the JWT
// middleware.
func actorFrom(c *gin.Context) models.Actor {
	return models.Actor{
		ID:   c.GetString("actor_id"),
		Role: c.GetString("role"),
	}
}

// CreateProduct handles POST /v1/vendor/products
func (h *VendorProductHandler) CreateProduct(c *gin.Context) {
	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	actor := actorFrom(c)
	ownerKey := actor.ID
	// Administrators create on behalf of a vendor named by query parameter.
	if actor.IsAdmin() {
		if v := c.Query("vendor"); v != "" {
			ownerKey = v
		}
	}

	product, err := h.productSvc.Create(c.Request.Context(), ownerKey, &req)
	if err != nil {
		writeProductError(c, err)
		return
	}

	utils.Success(c, 201, "Product created successfully", product)
}

// ListOwnProducts handles GET /v1/vendor/products
func (h *VendorProductHandler) ListOwnProducts(c *gin.Context) {
	actor := actorFrom(c)

	products, diags, err := h.productSvc.ListByOwner(c.Request.Context(), actor.ID)
	if err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid vendor key")
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	utils.Success(c, 200, "Products retrieved", gin.H{
		"products":    products,
		"diagnostics": diags,
	})
}

// UpdateProduct handles PUT /v1/vendor/products/:id
func (h *VendorProductHandler) UpdateProduct(c *gin.Context) {
	id := c.Param("id")

	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	product, err := h.productSvc.Update(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		writeProductError(c, err)
		return
	}

	utils.Success(c, 200, "Product updated successfully", product)
}

// DeleteProduct handles DELETE /v1/vendor/products/:id
func (h *VendorProductHandler) DeleteProduct(c *gin.Context) {
	id := c.Param("id")

	if err := h.productSvc.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		writeProductError(c, err)
		return
	}

	utils.Success(c, 200, "Product deleted successfully", nil)
}

// UploadProductImage handles POST /v1/vendor/products/:id/image
// The raw image body is stored on S3 and screened best-effort; the resulting
// URL is attached to the product.
func (h *VendorProductHandler) UploadProductImage(c *gin.Context) {
	id := c.Param("id")
	actor := actorFrom(c)

	if h.mediaSvc == nil {
		utils.Error(c, 503, "MEDIA_UNAVAILABLE", "Media storage is not configured")
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImageBytes+1))
	if err != nil || len(data) == 0 {
		utils.Error(c, 400, "INVALID_REQUEST", "Missing image body")
		return
	}
	if len(data) > maxImageBytes {
		utils.Error(c, 400, "IMAGE_TOO_LARGE", "Image exceeds size limit")
		return
	}

	contentType := c.ContentType()
	if contentType == "" {
		contentType = "image/jpeg"
	}

	url, err := h.mediaSvc.UploadProductImage(c.Request.Context(), id, data, contentType)
	if err != nil {
		utils.Error(c, 502, "UPLOAD_FAILED", "Failed to store image")
		return
	}

	// Screening never blocks the upload.
	labels := h.moderationSvc.ScreenImage(c.Request.Context(), id, data)

	product, err := h.productSvc.Update(c.Request.Context(), actor, id, &service.ProductInput{Image: &url})
	if err != nil {
		writeProductError(c, err)
		return
	}

	utils.Success(c, 200, "Image uploaded", gin.H{
		"product":          product,
		"moderationLabels": labels,
	})
}

// writeProductError maps service errors onto the response envelope.
func writeProductError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrValidation):
		utils.Error(c, 400, "INVALID_REQUEST", "Missing or malformed fields")
	case errors.Is(err, utils.ErrForbidden):
		utils.Error(c, 403, "FORBIDDEN", "Not allowed")
	case errors.Is(err, utils.ErrProductNotFound):
		utils.Error(c, 404, "PRODUCT_NOT_FOUND", "Product not found")
	default:
		var werr *repository.WriteError
		if errors.As(err, &werr) {
			utils.ErrorWithDetail(c, 502, "WRITE_FAILED", "Failed to persist product", werr.Details())
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Operation failed")
	}
}
