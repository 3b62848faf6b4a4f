package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/BazaarDev/bazaar_api/internal/models"
	"github.com/BazaarDev/bazaar_api/internal/service"
	"github.com/BazaarDev/bazaar_api/internal/utils"
)

// ProductHandler serves the public, read-only catalog endpoints.
type ProductHandler struct {
	productSvc *service.ProductService
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(productSvc *service.ProductService) *ProductHandler {
	return &ProductHandler{productSvc: productSvc}
}

// GetProduct handles GET /v1/products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		utils.Error(c, 400, "INVALID_ID", "Invalid product ID")
		return
	}

	product, err := h.productSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, utils.ErrProductNotFound) {
			utils.Error(c, 404, "PRODUCT_NOT_FOUND", "Product not found")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve product")
		return
	}

	utils.Success(c, 200, "Product retrieved", product)
}

// SearchProducts handles GET /v1/products/search
func (h *ProductHandler) SearchProducts(c *gin.Context) {
	query := c.Query("q")

	products, err := h.productSvc.Search(c.Request.Context(), query)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Search failed")
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	utils.Success(c, 200, "Products retrieved", products)
}

// GetVendorProducts handles GET /v1/vendors/:key/products
func (h *ProductHandler) GetVendorProducts(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		utils.Error(c, 400, "INVALID_REQUEST", "Missing vendor key")
		return
	}

	products, diags, err := h.productSvc.ListByOwner(c.Request.Context(), key)
	if err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid vendor key")
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	// Empty is a valid result; diagnostics say which relations were probed.
	utils.Success(c, 200, "Products retrieved", gin.H{
		"products":    products,
		"diagnostics": diags,
	})
}
