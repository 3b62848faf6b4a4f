package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/BazaarDev/bazaar_api/internal/repository"
	"github.com/BazaarDev/bazaar_api/internal/service"
	"github.com/BazaarDev/bazaar_api/internal/store"
	"github.com/BazaarDev/bazaar_api/internal/utils"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
	CREATE TABLE vendors (id INTEGER PRIMARY KEY, user_id INTEGER, name TEXT, vendor_no TEXT);
	CREATE TABLE vendor_accounts (id INTEGER PRIMARY KEY, user_id INTEGER, vendor_no TEXT);
	CREATE TABLE seller_profiles (vendor_id INTEGER PRIMARY KEY);
	CREATE TABLE vendor_products (
		id TEXT PRIMARY KEY, name TEXT NOT NULL, price REAL, original_price REAL,
		discount REAL, stock INTEGER, vendor_id INTEGER NOT NULL,
		payment_methods TEXT, image TEXT, description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE shop_products (
		id TEXT PRIMARY KEY, name TEXT NOT NULL, price REAL, original_price REAL,
		discount REAL, stock INTEGER, seller_key TEXT, seller_id TEXT,
		payment_methods TEXT, image TEXT, description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`)
	require.NoError(t, err)

	st := store.New(db)
	topo := repository.DefaultTopology()
	resolver := repository.NewOwnerResolver(st, topo.VendorCandidates, topo.ProfileRelation, nil)
	locator := repository.NewLocator(st)
	writer := repository.NewAdaptiveWriter(st, resolver)
	productSvc := service.NewProductService(st, locator, writer, resolver, topo, nil, 100)

	h := NewProductHandler(productSvc)
	router := gin.New()
	router.GET("/v1/products/search", h.SearchProducts)
	router.GET("/v1/products/:id", h.GetProduct)
	router.GET("/v1/vendors/:key/products", h.GetVendorProducts)
	return router, st
}

func doRequest(t *testing.T, router *gin.Engine, method, path string) (*httptest.ResponseRecorder, utils.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var body utils.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestGetProductNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, body := doRequest(t, router, http.MethodGet, "/v1/products/ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "PRODUCT_NOT_FOUND", body.Error.Code)
}

func TestGetProductFound(t *testing.T) {
	router, st := newTestRouter(t)

	_, err := st.Insert(context.Background(), "shop_products", store.Row{
		"id": "p1", "name": "Mug", "price": 18.0, "seller_key": "abc-123",
	})
	require.NoError(t, err)

	rec, body := doRequest(t, router, http.MethodGet, "/v1/products/p1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)

	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Mug", data["name"])
	assert.Equal(t, 18.0, data["price"])
}

func TestSearchProductsEmptyIsOK(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, body := doRequest(t, router, http.MethodGet, "/v1/products/search?q=anything")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)

	data, ok := body.Data.([]any)
	require.True(t, ok)
	assert.Empty(t, data)
}

func TestGetVendorProductsReportsDiagnostics(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, body := doRequest(t, router, http.MethodGet, "/v1/vendors/nobody/products")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)

	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	assert.Empty(t, data["products"])

	diags, ok := data["diagnostics"].([]any)
	require.True(t, ok)
	assert.Len(t, diags, 2)
}
