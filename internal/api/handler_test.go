package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"catalog-service/config"
	"catalog-service/internal/pricing"
	"catalog-service/internal/service"
	"catalog-service/internal/store/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := memory.New()
	limits := config.CatalogConfig{MaxCollectionDepth: 10, BundleMaxDepth: 5}
	locker := service.NewLocalLocker()
	sink := service.NopSink{}

	h := NewHandler(Services{
		Catalog:     service.NewCatalogService(s, pricing.NewResolver(s), service.StaticCostBackend{"BREAD": 600}),
		Products:    service.NewProductService(s, sink),
		Collections: service.NewCollectionService(s, locker, limits),
		Bundles:     service.NewBundleService(s, locker, limits),
		Listings:    service.NewListingService(s, sink),
		Suggestions: service.NewSuggestionService(s),
	})

	router := gin.New()
	return router, h
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return e["code"].(string)
}

func TestHealthAndReady(t *testing.T) {
	router, h := newTestRouter(t)
	h.WithReadiness(func(context.Context) error { return errors.New("db unreachable") })
	h.SetupRoutes(router)

	w := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBundleFlowOverHTTP(t *testing.T) {
	router, h := newTestRouter(t)
	h.SetupRoutes(router)

	for _, p := range []map[string]any{
		{"sku": "CROISSANT", "name": "Croissant", "base_price_q": 800},
		{"sku": "COFFEE", "name": "Coffee", "base_price_q": 500},
		{"sku": "COMBO", "name": "Combo", "base_price_q": 1200},
	} {
		w := do(t, router, http.MethodPost, "/api/v1/products", p)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := do(t, router, http.MethodPost, "/api/v1/products", map[string]any{"sku": "COMBO", "name": "Again"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_EXISTS", errorCode(t, w))

	for _, c := range []string{"CROISSANT", "COFFEE"} {
		w = do(t, router, http.MethodPost, "/api/v1/products/COMBO/components", map[string]any{"component_sku": c, "qty": 1})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPost, "/api/v1/products/CROISSANT/components", map[string]any{"component_sku": "COMBO", "qty": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "CIRCULAR_REFERENCE", errorCode(t, w))

	w = do(t, router, http.MethodPost, "/api/v1/products/COMBO/components", map[string]any{"component_sku": "COFFEE", "qty": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_QUANTITY", errorCode(t, w))

	w = do(t, router, http.MethodGet, "/api/v1/products/COMBO/expand?qty=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var expanded struct {
		Components []struct {
			SKU string `json:"sku"`
			Qty string `json:"qty"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &expanded))
	require.Len(t, expanded.Components, 2)
	assert.Equal(t, "CROISSANT", expanded.Components[0].SKU)
	assert.Equal(t, "2", expanded.Components[0].Qty)
	assert.Equal(t, "COFFEE", expanded.Components[1].SKU)

	w = do(t, router, http.MethodGet, "/api/v1/products/COFFEE/expand", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "NOT_A_BUNDLE", errorCode(t, w))

	w = do(t, router, http.MethodGet, "/api/v1/products/COMBO/expand?qty=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodDelete, "/api/v1/products/COFFEE", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PRODUCT_IN_USE", errorCode(t, w))
}

func TestProductReads(t *testing.T) {
	router, h := newTestRouter(t)
	h.SetupRoutes(router)

	w := do(t, router, http.MethodPost, "/api/v1/products", map[string]any{
		"sku": "BREAD", "name": "Bread", "base_price_q": 1000, "keywords": []string{"bread"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/v1/products/MISSING", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SKU_NOT_FOUND", errorCode(t, w))

	w = do(t, router, http.MethodGet, "/api/v1/products/MISSING/validate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "not_found", body["error_code"])

	w = do(t, router, http.MethodPost, "/api/v1/validate", map[string]any{"skus": []string{"BREAD", "MISSING"}})
	require.Equal(t, http.StatusOK, w.Code)
	results := decode(t, w)["results"].(map[string]any)
	assert.Equal(t, true, results["BREAD"].(map[string]any)["valid"])

	w = do(t, router, http.MethodGet, "/api/v1/products/BREAD/price?qty=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, float64(3000), body["total_price_q"])
	assert.Equal(t, float64(1000), body["unit_price_q"])

	w = do(t, router, http.MethodGet, "/api/v1/products/BREAD/price?qty=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_QUANTITY", errorCode(t, w))

	w = do(t, router, http.MethodGet, "/api/v1/products/BREAD/margin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "40", decode(t, w)["margin_percent"])

	w = do(t, router, http.MethodGet, "/api/v1/products?q=bre", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["products"], 1)

	w = do(t, router, http.MethodGet, "/api/v1/products?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCollectionsAndListingsOverHTTP(t *testing.T) {
	router, h := newTestRouter(t)
	h.SetupRoutes(router)

	w := do(t, router, http.MethodPost, "/api/v1/products", map[string]any{"sku": "BREAD", "name": "Bread", "base_price_q": 1000})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/collections", map[string]any{"slug": "food", "name": "Food"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = do(t, router, http.MethodPost, "/api/v1/collections", map[string]any{"slug": "bakery", "name": "Bakery", "parent_slug": "food"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodPut, "/api/v1/collections/food/parent", map[string]any{"parent_slug": "bakery"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "CIRCULAR_REFERENCE", errorCode(t, w))

	w = do(t, router, http.MethodGet, "/api/v1/collections/bakery", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Food > Bakery", decode(t, w)["full_path"])

	w = do(t, router, http.MethodPost, "/api/v1/collections/bakery/products", map[string]any{"sku": "BREAD", "is_primary": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/v1/products/BREAD/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bakery", decode(t, w)["category"])

	w = do(t, router, http.MethodPost, "/api/v1/listings", map[string]any{"code": "shop", "name": "Shop"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodPut, "/api/v1/listings/shop/items", map[string]any{"sku": "BREAD", "price_q": 900, "min_qty": "1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, router, http.MethodPut, "/api/v1/listings/nope/items", map[string]any{"sku": "BREAD", "price_q": 900})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "LISTING_NOT_FOUND", errorCode(t, w))

	w = do(t, router, http.MethodGet, "/api/v1/products/BREAD/quote?qty=2&channel=shop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1800), body["total_price_q"])
	assert.Equal(t, pricing.SourceListing, body["source"])

	w = do(t, router, http.MethodGet, "/api/v1/listings/shop/products", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["products"], 1)
}

func TestRateLimiter(t *testing.T) {
	router, h := newTestRouter(t)
	limiter := NewRateLimiter(1, 2)
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }
	h.WithRateLimiter(limiter)
	h.SetupRoutes(router)

	for i := 0; i < 2; i++ {
		w := do(t, router, http.MethodGet, "/api/v1/products", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := do(t, router, http.MethodGet, "/api/v1/products", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// probes are never limited
	w = do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	fixed = fixed.Add(time.Second)
	w = do(t, router, http.MethodGet, "/api/v1/products", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow("10.0.0.1"))
	}
}
