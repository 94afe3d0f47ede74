package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"catalog-service/internal/service"
	"catalog-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services groups everything the handlers call.
type Services struct {
	Catalog     *service.CatalogService
	Products    *service.ProductService
	Collections *service.CollectionService
	Bundles     *service.BundleService
	Listings    *service.ListingService
	Suggestions *service.SuggestionService
}

// Handler contains HTTP handlers
type Handler struct {
	catalog     *service.CatalogService
	products    *service.ProductService
	collections *service.CollectionService
	bundles     *service.BundleService
	listings    *service.ListingService
	suggestions *service.SuggestionService

	readiness []func(context.Context) error
	limiter   *RateLimiter
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(s Services) *Handler {
	return &Handler{
		catalog:     s.Catalog,
		products:    s.Products,
		collections: s.Collections,
		bundles:     s.Bundles,
		listings:    s.Listings,
		suggestions: s.Suggestions,
		logger:      util.GetLogger(),
	}
}

// WithReadiness adds a dependency check to /ready.
func (h *Handler) WithReadiness(check func(context.Context) error) *Handler {
	h.readiness = append(h.readiness, check)
	return h
}

// WithRateLimiter throttles /api/v1 per client IP.
func (h *Handler) WithRateLimiter(l *RateLimiter) *Handler {
	h.limiter = l
	return h
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	if h.limiter != nil {
		v1.Use(h.limiter.Middleware())
	}
	{
		v1.POST("/products", h.createProduct)
		v1.GET("/products", h.searchProducts)
		v1.GET("/products/:sku", h.getProduct)
		v1.PATCH("/products/:sku", h.updateProduct)
		v1.DELETE("/products/:sku", h.deleteProduct)
		v1.PUT("/products/:sku/keywords", h.setKeywords)
		v1.GET("/products/:sku/info", h.productInfo)
		v1.GET("/products/:sku/validate", h.validate)
		v1.GET("/products/:sku/validate-output", h.validateOutput)
		v1.GET("/products/:sku/price", h.price)
		v1.GET("/products/:sku/quote", h.quote)
		v1.GET("/products/:sku/expand", h.expand)
		v1.GET("/products/:sku/margin", h.margin)
		v1.GET("/products/:sku/alternatives", h.alternatives)
		v1.GET("/products/:sku/similar", h.similar)
		v1.GET("/products/:sku/primary-collection", h.primaryCollection)

		v1.GET("/products/:sku/components", h.listComponents)
		v1.POST("/products/:sku/components", h.addComponent)
		v1.DELETE("/products/:sku/components/:component", h.removeComponent)

		v1.POST("/validate", h.validateMany)

		v1.POST("/collections", h.createCollection)
		v1.GET("/collections", h.listCollections)
		v1.GET("/collections/:slug", h.getCollection)
		v1.PUT("/collections/:slug/parent", h.setParent)
		v1.GET("/collections/:slug/ancestors", h.ancestors)
		v1.GET("/collections/:slug/descendants", h.descendants)
		v1.POST("/collections/:slug/products", h.addCollectionProduct)

		v1.POST("/listings", h.createListing)
		v1.GET("/listings/:code", h.getListing)
		v1.PUT("/listings/:code/items", h.upsertListingItem)
		v1.GET("/listings/:code/products", h.availableProducts)
		v1.GET("/listings/:code/history/:sku", h.priceHistory)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers.
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	for _, check := range h.readiness {
		if err := check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not ready",
				"details": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
