package api

import (
	"net/http"
	"strconv"
	"strings"

	"catalog-service/internal/catalogerr"
	"catalog-service/internal/money"
	"catalog-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// createProduct handles product creation
func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	product, err := h.products.Create(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (h *Handler) getProduct(c *gin.Context) {
	sku := c.Param("sku")
	product, err := h.catalog.Get(c.Request.Context(), sku)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if product == nil {
		h.writeError(c, catalogerr.SkuNotFound(sku))
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	product, err := h.products.Update(c.Request.Context(), c.Param("sku"), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.products.Delete(c.Request.Context(), c.Param("sku")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) setKeywords(c *gin.Context) {
	var req struct {
		Keywords []string `json:"keywords"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	keywords, err := h.products.SetKeywords(c.Request.Context(), c.Param("sku"), req.Keywords)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keywords": keywords})
}

// searchProducts handles GET /products?q=&collection=&keywords=a,b&limit=
func (h *Handler) searchProducts(c *gin.Context) {
	params := service.SearchParams{
		Query:      c.Query("q"),
		Collection: c.Query("collection"),
	}
	if kw := c.Query("keywords"); kw != "" {
		params.Keywords = strings.Split(kw, ",")
	}

	var err error
	if params.OnlyPublished, err = optionalBool(c, "only_published"); err != nil {
		badRequest(c, "Invalid only_published", err)
		return
	}
	if params.OnlyAvailable, err = optionalBool(c, "only_available"); err != nil {
		badRequest(c, "Invalid only_available", err)
		return
	}
	if params.Limit, err = intQuery(c, "limit", service.DefaultSearchLimit); err != nil {
		badRequest(c, "Invalid limit", err)
		return
	}

	products, err := h.catalog.Search(c.Request.Context(), params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) productInfo(c *gin.Context) {
	sku := c.Param("sku")
	info, err := h.catalog.ProductInfo(c.Request.Context(), sku)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if info == nil {
		h.writeError(c, catalogerr.SkuNotFound(sku))
		return
	}
	c.JSON(http.StatusOK, info)
}

// validate always answers 200; an unknown SKU is reported in the body.
func (h *Handler) validate(c *gin.Context) {
	v, err := h.catalog.Validate(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) validateMany(c *gin.Context) {
	var req struct {
		SKUs []string `json:"skus" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	results, err := h.catalog.ValidateMany(c.Request.Context(), req.SKUs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) validateOutput(c *gin.Context) {
	v, err := h.catalog.ValidateOutputSKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// price handles GET /products/:sku/price?qty=&channel=
func (h *Handler) price(c *gin.Context) {
	qty, ok := h.qtyQuery(c)
	if !ok {
		return
	}

	info, err := h.catalog.PriceInfo(c.Request.Context(), c.Param("sku"), qty, c.Query("channel"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) quote(c *gin.Context) {
	qty, ok := h.qtyQuery(c)
	if !ok {
		return
	}

	q, err := h.catalog.Quote(c.Request.Context(), c.Param("sku"), qty, c.Query("channel"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *Handler) expand(c *gin.Context) {
	qty, ok := h.qtyQuery(c)
	if !ok {
		return
	}

	lines, err := h.catalog.Expand(c.Request.Context(), c.Param("sku"), qty)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"components": lines})
}

func (h *Handler) margin(c *gin.Context) {
	sku := c.Param("sku")
	margin, ok, err := h.catalog.Margin(c.Request.Context(), sku)
	if err != nil {
		h.writeError(c, err)
		return
	}

	body := gin.H{"sku": sku, "margin_percent": nil}
	if ok {
		body["margin_percent"] = margin
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) alternatives(c *gin.Context) {
	limit, err := intQuery(c, "limit", service.DefaultSuggestionLimit)
	if err != nil {
		badRequest(c, "Invalid limit", err)
		return
	}
	sameCollection := true
	if v := c.Query("same_collection"); v != "" {
		if sameCollection, err = strconv.ParseBool(v); err != nil {
			badRequest(c, "Invalid same_collection", err)
			return
		}
	}

	suggestions, err := h.suggestions.FindAlternatives(c.Request.Context(), c.Param("sku"), limit, sameCollection)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

func (h *Handler) similar(c *gin.Context) {
	limit, err := intQuery(c, "limit", service.DefaultSuggestionLimit)
	if err != nil {
		badRequest(c, "Invalid limit", err)
		return
	}

	suggestions, err := h.suggestions.FindSimilar(c.Request.Context(), c.Param("sku"), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

func (h *Handler) primaryCollection(c *gin.Context) {
	collection, err := h.collections.PrimaryCollection(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection": collection})
}

func (h *Handler) listComponents(c *gin.Context) {
	lines, err := h.bundles.Components(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"components": lines})
}

func (h *Handler) addComponent(c *gin.Context) {
	var req struct {
		ComponentSKU string          `json:"component_sku" binding:"required"`
		Qty          decimal.Decimal `json:"qty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	edge, err := h.bundles.AddComponent(c.Request.Context(), c.Param("sku"), req.ComponentSKU, req.Qty)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, edge)
}

func (h *Handler) removeComponent(c *gin.Context) {
	if err := h.bundles.RemoveComponent(c.Request.Context(), c.Param("sku"), c.Param("component")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// qtyQuery parses ?qty=, defaulting to one unit. It writes the 400 itself.
func (h *Handler) qtyQuery(c *gin.Context) (decimal.Decimal, bool) {
	qty, err := money.ParseQuantity(c.Query("qty"))
	if err != nil {
		badRequest(c, "Invalid qty", err)
		return decimal.Zero, false
	}
	return qty, true
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func optionalBool(c *gin.Context, key string) (*bool, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
