package api

import (
	"net/http"

	"catalog-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createCollection(c *gin.Context) {
	var req service.CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	collection, err := h.collections.Create(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, collection)
}

func (h *Handler) listCollections(c *gin.Context) {
	collections, err := h.collections.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": collections})
}

func (h *Handler) getCollection(c *gin.Context) {
	view, err := h.collections.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// setParent moves a collection; an empty parent_slug makes it a root.
func (h *Handler) setParent(c *gin.Context) {
	var req struct {
		ParentSlug string `json:"parent_slug"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	slug := c.Param("slug")
	if err := h.collections.SetParent(c.Request.Context(), slug, req.ParentSlug); err != nil {
		h.writeError(c, err)
		return
	}

	view, err := h.collections.Get(c.Request.Context(), slug)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ancestors(c *gin.Context) {
	maxDepth, err := intQuery(c, "max_depth", 0)
	if err != nil {
		badRequest(c, "Invalid max_depth", err)
		return
	}

	collections, err := h.collections.Ancestors(c.Request.Context(), c.Param("slug"), maxDepth)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": collections})
}

func (h *Handler) descendants(c *gin.Context) {
	maxDepth, err := intQuery(c, "max_depth", 0)
	if err != nil {
		badRequest(c, "Invalid max_depth", err)
		return
	}

	collections, err := h.collections.Descendants(c.Request.Context(), c.Param("slug"), maxDepth)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": collections})
}

func (h *Handler) addCollectionProduct(c *gin.Context) {
	var req struct {
		SKU       string `json:"sku" binding:"required"`
		IsPrimary bool   `json:"is_primary"`
		SortOrder int    `json:"sort_order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	item, err := h.collections.AddProduct(c.Request.Context(), c.Param("slug"), req.SKU, req.IsPrimary, req.SortOrder)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}
