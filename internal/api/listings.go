package api

import (
	"net/http"

	"catalog-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createListing(c *gin.Context) {
	var req service.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	listing, err := h.listings.CreateListing(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

func (h *Handler) getListing(c *gin.Context) {
	listing, err := h.listings.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (h *Handler) upsertListingItem(c *gin.Context) {
	var req service.UpsertItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	item, err := h.listings.UpsertItem(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) availableProducts(c *gin.Context) {
	products, err := h.catalog.AvailableProducts(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) priceHistory(c *gin.Context) {
	history, err := h.listings.PriceHistory(c.Request.Context(), c.Param("code"), c.Param("sku"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}
