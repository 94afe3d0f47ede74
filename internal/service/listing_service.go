package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"catalog-service/internal/catalogerr"
	"catalog-service/internal/models"
	"catalog-service/internal/store"
	"catalog-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ListingServiceStore is what ListingService needs from storage.
type ListingServiceStore interface {
	GetProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	store.ListingStore
	ListPriceHistory(ctx context.Context, listingCode, sku string) ([]models.PriceHistory, error)
}

// ListingService manages sales channels and their price tiers.
type ListingService struct {
	store  ListingServiceStore
	events EventSink
	logger *zap.Logger
}

// NewListingService creates a new listing service
func NewListingService(store ListingServiceStore, events EventSink) *ListingService {
	return &ListingService{
		store:  store,
		events: events,
		logger: util.GetLogger(),
	}
}

// CreateListingRequest represents a request to create a listing
type CreateListingRequest struct {
	Code        string     `json:"code" binding:"required"`
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	IsActive    *bool      `json:"is_active"`
	ValidFrom   *time.Time `json:"valid_from"`
	ValidUntil  *time.Time `json:"valid_until"`
}

// UpsertItemRequest sets the price of one tier of a product in a listing.
// MinQty defaults to 1.
type UpsertItemRequest struct {
	SKU         string           `json:"sku" binding:"required"`
	PriceQ      int64            `json:"price_q"`
	MinQty      *decimal.Decimal `json:"min_qty"`
	IsPublished *bool            `json:"is_published"`
	IsAvailable *bool            `json:"is_available"`
}

// CreateListing persists a new listing. It never emits events.
func (s *ListingService) CreateListing(ctx context.Context, req *CreateListingRequest) (*models.Listing, error) {
	ctx, span := util.StartSpan(ctx, "ListingService.CreateListing")
	defer span.End()

	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, catalogerr.Newf(catalogerr.CodeInvalidInput, map[string]any{"listing_code": req.Code}, "Listing code must not be empty")
	}

	listing := &models.Listing{
		Code:        code,
		Name:        req.Name,
		Description: req.Description,
		Priority:    req.Priority,
		IsActive:    boolOr(req.IsActive, true),
		ValidFrom:   req.ValidFrom,
		ValidUntil:  req.ValidUntil,
	}
	if err := s.store.CreateListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	s.logger.Info("Listing created", zap.String("listing_code", code))
	return listing, nil
}

// UpsertItem creates or updates a price tier. An update that changes the
// price emits PriceChanged after the write; creating a tier does not.
func (s *ListingService) UpsertItem(ctx context.Context, listingCode string, req *UpsertItemRequest) (*models.ListingItem, error) {
	ctx, span := util.StartSpan(ctx, "ListingService.UpsertItem")
	defer span.End()

	data := map[string]any{"listing_code": listingCode, "sku": req.SKU}

	if req.PriceQ < 0 {
		data["price_q"] = req.PriceQ
		return nil, catalogerr.New(catalogerr.CodeInvalidPrice, data)
	}
	minQty := decimal.NewFromInt(1)
	if req.MinQty != nil {
		minQty = *req.MinQty
	}
	if !minQty.IsPositive() {
		data["min_qty"] = minQty.String()
		return nil, catalogerr.New(catalogerr.CodeInvalidQuantity, data)
	}

	listing, err := s.store.GetListingByCode(ctx, listingCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	if listing == nil {
		return nil, catalogerr.New(catalogerr.CodeListingNotFound, data)
	}
	product, err := s.store.GetProductBySKU(ctx, req.SKU)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, catalogerr.SkuNotFound(req.SKU)
	}

	item := &models.ListingItem{
		ListingID:   listing.ID,
		ProductID:   product.ID,
		PriceQ:      req.PriceQ,
		MinQty:      minQty,
		IsPublished: boolOr(req.IsPublished, true),
		IsAvailable: boolOr(req.IsAvailable, true),
	}

	oldPrice, existed, err := s.store.UpsertListingItem(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert listing item: %w", err)
	}

	if !existed || oldPrice == item.PriceQ {
		return item, nil
	}

	util.PriceChangesTotal.Inc()
	s.logger.Info("Listing price changed",
		zap.String("listing_code", listingCode),
		zap.String("sku", req.SKU),
		zap.Int64("old_price_q", oldPrice),
		zap.Int64("new_price_q", item.PriceQ))

	event := &models.PriceChangedEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypePriceChanged),
		ListingCode: listingCode,
		SKU:         req.SKU,
		OldPriceQ:   oldPrice,
		NewPriceQ:   item.PriceQ,
	}
	if err := s.events.PublishPriceChanged(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(event.EventType).Inc()
		s.logger.Error("Failed to publish PriceChanged event",
			zap.String("listing_code", listingCode),
			zap.String("sku", req.SKU),
			zap.Error(err))
	}

	return item, nil
}

// Get returns the listing, or LISTING_NOT_FOUND.
func (s *ListingService) Get(ctx context.Context, code string) (*models.Listing, error) {
	listing, err := s.store.GetListingByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	if listing == nil {
		return nil, catalogerr.New(catalogerr.CodeListingNotFound, map[string]any{"listing_code": code})
	}
	return listing, nil
}

// PriceHistory returns the recorded price changes of sku in the listing,
// oldest first.
func (s *ListingService) PriceHistory(ctx context.Context, listingCode, sku string) ([]models.PriceHistory, error) {
	return s.store.ListPriceHistory(ctx, listingCode, sku)
}
