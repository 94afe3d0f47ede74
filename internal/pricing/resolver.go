// Package pricing resolves the price of a SKU for a quantity and an
// optional sales channel.
//
// Resolution order: the channel's listing (when it exists and is valid
// today) supplies the unit price of the tier with the largest min_qty not
// above the requested quantity, among items published and available in that
// channel. Anything else falls back to the product's base price. The total
// is unit × qty rounded half up.
package pricing

import (
	"context"
	"fmt"
	"time"

	"catalog-service/internal/catalogerr"
	"catalog-service/internal/models"
	"catalog-service/internal/money"
	"catalog-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Price sources reported in a Quote.
const (
	SourceListing = "listing"
	SourceBase    = "base"
)

// Store is the read side the resolver needs. Lookups return nil, nil on a
// miss.
type Store interface {
	GetProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	GetListingByCode(ctx context.Context, code string) (*models.Listing, error)
	// ListListingItems returns every tier of the product in the listing
	// from a single read.
	ListListingItems(ctx context.Context, listingID, productID int64) ([]models.ListingItem, error)
}

// Quote is a resolved price.
type Quote struct {
	SKU         string          `json:"sku"`
	Qty         decimal.Decimal `json:"qty"`
	UnitPriceQ  int64           `json:"unit_price_q"`
	TotalPriceQ int64           `json:"total_price_q"`
	Channel     string          `json:"channel,omitempty"`
	Source      string          `json:"source"`
	MinQty      decimal.Decimal `json:"min_qty"`
}

// Resolver computes channel prices.
type Resolver struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// NewResolver creates a resolver reading from store.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:  store,
		now:    time.Now,
		logger: util.GetLogger(),
	}
}

// WithClock replaces the clock used to decide listing validity.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Price returns the total price in cents.
func (r *Resolver) Price(ctx context.Context, sku string, qty decimal.Decimal, channel string) (int64, error) {
	q, err := r.Quote(ctx, sku, qty, channel)
	if err != nil {
		return 0, err
	}
	return q.TotalPriceQ, nil
}

// Quote resolves the unit price and total, reporting where the price came from.
func (r *Resolver) Quote(ctx context.Context, sku string, qty decimal.Decimal, channel string) (*Quote, error) {
	ctx, span := util.StartSpan(ctx, "Resolver.Quote")
	defer span.End()

	start := time.Now()
	defer func() {
		util.PriceResolutionLatency.Observe(time.Since(start).Seconds())
	}()

	if !qty.IsPositive() {
		return nil, catalogerr.New(catalogerr.CodeInvalidQuantity, map[string]any{"sku": sku, "qty": qty.String()})
	}

	product, err := r.store.GetProductBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product == nil {
		return nil, catalogerr.SkuNotFound(sku)
	}

	quote := &Quote{
		SKU:        sku,
		Qty:        qty,
		UnitPriceQ: product.BasePriceQ,
		Source:     SourceBase,
	}

	if channel != "" {
		item, err := r.channelTier(ctx, product, qty, channel)
		if err != nil {
			return nil, err
		}
		if item != nil {
			quote.UnitPriceQ = item.PriceQ
			quote.Source = SourceListing
			quote.Channel = channel
			quote.MinQty = item.MinQty
		}
	}

	quote.TotalPriceQ = money.Total(quote.UnitPriceQ, qty)
	util.PriceResolutionsTotal.WithLabelValues(quote.Source).Inc()

	return quote, nil
}

// channelTier returns the applicable listing item, or nil when the price
// must fall back to the base price.
func (r *Resolver) channelTier(ctx context.Context, product *models.Product, qty decimal.Decimal, channel string) (*models.ListingItem, error) {
	listing, err := r.store.GetListingByCode(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	if listing == nil || !listing.IsValid(r.now()) {
		r.logger.Debug("Listing missing or not valid, using base price",
			zap.String("channel", channel),
			zap.String("sku", product.SKU))
		return nil, nil
	}

	items, err := r.store.ListListingItems(ctx, listing.ID, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing items: %w", err)
	}

	return SelectTier(items, qty), nil
}

// SelectTier picks the offered item with the largest MinQty <= qty.
// Tiers form a step function of the quantity.
func SelectTier(items []models.ListingItem, qty decimal.Decimal) *models.ListingItem {
	var best *models.ListingItem
	for i := range items {
		item := &items[i]
		if !item.IsOffered() || item.MinQty.GreaterThan(qty) {
			continue
		}
		if best == nil || item.MinQty.GreaterThan(best.MinQty) {
			best = item
		}
	}
	return best
}
