package service

import (
	"context"
	"fmt"
	"strings"

	"catalog-service/internal/catalogerr"
	"catalog-service/internal/models"
	"catalog-service/internal/money"
	"catalog-service/internal/pricing"
	"catalog-service/internal/store"
	"catalog-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Validation error codes reported in SkuValidation.ErrorCode.
const (
	ValidationNotFound = "not_found"
	ValidationIsBundle = "is_bundle"
)

// DefaultSearchLimit caps Search when no limit is given.
const DefaultSearchLimit = 20

// CatalogService is the read facade used by ordering, production and
// inventory: lookup, validation, search, pricing and bundle expansion.
// Lookups never fail on a missing SKU; derived values (price, expand) do.
type CatalogService struct {
	store    store.Catalog
	resolver *pricing.Resolver
	cost     CostBackend
	logger   *zap.Logger
}

// NewCatalogService creates the facade. cost may be nil.
func NewCatalogService(store store.Catalog, resolver *pricing.Resolver, cost CostBackend) *CatalogService {
	if cost == nil {
		cost = NoopCostBackend{}
	}
	return &CatalogService{
		store:    store,
		resolver: resolver,
		cost:     cost,
		logger:   util.GetLogger(),
	}
}

// SkuValidation is the structured result of Validate. Valid is false only
// for an unknown SKU.
type SkuValidation struct {
	Valid       bool   `json:"valid"`
	SKU         string `json:"sku"`
	Name        string `json:"name,omitempty"`
	IsPublished bool   `json:"is_published"`
	IsAvailable bool   `json:"is_available"`
	ErrorCode   string `json:"error_code,omitempty"`
	Message     string `json:"message,omitempty"`
}

// SearchParams filters Search. OnlyPublished and OnlyAvailable default to
// true when nil.
type SearchParams struct {
	Query         string
	Collection    string
	Keywords      []string
	OnlyPublished *bool
	OnlyAvailable *bool
	Limit         int
}

// ExpandedComponent is one line of a bundle expansion.
type ExpandedComponent struct {
	SKU  string          `json:"sku"`
	Name string          `json:"name"`
	Qty  decimal.Decimal `json:"qty"`
}

// PriceInfo is a price with the unit price derived from the total.
type PriceInfo struct {
	SKU         string          `json:"sku"`
	UnitPriceQ  int64           `json:"unit_price_q"`
	TotalPriceQ int64           `json:"total_price_q"`
	Qty         decimal.Decimal `json:"qty"`
	PriceList   string          `json:"price_list,omitempty"`
}

// ProductInfo is the denormalised product view served to other systems.
type ProductInfo struct {
	SKU         string   `json:"sku"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Unit        string   `json:"unit"`
	IsBundle    bool     `json:"is_bundle"`
	BasePriceQ  int64    `json:"base_price_q"`
	IsPublished bool     `json:"is_published"`
	IsAvailable bool     `json:"is_available"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Get returns the product, or nil when the SKU is unknown.
func (s *CatalogService) Get(ctx context.Context, sku string) (*models.Product, error) {
	product, err := s.store.GetProductBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// GetMany returns the known products keyed by SKU. Unknown SKUs are absent.
func (s *CatalogService) GetMany(ctx context.Context, skus []string) (map[string]*models.Product, error) {
	products, err := s.store.GetProductsBySKUs(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	out := make(map[string]*models.Product, len(products))
	for i := range products {
		out[products[i].SKU] = &products[i]
	}
	return out, nil
}

// Validate reports whether sku exists and explains why an existing product
// could not be sold.
func (s *CatalogService) Validate(ctx context.Context, sku string) (*SkuValidation, error) {
	product, err := s.Get(ctx, sku)
	if err != nil {
		return nil, err
	}
	return validation(sku, product), nil
}

// ValidateMany validates every SKU with a single lookup.
func (s *CatalogService) ValidateMany(ctx context.Context, skus []string) (map[string]*SkuValidation, error) {
	found, err := s.GetMany(ctx, skus)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*SkuValidation, len(skus))
	for _, sku := range skus {
		out[sku] = validation(sku, found[sku])
	}
	return out, nil
}

func validation(sku string, product *models.Product) *SkuValidation {
	if product == nil {
		return &SkuValidation{
			Valid:     false,
			SKU:       sku,
			ErrorCode: ValidationNotFound,
			Message:   fmt.Sprintf("SKU '%s' not found", sku),
		}
	}

	v := &SkuValidation{
		Valid:       true,
		SKU:         sku,
		Name:        product.Name,
		IsPublished: product.IsPublished,
		IsAvailable: product.IsAvailable,
	}
	switch {
	case !product.IsPublished:
		v.Message = "Product is not published in catalog"
	case !product.IsAvailable:
		v.Message = "Product is not available for purchase"
	}
	return v
}

// ValidateOutputSKU checks whether sku can be the output of a production
// run. Bundles cannot; an unknown SKU is accepted since production creates it.
func (s *CatalogService) ValidateOutputSKU(ctx context.Context, sku string) (*SkuValidation, error) {
	product, err := s.Get(ctx, sku)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return &SkuValidation{
			Valid:   true,
			SKU:     sku,
			Message: "SKU not found, will be created on first production",
		}, nil
	}

	isBundle, err := s.store.HasComponents(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check components: %w", err)
	}
	if isBundle {
		return &SkuValidation{
			Valid:     false,
			SKU:       sku,
			ErrorCode: ValidationIsBundle,
			Message:   "Cannot use bundle as production output",
		}, nil
	}

	return &SkuValidation{
		Valid:       true,
		SKU:         sku,
		Name:        product.Name,
		IsPublished: product.IsPublished,
		IsAvailable: product.IsAvailable,
	}, nil
}

// Search matches the query against SKU or name and applies the collection
// and keyword filters on top.
func (s *CatalogService) Search(ctx context.Context, params SearchParams) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Search")
	defer span.End()

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	products, err := s.store.SearchProducts(ctx, store.ProductFilter{
		Text:           strings.TrimSpace(params.Query),
		CollectionSlug: params.Collection,
		Keywords:       normalizeKeywords(params.Keywords),
		OnlyPublished:  boolOr(params.OnlyPublished, true),
		OnlyAvailable:  boolOr(params.OnlyAvailable, true),
		Limit:          limit,
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// Price returns the total price in cents for qty units in channel.
func (s *CatalogService) Price(ctx context.Context, sku string, qty decimal.Decimal, channel string) (int64, error) {
	return s.resolver.Price(ctx, sku, qty, channel)
}

// Quote returns the resolved price with its source.
func (s *CatalogService) Quote(ctx context.Context, sku string, qty decimal.Decimal, channel string) (*pricing.Quote, error) {
	return s.resolver.Quote(ctx, sku, qty, channel)
}

// PriceInfo returns the total and a unit price derived from it.
func (s *CatalogService) PriceInfo(ctx context.Context, sku string, qty decimal.Decimal, channel string) (*PriceInfo, error) {
	total, err := s.resolver.Price(ctx, sku, qty, channel)
	if err != nil {
		return nil, err
	}
	return &PriceInfo{
		SKU:         sku,
		UnitPriceQ:  money.UnitPrice(total, qty),
		TotalPriceQ: total,
		Qty:         qty,
		PriceList:   channel,
	}, nil
}

// Expand returns the direct components of a bundle scaled by qty. Nested
// bundles are not expanded.
func (s *CatalogService) Expand(ctx context.Context, sku string, qty decimal.Decimal) ([]ExpandedComponent, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Expand")
	defer span.End()

	product, err := s.Get(ctx, sku)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, catalogerr.SkuNotFound(sku)
	}

	lines, err := s.store.GetComponents(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load components: %w", err)
	}
	if len(lines) == 0 {
		return nil, catalogerr.New(catalogerr.CodeNotABundle, map[string]any{"sku": sku})
	}

	out := make([]ExpandedComponent, 0, len(lines))
	for _, l := range lines {
		out = append(out, ExpandedComponent{SKU: l.SKU, Name: l.Name, Qty: l.Qty.Mul(qty)})
	}

	util.BundleExpansionsTotal.Inc()
	return out, nil
}

// AvailableProducts returns the products purchasable in a listing.
func (s *CatalogService) AvailableProducts(ctx context.Context, listingCode string) ([]models.Product, error) {
	products, err := s.store.ListAvailableProducts(ctx, listingCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list available products: %w", err)
	}
	return products, nil
}

// IsAvailable reports whether product can be bought in the listing. The
// global flags are checked before touching the store.
func (s *CatalogService) IsAvailable(ctx context.Context, product *models.Product, listingCode string) (bool, error) {
	if product == nil || !product.IsActive() {
		return false, nil
	}
	return s.store.IsProductListed(ctx, product.ID, listingCode)
}

// ProductInfo returns the denormalised view of a product, or nil.
func (s *CatalogService) ProductInfo(ctx context.Context, sku string) (*ProductInfo, error) {
	product, err := s.Get(ctx, sku)
	if err != nil || product == nil {
		return nil, err
	}

	isBundle, err := s.store.HasComponents(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check components: %w", err)
	}
	primary, err := s.store.GetPrimaryCollection(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load primary collection: %w", err)
	}
	keywords, err := s.store.GetKeywords(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load keywords: %w", err)
	}

	info := &ProductInfo{
		SKU:         product.SKU,
		Name:        product.Name,
		Description: product.LongDescription,
		Unit:        product.Unit,
		IsBundle:    isBundle,
		BasePriceQ:  product.BasePriceQ,
		IsPublished: product.IsPublished,
		IsAvailable: product.IsAvailable,
		Keywords:    keywords,
	}
	if primary != nil {
		info.Category = primary.Slug
	}
	return info, nil
}

// Margin returns the margin percentage of the base price over the cost
// reported by the cost backend. ok is false when the cost is unknown or the
// base price is zero.
func (s *CatalogService) Margin(ctx context.Context, sku string) (decimal.Decimal, bool, error) {
	product, err := s.Get(ctx, sku)
	if err != nil {
		return decimal.Zero, false, err
	}
	if product == nil {
		return decimal.Zero, false, catalogerr.SkuNotFound(sku)
	}

	cost, ok, err := s.cost.GetCost(ctx, sku)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to get cost: %w", err)
	}
	if !ok {
		return decimal.Zero, false, nil
	}

	margin, ok := money.MarginPercent(product.BasePriceQ, cost)
	return margin, ok, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
