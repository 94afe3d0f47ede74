package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"catalog-service/internal/catalogerr"
	"catalog-service/internal/models"
	"catalog-service/internal/store"
	"catalog-service/internal/util"

	"go.uber.org/zap"
)

// ProductService handles product writes
type ProductService struct {
	store  store.ProductStore
	events EventSink
	logger *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(store store.ProductStore, events EventSink) *ProductService {
	return &ProductService{
		store:  store,
		events: events,
		logger: util.GetLogger(),
	}
}

// CreateProductRequest represents a request to create a product
type CreateProductRequest struct {
	SKU                  string   `json:"sku" binding:"required"`
	Name                 string   `json:"name" binding:"required"`
	ShortDescription     string   `json:"short_description"`
	LongDescription      string   `json:"long_description"`
	Unit                 string   `json:"unit"`
	BasePriceQ           int64    `json:"base_price_q"`
	AvailabilityPolicy   string   `json:"availability_policy"`
	IsPublished          *bool    `json:"is_published"`
	IsAvailable          *bool    `json:"is_available"`
	IsBatchProduced      bool     `json:"is_batch_produced"`
	ShelfLifeHours       *int     `json:"shelf_life_hours"`
	ProductionCycleHours *int     `json:"production_cycle_hours"`
	Keywords             []string `json:"keywords"`
}

// UpdateProductRequest changes the fields that are set. The SKU cannot change.
type UpdateProductRequest struct {
	Name                 *string `json:"name"`
	ShortDescription     *string `json:"short_description"`
	LongDescription      *string `json:"long_description"`
	Unit                 *string `json:"unit"`
	BasePriceQ           *int64  `json:"base_price_q"`
	AvailabilityPolicy   *string `json:"availability_policy"`
	IsPublished          *bool   `json:"is_published"`
	IsAvailable          *bool   `json:"is_available"`
	IsBatchProduced      *bool   `json:"is_batch_produced"`
	ShelfLifeHours       *int    `json:"shelf_life_hours"`
	ProductionCycleHours *int    `json:"production_cycle_hours"`
}

// Create persists a product and emits ProductCreated once it is stored.
func (s *ProductService) Create(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Create")
	defer span.End()

	sku := strings.TrimSpace(req.SKU)
	if sku == "" {
		return nil, catalogerr.Newf(catalogerr.CodeInvalidInput, map[string]any{"sku": req.SKU}, "SKU must not be empty")
	}
	if req.BasePriceQ < 0 {
		return nil, catalogerr.New(catalogerr.CodeInvalidPrice, map[string]any{"sku": sku, "base_price_q": req.BasePriceQ})
	}

	policy := req.AvailabilityPolicy
	if policy == "" {
		policy = models.AvailabilityPlannedOK
	}
	if err := checkPolicy(sku, policy); err != nil {
		return nil, err
	}

	unit := req.Unit
	if unit == "" {
		unit = models.DefaultUnit
	}

	product := &models.Product{
		SKU:                  sku,
		Name:                 req.Name,
		ShortDescription:     req.ShortDescription,
		LongDescription:      req.LongDescription,
		Unit:                 unit,
		BasePriceQ:           req.BasePriceQ,
		AvailabilityPolicy:   policy,
		IsPublished:          boolOr(req.IsPublished, true),
		IsAvailable:          boolOr(req.IsAvailable, true),
		IsBatchProduced:      req.IsBatchProduced,
		ShelfLifeHours:       req.ShelfLifeHours,
		ProductionCycleHours: req.ProductionCycleHours,
	}

	if err := s.store.CreateProduct(ctx, product, normalizeKeywords(req.Keywords)); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	util.ProductsCreatedTotal.Inc()
	s.logger.Info("Product created", zap.String("sku", product.SKU), zap.Int64("product_id", product.ID))

	event := &models.ProductCreatedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeProductCreated),
		SKU:       product.SKU,
	}
	if err := s.events.PublishProductCreated(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(event.EventType).Inc()
		s.logger.Error("Failed to publish ProductCreated event", zap.String("sku", product.SKU), zap.Error(err))
	}

	return product, nil
}

// Update applies a partial update. It never emits events.
func (s *ProductService) Update(ctx context.Context, sku string, req *UpdateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Update")
	defer span.End()

	product, err := s.mustGet(ctx, sku)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.ShortDescription != nil {
		product.ShortDescription = *req.ShortDescription
	}
	if req.LongDescription != nil {
		product.LongDescription = *req.LongDescription
	}
	if req.Unit != nil && *req.Unit != "" {
		product.Unit = *req.Unit
	}
	if req.BasePriceQ != nil {
		if *req.BasePriceQ < 0 {
			return nil, catalogerr.New(catalogerr.CodeInvalidPrice, map[string]any{"sku": sku, "base_price_q": *req.BasePriceQ})
		}
		product.BasePriceQ = *req.BasePriceQ
	}
	if req.AvailabilityPolicy != nil {
		if err := checkPolicy(sku, *req.AvailabilityPolicy); err != nil {
			return nil, err
		}
		product.AvailabilityPolicy = *req.AvailabilityPolicy
	}
	if req.IsPublished != nil {
		product.IsPublished = *req.IsPublished
	}
	if req.IsAvailable != nil {
		product.IsAvailable = *req.IsAvailable
	}
	if req.IsBatchProduced != nil {
		product.IsBatchProduced = *req.IsBatchProduced
	}
	if req.ShelfLifeHours != nil {
		product.ShelfLifeHours = req.ShelfLifeHours
	}
	if req.ProductionCycleHours != nil {
		product.ProductionCycleHours = req.ProductionCycleHours
	}

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

// Delete removes a product. It fails with PRODUCT_IN_USE while another
// product lists it as a component.
func (s *ProductService) Delete(ctx context.Context, sku string) error {
	product, err := s.mustGet(ctx, sku)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProduct(ctx, product.ID); err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.String("sku", sku))
	return nil
}

// SetKeywords replaces the keywords of a product.
func (s *ProductService) SetKeywords(ctx context.Context, sku string, keywords []string) ([]string, error) {
	product, err := s.mustGet(ctx, sku)
	if err != nil {
		return nil, err
	}
	normalized := normalizeKeywords(keywords)
	if err := s.store.SetKeywords(ctx, product.ID, normalized); err != nil {
		return nil, fmt.Errorf("failed to set keywords: %w", err)
	}
	return normalized, nil
}

func (s *ProductService) mustGet(ctx context.Context, sku string) (*models.Product, error) {
	product, err := s.store.GetProductBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, catalogerr.SkuNotFound(sku)
	}
	return product, nil
}

func checkPolicy(sku, policy string) error {
	switch policy {
	case models.AvailabilityStockOnly, models.AvailabilityPlannedOK, models.AvailabilityDemandOK:
		return nil
	}
	return catalogerr.Newf(catalogerr.CodeInvalidInput, map[string]any{"sku": sku, "availability_policy": policy},
		"Unknown availability policy '%s'", policy)
}

// normalizeKeywords lower-cases, trims and de-duplicates keywords.
func normalizeKeywords(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
