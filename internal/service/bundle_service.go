package service

import (
	"context"
	"fmt"

	"catalog-service/internal/catalogerr"
	"catalog-service/internal/graph"
	"catalog-service/internal/models"
	"catalog-service/internal/store"
	"catalog-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BundleStore is what BundleService needs from storage.
type BundleStore interface {
	GetProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	store.ComponentStore
}

// BundleService maintains the composition graph of bundle products.
type BundleService struct {
	store  BundleStore
	locker Locker
	limits LimitsProvider
	logger *zap.Logger
}

// NewBundleService creates a new bundle service
func NewBundleService(store BundleStore, locker Locker, limits LimitsProvider) *BundleService {
	return &BundleService{
		store:  store,
		locker: locker,
		limits: limits,
		logger: util.GetLogger(),
	}
}

// AddComponent makes componentSKU a component of parentSKU with qty units.
// Adding an existing pair updates its qty. The edge is validated against
// every other edge inside the write transaction; a rejected edge writes
// nothing.
func (s *BundleService) AddComponent(ctx context.Context, parentSKU, componentSKU string, qty decimal.Decimal) (*models.ProductComponent, error) {
	ctx, span := util.StartSpan(ctx, "BundleService.AddComponent")
	defer span.End()

	data := map[string]any{"sku": parentSKU, "component_sku": componentSKU}

	if !qty.IsPositive() {
		data["qty"] = qty.String()
		return nil, catalogerr.New(catalogerr.CodeInvalidQuantity, data)
	}

	parent, err := s.lookup(ctx, parentSKU)
	if err != nil {
		return nil, err
	}
	component, err := s.lookup(ctx, componentSKU)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, lockBundleGraph)
	if err != nil {
		return nil, fmt.Errorf("failed to lock bundle graph: %w", err)
	}
	defer unlock()

	maxDepth := s.limits.Limits().BundleMaxDepth
	edge := &models.ProductComponent{ParentID: parent.ID, ComponentID: component.ID, Qty: qty}

	err = s.store.CreateComponentTx(ctx, edge, func(edges []models.ProductComponent) error {
		return graph.NewBundleGraph(edges).ValidateEdge(parent.ID, component.ID, maxDepth)
	})
	if err != nil {
		if ce, ok := asCatalogError(err); ok {
			util.GraphMutationsRejectedTotal.WithLabelValues("bundle", string(ce.Code)).Inc()
			s.logger.Warn("Component rejected",
				zap.String("sku", parentSKU),
				zap.String("component_sku", componentSKU),
				zap.String("code", string(ce.Code)))
			return nil, withData(ce, data)
		}
		return nil, fmt.Errorf("failed to add component: %w", err)
	}

	s.logger.Info("Component added",
		zap.String("sku", parentSKU),
		zap.String("component_sku", componentSKU),
		zap.String("qty", qty.String()))

	return edge, nil
}

// RemoveComponent deletes the edge. Removing a missing edge is not an error.
func (s *BundleService) RemoveComponent(ctx context.Context, parentSKU, componentSKU string) error {
	parent, err := s.lookup(ctx, parentSKU)
	if err != nil {
		return err
	}
	component, err := s.lookup(ctx, componentSKU)
	if err != nil {
		return err
	}

	removed, err := s.store.DeleteComponent(ctx, parent.ID, component.ID)
	if err != nil {
		return fmt.Errorf("failed to remove component: %w", err)
	}
	if removed {
		s.logger.Info("Component removed", zap.String("sku", parentSKU), zap.String("component_sku", componentSKU))
	}
	return nil
}

// Components lists the direct components of sku.
func (s *BundleService) Components(ctx context.Context, sku string) ([]models.ComponentLine, error) {
	product, err := s.lookup(ctx, sku)
	if err != nil {
		return nil, err
	}
	return s.store.GetComponents(ctx, product.ID)
}

// IsBundle reports whether sku has at least one component.
func (s *BundleService) IsBundle(ctx context.Context, sku string) (bool, error) {
	product, err := s.lookup(ctx, sku)
	if err != nil {
		return false, err
	}
	return s.store.HasComponents(ctx, product.ID)
}

func (s *BundleService) lookup(ctx context.Context, sku string) (*models.Product, error) {
	product, err := s.store.GetProductBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, catalogerr.SkuNotFound(sku)
	}
	return product, nil
}
