package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"catalog-service/internal/catalogerr"
	"catalog-service/internal/graph"
	"catalog-service/internal/models"
	"catalog-service/internal/store"
	"catalog-service/internal/util"

	"go.uber.org/zap"
)

// CollectionStore is what CollectionService needs from storage.
type CollectionStore interface {
	GetProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	store.CollectionStore
}

// CollectionService maintains the collection forest and product memberships.
type CollectionService struct {
	store  CollectionStore
	locker Locker
	limits LimitsProvider
	logger *zap.Logger
}

// NewCollectionService creates a new collection service
func NewCollectionService(store CollectionStore, locker Locker, limits LimitsProvider) *CollectionService {
	return &CollectionService{
		store:  store,
		locker: locker,
		limits: limits,
		logger: util.GetLogger(),
	}
}

// CreateCollectionRequest represents a request to create a collection
type CreateCollectionRequest struct {
	Slug        string     `json:"slug" binding:"required"`
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	ParentSlug  string     `json:"parent_slug"`
	ValidFrom   *time.Time `json:"valid_from"`
	ValidUntil  *time.Time `json:"valid_until"`
	SortOrder   int        `json:"sort_order"`
	IsActive    *bool      `json:"is_active"`
}

// CollectionView is a collection with its position in the forest.
type CollectionView struct {
	models.Collection
	FullPath string `json:"full_path"`
	Depth    int    `json:"depth"`
}

// Create adds a collection, optionally under ParentSlug.
func (s *CollectionService) Create(ctx context.Context, req *CreateCollectionRequest) (*models.Collection, error) {
	ctx, span := util.StartSpan(ctx, "CollectionService.Create")
	defer span.End()

	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		return nil, catalogerr.Newf(catalogerr.CodeInvalidInput, map[string]any{"slug": req.Slug}, "Slug must not be empty")
	}

	collection := &models.Collection{
		Slug:        slug,
		Name:        req.Name,
		Description: req.Description,
		ValidFrom:   req.ValidFrom,
		ValidUntil:  req.ValidUntil,
		SortOrder:   req.SortOrder,
		IsActive:    boolOr(req.IsActive, true),
	}

	if req.ParentSlug != "" {
		parent, err := s.mustGet(ctx, req.ParentSlug)
		if err != nil {
			return nil, err
		}
		collection.ParentID = &parent.ID
	}

	unlock, err := s.locker.Lock(ctx, lockCollectionGraph)
	if err != nil {
		return nil, fmt.Errorf("failed to lock collection graph: %w", err)
	}
	defer unlock()

	maxDepth := s.limits.Limits().MaxCollectionDepth
	err = s.store.CreateCollectionTx(ctx, collection, func(cols []models.Collection) error {
		return graph.NewForest(cols).ValidateParent(0, collection.ParentID, maxDepth)
	})
	if err != nil {
		return nil, s.rejected(err, "failed to create collection")
	}

	s.logger.Info("Collection created", zap.String("slug", slug), zap.Int64("collection_id", collection.ID))
	return collection, nil
}

// SetParent moves the collection under parentSlug, or to the root when
// parentSlug is empty.
func (s *CollectionService) SetParent(ctx context.Context, slug, parentSlug string) error {
	ctx, span := util.StartSpan(ctx, "CollectionService.SetParent")
	defer span.End()

	collection, err := s.mustGet(ctx, slug)
	if err != nil {
		return err
	}

	var parentID *int64
	if parentSlug != "" {
		parent, err := s.mustGet(ctx, parentSlug)
		if err != nil {
			return err
		}
		parentID = &parent.ID
	}

	unlock, err := s.locker.Lock(ctx, lockCollectionGraph)
	if err != nil {
		return fmt.Errorf("failed to lock collection graph: %w", err)
	}
	defer unlock()

	maxDepth := s.limits.Limits().MaxCollectionDepth
	err = s.store.SetCollectionParentTx(ctx, collection.ID, parentID, func(cols []models.Collection) error {
		return graph.NewForest(cols).ValidateParent(collection.ID, parentID, maxDepth)
	})
	if err != nil {
		return s.rejected(err, "failed to set parent")
	}

	s.logger.Info("Collection parent changed", zap.String("slug", slug), zap.String("parent", parentSlug))
	return nil
}

// Get returns the collection with its full path and depth.
func (s *CollectionService) Get(ctx context.Context, slug string) (*CollectionView, error) {
	forest, collection, err := s.forest(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &CollectionView{
		Collection: *collection,
		FullPath:   forest.FullPath(collection.ID),
		Depth:      forest.Depth(collection.ID),
	}, nil
}

// FullPath renders "Root > ... > slug".
func (s *CollectionService) FullPath(ctx context.Context, slug string) (string, error) {
	forest, collection, err := s.forest(ctx, slug)
	if err != nil {
		return "", err
	}
	return forest.FullPath(collection.ID), nil
}

// Ancestors returns the ancestors of slug from the root down. maxDepth <= 0
// uses the configured collection depth.
func (s *CollectionService) Ancestors(ctx context.Context, slug string, maxDepth int) ([]models.Collection, error) {
	forest, collection, err := s.forest(ctx, slug)
	if err != nil {
		return nil, err
	}
	return forest.Ancestors(collection.ID, s.depthOrDefault(maxDepth)), nil
}

// Descendants returns the collections below slug, breadth first.
func (s *CollectionService) Descendants(ctx context.Context, slug string, maxDepth int) ([]models.Collection, error) {
	forest, collection, err := s.forest(ctx, slug)
	if err != nil {
		return nil, err
	}
	return forest.Descendants(collection.ID, s.depthOrDefault(maxDepth)), nil
}

// AddProduct adds sku to the collection. When isPrimary is set every other
// primary membership of the product is cleared in the same write.
func (s *CollectionService) AddProduct(ctx context.Context, slug, sku string, isPrimary bool, sortOrder int) (*models.CollectionItem, error) {
	ctx, span := util.StartSpan(ctx, "CollectionService.AddProduct")
	defer span.End()

	collection, err := s.mustGet(ctx, slug)
	if err != nil {
		return nil, err
	}
	product, err := s.store.GetProductBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, catalogerr.SkuNotFound(sku)
	}

	item := &models.CollectionItem{
		CollectionID: collection.ID,
		ProductID:    product.ID,
		IsPrimary:    isPrimary,
		SortOrder:    sortOrder,
	}
	if err := s.store.AddCollectionItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to add collection item: %w", err)
	}

	s.logger.Info("Product added to collection",
		zap.String("slug", slug),
		zap.String("sku", sku),
		zap.Bool("primary", isPrimary))
	return item, nil
}

// SetPrimary makes slug the primary collection of sku.
func (s *CollectionService) SetPrimary(ctx context.Context, slug, sku string) (*models.CollectionItem, error) {
	return s.AddProduct(ctx, slug, sku, true, 0)
}

// PrimaryCollection returns the primary collection of sku, or nil.
func (s *CollectionService) PrimaryCollection(ctx context.Context, sku string) (*models.Collection, error) {
	product, err := s.store.GetProductBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, catalogerr.SkuNotFound(sku)
	}
	return s.store.GetPrimaryCollection(ctx, product.ID)
}

// List returns every collection.
func (s *CollectionService) List(ctx context.Context) ([]models.Collection, error) {
	return s.store.ListCollections(ctx)
}

func (s *CollectionService) forest(ctx context.Context, slug string) (*graph.Forest, *models.Collection, error) {
	collection, err := s.mustGet(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	cols, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return graph.NewForest(cols), collection, nil
}

func (s *CollectionService) mustGet(ctx context.Context, slug string) (*models.Collection, error) {
	collection, err := s.store.GetCollectionBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	if collection == nil {
		return nil, catalogerr.New(catalogerr.CodeCollectionNotFound, map[string]any{"slug": slug})
	}
	return collection, nil
}

func (s *CollectionService) depthOrDefault(maxDepth int) int {
	if maxDepth <= 0 {
		return s.limits.Limits().MaxCollectionDepth
	}
	return maxDepth
}

func (s *CollectionService) rejected(err error, msg string) error {
	ce, ok := asCatalogError(err)
	if !ok {
		return fmt.Errorf("%s: %w", msg, err)
	}
	util.GraphMutationsRejectedTotal.WithLabelValues("collection", string(ce.Code)).Inc()
	s.logger.Warn("Collection change rejected", zap.String("code", string(ce.Code)), zap.Any("data", ce.Data))
	return ce
}
