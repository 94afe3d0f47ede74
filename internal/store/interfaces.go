package store

import (
	"context"

	"catalog-service/internal/models"
)

// Lookups by key (GetXBySKU, GetXBySlug, GetXByCode) return nil, nil when
// the row does not exist.

// ProductFilter narrows SearchProducts. Zero values mean "no filter".
type ProductFilter struct {
	// Text matches SKU or name, case-insensitive substring.
	Text string
	// CollectionSlug and CollectionID require membership in a collection.
	CollectionSlug string
	CollectionID   int64
	// Keywords requires at least one of the keywords.
	Keywords      []string
	ExcludeSKU    string
	OnlyPublished bool
	OnlyAvailable bool
	Limit         int
}

// ProductStore persists products and their keywords.
type ProductStore interface {
	// CreateProduct writes the product and its keywords atomically.
	CreateProduct(ctx context.Context, p *models.Product, keywords []string) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	// DeleteProduct fails with PRODUCT_IN_USE while the product is a component.
	DeleteProduct(ctx context.Context, id int64) error
	GetProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	GetProductsBySKUs(ctx context.Context, skus []string) ([]models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	SearchProducts(ctx context.Context, f ProductFilter) ([]models.Product, error)

	SetKeywords(ctx context.Context, productID int64, keywords []string) error
	GetKeywords(ctx context.Context, productID int64) ([]string, error)
	GetKeywordsByProductIDs(ctx context.Context, ids []int64) (map[int64][]string, error)
}

// CollectionStore persists the collection forest and memberships.
type CollectionStore interface {
	// CreateCollectionTx and SetCollectionParentTx hand validate a
	// consistent snapshot of every collection inside the write transaction.
	// Nothing is written when validate fails.
	CreateCollectionTx(ctx context.Context, c *models.Collection, validate func([]models.Collection) error) error
	SetCollectionParentTx(ctx context.Context, id int64, parentID *int64, validate func([]models.Collection) error) error
	GetCollectionBySlug(ctx context.Context, slug string) (*models.Collection, error)
	ListCollections(ctx context.Context) ([]models.Collection, error)

	// AddCollectionItem upserts membership. A primary item clears every
	// other primary of the product in the same transaction.
	AddCollectionItem(ctx context.Context, item *models.CollectionItem) error
	GetPrimaryCollection(ctx context.Context, productID int64) (*models.Collection, error)
	ListCollectionProductIDs(ctx context.Context, collectionID int64) ([]int64, error)
}

// ComponentStore persists bundle composition edges.
type ComponentStore interface {
	ListComponentEdges(ctx context.Context) ([]models.ProductComponent, error)
	GetComponents(ctx context.Context, parentID int64) ([]models.ComponentLine, error)
	HasComponents(ctx context.Context, productID int64) (bool, error)
	// CreateComponentTx loads every edge, runs validate and inserts the
	// edge (or updates its qty) as one serializable unit.
	CreateComponentTx(ctx context.Context, edge *models.ProductComponent, validate func([]models.ProductComponent) error) error
	DeleteComponent(ctx context.Context, parentID, componentID int64) (bool, error)
}

// ListingStore persists sales channels and their price tiers.
type ListingStore interface {
	CreateListing(ctx context.Context, l *models.Listing) error
	GetListingByCode(ctx context.Context, code string) (*models.Listing, error)
	ListListingItems(ctx context.Context, listingID, productID int64) ([]models.ListingItem, error)
	// UpsertListingItem inserts or updates the tier keyed by (listing,
	// product, min_qty). On update it returns the previous price, read under
	// a row lock; existed is false on insert.
	UpsertListingItem(ctx context.Context, item *models.ListingItem) (oldPriceQ int64, existed bool, err error)
	ListAvailableProducts(ctx context.Context, listingCode string) ([]models.Product, error)
	IsProductListed(ctx context.Context, productID int64, listingCode string) (bool, error)
}

// EventStore persists consumed events and the price history built from them.
type EventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	RecordPriceChange(ctx context.Context, h *models.PriceHistory) error
	ListPriceHistory(ctx context.Context, listingCode, sku string) ([]models.PriceHistory, error)
}

// Catalog is everything the services need.
type Catalog interface {
	ProductStore
	CollectionStore
	ComponentStore
	ListingStore
	EventStore
}
