package store

import (
	"context"
	"database/sql"
	"fmt"

	"catalog-service/internal/models"
)

const listingItemColumns = `id, listing_id, product_id, price_q, min_qty, is_published, is_available, created_at, updated_at`

// CreateListing inserts a listing.
func (s *Store) CreateListing(ctx context.Context, l *models.Listing) error {
	query := `
		INSERT INTO listings (code, name, description, priority, is_active, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		l.Code, l.Name, l.Description, l.Priority, l.IsActive, l.ValidFrom, l.ValidUntil,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return conflict(err, map[string]any{"listing_code": l.Code})
	}
	return nil
}

// GetListingByCode retrieves a listing by code
func (s *Store) GetListingByCode(ctx context.Context, code string) (*models.Listing, error) {
	var l models.Listing
	err := s.db.GetContext(ctx, &l, `
		SELECT id, code, name, description, priority, is_active, valid_from, valid_until, created_at, updated_at
		FROM listings WHERE code = $1`, code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListListingItems returns every tier of a product in a listing. A single
// statement reads a consistent snapshot.
func (s *Store) ListListingItems(ctx context.Context, listingID, productID int64) ([]models.ListingItem, error) {
	items := []models.ListingItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT "+listingItemColumns+" FROM listing_items WHERE listing_id = $1 AND product_id = $2 ORDER BY min_qty",
		listingID, productID)
	return items, err
}

// UpsertListingItem inserts a tier or updates it, returning the price it had.
func (s *Store) UpsertListingItem(ctx context.Context, item *models.ListingItem) (int64, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	var old models.ListingItem
	err = tx.GetContext(ctx, &old,
		"SELECT "+listingItemColumns+" FROM listing_items WHERE listing_id = $1 AND product_id = $2 AND min_qty = $3 FOR UPDATE",
		item.ListingID, item.ProductID, item.MinQty)

	switch {
	case err == sql.ErrNoRows:
		err = tx.GetContext(ctx, item, `
			INSERT INTO listing_items (listing_id, product_id, price_q, min_qty, is_published, is_available)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+listingItemColumns,
			item.ListingID, item.ProductID, item.PriceQ, item.MinQty, item.IsPublished, item.IsAvailable)
		if err != nil {
			return 0, false, conflict(err, map[string]any{"listing_id": item.ListingID, "product_id": item.ProductID})
		}
		return 0, false, tx.Commit()

	case err != nil:
		return 0, false, fmt.Errorf("failed to lock listing item: %w", err)
	}

	err = tx.GetContext(ctx, item, `
		UPDATE listing_items SET price_q = $1, is_published = $2, is_available = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING `+listingItemColumns,
		item.PriceQ, item.IsPublished, item.IsAvailable, old.ID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to update listing item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return old.PriceQ, true, nil
}

// ListAvailableProducts returns products purchasable in a listing: globally
// published and available, offered by an item of an active listing.
func (s *Store) ListAvailableProducts(ctx context.Context, listingCode string) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, `
		SELECT DISTINCT p.id, p.sku, p.name, p.short_description, p.long_description, p.unit,
			p.base_price_q, p.availability_policy, p.is_published, p.is_available,
			p.is_batch_produced, p.shelf_life_hours, p.production_cycle_hours, p.created_at, p.updated_at
		FROM products p
		JOIN listing_items li ON li.product_id = p.id
		JOIN listings l ON l.id = li.listing_id
		WHERE l.code = $1 AND l.is_active
			AND li.is_published AND li.is_available
			AND p.is_published AND p.is_available
		ORDER BY p.name, p.id`, listingCode)
	return products, err
}

// IsProductListed reports whether an active listing offers the product.
func (s *Store) IsProductListed(ctx context.Context, productID int64, listingCode string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM listing_items li
			JOIN listings l ON l.id = li.listing_id
			WHERE l.code = $1 AND l.is_active AND li.product_id = $2
				AND li.is_published AND li.is_available)`, listingCode, productID)
	return exists, err
}
