package store

import (
	"context"
	"database/sql"
	"fmt"

	"catalog-service/internal/catalogerr"
	"catalog-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const collectionColumns = `id, slug, name, description, parent_id, valid_from, valid_until,
	sort_order, is_active, created_at, updated_at`

// CreateCollectionTx validates against a locked snapshot, then inserts.
func (s *Store) CreateCollectionTx(ctx context.Context, c *models.Collection, validate func([]models.Collection) error) error {
	tx, err := s.beginGraphTx(ctx, "collections")
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if validate != nil {
		cols, err := listCollections(ctx, tx)
		if err != nil {
			return err
		}
		if err := validate(cols); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO collections (slug, name, description, parent_id, valid_from, valid_until, sort_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		c.Slug, c.Name, c.Description, c.ParentID, c.ValidFrom, c.ValidUntil, c.SortOrder, c.IsActive,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return conflict(err, map[string]any{"slug": c.Slug})
	}

	return tx.Commit()
}

// SetCollectionParentTx changes the parent of a collection after validate
// accepted the locked snapshot.
func (s *Store) SetCollectionParentTx(ctx context.Context, id int64, parentID *int64, validate func([]models.Collection) error) error {
	tx, err := s.beginGraphTx(ctx, "collections")
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cols, err := listCollections(ctx, tx)
	if err != nil {
		return err
	}
	found := false
	for _, c := range cols {
		if c.ID == id {
			found = true
			break
		}
	}
	if !found {
		return catalogerr.New(catalogerr.CodeCollectionNotFound, map[string]any{"collection_id": id})
	}

	if validate != nil {
		if err := validate(cols); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE collections SET parent_id = $1, updated_at = NOW() WHERE id = $2",
		parentID, id)
	if err != nil {
		return fmt.Errorf("failed to update parent: %w", err)
	}

	return tx.Commit()
}

// GetCollectionBySlug retrieves a collection by slug
func (s *Store) GetCollectionBySlug(ctx context.Context, slug string) (*models.Collection, error) {
	var c models.Collection
	err := s.db.GetContext(ctx, &c, "SELECT "+collectionColumns+" FROM collections WHERE slug = $1", slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCollections returns every collection.
func (s *Store) ListCollections(ctx context.Context) ([]models.Collection, error) {
	return listCollections(ctx, s.db)
}

func listCollections(ctx context.Context, q sqlx.QueryerContext) ([]models.Collection, error) {
	cols := []models.Collection{}
	err := sqlx.SelectContext(ctx, q, &cols,
		"SELECT "+collectionColumns+" FROM collections ORDER BY sort_order, name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to load collections: %w", err)
	}
	return cols, nil
}

// AddCollectionItem upserts a membership. The product row is locked first so
// concurrent primary changes for the same product run one after the other.
func (s *Store) AddCollectionItem(ctx context.Context, item *models.CollectionItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var locked int64
	err = tx.GetContext(ctx, &locked, "SELECT id FROM products WHERE id = $1 FOR UPDATE", item.ProductID)
	if err == sql.ErrNoRows {
		return catalogerr.New(catalogerr.CodeSkuNotFound, map[string]any{"product_id": item.ProductID})
	}
	if err != nil {
		return fmt.Errorf("failed to lock product: %w", err)
	}

	if item.IsPrimary {
		_, err = tx.ExecContext(ctx,
			"UPDATE collection_items SET is_primary = FALSE WHERE product_id = $1 AND is_primary AND collection_id <> $2",
			item.ProductID, item.CollectionID)
		if err != nil {
			return fmt.Errorf("failed to clear primary collection: %w", err)
		}
	}

	query := `
		INSERT INTO collection_items (collection_id, product_id, is_primary, sort_order)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection_id, product_id)
		DO UPDATE SET is_primary = EXCLUDED.is_primary, sort_order = EXCLUDED.sort_order
		RETURNING id`

	if err := tx.GetContext(ctx, &item.ID, query,
		item.CollectionID, item.ProductID, item.IsPrimary, item.SortOrder); err != nil {
		return fmt.Errorf("failed to upsert collection item: %w", err)
	}

	return tx.Commit()
}

// GetPrimaryCollection returns the primary collection of a product, or nil.
func (s *Store) GetPrimaryCollection(ctx context.Context, productID int64) (*models.Collection, error) {
	var c models.Collection
	err := s.db.GetContext(ctx, &c, `
		SELECT c.id, c.slug, c.name, c.description, c.parent_id, c.valid_from, c.valid_until,
			c.sort_order, c.is_active, c.created_at, c.updated_at
		FROM collections c
		JOIN collection_items ci ON ci.collection_id = c.id
		WHERE ci.product_id = $1 AND ci.is_primary`, productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCollectionProductIDs returns the ids of every product in a collection.
func (s *Store) ListCollectionProductIDs(ctx context.Context, collectionID int64) ([]int64, error) {
	ids := []int64{}
	err := s.db.SelectContext(ctx, &ids,
		"SELECT product_id FROM collection_items WHERE collection_id = $1 ORDER BY sort_order, id", collectionID)
	return ids, err
}
