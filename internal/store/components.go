package store

import (
	"context"
	"fmt"

	"catalog-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// ListComponentEdges returns every composition edge.
func (s *Store) ListComponentEdges(ctx context.Context) ([]models.ProductComponent, error) {
	return listEdges(ctx, s.db)
}

func listEdges(ctx context.Context, q sqlx.QueryerContext) ([]models.ProductComponent, error) {
	edges := []models.ProductComponent{}
	err := sqlx.SelectContext(ctx, q, &edges,
		"SELECT id, parent_id, component_id, qty FROM product_components ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to load component edges: %w", err)
	}
	return edges, nil
}

// GetComponents returns the direct components of a bundle with their SKU
// and name, in the order they were added.
func (s *Store) GetComponents(ctx context.Context, parentID int64) ([]models.ComponentLine, error) {
	lines := []models.ComponentLine{}
	err := s.db.SelectContext(ctx, &lines, `
		SELECT pc.id, pc.parent_id, pc.component_id, pc.qty, p.sku, p.name
		FROM product_components pc
		JOIN products p ON p.id = pc.component_id
		WHERE pc.parent_id = $1
		ORDER BY pc.id`, parentID)
	return lines, err
}

// HasComponents reports whether the product owns any edge.
func (s *Store) HasComponents(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM product_components WHERE parent_id = $1)", productID)
	return exists, err
}

// CreateComponentTx validates the new edge against every edge under a table
// lock and writes it in the same serializable transaction.
func (s *Store) CreateComponentTx(ctx context.Context, edge *models.ProductComponent, validate func([]models.ProductComponent) error) error {
	tx, err := s.beginGraphTx(ctx, "product_components")
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if validate != nil {
		edges, err := listEdges(ctx, tx)
		if err != nil {
			return err
		}
		if err := validate(edges); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO product_components (parent_id, component_id, qty)
		VALUES ($1, $2, $3)
		ON CONFLICT (parent_id, component_id) DO UPDATE SET qty = EXCLUDED.qty
		RETURNING id`

	if err := tx.GetContext(ctx, &edge.ID, query, edge.ParentID, edge.ComponentID, edge.Qty); err != nil {
		return fmt.Errorf("failed to insert component: %w", err)
	}

	return tx.Commit()
}

// DeleteComponent removes an edge and reports whether it existed.
func (s *Store) DeleteComponent(ctx context.Context, parentID, componentID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM product_components WHERE parent_id = $1 AND component_id = $2",
		parentID, componentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
