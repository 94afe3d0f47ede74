package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"catalog-service/internal/catalogerr"
	"catalog-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const productColumns = `id, sku, name, short_description, long_description, unit, base_price_q,
	availability_policy, is_published, is_available, is_batch_produced,
	shelf_life_hours, production_cycle_hours, created_at, updated_at`

// CreateProduct inserts a product with its keywords in one transaction and
// fills its id and timestamps. Nothing is written when any step fails.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product, keywords []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO products (sku, name, short_description, long_description, unit, base_price_q,
			availability_policy, is_published, is_available, is_batch_produced,
			shelf_life_hours, production_cycle_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		p.SKU, p.Name, p.ShortDescription, p.LongDescription, p.Unit, p.BasePriceQ,
		p.AvailabilityPolicy, p.IsPublished, p.IsAvailable, p.IsBatchProduced,
		p.ShelfLifeHours, p.ProductionCycleHours,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return conflict(err, map[string]any{"sku": p.SKU})
	}

	if err := insertKeywords(ctx, tx, p.ID, keywords); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateProduct updates every mutable field. The SKU never changes.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products SET name = $1, short_description = $2, long_description = $3, unit = $4,
			base_price_q = $5, availability_policy = $6, is_published = $7, is_available = $8,
			is_batch_produced = $9, shelf_life_hours = $10, production_cycle_hours = $11,
			updated_at = NOW()
		WHERE id = $12
		RETURNING sku, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.Name, p.ShortDescription, p.LongDescription, p.Unit,
		p.BasePriceQ, p.AvailabilityPolicy, p.IsPublished, p.IsAvailable,
		p.IsBatchProduced, p.ShelfLifeHours, p.ProductionCycleHours,
		p.ID,
	).Scan(&p.SKU, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return catalogerr.SkuNotFound(p.SKU)
	}
	return err
}

// DeleteProduct removes a product and everything it owns. Rows in
// collection_items, listing_items, product_keywords and the edges where it
// is the parent go with it through ON DELETE CASCADE.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var sku string
	err = tx.GetContext(ctx, &sku, "SELECT sku FROM products WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to lock product: %w", err)
	}

	var inUse bool
	err = tx.GetContext(ctx, &inUse,
		"SELECT EXISTS(SELECT 1 FROM product_components WHERE component_id = $1)", id)
	if err != nil {
		return fmt.Errorf("failed to check component usage: %w", err)
	}
	if inUse {
		return catalogerr.New(catalogerr.CodeProductInUse, map[string]any{"sku": sku})
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	return tx.Commit()
}

// GetProductBySKU retrieves a product by SKU
func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE sku = $1", sku)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsBySKUs retrieves multiple products by SKU in one query.
func (s *Store) GetProductsBySKUs(ctx context.Context, skus []string) ([]models.Product, error) {
	if len(skus) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE sku IN (?) ORDER BY name, id", skus)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	products := []models.Product{}
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?) ORDER BY name, id", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	products := []models.Product{}
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// SearchProducts runs a filtered product query ordered by name.
func (s *Store) SearchProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	query, args := buildSearch(f)

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

func buildSearch(f ProductFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.OnlyPublished {
		where = append(where, "p.is_published")
	}
	if f.OnlyAvailable {
		where = append(where, "p.is_available")
	}
	if f.ExcludeSKU != "" {
		where = append(where, "p.sku <> "+arg(f.ExcludeSKU))
	}
	if f.Text != "" {
		pattern := arg("%" + escapeLike(f.Text) + "%")
		where = append(where, "(p.sku ILIKE "+pattern+" OR p.name ILIKE "+pattern+")")
	}
	if f.CollectionSlug != "" {
		where = append(where, `EXISTS (SELECT 1 FROM collection_items ci
			JOIN collections c ON c.id = ci.collection_id
			WHERE ci.product_id = p.id AND c.slug = `+arg(f.CollectionSlug)+")")
	}
	if f.CollectionID != 0 {
		where = append(where, "EXISTS (SELECT 1 FROM collection_items ci WHERE ci.product_id = p.id AND ci.collection_id = "+arg(f.CollectionID)+")")
	}
	if len(f.Keywords) > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM product_keywords pk WHERE pk.product_id = p.id AND pk.keyword = ANY("+arg(pq.Array(f.Keywords))+"))")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.ReplaceAll(productColumns, "\n\t", " "))
	b.WriteString(" FROM products p")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY p.name, p.id")
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + arg(f.Limit))
	}
	return b.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// SetKeywords replaces the keywords of a product.
func (s *Store) SetKeywords(ctx context.Context, productID int64, keywords []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM product_keywords WHERE product_id = $1", productID); err != nil {
		return fmt.Errorf("failed to clear keywords: %w", err)
	}
	if err := insertKeywords(ctx, tx, productID, keywords); err != nil {
		return err
	}

	return tx.Commit()
}

func insertKeywords(ctx context.Context, tx *sqlx.Tx, productID int64, keywords []string) error {
	for _, k := range keywords {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO product_keywords (product_id, keyword) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			productID, k)
		if err != nil {
			return fmt.Errorf("failed to insert keyword: %w", err)
		}
	}
	return nil
}

// GetKeywords returns the keywords of a product, sorted.
func (s *Store) GetKeywords(ctx context.Context, productID int64) ([]string, error) {
	keywords := []string{}
	err := s.db.SelectContext(ctx, &keywords,
		"SELECT keyword FROM product_keywords WHERE product_id = $1 ORDER BY keyword", productID)
	return keywords, err
}

// GetKeywordsByProductIDs loads keywords for many products in one query.
func (s *Store) GetKeywordsByProductIDs(ctx context.Context, ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In("SELECT product_id, keyword FROM product_keywords WHERE product_id IN (?) ORDER BY product_id, keyword", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var rows []struct {
		ProductID int64  `db:"product_id"`
		Keyword   string `db:"keyword"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ProductID] = append(out[r.ProductID], r.Keyword)
	}
	return out, nil
}
