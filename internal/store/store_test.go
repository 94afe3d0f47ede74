package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"catalog-service/internal/catalogerr"
	"catalog-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(sqlx.NewDb(db, "postgres")), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

var productCols = []string{
	"id", "sku", "name", "short_description", "long_description", "unit", "base_price_q",
	"availability_policy", "is_published", "is_available", "is_batch_produced",
	"shelf_life_hours", "production_cycle_hours", "created_at", "updated_at",
}

func TestMigrate(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(q("CREATE TABLE IF NOT EXISTS products")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), s.GetDB()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductBySKU(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(q("FROM products WHERE sku = $1")).
		WithArgs("CROISSANT").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(1, "CROISSANT", "Croissant", "", "", "un", 800, "planned_ok", true, true, false, 24, nil, now, now))

	p, err := s.GetProductBySKU(context.Background(), "CROISSANT")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(800), p.BasePriceQ)
	require.NotNil(t, p.ShelfLifeHours)
	assert.Equal(t, 24, *p.ShelfLifeHours)
	assert.Nil(t, p.ProductionCycleHours)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductBySKUMiss(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("FROM products WHERE sku = $1")).
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows(productCols))

	p, err := s.GetProductBySKU(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestCreateProductDuplicate(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("INSERT INTO products")).WillReturnError(&pq.Error{Code: uniqueViolation})
	mock.ExpectRollback()

	err := s.CreateProduct(context.Background(), &models.Product{SKU: "A", Name: "A", Unit: "un"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalogerr.ErrAlreadyExists))
	assert.Equal(t, "A", err.(*catalogerr.Error).SKU())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProductWithKeywords(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(q("INSERT INTO products")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(9, now, now))
	mock.ExpectExec(q("INSERT INTO product_keywords")).WithArgs(9, "bread").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO product_keywords")).WithArgs(9, "rye").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p := &models.Product{SKU: "RYE", Name: "Rye", Unit: "un"}
	require.NoError(t, s.CreateProduct(context.Background(), p, []string{"bread", "rye"}))
	assert.Equal(t, int64(9), p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProductRollsBackOnKeywordFailure(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(q("INSERT INTO products")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(9, now, now))
	mock.ExpectExec(q("INSERT INTO product_keywords")).WillReturnError(errors.New("keyword table unavailable"))
	mock.ExpectRollback()

	err := s.CreateProduct(context.Background(), &models.Product{SKU: "RYE", Name: "Rye", Unit: "un"}, []string{"bread"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyword table unavailable")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProductInUse(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT sku FROM products WHERE id = $1 FOR UPDATE")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"sku"}).AddRow("COFFEE"))
	mock.ExpectQuery(q("FROM product_components WHERE component_id = $1")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := s.DeleteProduct(context.Background(), 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalogerr.ErrProductInUse))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateComponentTx(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("LOCK TABLE product_components")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT id, parent_id, component_id, qty FROM product_components")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "parent_id", "component_id", "qty"}).AddRow(1, 2, 3, "1.000"))
	mock.ExpectQuery(q("INSERT INTO product_components")).
		WithArgs(1, 2, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	var seen []models.ProductComponent
	edge := &models.ProductComponent{ParentID: 1, ComponentID: 2, Qty: decimal.NewFromInt(2)}
	err := s.CreateComponentTx(context.Background(), edge, func(edges []models.ProductComponent) error {
		seen = edges
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), edge.ID)
	require.Len(t, seen, 1)
	assert.True(t, seen[0].Qty.Equal(decimal.NewFromInt(1)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateComponentTxRollsBackOnRejection(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("LOCK TABLE product_components")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("FROM product_components")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "parent_id", "component_id", "qty"}))
	mock.ExpectRollback()

	rejected := catalogerr.New(catalogerr.CodeCircularReference, nil)
	err := s.CreateComponentTx(context.Background(),
		&models.ProductComponent{ParentID: 1, ComponentID: 2, Qty: decimal.NewFromInt(1)},
		func([]models.ProductComponent) error { return rejected })

	assert.True(t, errors.Is(err, catalogerr.ErrCircularReference))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddPrimaryCollectionItemClearsOthers(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM products WHERE id = $1 FOR UPDATE")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectExec(q("UPDATE collection_items SET is_primary = FALSE")).
		WithArgs(5, 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("INSERT INTO collection_items")).
		WithArgs(9, 5, true, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectCommit()

	item := &models.CollectionItem{CollectionID: 9, ProductID: 5, IsPrimary: true}
	require.NoError(t, s.AddCollectionItem(context.Background(), item))
	assert.Equal(t, int64(11), item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var listingItemCols = []string{"id", "listing_id", "product_id", "price_q", "min_qty", "is_published", "is_available", "created_at", "updated_at"}

func TestUpsertListingItemUpdate(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM listing_items WHERE listing_id = $1 AND product_id = $2 AND min_qty = $3 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows(listingItemCols).AddRow(4, 1, 2, 500, "1.000", true, true, now, now))
	mock.ExpectQuery(q("UPDATE listing_items SET price_q = $1")).
		WithArgs(550, true, true, 4).
		WillReturnRows(sqlmock.NewRows(listingItemCols).AddRow(4, 1, 2, 550, "1.000", true, true, now, now))
	mock.ExpectCommit()

	item := &models.ListingItem{ListingID: 1, ProductID: 2, PriceQ: 550, MinQty: decimal.NewFromInt(1), IsPublished: true, IsAvailable: true}
	old, existed, err := s.UpsertListingItem(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, int64(500), old)
	assert.Equal(t, int64(4), item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertListingItemInsert(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WillReturnRows(sqlmock.NewRows(listingItemCols))
	mock.ExpectQuery(q("INSERT INTO listing_items")).
		WillReturnRows(sqlmock.NewRows(listingItemCols).AddRow(9, 1, 2, 500, "10.000", true, true, now, now))
	mock.ExpectCommit()

	item := &models.ListingItem{ListingID: 1, ProductID: 2, PriceQ: 500, MinQty: decimal.NewFromInt(10), IsPublished: true, IsAvailable: true}
	_, existed, err := s.UpsertListingItem(context.Background(), item)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, int64(9), item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildSearch(t *testing.T) {
	query, args := buildSearch(ProductFilter{
		Text:           "cro_",
		CollectionSlug: "paes",
		Keywords:       []string{"butter"},
		OnlyPublished:  true,
		OnlyAvailable:  true,
		Limit:          20,
	})

	assert.Contains(t, query, "p.is_published AND p.is_available")
	assert.Contains(t, query, "p.sku ILIKE $1 OR p.name ILIKE $1")
	assert.Contains(t, query, "c.slug = $2")
	assert.Contains(t, query, "ANY($3)")
	assert.Contains(t, query, "ORDER BY p.name, p.id LIMIT $4")
	require.Len(t, args, 4)
	assert.Equal(t, `%cro\_%`, args[0])
	assert.Equal(t, "paes", args[1])
	assert.Equal(t, 20, args[3])
}

func TestBuildSearchWithoutFilters(t *testing.T) {
	query, args := buildSearch(ProductFilter{})

	assert.NotContains(t, query, "WHERE")
	assert.NotContains(t, query, "LIMIT")
	assert.Empty(t, args)
}
