package memory

import (
	"context"
	"errors"
	"testing"

	"catalog-service/internal/catalogerr"
	"catalog-service/internal/models"
	"catalog-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustProduct(t *testing.T, s *Store, sku, name string) *models.Product {
	t.Helper()
	p := &models.Product{SKU: sku, Name: name, Unit: models.DefaultUnit, IsPublished: true, IsAvailable: true}
	require.NoError(t, s.CreateProduct(context.Background(), p, nil))
	return p
}

func mustCollection(t *testing.T, s *Store, slug string) *models.Collection {
	t.Helper()
	c := &models.Collection{Slug: slug, Name: slug, IsActive: true}
	require.NoError(t, s.CreateCollectionTx(context.Background(), c, nil))
	return c
}

func TestCreateProductRejectsDuplicateSKU(t *testing.T) {
	s := New()
	mustProduct(t, s, "A", "Alpha")

	err := s.CreateProduct(context.Background(), &models.Product{SKU: "A"}, []string{"x"})
	assert.True(t, errors.Is(err, catalogerr.ErrAlreadyExists))

	a, err := s.GetProductBySKU(context.Background(), "A")
	require.NoError(t, err)
	kw, err := s.GetKeywords(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Empty(t, kw)
}

func TestCreateProductStoresKeywords(t *testing.T) {
	s := New()
	p := &models.Product{SKU: "RYE", Name: "Rye"}
	require.NoError(t, s.CreateProduct(context.Background(), p, []string{"rye", "bread"}))

	kw, err := s.GetKeywords(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bread", "rye"}, kw)
}

func TestGetProductBySKUMiss(t *testing.T) {
	p, err := New().GetProductBySKU(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestUpdateProductKeepsSKU(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := mustProduct(t, s, "A", "Alpha")

	p.SKU = "B"
	p.Name = "Renamed"
	require.NoError(t, s.UpdateProduct(ctx, p))

	got, err := s.GetProductBySKU(ctx, "A")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Renamed", got.Name)
}

func TestSearchProducts(t *testing.T) {
	s := New()
	ctx := context.Background()
	croissant := mustProduct(t, s, "CROISSANT", "Croissant")
	baguette := mustProduct(t, s, "BAGUETTE", "Baguette")
	hidden := mustProduct(t, s, "CROISSANT-OLD", "Old croissant")
	hidden.IsPublished = false
	require.NoError(t, s.UpdateProduct(ctx, hidden))

	paes := mustCollection(t, s, "paes")
	require.NoError(t, s.AddCollectionItem(ctx, &models.CollectionItem{CollectionID: paes.ID, ProductID: baguette.ID}))
	require.NoError(t, s.SetKeywords(ctx, croissant.ID, []string{"butter", "french"}))

	got, err := s.SearchProducts(ctx, store.ProductFilter{Text: "croiss", OnlyPublished: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CROISSANT", got[0].SKU)

	got, err = s.SearchProducts(ctx, store.ProductFilter{Text: "croiss"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.SearchProducts(ctx, store.ProductFilter{CollectionSlug: "paes"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "BAGUETTE", got[0].SKU)

	got, err = s.SearchProducts(ctx, store.ProductFilter{Keywords: []string{"french", "rye"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CROISSANT", got[0].SKU)

	got, err = s.SearchProducts(ctx, store.ProductFilter{CollectionSlug: "missing"})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.SearchProducts(ctx, store.ProductFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "BAGUETTE", got[0].SKU)
}

func TestPrimaryCollectionIsUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := mustProduct(t, s, "A", "Alpha")
	c1 := mustCollection(t, s, "one")
	c2 := mustCollection(t, s, "two")

	require.NoError(t, s.AddCollectionItem(ctx, &models.CollectionItem{CollectionID: c1.ID, ProductID: p.ID, IsPrimary: true}))
	require.NoError(t, s.AddCollectionItem(ctx, &models.CollectionItem{CollectionID: c2.ID, ProductID: p.ID, IsPrimary: true}))

	primaries := 0
	for _, i := range s.collectionItems {
		if i.ProductID == p.ID && i.IsPrimary {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)

	got, err := s.GetPrimaryCollection(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "two", got.Slug)
}

func TestCreateComponentTxAbortsOnValidationError(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := mustProduct(t, s, "A", "Alpha")
	b := mustProduct(t, s, "B", "Beta")

	boom := errors.New("rejected")
	err := s.CreateComponentTx(ctx, &models.ProductComponent{ParentID: a.ID, ComponentID: b.ID, Qty: decimal.NewFromInt(1)},
		func([]models.ProductComponent) error { return boom })
	assert.ErrorIs(t, err, boom)

	has, err := s.HasComponents(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestCreateComponentTxUpdatesQty(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := mustProduct(t, s, "A", "Alpha")
	b := mustProduct(t, s, "B", "Beta")

	first := &models.ProductComponent{ParentID: a.ID, ComponentID: b.ID, Qty: decimal.NewFromInt(1)}
	require.NoError(t, s.CreateComponentTx(ctx, first, nil))
	second := &models.ProductComponent{ParentID: a.ID, ComponentID: b.ID, Qty: decimal.NewFromInt(3)}
	require.NoError(t, s.CreateComponentTx(ctx, second, nil))

	lines, err := s.GetComponents(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, lines[0].Qty.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, "B", lines[0].SKU)
}

func TestDeleteProductGuardsComponents(t *testing.T) {
	s := New()
	ctx := context.Background()
	combo := mustProduct(t, s, "COMBO", "Combo")
	coffee := mustProduct(t, s, "COFFEE", "Coffee")
	require.NoError(t, s.CreateComponentTx(ctx, &models.ProductComponent{ParentID: combo.ID, ComponentID: coffee.ID, Qty: decimal.NewFromInt(1)}, nil))

	err := s.DeleteProduct(ctx, coffee.ID)
	assert.True(t, errors.Is(err, catalogerr.ErrProductInUse))

	require.NoError(t, s.DeleteProduct(ctx, combo.ID))
	require.NoError(t, s.DeleteProduct(ctx, coffee.ID))

	edges, err := s.ListComponentEdges(ctx)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestUpsertListingItemReturnsOldPrice(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := mustProduct(t, s, "A", "Alpha")
	l := &models.Listing{Code: "shop", Name: "Shop", IsActive: true}
	require.NoError(t, s.CreateListing(ctx, l))

	item := &models.ListingItem{ListingID: l.ID, ProductID: p.ID, PriceQ: 500, MinQty: decimal.NewFromInt(1), IsPublished: true, IsAvailable: true}
	_, existed, err := s.UpsertListingItem(ctx, item)
	require.NoError(t, err)
	assert.False(t, existed)

	update := &models.ListingItem{ListingID: l.ID, ProductID: p.ID, PriceQ: 550, MinQty: decimal.RequireFromString("1.000"), IsPublished: true, IsAvailable: true}
	old, existed, err := s.UpsertListingItem(ctx, update)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, int64(500), old)
	assert.Equal(t, item.ID, update.ID)

	items, err := s.ListListingItems(ctx, l.ID, p.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestListingAvailability(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := mustProduct(t, s, "A", "Alpha")
	b := mustProduct(t, s, "B", "Beta")
	l := &models.Listing{Code: "shop", Name: "Shop", IsActive: true}
	require.NoError(t, s.CreateListing(ctx, l))

	for _, p := range []*models.Product{a, b} {
		_, _, err := s.UpsertListingItem(ctx, &models.ListingItem{ListingID: l.ID, ProductID: p.ID, PriceQ: 100, MinQty: decimal.NewFromInt(1), IsPublished: true, IsAvailable: p == a})
		require.NoError(t, err)
	}

	products, err := s.ListAvailableProducts(ctx, "shop")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "A", products[0].SKU)

	ok, err := s.IsProductListed(ctx, a.ID, "shop")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsProductListed(ctx, b.ID, "shop")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.IsProductListed(ctx, a.ID, "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProcessedEvents(t *testing.T) {
	s := New()
	ctx := context.Background()

	done, err := s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, s.MarkEventProcessed(ctx, "evt-1", models.EventTypePriceChanged))
	require.NoError(t, s.MarkEventProcessed(ctx, "evt-1", models.EventTypePriceChanged))

	done, err = s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRecordPriceChangeIgnoresReplayedEvent(t *testing.T) {
	ctx := context.Background()
	s := New()
	h := models.PriceHistory{EventID: "evt-1", ListingCode: "shop", SKU: "BREAD", OldPriceQ: 1000, NewPriceQ: 1100}

	first := h
	require.NoError(t, s.RecordPriceChange(ctx, &first))
	replay := h
	require.NoError(t, s.RecordPriceChange(ctx, &replay))

	other := h
	other.EventID = "evt-2"
	other.NewPriceQ = 1200
	require.NoError(t, s.RecordPriceChange(ctx, &other))

	history, err := s.ListPriceHistory(ctx, "shop", "BREAD")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(1100), history[0].NewPriceQ)
	assert.Equal(t, int64(1200), history[1].NewPriceQ)
}
