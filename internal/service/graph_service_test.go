package service

import (
	"context"
	"errors"
	"testing"

	"catalog-service/config"
	"catalog-service/internal/catalogerr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddComponentRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.CatalogConfig{MaxCollectionDepth: 10, BundleMaxDepth: 2}, nil)

	for _, sku := range []string{"A", "B", "C", "D"} {
		f.product(t, sku, sku, 100)
	}

	_, err := f.bundles.AddComponent(ctx, "A", "B", qty(1))
	require.NoError(t, err)
	_, err = f.bundles.AddComponent(ctx, "B", "C", qty(1))
	require.NoError(t, err)

	tests := []struct {
		name      string
		parent    string
		component string
		qty       decimal.Decimal
		want      error
	}{
		{"zero quantity", "A", "D", decimal.Zero, catalogerr.ErrInvalidQuantity},
		{"negative quantity on unknown sku", "X", "Y", qty(-1), catalogerr.ErrInvalidQuantity},
		{"unknown parent", "X", "A", qty(1), catalogerr.ErrSkuNotFound},
		{"unknown component", "A", "X", qty(1), catalogerr.ErrSkuNotFound},
		{"self reference", "A", "A", qty(1), catalogerr.ErrSelfReference},
		{"direct cycle", "B", "A", qty(1), catalogerr.ErrCircularReference},
		{"indirect cycle", "C", "A", qty(1), catalogerr.ErrCircularReference},
		{"too deep below", "C", "D", qty(1), catalogerr.ErrMaxDepthExceeded},
		{"too deep above", "D", "A", qty(1), catalogerr.ErrMaxDepthExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.bundles.AddComponent(ctx, tt.parent, tt.component, tt.qty)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}

	edges, err := f.store.ListComponentEdges(ctx)
	require.NoError(t, err)
	assert.Len(t, edges, 2)
}

func TestAddComponentErrorCarriesSKUs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultLimits(), nil)
	f.product(t, "A", "A", 100)
	f.product(t, "B", "B", 100)

	_, err := f.bundles.AddComponent(ctx, "A", "B", qty(1))
	require.NoError(t, err)

	_, err = f.bundles.AddComponent(ctx, "B", "A", qty(1))
	var ce *catalogerr.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "B", ce.SKU())
	assert.Equal(t, "A", ce.Data["component_sku"])
}

func TestAddComponentAcceptsDiamond(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultLimits(), nil)
	for _, sku := range []string{"TOP", "LEFT", "RIGHT", "BASE"} {
		f.product(t, sku, sku, 100)
	}

	for _, e := range [][2]string{{"TOP", "LEFT"}, {"TOP", "RIGHT"}, {"LEFT", "BASE"}, {"RIGHT", "BASE"}} {
		_, err := f.bundles.AddComponent(ctx, e[0], e[1], qty(1))
		require.NoError(t, err, e)
	}
}

func TestAddComponentUpdatesQuantity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultLimits(), nil)
	f.product(t, "BOX", "Box", 100)
	f.product(t, "BREAD", "Bread", 100)

	_, err := f.bundles.AddComponent(ctx, "BOX", "BREAD", qty(2))
	require.NoError(t, err)
	_, err = f.bundles.AddComponent(ctx, "BOX", "BREAD", qty(6))
	require.NoError(t, err)

	lines, err := f.bundles.Components(ctx, "BOX")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Qty.Equal(qty(6)))

	require.NoError(t, f.bundles.RemoveComponent(ctx, "BOX", "BREAD"))
	require.NoError(t, f.bundles.RemoveComponent(ctx, "BOX", "BREAD"))

	isBundle, err := f.bundles.IsBundle(ctx, "BOX")
	require.NoError(t, err)
	assert.False(t, isBundle)
}

func TestDeleteProductInUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultLimits(), nil)
	f.product(t, "BOX", "Box", 100)
	f.product(t, "BREAD", "Bread", 100)
	_, err := f.bundles.AddComponent(ctx, "BOX", "BREAD", qty(1))
	require.NoError(t, err)

	err = f.products.Delete(ctx, "BREAD")
	assert.True(t, errors.Is(err, catalogerr.ErrProductInUse))

	require.NoError(t, f.products.Delete(ctx, "BOX"))
	require.NoError(t, f.products.Delete(ctx, "BREAD"))
}

func TestCollectionHierarchy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.CatalogConfig{MaxCollectionDepth: 3, BundleMaxDepth: 5}, nil)

	_, err := f.collections.Create(ctx, &CreateCollectionRequest{Slug: "root", Name: "Root"})
	require.NoError(t, err)
	_, err = f.collections.Create(ctx, &CreateCollectionRequest{Slug: "child", Name: "Child", ParentSlug: "root"})
	require.NoError(t, err)
	_, err = f.collections.Create(ctx, &CreateCollectionRequest{Slug: "grand", Name: "Grand", ParentSlug: "child"})
	require.NoError(t, err)

	_, err = f.collections.Create(ctx, &CreateCollectionRequest{Slug: "great", Name: "Great", ParentSlug: "grand"})
	assert.True(t, errors.Is(err, catalogerr.ErrMaxDepthExceeded))

	path, err := f.collections.FullPath(ctx, "grand")
	require.NoError(t, err)
	assert.Equal(t, "Root > Child > Grand", path)

	view, err := f.collections.Get(ctx, "grand")
	require.NoError(t, err)
	assert.Equal(t, 2, view.Depth)

	ancestors, err := f.collections.Ancestors(ctx, "grand", 0)
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	assert.Equal(t, "root", ancestors[0].Slug)
	assert.Equal(t, "child", ancestors[1].Slug)

	descendants, err := f.collections.Descendants(ctx, "root", 1)
	require.NoError(t, err)
	require.Len(t, descendants, 1)
	assert.Equal(t, "child", descendants[0].Slug)

	descendants, err = f.collections.Descendants(ctx, "root", 0)
	require.NoError(t, err)
	assert.Len(t, descendants, 2)
}

func TestCollectionSetParent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.CatalogConfig{MaxCollectionDepth: 3, BundleMaxDepth: 5}, nil)

	for _, r := range []*CreateCollectionRequest{
		{Slug: "root", Name: "Root"},
		{Slug: "child", Name: "Child", ParentSlug: "root"},
		{Slug: "grand", Name: "Grand", ParentSlug: "child"},
		{Slug: "other", Name: "Other"},
		{Slug: "leaf", Name: "Leaf", ParentSlug: "other"},
	} {
		_, err := f.collections.Create(ctx, r)
		require.NoError(t, err, r.Slug)
	}

	err := f.collections.SetParent(ctx, "root", "root")
	assert.True(t, errors.Is(err, catalogerr.ErrCircularReference))

	err = f.collections.SetParent(ctx, "root", "grand")
	assert.True(t, errors.Is(err, catalogerr.ErrCircularReference))

	// other carries leaf along: root > child > other > leaf is four levels
	err = f.collections.SetParent(ctx, "other", "child")
	assert.True(t, errors.Is(err, catalogerr.ErrMaxDepthExceeded))

	err = f.collections.SetParent(ctx, "other", "root")
	require.NoError(t, err)

	err = f.collections.SetParent(ctx, "grand", "")
	require.NoError(t, err)
	path, err := f.collections.FullPath(ctx, "grand")
	require.NoError(t, err)
	assert.Equal(t, "Grand", path)

	err = f.collections.SetParent(ctx, "missing", "")
	assert.True(t, errors.Is(err, catalogerr.ErrCollectionNotFound))
}

func TestCollectionDepthReload(t *testing.T) {
	ctx := context.Background()
	limits := config.NewCatalog(config.CatalogConfig{MaxCollectionDepth: 1, BundleMaxDepth: 5})
	s := newFixture(t, defaultLimits(), nil).store
	collections := NewCollectionService(s, NewLocalLocker(), limits)

	_, err := collections.Create(ctx, &CreateCollectionRequest{Slug: "root", Name: "Root"})
	require.NoError(t, err)
	_, err = collections.Create(ctx, &CreateCollectionRequest{Slug: "child", Name: "Child", ParentSlug: "root"})
	assert.True(t, errors.Is(err, catalogerr.ErrMaxDepthExceeded))

	t.Setenv("MAX_COLLECTION_DEPTH", "2")
	limits.Reload()

	_, err = collections.Create(ctx, &CreateCollectionRequest{Slug: "child", Name: "Child", ParentSlug: "root"})
	require.NoError(t, err)
}

func TestPrimaryCollectionIsUnique(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultLimits(), nil)
	f.product(t, "BREAD", "Bread", 1000)

	for _, slug := range []string{"breads", "morning"} {
		_, err := f.collections.Create(ctx, &CreateCollectionRequest{Slug: slug, Name: slug})
		require.NoError(t, err)
	}

	_, err := f.collections.AddProduct(ctx, "breads", "BREAD", true, 0)
	require.NoError(t, err)
	_, err = f.collections.AddProduct(ctx, "morning", "BREAD", true, 0)
	require.NoError(t, err)

	primary, err := f.collections.PrimaryCollection(ctx, "BREAD")
	require.NoError(t, err)
	require.NotNil(t, primary)
	assert.Equal(t, "morning", primary.Slug)

	_, err = f.collections.SetPrimary(ctx, "breads", "BREAD")
	require.NoError(t, err)
	primary, err = f.collections.PrimaryCollection(ctx, "BREAD")
	require.NoError(t, err)
	assert.Equal(t, "breads", primary.Slug)

	// both memberships survive
	bread, err := f.catalog.Get(ctx, "BREAD")
	require.NoError(t, err)
	for _, slug := range []string{"breads", "morning"} {
		c, err := f.store.GetCollectionBySlug(ctx, slug)
		require.NoError(t, err)
		ids, err := f.store.ListCollectionProductIDs(ctx, c.ID)
		require.NoError(t, err)
		assert.Contains(t, ids, bread.ID)
	}

	_, err = f.collections.AddProduct(ctx, "nope", "BREAD", false, 0)
	assert.True(t, errors.Is(err, catalogerr.ErrCollectionNotFound))
	_, err = f.collections.AddProduct(ctx, "breads", "NOPE", false, 0)
	assert.True(t, errors.Is(err, catalogerr.ErrSkuNotFound))
}
