// Package memory is an in-memory implementation of the store interfaces.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"catalog-service/internal/catalogerr"
	"catalog-service/internal/models"
	"catalog-service/internal/store"
)

// Store keeps the whole catalog in maps guarded by one lock. It is safe for
// concurrent use and is intended for tests and local development. Every
// method that validates a graph does so under the write lock, which makes
// it the equivalent of the serializable transaction of the SQL store.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	now    func() time.Time

	products     map[int64]models.Product
	productBySKU map[string]int64
	keywords     map[int64][]string

	collections      map[int64]models.Collection
	collectionBySlug map[string]int64
	collectionItems  []models.CollectionItem

	components []models.ProductComponent

	listings      map[int64]models.Listing
	listingByCode map[string]int64
	listingItems  []models.ListingItem

	processed map[string]string
	history   []models.PriceHistory
}

var _ store.ProductStore = (*Store)(nil)
var _ store.CollectionStore = (*Store)(nil)
var _ store.ComponentStore = (*Store)(nil)
var _ store.ListingStore = (*Store)(nil)
var _ store.EventStore = (*Store)(nil)
var _ store.Catalog = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:           1,
		now:              time.Now,
		products:         make(map[int64]models.Product),
		productBySKU:     make(map[string]int64),
		keywords:         make(map[int64][]string),
		collections:      make(map[int64]models.Collection),
		collectionBySlug: make(map[string]int64),
		listings:         make(map[int64]models.Listing),
		listingByCode:    make(map[string]int64),
		processed:        make(map[string]string),
	}
}

func (s *Store) nextIDLocked() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// ProductStore implementation -------------------------------------------------

func (s *Store) CreateProduct(_ context.Context, p *models.Product, keywords []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.productBySKU[p.SKU]; exists {
		return catalogerr.Newf(catalogerr.CodeAlreadyExists, map[string]any{"sku": p.SKU}, "SKU '%s' already exists", p.SKU)
	}

	p.ID = s.nextIDLocked()
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.products[p.ID] = *p
	s.productBySKU[p.SKU] = p.ID
	if len(keywords) > 0 {
		kw := append([]string(nil), keywords...)
		sort.Strings(kw)
		s.keywords[p.ID] = kw
	}
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[p.ID]
	if !ok {
		return catalogerr.SkuNotFound(p.SKU)
	}

	// sku is immutable
	p.SKU = existing.SKU
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	s.products[p.ID] = *p
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil
	}
	for _, e := range s.components {
		if e.ComponentID == id {
			return catalogerr.New(catalogerr.CodeProductInUse, map[string]any{"sku": p.SKU})
		}
	}

	delete(s.products, id)
	delete(s.productBySKU, p.SKU)
	delete(s.keywords, id)

	s.collectionItems = filter(s.collectionItems, func(i models.CollectionItem) bool { return i.ProductID != id })
	s.listingItems = filter(s.listingItems, func(i models.ListingItem) bool { return i.ProductID != id })
	s.components = filter(s.components, func(e models.ProductComponent) bool { return e.ParentID != id })
	return nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.productBySKU[sku]
	if !ok {
		return nil, nil
	}
	p := s.products[id]
	return &p, nil
}

func (s *Store) GetProductsBySKUs(_ context.Context, skus []string) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, 0, len(skus))
	seen := make(map[int64]bool)
	for _, sku := range skus {
		id, ok := s.productBySKU[sku]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, s.products[id])
	}
	sortProducts(out)
	return out, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, 0, len(ids))
	seen := make(map[int64]bool)
	for _, id := range ids {
		p, ok := s.products[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, p)
	}
	sortProducts(out)
	return out, nil
}

func (s *Store) SearchProducts(_ context.Context, f store.ProductFilter) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	collectionID := f.CollectionID
	if f.CollectionSlug != "" {
		id, ok := s.collectionBySlug[f.CollectionSlug]
		if !ok {
			return []models.Product{}, nil
		}
		if collectionID != 0 && collectionID != id {
			return []models.Product{}, nil
		}
		collectionID = id
	}

	text := strings.ToLower(f.Text)
	wanted := make(map[string]bool, len(f.Keywords))
	for _, k := range f.Keywords {
		wanted[k] = true
	}

	all := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		all = append(all, p)
	}
	sortProducts(all)

	out := []models.Product{}
	for _, p := range all {
		if f.OnlyPublished && !p.IsPublished {
			continue
		}
		if f.OnlyAvailable && !p.IsAvailable {
			continue
		}
		if f.ExcludeSKU != "" && p.SKU == f.ExcludeSKU {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(p.SKU), text) && !strings.Contains(strings.ToLower(p.Name), text) {
			continue
		}
		if collectionID != 0 && !s.isMemberLocked(collectionID, p.ID) {
			continue
		}
		if len(wanted) > 0 && !s.hasAnyKeywordLocked(p.ID, wanted) {
			continue
		}
		out = append(out, p)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) SetKeywords(_ context.Context, productID int64, keywords []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return catalogerr.New(catalogerr.CodeSkuNotFound, map[string]any{"product_id": productID})
	}
	kw := append([]string(nil), keywords...)
	sort.Strings(kw)
	s.keywords[p.ID] = kw
	return nil
}

func (s *Store) GetKeywords(_ context.Context, productID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string{}, s.keywords[productID]...), nil
}

func (s *Store) GetKeywordsByProductIDs(_ context.Context, ids []int64) (map[int64][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64][]string, len(ids))
	for _, id := range ids {
		if kw, ok := s.keywords[id]; ok {
			out[id] = append([]string{}, kw...)
		}
	}
	return out, nil
}

func (s *Store) isMemberLocked(collectionID, productID int64) bool {
	for _, i := range s.collectionItems {
		if i.CollectionID == collectionID && i.ProductID == productID {
			return true
		}
	}
	return false
}

func (s *Store) hasAnyKeywordLocked(productID int64, wanted map[string]bool) bool {
	for _, k := range s.keywords[productID] {
		if wanted[k] {
			return true
		}
	}
	return false
}

// CollectionStore implementation ----------------------------------------------

func (s *Store) CreateCollectionTx(_ context.Context, c *models.Collection, validate func([]models.Collection) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collectionBySlug[c.Slug]; exists {
		return catalogerr.Newf(catalogerr.CodeAlreadyExists, map[string]any{"slug": c.Slug}, "Collection '%s' already exists", c.Slug)
	}
	if validate != nil {
		if err := validate(s.collectionsLocked()); err != nil {
			return err
		}
	}

	c.ID = s.nextIDLocked()
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.collections[c.ID] = *c
	s.collectionBySlug[c.Slug] = c.ID
	return nil
}

func (s *Store) SetCollectionParentTx(_ context.Context, id int64, parentID *int64, validate func([]models.Collection) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[id]
	if !ok {
		return catalogerr.New(catalogerr.CodeCollectionNotFound, map[string]any{"collection_id": id})
	}
	if validate != nil {
		if err := validate(s.collectionsLocked()); err != nil {
			return err
		}
	}

	c.ParentID = parentID
	c.UpdatedAt = s.now()
	s.collections[id] = c
	return nil
}

func (s *Store) GetCollectionBySlug(_ context.Context, slug string) (*models.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.collectionBySlug[slug]
	if !ok {
		return nil, nil
	}
	c := s.collections[id]
	return &c, nil
}

func (s *Store) ListCollections(_ context.Context) ([]models.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectionsLocked(), nil
}

func (s *Store) AddCollectionItem(_ context.Context, item *models.CollectionItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[item.CollectionID]; !ok {
		return catalogerr.New(catalogerr.CodeCollectionNotFound, map[string]any{"collection_id": item.CollectionID})
	}

	if item.IsPrimary {
		for i := range s.collectionItems {
			if s.collectionItems[i].ProductID == item.ProductID {
				s.collectionItems[i].IsPrimary = false
			}
		}
	}

	for i := range s.collectionItems {
		existing := &s.collectionItems[i]
		if existing.CollectionID == item.CollectionID && existing.ProductID == item.ProductID {
			existing.IsPrimary = item.IsPrimary
			existing.SortOrder = item.SortOrder
			item.ID = existing.ID
			return nil
		}
	}

	item.ID = s.nextIDLocked()
	s.collectionItems = append(s.collectionItems, *item)
	return nil
}

func (s *Store) GetPrimaryCollection(_ context.Context, productID int64) (*models.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, i := range s.collectionItems {
		if i.ProductID == productID && i.IsPrimary {
			c := s.collections[i.CollectionID]
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) ListCollectionProductIDs(_ context.Context, collectionID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for _, i := range s.collectionItems {
		if i.CollectionID == collectionID {
			ids = append(ids, i.ProductID)
		}
	}
	return ids, nil
}

func (s *Store) collectionsLocked() []models.Collection {
	out := make([]models.Collection, 0, len(s.collections))
	for _, c := range s.collections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ComponentStore implementation -----------------------------------------------

func (s *Store) ListComponentEdges(_ context.Context) ([]models.ProductComponent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.ProductComponent{}, s.components...), nil
}

func (s *Store) GetComponents(_ context.Context, parentID int64) ([]models.ComponentLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := []models.ComponentLine{}
	for _, e := range s.components {
		if e.ParentID != parentID {
			continue
		}
		p := s.products[e.ComponentID]
		lines = append(lines, models.ComponentLine{ProductComponent: e, SKU: p.SKU, Name: p.Name})
	}
	return lines, nil
}

func (s *Store) HasComponents(_ context.Context, productID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.components {
		if e.ParentID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateComponentTx(_ context.Context, edge *models.ProductComponent, validate func([]models.ProductComponent) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if validate != nil {
		if err := validate(append([]models.ProductComponent{}, s.components...)); err != nil {
			return err
		}
	}

	for i := range s.components {
		existing := &s.components[i]
		if existing.ParentID == edge.ParentID && existing.ComponentID == edge.ComponentID {
			existing.Qty = edge.Qty
			edge.ID = existing.ID
			return nil
		}
	}

	edge.ID = s.nextIDLocked()
	s.components = append(s.components, *edge)
	return nil
}

func (s *Store) DeleteComponent(_ context.Context, parentID, componentID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.components)
	s.components = filter(s.components, func(e models.ProductComponent) bool {
		return e.ParentID != parentID || e.ComponentID != componentID
	})
	return len(s.components) < before, nil
}

// ListingStore implementation -------------------------------------------------

func (s *Store) CreateListing(_ context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.listingByCode[l.Code]; exists {
		return catalogerr.Newf(catalogerr.CodeAlreadyExists, map[string]any{"listing_code": l.Code}, "Listing '%s' already exists", l.Code)
	}

	l.ID = s.nextIDLocked()
	l.CreatedAt = s.now()
	l.UpdatedAt = l.CreatedAt
	s.listings[l.ID] = *l
	s.listingByCode[l.Code] = l.ID
	return nil
}

func (s *Store) GetListingByCode(_ context.Context, code string) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.listingByCode[code]
	if !ok {
		return nil, nil
	}
	l := s.listings[id]
	return &l, nil
}

func (s *Store) ListListingItems(_ context.Context, listingID, productID int64) ([]models.ListingItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ListingItem
	for _, i := range s.listingItems {
		if i.ListingID == listingID && i.ProductID == productID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (s *Store) UpsertListingItem(_ context.Context, item *models.ListingItem) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[item.ListingID]; !ok {
		return 0, false, catalogerr.New(catalogerr.CodeListingNotFound, map[string]any{"listing_id": item.ListingID})
	}

	now := s.now()
	for i := range s.listingItems {
		existing := &s.listingItems[i]
		if existing.ListingID == item.ListingID && existing.ProductID == item.ProductID && existing.MinQty.Equal(item.MinQty) {
			old := existing.PriceQ
			existing.PriceQ = item.PriceQ
			existing.IsPublished = item.IsPublished
			existing.IsAvailable = item.IsAvailable
			existing.UpdatedAt = now
			*item = *existing
			return old, true, nil
		}
	}

	item.ID = s.nextIDLocked()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.listingItems = append(s.listingItems, *item)
	return 0, false, nil
}

func (s *Store) ListAvailableProducts(_ context.Context, listingCode string) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Product{}
	lid, ok := s.listingByCode[listingCode]
	if !ok || !s.listings[lid].IsActive {
		return out, nil
	}

	seen := make(map[int64]bool)
	for _, i := range s.listingItems {
		if i.ListingID != lid || !i.IsOffered() || seen[i.ProductID] {
			continue
		}
		p := s.products[i.ProductID]
		if !p.IsActive() {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	sortProducts(out)
	return out, nil
}

func (s *Store) IsProductListed(_ context.Context, productID int64, listingCode string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lid, ok := s.listingByCode[listingCode]
	if !ok || !s.listings[lid].IsActive {
		return false, nil
	}
	for _, i := range s.listingItems {
		if i.ListingID == lid && i.ProductID == productID && i.IsOffered() {
			return true, nil
		}
	}
	return false, nil
}

// EventStore implementation ---------------------------------------------------

func (s *Store) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.processed[eventID]
	return ok, nil
}

func (s *Store) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.processed[eventID]; !ok {
		s.processed[eventID] = eventType
	}
	return nil
}

// RecordPriceChange appends a history row; a replayed event id is a no-op.
func (s *Store) RecordPriceChange(_ context.Context, h *models.PriceHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.history {
		if existing.EventID == h.EventID {
			return nil
		}
	}
	h.ID = s.nextIDLocked()
	s.history = append(s.history, *h)
	return nil
}

func (s *Store) ListPriceHistory(_ context.Context, listingCode, sku string) ([]models.PriceHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.PriceHistory{}
	for _, h := range s.history {
		if h.ListingCode == listingCode && h.SKU == sku {
			out = append(out, h)
		}
	}
	return out, nil
}

// helpers ---------------------------------------------------------------------

func sortProducts(ps []models.Product) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].Name != ps[j].Name {
			return ps[i].Name < ps[j].Name
		}
		return ps[i].ID < ps[j].ID
	})
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
