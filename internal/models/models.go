package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Availability policies consulted by the external inventory system.
const (
	AvailabilityStockOnly = "stock_only"
	AvailabilityPlannedOK = "planned_ok"
	AvailabilityDemandOK  = "demand_ok"
)

// DefaultUnit is the unit of measure of a product created without one.
const DefaultUnit = "un"

// Product represents a sellable product in the catalog.
//
// IsPublished (visible in the catalog) and IsAvailable (purchasable) are
// independent: an ingredient is published but unavailable, an internal item
// is available but unpublished. Whether a product is a bundle is never
// stored; it follows from owning component edges.
type Product struct {
	ID                   int64     `db:"id" json:"id"`
	SKU                  string    `db:"sku" json:"sku"`
	Name                 string    `db:"name" json:"name"`
	ShortDescription     string    `db:"short_description" json:"short_description,omitempty"`
	LongDescription      string    `db:"long_description" json:"long_description,omitempty"`
	Unit                 string    `db:"unit" json:"unit"`
	BasePriceQ           int64     `db:"base_price_q" json:"base_price_q"`
	AvailabilityPolicy   string    `db:"availability_policy" json:"availability_policy"`
	IsPublished          bool      `db:"is_published" json:"is_published"`
	IsAvailable          bool      `db:"is_available" json:"is_available"`
	IsBatchProduced      bool      `db:"is_batch_produced" json:"is_batch_produced"`
	ShelfLifeHours       *int      `db:"shelf_life_hours" json:"shelf_life_hours,omitempty"`
	ProductionCycleHours *int      `db:"production_cycle_hours" json:"production_cycle_hours,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the product is both published and available.
func (p *Product) IsActive() bool {
	return p.IsPublished && p.IsAvailable
}

// IsPerishable reports whether the product has a shelf life.
func (p *Product) IsPerishable() bool {
	return p.ShelfLifeHours != nil
}

// Collection groups products. It may be hierarchical (parent) and
// temporal (valid_from / valid_until).
type Collection struct {
	ID          int64      `db:"id" json:"id"`
	Slug        string     `db:"slug" json:"slug"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description,omitempty"`
	ParentID    *int64     `db:"parent_id" json:"parent_id,omitempty"`
	ValidFrom   *time.Time `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil  *time.Time `db:"valid_until" json:"valid_until,omitempty"`
	SortOrder   int        `db:"sort_order" json:"sort_order"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// IsValid reports whether the collection is active on the given date.
func (c *Collection) IsValid(date time.Time) bool {
	return c.IsActive && withinDates(date, c.ValidFrom, c.ValidUntil)
}

// CollectionItem is the membership of a product in a collection.
type CollectionItem struct {
	ID           int64 `db:"id" json:"id"`
	CollectionID int64 `db:"collection_id" json:"collection_id"`
	ProductID    int64 `db:"product_id" json:"product_id"`
	IsPrimary    bool  `db:"is_primary" json:"is_primary"`
	SortOrder    int   `db:"sort_order" json:"sort_order"`
}

// ProductComponent is a directed composition edge: Parent contains Qty
// units of Component.
type ProductComponent struct {
	ID          int64           `db:"id" json:"id"`
	ParentID    int64           `db:"parent_id" json:"parent_id"`
	ComponentID int64           `db:"component_id" json:"component_id"`
	Qty         decimal.Decimal `db:"qty" json:"qty"`
}

// ComponentLine is a component edge joined with the component product.
type ComponentLine struct {
	ProductComponent
	SKU  string `db:"sku" json:"sku"`
	Name string `db:"name" json:"name"`
}

// Listing is a sales channel with its own prices and visibility.
// Convention: Code matches the external channel identifier.
type Listing struct {
	ID          int64      `db:"id" json:"id"`
	Code        string     `db:"code" json:"code"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description,omitempty"`
	Priority    int        `db:"priority" json:"priority"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	ValidFrom   *time.Time `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil  *time.Time `db:"valid_until" json:"valid_until,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// IsValid reports whether the listing is active on the given date.
func (l *Listing) IsValid(date time.Time) bool {
	return l.IsActive && withinDates(date, l.ValidFrom, l.ValidUntil)
}

// ListingItem is a price tier of a product in a listing.
type ListingItem struct {
	ID          int64           `db:"id" json:"id"`
	ListingID   int64           `db:"listing_id" json:"listing_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	PriceQ      int64           `db:"price_q" json:"price_q"`
	MinQty      decimal.Decimal `db:"min_qty" json:"min_qty"`
	IsPublished bool            `db:"is_published" json:"is_published"`
	IsAvailable bool            `db:"is_available" json:"is_available"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// IsOffered reports whether the item is published and available in its channel.
func (i *ListingItem) IsOffered() bool {
	return i.IsPublished && i.IsAvailable
}

// PriceHistory records a listing price change.
type PriceHistory struct {
	ID          int64     `db:"id" json:"id"`
	EventID     string    `db:"event_id" json:"event_id"`
	ListingCode string    `db:"listing_code" json:"listing_code"`
	SKU         string    `db:"sku" json:"sku"`
	OldPriceQ   int64     `db:"old_price_q" json:"old_price_q"`
	NewPriceQ   int64     `db:"new_price_q" json:"new_price_q"`
	ChangedAt   time.Time `db:"changed_at" json:"changed_at"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func withinDates(date time.Time, from, until *time.Time) bool {
	day := DateOnly(date)
	if from != nil && day.Before(DateOnly(*from)) {
		return false
	}
	if until != nil && day.After(DateOnly(*until)) {
		return false
	}
	return true
}
