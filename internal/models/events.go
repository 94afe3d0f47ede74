package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventTypeProductCreated = "PRODUCT_CREATED"
	EventTypePriceChanged   = "PRICE_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a fresh event id and time.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// ProductCreatedEvent is published once, when a product is first persisted.
type ProductCreatedEvent struct {
	BaseEvent
	SKU string `json:"sku"`
}

// PriceChangedEvent is published when an existing listing item's price changes.
type PriceChangedEvent struct {
	BaseEvent
	ListingCode string `json:"listing_code"`
	SKU         string `json:"sku"`
	OldPriceQ   int64  `json:"old_price_q"`
	NewPriceQ   int64  `json:"new_price_q"`
}
