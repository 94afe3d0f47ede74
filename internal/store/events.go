package store

import (
	"context"

	"catalog-service/internal/models"
)

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

// RecordPriceChange appends a price history row. A replayed event id is a
// no-op.
func (s *Store) RecordPriceChange(ctx context.Context, h *models.PriceHistory) error {
	query := `
		INSERT INTO price_history (event_id, listing_code, sku, old_price_q, new_price_q, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		h.EventID, h.ListingCode, h.SKU, h.OldPriceQ, h.NewPriceQ, h.ChangedAt)
	return err
}

// ListPriceHistory returns the price changes of a SKU in a listing, oldest first.
func (s *Store) ListPriceHistory(ctx context.Context, listingCode, sku string) ([]models.PriceHistory, error) {
	history := []models.PriceHistory{}
	err := s.db.SelectContext(ctx, &history, `
		SELECT id, event_id, listing_code, sku, old_price_q, new_price_q, changed_at
		FROM price_history
		WHERE listing_code = $1 AND sku = $2
		ORDER BY changed_at, id`, listingCode, sku)
	return history, err
}
