package service

import (
	"context"
	"fmt"

	"catalog-service/internal/models"
	"catalog-service/internal/store"
	"catalog-service/internal/util"

	"go.uber.org/zap"
)

// AuditService consumes catalog events and keeps the price history. Every
// handler is idempotent on the event id.
type AuditService struct {
	store  store.EventStore
	logger *zap.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(store store.EventStore) *AuditService {
	return &AuditService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// HandlePriceChanged records the change in the price history.
func (as *AuditService) HandlePriceChanged(ctx context.Context, event *models.PriceChangedEvent) error {
	ctx, span := util.StartSpan(ctx, "AuditService.HandlePriceChanged")
	defer span.End()

	processed, err := as.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		as.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	history := &models.PriceHistory{
		EventID:     event.EventID,
		ListingCode: event.ListingCode,
		SKU:         event.SKU,
		OldPriceQ:   event.OldPriceQ,
		NewPriceQ:   event.NewPriceQ,
		ChangedAt:   event.Timestamp,
	}
	if err := as.store.RecordPriceChange(ctx, history); err != nil {
		return fmt.Errorf("failed to record price change: %w", err)
	}

	util.EventsRecordedTotal.WithLabelValues(event.EventType).Inc()

	if err := as.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		as.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	as.logger.Info("Price change recorded",
		zap.String("listing_code", event.ListingCode),
		zap.String("sku", event.SKU),
		zap.Int64("old_price_q", event.OldPriceQ),
		zap.Int64("new_price_q", event.NewPriceQ))
	return nil
}

// HandleProductCreated marks the event seen. Nothing else is derived from it yet.
func (as *AuditService) HandleProductCreated(ctx context.Context, event *models.ProductCreatedEvent) error {
	processed, err := as.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		return nil
	}

	util.EventsRecordedTotal.WithLabelValues(event.EventType).Inc()

	if err := as.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		as.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	as.logger.Info("Product creation seen", zap.String("sku", event.SKU))
	return nil
}
