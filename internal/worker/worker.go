package worker

import (
	"context"

	"catalog-service/internal/broker"
	"catalog-service/internal/service"
	"catalog-service/internal/util"

	"go.uber.org/zap"
)

// HistoryWorker consumes catalog events and feeds them to the audit service.
type HistoryWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewHistoryWorker creates a new history worker
func NewHistoryWorker(consumer *broker.Consumer, audit *service.AuditService) *HistoryWorker {
	return &HistoryWorker{
		consumer:     consumer,
		eventHandler: NewEventRouter(audit),
		logger:       util.GetLogger(),
	}
}

// NewEventRouter wires the audit handlers into an event handler.
func NewEventRouter(audit *service.AuditService) *broker.EventHandler {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnPriceChanged(audit.HandlePriceChanged)
	eventHandler.OnProductCreated(audit.HandleProductCreated)
	return eventHandler
}

// Start blocks consuming until ctx is cancelled.
func (w *HistoryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting history worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *HistoryWorker) Stop() error {
	w.logger.Info("Stopping history worker")
	return w.consumer.Close()
}
