package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"catalog-service/internal/models"
	"catalog-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher is the part of Producer the EventPublisher needs.
type Publisher interface {
	PublishEvent(ctx context.Context, key, eventType string, event interface{}) error
}

// EventPublisher publishes catalog events keyed by SKU.
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishProductCreated publishes ProductCreated event
func (ep *EventPublisher) PublishProductCreated(ctx context.Context, event *models.ProductCreatedEvent) error {
	return ep.publish(ctx, event.SKU, event.EventType, event)
}

// PublishPriceChanged publishes PriceChanged event
func (ep *EventPublisher) PublishPriceChanged(ctx context.Context, event *models.PriceChangedEvent) error {
	return ep.publish(ctx, event.SKU, event.EventType, event)
}

func (ep *EventPublisher) publish(ctx context.Context, sku, eventType string, event interface{}) error {
	if err := ep.producer.PublishEvent(ctx, "sku-"+sku, eventType, event); err != nil {
		return err
	}
	util.EventsPublishedTotal.WithLabelValues(eventType).Inc()
	return nil
}

// EventHandler routes incoming events by type.
type EventHandler struct {
	onProductCreated func(context.Context, *models.ProductCreatedEvent) error
	onPriceChanged   func(context.Context, *models.PriceChangedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnProductCreated registers a handler for ProductCreated events
func (eh *EventHandler) OnProductCreated(handler func(context.Context, *models.ProductCreatedEvent) error) {
	eh.onProductCreated = handler
}

// OnPriceChanged registers a handler for PriceChanged events
func (eh *EventHandler) OnPriceChanged(handler func(context.Context, *models.PriceChangedEvent) error) {
	eh.onPriceChanged = handler
}

// HandleMessage routes messages to appropriate handlers. The type comes from
// the event_type header, or from the body for messages written without one.
// Unknown types are skipped so they get committed.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	eventType := headerValue(msg, EventTypeHeader)
	if eventType == "" {
		var baseEvent models.BaseEvent
		if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
			return fmt.Errorf("failed to unmarshal base event: %w", err)
		}
		eventType = baseEvent.EventType
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", eventType),
		zap.Int64("offset", msg.Offset))

	switch eventType {
	case models.EventTypeProductCreated:
		if eh.onProductCreated != nil {
			var event models.ProductCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ProductCreated event: %w", err)
			}
			return eh.onProductCreated(ctx, &event)
		}

	case models.EventTypePriceChanged:
		if eh.onPriceChanged != nil {
			var event models.PriceChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PriceChanged event: %w", err)
			}
			return eh.onPriceChanged(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", eventType))
	}

	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
