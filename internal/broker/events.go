package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"pcprice-service/internal/models"
	"pcprice-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishProductIngested publishes ProductIngested event
func (ep *EventPublisher) PublishProductIngested(ctx context.Context, event *models.ProductIngestedEvent) error {
	key := fmt.Sprintf("product-%d", event.ProductID)
	return ep.producer.PublishEvent(ctx, key, event.EventType, event)
}

// PublishPriceChanged publishes PriceChanged event
func (ep *EventPublisher) PublishPriceChanged(ctx context.Context, event *models.PriceChangedEvent) error {
	key := fmt.Sprintf("product-%d", event.ProductID)
	return ep.producer.PublishEvent(ctx, key, event.EventType, event)
}

// PublishMatchBatchCompleted publishes MatchBatchCompleted event
func (ep *EventPublisher) PublishMatchBatchCompleted(ctx context.Context, event *models.MatchBatchCompletedEvent) error {
	key := "match-batch"
	if event.ComponentType != "" {
		key = fmt.Sprintf("match-batch-%s", event.ComponentType)
	}
	return ep.producer.PublishEvent(ctx, key, event.EventType, event)
}

// DiscardPublisher drops every event. It stands in for EventPublisher when
// Kafka is disabled.
type DiscardPublisher struct{}

func (DiscardPublisher) PublishProductIngested(context.Context, *models.ProductIngestedEvent) error {
	return nil
}

func (DiscardPublisher) PublishPriceChanged(context.Context, *models.PriceChangedEvent) error {
	return nil
}

func (DiscardPublisher) PublishMatchBatchCompleted(context.Context, *models.MatchBatchCompletedEvent) error {
	return nil
}

// EventHandler handles incoming events
type EventHandler struct {
	onProductScraped func(context.Context, *models.ProductScrapedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.ComponentLogger("kafka")}
}

// OnProductScraped registers a handler for ProductScraped events
func (eh *EventHandler) OnProductScraped(handler func(context.Context, *models.ProductScrapedEvent) error) {
	eh.onProductScraped = handler
}

// HandleMessage routes messages to appropriate handlers. Messages without
// an event type are taken to be a bare scraped product record.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID),
	)

	switch baseEvent.EventType {
	case models.EventTypeProductScraped:
		if eh.onProductScraped != nil {
			var event models.ProductScrapedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ProductScraped event: %w", err)
			}
			return eh.onProductScraped(ctx, &event)
		}

	case "":
		if eh.onProductScraped != nil {
			event := models.ProductScrapedEvent{BaseEvent: models.BaseEvent{EventType: models.EventTypeProductScraped}}
			if err := json.Unmarshal(msg.Value, &event.Product); err != nil {
				return fmt.Errorf("failed to unmarshal scraped product: %w", err)
			}
			return eh.onProductScraped(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
