package worker

import (
	"context"
	"errors"
	"time"

	"pcprice-service/internal/broker"
	"pcprice-service/internal/models"
	"pcprice-service/internal/normalize"
	"pcprice-service/internal/service"
	"pcprice-service/internal/util"

	"go.uber.org/zap"
)

const processedTTL = 24 * time.Hour

// Ingester stores scraped records
type Ingester interface {
	Ingest(ctx context.Context, rec *models.ScrapedProduct) (*service.IngestResult, error)
}

// Deduper remembers which events were already handled
type Deduper interface {
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ForgetProcessed(ctx context.Context, key string) error
}

// IngestWorker consumes scraped product records from Kafka
type IngestWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	ingester     Ingester
	deduper      Deduper
	logger       *zap.Logger
}

// NewIngestWorker creates a new ingest worker. deduper may be nil, in which
// case redelivered events are ingested again; the upsert keeps that harmless.
func NewIngestWorker(consumer *broker.Consumer, ingester Ingester, deduper Deduper) *IngestWorker {
	w := &IngestWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		ingester:     ingester,
		deduper:      deduper,
		logger:       util.ComponentLogger("ingest-worker"),
	}
	w.eventHandler.OnProductScraped(w.handleProductScraped)
	return w
}

// Start starts the worker
func (w *IngestWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting ingest worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *IngestWorker) Stop() error {
	w.logger.Info("Stopping ingest worker")
	return w.consumer.Close()
}

// handleProductScraped returns an error only for failures worth a retry.
// Records that break the ingestion contract are logged and acknowledged.
func (w *IngestWorker) handleProductScraped(ctx context.Context, event *models.ProductScrapedEvent) error {
	key := ""
	if w.deduper != nil && event.EventID != "" {
		key = "scraped:" + event.EventID
		fresh, err := w.deduper.MarkProcessed(ctx, key, processedTTL)
		if err != nil {
			w.logger.Warn("Idempotency check failed, ingesting anyway", zap.String("event_id", event.EventID), zap.Error(err))
			key = ""
		} else if !fresh {
			w.logger.Debug("Skipping duplicate event", zap.String("event_id", event.EventID))
			return nil
		}
	}

	_, err := w.ingester.Ingest(ctx, &event.Product)
	if err == nil {
		return nil
	}
	if errors.Is(err, normalize.ErrInvalidRecord) {
		w.logger.Warn("Dropping invalid scraped record",
			zap.String("event_id", event.EventID),
			zap.String("store", event.Product.Store),
			zap.Error(err),
		)
		return nil
	}

	if key != "" {
		if ferr := w.deduper.ForgetProcessed(ctx, key); ferr != nil {
			w.logger.Warn("Failed to clear idempotency key", zap.String("key", key), zap.Error(ferr))
		}
	}
	return err
}
