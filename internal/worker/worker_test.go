package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pcprice-service/internal/models"
	"pcprice-service/internal/normalize"
	"pcprice-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIngester struct {
	calls int
	err   error
}

func (s *stubIngester) Ingest(_ context.Context, rec *models.ScrapedProduct) (*service.IngestResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &service.IngestResult{Product: models.Product{Name: rec.Name, Store: rec.Store}, Created: true}, nil
}

type memoryDeduper struct {
	seen map[string]bool
	err  error
}

func newMemoryDeduper() *memoryDeduper {
	return &memoryDeduper{seen: make(map[string]bool)}
}

func (d *memoryDeduper) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *memoryDeduper) ForgetProcessed(_ context.Context, key string) error {
	delete(d.seen, key)
	return nil
}

func scrapedEvent(id string) *models.ProductScrapedEvent {
	return &models.ProductScrapedEvent{
		BaseEvent: models.BaseEvent{EventID: id, EventType: models.EventTypeProductScraped},
		Product: models.ScrapedProduct{
			Name:      "Intel Core i5-12400F",
			Store:     "A",
			PriceText: "$131.00",
			SourceURL: "https://a.example/i5-12400f",
		},
	}
}

func TestHandleProductScraped(t *testing.T) {
	ingester := &stubIngester{}
	w := NewIngestWorker(nil, ingester, newMemoryDeduper())

	require.NoError(t, w.handleProductScraped(context.Background(), scrapedEvent("evt-1")))
	assert.Equal(t, 1, ingester.calls)
}

func TestHandleProductScrapedSkipsDuplicates(t *testing.T) {
	ingester := &stubIngester{}
	w := NewIngestWorker(nil, ingester, newMemoryDeduper())
	ctx := context.Background()

	require.NoError(t, w.handleProductScraped(ctx, scrapedEvent("evt-1")))
	require.NoError(t, w.handleProductScraped(ctx, scrapedEvent("evt-1")))
	require.NoError(t, w.handleProductScraped(ctx, scrapedEvent("")))
	require.NoError(t, w.handleProductScraped(ctx, scrapedEvent("")))
	assert.Equal(t, 3, ingester.calls)
}

func TestHandleProductScrapedInvalidRecordIsAcknowledged(t *testing.T) {
	ingester := &stubIngester{err: fmt.Errorf("%w: name is required", normalize.ErrInvalidRecord)}
	w := NewIngestWorker(nil, ingester, newMemoryDeduper())

	assert.NoError(t, w.handleProductScraped(context.Background(), scrapedEvent("evt-1")))
}

func TestHandleProductScrapedTransientErrorIsRetried(t *testing.T) {
	ingester := &stubIngester{err: errors.New("connection refused")}
	deduper := newMemoryDeduper()
	w := NewIngestWorker(nil, ingester, deduper)
	ctx := context.Background()

	assert.Error(t, w.handleProductScraped(ctx, scrapedEvent("evt-1")))
	assert.Empty(t, deduper.seen)

	ingester.err = nil
	assert.NoError(t, w.handleProductScraped(ctx, scrapedEvent("evt-1")))
	assert.Equal(t, 2, ingester.calls)
}

func TestHandleProductScrapedDeduperDown(t *testing.T) {
	ingester := &stubIngester{}
	deduper := newMemoryDeduper()
	deduper.err = errors.New("redis unavailable")
	w := NewIngestWorker(nil, ingester, deduper)

	assert.NoError(t, w.handleProductScraped(context.Background(), scrapedEvent("evt-1")))
	assert.Equal(t, 1, ingester.calls)
}
