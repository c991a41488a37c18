package service

import (
	"context"
	"errors"
	"fmt"

	"pcprice-service/internal/models"
	"pcprice-service/internal/normalize"
	"pcprice-service/internal/util"

	"go.uber.org/zap"
)

// IngestService turns scraper records into canonical products
type IngestService struct {
	products  ProductWriter
	cache     Cache
	publisher EventPublisher
	matcher   *MatchService
	logger    *zap.Logger
}

// NewIngestService creates a new ingest service. A non-nil matcher matches
// every priced product right after it is stored.
func NewIngestService(products ProductWriter, cache Cache, publisher EventPublisher, matcher *MatchService) *IngestService {
	return &IngestService{
		products:  products,
		cache:     cache,
		publisher: publisher,
		matcher:   matcher,
		logger:    util.ComponentLogger("ingest"),
	}
}

// IngestResult reports what happened to one record
type IngestResult struct {
	Product      models.Product `json:"product"`
	Created      bool           `json:"created"`
	PriceKnown   bool           `json:"price_known"`
	PriceChanged bool           `json:"price_changed"`
	Matches      int            `json:"matches,omitempty"`
}

// Ingest normalizes and stores one scraper record. A record that breaks the
// ingestion contract returns an error wrapping normalize.ErrInvalidRecord.
func (s *IngestService) Ingest(ctx context.Context, rec *models.ScrapedProduct) (*IngestResult, error) {
	ctx, span := util.StartSpan(ctx, "IngestService.Ingest")
	defer span.End()

	canonical, err := normalize.Canonicalize(rec)
	if err != nil {
		util.ProductsIngestedTotal.WithLabelValues(storeLabel(rec), "invalid").Inc()
		s.logger.Error("Rejected scraped record", zap.Error(err))
		return nil, err
	}

	product := canonical.Product
	if !canonical.PriceKnown {
		util.PriceParseFailuresTotal.WithLabelValues(product.Store).Inc()
		s.logger.Warn("Price could not be parsed, storing as unknown",
			zap.String("store", product.Store),
			zap.String("name", product.Name),
			zap.String("price_text", rec.PriceText),
		)
	}
	if canonical.StockRule == normalize.StockRuleDefault && rec.StockText != "" {
		util.StockUnknownTotal.WithLabelValues(product.Store).Inc()
		s.logger.Debug("Stock text not recognized",
			zap.String("store", product.Store),
			zap.String("stock_text", rec.StockText),
		)
	}

	upserted, err := s.products.UpsertProduct(ctx, &product)
	if err != nil {
		util.ProductsIngestedTotal.WithLabelValues(product.Store, "error").Inc()
		return nil, fmt.Errorf("failed to store product: %w", err)
	}

	result := &IngestResult{
		Product:      upserted.Product,
		Created:      upserted.Created,
		PriceKnown:   canonical.PriceKnown,
		PriceChanged: upserted.PriceChanged(),
	}

	outcome := "updated"
	if result.Created {
		outcome = "created"
	}
	util.ProductsIngestedTotal.WithLabelValues(product.Store, outcome).Inc()
	if upserted.Observed {
		util.PriceObservationsTotal.Inc()
	}

	s.logger.Info("Product ingested",
		zap.Int64("product_id", result.Product.ID),
		zap.String("store", result.Product.Store),
		zap.Bool("created", result.Created),
		zap.Bool("price_changed", result.PriceChanged),
	)

	if err := s.cache.BumpCacheGeneration(ctx); err != nil {
		s.logger.Warn("Failed to invalidate comparison cache", zap.Error(err))
	}

	s.publishIngested(ctx, result)
	if result.PriceChanged {
		s.publishPriceChanged(ctx, upserted.Previous, &result.Product)
	}

	if s.matcher != nil && result.Product.HasPrice() {
		matches, err := s.matcher.MatchProduct(ctx, result.Product.ID)
		if err != nil {
			s.logger.Warn("Auto-match failed", zap.Int64("product_id", result.Product.ID), zap.Error(err))
		} else {
			result.Matches = len(matches)
		}
	}

	return result, nil
}

// Deactivate hides a listing that is no longer sold from matching and
// comparisons. Its history and stored matches are kept.
func (s *IngestService) Deactivate(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "IngestService.Deactivate")
	defer span.End()

	if err := s.products.DeactivateProduct(ctx, id); err != nil {
		return err
	}
	if err := s.cache.BumpCacheGeneration(ctx); err != nil {
		s.logger.Warn("Failed to invalidate comparison cache", zap.Error(err))
	}

	s.logger.Info("Product deactivated", zap.Int64("product_id", id))
	return nil
}

// BulkItemError describes a record that could not be ingested
type BulkItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BulkIngestResult summarizes IngestAll
type BulkIngestResult struct {
	Created int             `json:"created"`
	Updated int             `json:"updated"`
	Failed  int             `json:"failed"`
	Errors  []BulkItemError `json:"errors,omitempty"`
}

// IngestAll ingests records one by one and keeps going past bad records.
// It only fails as a whole when ctx is done.
func (s *IngestService) IngestAll(ctx context.Context, recs []models.ScrapedProduct) (*BulkIngestResult, error) {
	summary := &BulkIngestResult{}

	for i := range recs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res, err := s.Ingest(ctx, &recs[i])
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return summary, err
			}
			summary.Failed++
			summary.Errors = append(summary.Errors, BulkItemError{Index: i, Error: err.Error()})
			continue
		}

		if res.Created {
			summary.Created++
		} else {
			summary.Updated++
		}
	}

	return summary, nil
}

func (s *IngestService) publishIngested(ctx context.Context, res *IngestResult) {
	event := &models.ProductIngestedEvent{
		BaseEvent: newBaseEvent(models.EventTypeProductIngested),
		ProductID: res.Product.ID,
		Store:     res.Product.Store,
		Created:   res.Created,
		HasPrice:  res.Product.HasPrice(),
	}
	if err := s.publisher.PublishProductIngested(ctx, event); err != nil {
		s.logger.Error("Failed to publish ProductIngested event", zap.Error(err))
	}
}

func (s *IngestService) publishPriceChanged(ctx context.Context, prev, next *models.Product) {
	event := &models.PriceChangedEvent{
		BaseEvent:   newBaseEvent(models.EventTypePriceChanged),
		ProductID:   next.ID,
		Store:       next.Store,
		OldPriceUSD: prev.PriceUSD,
		NewPriceUSD: next.PriceUSD,
		OldStock:    prev.Stock,
		NewStock:    next.Stock,
	}
	if err := s.publisher.PublishPriceChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish PriceChanged event", zap.Error(err))
	}
}

func storeLabel(rec *models.ScrapedProduct) string {
	if rec == nil || rec.Store == "" {
		return "unknown"
	}
	return rec.Store
}
