package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pcprice-service/internal/comparison"
	"pcprice-service/internal/util"

	"go.uber.org/zap"
)

// ErrEmptyQuery is returned when a comparison has no product name
var ErrEmptyQuery = errors.New("query is required")

// ComparisonService answers cross-store price comparisons
type ComparisonService struct {
	catalog    CatalogReader
	cache      Cache
	aggregator *comparison.Aggregator
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewComparisonService creates a new comparison service. A cacheTTL of zero
// disables caching.
func NewComparisonService(catalog CatalogReader, cache Cache, aggregator *comparison.Aggregator, cacheTTL time.Duration) *ComparisonService {
	return &ComparisonService{
		catalog:    catalog,
		cache:      cache,
		aggregator: aggregator,
		cacheTTL:   cacheTTL,
		logger:     util.ComponentLogger("comparison"),
	}
}

// CompareByName builds the comparison report for products whose name
// contains query. It returns nil, nil when fewer than two stores carry a
// matching product.
func (s *ComparisonService) CompareByName(ctx context.Context, query, componentType string) (*comparison.Report, error) {
	ctx, span := util.StartSpan(ctx, "ComparisonService.CompareByName")
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	key, cacheable := s.cacheKey(ctx, query, componentType)
	if cacheable {
		var cached comparison.Report
		found, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("Failed to read comparison cache", zap.String("key", key), zap.Error(err))
		} else if found {
			util.ComparisonCacheTotal.WithLabelValues("hit").Inc()
			util.ComparisonRequestsTotal.WithLabelValues("found").Inc()
			return &cached, nil
		}
		util.ComparisonCacheTotal.WithLabelValues("miss").Inc()
	}

	products, err := s.catalog.SearchProducts(ctx, query, componentType)
	if err != nil {
		return nil, err
	}

	report := s.aggregator.CompareByName(query, componentType, products)
	if report == nil {
		util.ComparisonRequestsTotal.WithLabelValues("not_found").Inc()
		return nil, nil
	}
	util.ComparisonRequestsTotal.WithLabelValues("found").Inc()

	if cacheable {
		if err := s.cache.SetJSON(ctx, key, report, s.cacheTTL); err != nil {
			s.logger.Warn("Failed to write comparison cache", zap.String("key", key), zap.Error(err))
		}
	}

	return report, nil
}

// cacheKey embeds the current cache generation, so every ingest that bumps
// the generation orphans the reports computed before it
func (s *ComparisonService) cacheKey(ctx context.Context, query, componentType string) (string, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return "", false
	}
	gen, err := s.cache.CacheGeneration(ctx)
	if err != nil {
		s.logger.Warn("Failed to read cache generation", zap.Error(err))
		return "", false
	}
	return fmt.Sprintf("compare:%d:%s:%s", gen, strings.ToLower(query), componentType), true
}
