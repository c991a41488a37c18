package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pcprice-service/internal/matching"
	"pcprice-service/internal/models"
	"pcprice-service/internal/util"

	"go.uber.org/zap"
)

// ErrBatchInProgress is returned when another batch run holds the lock
var ErrBatchInProgress = errors.New("match batch already in progress")

// MatchService finds and persists cross-store matches
type MatchService struct {
	catalog   CatalogReader
	matches   MatchRepository
	locker    Locker
	publisher EventPublisher
	engine    *matching.Engine
	lockTTL   time.Duration
	logger    *zap.Logger
}

// NewMatchService creates a new match service
func NewMatchService(
	catalog CatalogReader,
	matches MatchRepository,
	locker Locker,
	publisher EventPublisher,
	engine *matching.Engine,
	lockTTL time.Duration,
) *MatchService {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &MatchService{
		catalog:   catalog,
		matches:   matches,
		locker:    locker,
		publisher: publisher,
		engine:    engine,
		lockTTL:   lockTTL,
		logger:    util.ComponentLogger("match"),
	}
}

// FindMatches ranks the active listings from other stores that match a
// stored product. Nothing is persisted.
func (s *MatchService) FindMatches(ctx context.Context, productID int64, threshold float64) ([]matching.Match, error) {
	ctx, span := util.StartSpan(ctx, "MatchService.FindMatches")
	defer span.End()

	product, err := s.catalog.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	pool, err := s.catalog.ListActiveProducts(ctx, product.ComponentType)
	if err != nil {
		return nil, err
	}

	return s.engine.FindMatches(product, pool, threshold), nil
}

// MatchProduct finds the matches of one product at the default threshold
// and upserts them
func (s *MatchService) MatchProduct(ctx context.Context, productID int64) ([]matching.Match, error) {
	matches, err := s.FindMatches(ctx, productID, 0)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return matches, nil
	}

	records := make([]models.MatchRecord, 0, len(matches))
	for _, m := range matches {
		records = append(records, models.NewMatchRecord(productID, m.Product.ID, m.Confidence, m.Method))
	}
	if err := s.matches.UpsertMatches(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to store matches: %w", err)
	}
	countUpserted(records)

	return matches, nil
}

// RunBatch matches the whole active catalog, or one component type of it.
// Only one run per scope executes at a time across instances.
func (s *MatchService) RunBatch(ctx context.Context, componentType string, threshold float64) (*matching.BatchResult, error) {
	ctx, span := util.StartSpan(ctx, "MatchService.RunBatch")
	defer span.End()

	lockKey := "match-batch:all"
	if componentType != "" {
		lockKey = "match-batch:" + componentType
	}

	token, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrBatchInProgress
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.Background(), lockKey, token); err != nil {
			s.logger.Warn("Failed to release batch lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	start := time.Now()

	catalog, err := s.catalog.ListActiveProducts(ctx, componentType)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.BatchMatch(ctx, catalog, matching.BatchOptions{
		ComponentType: componentType,
		Threshold:     threshold,
	}, s.matches)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	util.BatchMatchDuration.WithLabelValues(scopeLabel(componentType)).Observe(elapsed.Seconds())
	countUpserted(result.Records)

	s.logger.Info("Match batch completed",
		zap.String("component_type", componentType),
		zap.Int("products", result.ProductsVisited),
		zap.Int("matches", result.MatchesFound),
		zap.Duration("duration", elapsed),
	)

	if threshold <= 0 {
		threshold = s.engine.Threshold()
	}
	event := &models.MatchBatchCompletedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeMatchBatchCompleted),
		ComponentType:   componentType,
		Threshold:       threshold,
		ProductsVisited: result.ProductsVisited,
		MatchesUpserted: result.MatchesFound,
		DurationMillis:  elapsed.Milliseconds(),
	}
	if err := s.publisher.PublishMatchBatchCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish MatchBatchCompleted event", zap.Error(err))
	}

	return result, nil
}

// StoredMatch is a persisted match seen from one of its products
type StoredMatch struct {
	Product    models.Product     `json:"product"`
	Confidence float64            `json:"confidence"`
	Method     models.MatchMethod `json:"method"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// StoredMatches lists the persisted matches of a product with the product
// on the other side of each pair
func (s *MatchService) StoredMatches(ctx context.Context, productID int64) ([]StoredMatch, error) {
	if _, err := s.catalog.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}

	records, err := s.matches.GetMatchesForProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, otherSide(r, productID))
	}
	products, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]StoredMatch, 0, len(records))
	for _, r := range records {
		p, ok := byID[otherSide(r, productID)]
		if !ok {
			continue
		}
		out = append(out, StoredMatch{
			Product:    p,
			Confidence: r.Confidence,
			Method:     r.Method,
			UpdatedAt:  r.UpdatedAt,
		})
	}
	return out, nil
}

func otherSide(r models.MatchRecord, productID int64) int64 {
	if r.ProductIDA == productID {
		return r.ProductIDB
	}
	return r.ProductIDA
}

func countUpserted(records []models.MatchRecord) {
	for _, r := range records {
		util.MatchesUpsertedTotal.WithLabelValues(string(r.Method)).Inc()
	}
}

func scopeLabel(componentType string) string {
	if componentType == "" {
		return "all"
	}
	return componentType
}
