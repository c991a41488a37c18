package service

import (
	"context"
	"time"

	"pcprice-service/internal/models"
	"pcprice-service/internal/store"

	"github.com/google/uuid"
)

// ProductWriter persists canonical listings
type ProductWriter interface {
	UpsertProduct(ctx context.Context, p *models.Product) (*store.UpsertResult, error)
	DeactivateProduct(ctx context.Context, id int64) error
}

// CatalogReader reads the product catalog
type CatalogReader interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	ListActiveProducts(ctx context.Context, componentType string) ([]models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int, error)
	SearchProducts(ctx context.Context, query, componentType string) ([]models.Product, error)
	GetPriceHistory(ctx context.Context, productID int64, limit int) ([]models.PriceObservation, error)
	CountByStore(ctx context.Context) ([]models.StoreCount, error)
	GetCatalogStats(ctx context.Context) (*models.CatalogStats, error)
}

// MatchRepository stores match records
type MatchRepository interface {
	UpsertMatches(ctx context.Context, records []models.MatchRecord) error
	GetMatchesForProduct(ctx context.Context, productID int64) ([]models.MatchRecord, error)
}

// Cache is the report cache with generation-based invalidation
type Cache interface {
	CacheGeneration(ctx context.Context) (int64, error)
	BumpCacheGeneration(ctx context.Context) error
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Locker is a distributed lock
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// EventPublisher publishes domain events
type EventPublisher interface {
	PublishProductIngested(ctx context.Context, event *models.ProductIngestedEvent) error
	PublishPriceChanged(ctx context.Context, event *models.PriceChangedEvent) error
	PublishMatchBatchCompleted(ctx context.Context, event *models.MatchBatchCompletedEvent) error
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
