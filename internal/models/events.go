package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeProductScraped      = "PRODUCT_SCRAPED"
	EventTypeProductIngested     = "PRODUCT_INGESTED"
	EventTypePriceChanged        = "PRICE_CHANGED"
	EventTypeMatchBatchCompleted = "MATCH_BATCH_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductScrapedEvent carries a raw scraper record on the ingestion topic
type ProductScrapedEvent struct {
	BaseEvent
	Product ScrapedProduct `json:"product"`
}

// ProductIngestedEvent published after a listing is created or refreshed
type ProductIngestedEvent struct {
	BaseEvent
	ProductID int64  `json:"product_id"`
	Store     string `json:"store"`
	Created   bool   `json:"created"`
	HasPrice  bool   `json:"has_price"`
}

// PriceChangedEvent published when a re-ingested listing changes price or stock
type PriceChangedEvent struct {
	BaseEvent
	ProductID   int64               `json:"product_id"`
	Store       string              `json:"store"`
	OldPriceUSD decimal.NullDecimal `json:"old_price_usd"`
	NewPriceUSD decimal.NullDecimal `json:"new_price_usd"`
	OldStock    string              `json:"old_stock"`
	NewStock    string              `json:"new_stock"`
}

// MatchBatchCompletedEvent published after a batch match run
type MatchBatchCompletedEvent struct {
	BaseEvent
	ComponentType   string  `json:"component_type,omitempty"`
	Threshold       float64 `json:"threshold"`
	ProductsVisited int     `json:"products_visited"`
	MatchesUpserted int     `json:"matches_upserted"`
	DurationMillis  int64   `json:"duration_ms"`
}
