package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a single store listing after price, stock and name normalization
type Product struct {
	ID             int64               `db:"id" json:"id"`
	Store          string              `db:"store" json:"store"`
	Name           string              `db:"name" json:"name"`
	NormalizedName string              `db:"normalized_name" json:"normalized_name"`
	ComponentType  string              `db:"component_type" json:"component_type"`
	Brand          string              `db:"brand" json:"brand"`
	SKU            string              `db:"sku" json:"sku"`
	PriceUSD       decimal.NullDecimal `db:"price_usd" json:"price_usd"`
	PriceLocal     decimal.NullDecimal `db:"price_local" json:"price_local"`
	Currency       string              `db:"currency" json:"currency"`
	Stock          string              `db:"stock" json:"stock"`
	SourceURL      string              `db:"source_url" json:"source_url"`
	ImageURL       string              `db:"image_url" json:"image_url,omitempty"`
	IsActive       bool                `db:"is_active" json:"is_active"`
	LastObservedAt time.Time           `db:"last_observed_at" json:"last_observed_at"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
}

// HasPrice reports whether the USD price is known
func (p *Product) HasPrice() bool {
	return p.PriceUSD.Valid
}

// PriceObservation is an append-only price/stock history entry
type PriceObservation struct {
	ID         int64               `db:"id" json:"id"`
	ProductID  int64               `db:"product_id" json:"product_id"`
	PriceUSD   decimal.NullDecimal `db:"price_usd" json:"price_usd"`
	PriceLocal decimal.NullDecimal `db:"price_local" json:"price_local"`
	Stock      string              `db:"stock" json:"stock"`
	ObservedAt time.Time           `db:"observed_at" json:"observed_at"`
}

// MatchRecord is an undirected edge between listings of two different stores.
// ProductIDA is always lower than ProductIDB.
type MatchRecord struct {
	ProductIDA int64       `db:"product_id_a" json:"product_id_a"`
	ProductIDB int64       `db:"product_id_b" json:"product_id_b"`
	Confidence float64     `db:"confidence" json:"confidence"`
	Method     MatchMethod `db:"method" json:"method"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// NewMatchRecord builds a record with canonical pair ordering
func NewMatchRecord(id1, id2 int64, confidence float64, method MatchMethod) MatchRecord {
	if id1 > id2 {
		id1, id2 = id2, id1
	}
	return MatchRecord{
		ProductIDA: id1,
		ProductIDB: id2,
		Confidence: confidence,
		Method:     method,
	}
}

// PairKey identifies the unordered product pair
type PairKey struct {
	A int64
	B int64
}

// Key returns the pair key of the record
func (m MatchRecord) Key() PairKey {
	return PairKey{A: m.ProductIDA, B: m.ProductIDB}
}

// MatchMethod tags why two listings were judged equivalent
type MatchMethod string

// Match methods, highest priority first
const (
	MatchMethodExactSKU         MatchMethod = "exact_sku_match"
	MatchMethodModelNumber      MatchMethod = "model_number_match"
	MatchMethodHighSimilarity   MatchMethod = "high_name_similarity"
	MatchMethodMediumSimilarity MatchMethod = "medium_name_similarity"
	MatchMethodLowSimilarity    MatchMethod = "low_name_similarity"
)

// Currencies
const (
	CurrencyUSD   = "USD"
	CurrencyLocal = "PEN"
)

// Canonical stock tokens that are not exact counts
const (
	StockOut       = "0"
	StockAvailable = "+5"
	StockLow       = "1-4"
)

// ScrapedProduct is the raw record handed over by a store scraper.
// Either PriceText or PriceUSD, and either StockText or Stock, may be set.
type ScrapedProduct struct {
	Name          string           `json:"name"`
	PriceText     string           `json:"price_text,omitempty"`
	PriceUSD      *decimal.Decimal `json:"price_usd,omitempty"`
	PriceLocal    *decimal.Decimal `json:"price_local,omitempty"`
	Currency      string           `json:"currency,omitempty"`
	StockText     string           `json:"stock_text,omitempty"`
	Stock         string           `json:"stock,omitempty"`
	Brand         string           `json:"brand,omitempty"`
	SKU           string           `json:"sku,omitempty"`
	ComponentType string           `json:"component_type,omitempty"`
	Category      string           `json:"category,omitempty"`
	Store         string           `json:"store"`
	SourceURL     string           `json:"source_url,omitempty"`
	ImageURL      string           `json:"image_url,omitempty"`
}

// ProductFilter narrows catalog listings
type ProductFilter struct {
	ComponentType string
	Brand         string
	Store         string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	Query         string
	Skip          int
	Limit         int
}

// StoreCount is a per-key product count
type StoreCount struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}

// CatalogStats summarizes the catalog
type CatalogStats struct {
	TotalProducts   int                 `json:"total_products"`
	ByComponentType []StoreCount        `json:"products_by_type"`
	ByStore         []StoreCount        `json:"products_by_store"`
	MinPriceUSD     decimal.NullDecimal `json:"min_price_usd"`
	MaxPriceUSD     decimal.NullDecimal `json:"max_price_usd"`
	AvgPriceUSD     decimal.NullDecimal `json:"avg_price_usd"`
	TotalMatches    int                 `json:"total_matches"`
}

// PriceOrStockChanged reports whether next differs from prev in any field
// recorded by a price observation
func PriceOrStockChanged(prev, next *Product) bool {
	return !nullDecimalEqual(prev.PriceUSD, next.PriceUSD) ||
		!nullDecimalEqual(prev.PriceLocal, next.PriceLocal) ||
		prev.Stock != next.Stock
}

func nullDecimalEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
