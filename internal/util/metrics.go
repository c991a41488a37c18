package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProductsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "products_ingested_total",
		Help: "Total number of scraped listings ingested",
	}, []string{"store", "result"})

	PriceParseFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "price_parse_failures_total",
		Help: "Total number of listings stored with an unknown price",
	}, []string{"store"})

	StockUnknownTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_unknown_total",
		Help: "Total number of listings whose stock text matched no rule",
	}, []string{"store"})

	PriceObservationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "price_observations_total",
		Help: "Total number of price observations recorded",
	})

	MatchesUpsertedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matches_upserted_total",
		Help: "Total number of match records upserted",
	}, []string{"method"})

	BatchMatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "batch_match_duration_seconds",
		Help:    "Duration of batch match runs",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"component_type"})

	ComparisonRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comparison_requests_total",
		Help: "Total number of price comparison requests",
	}, []string{"result"})

	ComparisonCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comparison_cache_total",
		Help: "Comparison report cache lookups",
	}, []string{"outcome"})

	ConsumedMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_messages_consumed_total",
		Help: "Kafka messages consumed, by outcome",
	}, []string{"topic", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
