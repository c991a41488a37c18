package comparison

import (
	"sort"
	"strings"

	"pcprice-service/internal/matching"
	"pcprice-service/internal/models"
	"pcprice-service/internal/normalize"

	"github.com/shopspring/decimal"
)

// DefaultMinConfidence is lower than the persisted-match threshold because
// a comparison is a best-effort search result
const DefaultMinConfidence = 0.6

var hundred = decimal.NewFromInt(100)

// ComparedProduct is one store's best candidate in a report
type ComparedProduct struct {
	Product         *models.Product    `json:"product"`
	MatchConfidence float64            `json:"match_confidence"`
	Method          models.MatchMethod `json:"method"`
}

// LowestPrice describes the cheapest store in a report
type LowestPrice struct {
	Store      string              `json:"store"`
	ProductID  int64               `json:"product_id"`
	PriceUSD   decimal.Decimal     `json:"price_usd"`
	PriceLocal decimal.NullDecimal `json:"price_local"`
	URL        string              `json:"url"`
	Stock      string              `json:"stock"`
}

// HighestPrice describes the most expensive store in a report
type HighestPrice struct {
	Store      string              `json:"store"`
	ProductID  int64               `json:"product_id"`
	PriceUSD   decimal.Decimal     `json:"price_usd"`
	PriceLocal decimal.NullDecimal `json:"price_local"`
}

// Report is a lowest/highest/spread comparison for one product across
// stores, at most one entry per store
type Report struct {
	ProductName        string            `json:"product_name"`
	ReferenceID        int64             `json:"reference_id"`
	TotalStores        int               `json:"total_stores"`
	Matches            []ComparedProduct `json:"matches"`
	LowestPrice        LowestPrice       `json:"lowest_price"`
	HighestPrice       HighestPrice      `json:"highest_price"`
	PriceDifferenceUSD decimal.Decimal   `json:"price_difference_usd"`
	SavingsPercentage  decimal.Decimal   `json:"savings_percentage"`
}

// Aggregator builds price comparison reports
type Aggregator struct {
	scorer        *matching.Scorer
	minConfidence float64
}

// NewAggregator creates an aggregator. A nil scorer uses the default
// sequence similarity; minConfidence <= 0 uses DefaultMinConfidence.
func NewAggregator(scorer *matching.Scorer, minConfidence float64) *Aggregator {
	if scorer == nil {
		scorer = matching.NewScorer(nil)
	}
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Aggregator{scorer: scorer, minConfidence: minConfidence}
}

// MatchesQuery reports whether a product name contains query, ignoring case
// and accents. A query also matches when its letters and digits appear in
// the name with the separators dropped, so "i5-12400F" finds "I5 12400F".
func MatchesQuery(name, query string) bool {
	q := normalize.Fold(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	if strings.Contains(normalize.Fold(name), q) {
		return true
	}
	compact := normalize.Compact(query)
	return compact != "" && strings.Contains(normalize.Compact(name), compact)
}

// CompareByName compares the active, priced products matching query. The
// cheapest match is the reference; each store contributes its candidate
// that scores best against the reference, when that score reaches the
// minimum confidence. It returns nil unless at least two stores remain.
func (a *Aggregator) CompareByName(query, componentType string, products []models.Product) *Report {
	candidates := make([]*models.Product, 0)
	for i := range products {
		p := &products[i]
		if !p.IsActive || !p.HasPrice() {
			continue
		}
		if componentType != "" && p.ComponentType != componentType {
			continue
		}
		if !MatchesQuery(p.Name, query) {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return nil
	}

	sortByPrice(candidates)
	reference := candidates[0]
	refProfile := matching.NewProfile(reference)

	best := make(map[string]ComparedProduct)
	for _, c := range candidates {
		score := a.scorer.ScoreProfiles(refProfile, matching.NewProfile(c))
		if cur, ok := best[c.Store]; ok && cur.MatchConfidence >= score.Value {
			continue
		}
		best[c.Store] = ComparedProduct{Product: c, MatchConfidence: score.Value, Method: score.Method}
	}

	kept := make([]ComparedProduct, 0, len(best))
	for _, cp := range best {
		if cp.MatchConfidence >= a.minConfidence {
			kept = append(kept, cp)
		}
	}
	if len(kept) < 2 {
		return nil
	}

	sort.Slice(kept, func(i, j int) bool {
		return priceLess(kept[i].Product, kept[j].Product)
	})

	lowest := kept[0].Product
	highest := kept[len(kept)-1].Product
	diff := highest.PriceUSD.Decimal.Sub(lowest.PriceUSD.Decimal)

	return &Report{
		ProductName: reference.Name,
		ReferenceID: reference.ID,
		TotalStores: len(kept),
		Matches:     kept,
		LowestPrice: LowestPrice{
			Store:      lowest.Store,
			ProductID:  lowest.ID,
			PriceUSD:   lowest.PriceUSD.Decimal,
			PriceLocal: lowest.PriceLocal,
			URL:        lowest.SourceURL,
			Stock:      lowest.Stock,
		},
		HighestPrice: HighestPrice{
			Store:      highest.Store,
			ProductID:  highest.ID,
			PriceUSD:   highest.PriceUSD.Decimal,
			PriceLocal: highest.PriceLocal,
		},
		PriceDifferenceUSD: diff,
		SavingsPercentage:  SavingsPercentage(lowest.PriceUSD.Decimal, highest.PriceUSD.Decimal),
	}
}

// SavingsPercentage is (highest-lowest)/highest*100 rounded to two places,
// or zero when highest is zero
func SavingsPercentage(lowest, highest decimal.Decimal) decimal.Decimal {
	if highest.IsZero() {
		return decimal.Zero
	}
	return highest.Sub(lowest).Div(highest).Mul(hundred).Round(2)
}

func sortByPrice(products []*models.Product) {
	sort.Slice(products, func(i, j int) bool {
		return priceLess(products[i], products[j])
	})
}

func priceLess(a, b *models.Product) bool {
	if c := a.PriceUSD.Decimal.Cmp(b.PriceUSD.Decimal); c != 0 {
		return c < 0
	}
	if a.Store != b.Store {
		return a.Store < b.Store
	}
	return a.ID < b.ID
}
