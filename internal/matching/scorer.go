package matching

import (
	"strings"

	"pcprice-service/internal/models"
	"pcprice-service/internal/normalize"
)

// Scoring constants
const (
	DefaultThreshold     = 0.75
	ModelMatchFloor      = 0.9
	SKUMatchFloor        = 0.95
	BrandMismatchPenalty = 0.7

	highSimilarity   = 0.9
	mediumSimilarity = 0.75
)

// Profile holds the derived fields of a product that scoring looks at.
// Building it once per product keeps batch runs from re-normalizing names
// for every pair.
type Profile struct {
	Product *models.Product

	name  string
	model string
	sku   string
	brand string
}

// NewProfile derives the comparison fields of p
func NewProfile(p *models.Product) Profile {
	model, _ := normalize.ExtractModelToken(p.Name)
	return Profile{
		Product: p,
		name:    normalize.ComparisonName(p.Name),
		model:   model,
		sku:     strings.ToUpper(strings.TrimSpace(p.SKU)),
		brand:   strings.ToUpper(strings.TrimSpace(p.Brand)),
	}
}

// Score is a bounded confidence together with the reason it was reached
type Score struct {
	Value  float64
	Method models.MatchMethod
}

// Scorer computes pairwise similarity between canonical products
type Scorer struct {
	sim StringSimilarity
}

// NewScorer creates a scorer; a nil sim falls back to SequenceRatio
func NewScorer(sim StringSimilarity) *Scorer {
	if sim == nil {
		sim = SequenceRatio
	}
	return &Scorer{sim: sim}
}

// Score compares two products
func (s *Scorer) Score(a, b *models.Product) Score {
	return s.ScoreProfiles(NewProfile(a), NewProfile(b))
}

// ScoreProfiles compares two precomputed profiles. The brand penalty is
// applied before the SKU floor, so equal SKUs always score at least
// SKUMatchFloor.
func (s *Scorer) ScoreProfiles(a, b Profile) Score {
	value := s.sim.Similarity(a.name, b.name)

	modelMatch := a.model != "" && a.model == b.model
	if modelMatch {
		value = max(value, ModelMatchFloor)
	}

	if a.brand != "" && b.brand != "" && a.brand != b.brand {
		value *= BrandMismatchPenalty
	}

	skuMatch := a.sku != "" && a.sku == b.sku
	if skuMatch {
		value = max(value, SKUMatchFloor)
	}

	value = min(max(value, 0), 1)

	return Score{Value: value, Method: classify(value, skuMatch, modelMatch)}
}

func classify(value float64, skuMatch, modelMatch bool) models.MatchMethod {
	switch {
	case skuMatch:
		return models.MatchMethodExactSKU
	case modelMatch:
		return models.MatchMethodModelNumber
	case value >= highSimilarity:
		return models.MatchMethodHighSimilarity
	case value >= mediumSimilarity:
		return models.MatchMethodMediumSimilarity
	default:
		return models.MatchMethodLowSimilarity
	}
}
