package matching

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"pcprice-service/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Match is a candidate from another store judged equivalent to a product
type Match struct {
	Product    *models.Product    `json:"product"`
	Confidence float64            `json:"confidence"`
	Method     models.MatchMethod `json:"method"`
}

// EngineConfig configures an Engine
type EngineConfig struct {
	Threshold  float64
	Workers    int
	Similarity StringSimilarity
	Logger     *zap.Logger
}

// Engine finds cross-store matches over a snapshot of the catalog. It holds
// no catalog state of its own and is safe for concurrent use.
type Engine struct {
	scorer    *Scorer
	threshold float64
	workers   int
	logger    *zap.Logger
}

// NewEngine creates a match engine
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Engine{
		scorer:    NewScorer(cfg.Similarity),
		threshold: cfg.Threshold,
		workers:   cfg.Workers,
		logger:    cfg.Logger,
	}
}

// Scorer returns the scorer used by the engine
func (e *Engine) Scorer() *Scorer {
	return e.scorer
}

// Threshold returns the default match threshold
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// FindMatches scores product against every pool entry from a different
// store with the same component type. Matches at or above threshold are
// returned best first; ties are ordered by store, then id. A threshold <= 0
// uses the engine default.
func (e *Engine) FindMatches(product *models.Product, pool []models.Product, threshold float64) []Match {
	if threshold <= 0 {
		threshold = e.threshold
	}

	ref := NewProfile(product)
	matches := make([]Match, 0)

	for i := range pool {
		candidate := &pool[i]
		if !crossStore(product, candidate) {
			continue
		}

		score := e.scorer.ScoreProfiles(ref, NewProfile(candidate))
		if score.Value < threshold {
			continue
		}
		matches = append(matches, Match{
			Product:    candidate,
			Confidence: score.Value,
			Method:     score.Method,
		})
	}

	sortMatches(matches)
	return matches
}

// MatchSink persists match records produced by a batch run
type MatchSink interface {
	UpsertMatches(ctx context.Context, records []models.MatchRecord) error
}

// BatchOptions narrows a batch run
type BatchOptions struct {
	ComponentType string
	Threshold     float64
}

// BatchResult summarizes a batch run
type BatchResult struct {
	ProductsVisited int                  `json:"products_visited"`
	MatchesFound    int                  `json:"matches_found"`
	Records         []models.MatchRecord `json:"-"`
}

// BatchMatch matches every catalog product against the rest of the catalog
// and hands the deduplicated records to sink, ordered by pair key. The
// visiting order is fixed by (component type, store, name, id), so repeated
// runs over the same catalog produce the same records.
func (e *Engine) BatchMatch(ctx context.Context, catalog []models.Product, opts BatchOptions, sink MatchSink) (*BatchResult, error) {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = e.threshold
	}

	products := make([]models.Product, 0, len(catalog))
	for _, p := range catalog {
		if opts.ComponentType != "" && p.ComponentType != opts.ComponentType {
			continue
		}
		products = append(products, p)
	}
	sort.SliceStable(products, func(i, j int) bool {
		return visitLess(&products[i], &products[j])
	})

	profiles := make([]Profile, len(products))
	for i := range products {
		profiles[i] = NewProfile(&products[i])
	}

	// products are sorted by component type first, so each type is a
	// contiguous range
	groupEnd := make([]int, len(products))
	for i := len(products) - 1; i >= 0; i-- {
		if i == len(products)-1 || products[i].ComponentType != products[i+1].ComponentType {
			groupEnd[i] = i + 1
		} else {
			groupEnd[i] = groupEnd[i+1]
		}
	}

	found := make([][]models.MatchRecord, len(products))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range products {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// scores are symmetric, so each pair is scored from its lower index
			for j := i + 1; j < groupEnd[i]; j++ {
				if !crossStore(&products[i], &products[j]) {
					continue
				}
				score := e.scorer.ScoreProfiles(profiles[i], profiles[j])
				if score.Value < threshold {
					continue
				}
				found[i] = append(found[i], models.NewMatchRecord(
					products[i].ID, products[j].ID, score.Value, score.Method))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch match: %w", err)
	}

	records := dedupeRecords(found)

	e.logger.Debug("Batch match scored",
		zap.String("component_type", opts.ComponentType),
		zap.Int("products", len(products)),
		zap.Int("matches", len(records)),
		zap.Float64("threshold", threshold),
	)

	if sink != nil && len(records) > 0 {
		if err := sink.UpsertMatches(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to upsert matches: %w", err)
		}
	}

	return &BatchResult{
		ProductsVisited: len(products),
		MatchesFound:    len(records),
		Records:         records,
	}, nil
}

func crossStore(a, b *models.Product) bool {
	return a.Store != b.Store && a.ComponentType == b.ComponentType
}

func visitLess(a, b *models.Product) bool {
	if a.ComponentType != b.ComponentType {
		return a.ComponentType < b.ComponentType
	}
	if a.Store != b.Store {
		return a.Store < b.Store
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}

func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Product.Store != b.Product.Store {
			return a.Product.Store < b.Product.Store
		}
		return a.Product.ID < b.Product.ID
	})
}

// dedupeRecords keeps one record per pair; a pair seen twice keeps the
// higher confidence
func dedupeRecords(found [][]models.MatchRecord) []models.MatchRecord {
	byKey := make(map[models.PairKey]models.MatchRecord)
	for _, recs := range found {
		for _, r := range recs {
			if prev, ok := byKey[r.Key()]; ok && prev.Confidence >= r.Confidence {
				continue
			}
			byKey[r.Key()] = r
		}
	}

	records := make([]models.MatchRecord, 0, len(byKey))
	for _, r := range byKey {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].ProductIDA != records[j].ProductIDA {
			return records[i].ProductIDA < records[j].ProductIDA
		}
		return records[i].ProductIDB < records[j].ProductIDB
	})
	return records
}
