package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"pcprice-service/internal/models"
	"pcprice-service/internal/store"
)

// fakeCatalog is an in-memory ProductWriter, CatalogReader and
// MatchRepository keyed the same way as the products table
type fakeCatalog struct {
	mu           sync.Mutex
	nextID       int64
	products     map[int64]*models.Product
	observations map[int64][]models.PriceObservation
	matches      map[models.PairKey]models.MatchRecord
	searchErr    error
	searchCalls  int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products:     make(map[int64]*models.Product),
		observations: make(map[int64][]models.PriceObservation),
		matches:      make(map[models.PairKey]models.MatchRecord),
	}
}

func (f *fakeCatalog) UpsertProduct(_ context.Context, p *models.Product) (*store.UpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.products {
		if existing.Store != p.Store {
			continue
		}
		sameURL := p.SourceURL != "" && existing.SourceURL == p.SourceURL
		sameSKU := p.SourceURL == "" && existing.SourceURL == "" && p.SKU != "" && existing.SKU == p.SKU
		if !sameURL && !sameSKU {
			continue
		}

		prev := *existing
		next := *p
		next.ID = existing.ID
		next.CreatedAt = existing.CreatedAt
		next.LastObservedAt = time.Now()
		*existing = next

		res := &store.UpsertResult{Product: next, Previous: &prev}
		if models.PriceOrStockChanged(&prev, &next) {
			f.observe(&next)
			res.Observed = true
		}
		return res, nil
	}

	f.nextID++
	created := *p
	created.ID = f.nextID
	created.CreatedAt = time.Now()
	created.LastObservedAt = created.CreatedAt
	f.products[created.ID] = &created
	f.observe(&created)

	return &store.UpsertResult{Product: created, Created: true, Observed: true}, nil
}

func (f *fakeCatalog) DeactivateProduct(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[id]
	if !ok {
		return fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	p.IsActive = false
	return nil
}

func (f *fakeCatalog) observe(p *models.Product) {
	f.observations[p.ID] = append(f.observations[p.ID], models.PriceObservation{
		ID:         int64(len(f.observations[p.ID]) + 1),
		ProductID:  p.ID,
		PriceUSD:   p.PriceUSD,
		PriceLocal: p.PriceLocal,
		Stock:      p.Stock,
		ObservedAt: time.Now(),
	})
}

func (f *fakeCatalog) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []models.Product{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) all(keep func(*models.Product) bool) []models.Product {
	out := []models.Product{}
	for _, p := range f.products {
		if keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeCatalog) ListActiveProducts(_ context.Context, componentType string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.all(func(p *models.Product) bool {
		return p.IsActive && (componentType == "" || p.ComponentType == componentType)
	}), nil
}

func (f *fakeCatalog) ListProducts(_ context.Context, filter models.ProductFilter) ([]models.Product, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := f.all(func(p *models.Product) bool {
		return (filter.Store == "" || p.Store == filter.Store) &&
			(filter.ComponentType == "" || p.ComponentType == filter.ComponentType)
	})
	return matched, len(matched), nil
}

func (f *fakeCatalog) SearchProducts(_ context.Context, _ string, componentType string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.all(func(p *models.Product) bool {
		return p.IsActive && p.HasPrice() && (componentType == "" || p.ComponentType == componentType)
	}), nil
}

func (f *fakeCatalog) GetPriceHistory(_ context.Context, productID int64, _ int) ([]models.PriceObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]models.PriceObservation(nil), f.observations[productID]...), nil
}

func (f *fakeCatalog) CountByStore(_ context.Context) ([]models.StoreCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := map[string]int{}
	for _, p := range f.products {
		counts[p.Store]++
	}
	out := []models.StoreCount{}
	for k, v := range counts {
		out = append(out, models.StoreCount{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeCatalog) GetCatalogStats(_ context.Context) (*models.CatalogStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return &models.CatalogStats{TotalProducts: len(f.products)}, nil
}

func (f *fakeCatalog) UpsertMatches(_ context.Context, records []models.MatchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range records {
		f.matches[r.Key()] = r
	}
	return nil
}

func (f *fakeCatalog) GetMatchesForProduct(_ context.Context, productID int64) ([]models.MatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []models.MatchRecord{}
	for k, r := range f.matches {
		if k.A == productID || k.B == productID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

// fakeCache implements Cache and Locker
type fakeCache struct {
	mu         sync.Mutex
	generation int64
	entries    map[string][]byte
	locks      map[string]string
	getErr     error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[string][]byte),
		locks:   make(map[string]string),
	}
}

func (c *fakeCache) CacheGeneration(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *fakeCache) BumpCacheGeneration(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return nil
}

func (c *fakeCache) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getErr != nil {
		return false, c.getErr
	}
	v, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(v, dest)
}

func (c *fakeCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = data
	return nil
}

func (c *fakeCache) AcquireLock(_ context.Context, key string, _ time.Duration) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, held := c.locks[key]; held {
		return "", nil
	}
	token := fmt.Sprintf("token-%d", len(c.locks)+1)
	c.locks[key] = token
	return token, nil
}

func (c *fakeCache) ReleaseLock(_ context.Context, key, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locks[key] == token {
		delete(c.locks, key)
	}
	return nil
}

// fakePublisher records published events
type fakePublisher struct {
	mu           sync.Mutex
	ingested     []*models.ProductIngestedEvent
	priceChanged []*models.PriceChangedEvent
	batches      []*models.MatchBatchCompletedEvent
	err          error
}

func (p *fakePublisher) PublishProductIngested(_ context.Context, event *models.ProductIngestedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ingested = append(p.ingested, event)
	return p.err
}

func (p *fakePublisher) PublishPriceChanged(_ context.Context, event *models.PriceChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.priceChanged = append(p.priceChanged, event)
	return p.err
}

func (p *fakePublisher) PublishMatchBatchCompleted(_ context.Context, event *models.MatchBatchCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, event)
	return p.err
}
