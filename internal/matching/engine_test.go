package matching

import (
	"context"
	"sync"
	"testing"

	"pcprice-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	records map[models.PairKey]models.MatchRecord
	calls   int
}

func newMemorySink() *memorySink {
	return &memorySink{records: make(map[models.PairKey]models.MatchRecord)}
}

func (s *memorySink) UpsertMatches(_ context.Context, records []models.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	for _, r := range records {
		s.records[r.Key()] = r
	}
	return nil
}

func catalog() []models.Product {
	return []models.Product{
		product(1, "A", "Intel Core i5-12400F", "Intel", "BX8071512400F", "procesador"),
		product(2, "B", "PROCESADOR INTEL CORE I5 12400F", "Intel", "BX8071512400F", "procesador"),
		product(3, "A", "Intel Core i5-12400F Tray", "Intel", "", "procesador"),
		product(4, "C", "AMD Ryzen 5 5600X", "AMD", "100-100000065BOX", "procesador"),
		product(5, "C", "Intel Core i5-12400F", "Intel", "", "otro"),
		product(6, "B", "AMD Ryzen 5 5600X 3.7GHz", "AMD", "", "procesador"),
		product(7, "A", "ASUS Dual GeForce RTX 4060 8GB", "ASUS", "", "tarjeta_grafica"),
		product(8, "C", "Tarjeta de video ASUS Dual RTX 4060 8GB", "ASUS", "", "tarjeta_grafica"),
	}
}

func TestFindMatchesEndToEnd(t *testing.T) {
	e := NewEngine(EngineConfig{})
	pool := catalog()

	matches := e.FindMatches(&pool[0], pool, 0)
	require.NotEmpty(t, matches)

	assert.Equal(t, int64(2), matches[0].Product.ID)
	assert.Equal(t, models.MatchMethodExactSKU, matches[0].Method)
	assert.GreaterOrEqual(t, matches[0].Confidence, 0.95)

	for _, m := range matches {
		assert.NotEqual(t, "A", m.Product.Store)
		assert.Equal(t, "procesador", m.Product.ComponentType)
		assert.GreaterOrEqual(t, m.Confidence, DefaultThreshold)
	}
}

func TestFindMatchesOrdering(t *testing.T) {
	e := NewEngine(EngineConfig{})
	ref := product(1, "A", "Corsair RM750e", "", "", "fuente")
	pool := []models.Product{
		product(4, "Z", "Corsair RM750e", "", "", "fuente"),
		product(3, "B", "Corsair RM750e", "", "", "fuente"),
		product(2, "B", "Corsair RM750e", "", "", "fuente"),
	}

	matches := e.FindMatches(&ref, pool, 0.5)
	require.Len(t, matches, 3)
	assert.Equal(t, []int64{2, 3, 4}, []int64{matches[0].Product.ID, matches[1].Product.ID, matches[2].Product.ID})
}

func TestFindMatchesEmptyPool(t *testing.T) {
	e := NewEngine(EngineConfig{})
	ref := product(1, "A", "Corsair RM750e", "", "", "fuente")

	assert.Empty(t, e.FindMatches(&ref, nil, 0))
	assert.Empty(t, e.FindMatches(&ref, []models.Product{ref}, 0))
}

func TestBatchMatchIdempotent(t *testing.T) {
	e := NewEngine(EngineConfig{Workers: 3})
	sink := newMemorySink()
	ctx := context.Background()

	first, err := e.BatchMatch(ctx, catalog(), BatchOptions{}, sink)
	require.NoError(t, err)
	require.NotZero(t, first.MatchesFound)
	snapshot := make(map[models.PairKey]models.MatchRecord, len(sink.records))
	for k, v := range sink.records {
		snapshot[k] = v
	}

	second, err := e.BatchMatch(ctx, catalog(), BatchOptions{}, sink)
	require.NoError(t, err)

	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, snapshot, sink.records)
	assert.Equal(t, len(catalog()), second.ProductsVisited)

	for _, r := range first.Records {
		assert.Less(t, r.ProductIDA, r.ProductIDB)
	}
	assert.Contains(t, sink.records, models.PairKey{A: 1, B: 2})
	assert.NotContains(t, sink.records, models.PairKey{A: 1, B: 3})
	assert.NotContains(t, sink.records, models.PairKey{A: 1, B: 5})
}

func TestBatchMatchOrderIndependent(t *testing.T) {
	e := NewEngine(EngineConfig{Workers: 2})
	forward := catalog()
	reversed := catalog()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}

	a, err := e.BatchMatch(context.Background(), forward, BatchOptions{}, nil)
	require.NoError(t, err)
	b, err := e.BatchMatch(context.Background(), reversed, BatchOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Records, b.Records)
}

func TestBatchMatchComponentFilter(t *testing.T) {
	e := NewEngine(EngineConfig{})
	sink := newMemorySink()

	res, err := e.BatchMatch(context.Background(), catalog(), BatchOptions{ComponentType: "tarjeta_grafica"}, sink)
	require.NoError(t, err)

	assert.Equal(t, 2, res.ProductsVisited)
	for _, r := range res.Records {
		assert.Equal(t, models.PairKey{A: 7, B: 8}, r.Key())
	}
}

func TestBatchMatchEmptyCatalog(t *testing.T) {
	e := NewEngine(EngineConfig{})
	sink := newMemorySink()

	res, err := e.BatchMatch(context.Background(), nil, BatchOptions{}, sink)
	require.NoError(t, err)
	assert.Zero(t, res.MatchesFound)
	assert.Zero(t, sink.calls)
}

func TestBatchMatchCancelled(t *testing.T) {
	e := NewEngine(EngineConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.BatchMatch(ctx, catalog(), BatchOptions{}, newMemorySink())
	assert.ErrorIs(t, err, context.Canceled)
}
