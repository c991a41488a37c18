package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"pcprice-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the catalog tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// productColumns selects a product row; source_url is nullable in the table
const productColumns = `
	id, store, name, normalized_name, component_type, brand, sku,
	price_usd, price_local, currency, stock,
	COALESCE(source_url, '') AS source_url, image_url,
	is_active, last_observed_at, created_at`

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// ListActiveProducts retrieves the active catalog, optionally narrowed to
// one component type
func (s *Store) ListActiveProducts(ctx context.Context, componentType string) ([]models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE is_active"
	args := []interface{}{}
	if componentType != "" {
		query += " AND component_type = $1"
		args = append(args, componentType)
	}
	query += " ORDER BY id"

	var products []models.Product
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list active products: %w", err)
	}
	return products, nil
}

// ListProducts retrieves one page of products matching filter and the total
// number of matching rows
func (s *Store) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int, error) {
	where, args := buildProductFilter(filter)

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	limit, skip := PageBounds(filter)
	query := fmt.Sprintf("SELECT %s FROM products WHERE %s ORDER BY price_usd ASC NULLS LAST, id LIMIT %d OFFSET %d",
		productColumns, where, limit, skip)

	var products []models.Product
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// SearchProducts returns active products whose name may contain query,
// cheapest first. It is a prefilter: callers apply the exact name match.
func (s *Store) SearchProducts(ctx context.Context, query, componentType string) ([]models.Product, error) {
	where, args := buildProductFilter(models.ProductFilter{Query: query, ComponentType: componentType})

	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE "+where+" AND price_usd IS NOT NULL ORDER BY price_usd, store, id",
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

// GetPriceHistory retrieves the newest observations of a product
func (s *Store) GetPriceHistory(ctx context.Context, productID int64, limit int) ([]models.PriceObservation, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	var history []models.PriceObservation
	err := s.db.SelectContext(ctx, &history,
		"SELECT * FROM price_observations WHERE product_id = $1 ORDER BY observed_at DESC, id DESC LIMIT $2",
		productID, limit)
	return history, err
}

// CountByStore returns the number of active products per store
func (s *Store) CountByStore(ctx context.Context) ([]models.StoreCount, error) {
	return s.countBy(ctx, "store")
}

// CountByComponentType returns the number of active products per component type
func (s *Store) CountByComponentType(ctx context.Context) ([]models.StoreCount, error) {
	return s.countBy(ctx, "component_type")
}

func (s *Store) countBy(ctx context.Context, column string) ([]models.StoreCount, error) {
	var counts []models.StoreCount
	query := fmt.Sprintf(
		"SELECT %[1]s AS key, COUNT(*) AS count FROM products WHERE is_active GROUP BY %[1]s ORDER BY count DESC, %[1]s",
		column)
	if err := s.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("failed to count products by %s: %w", column, err)
	}
	return counts, nil
}

// GetCatalogStats summarizes the active catalog
func (s *Store) GetCatalogStats(ctx context.Context) (*models.CatalogStats, error) {
	var row struct {
		Total int                 `db:"total"`
		Min   decimal.NullDecimal `db:"min_price"`
		Max   decimal.NullDecimal `db:"max_price"`
		Avg   decimal.NullDecimal `db:"avg_price"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT COUNT(*) AS total,
		       MIN(price_usd) AS min_price,
		       MAX(price_usd) AS max_price,
		       ROUND(AVG(price_usd), 2) AS avg_price
		FROM products WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate prices: %w", err)
	}

	byType, err := s.CountByComponentType(ctx)
	if err != nil {
		return nil, err
	}
	byStore, err := s.CountByStore(ctx)
	if err != nil {
		return nil, err
	}
	matches, err := s.CountMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count matches: %w", err)
	}

	return &models.CatalogStats{
		TotalProducts:   row.Total,
		ByComponentType: byType,
		ByStore:         byStore,
		MinPriceUSD:     row.Min,
		MaxPriceUSD:     row.Max,
		AvgPriceUSD:     row.Avg,
		TotalMatches:    matches,
	}, nil
}
