package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pcprice-service/internal/models"
	"pcprice-service/internal/normalize"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// UpsertResult describes the outcome of persisting one listing
type UpsertResult struct {
	Product  models.Product
	Previous *models.Product
	Created  bool
	Observed bool
}

// PriceChanged reports whether an existing listing changed price or stock
func (r *UpsertResult) PriceChanged() bool {
	return !r.Created && r.Previous != nil && models.PriceOrStockChanged(r.Previous, &r.Product)
}

type upsertRow struct {
	models.Product
	Inserted bool `db:"inserted"`
}

const productUpdateSet = `
	name = EXCLUDED.name,
	normalized_name = EXCLUDED.normalized_name,
	component_type = EXCLUDED.component_type,
	brand = EXCLUDED.brand,
	sku = EXCLUDED.sku,
	price_usd = EXCLUDED.price_usd,
	price_local = EXCLUDED.price_local,
	currency = EXCLUDED.currency,
	stock = EXCLUDED.stock,
	image_url = EXCLUDED.image_url,
	is_active = TRUE,
	last_observed_at = NOW()`

// UpsertProduct inserts a listing or refreshes the existing row with the
// same (store, source_url), or (store, sku) for listings without a URL.
// A price observation is appended on insert and whenever price or stock
// differ from the stored row.
func (s *Store) UpsertProduct(ctx context.Context, p *models.Product) (*UpsertResult, error) {
	if p.SourceURL == "" && p.SKU == "" {
		return nil, fmt.Errorf("product %q in store %s has neither source_url nor sku", p.Name, p.Store)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var previous models.Product
	var lookup string
	var lookupArgs []interface{}
	var conflict string
	if p.SourceURL != "" {
		lookup = "store = $1 AND source_url = $2"
		lookupArgs = []interface{}{p.Store, p.SourceURL}
		conflict = "(store, source_url)"
	} else {
		lookup = "store = $1 AND source_url IS NULL AND sku = $2"
		lookupArgs = []interface{}{p.Store, p.SKU}
		conflict = "(store, sku) WHERE source_url IS NULL AND sku <> ''"
	}

	hasPrevious := true
	err = tx.GetContext(ctx, &previous,
		"SELECT "+productColumns+" FROM products WHERE "+lookup+" FOR UPDATE", lookupArgs...)
	if err == sql.ErrNoRows {
		hasPrevious = false
	} else if err != nil {
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	query := `
		INSERT INTO products (store, name, normalized_name, component_type, brand, sku,
			price_usd, price_local, currency, stock, source_url, image_url, is_active, last_observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, TRUE, NOW())
		ON CONFLICT ` + conflict + ` DO UPDATE SET ` + productUpdateSet + `
		RETURNING ` + productColumns + `, (xmax = 0) AS inserted`

	var row upsertRow
	err = tx.GetContext(ctx, &row, query,
		p.Store, p.Name, p.NormalizedName, p.ComponentType, p.Brand, p.SKU,
		p.PriceUSD, p.PriceLocal, p.Currency, p.Stock, p.SourceURL, p.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert product: %w", err)
	}

	result := &UpsertResult{Product: row.Product, Created: row.Inserted}
	if hasPrevious {
		result.Previous = &previous
	}

	// a concurrent first insert leaves no previous row to compare against
	if result.Created || result.Previous == nil || models.PriceOrStockChanged(result.Previous, &result.Product) {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO price_observations (product_id, price_usd, price_local, stock) VALUES ($1, $2, $3, $4)",
			row.ID, row.PriceUSD, row.PriceLocal, row.Stock)
		if err != nil {
			return nil, fmt.Errorf("failed to record price observation: %w", err)
		}
		result.Observed = true
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeactivateProduct hides a listing from matching and comparison
func (s *Store) DeactivateProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "UPDATE products SET is_active = FALSE WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}

// buildProductFilter renders filter as a WHERE clause over active products
func buildProductFilter(filter models.ProductFilter) (string, []interface{}) {
	clauses := []string{"is_active"}
	args := []interface{}{}

	add := func(format string, values ...interface{}) {
		placeholders := make([]interface{}, len(values))
		for i, v := range values {
			args = append(args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf(format, placeholders...))
	}

	if filter.ComponentType != "" {
		add("component_type = %s", filter.ComponentType)
	}
	if filter.Brand != "" {
		add("UPPER(brand) = UPPER(%s)", filter.Brand)
	}
	if filter.Store != "" {
		add("store = %s", filter.Store)
	}
	if filter.MinPrice != nil {
		add("price_usd >= %s", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		add("price_usd <= %s", *filter.MaxPrice)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		if compact := normalize.Compact(q); compact != "" {
			add(`(name ILIKE %s OR regexp_replace(UPPER(name), '[^[:alnum:]]', '', 'g') LIKE %s)`,
				pattern, "%"+escapeLike(compact)+"%")
		} else {
			add("name ILIKE %s", pattern)
		}
	}

	return strings.Join(clauses, " AND "), args
}

// PageBounds returns the effective page size and offset for filter
func PageBounds(filter models.ProductFilter) (limit, skip int) {
	limit = filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	skip = filter.Skip
	if skip < 0 {
		skip = 0
	}
	return limit, skip
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
