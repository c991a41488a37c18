package store

import (
	"context"
	"fmt"

	"pcprice-service/internal/models"
)

// UpsertMatches stores match records in one transaction. A pair that
// already exists keeps its created_at and only changes when confidence or
// method differ.
func (s *Store) UpsertMatches(ctx context.Context, records []models.MatchRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO product_matches (product_id_a, product_id_b, confidence, method)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id_a, product_id_b) DO UPDATE SET
			confidence = EXCLUDED.confidence,
			method = EXCLUDED.method,
			updated_at = NOW()
		WHERE product_matches.confidence <> EXCLUDED.confidence
		   OR product_matches.method <> EXCLUDED.method`)
	if err != nil {
		return fmt.Errorf("failed to prepare match upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		a, b := r.ProductIDA, r.ProductIDB
		if a > b {
			a, b = b, a
		}
		if _, err := stmt.ExecContext(ctx, a, b, r.Confidence, r.Method); err != nil {
			return fmt.Errorf("failed to upsert match %d-%d: %w", a, b, err)
		}
	}

	return tx.Commit()
}

// GetMatchesForProduct retrieves the stored matches touching a product,
// best first
func (s *Store) GetMatchesForProduct(ctx context.Context, productID int64) ([]models.MatchRecord, error) {
	var records []models.MatchRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT product_id_a, product_id_b, confidence, method, created_at, updated_at
		FROM product_matches
		WHERE product_id_a = $1 OR product_id_b = $1
		ORDER BY confidence DESC, product_id_a, product_id_b`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	return records, nil
}

// CountMatches returns the number of stored match records
func (s *Store) CountMatches(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM product_matches")
	return n, err
}
