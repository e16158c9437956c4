package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// defaultHistoryLimit bounds the history slices in an AttributeBlock when
// the caller does not say otherwise.
const defaultHistoryLimit = 5

// GetProduct returns the snapshot row for the given SKU.
func (s *Store) GetProduct(ctx context.Context, sku string) (Product, error) {
	var p Product
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT sku, brand, model_name, currency, availability, shipping_eta, review_count, average_rating, updated_at
		FROM products WHERE sku = ?`, sku,
	).Scan(&p.SKU, &p.Brand, &p.ModelName, &p.Currency, &p.Availability, &p.ShippingETA, &p.ReviewCount, &p.AverageRating, &updatedAt)
	if err == sql.ErrNoRows {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return Product{}, fmt.Errorf("parsing updated_at for %s: %w", sku, err)
	}
	p.UpdatedAt = t
	return p, nil
}

// ListProducts returns catalog snapshots matching the filter, ordered by SKU.
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	query := `
		SELECT sku, brand, model_name, currency, availability, shipping_eta, review_count, average_rating, updated_at
		FROM products`
	var conditions []string
	var args []interface{}

	if f.Brand != "" {
		conditions = append(conditions, "LOWER(brand) = LOWER(?)")
		args = append(args, f.Brand)
	}
	if f.MinRating > 0 {
		conditions = append(conditions, "average_rating >= ?")
		args = append(args, f.MinRating)
	}
	if f.Availability != "" {
		conditions = append(conditions, "LOWER(availability) = LOWER(?)")
		args = append(args, f.Availability)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY sku ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var results []Product
	for rows.Next() {
		var p Product
		var updatedAt string
		if err := rows.Scan(&p.SKU, &p.Brand, &p.ModelName, &p.Currency, &p.Availability, &p.ShippingETA, &p.ReviewCount, &p.AverageRating, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		t, err := time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at for %s: %w", p.SKU, err)
		}
		p.UpdatedAt = t
		results = append(results, p)
	}
	return results, rows.Err()
}

// PriceHistory returns up to limit price points for the SKU, newest first.
// limit <= 0 returns the full history.
func (s *Store) PriceHistory(ctx context.Context, sku string, limit int) ([]PricePoint, error) {
	query := `SELECT id, sku, price, recorded_on, vendor, promo
		FROM price_history WHERE sku = ? ORDER BY recorded_on DESC, id DESC`
	args := []interface{}{sku}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying price history: %w", err)
	}
	defer rows.Close()

	var results []PricePoint
	for rows.Next() {
		var pp PricePoint
		var recordedOn string
		if err := rows.Scan(&pp.ID, &pp.SKU, &pp.Price, &recordedOn, &pp.Vendor, &pp.Promo); err != nil {
			return nil, fmt.Errorf("scanning price point: %w", err)
		}
		t, err := time.Parse(dateLayout, recordedOn)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_on: %w", err)
		}
		pp.RecordedOn = t
		results = append(results, pp)
	}
	return results, rows.Err()
}

// Reviews returns up to limit reviews for the SKU, newest first.
// limit <= 0 returns all reviews.
func (s *Store) Reviews(ctx context.Context, sku string, limit int) ([]Review, error) {
	query := `SELECT id, sku, rating, body, recorded_on, source
		FROM reviews WHERE sku = ? ORDER BY recorded_on DESC, id DESC`
	args := []interface{}{sku}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reviews: %w", err)
	}
	defer rows.Close()

	var results []Review
	for rows.Next() {
		var r Review
		var recordedOn string
		if err := rows.Scan(&r.ID, &r.SKU, &r.Rating, &r.Body, &recordedOn, &r.Source); err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		t, err := time.Parse(dateLayout, recordedOn)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_on: %w", err)
		}
		r.RecordedOn = t
		results = append(results, r)
	}
	return results, rows.Err()
}

// Questions returns up to limit Q&A excerpts for the SKU, newest first.
// limit <= 0 returns all of them.
func (s *Store) Questions(ctx context.Context, sku string, limit int) ([]Question, error) {
	query := `SELECT id, sku, question, answer, recorded_on, source
		FROM questions WHERE sku = ? ORDER BY recorded_on DESC, id DESC`
	args := []interface{}{sku}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying questions: %w", err)
	}
	defer rows.Close()

	var results []Question
	for rows.Next() {
		var q Question
		var recordedOn string
		if err := rows.Scan(&q.ID, &q.SKU, &q.Question, &q.Answer, &recordedOn, &q.Source); err != nil {
			return nil, fmt.Errorf("scanning question: %w", err)
		}
		t, err := time.Parse(dateLayout, recordedOn)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_on: %w", err)
		}
		q.RecordedOn = t
		results = append(results, q)
	}
	return results, rows.Err()
}

// Attributes assembles the full dynamic block for one SKU: the snapshot plus
// the most recent historyLimit entries of each history table. Returns
// ErrNotFound if the product has no snapshot row.
func (s *Store) Attributes(ctx context.Context, sku string, historyLimit int) (AttributeBlock, error) {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}

	snapshot, err := s.GetProduct(ctx, sku)
	if err != nil {
		return AttributeBlock{}, err
	}

	prices, err := s.PriceHistory(ctx, sku, historyLimit)
	if err != nil {
		return AttributeBlock{}, fmt.Errorf("fetching price history for %s: %w", sku, err)
	}
	reviews, err := s.Reviews(ctx, sku, historyLimit)
	if err != nil {
		return AttributeBlock{}, fmt.Errorf("fetching reviews for %s: %w", sku, err)
	}
	questions, err := s.Questions(ctx, sku, historyLimit)
	if err != nil {
		return AttributeBlock{}, fmt.Errorf("fetching questions for %s: %w", sku, err)
	}

	return AttributeBlock{
		Snapshot:  snapshot,
		Prices:    prices,
		Reviews:   reviews,
		Questions: questions,
	}, nil
}

// --- Writes (ingestion collaborators and tests) ---

// UpsertProduct overwrites the snapshot row for the product. The snapshot is
// the only mutable row per product; history tables are append-only.
func (s *Store) UpsertProduct(ctx context.Context, p Product) error {
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (sku, brand, model_name, currency, availability, shipping_eta, review_count, average_rating, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sku) DO UPDATE SET
			brand = excluded.brand,
			model_name = excluded.model_name,
			currency = excluded.currency,
			availability = excluded.availability,
			shipping_eta = excluded.shipping_eta,
			review_count = excluded.review_count,
			average_rating = excluded.average_rating,
			updated_at = excluded.updated_at`,
		p.SKU, p.Brand, p.ModelName, p.Currency, p.Availability, p.ShippingETA,
		p.ReviewCount, p.AverageRating, updatedAt.Format(time.RFC3339),
	)
	return err
}

// AddPricePoint appends one price history record.
func (s *Store) AddPricePoint(ctx context.Context, pp PricePoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_history (sku, price, recorded_on, vendor, promo)
		VALUES (?, ?, ?, ?, ?)`,
		pp.SKU, pp.Price, pp.RecordedOn.Format(dateLayout), pp.Vendor, pp.Promo,
	)
	return err
}

// AddReview appends one review record.
func (s *Store) AddReview(ctx context.Context, r Review) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (sku, rating, body, recorded_on, source)
		VALUES (?, ?, ?, ?, ?)`,
		r.SKU, r.Rating, r.Body, r.RecordedOn.Format(dateLayout), r.Source,
	)
	return err
}

// AddQuestion appends one Q&A record.
func (s *Store) AddQuestion(ctx context.Context, q Question) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO questions (sku, question, answer, recorded_on, source)
		VALUES (?, ?, ?, ?, ?)`,
		q.SKU, q.Question, q.Answer, q.RecordedOn.Format(dateLayout), q.Source,
	)
	return err
}

// --- Interactions ---

// SaveInteraction records one answered query. Best-effort from the caller's
// point of view; a failure here must never fail the request.
func (s *Store) SaveInteraction(ctx context.Context, i Interaction) error {
	createdAt := i.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	truncated := 0
	if i.Truncated {
		truncated = 1
	}
	chunkIDs := i.ChunkIDs
	if chunkIDs == "" {
		chunkIDs = "[]"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, created_at, user_query, prompt, answer, chunk_ids, truncated)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		i.ID, createdAt.UTC().Format(time.RFC3339), i.UserQuery, i.Prompt, i.Answer, chunkIDs, truncated,
	)
	return err
}

// RecentInteractions returns the latest recorded interactions, newest first.
func (s *Store) RecentInteractions(ctx context.Context, limit int) ([]Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, user_query, prompt, answer, chunk_ids, truncated
		FROM interactions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Interaction
	for rows.Next() {
		var i Interaction
		var createdAt string
		var truncated int
		if err := rows.Scan(&i.ID, &createdAt, &i.UserQuery, &i.Prompt, &i.Answer, &i.ChunkIDs, &truncated); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		i.CreatedAt = t
		i.Truncated = truncated != 0
		results = append(results, i)
	}
	return results, rows.Err()
}
