package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested record does not exist.
var ErrNotFound = errors.New("record: not found")

// Repository provides access to fulfillment records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new fulfillment record and returns it with its
// generated id and creation time.
func (r *Repository) Create(ctx context.Context, creatorHandle, campaign, brand string) (Record, error) {
	const query = `
		INSERT INTO fulfillment_records (creator_handle, campaign, brand)
		VALUES ($1, $2, $3)
		RETURNING id, creator_handle, campaign, brand, created_at
	`

	var rec Record
	err := r.pool.QueryRow(ctx, query, creatorHandle, campaign, brand).Scan(
		&rec.ID,
		&rec.CreatorHandle,
		&rec.Campaign,
		&rec.Brand,
		&rec.CreatedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("record: create: %w", err)
	}

	return rec, nil
}

// GetByID fetches a fulfillment record by its primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (Record, error) {
	const query = `
		SELECT id, creator_handle, campaign, brand, created_at
		FROM fulfillment_records
		WHERE id = $1
	`

	var rec Record
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.CreatorHandle,
		&rec.Campaign,
		&rec.Brand,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("record: query by id: %w", err)
	}

	return rec, nil
}

// List fetches up to limit fulfillment records, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT id, creator_handle, campaign, brand, created_at
		FROM fulfillment_records
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("record: list: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.CreatorHandle, &rec.Campaign, &rec.Brand, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("record: scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("record: iterate records: %w", err)
	}

	return records, nil
}
