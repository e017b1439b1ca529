package listings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const searchLimit = 5

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository queries the listing catalog in Postgres.
type Repository struct {
	pool rowQuerier
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("listings: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithQuerier(q rowQuerier) *Repository {
	if q == nil {
		panic("listings: querier required")
	}
	return &Repository{pool: q}
}

// Search matches the query as a case-insensitive substring against title,
// location, and description of active, approved listings.
func (r *Repository) Search(ctx context.Context, query string) ([]Listing, error) {
	const q = `
		SELECT id, title, location, price_per_night,
		       COALESCE(rating, 4.5), COALESCE(property_type, 'homestay')
		FROM listings
		WHERE (title ILIKE '%' || $1 || '%'
		   OR location ILIKE '%' || $1 || '%'
		   OR description ILIKE '%' || $1 || '%')
		  AND is_active AND is_approved
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, q, query, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("listings: search query: %w", err)
	}
	defer rows.Close()

	var results []Listing
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.ID, &l.Title, &l.Location, &l.Price, &l.Rating, &l.Type); err != nil {
			return nil, fmt.Errorf("listings: scan row: %w", err)
		}
		results = append(results, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listings: read rows: %w", err)
	}
	return results, nil
}
