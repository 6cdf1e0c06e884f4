// Package postgres loads the location directory from the platform database,
// for deployments that mirror the directory into Postgres.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	locations "gasmon/internal/locations/domain"
)

const defaultLocationTable = "sensor_locations"

// LocationRepository reads the directory from Postgres.
type LocationRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*LocationRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *LocationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewLocationRepository constructs a repository using the default table.
func NewLocationRepository(db *sql.DB, opts ...RepositoryOption) (*LocationRepository, error) {
	if db == nil {
		return nil, errors.New("locations postgres: nil db")
	}
	repo := &LocationRepository{db: db, table: defaultLocationTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

// Load reads all locations in their directory order.
func (r *LocationRepository) Load(ctx context.Context) (*locations.Directory, error) {
	query := fmt.Sprintf(`
SELECT id, x, y
FROM %s
ORDER BY position, id`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("locations postgres: query: %w", err)
	}
	defer rows.Close()

	var ordered []locations.Location
	for rows.Next() {
		var location locations.Location
		if err := rows.Scan(&location.ID, &location.X, &location.Y); err != nil {
			return nil, fmt.Errorf("locations postgres: scan: %w", err)
		}
		ordered = append(ordered, location)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("locations postgres: rows: %w", err)
	}
	return locations.NewDirectory(ordered)
}
