package property

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"propflow/internal/common/database"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db database.Querier
}

// NewPostgresStore creates a new PostgreSQL store.
func NewPostgresStore(db database.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

const propertyColumns = `
	id, title, price_minor, currency, location, bedrooms, bathrooms,
	developer, htb_eligible, image, development_id, created_at, updated_at
`

// Get retrieves a property by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`

	p, err := scanProperty(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("property %s: %w", id, database.ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

// List lists properties, optionally restricted to one development.
func (s *PostgresStore) List(ctx context.Context, developmentID string, limit, offset int) ([]*Property, int64, error) {
	var total int64
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM properties WHERE ($1 = '' OR development_id = $1)`,
		developmentID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count properties: %w", err)
	}

	query := `SELECT ` + propertyColumns + `
		FROM properties
		WHERE ($1 = '' OR development_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.Query(ctx, query, developmentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var properties []*Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, 0, err
		}
		properties = append(properties, p)
	}
	return properties, total, rows.Err()
}

func scanProperty(row pgx.Row) (*Property, error) {
	var p Property
	var image, developmentID *string

	err := row.Scan(
		&p.ID, &p.Title, &p.Price.AmountMinor, &p.Price.Currency, &p.Location, &p.Bedrooms, &p.Bathrooms,
		&p.Developer, &p.HTBEligible, &image, &developmentID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if image != nil {
		p.Image = *image
	}
	if developmentID != nil {
		p.DevelopmentID = *developmentID
	}
	return &p, nil
}
