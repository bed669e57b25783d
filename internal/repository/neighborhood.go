package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/ResQWave/internal/models"
	"github.com/lib/pq"
)

// PostgresNeighborhoodRepository reads and updates neighborhoods.
type PostgresNeighborhoodRepository struct {
	DB *sql.DB
}

// NewPostgresNeighborhoodRepository creates a new PostgresNeighborhoodRepository.
func NewPostgresNeighborhoodRepository(db *sql.DB) *PostgresNeighborhoodRepository {
	return &PostgresNeighborhoodRepository{DB: db}
}

const neighborhoodQuery = `
	SELECT n.id, n.focal_user_id, u.name, COALESCE(u.email, ''), COALESCE(u.phone, ''),
	       n.terminal_id, n.address, n.no_of_households, n.no_of_residents,
	       n.flood_subsidence, n.hazards, n.other_information,
	       n.alt_first_name, n.alt_last_name, n.alt_email, n.alt_number,
	       n.created_at, n.updated_at
	  FROM neighborhoods n
	  JOIN focal_users u ON u.id = n.focal_user_id
`

func scanNeighborhood(row interface{ Scan(...any) error }) (*models.NeighborhoodRecord, error) {
	var (
		n       models.NeighborhoodRecord
		address sql.NullString
	)
	err := row.Scan(
		&n.ID, &n.FocalUserID, &n.FocalName, &n.FocalEmail, &n.FocalPhone,
		&n.TerminalID, &address, &n.Households, &n.Residents,
		&n.FloodSubsidence, pq.Array(&n.Hazards), &n.OtherInformation,
		&n.AltFirstName, &n.AltLastName, &n.AltEmail, &n.AltNumber,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if address.Valid {
		n.Address = &address.String
	}
	return &n, nil
}

// Own returns the neighborhood managed by userID.
func (r *PostgresNeighborhoodRepository) Own(ctx context.Context, userID string) (*models.NeighborhoodRecord, error) {
	row := r.DB.QueryRowContext(ctx, neighborhoodQuery+` WHERE n.focal_user_id = $1 ORDER BY n.created_at LIMIT 1`, userID)
	n, err := scanNeighborhood(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("own neighborhood: %w", err)
	}
	return n, nil
}

// Others returns every neighborhood not managed by userID.
func (r *PostgresNeighborhoodRepository) Others(ctx context.Context, userID string) ([]models.NeighborhoodRecord, error) {
	rows, err := r.DB.QueryContext(ctx, neighborhoodQuery+` WHERE n.focal_user_id <> $1 ORDER BY n.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("other neighborhoods: %w", err)
	}
	defer rows.Close()

	var out []models.NeighborhoodRecord
	for rows.Next() {
		n, err := scanNeighborhood(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// Update saves the editable fields of neighborhood id if userID manages it.
func (r *PostgresNeighborhoodRepository) Update(ctx context.Context, userID string, u models.NeighborhoodUpdate) error {
	hazards := u.FloodRelatedHazards
	if hazards == nil {
		hazards = []string{}
	}
	other := strings.Join(u.NotableInfo, "; ")
	res, err := r.DB.ExecContext(ctx, `
		UPDATE neighborhoods
		   SET no_of_households = $3,
		       no_of_residents = $4,
		       flood_subsidence = $5,
		       hazards = $6,
		       other_information = $7,
		       updated_at = now()
		 WHERE id = $1 AND focal_user_id = $2
	`, u.NeighborhoodID, userID, u.ApproxHouseholds, u.ApproxResidents, u.FloodwaterSubsidence, pq.Array(hazards), other)
	if err != nil {
		return fmt.Errorf("update neighborhood: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
