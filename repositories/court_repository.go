package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/padelhub/tournament-engine/models"
)

type CourtRepository interface {
	// ListActive returns active courts ordered by court number ascending,
	// so allocation across pairings is deterministic.
	ListActive(ctx context.Context) ([]*models.Court, error)
}

type postgresCourtRepository struct {
	db *sql.DB
}

func NewPostgresCourtRepository(db *sql.DB) CourtRepository {
	return &postgresCourtRepository{db: db}
}

func (r *postgresCourtRepository) ListActive(ctx context.Context) ([]*models.Court, error) {
	query := `
		SELECT id, name, number, active
		FROM courts
		WHERE active = TRUE
		ORDER BY number ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active courts: %w", err)
	}
	defer rows.Close()

	courts := make([]*models.Court, 0)
	for rows.Next() {
		var court models.Court
		if err := rows.Scan(&court.ID, &court.Name, &court.Number, &court.Active); err != nil {
			return nil, fmt.Errorf("failed to scan court row: %w", err)
		}
		courts = append(courts, &court)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during court rows iteration: %w", err)
	}
	return courts, nil
}
