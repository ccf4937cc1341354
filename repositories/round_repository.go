package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/padelhub/tournament-engine/models"
)

var ErrRoundNotFound = errors.New("round not found")

type RoundRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Round, error)
	// GetByPosition returns the round at the given 1-based position of a
	// tournament's round plan, or ErrRoundNotFound when the plan has no
	// such stage.
	GetByPosition(ctx context.Context, exec SQLExecutor, tournamentID, position int) (*models.Round, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Round, error)
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

const roundColumns = `id, tournament_id, position, name`

func (r *postgresRoundRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Round, error) {
	if exec == nil {
		exec = r.db
	}
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1`
	return r.scanRound(exec.QueryRowContext(ctx, query, id), fmt.Sprintf("round %d", id))
}

func (r *postgresRoundRepository) GetByPosition(ctx context.Context, exec SQLExecutor, tournamentID, position int) (*models.Round, error) {
	if exec == nil {
		exec = r.db
	}
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE tournament_id = $1 AND position = $2`
	return r.scanRound(
		exec.QueryRowContext(ctx, query, tournamentID, position),
		fmt.Sprintf("round at position %d of tournament %d", position, tournamentID),
	)
}

func (r *postgresRoundRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE tournament_id = $1 ORDER BY position ASC`
	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	rounds := make([]*models.Round, 0)
	for rows.Next() {
		var round models.Round
		if err := rows.Scan(&round.ID, &round.TournamentID, &round.Position, &round.Name); err != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", err)
		}
		rounds = append(rounds, &round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during round rows iteration: %w", err)
	}
	return rounds, nil
}

func (r *postgresRoundRepository) scanRound(row *sql.Row, desc string) (*models.Round, error) {
	round := &models.Round{}
	err := row.Scan(&round.ID, &round.TournamentID, &round.Position, &round.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to scan %s: %w", desc, err)
	}
	return round, nil
}
