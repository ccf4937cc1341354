package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/padelhub/tournament-engine/models"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
	ErrMatchRoundInvalid      = errors.New("match round conflict or invalid")
	ErrMatchCourtInvalid      = errors.New("match court conflict or invalid")
	// ErrMatchNumberConflict fires on the UNIQUE (tournament_id, round_id,
	// match_number) constraint. It is the backstop against two concurrent
	// advancement attempts creating the same next-round match.
	ErrMatchNumberConflict = errors.New("match number already taken for this round")
)

// UpdateResultParams carries everything a completed result writes to a
// match row in one statement.
type UpdateResultParams struct {
	Team1Score       []models.SetScore
	Team2Score       []models.SetScore
	TiebreakScores   []models.TiebreakDetail
	WinnerName       string
	DurationMinutes  *int
	ResultCapturedBy string
	DisputeNotes     *string
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	// GetByIDForUpdate locks the match row for the duration of the
	// enclosing transaction. Serializes concurrent submissions per match.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
	// CountByTournament reports total and decided (completed and
	// confirmed) match counts for round-robin completion detection.
	CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (total int, decided int, err error)
	UpdateResult(ctx context.Context, exec SQLExecutor, id int, params UpdateResultParams) error
	FlagDiscrepancy(ctx context.Context, exec SQLExecutor, id int, notes string) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `
	id, tournament_id, round_id, match_number,
	team1_name, team1_player1, team1_player2,
	team2_name, team2_player1, team2_player2,
	court_id, scheduled_at, end_time,
	team1_score, team2_score, tiebreak_scores,
	winner_name, duration_minutes,
	status, results_confirmed, has_discrepancy, dispute_raised,
	dispute_notes, result_captured_by, completed_at, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO matches
			(tournament_id, round_id, match_number,
			 team1_name, team1_player1, team1_player2,
			 team2_name, team2_player1, team2_player2,
			 court_id, scheduled_at, end_time,
			 winner_name, status, results_confirmed, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		match.TournamentID,
		match.RoundID,
		match.MatchNumber,
		match.Team1.Name,
		match.Team1.Player1,
		match.Team1.Player2,
		match.Team2.Name,
		match.Team2.Player1,
		match.Team2.Player2,
		match.CourtID,
		match.ScheduledAt,
		match.EndTime,
		match.WinnerName,
		match.Status,
		match.ResultsConfirmed,
		match.CompletedAt,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return r.scanMatchRow(r.db.QueryRowContext(ctx, query, id), id)
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	if exec == nil {
		exec = r.db
	}
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	return r.scanMatchRow(exec.QueryRowContext(ctx, query, id), id)
}

func (r *postgresMatchRepository) ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]*models.Match, error) {
	if exec == nil {
		exec = r.db
	}
	query := `SELECT ` + matchColumns + ` FROM matches WHERE round_id = $1 ORDER BY match_number ASC`
	rows, err := exec.QueryContext(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for round %d: %w", roundID, err)
	}
	return r.collectMatches(rows)
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1 ORDER BY round_id ASC, match_number ASC`
	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	return r.collectMatches(rows)
}

func (r *postgresMatchRepository) CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, int, error) {
	if exec == nil {
		exec = r.db
	}
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed' AND results_confirmed)
		FROM matches
		WHERE tournament_id = $1`

	var total, decided int
	if err := exec.QueryRowContext(ctx, query, tournamentID).Scan(&total, &decided); err != nil {
		return 0, 0, fmt.Errorf("failed to count matches for tournament %d: %w", tournamentID, err)
	}
	return total, decided, nil
}

func (r *postgresMatchRepository) UpdateResult(ctx context.Context, exec SQLExecutor, id int, params UpdateResultParams) error {
	if exec == nil {
		exec = r.db
	}

	team1Score, err := json.Marshal(params.Team1Score)
	if err != nil {
		return fmt.Errorf("failed to marshal team1 score: %w", err)
	}
	team2Score, err := json.Marshal(params.Team2Score)
	if err != nil {
		return fmt.Errorf("failed to marshal team2 score: %w", err)
	}
	var tiebreaks []byte
	if len(params.TiebreakScores) > 0 {
		if tiebreaks, err = json.Marshal(params.TiebreakScores); err != nil {
			return fmt.Errorf("failed to marshal tiebreak scores: %w", err)
		}
	}

	query := `
		UPDATE matches
		SET team1_score = $1,
		    team2_score = $2,
		    tiebreak_scores = $3,
		    winner_name = $4,
		    duration_minutes = $5,
		    status = 'completed',
		    results_confirmed = TRUE,
		    has_discrepancy = FALSE,
		    dispute_raised = FALSE,
		    dispute_notes = $6,
		    result_captured_by = $7,
		    completed_at = NOW()
		WHERE id = $8`

	result, err := exec.ExecContext(ctx, query,
		team1Score,
		team2Score,
		tiebreaks,
		params.WinnerName,
		params.DurationMinutes,
		params.DisputeNotes,
		params.ResultCapturedBy,
		id,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) FlagDiscrepancy(ctx context.Context, exec SQLExecutor, id int, notes string) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		UPDATE matches
		SET has_discrepancy = TRUE,
		    results_confirmed = FALSE,
		    dispute_raised = TRUE,
		    dispute_notes = $1
		WHERE id = $2`

	result, err := exec.ExecContext(ctx, query, notes, id)
	if err != nil {
		return fmt.Errorf("failed to flag discrepancy on match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *postgresMatchRepository) scanMatch(scanner rowScanner) (*models.Match, error) {
	match := &models.Match{}
	var team1Score, team2Score, tiebreakScores []byte

	err := scanner.Scan(
		&match.ID,
		&match.TournamentID,
		&match.RoundID,
		&match.MatchNumber,
		&match.Team1.Name,
		&match.Team1.Player1,
		&match.Team1.Player2,
		&match.Team2.Name,
		&match.Team2.Player1,
		&match.Team2.Player2,
		&match.CourtID,
		&match.ScheduledAt,
		&match.EndTime,
		&team1Score,
		&team2Score,
		&tiebreakScores,
		&match.WinnerName,
		&match.DurationMinutes,
		&match.Status,
		&match.ResultsConfirmed,
		&match.HasDiscrepancy,
		&match.DisputeRaised,
		&match.DisputeNotes,
		&match.ResultCapturedBy,
		&match.CompletedAt,
		&match.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(team1Score) > 0 {
		if err := json.Unmarshal(team1Score, &match.Team1Score); err != nil {
			return nil, fmt.Errorf("failed to unmarshal team1 score for match %d: %w", match.ID, err)
		}
	}
	if len(team2Score) > 0 {
		if err := json.Unmarshal(team2Score, &match.Team2Score); err != nil {
			return nil, fmt.Errorf("failed to unmarshal team2 score for match %d: %w", match.ID, err)
		}
	}
	if len(tiebreakScores) > 0 {
		if err := json.Unmarshal(tiebreakScores, &match.TiebreakScores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tiebreak scores for match %d: %w", match.ID, err)
		}
	}
	return match, nil
}

func (r *postgresMatchRepository) scanMatchRow(row *sql.Row, id int) (*models.Match, error) {
	match, err := r.scanMatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) collectMatches(rows *sql.Rows) ([]*models.Match, error) {
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, err := r.scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		case "matches_round_id_fkey":
			return ErrMatchRoundInvalid
		case "matches_court_id_fkey":
			return ErrMatchCourtInvalid
		case "matches_tournament_id_round_id_match_number_key":
			return ErrMatchNumberConflict
		}
	}
	return err
}
