package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/padelhub/tournament-engine/models"
)

var (
	ErrSubmissionMatchInvalid = errors.New("submission match conflict or invalid")
	// ErrSubmissionConflict fires on the UNIQUE (match_id, submitted_by,
	// submission_number) constraint, the backstop against two concurrent
	// submissions from the same side both observing the same count.
	ErrSubmissionConflict = errors.New("submission sequence number already taken")
)

type SubmissionRepository interface {
	Create(ctx context.Context, exec SQLExecutor, sub *models.ResultSubmission) error
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.ResultSubmission, error)
	CountBySide(ctx context.Context, exec SQLExecutor, matchID int, side models.Side) (int, error)
	MarkAllVerified(ctx context.Context, exec SQLExecutor, matchID int) error
	MarkAllDiscrepancy(ctx context.Context, exec SQLExecutor, matchID int) error
}

type postgresSubmissionRepository struct {
	db *sql.DB
}

func NewPostgresSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &postgresSubmissionRepository{db: db}
}

const submissionColumns = `
	id, match_id, submitted_by, submission_number,
	team1_sets, team2_sets, winner,
	verified, has_discrepancy, ip_address, user_agent, submitted_at`

func (r *postgresSubmissionRepository) Create(ctx context.Context, exec SQLExecutor, sub *models.ResultSubmission) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO result_submissions
			(match_id, submitted_by, submission_number, team1_sets, team2_sets, winner, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, submitted_at`

	err := exec.QueryRowContext(ctx, query,
		sub.MatchID,
		sub.SubmittedBy,
		sub.SubmissionNumber,
		pq.Array(sub.Team1Sets),
		pq.Array(sub.Team2Sets),
		sub.Winner,
		sub.IPAddress,
		sub.UserAgent,
	).Scan(&sub.ID, &sub.SubmittedAt)

	return r.handleSubmissionError(err)
}

func (r *postgresSubmissionRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.ResultSubmission, error) {
	if exec == nil {
		exec = r.db
	}
	query := `SELECT ` + submissionColumns + ` FROM result_submissions WHERE match_id = $1 ORDER BY submitted_at ASC, id ASC`

	rows, err := exec.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions for match %d: %w", matchID, err)
	}
	defer rows.Close()

	subs := make([]*models.ResultSubmission, 0)
	for rows.Next() {
		var sub models.ResultSubmission
		if err := rows.Scan(
			&sub.ID,
			&sub.MatchID,
			&sub.SubmittedBy,
			&sub.SubmissionNumber,
			pq.Array(&sub.Team1Sets),
			pq.Array(&sub.Team2Sets),
			&sub.Winner,
			&sub.Verified,
			&sub.HasDiscrepancy,
			&sub.IPAddress,
			&sub.UserAgent,
			&sub.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during submission rows iteration: %w", err)
	}
	return subs, nil
}

func (r *postgresSubmissionRepository) CountBySide(ctx context.Context, exec SQLExecutor, matchID int, side models.Side) (int, error) {
	if exec == nil {
		exec = r.db
	}
	query := `SELECT COUNT(*) FROM result_submissions WHERE match_id = $1 AND submitted_by = $2`

	var count int
	if err := exec.QueryRowContext(ctx, query, matchID, side).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count submissions for match %d side %s: %w", matchID, side, err)
	}
	return count, nil
}

func (r *postgresSubmissionRepository) MarkAllVerified(ctx context.Context, exec SQLExecutor, matchID int) error {
	if exec == nil {
		exec = r.db
	}
	query := `UPDATE result_submissions SET verified = TRUE WHERE match_id = $1`
	if _, err := exec.ExecContext(ctx, query, matchID); err != nil {
		return fmt.Errorf("failed to mark submissions verified for match %d: %w", matchID, err)
	}
	return nil
}

func (r *postgresSubmissionRepository) MarkAllDiscrepancy(ctx context.Context, exec SQLExecutor, matchID int) error {
	if exec == nil {
		exec = r.db
	}
	query := `UPDATE result_submissions SET has_discrepancy = TRUE WHERE match_id = $1`
	if _, err := exec.ExecContext(ctx, query, matchID); err != nil {
		return fmt.Errorf("failed to mark submissions with discrepancy for match %d: %w", matchID, err)
	}
	return nil
}

func (r *postgresSubmissionRepository) handleSubmissionError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "result_submissions_match_id_fkey":
			return ErrSubmissionMatchInvalid
		case "result_submissions_match_id_submitted_by_submission_number_key":
			return ErrSubmissionConflict
		}
	}
	return err
}
