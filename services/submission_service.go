package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/padelhub/tournament-engine/brackets"
	"github.com/padelhub/tournament-engine/models"
	"github.com/padelhub/tournament-engine/repositories"
)

// VerificationState is the consensus outcome reported to the caller.
type VerificationState string

const (
	VerificationPending  VerificationState = "pending"
	VerificationVerified VerificationState = "verified"
	VerificationDisputed VerificationState = "disputed"
)

const discrepancyNote = "discrepancy detected between submitted results"

// maxSetsPerMatch bounds the per-set arrays accepted from clients.
const maxSetsPerMatch = 5

type SubmitResultInput struct {
	SubmittedBy models.Side `json:"submitted_by"`
	Team1Sets   []int64     `json:"team1_sets"`
	Team2Sets   []int64     `json:"team2_sets"`
	Winner      models.Side `json:"winner"`

	// Requester provenance, advisory only.
	IPAddress *string `json:"-"`
	UserAgent *string `json:"-"`
}

// SubmissionOutcome reports, for every successful submission, the
// current per-side counts and whether this call settled the match.
type SubmissionOutcome struct {
	State          VerificationState        `json:"state"`
	Submission     *models.ResultSubmission `json:"submission"`
	Team1Count     int                      `json:"team1_count"`
	Team2Count     int                      `json:"team2_count"`
	RequiredCount  int                      `json:"required_count"`
	RemainingTeam1 int                      `json:"remaining_team1"`
	RemainingTeam2 int                      `json:"remaining_team2"`
	Winner         *string                  `json:"winner,omitempty"`

	Advancement        *AdvancementResult `json:"advancement,omitempty"`
	AdvancementWarning string             `json:"advancement_warning,omitempty"`
}

type SubmissionService interface {
	// Submit records one side's claimed outcome and synchronously runs
	// consensus verification once all four claims are in.
	Submit(ctx context.Context, matchID int, input SubmitResultInput) (*SubmissionOutcome, error)
}

type submissionService struct {
	db          *sql.DB
	matchRepo   repositories.MatchRepository
	subRepo     repositories.SubmissionRepository
	advancement AdvancementService
	hub         *brackets.Hub
	logger      *slog.Logger
}

func NewSubmissionService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	subRepo repositories.SubmissionRepository,
	advancement AdvancementService,
	hub *brackets.Hub,
	logger *slog.Logger,
) SubmissionService {
	return &submissionService{
		db:          db,
		matchRepo:   matchRepo,
		subRepo:     subRepo,
		advancement: advancement,
		hub:         hub,
		logger:      logger,
	}
}

func (s *submissionService) Submit(ctx context.Context, matchID int, input SubmitResultInput) (*SubmissionOutcome, error) {
	if err := validateSubmitInput(input); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin submission transaction: %w", err)
	}
	defer tx.Rollback()

	// Row lock serializes concurrent submissions for the same match, so
	// the cap check and the insert are atomic.
	match, err := s.matchRepo.GetByIDForUpdate(ctx, tx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if match.IsDecided() {
		return nil, ErrMatchAlreadyCompleted
	}

	sideCount, err := s.subRepo.CountBySide(ctx, tx, matchID, input.SubmittedBy)
	if err != nil {
		return nil, err
	}
	if sideCount >= models.SubmissionsPerSide {
		// Advisory signal: a stale client or protocol misuse attempt.
		s.logger.Warn("submission cap exceeded",
			slog.Int("match_id", matchID),
			slog.String("side", string(input.SubmittedBy)))
		return nil, ErrSubmissionLimitReached
	}

	submission := &models.ResultSubmission{
		MatchID:          matchID,
		SubmittedBy:      input.SubmittedBy,
		SubmissionNumber: sideCount + 1,
		Team1Sets:        input.Team1Sets,
		Team2Sets:        input.Team2Sets,
		Winner:           input.Winner,
		IPAddress:        input.IPAddress,
		UserAgent:        input.UserAgent,
	}
	if err := s.subRepo.Create(ctx, tx, submission); err != nil {
		if errors.Is(err, repositories.ErrSubmissionConflict) {
			return nil, ErrSubmissionLimitReached
		}
		return nil, err
	}

	all, err := s.subRepo.ListByMatch(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}

	outcome := &SubmissionOutcome{
		State:         VerificationPending,
		Submission:    submission,
		RequiredCount: models.RequiredSubmissions,
	}
	for _, sub := range all {
		if sub.SubmittedBy == models.SideTeam1 {
			outcome.Team1Count++
		} else {
			outcome.Team2Count++
		}
	}
	outcome.RemainingTeam1 = models.SubmissionsPerSide - outcome.Team1Count
	outcome.RemainingTeam2 = models.SubmissionsPerSide - outcome.Team2Count

	if outcome.Team1Count >= models.SubmissionsPerSide && outcome.Team2Count >= models.SubmissionsPerSide {
		if err := s.verify(ctx, tx, match, all, outcome); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit submission: %w", err)
	}

	s.afterCommit(ctx, match, outcome)
	return outcome, nil
}

// verify runs the consensus decision inside the ledger transaction that
// produced the fourth submission. The first submission from team1 is
// the reference; every submission must match it exactly.
func (s *submissionService) verify(ctx context.Context, tx *sql.Tx, match *models.Match, all []*models.ResultSubmission, outcome *SubmissionOutcome) error {
	var reference *models.ResultSubmission
	for _, sub := range all {
		if sub.SubmittedBy == models.SideTeam1 {
			reference = sub
			break
		}
	}
	if reference == nil {
		return fmt.Errorf("match %d reached %d submissions without any from team1", match.ID, len(all))
	}

	allMatch := true
	for _, sub := range all {
		if !reference.Matches(sub) {
			allMatch = false
			break
		}
	}

	if !allMatch {
		if err := s.matchRepo.FlagDiscrepancy(ctx, tx, match.ID, discrepancyNote); err != nil {
			return err
		}
		if err := s.subRepo.MarkAllDiscrepancy(ctx, tx, match.ID); err != nil {
			return err
		}
		outcome.State = VerificationDisputed
		return nil
	}

	winnerName := match.Team1.Name
	if reference.Winner == models.SideTeam2 {
		winnerName = match.Team2.Name
	}

	if err := s.matchRepo.UpdateResult(ctx, tx, match.ID, repositories.UpdateResultParams{
		Team1Score:       setScoresFromGames(reference.Team1Sets),
		Team2Score:       setScoresFromGames(reference.Team2Sets),
		WinnerName:       winnerName,
		ResultCapturedBy: "player",
	}); err != nil {
		return err
	}
	if err := s.subRepo.MarkAllVerified(ctx, tx, match.ID); err != nil {
		return err
	}

	outcome.State = VerificationVerified
	outcome.Winner = &winnerName
	return nil
}

// afterCommit runs post-verification side effects. Advancement runs
// outside the ledger transaction on purpose: its failure must never
// un-complete a verified match.
func (s *submissionService) afterCommit(ctx context.Context, match *models.Match, outcome *SubmissionOutcome) {
	room := strconv.Itoa(match.TournamentID)

	switch outcome.State {
	case VerificationDisputed:
		s.logger.Warn("match result disputed", slog.Int("match_id", match.ID))
		if s.hub != nil {
			s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
				Type:    brackets.EventMatchDisputed,
				Payload: map[string]interface{}{"match_id": match.ID},
				RoomID:  room,
			})
		}

	case VerificationVerified:
		s.logger.Info("match result verified",
			slog.Int("match_id", match.ID),
			slog.String("winner", *outcome.Winner))
		if s.hub != nil {
			s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
				Type:    brackets.EventMatchVerified,
				Payload: map[string]interface{}{"match_id": match.ID, "winner": *outcome.Winner},
				RoomID:  room,
			})
		}

		advancement, err := s.advancement.CheckAndAdvance(ctx, match.ID)
		if err != nil {
			// The match stays completed; advancement is re-triggerable.
			s.logger.Error("advancement failed after verification",
				slog.Int("match_id", match.ID), slog.Any("error", err))
			outcome.AdvancementWarning = err.Error()
			return
		}
		outcome.Advancement = advancement
	}
}

func validateSubmitInput(input SubmitResultInput) error {
	if !input.SubmittedBy.Valid() {
		return ErrInvalidSide
	}
	if !input.Winner.Valid() {
		return ErrInvalidWinner
	}
	if len(input.Team1Sets) == 0 || len(input.Team1Sets) != len(input.Team2Sets) {
		return fmt.Errorf("%w: team1_sets and team2_sets must be non-empty and the same length", ErrInvalidScoreData)
	}
	if len(input.Team1Sets) > maxSetsPerMatch {
		return fmt.Errorf("%w: at most %d sets", ErrInvalidScoreData, maxSetsPerMatch)
	}
	for i := range input.Team1Sets {
		if input.Team1Sets[i] < 0 || input.Team2Sets[i] < 0 {
			return fmt.Errorf("%w: games must not be negative", ErrInvalidScoreData)
		}
	}
	return nil
}

func setScoresFromGames(games []int64) []models.SetScore {
	scores := make([]models.SetScore, len(games))
	for i, g := range games {
		scores[i] = models.SetScore{Set: i + 1, Games: int(g)}
	}
	return scores
}
