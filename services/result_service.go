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

type RecordResultInput struct {
	Team1Score      []models.SetScore `json:"team1_score"`
	Team2Score      []models.SetScore `json:"team2_score"`
	DurationMinutes *int              `json:"duration_minutes,omitempty"`
	Notes           *string           `json:"notes,omitempty"`
	ForceUpdate     bool              `json:"force_update,omitempty"`
	CapturedBy      string            `json:"captured_by,omitempty"`
}

// RecordOutcome carries the updated match plus whatever the triggered
// advancement check reported.
type RecordOutcome struct {
	Match              *models.Match      `json:"match"`
	Advancement        *AdvancementResult `json:"advancement,omitempty"`
	AdvancementWarning string             `json:"advancement_warning,omitempty"`
}

// ResultService is the trusted operator path: it computes the winner
// directly from set scores and bypasses the submission ledger.
type ResultService interface {
	RecordResult(ctx context.Context, matchID int, input RecordResultInput) (*RecordOutcome, error)
}

type resultService struct {
	db             *sql.DB
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	advancement    AdvancementService
	hub            *brackets.Hub
	logger         *slog.Logger
}

func NewResultService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	advancement AdvancementService,
	hub *brackets.Hub,
	logger *slog.Logger,
) ResultService {
	return &resultService{
		db:             db,
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		advancement:    advancement,
		hub:            hub,
		logger:         logger,
	}
}

func (s *resultService) RecordResult(ctx context.Context, matchID int, input RecordResultInput) (*RecordOutcome, error) {
	if err := validateRecordInput(input); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin result transaction: %w", err)
	}
	defer tx.Rollback()

	// Row lock keeps the completed guard and the write atomic, same as
	// the submission path.
	match, err := s.matchRepo.GetByIDForUpdate(ctx, tx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	if match.Status == models.MatchStatusCompleted && !input.ForceUpdate {
		return nil, ErrMatchAlreadyCompleted
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, tx, match.TournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	team1Score := normalizeSetNumbers(input.Team1Score)
	team2Score := normalizeSetNumbers(input.Team2Score)

	winnerSide := DetermineWinnerSide(team1Score, team2Score, tournament.SetsToWin())
	if winnerSide == "" {
		return nil, ErrResultIncomplete
	}

	winnerName := match.Team1.Name
	if winnerSide == models.SideTeam2 {
		winnerName = match.Team2.Name
	}

	capturedBy := input.CapturedBy
	if capturedBy == "" {
		capturedBy = "admin"
	}

	if err := s.matchRepo.UpdateResult(ctx, tx, matchID, repositories.UpdateResultParams{
		Team1Score:       team1Score,
		Team2Score:       team2Score,
		TiebreakScores:   collectTiebreaks(team1Score, team2Score),
		WinnerName:       winnerName,
		DurationMinutes:  input.DurationMinutes,
		ResultCapturedBy: capturedBy,
		DisputeNotes:     input.Notes,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit result: %w", err)
	}

	updated, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("authoritative result recorded",
		slog.Int("match_id", matchID),
		slog.String("winner", winnerName),
		slog.String("captured_by", capturedBy))

	if s.hub != nil {
		room := strconv.Itoa(match.TournamentID)
		s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
			Type:    brackets.EventMatchVerified,
			Payload: map[string]interface{}{"match_id": matchID, "winner": winnerName},
			RoomID:  room,
		})
	}

	outcome := &RecordOutcome{Match: updated}

	advancement, err := s.advancement.CheckAndAdvance(ctx, matchID)
	if err != nil {
		// Completion stands; advancement can be re-triggered.
		s.logger.Error("advancement failed after authoritative result",
			slog.Int("match_id", matchID), slog.Any("error", err))
		outcome.AdvancementWarning = err.Error()
		return outcome, nil
	}
	outcome.Advancement = advancement
	return outcome, nil
}

// DetermineWinnerSide tallies set wins per side and returns the side
// that reached the sets-to-win threshold, or "" when neither did. A
// tiebreak set is won on tiebreak points; a normal set on games; equal
// scores count for neither side.
func DetermineWinnerSide(team1, team2 []models.SetScore, setsToWin int) models.Side {
	team1Sets, team2Sets := 0, 0
	for i := range team1 {
		s1, s2 := team1[i], team2[i]
		if s1.Tiebreak || s2.Tiebreak {
			t1 := tiebreakPoints(s1)
			t2 := tiebreakPoints(s2)
			if t1 > t2 {
				team1Sets++
			} else if t2 > t1 {
				team2Sets++
			}
			continue
		}
		if s1.Games > s2.Games {
			team1Sets++
		} else if s2.Games > s1.Games {
			team2Sets++
		}
	}

	if team1Sets >= setsToWin {
		return models.SideTeam1
	}
	if team2Sets >= setsToWin {
		return models.SideTeam2
	}
	return ""
}

func tiebreakPoints(s models.SetScore) int {
	if s.TiebreakScore == nil {
		return 0
	}
	return *s.TiebreakScore
}

func collectTiebreaks(team1, team2 []models.SetScore) []models.TiebreakDetail {
	var details []models.TiebreakDetail
	for i := range team1 {
		if !team1[i].Tiebreak && !team2[i].Tiebreak {
			continue
		}
		details = append(details, models.TiebreakDetail{
			Set:   team1[i].Set,
			Team1: tiebreakPoints(team1[i]),
			Team2: tiebreakPoints(team2[i]),
		})
	}
	return details
}

func validateRecordInput(input RecordResultInput) error {
	if len(input.Team1Score) == 0 || len(input.Team1Score) != len(input.Team2Score) {
		return fmt.Errorf("%w: team1_score and team2_score must be non-empty and the same length", ErrInvalidScoreData)
	}
	if len(input.Team1Score) > maxSetsPerMatch {
		return fmt.Errorf("%w: at most %d sets", ErrInvalidScoreData, maxSetsPerMatch)
	}
	for i := range input.Team1Score {
		if input.Team1Score[i].Games < 0 || input.Team2Score[i].Games < 0 {
			return fmt.Errorf("%w: games must not be negative", ErrInvalidScoreData)
		}
	}
	if input.DurationMinutes != nil && *input.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidScoreData)
	}
	return nil
}

func normalizeSetNumbers(scores []models.SetScore) []models.SetScore {
	out := make([]models.SetScore, len(scores))
	copy(out, scores)
	for i := range out {
		if out[i].Set == 0 {
			out[i].Set = i + 1
		}
	}
	return out
}
