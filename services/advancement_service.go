package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/padelhub/tournament-engine/brackets"
	"github.com/padelhub/tournament-engine/models"
	"github.com/padelhub/tournament-engine/repositories"
	"github.com/padelhub/tournament-engine/storage"
)

// AdvancementStatus classifies the outcome of an advancement check.
// Unsupported formats and missing next rounds are legitimate outcomes,
// not errors: the caller's match stays completed either way.
type AdvancementStatus string

const (
	AdvancementRoundInProgress     AdvancementStatus = "round_in_progress"
	AdvancementNextRoundCreated    AdvancementStatus = "next_round_created"
	AdvancementAlreadyAdvanced     AdvancementStatus = "already_advanced"
	AdvancementTournamentCompleted AdvancementStatus = "tournament_completed"
	AdvancementNoNextRound         AdvancementStatus = "no_next_round"
	AdvancementFormatUnsupported   AdvancementStatus = "format_unsupported"
)

type AdvancementResult struct {
	Status        AdvancementStatus `json:"status"`
	Message       string            `json:"message"`
	AdvancedTeams []string          `json:"advanced_teams,omitempty"`
	Champion      *string           `json:"champion,omitempty"`
}

type AdvancementService interface {
	// CheckAndAdvance re-evaluates the round containing the given match
	// after a completion. Safe to invoke redundantly: a round that is
	// still in progress or already advanced is a no-op.
	CheckAndAdvance(ctx context.Context, matchID int) (*AdvancementResult, error)
}

type advancementService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	roundRepo      repositories.RoundRepository
	matchRepo      repositories.MatchRepository
	courtRepo      repositories.CourtRepository
	uploader       storage.FileUploader
	hub            *brackets.Hub
	logger         *slog.Logger
}

func NewAdvancementService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	courtRepo repositories.CourtRepository,
	uploader storage.FileUploader,
	hub *brackets.Hub,
	logger *slog.Logger,
) AdvancementService {
	return &advancementService{
		db:             db,
		tournamentRepo: tournamentRepo,
		roundRepo:      roundRepo,
		matchRepo:      matchRepo,
		courtRepo:      courtRepo,
		uploader:       uploader,
		hub:            hub,
		logger:         logger,
	}
}

func (s *advancementService) CheckAndAdvance(ctx context.Context, matchID int) (*AdvancementResult, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if !match.IsDecided() {
		return &AdvancementResult{
			Status:  AdvancementRoundInProgress,
			Message: "match not ready for advancement check",
		}, nil
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, nil, match.TournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	switch tournament.Format {
	case models.FormatSingleElimination:
		return s.advanceSingleElimination(ctx, tournament, match.RoundID)
	case models.FormatRoundRobin:
		return s.checkRoundRobinCompletion(ctx, tournament)
	case models.FormatDoubleElimination:
		// Intentional stub: losers-bracket propagation requires manual
		// intervention.
		return &AdvancementResult{
			Status:  AdvancementFormatUnsupported,
			Message: "double elimination advancement requires manual intervention",
		}, nil
	default:
		// Unknown format strings are rejected by the schema; reaching this
		// is a data bug, not a legitimate outcome.
		return nil, fmt.Errorf("%w: %s", ErrFormatNotSupported, tournament.Format)
	}
}

func (s *advancementService) advanceSingleElimination(ctx context.Context, tournament *models.Tournament, roundID int) (*AdvancementResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin advancement transaction: %w", err)
	}
	defer tx.Rollback()

	// Serialize advancement per (tournament, round). A concurrent
	// completion in the same round blocks here and then sees either an
	// unfinished round or the already-created next round.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, tournament.ID, roundID); err != nil {
		return nil, fmt.Errorf("failed to take advancement lock for tournament %d round %d: %w", tournament.ID, roundID, err)
	}

	roundMatches, err := s.matchRepo.ListByRound(ctx, tx, roundID)
	if err != nil {
		return nil, err
	}
	if len(roundMatches) == 0 {
		return &AdvancementResult{
			Status:  AdvancementRoundInProgress,
			Message: "no matches found for this round",
		}, nil
	}

	decided := 0
	for _, m := range roundMatches {
		if m.IsDecided() {
			decided++
		}
	}
	if decided != len(roundMatches) {
		return &AdvancementResult{
			Status:  AdvancementRoundInProgress,
			Message: fmt.Sprintf("round still in progress (%d/%d matches completed)", decided, len(roundMatches)),
		}, nil
	}

	winners := collectWinners(roundMatches)
	if len(winners) == 0 {
		return nil, fmt.Errorf("round %d has %d completed matches but no winners", roundID, len(roundMatches))
	}

	if len(winners) == 1 {
		if err := s.tournamentRepo.UpdateStatus(ctx, tx, tournament.ID, models.TournamentStatusCompleted); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit tournament completion: %w", err)
		}

		champion := winners[0].Name
		s.logger.Info("tournament completed",
			slog.Int("tournament_id", tournament.ID),
			slog.String("champion", champion))
		s.afterTournamentCompleted(ctx, tournament, &champion)

		return &AdvancementResult{
			Status:        AdvancementTournamentCompleted,
			Message:       fmt.Sprintf("tournament completed, winner: %s", champion),
			AdvancedTeams: []string{champion},
			Champion:      &champion,
		}, nil
	}

	currentRound, err := s.roundRepo.GetByID(ctx, tx, roundID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}

	nextRound, err := s.roundRepo.GetByPosition(ctx, tx, tournament.ID, currentRound.Position+1)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			// The round plan ends here; nothing further to advance
			// automatically.
			return &AdvancementResult{
				Status:  AdvancementNoNextRound,
				Message: fmt.Sprintf("no round planned after %q, no further automatic advancement", currentRound.Name),
			}, nil
		}
		return nil, err
	}

	existing, err := s.matchRepo.ListByRound(ctx, tx, nextRound.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &AdvancementResult{
			Status:  AdvancementAlreadyAdvanced,
			Message: fmt.Sprintf("round %q already has %d matches", nextRound.Name, len(existing)),
		}, nil
	}

	courts, err := s.courtRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(courts) == 0 {
		return nil, ErrNoCourtsAvailable
	}

	now := time.Now()
	pairings := brackets.PairWinners(winners)
	for i, pairing := range pairings {
		court := brackets.AssignCourt(courts, i)
		start, end := brackets.Slot(now, i)

		match := &models.Match{
			TournamentID: tournament.ID,
			RoundID:      nextRound.ID,
			MatchNumber:  pairing.MatchNumber,
			Team1:        models.TeamSlot{Name: pairing.Team1.Name, Player1: pairing.Team1.Player1, Player2: pairing.Team1.Player2},
			Team2:        models.TeamSlot{Name: pairing.Team2.Name, Player1: pairing.Team2.Player1, Player2: pairing.Team2.Player2},
			CourtID:      &court.ID,
			ScheduledAt:  &start,
			EndTime:      &end,
			Status:       models.MatchStatusScheduled,
		}
		if pairing.Bye {
			// Administrative walkover: the real team advances without
			// playing.
			winnerName := pairing.Team1.Name
			completedAt := now
			match.Status = models.MatchStatusCompleted
			match.WinnerName = &winnerName
			match.ResultsConfirmed = true
			match.CompletedAt = &completedAt
		}

		if err := s.matchRepo.Create(ctx, tx, match); err != nil {
			// All-or-nothing: the rollback discards any matches created so
			// far for this round.
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit next round creation: %w", err)
	}

	advanced := make([]string, len(winners))
	for i, w := range winners {
		advanced[i] = w.Name
	}

	s.logger.Info("round advanced",
		slog.Int("tournament_id", tournament.ID),
		slog.String("next_round", nextRound.Name),
		slog.Int("matches_created", len(pairings)))
	s.broadcast(tournament.ID, brackets.EventRoundAdvanced, map[string]interface{}{
		"tournament_id": tournament.ID,
		"round":         nextRound.Name,
		"advanced":      advanced,
	})

	return &AdvancementResult{
		Status:        AdvancementNextRoundCreated,
		Message:       fmt.Sprintf("advanced to %s with %d teams", nextRound.Name, len(winners)),
		AdvancedTeams: advanced,
	}, nil
}

func (s *advancementService) checkRoundRobinCompletion(ctx context.Context, tournament *models.Tournament) (*AdvancementResult, error) {
	total, decided, err := s.matchRepo.CountByTournament(ctx, nil, tournament.ID)
	if err != nil {
		return nil, err
	}

	if total == 0 || decided != total {
		return &AdvancementResult{
			Status:  AdvancementRoundInProgress,
			Message: fmt.Sprintf("round robin in progress (%d/%d matches completed)", decided, total),
		}, nil
	}

	if err := s.tournamentRepo.UpdateStatus(ctx, nil, tournament.ID, models.TournamentStatusCompleted); err != nil {
		return nil, err
	}

	s.logger.Info("round robin tournament completed", slog.Int("tournament_id", tournament.ID))
	s.afterTournamentCompleted(ctx, tournament, nil)

	return &AdvancementResult{
		Status:  AdvancementTournamentCompleted,
		Message: "round robin tournament completed",
	}, nil
}

// collectWinners gathers decided-match winners in match-number order,
// skipping BYE slots so a walkover contributes its real team once.
func collectWinners(matches []*models.Match) []brackets.TeamRef {
	winners := make([]brackets.TeamRef, 0, len(matches))
	for _, m := range matches {
		slot := m.WinnerSlot()
		if slot == nil || slot.IsBye() {
			continue
		}
		winners = append(winners, brackets.TeamRef{
			Name:    slot.Name,
			Player1: slot.Player1,
			Player2: slot.Player2,
		})
	}
	return winners
}

// afterTournamentCompleted runs the best-effort side effects of
// completion: archive the final bracket to object storage and notify
// websocket subscribers. Failures are logged, never propagated.
func (s *advancementService) afterTournamentCompleted(ctx context.Context, tournament *models.Tournament, champion *string) {
	s.broadcast(tournament.ID, brackets.EventTournamentCompleted, map[string]interface{}{
		"tournament_id": tournament.ID,
		"champion":      champion,
	})

	if s.uploader == nil {
		return
	}

	matches, err := s.matchRepo.ListByTournament(ctx, tournament.ID)
	if err != nil {
		s.logger.Error("failed to load matches for bracket archive",
			slog.Int("tournament_id", tournament.ID), slog.Any("error", err))
		return
	}
	rounds, err := s.roundRepo.ListByTournament(ctx, tournament.ID)
	if err != nil {
		s.logger.Error("failed to load rounds for bracket archive",
			slog.Int("tournament_id", tournament.ID), slog.Any("error", err))
		return
	}

	archive := map[string]interface{}{
		"tournament": tournament,
		"rounds":     rounds,
		"matches":    matches,
		"champion":   champion,
		"archived":   time.Now().UTC(),
	}
	payload, err := json.Marshal(archive)
	if err != nil {
		s.logger.Error("failed to marshal bracket archive",
			slog.Int("tournament_id", tournament.ID), slog.Any("error", err))
		return
	}

	key := "tournaments/" + strconv.Itoa(tournament.ID) + "/bracket.json"
	result, err := s.uploader.Upload(ctx, key, "application/json", bytes.NewReader(payload))
	if err != nil {
		s.logger.Error("failed to archive bracket",
			slog.Int("tournament_id", tournament.ID), slog.Any("error", err))
		return
	}
	s.logger.Info("bracket archived",
		slog.Int("tournament_id", tournament.ID), slog.String("location", result.Location))
}

func (s *advancementService) broadcast(tournamentID int, eventType string, payload interface{}) {
	if s.hub == nil {
		return
	}
	room := strconv.Itoa(tournamentID)
	s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
		Type:    eventType,
		Payload: payload,
		RoomID:  room,
	})
}
