package services

import (
	"context"
	"errors"

	"github.com/padelhub/tournament-engine/models"
	"github.com/padelhub/tournament-engine/repositories"
	"golang.org/x/sync/errgroup"
)

// SubmissionSummary aggregates the ledger state of one match.
// AllVerified requires exactly the full set of four submissions, all
// flagged verified.
type SubmissionSummary struct {
	Team1Count     int  `json:"team1_count"`
	Team2Count     int  `json:"team2_count"`
	TotalCount     int  `json:"total_count"`
	RequiredCount  int  `json:"required_count"`
	HasDiscrepancy bool `json:"has_discrepancy"`
	AllVerified    bool `json:"all_verified"`
}

type SubmissionList struct {
	Submissions []*models.ResultSubmission `json:"submissions"`
	Summary     SubmissionSummary          `json:"summary"`
}

type MatchService interface {
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
	ListSubmissions(ctx context.Context, matchID int) (*SubmissionList, error)
	// GetBracket returns the tournament with its round plan and matches.
	GetBracket(ctx context.Context, tournamentID int) (*models.Tournament, error)
}

type matchService struct {
	matchRepo      repositories.MatchRepository
	subRepo        repositories.SubmissionRepository
	tournamentRepo repositories.TournamentRepository
	roundRepo      repositories.RoundRepository
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	subRepo repositories.SubmissionRepository,
	tournamentRepo repositories.TournamentRepository,
	roundRepo repositories.RoundRepository,
) MatchService {
	return &matchService{
		matchRepo:      matchRepo,
		subRepo:        subRepo,
		tournamentRepo: tournamentRepo,
		roundRepo:      roundRepo,
	}
}

func (s *matchService) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (s *matchService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		return []*models.Match{}, nil
	}
	return matches, nil
}

func (s *matchService) ListSubmissions(ctx context.Context, matchID int) (*SubmissionList, error) {
	if _, err := s.matchRepo.GetByID(ctx, matchID); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	subs, err := s.subRepo.ListByMatch(ctx, nil, matchID)
	if err != nil {
		return nil, err
	}

	summary := SubmissionSummary{
		TotalCount:    len(subs),
		RequiredCount: models.RequiredSubmissions,
	}
	allVerified := len(subs) == models.RequiredSubmissions
	for _, sub := range subs {
		if sub.SubmittedBy == models.SideTeam1 {
			summary.Team1Count++
		} else {
			summary.Team2Count++
		}
		if sub.HasDiscrepancy {
			summary.HasDiscrepancy = true
		}
		if !sub.Verified {
			allVerified = false
		}
	}
	summary.AllVerified = allVerified

	return &SubmissionList{Submissions: subs, Summary: summary}, nil
}

func (s *matchService) GetBracket(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rounds, err := s.roundRepo.ListByTournament(gCtx, tournamentID)
		if err != nil {
			return err
		}
		tournament.Rounds = make([]models.Round, len(rounds))
		for i, r := range rounds {
			tournament.Rounds[i] = *r
		}
		return nil
	})

	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gCtx, tournamentID)
		if err != nil {
			return err
		}
		tournament.Matches = make([]models.Match, len(matches))
		for i, m := range matches {
			tournament.Matches[i] = *m
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tournament, nil
}
