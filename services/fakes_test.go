package services

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/padelhub/tournament-engine/models"
	"github.com/padelhub/tournament-engine/repositories"
	"github.com/padelhub/tournament-engine/storage"
)

// In-memory repository fakes. They ignore the SQLExecutor argument, so
// services can be exercised against a sqlmock-backed transaction
// without scripting every statement.

type fakeMatchRepo struct {
	matches map[int]*models.Match
	nextID  int
}

func newFakeMatchRepo(matches ...*models.Match) *fakeMatchRepo {
	r := &fakeMatchRepo{matches: make(map[int]*models.Match), nextID: 1}
	for _, m := range matches {
		if m.ID >= r.nextID {
			r.nextID = m.ID + 1
		}
		r.matches[m.ID] = m
	}
	return r
}

func (r *fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	for _, existing := range r.matches {
		if existing.TournamentID == match.TournamentID &&
			existing.RoundID == match.RoundID &&
			existing.MatchNumber == match.MatchNumber {
			return repositories.ErrMatchNumberConflict
		}
	}
	match.ID = r.nextID
	r.nextID++
	match.CreatedAt = time.Now()
	r.matches[match.ID] = match
	return nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, id int) (*models.Match, error) {
	match, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return match, nil
}

func (r *fakeMatchRepo) GetByIDForUpdate(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeMatchRepo) ListByRound(_ context.Context, _ repositories.SQLExecutor, roundID int) ([]*models.Match, error) {
	matches := make([]*models.Match, 0)
	for _, m := range r.matches {
		if m.RoundID == roundID {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].MatchNumber < matches[j].MatchNumber })
	return matches, nil
}

func (r *fakeMatchRepo) ListByTournament(_ context.Context, tournamentID int) ([]*models.Match, error) {
	matches := make([]*models.Match, 0)
	for _, m := range r.matches {
		if m.TournamentID == tournamentID {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].RoundID != matches[j].RoundID {
			return matches[i].RoundID < matches[j].RoundID
		}
		return matches[i].MatchNumber < matches[j].MatchNumber
	})
	return matches, nil
}

func (r *fakeMatchRepo) CountByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int, int, error) {
	total, decided := 0, 0
	for _, m := range r.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		total++
		if m.IsDecided() {
			decided++
		}
	}
	return total, decided, nil
}

func (r *fakeMatchRepo) UpdateResult(_ context.Context, _ repositories.SQLExecutor, id int, params repositories.UpdateResultParams) error {
	match, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	now := time.Now()
	winner := params.WinnerName
	capturedBy := params.ResultCapturedBy
	match.Team1Score = params.Team1Score
	match.Team2Score = params.Team2Score
	match.TiebreakScores = params.TiebreakScores
	match.WinnerName = &winner
	match.DurationMinutes = params.DurationMinutes
	match.Status = models.MatchStatusCompleted
	match.ResultsConfirmed = true
	match.HasDiscrepancy = false
	match.DisputeRaised = false
	match.DisputeNotes = params.DisputeNotes
	match.ResultCapturedBy = &capturedBy
	match.CompletedAt = &now
	return nil
}

func (r *fakeMatchRepo) FlagDiscrepancy(_ context.Context, _ repositories.SQLExecutor, id int, notes string) error {
	match, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	match.HasDiscrepancy = true
	match.ResultsConfirmed = false
	match.DisputeRaised = true
	match.DisputeNotes = &notes
	return nil
}

type fakeSubmissionRepo struct {
	subs   []*models.ResultSubmission
	nextID int
}

func newFakeSubmissionRepo(subs ...*models.ResultSubmission) *fakeSubmissionRepo {
	r := &fakeSubmissionRepo{nextID: 1}
	for _, sub := range subs {
		if sub.ID == 0 {
			sub.ID = r.nextID
		}
		if sub.SubmittedAt.IsZero() {
			sub.SubmittedAt = time.Now().Add(time.Duration(sub.ID) * time.Second)
		}
		if sub.ID >= r.nextID {
			r.nextID = sub.ID + 1
		}
		r.subs = append(r.subs, sub)
	}
	return r
}

func (r *fakeSubmissionRepo) Create(_ context.Context, _ repositories.SQLExecutor, sub *models.ResultSubmission) error {
	for _, existing := range r.subs {
		if existing.MatchID == sub.MatchID &&
			existing.SubmittedBy == sub.SubmittedBy &&
			existing.SubmissionNumber == sub.SubmissionNumber {
			return repositories.ErrSubmissionConflict
		}
	}
	sub.ID = r.nextID
	r.nextID++
	sub.SubmittedAt = time.Now().Add(time.Duration(sub.ID) * time.Second)
	r.subs = append(r.subs, sub)
	return nil
}

func (r *fakeSubmissionRepo) ListByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) ([]*models.ResultSubmission, error) {
	subs := make([]*models.ResultSubmission, 0)
	for _, sub := range r.subs {
		if sub.MatchID == matchID {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].SubmittedAt.Equal(subs[j].SubmittedAt) {
			return subs[i].SubmittedAt.Before(subs[j].SubmittedAt)
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func (r *fakeSubmissionRepo) CountBySide(_ context.Context, _ repositories.SQLExecutor, matchID int, side models.Side) (int, error) {
	count := 0
	for _, sub := range r.subs {
		if sub.MatchID == matchID && sub.SubmittedBy == side {
			count++
		}
	}
	return count, nil
}

func (r *fakeSubmissionRepo) MarkAllVerified(_ context.Context, _ repositories.SQLExecutor, matchID int) error {
	for _, sub := range r.subs {
		if sub.MatchID == matchID {
			sub.Verified = true
		}
	}
	return nil
}

func (r *fakeSubmissionRepo) MarkAllDiscrepancy(_ context.Context, _ repositories.SQLExecutor, matchID int) error {
	for _, sub := range r.subs {
		if sub.MatchID == matchID {
			sub.HasDiscrepancy = true
		}
	}
	return nil
}

type fakeTournamentRepo struct {
	tournaments map[int]*models.Tournament
}

func newFakeTournamentRepo(tournaments ...*models.Tournament) *fakeTournamentRepo {
	r := &fakeTournamentRepo{tournaments: make(map[int]*models.Tournament)}
	for _, t := range tournaments {
		r.tournaments[t.ID] = t
	}
	return r
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return t, nil
}

func (r *fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

type fakeRoundRepo struct {
	rounds []*models.Round
}

func newFakeRoundRepo(rounds ...*models.Round) *fakeRoundRepo {
	return &fakeRoundRepo{rounds: rounds}
}

func (r *fakeRoundRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Round, error) {
	for _, round := range r.rounds {
		if round.ID == id {
			return round, nil
		}
	}
	return nil, repositories.ErrRoundNotFound
}

func (r *fakeRoundRepo) GetByPosition(_ context.Context, _ repositories.SQLExecutor, tournamentID, position int) (*models.Round, error) {
	for _, round := range r.rounds {
		if round.TournamentID == tournamentID && round.Position == position {
			return round, nil
		}
	}
	return nil, repositories.ErrRoundNotFound
}

func (r *fakeRoundRepo) ListByTournament(_ context.Context, tournamentID int) ([]*models.Round, error) {
	rounds := make([]*models.Round, 0)
	for _, round := range r.rounds {
		if round.TournamentID == tournamentID {
			rounds = append(rounds, round)
		}
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].Position < rounds[j].Position })
	return rounds, nil
}

type fakeCourtRepo struct {
	courts []*models.Court
}

func (r *fakeCourtRepo) ListActive(_ context.Context) ([]*models.Court, error) {
	return r.courts, nil
}

type fakeAdvancement struct {
	result *AdvancementResult
	err    error
	calls  []int
}

func (f *fakeAdvancement) CheckAndAdvance(_ context.Context, matchID int) (*AdvancementResult, error) {
	f.calls = append(f.calls, matchID)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &AdvancementResult{Status: AdvancementRoundInProgress}, nil
}

type fakeUploader struct {
	uploads []string
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, key string, _ string, _ io.Reader) (*storage.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.uploads = append(f.uploads, key)
	return &storage.UploadResult{Key: key, Location: "https://cdn.example.com/" + key}, nil
}

func (f *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
