package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/padelhub/tournament-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineWinnerSide(t *testing.T) {
	tb := func(points int) models.SetScore {
		return models.SetScore{Games: 7, Tiebreak: true, TiebreakScore: intPtr(points)}
	}

	tests := []struct {
		name      string
		team1     []models.SetScore
		team2     []models.SetScore
		setsToWin int
		want      models.Side
	}{
		{
			name:      "straight sets team1",
			team1:     []models.SetScore{{Games: 6}, {Games: 6}},
			team2:     []models.SetScore{{Games: 3}, {Games: 4}},
			setsToWin: 2,
			want:      models.SideTeam1,
		},
		{
			name:      "three sets team2",
			team1:     []models.SetScore{{Games: 6}, {Games: 2}, {Games: 4}},
			team2:     []models.SetScore{{Games: 4}, {Games: 6}, {Games: 6}},
			setsToWin: 2,
			want:      models.SideTeam2,
		},
		{
			name:      "tiebreak decides the match",
			team1:     []models.SetScore{{Games: 6}, {Games: 4}, tb(7)},
			team2:     []models.SetScore{{Games: 3}, {Games: 6}, tb(5)},
			setsToWin: 2,
			want:      models.SideTeam1,
		},
		{
			name:      "tiebreak flagged on one side only",
			team1:     []models.SetScore{{Games: 6}, {Games: 6, Tiebreak: true, TiebreakScore: intPtr(3)}},
			team2:     []models.SetScore{{Games: 3}, tb(7)},
			setsToWin: 2,
			want:      "",
		},
		{
			name:      "one set each is incomplete",
			team1:     []models.SetScore{{Games: 6}, {Games: 3}},
			team2:     []models.SetScore{{Games: 4}, {Games: 6}},
			setsToWin: 2,
			want:      "",
		},
		{
			name:      "drawn set counts for neither",
			team1:     []models.SetScore{{Games: 6}, {Games: 5}},
			team2:     []models.SetScore{{Games: 3}, {Games: 5}},
			setsToWin: 2,
			want:      "",
		},
		{
			name:      "best of five needs three",
			team1:     []models.SetScore{{Games: 6}, {Games: 6}, {Games: 2}, {Games: 3}},
			team2:     []models.SetScore{{Games: 3}, {Games: 4}, {Games: 6}, {Games: 6}},
			setsToWin: 3,
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineWinnerSide(tt.team1, tt.team2, tt.setsToWin)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newResultFixture(t *testing.T, matchRepo *fakeMatchRepo, tournamentRepo *fakeTournamentRepo, adv *fakeAdvancement) (ResultService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewResultService(db, matchRepo, tournamentRepo, adv, nil, testLogger())
	return svc, mock
}

func bestOfThreeTournament(id int) *models.Tournament {
	return &models.Tournament{
		ID:     id,
		Name:   "Club Open",
		Format: models.FormatSingleElimination,
		Sets:   3,
		Status: models.TournamentStatusActive,
	}
}

func TestRecordResultCompletesMatch(t *testing.T) {
	match := scheduledMatch(10, 1)
	matchRepo := newFakeMatchRepo(match)
	adv := &fakeAdvancement{result: &AdvancementResult{Status: AdvancementRoundInProgress}}
	svc, mock := newResultFixture(t, matchRepo, newFakeTournamentRepo(bestOfThreeTournament(1)), adv)

	mock.ExpectBegin()
	mock.ExpectCommit()

	outcome, err := svc.RecordResult(context.Background(), 10, RecordResultInput{
		Team1Score:      []models.SetScore{{Games: 6}, {Games: 6}},
		Team2Score:      []models.SetScore{{Games: 3}, {Games: 4}},
		DurationMinutes: intPtr(75),
		Notes:           strPtr("rescheduled from court 2"),
	})
	require.NoError(t, err)

	assert.True(t, match.IsDecided())
	require.NotNil(t, match.WinnerName)
	assert.Equal(t, "Alpha", *match.WinnerName)
	require.NotNil(t, match.ResultCapturedBy)
	assert.Equal(t, "admin", *match.ResultCapturedBy)
	require.NotNil(t, match.DurationMinutes)
	assert.Equal(t, 75, *match.DurationMinutes)
	require.NotNil(t, match.DisputeNotes)
	assert.Equal(t, "rescheduled from court 2", *match.DisputeNotes)

	// Set numbers are filled in positionally when omitted.
	require.Len(t, match.Team1Score, 2)
	assert.Equal(t, 1, match.Team1Score[0].Set)
	assert.Equal(t, 2, match.Team1Score[1].Set)

	require.Len(t, adv.calls, 1)
	require.NotNil(t, outcome.Advancement)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordResultEvenSetCountMajority(t *testing.T) {
	match := scheduledMatch(10, 1)
	matchRepo := newFakeMatchRepo(match)
	tournament := bestOfThreeTournament(1)
	tournament.Sets = 4
	svc, mock := newResultFixture(t, matchRepo, newFakeTournamentRepo(tournament), &fakeAdvancement{})

	mock.ExpectBegin()
	mock.ExpectCommit()

	// Two set wins are a majority of four configured sets.
	_, err := svc.RecordResult(context.Background(), 10, RecordResultInput{
		Team1Score: []models.SetScore{{Games: 6}, {Games: 6}},
		Team2Score: []models.SetScore{{Games: 3}, {Games: 4}},
	})
	require.NoError(t, err)

	assert.True(t, match.IsDecided())
	require.NotNil(t, match.WinnerName)
	assert.Equal(t, "Alpha", *match.WinnerName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordResultTiebreakDetails(t *testing.T) {
	match := scheduledMatch(10, 1)
	matchRepo := newFakeMatchRepo(match)
	svc, mock := newResultFixture(t, matchRepo, newFakeTournamentRepo(bestOfThreeTournament(1)), &fakeAdvancement{})

	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.RecordResult(context.Background(), 10, RecordResultInput{
		Team1Score: []models.SetScore{
			{Games: 6},
			{Games: 7, Tiebreak: true, TiebreakScore: intPtr(7)},
		},
		Team2Score: []models.SetScore{
			{Games: 4},
			{Games: 6, Tiebreak: true, TiebreakScore: intPtr(4)},
		},
	})
	require.NoError(t, err)

	require.Len(t, match.TiebreakScores, 1)
	assert.Equal(t, 2, match.TiebreakScores[0].Set)
	assert.Equal(t, 7, match.TiebreakScores[0].Team1)
	assert.Equal(t, 4, match.TiebreakScores[0].Team2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordResultIncomplete(t *testing.T) {
	svc, mock := newResultFixture(t,
		newFakeMatchRepo(scheduledMatch(10, 1)),
		newFakeTournamentRepo(bestOfThreeTournament(1)),
		&fakeAdvancement{},
	)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.RecordResult(context.Background(), 10, RecordResultInput{
		Team1Score: []models.SetScore{{Games: 6}, {Games: 3}},
		Team2Score: []models.SetScore{{Games: 4}, {Games: 6}},
	})
	assert.ErrorIs(t, err, ErrResultIncomplete)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordResultCompletedGuardAndForce(t *testing.T) {
	match := scheduledMatch(10, 1)
	match.Status = models.MatchStatusCompleted
	match.ResultsConfirmed = true
	match.WinnerName = strPtr("Alpha")
	matchRepo := newFakeMatchRepo(match)
	svc, mock := newResultFixture(t, matchRepo, newFakeTournamentRepo(bestOfThreeTournament(1)), &fakeAdvancement{})

	input := RecordResultInput{
		Team1Score: []models.SetScore{{Games: 2}, {Games: 3}},
		Team2Score: []models.SetScore{{Games: 6}, {Games: 6}},
	}

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.RecordResult(context.Background(), 10, input)
	assert.ErrorIs(t, err, ErrMatchAlreadyCompleted)

	mock.ExpectBegin()
	mock.ExpectCommit()

	input.ForceUpdate = true
	input.CapturedBy = "admin_correction"
	_, err = svc.RecordResult(context.Background(), 10, input)
	require.NoError(t, err)

	require.NotNil(t, match.WinnerName)
	assert.Equal(t, "Beta", *match.WinnerName)
	require.NotNil(t, match.ResultCapturedBy)
	assert.Equal(t, "admin_correction", *match.ResultCapturedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordResultUnknownMatch(t *testing.T) {
	svc, mock := newResultFixture(t, newFakeMatchRepo(), newFakeTournamentRepo(), &fakeAdvancement{})

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.RecordResult(context.Background(), 99, RecordResultInput{
		Team1Score: []models.SetScore{{Games: 6}, {Games: 6}},
		Team2Score: []models.SetScore{{Games: 3}, {Games: 4}},
	})
	assert.ErrorIs(t, err, ErrMatchNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordResultAdvancementWarning(t *testing.T) {
	match := scheduledMatch(10, 1)
	svc, mock := newResultFixture(t,
		newFakeMatchRepo(match),
		newFakeTournamentRepo(bestOfThreeTournament(1)),
		&fakeAdvancement{err: ErrNoCourtsAvailable},
	)

	mock.ExpectBegin()
	mock.ExpectCommit()

	outcome, err := svc.RecordResult(context.Background(), 10, RecordResultInput{
		Team1Score: []models.SetScore{{Games: 6}, {Games: 6}},
		Team2Score: []models.SetScore{{Games: 3}, {Games: 4}},
	})
	require.NoError(t, err)

	assert.True(t, match.IsDecided())
	assert.Nil(t, outcome.Advancement)
	assert.NotEmpty(t, outcome.AdvancementWarning)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordResultValidation(t *testing.T) {
	svc, mock := newResultFixture(t, newFakeMatchRepo(), newFakeTournamentRepo(), &fakeAdvancement{})

	tests := []struct {
		name  string
		input RecordResultInput
	}{
		{
			name: "mismatched lengths",
			input: RecordResultInput{
				Team1Score: []models.SetScore{{Games: 6}, {Games: 6}},
				Team2Score: []models.SetScore{{Games: 3}},
			},
		},
		{
			name:  "empty scores",
			input: RecordResultInput{},
		},
		{
			name: "negative games",
			input: RecordResultInput{
				Team1Score: []models.SetScore{{Games: -1}},
				Team2Score: []models.SetScore{{Games: 6}},
			},
		},
		{
			name: "non-positive duration",
			input: RecordResultInput{
				Team1Score:      []models.SetScore{{Games: 6}, {Games: 6}},
				Team2Score:      []models.SetScore{{Games: 3}, {Games: 4}},
				DurationMinutes: intPtr(0),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordResult(context.Background(), 10, tt.input)
			assert.ErrorIs(t, err, ErrInvalidScoreData)
		})
	}

	// Validation fails before any transaction is opened.
	assert.NoError(t, mock.ExpectationsWereMet())
}
