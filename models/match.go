package models

import "time"

type MatchStatus string

const (
	MatchStatusScheduled  MatchStatus = "scheduled"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusCompleted  MatchStatus = "completed"
)

// ByeTeamName marks a slot with no opponent; the real team advances
// without playing.
const ByeTeamName = "BYE"

// SetScore is one side's score for a single set. TiebreakScore is only
// meaningful when Tiebreak is true.
type SetScore struct {
	Set           int  `json:"set"`
	Games         int  `json:"games"`
	Tiebreak      bool `json:"tiebreak,omitempty"`
	TiebreakScore *int `json:"tiebreak_score,omitempty"`
}

// TiebreakDetail records both sides' points for a tiebreak set.
type TiebreakDetail struct {
	Set   int `json:"set"`
	Team1 int `json:"team1"`
	Team2 int `json:"team2"`
}

// TeamSlot is one side of a match. Name may be empty (awaiting a
// winner from the previous round) or the BYE sentinel.
type TeamSlot struct {
	Name    string  `json:"name"`
	Player1 *string `json:"player1,omitempty"`
	Player2 *string `json:"player2,omitempty"`
}

// IsBye reports whether the slot holds the synthetic BYE opponent.
func (s TeamSlot) IsBye() bool {
	return s.Name == ByeTeamName
}

// Match is one scheduled contest between two team slots.
//
// Invariant: a completed match has a non-empty winner equal to one of
// the slot names, except that a BYE match's winner is the sole real
// team.
type Match struct {
	ID           int `json:"id"`
	TournamentID int `json:"tournament_id"`
	RoundID      int `json:"round_id"`
	MatchNumber  int `json:"match_number"`

	Team1 TeamSlot `json:"team1"`
	Team2 TeamSlot `json:"team2"`

	CourtID     *int       `json:"court_id,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`

	Team1Score      []SetScore       `json:"team1_score,omitempty"`
	Team2Score      []SetScore       `json:"team2_score,omitempty"`
	TiebreakScores  []TiebreakDetail `json:"tiebreak_scores,omitempty"`
	WinnerName      *string          `json:"winner_name,omitempty"`
	DurationMinutes *int             `json:"duration_minutes,omitempty"`

	Status           MatchStatus `json:"status"`
	ResultsConfirmed bool        `json:"results_confirmed"`
	HasDiscrepancy   bool        `json:"has_discrepancy"`
	DisputeRaised    bool        `json:"dispute_raised"`
	DisputeNotes     *string     `json:"dispute_notes,omitempty"`
	ResultCapturedBy *string     `json:"result_captured_by,omitempty"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// IsDecided reports whether the match result is final and trusted.
func (m *Match) IsDecided() bool {
	return m.Status == MatchStatusCompleted && m.ResultsConfirmed
}

// WinnerSlot returns the slot matching the recorded winner, or nil if
// the match is undecided.
func (m *Match) WinnerSlot() *TeamSlot {
	if m.WinnerName == nil {
		return nil
	}
	switch *m.WinnerName {
	case m.Team1.Name:
		return &m.Team1
	case m.Team2.Name:
		return &m.Team2
	}
	return nil
}
