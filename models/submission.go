package models

import "time"

// Side identifies one of the two reporting sides of a match.
type Side string

const (
	SideTeam1 Side = "team1"
	SideTeam2 Side = "team2"
)

// Valid reports whether the side is one of the two fixed identifiers.
func (s Side) Valid() bool {
	return s == SideTeam1 || s == SideTeam2
}

// SubmissionsPerSide is the cap on how many times a single side may
// report a result for one match.
const SubmissionsPerSide = 2

// RequiredSubmissions is the total number of submissions consensus
// verification needs before it runs.
const RequiredSubmissions = 4

// ResultSubmission is one side's claim about a match outcome. Rows are
// immutable once created; only the verified/has_discrepancy flags are
// set, exactly once, when the fourth submission arrives.
type ResultSubmission struct {
	ID               int       `json:"id"`
	MatchID          int       `json:"match_id"`
	SubmittedBy      Side      `json:"submitted_by"`
	SubmissionNumber int       `json:"submission_number"`
	Team1Sets        []int64   `json:"team1_sets"`
	Team2Sets        []int64   `json:"team2_sets"`
	Winner           Side      `json:"winner"`
	Verified         bool      `json:"verified"`
	HasDiscrepancy   bool      `json:"has_discrepancy"`
	IPAddress        *string   `json:"ip_address,omitempty"`
	UserAgent        *string   `json:"user_agent,omitempty"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// Matches reports whether two submissions agree exactly: same declared
// winner, same number of sets, and positionally identical games for
// both sides.
func (s *ResultSubmission) Matches(other *ResultSubmission) bool {
	if s.Winner != other.Winner {
		return false
	}
	if len(s.Team1Sets) != len(other.Team1Sets) || len(s.Team2Sets) != len(other.Team2Sets) {
		return false
	}
	for i := range s.Team1Sets {
		if s.Team1Sets[i] != other.Team1Sets[i] {
			return false
		}
	}
	for i := range s.Team2Sets {
		if s.Team2Sets[i] != other.Team2Sets[i] {
			return false
		}
	}
	return true
}
