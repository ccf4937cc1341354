package models

import "time"

// TournamentFormat selects which advancement algorithm applies.
type TournamentFormat string

const (
	FormatSingleElimination TournamentFormat = "single_elimination"
	FormatDoubleElimination TournamentFormat = "double_elimination"
	FormatRoundRobin        TournamentFormat = "round_robin"
)

type TournamentStatus string

const (
	TournamentStatusActive    TournamentStatus = "active"
	TournamentStatusCompleted TournamentStatus = "completed"
)

// Tournament owns rounds and matches. Sets is the total number of sets
// configured per match (e.g. 3 for best-of-three).
type Tournament struct {
	ID        int              `json:"id"`
	Name      string           `json:"name"`
	Format    TournamentFormat `json:"format"`
	Sets      int              `json:"sets"`
	Status    TournamentStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`

	Rounds  []Round `json:"rounds,omitempty"`
	Matches []Match `json:"matches,omitempty"`
}

// SetsToWin returns the number of set wins required to take a match:
// a majority of the configured sets, rounded up.
func (t *Tournament) SetsToWin() int {
	sets := t.Sets
	if sets <= 0 {
		sets = 3
	}
	return (sets + 1) / 2
}

// IsElimination reports whether the format uses bracket advancement.
func (t *Tournament) IsElimination() bool {
	return t.Format == FormatSingleElimination || t.Format == FormatDoubleElimination
}
