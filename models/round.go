package models

// Round is one named stage of a bracket. Position is 1-based and fixed
// at bracket creation; advancement moves from position N to N+1 rather
// than pattern-matching round names.
type Round struct {
	ID           int    `json:"id"`
	TournamentID int    `json:"tournament_id"`
	Position     int    `json:"position"`
	Name         string `json:"name"`
}
