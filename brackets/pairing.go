package brackets

import (
	"time"

	"github.com/padelhub/tournament-engine/models"
)

// TeamRef identifies an advancing team: display name plus up to two
// player names carried over from the decided match.
type TeamRef struct {
	Name    string
	Player1 *string
	Player2 *string
}

// Pairing is one next-round contest. When Bye is true, Team2 holds the
// synthetic BYE opponent and Team1 advances without playing.
type Pairing struct {
	MatchNumber int
	Team1       TeamRef
	Team2       TeamRef
	Bye         bool
}

// ByeTeam returns the synthetic opponent used when a winner has nobody
// to play this round.
func ByeTeam() TeamRef {
	return TeamRef{Name: models.ByeTeamName}
}

// PairWinners pairs winners sequentially: winner[0] vs winner[1],
// winner[2] vs winner[3], and so on. An odd count leaves the last
// winner paired against BYE.
func PairWinners(winners []TeamRef) []Pairing {
	pairings := make([]Pairing, 0, (len(winners)+1)/2)
	for i := 0; i < len(winners); i += 2 {
		pairing := Pairing{
			MatchNumber: len(pairings) + 1,
			Team1:       winners[i],
		}
		if i+1 < len(winners) {
			pairing.Team2 = winners[i+1]
		} else {
			pairing.Team2 = ByeTeam()
			pairing.Bye = true
		}
		pairings = append(pairings, pairing)
	}
	return pairings
}

const (
	// NextRoundDelay is how far after the triggering completion the next
	// round's first match is scheduled.
	NextRoundDelay = time.Hour
	// MatchInterval spaces consecutive pairings so matches sharing a
	// court never overlap.
	MatchInterval = 90 * time.Minute
)

// Slot computes the scheduled start and end time for pairing index i
// (0-based), relative to the advancement time.
func Slot(base time.Time, i int) (start, end time.Time) {
	start = base.Add(NextRoundDelay + time.Duration(i)*MatchInterval)
	return start, start.Add(MatchInterval)
}

// AssignCourt picks a court for pairing index i by cycling through the
// pool. The pool must already be in deterministic order (lowest court
// number first).
func AssignCourt(courts []*models.Court, i int) *models.Court {
	if len(courts) == 0 {
		return nil
	}
	return courts[i%len(courts)]
}
