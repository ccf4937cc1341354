package services

import "errors"

// Errors shared across services and the HTTP error mapping.
var (
	// Not found
	ErrMatchNotFound      = errors.New("match not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrRoundNotFound      = errors.New("round not found")

	// Validation
	ErrInvalidSide      = errors.New("submitted_by must be team1 or team2")
	ErrInvalidWinner    = errors.New("winner must be team1 or team2")
	ErrInvalidScoreData = errors.New("malformed score data")

	// Business rules
	ErrSubmissionLimitReached = errors.New("submission limit reached for this side (maximum 2)")
	ErrMatchAlreadyCompleted  = errors.New("match has already been completed")
	ErrResultIncomplete       = errors.New("result incomplete: match not finished")

	// Advancement
	ErrNoCourtsAvailable  = errors.New("no courts available for next round")
	ErrFormatNotSupported = errors.New("automatic advancement not supported for this format")
)
