package errors

import "errors"

var (
	ErrInvalidElectionSpec = errors.New("invalid election spec")
	ErrElectionNotFound    = errors.New("election not found")
	ErrNotEligible         = errors.New("player is not eligible to vote")
	ErrIneligibleToRun     = errors.New("player is not eligible to run")
	ErrVotingClosed        = errors.New("voting window is closed")
	ErrFilingClosed        = errors.New("filing window is closed")
	ErrAlreadyVoted        = errors.New("player has already voted")
	ErrAlreadyCandidate    = errors.New("player already has an active candidacy")
	ErrInvalidBallotShape  = errors.New("ballot payload does not match vote type")
	ErrCandidateNotFound   = errors.New("candidate not found")
	ErrAlreadyWithdrawn    = errors.New("candidacy is already withdrawn")
	ErrWithdrawClosed      = errors.New("candidacy can no longer be withdrawn")
	ErrAlreadyEndorsed     = errors.New("player has already endorsed the candidate")
	ErrElectionTerminal    = errors.New("election is in a terminal status")
	ErrResultsNotReady     = errors.New("election results are not available yet")

	ErrPetitionNotFound = errors.New("recall petition not found")
	ErrPetitionClosed   = errors.New("recall petition is closed")
	ErrAlreadySigned    = errors.New("player has already signed the petition")
	ErrInvalidPetition  = errors.New("invalid petition input")

	ErrMemberLookupFailed = errors.New("member directory lookup failed")

	ErrConflict               = errors.New("election conflict")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyConflict    = errors.New("idempotency key conflict")
)
