// Package errors defines the sentinel errors of the proposal domain.
package errors

import "errors"

var (
	ErrProposalNotFound       = errors.New("proposal not found")
	ErrInvalidProposalInput   = errors.New("proposal input is invalid")
	ErrWrongPhase             = errors.New("proposal is not in the required phase")
	ErrProposalTerminal       = errors.New("proposal is in a terminal status")
	ErrInsufficientSponsors   = errors.New("proposal does not have enough sponsors")
	ErrAlreadySponsored       = errors.New("player already sponsors this proposal")
	ErrAlreadyVoted           = errors.New("player already voted on this proposal")
	ErrNotEligible            = errors.New("player is not eligible to vote on this proposal")
	ErrNotAuthor              = errors.New("player is not the author of this proposal")
	ErrAmendmentNotFound      = errors.New("amendment not found")
	ErrAmendmentClosed        = errors.New("amendment is no longer open for votes")
	ErrAlreadyVotedAmendment  = errors.New("player already voted on this amendment")
	ErrCommentNotFound        = errors.New("parent comment not found")
	ErrStepNotFound           = errors.New("implementation step not found")
	ErrStepAlreadyCompleted   = errors.New("implementation step is already completed")
	ErrTallyNotReady          = errors.New("proposal tally is not available yet")
	ErrMemberLookupFailed     = errors.New("member directory lookup failed")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyConflict    = errors.New("idempotency key was reused with a different request")
	ErrConflict               = errors.New("proposal was modified concurrently")
)
