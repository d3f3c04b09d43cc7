// Package eligibility holds the pure predicates deciding whether a player may
// vote, run, or sign. Callers supply the membership facts; nothing here
// touches storage or the clock.
package eligibility

import (
	"time"

	"simgov/contexts/org-governance/election-service/domain/entities"
)

// MemberFacts are the identity-provider inputs for one player inside one
// organization.
type MemberFacts struct {
	PlayerID   string
	Member     bool
	Standing   float64
	TenureDays int
	VoteWeight float64
}

// Denial enumerates why a predicate said no.
type Denial string

const (
	DenialNone          Denial = ""
	DenialNotMember     Denial = "not_member"
	DenialNotInSnapshot Denial = "not_in_snapshot"
	DenialAlreadyVoted  Denial = "already_voted"
	DenialStanding      Denial = "standing_below_minimum"
	DenialTenure        Denial = "tenure_below_minimum"
	DenialWindowClosed  Denial = "window_closed"
	DenialDuplicateRun  Denial = "active_candidacy_exists"
)

// CanVote checks snapshot membership, the dedupe set, standing/tenure
// thresholds, and the voting window.
func CanVote(election entities.Election, facts MemberFacts, now time.Time) Denial {
	if !facts.Member {
		return DenialNotMember
	}
	if election.Status != entities.ElectionStatusVoting || !inWindow(now, election.VotingStart, election.VotingEnd) {
		return DenialWindowClosed
	}
	if !election.InSnapshot(facts.PlayerID) {
		return DenialNotInSnapshot
	}
	if election.HasVoted(facts.PlayerID) {
		return DenialAlreadyVoted
	}
	if facts.Standing < election.MinStandingToVote {
		return DenialStanding
	}
	if facts.TenureDays < election.MinTenureToVote {
		return DenialTenure
	}
	return DenialNone
}

// CanRun mirrors CanVote against the filing window and run thresholds, and
// additionally rejects a player with an existing non-withdrawn candidacy for
// the position.
func CanRun(election entities.Election, facts MemberFacts, now time.Time) Denial {
	if !facts.Member {
		return DenialNotMember
	}
	if election.Status != entities.ElectionStatusFiling || !inWindow(now, election.FilingStart, election.FilingEnd) {
		return DenialWindowClosed
	}
	if facts.Standing < election.MinStandingToRun {
		return DenialStanding
	}
	if facts.TenureDays < election.MinTenureToRun {
		return DenialTenure
	}
	if candidate, ok := election.CandidateByPlayer(facts.PlayerID); ok && !candidate.Withdrawn {
		return DenialDuplicateRun
	}
	return DenialNone
}

// CanSign gates petition signatures on membership, petition openness and the
// one-signature rule.
func CanSign(petition entities.RecallPetition, facts MemberFacts, now time.Time) Denial {
	if !facts.Member {
		return DenialNotMember
	}
	if petition.Status != entities.PetitionStatusOpen || !now.Before(petition.ExpiresAt) {
		return DenialWindowClosed
	}
	if petition.HasSigned(facts.PlayerID) {
		return DenialAlreadyVoted
	}
	return DenialNone
}

// inWindow treats windows as [start, end).
func inWindow(now, start, end time.Time) bool {
	return !now.Before(start) && now.Before(end)
}
