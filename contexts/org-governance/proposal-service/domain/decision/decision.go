// Package decision computes the yes/no outcome of a proposal vote. It is a
// pure function over an immutable ballot set so the same inputs always
// produce the same tally.
package decision

import "simgov/contexts/org-governance/proposal-service/domain/entities"

// Input carries everything the tally depends on.
type Input struct {
	EligibleCount        int
	Votes                []entities.Vote
	QuorumPercent        float64
	PassThresholdPercent float64
}

// Decide counts weighted yes/no/abstain votes. Abstentions count toward
// quorum but are excluded from the yes ratio. Quorum and pass comparisons
// are both inclusive, so exactly meeting a threshold passes.
func Decide(in Input) entities.Tally {
	tally := entities.Tally{
		EligibleCount: in.EligibleCount,
		BallotCount:   len(in.Votes),
	}
	if tally.EligibleCount > 0 {
		tally.TurnoutPercent = float64(tally.BallotCount) / float64(tally.EligibleCount) * 100
	}
	tally.QuorumMet = float64(tally.BallotCount)*100 >= in.QuorumPercent*float64(tally.EligibleCount)

	for _, vote := range in.Votes {
		weight := vote.Weight
		if weight <= 0 {
			weight = 1
		}
		switch vote.Choice {
		case entities.VoteYes:
			tally.Yes += weight
		case entities.VoteNo:
			tally.No += weight
		case entities.VoteAbstain:
			tally.Abstain += weight
		}
	}

	decisive := tally.Yes + tally.No
	if decisive > 0 {
		tally.YesPercent = tally.Yes / decisive * 100
	}
	tally.Passed = tally.QuorumMet && decisive > 0 && tally.YesPercent >= in.PassThresholdPercent
	return tally
}
