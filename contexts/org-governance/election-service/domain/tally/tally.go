// Package tally turns an accumulated ballot set into results. Every function
// is pure and deterministic: candidate order is fixed by count then ID, so
// re-running a tally over the same ballots yields identical Results.
package tally

import (
	"sort"

	"simgov/contexts/org-governance/election-service/domain/entities"
)

// Input carries everything a tally needs; withdrawn candidates are excluded by
// passing only live candidate IDs.
type Input struct {
	VoteType            entities.VoteType
	Ballots             []entities.Ballot
	LiveCandidateIDs    []string
	EligibleCount       int
	QuorumPercent       float64
	WinThresholdPercent float64
	SeatsAvailable      int
	AllowRunoff         bool
}

// Tally evaluates quorum and dispatches on the ballot shape. Failed quorum
// never yields a winner, but counts and runoff/tie detection are still
// reported so callers can explain the outcome.
func Tally(input Input) entities.Results {
	results := entities.Results{
		EligibleCount: input.EligibleCount,
		BallotCount:   len(input.Ballots),
	}
	if input.EligibleCount > 0 {
		results.TurnoutPercent = float64(len(input.Ballots)) / float64(input.EligibleCount) * 100
	}
	results.QuorumMet = float64(len(input.Ballots))*100 >= input.QuorumPercent*float64(input.EligibleCount)

	switch input.VoteType {
	case entities.VoteTypeSingle:
		tallySingle(input, &results)
	case entities.VoteTypeApproval:
		tallyApproval(input, &results)
	case entities.VoteTypeRanked:
		tallyRanked(input, &results)
	case entities.VoteTypeYesNo:
		tallyYesNo(input, &results)
	}
	return results
}

func tallySingle(input Input, results *entities.Results) {
	counts := countByCandidate(input.LiveCandidateIDs, input.Ballots, func(ballot entities.Ballot) []string {
		if ballot.Choice == "" {
			return nil
		}
		return []string{ballot.Choice}
	})
	results.Counts = counts
	if len(counts) == 0 {
		return
	}

	top := counts[0].Count
	tied := make([]string, 0, 2)
	var counted float64
	for _, line := range counts {
		counted += line.Count
		if line.Count == top {
			tied = append(tied, line.PlayerID)
		}
	}

	share := 0.0
	if counted > 0 {
		share = top / counted * 100
	}

	switch {
	case len(tied) > 1:
		// Exact tie at the top: runoff when allowed, otherwise the documented
		// lowest-candidate-ID placeholder.
		if input.AllowRunoff {
			results.RunoffRequired = true
			results.RunoffCandidateIDs = tied
			return
		}
		results.TieBroken = true
		if results.QuorumMet {
			results.WinnerIDs = []string{tied[0]}
		}
	case input.WinThresholdPercent > 0 && share < input.WinThresholdPercent && input.AllowRunoff:
		results.RunoffRequired = true
		results.RunoffCandidateIDs = topTwo(counts)
	default:
		if results.QuorumMet {
			results.WinnerIDs = []string{counts[0].PlayerID}
		}
	}
}

func tallyApproval(input Input, results *entities.Results) {
	counts := countByCandidate(input.LiveCandidateIDs, input.Ballots, func(ballot entities.Ballot) []string {
		return ballot.Approved
	})
	results.Counts = counts

	seats := input.SeatsAvailable
	if seats <= 0 {
		seats = 1
	}
	if seats > len(counts) {
		seats = len(counts)
	}
	if seats == 0 || !results.QuorumMet {
		return
	}

	winners := make([]string, 0, seats)
	for _, line := range counts[:seats] {
		winners = append(winners, line.PlayerID)
	}
	// A candidate outside the seats with the boundary count means the ID order
	// decided a seat.
	if len(counts) > seats && counts[seats].Count == counts[seats-1].Count {
		results.TieBroken = true
	}
	results.WinnerIDs = winners
}

func tallyRanked(input Input, results *entities.Results) {
	threshold := input.WinThresholdPercent
	if threshold <= 0 {
		threshold = 50
	}

	remaining := make(map[string]bool, len(input.LiveCandidateIDs))
	for _, id := range input.LiveCandidateIDs {
		remaining[id] = true
	}

	for round := 1; len(remaining) > 0; round++ {
		counts := make(map[string]float64, len(remaining))
		for id := range remaining {
			counts[id] = 0
		}
		var active float64
		exhausted := 0
		for _, ballot := range input.Ballots {
			next := firstLivePreference(ballot, remaining)
			if next == "" {
				exhausted++
				continue
			}
			counts[next] += ballotWeight(ballot)
			active += ballotWeight(ballot)
		}

		ordered := orderCounts(counts)
		results.RankedRounds = append(results.RankedRounds, entities.RankedRound{
			Round:     round,
			Counts:    ordered,
			Exhausted: exhausted,
		})

		if len(ordered) == 0 {
			return
		}
		topShare := 0.0
		if active > 0 {
			topShare = ordered[0].Count / active * 100
		}
		if topShare > threshold || len(remaining) == 1 {
			results.Counts = ordered
			if results.QuorumMet {
				results.WinnerIDs = []string{ordered[0].PlayerID}
			}
			return
		}

		eliminated := eliminationPick(ordered)
		results.RankedRounds[len(results.RankedRounds)-1].Eliminated = eliminated
		delete(remaining, eliminated)
	}
}

func tallyYesNo(input Input, results *entities.Results) {
	for _, ballot := range input.Ballots {
		switch ballot.YesNo {
		case entities.ChoiceYes:
			results.Yes += ballotWeight(ballot)
		case entities.ChoiceNo:
			results.No += ballotWeight(ballot)
		case entities.ChoiceAbstain:
			results.Abstain += ballotWeight(ballot)
		}
	}
	// Abstains count toward turnout and quorum but stay out of the ratio.
	if results.Yes+results.No > 0 {
		results.YesPercent = results.Yes / (results.Yes + results.No) * 100
	}
	results.Passed = results.QuorumMet &&
		results.Yes+results.No > 0 &&
		results.YesPercent >= input.WinThresholdPercent
}

// countByCandidate aggregates weighted mentions per live candidate; mentions
// of unknown or withdrawn candidates are dropped rather than invalidating the
// ballot.
func countByCandidate(
	liveIDs []string,
	ballots []entities.Ballot,
	mentions func(entities.Ballot) []string,
) []entities.CandidateCount {
	live := make(map[string]bool, len(liveIDs))
	counts := make(map[string]float64, len(liveIDs))
	for _, id := range liveIDs {
		live[id] = true
		counts[id] = 0
	}
	for _, ballot := range ballots {
		for _, id := range mentions(ballot) {
			if live[id] {
				counts[id] += ballotWeight(ballot)
			}
		}
	}
	return orderCounts(counts)
}

func orderCounts(counts map[string]float64) []entities.CandidateCount {
	ordered := make([]entities.CandidateCount, 0, len(counts))
	for id, count := range counts {
		ordered = append(ordered, entities.CandidateCount{PlayerID: id, Count: count})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Count == ordered[j].Count {
			return ordered[i].PlayerID < ordered[j].PlayerID
		}
		return ordered[i].Count > ordered[j].Count
	})
	return ordered
}

// topTwo returns the runoff field: the top two candidates, widened to include
// every candidate tied with the second-place count.
func topTwo(counts []entities.CandidateCount) []string {
	if len(counts) <= 2 {
		ids := make([]string, 0, len(counts))
		for _, line := range counts {
			ids = append(ids, line.PlayerID)
		}
		return ids
	}
	cutoff := counts[1].Count
	ids := make([]string, 0, 2)
	for _, line := range counts {
		if line.Count >= cutoff {
			ids = append(ids, line.PlayerID)
		}
	}
	return ids
}

// eliminationPick removes the weakest candidate; on a tie for fewest votes the
// highest candidate ID goes, keeping elimination deterministic without
// touching the lowest-ID winner tiebreak.
func eliminationPick(ordered []entities.CandidateCount) string {
	low := ordered[len(ordered)-1].Count
	pick := ordered[len(ordered)-1].PlayerID
	for _, line := range ordered {
		if line.Count == low && line.PlayerID > pick {
			pick = line.PlayerID
		}
	}
	return pick
}

func firstLivePreference(ballot entities.Ballot, remaining map[string]bool) string {
	for _, id := range ballot.Ranked {
		if remaining[id] {
			return id
		}
	}
	return ""
}

func ballotWeight(ballot entities.Ballot) float64 {
	if ballot.Weight <= 0 {
		return 1
	}
	return ballot.Weight
}
