package tally

import (
	"reflect"
	"testing"

	"simgov/contexts/org-governance/election-service/domain/entities"
)

func singleBallot(voterID string, choice string) entities.Ballot {
	return entities.Ballot{VoterID: voterID, Weight: 1, Choice: choice}
}

func rankedBallot(voterID string, ranked ...string) entities.Ballot {
	return entities.Ballot{VoterID: voterID, Weight: 1, Ranked: ranked}
}

func yesNoBallot(voterID string, choice entities.YesNoChoice) entities.Ballot {
	return entities.Ballot{VoterID: voterID, Weight: 1, YesNo: choice}
}

func TestTallySingleTieWithRunoffBelowQuorum(t *testing.T) {
	// 10 eligible, quorum 50%, 4 ballots cast as a 2-2 tie: the tie is still
	// flagged as needing a runoff, but the failed quorum must block a winner.
	input := Input{
		VoteType: entities.VoteTypeSingle,
		Ballots: []entities.Ballot{
			singleBallot("v1", "cand-a"),
			singleBallot("v2", "cand-a"),
			singleBallot("v3", "cand-b"),
			singleBallot("v4", "cand-b"),
		},
		LiveCandidateIDs:    []string{"cand-a", "cand-b"},
		EligibleCount:       10,
		QuorumPercent:       50,
		WinThresholdPercent: 50,
		SeatsAvailable:      1,
		AllowRunoff:         true,
	}
	results := Tally(input)

	if results.QuorumMet {
		t.Fatalf("expected quorum failure at 4/10 turnout")
	}
	if !results.RunoffRequired {
		t.Fatalf("expected runoff required for a 2-2 tie")
	}
	if len(results.WinnerIDs) != 0 {
		t.Fatalf("expected no winner without quorum, got %v", results.WinnerIDs)
	}
	if !reflect.DeepEqual(results.RunoffCandidateIDs, []string{"cand-a", "cand-b"}) {
		t.Fatalf("unexpected runoff candidates: %v", results.RunoffCandidateIDs)
	}
	if results.TurnoutPercent != 40 {
		t.Fatalf("expected 40%% turnout, got %v", results.TurnoutPercent)
	}
}

func TestTallySingleTieWithoutRunoffBreaksByLowestID(t *testing.T) {
	input := Input{
		VoteType: entities.VoteTypeSingle,
		Ballots: []entities.Ballot{
			singleBallot("v1", "cand-b"),
			singleBallot("v2", "cand-a"),
		},
		LiveCandidateIDs:    []string{"cand-a", "cand-b"},
		EligibleCount:       2,
		QuorumPercent:       50,
		WinThresholdPercent: 50,
		SeatsAvailable:      1,
	}
	results := Tally(input)

	if !results.TieBroken {
		t.Fatalf("expected tie-break to be flagged")
	}
	if !reflect.DeepEqual(results.WinnerIDs, []string{"cand-a"}) {
		t.Fatalf("expected lowest-ID winner cand-a, got %v", results.WinnerIDs)
	}
}

func TestTallySingleBelowThresholdTriggersRunoff(t *testing.T) {
	input := Input{
		VoteType: entities.VoteTypeSingle,
		Ballots: []entities.Ballot{
			singleBallot("v1", "cand-a"),
			singleBallot("v2", "cand-a"),
			singleBallot("v3", "cand-a"),
			singleBallot("v4", "cand-b"),
			singleBallot("v5", "cand-b"),
			singleBallot("v6", "cand-c"),
		},
		LiveCandidateIDs:    []string{"cand-a", "cand-b", "cand-c"},
		EligibleCount:       6,
		QuorumPercent:       50,
		WinThresholdPercent: 60,
		SeatsAvailable:      1,
		AllowRunoff:         true,
	}
	results := Tally(input)

	if !results.RunoffRequired {
		t.Fatalf("expected runoff, top share is 50%% against 60%% threshold")
	}
	if !reflect.DeepEqual(results.RunoffCandidateIDs, []string{"cand-a", "cand-b"}) {
		t.Fatalf("expected top-two runoff field, got %v", results.RunoffCandidateIDs)
	}
	if len(results.WinnerIDs) != 0 {
		t.Fatalf("expected no winner before the runoff, got %v", results.WinnerIDs)
	}
}

func TestTallyYesNoAbstainsCountTowardQuorumOnly(t *testing.T) {
	// 100 eligible, quorum 30%, 40 ballots at 30 yes / 10 no: quorum passes
	// at 40% turnout and the ratio excludes nothing here, yielding 75% yes.
	ballots := make([]entities.Ballot, 0, 40)
	for i := 0; i < 30; i++ {
		ballots = append(ballots, yesNoBallot(voterID("y", i), entities.ChoiceYes))
	}
	for i := 0; i < 10; i++ {
		ballots = append(ballots, yesNoBallot(voterID("n", i), entities.ChoiceNo))
	}
	results := Tally(Input{
		VoteType:            entities.VoteTypeYesNo,
		Ballots:             ballots,
		EligibleCount:       100,
		QuorumPercent:       30,
		WinThresholdPercent: 50,
	})

	if !results.QuorumMet {
		t.Fatalf("expected quorum met at 40%% turnout")
	}
	if results.YesPercent != 75 {
		t.Fatalf("expected 75%% yes, got %v", results.YesPercent)
	}
	if !results.Passed {
		t.Fatalf("expected measure to pass")
	}
}

func TestTallyYesNoAbstainExcludedFromRatio(t *testing.T) {
	results := Tally(Input{
		VoteType: entities.VoteTypeYesNo,
		Ballots: []entities.Ballot{
			yesNoBallot("v1", entities.ChoiceYes),
			yesNoBallot("v2", entities.ChoiceYes),
			yesNoBallot("v3", entities.ChoiceNo),
			yesNoBallot("v4", entities.ChoiceAbstain),
			yesNoBallot("v5", entities.ChoiceAbstain),
		},
		EligibleCount:       10,
		QuorumPercent:       50,
		WinThresholdPercent: 60,
	})

	if !results.QuorumMet {
		t.Fatalf("abstains must count toward quorum, turnout is 50%%")
	}
	if results.YesPercent < 66.6 || results.YesPercent > 66.7 {
		t.Fatalf("expected yes percent near 66.67, got %v", results.YesPercent)
	}
	if !results.Passed {
		t.Fatalf("expected pass at 66.67%% against 60%% threshold")
	}
}

func TestTallyYesNoAllAbstainNeverPasses(t *testing.T) {
	results := Tally(Input{
		VoteType: entities.VoteTypeYesNo,
		Ballots: []entities.Ballot{
			yesNoBallot("v1", entities.ChoiceAbstain),
			yesNoBallot("v2", entities.ChoiceAbstain),
		},
		EligibleCount:       2,
		QuorumPercent:       50,
		WinThresholdPercent: 0,
	})
	if results.Passed {
		t.Fatalf("zero yes+no ballots must not pass")
	}
}

func TestTallyRankedInstantRunoffRedistribution(t *testing.T) {
	// Candidates A, B, C with ballots [A,B,C]x3, [B,A,C]x2, [C,B,A]x2.
	// First preferences are A=3, B=2, C=2; C is eliminated on the tie and its
	// ballots flow to B, who wins with 4 of 7.
	ballots := []entities.Ballot{
		rankedBallot("v1", "cand-a", "cand-b", "cand-c"),
		rankedBallot("v2", "cand-a", "cand-b", "cand-c"),
		rankedBallot("v3", "cand-a", "cand-b", "cand-c"),
		rankedBallot("v4", "cand-b", "cand-a", "cand-c"),
		rankedBallot("v5", "cand-b", "cand-a", "cand-c"),
		rankedBallot("v6", "cand-c", "cand-b", "cand-a"),
		rankedBallot("v7", "cand-c", "cand-b", "cand-a"),
	}
	results := Tally(Input{
		VoteType:            entities.VoteTypeRanked,
		Ballots:             ballots,
		LiveCandidateIDs:    []string{"cand-a", "cand-b", "cand-c"},
		EligibleCount:       7,
		QuorumPercent:       50,
		WinThresholdPercent: 50,
	})

	if len(results.RankedRounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(results.RankedRounds))
	}
	if results.RankedRounds[0].Eliminated != "cand-c" {
		t.Fatalf("round 1 should eliminate cand-c, got %q", results.RankedRounds[0].Eliminated)
	}
	if !reflect.DeepEqual(results.WinnerIDs, []string{"cand-b"}) {
		t.Fatalf("expected cand-b to win after redistribution, got %v", results.WinnerIDs)
	}
	final := results.Counts
	if len(final) == 0 || final[0].PlayerID != "cand-b" || final[0].Count != 4 {
		t.Fatalf("expected cand-b at 4 in the final round, got %v", final)
	}
}

func TestTallyRankedExtraFirstPreferenceNeverHurtsTheWinner(t *testing.T) {
	// Same ballot set as the redistribution case, where cand-b wins with 4 of
	// 7, then rerun with one extra first-preference ballot for cand-b. The
	// winner must hold and the final-round count must not decrease.
	ballots := []entities.Ballot{
		rankedBallot("v1", "cand-a", "cand-b", "cand-c"),
		rankedBallot("v2", "cand-a", "cand-b", "cand-c"),
		rankedBallot("v3", "cand-a", "cand-b", "cand-c"),
		rankedBallot("v4", "cand-b", "cand-a", "cand-c"),
		rankedBallot("v5", "cand-b", "cand-a", "cand-c"),
		rankedBallot("v6", "cand-c", "cand-b", "cand-a"),
		rankedBallot("v7", "cand-c", "cand-b", "cand-a"),
	}
	input := Input{
		VoteType:            entities.VoteTypeRanked,
		Ballots:             ballots,
		LiveCandidateIDs:    []string{"cand-a", "cand-b", "cand-c"},
		EligibleCount:       8,
		QuorumPercent:       50,
		WinThresholdPercent: 50,
	}
	base := Tally(input)
	if !reflect.DeepEqual(base.WinnerIDs, []string{"cand-b"}) {
		t.Fatalf("expected cand-b as the baseline winner, got %v", base.WinnerIDs)
	}

	boosted := input
	boosted.Ballots = append(append([]entities.Ballot(nil), ballots...),
		rankedBallot("v8", "cand-b", "cand-a", "cand-c"))
	again := Tally(boosted)
	if !reflect.DeepEqual(again.WinnerIDs, []string{"cand-b"}) {
		t.Fatalf("an extra first preference for the winner must not change the outcome, got %v", again.WinnerIDs)
	}
	if finalRoundCount(t, again, "cand-b") < finalRoundCount(t, base, "cand-b") {
		t.Fatalf("the winner's final-round count must not decrease: %v -> %v", base.Counts, again.Counts)
	}
}

func finalRoundCount(t *testing.T, results entities.Results, playerID string) float64 {
	t.Helper()
	for _, line := range results.Counts {
		if line.PlayerID == playerID {
			return line.Count
		}
	}
	t.Fatalf("candidate %s missing from the final round: %v", playerID, results.Counts)
	return 0
}

func TestTallyRankedExhaustedBallotsLeaveActivePool(t *testing.T) {
	ballots := []entities.Ballot{
		rankedBallot("v1", "cand-a", "cand-b"),
		rankedBallot("v2", "cand-a", "cand-b"),
		rankedBallot("v3", "cand-b", "cand-a"),
		rankedBallot("v4", "cand-c"),
	}
	results := Tally(Input{
		VoteType:            entities.VoteTypeRanked,
		Ballots:             ballots,
		LiveCandidateIDs:    []string{"cand-a", "cand-b", "cand-c"},
		EligibleCount:       4,
		QuorumPercent:       0,
		WinThresholdPercent: 50,
	})

	if !reflect.DeepEqual(results.WinnerIDs, []string{"cand-a"}) {
		t.Fatalf("expected cand-a to win, got %v", results.WinnerIDs)
	}
	last := results.RankedRounds[len(results.RankedRounds)-1]
	if last.Exhausted == 0 {
		t.Fatalf("expected the cand-c only ballot to exhaust after elimination")
	}
}

func TestTallyApprovalMultiSeat(t *testing.T) {
	ballots := []entities.Ballot{
		{VoterID: "v1", Weight: 1, Approved: []string{"cand-a", "cand-b"}},
		{VoterID: "v2", Weight: 1, Approved: []string{"cand-a", "cand-c"}},
		{VoterID: "v3", Weight: 1, Approved: []string{"cand-b"}},
		{VoterID: "v4", Weight: 1, Approved: []string{"cand-a"}},
	}
	results := Tally(Input{
		VoteType:         entities.VoteTypeApproval,
		Ballots:          ballots,
		LiveCandidateIDs: []string{"cand-a", "cand-b", "cand-c", "cand-d"},
		EligibleCount:    4,
		QuorumPercent:    50,
		SeatsAvailable:   2,
	})

	if !reflect.DeepEqual(results.WinnerIDs, []string{"cand-a", "cand-b"}) {
		t.Fatalf("expected cand-a and cand-b to take the seats, got %v", results.WinnerIDs)
	}
	if results.TieBroken {
		t.Fatalf("no boundary tie here, counts are 3/2/1/0")
	}
}

func TestTallyApprovalSeatBoundaryTieFlagged(t *testing.T) {
	ballots := []entities.Ballot{
		{VoterID: "v1", Weight: 1, Approved: []string{"cand-a"}},
		{VoterID: "v2", Weight: 1, Approved: []string{"cand-b"}},
		{VoterID: "v3", Weight: 1, Approved: []string{"cand-c"}},
	}
	results := Tally(Input{
		VoteType:         entities.VoteTypeApproval,
		Ballots:          ballots,
		LiveCandidateIDs: []string{"cand-a", "cand-b", "cand-c"},
		EligibleCount:    3,
		QuorumPercent:    0,
		SeatsAvailable:   2,
	})

	if !results.TieBroken {
		t.Fatalf("expected boundary tie flag when all counts are equal")
	}
	if !reflect.DeepEqual(results.WinnerIDs, []string{"cand-a", "cand-b"}) {
		t.Fatalf("expected lowest-ID seat fill, got %v", results.WinnerIDs)
	}
}

func TestTallyWeightedBallots(t *testing.T) {
	results := Tally(Input{
		VoteType: entities.VoteTypeSingle,
		Ballots: []entities.Ballot{
			{VoterID: "v1", Weight: 3, Choice: "cand-b"},
			{VoterID: "v2", Weight: 1, Choice: "cand-a"},
			{VoterID: "v3", Weight: 1, Choice: "cand-a"},
		},
		LiveCandidateIDs:    []string{"cand-a", "cand-b"},
		EligibleCount:       3,
		QuorumPercent:       50,
		WinThresholdPercent: 50,
		SeatsAvailable:      1,
	})

	if !reflect.DeepEqual(results.WinnerIDs, []string{"cand-b"}) {
		t.Fatalf("expected weight 3 ballot to carry cand-b, got %v", results.WinnerIDs)
	}
	if results.Counts[0].Count != 3 {
		t.Fatalf("expected weighted count 3, got %v", results.Counts[0].Count)
	}
}

func TestTallyDeterministicOverSameBallots(t *testing.T) {
	input := Input{
		VoteType: entities.VoteTypeRanked,
		Ballots: []entities.Ballot{
			rankedBallot("v1", "cand-b", "cand-a", "cand-c"),
			rankedBallot("v2", "cand-a", "cand-c", "cand-b"),
			rankedBallot("v3", "cand-c", "cand-b", "cand-a"),
			rankedBallot("v4", "cand-a", "cand-b", "cand-c"),
			rankedBallot("v5", "cand-b", "cand-c", "cand-a"),
		},
		LiveCandidateIDs:    []string{"cand-a", "cand-b", "cand-c"},
		EligibleCount:       5,
		QuorumPercent:       50,
		WinThresholdPercent: 50,
	}
	first := Tally(input)
	for i := 0; i < 20; i++ {
		if again := Tally(input); !reflect.DeepEqual(first, again) {
			t.Fatalf("tally is not deterministic: run %d differs", i)
		}
	}
}

func TestTallyIgnoresVotesForWithdrawnCandidates(t *testing.T) {
	results := Tally(Input{
		VoteType: entities.VoteTypeSingle,
		Ballots: []entities.Ballot{
			singleBallot("v1", "cand-gone"),
			singleBallot("v2", "cand-a"),
		},
		LiveCandidateIDs:    []string{"cand-a"},
		EligibleCount:       2,
		QuorumPercent:       0,
		WinThresholdPercent: 0,
		SeatsAvailable:      1,
	})

	for _, line := range results.Counts {
		if line.PlayerID == "cand-gone" {
			t.Fatalf("withdrawn candidate must not appear in counts")
		}
	}
	if !reflect.DeepEqual(results.WinnerIDs, []string{"cand-a"}) {
		t.Fatalf("expected cand-a, got %v", results.WinnerIDs)
	}
}

func voterID(prefix string, i int) string {
	return prefix + "-" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26))
}
