package unit

import (
	"context"
	"testing"
	"time"

	electionservice "simgov/contexts/org-governance/election-service"
	"simgov/contexts/org-governance/election-service/domain/entities"
	"simgov/contexts/org-governance/election-service/ports"
	httptransport "simgov/contexts/org-governance/election-service/transport/http"
)

func TestElectionCreateIdempotentReplay(t *testing.T) {
	module := electionservice.NewInMemoryModule(nil, nil)
	module.Store.SetMember("org-1", ports.MemberFact{PlayerID: "officer-1", Member: true, Standing: 90, TenureDays: 500, VoteWeight: 1})

	now := time.Now().UTC()
	req := httptransport.CreateElectionRequest{
		OrganizationID:      "org-1",
		ElectionType:        "general",
		Position:            "guild-leader",
		SeatsAvailable:      1,
		VoteType:            "single",
		FilingStart:         now.Add(time.Hour).Format(time.RFC3339),
		FilingEnd:           now.Add(24 * time.Hour).Format(time.RFC3339),
		VotingStart:         now.Add(25 * time.Hour).Format(time.RFC3339),
		VotingEnd:           now.Add(48 * time.Hour).Format(time.RFC3339),
		QuorumPercent:       25,
		WinThresholdPercent: 50,
	}

	first, err := module.Handler.CreateElectionHandler(context.Background(), "officer-1", "idem-election-1", req)
	if err != nil {
		t.Fatalf("create election failed: %v", err)
	}
	second, err := module.Handler.CreateElectionHandler(context.Background(), "officer-1", "idem-election-1", req)
	if err != nil {
		t.Fatalf("replay create failed: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("expected replayed election")
	}
	if first.ElectionID != second.ElectionID {
		t.Fatalf("expected same election id, got %s and %s", first.ElectionID, second.ElectionID)
	}
}

func TestElectionVotingLifecycle(t *testing.T) {
	module := electionservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, playerID := range []string{"voter-1", "voter-2", "voter-3"} {
		module.Store.SetMember("org-1", ports.MemberFact{PlayerID: playerID, Member: true, Standing: 70, TenureDays: 300, VoteWeight: 1})
	}

	election := entities.Election{
		ElectionID:          "election-1",
		OrganizationID:      "org-1",
		ElectionType:        entities.ElectionTypeGeneral,
		Position:            "guild-leader",
		SeatsAvailable:      1,
		VoteType:            entities.VoteTypeSingle,
		Status:              entities.ElectionStatusVoting,
		FilingStart:         now.Add(-48 * time.Hour),
		FilingEnd:           now.Add(-24 * time.Hour),
		VotingStart:         now.Add(-23 * time.Hour),
		VotingEnd:           now.Add(time.Hour),
		QuorumPercent:       50,
		WinThresholdPercent: 50,
		Candidates: []entities.Candidate{
			{PlayerID: "voter-1", FiledAt: now.Add(-30 * time.Hour)},
			{PlayerID: "voter-2", FiledAt: now.Add(-29 * time.Hour)},
		},
		EligibleVoterIDs: []string{"voter-1", "voter-2", "voter-3"},
		CreatedAt:        now.Add(-72 * time.Hour),
		UpdatedAt:        now.Add(-24 * time.Hour),
	}
	if err := module.Store.SaveElection(ctx, election); err != nil {
		t.Fatalf("seed election failed: %v", err)
	}

	for voterID, choice := range map[string]string{
		"voter-1": "voter-2",
		"voter-2": "voter-2",
		"voter-3": "voter-1",
	} {
		if _, err := module.Handler.CastBallotHandler(ctx, "election-1", voterID, httptransport.CastBallotRequest{Choice: choice}); err != nil {
			t.Fatalf("cast ballot for %s failed: %v", voterID, err)
		}
	}

	// Close the window and let the sweep count the votes.
	stored, err := module.Store.GetElection(ctx, "election-1")
	if err != nil {
		t.Fatalf("reload election failed: %v", err)
	}
	stored.VotingEnd = now.Add(-time.Minute)
	if err := module.Store.SaveElection(ctx, stored); err != nil {
		t.Fatalf("rewind voting window failed: %v", err)
	}
	if err := module.PhaseScheduler.RunOnce(ctx); err != nil {
		t.Fatalf("scheduler run failed: %v", err)
	}

	results, err := module.Handler.ResultsHandler(ctx, "election-1")
	if err != nil {
		t.Fatalf("results failed: %v", err)
	}
	if !results.QuorumMet {
		t.Fatalf("expected quorum met at full turnout")
	}
	if len(results.WinnerIDs) != 1 || results.WinnerIDs[0] != "voter-2" {
		t.Fatalf("expected voter-2 to win, got %v", results.WinnerIDs)
	}

	turnout, err := module.Handler.TurnoutHandler(ctx, "election-1")
	if err != nil {
		t.Fatalf("turnout failed: %v", err)
	}
	if turnout.BallotCount != 3 || turnout.EligibleCount != 3 {
		t.Fatalf("expected 3 of 3 ballots, got %d of %d", turnout.BallotCount, turnout.EligibleCount)
	}
}
