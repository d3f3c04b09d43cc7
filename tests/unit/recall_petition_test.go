package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	electionservice "simgov/contexts/org-governance/election-service"
	domainerrors "simgov/contexts/org-governance/election-service/domain/errors"
	"simgov/contexts/org-governance/election-service/ports"
	httptransport "simgov/contexts/org-governance/election-service/transport/http"
)

func TestPetitionThresholdSpawnsExactlyOneRecallElection(t *testing.T) {
	module := electionservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, playerID := range []string{"leader-1", "member-1", "member-2", "member-3", "member-4"} {
		module.Store.SetMember("org-1", ports.MemberFact{PlayerID: playerID, Member: true, Standing: 70, TenureDays: 300, VoteWeight: 1})
	}

	petition, err := module.Handler.CreatePetitionHandler(ctx, "member-1", httptransport.CreatePetitionRequest{
		OrganizationID:      "org-1",
		TargetPlayerID:      "leader-1",
		Position:            "guild-leader",
		Reason:              "Missed three consecutive war councils.",
		SignaturesRequired:  3,
		ExpiresAt:           now.Add(48 * time.Hour).Format(time.RFC3339),
		VotingWindowHours:   24,
		QuorumPercent:       50,
		WinThresholdPercent: 50,
	})
	if err != nil {
		t.Fatalf("create petition failed: %v", err)
	}
	if petition.SignatureCount != 1 {
		t.Fatalf("the initiator is the first signature, got %d", petition.SignatureCount)
	}

	first, err := module.Handler.SignPetitionHandler(ctx, petition.PetitionID, "member-2")
	if err != nil {
		t.Fatalf("first signature failed: %v", err)
	}
	if first.Status != "open" {
		t.Fatalf("petition must stay open below the threshold, got %s", first.Status)
	}

	second, err := module.Handler.SignPetitionHandler(ctx, petition.PetitionID, "member-3")
	if err != nil {
		t.Fatalf("threshold signature failed: %v", err)
	}
	if second.Status != "succeeded" {
		t.Fatalf("expected succeeded petition, got %s", second.Status)
	}
	if second.ElectionID == "" {
		t.Fatalf("expected the recall election linked on the petition")
	}

	elections, err := module.Handler.ListElectionsHandler(ctx, "org-1")
	if err != nil {
		t.Fatalf("list elections failed: %v", err)
	}
	if len(elections.Items) != 1 {
		t.Fatalf("expected exactly one spawned election, got %d", len(elections.Items))
	}
	recall := elections.Items[0]
	if recall.ElectionType != "recall" || recall.VoteType != "yes_no" {
		t.Fatalf("expected a yes/no recall election, got type=%s vote_type=%s", recall.ElectionType, recall.VoteType)
	}
	if recall.TargetPlayerID != "leader-1" {
		t.Fatalf("expected the recall to target leader-1, got %s", recall.TargetPlayerID)
	}
	if recall.Status != "voting" {
		t.Fatalf("recall opens directly in voting, got %s", recall.Status)
	}

	if _, err := module.Handler.SignPetitionHandler(ctx, petition.PetitionID, "member-4"); !errors.Is(err, domainerrors.ErrPetitionClosed) {
		t.Fatalf("expected closed petition after success, got %v", err)
	}
}
