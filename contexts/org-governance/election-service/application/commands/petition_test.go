package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"simgov/contexts/org-governance/election-service/adapters/memory"
	"simgov/contexts/org-governance/election-service/domain/entities"
	domainerrors "simgov/contexts/org-governance/election-service/domain/errors"
	"simgov/contexts/org-governance/election-service/ports"
)

func newPetitionFixture(t *testing.T) (PetitionUseCase, *memory.Store, *fixedClock) {
	t.Helper()
	store := memory.NewStore(nil)
	clock := &fixedClock{now: testNow}
	uc := PetitionUseCase{
		Petitions: store,
		Elections: store,
		Directory: store,
		Outbox:    store,
		Clock:     clock,
		IDGen:     &sequenceIDs{},
	}
	for _, playerID := range []string{"player-1", "player-2", "player-3", "player-4"} {
		store.SetMember("org-1", ports.MemberFact{PlayerID: playerID, Member: true, Standing: 50, TenureDays: 100, VoteWeight: 1})
	}
	return uc, store, clock
}

func validPetitionCommand() CreatePetitionCommand {
	return CreatePetitionCommand{
		InitiatorID:         "player-1",
		OrganizationID:      "org-1",
		TargetPlayerID:      "leader-1",
		Position:            "guild-leader",
		Reason:              "inactivity",
		SignaturesRequired:  3,
		ExpiresAt:           testNow.Add(7 * 24 * time.Hour),
		VotingWindow:        48 * time.Hour,
		QuorumPercent:       40,
		WinThresholdPercent: 60,
	}
}

func TestCreatePetitionRecordsInitiatorSignature(t *testing.T) {
	uc, _, _ := newPetitionFixture(t)
	ctx := context.Background()

	petition, err := uc.CreatePetition(ctx, validPetitionCommand())
	if err != nil {
		t.Fatalf("create petition failed: %v", err)
	}
	if petition.Status != entities.PetitionStatusOpen {
		t.Fatalf("expected open petition, got %s", petition.Status)
	}
	if len(petition.Signatures) != 1 || petition.Signatures[0].PlayerID != "player-1" {
		t.Fatalf("expected initiator signature, got %v", petition.Signatures)
	}
}

func TestCreatePetitionValidation(t *testing.T) {
	uc, _, _ := newPetitionFixture(t)
	ctx := context.Background()

	cmd := validPetitionCommand()
	cmd.SignaturesRequired = 0
	if _, err := uc.CreatePetition(ctx, cmd); !errors.Is(err, domainerrors.ErrInvalidPetition) {
		t.Fatalf("expected invalid petition for zero threshold, got %v", err)
	}

	cmd = validPetitionCommand()
	cmd.ExpiresAt = testNow.Add(-time.Hour)
	if _, err := uc.CreatePetition(ctx, cmd); !errors.Is(err, domainerrors.ErrInvalidPetition) {
		t.Fatalf("expected invalid petition for past expiry, got %v", err)
	}

	cmd = validPetitionCommand()
	cmd.InitiatorID = "stranger-1"
	if _, err := uc.CreatePetition(ctx, cmd); !errors.Is(err, domainerrors.ErrNotEligible) {
		t.Fatalf("expected non-member rejection, got %v", err)
	}
}

func TestSignPetitionDedupAndThresholdSpawn(t *testing.T) {
	uc, store, _ := newPetitionFixture(t)
	ctx := context.Background()

	petition, err := uc.CreatePetition(ctx, validPetitionCommand())
	if err != nil {
		t.Fatalf("create petition failed: %v", err)
	}

	if _, err := uc.SignPetition(ctx, petition.PetitionID, "player-1"); !errors.Is(err, domainerrors.ErrAlreadySigned) {
		t.Fatalf("expected duplicate signature rejection for initiator, got %v", err)
	}

	result, err := uc.SignPetition(ctx, petition.PetitionID, "player-2")
	if err != nil {
		t.Fatalf("second signature failed: %v", err)
	}
	if result.Election != nil {
		t.Fatalf("threshold is 3, election must not spawn at 2 signatures")
	}

	result, err = uc.SignPetition(ctx, petition.PetitionID, "player-3")
	if err != nil {
		t.Fatalf("third signature failed: %v", err)
	}
	if result.Petition.Status != entities.PetitionStatusSucceeded {
		t.Fatalf("expected succeeded petition, got %s", result.Petition.Status)
	}
	if result.Election == nil {
		t.Fatalf("expected recall election at threshold")
	}

	election := *result.Election
	if election.VoteType != entities.VoteTypeYesNo || election.ElectionType != entities.ElectionTypeRecall {
		t.Fatalf("expected yes/no recall election, got %s/%s", election.VoteType, election.ElectionType)
	}
	if election.Status != entities.ElectionStatusVoting {
		t.Fatalf("recall election must open directly in voting, got %s", election.Status)
	}
	if election.TargetPlayerID != "leader-1" {
		t.Fatalf("expected recall target leader-1, got %s", election.TargetPlayerID)
	}
	if election.VotingEnd.Sub(election.VotingStart) != 48*time.Hour {
		t.Fatalf("expected the petition voting window, got %s", election.VotingEnd.Sub(election.VotingStart))
	}
	if len(election.EligibleVoterIDs) != 4 {
		t.Fatalf("expected full member snapshot, got %v", election.EligibleVoterIDs)
	}
	if result.Petition.ElectionID != election.ElectionID {
		t.Fatalf("petition must link its recall election")
	}

	// A late signature cannot double-spawn.
	if _, err := uc.SignPetition(ctx, petition.PetitionID, "player-4"); !errors.Is(err, domainerrors.ErrPetitionClosed) {
		t.Fatalf("expected closed petition rejection, got %v", err)
	}
	elections, err := store.ListElectionsByOrganization(ctx, "org-1")
	if err != nil {
		t.Fatalf("list elections failed: %v", err)
	}
	if len(elections) != 1 {
		t.Fatalf("expected exactly one spawned election, got %d", len(elections))
	}
}

func TestWithdrawPetition(t *testing.T) {
	uc, _, _ := newPetitionFixture(t)
	ctx := context.Background()

	petition, err := uc.CreatePetition(ctx, validPetitionCommand())
	if err != nil {
		t.Fatalf("create petition failed: %v", err)
	}
	if err := uc.WithdrawPetition(ctx, petition.PetitionID); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if err := uc.WithdrawPetition(ctx, petition.PetitionID); !errors.Is(err, domainerrors.ErrPetitionClosed) {
		t.Fatalf("expected closed rejection on second withdraw, got %v", err)
	}
	if _, err := uc.SignPetition(ctx, petition.PetitionID, "player-2"); !errors.Is(err, domainerrors.ErrPetitionClosed) {
		t.Fatalf("expected closed rejection for signatures, got %v", err)
	}
}
