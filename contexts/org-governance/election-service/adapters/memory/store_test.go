package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"simgov/contexts/org-governance/election-service/domain/entities"
	domainerrors "simgov/contexts/org-governance/election-service/domain/errors"
)

func TestAppendBallotConcurrentDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewStore([]entities.Election{{
		ElectionID: "election-1",
		Status:     entities.ElectionStatusVoting,
	}})

	const attempts = 64
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AppendBallot(ctx, "election-1", entities.Ballot{
				VoterID: "player-1",
				Weight:  1,
				Choice:  "cand-a",
				CastAt:  time.Now().UTC(),
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, domainerrors.ErrAlreadyVoted) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning append, got %d", wins)
	}

	election, err := store.GetElection(ctx, "election-1")
	if err != nil {
		t.Fatalf("get election failed: %v", err)
	}
	if len(election.Ballots) != 1 || len(election.VotedIDs) != 1 {
		t.Fatalf("expected one ballot and one voted id, got %d/%d", len(election.Ballots), len(election.VotedIDs))
	}
}

func TestTransitionElectionCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewStore([]entities.Election{{
		ElectionID: "election-1",
		Status:     entities.ElectionStatusCounting,
	}})

	const attempts = 16
	var wg sync.WaitGroup
	applications := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, applied, err := store.TransitionElection(ctx, "election-1", entities.ElectionStatusCounting, func(e *entities.Election) {
				e.Status = entities.ElectionStatusCompleted
			})
			if err != nil {
				t.Errorf("transition failed: %v", err)
				return
			}
			applications <- applied
		}()
	}
	wg.Wait()
	close(applications)

	wins := 0
	for applied := range applications {
		if applied {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one applied transition, got %d", wins)
	}
}

func TestClonedAggregatesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewStore([]entities.Election{{
		ElectionID: "election-1",
		Status:     entities.ElectionStatusVoting,
		Candidates: []entities.Candidate{{PlayerID: "cand-a"}},
	}})

	election, err := store.GetElection(ctx, "election-1")
	if err != nil {
		t.Fatalf("get election failed: %v", err)
	}
	election.Candidates[0].PlayerID = "mutated"
	election.EligibleVoterIDs = append(election.EligibleVoterIDs, "sneaky")

	fresh, err := store.GetElection(ctx, "election-1")
	if err != nil {
		t.Fatalf("get election failed: %v", err)
	}
	if fresh.Candidates[0].PlayerID != "cand-a" || len(fresh.EligibleVoterIDs) != 0 {
		t.Fatalf("stored aggregate was mutated through a returned copy")
	}
}
