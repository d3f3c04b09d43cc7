package memory

import (
	"context"
	"sync"
	"testing"

	"simgov/contexts/org-governance/proposal-service/domain/entities"
)

func TestTransitionProposalCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewStore([]entities.Proposal{{
		ProposalID: "proposal-1",
		Status:     entities.ProposalStatusVoting,
	}})

	const attempts = 16
	var wg sync.WaitGroup
	applications := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, applied, err := store.TransitionProposal(ctx, "proposal-1", entities.ProposalStatusVoting, func(p *entities.Proposal) {
				p.Status = entities.ProposalStatusPassed
				p.Tally.Tallied = true
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

func TestClonedProposalsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewStore([]entities.Proposal{{
		ProposalID: "proposal-1",
		Status:     entities.ProposalStatusDebate,
		Amendments: []entities.Amendment{{AmendmentID: "amendment-1", Status: entities.AmendmentOpen}},
	}})

	proposal, err := store.GetProposal(ctx, "proposal-1")
	if err != nil {
		t.Fatalf("get proposal failed: %v", err)
	}
	proposal.Amendments[0].Status = entities.AmendmentAccepted
	proposal.Sponsors = append(proposal.Sponsors, "sneaky")

	fresh, err := store.GetProposal(ctx, "proposal-1")
	if err != nil {
		t.Fatalf("get proposal failed: %v", err)
	}
	if fresh.Amendments[0].Status != entities.AmendmentOpen || len(fresh.Sponsors) != 0 {
		t.Fatalf("stored aggregate was mutated through a returned copy")
	}
}
