package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"simgov/contexts/org-governance/proposal-service/adapters/memory"
	"simgov/contexts/org-governance/proposal-service/domain/entities"
	"simgov/contexts/org-governance/proposal-service/ports"
)

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (g *sequenceIDs) NewID(_ context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%04d", g.next), nil
}

type failingDirectory struct{}

func (failingDirectory) GetMember(context.Context, string, string) (ports.MemberFact, error) {
	return ports.MemberFact{}, errors.New("directory unavailable")
}

func (failingDirectory) ListMembers(context.Context, string) ([]ports.MemberFact, error) {
	return nil, errors.New("directory unavailable")
}

func newSchedulerFixture(t *testing.T) (PhaseScheduler, *memory.Store, *fixedClock) {
	t.Helper()
	store := memory.NewStore(nil)
	clock := &fixedClock{now: testNow}
	scheduler := PhaseScheduler{
		Proposals: store,
		Directory: store,
		Outbox:    store,
		Clock:     clock,
		IDGen:     &sequenceIDs{},
	}
	store.SetMember("org-1", ports.MemberFact{PlayerID: "player-1", Member: true, Standing: 80, TenureDays: 400, VoteWeight: 1})
	store.SetMember("org-1", ports.MemberFact{PlayerID: "player-2", Member: true, Standing: 60, TenureDays: 200, VoteWeight: 1})
	store.SetMember("org-1", ports.MemberFact{PlayerID: "player-3", Member: true, Standing: 5, TenureDays: 10, VoteWeight: 1})
	store.SetMember("org-1", ports.MemberFact{PlayerID: "player-4", Member: false, Standing: 90, TenureDays: 900, VoteWeight: 1})
	return scheduler, store, clock
}

func seedProposal(t *testing.T, store *memory.Store, mutate func(*entities.Proposal)) entities.Proposal {
	t.Helper()
	proposal := entities.Proposal{
		ProposalID:           "proposal-1",
		OrganizationID:       "org-1",
		AuthorID:             "player-1",
		Title:                "Reserve the treasury surplus",
		Category:             entities.CategoryBudget,
		Status:               entities.ProposalStatusSubmitted,
		Sponsors:             []string{"player-1", "player-2"},
		MinSponsorsRequired:  2,
		DebateStart:          testNow.Add(time.Hour),
		DebateEnd:            testNow.Add(24 * time.Hour),
		VotingEnd:            testNow.Add(48 * time.Hour),
		ExpiresAt:            testNow.Add(14 * 24 * time.Hour),
		QuorumPercent:        50,
		PassThresholdPercent: 50,
		CreatedAt:            testNow.Add(-24 * time.Hour),
		UpdatedAt:            testNow.Add(-24 * time.Hour),
	}
	if mutate != nil {
		mutate(&proposal)
	}
	if err := store.SaveProposal(context.Background(), proposal); err != nil {
		t.Fatalf("seed proposal failed: %v", err)
	}
	return proposal
}

func TestSchedulerOpensDebateAtStart(t *testing.T) {
	scheduler, store, clock := newSchedulerFixture(t)
	ctx := context.Background()

	seedProposal(t, store, nil)

	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	proposal, _ := store.GetProposal(ctx, "proposal-1")
	if proposal.Status != entities.ProposalStatusSubmitted {
		t.Fatalf("before debate start the proposal must stay submitted, got %s", proposal.Status)
	}

	clock.now = testNow.Add(time.Hour)
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	proposal, _ = store.GetProposal(ctx, "proposal-1")
	if proposal.Status != entities.ProposalStatusDebate {
		t.Fatalf("expected debate at start instant, got %s", proposal.Status)
	}
}

func TestSchedulerSnapshotsMembersAtDebateClose(t *testing.T) {
	scheduler, store, _ := newSchedulerFixture(t)
	ctx := context.Background()

	seedProposal(t, store, func(p *entities.Proposal) {
		p.Status = entities.ProposalStatusDebate
		p.DebateStart = testNow.Add(-24 * time.Hour)
		p.DebateEnd = testNow.Add(-time.Hour)
		p.VotingEnd = testNow.Add(24 * time.Hour)
	})

	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	proposal, _ := store.GetProposal(ctx, "proposal-1")
	if proposal.Status != entities.ProposalStatusVoting {
		t.Fatalf("expected voting, got %s", proposal.Status)
	}
	// player-4 is not a member; low standing and tenure still count here.
	if len(proposal.EligibleVoterIDs) != 3 {
		t.Fatalf("expected all 3 members in the snapshot, got %v", proposal.EligibleVoterIDs)
	}
}

func TestSchedulerDirectoryFailureIsEntityLocal(t *testing.T) {
	scheduler, store, _ := newSchedulerFixture(t)
	scheduler.Directory = failingDirectory{}
	ctx := context.Background()

	seedProposal(t, store, func(p *entities.Proposal) {
		p.Status = entities.ProposalStatusDebate
		p.DebateStart = testNow.Add(-24 * time.Hour)
		p.DebateEnd = testNow.Add(-time.Hour)
	})

	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("sweep must not fail on one entity: %v", err)
	}
	proposal, _ := store.GetProposal(ctx, "proposal-1")
	if proposal.Status != entities.ProposalStatusDebate {
		t.Fatalf("expected proposal untouched for retry, got %s", proposal.Status)
	}
}

func TestSchedulerSettlesPassAndFail(t *testing.T) {
	scheduler, store, clock := newSchedulerFixture(t)
	ctx := context.Background()

	seedProposal(t, store, func(p *entities.Proposal) {
		p.Status = entities.ProposalStatusVoting
		p.DebateStart = testNow.Add(-48 * time.Hour)
		p.DebateEnd = testNow.Add(-24 * time.Hour)
		p.VotingEnd = testNow.Add(time.Hour)
		p.EligibleVoterIDs = []string{"player-1", "player-2", "player-3"}
		p.Votes = []entities.Vote{
			{VoterID: "player-1", Choice: entities.VoteYes, Weight: 1},
			{VoterID: "player-2", Choice: entities.VoteYes, Weight: 1},
			{VoterID: "player-3", Choice: entities.VoteNo, Weight: 1},
		}
	})
	seedProposal(t, store, func(p *entities.Proposal) {
		p.ProposalID = "proposal-2"
		p.Status = entities.ProposalStatusVoting
		p.DebateStart = testNow.Add(-48 * time.Hour)
		p.DebateEnd = testNow.Add(-24 * time.Hour)
		p.VotingEnd = testNow.Add(time.Hour)
		p.EligibleVoterIDs = []string{"player-1", "player-2", "player-3"}
		p.Votes = []entities.Vote{
			{VoterID: "player-1", Choice: entities.VoteNo, Weight: 1},
			{VoterID: "player-2", Choice: entities.VoteNo, Weight: 1},
			{VoterID: "player-3", Choice: entities.VoteYes, Weight: 1},
		}
	})

	clock.now = testNow.Add(2 * time.Hour)
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	passed, _ := store.GetProposal(ctx, "proposal-1")
	if passed.Status != entities.ProposalStatusPassed {
		t.Fatalf("expected passed, got %s", passed.Status)
	}
	if !passed.Tally.Tallied || !passed.Tally.QuorumMet {
		t.Fatalf("expected a recorded tally with quorum met, got %+v", passed.Tally)
	}
	if !passed.Tally.ComputedAt.Equal(clock.now) {
		t.Fatalf("expected computed-at stamped with sweep time")
	}

	failed, _ := store.GetProposal(ctx, "proposal-2")
	if failed.Status != entities.ProposalStatusFailed {
		t.Fatalf("expected failed below the pass threshold, got %s", failed.Status)
	}
	if !failed.Tally.Tallied {
		t.Fatalf("a failed proposal still records its tally")
	}
}

func TestSchedulerQuorumMissFailsWithoutError(t *testing.T) {
	scheduler, store, clock := newSchedulerFixture(t)
	ctx := context.Background()

	seedProposal(t, store, func(p *entities.Proposal) {
		p.Status = entities.ProposalStatusVoting
		p.VotingEnd = testNow.Add(time.Hour)
		p.EligibleVoterIDs = []string{"player-1", "player-2", "player-3"}
		p.Votes = []entities.Vote{{VoterID: "player-1", Choice: entities.VoteYes, Weight: 1}}
	})

	clock.now = testNow.Add(2 * time.Hour)
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("a quorum miss is a result, not an error: %v", err)
	}
	proposal, _ := store.GetProposal(ctx, "proposal-1")
	if proposal.Status != entities.ProposalStatusFailed {
		t.Fatalf("expected failed on quorum miss, got %s", proposal.Status)
	}
	if proposal.Tally.QuorumMet {
		t.Fatalf("expected quorum marked unmet")
	}
	if proposal.Tally.Yes != 1 {
		t.Fatalf("counts are still reported on a quorum miss, got %+v", proposal.Tally)
	}
}

func TestSchedulerTalliesExactlyOnceUnderRepeatedTicks(t *testing.T) {
	scheduler, store, clock := newSchedulerFixture(t)
	ctx := context.Background()

	seedProposal(t, store, func(p *entities.Proposal) {
		p.Status = entities.ProposalStatusVoting
		p.VotingEnd = testNow.Add(time.Hour)
		p.EligibleVoterIDs = []string{"player-1", "player-2"}
		p.Votes = []entities.Vote{
			{VoterID: "player-1", Choice: entities.VoteYes, Weight: 1},
			{VoterID: "player-2", Choice: entities.VoteYes, Weight: 1},
		}
	})

	clock.now = testNow.Add(2 * time.Hour)
	for i := 0; i < 5; i++ {
		if err := scheduler.RunOnce(ctx); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
	}

	proposal, _ := store.GetProposal(ctx, "proposal-1")
	if proposal.Status != entities.ProposalStatusPassed {
		t.Fatalf("expected passed, got %s", proposal.Status)
	}
	firstComputedAt := proposal.Tally.ComputedAt

	clock.now = clock.now.Add(time.Hour)
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("extra run failed: %v", err)
	}
	proposal, _ = store.GetProposal(ctx, "proposal-1")
	if !proposal.Tally.ComputedAt.Equal(firstComputedAt) {
		t.Fatalf("tally must be computed exactly once")
	}
}

func TestSchedulerResolvesAmendmentsAtVotingExit(t *testing.T) {
	scheduler, store, clock := newSchedulerFixture(t)
	ctx := context.Background()

	seedProposal(t, store, func(p *entities.Proposal) {
		p.Status = entities.ProposalStatusVoting
		p.VotingEnd = testNow.Add(time.Hour)
		p.EligibleVoterIDs = []string{"player-1", "player-2"}
		p.Votes = []entities.Vote{
			{VoterID: "player-1", Choice: entities.VoteYes, Weight: 1},
			{VoterID: "player-2", Choice: entities.VoteYes, Weight: 1},
		}
		p.Amendments = []entities.Amendment{
			{AmendmentID: "amendment-1", AuthorID: "player-2", Text: "Raise to 25%", VotesFor: 2, VotesAgainst: 1, Status: entities.AmendmentOpen},
			{AmendmentID: "amendment-2", AuthorID: "player-3", Text: "Drop to 10%", VotesFor: 1, VotesAgainst: 1, Status: entities.AmendmentOpen},
		}
	})

	clock.now = testNow.Add(2 * time.Hour)
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	proposal, _ := store.GetProposal(ctx, "proposal-1")
	first, ok := proposal.AmendmentByID("amendment-1")
	if !ok || proposal.Amendments[first].Status != entities.AmendmentAccepted {
		t.Fatalf("expected the majority amendment accepted, got %+v", proposal.Amendments)
	}
	second, ok := proposal.AmendmentByID("amendment-2")
	if !ok || proposal.Amendments[second].Status != entities.AmendmentRejected {
		t.Fatalf("expected the tied amendment rejected, got %+v", proposal.Amendments)
	}
}

func TestSchedulerExpiresStaleDrafts(t *testing.T) {
	scheduler, store, clock := newSchedulerFixture(t)
	ctx := context.Background()

	seedProposal(t, store, func(p *entities.Proposal) {
		p.Status = entities.ProposalStatusDraft
		p.ExpiresAt = testNow.Add(time.Hour)
	})
	seedProposal(t, store, func(p *entities.Proposal) {
		p.ProposalID = "proposal-2"
		p.DebateStart = testNow.Add(48 * time.Hour)
		p.DebateEnd = testNow.Add(72 * time.Hour)
		p.VotingEnd = testNow.Add(96 * time.Hour)
		p.ExpiresAt = testNow.Add(time.Hour)
	})

	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	draft, _ := store.GetProposal(ctx, "proposal-1")
	if draft.Status != entities.ProposalStatusDraft {
		t.Fatalf("draft must stay put before expiry, got %s", draft.Status)
	}

	clock.now = testNow.Add(time.Hour)
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	draft, _ = store.GetProposal(ctx, "proposal-1")
	if draft.Status != entities.ProposalStatusExpired {
		t.Fatalf("expected stale draft expired, got %s", draft.Status)
	}
	submitted, _ := store.GetProposal(ctx, "proposal-2")
	if submitted.Status != entities.ProposalStatusExpired {
		t.Fatalf("expected stale submission expired, got %s", submitted.Status)
	}
}

func TestSchedulerIgnoresWithdrawnProposals(t *testing.T) {
	scheduler, store, clock := newSchedulerFixture(t)
	ctx := context.Background()

	seedProposal(t, store, func(p *entities.Proposal) {
		p.Status = entities.ProposalStatusWithdrawn
		p.ExpiresAt = testNow.Add(-time.Hour)
	})

	clock.now = testNow.Add(72 * time.Hour)
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	proposal, _ := store.GetProposal(ctx, "proposal-1")
	if proposal.Status != entities.ProposalStatusWithdrawn {
		t.Fatalf("a withdrawn proposal is terminal, got %s", proposal.Status)
	}
}
