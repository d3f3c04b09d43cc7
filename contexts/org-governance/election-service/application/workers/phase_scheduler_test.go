package workers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"simgov/contexts/org-governance/election-service/adapters/memory"
	"simgov/contexts/org-governance/election-service/domain/entities"
	"simgov/contexts/org-governance/election-service/ports"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

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
		Elections: store,
		Petitions: store,
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

func seedElection(t *testing.T, store *memory.Store, mutate func(*entities.Election)) entities.Election {
	t.Helper()
	election := entities.Election{
		ElectionID:          "election-1",
		OrganizationID:      "org-1",
		ElectionType:        entities.ElectionTypeGeneral,
		Position:            "guild-leader",
		SeatsAvailable:      1,
		VoteType:            entities.VoteTypeSingle,
		Status:              entities.ElectionStatusScheduled,
		FilingStart:         testNow.Add(-48 * time.Hour),
		FilingEnd:           testNow.Add(-24 * time.Hour),
		VotingStart:         testNow.Add(-23 * time.Hour),
		VotingEnd:           testNow.Add(time.Hour),
		MinStandingToVote:   10,
		MinTenureToVote:     30,
		QuorumPercent:       50,
		WinThresholdPercent: 50,
		CreatedAt:           testNow.Add(-72 * time.Hour),
		UpdatedAt:           testNow.Add(-72 * time.Hour),
	}
	if mutate != nil {
		mutate(&election)
	}
	if err := store.SaveElection(context.Background(), election); err != nil {
		t.Fatalf("seed election failed: %v", err)
	}
	return election
}

func TestSchedulerOpensFilingAtStart(t *testing.T) {
	scheduler, store, clock := newSchedulerFixture(t)
	ctx := context.Background()

	seedElection(t, store, func(e *entities.Election) {
		e.FilingStart = testNow.Add(time.Hour)
		e.FilingEnd = testNow.Add(24 * time.Hour)
		e.VotingStart = testNow.Add(25 * time.Hour)
		e.VotingEnd = testNow.Add(48 * time.Hour)
	})

	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	election, _ := store.GetElection(ctx, "election-1")
	if election.Status != entities.ElectionStatusScheduled {
		t.Fatalf("before filing start the election must stay scheduled, got %s", election.Status)
	}

	clock.now = testNow.Add(time.Hour)
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	election, _ = store.GetElection(ctx, "election-1")
	if election.Status != entities.ElectionStatusFiling {
		t.Fatalf("expected filing at start instant, got %s", election.Status)
	}
}

func TestSchedulerCancelsUnopposedSingleSeat(t *testing.T) {
	scheduler, store, _ := newSchedulerFixture(t)
	ctx := context.Background()

	seedElection(t, store, func(e *entities.Election) {
		e.Status = entities.ElectionStatusFiling
		e.Candidates = []entities.Candidate{{PlayerID: "player-1", FiledAt: testNow.Add(-30 * time.Hour)}}
	})

	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	election, _ := store.GetElection(ctx, "election-1")
	if election.Status != entities.ElectionStatusCancelled {
		t.Fatalf("expected unopposed cancellation, got %s", election.Status)
	}
}

func TestSchedulerCancelsZeroCandidateRaceRegardlessOfSeats(t *testing.T) {
	scheduler, store, _ := newSchedulerFixture(t)
	ctx := context.Background()

	seedElection(t, store, func(e *entities.Election) {
		e.Status = entities.ElectionStatusFiling
		e.SeatsAvailable = 2
		e.VoteType = entities.VoteTypeApproval
	})
	seedElection(t, store, func(e *entities.Election) {
		e.ElectionID = "election-2"
		e.Status = entities.ElectionStatusFiling
		e.SeatsAvailable = 2
		e.VoteType = entities.VoteTypeApproval
		e.Candidates = []entities.Candidate{{PlayerID: "player-1", FiledAt: testNow.Add(-30 * time.Hour)}}
	})

	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	empty, _ := store.GetElection(ctx, "election-1")
	if empty.Status != entities.ElectionStatusCancelled {
		t.Fatalf("a multi-seat race with no candidates must cancel, got %s", empty.Status)
	}
	contested, _ := store.GetElection(ctx, "election-2")
	if contested.Status != entities.ElectionStatusVoting {
		t.Fatalf("a multi-seat race with one candidate still opens voting, got %s", contested.Status)
	}
}

func TestSchedulerSnapshotsEligibleVotersAtVotingOpen(t *testing.T) {
	scheduler, store, _ := newSchedulerFixture(t)
	ctx := context.Background()

	seedElection(t, store, func(e *entities.Election) {
		e.Status = entities.ElectionStatusFiling
		e.Candidates = []entities.Candidate{
			{PlayerID: "player-1", FiledAt: testNow.Add(-30 * time.Hour)},
			{PlayerID: "player-2", FiledAt: testNow.Add(-29 * time.Hour)},
		}
	})

	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	election, _ := store.GetElection(ctx, "election-1")
	if election.Status != entities.ElectionStatusVoting {
		t.Fatalf("expected voting, got %s", election.Status)
	}
	// player-3 misses standing/tenure and player-4 is not a member.
	if len(election.EligibleVoterIDs) != 2 {
		t.Fatalf("expected 2 snapshot entries, got %v", election.EligibleVoterIDs)
	}
}

func TestSchedulerDirectoryFailureIsEntityLocal(t *testing.T) {
	scheduler, store, _ := newSchedulerFixture(t)
	scheduler.Directory = failingDirectory{}
	ctx := context.Background()

	seedElection(t, store, func(e *entities.Election) {
		e.Status = entities.ElectionStatusFiling
		e.Candidates = []entities.Candidate{
			{PlayerID: "player-1", FiledAt: testNow.Add(-30 * time.Hour)},
			{PlayerID: "player-2", FiledAt: testNow.Add(-29 * time.Hour)},
		}
	})

	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("sweep must not fail on one entity: %v", err)
	}
	election, _ := store.GetElection(ctx, "election-1")
	if election.Status != entities.ElectionStatusFiling {
		t.Fatalf("expected election untouched for retry, got %s", election.Status)
	}
}

func TestSchedulerCountsAndCompletes(t *testing.T) {
	scheduler, store, clock := newSchedulerFixture(t)
	ctx := context.Background()

	seedElection(t, store, func(e *entities.Election) {
		e.Status = entities.ElectionStatusVoting
		e.Candidates = []entities.Candidate{
			{PlayerID: "player-1"},
			{PlayerID: "player-2"},
		}
		e.EligibleVoterIDs = []string{"player-1", "player-2"}
		e.VotedIDs = []string{"player-1", "player-2"}
		e.Ballots = []entities.Ballot{
			{VoterID: "player-1", Weight: 1, Choice: "player-2"},
			{VoterID: "player-2", Weight: 1, Choice: "player-2"},
		}
	})

	clock.now = testNow.Add(2 * time.Hour)
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	election, _ := store.GetElection(ctx, "election-1")
	if election.Status != entities.ElectionStatusCompleted {
		t.Fatalf("expected completed, got %s", election.Status)
	}
	if election.Results == nil {
		t.Fatalf("expected results recorded at counting")
	}
	if len(election.Results.WinnerIDs) != 1 || election.Results.WinnerIDs[0] != "player-2" {
		t.Fatalf("expected player-2 to win, got %v", election.Results.WinnerIDs)
	}
	if !election.Results.ComputedAt.Equal(clock.now) {
		t.Fatalf("expected computed-at stamped with sweep time")
	}
}

func TestSchedulerSpawnsRunoffChild(t *testing.T) {
	scheduler, store, clock := newSchedulerFixture(t)
	ctx := context.Background()

	parent := seedElection(t, store, func(e *entities.Election) {
		e.Status = entities.ElectionStatusVoting
		e.AllowRunoff = true
		e.Candidates = []entities.Candidate{
			{PlayerID: "player-1"},
			{PlayerID: "player-2"},
		}
		e.EligibleVoterIDs = []string{"player-1", "player-2"}
		e.VotedIDs = []string{"player-1", "player-2"}
		e.Ballots = []entities.Ballot{
			{VoterID: "player-1", Weight: 1, Choice: "player-1"},
			{VoterID: "player-2", Weight: 1, Choice: "player-2"},
		}
	})

	clock.now = testNow.Add(2 * time.Hour)
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	updated, _ := store.GetElection(ctx, parent.ElectionID)
	if updated.Status != entities.ElectionStatusRunoff {
		t.Fatalf("expected runoff status on the parent, got %s", updated.Status)
	}

	elections, _ := store.ListElectionsByOrganization(ctx, "org-1")
	if len(elections) != 2 {
		t.Fatalf("expected the runoff child to exist, got %d elections", len(elections))
	}
	var child entities.Election
	for _, e := range elections {
		if e.ElectionID != parent.ElectionID {
			child = e
		}
	}
	if child.ParentElectionID != parent.ElectionID {
		t.Fatalf("child must link its parent")
	}
	if child.Status != entities.ElectionStatusVoting {
		t.Fatalf("runoff child opens directly in voting, got %s", child.Status)
	}
	if len(child.Candidates) != 2 {
		t.Fatalf("runoff scoped to the tied candidates, got %v", child.Candidates)
	}
	if child.VotingEnd.Sub(child.VotingStart) != parent.VotingEnd.Sub(parent.VotingStart) {
		t.Fatalf("runoff window must match the parent voting duration")
	}
	if len(child.EligibleVoterIDs) != len(parent.EligibleVoterIDs) {
		t.Fatalf("runoff inherits the parent snapshot")
	}
	if updated.Results == nil || updated.Results.RunoffElectionID != child.ElectionID {
		t.Fatalf("parent results must record the child election ID")
	}
}

func TestSchedulerRunoffSpawnOnlyAfterParentCommitWins(t *testing.T) {
	scheduler, store, _ := newSchedulerFixture(t)
	ctx := context.Background()

	counting := seedElection(t, store, func(e *entities.Election) {
		e.Status = entities.ElectionStatusCounting
		e.AllowRunoff = true
		e.Candidates = []entities.Candidate{
			{PlayerID: "player-1"},
			{PlayerID: "player-2"},
		}
		e.EligibleVoterIDs = []string{"player-1", "player-2"}
		e.VotedIDs = []string{"player-1", "player-2"}
		e.Ballots = []entities.Ballot{
			{VoterID: "player-1", Weight: 1, Choice: "player-1"},
			{VoterID: "player-2", Weight: 1, Choice: "player-2"},
		}
	})

	// An officer cancel lands after the sweep loaded its copy.
	if _, applied, err := store.TransitionElection(ctx, counting.ElectionID, entities.ElectionStatusCounting, func(e *entities.Election) {
		e.Status = entities.ElectionStatusCancelled
	}); err != nil || !applied {
		t.Fatalf("cancel transition failed: applied=%v err=%v", applied, err)
	}

	scheduler.count(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), counting, testNow.Add(2*time.Hour))

	elections, _ := store.ListElectionsByOrganization(ctx, "org-1")
	if len(elections) != 1 {
		t.Fatalf("a losing count must not spawn a child, got %d elections", len(elections))
	}
	cancelled, _ := store.GetElection(ctx, counting.ElectionID)
	if cancelled.Status != entities.ElectionStatusCancelled {
		t.Fatalf("the cancel must stand, got %s", cancelled.Status)
	}
	if cancelled.Results != nil {
		t.Fatalf("a losing count must not write results")
	}
}

func TestSchedulerDoubleCountSpawnsExactlyOneRunoff(t *testing.T) {
	scheduler, store, _ := newSchedulerFixture(t)
	ctx := context.Background()

	counting := seedElection(t, store, func(e *entities.Election) {
		e.Status = entities.ElectionStatusCounting
		e.AllowRunoff = true
		e.Candidates = []entities.Candidate{
			{PlayerID: "player-1"},
			{PlayerID: "player-2"},
		}
		e.EligibleVoterIDs = []string{"player-1", "player-2"}
		e.VotedIDs = []string{"player-1", "player-2"}
		e.Ballots = []entities.Ballot{
			{VoterID: "player-1", Weight: 1, Choice: "player-1"},
			{VoterID: "player-2", Weight: 1, Choice: "player-2"},
		}
	})

	// Two workers listed the same COUNTING election; both run the count with
	// the same stale copy. Only the first compare-and-swap lands.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scheduler.count(ctx, logger, counting, testNow.Add(2*time.Hour))
	scheduler.count(ctx, logger, counting, testNow.Add(2*time.Hour))

	elections, _ := store.ListElectionsByOrganization(ctx, "org-1")
	if len(elections) != 2 {
		t.Fatalf("expected parent plus exactly one runoff child, got %d elections", len(elections))
	}
	parent, _ := store.GetElection(ctx, counting.ElectionID)
	if parent.Status != entities.ElectionStatusRunoff {
		t.Fatalf("expected runoff parent, got %s", parent.Status)
	}
}

func TestSchedulerRepeatedTicksAreIdempotent(t *testing.T) {
	scheduler, store, clock := newSchedulerFixture(t)
	ctx := context.Background()

	seedElection(t, store, func(e *entities.Election) {
		e.Status = entities.ElectionStatusVoting
		e.Candidates = []entities.Candidate{
			{PlayerID: "player-1"},
			{PlayerID: "player-2"},
		}
		e.EligibleVoterIDs = []string{"player-1", "player-2"}
		e.VotedIDs = []string{"player-1"}
		e.Ballots = []entities.Ballot{
			{VoterID: "player-1", Weight: 1, Choice: "player-1"},
		}
	})

	clock.now = testNow.Add(2 * time.Hour)
	for i := 0; i < 5; i++ {
		if err := scheduler.RunOnce(ctx); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
	}

	election, _ := store.GetElection(ctx, "election-1")
	if election.Status != entities.ElectionStatusCompleted {
		t.Fatalf("expected completed, got %s", election.Status)
	}
	first := *election.Results
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("extra run failed: %v", err)
	}
	election, _ = store.GetElection(ctx, "election-1")
	if !election.Results.ComputedAt.Equal(first.ComputedAt) {
		t.Fatalf("results must be computed exactly once")
	}
}

func TestSchedulerExpiresPetitions(t *testing.T) {
	scheduler, store, clock := newSchedulerFixture(t)
	ctx := context.Background()

	petition := entities.RecallPetition{
		PetitionID:         "petition-1",
		OrganizationID:     "org-1",
		TargetPlayerID:     "leader-1",
		SignaturesRequired: 5,
		Status:             entities.PetitionStatusOpen,
		ExpiresAt:          testNow.Add(time.Hour),
		Signatures:         []entities.Signature{{PlayerID: "player-1", SignedAt: testNow}},
		CreatedAt:          testNow,
		UpdatedAt:          testNow,
	}
	if err := store.SavePetition(ctx, petition); err != nil {
		t.Fatalf("seed petition failed: %v", err)
	}

	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	current, _ := store.GetPetition(ctx, "petition-1")
	if current.Status != entities.PetitionStatusOpen {
		t.Fatalf("petition must stay open before expiry, got %s", current.Status)
	}

	clock.now = petition.ExpiresAt
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	current, _ = store.GetPetition(ctx, "petition-1")
	if current.Status != entities.PetitionStatusExpired {
		t.Fatalf("expected expired petition, got %s", current.Status)
	}
}
