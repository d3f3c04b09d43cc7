package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"simgov/contexts/org-governance/election-service/adapters/memory"
	"simgov/contexts/org-governance/election-service/domain/entities"
	domainerrors "simgov/contexts/org-governance/election-service/domain/errors"
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

func newElectionFixture(t *testing.T) (ElectionUseCase, *memory.Store, *fixedClock) {
	t.Helper()
	store := memory.NewStore(nil)
	clock := &fixedClock{now: testNow}
	uc := ElectionUseCase{
		Elections:      store,
		Directory:      store,
		Idempotency:    store,
		Outbox:         store,
		Clock:          clock,
		IDGen:          &sequenceIDs{},
		IdempotencyTTL: time.Hour,
	}
	store.SetMember("org-1", ports.MemberFact{PlayerID: "player-1", Member: true, Standing: 80, TenureDays: 400, VoteWeight: 1})
	store.SetMember("org-1", ports.MemberFact{PlayerID: "player-2", Member: true, Standing: 60, TenureDays: 200, VoteWeight: 1})
	store.SetMember("org-1", ports.MemberFact{PlayerID: "player-3", Member: true, Standing: 20, TenureDays: 10, VoteWeight: 1})
	return uc, store, clock
}

func validCreateCommand() CreateElectionCommand {
	return CreateElectionCommand{
		OfficerID:           "officer-1",
		IdempotencyKey:      "idem-1",
		OrganizationID:      "org-1",
		ElectionType:        entities.ElectionTypeGeneral,
		Position:            "guild-leader",
		SeatsAvailable:      1,
		VoteType:            entities.VoteTypeSingle,
		FilingStart:         testNow.Add(time.Hour),
		FilingEnd:           testNow.Add(24 * time.Hour),
		VotingStart:         testNow.Add(25 * time.Hour),
		VotingEnd:           testNow.Add(48 * time.Hour),
		MinStandingToVote:   10,
		MinStandingToRun:    50,
		MinTenureToVote:     30,
		MinTenureToRun:      90,
		QuorumPercent:       50,
		WinThresholdPercent: 50,
		AllowRunoff:         true,
	}
}

func TestCreateElectionIdempotentReplay(t *testing.T) {
	uc, _, _ := newElectionFixture(t)
	ctx := context.Background()

	first, err := uc.CreateElection(ctx, validCreateCommand())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first.Election.Status != entities.ElectionStatusScheduled {
		t.Fatalf("expected scheduled status, got %s", first.Election.Status)
	}

	second, err := uc.CreateElection(ctx, validCreateCommand())
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !second.Replayed || second.Election.ElectionID != first.Election.ElectionID {
		t.Fatalf("expected replay of %s, got %s replayed=%v",
			first.Election.ElectionID, second.Election.ElectionID, second.Replayed)
	}

	conflicting := validCreateCommand()
	conflicting.Position = "treasurer"
	if _, err := uc.CreateElection(ctx, conflicting); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestCreateElectionRejectsBadWindows(t *testing.T) {
	uc, _, _ := newElectionFixture(t)
	ctx := context.Background()

	cmd := validCreateCommand()
	cmd.VotingStart = cmd.FilingEnd.Add(-time.Hour)
	if _, err := uc.CreateElection(ctx, cmd); !errors.Is(err, domainerrors.ErrInvalidElectionSpec) {
		t.Fatalf("expected invalid spec for voting before filing end, got %v", err)
	}

	cmd = validCreateCommand()
	cmd.VoteType = "weird"
	if _, err := uc.CreateElection(ctx, cmd); !errors.Is(err, domainerrors.ErrInvalidElectionSpec) {
		t.Fatalf("expected invalid spec for unknown vote type, got %v", err)
	}

	cmd = validCreateCommand()
	cmd.IdempotencyKey = ""
	if _, err := uc.CreateElection(ctx, cmd); !errors.Is(err, domainerrors.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected missing idempotency key error, got %v", err)
	}
}

func TestFileCandidacyWindowAndStanding(t *testing.T) {
	uc, _, clock := newElectionFixture(t)
	ctx := context.Background()

	created, err := uc.CreateElection(ctx, validCreateCommand())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	electionID := created.Election.ElectionID

	// Before the filing window opens.
	if _, err := uc.FileCandidacy(ctx, FileCandidacyCommand{ElectionID: electionID, PlayerID: "player-1"}); !errors.Is(err, domainerrors.ErrFilingClosed) {
		t.Fatalf("expected filing closed before window, got %v", err)
	}

	advanceToFiling(t, uc, electionID, clock)

	if _, err := uc.FileCandidacy(ctx, FileCandidacyCommand{ElectionID: electionID, PlayerID: "player-1", Platform: "steady hands"}); err != nil {
		t.Fatalf("file candidacy failed: %v", err)
	}
	if _, err := uc.FileCandidacy(ctx, FileCandidacyCommand{ElectionID: electionID, PlayerID: "player-1"}); !errors.Is(err, domainerrors.ErrAlreadyCandidate) {
		t.Fatalf("expected duplicate candidacy rejection, got %v", err)
	}
	// player-3 has standing 20 against a run minimum of 50.
	if _, err := uc.FileCandidacy(ctx, FileCandidacyCommand{ElectionID: electionID, PlayerID: "player-3"}); !errors.Is(err, domainerrors.ErrIneligibleToRun) {
		t.Fatalf("expected standing rejection, got %v", err)
	}

	// After the window, even a perfect member fails.
	clock.now = created.Election.FilingEnd.Add(time.Minute)
	if _, err := uc.FileCandidacy(ctx, FileCandidacyCommand{ElectionID: electionID, PlayerID: "player-2"}); !errors.Is(err, domainerrors.ErrFilingClosed) {
		t.Fatalf("expected filing closed after window, got %v", err)
	}
}

func TestCastVoteShapeAndDedup(t *testing.T) {
	uc, store, clock := newElectionFixture(t)
	ctx := context.Background()

	electionID := openVotingElection(t, uc, store, clock)

	// Approval payload on a single-choice election.
	_, err := uc.CastVote(ctx, CastVoteCommand{ElectionID: electionID, VoterID: "player-1", Approved: []string{"player-1"}})
	if !errors.Is(err, domainerrors.ErrInvalidBallotShape) {
		t.Fatalf("expected shape rejection, got %v", err)
	}

	if _, err := uc.CastVote(ctx, CastVoteCommand{ElectionID: electionID, VoterID: "player-1", Choice: "player-2"}); err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}
	if _, err := uc.CastVote(ctx, CastVoteCommand{ElectionID: electionID, VoterID: "player-1", Choice: "player-2"}); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected duplicate vote rejection, got %v", err)
	}

	// Unknown player is outside the snapshot and not a member.
	if _, err := uc.CastVote(ctx, CastVoteCommand{ElectionID: electionID, VoterID: "player-9", Choice: "player-2"}); !errors.Is(err, domainerrors.ErrNotEligible) {
		t.Fatalf("expected eligibility rejection, got %v", err)
	}
}

func TestCastVoteConcurrentDuplicateExactlyOneWins(t *testing.T) {
	uc, store, clock := newElectionFixture(t)
	ctx := context.Background()

	electionID := openVotingElection(t, uc, store, clock)

	const attempts = 16
	var wg sync.WaitGroup
	errorsCh := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.CastVote(ctx, CastVoteCommand{ElectionID: electionID, VoterID: "player-1", Choice: "player-2"})
			errorsCh <- err
		}()
	}
	wg.Wait()
	close(errorsCh)

	succeeded := 0
	duplicates := 0
	for err := range errorsCh {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domainerrors.ErrAlreadyVoted):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || duplicates != attempts-1 {
		t.Fatalf("expected exactly one success, got %d successes and %d duplicates", succeeded, duplicates)
	}

	election, err := store.GetElection(ctx, electionID)
	if err != nil {
		t.Fatalf("get election failed: %v", err)
	}
	if len(election.Ballots) != 1 {
		t.Fatalf("expected one recorded ballot, got %d", len(election.Ballots))
	}
}

func TestWithdrawCandidacyKeepsBallots(t *testing.T) {
	uc, store, clock := newElectionFixture(t)
	ctx := context.Background()

	electionID := openVotingElection(t, uc, store, clock)
	if _, err := uc.CastVote(ctx, CastVoteCommand{ElectionID: electionID, VoterID: "player-2", Choice: "player-1"}); err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}

	if err := uc.WithdrawCandidacy(ctx, electionID, "player-1"); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	election, err := store.GetElection(ctx, electionID)
	if err != nil {
		t.Fatalf("get election failed: %v", err)
	}
	if len(election.Ballots) != 1 {
		t.Fatalf("withdrawal must not drop cast ballots, got %d", len(election.Ballots))
	}
	if len(election.LiveCandidateIDs()) != 1 {
		t.Fatalf("expected one live candidate after withdrawal, got %v", election.LiveCandidateIDs())
	}
}

func TestCancelElectionTerminality(t *testing.T) {
	uc, _, _ := newElectionFixture(t)
	ctx := context.Background()

	created, err := uc.CreateElection(ctx, validCreateCommand())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := uc.CancelElection(ctx, created.Election.ElectionID, "officer-1"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := uc.CancelElection(ctx, created.Election.ElectionID, "officer-1"); !errors.Is(err, domainerrors.ErrElectionTerminal) {
		t.Fatalf("expected terminal rejection on second cancel, got %v", err)
	}
}

// advanceToFiling moves the clock into the filing window and flips the stored
// status the way the scheduler would.
func advanceToFiling(t *testing.T, uc ElectionUseCase, electionID string, clock *fixedClock) {
	t.Helper()
	ctx := context.Background()
	election, err := uc.Elections.GetElection(ctx, electionID)
	if err != nil {
		t.Fatalf("get election failed: %v", err)
	}
	clock.now = election.FilingStart.Add(time.Minute)
	if _, _, err := uc.Elections.TransitionElection(ctx, electionID, entities.ElectionStatusScheduled, func(e *entities.Election) {
		e.Status = entities.ElectionStatusFiling
	}); err != nil {
		t.Fatalf("transition to filing failed: %v", err)
	}
}

// openVotingElection builds an election in VOTING with two live candidates
// and a three-player snapshot.
func openVotingElection(t *testing.T, uc ElectionUseCase, store *memory.Store, clock *fixedClock) string {
	t.Helper()
	ctx := context.Background()

	created, err := uc.CreateElection(ctx, validCreateCommand())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	electionID := created.Election.ElectionID
	advanceToFiling(t, uc, electionID, clock)

	for _, playerID := range []string{"player-1", "player-2"} {
		if _, err := uc.FileCandidacy(ctx, FileCandidacyCommand{ElectionID: electionID, PlayerID: playerID}); err != nil {
			t.Fatalf("file candidacy for %s failed: %v", playerID, err)
		}
	}

	if _, _, err := store.TransitionElection(ctx, electionID, entities.ElectionStatusFiling, func(e *entities.Election) {
		e.Status = entities.ElectionStatusVoting
		e.EligibleVoterIDs = []string{"player-1", "player-2", "player-3"}
	}); err != nil {
		t.Fatalf("transition to voting failed: %v", err)
	}
	clock.now = created.Election.VotingStart.Add(time.Minute)
	return electionID
}
