package unit

import (
	"context"
	"testing"
	"time"

	proposalservice "simgov/contexts/org-governance/proposal-service"
	"simgov/contexts/org-governance/proposal-service/ports"
	httptransport "simgov/contexts/org-governance/proposal-service/transport/http"
)

func TestProposalLifecycleThroughImplementation(t *testing.T) {
	module := proposalservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, playerID := range []string{"member-1", "member-2", "member-3"} {
		module.Store.SetMember("org-1", ports.MemberFact{PlayerID: playerID, Member: true, Standing: 70, TenureDays: 300, VoteWeight: 1})
	}

	created, err := module.Handler.CreateProposalHandler(ctx, "member-1", "idem-proposal-1", httptransport.CreateProposalRequest{
		OrganizationID:       "org-1",
		Title:                "Fund a second siege workshop",
		Body:                 "Allocate treasury funds to a second workshop before the next war season.",
		Category:             "budget",
		MinSponsorsRequired:  2,
		DebateStart:          now.Add(time.Hour).Format(time.RFC3339),
		DebateEnd:            now.Add(24 * time.Hour).Format(time.RFC3339),
		VotingEnd:            now.Add(48 * time.Hour).Format(time.RFC3339),
		ExpiresAt:            now.Add(14 * 24 * time.Hour).Format(time.RFC3339),
		QuorumPercent:        50,
		PassThresholdPercent: 50,
	})
	if err != nil {
		t.Fatalf("create proposal failed: %v", err)
	}
	proposalID := created.ProposalID

	if _, err := module.Handler.SponsorProposalHandler(ctx, proposalID, "member-2"); err != nil {
		t.Fatalf("sponsor failed: %v", err)
	}
	submitted, err := module.Handler.SubmitProposalHandler(ctx, proposalID, "member-1")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if submitted.Status != "submitted" {
		t.Fatalf("expected submitted, got %s", submitted.Status)
	}

	// Rewind the debate window so the sweep opens debate and then voting.
	rewind := func(mutate func(debateStart, debateEnd, votingEnd *time.Time)) {
		t.Helper()
		proposal, err := module.Store.GetProposal(ctx, proposalID)
		if err != nil {
			t.Fatalf("reload proposal failed: %v", err)
		}
		mutate(&proposal.DebateStart, &proposal.DebateEnd, &proposal.VotingEnd)
		if err := module.Store.SaveProposal(ctx, proposal); err != nil {
			t.Fatalf("save proposal failed: %v", err)
		}
	}

	rewind(func(debateStart, _, _ *time.Time) { *debateStart = now.Add(-time.Minute) })
	if err := module.PhaseScheduler.RunOnce(ctx); err != nil {
		t.Fatalf("debate sweep failed: %v", err)
	}
	rewind(func(_, debateEnd, _ *time.Time) { *debateEnd = now.Add(-time.Minute) })
	if err := module.PhaseScheduler.RunOnce(ctx); err != nil {
		t.Fatalf("voting sweep failed: %v", err)
	}

	voting, err := module.Handler.GetProposalHandler(ctx, proposalID)
	if err != nil {
		t.Fatalf("get proposal failed: %v", err)
	}
	if voting.Status != "voting" {
		t.Fatalf("expected voting after both sweeps, got %s", voting.Status)
	}

	for voterID, choice := range map[string]string{
		"member-1": "yes",
		"member-2": "yes",
		"member-3": "no",
	} {
		if _, err := module.Handler.CastProposalVoteHandler(ctx, proposalID, voterID, httptransport.CastProposalVoteRequest{Choice: choice}); err != nil {
			t.Fatalf("vote for %s failed: %v", voterID, err)
		}
	}

	rewind(func(_, _, votingEnd *time.Time) { *votingEnd = now.Add(-time.Minute) })
	if err := module.PhaseScheduler.RunOnce(ctx); err != nil {
		t.Fatalf("settle sweep failed: %v", err)
	}

	tally, err := module.Handler.TallyHandler(ctx, proposalID)
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if !tally.QuorumMet || !tally.Passed {
		t.Fatalf("expected a passing tally at 2 yes to 1 no, got %+v", tally)
	}

	started, err := module.Handler.StartImplementationHandler(ctx, proposalID, "member-1")
	if err != nil {
		t.Fatalf("start implementation failed: %v", err)
	}
	if started.Status != "implementing" {
		t.Fatalf("expected implementing, got %s", started.Status)
	}
	step, err := module.Handler.AddImplementationStepHandler(ctx, proposalID, httptransport.AddImplementationStepRequest{
		Description: "Contract the workshop construction",
		AssigneeID:  "member-2",
	})
	if err != nil {
		t.Fatalf("add step failed: %v", err)
	}
	done, err := module.Handler.CompleteImplementationStepHandler(ctx, proposalID, step.StepID)
	if err != nil {
		t.Fatalf("complete step failed: %v", err)
	}
	if done.Status != "implemented" {
		t.Fatalf("expected implemented after the only step, got %s", done.Status)
	}
}
