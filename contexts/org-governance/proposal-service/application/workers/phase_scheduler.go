package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "simgov/contexts/org-governance/proposal-service/application"
	"simgov/contexts/org-governance/proposal-service/domain/decision"
	"simgov/contexts/org-governance/proposal-service/domain/entities"
	"simgov/contexts/org-governance/proposal-service/ports"
	contractsv1 "simgov/contracts/gen/events/v1"
)

// PhaseScheduler sweeps non-terminal proposals and advances any whose phase
// deadline has passed. Each proposal is handled independently so one broken
// entity never stalls the sweep.
type PhaseScheduler struct {
	Proposals ports.ProposalRepository
	Directory ports.MemberDirectory
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// RunOnce performs one sweep. Transitions are compare-and-swap on the current
// status, so concurrent scheduler instances cannot double-apply a step.
func (s PhaseScheduler) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}

	proposals, err := s.Proposals.ListNonTerminalProposals(ctx)
	if err != nil {
		logger.Error("proposal sweep listing failed",
			"event", "proposal_phase_sweep_list_failed",
			"module", "org-governance/proposal-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	advanced := 0
	for _, proposal := range proposals {
		if s.advanceProposal(ctx, logger, proposal, now) {
			advanced++
		}
	}
	if advanced > 0 {
		logger.Info("proposal phase sweep completed",
			"event", "proposal_phase_sweep_completed",
			"module", "org-governance/proposal-service",
			"layer", "worker",
			"advanced_count", advanced,
		)
	}
	return nil
}

func (s PhaseScheduler) advanceProposal(ctx context.Context, logger *slog.Logger, proposal entities.Proposal, now time.Time) bool {
	switch proposal.Status {
	case entities.ProposalStatusDraft:
		// Drafts never advance on their own; they only go stale.
		if now.Before(proposal.ExpiresAt) {
			return false
		}
		return s.transition(ctx, logger, proposal, entities.ProposalStatusDraft, entities.ProposalStatusExpired, now, nil)

	case entities.ProposalStatusSubmitted:
		if !now.Before(proposal.DebateStart) {
			return s.transition(ctx, logger, proposal, entities.ProposalStatusSubmitted, entities.ProposalStatusDebate, now, nil)
		}
		if !now.Before(proposal.ExpiresAt) {
			return s.transition(ctx, logger, proposal, entities.ProposalStatusSubmitted, entities.ProposalStatusExpired, now, nil)
		}
		return false

	case entities.ProposalStatusDebate:
		if now.Before(proposal.DebateEnd) {
			return false
		}
		return s.closeDebate(ctx, logger, proposal, now)

	case entities.ProposalStatusVoting:
		if now.Before(proposal.VotingEnd) {
			return false
		}
		return s.settle(ctx, logger, proposal, now)
	}
	return false
}

// closeDebate handles the DEBATE deadline: snapshot the eligible voter roll
// and open voting.
func (s PhaseScheduler) closeDebate(ctx context.Context, logger *slog.Logger, proposal entities.Proposal, now time.Time) bool {
	snapshot, err := s.eligibleSnapshot(ctx, proposal.OrganizationID)
	if err != nil {
		// Directory trouble is entity-local: skip this proposal and let the
		// next sweep retry the snapshot.
		s.logEntityError(logger, proposal.ProposalID, "proposal_snapshot_failed", err)
		return false
	}
	return s.transition(ctx, logger, proposal, entities.ProposalStatusDebate, entities.ProposalStatusVoting, now, func(p *entities.Proposal) {
		p.EligibleVoterIDs = snapshot
	})
}

// settle tallies the vote exactly once and resolves open amendments in the
// same write that leaves VOTING.
func (s PhaseScheduler) settle(ctx context.Context, logger *slog.Logger, proposal entities.Proposal, now time.Time) bool {
	if proposal.Tally.Tallied {
		return false
	}
	tally := decision.Decide(decision.Input{
		EligibleCount:        len(proposal.EligibleVoterIDs),
		Votes:                proposal.Votes,
		QuorumPercent:        proposal.QuorumPercent,
		PassThresholdPercent: proposal.PassThresholdPercent,
	})
	tally.Tallied = true
	tally.ComputedAt = now

	next := entities.ProposalStatusFailed
	if tally.Passed {
		next = entities.ProposalStatusPassed
	}
	applied := s.transition(ctx, logger, proposal, entities.ProposalStatusVoting, next, now, func(p *entities.Proposal) {
		p.Tally = tally
		for i := range p.Amendments {
			if p.Amendments[i].Status != entities.AmendmentOpen {
				continue
			}
			if p.Amendments[i].VotesFor > p.Amendments[i].VotesAgainst {
				p.Amendments[i].Status = entities.AmendmentAccepted
			} else {
				p.Amendments[i].Status = entities.AmendmentRejected
			}
		}
	})
	if applied {
		logger.Info("proposal vote settled",
			"event", "proposal_settled",
			"module", "org-governance/proposal-service",
			"layer", "worker",
			"proposal_id", proposal.ProposalID,
			"status", string(next),
			"quorum_met", tally.QuorumMet,
			"vote_count", tally.BallotCount,
			"yes_percent", tally.YesPercent,
		)
	}
	return applied
}

func (s PhaseScheduler) eligibleSnapshot(ctx context.Context, organizationID string) ([]string, error) {
	members, err := s.Directory.ListMembers(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	snapshot := make([]string, 0, len(members))
	for _, member := range members {
		if !member.Member {
			continue
		}
		snapshot = append(snapshot, member.PlayerID)
	}
	return snapshot, nil
}

func (s PhaseScheduler) transition(
	ctx context.Context,
	logger *slog.Logger,
	proposal entities.Proposal,
	from entities.ProposalStatus,
	to entities.ProposalStatus,
	now time.Time,
	mutate func(*entities.Proposal),
) bool {
	updated, applied, err := s.Proposals.TransitionProposal(ctx, proposal.ProposalID, from, func(p *entities.Proposal) {
		p.Status = to
		p.UpdatedAt = now
		if mutate != nil {
			mutate(p)
		}
	})
	if err != nil {
		s.logEntityError(logger, proposal.ProposalID, "proposal_phase_transition_failed", err)
		return false
	}
	if !applied {
		return false
	}
	s.appendEvent(ctx, "proposal.phase_changed", updated, now, map[string]any{
		"from_status": string(from),
		"to_status":   string(to),
	})
	logger.Info("proposal phase advanced",
		"event", "proposal_phase_advanced",
		"module", "org-governance/proposal-service",
		"layer", "worker",
		"proposal_id", proposal.ProposalID,
		"from_status", string(from),
		"to_status", string(to),
	)
	return true
}

func (s PhaseScheduler) appendEvent(ctx context.Context, eventType string, proposal entities.Proposal, occurredAt time.Time, metadata map[string]any) {
	if s.Outbox == nil || s.IDGen == nil {
		return
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return
	}
	data := map[string]any{
		"proposal_id":     proposal.ProposalID,
		"organization_id": proposal.OrganizationID,
		"status":          string(proposal.Status),
		"occurred_at":     occurredAt.Format(time.RFC3339),
	}
	for key, value := range metadata {
		data[key] = value
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	_ = s.Outbox.AppendOutbox(ctx, contractsv1.Envelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "proposal-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "proposal_id",
		PartitionKey:     proposal.ProposalID,
		Data:             raw,
	})
}

func (s PhaseScheduler) logEntityError(logger *slog.Logger, entityID string, event string, err error) {
	logger.Error("proposal sweep entity failed",
		"event", event,
		"module", "org-governance/proposal-service",
		"layer", "worker",
		"entity_id", entityID,
		"error", err.Error(),
	)
}
