package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "simgov/contexts/org-governance/election-service/application"
	"simgov/contexts/org-governance/election-service/domain/entities"
	"simgov/contexts/org-governance/election-service/domain/tally"
	"simgov/contexts/org-governance/election-service/ports"
	contractsv1 "simgov/contracts/gen/events/v1"
)

// PhaseScheduler sweeps non-terminal elections and advances any whose phase
// deadline has passed. Each election is handled independently so one broken
// entity never stalls the sweep.
type PhaseScheduler struct {
	Elections ports.ElectionRepository
	Petitions ports.PetitionRepository
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

	elections, err := s.Elections.ListNonTerminalElections(ctx)
	if err != nil {
		logger.Error("election sweep listing failed",
			"event", "election_phase_sweep_list_failed",
			"module", "org-governance/election-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	advanced := 0
	for _, election := range elections {
		if s.advanceElection(ctx, logger, election, now) {
			advanced++
		}
	}
	if advanced > 0 {
		logger.Info("election phase sweep completed",
			"event", "election_phase_sweep_completed",
			"module", "org-governance/election-service",
			"layer", "worker",
			"advanced_count", advanced,
		)
	}

	return s.expirePetitions(ctx, logger, now)
}

func (s PhaseScheduler) advanceElection(ctx context.Context, logger *slog.Logger, election entities.Election, now time.Time) bool {
	switch election.Status {
	case entities.ElectionStatusScheduled:
		if now.Before(election.FilingStart) {
			return false
		}
		return s.transition(ctx, logger, election, entities.ElectionStatusScheduled, entities.ElectionStatusFiling, now, nil)

	case entities.ElectionStatusFiling:
		if now.Before(election.FilingEnd) {
			return false
		}
		return s.closeFiling(ctx, logger, election, now)

	case entities.ElectionStatusVoting:
		if now.Before(election.VotingEnd) {
			return false
		}
		if !s.transition(ctx, logger, election, entities.ElectionStatusVoting, entities.ElectionStatusCounting, now, nil) {
			return false
		}
		counting, err := s.Elections.GetElection(ctx, election.ElectionID)
		if err != nil {
			s.logEntityError(logger, election.ElectionID, "election_phase_reload_failed", err)
			return true
		}
		s.count(ctx, logger, counting, now)
		return true

	case entities.ElectionStatusCounting:
		// Normally counting finishes inside the sweep that entered it; an
		// election still sitting here means a prior sweep crashed mid-count.
		s.count(ctx, logger, election, now)
		return true
	}
	return false
}

// closeFiling handles the FILING deadline: cancel races that cannot produce a
// contest, otherwise snapshot the eligible voter roll and open voting. A
// candidate race never enters VOTING with zero live candidates; a single-seat
// race additionally needs at least two.
func (s PhaseScheduler) closeFiling(ctx context.Context, logger *slog.Logger, election entities.Election, now time.Time) bool {
	live := election.LiveCandidateIDs()
	if election.VoteType != entities.VoteTypeYesNo && (len(live) == 0 || (election.SeatsAvailable == 1 && len(live) < 2)) {
		applied := s.transition(ctx, logger, election, entities.ElectionStatusFiling, entities.ElectionStatusCancelled, now, nil)
		if applied {
			logger.Info("election cancelled as unopposed",
				"event", "election_unopposed_cancelled",
				"module", "org-governance/election-service",
				"layer", "worker",
				"election_id", election.ElectionID,
				"live_candidates", len(live),
			)
		}
		return applied
	}

	snapshot, err := s.eligibleSnapshot(ctx, election)
	if err != nil {
		// Directory trouble is entity-local: skip this election and let the
		// next sweep retry the snapshot.
		s.logEntityError(logger, election.ElectionID, "election_snapshot_failed", err)
		return false
	}
	return s.transition(ctx, logger, election, entities.ElectionStatusFiling, entities.ElectionStatusVoting, now, func(e *entities.Election) {
		e.EligibleVoterIDs = snapshot
	})
}

// count tallies ballots and settles COUNTING into COMPLETED or RUNOFF.
func (s PhaseScheduler) count(ctx context.Context, logger *slog.Logger, election entities.Election, now time.Time) {
	results := tally.Tally(tally.Input{
		VoteType:            election.VoteType,
		Ballots:             election.Ballots,
		LiveCandidateIDs:    election.LiveCandidateIDs(),
		EligibleCount:       len(election.EligibleVoterIDs),
		QuorumPercent:       election.QuorumPercent,
		WinThresholdPercent: election.WinThresholdPercent,
		SeatsAvailable:      election.SeatsAvailable,
		AllowRunoff:         election.AllowRunoff,
	})
	results.ComputedAt = now

	next := entities.ElectionStatusCompleted
	needsRunoff := results.QuorumMet && results.RunoffRequired
	var runoff entities.Election
	if needsRunoff {
		childID, err := s.IDGen.NewID(ctx)
		if err != nil {
			s.logEntityError(logger, election.ElectionID, "election_runoff_spawn_failed", err)
			return
		}
		runoff = buildRunoff(election, results, childID, now)
		results.RunoffElectionID = childID
		next = entities.ElectionStatusRunoff
	}

	// The parent commit is the exclusivity point: only the sweep whose
	// compare-and-swap lands gets to create the child, so a concurrent
	// officer cancel or a second worker never leaves an orphan runoff.
	applied := s.transition(ctx, logger, election, entities.ElectionStatusCounting, next, now, func(e *entities.Election) {
		e.Results = &results
	})
	if !applied {
		return
	}
	if needsRunoff {
		if err := s.Elections.SaveElection(ctx, runoff); err != nil {
			// The committed results carry the child ID, so the gap is
			// visible and the child can be re-created by an operator.
			s.logEntityError(logger, election.ElectionID, "election_runoff_spawn_failed", err)
		} else {
			s.appendEvent(ctx, "election.runoff_opened", runoff, now, map[string]any{
				"parent_election_id": election.ElectionID,
			})
			logger.Info("runoff election spawned",
				"event", "election_runoff_spawned",
				"module", "org-governance/election-service",
				"layer", "worker",
				"election_id", election.ElectionID,
				"runoff_election_id", runoff.ElectionID,
				"runoff_candidates", len(results.RunoffCandidateIDs),
			)
		}
	}
	logger.Info("election counted",
		"event", "election_counted",
		"module", "org-governance/election-service",
		"layer", "worker",
		"election_id", election.ElectionID,
		"status", string(next),
		"quorum_met", results.QuorumMet,
		"ballot_count", results.BallotCount,
		"winner_count", len(results.WinnerIDs),
	)
}

// buildRunoff assembles the child election for the tied candidates. It is not
// persisted here; count saves it only after the parent commit wins.
func buildRunoff(parent entities.Election, results entities.Results, electionID string, now time.Time) entities.Election {
	window := parent.VotingEnd.Sub(parent.VotingStart)
	candidates := make([]entities.Candidate, 0, len(results.RunoffCandidateIDs))
	for _, playerID := range results.RunoffCandidateIDs {
		if existing, ok := parent.CandidateByPlayer(playerID); ok {
			existing.Endorsements = nil
			candidates = append(candidates, existing)
			continue
		}
		candidates = append(candidates, entities.Candidate{
			PlayerID: playerID,
			Position: parent.Position,
			FiledAt:  now,
		})
	}

	return entities.Election{
		ElectionID:          electionID,
		OrganizationID:      parent.OrganizationID,
		ElectionType:        parent.ElectionType,
		Position:            parent.Position,
		SeatsAvailable:      parent.SeatsAvailable,
		VoteType:            entities.VoteTypeSingle,
		Status:              entities.ElectionStatusVoting,
		FilingStart:         now,
		FilingEnd:           now,
		VotingStart:         now,
		VotingEnd:           now.Add(window),
		MinStandingToVote:   parent.MinStandingToVote,
		MinTenureToVote:     parent.MinTenureToVote,
		QuorumPercent:       parent.QuorumPercent,
		WinThresholdPercent: parent.WinThresholdPercent,
		Candidates:          candidates,
		EligibleVoterIDs:    append([]string(nil), parent.EligibleVoterIDs...),
		ParentElectionID:    parent.ElectionID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (s PhaseScheduler) eligibleSnapshot(ctx context.Context, election entities.Election) ([]string, error) {
	members, err := s.Directory.ListMembers(ctx, election.OrganizationID)
	if err != nil {
		return nil, err
	}
	snapshot := make([]string, 0, len(members))
	for _, member := range members {
		if !member.Member {
			continue
		}
		if member.Standing < election.MinStandingToVote {
			continue
		}
		if member.TenureDays < election.MinTenureToVote {
			continue
		}
		snapshot = append(snapshot, member.PlayerID)
	}
	return snapshot, nil
}

func (s PhaseScheduler) expirePetitions(ctx context.Context, logger *slog.Logger, now time.Time) error {
	petitions, err := s.Petitions.ListOpenPetitions(ctx, "")
	if err != nil {
		logger.Error("petition sweep listing failed",
			"event", "petition_expiry_sweep_list_failed",
			"module", "org-governance/election-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	for _, petition := range petitions {
		if now.Before(petition.ExpiresAt) {
			continue
		}
		updated, applied, err := s.Petitions.TransitionPetition(ctx, petition.PetitionID, entities.PetitionStatusOpen, func(p *entities.RecallPetition) {
			p.Status = entities.PetitionStatusExpired
			p.UpdatedAt = now
		})
		if err != nil {
			s.logEntityError(logger, petition.PetitionID, "petition_expiry_failed", err)
			continue
		}
		if applied {
			logger.Info("recall petition expired",
				"event", "petition_expired",
				"module", "org-governance/election-service",
				"layer", "worker",
				"petition_id", updated.PetitionID,
				"signature_count", len(updated.Signatures),
			)
		}
	}
	return nil
}

func (s PhaseScheduler) transition(
	ctx context.Context,
	logger *slog.Logger,
	election entities.Election,
	from entities.ElectionStatus,
	to entities.ElectionStatus,
	now time.Time,
	mutate func(*entities.Election),
) bool {
	updated, applied, err := s.Elections.TransitionElection(ctx, election.ElectionID, from, func(e *entities.Election) {
		e.Status = to
		e.UpdatedAt = now
		if mutate != nil {
			mutate(e)
		}
	})
	if err != nil {
		s.logEntityError(logger, election.ElectionID, "election_phase_transition_failed", err)
		return false
	}
	if !applied {
		return false
	}
	s.appendEvent(ctx, "election.phase_changed", updated, now, map[string]any{
		"from_status": string(from),
		"to_status":   string(to),
	})
	logger.Info("election phase advanced",
		"event", "election_phase_advanced",
		"module", "org-governance/election-service",
		"layer", "worker",
		"election_id", election.ElectionID,
		"from_status", string(from),
		"to_status", string(to),
	)
	return true
}

func (s PhaseScheduler) appendEvent(ctx context.Context, eventType string, election entities.Election, occurredAt time.Time, metadata map[string]any) {
	if s.Outbox == nil || s.IDGen == nil {
		return
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return
	}
	data := map[string]any{
		"election_id":     election.ElectionID,
		"organization_id": election.OrganizationID,
		"status":          string(election.Status),
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
		SourceService:    "election-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "election_id",
		PartitionKey:     election.ElectionID,
		Data:             raw,
	})
}

func (s PhaseScheduler) logEntityError(logger *slog.Logger, entityID string, event string, err error) {
	logger.Error("election sweep entity failed",
		"event", event,
		"module", "org-governance/election-service",
		"layer", "worker",
		"entity_id", entityID,
		"error", err.Error(),
	)
}
