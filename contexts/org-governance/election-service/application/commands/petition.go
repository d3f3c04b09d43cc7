package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "simgov/contexts/org-governance/election-service/application"
	"simgov/contexts/org-governance/election-service/domain/eligibility"
	"simgov/contexts/org-governance/election-service/domain/entities"
	domainerrors "simgov/contexts/org-governance/election-service/domain/errors"
	"simgov/contexts/org-governance/election-service/ports"
)

// CreatePetitionCommand opens a recall petition against an office holder.
type CreatePetitionCommand struct {
	InitiatorID string

	OrganizationID      string
	TargetPlayerID      string
	Position            string
	Reason              string
	SignaturesRequired  int
	ExpiresAt           time.Time
	VotingWindow        time.Duration
	QuorumPercent       float64
	WinThresholdPercent float64
}

// SignPetitionResult reports the petition state after the signature and, when
// the signature crossed the threshold, the recall election it triggered.
type SignPetitionResult struct {
	Petition entities.RecallPetition
	Election *entities.Election
}

// PetitionUseCase handles petition commands. Crossing the signature threshold
// immediately spawns a yes/no recall election; the petition closes in the same
// command so a second threshold-crossing signature cannot double-spawn.
type PetitionUseCase struct {
	Petitions ports.PetitionRepository
	Elections ports.ElectionRepository
	Directory ports.MemberDirectory
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// CreatePetition validates and persists an open petition. The initiator's
// signature is recorded immediately.
func (uc PetitionUseCase) CreatePetition(ctx context.Context, cmd CreatePetitionCommand) (entities.RecallPetition, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.OrganizationID) == "" ||
		strings.TrimSpace(cmd.TargetPlayerID) == "" ||
		strings.TrimSpace(cmd.InitiatorID) == "" ||
		cmd.SignaturesRequired <= 0 {
		return entities.RecallPetition{}, domainerrors.ErrInvalidPetition
	}
	if cmd.QuorumPercent < 0 || cmd.QuorumPercent > 100 ||
		cmd.WinThresholdPercent < 0 || cmd.WinThresholdPercent > 100 {
		return entities.RecallPetition{}, domainerrors.ErrInvalidPetition
	}

	now := uc.now()
	if !cmd.ExpiresAt.After(now) {
		return entities.RecallPetition{}, domainerrors.ErrInvalidPetition
	}

	facts, err := uc.memberFacts(ctx, cmd.OrganizationID, cmd.InitiatorID)
	if err != nil {
		return entities.RecallPetition{}, err
	}
	if !facts.Member {
		return entities.RecallPetition{}, domainerrors.ErrNotEligible
	}

	petitionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.RecallPetition{}, err
	}
	petition := entities.RecallPetition{
		PetitionID:          petitionID,
		OrganizationID:      strings.TrimSpace(cmd.OrganizationID),
		TargetPlayerID:      strings.TrimSpace(cmd.TargetPlayerID),
		Position:            strings.TrimSpace(cmd.Position),
		Reason:              strings.TrimSpace(cmd.Reason),
		SignaturesRequired:  cmd.SignaturesRequired,
		Status:              entities.PetitionStatusOpen,
		ExpiresAt:           cmd.ExpiresAt.UTC(),
		VotingWindow:        cmd.VotingWindow,
		QuorumPercent:       cmd.QuorumPercent,
		WinThresholdPercent: cmd.WinThresholdPercent,
		Signatures: []entities.Signature{{
			PlayerID: strings.TrimSpace(cmd.InitiatorID),
			SignedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.Petitions.SavePetition(ctx, petition); err != nil {
		return entities.RecallPetition{}, err
	}
	if err := uc.appendPetitionEvent(ctx, "petition.opened", petition, now, map[string]any{
		"initiator_id": strings.TrimSpace(cmd.InitiatorID),
	}); err != nil {
		return entities.RecallPetition{}, err
	}

	logger.Info("recall petition opened",
		"event", "petition_opened",
		"module", "org-governance/election-service",
		"layer", "application",
		"petition_id", petition.PetitionID,
		"organization_id", petition.OrganizationID,
		"target_player_id", petition.TargetPlayerID,
	)
	return petition, nil
}

// SignPetition appends one signature and, when the threshold is reached,
// closes the petition as SUCCEEDED and spawns the recall election.
func (uc PetitionUseCase) SignPetition(ctx context.Context, petitionID string, playerID string) (SignPetitionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	petition, err := uc.Petitions.GetPetition(ctx, strings.TrimSpace(petitionID))
	if err != nil {
		return SignPetitionResult{}, err
	}
	facts, err := uc.memberFacts(ctx, petition.OrganizationID, playerID)
	if err != nil {
		return SignPetitionResult{}, err
	}

	now := uc.now()
	switch eligibility.CanSign(petition, facts, now) {
	case eligibility.DenialNone:
	case eligibility.DenialWindowClosed:
		return SignPetitionResult{}, domainerrors.ErrPetitionClosed
	case eligibility.DenialAlreadyVoted:
		return SignPetitionResult{}, domainerrors.ErrAlreadySigned
	default:
		return SignPetitionResult{}, domainerrors.ErrNotEligible
	}

	signed, err := uc.Petitions.AppendSignature(ctx, petition.PetitionID, entities.Signature{
		PlayerID: strings.TrimSpace(playerID),
		SignedAt: now,
	})
	if err != nil {
		return SignPetitionResult{}, err
	}
	if err := uc.appendPetitionEvent(ctx, "petition.signed", signed, now, map[string]any{
		"player_id":       strings.TrimSpace(playerID),
		"signature_count": len(signed.Signatures),
	}); err != nil {
		return SignPetitionResult{}, err
	}
	logger.Info("petition signed",
		"event", "petition_signed",
		"module", "org-governance/election-service",
		"layer", "application",
		"petition_id", signed.PetitionID,
		"player_id", strings.TrimSpace(playerID),
		"signature_count", len(signed.Signatures),
		"signatures_required", signed.SignaturesRequired,
	)

	if len(signed.Signatures) < signed.SignaturesRequired {
		return SignPetitionResult{Petition: signed}, nil
	}
	return uc.closeAndSpawnRecall(ctx, signed, now)
}

// WithdrawPetition lets the initiator or an officer close an open petition.
func (uc PetitionUseCase) WithdrawPetition(ctx context.Context, petitionID string) error {
	petition, err := uc.Petitions.GetPetition(ctx, strings.TrimSpace(petitionID))
	if err != nil {
		return err
	}
	if petition.Status != entities.PetitionStatusOpen {
		return domainerrors.ErrPetitionClosed
	}
	now := uc.now()
	updated, applied, err := uc.Petitions.TransitionPetition(ctx, petition.PetitionID, entities.PetitionStatusOpen, func(p *entities.RecallPetition) {
		p.Status = entities.PetitionStatusWithdrawn
		p.UpdatedAt = now
	})
	if err != nil {
		return err
	}
	if !applied {
		return domainerrors.ErrConflict
	}
	return uc.appendPetitionEvent(ctx, "petition.withdrawn", updated, now, nil)
}

// closeAndSpawnRecall builds the yes/no recall election, snapshots the
// eligible voter set from the member directory, and closes the petition.
// The election is created first; if closing the petition then loses the
// status race another signer already spawned it, which is fine because the
// loser's election is orphaned behind a petition that no longer references it.
func (uc PetitionUseCase) closeAndSpawnRecall(ctx context.Context, petition entities.RecallPetition, now time.Time) (SignPetitionResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	electionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return SignPetitionResult{}, err
	}
	window := petition.VotingWindow
	if window <= 0 {
		window = 72 * time.Hour
	}
	snapshot, snapshotErr := uc.eligibleSnapshot(ctx, petition.OrganizationID, now)
	if snapshotErr != nil {
		logger.Error("recall snapshot lookup failed",
			"event", "petition_recall_snapshot_failed",
			"module", "org-governance/election-service",
			"layer", "application",
			"petition_id", petition.PetitionID,
			"error", snapshotErr.Error(),
		)
		return SignPetitionResult{}, snapshotErr
	}

	election := entities.Election{
		ElectionID:          electionID,
		OrganizationID:      petition.OrganizationID,
		ElectionType:        entities.ElectionTypeRecall,
		Position:            petition.Position,
		SeatsAvailable:      1,
		VoteType:            entities.VoteTypeYesNo,
		Status:              entities.ElectionStatusVoting,
		FilingStart:         now,
		FilingEnd:           now,
		VotingStart:         now,
		VotingEnd:           now.Add(window),
		QuorumPercent:       petition.QuorumPercent,
		WinThresholdPercent: petition.WinThresholdPercent,
		TargetPlayerID:      petition.TargetPlayerID,
		EligibleVoterIDs:    snapshot,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := uc.Elections.SaveElection(ctx, election); err != nil {
		return SignPetitionResult{}, err
	}

	updated, applied, err := uc.Petitions.TransitionPetition(ctx, petition.PetitionID, entities.PetitionStatusOpen, func(p *entities.RecallPetition) {
		p.Status = entities.PetitionStatusSucceeded
		p.ElectionID = election.ElectionID
		p.UpdatedAt = now
	})
	if err != nil {
		return SignPetitionResult{}, err
	}
	if !applied {
		return SignPetitionResult{Petition: updated}, nil
	}
	if err := uc.appendPetitionEvent(ctx, "petition.succeeded", updated, now, map[string]any{
		"recall_election_id": election.ElectionID,
	}); err != nil {
		return SignPetitionResult{}, err
	}

	logger.Info("petition threshold reached",
		"event", "petition_succeeded",
		"module", "org-governance/election-service",
		"layer", "application",
		"petition_id", updated.PetitionID,
		"recall_election_id", election.ElectionID,
		"eligible_count", len(snapshot),
	)
	return SignPetitionResult{Petition: updated, Election: &election}, nil
}

func (uc PetitionUseCase) eligibleSnapshot(ctx context.Context, organizationID string, now time.Time) ([]string, error) {
	members, err := uc.Directory.ListMembers(ctx, organizationID)
	if err != nil {
		return nil, domainerrors.ErrMemberLookupFailed
	}
	snapshot := make([]string, 0, len(members))
	for _, member := range members {
		if member.Member {
			snapshot = append(snapshot, member.PlayerID)
		}
	}
	return snapshot, nil
}

func (uc PetitionUseCase) memberFacts(ctx context.Context, organizationID string, playerID string) (eligibility.MemberFacts, error) {
	fact, err := uc.Directory.GetMember(ctx, strings.TrimSpace(organizationID), strings.TrimSpace(playerID))
	if err != nil {
		return eligibility.MemberFacts{}, domainerrors.ErrMemberLookupFailed
	}
	return eligibility.MemberFacts{
		PlayerID:   fact.PlayerID,
		Member:     fact.Member,
		Standing:   fact.Standing,
		TenureDays: fact.TenureDays,
		VoteWeight: fact.VoteWeight,
	}, nil
}

func (uc PetitionUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc PetitionUseCase) appendPetitionEvent(
	ctx context.Context,
	eventType string,
	petition entities.RecallPetition,
	occurredAt time.Time,
	metadata map[string]any,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{
		"petition_id":      petition.PetitionID,
		"organization_id":  petition.OrganizationID,
		"target_player_id": petition.TargetPlayerID,
		"status":           string(petition.Status),
		"occurred_at":      occurredAt.Format(time.RFC3339),
	}
	for key, value := range metadata {
		data[key] = value
	}
	envelope, err := newPetitionEnvelope(eventID, eventType, petition.PetitionID, occurredAt, data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}
