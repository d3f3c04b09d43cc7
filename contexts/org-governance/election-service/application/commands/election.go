package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "simgov/contexts/org-governance/election-service/application"
	"simgov/contexts/org-governance/election-service/domain/eligibility"
	"simgov/contexts/org-governance/election-service/domain/entities"
	domainerrors "simgov/contexts/org-governance/election-service/domain/errors"
	"simgov/contexts/org-governance/election-service/ports"
)

// CreateElectionCommand is the write-model input for election creation.
type CreateElectionCommand struct {
	OfficerID      string
	IdempotencyKey string

	OrganizationID string
	ElectionType   entities.ElectionType
	Position       string
	SeatsAvailable int
	VoteType       entities.VoteType

	FilingStart time.Time
	FilingEnd   time.Time
	VotingStart time.Time
	VotingEnd   time.Time

	MinStandingToVote float64
	MinStandingToRun  float64
	MinTenureToVote   int
	MinTenureToRun    int

	QuorumPercent       float64
	WinThresholdPercent float64
	AllowRunoff         bool

	TargetPlayerID string
}

// CreateElectionResult returns the final election state plus a replay marker
// the transport layer maps to API semantics.
type CreateElectionResult struct {
	Election entities.Election
	Replayed bool
}

// FileCandidacyCommand requests a candidate filing during the filing window.
type FileCandidacyCommand struct {
	ElectionID string
	PlayerID   string
	Position   string
	Platform   string
}

// CastVoteCommand carries the voter identity and the ballot payload; exactly
// one payload variant may be populated.
type CastVoteCommand struct {
	ElectionID string
	VoterID    string

	Choice   string
	Approved []string
	Ranked   []string
	YesNo    entities.YesNoChoice
}

// ElectionUseCase orchestrates election commands: eligibility gating, ballot
// shape validation, atomic appends, and outbox event emission. Tallying and
// status transitions belong to the phase scheduler, never to commands.
type ElectionUseCase struct {
	Elections      ports.ElectionRepository
	Directory      ports.MemberDirectory
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// CreateElection validates the requested windows and persists a new election in SCHEDULED.
// Replay-safe via idempotency key + request hash validation.
func (uc ElectionUseCase) CreateElection(ctx context.Context, cmd CreateElectionCommand) (CreateElectionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("election create processing started",
		"event", "election_create_started",
		"module", "org-governance/election-service",
		"layer", "application",
		"organization_id", strings.TrimSpace(cmd.OrganizationID),
		"position", strings.TrimSpace(cmd.Position),
		"vote_type", string(cmd.VoteType),
	)
	if err := validateElectionSpec(cmd); err != nil {
		logger.Warn("election create validation failed",
			"event", "election_create_validation_failed",
			"module", "org-governance/election-service",
			"layer", "application",
			"organization_id", strings.TrimSpace(cmd.OrganizationID),
			"error", err.Error(),
		)
		return CreateElectionResult{}, err
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return CreateElectionResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	now := uc.now()
	requestHash := hashCreateElectionCommand(cmd)
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		return CreateElectionResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			return CreateElectionResult{}, domainerrors.ErrIdempotencyConflict
		}
		election, err := uc.Elections.GetElection(ctx, record.EntityID)
		if err != nil {
			return CreateElectionResult{}, err
		}
		logger.Info("election create replayed",
			"event", "election_create_replayed",
			"module", "org-governance/election-service",
			"layer", "application",
			"election_id", election.ElectionID,
		)
		return CreateElectionResult{Election: election, Replayed: true}, nil
	}

	electionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CreateElectionResult{}, err
	}
	election := entities.Election{
		ElectionID:          electionID,
		OrganizationID:      strings.TrimSpace(cmd.OrganizationID),
		ElectionType:        cmd.ElectionType,
		Position:            strings.TrimSpace(cmd.Position),
		SeatsAvailable:      cmd.SeatsAvailable,
		VoteType:            cmd.VoteType,
		Status:              entities.ElectionStatusScheduled,
		FilingStart:         cmd.FilingStart.UTC(),
		FilingEnd:           cmd.FilingEnd.UTC(),
		VotingStart:         cmd.VotingStart.UTC(),
		VotingEnd:           cmd.VotingEnd.UTC(),
		MinStandingToVote:   cmd.MinStandingToVote,
		MinStandingToRun:    cmd.MinStandingToRun,
		MinTenureToVote:     cmd.MinTenureToVote,
		MinTenureToRun:      cmd.MinTenureToRun,
		QuorumPercent:       cmd.QuorumPercent,
		WinThresholdPercent: cmd.WinThresholdPercent,
		AllowRunoff:         cmd.AllowRunoff,
		TargetPlayerID:      strings.TrimSpace(cmd.TargetPlayerID),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if election.SeatsAvailable <= 0 {
		election.SeatsAvailable = 1
	}
	if err := uc.Elections.SaveElection(ctx, election); err != nil {
		return CreateElectionResult{}, err
	}
	if err := uc.appendElectionEvent(ctx, "election.created", election, now, map[string]any{
		"created_by": strings.TrimSpace(cmd.OfficerID),
	}); err != nil {
		return CreateElectionResult{}, err
	}
	if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         strings.TrimSpace(cmd.IdempotencyKey),
		RequestHash: requestHash,
		EntityID:    election.ElectionID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	}); err != nil {
		return CreateElectionResult{}, err
	}

	logger.Info("election created",
		"event", "election_created",
		"module", "org-governance/election-service",
		"layer", "application",
		"election_id", election.ElectionID,
		"organization_id", election.OrganizationID,
		"vote_type", string(election.VoteType),
		"position", election.Position,
	)
	return CreateElectionResult{Election: election}, nil
}

// FileCandidacy appends a candidate filing after the run-eligibility gate.
func (uc ElectionUseCase) FileCandidacy(ctx context.Context, cmd FileCandidacyCommand) (entities.Candidate, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.ElectionID) == "" || strings.TrimSpace(cmd.PlayerID) == "" {
		return entities.Candidate{}, domainerrors.ErrInvalidElectionSpec
	}

	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(cmd.ElectionID))
	if err != nil {
		return entities.Candidate{}, err
	}
	facts, err := uc.memberFacts(ctx, election.OrganizationID, cmd.PlayerID)
	if err != nil {
		return entities.Candidate{}, err
	}

	now := uc.now()
	switch eligibility.CanRun(election, facts, now) {
	case eligibility.DenialNone:
	case eligibility.DenialWindowClosed:
		return entities.Candidate{}, domainerrors.ErrFilingClosed
	case eligibility.DenialDuplicateRun:
		return entities.Candidate{}, domainerrors.ErrAlreadyCandidate
	default:
		return entities.Candidate{}, domainerrors.ErrIneligibleToRun
	}

	candidate := entities.Candidate{
		PlayerID: strings.TrimSpace(cmd.PlayerID),
		Position: election.Position,
		Platform: strings.TrimSpace(cmd.Platform),
		FiledAt:  now,
	}
	updated, err := uc.Elections.AppendCandidate(ctx, election.ElectionID, candidate)
	if err != nil {
		return entities.Candidate{}, err
	}
	if err := uc.appendElectionEvent(ctx, "candidacy.filed", updated, now, map[string]any{
		"player_id": candidate.PlayerID,
		"position":  candidate.Position,
	}); err != nil {
		return entities.Candidate{}, err
	}
	logger.Info("candidacy filed",
		"event", "election_candidacy_filed",
		"module", "org-governance/election-service",
		"layer", "application",
		"election_id", election.ElectionID,
		"player_id", candidate.PlayerID,
	)
	return candidate, nil
}

// WithdrawCandidacy marks the candidacy withdrawn. Ballots already cast for
// the candidate stay recorded; the tally filters withdrawn candidates instead
// of retroactively invalidating votes.
func (uc ElectionUseCase) WithdrawCandidacy(ctx context.Context, electionID string, playerID string) error {
	logger := application.ResolveLogger(uc.Logger)
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return err
	}
	switch election.Status {
	case entities.ElectionStatusScheduled, entities.ElectionStatusFiling, entities.ElectionStatusVoting:
	default:
		return domainerrors.ErrWithdrawClosed
	}

	now := uc.now()
	updated, err := uc.Elections.WithdrawCandidate(ctx, election.ElectionID, strings.TrimSpace(playerID), now)
	if err != nil {
		return err
	}
	if err := uc.appendElectionEvent(ctx, "candidacy.withdrawn", updated, now, map[string]any{
		"player_id": strings.TrimSpace(playerID),
	}); err != nil {
		return err
	}
	logger.Info("candidacy withdrawn",
		"event", "election_candidacy_withdrawn",
		"module", "org-governance/election-service",
		"layer", "application",
		"election_id", election.ElectionID,
		"player_id", strings.TrimSpace(playerID),
	)
	return nil
}

// Endorse records a member's endorsement of a live candidacy.
func (uc ElectionUseCase) Endorse(ctx context.Context, electionID string, candidateID string, playerID string) error {
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return err
	}
	facts, err := uc.memberFacts(ctx, election.OrganizationID, playerID)
	if err != nil {
		return err
	}
	if !facts.Member {
		return domainerrors.ErrNotEligible
	}
	_, err = uc.Elections.EndorseCandidate(ctx, election.ElectionID, strings.TrimSpace(candidateID), strings.TrimSpace(playerID))
	return err
}

// CastVote validates eligibility and ballot shape, then performs the atomic
// check-and-append. Two concurrent casts for one voter race inside the
// repository; exactly one wins.
func (uc ElectionUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (entities.Ballot, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.ElectionID) == "" || strings.TrimSpace(cmd.VoterID) == "" {
		return entities.Ballot{}, domainerrors.ErrInvalidBallotShape
	}

	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(cmd.ElectionID))
	if err != nil {
		return entities.Ballot{}, err
	}
	facts, err := uc.memberFacts(ctx, election.OrganizationID, cmd.VoterID)
	if err != nil {
		return entities.Ballot{}, err
	}

	now := uc.now()
	switch eligibility.CanVote(election, facts, now) {
	case eligibility.DenialNone:
	case eligibility.DenialWindowClosed:
		return entities.Ballot{}, domainerrors.ErrVotingClosed
	case eligibility.DenialAlreadyVoted:
		return entities.Ballot{}, domainerrors.ErrAlreadyVoted
	default:
		return entities.Ballot{}, domainerrors.ErrNotEligible
	}

	ballot := entities.Ballot{
		VoterID:  strings.TrimSpace(cmd.VoterID),
		CastAt:   now,
		Weight:   facts.VoteWeight,
		Choice:   strings.TrimSpace(cmd.Choice),
		Approved: trimAll(cmd.Approved),
		Ranked:   trimAll(cmd.Ranked),
		YesNo:    cmd.YesNo,
	}
	if ballot.Weight <= 0 {
		ballot.Weight = 1
	}
	if err := validateBallotShape(election, ballot); err != nil {
		logger.Warn("ballot shape rejected",
			"event", "election_ballot_shape_rejected",
			"module", "org-governance/election-service",
			"layer", "application",
			"election_id", election.ElectionID,
			"voter_id", ballot.VoterID,
			"vote_type", string(election.VoteType),
		)
		return entities.Ballot{}, err
	}

	updated, err := uc.Elections.AppendBallot(ctx, election.ElectionID, ballot)
	if err != nil {
		return entities.Ballot{}, err
	}
	if err := uc.appendElectionEvent(ctx, "vote.cast", updated, now, map[string]any{
		"voter_id":     ballot.VoterID,
		"ballot_count": len(updated.Ballots),
	}); err != nil {
		return entities.Ballot{}, err
	}
	logger.Info("vote cast",
		"event", "election_vote_cast",
		"module", "org-governance/election-service",
		"layer", "application",
		"election_id", election.ElectionID,
		"voter_id", ballot.VoterID,
		"ballot_count", len(updated.Ballots),
	)
	return ballot, nil
}

// CancelElection is the officer escape hatch from any non-terminal status.
func (uc ElectionUseCase) CancelElection(ctx context.Context, electionID string, officerID string) error {
	logger := application.ResolveLogger(uc.Logger)
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return err
	}
	if election.Status.Terminal() {
		return domainerrors.ErrElectionTerminal
	}

	now := uc.now()
	updated, applied, err := uc.Elections.TransitionElection(ctx, election.ElectionID, election.Status, func(e *entities.Election) {
		e.Status = entities.ElectionStatusCancelled
		e.UpdatedAt = now
	})
	if err != nil {
		return err
	}
	if !applied {
		return domainerrors.ErrConflict
	}
	if err := uc.appendElectionEvent(ctx, "election.cancelled", updated, now, map[string]any{
		"cancelled_by": strings.TrimSpace(officerID),
	}); err != nil {
		return err
	}
	logger.Info("election cancelled",
		"event", "election_cancelled",
		"module", "org-governance/election-service",
		"layer", "application",
		"election_id", election.ElectionID,
		"cancelled_by", strings.TrimSpace(officerID),
	)
	return nil
}

func (uc ElectionUseCase) memberFacts(ctx context.Context, organizationID string, playerID string) (eligibility.MemberFacts, error) {
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

func (uc ElectionUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc ElectionUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func (uc ElectionUseCase) appendElectionEvent(
	ctx context.Context,
	eventType string,
	election entities.Election,
	occurredAt time.Time,
	metadata map[string]any,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{
		"election_id":     election.ElectionID,
		"organization_id": election.OrganizationID,
		"status":          string(election.Status),
		"vote_type":       string(election.VoteType),
		"occurred_at":     occurredAt.Format(time.RFC3339),
	}
	for key, value := range metadata {
		data[key] = value
	}
	envelope, err := newElectionEnvelope(eventID, eventType, election.ElectionID, occurredAt, data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

// validateBallotShape enforces the tagged-union contract: exactly the variant
// matching the election's vote type, with candidate references resolving to
// live candidates.
func validateBallotShape(election entities.Election, ballot entities.Ballot) error {
	populated := 0
	if ballot.Choice != "" {
		populated++
	}
	if len(ballot.Approved) > 0 {
		populated++
	}
	if len(ballot.Ranked) > 0 {
		populated++
	}
	if ballot.YesNo != "" {
		populated++
	}
	if populated != 1 {
		return domainerrors.ErrInvalidBallotShape
	}

	live := make(map[string]bool)
	for _, id := range election.LiveCandidateIDs() {
		live[id] = true
	}

	switch election.VoteType {
	case entities.VoteTypeSingle:
		if ballot.Choice == "" || !live[ballot.Choice] {
			return domainerrors.ErrInvalidBallotShape
		}
	case entities.VoteTypeApproval:
		if len(ballot.Approved) == 0 {
			return domainerrors.ErrInvalidBallotShape
		}
		seen := make(map[string]bool, len(ballot.Approved))
		for _, id := range ballot.Approved {
			if !live[id] || seen[id] {
				return domainerrors.ErrInvalidBallotShape
			}
			seen[id] = true
		}
	case entities.VoteTypeRanked:
		// A ranked ballot must be a permutation of the live candidate set.
		if len(ballot.Ranked) != len(live) {
			return domainerrors.ErrInvalidBallotShape
		}
		seen := make(map[string]bool, len(ballot.Ranked))
		for _, id := range ballot.Ranked {
			if !live[id] || seen[id] {
				return domainerrors.ErrInvalidBallotShape
			}
			seen[id] = true
		}
	case entities.VoteTypeYesNo:
		switch ballot.YesNo {
		case entities.ChoiceYes, entities.ChoiceNo, entities.ChoiceAbstain:
		default:
			return domainerrors.ErrInvalidBallotShape
		}
	default:
		return domainerrors.ErrInvalidBallotShape
	}
	return nil
}

func validateElectionSpec(cmd CreateElectionCommand) error {
	if strings.TrimSpace(cmd.OrganizationID) == "" {
		return domainerrors.ErrInvalidElectionSpec
	}
	switch cmd.VoteType {
	case entities.VoteTypeSingle, entities.VoteTypeApproval, entities.VoteTypeRanked, entities.VoteTypeYesNo:
	default:
		return domainerrors.ErrInvalidElectionSpec
	}
	switch cmd.ElectionType {
	case entities.ElectionTypeGeneral, entities.ElectionTypeSpecial, entities.ElectionTypeRecall:
	default:
		return domainerrors.ErrInvalidElectionSpec
	}
	if cmd.VoteType != entities.VoteTypeYesNo && strings.TrimSpace(cmd.Position) == "" {
		return domainerrors.ErrInvalidElectionSpec
	}
	if cmd.QuorumPercent < 0 || cmd.QuorumPercent > 100 ||
		cmd.WinThresholdPercent < 0 || cmd.WinThresholdPercent > 100 {
		return domainerrors.ErrInvalidElectionSpec
	}
	if !cmd.FilingStart.Before(cmd.FilingEnd) ||
		cmd.VotingStart.Before(cmd.FilingEnd) ||
		!cmd.VotingStart.Before(cmd.VotingEnd) {
		return domainerrors.ErrInvalidElectionSpec
	}
	return nil
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	trimmed := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			trimmed = append(trimmed, value)
		}
	}
	return trimmed
}

func hashCreateElectionCommand(cmd CreateElectionCommand) string {
	payload := map[string]string{
		"organization_id": strings.TrimSpace(cmd.OrganizationID),
		"election_type":   string(cmd.ElectionType),
		"position":        strings.TrimSpace(cmd.Position),
		"vote_type":       string(cmd.VoteType),
		"filing_start":    cmd.FilingStart.UTC().Format(time.RFC3339Nano),
		"filing_end":      cmd.FilingEnd.UTC().Format(time.RFC3339Nano),
		"voting_start":    cmd.VotingStart.UTC().Format(time.RFC3339Nano),
		"voting_end":      cmd.VotingEnd.UTC().Format(time.RFC3339Nano),
		"op":              "create_election",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
