package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "simgov/contexts/org-governance/proposal-service/application"
	"simgov/contexts/org-governance/proposal-service/domain/entities"
	domainerrors "simgov/contexts/org-governance/proposal-service/domain/errors"
	"simgov/contexts/org-governance/proposal-service/ports"
)

// CreateProposalCommand is the write-model input for proposal creation.
type CreateProposalCommand struct {
	AuthorID       string
	IdempotencyKey string

	OrganizationID string
	Title          string
	Body           string
	Category       entities.ProposalCategory

	MinSponsorsRequired int

	DebateStart time.Time
	DebateEnd   time.Time
	VotingEnd   time.Time
	ExpiresAt   time.Time

	QuorumPercent        float64
	PassThresholdPercent float64
}

// CreateProposalResult returns the final proposal state plus a replay marker
// the transport layer maps to API semantics.
type CreateProposalResult struct {
	Proposal entities.Proposal
	Replayed bool
}

// CastProposalVoteCommand carries one yes/no/abstain vote on the proposal.
type CastProposalVoteCommand struct {
	ProposalID string
	VoterID    string
	Choice     entities.VoteChoice
}

// ProposalUseCase orchestrates proposal commands: sponsorship gating, vote
// eligibility, atomic appends, and outbox event emission. Tallying and phase
// transitions belong to the phase scheduler, never to commands.
type ProposalUseCase struct {
	Proposals      ports.ProposalRepository
	Directory      ports.MemberDirectory
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// CreateProposal validates the input and persists a new proposal in DRAFT.
// The author is recorded as the first sponsor. Replay-safe via idempotency
// key + request hash validation.
func (uc ProposalUseCase) CreateProposal(ctx context.Context, cmd CreateProposalCommand) (CreateProposalResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := validateProposalInput(cmd); err != nil {
		logger.Warn("proposal create validation failed",
			"event", "proposal_create_validation_failed",
			"module", "org-governance/proposal-service",
			"layer", "application",
			"organization_id", strings.TrimSpace(cmd.OrganizationID),
			"error", err.Error(),
		)
		return CreateProposalResult{}, err
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return CreateProposalResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	authorID := strings.TrimSpace(cmd.AuthorID)
	fact, err := uc.memberFact(ctx, cmd.OrganizationID, authorID)
	if err != nil {
		return CreateProposalResult{}, err
	}
	if !fact.Member {
		return CreateProposalResult{}, domainerrors.ErrNotEligible
	}

	now := uc.now()
	requestHash := hashCreateProposalCommand(cmd)
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		return CreateProposalResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			return CreateProposalResult{}, domainerrors.ErrIdempotencyConflict
		}
		proposal, err := uc.Proposals.GetProposal(ctx, record.EntityID)
		if err != nil {
			return CreateProposalResult{}, err
		}
		logger.Info("proposal create replayed",
			"event", "proposal_create_replayed",
			"module", "org-governance/proposal-service",
			"layer", "application",
			"proposal_id", proposal.ProposalID,
		)
		return CreateProposalResult{Proposal: proposal, Replayed: true}, nil
	}

	proposalID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CreateProposalResult{}, err
	}
	proposal := entities.Proposal{
		ProposalID:           proposalID,
		OrganizationID:       strings.TrimSpace(cmd.OrganizationID),
		AuthorID:             authorID,
		Title:                strings.TrimSpace(cmd.Title),
		Body:                 strings.TrimSpace(cmd.Body),
		Category:             cmd.Category,
		Status:               entities.ProposalStatusDraft,
		Sponsors:             []string{authorID},
		MinSponsorsRequired:  cmd.MinSponsorsRequired,
		DebateStart:          cmd.DebateStart.UTC(),
		DebateEnd:            cmd.DebateEnd.UTC(),
		VotingEnd:            cmd.VotingEnd.UTC(),
		ExpiresAt:            cmd.ExpiresAt.UTC(),
		QuorumPercent:        cmd.QuorumPercent,
		PassThresholdPercent: cmd.PassThresholdPercent,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := uc.Proposals.SaveProposal(ctx, proposal); err != nil {
		return CreateProposalResult{}, err
	}
	if err := uc.appendProposalEvent(ctx, "proposal.created", proposal, now, map[string]any{
		"author_id": authorID,
		"category":  string(proposal.Category),
	}); err != nil {
		return CreateProposalResult{}, err
	}
	if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         strings.TrimSpace(cmd.IdempotencyKey),
		RequestHash: requestHash,
		EntityID:    proposal.ProposalID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	}); err != nil {
		return CreateProposalResult{}, err
	}

	logger.Info("proposal created",
		"event", "proposal_created",
		"module", "org-governance/proposal-service",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"organization_id", proposal.OrganizationID,
		"category", string(proposal.Category),
	)
	return CreateProposalResult{Proposal: proposal}, nil
}

// SponsorProposal records one member's sponsorship while the proposal is
// still a draft.
func (uc ProposalUseCase) SponsorProposal(ctx context.Context, proposalID string, playerID string) (entities.Proposal, error) {
	logger := application.ResolveLogger(uc.Logger)
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return entities.Proposal{}, err
	}
	if proposal.Status != entities.ProposalStatusDraft {
		return entities.Proposal{}, domainerrors.ErrWrongPhase
	}
	fact, err := uc.memberFact(ctx, proposal.OrganizationID, playerID)
	if err != nil {
		return entities.Proposal{}, err
	}
	if !fact.Member {
		return entities.Proposal{}, domainerrors.ErrNotEligible
	}

	now := uc.now()
	updated, err := uc.Proposals.AppendSponsor(ctx, proposal.ProposalID, strings.TrimSpace(playerID))
	if err != nil {
		return entities.Proposal{}, err
	}
	if err := uc.appendProposalEvent(ctx, "proposal.sponsored", updated, now, map[string]any{
		"player_id":     strings.TrimSpace(playerID),
		"sponsor_count": len(updated.Sponsors),
	}); err != nil {
		return entities.Proposal{}, err
	}
	logger.Info("proposal sponsored",
		"event", "proposal_sponsored",
		"module", "org-governance/proposal-service",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"player_id", strings.TrimSpace(playerID),
		"sponsor_count", len(updated.Sponsors),
	)
	return updated, nil
}

// SubmitProposal moves the draft into the scheduler's pipeline once the
// sponsorship bar is met. Only the author may submit.
func (uc ProposalUseCase) SubmitProposal(ctx context.Context, proposalID string, playerID string) (entities.Proposal, error) {
	logger := application.ResolveLogger(uc.Logger)
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return entities.Proposal{}, err
	}
	if proposal.AuthorID != strings.TrimSpace(playerID) {
		return entities.Proposal{}, domainerrors.ErrNotAuthor
	}
	if proposal.Status != entities.ProposalStatusDraft {
		return entities.Proposal{}, domainerrors.ErrWrongPhase
	}
	if len(proposal.Sponsors) < proposal.MinSponsorsRequired {
		return entities.Proposal{}, domainerrors.ErrInsufficientSponsors
	}

	now := uc.now()
	updated, applied, err := uc.Proposals.TransitionProposal(ctx, proposal.ProposalID, entities.ProposalStatusDraft, func(p *entities.Proposal) {
		p.Status = entities.ProposalStatusSubmitted
		p.UpdatedAt = now
	})
	if err != nil {
		return entities.Proposal{}, err
	}
	if !applied {
		return entities.Proposal{}, domainerrors.ErrConflict
	}
	if err := uc.appendProposalEvent(ctx, "proposal.submitted", updated, now, nil); err != nil {
		return entities.Proposal{}, err
	}
	logger.Info("proposal submitted",
		"event", "proposal_submitted",
		"module", "org-governance/proposal-service",
		"layer", "application",
		"proposal_id", updated.ProposalID,
		"sponsor_count", len(updated.Sponsors),
	)
	return updated, nil
}

// CastProposalVote validates eligibility against the debate-close snapshot and
// performs the atomic check-and-append. Two concurrent casts for one voter
// race inside the repository; exactly one wins.
func (uc ProposalUseCase) CastProposalVote(ctx context.Context, cmd CastProposalVoteCommand) (entities.Vote, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.ProposalID) == "" || strings.TrimSpace(cmd.VoterID) == "" {
		return entities.Vote{}, domainerrors.ErrInvalidProposalInput
	}
	switch cmd.Choice {
	case entities.VoteYes, entities.VoteNo, entities.VoteAbstain:
	default:
		return entities.Vote{}, domainerrors.ErrInvalidProposalInput
	}

	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(cmd.ProposalID))
	if err != nil {
		return entities.Vote{}, err
	}
	now := uc.now()
	if proposal.Status != entities.ProposalStatusVoting || !now.Before(proposal.VotingEnd) {
		return entities.Vote{}, domainerrors.ErrWrongPhase
	}
	voterID := strings.TrimSpace(cmd.VoterID)
	if !proposal.InSnapshot(voterID) {
		return entities.Vote{}, domainerrors.ErrNotEligible
	}
	if proposal.HasVoted(voterID) {
		return entities.Vote{}, domainerrors.ErrAlreadyVoted
	}
	fact, err := uc.memberFact(ctx, proposal.OrganizationID, voterID)
	if err != nil {
		return entities.Vote{}, err
	}

	vote := entities.Vote{
		VoterID: voterID,
		Choice:  cmd.Choice,
		Weight:  fact.VoteWeight,
		CastAt:  now,
	}
	if vote.Weight <= 0 {
		vote.Weight = 1
	}
	updated, err := uc.Proposals.AppendVote(ctx, proposal.ProposalID, vote)
	if err != nil {
		return entities.Vote{}, err
	}
	if err := uc.appendProposalEvent(ctx, "proposal.vote_cast", updated, now, map[string]any{
		"voter_id":   voterID,
		"vote_count": len(updated.Votes),
	}); err != nil {
		return entities.Vote{}, err
	}
	logger.Info("proposal vote cast",
		"event", "proposal_vote_cast",
		"module", "org-governance/proposal-service",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"voter_id", voterID,
		"vote_count", len(updated.Votes),
	)
	return vote, nil
}

// ProposeAmendment opens an independently votable amendment while the
// proposal is in debate or voting.
func (uc ProposalUseCase) ProposeAmendment(ctx context.Context, proposalID string, authorID string, text string) (entities.Amendment, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(text) == "" {
		return entities.Amendment{}, domainerrors.ErrInvalidProposalInput
	}
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return entities.Amendment{}, err
	}
	switch proposal.Status {
	case entities.ProposalStatusDebate, entities.ProposalStatusVoting:
	default:
		return entities.Amendment{}, domainerrors.ErrWrongPhase
	}
	fact, err := uc.memberFact(ctx, proposal.OrganizationID, authorID)
	if err != nil {
		return entities.Amendment{}, err
	}
	if !fact.Member {
		return entities.Amendment{}, domainerrors.ErrNotEligible
	}

	amendmentID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Amendment{}, err
	}
	now := uc.now()
	amendment := entities.Amendment{
		AmendmentID: amendmentID,
		AuthorID:    strings.TrimSpace(authorID),
		Text:        strings.TrimSpace(text),
		Status:      entities.AmendmentOpen,
		ProposedAt:  now,
	}
	updated, err := uc.Proposals.AppendAmendment(ctx, proposal.ProposalID, amendment)
	if err != nil {
		return entities.Amendment{}, err
	}
	if err := uc.appendProposalEvent(ctx, "proposal.amendment_proposed", updated, now, map[string]any{
		"amendment_id": amendment.AmendmentID,
		"author_id":    amendment.AuthorID,
	}); err != nil {
		return entities.Amendment{}, err
	}
	logger.Info("amendment proposed",
		"event", "proposal_amendment_proposed",
		"module", "org-governance/proposal-service",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"amendment_id", amendment.AmendmentID,
	)
	return amendment, nil
}

// CastAmendmentVote records one for/against vote on an open amendment.
// Amendment voting stays open through both debate and voting phases.
func (uc ProposalUseCase) CastAmendmentVote(ctx context.Context, proposalID string, amendmentID string, playerID string, inFavor bool) (entities.Amendment, error) {
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return entities.Amendment{}, err
	}
	switch proposal.Status {
	case entities.ProposalStatusDebate, entities.ProposalStatusVoting:
	default:
		return entities.Amendment{}, domainerrors.ErrAmendmentClosed
	}
	idx, found := proposal.AmendmentByID(strings.TrimSpace(amendmentID))
	if !found {
		return entities.Amendment{}, domainerrors.ErrAmendmentNotFound
	}
	if proposal.Amendments[idx].Status != entities.AmendmentOpen {
		return entities.Amendment{}, domainerrors.ErrAmendmentClosed
	}
	fact, err := uc.memberFact(ctx, proposal.OrganizationID, playerID)
	if err != nil {
		return entities.Amendment{}, err
	}
	if !fact.Member {
		return entities.Amendment{}, domainerrors.ErrNotEligible
	}

	updated, err := uc.Proposals.RecordAmendmentVote(ctx, proposal.ProposalID, strings.TrimSpace(amendmentID), strings.TrimSpace(playerID), inFavor)
	if err != nil {
		return entities.Amendment{}, err
	}
	idx, found = updated.AmendmentByID(strings.TrimSpace(amendmentID))
	if !found {
		return entities.Amendment{}, domainerrors.ErrAmendmentNotFound
	}
	if err := uc.appendProposalEvent(ctx, "proposal.amendment_vote_cast", updated, uc.now(), map[string]any{
		"amendment_id": strings.TrimSpace(amendmentID),
		"player_id":    strings.TrimSpace(playerID),
		"in_favor":     inFavor,
	}); err != nil {
		return entities.Amendment{}, err
	}
	return updated.Amendments[idx], nil
}

// PostComment appends a threaded comment. A reply's parent must already
// exist on the proposal.
func (uc ProposalUseCase) PostComment(ctx context.Context, proposalID string, authorID string, parentCommentID string, body string) (entities.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return entities.Comment{}, domainerrors.ErrInvalidProposalInput
	}
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return entities.Comment{}, err
	}
	if proposal.Status.Terminal() {
		return entities.Comment{}, domainerrors.ErrWrongPhase
	}
	if parent := strings.TrimSpace(parentCommentID); parent != "" {
		if _, found := proposal.CommentByID(parent); !found {
			return entities.Comment{}, domainerrors.ErrCommentNotFound
		}
	}
	fact, err := uc.memberFact(ctx, proposal.OrganizationID, authorID)
	if err != nil {
		return entities.Comment{}, err
	}
	if !fact.Member {
		return entities.Comment{}, domainerrors.ErrNotEligible
	}

	commentID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Comment{}, err
	}
	now := uc.now()
	comment := entities.Comment{
		CommentID:       commentID,
		ParentCommentID: strings.TrimSpace(parentCommentID),
		AuthorID:        strings.TrimSpace(authorID),
		Body:            strings.TrimSpace(body),
		PostedAt:        now,
	}
	updated, err := uc.Proposals.AppendComment(ctx, proposal.ProposalID, comment)
	if err != nil {
		return entities.Comment{}, err
	}
	if err := uc.appendProposalEvent(ctx, "proposal.comment_posted", updated, now, map[string]any{
		"comment_id": comment.CommentID,
		"author_id":  comment.AuthorID,
	}); err != nil {
		return entities.Comment{}, err
	}
	return comment, nil
}

// WithdrawProposal lets the author pull the proposal any time before voting
// opens.
func (uc ProposalUseCase) WithdrawProposal(ctx context.Context, proposalID string, playerID string) error {
	logger := application.ResolveLogger(uc.Logger)
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return err
	}
	if proposal.AuthorID != strings.TrimSpace(playerID) {
		return domainerrors.ErrNotAuthor
	}
	switch proposal.Status {
	case entities.ProposalStatusDraft, entities.ProposalStatusSubmitted, entities.ProposalStatusDebate:
	default:
		return domainerrors.ErrWrongPhase
	}

	now := uc.now()
	updated, applied, err := uc.Proposals.TransitionProposal(ctx, proposal.ProposalID, proposal.Status, func(p *entities.Proposal) {
		p.Status = entities.ProposalStatusWithdrawn
		p.UpdatedAt = now
	})
	if err != nil {
		return err
	}
	if !applied {
		return domainerrors.ErrConflict
	}
	if err := uc.appendProposalEvent(ctx, "proposal.withdrawn", updated, now, map[string]any{
		"withdrawn_by": strings.TrimSpace(playerID),
	}); err != nil {
		return err
	}
	logger.Info("proposal withdrawn",
		"event", "proposal_withdrawn",
		"module", "org-governance/proposal-service",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
	)
	return nil
}

// StartImplementation opens the post-passage checklist phase.
func (uc ProposalUseCase) StartImplementation(ctx context.Context, proposalID string, playerID string) (entities.Proposal, error) {
	logger := application.ResolveLogger(uc.Logger)
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return entities.Proposal{}, err
	}
	if proposal.Status != entities.ProposalStatusPassed {
		return entities.Proposal{}, domainerrors.ErrWrongPhase
	}

	now := uc.now()
	updated, applied, err := uc.Proposals.TransitionProposal(ctx, proposal.ProposalID, entities.ProposalStatusPassed, func(p *entities.Proposal) {
		p.Status = entities.ProposalStatusImplementing
		p.UpdatedAt = now
	})
	if err != nil {
		return entities.Proposal{}, err
	}
	if !applied {
		return entities.Proposal{}, domainerrors.ErrConflict
	}
	if err := uc.appendProposalEvent(ctx, "proposal.implementation_started", updated, now, map[string]any{
		"started_by": strings.TrimSpace(playerID),
	}); err != nil {
		return entities.Proposal{}, err
	}
	logger.Info("proposal implementation started",
		"event", "proposal_implementation_started",
		"module", "org-governance/proposal-service",
		"layer", "application",
		"proposal_id", updated.ProposalID,
	)
	return updated, nil
}

// AddImplementationStep appends one checklist entry.
func (uc ProposalUseCase) AddImplementationStep(ctx context.Context, proposalID string, description string, assigneeID string) (entities.ImplementationStep, error) {
	if strings.TrimSpace(description) == "" {
		return entities.ImplementationStep{}, domainerrors.ErrInvalidProposalInput
	}
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return entities.ImplementationStep{}, err
	}
	if proposal.Status != entities.ProposalStatusImplementing {
		return entities.ImplementationStep{}, domainerrors.ErrWrongPhase
	}

	stepID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.ImplementationStep{}, err
	}
	step := entities.ImplementationStep{
		StepID:      stepID,
		Description: strings.TrimSpace(description),
		AssigneeID:  strings.TrimSpace(assigneeID),
	}
	updated, err := uc.Proposals.AppendImplementationStep(ctx, proposal.ProposalID, step)
	if err != nil {
		return entities.ImplementationStep{}, err
	}
	if err := uc.appendProposalEvent(ctx, "proposal.step_added", updated, uc.now(), map[string]any{
		"step_id": step.StepID,
	}); err != nil {
		return entities.ImplementationStep{}, err
	}
	return step, nil
}

// CompleteImplementationStep marks one step done; finishing the last open
// step also completes the proposal.
func (uc ProposalUseCase) CompleteImplementationStep(ctx context.Context, proposalID string, stepID string) (entities.Proposal, error) {
	logger := application.ResolveLogger(uc.Logger)
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return entities.Proposal{}, err
	}
	if proposal.Status != entities.ProposalStatusImplementing {
		return entities.Proposal{}, domainerrors.ErrWrongPhase
	}

	now := uc.now()
	updated, err := uc.Proposals.CompleteImplementationStep(ctx, proposal.ProposalID, strings.TrimSpace(stepID), now)
	if err != nil {
		return entities.Proposal{}, err
	}
	if err := uc.appendProposalEvent(ctx, "proposal.step_completed", updated, now, map[string]any{
		"step_id":     strings.TrimSpace(stepID),
		"implemented": updated.Status == entities.ProposalStatusImplemented,
	}); err != nil {
		return entities.Proposal{}, err
	}
	if updated.Status == entities.ProposalStatusImplemented {
		logger.Info("proposal implemented",
			"event", "proposal_implemented",
			"module", "org-governance/proposal-service",
			"layer", "application",
			"proposal_id", updated.ProposalID,
		)
	}
	return updated, nil
}

func (uc ProposalUseCase) memberFact(ctx context.Context, organizationID string, playerID string) (ports.MemberFact, error) {
	fact, err := uc.Directory.GetMember(ctx, strings.TrimSpace(organizationID), strings.TrimSpace(playerID))
	if err != nil {
		return ports.MemberFact{}, domainerrors.ErrMemberLookupFailed
	}
	return fact, nil
}

func (uc ProposalUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc ProposalUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func (uc ProposalUseCase) appendProposalEvent(
	ctx context.Context,
	eventType string,
	proposal entities.Proposal,
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
		"proposal_id":     proposal.ProposalID,
		"organization_id": proposal.OrganizationID,
		"status":          string(proposal.Status),
		"occurred_at":     occurredAt.Format(time.RFC3339),
	}
	for key, value := range metadata {
		data[key] = value
	}
	envelope, err := newProposalEnvelope(eventID, eventType, proposal.ProposalID, occurredAt, data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func validateProposalInput(cmd CreateProposalCommand) error {
	if strings.TrimSpace(cmd.OrganizationID) == "" ||
		strings.TrimSpace(cmd.AuthorID) == "" ||
		strings.TrimSpace(cmd.Title) == "" {
		return domainerrors.ErrInvalidProposalInput
	}
	switch cmd.Category {
	case entities.CategoryPolicy, entities.CategoryBudget, entities.CategoryPersonnel,
		entities.CategoryStructure, entities.CategoryOther:
	default:
		return domainerrors.ErrInvalidProposalInput
	}
	if cmd.MinSponsorsRequired < 1 {
		return domainerrors.ErrInvalidProposalInput
	}
	if cmd.QuorumPercent < 0 || cmd.QuorumPercent > 100 ||
		cmd.PassThresholdPercent < 0 || cmd.PassThresholdPercent > 100 {
		return domainerrors.ErrInvalidProposalInput
	}
	if !cmd.DebateStart.Before(cmd.DebateEnd) || !cmd.DebateEnd.Before(cmd.VotingEnd) {
		return domainerrors.ErrInvalidProposalInput
	}
	if cmd.ExpiresAt.IsZero() {
		return domainerrors.ErrInvalidProposalInput
	}
	return nil
}

func hashCreateProposalCommand(cmd CreateProposalCommand) string {
	payload := map[string]string{
		"organization_id": strings.TrimSpace(cmd.OrganizationID),
		"author_id":       strings.TrimSpace(cmd.AuthorID),
		"title":           strings.TrimSpace(cmd.Title),
		"category":        string(cmd.Category),
		"debate_start":    cmd.DebateStart.UTC().Format(time.RFC3339Nano),
		"debate_end":      cmd.DebateEnd.UTC().Format(time.RFC3339Nano),
		"voting_end":      cmd.VotingEnd.UTC().Format(time.RFC3339Nano),
		"op":              "create_proposal",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
