package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"simgov/contexts/org-governance/proposal-service/application/commands"
	"simgov/contexts/org-governance/proposal-service/application/queries"
	"simgov/contexts/org-governance/proposal-service/domain/entities"
	domainerrors "simgov/contexts/org-governance/proposal-service/domain/errors"
	httptransport "simgov/contexts/org-governance/proposal-service/transport/http"
)

type Handler struct {
	Proposals commands.ProposalUseCase
	Queries   queries.ProposalQueryUseCase
	Logger    *slog.Logger
}

func (h Handler) CreateProposalHandler(
	ctx context.Context,
	authorID string,
	idempotencyKey string,
	req httptransport.CreateProposalRequest,
) (httptransport.ProposalResponse, error) {
	debateStart, err := parseTimestamp(req.DebateStart)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	debateEnd, err := parseTimestamp(req.DebateEnd)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	votingEnd, err := parseTimestamp(req.VotingEnd)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	expiresAt, err := parseTimestamp(req.ExpiresAt)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}

	result, err := h.Proposals.CreateProposal(ctx, commands.CreateProposalCommand{
		AuthorID:             authorID,
		IdempotencyKey:       idempotencyKey,
		OrganizationID:       req.OrganizationID,
		Title:                req.Title,
		Body:                 req.Body,
		Category:             entities.ProposalCategory(req.Category),
		MinSponsorsRequired:  req.MinSponsorsRequired,
		DebateStart:          debateStart,
		DebateEnd:            debateEnd,
		VotingEnd:            votingEnd,
		ExpiresAt:            expiresAt,
		QuorumPercent:        req.QuorumPercent,
		PassThresholdPercent: req.PassThresholdPercent,
	})
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	response := proposalResponse(result.Proposal)
	response.Replayed = result.Replayed
	return response, nil
}

func (h Handler) GetProposalHandler(ctx context.Context, proposalID string) (httptransport.ProposalResponse, error) {
	proposal, err := h.Queries.Proposal(ctx, proposalID)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return proposalResponse(proposal), nil
}

func (h Handler) ListProposalsHandler(ctx context.Context, organizationID string) (httptransport.ProposalListResponse, error) {
	proposals, err := h.Queries.OrganizationProposals(ctx, organizationID)
	if err != nil {
		return httptransport.ProposalListResponse{}, err
	}
	items := make([]httptransport.ProposalResponse, 0, len(proposals))
	for _, proposal := range proposals {
		items = append(items, proposalResponse(proposal))
	}
	return httptransport.ProposalListResponse{Items: items}, nil
}

func (h Handler) SponsorProposalHandler(ctx context.Context, proposalID string, playerID string) (httptransport.ProposalResponse, error) {
	proposal, err := h.Proposals.SponsorProposal(ctx, proposalID, playerID)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return proposalResponse(proposal), nil
}

func (h Handler) SubmitProposalHandler(ctx context.Context, proposalID string, playerID string) (httptransport.ProposalResponse, error) {
	proposal, err := h.Proposals.SubmitProposal(ctx, proposalID, playerID)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return proposalResponse(proposal), nil
}

func (h Handler) CastProposalVoteHandler(
	ctx context.Context,
	proposalID string,
	voterID string,
	req httptransport.CastProposalVoteRequest,
) (httptransport.ProposalVoteResponse, error) {
	vote, err := h.Proposals.CastProposalVote(ctx, commands.CastProposalVoteCommand{
		ProposalID: proposalID,
		VoterID:    voterID,
		Choice:     entities.VoteChoice(req.Choice),
	})
	if err != nil {
		return httptransport.ProposalVoteResponse{}, err
	}
	return httptransport.ProposalVoteResponse{
		ProposalID: proposalID,
		VoterID:    vote.VoterID,
		Choice:     string(vote.Choice),
		Weight:     vote.Weight,
		CastAt:     vote.CastAt.Format(time.RFC3339),
	}, nil
}

func (h Handler) ProposeAmendmentHandler(
	ctx context.Context,
	proposalID string,
	authorID string,
	req httptransport.ProposeAmendmentRequest,
) (httptransport.AmendmentResponse, error) {
	amendment, err := h.Proposals.ProposeAmendment(ctx, proposalID, authorID, req.Text)
	if err != nil {
		return httptransport.AmendmentResponse{}, err
	}
	return amendmentResponse(amendment), nil
}

func (h Handler) CastAmendmentVoteHandler(
	ctx context.Context,
	proposalID string,
	amendmentID string,
	playerID string,
	req httptransport.CastAmendmentVoteRequest,
) (httptransport.AmendmentResponse, error) {
	amendment, err := h.Proposals.CastAmendmentVote(ctx, proposalID, amendmentID, playerID, req.InFavor)
	if err != nil {
		return httptransport.AmendmentResponse{}, err
	}
	return amendmentResponse(amendment), nil
}

func (h Handler) PostCommentHandler(
	ctx context.Context,
	proposalID string,
	authorID string,
	req httptransport.PostCommentRequest,
) (httptransport.CommentResponse, error) {
	comment, err := h.Proposals.PostComment(ctx, proposalID, authorID, req.ParentCommentID, req.Body)
	if err != nil {
		return httptransport.CommentResponse{}, err
	}
	return httptransport.CommentResponse{
		CommentID:       comment.CommentID,
		ParentCommentID: comment.ParentCommentID,
		AuthorID:        comment.AuthorID,
		Body:            comment.Body,
		PostedAt:        comment.PostedAt.Format(time.RFC3339),
	}, nil
}

func (h Handler) WithdrawProposalHandler(ctx context.Context, proposalID string, playerID string) error {
	return h.Proposals.WithdrawProposal(ctx, proposalID, playerID)
}

func (h Handler) StartImplementationHandler(ctx context.Context, proposalID string, playerID string) (httptransport.ProposalResponse, error) {
	proposal, err := h.Proposals.StartImplementation(ctx, proposalID, playerID)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return proposalResponse(proposal), nil
}

func (h Handler) AddImplementationStepHandler(
	ctx context.Context,
	proposalID string,
	req httptransport.AddImplementationStepRequest,
) (httptransport.ImplementationStepResponse, error) {
	step, err := h.Proposals.AddImplementationStep(ctx, proposalID, req.Description, req.AssigneeID)
	if err != nil {
		return httptransport.ImplementationStepResponse{}, err
	}
	return stepResponse(step), nil
}

func (h Handler) CompleteImplementationStepHandler(ctx context.Context, proposalID string, stepID string) (httptransport.ProposalResponse, error) {
	proposal, err := h.Proposals.CompleteImplementationStep(ctx, proposalID, stepID)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return proposalResponse(proposal), nil
}

func (h Handler) TallyHandler(ctx context.Context, proposalID string) (httptransport.TallyResponse, error) {
	tally, err := h.Queries.Tally(ctx, proposalID)
	if err != nil {
		return httptransport.TallyResponse{}, err
	}
	return httptransport.TallyResponse{
		ProposalID:     proposalID,
		ComputedAt:     tally.ComputedAt.Format(time.RFC3339),
		EligibleCount:  tally.EligibleCount,
		BallotCount:    tally.BallotCount,
		TurnoutPercent: tally.TurnoutPercent,
		QuorumMet:      tally.QuorumMet,
		Yes:            tally.Yes,
		No:             tally.No,
		Abstain:        tally.Abstain,
		YesPercent:     tally.YesPercent,
		Passed:         tally.Passed,
	}, nil
}

func proposalResponse(proposal entities.Proposal) httptransport.ProposalResponse {
	return httptransport.ProposalResponse{
		ProposalID:           proposal.ProposalID,
		OrganizationID:       proposal.OrganizationID,
		AuthorID:             proposal.AuthorID,
		Title:                proposal.Title,
		Body:                 proposal.Body,
		Category:             string(proposal.Category),
		Status:               string(proposal.Status),
		SponsorCount:         len(proposal.Sponsors),
		MinSponsorsRequired:  proposal.MinSponsorsRequired,
		DebateStart:          proposal.DebateStart.Format(time.RFC3339),
		DebateEnd:            proposal.DebateEnd.Format(time.RFC3339),
		VotingEnd:            proposal.VotingEnd.Format(time.RFC3339),
		ExpiresAt:            proposal.ExpiresAt.Format(time.RFC3339),
		QuorumPercent:        proposal.QuorumPercent,
		PassThresholdPercent: proposal.PassThresholdPercent,
		VoteCount:            len(proposal.Votes),
		AmendmentCount:       len(proposal.Amendments),
		CommentCount:         len(proposal.Comments),
	}
}

func amendmentResponse(amendment entities.Amendment) httptransport.AmendmentResponse {
	return httptransport.AmendmentResponse{
		AmendmentID:  amendment.AmendmentID,
		AuthorID:     amendment.AuthorID,
		Text:         amendment.Text,
		VotesFor:     amendment.VotesFor,
		VotesAgainst: amendment.VotesAgainst,
		Status:       string(amendment.Status),
		ProposedAt:   amendment.ProposedAt.Format(time.RFC3339),
	}
}

func stepResponse(step entities.ImplementationStep) httptransport.ImplementationStepResponse {
	response := httptransport.ImplementationStepResponse{
		StepID:      step.StepID,
		Description: step.Description,
		AssigneeID:  step.AssigneeID,
		Completed:   step.Completed,
	}
	if step.CompletedAt != nil {
		response.CompletedAt = step.CompletedAt.Format(time.RFC3339)
	}
	return response
}

func parseTimestamp(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, domainerrors.ErrInvalidProposalInput
	}
	return parsed.UTC(), nil
}
