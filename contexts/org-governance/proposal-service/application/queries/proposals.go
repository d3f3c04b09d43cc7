package queries

import (
	"context"
	"sort"
	"strings"

	"simgov/contexts/org-governance/proposal-service/domain/entities"
	domainerrors "simgov/contexts/org-governance/proposal-service/domain/errors"
	"simgov/contexts/org-governance/proposal-service/ports"
)

type ProposalQueryUseCase struct {
	Proposals ports.ProposalRepository
}

func (uc ProposalQueryUseCase) Proposal(ctx context.Context, proposalID string) (entities.Proposal, error) {
	return uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
}

func (uc ProposalQueryUseCase) OrganizationProposals(ctx context.Context, organizationID string) ([]entities.Proposal, error) {
	proposals, err := uc.Proposals.ListProposalsByOrganization(ctx, strings.TrimSpace(organizationID))
	if err != nil {
		return nil, err
	}
	sort.Slice(proposals, func(i, j int) bool {
		if proposals[i].CreatedAt.Equal(proposals[j].CreatedAt) {
			return proposals[i].ProposalID < proposals[j].ProposalID
		}
		return proposals[i].CreatedAt.Before(proposals[j].CreatedAt)
	})
	return proposals, nil
}

// Tally resolves the computed outcome. Proposals that have not left voting
// yet report not ready for the tally resource.
func (uc ProposalQueryUseCase) Tally(ctx context.Context, proposalID string) (entities.Tally, error) {
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return entities.Tally{}, err
	}
	if !proposal.Tally.Tallied {
		return entities.Tally{}, domainerrors.ErrTallyNotReady
	}
	return proposal.Tally, nil
}
