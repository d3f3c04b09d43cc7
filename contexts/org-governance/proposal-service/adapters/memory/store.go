package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"simgov/contexts/org-governance/proposal-service/domain/entities"
	domainerrors "simgov/contexts/org-governance/proposal-service/domain/errors"
	"simgov/contexts/org-governance/proposal-service/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store is the in-memory implementation of every proposal-service port. One
// mutex guards the whole store, which makes each repository method a critical
// section and satisfies the atomic check-and-append contract directly.
type Store struct {
	mu sync.RWMutex

	proposals   map[string]entities.Proposal
	members     map[string]map[string]ports.MemberFact
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
}

func NewStore(seed []entities.Proposal) *Store {
	proposals := make(map[string]entities.Proposal, len(seed))
	for _, proposal := range seed {
		proposals[proposal.ProposalID] = cloneProposal(proposal)
	}
	return &Store{
		proposals:   proposals,
		members:     make(map[string]map[string]ports.MemberFact),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
	}
}

// SetMember seeds the member directory projection for tests and local runs.
func (s *Store) SetMember(organizationID string, fact ports.MemberFact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	organizationID = strings.TrimSpace(organizationID)
	if s.members[organizationID] == nil {
		s.members[organizationID] = make(map[string]ports.MemberFact)
	}
	fact.PlayerID = strings.TrimSpace(fact.PlayerID)
	s.members[organizationID][fact.PlayerID] = fact
}

func (s *Store) SaveProposal(_ context.Context, proposal entities.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[strings.TrimSpace(proposal.ProposalID)] = cloneProposal(proposal)
	return nil
}

func (s *Store) GetProposal(_ context.Context, proposalID string) (entities.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	return cloneProposal(proposal), nil
}

func (s *Store) ListProposalsByOrganization(_ context.Context, organizationID string) ([]entities.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Proposal, 0)
	organizationID = strings.TrimSpace(organizationID)
	for _, proposal := range s.proposals {
		if organizationID == "" || proposal.OrganizationID == organizationID {
			items = append(items, cloneProposal(proposal))
		}
	}
	sortProposalsByCreation(items)
	return items, nil
}

func (s *Store) ListNonTerminalProposals(_ context.Context) ([]entities.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Proposal, 0)
	for _, proposal := range s.proposals {
		if proposal.Status.Terminal() {
			continue
		}
		items = append(items, cloneProposal(proposal))
	}
	sortProposalsByCreation(items)
	return items, nil
}

func (s *Store) AppendSponsor(_ context.Context, proposalID string, playerID string) (entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	playerID = strings.TrimSpace(playerID)
	for _, sponsor := range proposal.Sponsors {
		if sponsor == playerID {
			return entities.Proposal{}, domainerrors.ErrAlreadySponsored
		}
	}
	proposal.Sponsors = append(proposal.Sponsors, playerID)
	s.proposals[proposal.ProposalID] = proposal
	return cloneProposal(proposal), nil
}

func (s *Store) AppendVote(_ context.Context, proposalID string, vote entities.Vote) (entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	for _, voterID := range proposal.VotedIDs {
		if voterID == vote.VoterID {
			return entities.Proposal{}, domainerrors.ErrAlreadyVoted
		}
	}
	proposal.Votes = append(proposal.Votes, vote)
	proposal.VotedIDs = append(proposal.VotedIDs, vote.VoterID)
	proposal.UpdatedAt = vote.CastAt
	s.proposals[proposal.ProposalID] = proposal
	return cloneProposal(proposal), nil
}

func (s *Store) AppendAmendment(_ context.Context, proposalID string, amendment entities.Amendment) (entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	proposal.Amendments = append(proposal.Amendments, amendment)
	proposal.UpdatedAt = amendment.ProposedAt
	s.proposals[proposal.ProposalID] = proposal
	return cloneProposal(proposal), nil
}

func (s *Store) RecordAmendmentVote(_ context.Context, proposalID string, amendmentID string, playerID string, inFavor bool) (entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	amendmentID = strings.TrimSpace(amendmentID)
	playerID = strings.TrimSpace(playerID)
	for i, amendment := range proposal.Amendments {
		if amendment.AmendmentID != amendmentID {
			continue
		}
		if amendment.Status != entities.AmendmentOpen {
			return entities.Proposal{}, domainerrors.ErrAmendmentClosed
		}
		for _, voterID := range amendment.VoterIDs {
			if voterID == playerID {
				return entities.Proposal{}, domainerrors.ErrAlreadyVotedAmendment
			}
		}
		proposal.Amendments[i].VoterIDs = append(proposal.Amendments[i].VoterIDs, playerID)
		if inFavor {
			proposal.Amendments[i].VotesFor++
		} else {
			proposal.Amendments[i].VotesAgainst++
		}
		s.proposals[proposal.ProposalID] = proposal
		return cloneProposal(proposal), nil
	}
	return entities.Proposal{}, domainerrors.ErrAmendmentNotFound
}

func (s *Store) AppendComment(_ context.Context, proposalID string, comment entities.Comment) (entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	if comment.ParentCommentID != "" {
		if _, found := proposal.CommentByID(comment.ParentCommentID); !found {
			return entities.Proposal{}, domainerrors.ErrCommentNotFound
		}
	}
	proposal.Comments = append(proposal.Comments, comment)
	proposal.UpdatedAt = comment.PostedAt
	s.proposals[proposal.ProposalID] = proposal
	return cloneProposal(proposal), nil
}

func (s *Store) AppendImplementationStep(_ context.Context, proposalID string, step entities.ImplementationStep) (entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	proposal.ImplementationSteps = append(proposal.ImplementationSteps, step)
	s.proposals[proposal.ProposalID] = proposal
	return cloneProposal(proposal), nil
}

func (s *Store) CompleteImplementationStep(_ context.Context, proposalID string, stepID string, completedAt time.Time) (entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	stepID = strings.TrimSpace(stepID)
	for i, step := range proposal.ImplementationSteps {
		if step.StepID != stepID {
			continue
		}
		if step.Completed {
			return entities.Proposal{}, domainerrors.ErrStepAlreadyCompleted
		}
		completedAt = completedAt.UTC()
		proposal.ImplementationSteps[i].Completed = true
		proposal.ImplementationSteps[i].CompletedAt = &completedAt
		proposal.UpdatedAt = completedAt
		if proposal.Status == entities.ProposalStatusImplementing && proposal.AllStepsCompleted() {
			proposal.Status = entities.ProposalStatusImplemented
		}
		s.proposals[proposal.ProposalID] = proposal
		return cloneProposal(proposal), nil
	}
	return entities.Proposal{}, domainerrors.ErrStepNotFound
}

func (s *Store) TransitionProposal(
	_ context.Context,
	proposalID string,
	fromStatus entities.ProposalStatus,
	apply func(*entities.Proposal),
) (entities.Proposal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, false, domainerrors.ErrProposalNotFound
	}
	if proposal.Status != fromStatus {
		return cloneProposal(proposal), false, nil
	}
	updated := cloneProposal(proposal)
	apply(&updated)
	s.proposals[updated.ProposalID] = cloneProposal(updated)
	return updated, true, nil
}

func (s *Store) GetMember(_ context.Context, organizationID string, playerID string) (ports.MemberFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.members[strings.TrimSpace(organizationID)]
	if !ok {
		return ports.MemberFact{PlayerID: strings.TrimSpace(playerID)}, nil
	}
	fact, ok := org[strings.TrimSpace(playerID)]
	if !ok {
		return ports.MemberFact{PlayerID: strings.TrimSpace(playerID)}, nil
	}
	return fact, nil
}

func (s *Store) ListMembers(_ context.Context, organizationID string) ([]ports.MemberFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org := s.members[strings.TrimSpace(organizationID)]
	items := make([]ports.MemberFact, 0, len(org))
	for _, fact := range org {
		items = append(items, fact)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].PlayerID < items[j].PlayerID
	})
	return items, nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = strings.TrimSpace(key)
	record, exists := s.idempotency[key]
	if !exists {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now.UTC()) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.Key)
	existing, exists := s.idempotency[key]
	if exists {
		if existing.RequestHash != record.RequestHash || existing.EntityID != record.EntityID {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	s.idempotency[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: strings.TrimSpace(record.RequestHash),
		EntityID:    strings.TrimSpace(record.EntityID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

// Now lets the store double as the Clock port in local wiring. Tests that
// need deterministic time inject their own clock instead.
func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func sortProposalsByCreation(items []entities.Proposal) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ProposalID < items[j].ProposalID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

// cloneProposal copies every slice and pointer so callers can never mutate
// stored state through a returned aggregate.
func cloneProposal(proposal entities.Proposal) entities.Proposal {
	cloned := proposal
	cloned.Sponsors = append([]string(nil), proposal.Sponsors...)
	cloned.EligibleVoterIDs = append([]string(nil), proposal.EligibleVoterIDs...)
	cloned.Votes = append([]entities.Vote(nil), proposal.Votes...)
	cloned.VotedIDs = append([]string(nil), proposal.VotedIDs...)
	cloned.Amendments = make([]entities.Amendment, len(proposal.Amendments))
	for i, amendment := range proposal.Amendments {
		cloned.Amendments[i] = amendment
		cloned.Amendments[i].VoterIDs = append([]string(nil), amendment.VoterIDs...)
	}
	cloned.Comments = append([]entities.Comment(nil), proposal.Comments...)
	cloned.ImplementationSteps = make([]entities.ImplementationStep, len(proposal.ImplementationSteps))
	for i, step := range proposal.ImplementationSteps {
		cloned.ImplementationSteps[i] = step
		if step.CompletedAt != nil {
			completedAt := *step.CompletedAt
			cloned.ImplementationSteps[i].CompletedAt = &completedAt
		}
	}
	return cloned
}
