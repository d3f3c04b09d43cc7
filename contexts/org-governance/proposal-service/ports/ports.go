package ports

import (
	"context"
	"time"

	"simgov/contexts/org-governance/proposal-service/domain/entities"
	contractsv1 "simgov/contracts/gen/events/v1"
)

// ProposalRepository owns proposal persistence. Every mutating method is a
// per-proposal exclusive section: implementations must apply the read-check-
// write cycle atomically (store mutex in memory, row lock in postgres).
type ProposalRepository interface {
	SaveProposal(ctx context.Context, proposal entities.Proposal) error
	GetProposal(ctx context.Context, proposalID string) (entities.Proposal, error)
	ListProposalsByOrganization(ctx context.Context, organizationID string) ([]entities.Proposal, error)
	// ListNonTerminalProposals feeds the phase scheduler tick.
	ListNonTerminalProposals(ctx context.Context) ([]entities.Proposal, error)
	// AppendSponsor atomically dedupes the sponsor.
	AppendSponsor(ctx context.Context, proposalID string, playerID string) (entities.Proposal, error)
	// AppendVote is the atomic check-and-append closing the double-vote race:
	// it must verify the voter is absent from VotedIDs and append the vote
	// plus voter ID in one indivisible step, returning ErrAlreadyVoted to the
	// loser of a concurrent duplicate.
	AppendVote(ctx context.Context, proposalID string, vote entities.Vote) (entities.Proposal, error)
	AppendAmendment(ctx context.Context, proposalID string, amendment entities.Amendment) (entities.Proposal, error)
	// RecordAmendmentVote atomically dedupes the voter per amendment and
	// increments the matching counter.
	RecordAmendmentVote(ctx context.Context, proposalID string, amendmentID string, playerID string, inFavor bool) (entities.Proposal, error)
	AppendComment(ctx context.Context, proposalID string, comment entities.Comment) (entities.Proposal, error)
	AppendImplementationStep(ctx context.Context, proposalID string, step entities.ImplementationStep) (entities.Proposal, error)
	// CompleteImplementationStep marks one step completed and, when it was the
	// last open step, flips the proposal to IMPLEMENTED in the same atomic
	// write.
	CompleteImplementationStep(ctx context.Context, proposalID string, stepID string, completedAt time.Time) (entities.Proposal, error)
	// TransitionProposal persists a status change together with any snapshot
	// or tally produced by the same step. The update is applied only while
	// the stored status still equals fromStatus, which is what makes
	// scheduler ticks idempotent.
	TransitionProposal(
		ctx context.Context,
		proposalID string,
		fromStatus entities.ProposalStatus,
		apply func(*entities.Proposal),
	) (entities.Proposal, bool, error)
}

// MemberFact mirrors the identity provider's answer for one player.
type MemberFact struct {
	PlayerID   string
	Member     bool
	Standing   float64
	TenureDays int
	VoteWeight float64
}

/// MemberDirectory is the external identity provider: membership, standing and
// tenure facts per organization.
type MemberDirectory interface {
	GetMember(ctx context.Context, organizationID string, playerID string) (MemberFact, error)
	// ListMembers backs the eligibility snapshot taken when debate closes.
	ListMembers(ctx context.Context, organizationID string) ([]MemberFact, error)
}

// IdempotencyRecord captures dedupe metadata for mutating create requests.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	EntityID    string
	ExpiresAt   time.Time
}

// IdempotencyStore abstracts idempotency persistence with TTL handling.
type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

// Clock allows deterministic testing of every window and boundary rule.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts proposal/amendment/event identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxWriter appends an event inside the module's persistence boundary.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventEnvelope reuses the canonical cross-context envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
