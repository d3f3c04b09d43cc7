package ports

import (
	"context"
	"time"

	"simgov/contexts/org-governance/election-service/domain/entities"
	contractsv1 "simgov/contracts/gen/events/v1"
)

// ElectionRepository owns election persistence. Every mutating method is a
// per-election exclusive section: implementations must apply the read-check-
// write cycle atomically (store mutex in memory, row lock in postgres).
type ElectionRepository interface {
	SaveElection(ctx context.Context, election entities.Election) error
	GetElection(ctx context.Context, electionID string) (entities.Election, error)
	ListElectionsByOrganization(ctx context.Context, organizationID string) ([]entities.Election, error)
	// ListNonTerminalElections feeds the phase scheduler tick.
	ListNonTerminalElections(ctx context.Context) ([]entities.Election, error)
	// AppendBallot is the atomic check-and-append closing the double-vote
	// race: it must verify the voter is absent from VotedIDs and append the
	// ballot plus voter ID in one indivisible step, returning
	// ErrAlreadyVoted to the loser of a concurrent duplicate.
	AppendBallot(ctx context.Context, electionID string, ballot entities.Ballot) (entities.Election, error)
	// AppendCandidate atomically rejects a duplicate live candidacy.
	AppendCandidate(ctx context.Context, electionID string, candidate entities.Candidate) (entities.Election, error)
	WithdrawCandidate(ctx context.Context, electionID string, playerID string, withdrewAt time.Time) (entities.Election, error)
	EndorseCandidate(ctx context.Context, electionID string, candidateID string, playerID string) (entities.Election, error)
	// TransitionElection persists a status change together with any snapshot
	// or results produced by the same step. The update is applied only while
	// the stored status still equals fromStatus, which is what makes
	// scheduler ticks idempotent.
	TransitionElection(
		ctx context.Context,
		electionID string,
		fromStatus entities.ElectionStatus,
		apply func(*entities.Election),
	) (entities.Election, bool, error)
}

// PetitionRepository owns recall petition persistence with the same per-entity
// atomicity contract.
type PetitionRepository interface {
	SavePetition(ctx context.Context, petition entities.RecallPetition) error
	GetPetition(ctx context.Context, petitionID string) (entities.RecallPetition, error)
	// ListOpenPetitions filters by organization; an empty organizationID
	// returns every open petition for the expiry sweep.
	ListOpenPetitions(ctx context.Context, organizationID string) ([]entities.RecallPetition, error)
	// AppendSignature atomically dedupes the signer and reports the new
	// signature count.
	AppendSignature(ctx context.Context, petitionID string, signature entities.Signature) (entities.RecallPetition, error)
	TransitionPetition(
		ctx context.Context,
		petitionID string,
		fromStatus entities.PetitionStatus,
		apply func(*entities.RecallPetition),
	) (entities.RecallPetition, bool, error)
}

// MemberFact mirrors the identity provider's answer for one player.
type MemberFact struct {
	PlayerID   string
	Member     bool
	Standing   float64
	TenureDays int
	VoteWeight float64
}

// MemberDirectory is the external identity provider: membership, standing and
// tenure facts per organization.
type MemberDirectory interface {
	GetMember(ctx context.Context, organizationID string, playerID string) (MemberFact, error)
	// ListMembers backs the eligibility snapshot taken when filing closes.
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

// IDGenerator abstracts election/petition/event identifier generation.
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

// EventDedupStore provides idempotent processing guarantees for consumed
// events.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

// EventEnvelope reuses the canonical cross-context envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

// EventSubscriber registers a topic consumer callback.
type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
