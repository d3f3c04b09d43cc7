package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"simgov/contexts/org-governance/election-service/domain/entities"
	domainerrors "simgov/contexts/org-governance/election-service/domain/errors"
	"simgov/contexts/org-governance/election-service/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// Store is the in-memory implementation of every election-service port. One
// mutex guards the whole store, which makes each repository method a critical
// section and satisfies the atomic check-and-append contract directly.
type Store struct {
	mu sync.RWMutex

	elections   map[string]entities.Election
	petitions   map[string]entities.RecallPetition
	members     map[string]map[string]ports.MemberFact
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
	eventDedup  map[string]dedupRecord
}

func NewStore(seed []entities.Election) *Store {
	elections := make(map[string]entities.Election, len(seed))
	for _, election := range seed {
		elections[election.ElectionID] = cloneElection(election)
	}
	return &Store{
		elections:   elections,
		petitions:   make(map[string]entities.RecallPetition),
		members:     make(map[string]map[string]ports.MemberFact),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
		eventDedup:  make(map[string]dedupRecord),
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

func (s *Store) SaveElection(_ context.Context, election entities.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elections[strings.TrimSpace(election.ElectionID)] = cloneElection(election)
	return nil
}

func (s *Store) GetElection(_ context.Context, electionID string) (entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	return cloneElection(election), nil
}

func (s *Store) ListElectionsByOrganization(_ context.Context, organizationID string) ([]entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Election, 0)
	organizationID = strings.TrimSpace(organizationID)
	for _, election := range s.elections {
		if organizationID == "" || election.OrganizationID == organizationID {
			items = append(items, cloneElection(election))
		}
	}
	sortElectionsByCreation(items)
	return items, nil
}

func (s *Store) ListNonTerminalElections(_ context.Context) ([]entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Election, 0)
	for _, election := range s.elections {
		if election.Status.Terminal() {
			continue
		}
		items = append(items, cloneElection(election))
	}
	sortElectionsByCreation(items)
	return items, nil
}

func (s *Store) AppendBallot(_ context.Context, electionID string, ballot entities.Ballot) (entities.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	for _, voterID := range election.VotedIDs {
		if voterID == ballot.VoterID {
			return entities.Election{}, domainerrors.ErrAlreadyVoted
		}
	}
	election.Ballots = append(election.Ballots, ballot)
	election.VotedIDs = append(election.VotedIDs, ballot.VoterID)
	election.UpdatedAt = ballot.CastAt
	s.elections[election.ElectionID] = election
	return cloneElection(election), nil
}

func (s *Store) AppendCandidate(_ context.Context, electionID string, candidate entities.Candidate) (entities.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	for _, existing := range election.Candidates {
		if existing.PlayerID == candidate.PlayerID && !existing.Withdrawn {
			return entities.Election{}, domainerrors.ErrAlreadyCandidate
		}
	}
	election.Candidates = append(election.Candidates, candidate)
	election.UpdatedAt = candidate.FiledAt
	s.elections[election.ElectionID] = election
	return cloneElection(election), nil
}

func (s *Store) WithdrawCandidate(_ context.Context, electionID string, playerID string, withdrewAt time.Time) (entities.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	playerID = strings.TrimSpace(playerID)
	for i, candidate := range election.Candidates {
		if candidate.PlayerID != playerID {
			continue
		}
		if candidate.Withdrawn {
			return entities.Election{}, domainerrors.ErrAlreadyWithdrawn
		}
		withdrewAt = withdrewAt.UTC()
		election.Candidates[i].Withdrawn = true
		election.Candidates[i].WithdrewAt = &withdrewAt
		election.UpdatedAt = withdrewAt
		s.elections[election.ElectionID] = election
		return cloneElection(election), nil
	}
	return entities.Election{}, domainerrors.ErrCandidateNotFound
}

func (s *Store) EndorseCandidate(_ context.Context, electionID string, candidateID string, playerID string) (entities.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	candidateID = strings.TrimSpace(candidateID)
	playerID = strings.TrimSpace(playerID)
	for i, candidate := range election.Candidates {
		if candidate.PlayerID != candidateID || candidate.Withdrawn {
			continue
		}
		for _, endorser := range candidate.Endorsements {
			if endorser == playerID {
				return entities.Election{}, domainerrors.ErrAlreadyEndorsed
			}
		}
		election.Candidates[i].Endorsements = append(election.Candidates[i].Endorsements, playerID)
		s.elections[election.ElectionID] = election
		return cloneElection(election), nil
	}
	return entities.Election{}, domainerrors.ErrCandidateNotFound
}

func (s *Store) TransitionElection(
	_ context.Context,
	electionID string,
	fromStatus entities.ElectionStatus,
	apply func(*entities.Election),
) (entities.Election, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, false, domainerrors.ErrElectionNotFound
	}
	if election.Status != fromStatus {
		return cloneElection(election), false, nil
	}
	updated := cloneElection(election)
	apply(&updated)
	s.elections[updated.ElectionID] = cloneElection(updated)
	return updated, true, nil
}

func (s *Store) SavePetition(_ context.Context, petition entities.RecallPetition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.petitions[strings.TrimSpace(petition.PetitionID)] = clonePetition(petition)
	return nil
}

func (s *Store) GetPetition(_ context.Context, petitionID string) (entities.RecallPetition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	petition, ok := s.petitions[strings.TrimSpace(petitionID)]
	if !ok {
		return entities.RecallPetition{}, domainerrors.ErrPetitionNotFound
	}
	return clonePetition(petition), nil
}

func (s *Store) ListOpenPetitions(_ context.Context, organizationID string) ([]entities.RecallPetition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.RecallPetition, 0)
	organizationID = strings.TrimSpace(organizationID)
	for _, petition := range s.petitions {
		if petition.Status != entities.PetitionStatusOpen {
			continue
		}
		if organizationID != "" && petition.OrganizationID != organizationID {
			continue
		}
		items = append(items, clonePetition(petition))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) AppendSignature(_ context.Context, petitionID string, signature entities.Signature) (entities.RecallPetition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	petition, ok := s.petitions[strings.TrimSpace(petitionID)]
	if !ok {
		return entities.RecallPetition{}, domainerrors.ErrPetitionNotFound
	}
	if petition.Status != entities.PetitionStatusOpen {
		return entities.RecallPetition{}, domainerrors.ErrPetitionClosed
	}
	for _, existing := range petition.Signatures {
		if existing.PlayerID == signature.PlayerID {
			return entities.RecallPetition{}, domainerrors.ErrAlreadySigned
		}
	}
	petition.Signatures = append(petition.Signatures, signature)
	petition.UpdatedAt = signature.SignedAt
	s.petitions[petition.PetitionID] = petition
	return clonePetition(petition), nil
}

func (s *Store) TransitionPetition(
	_ context.Context,
	petitionID string,
	fromStatus entities.PetitionStatus,
	apply func(*entities.RecallPetition),
) (entities.RecallPetition, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	petition, ok := s.petitions[strings.TrimSpace(petitionID)]
	if !ok {
		return entities.RecallPetition{}, false, domainerrors.ErrPetitionNotFound
	}
	if petition.Status != fromStatus {
		return clonePetition(petition), false, nil
	}
	updated := clonePetition(petition)
	apply(&updated)
	s.petitions[updated.PetitionID] = clonePetition(updated)
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

func (s *Store) ReserveEvent(_ context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eventID = strings.TrimSpace(eventID)
	now := time.Now().UTC()
	if existing, ok := s.eventDedup[eventID]; ok && existing.expiresAt.After(now) {
		return false, nil
	}
	s.eventDedup[eventID] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return true, nil
}

// Now lets the store double as the Clock port in local wiring. Tests that
// need deterministic time inject their own clock instead.
func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func sortElectionsByCreation(items []entities.Election) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ElectionID < items[j].ElectionID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

// cloneElection copies every slice and pointer so callers can never mutate
// stored state through a returned aggregate.
func cloneElection(election entities.Election) entities.Election {
	cloned := election
	cloned.Candidates = make([]entities.Candidate, len(election.Candidates))
	for i, candidate := range election.Candidates {
		cloned.Candidates[i] = candidate
		cloned.Candidates[i].Endorsements = append([]string(nil), candidate.Endorsements...)
		if candidate.WithdrewAt != nil {
			withdrewAt := *candidate.WithdrewAt
			cloned.Candidates[i].WithdrewAt = &withdrewAt
		}
	}
	cloned.Ballots = make([]entities.Ballot, len(election.Ballots))
	for i, ballot := range election.Ballots {
		cloned.Ballots[i] = ballot
		cloned.Ballots[i].Approved = append([]string(nil), ballot.Approved...)
		cloned.Ballots[i].Ranked = append([]string(nil), ballot.Ranked...)
	}
	cloned.EligibleVoterIDs = append([]string(nil), election.EligibleVoterIDs...)
	cloned.VotedIDs = append([]string(nil), election.VotedIDs...)
	if election.Results != nil {
		results := *election.Results
		results.Counts = append([]entities.CandidateCount(nil), election.Results.Counts...)
		results.WinnerIDs = append([]string(nil), election.Results.WinnerIDs...)
		results.RunoffCandidateIDs = append([]string(nil), election.Results.RunoffCandidateIDs...)
		results.RankedRounds = append([]entities.RankedRound(nil), election.Results.RankedRounds...)
		cloned.Results = &results
	}
	return cloned
}

func clonePetition(petition entities.RecallPetition) entities.RecallPetition {
	cloned := petition
	cloned.Signatures = append([]entities.Signature(nil), petition.Signatures...)
	return cloned
}
