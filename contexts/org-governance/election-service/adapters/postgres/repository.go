package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"simgov/contexts/org-governance/election-service/domain/entities"
	domainerrors "simgov/contexts/org-governance/election-service/domain/errors"
	"simgov/contexts/org-governance/election-service/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository implements every election-service port on postgres. Elections
// and petitions persist as single rows with jsonb aggregate columns, so the
// check-and-append contract reduces to a SELECT ... FOR UPDATE per entity.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) SaveElection(ctx context.Context, election entities.Election) error {
	row, err := electionModelFromEntity(election)
	if err != nil {
		return r.logError("election_repo_save_marshal_failed", err, "election_id", election.ElectionID)
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":             row.Status,
			"candidates":         row.Candidates,
			"ballots":            row.Ballots,
			"eligible_voter_ids": row.EligibleVoterIDs,
			"voted_ids":          row.VotedIDs,
			"results":            row.Results,
			"updated_at":         row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("election_repo_save_failed", create.Error,
			"election_id", strings.TrimSpace(election.ElectionID),
			"organization_id", strings.TrimSpace(election.OrganizationID),
		)
	}
	return nil
}

func (r *Repository) GetElection(ctx context.Context, electionID string) (entities.Election, error) {
	var row electionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(electionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Election{}, domainerrors.ErrElectionNotFound
		}
		return entities.Election{}, r.logError("election_repo_get_failed", err, "election_id", strings.TrimSpace(electionID))
	}
	return row.toEntity()
}

func (r *Repository) ListElectionsByOrganization(ctx context.Context, organizationID string) ([]entities.Election, error) {
	tx := r.db.WithContext(ctx).Model(&electionModel{})
	if strings.TrimSpace(organizationID) != "" {
		tx = tx.Where("organization_id = ?", strings.TrimSpace(organizationID))
	}
	var rows []electionModel
	if err := tx.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_by_organization_failed", err,
			"organization_id", strings.TrimSpace(organizationID),
		)
	}
	return toElectionEntities(rows)
}

func (r *Repository) ListNonTerminalElections(ctx context.Context) ([]entities.Election, error) {
	var rows []electionModel
	if err := r.db.WithContext(ctx).
		Where("status NOT IN ?", []string{
			string(entities.ElectionStatusCompleted),
			string(entities.ElectionStatusRunoff),
			string(entities.ElectionStatusCancelled),
		}).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_non_terminal_failed", err)
	}
	return toElectionEntities(rows)
}

func (r *Repository) AppendBallot(ctx context.Context, electionID string, ballot entities.Ballot) (entities.Election, error) {
	var updated entities.Election
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		election, err := lockElection(tx, electionID)
		if err != nil {
			return err
		}
		for _, voterID := range election.VotedIDs {
			if voterID == ballot.VoterID {
				return domainerrors.ErrAlreadyVoted
			}
		}
		election.Ballots = append(election.Ballots, ballot)
		election.VotedIDs = append(election.VotedIDs, ballot.VoterID)
		election.UpdatedAt = ballot.CastAt
		if err := saveLockedElection(tx, election); err != nil {
			return err
		}
		updated = election
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyVoted) || errors.Is(err, domainerrors.ErrElectionNotFound) {
			return entities.Election{}, err
		}
		return entities.Election{}, r.logError("election_repo_append_ballot_failed", err,
			"election_id", strings.TrimSpace(electionID),
			"voter_id", strings.TrimSpace(ballot.VoterID),
		)
	}
	return updated, nil
}

func (r *Repository) AppendCandidate(ctx context.Context, electionID string, candidate entities.Candidate) (entities.Election, error) {
	var updated entities.Election
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		election, err := lockElection(tx, electionID)
		if err != nil {
			return err
		}
		for _, existing := range election.Candidates {
			if existing.PlayerID == candidate.PlayerID && !existing.Withdrawn {
				return domainerrors.ErrAlreadyCandidate
			}
		}
		election.Candidates = append(election.Candidates, candidate)
		election.UpdatedAt = candidate.FiledAt
		if err := saveLockedElection(tx, election); err != nil {
			return err
		}
		updated = election
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyCandidate) || errors.Is(err, domainerrors.ErrElectionNotFound) {
			return entities.Election{}, err
		}
		return entities.Election{}, r.logError("election_repo_append_candidate_failed", err,
			"election_id", strings.TrimSpace(electionID),
			"player_id", strings.TrimSpace(candidate.PlayerID),
		)
	}
	return updated, nil
}

func (r *Repository) WithdrawCandidate(ctx context.Context, electionID string, playerID string, withdrewAt time.Time) (entities.Election, error) {
	playerID = strings.TrimSpace(playerID)
	var updated entities.Election
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		election, err := lockElection(tx, electionID)
		if err != nil {
			return err
		}
		found := false
		for i, candidate := range election.Candidates {
			if candidate.PlayerID != playerID {
				continue
			}
			if candidate.Withdrawn {
				return domainerrors.ErrAlreadyWithdrawn
			}
			at := withdrewAt.UTC()
			election.Candidates[i].Withdrawn = true
			election.Candidates[i].WithdrewAt = &at
			election.UpdatedAt = at
			found = true
			break
		}
		if !found {
			return domainerrors.ErrCandidateNotFound
		}
		if err := saveLockedElection(tx, election); err != nil {
			return err
		}
		updated = election
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyWithdrawn) ||
			errors.Is(err, domainerrors.ErrCandidateNotFound) ||
			errors.Is(err, domainerrors.ErrElectionNotFound) {
			return entities.Election{}, err
		}
		return entities.Election{}, r.logError("election_repo_withdraw_candidate_failed", err,
			"election_id", strings.TrimSpace(electionID),
			"player_id", playerID,
		)
	}
	return updated, nil
}

func (r *Repository) EndorseCandidate(ctx context.Context, electionID string, candidateID string, playerID string) (entities.Election, error) {
	candidateID = strings.TrimSpace(candidateID)
	playerID = strings.TrimSpace(playerID)
	var updated entities.Election
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		election, err := lockElection(tx, electionID)
		if err != nil {
			return err
		}
		found := false
		for i, candidate := range election.Candidates {
			if candidate.PlayerID != candidateID || candidate.Withdrawn {
				continue
			}
			for _, endorser := range candidate.Endorsements {
				if endorser == playerID {
					return domainerrors.ErrAlreadyEndorsed
				}
			}
			election.Candidates[i].Endorsements = append(election.Candidates[i].Endorsements, playerID)
			found = true
			break
		}
		if !found {
			return domainerrors.ErrCandidateNotFound
		}
		if err := saveLockedElection(tx, election); err != nil {
			return err
		}
		updated = election
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyEndorsed) ||
			errors.Is(err, domainerrors.ErrCandidateNotFound) ||
			errors.Is(err, domainerrors.ErrElectionNotFound) {
			return entities.Election{}, err
		}
		return entities.Election{}, r.logError("election_repo_endorse_candidate_failed", err,
			"election_id", strings.TrimSpace(electionID),
			"candidate_id", candidateID,
		)
	}
	return updated, nil
}

func (r *Repository) TransitionElection(
	ctx context.Context,
	electionID string,
	fromStatus entities.ElectionStatus,
	apply func(*entities.Election),
) (entities.Election, bool, error) {
	var updated entities.Election
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		election, err := lockElection(tx, electionID)
		if err != nil {
			return err
		}
		if election.Status != fromStatus {
			updated = election
			return nil
		}
		apply(&election)
		if err := saveLockedElection(tx, election); err != nil {
			return err
		}
		updated = election
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrElectionNotFound) {
			return entities.Election{}, false, err
		}
		return entities.Election{}, false, r.logError("election_repo_transition_failed", err,
			"election_id", strings.TrimSpace(electionID),
			"from_status", string(fromStatus),
		)
	}
	return updated, applied, nil
}

func (r *Repository) SavePetition(ctx context.Context, petition entities.RecallPetition) error {
	row, err := petitionModelFromEntity(petition)
	if err != nil {
		return r.logError("election_repo_save_petition_marshal_failed", err, "petition_id", petition.PetitionID)
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":      row.Status,
			"signatures":  row.Signatures,
			"election_id": row.ElectionID,
			"updated_at":  row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("election_repo_save_petition_failed", create.Error,
			"petition_id", strings.TrimSpace(petition.PetitionID),
		)
	}
	return nil
}

func (r *Repository) GetPetition(ctx context.Context, petitionID string) (entities.RecallPetition, error) {
	var row petitionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(petitionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.RecallPetition{}, domainerrors.ErrPetitionNotFound
		}
		return entities.RecallPetition{}, r.logError("election_repo_get_petition_failed", err,
			"petition_id", strings.TrimSpace(petitionID),
		)
	}
	return row.toEntity()
}

func (r *Repository) ListOpenPetitions(ctx context.Context, organizationID string) ([]entities.RecallPetition, error) {
	tx := r.db.WithContext(ctx).Model(&petitionModel{}).
		Where("status = ?", string(entities.PetitionStatusOpen))
	if strings.TrimSpace(organizationID) != "" {
		tx = tx.Where("organization_id = ?", strings.TrimSpace(organizationID))
	}
	var rows []petitionModel
	if err := tx.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_open_petitions_failed", err,
			"organization_id", strings.TrimSpace(organizationID),
		)
	}
	items := make([]entities.RecallPetition, 0, len(rows))
	for _, row := range rows {
		petition, err := row.toEntity()
		if err != nil {
			return nil, r.logError("election_repo_decode_petition_failed", err, "petition_id", row.ID)
		}
		items = append(items, petition)
	}
	return items, nil
}

func (r *Repository) AppendSignature(ctx context.Context, petitionID string, signature entities.Signature) (entities.RecallPetition, error) {
	var updated entities.RecallPetition
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		petition, err := lockPetition(tx, petitionID)
		if err != nil {
			return err
		}
		if petition.Status != entities.PetitionStatusOpen {
			return domainerrors.ErrPetitionClosed
		}
		for _, existing := range petition.Signatures {
			if existing.PlayerID == signature.PlayerID {
				return domainerrors.ErrAlreadySigned
			}
		}
		petition.Signatures = append(petition.Signatures, signature)
		petition.UpdatedAt = signature.SignedAt
		if err := saveLockedPetition(tx, petition); err != nil {
			return err
		}
		updated = petition
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadySigned) ||
			errors.Is(err, domainerrors.ErrPetitionClosed) ||
			errors.Is(err, domainerrors.ErrPetitionNotFound) {
			return entities.RecallPetition{}, err
		}
		return entities.RecallPetition{}, r.logError("election_repo_append_signature_failed", err,
			"petition_id", strings.TrimSpace(petitionID),
			"player_id", strings.TrimSpace(signature.PlayerID),
		)
	}
	return updated, nil
}

func (r *Repository) TransitionPetition(
	ctx context.Context,
	petitionID string,
	fromStatus entities.PetitionStatus,
	apply func(*entities.RecallPetition),
) (entities.RecallPetition, bool, error) {
	var updated entities.RecallPetition
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		petition, err := lockPetition(tx, petitionID)
		if err != nil {
			return err
		}
		if petition.Status != fromStatus {
			updated = petition
			return nil
		}
		apply(&petition)
		if err := saveLockedPetition(tx, petition); err != nil {
			return err
		}
		updated = petition
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrPetitionNotFound) {
			return entities.RecallPetition{}, false, err
		}
		return entities.RecallPetition{}, false, r.logError("election_repo_transition_petition_failed", err,
			"petition_id", strings.TrimSpace(petitionID),
			"from_status", string(fromStatus),
		)
	}
	return updated, applied, nil
}

func (r *Repository) GetMember(ctx context.Context, organizationID string, playerID string) (ports.MemberFact, error) {
	var row memberFactModel
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", strings.TrimSpace(organizationID)).
		Where("player_id = ?", strings.TrimSpace(playerID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.MemberFact{PlayerID: strings.TrimSpace(playerID)}, nil
		}
		return ports.MemberFact{}, r.logError("election_repo_get_member_failed", err,
			"organization_id", strings.TrimSpace(organizationID),
			"player_id", strings.TrimSpace(playerID),
		)
	}
	return row.toFact(), nil
}

func (r *Repository) ListMembers(ctx context.Context, organizationID string) ([]ports.MemberFact, error) {
	var rows []memberFactModel
	if err := r.db.WithContext(ctx).
		Where("organization_id = ?", strings.TrimSpace(organizationID)).
		Order("player_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_members_failed", err,
			"organization_id", strings.TrimSpace(organizationID),
		)
	}
	items := make([]ports.MemberFact, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toFact())
	}
	return items, nil
}

// SetMember upserts the member directory projection maintained from identity
// events.
func (r *Repository) SetMember(ctx context.Context, organizationID string, fact ports.MemberFact) error {
	row := memberFactModel{
		OrganizationID: strings.TrimSpace(organizationID),
		PlayerID:       strings.TrimSpace(fact.PlayerID),
		Member:         fact.Member,
		Standing:       fact.Standing,
		TenureDays:     fact.TenureDays,
		VoteWeight:     fact.VoteWeight,
		UpdatedAt:      time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "organization_id"}, {Name: "player_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"member":      row.Member,
			"standing":    row.Standing,
			"tenure_days": row.TenureDays,
			"vote_weight": row.VoteWeight,
			"updated_at":  row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("election_repo_set_member_failed", create.Error,
			"organization_id", row.OrganizationID,
			"player_id", row.PlayerID,
		)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("election_repo_idempotency_get_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).Error; err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("election_repo_idempotency_expire_delete_failed", err,
				"idempotency_key", strings.TrimSpace(key),
			)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		EntityID:    row.EntityID,
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:         strings.TrimSpace(record.Key),
		RequestHash: strings.TrimSpace(record.RequestHash),
		EntityID:    strings.TrimSpace(record.EntityID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("election_repo_idempotency_put_failed", create.Error, "idempotency_key", row.Key)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).Error; err != nil {
		return r.logError("election_repo_idempotency_load_existing_failed", err, "idempotency_key", row.Key)
	}
	if existing.RequestHash != row.RequestHash || existing.EntityID != row.EntityID {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("election_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("election_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("election_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("election_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, r.logError("election_repo_reserve_event_failed", create.Error,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if create.RowsAffected > 0 {
		return true, nil
	}
	return false, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "org-governance/election-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("election repository operation failed", fields...)
	return err
}

func lockElection(tx *gorm.DB, electionID string) (entities.Election, error) {
	var row electionModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", strings.TrimSpace(electionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Election{}, domainerrors.ErrElectionNotFound
		}
		return entities.Election{}, err
	}
	return row.toEntity()
}

func saveLockedElection(tx *gorm.DB, election entities.Election) error {
	row, err := electionModelFromEntity(election)
	if err != nil {
		return err
	}
	return tx.Model(&electionModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"status":             row.Status,
			"candidates":         row.Candidates,
			"ballots":            row.Ballots,
			"eligible_voter_ids": row.EligibleVoterIDs,
			"voted_ids":          row.VotedIDs,
			"results":            row.Results,
			"updated_at":         row.UpdatedAt,
		}).Error
}

func lockPetition(tx *gorm.DB, petitionID string) (entities.RecallPetition, error) {
	var row petitionModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", strings.TrimSpace(petitionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.RecallPetition{}, domainerrors.ErrPetitionNotFound
		}
		return entities.RecallPetition{}, err
	}
	return row.toEntity()
}

func saveLockedPetition(tx *gorm.DB, petition entities.RecallPetition) error {
	row, err := petitionModelFromEntity(petition)
	if err != nil {
		return err
	}
	return tx.Model(&petitionModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"status":      row.Status,
			"signatures":  row.Signatures,
			"election_id": row.ElectionID,
			"updated_at":  row.UpdatedAt,
		}).Error
}

type electionModel struct {
	ID                  string    `gorm:"column:id;primaryKey"`
	OrganizationID      string    `gorm:"column:organization_id"`
	ElectionType        string    `gorm:"column:election_type"`
	Position            string    `gorm:"column:position"`
	SeatsAvailable      int       `gorm:"column:seats_available"`
	VoteType            string    `gorm:"column:vote_type"`
	Status              string    `gorm:"column:status"`
	FilingStart         time.Time `gorm:"column:filing_start"`
	FilingEnd           time.Time `gorm:"column:filing_end"`
	VotingStart         time.Time `gorm:"column:voting_start"`
	VotingEnd           time.Time `gorm:"column:voting_end"`
	MinStandingToVote   float64   `gorm:"column:min_standing_to_vote"`
	MinStandingToRun    float64   `gorm:"column:min_standing_to_run"`
	MinTenureToVote     int       `gorm:"column:min_tenure_to_vote"`
	MinTenureToRun      int       `gorm:"column:min_tenure_to_run"`
	QuorumPercent       float64   `gorm:"column:quorum_percent"`
	WinThresholdPercent float64   `gorm:"column:win_threshold_percent"`
	AllowRunoff         bool      `gorm:"column:allow_runoff"`
	Candidates          []byte    `gorm:"column:candidates;type:jsonb"`
	Ballots             []byte    `gorm:"column:ballots;type:jsonb"`
	EligibleVoterIDs    []byte    `gorm:"column:eligible_voter_ids;type:jsonb"`
	VotedIDs            []byte    `gorm:"column:voted_ids;type:jsonb"`
	Results             []byte    `gorm:"column:results;type:jsonb"`
	ParentElectionID    string    `gorm:"column:parent_election_id"`
	TargetPlayerID      string    `gorm:"column:target_player_id"`
	CreatedAt           time.Time `gorm:"column:created_at"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (electionModel) TableName() string {
	return "elections"
}

func electionModelFromEntity(election entities.Election) (electionModel, error) {
	candidates, err := json.Marshal(election.Candidates)
	if err != nil {
		return electionModel{}, err
	}
	ballots, err := json.Marshal(election.Ballots)
	if err != nil {
		return electionModel{}, err
	}
	eligible, err := json.Marshal(election.EligibleVoterIDs)
	if err != nil {
		return electionModel{}, err
	}
	voted, err := json.Marshal(election.VotedIDs)
	if err != nil {
		return electionModel{}, err
	}
	var results []byte
	if election.Results != nil {
		results, err = json.Marshal(election.Results)
		if err != nil {
			return electionModel{}, err
		}
	}
	row := electionModel{
		ID:                  strings.TrimSpace(election.ElectionID),
		OrganizationID:      strings.TrimSpace(election.OrganizationID),
		ElectionType:        string(election.ElectionType),
		Position:            strings.TrimSpace(election.Position),
		SeatsAvailable:      election.SeatsAvailable,
		VoteType:            string(election.VoteType),
		Status:              string(election.Status),
		FilingStart:         election.FilingStart.UTC(),
		FilingEnd:           election.FilingEnd.UTC(),
		VotingStart:         election.VotingStart.UTC(),
		VotingEnd:           election.VotingEnd.UTC(),
		MinStandingToVote:   election.MinStandingToVote,
		MinStandingToRun:    election.MinStandingToRun,
		MinTenureToVote:     election.MinTenureToVote,
		MinTenureToRun:      election.MinTenureToRun,
		QuorumPercent:       election.QuorumPercent,
		WinThresholdPercent: election.WinThresholdPercent,
		AllowRunoff:         election.AllowRunoff,
		Candidates:          candidates,
		Ballots:             ballots,
		EligibleVoterIDs:    eligible,
		VotedIDs:            voted,
		Results:             results,
		ParentElectionID:    strings.TrimSpace(election.ParentElectionID),
		TargetPlayerID:      strings.TrimSpace(election.TargetPlayerID),
		CreatedAt:           election.CreatedAt.UTC(),
		UpdatedAt:           election.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row, nil
}

func (m electionModel) toEntity() (entities.Election, error) {
	election := entities.Election{
		ElectionID:          m.ID,
		OrganizationID:      m.OrganizationID,
		ElectionType:        entities.ElectionType(m.ElectionType),
		Position:            m.Position,
		SeatsAvailable:      m.SeatsAvailable,
		VoteType:            entities.VoteType(m.VoteType),
		Status:              entities.ElectionStatus(m.Status),
		FilingStart:         m.FilingStart.UTC(),
		FilingEnd:           m.FilingEnd.UTC(),
		VotingStart:         m.VotingStart.UTC(),
		VotingEnd:           m.VotingEnd.UTC(),
		MinStandingToVote:   m.MinStandingToVote,
		MinStandingToRun:    m.MinStandingToRun,
		MinTenureToVote:     m.MinTenureToVote,
		MinTenureToRun:      m.MinTenureToRun,
		QuorumPercent:       m.QuorumPercent,
		WinThresholdPercent: m.WinThresholdPercent,
		AllowRunoff:         m.AllowRunoff,
		ParentElectionID:    m.ParentElectionID,
		TargetPlayerID:      m.TargetPlayerID,
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
	}
	if len(m.Candidates) > 0 {
		if err := json.Unmarshal(m.Candidates, &election.Candidates); err != nil {
			return entities.Election{}, err
		}
	}
	if len(m.Ballots) > 0 {
		if err := json.Unmarshal(m.Ballots, &election.Ballots); err != nil {
			return entities.Election{}, err
		}
	}
	if len(m.EligibleVoterIDs) > 0 {
		if err := json.Unmarshal(m.EligibleVoterIDs, &election.EligibleVoterIDs); err != nil {
			return entities.Election{}, err
		}
	}
	if len(m.VotedIDs) > 0 {
		if err := json.Unmarshal(m.VotedIDs, &election.VotedIDs); err != nil {
			return entities.Election{}, err
		}
	}
	if len(m.Results) > 0 {
		var results entities.Results
		if err := json.Unmarshal(m.Results, &results); err != nil {
			return entities.Election{}, err
		}
		election.Results = &results
	}
	return election, nil
}

type petitionModel struct {
	ID                  string    `gorm:"column:id;primaryKey"`
	OrganizationID      string    `gorm:"column:organization_id"`
	TargetPlayerID      string    `gorm:"column:target_player_id"`
	Position            string    `gorm:"column:position"`
	Reason              string    `gorm:"column:reason"`
	SignaturesRequired  int       `gorm:"column:signatures_required"`
	Signatures          []byte    `gorm:"column:signatures;type:jsonb"`
	Status              string    `gorm:"column:status"`
	ExpiresAt           time.Time `gorm:"column:expires_at"`
	VotingWindowSeconds int64     `gorm:"column:voting_window_seconds"`
	QuorumPercent       float64   `gorm:"column:quorum_percent"`
	WinThresholdPercent float64   `gorm:"column:win_threshold_percent"`
	ElectionID          string    `gorm:"column:election_id"`
	CreatedAt           time.Time `gorm:"column:created_at"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (petitionModel) TableName() string {
	return "recall_petitions"
}

func petitionModelFromEntity(petition entities.RecallPetition) (petitionModel, error) {
	signatures, err := json.Marshal(petition.Signatures)
	if err != nil {
		return petitionModel{}, err
	}
	row := petitionModel{
		ID:                  strings.TrimSpace(petition.PetitionID),
		OrganizationID:      strings.TrimSpace(petition.OrganizationID),
		TargetPlayerID:      strings.TrimSpace(petition.TargetPlayerID),
		Position:            strings.TrimSpace(petition.Position),
		Reason:              strings.TrimSpace(petition.Reason),
		SignaturesRequired:  petition.SignaturesRequired,
		Signatures:          signatures,
		Status:              string(petition.Status),
		ExpiresAt:           petition.ExpiresAt.UTC(),
		VotingWindowSeconds: int64(petition.VotingWindow / time.Second),
		QuorumPercent:       petition.QuorumPercent,
		WinThresholdPercent: petition.WinThresholdPercent,
		ElectionID:          strings.TrimSpace(petition.ElectionID),
		CreatedAt:           petition.CreatedAt.UTC(),
		UpdatedAt:           petition.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row, nil
}

func (m petitionModel) toEntity() (entities.RecallPetition, error) {
	petition := entities.RecallPetition{
		PetitionID:          m.ID,
		OrganizationID:      m.OrganizationID,
		TargetPlayerID:      m.TargetPlayerID,
		Position:            m.Position,
		Reason:              m.Reason,
		SignaturesRequired:  m.SignaturesRequired,
		Status:              entities.PetitionStatus(m.Status),
		ExpiresAt:           m.ExpiresAt.UTC(),
		VotingWindow:        time.Duration(m.VotingWindowSeconds) * time.Second,
		QuorumPercent:       m.QuorumPercent,
		WinThresholdPercent: m.WinThresholdPercent,
		ElectionID:          m.ElectionID,
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
	}
	if len(m.Signatures) > 0 {
		if err := json.Unmarshal(m.Signatures, &petition.Signatures); err != nil {
			return entities.RecallPetition{}, err
		}
	}
	return petition, nil
}

type memberFactModel struct {
	OrganizationID string    `gorm:"column:organization_id;primaryKey"`
	PlayerID       string    `gorm:"column:player_id;primaryKey"`
	Member         bool      `gorm:"column:member"`
	Standing       float64   `gorm:"column:standing"`
	TenureDays     int       `gorm:"column:tenure_days"`
	VoteWeight     float64   `gorm:"column:vote_weight"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (memberFactModel) TableName() string {
	return "member_directory"
}

func (m memberFactModel) toFact() ports.MemberFact {
	return ports.MemberFact{
		PlayerID:   m.PlayerID,
		Member:     m.Member,
		Standing:   m.Standing,
		TenureDays: m.TenureDays,
		VoteWeight: m.VoteWeight,
	}
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	EntityID    string    `gorm:"column:entity_id"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "election_idempotency_keys"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:jsonb"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "election_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "election_event_dedup"
}

func toElectionEntities(rows []electionModel) ([]entities.Election, error) {
	items := make([]entities.Election, 0, len(rows))
	for _, row := range rows {
		election, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, election)
	}
	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ElectionRepository = (*Repository)(nil)
var _ ports.PetitionRepository = (*Repository)(nil)
var _ ports.MemberDirectory = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
