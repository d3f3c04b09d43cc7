package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"simgov/contexts/org-governance/proposal-service/domain/entities"
	domainerrors "simgov/contexts/org-governance/proposal-service/domain/errors"
	"simgov/contexts/org-governance/proposal-service/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository implements every proposal-service port on postgres. Proposals
// persist as single rows with jsonb aggregate columns, so the
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

func (r *Repository) SaveProposal(ctx context.Context, proposal entities.Proposal) error {
	row, err := proposalModelFromEntity(proposal)
	if err != nil {
		return r.logError("proposal_repo_save_marshal_failed", err, "proposal_id", proposal.ProposalID)
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":               row.Status,
			"sponsors":             row.Sponsors,
			"eligible_voter_ids":   row.EligibleVoterIDs,
			"votes":                row.Votes,
			"voted_ids":            row.VotedIDs,
			"tally":                row.Tally,
			"amendments":           row.Amendments,
			"comments":             row.Comments,
			"implementation_steps": row.ImplementationSteps,
			"updated_at":           row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("proposal_repo_save_failed", create.Error,
			"proposal_id", strings.TrimSpace(proposal.ProposalID),
			"organization_id", strings.TrimSpace(proposal.OrganizationID),
		)
	}
	return nil
}

func (r *Repository) GetProposal(ctx context.Context, proposalID string) (entities.Proposal, error) {
	var row proposalModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(proposalID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Proposal{}, domainerrors.ErrProposalNotFound
		}
		return entities.Proposal{}, r.logError("proposal_repo_get_failed", err, "proposal_id", strings.TrimSpace(proposalID))
	}
	return row.toEntity()
}

func (r *Repository) ListProposalsByOrganization(ctx context.Context, organizationID string) ([]entities.Proposal, error) {
	tx := r.db.WithContext(ctx).Model(&proposalModel{})
	if strings.TrimSpace(organizationID) != "" {
		tx = tx.Where("organization_id = ?", strings.TrimSpace(organizationID))
	}
	var rows []proposalModel
	if err := tx.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("proposal_repo_list_by_organization_failed", err,
			"organization_id", strings.TrimSpace(organizationID),
		)
	}
	return toProposalEntities(rows)
}

func (r *Repository) ListNonTerminalProposals(ctx context.Context) ([]entities.Proposal, error) {
	var rows []proposalModel
	if err := r.db.WithContext(ctx).
		Where("status NOT IN ?", []string{
			string(entities.ProposalStatusImplemented),
			string(entities.ProposalStatusFailed),
			string(entities.ProposalStatusWithdrawn),
			string(entities.ProposalStatusExpired),
		}).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("proposal_repo_list_non_terminal_failed", err)
	}
	return toProposalEntities(rows)
}

func (r *Repository) AppendSponsor(ctx context.Context, proposalID string, playerID string) (entities.Proposal, error) {
	playerID = strings.TrimSpace(playerID)
	var updated entities.Proposal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		proposal, err := lockProposal(tx, proposalID)
		if err != nil {
			return err
		}
		for _, sponsor := range proposal.Sponsors {
			if sponsor == playerID {
				return domainerrors.ErrAlreadySponsored
			}
		}
		proposal.Sponsors = append(proposal.Sponsors, playerID)
		if err := saveLockedProposal(tx, proposal); err != nil {
			return err
		}
		updated = proposal
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadySponsored) || errors.Is(err, domainerrors.ErrProposalNotFound) {
			return entities.Proposal{}, err
		}
		return entities.Proposal{}, r.logError("proposal_repo_append_sponsor_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
			"player_id", playerID,
		)
	}
	return updated, nil
}

func (r *Repository) AppendVote(ctx context.Context, proposalID string, vote entities.Vote) (entities.Proposal, error) {
	var updated entities.Proposal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		proposal, err := lockProposal(tx, proposalID)
		if err != nil {
			return err
		}
		for _, voterID := range proposal.VotedIDs {
			if voterID == vote.VoterID {
				return domainerrors.ErrAlreadyVoted
			}
		}
		proposal.Votes = append(proposal.Votes, vote)
		proposal.VotedIDs = append(proposal.VotedIDs, vote.VoterID)
		proposal.UpdatedAt = vote.CastAt
		if err := saveLockedProposal(tx, proposal); err != nil {
			return err
		}
		updated = proposal
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyVoted) || errors.Is(err, domainerrors.ErrProposalNotFound) {
			return entities.Proposal{}, err
		}
		return entities.Proposal{}, r.logError("proposal_repo_append_vote_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
			"voter_id", strings.TrimSpace(vote.VoterID),
		)
	}
	return updated, nil
}

func (r *Repository) AppendAmendment(ctx context.Context, proposalID string, amendment entities.Amendment) (entities.Proposal, error) {
	var updated entities.Proposal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		proposal, err := lockProposal(tx, proposalID)
		if err != nil {
			return err
		}
		proposal.Amendments = append(proposal.Amendments, amendment)
		proposal.UpdatedAt = amendment.ProposedAt
		if err := saveLockedProposal(tx, proposal); err != nil {
			return err
		}
		updated = proposal
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrProposalNotFound) {
			return entities.Proposal{}, err
		}
		return entities.Proposal{}, r.logError("proposal_repo_append_amendment_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
			"amendment_id", strings.TrimSpace(amendment.AmendmentID),
		)
	}
	return updated, nil
}

func (r *Repository) RecordAmendmentVote(ctx context.Context, proposalID string, amendmentID string, playerID string, inFavor bool) (entities.Proposal, error) {
	amendmentID = strings.TrimSpace(amendmentID)
	playerID = strings.TrimSpace(playerID)
	var updated entities.Proposal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		proposal, err := lockProposal(tx, proposalID)
		if err != nil {
			return err
		}
		found := false
		for i, amendment := range proposal.Amendments {
			if amendment.AmendmentID != amendmentID {
				continue
			}
			if amendment.Status != entities.AmendmentOpen {
				return domainerrors.ErrAmendmentClosed
			}
			for _, voterID := range amendment.VoterIDs {
				if voterID == playerID {
					return domainerrors.ErrAlreadyVotedAmendment
				}
			}
			proposal.Amendments[i].VoterIDs = append(proposal.Amendments[i].VoterIDs, playerID)
			if inFavor {
				proposal.Amendments[i].VotesFor++
			} else {
				proposal.Amendments[i].VotesAgainst++
			}
			found = true
			break
		}
		if !found {
			return domainerrors.ErrAmendmentNotFound
		}
		if err := saveLockedProposal(tx, proposal); err != nil {
			return err
		}
		updated = proposal
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrAmendmentClosed) ||
			errors.Is(err, domainerrors.ErrAlreadyVotedAmendment) ||
			errors.Is(err, domainerrors.ErrAmendmentNotFound) ||
			errors.Is(err, domainerrors.ErrProposalNotFound) {
			return entities.Proposal{}, err
		}
		return entities.Proposal{}, r.logError("proposal_repo_amendment_vote_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
			"amendment_id", amendmentID,
		)
	}
	return updated, nil
}

func (r *Repository) AppendComment(ctx context.Context, proposalID string, comment entities.Comment) (entities.Proposal, error) {
	var updated entities.Proposal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		proposal, err := lockProposal(tx, proposalID)
		if err != nil {
			return err
		}
		if comment.ParentCommentID != "" {
			if _, found := proposal.CommentByID(comment.ParentCommentID); !found {
				return domainerrors.ErrCommentNotFound
			}
		}
		proposal.Comments = append(proposal.Comments, comment)
		proposal.UpdatedAt = comment.PostedAt
		if err := saveLockedProposal(tx, proposal); err != nil {
			return err
		}
		updated = proposal
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrCommentNotFound) || errors.Is(err, domainerrors.ErrProposalNotFound) {
			return entities.Proposal{}, err
		}
		return entities.Proposal{}, r.logError("proposal_repo_append_comment_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
			"comment_id", strings.TrimSpace(comment.CommentID),
		)
	}
	return updated, nil
}

func (r *Repository) AppendImplementationStep(ctx context.Context, proposalID string, step entities.ImplementationStep) (entities.Proposal, error) {
	var updated entities.Proposal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		proposal, err := lockProposal(tx, proposalID)
		if err != nil {
			return err
		}
		proposal.ImplementationSteps = append(proposal.ImplementationSteps, step)
		if err := saveLockedProposal(tx, proposal); err != nil {
			return err
		}
		updated = proposal
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrProposalNotFound) {
			return entities.Proposal{}, err
		}
		return entities.Proposal{}, r.logError("proposal_repo_append_step_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
			"step_id", strings.TrimSpace(step.StepID),
		)
	}
	return updated, nil
}

func (r *Repository) CompleteImplementationStep(ctx context.Context, proposalID string, stepID string, completedAt time.Time) (entities.Proposal, error) {
	stepID = strings.TrimSpace(stepID)
	var updated entities.Proposal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		proposal, err := lockProposal(tx, proposalID)
		if err != nil {
			return err
		}
		found := false
		for i, step := range proposal.ImplementationSteps {
			if step.StepID != stepID {
				continue
			}
			if step.Completed {
				return domainerrors.ErrStepAlreadyCompleted
			}
			at := completedAt.UTC()
			proposal.ImplementationSteps[i].Completed = true
			proposal.ImplementationSteps[i].CompletedAt = &at
			proposal.UpdatedAt = at
			found = true
			break
		}
		if !found {
			return domainerrors.ErrStepNotFound
		}
		if proposal.Status == entities.ProposalStatusImplementing && proposal.AllStepsCompleted() {
			proposal.Status = entities.ProposalStatusImplemented
		}
		if err := saveLockedProposal(tx, proposal); err != nil {
			return err
		}
		updated = proposal
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrStepAlreadyCompleted) ||
			errors.Is(err, domainerrors.ErrStepNotFound) ||
			errors.Is(err, domainerrors.ErrProposalNotFound) {
			return entities.Proposal{}, err
		}
		return entities.Proposal{}, r.logError("proposal_repo_complete_step_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
			"step_id", stepID,
		)
	}
	return updated, nil
}

func (r *Repository) TransitionProposal(
	ctx context.Context,
	proposalID string,
	fromStatus entities.ProposalStatus,
	apply func(*entities.Proposal),
) (entities.Proposal, bool, error) {
	var updated entities.Proposal
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		proposal, err := lockProposal(tx, proposalID)
		if err != nil {
			return err
		}
		if proposal.Status != fromStatus {
			updated = proposal
			return nil
		}
		apply(&proposal)
		if err := saveLockedProposal(tx, proposal); err != nil {
			return err
		}
		updated = proposal
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrProposalNotFound) {
			return entities.Proposal{}, false, err
		}
		return entities.Proposal{}, false, r.logError("proposal_repo_transition_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
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
		return ports.MemberFact{}, r.logError("proposal_repo_get_member_failed", err,
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
		return nil, r.logError("proposal_repo_list_members_failed", err,
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
		return r.logError("proposal_repo_set_member_failed", create.Error,
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
		return ports.IdempotencyRecord{}, false, r.logError("proposal_repo_idempotency_get_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).Error; err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("proposal_repo_idempotency_expire_delete_failed", err,
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
		return r.logError("proposal_repo_idempotency_put_failed", create.Error, "idempotency_key", row.Key)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).Error; err != nil {
		return r.logError("proposal_repo_idempotency_load_existing_failed", err, "idempotency_key", row.Key)
	}
	if existing.RequestHash != row.RequestHash || existing.EntityID != row.EntityID {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("proposal_repo_append_outbox_marshal_failed", err,
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
		return r.logError("proposal_repo_append_outbox_insert_failed", create.Error,
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
		return r.logError("proposal_repo_append_outbox_load_existing_failed", err,
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
		return nil, r.logError("proposal_repo_list_pending_outbox_failed", err, "limit", limit)
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
		return r.logError("proposal_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "org-governance/proposal-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("proposal repository operation failed", fields...)
	return err
}

func lockProposal(tx *gorm.DB, proposalID string) (entities.Proposal, error) {
	var row proposalModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", strings.TrimSpace(proposalID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Proposal{}, domainerrors.ErrProposalNotFound
		}
		return entities.Proposal{}, err
	}
	return row.toEntity()
}

func saveLockedProposal(tx *gorm.DB, proposal entities.Proposal) error {
	row, err := proposalModelFromEntity(proposal)
	if err != nil {
		return err
	}
	return tx.Model(&proposalModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"status":               row.Status,
			"sponsors":             row.Sponsors,
			"eligible_voter_ids":   row.EligibleVoterIDs,
			"votes":                row.Votes,
			"voted_ids":            row.VotedIDs,
			"tally":                row.Tally,
			"amendments":           row.Amendments,
			"comments":             row.Comments,
			"implementation_steps": row.ImplementationSteps,
			"updated_at":           row.UpdatedAt,
		}).Error
}

type proposalModel struct {
	ID                   string    `gorm:"column:id;primaryKey"`
	OrganizationID       string    `gorm:"column:organization_id"`
	AuthorID             string    `gorm:"column:author_id"`
	Title                string    `gorm:"column:title"`
	Body                 string    `gorm:"column:body"`
	Category             string    `gorm:"column:category"`
	Status               string    `gorm:"column:status"`
	Sponsors             []byte    `gorm:"column:sponsors;type:jsonb"`
	MinSponsorsRequired  int       `gorm:"column:min_sponsors_required"`
	DebateStart          time.Time `gorm:"column:debate_start"`
	DebateEnd            time.Time `gorm:"column:debate_end"`
	VotingEnd            time.Time `gorm:"column:voting_end"`
	ExpiresAt            time.Time `gorm:"column:expires_at"`
	QuorumPercent        float64   `gorm:"column:quorum_percent"`
	PassThresholdPercent float64   `gorm:"column:pass_threshold_percent"`
	EligibleVoterIDs     []byte    `gorm:"column:eligible_voter_ids;type:jsonb"`
	Votes                []byte    `gorm:"column:votes;type:jsonb"`
	VotedIDs             []byte    `gorm:"column:voted_ids;type:jsonb"`
	Tally                []byte    `gorm:"column:tally;type:jsonb"`
	Amendments           []byte    `gorm:"column:amendments;type:jsonb"`
	Comments             []byte    `gorm:"column:comments;type:jsonb"`
	ImplementationSteps  []byte    `gorm:"column:implementation_steps;type:jsonb"`
	CreatedAt            time.Time `gorm:"column:created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at"`
}

func (proposalModel) TableName() string {
	return "proposals"
}

func proposalModelFromEntity(proposal entities.Proposal) (proposalModel, error) {
	sponsors, err := json.Marshal(proposal.Sponsors)
	if err != nil {
		return proposalModel{}, err
	}
	eligible, err := json.Marshal(proposal.EligibleVoterIDs)
	if err != nil {
		return proposalModel{}, err
	}
	votes, err := json.Marshal(proposal.Votes)
	if err != nil {
		return proposalModel{}, err
	}
	voted, err := json.Marshal(proposal.VotedIDs)
	if err != nil {
		return proposalModel{}, err
	}
	tally, err := json.Marshal(proposal.Tally)
	if err != nil {
		return proposalModel{}, err
	}
	amendments, err := json.Marshal(proposal.Amendments)
	if err != nil {
		return proposalModel{}, err
	}
	comments, err := json.Marshal(proposal.Comments)
	if err != nil {
		return proposalModel{}, err
	}
	steps, err := json.Marshal(proposal.ImplementationSteps)
	if err != nil {
		return proposalModel{}, err
	}
	row := proposalModel{
		ID:                   strings.TrimSpace(proposal.ProposalID),
		OrganizationID:       strings.TrimSpace(proposal.OrganizationID),
		AuthorID:             strings.TrimSpace(proposal.AuthorID),
		Title:                strings.TrimSpace(proposal.Title),
		Body:                 proposal.Body,
		Category:             string(proposal.Category),
		Status:               string(proposal.Status),
		Sponsors:             sponsors,
		MinSponsorsRequired:  proposal.MinSponsorsRequired,
		DebateStart:          proposal.DebateStart.UTC(),
		DebateEnd:            proposal.DebateEnd.UTC(),
		VotingEnd:            proposal.VotingEnd.UTC(),
		ExpiresAt:            proposal.ExpiresAt.UTC(),
		QuorumPercent:        proposal.QuorumPercent,
		PassThresholdPercent: proposal.PassThresholdPercent,
		EligibleVoterIDs:     eligible,
		Votes:                votes,
		VotedIDs:             voted,
		Tally:                tally,
		Amendments:           amendments,
		Comments:             comments,
		ImplementationSteps:  steps,
		CreatedAt:            proposal.CreatedAt.UTC(),
		UpdatedAt:            proposal.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row, nil
}

func (m proposalModel) toEntity() (entities.Proposal, error) {
	proposal := entities.Proposal{
		ProposalID:           m.ID,
		OrganizationID:       m.OrganizationID,
		AuthorID:             m.AuthorID,
		Title:                m.Title,
		Body:                 m.Body,
		Category:             entities.ProposalCategory(m.Category),
		Status:               entities.ProposalStatus(m.Status),
		MinSponsorsRequired:  m.MinSponsorsRequired,
		DebateStart:          m.DebateStart.UTC(),
		DebateEnd:            m.DebateEnd.UTC(),
		VotingEnd:            m.VotingEnd.UTC(),
		ExpiresAt:            m.ExpiresAt.UTC(),
		QuorumPercent:        m.QuorumPercent,
		PassThresholdPercent: m.PassThresholdPercent,
		CreatedAt:            m.CreatedAt.UTC(),
		UpdatedAt:            m.UpdatedAt.UTC(),
	}
	if len(m.Sponsors) > 0 {
		if err := json.Unmarshal(m.Sponsors, &proposal.Sponsors); err != nil {
			return entities.Proposal{}, err
		}
	}
	if len(m.EligibleVoterIDs) > 0 {
		if err := json.Unmarshal(m.EligibleVoterIDs, &proposal.EligibleVoterIDs); err != nil {
			return entities.Proposal{}, err
		}
	}
	if len(m.Votes) > 0 {
		if err := json.Unmarshal(m.Votes, &proposal.Votes); err != nil {
			return entities.Proposal{}, err
		}
	}
	if len(m.VotedIDs) > 0 {
		if err := json.Unmarshal(m.VotedIDs, &proposal.VotedIDs); err != nil {
			return entities.Proposal{}, err
		}
	}
	if len(m.Tally) > 0 {
		if err := json.Unmarshal(m.Tally, &proposal.Tally); err != nil {
			return entities.Proposal{}, err
		}
	}
	if len(m.Amendments) > 0 {
		if err := json.Unmarshal(m.Amendments, &proposal.Amendments); err != nil {
			return entities.Proposal{}, err
		}
	}
	if len(m.Comments) > 0 {
		if err := json.Unmarshal(m.Comments, &proposal.Comments); err != nil {
			return entities.Proposal{}, err
		}
	}
	if len(m.ImplementationSteps) > 0 {
		if err := json.Unmarshal(m.ImplementationSteps, &proposal.ImplementationSteps); err != nil {
			return entities.Proposal{}, err
		}
	}
	return proposal, nil
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
	return "proposal_idempotency_keys"
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
	return "proposal_outbox"
}

func toProposalEntities(rows []proposalModel) ([]entities.Proposal, error) {
	items := make([]entities.Proposal, 0, len(rows))
	for _, row := range rows {
		proposal, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, proposal)
	}
	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ProposalRepository = (*Repository)(nil)
var _ ports.MemberDirectory = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
