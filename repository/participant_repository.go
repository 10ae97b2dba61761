// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/referly/referral-engine/models"
	"github.com/referly/referral-engine/utils"
	"gorm.io/gorm"
)

// ParticipantRepositoryImpl implements ParticipantRepository interface
type ParticipantRepositoryImpl struct {
	*BaseRepository[models.Participant, models.ParticipantFilter]
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &ParticipantRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Participant, models.ParticipantFilter](db, applyParticipantFilter),
	}
}

func applyParticipantFilter(db *gorm.DB, filter models.ParticipantFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Email != nil {
		db = db.Where("email = ?", *filter.Email)
	}
	if len(filter.Emails) > 0 {
		db = db.Where("email IN ?", filter.Emails)
	}
	if filter.Kind != nil {
		db = db.Where("kind = ?", *filter.Kind)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.ListUUID != nil {
		db = db.Where("? = ANY(COALESCE(lists, '{}'))", *filter.ListUUID)
	}
	if filter.OrphansOnly != nil && *filter.OrphansOnly {
		db = db.Where("lists IS NULL OR cardinality(lists) = 0")
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

// ByUUID retrieves a participant by its public UUID
func (r *ParticipantRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Participant, error) {
	filter := models.ParticipantFilter{UUID: &uuid}
	participants, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find participant by uuid: %w", err)
	}

	if len(participants) == 0 {
		return nil, nil
	}

	return participants[0], nil
}

// ByUUIDs retrieves participants matching any of the given UUIDs
func (r *ParticipantRepositoryImpl) ByUUIDs(ctx context.Context, uuids []string) ([]*models.Participant, error) {
	if len(uuids) == 0 {
		return nil, nil
	}

	db := r.getDB(ctx)

	var participants []*models.Participant
	if err := db.Where("uuid IN ?", uuids).Find(&participants).Error; err != nil {
		return nil, fmt.Errorf("failed to find participants by uuids: %w", err)
	}

	return participants, nil
}

// ByTenantAndEmail retrieves a tenant's participant by normalized email
func (r *ParticipantRepositoryImpl) ByTenantAndEmail(ctx context.Context, tenantID uint, email string) (*models.Participant, error) {
	email = utils.NormalizeEmail(email)
	filter := models.ParticipantFilter{TenantID: &tenantID, Email: &email}
	participants, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find participant by email: %w", err)
	}

	if len(participants) == 0 {
		return nil, nil
	}

	return participants[0], nil
}

// ByTenantAndEmails retrieves all tenant participants whose normalized email is
// in the given set. Single bulk query; used by import deduplication.
func (r *ParticipantRepositoryImpl) ByTenantAndEmails(ctx context.Context, tenantID uint, emails []string) ([]*models.Participant, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		normalized = append(normalized, utils.NormalizeEmail(e))
	}

	filter := models.ParticipantFilter{TenantID: &tenantID, Emails: normalized}
	participants, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find participants by emails: %w", err)
	}

	return participants, nil
}

// ByReferralCode retrieves a participant by referral code across all tenants
func (r *ParticipantRepositoryImpl) ByReferralCode(ctx context.Context, code string) (*models.Participant, error) {
	db := r.getDB(ctx)

	var participant models.Participant
	err := db.Where("referral_code = ?", code).Last(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find participant by referral code: %w", err)
	}

	return &participant, nil
}

// ListOrphans retrieves all tenant participants with no list membership
func (r *ParticipantRepositoryImpl) ListOrphans(ctx context.Context, tenantID uint) ([]*models.Participant, error) {
	filter := models.ParticipantFilter{
		TenantID:    &tenantID,
		OrphansOnly: utils.ToPtr(true),
	}

	orphans, err := r.ByFilter(ctx, filter, "id ASC", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphan participants: %w", err)
	}

	return orphans, nil
}

// CountByTenant returns the total number of participants for a tenant
func (r *ParticipantRepositoryImpl) CountByTenant(ctx context.Context, tenantID uint) (int64, error) {
	return r.Count(ctx, models.ParticipantFilter{TenantID: &tenantID})
}

// CountWithMembership returns how many tenant participants hold at least one
// list membership
func (r *ParticipantRepositoryImpl) CountWithMembership(ctx context.Context, tenantID uint) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.Participant{}).
		Where("tenant_id = ? AND cardinality(COALESCE(lists, '{}')) > 0", tenantID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count participants with membership: %w", err)
	}

	return count, nil
}

// DistinctTenantIDs returns every tenant id that owns at least one participant
func (r *ParticipantRepositoryImpl) DistinctTenantIDs(ctx context.Context) ([]uint, error) {
	db := r.getDB(ctx)

	var ids []uint
	err := db.Model(&models.Participant{}).
		Distinct("tenant_id").
		Order("tenant_id ASC").
		Pluck("tenant_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct tenant ids: %w", err)
	}

	return ids, nil
}

// AddListMembership atomically adds a list UUID to the participant's lists set.
// The guard makes the statement idempotent: a second call is a no-op.
func (r *ParticipantRepositoryImpl) AddListMembership(ctx context.Context, participantUUID, listUUID string) error {
	db := r.getDB(ctx)

	err := db.Exec(
		`UPDATE participants
		 SET lists = array_append(COALESCE(lists, '{}'), ?), updated_at = ?
		 WHERE uuid = ? AND NOT (? = ANY(COALESCE(lists, '{}')))`,
		listUUID, utils.UTCNow(), participantUUID, listUUID,
	).Error
	if err != nil {
		return fmt.Errorf("failed to add list membership: %w", err)
	}

	return nil
}

// RemoveListMembership atomically removes a list UUID from the participant's
// lists set. Removing a non-member is a no-op.
func (r *ParticipantRepositoryImpl) RemoveListMembership(ctx context.Context, participantUUID, listUUID string) error {
	db := r.getDB(ctx)

	err := db.Exec(
		`UPDATE participants
		 SET lists = array_remove(COALESCE(lists, '{}'), ?), updated_at = ?
		 WHERE uuid = ?`,
		listUUID, utils.UTCNow(), participantUUID,
	).Error
	if err != nil {
		return fmt.Errorf("failed to remove list membership: %w", err)
	}

	return nil
}

// ReplaceListMemberships set-replaces the lists field of every given
// participant with exactly [listUUID]. Used by orphan repair, where the field
// is known empty.
func (r *ParticipantRepositoryImpl) ReplaceListMemberships(ctx context.Context, participantUUIDs []string, listUUID string) error {
	if len(participantUUIDs) == 0 {
		return nil
	}

	db := r.getDB(ctx)

	err := db.Exec(
		`UPDATE participants
		 SET lists = ARRAY[?]::text[], updated_at = ?
		 WHERE uuid IN ?`,
		listUUID, utils.UTCNow(), participantUUIDs,
	).Error
	if err != nil {
		return fmt.Errorf("failed to replace list memberships: %w", err)
	}

	return nil
}

// Update persists mutable participant fields
func (r *ParticipantRepositoryImpl) Update(ctx context.Context, participant *models.Participant) error {
	db := r.getDB(ctx)

	participant.UpdatedAt = utils.UTCNow()
	if err := db.Save(participant).Error; err != nil {
		return fmt.Errorf("failed to update participant: %w", err)
	}

	return nil
}

// UpdateReferralCode assigns a referral code and the can-refer gate in one
// statement. A global unique index on referral_code rejects collisions.
func (r *ParticipantRepositoryImpl) UpdateReferralCode(ctx context.Context, participantID uint, code string, canRefer bool) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Participant{}).
		Where("id = ?", participantID).
		Updates(map[string]any{
			"referral_code": code,
			"can_refer":     canRefer,
			"updated_at":    utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update referral code: %w", err)
	}

	return nil
}

// IncrementReferralStats bumps the referral counter and stamps the last
// referral time
func (r *ParticipantRepositoryImpl) IncrementReferralStats(ctx context.Context, participantID uint) error {
	db := r.getDB(ctx)

	now := utils.UTCNow()
	err := db.Model(&models.Participant{}).
		Where("id = ?", participantID).
		Updates(map[string]any{
			"referral_count":   gorm.Expr("referral_count + 1"),
			"last_referral_at": now,
			"updated_at":       now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to increment referral stats: %w", err)
	}

	return nil
}

// DeleteByUUID removes a tenant's participant. List-side membership entries
// are intentionally left behind; read paths tolerate the dangling id and
// repair converges the state.
func (r *ParticipantRepositoryImpl) DeleteByUUID(ctx context.Context, tenantID uint, uuid string) error {
	db := r.getDB(ctx)

	err := db.Where("tenant_id = ? AND uuid = ?", tenantID, uuid).
		Delete(&models.Participant{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}

	return nil
}
