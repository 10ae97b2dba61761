// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/referly/referral-engine/models"
	"github.com/referly/referral-engine/utils"
	"gorm.io/gorm"
)

// ParticipantListRepositoryImpl implements ParticipantListRepository interface
type ParticipantListRepositoryImpl struct {
	*BaseRepository[models.ParticipantList, models.ParticipantListFilter]
}

// NewParticipantListRepository creates a new participant list repository
func NewParticipantListRepository(db *gorm.DB) ParticipantListRepository {
	return &ParticipantListRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ParticipantList, models.ParticipantListFilter](db, applyParticipantListFilter),
	}
}

func applyParticipantListFilter(db *gorm.DB, filter models.ParticipantListFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Name != nil {
		db = db.Where("name = ?", *filter.Name)
	}
	if len(filter.Names) > 0 {
		db = db.Where("name IN ?", filter.Names)
	}
	if filter.Kind != nil {
		db = db.Where("kind = ?", *filter.Kind)
	}
	if filter.CampaignUUID != nil {
		db = db.Where("campaign_uuid = ?", *filter.CampaignUUID)
	}
	return db
}

// ByUUID retrieves a list by its public UUID
func (r *ParticipantListRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.ParticipantList, error) {
	filter := models.ParticipantListFilter{UUID: &uuid}
	lists, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find list by uuid: %w", err)
	}

	if len(lists) == 0 {
		return nil, nil
	}

	return lists[0], nil
}

// ByTenantAndNames retrieves the oldest tenant list whose name is in the
// candidate set, regardless of kind. Used by default-list resolution: the
// (tenant_id, name) unique index does not include kind, so a kind-filtered
// lookup here could miss the very row that blocks a create.
func (r *ParticipantListRepositoryImpl) ByTenantAndNames(ctx context.Context, tenantID uint, names []string) (*models.ParticipantList, error) {
	filter := models.ParticipantListFilter{
		TenantID: &tenantID,
		Names:    names,
	}

	lists, err := r.ByFilter(ctx, filter, "id ASC", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find list by tenant and names: %w", err)
	}

	if len(lists) == 0 {
		return nil, nil
	}

	return lists[0], nil
}

// ListByTenant retrieves a tenant's lists with pagination
func (r *ParticipantListRepositoryImpl) ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.ParticipantList, error) {
	filter := models.ParticipantListFilter{TenantID: &tenantID}

	lists, err := r.ByFilter(ctx, filter, "created_at DESC", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list lists by tenant: %w", err)
	}

	return lists, nil
}

// AddParticipant atomically adds a participant UUID to the list's set.
// Idempotent: a second call with the same pair is a no-op.
func (r *ParticipantListRepositoryImpl) AddParticipant(ctx context.Context, listUUID, participantUUID string) error {
	db := r.getDB(ctx)

	err := db.Exec(
		`UPDATE participant_lists
		 SET participants = array_append(COALESCE(participants, '{}'), ?), updated_at = ?
		 WHERE uuid = ? AND NOT (? = ANY(COALESCE(participants, '{}')))`,
		participantUUID, utils.UTCNow(), listUUID, participantUUID,
	).Error
	if err != nil {
		return fmt.Errorf("failed to add participant to list: %w", err)
	}

	return nil
}

// AddParticipants adds a set of participant UUIDs to the list in one
// statement, deduplicating against the existing membership.
func (r *ParticipantListRepositoryImpl) AddParticipants(ctx context.Context, listUUID string, participantUUIDs []string) error {
	if len(participantUUIDs) == 0 {
		return nil
	}

	db := r.getDB(ctx)

	err := db.Exec(
		`UPDATE participant_lists
		 SET participants = (
		     SELECT COALESCE(array_agg(DISTINCT e), '{}')
		     FROM unnest(COALESCE(participants, '{}') || ?::text[]) AS e
		 ), updated_at = ?
		 WHERE uuid = ?`,
		pq.Array(participantUUIDs), utils.UTCNow(), listUUID,
	).Error
	if err != nil {
		return fmt.Errorf("failed to add participants to list: %w", err)
	}

	return nil
}

// RemoveParticipant atomically removes a participant UUID from the list's
// set. Removing a non-member is a no-op.
func (r *ParticipantListRepositoryImpl) RemoveParticipant(ctx context.Context, listUUID, participantUUID string) error {
	db := r.getDB(ctx)

	err := db.Exec(
		`UPDATE participant_lists
		 SET participants = array_remove(COALESCE(participants, '{}'), ?), updated_at = ?
		 WHERE uuid = ?`,
		participantUUID, utils.UTCNow(), listUUID,
	).Error
	if err != nil {
		return fmt.Errorf("failed to remove participant from list: %w", err)
	}

	return nil
}

// Update persists mutable list fields
func (r *ParticipantListRepositoryImpl) Update(ctx context.Context, list *models.ParticipantList) error {
	db := r.getDB(ctx)

	list.UpdatedAt = utils.UTCNow()
	if err := db.Save(list).Error; err != nil {
		return fmt.Errorf("failed to update list: %w", err)
	}

	return nil
}

// DeleteByUUID removes a tenant's list. Participant-side membership entries
// are left dangling on purpose; read paths skip them.
func (r *ParticipantListRepositoryImpl) DeleteByUUID(ctx context.Context, tenantID uint, uuid string) error {
	db := r.getDB(ctx)

	err := db.Where("tenant_id = ? AND uuid = ?", tenantID, uuid).
		Delete(&models.ParticipantList{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete list: %w", err)
	}

	return nil
}
