// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/referly/referral-engine/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// ParticipantRepository defines operations for participants.
//
// AddListMembership, RemoveListMembership, and ReplaceListMemberships are
// single-statement atomic set operations on the participant's lists column:
// they are idempotent and safe to retry or run concurrently for the same
// participant/list pair.
type ParticipantRepository interface {
	Repository[models.Participant, models.ParticipantFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Participant, error)
	ByUUIDs(ctx context.Context, uuids []string) ([]*models.Participant, error)
	ByTenantAndEmail(ctx context.Context, tenantID uint, email string) (*models.Participant, error)
	ByTenantAndEmails(ctx context.Context, tenantID uint, emails []string) ([]*models.Participant, error)
	ByReferralCode(ctx context.Context, code string) (*models.Participant, error)
	ListOrphans(ctx context.Context, tenantID uint) ([]*models.Participant, error)
	CountByTenant(ctx context.Context, tenantID uint) (int64, error)
	CountWithMembership(ctx context.Context, tenantID uint) (int64, error)
	DistinctTenantIDs(ctx context.Context) ([]uint, error)
	AddListMembership(ctx context.Context, participantUUID, listUUID string) error
	RemoveListMembership(ctx context.Context, participantUUID, listUUID string) error
	ReplaceListMemberships(ctx context.Context, participantUUIDs []string, listUUID string) error
	Update(ctx context.Context, participant *models.Participant) error
	UpdateReferralCode(ctx context.Context, participantID uint, code string, canRefer bool) error
	IncrementReferralStats(ctx context.Context, participantID uint) error
	DeleteByUUID(ctx context.Context, tenantID uint, uuid string) error
}

// ParticipantListRepository defines operations for participant lists.
//
// AddParticipant, AddParticipants, and RemoveParticipant are the list-side
// atomic set operations, with the same idempotence guarantees as the
// participant-side ones.
type ParticipantListRepository interface {
	Repository[models.ParticipantList, models.ParticipantListFilter]
	ByUUID(ctx context.Context, uuid string) (*models.ParticipantList, error)
	ByTenantAndNames(ctx context.Context, tenantID uint, names []string) (*models.ParticipantList, error)
	ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.ParticipantList, error)
	AddParticipant(ctx context.Context, listUUID, participantUUID string) error
	AddParticipants(ctx context.Context, listUUID string, participantUUIDs []string) error
	RemoveParticipant(ctx context.Context, listUUID, participantUUID string) error
	Update(ctx context.Context, list *models.ParticipantList) error
	DeleteByUUID(ctx context.Context, tenantID uint, uuid string) error
}
