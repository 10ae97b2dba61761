package businessflow

import (
	"context"
	"log"

	"github.com/referly/referral-engine/repository"
)

// MembershipFlow is the primitive that adds or removes one participant↔list
// edge. Both operations are idempotent and safe to run concurrently for the
// same pair. The two underlying writes are each atomic but not atomic as a
// pair: a crash in between leaves the symmetry invariant transiently broken,
// which the orphan repair flow later converges.
type MembershipFlow interface {
	Link(ctx context.Context, tenantID uint, participantUUID, listUUID string) error
	Unlink(ctx context.Context, tenantID uint, participantUUID, listUUID string) error
}

// MembershipFlowImpl implements the membership flow
type MembershipFlowImpl struct {
	participantRepo repository.ParticipantRepository
	listRepo        repository.ParticipantListRepository
}

// NewMembershipFlow creates a new membership flow instance
func NewMembershipFlow(
	participantRepo repository.ParticipantRepository,
	listRepo repository.ParticipantListRepository,
) MembershipFlow {
	return &MembershipFlowImpl{
		participantRepo: participantRepo,
		listRepo:        listRepo,
	}
}

// Link adds the participant↔list edge on both sides. Linking an already
// linked pair is a no-op, as is linking against a deleted participant or
// list. The list side is written first: read paths consult the participant
// side, so this ordering minimizes the window where a participant claims a
// membership the list does not yet record.
func (f *MembershipFlowImpl) Link(ctx context.Context, tenantID uint, participantUUID, listUUID string) error {
	participant, err := f.participantRepo.ByUUID(ctx, participantUUID)
	if err != nil {
		return err
	}
	list, err := f.listRepo.ByUUID(ctx, listUUID)
	if err != nil {
		return err
	}

	if participant == nil || list == nil {
		log.Printf("link skipped: participant=%s list=%s (one side missing)", participantUUID, listUUID)
		return nil
	}

	if participant.TenantID != tenantID || list.TenantID != tenantID {
		return ErrTenantMismatch
	}

	if err := f.listRepo.AddParticipant(ctx, listUUID, participantUUID); err != nil {
		return err
	}
	if err := f.participantRepo.AddListMembership(ctx, participantUUID, listUUID); err != nil {
		return err
	}

	return nil
}

// Unlink removes the edge on both sides. Unlinking a non-member or a deleted
// participant/list is a no-op. The participant side is written first so the
// intermediate state (list still names the participant) is the same shape the
// repair job already tolerates.
func (f *MembershipFlowImpl) Unlink(ctx context.Context, tenantID uint, participantUUID, listUUID string) error {
	participant, err := f.participantRepo.ByUUID(ctx, participantUUID)
	if err != nil {
		return err
	}
	list, err := f.listRepo.ByUUID(ctx, listUUID)
	if err != nil {
		return err
	}

	if participant != nil && participant.TenantID != tenantID {
		return ErrTenantMismatch
	}
	if list != nil && list.TenantID != tenantID {
		return ErrTenantMismatch
	}

	if participant != nil {
		if err := f.participantRepo.RemoveListMembership(ctx, participantUUID, listUUID); err != nil {
			return err
		}
	}
	if list != nil {
		if err := f.listRepo.RemoveParticipant(ctx, listUUID, participantUUID); err != nil {
			return err
		}
	}

	return nil
}
