package businessflow

import (
	"context"
	"fmt"

	"github.com/referly/referral-engine/app/dto"
	"github.com/referly/referral-engine/app/services"
	"github.com/referly/referral-engine/repository"
)

// OrphanRepairFlow reconciles participants that hold no list membership.
// Orphans appear when a dual write is interrupted between its two sides or
// when legacy data predates membership tracking. Repair assigns every orphan
// of a tenant to the tenant's default list, restoring the symmetry invariant.
type OrphanRepairFlow interface {
	RepairOrphans(ctx context.Context, tenantID uint) (*dto.RepairResult, error)
}

// OrphanRepairFlowImpl implements the orphan repair flow
type OrphanRepairFlowImpl struct {
	participantRepo repository.ParticipantRepository
	listRepo        repository.ParticipantListRepository
}

// NewOrphanRepairFlow creates a new orphan repair flow instance
func NewOrphanRepairFlow(
	participantRepo repository.ParticipantRepository,
	listRepo repository.ParticipantListRepository,
) OrphanRepairFlow {
	return &OrphanRepairFlowImpl{
		participantRepo: participantRepo,
		listRepo:        listRepo,
	}
}

// RepairOrphans finds every orphan participant of the tenant and assigns all
// of them to the tenant's default list, writing both sides. A tenant with no
// orphans is left untouched: in particular, no default list is created for
// it. The whole operation is idempotent; running it twice is harmless.
func (f *OrphanRepairFlowImpl) RepairOrphans(ctx context.Context, tenantID uint) (*dto.RepairResult, error) {
	orphans, err := f.participantRepo.ListOrphans(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphans for tenant %d: %w", tenantID, err)
	}
	if len(orphans) == 0 {
		return &dto.RepairResult{Fixed: 0}, nil
	}

	list, err := findOrCreateDefaultList(ctx, f.listRepo, tenantID)
	if err != nil {
		return nil, err
	}

	uuids := make([]string, 0, len(orphans))
	for _, p := range orphans {
		uuids = append(uuids, p.UUID)
	}

	// Participant side first: an orphan that gains its membership claim is
	// immediately visible to list-scoped reads even before the list side
	// catches up.
	if err := f.participantRepo.ReplaceListMemberships(ctx, uuids, list.UUID); err != nil {
		return nil, fmt.Errorf("failed to assign orphans to default list: %w", err)
	}
	if err := f.listRepo.AddParticipants(ctx, list.UUID, uuids); err != nil {
		return nil, fmt.Errorf("failed to record orphans on default list: %w", err)
	}

	services.RecordOrphansRepaired(len(uuids))

	return &dto.RepairResult{
		Fixed:    len(uuids),
		ListUUID: list.UUID,
		ListName: list.Name,
	}, nil
}

// tenantLooksBroken reports whether a tenant has participants but none of
// them claims any membership, the signature of interrupted dual writes or
// unmigrated data. Read paths use it to trigger an opportunistic repair.
func tenantLooksBroken(ctx context.Context, participantRepo repository.ParticipantRepository, tenantID uint) (bool, error) {
	total, err := participantRepo.CountByTenant(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if total == 0 {
		return false, nil
	}

	withMembership, err := participantRepo.CountWithMembership(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return withMembership == 0, nil
}
