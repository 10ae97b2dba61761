package businessflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/referly/referral-engine/models"
	"github.com/referly/referral-engine/repository"
	"github.com/referly/referral-engine/utils"
)

// findOrCreateDefaultList resolves the tenant's default list, creating it on
// first use. Concurrent create-if-absent races are settled by the
// (tenant_id, name) unique index: the loser re-reads the winner instead of
// producing a second default list. Lookup and re-read deliberately ignore
// kind — that index is name-only, so a canonical-named list of any kind is
// the winner and filtering it out would make the create collide forever.
func findOrCreateDefaultList(ctx context.Context, listRepo repository.ParticipantListRepository, tenantID uint) (*models.ParticipantList, error) {
	existing, err := listRepo.ByTenantAndNames(ctx, tenantID, models.DefaultListNames)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	list := &models.ParticipantList{
		UUID:        uuid.NewString(),
		TenantID:    tenantID,
		Name:        models.DefaultListName,
		Description: "Default list for participants without an explicit target",
		Kind:        models.ListKindParticipant,
		CreatedAt:   utils.UTCNow(),
		UpdatedAt:   utils.UTCNow(),
	}

	if err := listRepo.Save(ctx, list); err != nil {
		if repository.IsDuplicateKey(err) {
			// Lost the race; another caller created it first
			winner, rerr := listRepo.ByTenantAndNames(ctx, tenantID, models.DefaultListNames)
			if rerr != nil {
				return nil, rerr
			}
			if winner != nil {
				return winner, nil
			}
		}
		return nil, fmt.Errorf("failed to create default list: %w", err)
	}

	return list, nil
}
