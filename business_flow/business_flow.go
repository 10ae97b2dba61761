// Package businessflow contains the core business logic of the participant membership engine.
//
// The engine keeps a many-to-many relationship between participants and lists
// correct under concurrent, partial, and repeated writes. Both sides of every
// membership edge are stored denormalized (Participant.Lists and
// ParticipantList.Participants); the two writes of an edge are individually
// atomic and idempotent but not atomic as a pair, and the orphan repair flow
// converges any state a crash leaves behind.
package businessflow

import (
	"time"

	"github.com/referly/referral-engine/app/dto"
	"github.com/referly/referral-engine/models"
	"github.com/referly/referral-engine/utils"
)

// ToParticipantDTO converts a participant model to its external shape
func ToParticipantDTO(p models.Participant) dto.ParticipantDTO {
	out := dto.ParticipantDTO{
		UUID:          p.UUID,
		TenantID:      p.TenantID,
		Name:          p.Name,
		Email:         p.Email,
		Phone:         p.Phone,
		Kind:          p.Kind,
		Status:        p.Status,
		Lists:         append([]string{}, p.Lists...),
		ReferralCode:  p.ReferralCode,
		CanRefer:      utils.IsTrue(p.CanRefer),
		ReferralCount: p.ReferralCount,
		OriginSource:  p.OriginSource,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     p.UpdatedAt.Format(time.RFC3339),
	}

	if p.LastReferralAt != nil {
		out.LastReferralAt = utils.ToPtr(p.LastReferralAt.Format(time.RFC3339))
	}

	return out
}

// ToParticipantListDTO converts a list model to its external shape
func ToParticipantListDTO(l models.ParticipantList) dto.ParticipantListDTO {
	return dto.ParticipantListDTO{
		UUID:         l.UUID,
		TenantID:     l.TenantID,
		Name:         l.Name,
		Description:  l.Description,
		Kind:         l.Kind,
		Participants: append([]string{}, l.Participants...),
		CampaignUUID: l.CampaignUUID,
		CampaignName: l.CampaignName,
		CreatedAt:    l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    l.UpdatedAt.Format(time.RFC3339),
	}
}

func normalizePagination(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = utils.DefaultPageSize
	}
	if page < 1 {
		return 0, 0, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > utils.MaxPageSize {
		return 0, 0, ErrInvalidPageSize
	}
	return page, pageSize, nil
}
