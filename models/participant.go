// Package models contains domain entities and business models for the referral platform
package models

import (
	"time"

	"github.com/lib/pq"
)

// Participant kinds
const (
	ParticipantKindParticipant = "participant"
	ParticipantKindIndicator   = "indicator"
	ParticipantKindInfluencer  = "influencer"
)

// Participant statuses
const (
	ParticipantStatusActive   = "active"
	ParticipantStatusInactive = "inactive"
)

// Origin sources for participant creation
const (
	OriginSourceManual = "manual"
	OriginSourceForm   = "form"
	OriginSourceImport = "import"
)

// Participant is a person in a tenant's pool. Emails are stored normalized
// (lowercase, trimmed) and are unique per tenant. Lists holds the UUIDs of
// every list the participant belongs to; the symmetric side lives on
// ParticipantList.Participants and the two are reconciled by the orphan
// repair flow when a dual write is interrupted.
type Participant struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	UUID     string `gorm:"type:uuid;not null;uniqueIndex:uk_participants_uuid" json:"uuid"`
	TenantID uint   `gorm:"not null;index:idx_participants_tenant_id;uniqueIndex:uk_participants_tenant_email" json:"tenant_id"`

	Name  string `gorm:"size:255;not null" json:"name"`
	Email string `gorm:"size:255;not null;uniqueIndex:uk_participants_tenant_email" json:"email"`
	Phone string `gorm:"size:20;not null" json:"phone"`

	Kind   string `gorm:"size:20;not null;default:participant;index:idx_participants_kind" json:"kind"`
	Status string `gorm:"size:20;not null;default:active" json:"status"`

	Lists pq.StringArray `gorm:"type:text[]" json:"lists"`

	ReferralCode  *string `gorm:"size:64;uniqueIndex:uk_participants_referral_code" json:"referral_code,omitempty"`
	CanRefer      *bool   `gorm:"default:false" json:"can_refer"`
	ReferralCount int64   `gorm:"not null;default:0" json:"referral_count"`

	OriginSource string `gorm:"size:20;not null;default:manual" json:"origin_source"`

	CreatedAt      time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_participants_created_at" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	LastReferralAt *time.Time `json:"last_referral_at,omitempty"`
}

func (Participant) TableName() string {
	return "participants"
}

// ParticipantFilter represents filter criteria for participant queries
type ParticipantFilter struct {
	ID            *uint
	UUID          *string
	TenantID      *uint
	Email         *string
	Emails        []string
	Kind          *string
	Status        *string
	ListUUID      *string
	OrphansOnly   *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (p *Participant) IsIndicator() bool {
	return p.Kind == ParticipantKindIndicator || p.Kind == ParticipantKindInfluencer
}

func (p *Participant) IsActive() bool {
	return p.Status == ParticipantStatusActive
}

// HasList reports whether the participant claims membership in the given list.
func (p *Participant) HasList(listUUID string) bool {
	for _, l := range p.Lists {
		if l == listUUID {
			return true
		}
	}
	return false
}

// IsOrphan reports whether the participant holds no list membership.
func (p *Participant) IsOrphan() bool {
	return len(p.Lists) == 0
}

// IsValidParticipantKind reports whether kind is one of the known participant kinds.
func IsValidParticipantKind(kind string) bool {
	switch kind {
	case ParticipantKindParticipant, ParticipantKindIndicator, ParticipantKindInfluencer:
		return true
	}
	return false
}
