// Package models contains domain entities and business models for the referral platform
package models

import (
	"time"

	"github.com/lib/pq"
)

// List kinds
const (
	ListKindParticipant = "participant"
	ListKindIndicator   = "indicator"
	ListKindInfluencer  = "influencer"
	ListKindMixed       = "mixed"
)

// DefaultListName is the name used when the tenant's default list has to be
// created on first use.
const DefaultListName = "General List"

// DefaultListNames is the canonical set of names recognized as a tenant's
// default list. Matching any of them avoids creating a second fallback list
// for tenants that renamed or pre-created theirs.
var DefaultListNames = []string{DefaultListName, "Participants", "Main List"}

// ParticipantList is a named collection of participants within a tenant.
// Participants holds participant UUIDs; the symmetric side lives on
// Participant.Lists. Name is unique per tenant, which also arbitrates
// concurrent create-if-absent races on the default list.
type ParticipantList struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	UUID     string `gorm:"type:uuid;not null;uniqueIndex:uk_participant_lists_uuid" json:"uuid"`
	TenantID uint   `gorm:"not null;index:idx_participant_lists_tenant_id;uniqueIndex:uk_participant_lists_tenant_name" json:"tenant_id"`

	Name        string `gorm:"size:255;not null;uniqueIndex:uk_participant_lists_tenant_name" json:"name"`
	Description string `gorm:"size:1024" json:"description"`
	Kind        string `gorm:"size:20;not null;default:participant" json:"kind"`

	Participants pq.StringArray `gorm:"type:text[]" json:"participants"`

	CampaignUUID *string `gorm:"type:uuid;index:idx_participant_lists_campaign_uuid" json:"campaign_uuid,omitempty"`
	CampaignName *string `gorm:"size:255" json:"campaign_name,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (ParticipantList) TableName() string {
	return "participant_lists"
}

// ParticipantListFilter represents filter criteria for list queries
type ParticipantListFilter struct {
	ID           *uint
	UUID         *string
	TenantID     *uint
	Name         *string
	Names        []string
	Kind         *string
	CampaignUUID *string
}

// HasParticipant reports whether the list contains the given participant.
func (l *ParticipantList) HasParticipant(participantUUID string) bool {
	for _, p := range l.Participants {
		if p == participantUUID {
			return true
		}
	}
	return false
}

// IsValidListKind reports whether kind is one of the known list kinds.
func IsValidListKind(kind string) bool {
	switch kind {
	case ListKindParticipant, ListKindIndicator, ListKindInfluencer, ListKindMixed:
		return true
	}
	return false
}

// AllModels returns every entity registered for schema migration.
func AllModels() []any {
	return []any{
		&Participant{},
		&ParticipantList{},
	}
}
