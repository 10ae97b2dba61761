// Package dto contains Data Transfer Objects for engine request and response structures
package dto

// CreateListRequest represents a participant list creation
type CreateListRequest struct {
	Name         string  `json:"name" validate:"required,max=255"`
	Description  string  `json:"description" validate:"omitempty,max=1024"`
	Kind         *string `json:"kind,omitempty" validate:"omitempty,oneof=participant indicator influencer mixed"`
	CampaignUUID *string `json:"campaign_uuid,omitempty" validate:"omitempty,uuid"`
	CampaignName *string `json:"campaign_name,omitempty" validate:"omitempty,max=255"`
}

// UpdateListRequest represents a partial list update
type UpdateListRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1024"`
}

// ParticipantListDTO is the engine's external list shape
type ParticipantListDTO struct {
	UUID         string   `json:"uuid"`
	TenantID     uint     `json:"tenant_id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Kind         string   `json:"kind"`
	Participants []string `json:"participants"`
	CampaignUUID *string  `json:"campaign_uuid,omitempty"`
	CampaignName *string  `json:"campaign_name,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}
