// Package dto contains Data Transfer Objects for engine request and response structures
package dto

// CreateParticipantRequest represents a single participant creation
type CreateParticipantRequest struct {
	Name   string  `json:"name" validate:"required,max=255"`
	Email  string  `json:"email" validate:"required,email,max=255"`
	Phone  string  `json:"phone" validate:"required,max=20"`
	Kind   *string `json:"kind,omitempty" validate:"omitempty,oneof=participant indicator influencer"`
	Status *string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
	Origin *string `json:"origin,omitempty" validate:"omitempty,oneof=manual form import"`
}

// UpdateParticipantRequest represents a partial participant update
type UpdateParticipantRequest struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Phone  *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Status *string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

// ParticipantDTO is the engine's external participant shape
type ParticipantDTO struct {
	UUID           string   `json:"uuid"`
	TenantID       uint     `json:"tenant_id"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	Kind           string   `json:"kind"`
	Status         string   `json:"status"`
	Lists          []string `json:"lists"`
	ReferralCode   *string  `json:"referral_code,omitempty"`
	CanRefer       bool     `json:"can_refer"`
	ReferralCount  int64    `json:"referral_count"`
	OriginSource   string   `json:"origin_source"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
	LastReferralAt *string  `json:"last_referral_at,omitempty"`
}

// ListParticipantsRequest filters the tenant participant listing
type ListParticipantsRequest struct {
	ListUUID *string `json:"list_uuid,omitempty" validate:"omitempty,uuid"`
	Kind     *string `json:"kind,omitempty" validate:"omitempty,oneof=participant indicator influencer"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
	Page     int     `json:"page" validate:"omitempty,min=1"`
	PageSize int     `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListParticipantsResponse is a paginated participant listing
type ListParticipantsResponse struct {
	Items    []ParticipantDTO `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// RepairResult summarizes an orphan repair run
type RepairResult struct {
	Fixed    int    `json:"fixed"`
	ListUUID string `json:"list_uuid,omitempty"`
	ListName string `json:"list_name,omitempty"`
}

// ReferralValidationResult is the outcome of validating a referral code.
// Invalid codes carry a distinguishing reason instead of an error.
type ReferralValidationResult struct {
	Valid       bool            `json:"valid"`
	Reason      string          `json:"reason,omitempty"`
	Participant *ParticipantDTO `json:"participant,omitempty"`
}
