// Package dto contains Data Transfer Objects for engine request and response structures
package dto

// RawParticipant is one incoming record of a bulk import, validated at the
// pipeline boundary before anything is persisted.
type RawParticipant struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
	Phone string `json:"phone" validate:"required,max=20"`
}

// ImportRequest represents a bulk participant import
type ImportRequest struct {
	Records        []RawParticipant `json:"records" validate:"required,min=1,dive"`
	TargetListUUID *string          `json:"target_list_uuid,omitempty" validate:"omitempty,uuid"`
	Kind           *string          `json:"kind,omitempty" validate:"omitempty,oneof=participant indicator influencer"`
}

// NoRecordIndex marks an error that arose past the per-record phase, where
// the failure can no longer be attributed to a request position.
const NoRecordIndex = -1

// ImportRecordError reports a single record the pipeline could not fully
// process. The batch continues past these. Index is the record's position in
// the request, or NoRecordIndex for failures in the persistence and link
// phases.
type ImportRecordError struct {
	Index  int    `json:"index"`
	Email  string `json:"email,omitempty"`
	Reason string `json:"reason"`
}

// ImportResult summarizes a bulk import run. Partial failures are reported
// here, never as an error return.
type ImportResult struct {
	Created         int                 `json:"created"`
	DuplicatesFound int                 `json:"duplicates_found"`
	Failed          int                 `json:"failed"`
	TotalProcessed  int                 `json:"total_processed"`
	ListAssociated  bool                `json:"list_associated"`
	Errors          []ImportRecordError `json:"errors,omitempty"`
}
