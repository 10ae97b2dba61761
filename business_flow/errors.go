package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Participant-related errors
	ErrParticipantNotFound = errors.New("participant not found")
	ErrParticipantInactive = errors.New("participant is inactive")
	ErrEmailAlreadyExists  = errors.New("email already exists for this tenant")
	ErrInvalidKind         = errors.New("invalid participant kind")

	// List-related errors
	ErrListNotFound      = errors.New("list not found")
	ErrListNameExists    = errors.New("list name already exists for this tenant")
	ErrListNameRequired  = errors.New("list name is required")
	ErrInvalidListKind   = errors.New("invalid list kind")
	ErrTenantMismatch    = errors.New("participant and list belong to different tenants")
	ErrListUpdateEmpty   = errors.New("at least one field must be provided for update")
	ErrEmptyImportBatch  = errors.New("import batch contains no records")
	ErrImportKindInvalid = errors.New("invalid import kind")

	// Referral-code errors
	ErrNotEligibleForReferral = errors.New("participant is not eligible for a referral code")
	ErrReferralCodeExhausted  = errors.New("could not allocate unique referral code")
	ErrReferralCodeNotFound   = errors.New("referral code not found")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsParticipantNotFound(err error) bool {
	return errors.Is(err, ErrParticipantNotFound)
}

func IsParticipantInactive(err error) bool {
	return errors.Is(err, ErrParticipantInactive)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsListNotFound(err error) bool {
	return errors.Is(err, ErrListNotFound)
}

func IsListNameExists(err error) bool {
	return errors.Is(err, ErrListNameExists)
}

func IsTenantMismatch(err error) bool {
	return errors.Is(err, ErrTenantMismatch)
}

func IsNotEligibleForReferral(err error) bool {
	return errors.Is(err, ErrNotEligibleForReferral)
}

func IsReferralCodeExhausted(err error) bool {
	return errors.Is(err, ErrReferralCodeExhausted)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
