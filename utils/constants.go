package utils

import "time"

// Import pipeline defaults
const (
	// DefaultImportChunkSize is how many participants are linked per chunk
	DefaultImportChunkSize = 10

	// DefaultImportChunkPause is the backpressure pause between chunks
	DefaultImportChunkPause = 100 * time.Millisecond
)

// Referral code defaults
const (
	// DefaultReferralCodeMaxAttempts bounds collision retries during allocation
	DefaultReferralCodeMaxAttempts = 10

	// ReferralCodeMinLength is the minimum accepted code length at validation time
	ReferralCodeMinLength = 8

	// ReferralCodeSuffixLength is the random suffix appended to the timestamp prefix
	ReferralCodeSuffixLength = 6
)

// Pagination bounds
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
