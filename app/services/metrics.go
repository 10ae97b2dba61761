package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Participants created, partitioned by origin source
	participantsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_participants_created_total",
			Help: "Total number of participants created",
		},
		[]string{"origin"},
	)

	// Duplicate emails resolved by the import deduplication step
	importDuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_import_duplicates_total",
			Help: "Total number of duplicate records detected during imports",
		},
	)

	// Records rejected by import validation
	importRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_import_rejected_total",
			Help: "Total number of import records rejected by validation",
		},
	)

	// Link retries triggered by failed post-link verification
	linkRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_link_retries_total",
			Help: "Total number of membership link retries after verification misses",
		},
	)

	// Orphan participants reassigned to a default list
	orphansRepairedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_orphans_repaired_total",
			Help: "Total number of orphan participants reassigned to a default list",
		},
	)

	// Referral code generation collisions that forced a retry
	referralCodeCollisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_referral_code_collisions_total",
			Help: "Total number of referral code collisions during allocation",
		},
	)

	// Referral code validations partitioned by outcome
	referralValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_referral_validations_total",
			Help: "Total number of referral code validations",
		},
		[]string{"outcome"},
	)
)

// RecordParticipantsCreated counts created participants by origin source
func RecordParticipantsCreated(origin string, n int) {
	if n > 0 {
		participantsCreatedTotal.WithLabelValues(origin).Add(float64(n))
	}
}

// RecordImportDuplicates counts duplicates resolved by an import run
func RecordImportDuplicates(n int) {
	if n > 0 {
		importDuplicatesTotal.Add(float64(n))
	}
}

// RecordImportRejected counts records rejected by import validation
func RecordImportRejected(n int) {
	if n > 0 {
		importRejectedTotal.Add(float64(n))
	}
}

// RecordLinkRetry counts one membership link retry
func RecordLinkRetry() {
	linkRetriesTotal.Inc()
}

// RecordOrphansRepaired counts orphans fixed by a repair run
func RecordOrphansRepaired(n int) {
	if n > 0 {
		orphansRepairedTotal.Add(float64(n))
	}
}

// RecordReferralCodeCollision counts one allocation collision
func RecordReferralCodeCollision() {
	referralCodeCollisionsTotal.Inc()
}

// RecordReferralValidation counts one validation by outcome ("valid" or a
// rejection reason)
func RecordReferralValidation(outcome string) {
	referralValidationsTotal.WithLabelValues(outcome).Inc()
}
