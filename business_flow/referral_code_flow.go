package businessflow

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/referly/referral-engine/app/dto"
	"github.com/referly/referral-engine/app/services"
	"github.com/referly/referral-engine/models"
	"github.com/referly/referral-engine/repository"
	"github.com/referly/referral-engine/utils"
)

// Validation outcomes reported by ValidateCode
const (
	ValidationOutcomeValid        = "valid"
	ValidationOutcomeNotFound     = "not_found"
	ValidationOutcomeInactive     = "inactive"
	ValidationOutcomeNotIndicator = "not_indicator"
	ValidationOutcomeNotEligible  = "not_eligible"
)

const referralCodeCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// CodeGenerator produces referral code candidates. Implementations do not
// need to guarantee uniqueness; the flow retries through the generator when
// a candidate collides with an existing code.
type CodeGenerator func() (string, error)

// DefaultCodeGenerator builds codes from a base36 millisecond timestamp
// prefix plus a random suffix of the given length. The prefix makes
// collisions across time essentially free; the suffix disambiguates codes
// minted in the same millisecond.
func DefaultCodeGenerator(suffixLength int) CodeGenerator {
	return func() (string, error) {
		prefix := strconv.FormatInt(time.Now().UnixMilli(), 36)

		suffix := make([]byte, suffixLength)
		max := big.NewInt(int64(len(referralCodeCharset)))
		for i := range suffix {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("failed to generate referral code: %w", err)
			}
			suffix[i] = referralCodeCharset[n.Int64()]
		}

		return prefix + string(suffix), nil
	}
}

// ReferralCodeFlow manages referral codes: promoting participants to
// indicators, allocating globally unique codes, validating codes on the
// referral hot path (with a cache in front of the store), and recording
// successful referrals.
type ReferralCodeFlow interface {
	Promote(ctx context.Context, tenantID uint, participantUUID string) (*dto.ParticipantDTO, error)
	RegenerateCode(ctx context.Context, tenantID uint, participantUUID string) (*dto.ParticipantDTO, error)
	ValidateCode(ctx context.Context, code string) (*dto.ReferralValidationResult, error)
	RecordReferral(ctx context.Context, code string) error
}

// ReferralCodeFlowImpl implements the referral code flow
type ReferralCodeFlowImpl struct {
	participantRepo repository.ParticipantRepository
	hooks           services.HookDispatcher
	cache           *redis.Client
	cachePrefix     string
	cacheTTL        time.Duration
	maxAttempts     int
	newCode         CodeGenerator
}

// NewReferralCodeFlow creates a new referral code flow instance. cache may be
// nil, in which case every validation hits the store. codeGen may be nil, in
// which case DefaultCodeGenerator with the given suffix length is used.
func NewReferralCodeFlow(
	participantRepo repository.ParticipantRepository,
	hooks services.HookDispatcher,
	cache *redis.Client,
	cachePrefix string,
	cacheTTL time.Duration,
	maxAttempts int,
	suffixLength int,
	codeGen CodeGenerator,
) ReferralCodeFlow {
	if maxAttempts <= 0 {
		maxAttempts = utils.DefaultReferralCodeMaxAttempts
	}
	if suffixLength <= 0 {
		suffixLength = utils.ReferralCodeSuffixLength
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	if codeGen == nil {
		codeGen = DefaultCodeGenerator(suffixLength)
	}
	return &ReferralCodeFlowImpl{
		participantRepo: participantRepo,
		hooks:           hooks,
		cache:           cache,
		cachePrefix:     cachePrefix,
		cacheTTL:        cacheTTL,
		maxAttempts:     maxAttempts,
		newCode:         codeGen,
	}
}

// Promote turns a participant into an indicator: marks them referral-capable
// and allocates a referral code if they do not hold one yet. Promoting an
// indicator again is a no-op that returns the current state, so concurrent
// promotions of the same participant converge on one code.
func (f *ReferralCodeFlowImpl) Promote(ctx context.Context, tenantID uint, participantUUID string) (*dto.ParticipantDTO, error) {
	participant, err := f.loadOwned(ctx, tenantID, participantUUID)
	if err != nil {
		return nil, err
	}
	if !participant.IsActive() {
		return nil, ErrParticipantInactive
	}

	if participant.ReferralCode != nil && utils.IsTrue(participant.CanRefer) {
		out := ToParticipantDTO(*participant)
		return &out, nil
	}

	if participant.Kind == models.ParticipantKindParticipant {
		participant.Kind = models.ParticipantKindIndicator
		if err := f.participantRepo.Update(ctx, participant); err != nil {
			return nil, fmt.Errorf("failed to promote participant: %w", err)
		}
	}

	code, err := f.allocateCode(ctx, participant)
	if err != nil {
		return nil, err
	}
	participant.ReferralCode = &code
	participant.CanRefer = utils.ToPtr(true)

	f.dispatchHook(ctx, participant)

	out := ToParticipantDTO(*participant)
	return &out, nil
}

// RegenerateCode replaces an indicator's referral code with a fresh one. The
// old code stops validating immediately.
func (f *ReferralCodeFlowImpl) RegenerateCode(ctx context.Context, tenantID uint, participantUUID string) (*dto.ParticipantDTO, error) {
	participant, err := f.loadOwned(ctx, tenantID, participantUUID)
	if err != nil {
		return nil, err
	}
	if !participant.IsIndicator() && !utils.IsTrue(participant.CanRefer) {
		return nil, ErrNotEligibleForReferral
	}

	oldCode := participant.ReferralCode

	code, err := f.allocateCode(ctx, participant)
	if err != nil {
		return nil, err
	}
	participant.ReferralCode = &code
	participant.CanRefer = utils.ToPtr(true)

	if oldCode != nil {
		f.evictCached(ctx, *oldCode)
	}

	out := ToParticipantDTO(*participant)
	return &out, nil
}

// ValidateCode checks a referral code and reports why it is unusable instead
// of returning an error: unknown codes, inactive holders, and holders whose
// referral capability was revoked are all distinguishable outcomes. Valid
// lookups are served from the cache when one is configured.
func (f *ReferralCodeFlowImpl) ValidateCode(ctx context.Context, code string) (*dto.ReferralValidationResult, error) {
	if len(code) < utils.ReferralCodeMinLength {
		services.RecordReferralValidation(ValidationOutcomeNotFound)
		return &dto.ReferralValidationResult{Valid: false, Reason: ValidationOutcomeNotFound}, nil
	}

	participant, err := f.lookupByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if participant == nil {
		services.RecordReferralValidation(ValidationOutcomeNotFound)
		return &dto.ReferralValidationResult{Valid: false, Reason: ValidationOutcomeNotFound}, nil
	}
	if !participant.IsActive() {
		services.RecordReferralValidation(ValidationOutcomeInactive)
		return &dto.ReferralValidationResult{Valid: false, Reason: ValidationOutcomeInactive}, nil
	}
	// A code held by a plain participant (demoted after promotion, or written
	// outside the flow) must not refer anyone
	if !participant.IsIndicator() {
		services.RecordReferralValidation(ValidationOutcomeNotIndicator)
		return &dto.ReferralValidationResult{Valid: false, Reason: ValidationOutcomeNotIndicator}, nil
	}
	if !utils.IsTrue(participant.CanRefer) {
		services.RecordReferralValidation(ValidationOutcomeNotEligible)
		return &dto.ReferralValidationResult{Valid: false, Reason: ValidationOutcomeNotEligible}, nil
	}

	f.cacheCode(ctx, code, participant.UUID)
	services.RecordReferralValidation(ValidationOutcomeValid)

	out := ToParticipantDTO(*participant)
	return &dto.ReferralValidationResult{Valid: true, Participant: &out}, nil
}

// RecordReferral bumps the holder's referral counters after a referral
// attributed to the code succeeds.
func (f *ReferralCodeFlowImpl) RecordReferral(ctx context.Context, code string) error {
	participant, err := f.participantRepo.ByReferralCode(ctx, code)
	if err != nil {
		return err
	}
	if participant == nil {
		return ErrReferralCodeNotFound
	}
	return f.participantRepo.IncrementReferralStats(ctx, participant.ID)
}

func (f *ReferralCodeFlowImpl) loadOwned(ctx context.Context, tenantID uint, participantUUID string) (*models.Participant, error) {
	participant, err := f.participantRepo.ByUUID(ctx, participantUUID)
	if err != nil {
		return nil, err
	}
	if participant == nil {
		return nil, ErrParticipantNotFound
	}
	if participant.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}
	return participant, nil
}

// allocateCode generates and persists a globally unique referral code. The
// global unique index is the real arbiter: a collision surfaces as a
// duplicate-key failure and triggers another attempt, up to the configured
// bound.
func (f *ReferralCodeFlowImpl) allocateCode(ctx context.Context, participant *models.Participant) (string, error) {
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		code, err := f.newCode()
		if err != nil {
			return "", err
		}

		taken, err := f.participantRepo.ByReferralCode(ctx, code)
		if err != nil {
			return "", err
		}
		if taken != nil && taken.ID != participant.ID {
			services.RecordReferralCodeCollision()
			continue
		}

		if err := f.participantRepo.UpdateReferralCode(ctx, participant.ID, code, true); err != nil {
			if repository.IsDuplicateKey(err) {
				services.RecordReferralCodeCollision()
				continue
			}
			return "", fmt.Errorf("failed to store referral code: %w", err)
		}
		return code, nil
	}
	return "", ErrReferralCodeExhausted
}

func (f *ReferralCodeFlowImpl) lookupByCode(ctx context.Context, code string) (*models.Participant, error) {
	if f.cache != nil {
		if cachedUUID, err := f.cache.Get(ctx, f.cacheKey(code)).Result(); err == nil && cachedUUID != "" {
			participant, err := f.participantRepo.ByUUID(ctx, cachedUUID)
			if err != nil {
				return nil, err
			}
			// Stale entries (regenerated codes) fall through to the store
			if participant != nil && participant.ReferralCode != nil && *participant.ReferralCode == code {
				return participant, nil
			}
			f.evictCached(ctx, code)
		}
	}
	return f.participantRepo.ByReferralCode(ctx, code)
}

func (f *ReferralCodeFlowImpl) cacheCode(ctx context.Context, code, participantUUID string) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Set(ctx, f.cacheKey(code), participantUUID, f.cacheTTL).Err(); err != nil {
		log.Printf("referral code cache set failed: %v", err)
	}
}

func (f *ReferralCodeFlowImpl) evictCached(ctx context.Context, code string) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Del(ctx, f.cacheKey(code)).Err(); err != nil {
		log.Printf("referral code cache evict failed: %v", err)
	}
}

func (f *ReferralCodeFlowImpl) cacheKey(code string) string {
	return f.cachePrefix + ":refcode:" + code
}

func (f *ReferralCodeFlowImpl) dispatchHook(ctx context.Context, participant *models.Participant) {
	if f.hooks == nil {
		return
	}
	event := services.IndicatorCreatedEvent{
		TenantID:        participant.TenantID,
		ParticipantUUID: participant.UUID,
		Name:            participant.Name,
		Email:           participant.Email,
	}
	if participant.ReferralCode != nil {
		event.ReferralCode = *participant.ReferralCode
	}
	if err := f.hooks.DispatchIndicatorCreated(ctx, event); err != nil {
		log.Printf("indicator hook failed for participant %s: %v", participant.UUID, err)
	}
}
