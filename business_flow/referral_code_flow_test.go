package businessflow_test

import (
	"context"
	"sync"
	"testing"

	"github.com/referly/referral-engine/app/services"
	businessflow "github.com/referly/referral-engine/business_flow"
	"github.com/referly/referral-engine/models"
	"github.com/referly/referral-engine/repository"
	testingutil "github.com/referly/referral-engine/testing"
	"github.com/referly/referral-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralCodeFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		participantRepo := repository.NewParticipantRepository(testDB.DB)
		hooks := services.NewMockHookDispatcher()
		flow := businessflow.NewReferralCodeFlow(participantRepo, hooks, nil, "test", 0, 0, 0, nil)

		ctx := context.Background()

		t.Run("PromoteAllocatesCodeAndDispatchesHook", func(t *testing.T) {
			const tenantID = uint(30)
			p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			before := len(hooks.DispatchedEvents())

			promoted, err := flow.Promote(ctx, tenantID, p.UUID)
			require.NoError(t, err)
			require.NotNil(t, promoted.ReferralCode)
			assert.GreaterOrEqual(t, len(*promoted.ReferralCode), utils.ReferralCodeMinLength)
			assert.Equal(t, models.ParticipantKindIndicator, promoted.Kind)
			assert.True(t, promoted.CanRefer)

			events := hooks.DispatchedEvents()
			require.Len(t, events, before+1)
			assert.Equal(t, *promoted.ReferralCode, events[before].ReferralCode)

			// The stored participant carries the same code
			stored, err := participantRepo.ByUUID(ctx, p.UUID)
			require.NoError(t, err)
			require.NotNil(t, stored.ReferralCode)
			assert.Equal(t, *promoted.ReferralCode, *stored.ReferralCode)
		})

		t.Run("PromoteIsIdempotent", func(t *testing.T) {
			const tenantID = uint(31)
			p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			first, err := flow.Promote(ctx, tenantID, p.UUID)
			require.NoError(t, err)

			second, err := flow.Promote(ctx, tenantID, p.UUID)
			require.NoError(t, err)
			assert.Equal(t, *first.ReferralCode, *second.ReferralCode)
		})

		t.Run("ConcurrentPromotionsConvergeOnOneCode", func(t *testing.T) {
			const tenantID = uint(32)
			p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			var wg sync.WaitGroup
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := flow.Promote(ctx, tenantID, p.UUID)
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			stored, err := participantRepo.ByUUID(ctx, p.UUID)
			require.NoError(t, err)
			require.NotNil(t, stored.ReferralCode)
			assert.True(t, utils.IsTrue(stored.CanRefer))
		})

		t.Run("ConcurrentPromotionsYieldDistinctCodes", func(t *testing.T) {
			const tenantID = uint(39)
			var participants []*models.Participant
			for i := 0; i < 8; i++ {
				p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
				require.NoError(t, err)
				participants = append(participants, p)
			}

			var wg sync.WaitGroup
			for _, p := range participants {
				wg.Add(1)
				go func(uuid string) {
					defer wg.Done()
					_, err := flow.Promote(ctx, tenantID, uuid)
					assert.NoError(t, err)
				}(p.UUID)
			}
			wg.Wait()

			codes := make(map[string]bool)
			for _, p := range participants {
				stored, err := participantRepo.ByUUID(ctx, p.UUID)
				require.NoError(t, err)
				require.NotNil(t, stored.ReferralCode)
				codes[*stored.ReferralCode] = true
			}
			assert.Len(t, codes, len(participants))
		})

		t.Run("ValidateCodeOutcomes", func(t *testing.T) {
			const tenantID = uint(33)
			p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			promoted, err := flow.Promote(ctx, tenantID, p.UUID)
			require.NoError(t, err)
			code := *promoted.ReferralCode

			result, err := flow.ValidateCode(ctx, code)
			require.NoError(t, err)
			assert.True(t, result.Valid)
			require.NotNil(t, result.Participant)
			assert.Equal(t, p.UUID, result.Participant.UUID)

			// Unknown code
			result, err = flow.ValidateCode(ctx, "zzzzzzzzzzzz")
			require.NoError(t, err)
			assert.False(t, result.Valid)
			assert.Equal(t, businessflow.ValidationOutcomeNotFound, result.Reason)

			// Too short to ever be a real code
			result, err = flow.ValidateCode(ctx, "abc")
			require.NoError(t, err)
			assert.False(t, result.Valid)
			assert.Equal(t, businessflow.ValidationOutcomeNotFound, result.Reason)

			// Inactive holder
			stored, err := participantRepo.ByUUID(ctx, p.UUID)
			require.NoError(t, err)
			stored.Status = models.ParticipantStatusInactive
			require.NoError(t, participantRepo.Update(ctx, stored))

			result, err = flow.ValidateCode(ctx, code)
			require.NoError(t, err)
			assert.False(t, result.Valid)
			assert.Equal(t, businessflow.ValidationOutcomeInactive, result.Reason)
		})

		t.Run("RevokedHolderIsNotEligible", func(t *testing.T) {
			const tenantID = uint(34)
			p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			promoted, err := flow.Promote(ctx, tenantID, p.UUID)
			require.NoError(t, err)
			code := *promoted.ReferralCode

			stored, err := participantRepo.ByUUID(ctx, p.UUID)
			require.NoError(t, err)
			stored.CanRefer = utils.ToPtr(false)
			require.NoError(t, participantRepo.Update(ctx, stored))

			result, err := flow.ValidateCode(ctx, code)
			require.NoError(t, err)
			assert.False(t, result.Valid)
			assert.Equal(t, businessflow.ValidationOutcomeNotEligible, result.Reason)
		})

		t.Run("CodeHeldByPlainParticipantIsRejected", func(t *testing.T) {
			const tenantID = uint(46)
			p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			// Write a code directly, bypassing promotion, so the holder keeps
			// kind=participant
			code := "zz46aabbccdd"
			require.NoError(t, participantRepo.UpdateReferralCode(ctx, p.ID, code, true))

			result, err := flow.ValidateCode(ctx, code)
			require.NoError(t, err)
			assert.False(t, result.Valid)
			assert.Equal(t, businessflow.ValidationOutcomeNotIndicator, result.Reason)
		})

		t.Run("AllocationRetriesPastCollision", func(t *testing.T) {
			const tenantID = uint(47)
			holder, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			promoted, err := flow.Promote(ctx, tenantID, holder.UUID)
			require.NoError(t, err)
			takenCode := *promoted.ReferralCode

			// First candidate collides with the existing holder, the second
			// attempt falls back to a fresh code
			calls := 0
			fresh := businessflow.DefaultCodeGenerator(utils.ReferralCodeSuffixLength)
			colliding := businessflow.NewReferralCodeFlow(participantRepo, hooks, nil, "test", 0, 0, 0,
				func() (string, error) {
					calls++
					if calls == 1 {
						return takenCode, nil
					}
					return fresh()
				})

			p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			got, err := colliding.Promote(ctx, tenantID, p.UUID)
			require.NoError(t, err)
			require.NotNil(t, got.ReferralCode)
			assert.NotEqual(t, takenCode, *got.ReferralCode)
			assert.GreaterOrEqual(t, calls, 2)
		})

		t.Run("AllocationGivesUpAfterMaxAttempts", func(t *testing.T) {
			const tenantID = uint(48)
			holder, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			promoted, err := flow.Promote(ctx, tenantID, holder.UUID)
			require.NoError(t, err)
			takenCode := *promoted.ReferralCode

			calls := 0
			exhausted := businessflow.NewReferralCodeFlow(participantRepo, hooks, nil, "test", 0, 3, 0,
				func() (string, error) {
					calls++
					return takenCode, nil
				})

			p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			_, err = exhausted.Promote(ctx, tenantID, p.UUID)
			assert.True(t, businessflow.IsReferralCodeExhausted(err))
			assert.Equal(t, 3, calls)

			stored, err := participantRepo.ByUUID(ctx, p.UUID)
			require.NoError(t, err)
			assert.Nil(t, stored.ReferralCode)
		})

		t.Run("RegenerateInvalidatesOldCode", func(t *testing.T) {
			const tenantID = uint(35)
			p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindIndicator)
			require.NoError(t, err)

			promoted, err := flow.Promote(ctx, tenantID, p.UUID)
			require.NoError(t, err)
			oldCode := *promoted.ReferralCode

			regenerated, err := flow.RegenerateCode(ctx, tenantID, p.UUID)
			require.NoError(t, err)
			newCode := *regenerated.ReferralCode
			assert.NotEqual(t, oldCode, newCode)

			oldResult, err := flow.ValidateCode(ctx, oldCode)
			require.NoError(t, err)
			assert.False(t, oldResult.Valid)

			newResult, err := flow.ValidateCode(ctx, newCode)
			require.NoError(t, err)
			assert.True(t, newResult.Valid)
		})

		t.Run("RegenerateRequiresEligibility", func(t *testing.T) {
			const tenantID = uint(36)
			p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			_, err = flow.RegenerateCode(ctx, tenantID, p.UUID)
			assert.True(t, businessflow.IsNotEligibleForReferral(err))
		})

		t.Run("RecordReferralBumpsCounters", func(t *testing.T) {
			const tenantID = uint(37)
			p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			promoted, err := flow.Promote(ctx, tenantID, p.UUID)
			require.NoError(t, err)
			code := *promoted.ReferralCode

			require.NoError(t, flow.RecordReferral(ctx, code))
			require.NoError(t, flow.RecordReferral(ctx, code))

			stored, err := participantRepo.ByUUID(ctx, p.UUID)
			require.NoError(t, err)
			assert.EqualValues(t, 2, stored.ReferralCount)
			assert.NotNil(t, stored.LastReferralAt)

			err = flow.RecordReferral(ctx, "nosuchcode123")
			assert.ErrorIs(t, err, businessflow.ErrReferralCodeNotFound)
		})

		t.Run("TenantMismatchIsRejected", func(t *testing.T) {
			const tenantID = uint(38)
			p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			_, err = flow.Promote(ctx, tenantID+1, p.UUID)
			assert.True(t, businessflow.IsTenantMismatch(err))
		})

		return nil
	})
	require.NoError(t, err)
}
