package businessflow_test

import (
	"context"
	"sync"
	"testing"

	businessflow "github.com/referly/referral-engine/business_flow"
	"github.com/referly/referral-engine/models"
	"github.com/referly/referral-engine/repository"
	testingutil "github.com/referly/referral-engine/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		participantRepo := repository.NewParticipantRepository(testDB.DB)
		listRepo := repository.NewParticipantListRepository(testDB.DB)
		flow := businessflow.NewMembershipFlow(participantRepo, listRepo)

		ctx := context.Background()
		const tenantID = uint(1)

		t.Run("LinkWritesBothSides", func(t *testing.T) {
			participant, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)
			list, err := fixtures.CreateTestList(tenantID, models.ListKindParticipant)
			require.NoError(t, err)

			require.NoError(t, flow.Link(ctx, tenantID, participant.UUID, list.UUID))

			gotParticipant, err := participantRepo.ByUUID(ctx, participant.UUID)
			require.NoError(t, err)
			require.NotNil(t, gotParticipant)
			assert.True(t, gotParticipant.HasList(list.UUID))

			gotList, err := listRepo.ByUUID(ctx, list.UUID)
			require.NoError(t, err)
			require.NotNil(t, gotList)
			assert.True(t, gotList.HasParticipant(participant.UUID))
		})

		t.Run("LinkIsIdempotent", func(t *testing.T) {
			participant, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)
			list, err := fixtures.CreateTestList(tenantID, models.ListKindParticipant)
			require.NoError(t, err)

			for i := 0; i < 3; i++ {
				require.NoError(t, flow.Link(ctx, tenantID, participant.UUID, list.UUID))
			}

			gotParticipant, err := participantRepo.ByUUID(ctx, participant.UUID)
			require.NoError(t, err)
			assert.Equal(t, []string{list.UUID}, []string(gotParticipant.Lists))

			gotList, err := listRepo.ByUUID(ctx, list.UUID)
			require.NoError(t, err)
			assert.Equal(t, []string{participant.UUID}, []string(gotList.Participants))
		})

		t.Run("ConcurrentLinksAddSingleEntry", func(t *testing.T) {
			participant, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)
			list, err := fixtures.CreateTestList(tenantID, models.ListKindParticipant)
			require.NoError(t, err)

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, flow.Link(ctx, tenantID, participant.UUID, list.UUID))
				}()
			}
			wg.Wait()

			gotParticipant, err := participantRepo.ByUUID(ctx, participant.UUID)
			require.NoError(t, err)
			assert.Len(t, gotParticipant.Lists, 1)

			gotList, err := listRepo.ByUUID(ctx, list.UUID)
			require.NoError(t, err)
			assert.Len(t, gotList.Participants, 1)
		})

		t.Run("UnlinkRemovesBothSides", func(t *testing.T) {
			participant, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)
			list, err := fixtures.CreateTestList(tenantID, models.ListKindParticipant)
			require.NoError(t, err)

			require.NoError(t, flow.Link(ctx, tenantID, participant.UUID, list.UUID))
			require.NoError(t, flow.Unlink(ctx, tenantID, participant.UUID, list.UUID))

			gotParticipant, err := participantRepo.ByUUID(ctx, participant.UUID)
			require.NoError(t, err)
			assert.False(t, gotParticipant.HasList(list.UUID))

			gotList, err := listRepo.ByUUID(ctx, list.UUID)
			require.NoError(t, err)
			assert.False(t, gotList.HasParticipant(participant.UUID))

			// Unlinking a non-member is a no-op
			require.NoError(t, flow.Unlink(ctx, tenantID, participant.UUID, list.UUID))
		})

		t.Run("MissingEntitiesAreNoOps", func(t *testing.T) {
			participant, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)
			list, err := fixtures.CreateTestList(tenantID, models.ListKindParticipant)
			require.NoError(t, err)

			require.NoError(t, flow.Link(ctx, tenantID, "00000000-0000-0000-0000-000000000000", list.UUID))
			require.NoError(t, flow.Link(ctx, tenantID, participant.UUID, "00000000-0000-0000-0000-000000000000"))

			gotParticipant, err := participantRepo.ByUUID(ctx, participant.UUID)
			require.NoError(t, err)
			assert.Empty(t, gotParticipant.Lists)
		})

		t.Run("TenantMismatchIsRejected", func(t *testing.T) {
			participant, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)
			otherTenantList, err := fixtures.CreateTestList(tenantID+1, models.ListKindParticipant)
			require.NoError(t, err)

			err = flow.Link(ctx, tenantID, participant.UUID, otherTenantList.UUID)
			assert.True(t, businessflow.IsTenantMismatch(err))

			// Nothing was written on either side
			gotParticipant, err := participantRepo.ByUUID(ctx, participant.UUID)
			require.NoError(t, err)
			assert.Empty(t, gotParticipant.Lists)

			gotList, err := listRepo.ByUUID(ctx, otherTenantList.UUID)
			require.NoError(t, err)
			assert.Empty(t, gotList.Participants)
		})

		return nil
	})
	require.NoError(t, err)
}
