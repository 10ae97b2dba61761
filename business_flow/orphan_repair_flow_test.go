package businessflow_test

import (
	"context"
	"testing"

	"github.com/referly/referral-engine/app/dto"
	businessflow "github.com/referly/referral-engine/business_flow"
	"github.com/referly/referral-engine/models"
	"github.com/referly/referral-engine/repository"
	testingutil "github.com/referly/referral-engine/testing"
	"github.com/referly/referral-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrphanRepairFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		participantRepo := repository.NewParticipantRepository(testDB.DB)
		listRepo := repository.NewParticipantListRepository(testDB.DB)
		flow := businessflow.NewOrphanRepairFlow(participantRepo, listRepo)

		ctx := context.Background()

		t.Run("OrphansAreAssignedToDefaultList", func(t *testing.T) {
			const tenantID = uint(20)
			defaultList, err := fixtures.CreateTestDefaultList(tenantID)
			require.NoError(t, err)

			var orphans []*models.Participant
			for i := 0; i < 3; i++ {
				p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
				require.NoError(t, err)
				orphans = append(orphans, p)
			}

			// One participant already holds a membership and must be untouched
			member, err := fixtures.CreateTestParticipantWithLists(tenantID, []string{defaultList.UUID})
			require.NoError(t, err)

			result, err := flow.RepairOrphans(ctx, tenantID)
			require.NoError(t, err)
			assert.Equal(t, 3, result.Fixed)
			assert.Equal(t, defaultList.UUID, result.ListUUID)

			for _, orphan := range orphans {
				got, err := participantRepo.ByUUID(ctx, orphan.UUID)
				require.NoError(t, err)
				assert.Equal(t, []string{defaultList.UUID}, []string(got.Lists))
			}

			gotList, err := listRepo.ByUUID(ctx, defaultList.UUID)
			require.NoError(t, err)
			assert.Len(t, gotList.Participants, 3)
			assert.False(t, gotList.HasParticipant(member.UUID))

			gotMember, err := participantRepo.ByUUID(ctx, member.UUID)
			require.NoError(t, err)
			assert.Equal(t, []string{defaultList.UUID}, []string(gotMember.Lists))
		})

		t.Run("RepairCreatesDefaultListWhenMissing", func(t *testing.T) {
			const tenantID = uint(21)
			_, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			result, err := flow.RepairOrphans(ctx, tenantID)
			require.NoError(t, err)
			assert.Equal(t, 1, result.Fixed)
			assert.Equal(t, models.DefaultListName, result.ListName)

			created, err := listRepo.ByTenantAndNames(ctx, tenantID, models.DefaultListNames)
			require.NoError(t, err)
			require.NotNil(t, created)
			assert.Len(t, created.Participants, 1)
		})

		t.Run("RepairReusesDefaultNamedListOfAnyKind", func(t *testing.T) {
			const tenantID = uint(26)

			// A tenant list holding the canonical name but a different kind:
			// the (tenant_id, name) unique index would block creating another
			// "General List", so repair must adopt this one instead.
			mixed := &models.ParticipantList{
				UUID:      "list-mixed-26",
				TenantID:  tenantID,
				Name:      models.DefaultListName,
				Kind:      models.ListKindMixed,
				CreatedAt: utils.UTCNow(),
				UpdatedAt: utils.UTCNow(),
			}
			require.NoError(t, listRepo.Save(ctx, mixed))

			p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			result, err := flow.RepairOrphans(ctx, tenantID)
			require.NoError(t, err)
			assert.Equal(t, 1, result.Fixed)
			assert.Equal(t, mixed.UUID, result.ListUUID)

			got, err := participantRepo.ByUUID(ctx, p.UUID)
			require.NoError(t, err)
			assert.Equal(t, []string{mixed.UUID}, []string(got.Lists))

			lists, err := listRepo.ListByTenant(ctx, tenantID, 0, 0)
			require.NoError(t, err)
			assert.Len(t, lists, 1)
		})

		t.Run("NoOrphansMeansNoDefaultList", func(t *testing.T) {
			const tenantID = uint(22)

			result, err := flow.RepairOrphans(ctx, tenantID)
			require.NoError(t, err)
			assert.Equal(t, 0, result.Fixed)

			// A clean tenant must not gain a default list as a side effect
			list, err := listRepo.ByTenantAndNames(ctx, tenantID, models.DefaultListNames)
			require.NoError(t, err)
			assert.Nil(t, list)
		})

		t.Run("RepairIsIdempotent", func(t *testing.T) {
			const tenantID = uint(23)
			_, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)

			first, err := flow.RepairOrphans(ctx, tenantID)
			require.NoError(t, err)
			assert.Equal(t, 1, first.Fixed)

			second, err := flow.RepairOrphans(ctx, tenantID)
			require.NoError(t, err)
			assert.Equal(t, 0, second.Fixed)
		})

		t.Run("RepairResolvesPartialLinkState", func(t *testing.T) {
			const tenantID = uint(24)
			defaultList, err := fixtures.CreateTestDefaultList(tenantID)
			require.NoError(t, err)

			// Simulate an interrupted dual write: the list names the
			// participant but the participant side was never written
			p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
			require.NoError(t, err)
			require.NoError(t, listRepo.AddParticipant(ctx, defaultList.UUID, p.UUID))

			result, err := flow.RepairOrphans(ctx, tenantID)
			require.NoError(t, err)
			assert.Equal(t, 1, result.Fixed)

			got, err := participantRepo.ByUUID(ctx, p.UUID)
			require.NoError(t, err)
			assert.True(t, got.HasList(defaultList.UUID))

			gotList, err := listRepo.ByUUID(ctx, defaultList.UUID)
			require.NoError(t, err)
			assert.Equal(t, []string{p.UUID}, []string(gotList.Participants))
		})

		t.Run("ListScopedReadTriggersRepair", func(t *testing.T) {
			const tenantID = uint(25)
			defaultList, err := fixtures.CreateTestDefaultList(tenantID)
			require.NoError(t, err)

			// Every participant of this tenant lost its memberships
			for i := 0; i < 2; i++ {
				_, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
				require.NoError(t, err)
			}

			membership := businessflow.NewMembershipFlow(participantRepo, listRepo)
			participantFlow := businessflow.NewParticipantFlow(participantRepo, listRepo, membership, flow)

			resp, err := participantFlow.List(ctx, tenantID, &dto.ListParticipantsRequest{
				ListUUID: utils.ToPtr(defaultList.UUID),
			})
			require.NoError(t, err)
			assert.EqualValues(t, 2, resp.Total)
			assert.Len(t, resp.Items, 2)
		})

		return nil
	})
	require.NoError(t, err)
}
