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

func TestParticipantFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		participantRepo := repository.NewParticipantRepository(testDB.DB)
		listRepo := repository.NewParticipantListRepository(testDB.DB)
		membership := businessflow.NewMembershipFlow(participantRepo, listRepo)
		repair := businessflow.NewOrphanRepairFlow(participantRepo, listRepo)
		flow := businessflow.NewParticipantFlow(participantRepo, listRepo, membership, repair)

		ctx := context.Background()

		t.Run("CreateAssignsDefaultList", func(t *testing.T) {
			const tenantID = uint(40)

			created, err := flow.Create(ctx, tenantID, &dto.CreateParticipantRequest{
				Name:  "Alice Example",
				Email: "Alice@Example.com",
				Phone: "+989121111001",
			})
			require.NoError(t, err)
			assert.Equal(t, "alice@example.com", created.Email)
			assert.Equal(t, models.ParticipantKindParticipant, created.Kind)
			require.Len(t, created.Lists, 1)

			// The default list was created on first use and names the participant
			defaultList, err := listRepo.ByTenantAndNames(ctx, tenantID, models.DefaultListNames)
			require.NoError(t, err)
			require.NotNil(t, defaultList)
			assert.Equal(t, defaultList.UUID, created.Lists[0])
			assert.True(t, defaultList.HasParticipant(created.UUID))
		})

		t.Run("CreateReusesExistingDefaultList", func(t *testing.T) {
			const tenantID = uint(41)
			existing, err := fixtures.CreateTestDefaultList(tenantID)
			require.NoError(t, err)

			created, err := flow.Create(ctx, tenantID, &dto.CreateParticipantRequest{
				Name:  "Bob Example",
				Email: "bob41@example.com",
				Phone: "+989121111002",
			})
			require.NoError(t, err)
			require.Len(t, created.Lists, 1)
			assert.Equal(t, existing.UUID, created.Lists[0])

			lists, err := listRepo.ListByTenant(ctx, tenantID, 0, 0)
			require.NoError(t, err)
			assert.Len(t, lists, 1)
		})

		t.Run("DuplicateEmailIsRejected", func(t *testing.T) {
			const tenantID = uint(42)

			req := &dto.CreateParticipantRequest{
				Name:  "Carol Example",
				Email: "carol42@example.com",
				Phone: "+989121111003",
			}
			_, err := flow.Create(ctx, tenantID, req)
			require.NoError(t, err)

			_, err = flow.Create(ctx, tenantID, req)
			assert.True(t, businessflow.IsEmailAlreadyExists(err))

			// Same email under a different tenant is fine
			_, err = flow.Create(ctx, tenantID+1, req)
			require.NoError(t, err)
		})

		t.Run("GetAndUpdate", func(t *testing.T) {
			const tenantID = uint(43)
			created, err := flow.Create(ctx, tenantID, &dto.CreateParticipantRequest{
				Name:  "Dave Example",
				Email: "dave43@example.com",
				Phone: "+989121111004",
			})
			require.NoError(t, err)

			got, err := flow.Get(ctx, tenantID, created.UUID)
			require.NoError(t, err)
			assert.Equal(t, created.Email, got.Email)

			// Scoped to the owning tenant
			_, err = flow.Get(ctx, tenantID+1, created.UUID)
			assert.True(t, businessflow.IsParticipantNotFound(err))

			updated, err := flow.Update(ctx, tenantID, created.UUID, &dto.UpdateParticipantRequest{
				Name:   utils.ToPtr("Dave Renamed"),
				Status: utils.ToPtr(models.ParticipantStatusInactive),
			})
			require.NoError(t, err)
			assert.Equal(t, "Dave Renamed", updated.Name)
			assert.Equal(t, models.ParticipantStatusInactive, updated.Status)
			assert.Equal(t, created.Email, updated.Email)
		})

		t.Run("ListWithFiltersAndPagination", func(t *testing.T) {
			const tenantID = uint(44)
			list, err := fixtures.CreateTestList(tenantID, models.ListKindParticipant)
			require.NoError(t, err)

			for i := 0; i < 5; i++ {
				p, err := fixtures.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
				require.NoError(t, err)
				require.NoError(t, membership.Link(ctx, tenantID, p.UUID, list.UUID))
			}
			// Indicator outside the list
			_, err = fixtures.CreateTestParticipant(tenantID, models.ParticipantKindIndicator)
			require.NoError(t, err)

			resp, err := flow.List(ctx, tenantID, &dto.ListParticipantsRequest{
				ListUUID: utils.ToPtr(list.UUID),
				Page:     1,
				PageSize: 3,
			})
			require.NoError(t, err)
			assert.EqualValues(t, 5, resp.Total)
			assert.Len(t, resp.Items, 3)

			second, err := flow.List(ctx, tenantID, &dto.ListParticipantsRequest{
				ListUUID: utils.ToPtr(list.UUID),
				Page:     2,
				PageSize: 3,
			})
			require.NoError(t, err)
			assert.Len(t, second.Items, 2)

			indicators, err := flow.List(ctx, tenantID, &dto.ListParticipantsRequest{
				Kind: utils.ToPtr(models.ParticipantKindIndicator),
			})
			require.NoError(t, err)
			assert.EqualValues(t, 1, indicators.Total)

			_, err = flow.List(ctx, tenantID, &dto.ListParticipantsRequest{Page: -1})
			assert.Error(t, err)
		})

		t.Run("DeleteLeavesListSideDangling", func(t *testing.T) {
			const tenantID = uint(45)
			created, err := flow.Create(ctx, tenantID, &dto.CreateParticipantRequest{
				Name:  "Eve Example",
				Email: "eve45@example.com",
				Phone: "+989121111005",
			})
			require.NoError(t, err)
			listUUID := created.Lists[0]

			require.NoError(t, flow.Delete(ctx, tenantID, created.UUID))

			_, err = flow.Get(ctx, tenantID, created.UUID)
			assert.True(t, businessflow.IsParticipantNotFound(err))

			// The dangling id on the list side is tolerated
			gotList, err := listRepo.ByUUID(ctx, listUUID)
			require.NoError(t, err)
			assert.True(t, gotList.HasParticipant(created.UUID))

			resp, err := flow.List(ctx, tenantID, &dto.ListParticipantsRequest{
				ListUUID: utils.ToPtr(listUUID),
			})
			require.NoError(t, err)
			assert.EqualValues(t, 0, resp.Total)
		})

		return nil
	})
	require.NoError(t, err)
}
