// Package testing provides test utilities and database setup for testing the membership engine
package testing

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/referly/referral-engine/models"
	"github.com/referly/referral-engine/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestParticipant creates a participant with a unique email for the tenant
func (tf *TestFixtures) CreateTestParticipant(tenantID uint, kind string) (*models.Participant, error) {
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	participant := &models.Participant{
		UUID:         uuid.NewString(),
		TenantID:     tenantID,
		Name:         "Jane Doe",
		Email:        fmt.Sprintf("jane.doe.%d.%s@example.com", tenantID, randomDigits),
		Phone:        fmt.Sprintf("+989%s", randomDigits),
		Kind:         kind,
		Status:       models.ParticipantStatusActive,
		OriginSource: models.OriginSourceManual,
		CanRefer:     utils.ToPtr(false),
		CreatedAt:    utils.UTCNow(),
		UpdatedAt:    utils.UTCNow(),
	}

	if err := tf.DB.DB.Create(participant).Error; err != nil {
		return nil, fmt.Errorf("failed to create test participant: %w", err)
	}

	return participant, nil
}

// CreateTestParticipantWithLists creates a participant already claiming the given list memberships
func (tf *TestFixtures) CreateTestParticipantWithLists(tenantID uint, listUUIDs []string) (*models.Participant, error) {
	participant, err := tf.CreateTestParticipant(tenantID, models.ParticipantKindParticipant)
	if err != nil {
		return nil, err
	}

	participant.Lists = listUUIDs
	if err := tf.DB.DB.Save(participant).Error; err != nil {
		return nil, fmt.Errorf("failed to set test participant lists: %w", err)
	}

	return participant, nil
}

// CreateTestList creates a participant list with a unique name for the tenant
func (tf *TestFixtures) CreateTestList(tenantID uint, kind string) (*models.ParticipantList, error) {
	randomDigits := fmt.Sprintf("%06d", rand.Intn(900000)+100000)

	list := &models.ParticipantList{
		UUID:      uuid.NewString(),
		TenantID:  tenantID,
		Name:      fmt.Sprintf("Test List %s", randomDigits),
		Kind:      kind,
		CreatedAt: utils.UTCNow(),
		UpdatedAt: utils.UTCNow(),
	}

	if err := tf.DB.DB.Create(list).Error; err != nil {
		return nil, fmt.Errorf("failed to create test list: %w", err)
	}

	return list, nil
}

// CreateTestDefaultList creates the tenant's default list
func (tf *TestFixtures) CreateTestDefaultList(tenantID uint) (*models.ParticipantList, error) {
	list := &models.ParticipantList{
		UUID:      uuid.NewString(),
		TenantID:  tenantID,
		Name:      models.DefaultListName,
		Kind:      models.ListKindParticipant,
		CreatedAt: utils.UTCNow(),
		UpdatedAt: utils.UTCNow(),
	}

	if err := tf.DB.DB.Create(list).Error; err != nil {
		return nil, fmt.Errorf("failed to create test default list: %w", err)
	}

	return list, nil
}
