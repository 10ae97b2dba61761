package businessflow

import (
	"context"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/referly/referral-engine/app/dto"
	"github.com/referly/referral-engine/app/services"
	"github.com/referly/referral-engine/models"
	"github.com/referly/referral-engine/repository"
	"github.com/referly/referral-engine/utils"
)

// ParticipantFlow covers the participant lifecycle: creation with automatic
// default-list assignment, reads, partial updates, and deletion.
type ParticipantFlow interface {
	Create(ctx context.Context, tenantID uint, req *dto.CreateParticipantRequest) (*dto.ParticipantDTO, error)
	Get(ctx context.Context, tenantID uint, participantUUID string) (*dto.ParticipantDTO, error)
	List(ctx context.Context, tenantID uint, req *dto.ListParticipantsRequest) (*dto.ListParticipantsResponse, error)
	Update(ctx context.Context, tenantID uint, participantUUID string, req *dto.UpdateParticipantRequest) (*dto.ParticipantDTO, error)
	Delete(ctx context.Context, tenantID uint, participantUUID string) error
}

// ParticipantFlowImpl implements the participant flow
type ParticipantFlowImpl struct {
	participantRepo repository.ParticipantRepository
	listRepo        repository.ParticipantListRepository
	membership      MembershipFlow
	repair          OrphanRepairFlow
	validate        *validator.Validate
}

// NewParticipantFlow creates a new participant flow instance
func NewParticipantFlow(
	participantRepo repository.ParticipantRepository,
	listRepo repository.ParticipantListRepository,
	membership MembershipFlow,
	repair OrphanRepairFlow,
) ParticipantFlow {
	return &ParticipantFlowImpl{
		participantRepo: participantRepo,
		listRepo:        listRepo,
		membership:      membership,
		repair:          repair,
		validate:        validator.New(),
	}
}

// Create stores a new participant and assigns them to the tenant's default
// list. The assignment is best effort: if it fails the participant still
// exists as an orphan and the repair flow will assign them later.
func (f *ParticipantFlowImpl) Create(ctx context.Context, tenantID uint, req *dto.CreateParticipantRequest) (*dto.ParticipantDTO, error) {
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("PARTICIPANT_REQUEST_INVALID", "invalid participant request", err)
	}

	kind := models.ParticipantKindParticipant
	if req.Kind != nil {
		kind = *req.Kind
	}
	status := models.ParticipantStatusActive
	if req.Status != nil {
		status = *req.Status
	}
	origin := models.OriginSourceManual
	if req.Origin != nil {
		origin = *req.Origin
	}

	participant := &models.Participant{
		UUID:         uuid.NewString(),
		TenantID:     tenantID,
		Name:         req.Name,
		Email:        utils.NormalizeEmail(req.Email),
		Phone:        req.Phone,
		Kind:         kind,
		Status:       status,
		OriginSource: origin,
		CreatedAt:    utils.UTCNow(),
		UpdatedAt:    utils.UTCNow(),
	}

	if err := f.participantRepo.Save(ctx, participant); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}
	services.RecordParticipantsCreated(origin, 1)

	if err := f.assignDefaultList(ctx, tenantID, participant); err != nil {
		log.Printf("default list assignment failed for participant %s, repair will pick it up: %v", participant.UUID, err)
	}

	out := ToParticipantDTO(*participant)
	return &out, nil
}

func (f *ParticipantFlowImpl) assignDefaultList(ctx context.Context, tenantID uint, participant *models.Participant) error {
	list, err := findOrCreateDefaultList(ctx, f.listRepo, tenantID)
	if err != nil {
		return err
	}
	if err := f.membership.Link(ctx, tenantID, participant.UUID, list.UUID); err != nil {
		return err
	}
	participant.Lists = append(participant.Lists, list.UUID)
	return nil
}

// Get returns one participant, scoped to the tenant
func (f *ParticipantFlowImpl) Get(ctx context.Context, tenantID uint, participantUUID string) (*dto.ParticipantDTO, error) {
	participant, err := f.loadOwned(ctx, tenantID, participantUUID)
	if err != nil {
		return nil, err
	}
	out := ToParticipantDTO(*participant)
	return &out, nil
}

// List returns a page of the tenant's participants, optionally scoped to one
// list. An empty list-scoped page for a tenant whose participants all lost
// their memberships triggers a repair and re-reads, so callers never see a
// permanently empty tenant caused by interrupted writes.
func (f *ParticipantFlowImpl) List(ctx context.Context, tenantID uint, req *dto.ListParticipantsRequest) (*dto.ListParticipantsResponse, error) {
	if req == nil {
		req = &dto.ListParticipantsRequest{}
	}
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("PARTICIPANT_LIST_REQUEST_INVALID", "invalid listing request", err)
	}

	page, pageSize, err := normalizePagination(req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}

	filter := models.ParticipantFilter{
		TenantID: &tenantID,
		Kind:     req.Kind,
		Status:   req.Status,
		ListUUID: req.ListUUID,
	}

	items, total, err := f.queryPage(ctx, filter, page, pageSize)
	if err != nil {
		return nil, err
	}

	if total == 0 && req.ListUUID != nil {
		broken, berr := tenantLooksBroken(ctx, f.participantRepo, tenantID)
		if berr != nil {
			log.Printf("orphan check failed for tenant %d: %v", tenantID, berr)
		} else if broken {
			if _, rerr := f.repair.RepairOrphans(ctx, tenantID); rerr != nil {
				log.Printf("opportunistic repair failed for tenant %d: %v", tenantID, rerr)
			} else {
				items, total, err = f.queryPage(ctx, filter, page, pageSize)
				if err != nil {
					return nil, err
				}
			}
		}
	}

	out := make([]dto.ParticipantDTO, 0, len(items))
	for _, p := range items {
		out = append(out, ToParticipantDTO(*p))
	}

	return &dto.ListParticipantsResponse{
		Items:    out,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (f *ParticipantFlowImpl) queryPage(ctx context.Context, filter models.ParticipantFilter, page, pageSize int) ([]*models.Participant, int64, error) {
	total, err := f.participantRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count participants: %w", err)
	}

	items, err := f.participantRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list participants: %w", err)
	}
	return items, total, nil
}

// Update applies a partial update to a participant's mutable fields
func (f *ParticipantFlowImpl) Update(ctx context.Context, tenantID uint, participantUUID string, req *dto.UpdateParticipantRequest) (*dto.ParticipantDTO, error) {
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("PARTICIPANT_REQUEST_INVALID", "invalid participant request", err)
	}

	participant, err := f.loadOwned(ctx, tenantID, participantUUID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		participant.Name = *req.Name
	}
	if req.Phone != nil {
		participant.Phone = *req.Phone
	}
	if req.Status != nil {
		participant.Status = *req.Status
	}
	participant.UpdatedAt = utils.UTCNow()

	if err := f.participantRepo.Update(ctx, participant); err != nil {
		return nil, fmt.Errorf("failed to update participant: %w", err)
	}

	out := ToParticipantDTO(*participant)
	return &out, nil
}

// Delete removes a participant. List documents that still name the deleted
// participant are left as-is; readers resolve memberships through the
// participant side and tolerate dangling identifiers on the list side.
func (f *ParticipantFlowImpl) Delete(ctx context.Context, tenantID uint, participantUUID string) error {
	participant, err := f.loadOwned(ctx, tenantID, participantUUID)
	if err != nil {
		return err
	}
	return f.participantRepo.DeleteByUUID(ctx, tenantID, participant.UUID)
}

func (f *ParticipantFlowImpl) loadOwned(ctx context.Context, tenantID uint, participantUUID string) (*models.Participant, error) {
	participant, err := f.participantRepo.ByUUID(ctx, participantUUID)
	if err != nil {
		return nil, err
	}
	if participant == nil || participant.TenantID != tenantID {
		return nil, ErrParticipantNotFound
	}
	return participant, nil
}
