package businessflow

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/referly/referral-engine/app/dto"
	"github.com/referly/referral-engine/app/services"
	"github.com/referly/referral-engine/models"
	"github.com/referly/referral-engine/repository"
	"github.com/referly/referral-engine/utils"
)

// ImportFlow runs the bulk participant import pipeline: validate, dedupe,
// persist, then link everything to the target list in throttled chunks.
// A single bad record never aborts the batch; per-record failures are
// reported in the result.
type ImportFlow interface {
	Import(ctx context.Context, tenantID uint, req *dto.ImportRequest) (*dto.ImportResult, error)
}

// ImportFlowImpl implements the import flow
type ImportFlowImpl struct {
	participantRepo repository.ParticipantRepository
	listRepo        repository.ParticipantListRepository
	hooks           services.HookDispatcher
	validate        *validator.Validate
	chunkSize       int
	chunkPause      time.Duration
}

// NewImportFlow creates a new import flow instance
func NewImportFlow(
	participantRepo repository.ParticipantRepository,
	listRepo repository.ParticipantListRepository,
	hooks services.HookDispatcher,
	chunkSize int,
	chunkPause time.Duration,
) ImportFlow {
	if chunkSize <= 0 {
		chunkSize = utils.DefaultImportChunkSize
	}
	if chunkPause < 0 {
		chunkPause = utils.DefaultImportChunkPause
	}
	return &ImportFlowImpl{
		participantRepo: participantRepo,
		listRepo:        listRepo,
		hooks:           hooks,
		validate:        validator.New(),
		chunkSize:       chunkSize,
		chunkPause:      chunkPause,
	}
}

// Import processes a batch of raw participant records for one tenant.
//
// The pipeline runs in phases: request validation, target list resolution
// (before any participant write, so a bad target fails the whole batch
// cleanly), per-record validation and in-batch email dedupe, database-level
// dedupe against existing participants, creation of the survivors, and a
// chunked link phase that attaches every created and every pre-existing
// participant to the target list. Duplicates are merged into the target
// list rather than dropped. Without a target list no linking happens: the
// batch lands as orphans and the repair flow assigns them later.
func (f *ImportFlowImpl) Import(ctx context.Context, tenantID uint, req *dto.ImportRequest) (*dto.ImportResult, error) {
	if req == nil || len(req.Records) == 0 {
		return nil, ErrEmptyImportBatch
	}
	if err := f.validate.StructPartial(req, "TargetListUUID", "Kind"); err != nil {
		return nil, NewBusinessError("IMPORT_REQUEST_INVALID", "invalid import request", err)
	}

	kind := models.ParticipantKindParticipant
	if req.Kind != nil {
		kind = *req.Kind
		if !models.IsValidParticipantKind(kind) {
			return nil, ErrImportKindInvalid
		}
	}

	var targetList *models.ParticipantList
	if req.TargetListUUID != nil {
		list, err := f.resolveTargetList(ctx, tenantID, *req.TargetListUUID)
		if err != nil {
			return nil, err
		}
		targetList = list
	}

	result := &dto.ImportResult{TotalProcessed: len(req.Records)}

	// Phase 1: per-record validation and in-batch dedupe on normalized email.
	// The first occurrence of an email wins; later ones count as duplicates.
	seen := make(map[string]bool, len(req.Records))
	accepted := make([]models.Participant, 0, len(req.Records))
	for i, rec := range req.Records {
		if verr := f.validate.Struct(rec); verr != nil {
			result.Failed++
			result.Errors = append(result.Errors, dto.ImportRecordError{
				Index:  i,
				Email:  rec.Email,
				Reason: fmt.Sprintf("validation failed: %v", verr),
			})
			continue
		}

		email := utils.NormalizeEmail(rec.Email)
		if seen[email] {
			result.DuplicatesFound++
			continue
		}
		seen[email] = true

		accepted = append(accepted, models.Participant{
			UUID:         uuid.NewString(),
			TenantID:     tenantID,
			Name:         rec.Name,
			Email:        email,
			Phone:        rec.Phone,
			Kind:         kind,
			Status:       models.ParticipantStatusActive,
			OriginSource: models.OriginSourceImport,
			CreatedAt:    utils.UTCNow(),
			UpdatedAt:    utils.UTCNow(),
		})
	}
	services.RecordImportRejected(result.Failed)

	// Phase 2: dedupe against participants already stored for this tenant.
	// Existing participants are not recreated but are still linked to the
	// target list below.
	toLink := make([]string, 0, len(accepted))
	toCreate := make([]*models.Participant, 0, len(accepted))
	if len(accepted) > 0 {
		emails := make([]string, 0, len(accepted))
		for i := range accepted {
			emails = append(emails, accepted[i].Email)
		}
		existing, err := f.participantRepo.ByTenantAndEmails(ctx, tenantID, emails)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing participants: %w", err)
		}
		existingByEmail := make(map[string]*models.Participant, len(existing))
		for _, p := range existing {
			existingByEmail[p.Email] = p
		}

		for i := range accepted {
			if prior, ok := existingByEmail[accepted[i].Email]; ok {
				result.DuplicatesFound++
				toLink = append(toLink, prior.UUID)
				continue
			}
			toCreate = append(toCreate, &accepted[i])
		}
	}

	// Phase 3: persist the survivors. A concurrent import can still win the
	// unique index race, so duplicate-key failures fall back to per-record
	// saves and reclassify the losers as duplicates.
	created, dupes, recordErrs := f.createBatch(ctx, tenantID, toCreate)
	result.Created = len(created)
	result.DuplicatesFound += dupes
	result.Failed += len(recordErrs)
	result.Errors = append(result.Errors, recordErrs...)
	for _, p := range created {
		toLink = append(toLink, p.UUID)
	}

	services.RecordParticipantsCreated(models.OriginSourceImport, result.Created)
	services.RecordImportDuplicates(result.DuplicatesFound)

	// Phase 4: link everything to the target list in throttled chunks. With
	// no target list the batch stays orphaned on purpose; the repair flow
	// owns its eventual assignment.
	if targetList != nil {
		result.ListAssociated = true
		if err := f.linkChunked(ctx, targetList, toLink, result); err != nil {
			return result, err
		}
	}

	f.dispatchIndicatorHooks(ctx, created)

	return result, nil
}

func (f *ImportFlowImpl) resolveTargetList(ctx context.Context, tenantID uint, targetUUID string) (*models.ParticipantList, error) {
	list, err := f.listRepo.ByUUID(ctx, targetUUID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, ErrListNotFound
	}
	if list.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}
	return list, nil
}

func (f *ImportFlowImpl) createBatch(ctx context.Context, tenantID uint, toCreate []*models.Participant) ([]*models.Participant, int, []dto.ImportRecordError) {
	if len(toCreate) == 0 {
		return nil, 0, nil
	}

	if err := f.participantRepo.SaveBatch(ctx, toCreate); err == nil {
		return toCreate, 0, nil
	} else if !repository.IsDuplicateKey(err) {
		log.Printf("import: batch insert failed for tenant %d, falling back to per-record saves: %v", tenantID, err)
	}

	var (
		created []*models.Participant
		dupes   int
		errs    []dto.ImportRecordError
	)
	for _, p := range toCreate {
		// Fresh copy: the failed batch insert may have left IDs assigned
		record := *p
		record.ID = 0
		if err := f.participantRepo.Save(ctx, &record); err != nil {
			if repository.IsDuplicateKey(err) {
				dupes++
				continue
			}
			errs = append(errs, dto.ImportRecordError{
				Index:  dto.NoRecordIndex,
				Email:  record.Email,
				Reason: fmt.Sprintf("save failed: %v", err),
			})
			continue
		}
		*p = record
		created = append(created, p)
	}
	return created, dupes, errs
}

// linkChunked attaches each participant to the target list, chunkSize at a
// time with a pause between chunks so a large import does not monopolize the
// store. Each link is verified by re-reading the participant side and retried
// once on a miss. Context cancellation is honored between chunks; links
// already made stay made, the repair flow picks up the rest.
func (f *ImportFlowImpl) linkChunked(ctx context.Context, list *models.ParticipantList, participantUUIDs []string, result *dto.ImportResult) error {
	for start := 0; start < len(participantUUIDs); start += f.chunkSize {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("import interrupted after %d of %d links: %w", start, len(participantUUIDs), err)
		}

		end := start + f.chunkSize
		if end > len(participantUUIDs) {
			end = len(participantUUIDs)
		}
		chunk := participantUUIDs[start:end]

		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		for _, puuid := range chunk {
			wg.Add(1)
			go func(puuid string) {
				defer wg.Done()
				if err := f.linkWithVerify(ctx, list.UUID, puuid); err != nil {
					mu.Lock()
					result.Errors = append(result.Errors, dto.ImportRecordError{
						Index:  dto.NoRecordIndex,
						Reason: fmt.Sprintf("link to list %s failed for participant %s: %v", list.UUID, puuid, err),
					})
					mu.Unlock()
				}
			}(puuid)
		}
		wg.Wait()

		if end < len(participantUUIDs) && f.chunkPause > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("import interrupted after %d of %d links: %w", end, len(participantUUIDs), ctx.Err())
			case <-time.After(f.chunkPause):
			}
		}
	}
	return nil
}

func (f *ImportFlowImpl) linkWithVerify(ctx context.Context, listUUID, participantUUID string) error {
	if err := f.listRepo.AddParticipant(ctx, listUUID, participantUUID); err != nil {
		return err
	}
	if err := f.participantRepo.AddListMembership(ctx, participantUUID, listUUID); err != nil {
		return err
	}

	// Verify the participant side landed; retry once if the read misses
	p, err := f.participantRepo.ByUUID(ctx, participantUUID)
	if err != nil {
		return err
	}
	if p == nil || p.HasList(listUUID) {
		return nil
	}

	services.RecordLinkRetry()
	return f.participantRepo.AddListMembership(ctx, participantUUID, listUUID)
}

// dispatchIndicatorHooks fires the indicator-created hook for every imported
// indicator. Delivery failures are logged and never fail the import.
func (f *ImportFlowImpl) dispatchIndicatorHooks(ctx context.Context, created []*models.Participant) {
	if f.hooks == nil {
		return
	}
	for _, p := range created {
		if !p.IsIndicator() {
			continue
		}
		event := services.IndicatorCreatedEvent{
			TenantID:        p.TenantID,
			ParticipantUUID: p.UUID,
			Name:            p.Name,
			Email:           p.Email,
		}
		if p.ReferralCode != nil {
			event.ReferralCode = *p.ReferralCode
		}
		if err := f.hooks.DispatchIndicatorCreated(ctx, event); err != nil {
			log.Printf("import: indicator hook failed for participant %s: %v", p.UUID, err)
		}
	}
}
