package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lgu-assessor/faas-api/internal/dto"
	"github.com/lgu-assessor/faas-api/internal/models"
	"github.com/lgu-assessor/faas-api/internal/repository"
	appErrors "github.com/lgu-assessor/faas-api/pkg/errors"
)

const recordResource = "faas_record"

type recordStore interface {
	Create(ctx context.Context, record *models.FAASRecord) error
	GetByID(ctx context.Context, id string) (*models.FAASRecord, error)
	List(ctx context.Context, filter models.RecordFilter) ([]models.FAASRecord, error)
	Count(ctx context.Context, filter models.RecordFilter) (int, error)
	UpdatePayload(ctx context.Context, record *models.FAASRecord) error
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error
	SoftDelete(ctx context.Context, id string) error
}

type auditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

type lifecycleBroadcaster interface {
	Broadcast(event models.LifecycleEvent)
}

type documentGenerator interface {
	Generate(ctx context.Context, recordID string) (*GenerationResult, error)
	DeleteArtifactFiles(record *models.FAASRecord)
}

type cacheInvalidator interface {
	InvalidateStats(ctx context.Context)
}

// RecordService owns the FAAS record lifecycle: creation, edits, the
// submit/approve/reject transitions and their reversal, soft deletion. Every
// successful mutation writes an audit entry and notifies subscribers.
type RecordService struct {
	records   recordStore
	audits    auditStore
	events    lifecycleBroadcaster
	generator documentGenerator
	cache     cacheInvalidator
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewRecordService constructs the lifecycle service.
func NewRecordService(records recordStore, audits auditStore, events lifecycleBroadcaster, generator documentGenerator, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *RecordService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{
		records:   records,
		audits:    audits,
		events:    events,
		generator: generator,
		cache:     cache,
		validate:  validate,
		logger:    logger,
	}
}

// Create stores a new record in draft status owned by the acting encoder.
func (s *RecordService) Create(ctx context.Context, actor *models.User, req dto.CreateRecordRequest) (*models.FAASRecord, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid record payload")
	}

	record := &models.FAASRecord{EncoderID: actor.ID}
	applyPayload(record, req.RecordPayload)
	record.Status = models.RecordStatusDraft

	if err := s.records.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create record")
	}

	s.finishMutation(ctx, actor, record, models.AuditActionCreate, fmt.Sprintf("created record %s", record.ArfNo))
	return record, nil
}

// Get returns one visible record.
func (s *RecordService) Get(ctx context.Context, id string) (*models.FAASRecord, error) {
	return s.load(ctx, id)
}

// List returns a page of visible records with the total match count.
func (s *RecordService) List(ctx context.Context, filter models.RecordFilter) ([]models.FAASRecord, int, error) {
	records, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
	}
	total, err := s.records.Count(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count records")
	}
	return records, total, nil
}

// Update replaces the record payload. Approved records are immutable; every
// edit discards previously generated files, and the stored paths are nulled
// in the same statement that writes the payload so a reader never sees new
// data alongside artifacts rendered from old data.
func (s *RecordService) Update(ctx context.Context, actor *models.User, id string, req dto.UpdateRecordRequest) (*models.FAASRecord, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.Status.Editable() {
		return nil, appErrors.ErrInvalidTransition
	}
	if err := s.requireOwnershipOrAdmin(actor, record); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid record payload")
	}

	s.generator.DeleteArtifactFiles(record)
	applyPayload(record, req.RecordPayload)
	record.ClearArtifacts()
	if record.Status == models.RecordStatusPending {
		// the reviewed payload no longer exists; back to draft for resubmission
		record.Status = models.RecordStatusDraft
	}

	if err := s.records.UpdatePayload(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update record")
	}

	s.finishMutation(ctx, actor, record, models.AuditActionUpdate, fmt.Sprintf("updated record %s", record.ArfNo))
	return record, nil
}

// Submit moves a draft, pending, or rejected record to pending review and
// runs the generation pipeline inline. Submitting an already-pending record
// re-triggers generation; a rejected record loses its previous decision on
// resubmission. Only approved records refuse submission. Generation failures
// never fail the submission.
func (s *RecordService) Submit(ctx context.Context, actor *models.User, id string) (*models.FAASRecord, *GenerationResult, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if record.Status == models.RecordStatusApproved {
		return nil, nil, appErrors.ErrInvalidTransition
	}
	if err := s.requireOwnershipOrAdmin(actor, record); err != nil {
		return nil, nil, err
	}

	record.ClearDecision()
	if err := s.records.UpdateStatus(ctx, statusParams(record)); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit record")
	}

	s.finishMutation(ctx, actor, record, models.AuditActionSubmit, fmt.Sprintf("submitted record %s for review", record.ArfNo))

	generation, err := s.generator.Generate(ctx, record.ID)
	if err != nil {
		s.logger.Warn("generation skipped after submit", zap.String("record_id", record.ID), zap.Error(err))
		generation = &GenerationResult{Message: "generation not attempted"}
	}
	applyGeneration(record, generation)
	return record, generation, nil
}

// Approve records an approval decision on a pending record.
func (s *RecordService) Approve(ctx context.Context, actor *models.User, id string, req dto.ApproveRecordRequest) (*models.FAASRecord, error) {
	return s.decide(ctx, actor, id, models.RecordStatusApproved, req.Comment)
}

// Reject records a rejection on a pending record. The reason is mandatory and
// stays on the record so the encoder knows what to fix.
func (s *RecordService) Reject(ctx context.Context, actor *models.User, id string, req dto.RejectRecordRequest) (*models.FAASRecord, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	return s.decide(ctx, actor, id, models.RecordStatusRejected, req.Reason)
}

func (s *RecordService) decide(ctx context.Context, actor *models.User, id string, status models.RecordStatus, note string) (*models.FAASRecord, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.RecordStatusPending {
		return nil, appErrors.ErrInvalidTransition
	}

	// An approval comment and a rejection reason share the column; blank
	// notes stay null.
	decision := models.Decision{ApproverID: actor.ID, DecidedAt: time.Now().UTC(), Reason: note}
	action := models.AuditActionApprove
	description := fmt.Sprintf("approved record %s", record.ArfNo)
	if status == models.RecordStatusRejected {
		action = models.AuditActionReject
		description = fmt.Sprintf("rejected record %s: %s", record.ArfNo, note)
	}

	record.ApplyDecision(status, decision)
	if err := s.records.UpdateStatus(ctx, statusParams(record)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	s.finishMutation(ctx, actor, record, action, description)
	return record, nil
}

// CancelDecision reverts an approved or rejected record to pending and erases
// the decision fields, as if the reviewer had never acted.
func (s *RecordService) CancelDecision(ctx context.Context, actor *models.User, id string) (*models.FAASRecord, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.Status.Decided() {
		return nil, appErrors.ErrInvalidTransition
	}

	record.ClearDecision()
	if err := s.records.UpdateStatus(ctx, statusParams(record)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel decision")
	}

	s.finishMutation(ctx, actor, record, models.AuditActionCancelDecision, fmt.Sprintf("cancelled decision on record %s", record.ArfNo))
	return record, nil
}

// Delete hides the record from every listing and lookup. The row and its
// audit trail survive; the generated files do not. Any encoder may hide any
// record; role gating at the route is the only restriction.
func (s *RecordService) Delete(ctx context.Context, actor *models.User, id string) error {
	record, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	s.generator.DeleteArtifactFiles(record)
	if err := s.records.SoftDelete(ctx, record.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete record")
	}

	s.finishMutation(ctx, actor, record, models.AuditActionDelete, fmt.Sprintf("deleted record %s", record.ArfNo))
	return nil
}

func (s *RecordService) load(ctx context.Context, id string) (*models.FAASRecord, error) {
	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}
	return record, nil
}

// requireOwnershipOrAdmin restricts edits and submissions to the encoder who
// owns the record; admins may act on anything.
func (s *RecordService) requireOwnershipOrAdmin(actor *models.User, record *models.FAASRecord) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if record.EncoderID != actor.ID {
		return appErrors.ErrForbidden
	}
	return nil
}

// finishMutation performs the bookkeeping every successful mutation shares:
// audit entry, subscriber broadcast, dashboard cache invalidation. None of
// these may fail the operation that already committed.
func (s *RecordService) finishMutation(ctx context.Context, actor *models.User, record *models.FAASRecord, action, description string) {
	userID := actor.ID
	recordID := record.ID
	entry := &models.AuditLog{
		UserID:      &userID,
		Action:      action,
		Resource:    recordResource,
		ResourceID:  &recordID,
		Description: description,
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Error("failed to write audit entry",
			zap.String("record_id", record.ID),
			zap.String("action", action),
			zap.Error(err),
		)
	}

	s.events.Broadcast(models.LifecycleEvent{
		Action:    action,
		Record:    record.Summary(),
		Timestamp: time.Now().UTC(),
	})

	if s.cache != nil {
		s.cache.InvalidateStats(ctx)
	}
}

func statusParams(record *models.FAASRecord) repository.UpdateStatusParams {
	return repository.UpdateStatusParams{
		ID:              record.ID,
		Status:          record.Status,
		ApproverID:      record.ApproverID,
		DecidedAt:       record.DecidedAt,
		RejectionReason: record.RejectionReason,
	}
}

func applyPayload(record *models.FAASRecord, payload dto.RecordPayload) {
	record.ArfNo = payload.ArfNo
	record.PIN = payload.PIN
	record.OctTctNo = payload.OctTctNo
	record.CLN = payload.CLN
	record.OwnerName = payload.OwnerName
	record.OwnerAddress = payload.OwnerAddress
	record.AdministratorName = payload.AdministratorName
	record.AdministratorAddress = payload.AdministratorAddress
	record.PropertyLocation = payload.PropertyLocation
	record.PropertyBarangay = payload.PropertyBarangay
	record.PropertyMunicipality = payload.PropertyMunicipality
	record.PropertyProvince = payload.PropertyProvince
	record.NorthBoundary = payload.NorthBoundary
	record.SouthBoundary = payload.SouthBoundary
	record.EastBoundary = payload.EastBoundary
	record.WestBoundary = payload.WestBoundary
	record.PreviousTDNo = payload.PreviousTDNo
	record.PreviousOwner = payload.PreviousOwner
	record.EffectivityYear = payload.EffectivityYear
	record.Taxability = payload.Taxability
	record.PreviousAVLand = payload.PreviousAVLand
	record.PreviousAVImprovements = payload.PreviousAVImprovements
	record.PreviousTotalAV = payload.PreviousTotalAV
	record.MemorandaCode = payload.MemorandaCode
	record.MemorandaParagraph = payload.MemorandaParagraph
	record.LandAppraisals = payload.LandAppraisals
	record.Improvements = payload.Improvements
	record.MarketValues = payload.MarketValues
	record.Assessments = payload.Assessments
}

func applyGeneration(record *models.FAASRecord, result *GenerationResult) {
	if result == nil {
		return
	}
	if result.ExcelGenerated {
		record.ExcelPath = &result.ExcelPath
	}
	if result.UnirrigGenerated {
		record.UnirrigExcelPath = &result.UnirrigExcelPath
	}
	if result.PDFGenerated {
		record.PDFPath = &result.PDFPath
	}
	if result.UnirrigPDFGenerated {
		record.UnirrigPDFPath = &result.UnirrigPDFPath
	}
}
