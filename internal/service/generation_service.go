package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lgu-assessor/faas-api/internal/dto"
	"github.com/lgu-assessor/faas-api/internal/models"
	"github.com/lgu-assessor/faas-api/internal/repository"
	"github.com/lgu-assessor/faas-api/pkg/artifact"
	appErrors "github.com/lgu-assessor/faas-api/pkg/errors"
	"github.com/lgu-assessor/faas-api/pkg/jobs"
	"github.com/lgu-assessor/faas-api/pkg/runner"
)

type generationRecordStore interface {
	GetByID(ctx context.Context, id string) (*models.FAASRecord, error)
	UpdateArtifacts(ctx context.Context, id string, update repository.ArtifactUpdate) error
}

type processRunner interface {
	Run(ctx context.Context, name string, args ...string) (runner.Result, error)
}

type artifactResolver interface {
	Resolve(req artifact.Request) (string, bool)
}

type artifactFiles interface {
	Delete(filename string) error
	Exists(filename string) bool
}

type generationMetrics interface {
	ObserveGeneration(stage string, success bool)
}

// GenerationConfig locates the external scripts and their output directory.
type GenerationConfig struct {
	PythonBin       string
	GeneratorScript string
	ConverterScript string
	OutputDir       string
}

// GenerationResult is the transient outcome of one pipeline run. Spreadsheet
// and preview stages succeed or fail independently; the zero value means
// nothing was produced.
type GenerationResult struct {
	ExcelGenerated      bool
	UnirrigGenerated    bool
	PDFGenerated        bool
	UnirrigPDFGenerated bool

	ExcelPath        string
	UnirrigExcelPath string
	PDFPath          string
	UnirrigPDFPath   string

	Message string
}

// Outcome projects the result onto the API response shape.
func (r *GenerationResult) Outcome() dto.GenerationOutcome {
	if r == nil {
		return dto.GenerationOutcome{Message: "generation not attempted"}
	}
	return dto.GenerationOutcome{
		ExcelGenerated:      r.ExcelGenerated,
		UnirrigGenerated:    r.UnirrigGenerated,
		PDFGenerated:        r.PDFGenerated,
		UnirrigPDFGenerated: r.UnirrigPDFGenerated,
		Message:             r.Message,
	}
}

// GenerationService chains the external spreadsheet generator and the
// spreadsheet-to-PDF converter for one record. Every stage failure becomes a
// result value; nothing escapes the pipeline boundary except not-found.
type GenerationService struct {
	records  generationRecordStore
	runner   processRunner
	resolver artifactResolver
	files    artifactFiles
	metrics  generationMetrics
	logger   *zap.Logger
	cfg      GenerationConfig

	// One pipeline run per record at a time. A submit and a queued
	// regenerate for the same record must not interleave artifact writes.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewGenerationService constructs the pipeline service.
func NewGenerationService(records generationRecordStore, run processRunner, resolver artifactResolver, files artifactFiles, metrics generationMetrics, logger *zap.Logger, cfg GenerationConfig) *GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationService{
		records:  records,
		runner:   run,
		resolver: resolver,
		files:    files,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *GenerationService) recordLock(recordID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[recordID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[recordID] = lock
	}
	return lock
}

// Generate runs the full pipeline for a record: render both spreadsheet
// variants, recover their paths from the process output, persist them, then
// convert each recovered spreadsheet to a PDF preview. The only error return
// is not-found; all generation failures are reported through the result.
func (s *GenerationService) Generate(ctx context.Context, recordID string) (*GenerationResult, error) {
	lock := s.recordLock(recordID)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}

	result := &GenerationResult{}

	procResult, err := s.runner.Run(ctx, s.cfg.PythonBin, s.cfg.GeneratorScript, "--record-id", record.ID, "--type", "both")
	if err != nil {
		result.Message = fmt.Sprintf("spreadsheet generation failed to run: %v", err)
		s.observe("excel", false)
		s.logger.Warn("generator invocation failed", zap.String("record_id", record.ID), zap.Error(err))
		return result, nil
	}

	tag := record.FileTag()
	excelPath, excelOK := s.resolver.Resolve(artifact.Request{
		Output:    procResult.Output,
		OutputDir: s.cfg.OutputDir,
		Slot:      artifact.Slot{Name: "faas", SubDir: "FAAS", Tag: tag, Ext: ".xlsx"},
	})
	unirrigPath, unirrigOK := s.resolver.Resolve(artifact.Request{
		Output:    procResult.Output,
		OutputDir: s.cfg.OutputDir,
		Slot:      artifact.Slot{Name: "unirrig", SubDir: "UNIRRIG", Tag: tag, Ext: ".xlsx"},
	})

	s.observe("excel", excelOK)
	s.observe("unirrig", unirrigOK)
	if !excelOK && !unirrigOK {
		result.Message = fmt.Sprintf("no spreadsheet produced (generator exit code %d)", procResult.ExitCode)
		s.logger.Warn("no artifacts resolved",
			zap.String("record_id", record.ID),
			zap.Int("exit_code", procResult.ExitCode),
		)
		return result, nil
	}

	s.cleanupSuperseded(record, excelPath, unirrigPath)

	update := repository.ArtifactUpdate{ClearPreviews: true}
	if excelOK {
		result.ExcelGenerated = true
		result.ExcelPath = excelPath
		update.ExcelPath = &excelPath
	}
	if unirrigOK {
		result.UnirrigGenerated = true
		result.UnirrigExcelPath = unirrigPath
		update.UnirrigExcelPath = &unirrigPath
	}
	if err := s.records.UpdateArtifacts(ctx, record.ID, update); err != nil {
		s.logger.Error("failed to persist artifact paths", zap.String("record_id", record.ID), zap.Error(err))
		result.Message = "spreadsheet generated but paths could not be persisted"
		return result, nil
	}

	var messages []string
	if excelOK {
		if pdfPath, ok := s.convert(ctx, excelPath); ok {
			result.PDFGenerated = true
			result.PDFPath = pdfPath
			if err := s.records.UpdateArtifacts(ctx, record.ID, repository.ArtifactUpdate{PDFPath: &pdfPath}); err != nil {
				s.logger.Error("failed to persist preview path", zap.String("record_id", record.ID), zap.Error(err))
			}
		} else {
			messages = append(messages, "FAAS preview conversion failed")
		}
	}
	if unirrigOK {
		if pdfPath, ok := s.convert(ctx, unirrigPath); ok {
			result.UnirrigPDFGenerated = true
			result.UnirrigPDFPath = pdfPath
			if err := s.records.UpdateArtifacts(ctx, record.ID, repository.ArtifactUpdate{UnirrigPDFPath: &pdfPath}); err != nil {
				s.logger.Error("failed to persist preview path", zap.String("record_id", record.ID), zap.Error(err))
			}
		} else {
			messages = append(messages, "UNIRRIG preview conversion failed")
		}
	}
	result.Message = strings.Join(messages, "; ")

	s.logger.Info("generation pipeline finished",
		zap.String("record_id", record.ID),
		zap.Bool("excel", result.ExcelGenerated),
		zap.Bool("unirrig", result.UnirrigGenerated),
		zap.Bool("pdf", result.PDFGenerated),
		zap.Bool("unirrig_pdf", result.UnirrigPDFGenerated),
	)
	return result, nil
}

// convert runs the spreadsheet-to-PDF converter for one file. Exit code zero
// with a parseable success line counts, and so does the destination existing
// on disk regardless of what the converter printed.
func (s *GenerationService) convert(ctx context.Context, excelPath string) (string, bool) {
	pdfPath := strings.TrimSuffix(excelPath, filepath.Ext(excelPath)) + ".pdf"

	procResult, err := s.runner.Run(ctx, s.cfg.PythonBin, s.cfg.ConverterScript, "--excel-path", excelPath, "--pdf-path", pdfPath)
	if err != nil {
		s.observe("pdf", false)
		s.logger.Warn("converter invocation failed", zap.String("excel_path", excelPath), zap.Error(err))
		return "", false
	}

	resolved, ok := s.resolver.Resolve(artifact.Request{
		Output: procResult.Output,
		Slot:   artifact.Slot{Ext: ".pdf", Expected: pdfPath},
	})
	if !ok && procResult.Success() && s.files.Exists(pdfPath) {
		resolved, ok = pdfPath, true
	}
	s.observe("pdf", ok)
	if !ok {
		s.logger.Warn("preview conversion produced no file",
			zap.String("excel_path", excelPath),
			zap.Int("exit_code", procResult.ExitCode),
		)
	}
	return resolved, ok
}

// cleanupSuperseded deletes previously generated files the new run replaces.
// A spreadsheet the new run failed to produce keeps its predecessor; stale
// previews always go because they rendered the old spreadsheet.
func (s *GenerationService) cleanupSuperseded(record *models.FAASRecord, newExcel, newUnirrig string) {
	stale := make([]string, 0, 4)
	if newExcel != "" && record.ExcelPath != nil && *record.ExcelPath != newExcel {
		stale = append(stale, *record.ExcelPath)
	}
	if newUnirrig != "" && record.UnirrigExcelPath != nil && *record.UnirrigExcelPath != newUnirrig {
		stale = append(stale, *record.UnirrigExcelPath)
	}
	if record.PDFPath != nil {
		stale = append(stale, *record.PDFPath)
	}
	if record.UnirrigPDFPath != nil {
		stale = append(stale, *record.UnirrigPDFPath)
	}
	for _, path := range stale {
		if err := s.files.Delete(path); err != nil {
			s.logger.Warn("failed to delete superseded artifact", zap.String("path", path), zap.Error(err))
		}
	}
}

// DeleteArtifactFiles removes the record's generated files from disk. Column
// clearing is the caller's responsibility (payload updates null the columns
// in the same statement that changes the payload).
func (s *GenerationService) DeleteArtifactFiles(record *models.FAASRecord) {
	for _, path := range record.ArtifactPaths() {
		if err := s.files.Delete(path); err != nil {
			s.logger.Warn("failed to delete artifact", zap.String("path", path), zap.Error(err))
		}
	}
}

// ClearGeneratedFiles is the standalone maintenance operation: it deletes the
// record's artifact files and nulls all four path columns.
func (s *GenerationService) ClearGeneratedFiles(ctx context.Context, recordID string) error {
	lock := s.recordLock(recordID)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}
	s.DeleteArtifactFiles(record)
	if err := s.records.UpdateArtifacts(ctx, record.ID, repository.ArtifactUpdate{Clear: true}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear artifact paths")
	}
	return nil
}

func (s *GenerationService) observe(stage string, success bool) {
	if s.metrics != nil {
		s.metrics.ObserveGeneration(stage, success)
	}
}

// Job types the generation queue understands.
const (
	JobTypeRegenerate     = "regenerate"
	JobTypeSweepArtifacts = "sweep_artifacts"
)

type artifactSweeper interface {
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// GenerationWorker drains the generation queue: regeneration requests and
// the periodic artifact retention sweep.
type GenerationWorker struct {
	pipeline  *GenerationService
	sweeper   artifactSweeper
	retention time.Duration
	logger    *zap.Logger
}

// NewGenerationWorker constructs the queue worker. A zero retention disables
// the sweep even when jobs of that type arrive.
func NewGenerationWorker(pipeline *GenerationService, sweeper artifactSweeper, retention time.Duration, logger *zap.Logger) *GenerationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationWorker{pipeline: pipeline, sweeper: sweeper, retention: retention, logger: logger}
}

// Handle processes one queued job. A failed pipeline run is not a job error:
// results are best-effort and visible on the record itself.
func (w *GenerationWorker) Handle(ctx context.Context, job jobs.Job) error {
	if job.Type == JobTypeSweepArtifacts {
		return w.sweep()
	}
	result, err := w.pipeline.Generate(ctx, job.ID)
	if err != nil {
		w.logger.Warn("regeneration skipped", zap.String("record_id", job.ID), zap.Error(err))
		return nil
	}
	if !result.ExcelGenerated && !result.UnirrigGenerated {
		w.logger.Warn("regeneration produced nothing",
			zap.String("record_id", job.ID),
			zap.String("message", result.Message),
		)
	}
	return nil
}

func (w *GenerationWorker) sweep() error {
	if w.sweeper == nil || w.retention <= 0 {
		return nil
	}
	deleted, err := w.sweeper.CleanupOlderThan(w.retention)
	if err != nil {
		return fmt.Errorf("sweep artifacts: %w", err)
	}
	if len(deleted) > 0 {
		w.logger.Info("swept stale artifacts",
			zap.Int("count", len(deleted)),
			zap.Duration("retention", w.retention),
		)
	}
	return nil
}
