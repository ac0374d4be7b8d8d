package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgu-assessor/faas-api/internal/models"
	"github.com/lgu-assessor/faas-api/internal/repository"
	"github.com/lgu-assessor/faas-api/pkg/artifact"
	appErrors "github.com/lgu-assessor/faas-api/pkg/errors"
	"github.com/lgu-assessor/faas-api/pkg/jobs"
	"github.com/lgu-assessor/faas-api/pkg/runner"
)

type genStoreStub struct {
	record  *models.FAASRecord
	getErr  error
	updates []repository.ArtifactUpdate
	updErr  error
}

func (s *genStoreStub) GetByID(ctx context.Context, id string) (*models.FAASRecord, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.record == nil || s.record.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *s.record
	return &copied, nil
}

func (s *genStoreStub) UpdateArtifacts(ctx context.Context, id string, update repository.ArtifactUpdate) error {
	if s.updErr != nil {
		return s.updErr
	}
	s.updates = append(s.updates, update)
	return nil
}

type runnerStub struct {
	results []runner.Result
	errs    []error
	calls   [][]string
}

func (s *runnerStub) Run(ctx context.Context, name string, args ...string) (runner.Result, error) {
	call := append([]string{name}, args...)
	s.calls = append(s.calls, call)
	idx := len(s.calls) - 1
	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	var result runner.Result
	if idx < len(s.results) {
		result = s.results[idx]
	}
	return result, err
}

type filesStub struct {
	existing map[string]bool
	deleted  []string
}

func (s *filesStub) Delete(filename string) error {
	s.deleted = append(s.deleted, filename)
	return nil
}

func (s *filesStub) Exists(filename string) bool {
	return s.existing[filename]
}

func pendingRecord() *models.FAASRecord {
	return &models.FAASRecord{
		ID:        "rec-1",
		ArfNo:     "ARF-2024-001",
		OwnerName: "Juan Dela Cruz",
		Status:    models.RecordStatusPending,
		EncoderID: "user-enc",
	}
}

func newPipelineFixture(record *models.FAASRecord) (*GenerationService, *genStoreStub, *runnerStub, *filesStub) {
	store := &genStoreStub{record: record}
	run := &runnerStub{}
	files := &filesStub{existing: map[string]bool{}}
	svc := NewGenerationService(store, run, artifact.NewResolver(nil), files, nil, nil, GenerationConfig{
		PythonBin:       "python3",
		GeneratorScript: "./python/excel_generator.py",
		ConverterScript: "./python/pdf_converter.py",
		OutputDir:       "/out",
	})
	return svc, store, run, files
}

func generatorJSON(faasPath, unirrigPath string) string {
	return fmt.Sprintf(`{"success":true,"both_success":true,"faas":{"success":true,"file_path":"%s"},"unirrig":{"success":true,"file_path":"%s"}}`, faasPath, unirrigPath)
}

func TestGenerationHappyPath(t *testing.T) {
	svc, store, run, _ := newPipelineFixture(pendingRecord())
	run.results = []runner.Result{
		{Output: generatorJSON("/out/FAAS/FAAS_ARF-2024-001.xlsx", "/out/UNIRRIG/FAAS_ARF-2024-001.xlsx")},
		{Output: `{"success":true,"pdf_path":"/out/FAAS/FAAS_ARF-2024-001.pdf"}`},
		{Output: `{"success":true,"pdf_path":"/out/UNIRRIG/FAAS_ARF-2024-001.pdf"}`},
	}

	result, err := svc.Generate(context.Background(), "rec-1")
	require.NoError(t, err)

	assert.True(t, result.ExcelGenerated)
	assert.True(t, result.UnirrigGenerated)
	assert.True(t, result.PDFGenerated)
	assert.True(t, result.UnirrigPDFGenerated)
	assert.Equal(t, "/out/FAAS/FAAS_ARF-2024-001.xlsx", result.ExcelPath)
	assert.Equal(t, "/out/UNIRRIG/FAAS_ARF-2024-001.pdf", result.UnirrigPDFPath)
	assert.Empty(t, result.Message)

	// one spreadsheet write plus two preview writes
	require.Len(t, store.updates, 3)
	assert.True(t, store.updates[0].ClearPreviews)
	require.NotNil(t, store.updates[0].ExcelPath)
	require.NotNil(t, store.updates[1].PDFPath)
	require.NotNil(t, store.updates[2].UnirrigPDFPath)

	require.Len(t, run.calls, 3)
	assert.Equal(t, []string{"python3", "./python/excel_generator.py", "--record-id", "rec-1", "--type", "both"}, run.calls[0])
	assert.Equal(t, []string{"python3", "./python/pdf_converter.py", "--excel-path", "/out/FAAS/FAAS_ARF-2024-001.xlsx", "--pdf-path", "/out/FAAS/FAAS_ARF-2024-001.pdf"}, run.calls[1])
}

func TestGenerationConversionFailureIsPartial(t *testing.T) {
	svc, store, run, _ := newPipelineFixture(pendingRecord())
	run.results = []runner.Result{
		{Output: generatorJSON("/out/FAAS/FAAS_ARF-2024-001.xlsx", "/out/UNIRRIG/FAAS_ARF-2024-001.xlsx")},
		{Output: "Traceback (most recent call last): boom", ExitCode: 1},
		{Output: `{"success":true,"pdf_path":"/out/UNIRRIG/FAAS_ARF-2024-001.pdf"}`},
	}

	result, err := svc.Generate(context.Background(), "rec-1")
	require.NoError(t, err)

	assert.True(t, result.ExcelGenerated)
	assert.False(t, result.PDFGenerated)
	assert.True(t, result.UnirrigPDFGenerated)
	assert.Contains(t, result.Message, "FAAS preview conversion failed")

	// spreadsheet write plus the one successful preview write
	require.Len(t, store.updates, 2)
}

func TestGenerationSpawnFailureReportsMessage(t *testing.T) {
	svc, store, run, _ := newPipelineFixture(pendingRecord())
	run.errs = []error{assert.AnError}

	result, err := svc.Generate(context.Background(), "rec-1")
	require.NoError(t, err)

	assert.False(t, result.ExcelGenerated)
	assert.Contains(t, result.Message, "failed to run")
	assert.Empty(t, store.updates)
	assert.Len(t, run.calls, 1)
}

func TestGenerationNoArtifactsResolved(t *testing.T) {
	svc, store, run, _ := newPipelineFixture(pendingRecord())
	run.results = []runner.Result{
		{Output: "Generating spreadsheet...\nsomething went wrong", ExitCode: 2},
	}

	result, err := svc.Generate(context.Background(), "rec-1")
	require.NoError(t, err)

	assert.False(t, result.ExcelGenerated)
	assert.False(t, result.UnirrigGenerated)
	assert.Contains(t, result.Message, "exit code 2")
	assert.Empty(t, store.updates)
	assert.Len(t, run.calls, 1)
}

func TestGenerationUnknownRecord(t *testing.T) {
	svc, _, _, _ := newPipelineFixture(pendingRecord())

	_, err := svc.Generate(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestGenerationLabeledOutputFallback(t *testing.T) {
	svc, _, run, _ := newPipelineFixture(pendingRecord())
	run.results = []runner.Result{
		{Output: "Excel file generated: /out/FAAS/FAAS_ARF-2024-001.xlsx\nExcel file generated: /out/UNIRRIG/FAAS_ARF-2024-001.xlsx"},
		{Output: "nothing useful", ExitCode: 1},
		{Output: "nothing useful", ExitCode: 1},
	}

	result, err := svc.Generate(context.Background(), "rec-1")
	require.NoError(t, err)

	assert.True(t, result.ExcelGenerated)
	assert.True(t, result.UnirrigGenerated)
	assert.Equal(t, "/out/FAAS/FAAS_ARF-2024-001.xlsx", result.ExcelPath)
	assert.Equal(t, "/out/UNIRRIG/FAAS_ARF-2024-001.xlsx", result.UnirrigExcelPath)
	assert.False(t, result.PDFGenerated)
}

func TestGenerationConverterSilentSuccessUsesExpectedPath(t *testing.T) {
	record := pendingRecord()
	svc, _, run, files := newPipelineFixture(record)
	files.existing["/out/FAAS/FAAS_ARF-2024-001.pdf"] = true
	run.results = []runner.Result{
		{Output: fmt.Sprintf(`{"success":true,"faas":{"success":true,"file_path":"%s"},"unirrig":{"success":false}}`, "/out/FAAS/FAAS_ARF-2024-001.xlsx")},
		{Output: "Conversion finished."},
	}

	result, err := svc.Generate(context.Background(), "rec-1")
	require.NoError(t, err)

	assert.True(t, result.ExcelGenerated)
	assert.False(t, result.UnirrigGenerated)
	assert.True(t, result.PDFGenerated)
	assert.Equal(t, "/out/FAAS/FAAS_ARF-2024-001.pdf", result.PDFPath)
}

func TestGenerationCleansSupersededFiles(t *testing.T) {
	record := pendingRecord()
	record.ExcelPath = strPtr("/out/FAAS/old.xlsx")
	record.PDFPath = strPtr("/out/FAAS/old.pdf")
	svc, _, run, files := newPipelineFixture(record)
	run.results = []runner.Result{
		{Output: generatorJSON("/out/FAAS/new.xlsx", "/out/UNIRRIG/new.xlsx")},
		{Output: `{"success":true,"pdf_path":"/out/FAAS/new.pdf"}`},
		{Output: `{"success":true,"pdf_path":"/out/UNIRRIG/new.pdf"}`},
	}

	_, err := svc.Generate(context.Background(), "rec-1")
	require.NoError(t, err)

	assert.Contains(t, files.deleted, "/out/FAAS/old.xlsx")
	assert.Contains(t, files.deleted, "/out/FAAS/old.pdf")
}

func TestClearGeneratedFiles(t *testing.T) {
	record := pendingRecord()
	record.ExcelPath = strPtr("/out/FAAS/a.xlsx")
	record.UnirrigExcelPath = strPtr("/out/UNIRRIG/a.xlsx")
	svc, store, _, files := newPipelineFixture(record)

	err := svc.ClearGeneratedFiles(context.Background(), "rec-1")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"/out/FAAS/a.xlsx", "/out/UNIRRIG/a.xlsx"}, files.deleted)
	require.Len(t, store.updates, 1)
	assert.True(t, store.updates[0].Clear)
}

func TestGenerationWorkerSwallowsPipelineFailures(t *testing.T) {
	svc, _, run, _ := newPipelineFixture(pendingRecord())
	run.results = []runner.Result{{Output: "nope", ExitCode: 1}}
	worker := NewGenerationWorker(svc, nil, 0, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "rec-1", Type: JobTypeRegenerate})
	assert.NoError(t, err)
}

type sweeperStub struct {
	calls   []time.Duration
	deleted []string
	err     error
}

func (s *sweeperStub) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	s.calls = append(s.calls, ttl)
	return s.deleted, s.err
}

func TestGenerationWorkerSweepsStaleArtifacts(t *testing.T) {
	sweeper := &sweeperStub{deleted: []string{"FAAS/stale.pdf"}}
	worker := NewGenerationWorker(nil, sweeper, 72*time.Hour, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "retention", Type: JobTypeSweepArtifacts})
	require.NoError(t, err)
	require.Equal(t, []time.Duration{72 * time.Hour}, sweeper.calls)
}

func TestGenerationWorkerSweepDisabledByZeroRetention(t *testing.T) {
	sweeper := &sweeperStub{}
	worker := NewGenerationWorker(nil, sweeper, 0, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "retention", Type: JobTypeSweepArtifacts})
	require.NoError(t, err)
	assert.Empty(t, sweeper.calls)
}

type countingRunner struct {
	mu      sync.Mutex
	active  int
	overlap bool
}

func (s *countingRunner) Run(ctx context.Context, name string, args ...string) (runner.Result, error) {
	s.mu.Lock()
	s.active++
	if s.active > 1 {
		s.overlap = true
	}
	s.mu.Unlock()

	time.Sleep(time.Millisecond)

	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return runner.Result{Output: "nothing useful"}, nil
}

func TestGenerationSerializesPerRecord(t *testing.T) {
	store := &genStoreStub{record: pendingRecord()}
	run := &countingRunner{}
	files := &filesStub{existing: map[string]bool{}}
	svc := NewGenerationService(store, run, artifact.NewResolver(nil), files, nil, nil, GenerationConfig{
		PythonBin:       "python3",
		GeneratorScript: "./python/excel_generator.py",
		OutputDir:       "/out",
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Generate(context.Background(), "rec-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, run.overlap, "pipeline runs for the same record must not interleave")
}
