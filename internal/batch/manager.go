// Package batch runs one conversion per file under a single tool
// invocation with independent per-file outcomes: failure of one file
// never aborts the others.
package batch

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/convert"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/session"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/storage"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/validate"
)

// Batch admission limits, independent of the per-file tier ceiling.
const (
	MaxFilesPerBatch  = 50
	MaxTotalBatchSize = 500 * 1024 * 1024
)

// Concurrent conversions per batch.
const defaultConcurrency = 3

// Item is one file submitted to a batch.
type Item struct {
	Ref  models.FileRef
	Path string // stored input content
}

// Manager owns batch jobs and drives their processing.
type Manager struct {
	mu          sync.RWMutex
	jobs        map[string]*jobState
	state       *session.State
	store       storage.Store
	dispatcher  *convert.Dispatcher
	zipDir      string
	concurrency int
}

type jobState struct {
	job       *models.BatchJob
	tool      *models.Tool
	recordIDs []string
	cancel    context.CancelFunc
}

// NewManager creates a batch manager writing zip bundles under zipDir.
func NewManager(state *session.State, store storage.Store, dispatcher *convert.Dispatcher, zipDir string) *Manager {
	return &Manager{
		jobs:        make(map[string]*jobState),
		state:       state,
		store:       store,
		dispatcher:  dispatcher,
		zipDir:      zipDir,
		concurrency: defaultConcurrency,
	}
}

// SetConcurrency overrides the per-batch worker limit. Used by tests.
func (m *Manager) SetConcurrency(n int) {
	if n > 0 {
		m.concurrency = n
	}
}

// Start validates the batch, admits every file into the session state and
// begins async processing. Per-file format/size validation is the
// caller's responsibility via the validation gateway; Start enforces the
// batch-level ceilings. Processing runs on its own background context:
// the caller's request context ends with the accepted reply and must not
// cancel the conversions.
func (m *Manager) Start(tool *models.Tool, targetFormat string, opts convert.Options, items []Item) (*models.BatchJob, error) {
	if !tool.SupportsBatch {
		return nil, fmt.Errorf("tool %s does not support batch processing", tool.ID)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("batch needs at least one file")
	}
	if len(items) > MaxFilesPerBatch {
		return nil, fmt.Errorf("maximum %d files allowed per batch", MaxFilesPerBatch)
	}
	if !tool.AcceptsFormat(targetFormat) {
		return nil, fmt.Errorf("tool %s does not offer format %q", tool.ID, targetFormat)
	}

	var totalSize int64
	for _, it := range items {
		totalSize += it.Ref.Size
	}
	if totalSize > MaxTotalBatchSize {
		return nil, fmt.Errorf("total batch size %s exceeds limit %s",
			validate.FormatMB(totalSize), validate.FormatMB(MaxTotalBatchSize))
	}

	recordIDs := make([]string, 0, len(items))
	for _, it := range items {
		rec, ferr := m.state.AddFile(it.Ref, tool.ID)
		if ferr != nil {
			// Admission is all-or-nothing: roll back the records
			// already added before rejecting the batch.
			for _, id := range recordIDs {
				m.state.RemoveFile(id)
			}
			return nil, ferr
		}
		recordIDs = append(recordIDs, rec.ID)
	}

	job := &models.BatchJob{
		ID:           uuid.New().String(),
		ToolID:       tool.ID,
		TargetFormat: targetFormat,
		Status:       models.BatchStatusQueued,
		TotalFiles:   len(items),
		FileIDs:      recordIDs,
		CreatedAt:    time.Now(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := &jobState{job: job, tool: tool, recordIDs: recordIDs, cancel: cancel}

	m.mu.Lock()
	m.jobs[job.ID] = st
	m.mu.Unlock()

	go m.process(ctx, st, opts, items)

	return m.snapshot(st), nil
}

// process runs the batch to completion.
func (m *Manager) process(ctx context.Context, st *jobState, opts convert.Options, items []Item) {
	job := st.job
	fmt.Printf("[Batch %s] Starting: %d files via %s\n", job.ID[:8], len(items), job.ToolID)

	m.setStatus(st, models.BatchStatusProcessing)

	exec := m.dispatcher.ForTool(st.tool)
	sem := make(chan struct{}, m.concurrency)
	var wg sync.WaitGroup

	for i := range items {
		wg.Add(1)
		go func(item Item, recordID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			m.convertOne(ctx, exec, st, item, recordID, opts)
		}(items[i], st.recordIDs[i])
	}

	wg.Wait()

	completed, failed := m.tally(st)
	if completed > 0 {
		if err := m.writeZip(st); err != nil {
			fmt.Printf("[Batch %s] Warning: zip bundling failed: %v\n", job.ID[:8], err)
		}
	}

	final := models.BatchStatusComplete
	if failed == len(st.recordIDs) {
		final = models.BatchStatusError
	}

	m.mu.Lock()
	job.Status = final
	now := time.Now()
	job.CompletedAt = &now
	m.mu.Unlock()

	st.cancel()

	fmt.Printf("[Batch %s] Done: %d completed, %d failed\n", job.ID[:8], completed, failed)
}

// convertOne runs a single file through the executor. Each file's outcome
// is written to its own session record; errors stay local to the file.
func (m *Manager) convertOne(ctx context.Context, exec convert.Executor, st *jobState, item Item, recordID string, opts convert.Options) {
	initial := models.FileStatusProcessing
	if !st.tool.Local {
		initial = models.FileStatusUploading
	}
	m.state.UpdateFileStatus(recordID, initial, 0)

	in := convert.Input{
		ToolID:   st.tool.ID,
		Name:     item.Ref.Name,
		Path:     item.Path,
		Size:     item.Ref.Size,
		MIMEType: item.Ref.MIMEType,
		Endpoint: st.tool.Endpoint,
	}

	result, err := exec.Execute(ctx, in, st.job.TargetFormat, opts, func(percent int) {
		m.state.UpdateFileStatus(recordID, models.FileStatusProcessing, percent)
	})
	if err != nil {
		ce := convert.Normalize(err)
		m.state.SetFileError(recordID, ce.Message)
		fmt.Printf("[Batch %s] File %s failed: %s\n", st.job.ID[:8], item.Ref.Name, ce.Message)
		return
	}

	m.state.SetFileResult(recordID, result)
}

// writeZip bundles successful outputs into one archive. Outputs stored
// locally go in as files; remote result URLs become .url stubs.
func (m *Manager) writeZip(st *jobState) error {
	if err := os.MkdirAll(m.zipDir, 0755); err != nil {
		return fmt.Errorf("creating zip directory: %w", err)
	}

	zipPath := filepath.Join(m.zipDir, st.job.ID+".zip")
	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	for _, id := range st.recordIDs {
		rec, ok := m.state.File(id)
		if !ok || rec.Status != models.FileStatusCompleted || rec.Result == nil {
			continue
		}
		if err := m.addZipEntry(zw, rec); err != nil {
			return err
		}
	}

	m.mu.Lock()
	st.job.ZipPath = zipPath
	m.mu.Unlock()
	return nil
}

func (m *Manager) addZipEntry(zw *zip.Writer, rec models.FileRecord) error {
	if info, err := m.store.Get(rec.Result.OutputRef); err == nil {
		w, err := zw.Create(info.Name)
		if err != nil {
			return fmt.Errorf("creating zip entry: %w", err)
		}
		rc, err := m.store.Open(rec.Result.OutputRef)
		if err != nil {
			return fmt.Errorf("opening output: %w", err)
		}
		defer rc.Close()
		if _, err := io.Copy(w, rc); err != nil {
			return fmt.Errorf("writing zip entry: %w", err)
		}
		return nil
	}

	// Remote output: record the download location.
	w, err := zw.Create(rec.Name + ".url")
	if err != nil {
		return fmt.Errorf("creating zip stub: %w", err)
	}
	_, err = fmt.Fprintln(w, rec.Result.OutputRef)
	return err
}

// GetJob returns a snapshot with aggregates recomputed from the session
// records, so pollers see per-file progress as it happens.
func (m *Manager) GetJob(id string) (*models.BatchJob, bool) {
	m.mu.RLock()
	st, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return m.snapshot(st), true
}

// ZipPath returns the bundle location for a finished batch.
func (m *Manager) ZipPath(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.jobs[id]
	if !ok || st.job.ZipPath == "" {
		return "", false
	}
	return st.job.ZipPath, true
}

func (m *Manager) setStatus(st *jobState, status models.BatchStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st.job.Status = status
}

func (m *Manager) tally(st *jobState) (completed, failed int) {
	for _, id := range st.recordIDs {
		rec, ok := m.state.File(id)
		if !ok {
			continue
		}
		switch rec.Status {
		case models.FileStatusCompleted:
			completed++
		case models.FileStatusError:
			failed++
		}
	}
	return completed, failed
}

func (m *Manager) snapshot(st *jobState) *models.BatchJob {
	completed, failed := m.tally(st)

	var progressSum int
	for _, id := range st.recordIDs {
		if rec, ok := m.state.File(id); ok {
			progressSum += rec.Progress
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := *st.job
	out.Completed = completed
	out.Failed = failed
	if len(st.recordIDs) > 0 {
		out.ProgressPercentage = float64(progressSum) / float64(len(st.recordIDs))
	}
	out.FileIDs = append([]string(nil), st.job.FileIDs...)
	return &out
}

// CleanupOldJobs drops finished jobs older than maxAge and removes their
// zip bundles.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, st := range m.jobs {
		job := st.job
		if job.CompletedAt == nil || job.CompletedAt.After(cutoff) {
			continue
		}
		if job.ZipPath != "" {
			os.Remove(job.ZipPath)
		}
		delete(m.jobs, id)
		fmt.Printf("[Batch %s] Cleaned up aged job\n", id[:8])
	}
}
