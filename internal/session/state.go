// Package session holds the shared conversion session state: the ordered
// list of tracked files plus the session-wide flags that modulate
// admission (active tool, batch mode, user tier). All mutation goes
// through the methods here; nothing else writes the state directly.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
)

// State is the single shared, process-lifetime session state container.
type State struct {
	mu            sync.RWMutex
	files         []*models.FileRecord // insertion order = display order
	currentToolID string
	batchMode     bool
	userTier      models.UserTier
}

// NewState creates an empty session state for the free tier.
func NewState() *State {
	return &State{userTier: models.TierFree}
}

// SetCurrentTool records which tool's constraints govern admission.
// Existing records are kept until an explicit ClearFiles; switching tools
// must not silently delete the user's work.
func (s *State) SetCurrentTool(toolID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentToolID = toolID
}

// CurrentTool returns the active tool id, empty when none is active.
func (s *State) CurrentTool() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentToolID
}

// SetBatchMode toggles batch processing for the session.
func (s *State) SetBatchMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchMode = on
}

// BatchMode reports the batch toggle.
func (s *State) BatchMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batchMode
}

// SetUserTier sets the tier governing admission limits.
func (s *State) SetUserTier(tier models.UserTier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userTier = tier
}

// UserTier returns the session tier.
func (s *State) UserTier() models.UserTier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userTier
}

// Limits returns the admission limits for the session tier.
func (s *State) Limits() models.TierLimits {
	return models.LimitsFor(s.UserTier())
}

// AddFile admits a validated file, appending a new record with status
// pending and progress 0. The tier's file-count ceiling is enforced here;
// per-file size and format checks belong to the validation gateway.
func (s *State) AddFile(ref models.FileRef, toolID string) (*models.FileRecord, *models.FlowError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limits := models.LimitsFor(s.userTier)
	if len(s.files) >= limits.MaxFiles {
		return nil, models.NewFlowError(models.CodeInvalidFile,
			fmt.Sprintf("file limit reached (%d files max on the %s tier)", limits.MaxFiles, s.userTier),
			"Remove a file or upgrade your plan to add more.")
	}

	rec := &models.FileRecord{
		ID:      uuid.New().String(),
		Name:    ref.Name,
		Size:    ref.Size,
		ToolID:  toolID,
		Status:  models.FileStatusPending,
		AddedAt: time.Now(),
	}
	s.files = append(s.files, rec)
	return cloneRecord(rec), nil
}

// RemoveFile deletes a record. Removal while a conversion is in flight is
// rejected with FILE_BUSY rather than left to UI convention.
func (s *State) RemoveFile(id string) *models.FlowError {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.files {
		if rec.ID != id {
			continue
		}
		if rec.Status.Busy() {
			return models.NewFlowError(models.CodeFileBusy,
				fmt.Sprintf("file %s is %s and cannot be removed", rec.Name, rec.Status),
				"Wait for the conversion to finish before removing the file.")
		}
		s.files = append(s.files[:i], s.files[i+1:]...)
		return nil
	}

	return models.NewFlowError(models.CodeInvalidFile,
		fmt.Sprintf("no file with id %s", id), "")
}

// UpdateFileStatus transitions a single record. Progress is kept monotone
// within an attempt: lower values are ignored, except an explicit 0 which
// marks the start of a retry attempt.
func (s *State) UpdateFileStatus(id string, status models.FileStatus, progress int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.find(id)
	if rec == nil {
		return false
	}

	rec.Status = status
	switch {
	case progress == 0 && !status.Terminal():
		rec.Progress = 0
		rec.Result = nil
		rec.Error = ""
	case progress > rec.Progress:
		if progress > 100 {
			progress = 100
		}
		rec.Progress = progress
	}
	return true
}

// SetFileResult records a successful outcome. Progress is forced to its
// final value so completed records always read 100.
func (s *State) SetFileResult(id string, result *models.ConversionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.find(id)
	if rec == nil {
		return false
	}

	rec.Status = models.FileStatusCompleted
	rec.Progress = 100
	rec.Result = result
	rec.Error = ""
	return true
}

// SetFileError records a failed outcome. Progress stays frozen at its
// last reported value; Retry is responsible for resetting it.
func (s *State) SetFileError(id string, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.find(id)
	if rec == nil {
		return false
	}

	rec.Status = models.FileStatusError
	rec.Result = nil
	rec.Error = message
	return true
}

// ClearFiles empties the file list. Called when switching the active tool.
func (s *State) ClearFiles() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = nil
}

// Files returns a snapshot of all records in insertion order.
func (s *State) Files() []models.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.FileRecord, 0, len(s.files))
	for _, rec := range s.files {
		out = append(out, *cloneRecord(rec))
	}
	return out
}

// File returns a snapshot of one record.
func (s *State) File(id string) (models.FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := s.find(id)
	if rec == nil {
		return models.FileRecord{}, false
	}
	return *cloneRecord(rec), true
}

func (s *State) find(id string) *models.FileRecord {
	for _, rec := range s.files {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

func cloneRecord(rec *models.FileRecord) *models.FileRecord {
	out := *rec
	if rec.Result != nil {
		r := *rec.Result
		if rec.Result.Metadata != nil {
			r.Metadata = make(map[string]string, len(rec.Result.Metadata))
			for k, v := range rec.Result.Metadata {
				r.Metadata[k] = v
			}
		}
		out.Result = &r
	}
	return &out
}
