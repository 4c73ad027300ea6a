package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/flow"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/session"
)

// Task is one asynchronous conversion started over the API. The flow
// instance drives the three-step machine; the task id is what clients
// poll with.
type Task struct {
	ID        string
	ToolID    string
	Flow      *flow.Flow
	CreatedAt time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   bool
}

// Cancel aborts the running conversion, if any.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
}

// Finished reports whether the conversion goroutine has returned.
func (t *Task) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *Task) markDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.cancel = nil
}

// Recorder receives terminal conversion records, e.g. for history.
type Recorder interface {
	RecordFromFile(rec models.FileRecord, targetFormat string) error
}

// TaskManager tracks conversion tasks by id.
type TaskManager struct {
	mu       sync.RWMutex
	tasks    map[string]*Task
	state    *session.State
	recorder Recorder
}

// NewTaskManager creates an empty task registry backed by the session
// state for record lookups.
func NewTaskManager(state *session.State) *TaskManager {
	return &TaskManager{
		tasks: make(map[string]*Task),
		state: state,
	}
}

// Start registers a task and runs its conversion in the background.
func (tm *TaskManager) Start(f *flow.Flow, toolID string) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		ID:        uuid.New().String(),
		ToolID:    toolID,
		Flow:      f,
		CreatedAt: time.Now(),
		cancel:    cancel,
	}

	tm.mu.Lock()
	tm.tasks[t.ID] = t
	tm.mu.Unlock()

	go func() {
		defer t.markDone()
		f.StartConversion(ctx)
		tm.recordOutcome(t)
	}()

	return t
}

// SetRecorder attaches a sink for finished conversions.
func (tm *TaskManager) SetRecorder(r Recorder) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.recorder = r
}

func (tm *TaskManager) recordOutcome(t *Task) {
	tm.mu.RLock()
	recorder := tm.recorder
	tm.mu.RUnlock()
	if recorder == nil {
		return
	}

	rec, ok := tm.Record(t)
	if !ok || !rec.Status.Terminal() {
		return
	}
	if err := recorder.RecordFromFile(rec, t.Flow.SelectedFormat()); err != nil {
		fmt.Printf("[Convert %s] Warning: history record failed: %v\n", t.ID[:8], err)
	}
}

// Get returns a task by id.
func (tm *TaskManager) Get(id string) (*Task, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	t, ok := tm.tasks[id]
	return t, ok
}

// Record returns the session record behind a task, if the conversion has
// been admitted already.
func (tm *TaskManager) Record(t *Task) (models.FileRecord, bool) {
	recordID := t.Flow.RecordID()
	if recordID == "" {
		return models.FileRecord{}, false
	}
	return tm.state.File(recordID)
}

// CleanupOldTasks drops finished tasks older than maxAge.
func (tm *TaskManager) CleanupOldTasks(maxAge time.Duration) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, t := range tm.tasks {
		if t.Finished() && t.CreatedAt.Before(cutoff) {
			delete(tm.tasks, id)
		}
	}
}
