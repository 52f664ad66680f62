// ABOUTME: In-memory upload task list with optimistic UI state and polling wiring
// ABOUTME: Tracks each submission from Uploading through its terminal status

package uploads

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/thirdeye/visioncount/internal/backend"
)

// Status of an in-memory upload task.
type Status string

// Task statuses. TimedOut is reached only under a bounded poll policy.
const (
	StatusUploading  Status = "Uploading"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
	StatusTimedOut   Status = "TimedOut"
)

// terminal reports whether a status permits no further transitions.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimedOut
}

// Task is one tracked upload. TaskID is generated locally for UI correlation;
// BackendID is the backend's task identifier. Progress is UI-only and not
// authoritative.
type Task struct {
	TaskID    string
	BackendID string
	FileName  string
	Status    Status
	Progress  int

	// Set only on Completed.
	ResultCount *int
	MediaURL    string
	IsImage     bool

	// Set only on Failed, when the backend supplied detail.
	Error string
}

// Submitter issues the upload request. Implemented by backend.Client.
type Submitter interface {
	SubmitUpload(ctx context.Context, req backend.UploadRequest) (string, error)
}

// StatusPoller drives task polling to a terminal outcome. Implemented by
// backend.Poller.
type StatusPoller interface {
	Poll(ctx context.Context, taskID string) (*backend.Outcome, error)
}

// Manager owns the in-memory upload list. Tasks are prepended optimistically
// on submission, mutated in place as the backend reports progress, and
// removed only by explicit request. Polling loops for different tasks run
// independently.
type Manager struct {
	submitter Submitter
	poller    StatusPoller
	logger    *slog.Logger

	mu    sync.Mutex
	tasks []*Task
	wg    sync.WaitGroup

	// OnTerminal, when set, receives a snapshot of each task as it reaches
	// a terminal status. The completed-task snapshot is what materializes
	// an analytics record.
	OnTerminal func(task Task)
}

// NewManager creates an upload manager.
func NewManager(submitter Submitter, poller StatusPoller) *Manager {
	return &Manager{
		submitter: submitter,
		poller:    poller,
		logger:    slog.Default().With("component", "uploads"),
	}
}

// Submit registers and submits one file. The task appears at the head of the
// list before the network call resolves. On submission failure the task is
// marked Failed synchronously with no retry; on success polling starts in the
// background. Returns a snapshot of the task as of this call's return.
func (m *Manager) Submit(ctx context.Context, fileName string, content io.Reader, mode backend.Mode, identity string) Task {
	task := &Task{
		TaskID:   uuid.New().String(),
		FileName: fileName,
		Status:   StatusUploading,
	}

	m.mu.Lock()
	m.tasks = append([]*Task{task}, m.tasks...)
	m.mu.Unlock()

	backendID, err := m.submitter.SubmitUpload(ctx, backend.UploadRequest{
		FileName: fileName,
		Content:  content,
		Mode:     mode,
		UserID:   identity,
	})
	if err != nil {
		m.logger.Warn("submission failed", "file", fileName, "error", err)
		m.apply(task.TaskID, func(t *Task) {
			t.Status = StatusFailed
			t.Progress = 100
			t.Error = err.Error()
		})
		return m.snapshot(task.TaskID)
	}

	m.apply(task.TaskID, func(t *Task) {
		t.BackendID = backendID
		t.Status = StatusProcessing
		t.Progress = 50
	})

	m.wg.Add(1)
	go m.pollTask(ctx, task.TaskID, backendID)

	return m.snapshot(task.TaskID)
}

// pollTask drives one task to its terminal status.
func (m *Manager) pollTask(ctx context.Context, taskID, backendID string) {
	defer m.wg.Done()

	outcome, err := m.poller.Poll(ctx, backendID)
	if err != nil {
		// Polling stops on the first failed check and the task keeps its
		// prior status; a perpetual Processing entry is the surfaced
		// symptom, as it was in the original dashboard.
		m.logger.Warn("polling stopped", "task_id", taskID, "error", err)
		return
	}

	m.applyOutcome(taskID, outcome)
}

// applyOutcome records a terminal poll outcome. A task already in a terminal
// status ignores further outcomes: stale in-flight responses cannot
// resurrect or flip a finished task.
func (m *Manager) applyOutcome(taskID string, outcome *backend.Outcome) {
	var fired *Task

	m.mu.Lock()
	for _, t := range m.tasks {
		if t.TaskID != taskID {
			continue
		}
		if t.Status.terminal() {
			m.logger.Debug("ignoring stale outcome", "task_id", taskID, "status", t.Status)
			break
		}

		switch outcome.State {
		case backend.StateCompleted:
			count := outcome.Count
			t.Status = StatusCompleted
			t.Progress = 100
			t.ResultCount = &count
			t.MediaURL = outcome.MediaURL
			t.IsImage = outcome.IsImage
		case backend.StateFailed:
			t.Status = StatusFailed
			t.Progress = 100
			t.Error = outcome.Detail
		case backend.StateTimedOut:
			t.Status = StatusTimedOut
			t.Progress = 100
		}

		copied := *t
		fired = &copied
		break
	}
	m.mu.Unlock()

	if fired != nil && m.OnTerminal != nil {
		m.OnTerminal(*fired)
	}
}

// apply mutates a task in place and fires OnTerminal when the mutation lands
// on a terminal status.
func (m *Manager) apply(taskID string, mutate func(*Task)) {
	var fired *Task

	m.mu.Lock()
	for _, t := range m.tasks {
		if t.TaskID == taskID {
			wasTerminal := t.Status.terminal()
			mutate(t)
			if !wasTerminal && t.Status.terminal() {
				copied := *t
				fired = &copied
			}
			break
		}
	}
	m.mu.Unlock()

	if fired != nil && m.OnTerminal != nil {
		m.OnTerminal(*fired)
	}
}

// snapshot returns a copy of the task, or a zero Task when unknown.
func (m *Manager) snapshot(taskID string) Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.TaskID == taskID {
			return *t
		}
	}
	return Task{}
}

// Tasks returns a snapshot of the list, newest submission first.
func (m *Manager) Tasks() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Task, len(m.tasks))
	for i, t := range m.tasks {
		out[i] = *t
	}
	return out
}

// Remove deletes a task from the list. Tasks are never removed
// automatically; this is the explicit user action.
func (m *Manager) Remove(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, t := range m.tasks {
		if t.TaskID == taskID {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// Wait blocks until all background polling loops have finished. Used by
// non-interactive commands that submit and wait for the result.
func (m *Manager) Wait() {
	m.wg.Wait()
}
