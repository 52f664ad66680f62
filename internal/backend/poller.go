// ABOUTME: Fixed-interval task-status poller with configurable bounds
// ABOUTME: Polls one backend task until completed, failed, or timed out

package backend

import (
	"context"
	"log/slog"
	"time"
)

// TerminalState is the final outcome of polling one task.
type TerminalState string

// Terminal states. TimedOut is reported when the attempt bound is exhausted;
// the original dashboard polled forever and left tasks silently stuck, which
// this rendition surfaces explicitly instead.
const (
	StateCompleted TerminalState = "completed"
	StateFailed    TerminalState = "failed"
	StateTimedOut  TerminalState = "timed_out"
)

// PollPolicy configures the polling schedule for a task.
type PollPolicy struct {
	// Interval between status checks. The first check happens one interval
	// after polling starts, not immediately.
	Interval time.Duration

	// MaxAttempts bounds the number of checks. Zero means unbounded.
	MaxAttempts int

	// BackoffFactor multiplies the delay after each check. 1.0 keeps the
	// flat fixed-interval schedule.
	BackoffFactor float64
}

// DefaultPollPolicy matches the observed dashboard behavior: a flat 2-second
// interval with no attempt bound.
var DefaultPollPolicy = PollPolicy{
	Interval:      2 * time.Second,
	MaxAttempts:   0,
	BackoffFactor: 1.0,
}

// Outcome is the terminal result of polling one task.
type Outcome struct {
	State    TerminalState
	Count    int
	MediaURL string
	IsImage  bool
	// Detail carries the backend's failure message, when supplied.
	Detail string
}

// TaskFetcher is the single backend operation the poller needs.
type TaskFetcher interface {
	GetTask(ctx context.Context, taskID string) (*TaskStatus, error)
}

// Poller drives task-status polling for submitted tasks. Polling loops for
// different tasks are fully independent.
type Poller struct {
	fetcher TaskFetcher
	policy  PollPolicy
	logger  *slog.Logger

	// OnTick, when set, is invoked after each non-terminal check. Used by
	// the UI layer to report progress transitions.
	OnTick func(taskID string, attempt int, status *TaskStatus)
}

// NewPoller creates a poller using the given policy. Zero policy fields fall
// back to the defaults.
func NewPoller(fetcher TaskFetcher, policy PollPolicy) *Poller {
	if policy.Interval <= 0 {
		policy.Interval = DefaultPollPolicy.Interval
	}
	if policy.BackoffFactor <= 0 {
		policy.BackoffFactor = 1.0
	}
	return &Poller{
		fetcher: fetcher,
		policy:  policy,
		logger:  slog.Default().With("component", "poller"),
	}
}

// Poll checks the task on the configured schedule until it reaches a terminal
// state. Returns the outcome, or an error when a check fails outright
// (network or malformed response): in that case polling stops and the task is
// left in whatever state it was in. Checks for a single task are strictly
// sequential; the next delay starts only after the previous response lands.
func (p *Poller) Poll(ctx context.Context, taskID string) (*Outcome, error) {
	delay := p.policy.Interval
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		status, err := p.fetcher.GetTask(ctx, taskID)
		if err != nil {
			p.logger.Warn("poll check failed, stopping", "task_id", taskID, "attempt", attempt, "error", err)
			return nil, err
		}

		switch status.Status {
		case TaskCompleted:
			p.logger.Info("task completed", "task_id", taskID, "count", status.Count, "attempts", attempt)
			return &Outcome{
				State:    StateCompleted,
				Count:    status.Count,
				MediaURL: status.MediaURL,
				IsImage:  status.IsImage,
			}, nil
		case TaskFailed:
			p.logger.Info("task failed", "task_id", taskID, "detail", status.Error, "attempts", attempt)
			return &Outcome{
				State:  StateFailed,
				Detail: status.Error,
			}, nil
		default:
			// Any other status keeps polling.
			if p.OnTick != nil {
				p.OnTick(taskID, attempt, status)
			}
		}

		if p.policy.MaxAttempts > 0 && attempt >= p.policy.MaxAttempts {
			p.logger.Warn("task polling exhausted", "task_id", taskID, "attempts", attempt)
			return &Outcome{State: StateTimedOut}, nil
		}

		delay = time.Duration(float64(delay) * p.policy.BackoffFactor)
		timer.Reset(delay)
	}
}
