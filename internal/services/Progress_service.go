// internal/services/Progress_service.go
package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	apperrors "github.com/yusukekikuta0509/projectKAIKA/internal/errors"
)

const (
	ProgressRunning   = "running"
	ProgressCompleted = "completed"
	ProgressFailed    = "failed"
)

// ProgressUpdate is one message on a tracker subscription.
type ProgressUpdate struct {
	TaskID   string `json:"task_id"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	Status   string `json:"status"`
}

// ProgressTracker follows a multi-phase flow such as a purchase or a data upload.
type ProgressTracker struct {
	TaskID      string
	Kind        string
	SessionID   string
	Progress    int
	Message     string
	Status      string
	StartTime   time.Time
	UpdateTime  time.Time
	Subscribers map[chan ProgressUpdate]bool
	Done        chan struct{}
	mutex       sync.Mutex
	clock       clock.Clock
}

// ProgressService owns all trackers.
type ProgressService struct {
	trackers map[string]*ProgressTracker
	mutex    sync.RWMutex
	clock    clock.Clock
}

func NewProgressService(clk clock.Clock) *ProgressService {
	if clk == nil {
		clk = clock.New()
	}
	return &ProgressService{
		trackers: make(map[string]*ProgressTracker),
		clock:    clk,
	}
}

// CreateTracker registers a tracker. A task id already in use is a conflict.
func (s *ProgressService) CreateTracker(taskID, kind, sessionID string) (*ProgressTracker, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.trackers[taskID]; exists {
		return nil, apperrors.NewConflictError(fmt.Sprintf("task %s already exists", taskID), nil)
	}

	now := s.clock.Now()
	tracker := &ProgressTracker{
		TaskID:      taskID,
		Kind:        kind,
		SessionID:   sessionID,
		Message:     "queued",
		Status:      ProgressRunning,
		StartTime:   now,
		UpdateTime:  now,
		Subscribers: make(map[chan ProgressUpdate]bool),
		Done:        make(chan struct{}),
		clock:       s.clock,
	}

	s.trackers[taskID] = tracker
	return tracker, nil
}

func (s *ProgressService) GetTracker(taskID string) (*ProgressTracker, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tracker, exists := s.trackers[taskID]
	return tracker, exists
}

// UpdateProgress moves the tracker forward; progress never goes backwards.
func (t *ProgressTracker) UpdateProgress(progress int, message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.Status != ProgressRunning {
		return
	}
	if progress > t.Progress {
		t.Progress = progress
	}
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = t.clock.Now()
	t.broadcast()
}

func (t *ProgressTracker) Complete(message string) {
	t.finish(ProgressCompleted, message)
}

func (t *ProgressTracker) Fail(message string) {
	t.finish(ProgressFailed, message)
}

func (t *ProgressTracker) finish(status, message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.Status != ProgressRunning {
		return
	}
	if status == ProgressCompleted {
		t.Progress = 100
	}
	if message != "" {
		t.Message = message
	}
	t.Status = status
	t.UpdateTime = t.clock.Now()
	t.broadcast()
	close(t.Done)
}

// broadcast never blocks; a full subscriber misses the update. Caller holds the mutex.
func (t *ProgressTracker) broadcast() {
	update := t.snapshot()
	for subscriber := range t.Subscribers {
		select {
		case subscriber <- update:
		default:
		}
	}
}

func (t *ProgressTracker) snapshot() ProgressUpdate {
	return ProgressUpdate{
		TaskID:   t.TaskID,
		Progress: t.Progress,
		Message:  t.Message,
		Status:   t.Status,
	}
}

// Snapshot returns the current state.
func (t *ProgressTracker) Snapshot() ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.snapshot()
}

// Subscribe returns a channel primed with the current state.
func (t *ProgressTracker) Subscribe() chan ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	subscriber := make(chan ProgressUpdate, 10)
	t.Subscribers[subscriber] = true
	subscriber <- t.snapshot()
	return subscriber
}

func (t *ProgressTracker) Unsubscribe(subscriber chan ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, ok := t.Subscribers[subscriber]; ok {
		delete(t.Subscribers, subscriber)
		close(subscriber)
	}
}

// CleanupCompletedTasks drops finished trackers idle for longer than maxAge.
func (s *ProgressService) CleanupCompletedTasks(maxAge time.Duration) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.clock.Now()
	removed := 0
	for id, tracker := range s.trackers {
		tracker.mutex.Lock()
		finished := tracker.Status != ProgressRunning
		old := now.Sub(tracker.UpdateTime) > maxAge
		tracker.mutex.Unlock()

		if finished && old {
			delete(s.trackers, id)
			removed++
		}
	}
	return removed
}
