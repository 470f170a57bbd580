package grace

import (
	"errors"
	"sync"
	"time"
)

// ErrInvalidDelay is returned for negative delays.
var ErrInvalidDelay = errors.New("invalid delay")

// Task is a pending deferred task.
type Task struct {
	// Key identifies the task.
	Key string

	// StartTime is when the task was scheduled.
	StartTime time.Time

	// Delay is how long after StartTime the task fires.
	Delay time.Duration

	timer *time.Timer
}

// Remaining returns the time until the task fires.
func (t *Task) Remaining() time.Duration {
	remaining := t.Delay - time.Since(t.StartTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Scheduler runs at most one deferred task per key.
type Scheduler struct {
	mu sync.Mutex

	tasks map[string]*Task

	onExpiry func(key string)
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		tasks: make(map[string]*Task),
	}
}

// OnExpiry sets the callback run when a task fires. It runs on the timer
// goroutine, outside the scheduler lock.
func (s *Scheduler) OnExpiry(fn func(key string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpiry = fn
}

// Schedule arms or replaces the task for key.
func (s *Scheduler) Schedule(key string, delay time.Duration) error {
	if delay < 0 {
		return ErrInvalidDelay
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tasks[key]; ok {
		existing.timer.Stop()
	}

	task := &Task{
		Key:       key,
		StartTime: time.Now(),
		Delay:     delay,
	}
	task.timer = time.AfterFunc(delay, func() {
		s.fire(task)
	})
	s.tasks[key] = task
	return nil
}

// Cancel drops the task for key without firing it. It reports whether a
// task was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[key]
	if !ok {
		return false
	}
	task.timer.Stop()
	delete(s.tasks, key)
	return true
}

// CancelAll drops every pending task and returns how many there were.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.tasks)
	for key, task := range s.tasks {
		task.timer.Stop()
		delete(s.tasks, key)
	}
	return n
}

// Pending returns a copy of the task for key.
func (s *Scheduler) Pending(key string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[key]
	if !ok {
		return nil, false
	}
	return &Task{Key: task.Key, StartTime: task.StartTime, Delay: task.Delay}, true
}

// fire runs task unless it was cancelled or replaced in the meantime.
func (s *Scheduler) fire(task *Task) {
	s.mu.Lock()
	if s.tasks[task.Key] != task {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, task.Key)
	callback := s.onExpiry
	s.mu.Unlock()

	if callback != nil {
		callback(task.Key)
	}
}
