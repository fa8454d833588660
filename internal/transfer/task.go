package transfer

import (
	"context"
	"net/url"
	"sync"
	"time"
)

// State is the lifecycle state of a task
type State string

const (
	StateSuspended State = "suspended"
	StateRunning   State = "running"
	StateCanceling State = "canceling"
	StateCompleted State = "completed"
)

// Task is one download owned by a session
type Task struct {
	id        string
	url       *url.URL
	session   *Session
	createdAt time.Time

	mu          sync.Mutex
	description string
	state       State
	err         error
	ctx         context.Context
	cancel      context.CancelFunc
}

// ID returns the task identifier
func (t *Task) ID() string {
	return t.id
}

// URL returns the remote source
func (t *Task) URL() *url.URL {
	return t.url
}

// Description returns the string tag attached to the task
func (t *Task) Description() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.description
}

// SetDescription attaches a string tag to the task
func (t *Task) SetDescription(description string) {
	t.mu.Lock()
	t.description = description
	t.mu.Unlock()
}

// State returns the current state
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the failure of a completed task, nil on success
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Resume starts a suspended task. Other states are left alone.
func (t *Task) Resume() {
	t.mu.Lock()
	if t.state != StateSuspended {
		t.mu.Unlock()
		return
	}
	t.state = StateRunning
	t.mu.Unlock()

	t.session.start(t)
}

// Cancel stops the task. A cancelled task never reaches the delegate.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.state == StateCanceling || t.state == StateCompleted {
		t.mu.Unlock()
		return
	}
	t.state = StateCanceling
	t.mu.Unlock()

	t.cancel()
	t.session.forget(t)
}

// complete moves a running task to completed; false when it was cancelled meanwhile
func (t *Task) complete(err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateRunning {
		return false
	}
	t.state = StateCompleted
	t.err = err
	return true
}
