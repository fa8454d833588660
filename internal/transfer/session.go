// Package transfer implements a background-capable download session: tasks
// keep running independently of their creator, survive restarts through a
// journal, and report completions on a single serial callback queue.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrSessionInvalidated is returned when creating tasks on an invalidated session
var ErrSessionInvalidated = errors.New("session invalidated")

const eventQueueSize = 256

// Delegate receives session events, one at a time, on the session's callback queue
type Delegate interface {
	// DidFinishDownloading is called with the temporary file of a finished task.
	// The task is still listed by Tasks during the call. The file is removed
	// after the call returns unless the delegate moved it.
	DidFinishDownloading(session *Session, task *Task, location string)
	// DidFinishEvents is called when the queue drains with no active tasks left
	DidFinishEvents(session *Session)
}

// Entry is the journalled form of an issued task
type Entry struct {
	ID          string
	Identifier  string
	URL         string
	Description string
	CreatedAt   time.Time
}

// Journal persists issued tasks so a new session with the same identifier resumes them
type Journal interface {
	Save(entry Entry) error
	Delete(id string) error
	List(identifier string) ([]Entry, error)
}

// Config configures a session
type Config struct {
	Identifier           string
	TempDir              string
	MaxConcurrent        int
	Timeout              time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration
	Client               *http.Client
	Journal              Journal
}

// Session owns a set of download tasks
type Session struct {
	cfg      Config
	delegate Delegate
	logger   *logrus.Logger
	client   *http.Client
	tempDir  string

	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	events chan func()

	mu          sync.Mutex
	tasks       map[string]*Task
	queued      int
	invalidated bool
}

// NewSession creates a session bound to cfg.Identifier and resumes any journalled tasks
func NewSession(cfg Config, delegate Delegate, logger *logrus.Logger) (*Session, error) {
	if cfg.Identifier == "" {
		return nil, fmt.Errorf("session identifier is required")
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 500 * time.Millisecond
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	tempDir := filepath.Join(cfg.TempDir, cfg.Identifier)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session temp dir: %w", err)
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:      cfg,
		delegate: delegate,
		logger:   logger,
		client:   client,
		tempDir:  tempDir,
		ctx:      ctx,
		cancel:   cancel,
		sem:      make(chan struct{}, cfg.MaxConcurrent),
		events:   make(chan func(), eventQueueSize),
		tasks:    make(map[string]*Task),
	}
	go s.deliver()

	if err := s.resumeJournal(); err != nil {
		logger.WithError(err).WithField("session", cfg.Identifier).Warn("Failed to resume journalled transfers")
	}

	return s, nil
}

// Identifier returns the session identity
func (s *Session) Identifier() string {
	return s.cfg.Identifier
}

// Tasks returns a snapshot of the tasks that are not cancelled and whose
// completion has not been delivered yet
func (s *Session) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	return tasks
}

// DownloadTask creates a suspended download task for u
func (s *Session) DownloadTask(u *url.URL) (*Task, error) {
	return s.newTask(uuid.NewString(), u, time.Now())
}

func (s *Session) newTask(id string, u *url.URL, createdAt time.Time) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.invalidated {
		return nil, ErrSessionInvalidated
	}

	ctx, cancel := context.WithCancel(s.ctx)
	task := &Task{
		id:        id,
		url:       u,
		session:   s,
		createdAt: createdAt,
		state:     StateSuspended,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.tasks[task.id] = task
	return task, nil
}

// Invalidate cancels every task and stops the callback queue
func (s *Session) Invalidate() {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return
	}
	s.invalidated = true
	s.mu.Unlock()

	for _, task := range s.Tasks() {
		task.Cancel()
	}
	s.cancel()
}

func (s *Session) resumeJournal() error {
	if s.cfg.Journal == nil {
		return nil
	}
	entries, err := s.cfg.Journal.List(s.cfg.Identifier)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		u, err := url.Parse(entry.URL)
		if err != nil {
			_ = s.cfg.Journal.Delete(entry.ID)
			continue
		}
		task, err := s.newTask(entry.ID, u, entry.CreatedAt)
		if err != nil {
			return err
		}
		task.SetDescription(entry.Description)
		s.logger.WithFields(logrus.Fields{
			"session": s.cfg.Identifier,
			"task_id": entry.ID,
			"url":     entry.URL,
		}).Info("Resuming journalled transfer")
		task.Resume()
	}
	return nil
}

// start journals the task and runs it in the background
func (s *Session) start(task *Task) {
	if s.cfg.Journal != nil {
		err := s.cfg.Journal.Save(Entry{
			ID:          task.id,
			Identifier:  s.cfg.Identifier,
			URL:         task.url.String(),
			Description: task.Description(),
			CreatedAt:   task.createdAt,
		})
		if err != nil {
			s.logger.WithError(err).WithField("task_id", task.id).Warn("Failed to journal transfer")
		}
	}
	go s.run(task)
}

// forget removes the task from the active set and the journal
func (s *Session) forget(task *Task) {
	s.mu.Lock()
	delete(s.tasks, task.id)
	s.mu.Unlock()

	if s.cfg.Journal != nil {
		if err := s.cfg.Journal.Delete(task.id); err != nil {
			s.logger.WithError(err).WithField("task_id", task.id).Warn("Failed to remove journalled transfer")
		}
	}
}

func (s *Session) run(task *Task) {
	select {
	case s.sem <- struct{}{}:
	case <-task.ctx.Done():
		return
	}
	defer func() { <-s.sem }()

	location, err := s.fetch(task)

	if !task.complete(err) {
		// Cancelled while in flight
		if location != "" {
			_ = os.Remove(location)
		}
		return
	}

	if err != nil {
		s.forget(task)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"session": s.cfg.Identifier,
			"task_id": task.id,
			"url":     task.url.String(),
		}).Error("Transfer failed")
		s.enqueue(func() {})
		return
	}

	// The task stays active until its callback returns so the delegate
	// never observes an idle session while a completion is pending
	s.enqueue(func() {
		s.delegate.DidFinishDownloading(s, task, location)
		s.forget(task)
		if err := os.Remove(location); err != nil && !os.IsNotExist(err) {
			s.logger.WithError(err).WithField("location", location).Warn("Failed to remove temporary file")
		}
	})
}

// fetch downloads the task URL into a temporary file, retrying transient failures
func (s *Session) fetch(task *Task) (string, error) {
	var location string

	operation := func() error {
		req, err := http.NewRequestWithContext(task.ctx, http.MethodGet, task.url.String(), nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", "mediacache/1.0")

		resp, err := s.client.Do(req)
		if err != nil {
			if task.ctx.Err() != nil {
				return backoff.Permanent(task.ctx.Err())
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("transient status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}

		file, err := os.CreateTemp(s.tempDir, "download-*.tmp")
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create temporary file: %w", err))
		}
		if _, err := io.Copy(file, resp.Body); err != nil {
			file.Close()
			os.Remove(file.Name())
			if task.ctx.Err() != nil {
				return backoff.Permanent(task.ctx.Err())
			}
			return fmt.Errorf("failed to read body: %w", err)
		}
		if err := file.Close(); err != nil {
			os.Remove(file.Name())
			return backoff.Permanent(fmt.Errorf("failed to close temporary file: %w", err))
		}

		location = file.Name()
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryInitialInterval
	retrying := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.cfg.MaxRetries)), task.ctx)

	notify := func(err error, wait time.Duration) {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"task_id": task.id,
			"wait":    wait,
		}).Debug("Retrying transfer")
	}

	if err := backoff.RetryNotify(operation, retrying, notify); err != nil {
		return "", err
	}
	return location, nil
}

func (s *Session) enqueue(event func()) {
	s.mu.Lock()
	s.queued++
	s.mu.Unlock()

	select {
	case s.events <- event:
	case <-s.ctx.Done():
	}
}

// deliver runs queued events one at a time
func (s *Session) deliver() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event := <-s.events:
			event()

			s.mu.Lock()
			s.queued--
			drained := s.queued == 0 && len(s.tasks) == 0
			s.mu.Unlock()

			if drained {
				s.delegate.DidFinishEvents(s)
			}
		}
	}
}
