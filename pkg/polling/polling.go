// Package polling runs the catalog refresh on a schedule and on demand,
// one refresh at a time, and keeps the status of recent refresh tasks.
package polling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultInterval is how often the catalogs are refreshed when no interval is configured.
const DefaultInterval = 7 * 24 * time.Hour

// maxTasks bounds how many finished tasks are remembered.
const maxTasks = 50

var (
	ErrAlreadyRunning = errors.New("a refresh task is already running")
	ErrStopped        = errors.New("scheduler is stopped")
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Job is the refresh work. A returned error marks the task failed.
type Job func(ctx context.Context) error

type TaskState string

const (
	StateQueued    TaskState = "queued"
	StateRunning   TaskState = "running"
	StateCompleted TaskState = "completed"
	StateFailed    TaskState = "failed"
)

// Task is one refresh run.
type Task struct {
	ID         string     `json:"task_id"`
	Source     string     `json:"source"` // "scheduled", "startup" or "manual"
	State      TaskState  `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Status summarizes the scheduler for the status endpoint.
type Status struct {
	Started  bool          `json:"started"`
	Running  bool          `json:"running"`
	Interval time.Duration `json:"interval"`
	NextRun  *time.Time    `json:"next_run,omitempty"`
	LastTask *Task         `json:"last_task,omitempty"`
}

// Config holds everything a Scheduler needs.
type Config struct {
	Job        Job
	Interval   time.Duration // defaults to DefaultInterval if <= 0
	RunOnStart bool
	Log        Logger // optional; nil = no logging
}

type Scheduler struct {
	job        Job
	interval   time.Duration
	runOnStart bool
	log        Logger

	mu      sync.Mutex
	tasks   map[string]*Task
	order   []string
	running string
	started bool
	stopped bool
	nextRun time.Time
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg Config) *Scheduler {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		job:        cfg.Job,
		interval:   interval,
		runOnStart: cfg.RunOnStart,
		log:        log,
		tasks:      make(map[string]*Task),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the ticker loop. Calling it twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.nextRun = time.Now().Add(s.interval)
	s.mu.Unlock()

	s.log.Infof("Starting catalog refresh scheduler (interval: %s)", s.interval)
	if s.runOnStart {
		if _, err := s.Trigger("startup"); err != nil {
			s.log.Warnf("Startup refresh not started: %v", err)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				s.nextRun = time.Now().Add(s.interval)
				s.mu.Unlock()
				if _, err := s.Trigger("scheduled"); err != nil {
					s.log.Warnf("Scheduled refresh skipped: %v", err)
				}
			}
		}
	}()
}

// Stop cancels the running task, if any, and waits for every goroutine to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// Trigger starts a refresh in the background and returns its task.
func (s *Scheduler) Trigger(source string) (Task, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return Task{}, ErrStopped
	}
	if s.running != "" {
		s.mu.Unlock()
		return Task{}, ErrAlreadyRunning
	}
	t := &Task{ID: uuid.NewString(), Source: source, State: StateQueued, StartedAt: time.Now()}
	s.running = t.ID
	s.remember(t)
	out := *t
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(t)
	return out, nil
}

func (s *Scheduler) run(t *Task) {
	defer s.wg.Done()

	s.mu.Lock()
	t.State = StateRunning
	s.mu.Unlock()
	s.log.Infof("Starting refresh task %s (%s)", t.ID, t.Source)

	var err error
	if s.job != nil {
		err = s.job(s.ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	t.FinishedAt = &now
	s.running = ""
	if err != nil {
		t.State = StateFailed
		t.Error = err.Error()
		s.log.Errorf("Refresh task %s failed: %v", t.ID, err)
		return
	}
	t.State = StateCompleted
	s.log.Infof("Refresh task %s completed in %s", t.ID, now.Sub(t.StartedAt).Round(time.Millisecond))
}

// remember stores t and forgets the oldest finished tasks beyond maxTasks.
// Callers hold s.mu.
func (s *Scheduler) remember(t *Task) {
	s.tasks[t.ID] = t
	s.order = append(s.order, t.ID)
	for len(s.order) > maxTasks {
		oldest := s.order[0]
		if oldest == s.running {
			break
		}
		delete(s.tasks, oldest)
		s.order = s.order[1:]
	}
}

// Task returns a copy of the task with the given ID.
func (s *Scheduler) Task(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Started: s.started && !s.stopped, Running: s.running != "", Interval: s.interval}
	if st.Started {
		next := s.nextRun
		st.NextRun = &next
	}
	if n := len(s.order); n > 0 {
		last := *s.tasks[s.order[n-1]]
		st.LastTask = &last
	}
	return st
}
