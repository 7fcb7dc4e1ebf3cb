// Package scheduler runs bound commands on a schedule. Tasks persist as JSON
// under the data directory:
//
//	{ "version": 1, "tasks": [ { "id":"…", "name":"…", "enabled":true,
//	    "schedule":{"kind":"every","everyMs":…},
//	    "command":"rmd--ls", "args":"", "channel":"cli", "chatId":"local",
//	    "state":{"nextRunAtMs":…,"lastRunAtMs":…,"lastStatus":"ok"},
//	    "createdAtMs":…, "updatedAtMs":…, "deleteAfterRun":false } ] }
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	robfigcron "github.com/robfig/cron/v3"
)

// --------------------------------------------------------------------------
// Data types
// --------------------------------------------------------------------------

type Schedule struct {
	Kind    string  `json:"kind"`              // "every" | "cron" | "at"
	AtMs    *int64  `json:"atMs,omitempty"`    // one-time
	EveryMs *int64  `json:"everyMs,omitempty"` // interval
	Expr    *string `json:"expr,omitempty"`    // cron expression
	TZ      *string `json:"tz,omitempty"`      // IANA timezone
}

type TaskState struct {
	NextRunAtMs *int64  `json:"nextRunAtMs,omitempty"`
	LastRunAtMs *int64  `json:"lastRunAtMs,omitempty"`
	LastStatus  *string `json:"lastStatus,omitempty"`
	LastError   *string `json:"lastError,omitempty"`
}

// Task is one scheduled command invocation. Command names the binding to
// run; Channel and ChatID say which session its forwarded output targets.
type Task struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Enabled        bool      `json:"enabled"`
	Schedule       Schedule  `json:"schedule"`
	Command        string    `json:"command"`
	Args           string    `json:"args"`
	Channel        string    `json:"channel"`
	ChatID         string    `json:"chatId"`
	State          TaskState `json:"state"`
	CreatedAtMs    int64     `json:"createdAtMs"`
	UpdatedAtMs    int64     `json:"updatedAtMs"`
	DeleteAfterRun bool      `json:"deleteAfterRun"`
}

type taskStore struct {
	Version int    `json:"version"`
	Tasks   []Task `json:"tasks"`
}

// --------------------------------------------------------------------------
// Service
// --------------------------------------------------------------------------

// RunFunc is called when a task fires. It resolves the task's command
// binding and executes it.
type RunFunc func(ctx context.Context, task Task) error

// Service manages scheduled tasks.
type Service struct {
	storePath string
	onRun     RunFunc

	mu     sync.Mutex
	store  taskStore
	loaded bool

	// Active timers / cron entries keyed by task ID.
	timers    map[string]*time.Timer
	robfig    *robfigcron.Cron
	robfigIDs map[string]robfigcron.EntryID
}

// NewService creates a scheduler persisting to storePath
// (e.g. ~/.cmdlink/tasks.json).
func NewService(storePath string) *Service {
	return &Service{
		storePath: storePath,
		timers:    make(map[string]*time.Timer),
		robfig:    robfigcron.New(),
		robfigIDs: make(map[string]robfigcron.EntryID),
	}
}

// SetOnRun registers the callback executed when a task fires.
// Must be set before Start().
func (s *Service) SetOnRun(fn RunFunc) { s.onRun = fn }

// Start loads tasks from disk, recomputes next-run times, and arms all
// timers. Blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if err := s.loadLocked(); err != nil {
		slog.Warn("scheduler: load failed, starting empty", "err", err)
	}
	s.recomputeNextRunsLocked()
	s.saveLocked()
	s.armAllLocked(ctx)
	s.mu.Unlock()

	s.robfig.Start()
	slog.Info("scheduler: started", "tasks", len(s.store.Tasks))

	<-ctx.Done()

	<-s.robfig.Stop().Done()
	s.mu.Lock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.mu.Unlock()
	return ctx.Err()
}

// AddTask persists a new task and returns it with ID and timestamps filled.
func (s *Service) AddTask(task Task) (Task, error) {
	switch task.Schedule.Kind {
	case "every":
		if task.Schedule.EveryMs == nil || *task.Schedule.EveryMs <= 0 {
			return Task{}, fmt.Errorf("schedule kind %q needs a positive interval", task.Schedule.Kind)
		}
	case "cron":
		if task.Schedule.Expr == nil || *task.Schedule.Expr == "" {
			return Task{}, fmt.Errorf("schedule kind %q needs an expression", task.Schedule.Kind)
		}
	case "at":
		if task.Schedule.AtMs == nil {
			return Task{}, fmt.Errorf("schedule kind %q needs a timestamp", task.Schedule.Kind)
		}
	default:
		return Task{}, fmt.Errorf("unknown schedule kind %q", task.Schedule.Kind)
	}
	if task.Command == "" {
		return Task{}, fmt.Errorf("task needs a command")
	}

	now := nowMs()
	task.ID = uuid.NewString()
	task.Enabled = true
	task.State = TaskState{NextRunAtMs: computeNextRun(task.Schedule, now)}
	task.CreatedAtMs = now
	task.UpdatedAtMs = now

	s.mu.Lock()
	_ = s.loadLocked()
	s.store.Tasks = append(s.store.Tasks, task)
	s.saveLocked()
	s.mu.Unlock()

	slog.Info("scheduler: added task", "name", task.Name, "id", task.ID, "kind", task.Schedule.Kind)
	return task, nil
}

// RemoveTask removes a task by ID and returns true if found.
func (s *Service) RemoveTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked()
	before := len(s.store.Tasks)
	filtered := s.store.Tasks[:0]
	for _, t := range s.store.Tasks {
		if t.ID != id {
			filtered = append(filtered, t)
		}
	}
	s.store.Tasks = filtered
	if len(filtered) < before {
		s.cancelTimerLocked(id)
		s.saveLocked()
		return true
	}
	return false
}

// EnableTask enables or disables a task.
func (s *Service) EnableTask(id string, enabled bool) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked()
	for i := range s.store.Tasks {
		if s.store.Tasks[i].ID == id {
			s.store.Tasks[i].Enabled = enabled
			s.store.Tasks[i].UpdatedAtMs = nowMs()
			if enabled {
				s.store.Tasks[i].State.NextRunAtMs = computeNextRun(s.store.Tasks[i].Schedule, nowMs())
			} else {
				s.store.Tasks[i].State.NextRunAtMs = nil
				s.cancelTimerLocked(id)
			}
			s.saveLocked()
			return s.store.Tasks[i], true
		}
	}
	return Task{}, false
}

// ListTasks returns tasks sorted by next run time; includeDisabled controls
// visibility.
func (s *Service) ListTasks(includeDisabled bool) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked() // ensure loaded
	var tasks []Task
	for _, t := range s.store.Tasks {
		if includeDisabled || t.Enabled {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, k int) bool {
		a := int64(^uint64(0) >> 1)
		b := int64(^uint64(0) >> 1)
		if tasks[i].State.NextRunAtMs != nil {
			a = *tasks[i].State.NextRunAtMs
		}
		if tasks[k].State.NextRunAtMs != nil {
			b = *tasks[k].State.NextRunAtMs
		}
		return a < b
	})
	return tasks
}

// RunTask manually executes a task (force=true ignores disabled flag).
func (s *Service) RunTask(ctx context.Context, id string, force bool) bool {
	s.mu.Lock()
	_ = s.loadLocked()
	var task *Task
	for i := range s.store.Tasks {
		if s.store.Tasks[i].ID == id {
			if !force && !s.store.Tasks[i].Enabled {
				s.mu.Unlock()
				return false
			}
			task = &s.store.Tasks[i]
			break
		}
	}
	if task == nil {
		s.mu.Unlock()
		return false
	}
	taskCopy := *task
	s.mu.Unlock()

	s.executeTask(ctx, taskCopy)
	return true
}

// --------------------------------------------------------------------------
// Internal scheduling logic
// --------------------------------------------------------------------------

func (s *Service) recomputeNextRunsLocked() {
	now := nowMs()
	for i := range s.store.Tasks {
		if s.store.Tasks[i].Enabled {
			s.store.Tasks[i].State.NextRunAtMs = computeNextRun(s.store.Tasks[i].Schedule, now)
		}
	}
}

func (s *Service) armAllLocked(ctx context.Context) {
	for _, t := range s.store.Tasks {
		if t.Enabled {
			s.armTaskLocked(ctx, t)
		}
	}
}

func (s *Service) armTaskLocked(ctx context.Context, task Task) {
	s.cancelTimerLocked(task.ID)

	switch task.Schedule.Kind {
	case "every":
		if task.Schedule.EveryMs == nil || *task.Schedule.EveryMs <= 0 {
			return
		}
		d := time.Duration(*task.Schedule.EveryMs) * time.Millisecond
		t := time.AfterFunc(d, func() {
			s.executeTask(ctx, task)
			// Re-arm for next tick, refreshing from the store in case the
			// task changed meanwhile.
			s.mu.Lock()
			for _, cur := range s.store.Tasks {
				if cur.ID == task.ID && cur.Enabled {
					s.armTaskLocked(ctx, cur)
					break
				}
			}
			s.mu.Unlock()
		})
		s.timers[task.ID] = t

	case "at":
		if task.Schedule.AtMs == nil {
			return
		}
		delay := time.Until(time.UnixMilli(*task.Schedule.AtMs))
		if delay < 0 {
			return
		}
		t := time.AfterFunc(delay, func() {
			s.executeTask(ctx, task)
		})
		s.timers[task.ID] = t

	case "cron":
		if task.Schedule.Expr == nil {
			return
		}
		loc := time.Local
		if task.Schedule.TZ != nil && *task.Schedule.TZ != "" {
			if l, err := time.LoadLocation(*task.Schedule.TZ); err == nil {
				loc = l
			}
		}
		sched, err := cronParser().Parse(*task.Schedule.Expr)
		if err != nil {
			slog.Warn("scheduler: invalid cron expression", "task", task.ID, "expr", *task.Schedule.Expr, "err", err)
			return
		}
		taskCopy := task
		entryID := s.robfig.Schedule(
			withLocation(sched, loc),
			robfigcron.FuncJob(func() { s.executeTask(ctx, taskCopy) }),
		)
		s.robfigIDs[task.ID] = entryID
	}
}

func (s *Service) cancelTimerLocked(id string) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	if eid, ok := s.robfigIDs[id]; ok {
		s.robfig.Remove(eid)
		delete(s.robfigIDs, id)
	}
}

func (s *Service) executeTask(ctx context.Context, task Task) {
	startMs := nowMs()
	slog.Info("scheduler: executing task", "name", task.Name, "id", task.ID, "command", task.Command)

	var lastStatus = "ok"
	var lastErr *string

	if s.onRun != nil {
		if err := s.onRun(ctx, task); err != nil {
			lastStatus = "error"
			e := err.Error()
			lastErr = &e
			slog.Error("scheduler: task failed", "name", task.Name, "err", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.store.Tasks {
		if s.store.Tasks[i].ID != task.ID {
			continue
		}
		now := nowMs()
		s.store.Tasks[i].State.LastRunAtMs = &startMs
		s.store.Tasks[i].State.LastStatus = &lastStatus
		s.store.Tasks[i].State.LastError = lastErr
		s.store.Tasks[i].UpdatedAtMs = now

		if task.Schedule.Kind == "at" {
			if task.DeleteAfterRun {
				filtered := s.store.Tasks[:0]
				for _, t := range s.store.Tasks {
					if t.ID != task.ID {
						filtered = append(filtered, t)
					}
				}
				s.store.Tasks = filtered
			} else {
				s.store.Tasks[i].Enabled = false
				s.store.Tasks[i].State.NextRunAtMs = nil
			}
		} else {
			s.store.Tasks[i].State.NextRunAtMs = computeNextRun(task.Schedule, now)
		}
		break
	}
	s.saveLocked()
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

func (s *Service) loadLocked() error {
	if s.loaded {
		return nil
	}
	// One attempt per process: a corrupt file is reported once, not on
	// every list call, and the in-memory store owns the state afterwards.
	s.loaded = true
	data, err := os.ReadFile(s.storePath)
	if os.IsNotExist(err) {
		s.store = taskStore{Version: 1}
		return nil
	}
	if err != nil {
		return err
	}
	var st taskStore
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.Version == 0 {
		st.Version = 1
	}
	s.store = st
	return nil
}

func (s *Service) saveLocked() {
	if err := os.MkdirAll(filepath.Dir(s.storePath), 0o755); err != nil {
		slog.Warn("scheduler: mkdir failed", "err", err)
		return
	}
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		slog.Warn("scheduler: marshal failed", "err", err)
		return
	}
	if err := os.WriteFile(s.storePath, data, 0o644); err != nil {
		slog.Warn("scheduler: write failed", "err", err)
	}
}

// --------------------------------------------------------------------------
// Utility
// --------------------------------------------------------------------------

func nowMs() int64 { return time.Now().UnixMilli() }

func cronParser() robfigcron.Parser {
	return robfigcron.NewParser(
		robfigcron.Minute | robfigcron.Hour | robfigcron.Dom | robfigcron.Month | robfigcron.Dow,
	)
}

func computeNextRun(sched Schedule, nowMs int64) *int64 {
	switch sched.Kind {
	case "at":
		if sched.AtMs != nil && *sched.AtMs > nowMs {
			v := *sched.AtMs
			return &v
		}
	case "every":
		if sched.EveryMs != nil && *sched.EveryMs > 0 {
			v := nowMs + *sched.EveryMs
			return &v
		}
	case "cron":
		if sched.Expr != nil {
			loc := time.Local
			if sched.TZ != nil && *sched.TZ != "" {
				if l, err := time.LoadLocation(*sched.TZ); err == nil {
					loc = l
				}
			}
			parsed, err := cronParser().Parse(*sched.Expr)
			if err == nil {
				next := parsed.Next(time.UnixMilli(nowMs).In(loc))
				v := next.UnixMilli()
				return &v
			}
		}
	}
	return nil
}

// withLocation wraps a Schedule to always use a specific location.
type locSchedule struct {
	inner robfigcron.Schedule
	loc   *time.Location
}

func (l locSchedule) Next(t time.Time) time.Time {
	return l.inner.Next(t.In(l.loc))
}

func withLocation(s robfigcron.Schedule, loc *time.Location) robfigcron.Schedule {
	return locSchedule{inner: s, loc: loc}
}
