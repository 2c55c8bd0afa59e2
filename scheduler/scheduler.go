// Package scheduler runs wall-clock periodic tasks next to the frame loops.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is a periodic task. The context is cancelled when the task is
// removed or the scheduler stops, and after the task's timeout.
type TaskFn func(ctx context.Context) error

// Stats describes the runs of one task so far.
type Stats struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	Runs     int64         `json:"runs"`
	Failures int64         `json:"failures"`
	LastRun  time.Time     `json:"last_run"`
	LastErr  string        `json:"last_error,omitempty"`
}

type task struct {
	fn      TaskFn
	timeout time.Duration
	cancel  context.CancelFunc

	mu    sync.Mutex
	stats Stats
}

// Scheduler runs named tasks on fixed intervals. A task never overlaps with
// itself; a run that panics or fails is logged and the ticker keeps going.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	ctx    context.Context
	stop   context.CancelFunc
	logger *zap.Logger
}

func New(logger *zap.Logger) *Scheduler {
	ctx, stop := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:  make(map[string]*task),
		ctx:    ctx,
		stop:   stop,
		logger: logger,
	}
}

// AddTicker registers fn to run every interval, each run bounded by timeout
// (zero means the interval). A task with the same name is replaced.
func (s *Scheduler) AddTicker(name string, interval, timeout time.Duration, fn TaskFn) {
	if timeout <= 0 {
		timeout = interval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.tasks[name]; ok {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{fn: fn, timeout: timeout, cancel: cancel, stats: Stats{Name: name, Interval: interval}}
	s.tasks[name] = t

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run(ctx, name, t)
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

func (s *Scheduler) run(parent context.Context, name string, t *task) {
	ctx, cancel := context.WithTimeout(parent, t.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("scheduler: task panicked: %v", r)
			}
		}()
		return t.fn(ctx)
	}()

	t.mu.Lock()
	t.stats.Runs++
	t.stats.LastRun = time.Now()
	t.stats.LastErr = ""
	if err != nil {
		t.stats.Failures++
		t.stats.LastErr = err.Error()
	}
	t.mu.Unlock()
	if err != nil {
		s.logger.Error("scheduler task failed", zap.String("task", name), zap.Error(err))
	}
}

// Remove stops and forgets a task.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[name]; ok {
		t.cancel()
		delete(s.tasks, name)
	}
}

// Stop stops every task. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stop()
}

// Tasks returns the names of the registered tasks in sorted order.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns a copy of every task's run statistics, sorted by name.
func (s *Scheduler) Stats() []Stats {
	s.mu.Lock()
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	out := make([]Stats, 0, len(tasks))
	for _, t := range tasks {
		t.mu.Lock()
		out = append(out, t.stats)
		t.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
