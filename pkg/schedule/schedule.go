// Package schedule runs recurring tasks on interval or cron timetables.
//
// Usage:
//
//	s := schedule.New()
//	s.EveryMinute().Run(func() { logger.Info("tick") })
//	s.Every(5).Minutes().Name("sync").WithoutOverlapping().Run(syncData)
//	s.Cron("0 3 * * *").Name("backup").Run(backupDB)
//	s.Start(ctx)
//
// Each Scheduler owns its own entries; build one at boot and hand it
// to whoever registers tasks.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/setulabs/setu/pkg/logger"
)

// Task is the function signature for a scheduled task.
type Task func()

// entry is a single registered task and its timetable.
type entry struct {
	id         string
	interval   time.Duration
	cronExpr   string // "" unless registered via Cron
	task       Task
	lastRun    time.Time
	running    bool
	noOverlap  bool
	beforeHook Task
	afterHook  Task
	mu         sync.Mutex
}

// Scheduler ticks once a second and dispatches due entries.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns an empty scheduler. Register entries, then Start it.
func New() *Scheduler {
	return &Scheduler{}
}

// Schedule is a fluent builder for one entry before it is registered.
type Schedule struct {
	s *Scheduler
	e *entry
}

// EveryMinute schedules the task to run every 60 seconds.
func (s *Scheduler) EveryMinute() *Schedule { return s.Every(1).Minutes() }

// Every starts a fluent builder with n units.
func (s *Scheduler) Every(n int) *freqBuilder { return &freqBuilder{s: s, n: n} }

// Hourly schedules the task to run every hour.
func (s *Scheduler) Hourly() *Schedule { return s.Every(1).Hours() }

// Daily schedules the task to run every 24 hours.
func (s *Scheduler) Daily() *Schedule { return s.Every(24).Hours() }

// Weekly schedules the task to run every 7 days.
func (s *Scheduler) Weekly() *Schedule { return s.Every(7).Days() }

// Cron schedules using a 5-field cron expression (min hour dom mon dow).
// Fields accept * | number | */step | lo-hi.
func (s *Scheduler) Cron(expr string) *Schedule {
	return &Schedule{s: s, e: &entry{cronExpr: expr}}
}

type freqBuilder struct {
	s *Scheduler
	n int
}

func (f *freqBuilder) Seconds() *Schedule {
	return &Schedule{s: f.s, e: &entry{interval: time.Duration(f.n) * time.Second}}
}
func (f *freqBuilder) Minutes() *Schedule {
	return &Schedule{s: f.s, e: &entry{interval: time.Duration(f.n) * time.Minute}}
}
func (f *freqBuilder) Hours() *Schedule {
	return &Schedule{s: f.s, e: &entry{interval: time.Duration(f.n) * time.Hour}}
}
func (f *freqBuilder) Days() *Schedule {
	return &Schedule{s: f.s, e: &entry{interval: time.Duration(f.n) * 24 * time.Hour}}
}

// WithoutOverlapping skips a run while the previous one is still executing.
func (b *Schedule) WithoutOverlapping() *Schedule {
	b.e.noOverlap = true
	return b
}

// Before registers a hook that fires before each run.
func (b *Schedule) Before(fn Task) *Schedule {
	b.e.beforeHook = fn
	return b
}

// After registers a hook that fires after each run, panics included.
func (b *Schedule) After(fn Task) *Schedule {
	b.e.afterHook = fn
	return b
}

// Name gives the entry a human-readable identifier for logging.
func (b *Schedule) Name(id string) *Schedule {
	b.e.id = id
	return b
}

// Run registers the task with the scheduler.
func (b *Schedule) Run(fn Task) {
	b.e.task = fn
	b.s.mu.Lock()
	if b.e.id == "" {
		b.e.id = fmt.Sprintf("task-%d", len(b.s.entries)+1)
	}
	b.s.entries = append(b.s.entries, b.e)
	b.s.mu.Unlock()
}

// Start launches the dispatch loop. Entries registered after Start are
// picked up on the next tick.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
	logger.Info("schedule: scheduler started")
}

// Stop ends the dispatch loop and waits for it to exit. In-flight
// tasks finish on their own goroutines.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("schedule: scheduler stopped")
			return
		case now := <-ticker.C:
			s.mu.Lock()
			current := make([]*entry, len(s.entries))
			copy(current, s.entries)
			s.mu.Unlock()

			for _, e := range current {
				if e.due(now) {
					dispatch(e)
				}
			}
		}
	}
}

// due reports whether the entry should fire at now. Cron entries fire
// once per matching minute even though the loop ticks every second.
func (e *entry) due(now time.Time) bool {
	if e.cronExpr != "" {
		if !matchCron(e.cronExpr, now) {
			return false
		}
		return e.lastRun.IsZero() || now.Truncate(time.Minute).After(e.lastRun.Truncate(time.Minute))
	}
	if e.lastRun.IsZero() {
		return true // first run
	}
	return now.Sub(e.lastRun) >= e.interval
}

func dispatch(e *entry) {
	e.mu.Lock()
	if e.noOverlap && e.running {
		e.mu.Unlock()
		logger.Warn("schedule: skipping overlapping task", "id", e.id)
		return
	}
	e.running = true
	e.lastRun = time.Now()
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			if r := recover(); r != nil {
				logger.Error("schedule: task panicked", "id", e.id, "panic", r)
			}
			if e.afterHook != nil {
				e.afterHook()
			}
		}()

		if e.beforeHook != nil {
			e.beforeHook()
		}
		logger.Debug("schedule: running task", "id", e.id)
		e.task()
	}()
}

// matchCron evaluates a 5-field cron expression (minute hour dom month
// dow) against t.
func matchCron(expr string, t time.Time) bool {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false
	}
	checks := []struct {
		field string
		val   int
	}{
		{fields[0], t.Minute()},
		{fields[1], t.Hour()},
		{fields[2], t.Day()},
		{fields[3], int(t.Month())},
		{fields[4], int(t.Weekday())},
	}
	for _, c := range checks {
		if !matchField(c.field, c.val) {
			return false
		}
	}
	return true
}

func matchField(field string, val int) bool {
	if field == "*" {
		return true
	}
	if strings.HasPrefix(field, "*/") {
		var step int
		fmt.Sscanf(field[2:], "%d", &step)
		return step > 0 && val%step == 0
	}
	if strings.Contains(field, "-") {
		var lo, hi int
		fmt.Sscanf(field, "%d-%d", &lo, &hi)
		return val >= lo && val <= hi
	}
	var n int
	fmt.Sscanf(field, "%d", &n)
	return n == val
}

// List describes the registered entries, for CLI display.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		freq := e.cronExpr
		if freq == "" {
			freq = e.interval.String()
		}
		out = append(out, fmt.Sprintf("%s  [%s]", e.id, freq))
	}
	return out
}
