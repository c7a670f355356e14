// Package autosync runs syncs unattended on a fixed interval and/or when the source file changes.
//
// A [Scheduler] never starts a run while another is in progress: a tick or file event that
// arrives during a run is dropped with a warning and [shared.ErrRunInProgress].
package autosync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
	"github.com/fsnotify/fsnotify"
)

// RunFunc performs one sync. trigger is [models.TriggerSchedule] or [models.TriggerWatch].
type RunFunc func(ctx context.Context, trigger string) (*models.SyncResult, error)

// Status is a snapshot of the scheduler state.
type Status struct {
	Running    bool
	Busy       bool
	NextRun    *time.Time
	LastRun    *time.Time
	LastStatus string
	LastError  string
	Runs       int
	Dropped    int
}

// Scheduler triggers a [RunFunc] from a ticker and a file watcher.
type Scheduler struct {
	run      RunFunc
	source   string
	interval time.Duration
	watch    bool
	debounce time.Duration
	logger   *log.Logger

	busy    atomic.Bool
	running atomic.Bool
	wg      sync.WaitGroup

	mu     sync.Mutex
	status Status
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithInterval runs a sync every d. Zero disables interval runs.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithWatch runs a sync when the source file changes, once no event arrived for debounce.
func WithWatch(debounce time.Duration) Option {
	return func(s *Scheduler) {
		s.watch = true
		s.debounce = debounce
	}
}

// WithLogger sets the logger for scheduler events.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a scheduler for source.
func New(source string, run RunFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		run:      run,
		source:   source,
		debounce: time.Second,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.debounce <= 0 {
		s.debounce = time.Second
	}
	return s
}

// NewFromConfig creates a scheduler from the [autosync] section.
func NewFromConfig(cfg shared.AutoSyncConfig, run RunFunc, logger *log.Logger) *Scheduler {
	opts := []Option{WithInterval(cfg.Interval()), WithLogger(logger)}
	if cfg.Watch {
		opts = append(opts, WithWatch(cfg.Debounce()))
	}
	return New(cfg.Source, run, opts...)
}

// Validate checks the scheduler has a trigger and an existing source file.
func (s *Scheduler) Validate() error {
	if s.run == nil {
		return fmt.Errorf("%w: run function", shared.ErrMissingArgument)
	}
	if s.interval <= 0 && !s.watch {
		return fmt.Errorf("%w: autosync needs an interval or file watching", shared.ErrInvalidConfig)
	}
	if s.source == "" {
		return fmt.Errorf("%w: autosync source", shared.ErrMissingArgument)
	}
	info, err := os.Stat(s.source)
	if err != nil {
		return fmt.Errorf("autosync source: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: autosync source %s is a directory", shared.ErrInvalidArgument, s.source)
	}
	return nil
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status
	st.Running = s.running.Load()
	st.Busy = s.busy.Load()
	return st
}

// Trigger runs one sync now unless another is in progress, in which case it returns
// [shared.ErrRunInProgress] without calling the run function.
func (s *Scheduler) Trigger(ctx context.Context, trigger string) (*models.SyncResult, error) {
	if !s.busy.CompareAndSwap(false, true) {
		s.mu.Lock()
		s.status.Dropped++
		s.mu.Unlock()
		s.logger.Warn("sync skipped, previous run still in progress", "trigger", trigger)
		return nil, shared.ErrRunInProgress
	}
	defer s.busy.Store(false)

	started := time.Now()
	s.logger.Info("auto sync started", "trigger", trigger, "source", s.source)

	result, err := s.run(ctx, trigger)

	s.mu.Lock()
	s.status.Runs++
	s.status.LastRun = &started
	s.status.LastError = ""
	switch {
	case result != nil:
		s.status.LastStatus = result.Status()
	case err != nil:
		s.status.LastStatus = models.RunStatusFailed
	}
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("auto sync failed", "trigger", trigger, "error", err)
	} else if result != nil {
		s.logger.Info("auto sync finished", "trigger", trigger, "status", result.Status(),
			"success", result.TotalSuccess, "failed", result.TotalFailed,
			"duration", shared.FormatDuration(result.Duration))
	}
	return result, err
}

// Run blocks, triggering syncs until ctx is cancelled. It waits for an in-flight run before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: scheduler already running", shared.ErrRunInProgress)
	}
	defer s.running.Store(false)

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
		s.setNextRun(time.Now().Add(s.interval))
	}

	var (
		events    <-chan fsnotify.Event
		watchErrs <-chan error
	)
	if s.watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create fsnotify watcher: %w", err)
		}
		defer w.Close()

		// exports are often replaced rather than written in place
		if err := w.Add(filepath.Dir(s.source)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", s.source, err)
		}
		events, watchErrs = w.Events, w.Errors
	}

	target, err := filepath.Abs(s.source)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", s.source, err)
	}

	s.logger.Info("auto sync scheduler started", "source", s.source, "interval", s.interval, "watch", s.watch)
	defer s.logger.Info("auto sync scheduler stopped")

	debounce := time.NewTimer(s.debounce)
	debounce.Stop()
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			debounce.Stop()
			s.wg.Wait()
			return nil

		case <-tick:
			s.setNextRun(time.Now().Add(s.interval))
			s.fire(ctx, models.TriggerSchedule)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !relevant(ev, target) {
				continue
			}
			s.logger.Debug("source changed", "op", ev.Op.String())
			debounce.Reset(s.debounce)
			debounceC = debounce.C

		case <-debounceC:
			debounceC = nil
			s.fire(ctx, models.TriggerWatch)

		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			s.logger.Warn("file watcher error", "error", err)
		}
	}
}

// fire starts a run in the background so the loop keeps draining ticks and events.
func (s *Scheduler) fire(ctx context.Context, trigger string) {
	if s.busy.Load() {
		s.mu.Lock()
		s.status.Dropped++
		s.mu.Unlock()
		s.logger.Warn("sync skipped, previous run still in progress", "trigger", trigger)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Trigger(ctx, trigger); err != nil && !errors.Is(err, shared.ErrRunInProgress) {
			s.logger.Debug("auto sync run returned error", "error", err)
		}
	}()
}

func (s *Scheduler) setNextRun(t time.Time) {
	s.mu.Lock()
	s.status.NextRun = &t
	s.mu.Unlock()
}

func relevant(ev fsnotify.Event, target string) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	name, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	return name == target
}
