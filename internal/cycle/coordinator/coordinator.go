package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/labelhub/autotrain/internal/cycle"
	"github.com/labelhub/autotrain/internal/workspace"
)

// Coordinator runs training cycles on a schedule
type Coordinator interface {
	// Start runs cycles until the context is cancelled or Stop is called.
	// Blocks until then. It returns at once if Stop was already called.
	Start(ctx context.Context) error

	// Stop cancels the running cycle, if any, and waits for Start to return.
	// Stop called before Start keeps Start from running any cycle.
	Stop() error

	// LastReport returns the report of the last finished cycle, or nil
	LastReport() *cycle.Report
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	manager  cycle.Manager
	schedule Schedule
	now      func() time.Time

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	reportMu sync.RWMutex
	last     *cycle.Report
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithClock overrides the time source used to compute the next run
func WithClock(now func() time.Time) Option {
	return func(c *defaultCoordinator) {
		c.now = now
	}
}

// New creates a new coordinator
func New(manager cycle.Manager, schedule Schedule, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		manager:  manager,
		schedule: schedule,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start begins the schedule loop
func (c *defaultCoordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("cycle coordinator already started")
	}
	select {
	case <-c.stop:
		c.mu.Unlock()
		slog.Info("Cycle coordinator stopped before start")
		return nil
	default:
	}
	c.started = true
	c.mu.Unlock()

	coordCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		close(c.done)
		slog.Info("Cycle coordinator shutting down")
	}()
	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-coordCtx.Done():
		}
	}()

	slog.Info("Starting cycle coordinator",
		"daily_at", fmt.Sprintf("%02d:%02d", c.schedule.Hour, c.schedule.Minute),
		"run_on_start", c.schedule.RunOnStart)

	if c.schedule.RunOnStart {
		c.runCycle(coordCtx)
	}

	for {
		now := c.now()
		next := c.schedule.Next(now)
		wait := next.Sub(now)
		slog.Info("Next cycle scheduled", "at", next, "in", wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			c.runCycle(coordCtx)
		case <-coordCtx.Done():
			timer.Stop()
			slog.Info("Cycle coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.stopOnce.Do(func() {
		slog.Info("Stopping cycle coordinator")
		close(c.stop)
	})

	// Start checks stop under mu, so once started is false here it never runs
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if started {
		<-c.done
	}
	return nil
}

func (c *defaultCoordinator) LastReport() *cycle.Report {
	c.reportMu.RLock()
	defer c.reportMu.RUnlock()
	return c.last
}

func (c *defaultCoordinator) runCycle(ctx context.Context) {
	report, err := c.manager.RunCycle(ctx)
	if errors.Is(err, workspace.ErrLocked) {
		slog.Warn("Skipping cycle, workspace is locked by another process")
		return
	}
	if err != nil {
		slog.Error("Cycle failed", "error", err)
	}
	if report == nil {
		return
	}

	c.reportMu.Lock()
	c.last = report
	c.reportMu.Unlock()
}
