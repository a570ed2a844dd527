// Package refresh runs the fetch -> aggregate -> resolve cycle and keeps the
// most recent board for the presentation layer.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	appLog "shulscreen/internal/log"
	"shulscreen/internal/metrics"
	"shulscreen/internal/model"
	"shulscreen/internal/myzmanim"
	"shulscreen/internal/schedule"
	"shulscreen/internal/week"
)

// ErrFetch wraps any failure of the data source. The cycle is abandoned and
// the previous board stays in place.
var ErrFetch = errors.New("fetch failed")

// Source provides getDay payloads for a set of dates, all or nothing.
type Source interface {
	Days(ctx context.Context, dates []week.Date) (map[week.Date]model.Day, error)
}

// Status is the short human-readable state shown under the board.
type Status struct {
	Message string `json:"message"`
	// Error is the last failure, cleared by the next applied board.
	Error string `json:"error,omitempty"`
	// Network is true when the last failure was a transport problem rather
	// than a bad answer.
	Network bool `json:"network,omitempty"`

	Ready       bool      `json:"ready"`
	CycleID     string    `json:"cycle_id,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastAttempt time.Time `json:"last_attempt"`
}

// Hook is called after a board has been applied.
type Hook func(ctx context.Context, b *model.Board)

type Options struct {
	Settings schedule.Settings
	Location *time.Location
	// Spec is a robfig/cron spec, e.g. "@every 600s" or "*/10 * * * *".
	Spec string
	// Check runs before every fetch; a non-nil error aborts the cycle.
	Check   func() error
	Now     func() time.Time
	Metrics *metrics.Manager
}

// Controller owns the latest board. RunOnce may be called concurrently (cron
// tick and manual trigger); a cycle's result is dropped once a newer cycle
// has started, whether or not that newer cycle has finished.
type Controller struct {
	settings schedule.Settings
	loc      *time.Location
	spec     string
	check    func() error
	now      func() time.Time
	source   Source
	metrics  *metrics.Manager

	board atomic.Pointer[model.Board]
	seq   atomic.Uint64

	mu     sync.Mutex
	status Status
	hooks  []Hook
}

func New(source Source, opts Options) *Controller {
	c := &Controller{
		settings: opts.Settings,
		loc:      opts.Location,
		spec:     opts.Spec,
		check:    opts.Check,
		now:      opts.Now,
		source:   source,
		metrics:  opts.Metrics,
		status:   Status{Message: "Loading…"},
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.spec == "" {
		c.spec = "@every 10m"
	}
	return c
}

// OnApplied registers a hook run after each applied board.
func (c *Controller) OnApplied(h Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
}

// Board returns the latest applied board, or nil before the first success.
func (c *Controller) Board() *model.Board {
	return c.board.Load()
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// RunOnce performs one complete cycle: one coalesced fetch, aggregation,
// resolution and an atomic swap of the board.
func (c *Controller) RunOnce(ctx context.Context) error {
	seq := c.seq.Add(1)
	id := uuid.NewString()
	start := time.Now()
	now := c.now().In(c.loc)

	c.mu.Lock()
	c.status.LastAttempt = now
	c.mu.Unlock()

	appLog.Debug("refresh: cycle start", "cycle", id, "seq", seq)

	if c.check != nil {
		if err := c.check(); err != nil {
			return c.fail(seq, id, start, err)
		}
	}

	today := week.DateOf(now)
	plan := schedule.NewPlan(c.settings, today)

	days, err := c.source.Days(ctx, plan.Fetch)
	if err != nil {
		return c.fail(seq, id, start, fmt.Errorf("%w: %w", ErrFetch, err))
	}

	b := schedule.Build(c.settings, plan, days)
	b.CycleID = id
	b.UpdatedAt = now
	b.TimeZone = c.loc.String()
	b.Status = fmt.Sprintf("Updated %s • %s", now.Format("15:04:05"), b.Status)

	c.mu.Lock()
	if c.superseded(seq) {
		c.mu.Unlock()
		appLog.Info("refresh: superseded by a newer cycle", "cycle", id, "seq", seq)
		c.metrics.RefreshCycle(metrics.ResultSuperseded, time.Since(start))
		return nil
	}
	c.board.Store(&b)
	c.status = Status{
		Message:     b.Status,
		Ready:       true,
		CycleID:     id,
		UpdatedAt:   now,
		LastAttempt: now,
	}
	hooks := append([]Hook(nil), c.hooks...)
	c.mu.Unlock()

	c.metrics.RefreshCycle(metrics.ResultApplied, time.Since(start))
	c.metrics.UnavailableRows(b.Missing)
	appLog.Info("refresh: board applied",
		"cycle", id,
		"today", b.Today,
		"week_start", b.Week.Start,
		"dates", len(plan.Fetch),
		"missing", b.Missing,
		"duration", time.Since(start),
	)

	for _, h := range hooks {
		h(ctx, &b)
	}
	return nil
}

// superseded reports whether a cycle newer than seq has started.
func (c *Controller) superseded(seq uint64) bool {
	return seq != c.seq.Load()
}

// fail records err in the status unless a newer cycle has started; the newer
// cycle owns the status from then on.
func (c *Controller) fail(seq uint64, id string, start time.Time, err error) error {
	c.metrics.RefreshCycle(metrics.ResultFailed, time.Since(start))
	appLog.Error("refresh: cycle failed", err, "cycle", id, "seq", seq)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.superseded(seq) {
		c.status.Error = err.Error()
		c.status.Network = errors.Is(err, myzmanim.ErrNetwork)
		c.status.CycleID = id
	}
	return err
}

// Trigger runs a cycle on demand (manual refresh).
func (c *Controller) Trigger(ctx context.Context) error {
	return c.RunOnce(ctx)
}

// Start runs an initial cycle and then schedules cycles on the configured
// spec until ctx is canceled. Cycle errors are logged, not returned; only an
// invalid spec is.
func (c *Controller) Start(ctx context.Context) error {
	cr := cron.New(cron.WithLocation(c.loc))
	if _, err := cr.AddFunc(c.spec, func() {
		_ = c.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("refresh: invalid schedule %q: %w", c.spec, err)
	}

	_ = c.RunOnce(ctx)

	cr.Start()
	appLog.Info("refresh: scheduler started", "spec", c.spec, "timezone", c.loc.String())

	go func() {
		<-ctx.Done()
		<-cr.Stop().Done()
		appLog.Info("refresh: scheduler stopped")
	}()
	return nil
}
