package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SoarinFerret/BlockWarden/internal/clock"
	"github.com/SoarinFerret/BlockWarden/internal/session"
)

const (
	MinInterval     = 10 * time.Second
	MaxInterval     = 30 * time.Second
	DefaultInterval = 15 * time.Second
)

// Evaluator is the part of the state manager the loop drives.
type Evaluator interface {
	Evaluate(ctx context.Context, now time.Time) bool
	Reconcile(ctx context.Context, now time.Time) bool
	NextTransition(now time.Time) (time.Duration, bool)
	Snapshot() session.State
}

// Notifier delivers a desktop notification.
type Notifier interface {
	Notify(ctx context.Context, summary, body string) error
}

// Engine is the foreground reconciliation loop. It evaluates schedules on a
// fixed interval, at the next window boundary, and on every resume edge.
type Engine struct {
	eval     Evaluator
	clock    clock.Clock
	interval time.Duration
	notifier Notifier
	log      *zap.SugaredLogger

	resume   chan string
	blocking bool
}

type Option func(*Engine)

func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) { e.log = l }
}

// WithInterval sets the tick interval, clamped to [MinInterval, MaxInterval].
func WithInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = ClampInterval(d) }
}

// WithNotifier enables transition notifications.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// NewEngine creates a reconciliation loop for ev.
func NewEngine(ev Evaluator, opts ...Option) *Engine {
	e := &Engine{
		eval:     ev,
		clock:    clock.Real{},
		interval: DefaultInterval,
		log:      zap.NewNop().Sugar(),
		resume:   make(chan string, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ClampInterval bounds d to the supported tick range. Zero selects the
// default.
func ClampInterval(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultInterval
	case d < MinInterval:
		return MinInterval
	case d > MaxInterval:
		return MaxInterval
	}
	return d
}

// Interval returns the effective tick interval.
func (e *Engine) Interval() time.Duration {
	return e.interval
}

// Resume queues a resume edge. Edges arriving before the loop picks up the
// pending one are coalesced into it; none is lost.
func (e *Engine) Resume(reason string) {
	select {
	case e.resume <- reason:
		e.log.Debugf("Resume edge queued: %s", reason)
	default:
		e.log.Debugf("Resume edge coalesced with pending one: %s", reason)
	}
}

// Run reconciles immediately, then loops until ctx is cancelled. The ticker,
// the boundary timer and the resume listener all stop together.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.log.Infof("Reconciliation loop started, ticking every %s", e.interval)

	e.blocking = e.eval.Snapshot().IsBlocking
	e.reconcile(ctx, "startup")

	timer := time.NewTimer(e.nextWake())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("Reconciliation loop shutting down...")
			return nil
		case <-ticker.C:
			e.tick(ctx)
		case <-timer.C:
			e.log.Debug("Window boundary reached")
			e.tick(ctx)
		case reason := <-e.resume:
			e.reconcile(ctx, reason)
		}
		timer.Reset(e.nextWake())
	}
}

func (e *Engine) tick(ctx context.Context) {
	if e.eval.Evaluate(ctx, e.clock.Now()) {
		e.log.Debug("Session changed on tick")
	}
	e.observe(ctx)
}

// reconcile runs a full evaluation and rebuilds enforcement. Time may have
// jumped arbitrarily since the last evaluation.
func (e *Engine) reconcile(ctx context.Context, reason string) {
	e.log.Infof("Reconciling after %s", reason)
	e.eval.Reconcile(ctx, e.clock.Now())
	e.observe(ctx)
}

// nextWake returns how long to sleep before the next boundary, capped by the
// tick interval.
func (e *Engine) nextWake() time.Duration {
	d, ok := e.eval.NextTransition(e.clock.Now())
	if !ok || d > e.interval {
		return e.interval
	}
	if d < 0 {
		return 0
	}
	return d
}

// observe notifies on blocking on/off transitions.
func (e *Engine) observe(ctx context.Context) {
	snap := e.eval.Snapshot()
	if snap.IsBlocking == e.blocking {
		return
	}
	e.blocking = snap.IsBlocking

	var summary, body string
	if snap.IsBlocking {
		summary = "Blocking started"
		body = fmt.Sprintf("%d schedule(s) active", len(snap.ActiveScheduleIDs))
	} else {
		summary = "Blocking ended"
		body = fmt.Sprintf("You have saved %s so far", formatTimeSaved(time.Duration(snap.SavedTime)*time.Second))
	}
	e.log.Info(summary)

	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, summary, body); err != nil {
		e.log.Warnf("Failed to send notification: %v", err)
	}
}

// formatTimeSaved formats duration into human-readable string
func formatTimeSaved(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d hour(s) %d minute(s)", hours, minutes)
	}
	return fmt.Sprintf("%d minute(s)", minutes)
}
