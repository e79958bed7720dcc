// Package monitor re-validates the session in the background, periodically
// and when the host regains the user's attention.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/oneclickvirt/console/src/host"
	"github.com/oneclickvirt/console/src/session"
)

// Defaults
const (
	DefaultInterval = 5 * time.Minute
	DefaultDebounce = 30 * time.Second
)

// MsgSessionExpired is shown when a background check finds the session invalid
const MsgSessionExpired = "Your session has expired, please log in again"

// Status of the monitor
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
)

// Outcome of one CheckStatus call
type Outcome string

const (
	OutcomeValid           Outcome = "valid"
	OutcomeInvalid         Outcome = "invalid"
	OutcomeError           Outcome = "error"
	OutcomeSkippedInFlight Outcome = "skipped_inflight"
	OutcomeSkippedDebounce Outcome = "skipped_debounce"
	OutcomeAnonymous       Outcome = "skipped_anonymous"
)

// Validator is the part of the session the monitor checks
type Validator interface {
	IsLoggedIn() bool
	Revalidate(ctx context.Context) (bool, error)
}

// Monitor periodically asks a Validator whether the session still holds.
// At most one check runs at a time.
type Monitor struct {
	validator Validator
	nav       host.Navigator
	notifier  host.Notifier
	logger    *slog.Logger
	metrics   *Metrics
	interval  time.Duration
	debounce  time.Duration
	now       func() time.Time

	inFlight atomic.Bool

	mu        sync.Mutex
	cancel    context.CancelFunc // non-nil while running
	lastCheck time.Time
}

// Option configures a Monitor
type Option func(*Monitor)

// WithInterval sets the period between scheduled checks
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithDebounce sets the minimum time between two check starts
func WithDebounce(d time.Duration) Option {
	return func(m *Monitor) { m.debounce = d }
}

// WithNavigator sets the navigator used after an invalid check
func WithNavigator(n host.Navigator) Option {
	return func(m *Monitor) { m.nav = n }
}

// WithNotifier sets the notifier used after an invalid check
func WithNotifier(n host.Notifier) Option {
	return func(m *Monitor) { m.notifier = n }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithMetrics enables prometheus metrics
func WithMetrics(mt *Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// WithClock replaces time.Now for the debounce window
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New creates a stopped monitor for v
func New(v Validator, opts ...Option) *Monitor {
	m := &Monitor{
		validator: v,
		notifier:  host.NopNotifier{},
		logger:    slog.Default(),
		interval:  DefaultInterval,
		debounce:  DefaultDebounce,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start runs an immediate check and schedules periodic ones. Starting a
// running monitor does nothing.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	m.metrics.setRunning(true)
	m.logger.Info("session monitor started", "interval", m.interval)
	go m.run(ctx)
}

// Stop cancels the schedule and any check it started. It never blocks and
// may be called from within a check.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	m.metrics.setRunning(false)
	m.logger.Info("session monitor stopped")
}

// Restart stops and starts the monitor, typically after a new login
func (m *Monitor) Restart() {
	m.Stop()
	m.Start()
}

// Status reports whether the monitor is running
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return StatusRunning
	}
	return StatusStopped
}

// LastCheck returns when the last check started, zero if none did
func (m *Monitor) LastCheck() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCheck
}

func (m *Monitor) run(ctx context.Context) {
	m.CheckStatus(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckStatus(ctx)
		}
	}
}

// CheckStatus re-validates the session unless a check is running, nobody
// is logged in, or the last check started within the debounce window.
// Failures to reach the server are logged and never clear the session.
func (m *Monitor) CheckStatus(ctx context.Context) Outcome {
	outcome := m.check(ctx)
	m.metrics.outcome(outcome)
	return outcome
}

func (m *Monitor) check(ctx context.Context) Outcome {
	if !m.inFlight.CompareAndSwap(false, true) {
		return OutcomeSkippedInFlight
	}
	defer m.inFlight.Store(false)

	if !m.validator.IsLoggedIn() {
		return OutcomeAnonymous
	}

	now := m.now()
	m.mu.Lock()
	if !m.lastCheck.IsZero() && now.Sub(m.lastCheck) < m.debounce {
		m.mu.Unlock()
		return OutcomeSkippedDebounce
	}
	m.lastCheck = now
	m.mu.Unlock()

	checkID := uuid.NewString()
	m.logger.Debug("checking session", "check_id", checkID)

	valid, err := m.validator.Revalidate(ctx)
	if err != nil {
		m.logger.Warn("session check failed", "check_id", checkID, "error", err)
		return OutcomeError
	}
	if valid {
		return OutcomeValid
	}

	m.logger.Info("session no longer valid", "check_id", checkID)
	m.Stop()
	if m.nav != nil && !host.IsPublicPath(m.nav.CurrentPath()) {
		m.notifier.Notify(MsgSessionExpired, host.SeverityWarning)
		m.nav.NavigateTo(host.PathHome)
	}
	return OutcomeInvalid
}

// ForceCheck clears the debounce window and checks
func (m *Monitor) ForceCheck(ctx context.Context) Outcome {
	m.mu.Lock()
	m.lastCheck = time.Time{}
	m.mu.Unlock()
	return m.CheckStatus(ctx)
}

// OnBecameVisible is called by the host when the user returns to it
func (m *Monitor) OnBecameVisible(ctx context.Context) Outcome {
	return m.onAttention(ctx)
}

// OnGainedFocus is called by the host when it regains input focus
func (m *Monitor) OnGainedFocus(ctx context.Context) Outcome {
	return m.onAttention(ctx)
}

func (m *Monitor) onAttention(ctx context.Context) Outcome {
	if !m.validator.IsLoggedIn() {
		return OutcomeAnonymous
	}
	return m.ForceCheck(ctx)
}

// Bind starts the monitor whenever state holds a token and stops it
// whenever it does not, on every mutation. It returns the unbind function.
func (m *Monitor) Bind(state *session.State) func() {
	unsubscribe := state.OnChange(func(_, next session.Snapshot) {
		if next.LoggedIn() {
			m.Start()
		} else {
			m.Stop()
		}
	})
	if state.IsLoggedIn() {
		m.Start()
	}
	return unsubscribe
}
