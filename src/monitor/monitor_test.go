package monitor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/oneclickvirt/console/src/host"
	"github.com/oneclickvirt/console/src/request"
	"github.com/oneclickvirt/console/src/session"
)

type fakeValidator struct {
	loggedIn atomic.Bool
	calls    atomic.Int32

	mu    sync.Mutex
	valid bool
	err   error

	entered chan struct{} // receives when a revalidation starts, if set
	release chan struct{} // blocks revalidation until closed, if set
}

func newFakeValidator() *fakeValidator {
	v := &fakeValidator{valid: true}
	v.loggedIn.Store(true)
	return v
}

func (v *fakeValidator) IsLoggedIn() bool { return v.loggedIn.Load() }

func (v *fakeValidator) Revalidate(ctx context.Context) (bool, error) {
	v.calls.Add(1)
	if v.entered != nil {
		v.entered <- struct{}{}
	}
	if v.release != nil {
		select {
		case <-v.release:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.valid, v.err
}

func (v *fakeValidator) set(valid bool, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.valid, v.err = valid, err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(message string, _ host.Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestCheckStatusInFlightGuard(t *testing.T) {
	v := newFakeValidator()
	v.entered = make(chan struct{}, 1)
	v.release = make(chan struct{})
	m := New(v)

	done := make(chan Outcome)
	go func() { done <- m.CheckStatus(context.Background()) }()
	<-v.entered

	if got := m.CheckStatus(context.Background()); got != OutcomeSkippedInFlight {
		t.Errorf("concurrent CheckStatus() = %q, want %q", got, OutcomeSkippedInFlight)
	}
	if got := m.ForceCheck(context.Background()); got != OutcomeSkippedInFlight {
		t.Errorf("concurrent ForceCheck() = %q, want %q", got, OutcomeSkippedInFlight)
	}

	close(v.release)
	if got := <-done; got != OutcomeValid {
		t.Errorf("first CheckStatus() = %q", got)
	}
	if v.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", v.calls.Load())
	}
}

func TestCheckStatusDebounce(t *testing.T) {
	v := newFakeValidator()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	m := New(v, WithClock(clock.Now))
	ctx := context.Background()

	if got := m.CheckStatus(ctx); got != OutcomeValid {
		t.Fatalf("first check = %q", got)
	}

	clock.Advance(time.Second)
	if got := m.CheckStatus(ctx); got != OutcomeSkippedDebounce {
		t.Errorf("check 1s later = %q, want %q", got, OutcomeSkippedDebounce)
	}
	if got := m.ForceCheck(ctx); got != OutcomeValid {
		t.Errorf("forced check 1s later = %q, want %q", got, OutcomeValid)
	}
	if v.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", v.calls.Load())
	}

	clock.Advance(29 * time.Second)
	if got := m.CheckStatus(ctx); got != OutcomeSkippedDebounce {
		t.Errorf("check 29s after forced = %q", got)
	}
	clock.Advance(time.Second)
	if got := m.CheckStatus(ctx); got != OutcomeValid {
		t.Errorf("check 30s after forced = %q", got)
	}
	if !m.LastCheck().Equal(clock.Now()) {
		t.Errorf("LastCheck() = %v, want %v", m.LastCheck(), clock.Now())
	}
}

func TestCheckStatusAnonymous(t *testing.T) {
	v := newFakeValidator()
	v.loggedIn.Store(false)
	m := New(v)

	if got := m.CheckStatus(context.Background()); got != OutcomeAnonymous {
		t.Errorf("CheckStatus() = %q", got)
	}
	if got := m.OnBecameVisible(context.Background()); got != OutcomeAnonymous {
		t.Errorf("OnBecameVisible() = %q", got)
	}
	if got := m.OnGainedFocus(context.Background()); got != OutcomeAnonymous {
		t.Errorf("OnGainedFocus() = %q", got)
	}
	if v.calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", v.calls.Load())
	}
}

func TestHostTriggersForceCheck(t *testing.T) {
	v := newFakeValidator()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	m := New(v, WithClock(clock.Now))
	ctx := context.Background()

	m.CheckStatus(ctx)
	clock.Advance(time.Second)
	if got := m.OnBecameVisible(ctx); got != OutcomeValid {
		t.Errorf("OnBecameVisible() = %q", got)
	}
	clock.Advance(time.Second)
	if got := m.OnGainedFocus(ctx); got != OutcomeValid {
		t.Errorf("OnGainedFocus() = %q", got)
	}
	if v.calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", v.calls.Load())
	}
}

func TestCheckErrorIsSwallowed(t *testing.T) {
	v := newFakeValidator()
	v.set(false, errors.New("network unreachable"))
	router := host.NewRouter("/user/instances")
	notifier := &recordingNotifier{}
	m := New(v, WithNavigator(router), WithNotifier(notifier))
	m.Start()
	defer m.Stop()

	eventually(t, func() bool {
		return m.ForceCheck(context.Background()) == OutcomeError
	}, "ForceCheck() never reported the check error")
	if m.Status() != StatusRunning {
		t.Error("an indeterminate check must not stop the monitor")
	}
	if len(router.History()) != 0 || notifier.count() != 0 {
		t.Error("an indeterminate check must not navigate or notify")
	}
}

func TestInvalidSessionOnProtectedRoute(t *testing.T) {
	v := newFakeValidator()
	v.set(false, nil)
	router := host.NewRouter("/user/instances")
	notifier := &recordingNotifier{}
	m := New(v, WithNavigator(router), WithNotifier(notifier))

	m.Start()

	eventually(t, func() bool { return m.Status() == StatusStopped }, "monitor did not stop after an invalid check")
	eventually(t, func() bool { return router.CurrentPath() == host.PathHome }, "no navigation to home")
	if notifier.count() != 1 || notifier.messages[0] != MsgSessionExpired {
		t.Errorf("notifications = %v", notifier.messages)
	}
}

func TestInvalidSessionOnPublicRoute(t *testing.T) {
	for _, path := range host.PublicPaths {
		v := newFakeValidator()
		v.set(false, nil)
		router := host.NewRouter(path)
		notifier := &recordingNotifier{}
		m := New(v, WithNavigator(router), WithNotifier(notifier))

		if got := m.CheckStatus(context.Background()); got != OutcomeInvalid {
			t.Errorf("%s: CheckStatus() = %q", path, got)
		}
		if len(router.History()) != 0 || notifier.count() != 0 {
			t.Errorf("%s: public route should not be redirected", path)
		}
	}
}

func TestStartStopIdempotent(t *testing.T) {
	v := newFakeValidator()
	m := New(v, WithInterval(time.Hour))

	if m.Status() != StatusStopped {
		t.Errorf("initial Status() = %q", m.Status())
	}
	m.Stop()
	m.Start()
	m.Start()
	if m.Status() != StatusRunning {
		t.Errorf("Status() = %q", m.Status())
	}
	eventually(t, func() bool { return v.calls.Load() == 1 }, "immediate check did not run")

	m.Stop()
	m.Stop()
	if m.Status() != StatusStopped {
		t.Errorf("Status() = %q", m.Status())
	}

	time.Sleep(20 * time.Millisecond)
	if v.calls.Load() != 1 {
		t.Errorf("calls = %d, a second Start should not check again", v.calls.Load())
	}
}

func TestPeriodicChecks(t *testing.T) {
	v := newFakeValidator()
	m := New(v, WithInterval(10*time.Millisecond), WithDebounce(0))

	m.Start()
	eventually(t, func() bool { return v.calls.Load() >= 3 }, "periodic checks did not run")
	m.Stop()

	after := v.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if v.calls.Load() > after+1 {
		t.Errorf("checks continued after Stop: %d -> %d", after, v.calls.Load())
	}
}

func TestRestart(t *testing.T) {
	v := newFakeValidator()
	m := New(v, WithInterval(time.Hour), WithDebounce(0))

	m.Start()
	eventually(t, func() bool { return v.calls.Load() == 1 }, "first start did not check")
	m.Restart()
	eventually(t, func() bool { return v.calls.Load() == 2 }, "restart did not check")
	if m.Status() != StatusRunning {
		t.Errorf("Status() = %q", m.Status())
	}
	m.Stop()
}

func TestBindFollowsToken(t *testing.T) {
	state := session.New(nil)
	v := newFakeValidator()
	m := New(v, WithInterval(time.Hour))
	unbind := m.Bind(state)
	defer unbind()

	if m.Status() != StatusStopped {
		t.Error("anonymous state should not start the monitor")
	}

	state.SetToken("tok")
	if m.Status() != StatusRunning {
		t.Error("token set should start the monitor")
	}

	state.SetPermissions([]string{"x"})
	if m.Status() != StatusRunning {
		t.Error("unrelated mutation should keep the monitor running")
	}

	state.ClearUserData()
	if m.Status() != StatusStopped {
		t.Error("token cleared should stop the monitor")
	}

	unbind()
	state.SetToken("again")
	if m.Status() != StatusStopped {
		t.Error("unbound monitor should not react")
	}
}

func TestBindStartsWhenAlreadyLoggedIn(t *testing.T) {
	state := session.New(nil)
	state.SetToken("restored")
	m := New(newFakeValidator(), WithInterval(time.Hour))

	unbind := m.Bind(state)
	defer unbind()
	defer m.Stop()

	if m.Status() != StatusRunning {
		t.Error("Bind should start the monitor for a restored session")
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	mt := NewMetrics(reg)
	v := newFakeValidator()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	m := New(v, WithMetrics(mt), WithClock(clock.Now))

	m.CheckStatus(context.Background())
	m.CheckStatus(context.Background())

	if got := testutil.ToFloat64(mt.checks.WithLabelValues(string(OutcomeValid))); got != 1 {
		t.Errorf("valid = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mt.checks.WithLabelValues(string(OutcomeSkippedDebounce))); got != 1 {
		t.Errorf("skipped_debounce = %v, want 1", got)
	}
}

func TestMonitorWithSession(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantOutcome Outcome
		wantToken   bool
	}{
		{"valid", http.StatusOK, `{"code":0,"data":{"user":{"userType":"user"}}}`, OutcomeValid, true},
		{"upstream down keeps session", http.StatusBadGateway, `bad gateway`, OutcomeError, true},
		{"token rejected clears session", http.StatusUnauthorized, `{"code":401,"msg":"token expired"}`, OutcomeInvalid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			state := session.New(nil)
			state.SetRequester(request.New(request.Config{BaseURL: srv.URL}, request.WithTokenSource(state)))
			state.Establish("tok", session.User{UserType: "user"})

			router := host.NewRouter("/user/dashboard")
			m := New(state, WithNavigator(router))
			unbind := m.Bind(state)
			defer unbind()
			defer m.Stop()

			eventually(t, func() bool { return !m.LastCheck().IsZero() }, "bound monitor did not check")
			eventually(t, func() bool {
				got := m.ForceCheck(context.Background())
				return got == tt.wantOutcome || (!tt.wantToken && got == OutcomeAnonymous)
			}, "ForceCheck() never reported "+string(tt.wantOutcome))
			eventually(t, func() bool { return state.IsLoggedIn() == tt.wantToken }, "unexpected session state")
			if !tt.wantToken {
				eventually(t, func() bool { return m.Status() == StatusStopped }, "monitor still running")
				if router.CurrentPath() != host.PathHome {
					t.Errorf("CurrentPath() = %q", router.CurrentPath())
				}
			}
		})
	}
}
