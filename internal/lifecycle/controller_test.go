package lifecycle

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testInstance = "postgres-db"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
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

// fakeTimer fires immediately after moving the clock forward.
type fakeTimer struct {
	clock *fakeClock
	c     chan time.Time
}

func (t *fakeTimer) Start(d time.Duration) {
	t.clock.Advance(d)
	t.c <- t.clock.Now()
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

type fakePlane struct {
	clock *fakeClock

	statuses  []InstanceState // served in order, the last one repeats
	statusErr error

	startState InstanceState
	startErr   error
	stopState  InstanceState
	stopErr    error

	statusCalls int
	startCalls  int
	stopCalls   int
	pollTimes   []time.Time
}

func (p *fakePlane) Status(_ context.Context, id string) (InstanceState, error) {
	p.statusCalls++
	p.pollTimes = append(p.pollTimes, p.clock.Now())
	if p.statusErr != nil {
		return "", p.statusErr
	}
	i := p.statusCalls - 1
	if i >= len(p.statuses) {
		i = len(p.statuses) - 1
	}
	return p.statuses[i], nil
}

func (p *fakePlane) Start(_ context.Context, id string) (InstanceState, error) {
	p.startCalls++
	return p.startState, p.startErr
}

func (p *fakePlane) Stop(_ context.Context, id string) (InstanceState, error) {
	p.stopCalls++
	return p.stopState, p.stopErr
}

func (p *fakePlane) calls() int {
	return p.statusCalls + p.startCalls + p.stopCalls
}

type fakeSession struct{}

func (s *fakeSession) Exec(context.Context, string) (int64, error) { return 0, nil }

func (s *fakeSession) CopyFrom(context.Context, io.Reader, string) (int64, error) { return 0, nil }

func (s *fakeSession) Ping(context.Context) error { return nil }

func (s *fakeSession) Close(context.Context) error { return nil }

// fakeDialer fails or succeeds per attempt; the last entry repeats.
type fakeDialer struct {
	errs      []error
	calls     int
	databases []string
}

func (d *fakeDialer) Dial(_ context.Context, database string) (Session, error) {
	d.calls++
	d.databases = append(d.databases, database)
	i := d.calls - 1
	if i >= len(d.errs) {
		i = len(d.errs) - 1
	}
	if err := d.errs[i]; err != nil {
		return nil, err
	}
	return &fakeSession{}, nil
}

var errUnreachable = errors.New("dial tcp: connection refused")

func newTestController(plane *fakePlane, dialer *fakeDialer, restartAfterStop bool) (*Controller, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	clock := plane.clock
	c := New(plane, dialer, Config{
		InstanceID:       testInstance,
		Policy:           DefaultRetryPolicy(),
		RestartAfterStop: restartAfterStop,
	},
		WithLogger(zap.New(core)),
		WithClock(clock, func() backoff.Timer {
			return &fakeTimer{clock: clock, c: make(chan time.Time, 1)}
		}),
	)
	return c, logs
}

func TestConnect_ReachableDatabaseSkipsControlPlane(t *testing.T) {
	plane := &fakePlane{clock: newFakeClock()}
	dialer := &fakeDialer{errs: []error{nil}}
	c, _ := newTestController(plane, dialer, false)

	session := c.Connect(context.Background(), "postgres")

	require.NotNil(t, session)
	assert.Equal(t, 0, plane.calls())
	assert.Equal(t, 1, dialer.calls)
	assert.Equal(t, []string{"postgres"}, dialer.databases)
}

func TestConnect_AlreadyStoppedStartsAndRetriesOnce(t *testing.T) {
	plane := &fakePlane{
		clock:      newFakeClock(),
		stopErr:    ErrStateConflict,
		startState: StateStarting,
		statuses:   []InstanceState{StateStarting, StateAvailable},
	}
	dialer := &fakeDialer{errs: []error{errUnreachable, nil}}
	c, _ := newTestController(plane, dialer, false)

	session := c.Connect(context.Background(), "analytics")

	require.NotNil(t, session)
	assert.Equal(t, 2, dialer.calls)
	assert.Equal(t, []string{"analytics", "analytics"}, dialer.databases)
	assert.Equal(t, 1, plane.stopCalls)
	assert.Equal(t, 1, plane.startCalls)
	assert.Equal(t, 2, plane.statusCalls, "start should converge after two polls")
}

func TestConnect_RetryAfterRestartFails(t *testing.T) {
	plane := &fakePlane{
		clock:      newFakeClock(),
		stopErr:    ErrStateConflict,
		startState: StateStarting,
		statuses:   []InstanceState{StateAvailable},
	}
	dialer := &fakeDialer{errs: []error{errUnreachable}}
	c, logs := newTestController(plane, dialer, false)

	session := c.Connect(context.Background(), "postgres")

	assert.Nil(t, session)
	assert.Equal(t, 2, dialer.calls, "connection is retried exactly once")
	assert.Equal(t, 1, logs.FilterMessage("cannot connect after restarting instance").Len())
}

func TestConnect_StartFailureReturnsSentinel(t *testing.T) {
	plane := &fakePlane{
		clock:    newFakeClock(),
		stopErr:  ErrStateConflict,
		startErr: errors.New("AccessDenied"),
	}
	dialer := &fakeDialer{errs: []error{errUnreachable, nil}}
	c, logs := newTestController(plane, dialer, false)

	session := c.Connect(context.Background(), "postgres")

	assert.Nil(t, session)
	assert.Equal(t, 1, dialer.calls)
	assert.Equal(t, 0, plane.statusCalls)
	assert.Equal(t, 1, logs.FilterMessage("cannot start instance").Len())
}

func TestConnect_StoppedRunningInstanceIsNotRestarted(t *testing.T) {
	plane := &fakePlane{
		clock:     newFakeClock(),
		stopState: StateStopping,
		statuses:  []InstanceState{StateStopping, StateStopped},
	}
	dialer := &fakeDialer{errs: []error{errUnreachable, nil}}
	c, logs := newTestController(plane, dialer, false)

	session := c.Connect(context.Background(), "postgres")

	assert.Nil(t, session)
	assert.Equal(t, 1, plane.stopCalls)
	assert.Equal(t, 0, plane.startCalls)
	assert.Equal(t, 1, dialer.calls)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestConnect_RestartAfterStopStartsRunningInstance(t *testing.T) {
	plane := &fakePlane{
		clock:      newFakeClock(),
		stopState:  StateStopping,
		startState: StateStarting,
		statuses:   []InstanceState{StateStopped, StateStarting, StateAvailable},
	}
	dialer := &fakeDialer{errs: []error{errUnreachable, nil}}
	c, _ := newTestController(plane, dialer, true)

	session := c.Connect(context.Background(), "postgres")

	require.NotNil(t, session)
	assert.Equal(t, 1, plane.stopCalls)
	assert.Equal(t, 1, plane.startCalls)
	assert.Equal(t, 3, plane.statusCalls)
	assert.Equal(t, 2, dialer.calls)
}

func TestConnect_StopNeverConverges(t *testing.T) {
	plane := &fakePlane{
		clock:     newFakeClock(),
		stopState: StateStopping,
		statuses:  []InstanceState{StateStopping},
	}
	dialer := &fakeDialer{errs: []error{errUnreachable, nil}}
	c, logs := newTestController(plane, dialer, true)

	session := c.Connect(context.Background(), "postgres")

	assert.Nil(t, session)
	assert.Equal(t, 3, plane.statusCalls)
	assert.Equal(t, 0, plane.startCalls)
	assert.Equal(t, 1, dialer.calls)

	entries := logs.FilterMessage("cannot stop instance").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "timed-out", entries[0].ContextMap()["outcome"])
}

func TestStopInstance_TimesOut(t *testing.T) {
	plane := &fakePlane{
		clock:     newFakeClock(),
		stopState: StateStopping,
		statuses:  []InstanceState{StateStopping},
	}
	c, _ := newTestController(plane, &fakeDialer{errs: []error{nil}}, false)

	res, err := c.StopInstance(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConvergenceTimeout)
	assert.Equal(t, OutcomeTimedOut, res.Outcome)
	assert.Equal(t, 3, res.Polls)
	assert.Equal(t, StateStopping, res.State)
}

func TestWaitForState_PollsAtMostThreeTimes(t *testing.T) {
	plane := &fakePlane{
		clock:      newFakeClock(),
		startState: StateStarting,
		statuses:   []InstanceState{StateStarting},
	}
	c, logs := newTestController(plane, &fakeDialer{errs: []error{nil}}, false)

	res, err := c.StartInstance(context.Background())

	assert.ErrorIs(t, err, ErrConvergenceTimeout)
	assert.Equal(t, 3, res.Polls)
	require.Len(t, plane.pollTimes, 3)
	for i := 1; i < len(plane.pollTimes); i++ {
		gap := plane.pollTimes[i].Sub(plane.pollTimes[i-1])
		assert.GreaterOrEqual(t, gap, DefaultPollInterval)
	}

	progress := logs.FilterMessage("waiting for instance update to complete").All()
	require.Len(t, progress, 2)
	assert.Equal(t, 45*time.Second, progress[0].ContextMap()["elapsed"])
	assert.Equal(t, 90*time.Second, progress[1].ContextMap()["elapsed"])
}

func TestWaitForState_DescribeErrorIsNotRetried(t *testing.T) {
	describeErr := errors.New("throttled")
	plane := &fakePlane{
		clock:      newFakeClock(),
		startState: StateStarting,
		statusErr:  describeErr,
	}
	c, _ := newTestController(plane, &fakeDialer{errs: []error{nil}}, false)

	res, err := c.StartInstance(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, describeErr)
	assert.NotErrorIs(t, err, ErrConvergenceTimeout)
	assert.Equal(t, 1, res.Polls)
}

func TestWaitForState_CustomRetryablePredicate(t *testing.T) {
	describeErr := errors.New("throttled")
	plane := &fakePlane{
		clock:      newFakeClock(),
		startState: StateStarting,
		statusErr:  describeErr,
	}
	clock := plane.clock
	policy := DefaultRetryPolicy()
	policy.Retryable = func(err error) bool { return true }
	c := New(plane, &fakeDialer{errs: []error{nil}}, Config{InstanceID: testInstance, Policy: policy},
		WithClock(clock, func() backoff.Timer {
			return &fakeTimer{clock: clock, c: make(chan time.Time, 1)}
		}),
	)

	_, err := c.StartInstance(context.Background())

	assert.ErrorIs(t, err, describeErr)
	assert.Equal(t, 3, plane.statusCalls)
}

func TestWaitForState_ContextCancelled(t *testing.T) {
	plane := &fakePlane{
		clock:      newFakeClock(),
		startState: StateStarting,
		statuses:   []InstanceState{StateStarting},
	}
	c, _ := newTestController(plane, &fakeDialer{errs: []error{nil}}, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.StartInstance(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, plane.statusCalls)
}

func TestStartInstance_AlreadyAvailable(t *testing.T) {
	plane := &fakePlane{
		clock:    newFakeClock(),
		startErr: ErrStateConflict,
	}
	c, logs := newTestController(plane, &fakeDialer{errs: []error{nil}}, false)

	res, err := c.StartInstance(context.Background())

	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyInState, res.Outcome)
	assert.Equal(t, 0, res.Polls)
	assert.Equal(t, 1, plane.startCalls)
	assert.Equal(t, 0, plane.statusCalls)
	assert.Equal(t, 1, logs.FilterMessage("instance is already started").Len())
}

func TestStopInstance_AlreadyStopped(t *testing.T) {
	plane := &fakePlane{
		clock:   newFakeClock(),
		stopErr: ErrStateConflict,
	}
	c, _ := newTestController(plane, &fakeDialer{errs: []error{nil}}, false)

	res, err := c.StopInstance(context.Background())

	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyInState, res.Outcome)
	assert.Equal(t, 0, plane.statusCalls)
}

func TestStartInstance_Converges(t *testing.T) {
	plane := &fakePlane{
		clock:      newFakeClock(),
		startState: StateStarting,
		statuses:   []InstanceState{StateStarting, StateAvailable},
	}
	c, _ := newTestController(plane, &fakeDialer{errs: []error{nil}}, false)

	res, err := c.StartInstance(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Result{Outcome: OutcomeConverged, Polls: 2, State: StateAvailable}, res)
}

func TestNew_ZeroPolicyUsesDefaults(t *testing.T) {
	c := New(&fakePlane{}, &fakeDialer{}, Config{InstanceID: testInstance})

	assert.Equal(t, DefaultPollInterval, c.policy.Interval)
	assert.Equal(t, DefaultMaxWait, c.policy.MaxWait)
	assert.Equal(t, testInstance, c.InstanceID())
}

func TestStatus_WrapsError(t *testing.T) {
	plane := &fakePlane{clock: newFakeClock(), statusErr: errors.New("boom")}
	c, _ := newTestController(plane, &fakeDialer{errs: []error{nil}}, false)

	_, err := c.Status(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), testInstance)
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := &keyedMutex{locks: make(map[string]*sync.Mutex)}

	unlock := k.Lock("a")
	acquired := make(chan struct{})
	go func() {
		release := k.Lock("a")
		close(acquired)
		release()
	}()

	// A different key must not block.
	k.Lock("b")()

	select {
	case <-acquired:
		t.Fatal("second lock on the same key acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	<-acquired
}
