package refresher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"stealthcompany.com/erdashboard/internal/department"
	"stealthcompany.com/erdashboard/internal/emergency"
	"stealthcompany.com/erdashboard/internal/waittime"
)

var testNow = time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)

type fakeService struct {
	calls atomic.Int32
}

func (f *fakeService) FetchAll(ctx context.Context) emergency.Result {
	f.calls.Add(1)
	return emergency.Result{Source: emergency.SourceMock, Summaries: emergency.MockSummaries()}
}

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

type recordingPublisher struct {
	mu        sync.Mutex
	snapshots []Snapshot
	published chan struct{}
	err       error
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{published: make(chan struct{}, 16)}
}

func (p *recordingPublisher) Publish(ctx context.Context, s Snapshot) error {
	p.mu.Lock()
	p.snapshots = append(p.snapshots, s)
	p.mu.Unlock()
	p.published <- struct{}{}
	return p.err
}

func (p *recordingPublisher) waitFor(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-p.published:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for publication %d", i+1)
		}
	}
}

func newTestRefresher(svc DataService, ticker *manualTicker, publishers ...Publisher) *Refresher {
	return New(svc, Options{
		Interval:  time.Minute,
		Clock:     waittime.ClockFunc(func() time.Time { return testNow }),
		Limiter:   rate.NewLimiter(0, 1),
		NewTicker: func(time.Duration) Ticker { return ticker },
	}, publishers...)
}

func TestRefresher_LatestBeforeFirstCycle(t *testing.T) {
	r := newTestRefresher(&fakeService{}, &manualTicker{ch: make(chan time.Time)})

	_, ok := r.Latest()
	assert.False(t, ok)
}

func TestRefresher_StartRunsImmediatelyAndOnEveryTick(t *testing.T) {
	svc := &fakeService{}
	ticker := &manualTicker{ch: make(chan time.Time)}
	pub := newRecordingPublisher()
	r := newTestRefresher(svc, ticker, pub)

	r.Start(context.Background())
	pub.waitFor(t, 1)

	ticker.ch <- testNow
	pub.waitFor(t, 1)
	ticker.ch <- testNow
	pub.waitFor(t, 1)

	r.Stop()

	assert.EqualValues(t, 3, svc.calls.Load())
	assert.True(t, ticker.stopped.Load())

	snapshot, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, testNow, snapshot.UpdatedAt)
	assert.Equal(t, emergency.SourceMock, snapshot.Source)
	assert.Len(t, snapshot.Rooms, 3)
	assert.NotEmpty(t, snapshot.CycleID)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.snapshots, 3)
	assert.NotEqual(t, pub.snapshots[0].CycleID, pub.snapshots[1].CycleID)
}

func TestRefresher_StartTwiceAndStopTwice(t *testing.T) {
	svc := &fakeService{}
	pub := newRecordingPublisher()
	r := newTestRefresher(svc, &manualTicker{ch: make(chan time.Time)}, pub)

	r.Start(context.Background())
	r.Start(context.Background())
	pub.waitFor(t, 1)

	r.Stop()
	r.Stop()

	assert.EqualValues(t, 1, svc.calls.Load())
}

func TestRefresher_StopsWhenContextIsCancelled(t *testing.T) {
	pub := newRecordingPublisher()
	r := newTestRefresher(&fakeService{}, &manualTicker{ch: make(chan time.Time)}, pub)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	pub.waitFor(t, 1)
	cancel()

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}

func TestRefresher_RefreshIsRateLimited(t *testing.T) {
	svc := &fakeService{}
	pub := newRecordingPublisher()
	r := newTestRefresher(svc, &manualTicker{ch: make(chan time.Time)}, pub)

	snapshot, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot.Rooms, 3)
	pub.waitFor(t, 1)

	_, err = r.Refresh(context.Background())
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.EqualValues(t, 1, svc.calls.Load())

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, snapshot.CycleID, latest.CycleID)
}

func TestRefresher_PublisherErrorsDoNotStopOthers(t *testing.T) {
	failing := newRecordingPublisher()
	failing.err = errors.New("store unavailable")
	healthy := newRecordingPublisher()
	r := newTestRefresher(&fakeService{}, &manualTicker{ch: make(chan time.Time)}, failing, healthy)

	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	failing.waitFor(t, 1)
	healthy.waitFor(t, 1)
}

func TestRefresher_LatestReturnsCopy(t *testing.T) {
	r := newTestRefresher(&fakeService{}, &manualTicker{ch: make(chan time.Time)})
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	first, _ := r.Latest()
	first.Rooms[0].PatientsOnScreen = 999

	second, _ := r.Latest()
	assert.Equal(t, 14, second.Rooms[0].PatientsOnScreen)
}

func TestRefresher_SeedOnlyBeforeFirstCycle(t *testing.T) {
	r := newTestRefresher(&fakeService{}, &manualTicker{ch: make(chan time.Time)})

	stored := Snapshot{CycleID: "stored", Source: emergency.SourceLive}
	assert.True(t, r.Seed(stored))

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, "stored", latest.CycleID)

	fresh, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, r.Seed(stored))

	latest, _ = r.Latest()
	assert.Equal(t, fresh.CycleID, latest.CycleID)
}

// gatedService blocks each FetchAll until released. A cancelled context yields
// the all-empty result a real fan-out produces when every fetch is aborted.
type gatedService struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGatedService() *gatedService {
	return &gatedService{entered: make(chan struct{}, 4), release: make(chan struct{})}
}

func (g *gatedService) FetchAll(ctx context.Context) emergency.Result {
	n := g.calls.Add(1)
	if n > 1 {
		g.entered <- struct{}{}
		select {
		case <-g.release:
		case <-ctx.Done():
			empty := make([]emergency.DepartmentSummary, 0, 3)
			for _, d := range department.Defaults() {
				empty = append(empty, emergency.EmptySummary(d))
			}
			return emergency.Result{Source: emergency.SourceLive, Summaries: empty}
		}
	}
	return emergency.Result{Source: emergency.SourceLive, Summaries: emergency.MockSummaries()}
}

func TestRefresher_AbandonedRefreshKeepsSnapshotAndCompletes(t *testing.T) {
	svc := newGatedService()
	pub := newRecordingPublisher()
	r := New(svc, Options{
		Clock:     waittime.ClockFunc(func() time.Time { return testNow }),
		Limiter:   rate.NewLimiter(rate.Inf, 1),
		NewTicker: func(time.Duration) Ticker { return &manualTicker{ch: make(chan time.Time)} },
	}, pub)

	first, err := r.Refresh(context.Background())
	require.NoError(t, err)
	pub.waitFor(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := r.Refresh(ctx)
		result <- err
	}()

	<-svc.entered
	cancel()
	assert.ErrorIs(t, <-result, context.Canceled)

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, first.CycleID, latest.CycleID, "an abandoned request must not replace the snapshot")
	assert.Equal(t, 14, latest.Rooms[0].PatientsOnScreen)

	close(svc.release)
	pub.waitFor(t, 1)

	latest, _ = r.Latest()
	assert.NotEqual(t, first.CycleID, latest.CycleID)
	assert.Equal(t, 14, latest.Rooms[0].PatientsOnScreen, "the cycle ran to completion with live data")
}

func TestRefresher_StopLetsInFlightCycleFinish(t *testing.T) {
	svc := newGatedService()
	svc.calls.Store(1)
	pub := newRecordingPublisher()
	r := newTestRefresher(svc, &manualTicker{ch: make(chan time.Time)}, pub)

	r.Start(context.Background())
	<-svc.entered

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight cycle finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(svc.release)
	<-stopped
	pub.waitFor(t, 1)

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, 14, latest.Rooms[0].PatientsOnScreen)
}
