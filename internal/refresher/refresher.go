package refresher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"stealthcompany.com/erdashboard/internal/emergency"
	"stealthcompany.com/erdashboard/internal/metrics"
	"stealthcompany.com/erdashboard/internal/waittime"
)

// DefaultInterval is the polling cadence used when none is configured
const DefaultInterval = 30 * time.Second

// ErrRateLimited is returned by Refresh when on-demand refreshes arrive too quickly
var ErrRateLimited = errors.New("refresh rate limited")

// Snapshot is the result of one refresh cycle
type Snapshot struct {
	CycleID   string                        `json:"cycleId"`
	UpdatedAt time.Time                     `json:"updatedAt"`
	Source    emergency.Source              `json:"source"`
	Rooms     []emergency.DepartmentSummary `json:"rooms"`
}

// DataService produces the department summaries of one cycle
type DataService interface {
	FetchAll(ctx context.Context) emergency.Result
}

// Publisher receives every new snapshot
type Publisher interface {
	Publish(ctx context.Context, snapshot Snapshot) error
}

// Ticker delivers the polling ticks
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }

// Options configures a Refresher; zero values select the defaults
type Options struct {
	Interval  time.Duration
	Clock     waittime.Clock
	Limiter   *rate.Limiter
	NewTicker func(time.Duration) Ticker
}

// Refresher runs refresh cycles on a fixed interval and on demand, keeps the
// latest snapshot and hands every new snapshot to its publishers
type Refresher struct {
	service    DataService
	publishers []Publisher
	interval   time.Duration
	clock      waittime.Clock
	limiter    *rate.Limiter
	newTicker  func(time.Duration) Ticker

	mu     sync.RWMutex
	latest *Snapshot

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
}

// New creates a stopped Refresher
func New(service DataService, opts Options, publishers ...Publisher) *Refresher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = waittime.SystemClock
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(5*time.Second), 1)
	}
	if opts.NewTicker == nil {
		opts.NewTicker = newTimeTicker
	}

	return &Refresher{
		service:    service,
		publishers: publishers,
		interval:   opts.Interval,
		clock:      opts.Clock,
		limiter:    opts.Limiter,
		newTicker:  opts.NewTicker,
	}
}

// Start runs a cycle immediately and then one per interval until Stop is called
// or ctx is done. Starting a running Refresher does nothing.
func (r *Refresher) Start(ctx context.Context) {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if r.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	log.Info().Dur("interval", r.interval).Msg("Starting refresh loop")

	go r.loop(loopCtx, r.done)
}

// Stop ends the refresh loop and waits for an in-flight cycle to finish
func (r *Refresher) Stop() {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if r.cancel == nil {
		return
	}

	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil

	log.Info().Msg("Refresh loop stopped")
}

func (r *Refresher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := r.newTicker(r.interval)
	defer ticker.Stop()

	// Stop waits for an in-flight cycle instead of cutting its fetches short
	cycleCtx := context.WithoutCancel(ctx)

	r.runCycle(cycleCtx, "scheduled")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			r.runCycle(cycleCtx, "scheduled")
		}
	}
}

// Refresh runs a cycle on demand, as a pull-to-refresh does. The cycle always
// completes and replaces the snapshot; ctx only bounds how long the caller waits.
func (r *Refresher) Refresh(ctx context.Context) (Snapshot, error) {
	if !r.limiter.Allow() {
		metrics.RecordRefreshRequest("rate_limited")
		return Snapshot{}, ErrRateLimited
	}
	metrics.RecordRefreshRequest("success")

	done := make(chan Snapshot, 1)
	go func() {
		done <- r.runCycle(context.WithoutCancel(ctx), "on_demand")
	}()

	select {
	case snapshot := <-done:
		return snapshot, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Latest returns the most recent snapshot; ok is false before the first cycle completes
func (r *Refresher) Latest() (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.latest == nil {
		return Snapshot{}, false
	}
	snapshot := *r.latest
	snapshot.Rooms = append([]emergency.DepartmentSummary(nil), r.latest.Rooms...)
	return snapshot, true
}

// Seed installs a previously stored snapshot when no cycle has completed yet
func (r *Refresher) Seed(snapshot Snapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.latest != nil {
		return false
	}
	r.latest = &snapshot
	return true
}

func (r *Refresher) runCycle(ctx context.Context, trigger string) Snapshot {
	start := time.Now()
	cycleID := uuid.NewString()

	result := r.service.FetchAll(ctx)

	snapshot := Snapshot{
		CycleID:   cycleID,
		UpdatedAt: r.clock.Now(),
		Source:    result.Source,
		Rooms:     result.Summaries,
	}

	r.mu.Lock()
	r.latest = &snapshot
	r.mu.Unlock()

	metrics.RecordRefreshCycle(string(result.Source), time.Since(start))
	log.Info().
		Str("cycle_id", cycleID).
		Str("trigger", trigger).
		Str("source", string(result.Source)).
		Int("failed_departments", len(result.Failures)).
		Dur("duration", time.Since(start)).
		Msg("Refresh cycle completed")

	for _, p := range r.publishers {
		if err := p.Publish(ctx, snapshot); err != nil {
			log.Error().
				Err(err).
				Str("cycle_id", cycleID).
				Msg("Failed to publish snapshot")
		}
	}

	return snapshot
}
