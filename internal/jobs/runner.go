package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"whitepaper-console/internal/shared/metrics"
	"whitepaper-console/internal/shared/telemetry"
	"whitepaper-console/internal/shared/util"
)

// Observation is the outcome of one status fetch.
type Observation struct {
	Status  string
	Detail  string
	Payload json.RawMessage
}

// FetchFunc performs one status check against the pipeline.
type FetchFunc func(ctx context.Context) (Observation, error)

// ApplyFunc consumes a successful observation. Returning false ends the loop:
// the owner saw a terminal status or decided the observation is stale.
type ApplyFunc func(obs Observation, tick int) bool

// Runner drives one poll loop at a fixed interval. Fetch errors are counted
// and skipped so a flaky network cannot abandon a job that is still moving
// upstream; the loop ends on a terminal observation, Stop, context
// cancellation, or the elapsed-time ceiling.
type Runner struct {
	Interval   time.Duration
	MaxElapsed time.Duration // 0 disables the ceiling
	Kind       string
	JobID      string
	Fetch      FetchFunc
	Apply      ApplyFunc
	OnDeadline func()

	// NewTicker lets tests drive ticks manually. Nil uses time.Ticker.
	NewTicker func(d time.Duration) (<-chan time.Time, func())

	mu     sync.Mutex
	gen    int
	cancel context.CancelFunc
}

// Start begins polling, first cancelling any loop already running so at most
// one is active per Runner.
func (r *Runner) Start(ctx context.Context) {
	if r.Fetch == nil || r.Apply == nil {
		telemetry.Error("poll.misconfigured", map[string]any{"kind": r.Kind, "job_id": r.JobID})
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.gen++
	gen := r.gen
	r.cancel = cancel
	r.mu.Unlock()

	go r.loop(runCtx, gen)
}

// Stop cancels the active loop. Safe to call repeatedly and concurrently.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
}

// stopGen cancels the loop only if it is still the one identified by gen,
// so a finished loop never tears down a successor started in the meantime.
func (r *Runner) stopGen(gen int) {
	r.mu.Lock()
	if r.gen == gen && r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
}

func (r *Runner) loop(ctx context.Context, gen int) {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	newTicker := r.NewTicker
	if newTicker == nil {
		newTicker = func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		}
	}
	ticks, stopTicks := newTicker(interval)
	defer stopTicks()

	var deadline <-chan time.Time
	if r.MaxElapsed > 0 {
		timer := time.NewTimer(r.MaxElapsed)
		defer timer.Stop()
		deadline = timer.C
	}

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			r.stopGen(gen)
			metrics.IncPollDeadline()
			telemetry.Warn("poll.deadline", map[string]any{
				"kind":    r.Kind,
				"job_id":  r.JobID,
				"ticks":   tick,
				"elapsed": r.MaxElapsed.String(),
			})
			if r.OnDeadline != nil {
				r.OnDeadline()
			}
			return
		case <-ticks:
		}

		tick++
		obs, err := r.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.IncPollTransientError()
			telemetry.Warn("poll.transient", map[string]any{
				"kind":   r.Kind,
				"job_id": r.JobID,
				"tick":   tick,
				"error":  util.SanitizeError(err),
			})
			continue
		}
		metrics.IncPollTick()

		if !r.Apply(obs, tick) {
			r.stopGen(gen)
			return
		}
	}
}
