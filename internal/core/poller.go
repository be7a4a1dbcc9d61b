package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benvon/chronos-console/internal/api"
	"github.com/benvon/chronos-console/internal/store"
)

// ErrPollInFlight is returned when a poll is requested while one is running
var ErrPollInFlight = errors.New("poll already in flight")

// Poller fetches the dashboard on a fixed interval and feeds the stores
type Poller struct {
	backend    Backend
	normalizer *Normalizer
	stores     *store.Stores
	notifier   *Notifier
	recorder   *Recorder
	metrics    *Metrics
	clock      Clock
	interval   time.Duration
	logger     *slog.Logger

	seq            atomic.Uint64
	inFlight       atomic.Bool
	limitsLoaded   atomic.Bool
	sessionExpired atomic.Bool
}

// NewPoller creates a new poller
func NewPoller(
	backend Backend,
	normalizer *Normalizer,
	stores *store.Stores,
	notifier *Notifier,
	recorder *Recorder,
	metrics *Metrics,
	clock Clock,
	interval time.Duration,
	logger *slog.Logger,
) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		backend:    backend,
		normalizer: normalizer,
		stores:     stores,
		notifier:   notifier,
		recorder:   recorder,
		metrics:    metrics,
		clock:      clock,
		interval:   interval,
		logger:     logger,
	}
}

// Run polls immediately and then on every tick until ctx is done. A tick
// that arrives while a poll is still running is skipped.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Starting poller", "interval", p.interval)

	var wg sync.WaitGroup
	defer wg.Wait()

	poll := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.PollOnce(ctx); err != nil && !errors.Is(err, ErrPollInFlight) {
				p.logger.Debug("Poll failed", "error", err)
			}
		}()
	}

	poll()

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return
		case <-ticker.C():
			poll()
		}
	}
}

// PollOnce fetches the dashboard once and dispatches the result
func (p *Poller) PollOnce(ctx context.Context) error {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Debug("Skipping poll, previous one still running")
		return ErrPollInFlight
	}
	defer p.inFlight.Store(false)

	seq := p.seq.Add(1)
	start := p.clock.Now()
	payload, err := p.backend.GetDashboard(ctx)
	at := p.clock.Now()
	if p.metrics != nil {
		p.metrics.ObservePoll(at.Sub(start), err)
	}

	if err != nil {
		p.handleFailure(seq, at, err)
		return fmt.Errorf("polling dashboard: %w", err)
	}

	d := p.normalizer.NormalizeDashboard(payload, at)
	action := store.PollSucceeded{Seq: seq, Dashboard: d, At: at}
	prev, next := p.stores.Season.DispatchWithPrev(action)
	p.stores.Overrides.Dispatch(action)
	p.stores.Telemetry.Dispatch(action)

	if next.Generation != seq {
		p.logger.Debug("Dropped stale poll result", "seq", seq, "generation", next.Generation)
		return nil
	}

	p.sessionExpired.Store(false)
	if p.metrics != nil {
		p.metrics.SetLockoutRemaining(next.Remaining)
	}
	if prev.ConsecutiveFailures > 0 {
		p.logger.Info("Edge server reachable again", "failures", prev.ConsecutiveFailures)
		p.notifier.Success(MsgFetchRecovered)
		p.limitsLoaded.Store(false)
	}
	if !p.limitsLoaded.Load() {
		p.refreshLimits(ctx)
	}

	p.logger.Debug("Polled dashboard",
		"season", d.Season.String(),
		"read_only", d.ReadOnly,
		"switching", next.IsSwitching)

	p.recorder.RecordSnapshot(ctx, d, true)
	return nil
}

func (p *Poller) handleFailure(seq uint64, at time.Time, err error) {
	prev, next := p.stores.Season.DispatchWithPrev(store.PollFailed{Seq: seq, Err: err, At: at})
	if next.Generation != seq {
		return
	}

	var authErr *api.AuthExpiredError
	if errors.As(err, &authErr) {
		if p.sessionExpired.CompareAndSwap(false, true) {
			p.notifier.Error(MsgSessionExpired)
		}
		return
	}

	if prev.ConsecutiveFailures == 0 {
		p.logger.Error("Failed to fetch dashboard", "error", err)
		p.notifier.Error(MsgFetchFailed)
		return
	}
	p.logger.Warn("Dashboard still unreachable", "failures", next.ConsecutiveFailures, "error", err)
}

// refreshLimits loads the setpoint limits; the configured ones stay on failure
func (p *Poller) refreshLimits(ctx context.Context) {
	limits, err := p.backend.TemperatureLimits(ctx)
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && !apiErr.Retriable() {
		// Backend has no limits endpoint
		p.logger.Info("Temperature limits not served, keeping configured ones", "status", apiErr.StatusCode)
		p.limitsLoaded.Store(true)
		return
	}
	if err != nil {
		p.logger.Warn("Failed to load temperature limits, keeping configured ones", "error", err)
		return
	}
	current := p.stores.Telemetry.Snapshot().Limits
	p.stores.Telemetry.Dispatch(store.LimitsLoaded{Limits: p.normalizer.NormalizeLimits(limits, current)})
	p.limitsLoaded.Store(true)
}

