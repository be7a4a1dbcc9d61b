package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benvon/chronos-console/internal/api"
	"github.com/benvon/chronos-console/internal/store"
	"github.com/benvon/chronos-console/pkg/model"
)

// Action names recorded in the journal
const (
	ActionSeasonSwitch = "season_switch"
	ActionOverride     = "override"
	ActionSettings     = "settings"
	ActionSetpoint     = "boiler_setpoint"
)

// SeasonController requests season switches and runs the lockout countdown
type SeasonController struct {
	backend    Backend
	normalizer *Normalizer
	stores     *store.Stores
	notifier   *Notifier
	recorder   *Recorder
	metrics    *Metrics
	clock      Clock
	interval   time.Duration
	logger     *slog.Logger
}

// NewSeasonController creates a season controller ticking every interval
func NewSeasonController(
	backend Backend,
	normalizer *Normalizer,
	stores *store.Stores,
	notifier *Notifier,
	recorder *Recorder,
	metrics *Metrics,
	clock Clock,
	interval time.Duration,
	logger *slog.Logger,
) *SeasonController {
	if interval <= 0 {
		interval = time.Second
	}
	return &SeasonController{
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

// RequestSwitch asks the controller to change season. Requests made while a
// switch or lockout is active, or for the current season, are silently
// ignored; at most one request is in flight at a time.
func (c *SeasonController) RequestSwitch(ctx context.Context, target model.Season) error {
	mode, err := target.Mode()
	if err != nil {
		return &ValidationError{Field: "season", Message: err.Error()}
	}

	if c.stores.Season.Snapshot().ReadOnly {
		c.notifier.Warning(MsgReadOnly)
		c.recorder.RecordAction(ctx, ActionSeasonSwitch, target.String(), target.String(), model.OutcomeRejected, MsgReadOnly)
		return ErrReadOnly
	}

	prev, next := c.stores.Season.DispatchWithPrev(store.SwitchRequested{Target: target, At: c.clock.Now()})
	if prev.IsSwitching || !next.IsSwitching {
		c.logger.Debug("Ignoring season switch request",
			"target", target.String(),
			"season", prev.Season.String(),
			"switching", prev.IsSwitching,
			"read_only", prev.ReadOnly)
		return nil
	}

	c.logger.Info("Requesting season switch", "from", prev.Season.String(), "to", target.String())
	resp, err := c.backend.SwitchSeason(ctx, mode)
	if err != nil {
		msg := failureMessage(err, MsgSwitchFailed)
		return c.fail(ctx, prev.Season, target, false, msg, err)
	}
	if !resp.Succeeded() {
		msg := MsgSwitchFailed
		if resp.ManualOverride {
			msg = MsgSwitchOverride
		} else if resp.Message != "" {
			msg = resp.Message
		}
		return c.fail(ctx, prev.Season, target, resp.ManualOverride, msg, nil)
	}

	unlock, err := c.normalizer.ParseTimestamp(resp.UnlockTime)
	if err != nil {
		c.logger.Warn("Ignoring unparseable unlock time", "unlock_time", resp.UnlockTime, "error", err)
	}
	state := c.stores.Season.Dispatch(store.SwitchAccepted{UnlockAt: unlock, At: c.clock.Now()})
	if c.metrics != nil {
		c.metrics.SetLockoutRemaining(state.Remaining)
	}

	msg := resp.Message
	if msg == "" {
		msg = fmt.Sprintf("Switching to %s", target)
	}
	c.notifier.Success(msg)
	c.recorder.RecordAction(ctx, ActionSeasonSwitch, target.String(), target.String(), model.OutcomeAccepted, msg)
	if !state.IsSwitching {
		c.logger.Warn("Season switch accepted without a lockout", "to", target.String(), "unlock_time", resp.UnlockTime)
	}
	c.logger.Info("Season switch accepted", "to", target.String(), "unlock_time", unlock, "remaining", state.Remaining)
	return nil
}

func (c *SeasonController) fail(ctx context.Context, previous, target model.Season, manual bool, msg string, cause error) error {
	c.stores.Season.Dispatch(store.SwitchFailed{Previous: previous, ManualOverride: manual})
	c.notifier.Error(msg)
	c.recorder.RecordAction(ctx, ActionSeasonSwitch, target.String(), target.String(), model.OutcomeFailed, msg)
	c.logger.Error("Season switch failed", "to", target.String(), "manual_override", manual, "error", cause)
	return &SwitchRequestError{Target: target, Message: msg, ManualOverride: manual, Err: cause}
}

// Tick recomputes the lockout countdown at now and returns the time remaining
func (c *SeasonController) Tick(now time.Time) time.Duration {
	prev, next := c.stores.Season.DispatchWithPrev(store.CountdownTicked{Now: now})
	if c.metrics != nil {
		c.metrics.SetLockoutRemaining(next.Remaining)
	}
	if prev.IsSwitching && !next.IsSwitching {
		c.logger.Info("Season lockout expired", "season", next.Season.String())
	}
	return next.Remaining
}

// Run ticks the countdown until ctx is done
func (c *SeasonController) Run(ctx context.Context) {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			c.Tick(now)
		}
	}
}

// FormatCountdown renders a remaining duration as m:ss, rounding down
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// failureMessage picks the banner text for a failed backend call
func failureMessage(err error, fallback string) string {
	var authErr *api.AuthExpiredError
	if errors.As(err, &authErr) {
		return MsgSessionExpired
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
