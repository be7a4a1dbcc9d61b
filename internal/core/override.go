package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benvon/chronos-console/internal/store"
	"github.com/benvon/chronos-console/pkg/config"
	"github.com/benvon/chronos-console/pkg/model"
)

// OverrideController forces relays on, off or back to automatic control
type OverrideController struct {
	backend  Backend
	stores   *store.Stores
	notifier *Notifier
	recorder *Recorder
	clock    Clock
	dialect  string
	rollback bool
	logger   *slog.Logger
}

// NewOverrideController creates an override controller speaking dialect.
// With rollback a failed override reverts to the last polled state.
func NewOverrideController(
	backend Backend,
	stores *store.Stores,
	notifier *Notifier,
	recorder *Recorder,
	clock Clock,
	dialect string,
	rollback bool,
	logger *slog.Logger,
) *OverrideController {
	if dialect == "" {
		dialect = config.DialectManualOverride
	}
	return &OverrideController{
		backend:  backend,
		stores:   stores,
		notifier: notifier,
		recorder: recorder,
		clock:    clock,
		dialect:  dialect,
		rollback: rollback,
		logger:   logger,
	}
}

// SetOverride applies state to device optimistically and confirms it with the backend
func (c *OverrideController) SetOverride(ctx context.Context, device model.DeviceID, state model.OverrideState) error {
	if !device.Valid() {
		return &ValidationError{Field: "device", Message: fmt.Sprintf("unknown device %d", int(device))}
	}

	season := c.stores.Season.Snapshot()
	if season.ReadOnly {
		c.notifier.Warning(MsgReadOnly)
		c.recorder.RecordAction(ctx, ActionOverride, device.String(), state.String(), model.OutcomeRejected, MsgReadOnly)
		return ErrReadOnly
	}
	if model.IsDisabled(device, season.Season) {
		return &ValidationError{
			Field:   "device",
			Message: fmt.Sprintf("%s cannot be overridden in %s", device, season.Season),
			Err:     ErrDeviceDisabled,
		}
	}
	if c.dialect == config.DialectState && state == model.OverrideAuto {
		return &ValidationError{Field: "state", Message: "auto is not supported by the relay state endpoint"}
	}

	c.stores.Overrides.Dispatch(store.OverrideRequested{Device: device, State: state, At: c.clock.Now()})

	failed, msg, err := c.send(ctx, device, state)
	if err != nil || failed {
		if msg == "" {
			msg = MsgOverrideFailed
		}
		c.stores.Overrides.Dispatch(store.OverrideFailed{Device: device, Rollback: c.rollback})
		c.notifier.Error(MsgOverrideFailed)
		c.recorder.RecordAction(ctx, ActionOverride, device.String(), state.String(), model.OutcomeFailed, msg)
		c.logger.Error("Override failed",
			"device", device.String(),
			"state", state.String(),
			"rollback", c.rollback,
			"message", msg,
			"error", err)
		return &OverrideRequestError{Device: device, State: state, Message: msg, Err: err}
	}

	c.stores.Overrides.Dispatch(store.OverrideConfirmed{Device: device})
	c.recorder.RecordAction(ctx, ActionOverride, device.String(), state.String(), model.OutcomeAccepted, msg)
	c.logger.Info("Override applied", "device", device.String(), "state", state.String())
	return nil
}

// send issues the override in the configured dialect and reports an {error: true} answer
func (c *OverrideController) send(ctx context.Context, device model.DeviceID, state model.OverrideState) (bool, string, error) {
	switch c.dialect {
	case config.DialectState:
		resp, err := c.backend.UpdateDeviceState(ctx, int(device), state == model.OverrideOn)
		if err != nil {
			return true, failureMessage(err, MsgOverrideFailed), err
		}
		return resp.Error, resp.Message, nil
	default:
		resp, err := c.backend.UpdateManualOverride(ctx, int(device), int(state))
		if err != nil {
			return true, failureMessage(err, MsgOverrideFailed), err
		}
		return resp.Error, resp.Message, nil
	}
}
