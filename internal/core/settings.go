package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/benvon/chronos-console/internal/api"
	"github.com/benvon/chronos-console/internal/store"
	"github.com/benvon/chronos-console/pkg/model"
	"github.com/benvon/chronos-console/pkg/temperature"
)

// Settings form fields
const (
	FieldTolerance             = "tolerance"
	FieldSetpointMin           = "setpoint_min"
	FieldSetpointMax           = "setpoint_max"
	FieldSetpointOffsetSummer  = "setpoint_offset_summer"
	FieldSetpointOffsetWinter  = "setpoint_offset_winter"
	FieldModeChangeDeltaTemp   = "mode_change_delta_temp"
	FieldModeSwitchLockoutTime = "mode_switch_lockout_time"
	FieldCascadeTime           = "cascade_time"
)

var settingsFields = []string{
	FieldTolerance,
	FieldSetpointMin,
	FieldSetpointMax,
	FieldSetpointOffsetSummer,
	FieldSetpointOffsetWinter,
	FieldModeChangeDeltaTemp,
	FieldModeSwitchLockoutTime,
	FieldCascadeTime,
}

// SettingsForm holds raw form input keyed by field name. Empty values are
// sent as null.
type SettingsForm map[string]string

// Confirm asks the operator to accept a soft-limit violation
type Confirm func(msg string) bool

// SettingsController submits user settings and the boiler setpoint
type SettingsController struct {
	backend  Backend
	stores   *store.Stores
	notifier *Notifier
	recorder *Recorder
	logger   *slog.Logger
}

// NewSettingsController creates a settings controller
func NewSettingsController(backend Backend, stores *store.Stores, notifier *Notifier, recorder *Recorder, logger *slog.Logger) *SettingsController {
	return &SettingsController{
		backend:  backend,
		stores:   stores,
		notifier: notifier,
		recorder: recorder,
		logger:   logger,
	}
}

// SubmitSettings validates form and sends it, returning the backend's message
func (c *SettingsController) SubmitSettings(ctx context.Context, form SettingsForm, confirm Confirm) (string, error) {
	values, err := parseSettingsForm(form)
	if err != nil {
		return "", c.reject(err)
	}

	telemetry := c.stores.Telemetry.Snapshot()
	limits := telemetry.Limits
	if err := checkHardLimits(values, telemetry.Results, limits); err != nil {
		return "", c.reject(err)
	}

	if c.stores.Season.Snapshot().ReadOnly {
		c.notifier.Warning(MsgReadOnly)
		return "", ErrReadOnly
	}

	for _, field := range []string{FieldSetpointMin, FieldSetpointMax} {
		v := values[field]
		if v == nil || (*v >= limits.SoftMin && *v <= limits.SoftMax) {
			continue
		}
		msg := fmt.Sprintf("%s of %s is outside the recommended range of %s to %s. Continue?",
			fieldLabel(field), formatLimit(*v), formatLimit(limits.SoftMin), formatLimit(limits.SoftMax))
		if confirm == nil || !confirm(msg) {
			return "", &ValidationError{Field: field, Message: "change not confirmed", Err: ErrConfirmationDeclined}
		}
	}

	req := api.SettingsRequest{
		Tolerance:             values[FieldTolerance],
		SetpointMin:           values[FieldSetpointMin],
		SetpointMax:           values[FieldSetpointMax],
		SetpointOffsetSummer:  values[FieldSetpointOffsetSummer],
		SetpointOffsetWinter:  values[FieldSetpointOffsetWinter],
		ModeChangeDeltaTemp:   values[FieldModeChangeDeltaTemp],
		ModeSwitchLockoutTime: values[FieldModeSwitchLockoutTime],
		CascadeTime:           values[FieldCascadeTime],
	}
	summary := summarizeSettings(values)

	resp, err := c.backend.UpdateSettings(ctx, req)
	if err != nil {
		msg := failureMessage(err, MsgSettingsFailed)
		c.notifier.Error(msg)
		c.recorder.RecordAction(ctx, ActionSettings, "settings", summary, model.OutcomeFailed, msg)
		c.logger.Error("Settings update failed", "error", err)
		return "", &RequestError{Action: ActionSettings, Message: msg, Err: err}
	}

	msg := resp.Message
	if msg == "" {
		msg = "Settings updated successfully"
	}
	c.notifier.Success(msg)
	c.recorder.RecordAction(ctx, ActionSettings, "settings", summary, model.OutcomeAccepted, msg)
	c.logger.Info("Settings updated", "settings", summary)
	return msg, nil
}

// SetBoilerSetpoint validates and sends a boiler setpoint in °F
func (c *SettingsController) SetBoilerSetpoint(ctx context.Context, value string) (string, error) {
	limits := c.stores.Telemetry.Snapshot().Limits
	rangeMsg := fmt.Sprintf("Temperature must be between %s and %s", formatLimit(limits.HardMin), formatLimit(limits.HardMax))

	temp, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || temp < limits.HardMin || temp > limits.HardMax {
		return "", c.reject(&ValidationError{Field: "temperature", Message: rangeMsg})
	}

	if c.stores.Season.Snapshot().ReadOnly {
		c.notifier.Warning(MsgSetpointReadOnly)
		return "", ErrReadOnly
	}

	target := temperature.FormatFahrenheit(&temp)
	resp, err := c.backend.SetBoilerSetpoint(ctx, temp)
	if err != nil {
		msg := setpointFailureMessage(err)
		c.notifier.Error(msg)
		c.recorder.RecordAction(ctx, ActionSetpoint, "boiler", target, model.OutcomeFailed, msg)
		c.logger.Error("Setpoint update failed", "temperature", temp, "error", err)
		if msg == MsgSetpointReadOnly {
			return "", fmt.Errorf("%w: %w", ErrReadOnly, err)
		}
		return "", &RequestError{Action: ActionSetpoint, Message: msg, Err: err}
	}

	msg := resp.Message
	if msg == "" {
		msg = fmt.Sprintf("Boiler setpoint set to %s", target)
	}
	c.notifier.Success(msg)
	c.recorder.RecordAction(ctx, ActionSetpoint, "boiler", target, model.OutcomeAccepted, msg)
	c.logger.Info("Boiler setpoint updated", "temperature", temp)
	return msg, nil
}

func (c *SettingsController) reject(err error) error {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		c.notifier.Error(vErr.Message)
	}
	return err
}

// parseSettingsForm coerces every known field; blanks become nil
func parseSettingsForm(form SettingsForm) (map[string]*float64, error) {
	known := make(map[string]bool, len(settingsFields))
	for _, f := range settingsFields {
		known[f] = true
	}
	for key := range form {
		if !known[key] {
			return nil, &ValidationError{Field: key, Message: fmt.Sprintf("Unknown setting %q", key)}
		}
	}

	values := make(map[string]*float64, len(settingsFields))
	for _, field := range settingsFields {
		raw := strings.TrimSpace(form[field])
		if raw == "" {
			values[field] = nil
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &ValidationError{Field: field, Message: fmt.Sprintf("%s must be a number", fieldLabel(field))}
		}
		values[field] = &v
	}
	return values, nil
}

// checkHardLimits bounds the setpoints; a missing bound falls back to the applied one
func checkHardLimits(values map[string]*float64, applied model.Results, limits store.Limits) error {
	rangeText := fmt.Sprintf("between %s and %s", formatLimit(limits.HardMin), formatLimit(limits.HardMax))

	lo, hi := values[FieldSetpointMin], values[FieldSetpointMax]
	if lo != nil && (*lo < limits.HardMin || *lo > limits.HardMax) {
		return &ValidationError{Field: FieldSetpointMin, Message: "Minimum setpoint must be " + rangeText}
	}
	if hi != nil && (*hi < limits.HardMin || *hi > limits.HardMax) {
		return &ValidationError{Field: FieldSetpointMax, Message: "Maximum setpoint must be " + rangeText}
	}

	if lo == nil {
		lo = applied.SetpointMin
	}
	if hi == nil {
		hi = applied.SetpointMax
	}
	if lo != nil && hi != nil && *lo > *hi {
		return &ValidationError{Field: FieldSetpointMax, Message: "Maximum setpoint must be greater than minimum setpoint"}
	}
	return nil
}

// setpointFailureMessage maps backend rejections to operator guidance
func setpointFailureMessage(err error) string {
	if api.IsCircuitOpen(err) {
		return MsgSetpointCircuit
	}
	msg := failureMessage(err, "Failed to update setpoint")
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "read-only") || strings.Contains(lower, "read only"):
		return MsgSetpointReadOnly
	case strings.Contains(lower, "too many temperature changes"):
		return MsgSetpointRateLimit
	case strings.Contains(lower, "service temporarily unavailable"):
		return MsgSetpointCircuit
	}
	return msg
}

func summarizeSettings(values map[string]*float64) string {
	var parts []string
	for _, field := range settingsFields {
		if v := values[field]; v != nil {
			parts = append(parts, field+"="+strconv.FormatFloat(*v, 'f', -1, 64))
		}
	}
	return strings.Join(parts, ",")
}

func fieldLabel(field string) string {
	switch field {
	case FieldSetpointMin:
		return "Minimum setpoint"
	case FieldSetpointMax:
		return "Maximum setpoint"
	}
	label := strings.ReplaceAll(field, "_", " ")
	return strings.ToUpper(label[:1]) + label[1:]
}

func formatLimit(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "°F"
}
