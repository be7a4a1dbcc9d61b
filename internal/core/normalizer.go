package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/chronos-console/internal/api"
	"github.com/benvon/chronos-console/internal/store"
	"github.com/benvon/chronos-console/pkg/model"
)

// chartDateFormat is the minute-resolution UTC stamp of /chart_data
const chartDateFormat = "2006-01-02T15:04Z"

// Timestamps without an offset are controller-local
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// Normalizer converts backend payloads to the console's canonical types
type Normalizer struct {
	timezone *time.Location
	logger   *slog.Logger
}

// NewNormalizer creates a normalizer reading naive timestamps in timezone
func NewNormalizer(timezone string, logger *slog.Logger) (*Normalizer, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %s: %w", timezone, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{timezone: loc, logger: logger}, nil
}

// Location returns the controller timezone
func (n *Normalizer) Location() *time.Location {
	return n.timezone
}

// NormalizeDashboard converts a poll payload collected at collectedAt
func (n *Normalizer) NormalizeDashboard(p *api.DashboardPayload, collectedAt time.Time) model.Dashboard {
	d := model.Dashboard{
		Season:          model.SeasonUnknown,
		SeasonMode:      -1,
		SwitchingSeason: p.IsSwitchingSeason,
		ReadOnly:        p.ReadOnlyMode,
		Status:          p.Status,
		MockDevices:     p.MockDevices,
		CollectedAt:     collectedAt.UTC(),
	}

	mode := p.SeasonMode
	if mode == nil {
		mode = p.Results.Mode
	}
	if mode != nil {
		d.SeasonMode = *mode
		d.Season = model.SeasonFromMode(*mode)
		if d.Season == model.SeasonUnknown {
			n.logger.Warn("Unmapped season mode encountered", "season_mode", *mode)
		}
	}

	unlock := p.UnlockTime
	if unlock == "" {
		unlock = p.Results.UnlockTime
	}
	if at, err := n.ParseTimestamp(unlock); err != nil {
		n.logger.Warn("Ignoring unparseable unlock time", "unlock_time", unlock, "error", err)
	} else {
		d.UnlockAt = at
	}

	d.Devices = n.normalizeDevices(p.Devices)
	d.Results = normalizeResults(p.Results.Values)
	d.Sensors = normalizeSensors(p.Sensors, d.Results)
	d.Efficiency = model.Efficiency{
		Hours:                        floatField(p.Efficiency, "hours"),
		ChillersEfficiency:           floatField(p.Efficiency, "chillers_efficiency"),
		AverageTemperatureDifference: floatField(p.Efficiency, "average_temperature_difference"),
		CascadeFireRateAvg:           floatField(p.Efficiency, "cascade_fire_rate_avg"),
	}
	d.Boiler = normalizeBoilerStats(p.Boiler.Stats)
	d.BoilerStatus = model.BoilerStatus{
		OperatingMode:    intField(p.Boiler.Status, "operating_mode"),
		OperatingModeStr: stringField(p.Boiler.Status, "operating_mode_str"),
		CascadeMode:      intField(p.Boiler.Status, "cascade_mode"),
		CascadeModeStr:   stringField(p.Boiler.Status, "cascade_mode_str"),
		CurrentSetpoint:  floatField(p.Boiler.Status, "current_setpoint"),
	}
	return d
}

// ParseTimestamp parses a backend timestamp. Values with a zone or a Z suffix
// are absolute; naive values are read in the controller timezone. Empty and
// null-like values yield the zero time.
func (n *Normalizer) ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null", "none":
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, n.timezone); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// NormalizeLimits converts the backend limits, keeping fallback for unset pairs
func (n *Normalizer) NormalizeLimits(l *api.TemperatureLimits, fallback store.Limits) store.Limits {
	out := fallback
	if l.HardLimits.MinSetpoint != 0 || l.HardLimits.MaxSetpoint != 0 {
		out.HardMin = l.HardLimits.MinSetpoint
		out.HardMax = l.HardLimits.MaxSetpoint
	}
	if l.SoftLimits.MinSetpoint != 0 || l.SoftLimits.MaxSetpoint != 0 {
		out.SoftMin = l.SoftLimits.MinSetpoint
		out.SoftMax = l.SoftLimits.MaxSetpoint
	}
	return out
}

// NormalizeChart converts chart points, skipping undated samples
func (n *Normalizer) NormalizeChart(points []api.ChartPoint) []model.ChartSample {
	samples := make([]model.ChartSample, 0, len(points))
	for _, p := range points {
		at, err := time.Parse(chartDateFormat, p.Date)
		if err != nil {
			if at, err = n.ParseTimestamp(p.Date); err != nil || at.IsZero() {
				n.logger.Debug("Skipping chart point without a date", "date", p.Date)
				continue
			}
		}
		samples = append(samples, model.ChartSample{
			At:           at.UTC(),
			WaterOutTemp: p.WaterOutTemp,
			ReturnTemp:   p.ReturnTemp,
		})
	}
	return samples
}

// normalizeDevices builds the override table; absent devices stay on auto
func (n *Normalizer) normalizeDevices(devices []api.DevicePayload) model.Overrides {
	var table model.Overrides
	for _, dev := range devices {
		id := model.DeviceID(dev.ID)
		if !id.Valid() {
			n.logger.Warn("Ignoring unknown device", "id", dev.ID)
			continue
		}

		raw := dev.State
		if !isNull(dev.ManualOverride) {
			raw = dev.ManualOverride
		}
		state, err := parseDeviceState(raw)
		if err != nil {
			n.logger.Warn("Unmapped device state encountered", "device", id.String(), "state", string(raw))
			continue
		}

		switched, err := n.ParseTimestamp(dev.SwitchedTimestamp)
		if err != nil {
			n.logger.Debug("Ignoring unparseable switch time", "device", id.String(), "error", err)
		}
		table[id] = model.DeviceOverride{State: state, SwitchedAt: switched}
	}
	return table
}

// parseDeviceState accepts a relay bool, an override code or a state name
func parseDeviceState(raw json.RawMessage) (model.OverrideState, error) {
	if isNull(raw) {
		return model.OverrideAuto, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return model.OverrideAuto, fmt.Errorf("decoding device state: %w", err)
	}
	switch s := v.(type) {
	case bool:
		if s {
			return model.OverrideOn, nil
		}
		return model.OverrideOff, nil
	case float64:
		switch s {
		case 0:
			return model.OverrideAuto, nil
		case 1:
			return model.OverrideOn, nil
		case 2:
			return model.OverrideOff, nil
		}
		return model.OverrideAuto, fmt.Errorf("unknown override code %v", s)
	case string:
		return model.ParseOverrideState(s)
	default:
		return model.OverrideAuto, fmt.Errorf("unexpected device state %s", string(raw))
	}
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func normalizeResults(m map[string]any) model.Results {
	return model.Results{
		OutsideTemp:           floatField(m, "outside_temp"),
		BaselineSetpoint:      floatField(m, "baseline_setpoint"),
		THASetpoint:           floatField(m, "tha_setpoint"),
		EffectiveSetpoint:     floatField(m, "effective_setpoint"),
		Tolerance:             floatField(m, "tolerance"),
		SetpointMin:           floatField(m, "setpoint_min"),
		SetpointMax:           floatField(m, "setpoint_max"),
		SetpointOffsetSummer:  floatField(m, "setpoint_offset_summer"),
		SetpointOffsetWinter:  floatField(m, "setpoint_offset_winter"),
		ModeChangeDeltaTemp:   floatField(m, "mode_change_delta_temp"),
		ModeSwitchLockoutTime: floatField(m, "mode_switch_lockout_time"),
		CascadeTime:           floatField(m, "cascade_time"),
		WindChillAvg:          floatField(m, "wind_chill_avg"),
		WaterOutTemp:          floatField(m, "water_out_temp"),
		ReturnTemp:            floatField(m, "return_temp"),
	}
}

// normalizeSensors prefers the sensors block and falls back to results
func normalizeSensors(m map[string]any, results model.Results) model.Sensors {
	s := model.Sensors{
		WaterOutTemp: floatField(m, "water_out_temp"),
		ReturnTemp:   floatField(m, "return_temp"),
		OutsideTemp:  floatField(m, "outside_temp"),
	}
	if s.WaterOutTemp == nil {
		s.WaterOutTemp = results.WaterOutTemp
	}
	if s.ReturnTemp == nil {
		s.ReturnTemp = results.ReturnTemp
	}
	if s.OutsideTemp == nil {
		s.OutsideTemp = results.OutsideTemp
	}
	return s
}

func normalizeBoilerStats(m map[string]any) model.BoilerStats {
	return model.BoilerStats{
		SystemSupplyTemp:    floatField(m, "system_supply_temp"),
		OutletTemp:          floatField(m, "outlet_temp"),
		InletTemp:           floatField(m, "inlet_temp"),
		FlueTemp:            floatField(m, "flue_temp"),
		CascadeCurrentPower: floatField(m, "cascade_current_power"),
		LeadFiringRate:      floatField(m, "lead_firing_rate"),
		WaterFlowRate:       floatField(m, "water_flow_rate"),
		PumpStatus:          boolField(m, "pump_status"),
		FlameStatus:         boolField(m, "flame_status"),
	}
}

// floatField reads a number, or a numeric string, from a decoded JSON object
func floatField(m map[string]any, key string) *float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	switch x := v.(type) {
	case float64:
		return &x
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return &f
		}
	}
	return nil
}

func intField(m map[string]any, key string) *int {
	f := floatField(m, key)
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}

func boolField(m map[string]any, key string) *bool {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	switch x := v.(type) {
	case bool:
		return &x
	case float64:
		b := x != 0
		return &b
	case string:
		if b, err := strconv.ParseBool(x); err == nil {
			return &b
		}
		switch strings.ToLower(x) {
		case "on":
			b := true
			return &b
		case "off":
			b := false
			return &b
		}
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
