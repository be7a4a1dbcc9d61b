package model

import (
	"time"
)

// Dashboard is one authoritative snapshot of the controller as returned by a poll
type Dashboard struct {
	Season          Season       `json:"season"`
	SeasonMode      int          `json:"season_mode"`
	SwitchingSeason bool         `json:"is_switching_season"`
	ReadOnly        bool         `json:"read_only_mode"`
	UnlockAt        time.Time    `json:"unlock_time,omitzero"`
	Devices         Overrides    `json:"devices"`
	Status          bool         `json:"status"`
	MockDevices     bool         `json:"mock_devices"`
	Sensors         Sensors      `json:"sensors"`
	Results         Results      `json:"results"`
	Efficiency      Efficiency   `json:"efficiency"`
	Boiler          BoilerStats  `json:"boiler"`
	BoilerStatus    BoilerStatus `json:"boiler_status"`
	CollectedAt     time.Time    `json:"collected_at"`
}

// Sensors holds the live loop temperatures in °F
type Sensors struct {
	WaterOutTemp *float64 `json:"water_out_temp,omitempty"`
	ReturnTemp   *float64 `json:"return_temp,omitempty"`
	OutsideTemp  *float64 `json:"outside_temp,omitempty"`
}

// Results holds setpoints and the user settings currently applied by the controller
type Results struct {
	OutsideTemp           *float64 `json:"outside_temp,omitempty"`
	BaselineSetpoint      *float64 `json:"baseline_setpoint,omitempty"`
	THASetpoint           *float64 `json:"tha_setpoint,omitempty"`
	EffectiveSetpoint     *float64 `json:"effective_setpoint,omitempty"`
	Tolerance             *float64 `json:"tolerance,omitempty"`
	SetpointMin           *float64 `json:"setpoint_min,omitempty"`
	SetpointMax           *float64 `json:"setpoint_max,omitempty"`
	SetpointOffsetSummer  *float64 `json:"setpoint_offset_summer,omitempty"`
	SetpointOffsetWinter  *float64 `json:"setpoint_offset_winter,omitempty"`
	ModeChangeDeltaTemp   *float64 `json:"mode_change_delta_temp,omitempty"`
	ModeSwitchLockoutTime *float64 `json:"mode_switch_lockout_time,omitempty"`
	CascadeTime           *float64 `json:"cascade_time,omitempty"`
	WindChillAvg          *float64 `json:"wind_chill_avg,omitempty"`
	WaterOutTemp          *float64 `json:"water_out_temp,omitempty"`
	ReturnTemp            *float64 `json:"return_temp,omitempty"`
}

// Efficiency holds the rolling efficiency metrics
type Efficiency struct {
	Hours                        *float64 `json:"hours,omitempty"`
	ChillersEfficiency           *float64 `json:"chillers_efficiency,omitempty"`
	AverageTemperatureDifference *float64 `json:"average_temperature_difference,omitempty"`
	CascadeFireRateAvg           *float64 `json:"cascade_fire_rate_avg,omitempty"`
}

// BoilerStats holds the boiler cascade readings
type BoilerStats struct {
	SystemSupplyTemp    *float64 `json:"system_supply_temp,omitempty"`
	OutletTemp          *float64 `json:"outlet_temp,omitempty"`
	InletTemp           *float64 `json:"inlet_temp,omitempty"`
	FlueTemp            *float64 `json:"flue_temp,omitempty"`
	CascadeCurrentPower *float64 `json:"cascade_current_power,omitempty"`
	LeadFiringRate      *float64 `json:"lead_firing_rate,omitempty"`
	WaterFlowRate       *float64 `json:"water_flow_rate,omitempty"`
	PumpStatus          *bool    `json:"pump_status,omitempty"`
	FlameStatus         *bool    `json:"flame_status,omitempty"`
}

// BoilerStatus is the boiler's operating mode as reported by its controller
type BoilerStatus struct {
	OperatingMode    *int     `json:"operating_mode,omitempty"`
	OperatingModeStr string   `json:"operating_mode_str,omitempty"`
	CascadeMode      *int     `json:"cascade_mode,omitempty"`
	CascadeModeStr   string   `json:"cascade_mode_str,omitempty"`
	CurrentSetpoint  *float64 `json:"current_setpoint,omitempty"`
}

// SnapshotDoc is the archived form of a poll
type SnapshotDoc struct {
	Type         string            `json:"type"` // "dashboard_snapshot"
	CollectedAt  time.Time         `json:"collected_at"`
	Season       string            `json:"season"`
	SeasonMode   int               `json:"season_mode"`
	ReadOnly     bool              `json:"read_only_mode"`
	UnlockAt     *time.Time        `json:"unlock_time,omitzero"`
	Devices      map[string]string `json:"devices"`
	Sensors      Sensors           `json:"sensors"`
	Results      Results           `json:"results"`
	SystemOnline bool              `json:"system_online"`
}

// ActionDoc is the archived form of an operator action and its outcome
type ActionDoc struct {
	Type    string    `json:"type"` // "operator_action"
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Action  string    `json:"action"`  // season_switch/override/settings/boiler_setpoint
	Target  string    `json:"target"`  // season name or device name
	Value   string    `json:"value"`   // requested value
	Outcome string    `json:"outcome"` // accepted/rejected/failed
	Message string    `json:"message,omitempty"`
}

// Action outcomes
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Document types
const (
	DocTypeSnapshot = "dashboard_snapshot"
	DocTypeAction   = "operator_action"
)

// NewSnapshotDoc flattens a dashboard into its archived form
func NewSnapshotDoc(d Dashboard, online bool) *SnapshotDoc {
	devices := make(map[string]string, DeviceCount)
	for _, id := range AllDevices() {
		devices[id.String()] = d.Devices[id].State.String()
	}

	doc := &SnapshotDoc{
		Type:         DocTypeSnapshot,
		CollectedAt:  d.CollectedAt,
		Season:       d.Season.String(),
		SeasonMode:   d.SeasonMode,
		ReadOnly:     d.ReadOnly,
		Devices:      devices,
		Sensors:      d.Sensors,
		Results:      d.Results,
		SystemOnline: online,
	}
	if !d.UnlockAt.IsZero() {
		unlock := d.UnlockAt
		doc.UnlockAt = &unlock
	}
	return doc
}

// ChartSample is one point of the loop temperature history
type ChartSample struct {
	At           time.Time `json:"at"`
	WaterOutTemp *float64  `json:"water_out_temp,omitempty"`
	ReturnTemp   *float64  `json:"return_temp,omitempty"`
}
