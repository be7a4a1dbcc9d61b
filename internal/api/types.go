package api

import (
	"encoding/json"
)

// DashboardPayload is the decoded poll response. Fields the backend has
// renamed over time are kept side by side and resolved by the normalizer.
type DashboardPayload struct {
	Devices           []DevicePayload `json:"devices"`
	SeasonMode        *int            `json:"season_mode"`
	IsSwitchingSeason bool            `json:"is_switching_season"`
	ReadOnlyMode      bool            `json:"read_only_mode"`
	UnlockTime        string          `json:"unlock_time"`
	Status            bool            `json:"status"`
	MockDevices       bool            `json:"mock_devices"`
	Sensors           map[string]any  `json:"sensors"`
	Results           ResultsPayload  `json:"results"`
	Efficiency        map[string]any  `json:"efficiency"`
	Boiler            BoilerPayload   `json:"boiler"`
}

// DevicePayload is one relay entry. State is a bool in the relay dialect and
// an integer (0 auto, 1 on, 2 off) or a name in the override dialect.
type DevicePayload struct {
	ID                int             `json:"id"`
	State             json.RawMessage `json:"state"`
	ManualOverride    json.RawMessage `json:"manual_override,omitempty"`
	SwitchedTimestamp string          `json:"switched_timestamp,omitempty"`
}

// ResultsPayload carries setpoints and user settings; Mode and UnlockTime are fallbacks
type ResultsPayload struct {
	Values     map[string]any `json:"-"`
	Mode       *int           `json:"mode"`
	UnlockTime string         `json:"unlock_time"`
}

// UnmarshalJSON keeps every numeric field in Values alongside the typed fallbacks
func (r *ResultsPayload) UnmarshalJSON(data []byte) error {
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	type plain ResultsPayload
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = ResultsPayload(p)
	r.Values = values
	return nil
}

// BoilerPayload is the nested boiler block
type BoilerPayload struct {
	Status map[string]any `json:"status"`
	Stats  map[string]any `json:"stats"`
}

// SwitchSeasonRequest is the body of POST /switch-season
type SwitchSeasonRequest struct {
	SeasonValue int `json:"season_value"`
}

// SwitchSeasonResponse is the backend's answer to a season switch
type SwitchSeasonResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	UnlockTime     string `json:"unlock_time"`
	ManualOverride bool   `json:"manual_override"`
}

// Succeeded reports whether the backend started the switch
func (r SwitchSeasonResponse) Succeeded() bool {
	return r.Status == "success" && !r.ManualOverride
}

// DeviceStateRequest is the relay dialect override body
type DeviceStateRequest struct {
	ID    int  `json:"id"`
	State bool `json:"state"`
}

// ManualOverrideRequest is the override dialect body
type ManualOverrideRequest struct {
	Device         int `json:"device"`
	ManualOverride int `json:"manual_override"`
}

// OverrideResponse is the answer to either override dialect
type OverrideResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message,omitempty"`
}

// SettingsRequest is the body of POST /update_settings; nil fields are left unchanged
type SettingsRequest struct {
	Tolerance             *float64 `json:"tolerance"`
	SetpointMin           *float64 `json:"setpoint_min"`
	SetpointMax           *float64 `json:"setpoint_max"`
	SetpointOffsetSummer  *float64 `json:"setpoint_offset_summer"`
	SetpointOffsetWinter  *float64 `json:"setpoint_offset_winter"`
	ModeChangeDeltaTemp   *float64 `json:"mode_change_delta_temp"`
	ModeSwitchLockoutTime *float64 `json:"mode_switch_lockout_time"`
	CascadeTime           *float64 `json:"cascade_time"`
}

// MessageResponse is the generic {message} answer
type MessageResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}

// SetpointRequest is the body of POST /boiler_set_setpoint
type SetpointRequest struct {
	Temperature float64 `json:"temperature"`
}

// SetpointLimits is one min/max pair
type SetpointLimits struct {
	MinSetpoint float64 `json:"min_setpoint"`
	MaxSetpoint float64 `json:"max_setpoint"`
}

// TemperatureLimits is the answer of GET /temperature_limits
type TemperatureLimits struct {
	HardLimits SetpointLimits `json:"hard_limits"`
	SoftLimits SetpointLimits `json:"soft_limits"`
}

// ChartPoint is one sample of GET /chart_data
type ChartPoint struct {
	WaterOutTemp *float64 `json:"column-1"`
	ReturnTemp   *float64 `json:"column-2"`
	Date         string   `json:"date"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	Tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
}

// errorBody collects the fields the backend uses for error messages
type errorBody struct {
	Detail  any    `json:"detail"`
	Message string `json:"message"`
	Error   any    `json:"error"`
}
