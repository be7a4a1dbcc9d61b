package store

import (
	"time"

	"github.com/benvon/chronos-console/pkg/model"
)

// Limits are the boiler setpoint limits in °F
type Limits struct {
	HardMin float64 `json:"hard_min"`
	HardMax float64 `json:"hard_max"`
	SoftMin float64 `json:"soft_min"`
	SoftMax float64 `json:"soft_max"`
}

// TelemetryState holds the readings and applied settings of the last good poll
type TelemetryState struct {
	Sensors      model.Sensors      `json:"sensors"`
	Results      model.Results      `json:"results"`
	Efficiency   model.Efficiency   `json:"efficiency"`
	Boiler       model.BoilerStats  `json:"boiler"`
	BoilerStatus model.BoilerStatus `json:"boiler_status"`
	MockDevices  bool               `json:"mock_devices"`
	Limits       Limits             `json:"limits"`
	CollectedAt  time.Time          `json:"collected_at,omitzero"`
	Generation   uint64             `json:"generation"`
}

// ReduceTelemetry is the telemetry reducer
func ReduceTelemetry(prev TelemetryState, a Action) TelemetryState {
	next := prev
	switch a := a.(type) {
	case PollSucceeded:
		if a.Seq <= prev.Generation {
			return prev
		}
		d := a.Dashboard
		next.Sensors = d.Sensors
		next.Results = d.Results
		next.Efficiency = d.Efficiency
		next.Boiler = d.Boiler
		next.BoilerStatus = d.BoilerStatus
		next.MockDevices = d.MockDevices
		next.CollectedAt = a.At
		next.Generation = a.Seq

	case LimitsLoaded:
		next.Limits = a.Limits

	default:
		return prev
	}
	return next
}
