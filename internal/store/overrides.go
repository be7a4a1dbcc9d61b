package store

import (
	"github.com/benvon/chronos-console/pkg/model"
)

// OverrideState is the manual override table
type OverrideState struct {
	// Devices is what the operator sees, including optimistic changes
	Devices model.Overrides `json:"devices"`
	// Authoritative is the table from the last successful poll
	Authoritative model.Overrides         `json:"authoritative"`
	Pending       [model.DeviceCount]bool `json:"pending"`
	Generation    uint64                  `json:"generation"`
}

// ReduceOverrides is the override reducer
func ReduceOverrides(prev OverrideState, a Action) OverrideState {
	next := prev
	switch a := a.(type) {
	case PollSucceeded:
		if a.Seq <= prev.Generation {
			return prev
		}
		next.Devices = a.Dashboard.Devices
		next.Authoritative = a.Dashboard.Devices
		next.Generation = a.Seq

	case OverrideRequested:
		if !a.Device.Valid() {
			return prev
		}
		if prev.Devices[a.Device].State != a.State {
			next.Devices[a.Device] = model.DeviceOverride{State: a.State, SwitchedAt: a.At}
		}
		next.Pending[a.Device] = true

	case OverrideConfirmed:
		if !a.Device.Valid() {
			return prev
		}
		next.Pending[a.Device] = false

	case OverrideFailed:
		if !a.Device.Valid() {
			return prev
		}
		next.Pending[a.Device] = false
		if a.Rollback {
			next.Devices[a.Device] = prev.Authoritative[a.Device]
		}

	default:
		return prev
	}
	return next
}
