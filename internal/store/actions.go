package store

import (
	"time"

	"github.com/benvon/chronos-console/pkg/model"
)

// PollSucceeded carries an authoritative dashboard payload. Seq orders polls:
// a payload older than the last applied one is dropped.
type PollSucceeded struct {
	Seq       uint64
	Dashboard model.Dashboard
	At        time.Time
}

// PollFailed records a failed fetch; prior values are kept
type PollFailed struct {
	Seq uint64
	Err error
	At  time.Time
}

// SwitchRequested claims the switching guard and moves the season optimistically
type SwitchRequested struct {
	Target model.Season
	At     time.Time
}

// SwitchAccepted records the lockout returned by a successful switch
type SwitchAccepted struct {
	UnlockAt time.Time
	At       time.Time
}

// SwitchFailed releases the switching guard and restores the previous season
type SwitchFailed struct {
	Previous       model.Season
	ManualOverride bool
}

// CountdownTicked recomputes the lockout remaining at Now
type CountdownTicked struct {
	Now time.Time
}

// OverrideRequested applies an operator override before the backend confirms it
type OverrideRequested struct {
	Device model.DeviceID
	State  model.OverrideState
	At     time.Time
}

// OverrideConfirmed clears the pending flag of a device
type OverrideConfirmed struct {
	Device model.DeviceID
}

// OverrideFailed clears the pending flag and, with Rollback, restores the polled value
type OverrideFailed struct {
	Device   model.DeviceID
	Rollback bool
}

// LimitsLoaded replaces the setpoint limits with the backend's
type LimitsLoaded struct {
	Limits Limits
}
