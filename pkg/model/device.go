package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DeviceID identifies one of the relays the console can override
type DeviceID int

const (
	DeviceBoiler DeviceID = iota
	DeviceChiller1
	DeviceChiller2
	DeviceChiller3
	DeviceChiller4
)

// DeviceCount is the fixed number of overridable devices
const DeviceCount = 5

var deviceNames = [DeviceCount]string{"boiler", "chiller1", "chiller2", "chiller3", "chiller4"}

// AllDevices returns every device in id order
func AllDevices() []DeviceID {
	return []DeviceID{DeviceBoiler, DeviceChiller1, DeviceChiller2, DeviceChiller3, DeviceChiller4}
}

// Valid reports whether the id is one of the known devices
func (d DeviceID) Valid() bool {
	return d >= DeviceBoiler && d <= DeviceChiller4
}

// IsChiller reports whether the device is one of the four chillers
func (d DeviceID) IsChiller() bool {
	return d >= DeviceChiller1 && d <= DeviceChiller4
}

func (d DeviceID) String() string {
	if !d.Valid() {
		return fmt.Sprintf("device(%d)", int(d))
	}
	return deviceNames[d]
}

// ParseDeviceID accepts either a device name ("chiller2") or its numeric id ("2")
func ParseDeviceID(s string) (DeviceID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		d := DeviceID(n)
		if !d.Valid() {
			return 0, fmt.Errorf("device id %d out of range 0-%d", n, DeviceCount-1)
		}
		return d, nil
	}
	for i, name := range deviceNames {
		if name == s {
			return DeviceID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown device %q", s)
}

// IsDisabled reports whether a device cannot be overridden in the given season.
// The boiler only runs in winter and the chillers only run in summer, so each
// is locked out for the opposite season and for a switchover heading there.
func IsDisabled(d DeviceID, season Season) bool {
	switch season {
	case SeasonSummer, SeasonTransitioningToSummer:
		return d == DeviceBoiler
	case SeasonWinter, SeasonTransitioningToWinter:
		return d.IsChiller()
	default:
		return false
	}
}

// OverrideState is the operator-forced state of a relay
type OverrideState int

const (
	OverrideAuto OverrideState = iota
	OverrideOn
	OverrideOff
)

func (o OverrideState) String() string {
	switch o {
	case OverrideOn:
		return "on"
	case OverrideOff:
		return "off"
	default:
		return "auto"
	}
}

// ParseOverrideState parses "auto", "on", "off" and the boolean spellings
func ParseOverrideState(s string) (OverrideState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return OverrideAuto, nil
	case "on", "true", "1":
		return OverrideOn, nil
	case "off", "false", "0":
		return OverrideOff, nil
	default:
		return OverrideAuto, fmt.Errorf("unknown override state %q", s)
	}
}

// DeviceOverride is one entry of the override table
type DeviceOverride struct {
	State      OverrideState `json:"state"`
	SwitchedAt time.Time     `json:"switched_at,omitzero"`
}

// Overrides holds exactly one entry per device, indexed by DeviceID
type Overrides [DeviceCount]DeviceOverride

// MarshalText encodes the state as auto/on/off
func (o OverrideState) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes auto/on/off and the boolean spellings
func (o *OverrideState) UnmarshalText(text []byte) error {
	v, err := ParseOverrideState(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
