package core

import (
	"errors"
	"fmt"

	"github.com/benvon/chronos-console/pkg/model"
)

// ErrReadOnly is returned when the controller reports read-only mode. It is a
// warning, not a fault: nothing was sent to the backend.
var ErrReadOnly = errors.New("system is in read-only mode")

var (
	// ErrDeviceDisabled means the device cannot be overridden in the current season
	ErrDeviceDisabled = errors.New("device is disabled in the current season")
	// ErrConfirmationDeclined means a soft-limit confirmation was refused
	ErrConfirmationDeclined = errors.New("confirmation declined")
)

// ValidationError is a client-side rejection of operator input
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// SwitchRequestError is a season switch the backend did not carry out
type SwitchRequestError struct {
	Target         model.Season
	Message        string
	ManualOverride bool
	Err            error
}

func (e *SwitchRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("switching to %s: %s: %v", e.Target, e.Message, e.Err)
	}
	return fmt.Sprintf("switching to %s: %s", e.Target, e.Message)
}

func (e *SwitchRequestError) Unwrap() error { return e.Err }

// OverrideRequestError is a relay override the backend did not carry out
type OverrideRequestError struct {
	Device  model.DeviceID
	State   model.OverrideState
	Message string
	Err     error
}

func (e *OverrideRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("setting %s to %s: %s: %v", e.Device, e.State, e.Message, e.Err)
	}
	return fmt.Sprintf("setting %s to %s: %s", e.Device, e.State, e.Message)
}

func (e *OverrideRequestError) Unwrap() error { return e.Err }

// RequestError is a settings or setpoint submission the backend rejected
type RequestError struct {
	Action  string
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

func (e *RequestError) Unwrap() error { return e.Err }
