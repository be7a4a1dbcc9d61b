package core

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/benvon/chronos-console/pkg/config"
	"github.com/benvon/chronos-console/pkg/model"
)

func TestSetOverrideReadOnly(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t)
	fb.respond("/", http.StatusOK, `{"season_mode": 0, "read_only_mode": true}`)
	console, _ := newTestConsole(t, fb, nil)
	mustPoll(t, console)

	err := console.Overrides.SetOverride(context.Background(), model.DeviceBoiler, model.OverrideOn)
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Expected ErrReadOnly, got %v", err)
	}
	if n := fb.count("/update_state") + fb.count("/update_device_state"); n != 0 {
		t.Errorf("Expected no network calls, got %d", n)
	}
	if n := len(console.Notifier.List()); n != 1 || console.Notifier.Count(LevelWarning) != 1 {
		t.Errorf("Expected exactly one warning banner, got %v", console.Notifier.List())
	}
	if got := console.Stores.Overrides.Snapshot().Devices[model.DeviceBoiler].State; got != model.OverrideAuto {
		t.Errorf("Expected no optimistic change, got %s", got)
	}
}

func TestSetOverrideValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		dialect      string
		device       model.DeviceID
		state        model.OverrideState
		wantDisabled bool
	}{
		{name: "unknown device", device: model.DeviceID(9), state: model.OverrideOn},
		{name: "chiller in winter", device: model.DeviceChiller2, state: model.OverrideOn, wantDisabled: true},
		{name: "auto in relay dialect", dialect: config.DialectState, device: model.DeviceBoiler, state: model.OverrideAuto},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fb := newFakeBackend(t)
			console, _ := newTestConsole(t, fb, func(o *Options) {
				if tt.dialect != "" {
					o.Dialect = tt.dialect
				}
			})
			mustPoll(t, console)

			err := console.Overrides.SetOverride(context.Background(), tt.device, tt.state)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if got := errors.Is(err, ErrDeviceDisabled); got != tt.wantDisabled {
				t.Errorf("Expected ErrDeviceDisabled %v, got %v", tt.wantDisabled, got)
			}
			if n := fb.count("/update_state") + fb.count("/update_device_state"); n != 0 {
				t.Errorf("Expected no network calls, got %d", n)
			}
		})
	}
}

func TestSetOverrideDialects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		dialect  string
		state    model.OverrideState
		path     string
		wantBody string
	}{
		{name: "override off", dialect: config.DialectManualOverride, state: model.OverrideOff, path: "/update_state", wantBody: `{"device":0,"manual_override":2}`},
		{name: "override auto", dialect: config.DialectManualOverride, state: model.OverrideAuto, path: "/update_state", wantBody: `{"device":0,"manual_override":0}`},
		{name: "relay on", dialect: config.DialectState, state: model.OverrideOn, path: "/update_device_state", wantBody: `{"id":0,"state":true}`},
		{name: "relay off", dialect: config.DialectState, state: model.OverrideOff, path: "/update_device_state", wantBody: `{"id":0,"state":false}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fb := newFakeBackend(t)
			console, _ := newTestConsole(t, fb, func(o *Options) { o.Dialect = tt.dialect })
			mustPoll(t, console)

			if err := console.Overrides.SetOverride(context.Background(), model.DeviceBoiler, tt.state); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got := fb.lastBody(tt.path); got != tt.wantBody {
				t.Errorf("Expected body %s, got %s", tt.wantBody, got)
			}

			overrides := console.Stores.Overrides.Snapshot()
			if overrides.Devices[model.DeviceBoiler].State != tt.state {
				t.Errorf("Expected boiler %s, got %s", tt.state, overrides.Devices[model.DeviceBoiler].State)
			}
			if overrides.Pending[model.DeviceBoiler] {
				t.Error("Expected pending flag cleared")
			}
		})
	}
}

func TestSetOverrideFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		rollback  bool
		wantState model.OverrideState
	}{
		{name: "error flag keeps optimistic value", status: http.StatusOK, body: `{"error": true}`, rollback: false, wantState: model.OverrideOff},
		{name: "error flag rolls back", status: http.StatusOK, body: `{"error": true}`, rollback: true, wantState: model.OverrideAuto},
		{name: "backend failure rolls back", status: http.StatusInternalServerError, body: `{"detail": "relay board offline"}`, rollback: true, wantState: model.OverrideAuto},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fb := newFakeBackend(t)
			fb.respond("/update_state", tt.status, tt.body)
			console, _ := newTestConsole(t, fb, func(o *Options) { o.Rollback = tt.rollback })
			mustPoll(t, console)

			err := console.Overrides.SetOverride(context.Background(), model.DeviceBoiler, model.OverrideOff)
			var oErr *OverrideRequestError
			if !errors.As(err, &oErr) {
				t.Fatalf("Expected OverrideRequestError, got %v", err)
			}

			banners := console.Notifier.List()
			if len(banners) != 1 || banners[0].Message != MsgOverrideFailed || banners[0].Level != LevelError {
				t.Errorf("Expected one %q error banner, got %v", MsgOverrideFailed, banners)
			}

			overrides := console.Stores.Overrides.Snapshot()
			if got := overrides.Devices[model.DeviceBoiler].State; got != tt.wantState {
				t.Errorf("Expected boiler %s, got %s", tt.wantState, got)
			}
			if overrides.Pending[model.DeviceBoiler] {
				t.Error("Expected pending flag cleared")
			}
		})
	}
}

func TestSetOverrideSameValueTwice(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t)
	console, clock := newTestConsole(t, fb, nil)
	mustPoll(t, console)
	ctx := context.Background()

	if err := console.Overrides.SetOverride(ctx, model.DeviceBoiler, model.OverrideOn); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	first := console.Stores.Overrides.Snapshot()

	clock.Advance(5 * time.Second)
	if err := console.Overrides.SetOverride(ctx, model.DeviceBoiler, model.OverrideOn); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n := fb.count("/update_state"); n != 2 {
		t.Errorf("Expected two network calls, got %d", n)
	}

	second := console.Stores.Overrides.Snapshot()
	if second != first {
		t.Errorf("Expected no state change on the repeated override:\nfirst  %+v\nsecond %+v", first, second)
	}
	if got := second.Devices[model.DeviceBoiler].State; got != model.OverrideOn {
		t.Errorf("Expected boiler on, got %s", got)
	}
}

func TestSetOverrideRecordsAction(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t)
	sink := &mockSink{name: "journal"}
	console, _ := newTestConsole(t, fb, func(o *Options) { o.Sinks = []model.Sink{sink} })
	mustPoll(t, console)

	if err := console.Overrides.SetOverride(context.Background(), model.DeviceBoiler, model.OverrideOn); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	docs := sink.written()
	last := docs[len(docs)-1]
	action, ok := last.Body.(*model.ActionDoc)
	if !ok || last.Type != model.DocTypeAction {
		t.Fatalf("Expected an action document, got %+v", last)
	}
	if action.Action != ActionOverride || action.Target != "boiler" || action.Value != "on" || action.Outcome != model.OutcomeAccepted {
		t.Errorf("Unexpected action document %+v", action)
	}
	if last.ID == "" || last.ID != action.ID {
		t.Errorf("Expected document ID to match action ID, got %q and %q", last.ID, action.ID)
	}
}
