package core

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/benvon/chronos-console/internal/store"
)

func TestSubmitSettingsCoercesNumbers(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t)
	console, _ := newTestConsole(t, fb, nil)
	mustPoll(t, console)

	msg, err := console.Settings.SubmitSettings(context.Background(), SettingsForm{
		FieldTolerance:   "75",
		FieldSetpointMin: " 130.5 ",
		FieldCascadeTime: "",
	}, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if msg != "Settings updated successfully" {
		t.Errorf("Expected backend message, got %q", msg)
	}

	body := fb.lastBody("/update_settings")
	for _, want := range []string{`"tolerance":75`, `"setpoint_min":130.5`, `"cascade_time":null`, `"setpoint_max":null`} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %s in body %s", want, body)
		}
	}
	if console.Notifier.Count(LevelSuccess) != 1 {
		t.Errorf("Expected a success banner, got %v", console.Notifier.List())
	}
}

func TestSubmitSettingsEqualSetpoints(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t)
	console, _ := newTestConsole(t, fb, nil)
	mustPoll(t, console)

	_, err := console.Settings.SubmitSettings(context.Background(), SettingsForm{
		FieldSetpointMin: "150",
		FieldSetpointMax: "150",
	}, nil)
	if err != nil {
		t.Fatalf("Expected equal min and max to be accepted, got %v", err)
	}
	if n := fb.count("/update_settings"); n != 1 {
		t.Errorf("Expected one network call, got %d", n)
	}
	body := fb.lastBody("/update_settings")
	for _, want := range []string{`"setpoint_min":150`, `"setpoint_max":150`} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %s in body %s", want, body)
		}
	}
}

func TestSubmitSettingsRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		form    SettingsForm
		wantMsg string
	}{
		{
			name:    "max below min",
			form:    SettingsForm{FieldSetpointMin: "160", FieldSetpointMax: "150"},
			wantMsg: "Maximum setpoint must be greater than minimum setpoint",
		},
		{
			name:    "max below applied min",
			form:    SettingsForm{FieldSetpointMax: "125"},
			wantMsg: "Maximum setpoint must be greater than minimum setpoint",
		},
		{
			name:    "min out of range",
			form:    SettingsForm{FieldSetpointMin: "100"},
			wantMsg: "Minimum setpoint must be between 120°F and 180°F",
		},
		{
			name:    "max out of range",
			form:    SettingsForm{FieldSetpointMax: "181"},
			wantMsg: "Maximum setpoint must be between 120°F and 180°F",
		},
		{
			name:    "not a number",
			form:    SettingsForm{FieldTolerance: "warm"},
			wantMsg: "Tolerance must be a number",
		},
		{
			name:    "unknown field",
			form:    SettingsForm{"colour": "blue"},
			wantMsg: `Unknown setting "colour"`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fb := newFakeBackend(t)
			console, _ := newTestConsole(t, fb, nil)
			mustPoll(t, console)

			_, err := console.Settings.SubmitSettings(context.Background(), tt.form, nil)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if vErr.Message != tt.wantMsg {
				t.Errorf("Expected %q, got %q", tt.wantMsg, vErr.Message)
			}
			if n := fb.count("/update_settings"); n != 0 {
				t.Errorf("Expected no network call, got %d", n)
			}
			banners := console.Notifier.List()
			if len(banners) != 1 || banners[0].Message != tt.wantMsg {
				t.Errorf("Expected banner %q, got %v", tt.wantMsg, banners)
			}
		})
	}
}

func TestSubmitSettingsSoftLimits(t *testing.T) {
	t.Parallel()

	soft := func(o *Options) {
		o.Limits = store.Limits{HardMin: 120, HardMax: 180, SoftMin: 130, SoftMax: 170}
	}
	form := SettingsForm{FieldSetpointMin: "125"}

	t.Run("declined", func(t *testing.T) {
		t.Parallel()
		fb := newFakeBackend(t)
		console, _ := newTestConsole(t, fb, soft)
		mustPoll(t, console)

		var asked string
		_, err := console.Settings.SubmitSettings(context.Background(), form, func(msg string) bool {
			asked = msg
			return false
		})
		if !errors.Is(err, ErrConfirmationDeclined) {
			t.Fatalf("Expected ErrConfirmationDeclined, got %v", err)
		}
		if !strings.Contains(asked, "125°F") || !strings.Contains(asked, "130°F to 170°F") {
			t.Errorf("Unexpected confirmation prompt %q", asked)
		}
		if n := fb.count("/update_settings"); n != 0 {
			t.Errorf("Expected no network call, got %d", n)
		}
	})

	t.Run("no confirm func", func(t *testing.T) {
		t.Parallel()
		fb := newFakeBackend(t)
		console, _ := newTestConsole(t, fb, soft)
		mustPoll(t, console)

		if _, err := console.Settings.SubmitSettings(context.Background(), form, nil); !errors.Is(err, ErrConfirmationDeclined) {
			t.Fatalf("Expected ErrConfirmationDeclined, got %v", err)
		}
	})

	t.Run("accepted", func(t *testing.T) {
		t.Parallel()
		fb := newFakeBackend(t)
		console, _ := newTestConsole(t, fb, soft)
		mustPoll(t, console)

		if _, err := console.Settings.SubmitSettings(context.Background(), form, func(string) bool { return true }); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if n := fb.count("/update_settings"); n != 1 {
			t.Errorf("Expected one network call, got %d", n)
		}
	})
}

func TestSubmitSettingsReadOnly(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t)
	fb.respond("/", http.StatusOK, `{"season_mode": 0, "read_only_mode": true}`)
	console, _ := newTestConsole(t, fb, nil)
	mustPoll(t, console)

	if _, err := console.Settings.SubmitSettings(context.Background(), SettingsForm{FieldTolerance: "2"}, nil); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Expected ErrReadOnly, got %v", err)
	}
	if n := fb.count("/update_settings"); n != 0 {
		t.Errorf("Expected no network call, got %d", n)
	}
}

func TestSubmitSettingsBackendError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantBanner string
	}{
		{name: "detail", status: http.StatusBadRequest, body: `{"detail": "Tolerance too large"}`, wantBanner: "Tolerance too large"},
		{name: "message", status: http.StatusBadRequest, body: `{"message": "Invalid settings"}`, wantBanner: "Invalid settings"},
		{name: "empty", status: http.StatusInternalServerError, body: ``, wantBanner: MsgSettingsFailed},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fb := newFakeBackend(t)
			fb.respond("/update_settings", tt.status, tt.body)
			console, _ := newTestConsole(t, fb, nil)
			mustPoll(t, console)

			_, err := console.Settings.SubmitSettings(context.Background(), SettingsForm{FieldTolerance: "2"}, nil)
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("Expected RequestError, got %v", err)
			}
			banners := console.Notifier.List()
			if len(banners) != 1 || banners[0].Message != tt.wantBanner {
				t.Errorf("Expected banner %q, got %v", tt.wantBanner, banners)
			}
		})
	}
}

func TestSetBoilerSetpoint(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t)
	console, _ := newTestConsole(t, fb, nil)
	mustPoll(t, console)
	ctx := context.Background()

	for _, bad := range []string{"119", "181", "hot", ""} {
		_, err := console.Settings.SetBoilerSetpoint(ctx, bad)
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Message != "Temperature must be between 120°F and 180°F" {
			t.Errorf("SetBoilerSetpoint(%q): expected range error, got %v", bad, err)
		}
	}
	if n := fb.count("/boiler_set_setpoint"); n != 0 {
		t.Fatalf("Expected no network call for invalid input, got %d", n)
	}

	msg, err := console.Settings.SetBoilerSetpoint(ctx, "150")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if msg != "Setpoint updated" {
		t.Errorf("Expected backend message, got %q", msg)
	}
	if got := fb.lastBody("/boiler_set_setpoint"); got != `{"temperature":150}` {
		t.Errorf("Expected temperature body, got %s", got)
	}
}

func TestSetBoilerSetpointReadOnly(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t)
	fb.respond("/", http.StatusOK, `{"season_mode": 0, "read_only_mode": true}`)
	console, _ := newTestConsole(t, fb, nil)
	mustPoll(t, console)

	if _, err := console.Settings.SetBoilerSetpoint(context.Background(), "150"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Expected ErrReadOnly, got %v", err)
	}
	banners := console.Notifier.List()
	if len(banners) != 1 || banners[0].Message != MsgSetpointReadOnly {
		t.Errorf("Expected read-only setpoint banner, got %v", banners)
	}
	if n := fb.count("/boiler_set_setpoint"); n != 0 {
		t.Errorf("Expected no network call, got %d", n)
	}
}

func TestSetBoilerSetpointBackendMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		status       int
		body         string
		wantBanner   string
		wantReadOnly bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"detail": "Too many temperature changes"}`, wantBanner: MsgSetpointRateLimit},
		{name: "circuit open upstream", status: http.StatusServiceUnavailable, body: `{"detail": "Service temporarily unavailable"}`, wantBanner: MsgSetpointCircuit},
		{name: "read only", status: http.StatusForbidden, body: `{"detail": "System is in read-only mode"}`, wantBanner: MsgSetpointReadOnly, wantReadOnly: true},
		{name: "other", status: http.StatusBadRequest, body: `{"detail": "Boiler offline"}`, wantBanner: "Boiler offline"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fb := newFakeBackend(t)
			fb.respond("/boiler_set_setpoint", tt.status, tt.body)
			console, _ := newTestConsole(t, fb, nil)
			mustPoll(t, console)

			_, err := console.Settings.SetBoilerSetpoint(context.Background(), "150")
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if got := errors.Is(err, ErrReadOnly); got != tt.wantReadOnly {
				t.Errorf("Expected ErrReadOnly %v, got %v (%v)", tt.wantReadOnly, got, err)
			}
			banners := console.Notifier.List()
			if len(banners) != 1 || banners[0].Message != tt.wantBanner {
				t.Errorf("Expected banner %q, got %v", tt.wantBanner, banners)
			}
		})
	}
}
