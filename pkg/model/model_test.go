package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSeasonFromMode(t *testing.T) {
	tests := []struct {
		mode     int
		expected Season
	}{
		{ModeWinter, SeasonWinter},
		{ModeSummer, SeasonSummer},
		{ModeWaitingSwitchToWinter, SeasonTransitioningToWinter},
		{ModeSwitchingToWinter, SeasonTransitioningToWinter},
		{ModeWaitingSwitchToSummer, SeasonTransitioningToSummer},
		{ModeSwitchingToSummer, SeasonTransitioningToSummer},
		{42, SeasonUnknown},
		{-1, SeasonUnknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.expected.String(), func(t *testing.T) {
			if got := SeasonFromMode(tt.mode); got != tt.expected {
				t.Errorf("SeasonFromMode(%d) = %v, want %v", tt.mode, got, tt.expected)
			}
		})
	}
}

func TestSeasonMode(t *testing.T) {
	if m, err := SeasonWinter.Mode(); err != nil || m != ModeWinter {
		t.Errorf("Winter mode = %d, %v", m, err)
	}
	if m, err := SeasonSummer.Mode(); err != nil || m != ModeSummer {
		t.Errorf("Summer mode = %d, %v", m, err)
	}
	if _, err := SeasonTransitioningToSummer.Mode(); err == nil {
		t.Error("Expected error for transitional season")
	}
}

func TestParseSeason(t *testing.T) {
	if s, err := ParseSeason(" Winter "); err != nil || s != SeasonWinter {
		t.Errorf("ParseSeason(Winter) = %v, %v", s, err)
	}
	if s, err := ParseSeason("summer"); err != nil || s != SeasonSummer {
		t.Errorf("ParseSeason(summer) = %v, %v", s, err)
	}
	if _, err := ParseSeason("spring"); err == nil {
		t.Error("Expected error for unknown season")
	}
}

func TestIsDisabled(t *testing.T) {
	tests := []struct {
		name     string
		device   DeviceID
		season   Season
		disabled bool
	}{
		{"boiler in winter", DeviceBoiler, SeasonWinter, false},
		{"boiler in summer", DeviceBoiler, SeasonSummer, true},
		{"boiler switching to summer", DeviceBoiler, SeasonTransitioningToSummer, true},
		{"chiller in summer", DeviceChiller1, SeasonSummer, false},
		{"chiller in winter", DeviceChiller3, SeasonWinter, true},
		{"chiller switching to winter", DeviceChiller4, SeasonTransitioningToWinter, true},
		{"boiler unknown season", DeviceBoiler, SeasonUnknown, false},
		{"chiller unknown season", DeviceChiller2, SeasonUnknown, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDisabled(tt.device, tt.season); got != tt.disabled {
				t.Errorf("IsDisabled(%v, %v) = %v, want %v", tt.device, tt.season, got, tt.disabled)
			}
		})
	}
}

func TestParseDeviceID(t *testing.T) {
	tests := []struct {
		input     string
		expected  DeviceID
		expectErr bool
	}{
		{"boiler", DeviceBoiler, false},
		{"Chiller3", DeviceChiller3, false},
		{"4", DeviceChiller4, false},
		{"0", DeviceBoiler, false},
		{"5", 0, true},
		{"-1", 0, true},
		{"pump", 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDeviceID(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("ParseDeviceID(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestOverrideStateText(t *testing.T) {
	var o OverrideState
	if err := json.Unmarshal([]byte(`"on"`), &o); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if o != OverrideOn {
		t.Errorf("Expected on, got %v", o)
	}

	data, err := json.Marshal(DeviceOverride{State: OverrideOff})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"state":"off"}` {
		t.Errorf("Unexpected JSON: %s", data)
	}

	if err := json.Unmarshal([]byte(`"sideways"`), &o); err == nil {
		t.Error("Expected error for unknown state")
	}
}

func TestNewSnapshotDoc(t *testing.T) {
	unlock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := Dashboard{
		Season:     SeasonTransitioningToSummer,
		SeasonMode: ModeWaitingSwitchToSummer,
		UnlockAt:   unlock,
	}
	d.Devices[DeviceChiller1].State = OverrideOn

	doc := NewSnapshotDoc(d, false)
	if doc.Type != DocTypeSnapshot {
		t.Errorf("Expected type %s, got %s", DocTypeSnapshot, doc.Type)
	}
	if doc.UnlockAt == nil || !doc.UnlockAt.Equal(unlock) {
		t.Errorf("Expected unlock time %v, got %v", unlock, doc.UnlockAt)
	}
	if doc.Devices["chiller1"] != "on" || doc.Devices["boiler"] != "auto" {
		t.Errorf("Unexpected device table: %v", doc.Devices)
	}
	if len(doc.Devices) != DeviceCount {
		t.Errorf("Expected %d devices, got %d", DeviceCount, len(doc.Devices))
	}
	if doc.SystemOnline {
		t.Error("Expected offline snapshot")
	}
}
