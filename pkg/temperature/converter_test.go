package temperature

import (
	"fmt"
	"testing"
)

var celsiusFormat = Format{Unit: Celsius, Scale: ScaleNone}

func TestConverterConvert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		sourceFormat Format
		targetFormat Format
		input        *float64
		want         *float64
		wantErr      bool
	}{
		{
			name:         "nil input returns nil",
			sourceFormat: ControllerFormat,
			targetFormat: celsiusFormat,
			input:        nil,
			want:         nil,
			wantErr:      false,
		},
		{
			name:         "tenths of Fahrenheit to Celsius - 72°F (720 tenths)",
			sourceFormat: Format{Unit: Fahrenheit, Scale: ScaleTenths},
			targetFormat: celsiusFormat,
			input:        floatPtr(720.0),
			want:         floatPtr(22.222222222222218), // 72°F = ~22.22°C
			wantErr:      false,
		},
		{
			name:         "tenths of Fahrenheit to Celsius - 32°F (320 tenths)",
			sourceFormat: Format{Unit: Fahrenheit, Scale: ScaleTenths},
			targetFormat: celsiusFormat,
			input:        floatPtr(320.0),
			want:         floatPtr(0.0), // 32°F = 0°C
			wantErr:      false,
		},
		{
			name:         "Standard Celsius to Celsius - no conversion needed",
			sourceFormat: celsiusFormat,
			targetFormat: celsiusFormat,
			input:        floatPtr(25.0),
			want:         floatPtr(25.0),
			wantErr:      false,
		},
		{
			name:         "Standard Fahrenheit to Celsius",
			sourceFormat: ControllerFormat,
			targetFormat: celsiusFormat,
			input:        floatPtr(72.0),
			want:         floatPtr(22.222222222222218),
			wantErr:      false,
		},
		{
			name:         "Celsius to Fahrenheit",
			sourceFormat: celsiusFormat,
			targetFormat: ControllerFormat,
			input:        floatPtr(0.0),
			want:         floatPtr(32.0),
			wantErr:      false,
		},
		{
			name:         "Celsius to tenths of Fahrenheit",
			sourceFormat: celsiusFormat,
			targetFormat: Format{Unit: Fahrenheit, Scale: ScaleTenths},
			input:        floatPtr(100.0),
			want:         floatPtr(2120.0),
			wantErr:      false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			converter := NewConverter(tt.sourceFormat, tt.targetFormat)
			got, err := converter.Convert(tt.input)

			if (err != nil) != tt.wantErr {
				t.Errorf("Convert() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !floatPtrEqual(got, tt.want) {
				t.Errorf("Convert() = %v, want %v", ptrToString(got), ptrToString(tt.want))
			}
		})
	}
}

func TestFormatFahrenheit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		temp *float64
		want string
	}{
		{"missing reading", nil, "N/A"},
		{"whole degrees", floatPtr(50), "50.0°F"},
		{"rounds to one decimal", floatPtr(145.26), "145.3°F"},
		{"negative", floatPtr(-4), "-4.0°F"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FormatFahrenheit(tt.temp); got != tt.want {
				t.Errorf("FormatFahrenheit() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatIn(t *testing.T) {
	t.Parallel()

	if got := FormatIn(floatPtr(212), Celsius); got != "100.0°C" {
		t.Errorf("FormatIn(212, celsius) = %q", got)
	}
	if got := FormatIn(nil, Celsius); got != "N/A" {
		t.Errorf("FormatIn(nil) = %q", got)
	}
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	if got := FormatNumber(floatPtr(87.456), 2); got != "87.46" {
		t.Errorf("FormatNumber() = %q", got)
	}
	if got := FormatNumber(nil, 2); got != "N/A" {
		t.Errorf("FormatNumber(nil) = %q", got)
	}
}

func TestParseUnit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Unit
		wantErr bool
	}{
		{"", Fahrenheit, false},
		{"F", Fahrenheit, false},
		{"celsius", Celsius, false},
		{"kelvin", "", true},
	}
	for _, tt := range tests {
		got, err := ParseUnit(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseUnit(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseUnit(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// Helper functions for testing

func floatPtr(f float64) *float64 {
	return &f
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	// Use a small epsilon for floating point comparison
	const epsilon = 1e-9
	diff := *a - *b
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}

func ptrToString(f *float64) string {
	if f == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%f", *f)
}
