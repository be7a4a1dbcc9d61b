package temperature

import (
	"fmt"
	"math"
	"strings"
)

// Unit represents a temperature unit
type Unit string

const (
	Celsius    Unit = "celsius"
	Fahrenheit Unit = "fahrenheit"
)

// ParseUnit accepts "fahrenheit", "celsius" and their one-letter forms
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fahrenheit", "f", "":
		return Fahrenheit, nil
	case "celsius", "c":
		return Celsius, nil
	default:
		return "", fmt.Errorf("unsupported temperature unit: %s", s)
	}
}

// Symbol returns the display suffix for the unit
func (u Unit) Symbol() string {
	if u == Celsius {
		return "°C"
	}
	return "°F"
}

// Scale represents how the temperature value is scaled
type Scale float64

const (
	ScaleNone   Scale = 1.0  // No scaling (e.g., 145.5°F)
	ScaleTenths Scale = 10.0 // Tenths (e.g., 1455 = 145.5°F)
)

// Format describes how a temperature value is formatted
type Format struct {
	Unit  Unit
	Scale Scale
}

// ControllerFormat is what the plant controller reports: whole °F
var ControllerFormat = Format{Unit: Fahrenheit, Scale: ScaleNone}

// Converter handles temperature conversions between different formats
type Converter struct {
	sourceFormat Format
	targetFormat Format
}

// NewConverter creates a new temperature converter
func NewConverter(sourceFormat, targetFormat Format) *Converter {
	return &Converter{
		sourceFormat: sourceFormat,
		targetFormat: targetFormat,
	}
}

// Convert converts a temperature value from source format to target format
func (c *Converter) Convert(temp *float64) (*float64, error) {
	if temp == nil {
		return nil, nil
	}

	unscaledTemp := *temp / float64(c.sourceFormat.Scale)

	var tempC float64
	switch c.sourceFormat.Unit {
	case Celsius:
		tempC = unscaledTemp
	case Fahrenheit:
		tempC = (unscaledTemp - 32.0) * 5.0 / 9.0
	default:
		return nil, fmt.Errorf("unsupported source temperature unit: %s", c.sourceFormat.Unit)
	}

	var targetTemp float64
	switch c.targetFormat.Unit {
	case Celsius:
		targetTemp = tempC
	case Fahrenheit:
		targetTemp = tempC*9.0/5.0 + 32.0
	default:
		return nil, fmt.Errorf("unsupported target temperature unit: %s", c.targetFormat.Unit)
	}

	scaledTemp := targetTemp * float64(c.targetFormat.Scale)
	return &scaledTemp, nil
}

// FormatFahrenheit renders a controller reading with one decimal, or "N/A" when absent
func FormatFahrenheit(temp *float64) string {
	return FormatIn(temp, Fahrenheit)
}

// FormatIn renders a °F controller reading in the requested display unit
func FormatIn(temp *float64, unit Unit) string {
	if temp == nil || math.IsNaN(*temp) {
		return "N/A"
	}
	v, err := NewConverter(ControllerFormat, Format{Unit: unit, Scale: ScaleNone}).Convert(temp)
	if err != nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%s", *v, unit.Symbol())
}

// FormatNumber renders an optional plain number with the given precision, or "N/A"
func FormatNumber(v *float64, precision int) string {
	if v == nil || math.IsNaN(*v) {
		return "N/A"
	}
	return fmt.Sprintf("%.*f", precision, *v)
}
