// Package view renders the console state for a terminal.
package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/benvon/chronos-console/internal/core"
	"github.com/benvon/chronos-console/internal/store"
	"github.com/benvon/chronos-console/pkg/model"
	"github.com/benvon/chronos-console/pkg/temperature"
)

// Theme is the color palette of the status view
type Theme struct {
	Title      lipgloss.Color
	NormalText lipgloss.Color
	FaintText  lipgloss.Color
	Online     lipgloss.Color
	Offline    lipgloss.Color
	Winter     lipgloss.Color
	Summer     lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

// DefaultTheme suits a dark terminal
var DefaultTheme = Theme{
	Title:      lipgloss.Color("252"),
	NormalText: lipgloss.Color("250"),
	FaintText:  lipgloss.Color("243"),
	Online:     lipgloss.Color("42"),
	Offline:    lipgloss.Color("196"),
	Winter:     lipgloss.Color("39"),
	Summer:     lipgloss.Color("214"),
	Success:    lipgloss.Color("42"),
	Warning:    lipgloss.Color("220"),
	Error:      lipgloss.Color("196"),
}

// Renderer draws the status screen
type Renderer struct {
	theme Theme
	unit  temperature.Unit
	width int
}

// NewRenderer creates a renderer for the given display unit and width
func NewRenderer(theme Theme, unit temperature.Unit, width int) Renderer {
	if width <= 0 {
		width = 72
	}
	return Renderer{theme: theme, unit: unit, width: width}
}

// Render draws state as of now
func (r Renderer) Render(state core.State, now time.Time) string {
	sections := []string{
		r.renderHeader(state.Season, now),
		r.renderSeason(state.Season),
		r.renderOverrides(state.Season.Season, state.Overrides),
		r.renderTemperatures(state.Telemetry),
	}
	if eff := state.Telemetry.Efficiency; eff != (model.Efficiency{}) {
		sections = append(sections, r.renderEfficiency(eff))
	}
	if len(state.Banners) > 0 {
		sections = append(sections, r.renderBanners(state.Banners))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (r Renderer) renderHeader(season store.SeasonState, now time.Time) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(r.theme.Title).Render("Chronos")

	statusColor := r.theme.Offline
	if season.SystemStatus == model.StatusOnline {
		statusColor = r.theme.Online
	}
	status := lipgloss.NewStyle().Bold(true).Foreground(statusColor).Render(string(season.SystemStatus))

	parts := []string{title, status}
	if season.ReadOnly {
		parts = append(parts, lipgloss.NewStyle().Foreground(r.theme.Warning).Render("READ ONLY"))
	}
	line := strings.Join(parts, "  ")

	updated := "never updated"
	if !season.LastUpdated.IsZero() {
		updated = fmt.Sprintf("updated %s ago", now.Sub(season.LastUpdated).Truncate(time.Second))
	}
	faint := lipgloss.NewStyle().Foreground(r.theme.FaintText)
	if season.ConsecutiveFailures > 0 {
		updated += fmt.Sprintf(", %d failed polls", season.ConsecutiveFailures)
	}

	return lipgloss.NewStyle().Width(r.width).MaxWidth(r.width).Render(line + "\n" + faint.Render(updated))
}

func (r Renderer) renderSeason(season store.SeasonState) string {
	header := r.sectionHeader("Season")

	color := r.theme.NormalText
	switch season.Season {
	case model.SeasonWinter, model.SeasonTransitioningToWinter:
		color = r.theme.Winter
	case model.SeasonSummer, model.SeasonTransitioningToSummer:
		color = r.theme.Summer
	}
	name := lipgloss.NewStyle().Bold(true).Foreground(color).Render(season.Season.String())

	var detail string
	switch {
	case season.IsSwitching:
		detail = "switch in progress, " + core.FormatCountdown(season.Remaining) + " remaining"
	case season.Remaining > 0:
		detail = "locked for " + core.FormatCountdown(season.Remaining)
	case season.ManualOverride:
		detail = "switch blocked by manual override"
	default:
		detail = "ready to switch"
	}
	faint := lipgloss.NewStyle().Foreground(r.theme.FaintText)
	return header + "\n" + name + "  " + faint.Render(detail)
}

func (r Renderer) renderOverrides(season model.Season, overrides store.OverrideState) string {
	nameStyle := lipgloss.NewStyle().Width(10).Foreground(r.theme.NormalText)
	stateStyle := lipgloss.NewStyle().Width(6).Bold(true)
	faint := lipgloss.NewStyle().Foreground(r.theme.FaintText)

	lines := []string{r.sectionHeader("Overrides")}
	for _, id := range model.AllDevices() {
		entry := overrides.Devices[id]
		state := stateStyle.Foreground(r.overrideColor(entry.State)).Render(entry.State.String())

		var notes []string
		if model.IsDisabled(id, season) {
			notes = append(notes, "disabled")
		}
		if overrides.Pending[id] {
			notes = append(notes, "pending")
		}
		if !entry.SwitchedAt.IsZero() {
			notes = append(notes, "since "+entry.SwitchedAt.Format("Jan 2 15:04"))
		}
		lines = append(lines, nameStyle.Render(id.String())+state+faint.Render(strings.Join(notes, ", ")))
	}
	return strings.Join(lines, "\n")
}

func (r Renderer) overrideColor(state model.OverrideState) lipgloss.Color {
	switch state {
	case model.OverrideOn:
		return r.theme.Online
	case model.OverrideOff:
		return r.theme.Offline
	default:
		return r.theme.NormalText
	}
}

func (r Renderer) renderTemperatures(t store.TelemetryState) string {
	labelStyle := lipgloss.NewStyle().Width(20).Foreground(r.theme.FaintText)
	valueStyle := lipgloss.NewStyle().Foreground(r.theme.NormalText)

	rows := []struct {
		label string
		value *float64
	}{
		{"Water out", t.Sensors.WaterOutTemp},
		{"Return", t.Sensors.ReturnTemp},
		{"Outside", t.Sensors.OutsideTemp},
		{"Effective setpoint", t.Results.EffectiveSetpoint},
		{"Boiler setpoint", t.BoilerStatus.CurrentSetpoint},
	}

	lines := []string{r.sectionHeader("Temperatures")}
	for _, row := range rows {
		lines = append(lines, labelStyle.Render(row.label)+valueStyle.Render(temperature.FormatIn(row.value, r.unit)))
	}
	return strings.Join(lines, "\n")
}

func (r Renderer) renderEfficiency(e model.Efficiency) string {
	labelStyle := lipgloss.NewStyle().Width(20).Foreground(r.theme.FaintText)
	valueStyle := lipgloss.NewStyle().Foreground(r.theme.NormalText)

	rows := []struct {
		label string
		value string
	}{
		{"Run hours", temperature.FormatNumber(e.Hours, 1)},
		{"Chiller efficiency", temperature.FormatNumber(e.ChillersEfficiency, 2)},
		{"Avg ΔT (°F)", temperature.FormatNumber(e.AverageTemperatureDifference, 1)},
		{"Cascade fire rate", temperature.FormatNumber(e.CascadeFireRateAvg, 1)},
	}

	lines := []string{r.sectionHeader("Efficiency")}
	for _, row := range rows {
		lines = append(lines, labelStyle.Render(row.label)+valueStyle.Render(row.value))
	}
	return strings.Join(lines, "\n")
}

func (r Renderer) renderBanners(banners []core.Banner) string {
	lines := []string{r.sectionHeader("Notifications")}
	for _, b := range banners {
		color := r.theme.NormalText
		switch b.Level {
		case core.LevelSuccess:
			color = r.theme.Success
		case core.LevelWarning:
			color = r.theme.Warning
		case core.LevelError:
			color = r.theme.Error
		}
		marker := lipgloss.NewStyle().Foreground(color).Render("●")
		text := lipgloss.NewStyle().Width(r.width - 2).Foreground(r.theme.NormalText).Render(b.Message)
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, marker+" ", text))
	}
	return strings.Join(lines, "\n")
}

func (r Renderer) sectionHeader(title string) string {
	return "\n" + lipgloss.NewStyle().Bold(true).Underline(true).Foreground(r.theme.Title).Render(title)
}
