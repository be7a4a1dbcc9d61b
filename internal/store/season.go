package store

import (
	"time"

	"github.com/benvon/chronos-console/pkg/model"
)

// SeasonState is the season slice of the console state
type SeasonState struct {
	Season     model.Season `json:"season"`
	SeasonMode int          `json:"season_mode"`
	ReadOnly   bool         `json:"read_only_mode"`
	// UnlockAt is zero when no lockout is active
	UnlockAt            time.Time          `json:"unlock_time,omitzero"`
	IsSwitching         bool               `json:"is_switching"`
	Remaining           time.Duration      `json:"remaining"`
	ManualOverride      bool               `json:"manual_override"`
	SystemStatus        model.SystemStatus `json:"system_status"`
	LastUpdated         time.Time          `json:"last_updated,omitzero"`
	ConsecutiveFailures int                `json:"consecutive_failures"`
	Generation          uint64             `json:"generation"`
}

// NewSeasonState returns the state before the first poll
func NewSeasonState() SeasonState {
	return SeasonState{Season: model.SeasonUnknown, SystemStatus: model.StatusOffline}
}

// LockedAt reports whether a switch is in progress or the lockout has not expired
func (s SeasonState) LockedAt(now time.Time) bool {
	return s.IsSwitching || (!s.UnlockAt.IsZero() && s.UnlockAt.After(now))
}

// ReduceSeason is the season reducer
func ReduceSeason(prev SeasonState, a Action) SeasonState {
	next := prev
	switch a := a.(type) {
	case PollSucceeded:
		if a.Seq <= prev.Generation {
			return prev
		}
		d := a.Dashboard
		unlock := d.UnlockAt
		if !unlock.After(a.At) {
			unlock = time.Time{}
		}
		next = SeasonState{
			Season:         d.Season,
			SeasonMode:     d.SeasonMode,
			ReadOnly:       d.ReadOnly,
			UnlockAt:       unlock,
			IsSwitching:    !unlock.IsZero() || d.Season.IsTransitioning() || d.SwitchingSeason,
			ManualOverride: prev.ManualOverride,
			SystemStatus:   model.StatusOnline,
			LastUpdated:    a.At,
			Generation:     a.Seq,
		}
		if !unlock.IsZero() {
			next.Remaining = unlock.Sub(a.At)
		}

	case PollFailed:
		if a.Seq <= prev.Generation {
			return prev
		}
		next.SystemStatus = model.StatusOffline
		next.ConsecutiveFailures++
		next.Generation = a.Seq

	case SwitchRequested:
		if prev.ReadOnly || prev.LockedAt(a.At) || prev.Season == a.Target {
			return prev
		}
		next.IsSwitching = true
		next.ManualOverride = false
		next.Season = model.TransitionTo(a.Target)

	case SwitchAccepted:
		// Without a future unlock time there is no lockout to count down
		next.SystemStatus = model.StatusOnline
		next.IsSwitching = false
		next.UnlockAt = time.Time{}
		next.Remaining = 0
		if a.UnlockAt.After(a.At) {
			next.IsSwitching = true
			next.UnlockAt = a.UnlockAt
			next.Remaining = a.UnlockAt.Sub(a.At)
		}

	case SwitchFailed:
		next.IsSwitching = false
		next.UnlockAt = time.Time{}
		next.Remaining = 0
		next.Season = a.Previous
		next.ManualOverride = a.ManualOverride

	case CountdownTicked:
		if !prev.IsSwitching || prev.UnlockAt.IsZero() {
			return prev
		}
		remaining := prev.UnlockAt.Sub(a.Now)
		if remaining <= 0 {
			next.IsSwitching = false
			next.UnlockAt = time.Time{}
			next.Remaining = 0
		} else {
			next.Remaining = remaining
		}

	default:
		return prev
	}
	return next
}
