package model

import (
	"fmt"
	"strings"
)

// Season is the operating mode of the cascade: boiler-driven winter,
// chiller-driven summer, or a switchover in progress
type Season int

const (
	SeasonUnknown Season = iota - 1
	SeasonWinter
	SeasonSummer
	SeasonTransitioningToWinter
	SeasonTransitioningToSummer
)

// Backend season_mode values
const (
	ModeWinter                = 0
	ModeSummer                = 1
	ModeWaitingSwitchToWinter = 2
	ModeWaitingSwitchToSummer = 3
	ModeSwitchingToWinter     = 4
	ModeSwitchingToSummer     = 5
)

// SeasonFromMode maps the controller's numeric mode to a Season
func SeasonFromMode(mode int) Season {
	switch mode {
	case ModeWinter:
		return SeasonWinter
	case ModeSummer:
		return SeasonSummer
	case ModeWaitingSwitchToWinter, ModeSwitchingToWinter:
		return SeasonTransitioningToWinter
	case ModeWaitingSwitchToSummer, ModeSwitchingToSummer:
		return SeasonTransitioningToSummer
	default:
		return SeasonUnknown
	}
}

// Mode returns the numeric value the backend expects in a switch request.
// Only Winter and Summer are valid switch targets.
func (s Season) Mode() (int, error) {
	switch s {
	case SeasonWinter:
		return ModeWinter, nil
	case SeasonSummer:
		return ModeSummer, nil
	default:
		return 0, fmt.Errorf("season %s is not a switch target", s)
	}
}

// IsTransitioning reports whether a switchover is under way
func (s Season) IsTransitioning() bool {
	return s == SeasonTransitioningToWinter || s == SeasonTransitioningToSummer
}

// Target returns the season a transitional season is heading to
func (s Season) Target() Season {
	switch s {
	case SeasonTransitioningToWinter:
		return SeasonWinter
	case SeasonTransitioningToSummer:
		return SeasonSummer
	default:
		return s
	}
}

// TransitionTo returns the transitional season used while switching to target
func TransitionTo(target Season) Season {
	switch target {
	case SeasonWinter:
		return SeasonTransitioningToWinter
	case SeasonSummer:
		return SeasonTransitioningToSummer
	default:
		return SeasonUnknown
	}
}

// String returns the human readable season name
func (s Season) String() string {
	switch s {
	case SeasonWinter:
		return "Winter"
	case SeasonSummer:
		return "Summer"
	case SeasonTransitioningToWinter:
		return "TransitioningToWinter"
	case SeasonTransitioningToSummer:
		return "TransitioningToSummer"
	default:
		return "Unknown"
	}
}

// ParseSeason parses a switch target name such as "winter" or "Summer"
func ParseSeason(name string) (Season, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "winter":
		return SeasonWinter, nil
	case "summer":
		return SeasonSummer, nil
	default:
		return SeasonUnknown, fmt.Errorf("unknown season %q, must be winter or summer", name)
	}
}

// SystemStatus is the derived connectivity indicator shown to the operator
type SystemStatus string

const (
	StatusOnline  SystemStatus = "ONLINE"
	StatusOffline SystemStatus = "OFFLINE"
)

// MarshalText encodes the season by name
func (s Season) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
