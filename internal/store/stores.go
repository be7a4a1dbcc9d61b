package store

// Stores groups the console's three stores
type Stores struct {
	Season    *Store[SeasonState]
	Overrides *Store[OverrideState]
	Telemetry *Store[TelemetryState]
}

// Snapshot is a consistent-per-store copy of all console state
type Snapshot struct {
	Season    SeasonState    `json:"season"`
	Overrides OverrideState  `json:"overrides"`
	Telemetry TelemetryState `json:"telemetry"`
}

// NewStores creates empty stores seeded with the configured limits
func NewStores(limits Limits) *Stores {
	return &Stores{
		Season:    New(NewSeasonState(), ReduceSeason),
		Overrides: New(OverrideState{}, ReduceOverrides),
		Telemetry: New(TelemetryState{Limits: limits}, ReduceTelemetry),
	}
}

// Broadcast dispatches a to every store; each reducer ignores what it does not handle
func (s *Stores) Broadcast(a Action) {
	s.Season.Dispatch(a)
	s.Overrides.Dispatch(a)
	s.Telemetry.Dispatch(a)
}

// Snapshot returns the current state of every store
func (s *Stores) Snapshot() Snapshot {
	return Snapshot{
		Season:    s.Season.Snapshot(),
		Overrides: s.Overrides.Snapshot(),
		Telemetry: s.Telemetry.Snapshot(),
	}
}
