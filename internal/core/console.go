package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benvon/chronos-console/internal/api"
	"github.com/benvon/chronos-console/internal/store"
	"github.com/benvon/chronos-console/pkg/config"
	"github.com/benvon/chronos-console/pkg/model"
)

// Backend is the dashboard API the console drives
type Backend interface {
	GetDashboard(ctx context.Context) (*api.DashboardPayload, error)
	SwitchSeason(ctx context.Context, seasonValue int) (*api.SwitchSeasonResponse, error)
	UpdateDeviceState(ctx context.Context, id int, state bool) (*api.OverrideResponse, error)
	UpdateManualOverride(ctx context.Context, device, value int) (*api.OverrideResponse, error)
	UpdateSettings(ctx context.Context, req api.SettingsRequest) (*api.MessageResponse, error)
	SetBoilerSetpoint(ctx context.Context, temperature float64) (*api.MessageResponse, error)
	TemperatureLimits(ctx context.Context) (*api.TemperatureLimits, error)
	ChartData(ctx context.Context) ([]api.ChartPoint, error)
}

// Options wires a Console
type Options struct {
	Backend   Backend
	Sinks     []model.Sink
	Clock     Clock
	Metrics   *Metrics
	Logger    *slog.Logger
	Breaker   BreakerReporter
	Auth      model.AuthManager
	Dialect   string
	Rollback  bool
	Timezone  string
	Limits    store.Limits
	Poll      time.Duration
	Tick      time.Duration
	BannerTTL time.Duration
}

// OptionsFromConfig fills the config-driven fields of Options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Dialect:  cfg.API.OverrideDialect,
		Rollback: cfg.Chronos.RollbackOverrides,
		Timezone: cfg.Chronos.Timezone,
		Limits: store.Limits{
			HardMin: cfg.Limits.HardMin,
			HardMax: cfg.Limits.HardMax,
			SoftMin: cfg.Limits.SoftMin,
			SoftMax: cfg.Limits.SoftMax,
		},
		Poll:      cfg.Chronos.PollInterval,
		Tick:      cfg.Chronos.CountdownInterval,
		BannerTTL: cfg.Chronos.BannerTTL,
	}
}

// Console ties the stores, the banner board and the controllers together
type Console struct {
	Stores    *store.Stores
	Notifier  *Notifier
	Poller    *Poller
	Season    *SeasonController
	Overrides *OverrideController
	Settings  *SettingsController
	Recorder  *Recorder
	Metrics   *Metrics
	Health    *HealthChecker

	backend    Backend
	normalizer *Normalizer
	clock      Clock
	tick       time.Duration
	logger     *slog.Logger
}

// NewConsole builds a console from opts
func NewConsole(opts Options) (*Console, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	timezone := opts.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	normalizer, err := NewNormalizer(timezone, logger)
	if err != nil {
		return nil, fmt.Errorf("creating normalizer: %w", err)
	}

	stores := store.NewStores(opts.Limits)
	notifier := NewNotifier(logger)
	notifier.now = clock.Now
	notifier.SetTTL(opts.BannerTTL)
	notifier.OnPush(metrics.RecordBanner)
	recorder := NewRecorder(opts.Sinks, metrics, logger)

	c := &Console{
		Stores:     stores,
		Notifier:   notifier,
		Recorder:   recorder,
		Metrics:    metrics,
		Health:     NewHealthChecker(opts.Breaker, opts.Auth, stores, opts.Sinks),
		backend:    opts.Backend,
		normalizer: normalizer,
		clock:      clock,
		tick:       opts.Tick,
		logger:     logger,
	}
	c.Poller = NewPoller(opts.Backend, normalizer, stores, notifier, recorder, metrics, clock, opts.Poll, logger)
	c.Season = NewSeasonController(opts.Backend, normalizer, stores, notifier, recorder, metrics, clock, opts.Tick, logger)
	c.Overrides = NewOverrideController(opts.Backend, stores, notifier, recorder, clock, opts.Dialect, opts.Rollback, logger)
	c.Settings = NewSettingsController(opts.Backend, stores, notifier, recorder, logger)
	return c, nil
}

// Run polls, drives the countdown and expires banners until ctx is done
func (c *Console) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		c.Poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		c.Season.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		c.Notifier.Run(ctx, c.clock, c.tick)
	}()
	wg.Wait()
}

// Chart fetches the loop temperature history
func (c *Console) Chart(ctx context.Context) ([]model.ChartSample, error) {
	points, err := c.backend.ChartData(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching chart data: %w", err)
	}
	return c.normalizer.NormalizeChart(points), nil
}

// State is everything the operator sees
type State struct {
	store.Snapshot
	Banners []Banner `json:"banners"`
}

// State returns the current console state
func (c *Console) State() State {
	return State{Snapshot: c.Stores.Snapshot(), Banners: c.Notifier.List()}
}
