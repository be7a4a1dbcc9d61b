package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/benvon/chronos-console/internal/api"
	"github.com/benvon/chronos-console/internal/core"
	"github.com/benvon/chronos-console/internal/handlers"
	"github.com/benvon/chronos-console/internal/sinks/influx"
	"github.com/benvon/chronos-console/internal/sinks/mqtt"
	"github.com/benvon/chronos-console/internal/sinks/sqlite"
	"github.com/benvon/chronos-console/pkg/config"
	"github.com/benvon/chronos-console/pkg/model"
	"github.com/benvon/chronos-console/pkg/retry"
)

const (
	appName    = "chronos-console"
	appVersion = "1.0.0"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		configFile  string
		logLevel    string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	flagSet.StringVarP(&configFile, "config", "c", "config.yaml", "path to configuration file")
	flagSet.StringVar(&logLevel, "log-level", "", "override chronos.log_level")
	flagSet.BoolVar(&showVersion, "version", false, "show version information")
	flagSet.SetInterspersed(false)
	flagSet.Usage = func() { printHelp(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("%s version %s\n", appName, appVersion)
		return nil
	}

	command := "run"
	rest := flagSet.Args()
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}

	if command == "example-config" {
		path := "config.example.yaml"
		if len(rest) > 0 {
			path = rest[0]
		}
		if err := config.CreateExampleConfig(path); err != nil {
			return err
		}
		fmt.Printf("Wrote example configuration to %s\n", path)
		return nil
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Chronos.LogLevel = logLevel
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := initializeApp(ctx, cfg, setupLogger(cfg.Chronos.LogLevel))
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer app.close()

	switch command {
	case "run":
		return app.serve(ctx)
	case "status":
		return app.status(ctx)
	case "switch":
		return app.switchSeason(ctx, rest)
	case "override":
		return app.override(ctx, rest)
	case "settings":
		return app.settings(ctx, rest)
	case "setpoint":
		return app.setpoint(ctx, rest)
	default:
		printHelp(flagSet)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `%s: operator console for the boiler/chiller plant controller

Usage:
  %s [flags] [command] [args]

Commands:
  run                              poll the controller and serve the local API (default)
  status                           poll once and print the plant status
  switch winter|summer             request a season switch
  override DEVICE auto|on|off      set a relay override (boiler, chiller1..chiller4)
  settings [--yes] KEY=VALUE...    submit user settings
  setpoint TEMP                    set the boiler setpoint in °F
  example-config [PATH]            write an example configuration file

Flags:
%s`, appName, appName, flagSet.FlagUsages())
}

// Application holds all the application components
type Application struct {
	Config  *config.Config
	Client  *api.Client
	Console *core.Console
	Journal *sqlite.Sink
	Logger  *slog.Logger
}

// initializeApp initializes all application components
func initializeApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	auth := api.NewAuthManager(cfg.API.BaseURL, api.Credentials{
		Email:        cfg.API.Email,
		Password:     cfg.API.Password,
		AccessToken:  cfg.API.AccessToken,
		RefreshToken: cfg.API.RefreshToken,
	}, cfg.API.RefreshLeeway, nil, logger)

	client := api.NewClient(api.ClientConfig{
		BaseURL:       cfg.API.BaseURL,
		DashboardPath: cfg.API.DashboardPath,
		Timeout:       cfg.Chronos.RequestTimeout,
		Breaker:       cfg.API.Breaker,
		ReadRetry:     retry.DefaultConfig(),
	}, auth, logger)

	metrics := core.NewMetrics()
	client.SetObserver(metrics.ObserveRequest)

	sinks, journal := initializeSinks(ctx, cfg, logger)

	opts := core.OptionsFromConfig(cfg)
	opts.Backend = client
	opts.Sinks = sinks
	opts.Metrics = metrics
	opts.Logger = logger
	opts.Breaker = client
	opts.Auth = client.Auth()

	console, err := core.NewConsole(opts)
	if err != nil {
		return nil, err
	}

	// A failed refresh clears the session; log in again when credentials allow
	auth.OnLogout(func() {
		if !auth.HasLogin() {
			return
		}
		go func() {
			err := retry.Do(ctx, retry.DefaultConfig(), func() error {
				return auth.Login(ctx)
			})
			if err != nil {
				logger.Error("Re-login failed", "error", err)
			}
		}()
	})

	return &Application{
		Config:  cfg,
		Client:  client,
		Console: console,
		Journal: journal,
		Logger:  logger,
	}, nil
}

// initializeSinks opens every enabled sink. A sink that cannot be opened is
// logged and left out so the console still works without it.
func initializeSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]model.Sink, *sqlite.Sink) {
	var (
		sinks   []model.Sink
		journal *sqlite.Sink
	)

	open := func(sink model.Sink) bool {
		name := sink.Info().Name
		err := retry.Do(ctx, retry.DefaultConfig(), func() error {
			return sink.Open(ctx)
		})
		if err != nil {
			logger.Error("Failed to open sink, continuing without it", "sink", name, "error", err)
			return false
		}
		logger.Info("Opened sink", "sink", name)
		sinks = append(sinks, sink)
		return true
	}

	if cfg.Sinks.SQLite.Enabled {
		sink := sqlite.NewSink(cfg.Sinks.SQLite.Path)
		if open(sink) {
			journal = sink
		}
	}
	if c := cfg.Sinks.InfluxDB; c.Enabled {
		open(influx.NewSink(influx.Config{URL: c.URL, Token: c.Token, Org: c.Org, Bucket: c.Bucket}))
	}
	if c := cfg.Sinks.MQTT; c.Enabled {
		open(mqtt.NewSink(mqtt.Config{
			Broker:      c.Broker,
			ClientID:    c.ClientID,
			Username:    c.Username,
			Password:    c.Password,
			TopicPrefix: c.TopicPrefix,
			QoS:         c.QoS,
		}, logger))
	}
	return sinks, journal
}

// serve runs the console and the local API until ctx is done
func (app *Application) serve(ctx context.Context) error {
	app.Logger.Info("Starting chronos console",
		"version", appVersion,
		"backend", app.Config.API.BaseURL,
		"listen_addr", app.Config.Chronos.ListenAddr,
		"sinks", strings.Join(app.Config.EnabledSinks(), ","))

	if app.Config.Chronos.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	var journal handlers.Journal
	if app.Journal != nil {
		journal = app.Journal
	}
	router := handlers.NewHandler(app.Console, journal, app.Logger).InitRoutes()

	server := &http.Server{
		Addr:              app.Config.Chronos.ListenAddr,
		Handler:           router,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		app.Logger.Info("Starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("HTTP server failed", "error", err)
		}
	}()

	app.Console.Run(ctx)

	app.Logger.Info("Shutting down HTTP server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("Failed to shutdown HTTP server", "error", err)
	}

	app.Logger.Info("Application stopped")
	return nil
}

func (app *Application) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Console.Recorder.Close(ctx); err != nil {
		app.Logger.Error("Failed to close sinks", "error", err)
	}
}

// setupLogger configures structured logging
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}
