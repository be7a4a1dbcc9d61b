package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/benvon/chronos-console/internal/core"
	"github.com/benvon/chronos-console/internal/view"
	"github.com/benvon/chronos-console/pkg/model"
	"github.com/benvon/chronos-console/pkg/temperature"
)

// status polls once and prints the rendered state
func (app *Application) status(ctx context.Context) error {
	if err := app.Console.Poller.PollOnce(ctx); err != nil {
		app.Logger.Warn("Poll failed, showing offline state", "error", err)
	}
	app.printState()
	return nil
}

// poll loads the current state before an action; actions need the season and read-only flag
func (app *Application) poll(ctx context.Context) error {
	if err := app.Console.Poller.PollOnce(ctx); err != nil {
		return fmt.Errorf("edge server unreachable: %w", err)
	}
	return nil
}

func (app *Application) switchSeason(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: switch winter|summer")
	}
	target, err := model.ParseSeason(args[0])
	if err != nil {
		return err
	}
	if err := app.poll(ctx); err != nil {
		return err
	}

	if err := app.Console.Season.RequestSwitch(ctx, target); err != nil {
		return err
	}
	if state := app.Console.Stores.Season.Snapshot(); !state.IsSwitching {
		fmt.Printf("No switch requested: already in %s or locked out\n", state.Season)
	}
	app.printState()
	return nil
}

func (app *Application) override(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: override DEVICE auto|on|off")
	}
	device, err := model.ParseDeviceID(args[0])
	if err != nil {
		return err
	}
	state, err := model.ParseOverrideState(args[1])
	if err != nil {
		return err
	}
	if err := app.poll(ctx); err != nil {
		return err
	}

	if err := app.Console.Overrides.SetOverride(ctx, device, state); err != nil {
		return err
	}
	fmt.Printf("%s set to %s\n", device, state)
	return nil
}

func (app *Application) settings(ctx context.Context, args []string) error {
	var assumeYes bool
	flagSet := pflag.NewFlagSet("settings", pflag.ContinueOnError)
	flagSet.BoolVarP(&assumeYes, "yes", "y", false, "accept soft-limit warnings without asking")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() == 0 {
		return errors.New("usage: settings [--yes] KEY=VALUE...")
	}

	form := core.SettingsForm{}
	for _, arg := range flagSet.Args() {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected KEY=VALUE, got %q", arg)
		}
		form[strings.TrimSpace(key)] = value
	}
	if err := app.poll(ctx); err != nil {
		return err
	}

	confirm := promptConfirm
	if assumeYes {
		confirm = func(string) bool { return true }
	}
	msg, err := app.Console.Settings.SubmitSettings(ctx, form, confirm)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func (app *Application) setpoint(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: setpoint TEMP")
	}
	if err := app.poll(ctx); err != nil {
		return err
	}

	msg, err := app.Console.Settings.SetBoilerSetpoint(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func (app *Application) printState() {
	unit, err := temperature.ParseUnit(app.Config.Chronos.DisplayUnit)
	if err != nil {
		unit = temperature.Fahrenheit
	}
	renderer := view.NewRenderer(view.DefaultTheme, unit, 0)
	fmt.Println(renderer.Render(app.Console.State(), time.Now()))
}

// promptConfirm asks on the terminal; anything but y/yes declines
func promptConfirm(msg string) bool {
	fmt.Printf("%s [y/N]: ", msg)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
