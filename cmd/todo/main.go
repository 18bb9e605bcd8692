package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/Makepad-fr/tada-sync/internal/cli"
	"github.com/Makepad-fr/tada-sync/internal/config"
	"github.com/Makepad-fr/tada-sync/internal/store/jsonstore"
	"github.com/Makepad-fr/tada-sync/internal/tablesvc"
	"github.com/Makepad-fr/tada-sync/internal/todo"
	"github.com/Makepad-fr/tada-sync/internal/ui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		ui.Fail("config: " + err.Error())
		os.Exit(2)
	}

	// Root flags (apply to every subcommand); env supplies the defaults.
	backend := flag.String("backend", cfg.Backend, "where todos live: local or remote")
	dataDir := flag.String("data", cfg.DataDir, "directory for the local store")
	theme := flag.String("theme", cfg.Theme, "classic, neon or mono")
	groupPending := flag.Bool("group", false, "group output by pending/done")
	logLevel := flag.String("log-level", cfg.LogLevel.String(), "diagnostics level on stderr")
	flag.Parse()

	cfg.Backend, cfg.DataDir, cfg.Theme = *backend, *dataDir, *theme
	if lvl, err := zerolog.ParseLevel(*logLevel); err == nil {
		cfg.LogLevel = lvl
	} else {
		ui.Fail("-log-level: " + err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		ui.Fail("config: " + err.Error())
		os.Exit(2)
	}
	ui.SetTheme(cfg.Theme)

	// Hand the remaining args to the CLI runner.
	args := flag.Args()
	if len(args) == 0 {
		cli.PrintHelp()
		os.Exit(2)
	}

	var logOut io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if args[0] == "ui" {
		// stderr would draw over the alternate screen
		logOut = io.Discard
	}
	logger := zerolog.New(logOut).Level(cfg.LogLevel).With().Timestamp().Logger()

	code := cli.Run(args, cli.Options{
		Group:   *groupPending,
		Open:    opener(cfg, logger),
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(code)
}

// opener builds the configured store. cli loads and closes it.
func opener(cfg *config.Config, logger zerolog.Logger) func(ctx context.Context) (todo.Backend, error) {
	return func(ctx context.Context) (todo.Backend, error) {
		switch cfg.Backend {
		case config.BackendRemote:
			client, err := tablesvc.New(ctx, cfg.TableURL, cfg.TableKey, tablesvc.WithLogger(logger))
			if err != nil {
				return nil, err
			}
			return todo.NewRemote(client, todo.WithTable(cfg.Table), todo.WithLogger(logger)), nil

		default:
			s, err := todo.OpenLocal(jsonstore.New(cfg.DataDir), todo.WithLogger(logger))
			var perr *todo.ParseError
			if errors.As(err, &perr) {
				ui.Warn("saved todos are unreadable, starting with an empty list: " + perr.Err.Error())
				return s, nil
			}
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}
}
