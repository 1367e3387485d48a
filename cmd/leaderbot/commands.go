package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"leaderbot/analytics"
	"leaderbot/core"
	"leaderbot/engine"
	"leaderbot/leaderboard"
)

func leaderboardFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "year", Usage: "event year (default: configured year, else the current year)"},
		&cli.Int64Flag{Name: "leaderboard-id", Usage: "private leaderboard id (default: configured id)"},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run one fetch, diff, report and save cycle",
		Flags: append(leaderboardFlags(),
			&cli.BoolFlag{Name: "dry-run", Usage: "report the changes without saving"},
		),
		Action: func(c *cli.Context) error {
			app, cleanup, err := BuildApp(c.Context, configSource(c))
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(c.Context, app.Config.Server.RunTimeout)
			defer cancel()

			res, err := app.Bot.Bot.RunWith(ctx, app.CycleConfig(), engine.RunOptions{DryRun: c.Bool("dry-run")})
			if err != nil {
				return cli.Exit(fmt.Sprintf("cycle failed [%s]: %v", core.ErrorKind(err), err), 1)
			}
			app.Logger.Info("cycle finished",
				"run_id", res.RunID,
				"first_run", res.FirstRun,
				"reported", res.Reported,
				"saved", res.Saved,
				"stars_gained", res.Changes.StarsGained())
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the status API and run cycles on a schedule",
		Flags: leaderboardFlags(),
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, cleanup, err := BuildApp(ctx, configSource(c))
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := app.Config
			app.Logger.Info("starting leaderbot",
				"environment", cfg.Environment,
				"address", cfg.Server.Address,
				"storage_adapter", cfg.Storage.Adapter,
				"schedule_interval", cfg.Server.ScheduleInterval)

			srvErr := make(chan error, 1)
			go func() {
				app.Logger.Info("server listening", "address", cfg.Server.Address)
				if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					srvErr <- err
				}
			}()
			go schedule(ctx, app)

			select {
			case <-ctx.Done():
			case err := <-srvErr:
				return fmt.Errorf("server: %w", err)
			}

			app.Logger.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := app.Server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			app.Logger.Info("server stopped")
			return nil
		},
	}
}

// schedule runs a cycle right away and then every schedule interval until ctx
// is done. A zero interval leaves cycles to POST /run.
func schedule(ctx context.Context, app *App) {
	interval := app.Config.Server.ScheduleInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		runCtx, cancel := context.WithTimeout(ctx, app.Config.Server.RunTimeout)
		if _, err := app.Bot.Bot.Run(runCtx, app.CycleConfig()); err != nil && ctx.Err() == nil {
			app.Logger.Warn("scheduled cycle failed", "error_kind", core.ErrorKind(err))
		}
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// migrator is implemented by storages with a schema.
type migrator interface {
	Migrate(ctx context.Context) error
}

func prepareCommand() *cli.Command {
	return &cli.Command{
		Name:  "prepare",
		Usage: "create the storage schema or check the storage is reachable",
		Action: func(c *cli.Context) error {
			app, cleanup, err := BuildApp(c.Context, configSource(c))
			if err != nil {
				return err
			}
			defer cleanup()

			switch s := app.Storage.(type) {
			case migrator:
				if err := s.Migrate(c.Context); err != nil {
					return err
				}
				app.Logger.Info("storage schema ready", "adapter", app.Config.Storage.Adapter)
			case engine.HealthChecker:
				if err := s.Ping(c.Context); err != nil {
					return err
				}
				app.Logger.Info("storage reachable", "adapter", app.Config.Storage.Adapter)
			default:
				app.Logger.Info("nothing to prepare", "adapter", app.Config.Storage.Adapter)
			}
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "export the standings of the stored snapshot",
		Flags: append(leaderboardFlags(),
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: string(analytics.FormatXLSX), Usage: "xlsx or json"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "-", Usage: "output file, - for stdout"},
			&cli.StringFlag{Name: "sort", Usage: "stars or score (default: configured sort order)"},
		),
		Action: func(c *cli.Context) error {
			format, err := analytics.ParseFormat(c.String("format"))
			if err != nil {
				return err
			}
			exporter, err := analytics.NewExporter(format)
			if err != nil {
				return err
			}

			app, cleanup, err := BuildApp(c.Context, configSource(c))
			if err != nil {
				return err
			}
			defer cleanup()

			order := app.Config.Reporter.SortOrder
			if s := c.String("sort"); s != "" {
				if order, err = leaderboard.ParseSortOrder(s); err != nil {
					return err
				}
			}

			lb, err := loadSnapshot(c.Context, app)
			if err != nil {
				return err
			}
			return writeOutput(c.String("out"), func(w io.Writer) error {
				return exporter.Export(w, lb, order)
			})
		},
	}
}

func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
