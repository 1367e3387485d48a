package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "leaderbot",
		Usage: "watch an Advent of Code private leaderboard and announce new stars",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a JSON or YAML configuration file",
				EnvVars: []string{"LEADERBOT_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "load environment variables from this file (default .env when present)",
			},
		},
		Before: loadEnvFile,
		Commands: []*cli.Command{
			runCommand(),
			serveCommand(),
			prepareCommand(),
			exportCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadEnvFile loads .env style files without overriding variables that are already set.
func loadEnvFile(c *cli.Context) error {
	if path := c.String("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func configSource(c *cli.Context) ConfigSource {
	return ConfigSource{
		Path:          c.String("config"),
		Year:          c.Int("year"),
		LeaderboardID: c.Int64("leaderboard-id"),
	}
}
