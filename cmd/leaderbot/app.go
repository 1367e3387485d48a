package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"leaderbot/adapters/jsonfile"
	mem "leaderbot/adapters/memory"
	redisAdapter "leaderbot/adapters/redis"
	sqlxAdapter "leaderbot/adapters/sqlx"
	"leaderbot/analytics"
	"leaderbot/api/httpapi"
	"leaderbot/bot"
	"leaderbot/config"
	"leaderbot/core"
	"leaderbot/engine"
	"leaderbot/integrations/aoc"
	"leaderbot/integrations/console"
	"leaderbot/integrations/discord"
	"leaderbot/integrations/slack"
	"leaderbot/integrations/webhook"
	"leaderbot/realtime"
)

// ConfigSource tells provideConfig where to read the configuration from and
// which command line overrides to apply.
type ConfigSource struct {
	Path          string
	Year          int
	LeaderboardID int64
}

// App aggregates the assembled components.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Hub       *realtime.Hub
	Analytics *analytics.Service
	Storage   engine.Storage
	Bot       *bot.Assembly
	Handler   http.Handler
	Server    *http.Server
}

// CycleConfig is the leaderboard the bot monitors.
func (a *App) CycleConfig() engine.Config { return a.Config.Bot.Engine() }

func provideConfig(src ConfigSource) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if src.Path != "" {
		cfg, err = config.LoadFromFile(src.Path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if src.Year != 0 {
		cfg.Bot.Year = src.Year
	}
	if src.LeaderboardID != 0 {
		cfg.Bot.LeaderboardID = src.LeaderboardID
	}
	if err := cfg.Bot.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: bot config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideAnalytics() (*analytics.Service, error) {
	return analytics.NewService()
}

func provideStorage(ctx context.Context, cfg *config.Config) (engine.Storage, func(), error) {
	return setupStorage(ctx, cfg)
}

func provideFetcher(cfg *config.Config, logger *slog.Logger) engine.Fetcher {
	return aoc.New(
		aoc.WithBaseURL(cfg.Bot.BaseURL),
		aoc.WithUserAgent(cfg.Bot.UserAgent),
		aoc.WithTimeout(cfg.Bot.RequestTimeout),
		aoc.WithRateLimit(cfg.Bot.RequestInterval, 1),
		aoc.WithLogger(logger),
	)
}

func provideReporter(cfg *config.Config) (engine.Reporter, error) {
	return setupReporter(cfg, os.Stdout)
}

func provideBot(cfg *config.Config, logger *slog.Logger, fetcher engine.Fetcher, storage engine.Storage,
	reporter engine.Reporter, hub *realtime.Hub, svc *analytics.Service) (*bot.Assembly, func()) {
	asm := bot.New(fetcher,
		bot.WithStorage(storage),
		bot.WithReporter(reporter),
		bot.WithRealtime(hub),
		bot.WithAnalytics(svc),
		bot.WithDispatchMode(engine.DispatchAsync),
		bot.WithBotOptions(
			engine.WithPolicy(cfg.Policy.Engine()),
			engine.WithLogger(logger),
			engine.WithLocks(engine.NewKeyedMutex()),
		),
	)
	return asm, asm.Close
}

func provideHandler(cfg *config.Config, asm *bot.Assembly, hub *realtime.Hub, svc *analytics.Service) http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Bot:       asm.Bot,
		Config:    cfg.Bot.Engine(),
		Hub:       hub,
		Analytics: svc,
	}, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		RateLimitCleanup: cfg.Security.RateLimit.CleanupInterval,
		RunTimeout:       cfg.Server.RunTimeout,
		DisableMetrics:   !cfg.Metrics.Enabled,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var handler slog.Handler
	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the storage adapter selected by configuration. The
// returned cleanup closes its connections.
func setupStorage(_ context.Context, cfg *config.Config) (engine.Storage, func(), error) {
	noop := func() {}
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), noop, nil
	case "file":
		s, err := jsonfile.New(cfg.Storage.File.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case "redis":
		s, err := redisAdapter.New(cfg.Storage.Redis)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "sql":
		s, err := sqlxAdapter.New(cfg.Storage.SQL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}

// setupReporter builds the reporters listed in configuration. Each
// reporter's sort order falls back to the shared one.
func setupReporter(cfg *config.Config, out io.Writer) (engine.Reporter, error) {
	rc := cfg.Reporter
	var reporters engine.MultiReporter
	for _, kind := range rc.Kinds {
		switch kind {
		case "console":
			reporters = append(reporters, console.New(console.WithOutput(out), console.WithSortOrder(rc.SortOrder)))
		case "slack":
			sc := rc.Slack
			if sc.SortOrder == "" {
				sc.SortOrder = rc.SortOrder
			}
			reporters = append(reporters, slack.New(sc))
		case "discord":
			dc := rc.Discord
			if dc.SortOrder == "" {
				dc.SortOrder = rc.SortOrder
			}
			r, err := discord.New(dc)
			if err != nil {
				return nil, err
			}
			reporters = append(reporters, r)
		case "webhook":
			var opts []webhook.Option
			for k, v := range rc.Webhook.Headers {
				opts = append(opts, webhook.WithHeader(k, v))
			}
			reporters = append(reporters, webhook.New(rc.Webhook.Endpoints, opts...))
		default:
			return nil, fmt.Errorf("unknown reporter: %s", kind)
		}
	}
	switch len(reporters) {
	case 0:
		return engine.NopReporter{}, nil
	case 1:
		return reporters[0], nil
	}
	return reporters, nil
}

// loadSnapshot reads the stored snapshot of the configured leaderboard.
func loadSnapshot(ctx context.Context, app *App) (*core.Leaderboard, error) {
	cc := app.CycleConfig()
	lb, err := app.Storage.Load(ctx, cc.LeaderboardID(), cc.Year())
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, fmt.Errorf("no snapshot stored for leaderboard %d (%d)", cc.LeaderboardID(), cc.Year())
	}
	return lb, nil
}
