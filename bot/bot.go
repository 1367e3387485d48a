package bot

import (
	"leaderbot/adapters/memory"
	"leaderbot/analytics"
	"leaderbot/engine"
	"leaderbot/integrations/console"
	"leaderbot/realtime"
)

// Option configures the Bot builder.
type Option func(*config)

type config struct {
	storage   engine.Storage
	reporters []engine.Reporter
	mode      engine.DispatchMode
	busOpts   []engine.BusOption
	hub       *realtime.Hub
	analytics *analytics.Service
	botOpts   []engine.BotOption
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithReporter adds a reporter. Several reporters are combined into an engine.MultiReporter.
func WithReporter(r engine.Reporter) Option {
	return func(c *config) {
		if r != nil {
			c.reporters = append(c.reporters, r)
		}
	}
}

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode, opts ...engine.BusOption) Option {
	return func(c *config) {
		c.mode = m
		c.busOpts = opts
	}
}

// WithRealtime wires a realtime hub to receive all cycle events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithAnalytics feeds cycle events into metrics and stats.
func WithAnalytics(s *analytics.Service) Option { return func(c *config) { c.analytics = s } }

// WithBotOptions passes options through to engine.NewBot.
func WithBotOptions(opts ...engine.BotOption) Option {
	return func(c *config) { c.botOpts = append(c.botOpts, opts...) }
}

// Assembly is a built bot with its event bus.
type Assembly struct {
	Bot *engine.Bot
	Bus *engine.EventBus

	detach []func()
}

// Close detaches the observers and stops the bus workers.
func (a *Assembly) Close() {
	for _, d := range a.detach {
		d()
	}
	a.Bus.Close()
}

// New builds a Bot around fetcher. If not provided, defaults are used:
//   - storage: in-memory
//   - reporter: console
//   - dispatch: async
func New(fetcher engine.Fetcher, opts ...Option) *Assembly {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = memory.New()
	}

	var reporter engine.Reporter
	switch len(cfg.reporters) {
	case 0:
		reporter = console.New()
	case 1:
		reporter = cfg.reporters[0]
	default:
		reporter = engine.MultiReporter(cfg.reporters)
	}

	bus := engine.NewEventBus(cfg.mode, cfg.busOpts...)
	a := &Assembly{Bus: bus}
	if cfg.hub != nil {
		a.detach = append(a.detach, cfg.hub.Attach(bus))
	}
	if cfg.analytics != nil {
		a.detach = append(a.detach, cfg.analytics.Attach(bus))
	}

	botOpts := append([]engine.BotOption{engine.WithEventBus(bus)}, cfg.botOpts...)
	a.Bot = engine.NewBot(fetcher, cfg.storage, reporter, botOpts...)
	return a
}
