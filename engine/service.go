package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"leaderbot/core"
)

// Policy holds the tunable decisions of a cycle.
type Policy struct {
	// SaveOnReportFailure advances the stored baseline even when ReportChanges
	// failed, so the next cycle diffs against the latest snapshot.
	SaveOnReportFailure bool `json:"save_on_report_failure" yaml:"save_on_report_failure"`
	// ReportRegressions sends star count decreases through ReportError.
	// The cycle itself still succeeds.
	ReportRegressions bool `json:"report_regressions" yaml:"report_regressions"`
}

func DefaultPolicy() Policy {
	return Policy{SaveOnReportFailure: true}
}

// RunOptions alter a single cycle.
type RunOptions struct {
	// DryRun reports the computed changes, even when there are none, and never saves.
	DryRun bool
}

// Result summarizes a cycle.
type Result struct {
	RunID         string             `json:"run_id"`
	Year          int                `json:"year"`
	LeaderboardID core.LeaderboardID `json:"leaderboard_id"`
	Stage         core.Stage         `json:"stage"`
	Previous      *core.Leaderboard  `json:"-"`
	Current       *core.Leaderboard  `json:"-"`
	Changes       core.ChangeSet     `json:"changes"`
	FirstRun      bool               `json:"first_run"`
	Reported      bool               `json:"reported"`
	Saved         bool               `json:"saved"`
	DryRun        bool               `json:"dry_run"`
	Duration      time.Duration      `json:"duration"`
}

// CycleError is returned by Bot.Run when a cycle ends in a failure state.
// The failure has already been passed to Reporter.ReportError.
type CycleError struct {
	Stage core.Stage
	Err   error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle failed while %s: %v", e.Stage, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// Bot runs leaderboard cycles: fetch, load, diff, report, save.
type Bot struct {
	fetcher  Fetcher
	storage  Storage
	reporter Reporter
	bus      *EventBus
	policy   Policy
	logger   *slog.Logger
	tracer   trace.Tracer
	locks    *KeyedMutex
	now      func() time.Time
}

// BotOption configures a Bot.
type BotOption func(*Bot)

func WithPolicy(p Policy) BotOption { return func(b *Bot) { b.policy = p } }

func WithEventBus(bus *EventBus) BotOption { return func(b *Bot) { b.bus = bus } }

func WithLogger(l *slog.Logger) BotOption {
	return func(b *Bot) {
		if l != nil {
			b.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) BotOption {
	return func(b *Bot) {
		if t != nil {
			b.tracer = t
		}
	}
}

// WithLocks serializes cycles for the same leaderboard and year.
func WithLocks(k *KeyedMutex) BotOption { return func(b *Bot) { b.locks = k } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) BotOption { return func(b *Bot) { b.now = now } }

func NewBot(fetcher Fetcher, storage Storage, reporter Reporter, opts ...BotOption) *Bot {
	if fetcher == nil || storage == nil || reporter == nil {
		panic("NewBot requires non-nil fetcher, storage, and reporter")
	}
	b := &Bot{
		fetcher:  fetcher,
		storage:  storage,
		reporter: reporter,
		policy:   DefaultPolicy(),
		logger:   slog.Default(),
		tracer:   otel.Tracer("leaderbot/engine"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers an observer of cycle events. It is a no-op without an event bus.
func (b *Bot) Subscribe(typ core.EventType, handler Handler) func() {
	if b.bus == nil {
		return func() {}
	}
	return b.bus.Subscribe(typ, handler)
}

// Storage returns the storage the bot saves to.
func (b *Bot) Storage() Storage { return b.storage }

// Policy returns the active policy.
func (b *Bot) Policy() Policy { return b.policy }

// Run executes one cycle for cfg.
func (b *Bot) Run(ctx context.Context, cfg Config) (Result, error) {
	return b.RunWith(ctx, cfg, RunOptions{})
}

// cycle carries the state of one run.
type cycle struct {
	bot   *Bot
	cfg   Config
	opts  RunOptions
	res   Result
	log   *slog.Logger
	start time.Time
	// regression is sent with the terminal report when ReportRegressions is set
	regression error
}

// RunWith executes one cycle for cfg with per-run options.
func (b *Bot) RunWith(ctx context.Context, cfg Config, opts RunOptions) (Result, error) {
	c := &cycle{
		bot:   b,
		cfg:   cfg,
		opts:  opts,
		start: b.now(),
		res:   Result{RunID: uuid.NewString(), Stage: core.StageStart, DryRun: opts.DryRun},
	}
	c.log = b.logger.With("run_id", c.res.RunID)

	if err := validateConfig(cfg); err != nil {
		return c.fail(ctx, core.StageStart, err)
	}
	c.res.Year = cfg.Year()
	c.res.LeaderboardID = cfg.LeaderboardID()
	c.log = c.log.With("leaderboard_id", int64(c.res.LeaderboardID), "year", c.res.Year)

	ctx, span := b.tracer.Start(ctx, "leaderbot.cycle", trace.WithAttributes(
		attribute.String("leaderbot.run_id", c.res.RunID),
		attribute.Int64("leaderbot.leaderboard_id", int64(c.res.LeaderboardID)),
		attribute.Int("leaderbot.year", c.res.Year),
		attribute.Bool("leaderbot.dry_run", opts.DryRun),
	))
	defer span.End()

	if b.locks != nil {
		unlock, err := b.locks.Lock(ctx, c.res.LeaderboardID, c.res.Year)
		if err != nil {
			return c.fail(ctx, core.StageStart, fmt.Errorf("wait for running cycle: %w", err))
		}
		defer unlock()
	}

	b.publish(ctx, core.NewCycleStarted(c.res.RunID, c.res.LeaderboardID, c.res.Year))
	c.log.Debug("cycle started", "dry_run", opts.DryRun)

	res, err := c.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, core.ErrorKind(err))
	}
	return res, err
}

func (c *cycle) run(ctx context.Context) (Result, error) {
	b := c.bot
	id, year := c.res.LeaderboardID, c.res.Year

	c.res.Stage = core.StageFetching
	var current *core.Leaderboard
	err := c.stage(ctx, func(ctx context.Context) error {
		lb, err := b.fetcher.Fetch(ctx, year, id, c.cfg.Credentials())
		if err != nil {
			return err
		}
		if lb == nil {
			return core.NewFetchError(core.FetchMalformed, errors.New("empty leaderboard"))
		}
		if err := lb.Validate(); err != nil {
			return core.NewFetchError(core.FetchMalformed, err)
		}
		current = lb
		return nil
	})
	if err != nil {
		return c.fail(ctx, core.StageFetching, err)
	}
	c.res.Current = current
	c.log.Debug("leaderboard fetched", "members", len(current.Members))

	c.res.Stage = core.StageLoading
	var previous *core.Leaderboard
	err = c.stage(ctx, func(ctx context.Context) error {
		lb, err := b.storage.Load(ctx, id, year)
		if err != nil || lb == nil {
			return err
		}
		if lb.Year != year {
			return core.Corrupted("load", storageKey(id, year), fmt.Errorf("stored event %d, want %d", lb.Year, year))
		}
		if err := lb.Validate(); err != nil {
			return core.Corrupted("load", storageKey(id, year), err)
		}
		previous = lb
		return nil
	})
	if err != nil {
		return c.fail(ctx, core.StageLoading, err)
	}
	c.res.Previous = previous

	if previous == nil {
		return c.firstRun(ctx, current)
	}

	c.res.Stage = core.StageDiffing
	changes := core.Diff(previous, current)
	c.res.Changes = changes
	if len(changes.Regressions) > 0 {
		c.regressions(ctx, changes.Regressions)
	}

	var reportErr error
	if !changes.IsEmpty() || c.opts.DryRun {
		c.res.Stage = core.StageReport
		reportErr = c.report(ctx, previous, current, changes)
		if reportErr != nil && (c.opts.DryRun || !b.policy.SaveOnReportFailure) {
			return c.fail(ctx, core.StageReport, reportErr)
		}
		if !changes.IsEmpty() {
			b.publish(ctx, core.NewChangesDetected(c.res.RunID, id, year, changes))
		}
	} else {
		c.log.Debug("no changes")
	}

	if c.opts.DryRun {
		return c.succeed(ctx)
	}

	c.res.Stage = core.StageSaving
	if err := c.save(ctx, current); err != nil {
		return c.fail(ctx, core.StageSaving, errors.Join(err, reportErr))
	}

	if reportErr != nil {
		c.log.Warn("baseline advanced after report failure")
		return c.fail(ctx, core.StageReport, reportErr)
	}
	return c.succeed(ctx)
}

// firstRun captures the baseline without diffing or reporting.
func (c *cycle) firstRun(ctx context.Context, current *core.Leaderboard) (Result, error) {
	b := c.bot
	c.res.FirstRun = true
	c.log.Info("no previous leaderboard, saving baseline")

	if c.opts.DryRun {
		c.res.Stage = core.StageReport
		if err := c.report(ctx, current, current, core.ChangeSet{}); err != nil {
			return c.fail(ctx, core.StageReport, err)
		}
		return c.succeed(ctx)
	}

	c.res.Stage = core.StageSaving
	if err := c.save(ctx, current); err != nil {
		return c.fail(ctx, core.StageSaving, err)
	}
	b.publish(ctx, core.NewBaselineSaved(c.res.RunID, c.res.LeaderboardID, c.res.Year, len(current.Members)))
	return c.succeed(ctx)
}

func (c *cycle) report(ctx context.Context, previous, current *core.Leaderboard, changes core.ChangeSet) error {
	viewKey, _ := c.cfg.Credentials().ViewKey()
	report := core.Report{
		Year:          c.res.Year,
		LeaderboardID: c.res.LeaderboardID,
		ViewKey:       viewKey,
		Previous:      previous,
		Current:       current,
		Changes:       changes,
	}
	err := c.stage(ctx, func(ctx context.Context) error {
		return c.bot.reporter.ReportChanges(ctx, report)
	})
	if err != nil {
		var re *core.ReportError
		if !errors.As(err, &re) && ctx.Err() == nil {
			err = &core.ReportError{Reporter: "reporter", Err: err}
		}
		return err
	}
	c.res.Reported = true
	c.log.Info("changes reported",
		"new_members", len(changes.NewMembers),
		"updated_members", len(changes.UpdatedMembers),
		"stars_gained", changes.StarsGained())
	return nil
}

func (c *cycle) regressions(ctx context.Context, regs []core.StarRegression) {
	b := c.bot
	ids := make([]string, 0, len(regs))
	for _, r := range regs {
		ids = append(ids, fmt.Sprintf("%d (%d -> %d)", r.MemberID, r.PreviousStars, r.CurrentStars))
	}
	c.log.Warn("star count decreased", "members", strings.Join(ids, ", "))
	b.publish(ctx, core.NewStarRegression(c.res.RunID, c.res.LeaderboardID, c.res.Year, regs))
	if !b.policy.ReportRegressions {
		return
	}
	c.regression = fmt.Errorf("%w for members %s", core.ErrStarRegression, strings.Join(ids, ", "))
}

// save stores current as the new baseline. Result.Saved follows the outcome
// of Storage.Save, even when the stage itself fails on an expired context.
func (c *cycle) save(ctx context.Context, current *core.Leaderboard) error {
	return c.stage(ctx, func(ctx context.Context) error {
		err := c.bot.storage.Save(ctx, c.res.LeaderboardID, c.res.Year, current)
		c.res.Saved = err == nil
		return err
	})
}

// stage runs fn inside a span named after the current stage.
func (c *cycle) stage(ctx context.Context, fn func(context.Context) error) error {
	ctx, span := c.bot.tracer.Start(ctx, "leaderbot."+string(c.res.Stage))
	defer span.End()
	err := fn(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *cycle) errorReport(stage core.Stage, err error) core.ErrorReport {
	return core.ErrorReport{
		Year:          c.res.Year,
		LeaderboardID: c.res.LeaderboardID,
		Stage:         stage,
		Kind:          core.ErrorKind(err),
		Err:           err,
	}
}

// fail moves the cycle to a failure state. ReportError is called exactly once
// and its own failure is only logged.
func (c *cycle) fail(ctx context.Context, stage core.Stage, err error) (Result, error) {
	b := c.bot
	c.res.Stage = stage
	c.res.Duration = b.now().Sub(c.start)
	kind := core.ErrorKind(err)
	c.log.Error("cycle failed", "stage", stage, "kind", kind, "error", err)

	// Reporting and recording must still be attempted after a deadline or
	// cancellation, so they run detached from ctx with a short timeout.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	report := c.errorReport(stage, err)
	if c.regression != nil {
		report.Err = errors.Join(err, c.regression)
	}
	if rerr := b.reporter.ReportError(rctx, report); rerr != nil {
		c.log.Warn("failed to report error", "error", rerr)
	}
	if rec, ok := b.storage.(ErrorRecorder); ok && c.res.LeaderboardID != 0 && !c.opts.DryRun {
		if rerr := rec.RecordError(rctx, c.res.LeaderboardID, c.res.Year, kind); rerr != nil {
			c.log.Warn("failed to record last error", "error", rerr)
		}
	}
	b.publish(ctx, core.NewCycleFailed(c.res.RunID, c.res.LeaderboardID, c.res.Year, stage, c.res.Duration, err))
	return c.res, &CycleError{Stage: stage, Err: err}
}

func (c *cycle) succeed(ctx context.Context) (Result, error) {
	b := c.bot
	if c.regression != nil {
		if rerr := b.reporter.ReportError(ctx, c.errorReport(core.StageDiffing, c.regression)); rerr != nil {
			c.log.Warn("failed to report star regression", "error", rerr)
		}
	}
	c.res.Stage = core.StageDone
	c.res.Duration = b.now().Sub(c.start)
	c.log.Info("cycle succeeded",
		"first_run", c.res.FirstRun,
		"saved", c.res.Saved,
		"reported", c.res.Reported,
		"duration", c.res.Duration)
	b.publish(ctx, core.NewCycleSucceeded(c.res.RunID, c.res.LeaderboardID, c.res.Year, c.res.Duration))
	return c.res, nil
}

func (b *Bot) publish(ctx context.Context, ev core.Event) {
	if b.bus != nil {
		b.bus.Publish(ctx, ev)
	}
}

func storageKey(id core.LeaderboardID, year int) string {
	return fmt.Sprintf("%d/%d", id, year)
}
