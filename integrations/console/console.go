// Package console reports leaderboard changes to a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"leaderbot/core"
	"leaderbot/integrations/message"
	"leaderbot/leaderboard"
)

// Reporter writes changes to Out and errors to Err.
type Reporter struct {
	mu    sync.Mutex
	out   io.Writer
	err   io.Writer
	order leaderboard.SortOrder
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithOutput overrides stdout.
func WithOutput(w io.Writer) Option {
	return func(r *Reporter) {
		if w != nil {
			r.out = w
		}
	}
}

// WithErrorOutput overrides stderr.
func WithErrorOutput(w io.Writer) Option {
	return func(r *Reporter) {
		if w != nil {
			r.err = w
		}
	}
}

// WithSortOrder sets the standings order (stars by default).
func WithSortOrder(o leaderboard.SortOrder) Option {
	return func(r *Reporter) {
		if o != "" {
			r.order = o
		}
	}
}

func New(opts ...Option) *Reporter {
	r := &Reporter{out: os.Stdout, err: os.Stderr, order: leaderboard.SortByStars}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reporter) ReportChanges(ctx context.Context, rep core.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := fmt.Fprintln(r.out, message.Changes(rep, r.order, message.Plain)); err != nil {
		return &core.ReportError{Reporter: "console", Err: err}
	}
	return nil
}

func (r *Reporter) ReportError(_ context.Context, rep core.ErrorReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := fmt.Fprintln(r.err, message.Error(rep, message.Plain)); err != nil {
		return &core.ReportError{Reporter: "console", Err: err}
	}
	return nil
}

var _ interface {
	ReportChanges(context.Context, core.Report) error
	ReportError(context.Context, core.ErrorReport) error
} = (*Reporter)(nil)
