package engine

import (
	"context"
	"errors"

	"leaderbot/core"
)

// MultiReporter forwards every call to each reporter in order. All reporters
// are called even when some fail; the failures are joined.
type MultiReporter []Reporter

func (m MultiReporter) ReportChanges(ctx context.Context, report core.Report) error {
	var errs []error
	for _, r := range m {
		if err := r.ReportChanges(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiReporter) ReportError(ctx context.Context, report core.ErrorReport) error {
	var errs []error
	for _, r := range m {
		if err := r.ReportError(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) ReportChanges(context.Context, core.Report) error    { return nil }
func (NopReporter) ReportError(context.Context, core.ErrorReport) error { return nil }
