package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoAccess is returned when credentials do not grant access to a leaderboard.
	ErrNoAccess = errors.New("credentials do not have access to this leaderboard")
	// ErrCorruptedState marks a stored snapshot that exists but cannot be decoded.
	ErrCorruptedState = errors.New("stored leaderboard is corrupted")
	// ErrStorageUnavailable marks a backend that could not be reached.
	ErrStorageUnavailable = errors.New("storage backend unavailable")
	// ErrStarRegression marks a member whose star count went down between snapshots.
	ErrStarRegression = errors.New("star count decreased")
)

// FetchErrorKind classifies failures of the leaderboard fetch.
type FetchErrorKind string

const (
	FetchAuthExpired FetchErrorKind = "auth_expired"
	FetchNotFound    FetchErrorKind = "not_found"
	FetchTransient   FetchErrorKind = "transient"
	FetchMalformed   FetchErrorKind = "malformed"
)

// FetchError is returned by fetchers.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch leaderboard: %s", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError builds a FetchError without an HTTP status.
func NewFetchError(kind FetchErrorKind, err error) *FetchError {
	return &FetchError{Kind: kind, Err: err}
}

// StorageError is returned by storage adapters.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Corrupted wraps a decode failure of a stored record.
func Corrupted(op, key string, err error) *StorageError {
	return &StorageError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", ErrCorruptedState, err)}
}

// Unavailable wraps a backend failure. Context errors are kept as-is so
// callers can still match context.Canceled and context.DeadlineExceeded.
func Unavailable(op, key string, err error) *StorageError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &StorageError{Op: op, Key: key, Err: err}
	}
	return &StorageError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, err)}
}

// ReportError is returned by reporters when the notification channel fails.
type ReportError struct {
	Reporter string
	Err      error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report via %s: %v", e.Reporter, e.Err)
}

func (e *ReportError) Unwrap() error { return e.Err }

// ErrorKind returns a short stable label for an error, suitable for metrics
// labels and for persisting as the last error of a leaderboard.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var fe *FetchError
	var se *StorageError
	var re *ReportError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &fe):
		return "fetch." + string(fe.Kind)
	case errors.Is(err, ErrStarRegression):
		return "anomaly.star_regression"
	case errors.Is(err, ErrCorruptedState):
		return "storage.corrupted"
	case errors.As(err, &se):
		return "storage.unavailable"
	case errors.As(err, &re):
		return "report." + re.Reporter
	}
	return "unknown"
}
