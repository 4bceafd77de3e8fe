package logger

import (
	"errors"
	"fmt"
)

var (
	// ErrDirectoryUnavailable is returned when neither the primary nor the
	// fallback log directory can be used
	ErrDirectoryUnavailable = errors.New("log directory unavailable")

	// ErrPruneFailure is returned when an old log file could not be removed
	ErrPruneFailure = errors.New("failed to prune log file")

	// ErrSinkAttach is returned when the target log file cannot be opened
	ErrSinkAttach = errors.New("failed to attach log sink")

	// ErrSessionClosed is returned when a session is used after shutdown
	ErrSessionClosed = errors.New("logging session is shut down")

	// ErrInvalidRetention is returned when the retention window is negative
	ErrInvalidRetention = errors.New("invalid retention window (must be >= 0)")

	// ErrInvalidConfig is returned when a configuration value is invalid
	ErrInvalidConfig = errors.New("invalid logging configuration")
)

// PruneError describes a single log file that could not be pruned.
// It matches ErrPruneFailure with errors.Is.
type PruneError struct {
	Path string
	Op   PruneMode
	Err  error
}

func (e *PruneError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrPruneFailure, e.Op, e.Path, e.Err)
}

func (e *PruneError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrPruneFailure
func (e *PruneError) Is(target error) bool {
	return target == ErrPruneFailure
}
