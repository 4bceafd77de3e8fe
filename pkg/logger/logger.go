// Package logger sets up file logging for a process: it resolves a writable
// log directory, prunes old log files to a retention window, and binds a
// Session that writes to a fresh timestamped file or, for child processes,
// appends to the newest existing one.
//
// Typical usage
//
//	err := logger.Run(logger.DefaultConfig(), func(s *logger.Session) error {
//		s.Infof("started")
//		return work(s.Logger())
//	})
package logger

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Recorder receives lifecycle events, typically to feed metrics
type Recorder interface {
	FilePruned(mode PruneMode)
	PruneFailed()
	SessionBound(child bool)
	RecordEmitted(level zerolog.Level)
}

// Option customizes New and Run
type Option func(*options)

type options struct {
	resolver   *PathResolver
	retention  *RetentionManager
	consoleOut io.Writer
	recorder   Recorder
	namer      *Namer
	pid        int
}

// WithResolver replaces the path resolver
func WithResolver(r *PathResolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithRetentionManager replaces the retention manager built from Config
func WithRetentionManager(m *RetentionManager) Option {
	return func(o *options) { o.retention = m }
}

// WithConsoleOutput sends console records to w instead of stdout
func WithConsoleOutput(w io.Writer) Option {
	return func(o *options) { o.consoleOut = w }
}

// WithRecorder reports lifecycle events to r
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithNamer replaces the generator for new log file names
func WithNamer(n *Namer) Option {
	return func(o *options) { o.namer = n }
}

// WithPID overrides the process identifier child records are tagged with
func WithPID(pid int) Option {
	return func(o *options) { o.pid = pid }
}

// New resolves the log directory, prunes it, and binds a session. Files that
// could not be pruned are logged as warnings through the new session.
func New(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := cfg.level()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.resolver == nil {
		o.resolver = NewPathResolver()
	}

	dir, err := o.resolver.Resolve(cfg.directoryName())
	if err != nil {
		return nil, err
	}

	// Prune old logs, collecting failures to replay once a sink exists
	var failures []*PruneError
	manager := NewRetentionManager(cfg.PruneMode, cfg.PruneFailurePolicy)
	if o.retention != nil {
		m := *o.retention
		manager = &m
	}
	if manager.Recorder == nil {
		manager.Recorder = o.recorder
	}
	onFailure := manager.OnFailure
	manager.OnFailure = func(pe *PruneError) {
		failures = append(failures, pe)
		if onFailure != nil {
			onFailure(pe)
		}
	}

	survivors, err := manager.Prune(dir, cfg.MaxLogfileCount)
	if err != nil {
		return nil, err
	}

	// Create redactor if enabled
	var redactor *Redactor
	if cfg.Redaction {
		redactor = NewRedactor()
		for _, p := range cfg.RedactPatterns {
			if err := redactor.AddPattern(p); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
		}
	}

	s, err := Bind(dir, survivors, BindOptions{
		Child:      cfg.Child,
		Console:    cfg.Debug,
		ConsoleOut: o.consoleOut,
		PID:        o.pid,
		Level:      level,
		MaxSizeMB:  cfg.MaxSizeMB,
		Redactor:   redactor,
		Recorder:   o.recorder,
		Namer:      o.namer,
	})
	if err != nil {
		return nil, err
	}

	for _, pe := range failures {
		s.logger.Warn().Err(pe.Err).Str("file", pe.Path).Msg("failed to prune old log file")
	}

	return s, nil
}

// Run creates a session, passes it to fn, and shuts it down when fn returns
// or panics. A shutdown error is returned only if fn succeeded.
func Run(cfg Config, fn func(*Session) error, opts ...Option) (err error) {
	s, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if serr := s.Shutdown(); serr != nil && err == nil {
			err = serr
		}
	}()

	return fn(s)
}
