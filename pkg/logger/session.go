package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// State is the lifecycle state of a Session
type State int32

const (
	StateCreated State = iota
	StateBound
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateBound:
		return "bound"
	case StateShutDown:
		return "shut down"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// unlimitedSizeMB keeps lumberjack from rotating when MaxSizeMB is 0
const unlimitedSizeMB = 1 << 20

// BindOptions control how a session attaches its sinks
type BindOptions struct {
	Child      bool          // attach to the newest survivor in append mode
	Console    bool          // mirror records to ConsoleOut
	ConsoleOut io.Writer     // defaults to os.Stdout
	PID        int           // tag for child records, defaults to os.Getpid()
	Level      zerolog.Level // shared minimum severity
	MaxSizeMB  int           // rotate the active file past this size, 0 disables
	Redactor   *Redactor     // masks secrets on every sink, may be nil
	Recorder   Recorder      // may be nil
	Namer      *Namer        // generates new file names, defaults to a process-wide namer
}

// Session is one bound logging context: a file sink, an optional console
// sink, and the logger writing to them. It is safe for concurrent use.
type Session struct {
	mu    sync.Mutex
	state atomic.Int32

	dir   string
	path  string
	child bool
	pid   int

	file   *lumberjack.Logger
	gate   *sinkGate
	logger zerolog.Logger
}

// Bind attaches a session to dir. A child session with survivors appends to
// the newest one; every other session gets a new timestamped file. The file
// is created on the first record, but whether it can be opened is checked
// here so that failures surface before any record is lost.
func Bind(dir string, survivors []LogFile, opts BindOptions) (*Session, error) {
	s := &Session{
		dir: dir,
		pid: opts.PID,
	}
	s.state.Store(int32(StateCreated))
	if s.pid == 0 {
		s.pid = os.Getpid()
	}

	if opts.Child && len(survivors) > 0 {
		last := survivors[len(survivors)-1]
		s.child = true
		s.path = last.Path
		if s.path == "" {
			s.path = filepath.Join(dir, last.Name)
		}
		if err := checkAppend(s.path); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSinkAttach, err)
		}
	} else {
		if !accessWritable(dir) {
			return nil, fmt.Errorf("%w: directory %s is not writable", ErrSinkAttach, dir)
		}

		namer := opts.Namer
		if namer == nil {
			namer = defaultNamer
		}
		name, err := namer.Next(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSinkAttach, err)
		}
		s.path = filepath.Join(dir, name)
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = unlimitedSizeMB
	}
	s.file = &lumberjack.Logger{
		Filename:  s.path,
		MaxSize:   maxSize,
		LocalTime: true,
	}

	// Create sinks
	sinks := []io.Writer{newLineWriter(redact(opts.Redactor, s.file), s.child)}
	if opts.Console {
		out := opts.ConsoleOut
		if out == nil {
			out = os.Stdout
		}
		sinks = append(sinks, newLineWriter(redact(opts.Redactor, out), s.child))
	}

	s.gate = &sinkGate{w: zerolog.SyncWriter(zerolog.MultiLevelWriter(sinks...))}

	logger := zerolog.New(s.gate).Level(opts.Level).Hook(sourceHook{})
	if opts.Recorder != nil {
		logger = logger.Hook(recorderHook{recorder: opts.Recorder})
	}
	if s.child {
		logger = logger.With().Str(pidField, fmt.Sprintf("PID%d", s.pid)).Logger()
	}
	s.logger = logger

	s.state.Store(int32(StateBound))
	if opts.Recorder != nil {
		opts.Recorder.SessionBound(s.child)
	}

	return s, nil
}

// checkAppend checks that an existing file can be opened for appending
// without creating it
func checkAppend(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	return f.Close()
}

func redact(r *Redactor, w io.Writer) io.Writer {
	if r == nil {
		return w
	}
	return r.Wrap(w)
}

// Logger returns the underlying zerolog.Logger. Records written through it
// after Shutdown are rejected.
func (s *Session) Logger() zerolog.Logger {
	return s.logger
}

// Logf emits a formatted record at level
func (s *Session) Logf(level zerolog.Level, format string, args ...interface{}) error {
	if s.State() != StateBound {
		return ErrSessionClosed
	}
	s.logger.WithLevel(level).Msgf(format, args...)
	return nil
}

// Debugf logs a debug message
func (s *Session) Debugf(format string, args ...interface{}) {
	_ = s.Logf(zerolog.DebugLevel, format, args...)
}

// Infof logs an info message
func (s *Session) Infof(format string, args ...interface{}) {
	_ = s.Logf(zerolog.InfoLevel, format, args...)
}

// Warnf logs a warning message
func (s *Session) Warnf(format string, args ...interface{}) {
	_ = s.Logf(zerolog.WarnLevel, format, args...)
}

// Errorf logs an error message
func (s *Session) Errorf(format string, args ...interface{}) {
	_ = s.Logf(zerolog.ErrorLevel, format, args...)
}

// Path returns the log file this session writes to
func (s *Session) Path() string {
	return s.path
}

// Dir returns the log directory
func (s *Session) Dir() string {
	return s.dir
}

// Child reports whether the session appends to an existing log file
func (s *Session) Child() bool {
	return s.child
}

// PID returns the process identifier child records are tagged with
func (s *Session) PID() int {
	return s.pid
}

// State returns the lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Err returns the first error a sink reported while writing, if any
func (s *Session) Err() error {
	return s.gate.Err()
}

// Shutdown records the log file path, then flushes and releases every sink.
// Calls after the first are no-ops.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateShutDown {
		return nil
	}

	// The path record is kept even when the threshold is above info
	final := s.logger
	if final.GetLevel() > zerolog.InfoLevel {
		final = final.Level(zerolog.InfoLevel)
	}
	final.Info().Msg(s.path)

	s.gate.close()
	s.state.Store(int32(StateShutDown))

	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// sinkGate rejects writes once the session is shut down and remembers the
// first write error
type sinkGate struct {
	mu     sync.RWMutex
	closed bool
	w      io.Writer

	errMu sync.Mutex
	err   error
}

func (g *sinkGate) Write(p []byte) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return 0, ErrSessionClosed
	}

	n, err := g.w.Write(p)
	if err != nil {
		g.errMu.Lock()
		if g.err == nil {
			g.err = err
		}
		g.errMu.Unlock()
	}
	return n, err
}

// close waits for in-flight writes and rejects later ones
func (g *sinkGate) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

func (g *sinkGate) Err() error {
	g.errMu.Lock()
	defer g.errMu.Unlock()
	return g.err
}
