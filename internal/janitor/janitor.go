// Package janitor keeps a log directory within its retention window on a
// schedule, for hosts that run long enough to outlive many log files.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/harun/logkeeper/internal/metrics"
	"github.com/harun/logkeeper/pkg/logger"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Options configures a Janitor
type Options struct {
	Dir         string                   // resolved log directory
	MaxCount    int                      // retention window
	Schedule    string                   // cron expression or @descriptor
	RunOnStart  bool                     // prune once before the first tick
	MetricsAddr string                   // serve /metrics here, empty disables
	Manager     *logger.RetentionManager // defaults to delete/warn
	Metrics     *metrics.Metrics         // may be nil
	Logger      *zerolog.Logger          // defaults to the global logger
}

// Result describes one retention pass
type Result struct {
	Started  time.Time
	Duration time.Duration
	Retained []logger.LogFile
	Err      error
}

// Janitor runs retention passes on a cron schedule
type Janitor struct {
	opts     Options
	schedule cron.Schedule
	logger   zerolog.Logger

	mu   sync.Mutex
	cron *cron.Cron
	last *Result
	wg   sync.WaitGroup
}

// New validates the options and creates a janitor
func New(opts Options) (*Janitor, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("log directory is required")
	}
	if opts.MaxCount < 0 {
		return nil, fmt.Errorf("%w: got %d", logger.ErrInvalidRetention, opts.MaxCount)
	}

	schedule, err := parser.Parse(opts.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", opts.Schedule, err)
	}

	if opts.Manager == nil {
		opts.Manager = logger.NewRetentionManager(logger.PruneDelete, logger.FailureWarn)
	}

	l := log.Logger
	if opts.Logger != nil {
		l = *opts.Logger
	}
	l = l.With().Str("component", "janitor").Str("dir", opts.Dir).Logger()

	manager := *opts.Manager
	if manager.Recorder == nil && opts.Metrics != nil {
		manager.Recorder = opts.Metrics
	}
	if manager.OnFailure == nil {
		manager.OnFailure = func(pe *logger.PruneError) {
			l.Warn().Err(pe.Err).Str("file", pe.Path).Msg("Failed to prune log file")
		}
	}
	opts.Manager = &manager

	return &Janitor{
		opts:     opts,
		schedule: schedule,
		logger:   l,
	}, nil
}

// RunOnce performs a single retention pass
func (j *Janitor) RunOnce() Result {
	res := Result{Started: time.Now()}
	res.Retained, res.Err = j.opts.Manager.Prune(j.opts.Dir, j.opts.MaxCount)
	res.Duration = time.Since(res.Started)

	if j.opts.Metrics != nil {
		j.opts.Metrics.JanitorRun(res.Duration, len(res.Retained), res.Err)
	}

	if res.Err != nil {
		j.logger.Error().Err(res.Err).Msg("Retention pass failed")
	} else {
		j.logger.Debug().
			Int("retained", len(res.Retained)).
			Dur("duration", res.Duration).
			Msg("Retention pass completed")
	}

	j.mu.Lock()
	j.last = &res
	j.mu.Unlock()

	return res
}

// LastResult returns the most recent pass, if any
func (j *Janitor) LastResult() (Result, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.last == nil {
		return Result{}, false
	}
	return *j.last, true
}

// Next returns the next scheduled pass after t
func (j *Janitor) Next(t time.Time) time.Time {
	return j.schedule.Next(t)
}

// Start schedules retention passes. Overlapping passes are skipped.
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron != nil {
		return fmt.Errorf("janitor already started")
	}

	if j.opts.RunOnStart {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			j.RunOnce()
		}()
	}

	cl := cronLogger{logger: j.logger}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(j.schedule, cron.FuncJob(func() { j.RunOnce() }))
	c.Start()
	j.cron = c

	j.logger.Info().
		Str("schedule", j.opts.Schedule).
		Int("maxCount", j.opts.MaxCount).
		Time("next", j.schedule.Next(time.Now())).
		Msg("Janitor started")

	return nil
}

// Stop halts the schedule and waits for a running pass to finish or ctx to
// expire
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()

	if c == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		j.logger.Info().Msg("Janitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the janitor and, when configured, the metrics endpoint, and
// blocks until ctx is cancelled
func (j *Janitor) Run(ctx context.Context) error {
	if err := j.Start(); err != nil {
		return err
	}

	var server *http.Server
	serveErr := make(chan error, 1)
	if j.opts.MetricsAddr != "" && j.opts.Metrics != nil {
		ln, err := net.Listen("tcp", j.opts.MetricsAddr)
		if err != nil {
			_ = j.Stop(context.Background())
			return fmt.Errorf("failed to listen on %s: %w", j.opts.MetricsAddr, err)
		}

		server = &http.Server{
			Handler:           MetricsMux(j.opts.Metrics),
			ReadHeaderTimeout: 5 * time.Second,
		}
		j.logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")

		go func() {
			if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		runErr = fmt.Errorf("metrics server failed: %w", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = fmt.Errorf("failed to shutdown metrics server: %w", err)
		}
	}
	if err := j.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}

	return runErr
}

// MetricsMux serves /metrics and /health
func MetricsMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// cronLogger routes scheduler messages to zerolog
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
