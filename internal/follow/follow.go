// Package follow prints the newest log file in a directory and keeps
// printing as records are appended, switching to newer files as sessions
// create them.
package follow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/harun/logkeeper/pkg/logger"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for a Follower
type Config struct {
	Dir          string        // log directory to watch
	Out          io.Writer     // receives file content
	Lines        int           // lines of backlog printed from the current file
	PollInterval time.Duration // safety net for missed events, default 1s
}

// Follower tails the newest log file in a directory
type Follower struct {
	dir          string
	out          io.Writer
	lines        int
	pollInterval time.Duration

	watcher *fsnotify.Watcher

	current string
	offset  int64

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a follower for cfg.Dir
func New(cfg Config) (*Follower, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("log directory is required")
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Follower{
		dir:          cfg.Dir,
		out:          cfg.Out,
		lines:        cfg.Lines,
		pollInterval: cfg.PollInterval,
		watcher:      watcher,
		ready:        make(chan struct{}),
	}, nil
}

// Ready is closed once the directory is watched and the backlog printed
func (f *Follower) Ready() <-chan struct{} {
	return f.ready
}

// Run follows the directory until ctx is cancelled
func (f *Follower) Run(ctx context.Context) error {
	defer f.watcher.Close()

	if err := f.watcher.Add(f.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", f.dir, err)
	}

	newest, err := Newest(f.dir)
	if err != nil {
		return err
	}
	if newest != "" {
		if err := f.attach(newest, f.lines); err != nil {
			return err
		}
	}

	f.readyOnce.Do(func() { close(f.ready) })

	log.Debug().Str("dir", f.dir).Str("file", f.current).Msg("Following log directory")

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			if err := f.handleEvent(event); err != nil {
				return err
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")

		case <-ticker.C:
			if err := f.poll(); err != nil {
				return err
			}
		}
	}
}

func (f *Follower) handleEvent(event fsnotify.Event) error {
	if !strings.HasSuffix(event.Name, logger.LogExtension) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Create):
		if filepath.Base(event.Name) > filepath.Base(f.current) {
			return f.switchTo(event.Name)
		}
	case event.Has(fsnotify.Write):
		if event.Name == f.current {
			return f.drain()
		}
	}
	return nil
}

// poll catches up on writes and files whose events were missed
func (f *Follower) poll() error {
	if f.current != "" {
		if err := f.drain(); err != nil {
			return err
		}
	}

	newest, err := Newest(f.dir)
	if err != nil {
		return err
	}
	if newest != "" && filepath.Base(newest) > filepath.Base(f.current) {
		return f.switchTo(newest)
	}
	return nil
}

// switchTo finishes the current file and starts the next one from the top
func (f *Follower) switchTo(path string) error {
	if f.current != "" {
		if err := f.drain(); err != nil {
			return err
		}
	}

	fmt.Fprintf(f.out, "==> %s <==\n", filepath.Base(path))
	f.current = path
	f.offset = 0
	return f.drain()
}

// attach starts following path with up to n lines of backlog
func (f *Follower) attach(path string, n int) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if n > 0 {
		lines, err := Tail(path, n)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Fprintln(f.out, line)
		}
	}

	f.current = path
	f.offset = info.Size()
	return nil
}

// drain copies everything appended to the current file since the last call
func (f *Follower) drain() error {
	file, err := os.Open(f.current)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", f.current, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", f.current, err)
	}
	if info.Size() < f.offset {
		f.offset = 0
	}
	if info.Size() == f.offset {
		return nil
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek %s: %w", f.current, err)
	}
	n, err := io.Copy(f.out, file)
	f.offset += n
	if err != nil {
		return fmt.Errorf("failed to copy %s: %w", f.current, err)
	}
	return nil
}

// Newest returns the path of the newest log file in dir, empty if none
func Newest(dir string) (string, error) {
	files, err := logger.ListLogFiles(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", logger.ErrDirectoryUnavailable, err)
	}
	if len(files) == 0 {
		return "", nil
	}
	return files[len(files)-1].Path, nil
}

// Tail returns the last n lines of path
func Tail(path string, n int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	if n <= 0 {
		return nil, nil
	}

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return ring, nil
}
