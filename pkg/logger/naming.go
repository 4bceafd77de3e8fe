package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// LogExtension is the suffix every managed log file carries
	LogExtension = ".log"

	nameTimeLayout = "2006-01-02_15-04-05"
	maxNameRetries = 1000
)

// Namer generates log file names of the form 2006-01-02_15-04-05_000000.log.
// Names are fixed width, so lexical order is chronological order, and a Namer
// never hands out the same name twice even when the clock does not advance.
type Namer struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

var defaultNamer = NewNamer(time.Now)

// NewNamer creates a namer reading time from now
func NewNamer(now func() time.Time) *Namer {
	if now == nil {
		now = time.Now
	}
	return &Namer{now: now}
}

// Next returns a file name that is newer than every name this namer issued
// before and does not exist in dir yet. The name is not reserved on disk
// until the session's first record creates the file, so separate processes
// naming in the same microsecond can end up sharing one file.
func (n *Namer) Next(dir string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t := n.now().Truncate(time.Microsecond)
	if !t.After(n.last) {
		t = n.last.Add(time.Microsecond)
	}

	for i := 0; i < maxNameRetries; i++ {
		name := FormatLogName(t)
		_, err := os.Lstat(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			n.last = t
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check log file name: %w", err)
		}
		// Another process took this microsecond
		t = t.Add(time.Microsecond)
	}

	return "", fmt.Errorf("no free log file name in %s after %d attempts", dir, maxNameRetries)
}

// FormatLogName returns the log file name for t
func FormatLogName(t time.Time) string {
	return fmt.Sprintf("%s_%06d%s", t.Format(nameTimeLayout), t.Nanosecond()/int(time.Microsecond), LogExtension)
}

// ParseLogName extracts the creation time encoded in a log file name.
// Names not produced by FormatLogName report false.
func ParseLogName(name string) (time.Time, bool) {
	stem, ok := strings.CutSuffix(filepath.Base(name), LogExtension)
	if !ok {
		return time.Time{}, false
	}

	// Exactly "<layout>_<micros>"; rotated backups carry an extra suffix
	if len(stem) != len(nameTimeLayout)+7 || stem[len(nameTimeLayout)] != '_' {
		return time.Time{}, false
	}

	t, err := time.ParseInLocation(nameTimeLayout, stem[:len(nameTimeLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	micros, err := strconv.Atoi(stem[len(nameTimeLayout)+1:])
	if err != nil || micros < 0 {
		return time.Time{}, false
	}

	return t.Add(time.Duration(micros) * time.Microsecond), true
}
