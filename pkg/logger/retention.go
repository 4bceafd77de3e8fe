package logger

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// PruneMode selects what happens to log files that age out
type PruneMode string

const (
	// PruneDelete removes old log files permanently
	PruneDelete PruneMode = "delete"

	// PruneArchive gzips old log files into the archive subdirectory
	PruneArchive PruneMode = "archive"
)

// FailurePolicy selects how a failed removal affects the pruning pass
type FailurePolicy string

const (
	// FailureWarn reports failures and keeps going
	FailureWarn FailurePolicy = "warn"

	// FailureFail reports failures and makes the pass return an error
	FailureFail FailurePolicy = "fail"
)

// ArchiveDirName is the subdirectory PruneArchive moves files to
const ArchiveDirName = "archive"

// LogFile is a log file inside a log directory
type LogFile struct {
	Name string
	Path string
}

// Created returns the creation time encoded in the file name
func (f LogFile) Created() (time.Time, bool) {
	return ParseLogName(f.Name)
}

// RetentionManager keeps a log directory within its retention window
type RetentionManager struct {
	Mode   PruneMode
	Policy FailurePolicy

	// OnFailure receives every file that could not be pruned
	OnFailure func(*PruneError)

	// Recorder receives pruning metrics, may be nil
	Recorder Recorder

	remove func(path string) error
}

// NewRetentionManager creates a retention manager
func NewRetentionManager(mode PruneMode, policy FailurePolicy) *RetentionManager {
	if mode == "" {
		mode = PruneDelete
	}
	if policy == "" {
		policy = FailureWarn
	}
	return &RetentionManager{
		Mode:   mode,
		Policy: policy,
	}
}

// ListLogFiles returns the log files in dir, oldest first
func ListLogFiles(dir string) ([]LogFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []LogFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), LogExtension) {
			continue
		}
		files = append(files, LogFile{
			Name: entry.Name(),
			Path: filepath.Join(dir, entry.Name()),
		})
	}

	// Names sort chronologically by construction
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}

// Prune removes all but the newest maxCount log files in dir and returns
// the files left behind, oldest first. Files that fail to be removed are
// reported through OnFailure and stay in the result.
func (m *RetentionManager) Prune(dir string, maxCount int) ([]LogFile, error) {
	if maxCount < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRetention, maxCount)
	}

	files, err := ListLogFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list %s: %v", ErrDirectoryUnavailable, dir, err)
	}

	if len(files) <= maxCount {
		return files, nil
	}

	excess := len(files) - maxCount
	kept := make([]LogFile, 0, maxCount)
	var failures []error

	for _, f := range files[:excess] {
		if err := m.prune(dir, f); err != nil {
			pe := &PruneError{Path: f.Path, Op: m.mode(), Err: err}
			failures = append(failures, pe)
			kept = append(kept, f)

			if m.Recorder != nil {
				m.Recorder.PruneFailed()
			}
			if m.OnFailure != nil {
				m.OnFailure(pe)
			}
			continue
		}

		if m.Recorder != nil {
			m.Recorder.FilePruned(m.mode())
		}
	}
	kept = append(kept, files[excess:]...)

	if len(failures) > 0 && m.Policy == FailureFail {
		return kept, errors.Join(failures...)
	}

	return kept, nil
}

func (m *RetentionManager) mode() PruneMode {
	if m.Mode == "" {
		return PruneDelete
	}
	return m.Mode
}

// prune takes a single file out of the active directory
func (m *RetentionManager) prune(dir string, f LogFile) error {
	remove := m.remove
	if remove == nil {
		remove = removeFile
	}

	if m.mode() == PruneArchive {
		if err := archiveFile(f.Path, filepath.Join(dir, ArchiveDirName)); err != nil {
			return err
		}
	}

	return remove(f.Path)
}

// removeFile deletes path, treating an already missing file as removed
func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// archiveFile writes a gzip copy of path into archiveDir
func archiveFile(path, archiveDir string) error {
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	// Open source file
	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer src.Close()

	// Create compressed file
	dstPath := filepath.Join(archiveDir, filepath.Base(path)+".gz")
	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}

	gzw := gzip.NewWriter(dst)
	gzw.Name = filepath.Base(path)

	if _, err := io.Copy(gzw, src); err != nil {
		_ = gzw.Close()
		_ = dst.Close()
		_ = os.Remove(dstPath)
		return err
	}
	if err := gzw.Close(); err != nil {
		_ = dst.Close()
		_ = os.Remove(dstPath)
		return err
	}
	return dst.Close()
}
