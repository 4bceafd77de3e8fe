package logger

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(content), "\n"), "\n")
}

func TestBindRootSession(t *testing.T) {
	dir := t.TempDir()
	existing := writeLogs(t, dir, 2)
	files, err := ListLogFiles(dir)
	require.NoError(t, err)

	s, err := Bind(dir, files, BindOptions{Level: zerolog.InfoLevel})
	require.NoError(t, err)

	assert.Equal(t, StateBound, s.State())
	assert.False(t, s.Child())
	assert.Equal(t, dir, s.Dir())
	assert.NotContains(t, existing, filepath.Base(s.Path()))

	_, ok := ParseLogName(s.Path())
	assert.True(t, ok, "new file should carry a timestamp name: %s", s.Path())

	// Nothing is created until the first record
	assert.NoFileExists(t, s.Path())

	s.Infof("hello %s", "world")
	assert.FileExists(t, s.Path())

	require.NoError(t, s.Shutdown())
	assert.NoError(t, s.Err())
}

func TestSessionLineFormat(t *testing.T) {
	dir := t.TempDir()
	s, err := Bind(dir, nil, BindOptions{Level: zerolog.InfoLevel})
	require.NoError(t, err)

	s.Infof("hello world")
	l := s.Logger()
	l.Warn().Str("user", "alice").Msg("structured")
	require.NoError(t, s.Shutdown())

	lines := readLines(t, s.Path())
	require.Len(t, lines, 3)

	stamp := `\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}`
	assert.Regexp(t, regexp.MustCompile(`^INFO: `+stamp+` session_test\.go: TestSessionLineFormat\(\): \d+: hello world$`), lines[0])
	assert.Regexp(t, regexp.MustCompile(`^WARN: `+stamp+` session_test\.go: TestSessionLineFormat\(\): \d+: structured user=alice$`), lines[1])

	// Shutdown records the file path last
	assert.Regexp(t, regexp.MustCompile(`^INFO: `+stamp+` .+: `+regexp.QuoteMeta(s.Path())+`$`), lines[2])
	assert.NotContains(t, lines[0], "PID")
}

func TestBindChildSession(t *testing.T) {
	t.Run("appends to newest survivor", func(t *testing.T) {
		dir := t.TempDir()
		names := writeLogs(t, dir, 3)
		files, err := ListLogFiles(dir)
		require.NoError(t, err)

		newest := filepath.Join(dir, names[2])
		before := readLines(t, newest)

		s, err := Bind(dir, files, BindOptions{Child: true, PID: 4242, Level: zerolog.InfoLevel})
		require.NoError(t, err)
		assert.True(t, s.Child())
		assert.Equal(t, newest, s.Path())
		assert.Equal(t, 4242, s.PID())

		s.Infof("from child")
		require.NoError(t, s.Shutdown())

		after := readLines(t, newest)
		assert.Greater(t, len(after), len(before))
		assert.Equal(t, before, after[:len(before)])
		assert.Regexp(t, regexp.MustCompile(`^INFO: PID4242 \d{4}-.* TestBindChildSession\.func1\(\): \d+: from child$`), after[len(before)])

		// Older files are untouched
		assert.Equal(t, []string{names[0]}, readLines(t, filepath.Join(dir, names[0])))
	})

	t.Run("without survivors creates a new file", func(t *testing.T) {
		dir := t.TempDir()

		s, err := Bind(dir, nil, BindOptions{Child: true, PID: 7, Level: zerolog.InfoLevel})
		require.NoError(t, err)
		assert.False(t, s.Child())

		s.Infof("first")
		require.NoError(t, s.Shutdown())

		lines := readLines(t, s.Path())
		assert.NotContains(t, lines[0], "PID7")
	})
}

func TestBindSinkAttachError(t *testing.T) {
	t.Run("child target cannot be opened", func(t *testing.T) {
		dir := t.TempDir()
		blocked := filepath.Join(dir, "2026-01-01_00-00-00_000000.log")
		require.NoError(t, os.Mkdir(blocked, 0o755))

		_, err := Bind(dir, []LogFile{{Name: filepath.Base(blocked), Path: blocked}}, BindOptions{Child: true})
		assert.ErrorIs(t, err, ErrSinkAttach)
	})

	t.Run("root directory missing", func(t *testing.T) {
		_, err := Bind(filepath.Join(t.TempDir(), "gone"), nil, BindOptions{})
		assert.ErrorIs(t, err, ErrSinkAttach)
	})
}

func TestSessionConsoleSink(t *testing.T) {
	dir := t.TempDir()
	console := &syncBuffer{}

	s, err := Bind(dir, nil, BindOptions{Console: true, ConsoleOut: console, Level: zerolog.InfoLevel})
	require.NoError(t, err)

	s.Infof("one")
	s.Errorf("two")
	require.NoError(t, s.Shutdown())

	content, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, string(content), console.String())
	assert.Contains(t, console.String(), "ERROR: ")
}

func TestSessionLevelThreshold(t *testing.T) {
	dir := t.TempDir()
	rec := newFakeRecorder()

	s, err := Bind(dir, nil, BindOptions{Level: zerolog.WarnLevel, Recorder: rec})
	require.NoError(t, err)

	s.Debugf("debug")
	s.Infof("info")
	s.Warnf("warn")
	s.Errorf("error")
	require.NoError(t, s.Shutdown())

	content, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(content), ": debug")
	assert.NotContains(t, string(content), ": info")
	assert.Contains(t, string(content), ": warn")
	assert.Contains(t, string(content), ": error")

	// The shutdown record is the only info line
	lines := readLines(t, s.Path())
	require.Len(t, lines, 3)
	assert.Regexp(t, regexp.MustCompile(`^INFO: .+: `+regexp.QuoteMeta(s.Path())+`$`), lines[2])

	assert.Equal(t, []bool{false}, rec.bound)
	assert.Equal(t, 1, rec.emitted[zerolog.WarnLevel])
	assert.Equal(t, 1, rec.emitted[zerolog.ErrorLevel])
	assert.Equal(t, 1, rec.emitted[zerolog.InfoLevel])
	assert.Zero(t, rec.emitted[zerolog.DebugLevel])
}

func TestSessionShutdownAboveInfo(t *testing.T) {
	for _, level := range []zerolog.Level{zerolog.WarnLevel, zerolog.ErrorLevel} {
		t.Run(level.String(), func(t *testing.T) {
			dir := t.TempDir()
			s, err := Bind(dir, nil, BindOptions{Level: level})
			require.NoError(t, err)

			s.Errorf("failed")
			require.NoError(t, s.Shutdown())

			lines := readLines(t, s.Path())
			require.Len(t, lines, 2)
			assert.True(t, strings.HasPrefix(lines[1], "INFO: "))
			assert.True(t, strings.HasSuffix(lines[1], ": "+s.Path()))

			// The session keeps its own threshold
			assert.Equal(t, level, s.Logger().GetLevel())
		})
	}
}

func TestSessionShutdown(t *testing.T) {
	dir := t.TempDir()
	s, err := Bind(dir, nil, BindOptions{Level: zerolog.InfoLevel})
	require.NoError(t, err)

	retained := s.Logger()
	s.Infof("before")

	require.NoError(t, s.Shutdown())
	assert.Equal(t, StateShutDown, s.State())

	// Second shutdown is a no-op
	require.NoError(t, s.Shutdown())

	assert.ErrorIs(t, s.Logf(zerolog.InfoLevel, "after"), ErrSessionClosed)
	s.Infof("after")
	retained.Info().Msg("after")

	lines := readLines(t, s.Path())
	require.Len(t, lines, 2)
	assert.NotContains(t, strings.Join(lines, "\n"), "after")
}

func TestSessionConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	s, err := Bind(dir, nil, BindOptions{Level: zerolog.InfoLevel})
	require.NoError(t, err)

	const writers, perWriter = 10, 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				s.Infof("writer=%d seq=%d", id, j)
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, s.Shutdown())

	lines := readLines(t, s.Path())
	require.Len(t, lines, writers*perWriter+1)

	wellFormed := regexp.MustCompile(`^INFO: .*: writer=\d+ seq=\d+$`)
	seen := make(map[string]bool)
	for _, line := range lines[:len(lines)-1] {
		require.Regexp(t, wellFormed, line)
		seen[line[strings.Index(line, "writer="):]] = true
	}
	assert.Len(t, seen, writers*perWriter)
}

func TestSessionRedaction(t *testing.T) {
	dir := t.TempDir()
	s, err := Bind(dir, nil, BindOptions{Level: zerolog.InfoLevel, Redactor: NewRedactor()})
	require.NoError(t, err)

	s.Infof("calling api with key %s", "sk-"+strings.Repeat("a", 30))
	require.NoError(t, s.Shutdown())

	content, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(content), "[REDACTED]")
	assert.NotContains(t, string(content), strings.Repeat("a", 30))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "bound", StateBound.String())
	assert.Equal(t, "shut down", StateShutDown.String())
	assert.Equal(t, fmt.Sprintf("State(%d)", 9), State(9).String())
}

func TestSessionSizeRotation(t *testing.T) {
	dir := t.TempDir()
	s, err := Bind(dir, nil, BindOptions{Level: zerolog.InfoLevel, MaxSizeMB: 1})
	require.NoError(t, err)

	chunk := strings.Repeat("x", 4096)
	for i := 0; i < 400; i++ {
		s.Infof("%d %s", i, chunk)
	}
	require.NoError(t, s.Shutdown())
	require.NoError(t, s.Err())

	files, err := ListLogFiles(dir)
	require.NoError(t, err)
	require.Greater(t, len(files), 1)

	// Rotated backups sort before the active file, which stays newest
	assert.Equal(t, s.Path(), files[len(files)-1].Path)
	stem := strings.TrimSuffix(filepath.Base(s.Path()), LogExtension)
	for _, f := range files[:len(files)-1] {
		assert.True(t, strings.HasPrefix(f.Name, stem+"-"), f.Name)
	}

	// A child bound to the survivors appends to the active file
	child, err := Bind(dir, files, BindOptions{Child: true, PID: 9, Level: zerolog.InfoLevel})
	require.NoError(t, err)
	assert.Equal(t, s.Path(), child.Path())
	require.NoError(t, child.Shutdown())
}
