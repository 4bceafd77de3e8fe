package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testResolver anchors relative names in base/bin and falls back to base/appdata
func testResolver(base string) *PathResolver {
	return &PathResolver{
		Executable: func() (string, error) { return filepath.Join(base, "bin", "app"), nil },
		Getwd:      func() (string, error) { return filepath.Join(base, "wd"), nil },
		AppDataDir: func() (string, error) { return filepath.Join(base, "appdata"), nil },
		Writable:   accessWritable,
	}
}

func TestResolveAbsolute(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	got, err := NewPathResolver().Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	info, err := os.Stat(got)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolveIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	r := NewPathResolver()

	first, err := r.Resolve(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(first, "keep.log"), []byte("x"), 0o644))

	second, err := r.Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(second)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestResolveAnchorsNextToExecutable(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "bin"), 0o755))

	got, err := testResolver(base).Resolve("log_files")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "bin", "log_files"), got)
}

func TestResolveToolchainBinaryUsesWorkingDirectory(t *testing.T) {
	base := t.TempDir()
	r := testResolver(base)
	r.Executable = func() (string, error) {
		return filepath.Join(os.TempDir(), "go-build1234", "b001", "exe", "main"), nil
	}

	got, err := r.Resolve("log_files")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "wd", "log_files"), got)
}

func TestResolveExecutableErrorUsesWorkingDirectory(t *testing.T) {
	base := t.TempDir()
	r := testResolver(base)
	r.Executable = func() (string, error) { return "", errors.New("no executable") }

	got, err := r.Resolve("logs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "wd", "logs"), got)
}

func TestResolveFallback(t *testing.T) {
	t.Run("primary not writable", func(t *testing.T) {
		base := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(base, "appdata"), 0o755))
		primary := filepath.Join(base, "bin")
		require.NoError(t, os.MkdirAll(primary, 0o755))

		r := testResolver(base)
		r.Writable = func(dir string) bool {
			return !strings.HasPrefix(dir, primary) && accessWritable(dir)
		}

		got, err := r.Resolve("log_files")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(base, "appdata", "bin", "log_files"), got)
		assert.DirExists(t, got)
		assert.NoDirExists(t, filepath.Join(primary, "log_files"))
	})

	t.Run("fallback root missing", func(t *testing.T) {
		base := t.TempDir()
		r := testResolver(base)
		r.Writable = func(string) bool { return false }

		_, err := r.Resolve("log_files")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDirectoryUnavailable)
	})

	t.Run("no application data directory", func(t *testing.T) {
		base := t.TempDir()
		r := testResolver(base)
		r.Writable = func(string) bool { return false }
		r.AppDataDir = func() (string, error) { return "", errors.New("$HOME is not defined") }

		_, err := r.Resolve("log_files")
		assert.ErrorIs(t, err, ErrDirectoryUnavailable)
	})

	t.Run("primary blocked by a file", func(t *testing.T) {
		base := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(base, "appdata"), 0o755))
		require.NoError(t, os.MkdirAll(filepath.Join(base, "bin"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(base, "bin", "log_files"), []byte("x"), 0o644))

		got, err := testResolver(base).Resolve("log_files")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(base, "appdata", "bin", "log_files"), got)
	})
}

func TestIsToolchainBinary(t *testing.T) {
	tests := []struct {
		exe      string
		expected bool
	}{
		{"/usr/local/bin/app", false},
		{"/opt/app/app.exe", false},
		{"/tmp/go-build2231/b001/exe/main", true},
		{"/tmp/go-build2231/b001/logger.test", true},
		{"C:/Users/me/AppData/Local/Temp/go-build99/b001/exe/main.exe", true},
		{"/home/me/pkg.test.exe", true},
	}

	for _, tt := range tests {
		t.Run(tt.exe, func(t *testing.T) {
			assert.Equal(t, tt.expected, isToolchainBinary(filepath.FromSlash(tt.exe)))
		})
	}
}

func TestLastSegments(t *testing.T) {
	assert.Equal(t, []string{"app", "log_files"}, lastSegments(filepath.FromSlash("/opt/app/log_files"), 2))
	assert.Equal(t, []string{"log_files"}, lastSegments(filepath.FromSlash("/log_files"), 2))
	assert.Equal(t, []string{"b", "c"}, lastSegments(filepath.FromSlash("/a/b/c/"), 2))
}
