package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathResolver determines the directory log files are written to.
// Every collaborator is a field so hosts and tests can replace it.
type PathResolver struct {
	// Executable returns the path of the running binary
	Executable func() (string, error)

	// Getwd returns the working directory, used as anchor for toolchain binaries
	Getwd func() (string, error)

	// AppDataDir returns the per-user fallback root
	AppDataDir func() (string, error)

	// Writable reports whether an existing directory accepts new files
	Writable func(dir string) bool
}

// NewPathResolver creates a resolver backed by the operating system
func NewPathResolver() *PathResolver {
	return &PathResolver{
		Executable: executablePath,
		Getwd:      os.Getwd,
		AppDataDir: os.UserConfigDir,
		Writable:   accessWritable,
	}
}

// Resolve returns an absolute, writable log directory for name, creating it
// if needed. Relative names are anchored next to the executable; when that
// location is not writable the last two segments of the path are relocated
// under the per-user application data directory.
func (r *PathResolver) Resolve(name string) (string, error) {
	if name == "" {
		name = DefaultLogDirectoryName
	}
	r = r.withDefaults()

	candidate, err := r.candidate(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}

	if r.creatable(candidate) {
		if err := os.MkdirAll(candidate, 0o755); err == nil && r.Writable(candidate) {
			return candidate, nil
		}
	}

	return r.fallback(candidate)
}

// withDefaults returns a copy with unset collaborators filled in
func (r *PathResolver) withDefaults() *PathResolver {
	d := NewPathResolver()
	if r == nil {
		return d
	}

	c := *r
	if c.Executable == nil {
		c.Executable = d.Executable
	}
	if c.Getwd == nil {
		c.Getwd = d.Getwd
	}
	if c.AppDataDir == nil {
		c.AppDataDir = d.AppDataDir
	}
	if c.Writable == nil {
		c.Writable = d.Writable
	}
	return &c
}

// candidate computes the primary log directory
func (r *PathResolver) candidate(name string) (string, error) {
	if filepath.IsAbs(name) {
		return filepath.Clean(name), nil
	}

	anchor := ""
	if exe, err := r.Executable(); err == nil && !isToolchainBinary(exe) {
		anchor = filepath.Dir(exe)
	}

	if anchor == "" {
		wd, err := r.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		anchor = wd
	}

	return filepath.Abs(filepath.Join(anchor, name))
}

// creatable reports whether dir exists and is writable, or could be created
// below its nearest existing ancestor
func (r *PathResolver) creatable(dir string) bool {
	p := dir
	for {
		info, err := os.Stat(p)
		if err == nil {
			return info.IsDir() && r.Writable(p)
		}
		if !os.IsNotExist(err) {
			return false
		}

		parent := filepath.Dir(p)
		if parent == p {
			return false
		}
		p = parent
	}
}

// fallback relocates the candidate under the application data directory
func (r *PathResolver) fallback(candidate string) (string, error) {
	root, err := r.AppDataDir()
	if err != nil {
		return "", fmt.Errorf("%w: %s is not writable and no application data directory: %v",
			ErrDirectoryUnavailable, candidate, err)
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not writable and fallback root %s does not exist",
			ErrDirectoryUnavailable, candidate, root)
	}

	dir := filepath.Join(append([]string{root}, lastSegments(candidate, 2)...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create %s: %v", ErrDirectoryUnavailable, dir, err)
	}
	if !r.Writable(dir) {
		return "", fmt.Errorf("%w: %s is not writable", ErrDirectoryUnavailable, dir)
	}

	return filepath.Abs(dir)
}

// executablePath returns the running binary with symlinks resolved
func executablePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(exe)
}

// isToolchainBinary reports whether exe was built by "go run" or "go test"
// rather than installed as an application
func isToolchainBinary(exe string) bool {
	base := strings.TrimSuffix(filepath.Base(exe), ".exe")
	if strings.HasSuffix(base, ".test") {
		return true
	}
	return strings.Contains(filepath.ToSlash(exe), "/go-build")
}

// lastSegments returns up to n trailing elements of path
func lastSegments(path string, n int) []string {
	path = strings.TrimPrefix(filepath.Clean(path), filepath.VolumeName(path))

	var parts []string
	for _, p := range strings.Split(filepath.ToSlash(path), "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	if len(parts) > n {
		parts = parts[len(parts)-n:]
	}
	return parts
}
