//go:build !windows

package logger

import (
	"os"

	"golang.org/x/sys/unix"
)

// accessWritable reports whether dir is an existing directory the current
// user may create files in
func accessWritable(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	return unix.Access(dir, unix.W_OK|unix.X_OK) == nil
}
