//go:build windows

package logger

import (
	"os"
)

// accessWritable reports whether dir is an existing directory the current
// user may create files in. Windows ACLs are not reflected in file mode bits,
// so a scratch file is created and removed.
func accessWritable(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}

	f, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
