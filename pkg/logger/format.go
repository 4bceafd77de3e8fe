package logger

import (
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Record fields rendered as fixed parts of every line
const (
	pidField    = "pid"
	timeField   = "ts"
	sourceField = "src"
	funcField   = "fn"
	lineField   = "ln"
)

// LineTimeFormat is the timestamp layout used in log lines
const LineTimeFormat = "2006-01-02 15:04:05.000"

var (
	packagePath = reflect.TypeOf((*Session)(nil)).Elem().PkgPath()

	// frames belonging to the emission machinery rather than the caller
	internalFramePrefixes = []string{
		"github.com/rs/zerolog",
		packagePath + ".(*Session).",
		packagePath + ".sourceHook.",
		packagePath + ".callSite",
	}
)

// newLineWriter renders records as
//
//	LEVEL: [PID<pid>] <time> <file>: <func>(): <line>: <message> [key=value ...]
func newLineWriter(out io.Writer, child bool) zerolog.ConsoleWriter {
	parts := []string{zerolog.LevelFieldName}
	if child {
		parts = append(parts, pidField)
	}
	parts = append(parts, timeField, sourceField, funcField, lineField, zerolog.MessageFieldName)

	return zerolog.ConsoleWriter{
		Out:           out,
		NoColor:       true,
		PartsOrder:    parts,
		FieldsExclude: []string{pidField, timeField, sourceField, funcField, lineField},
		FormatLevel: func(i interface{}) string {
			if i == nil {
				return ""
			}
			return strings.ToUpper(fmt.Sprint(i)) + ":"
		},
		FormatFieldValue: func(i interface{}) string {
			return fmt.Sprint(i)
		},
		FormatMessage: func(i interface{}) string {
			if i == nil {
				return ""
			}
			return fmt.Sprint(i)
		},
	}
}

// sourceHook stamps every record with the time and the call site that
// emitted it
type sourceHook struct{}

func (sourceHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	file, fn, line := callSite()
	e.Str(timeField, time.Now().Format(LineTimeFormat)).
		Str(sourceField, file+":").
		Str(funcField, fn+"():").
		Str(lineField, strconv.Itoa(line)+":")
}

// callSite finds the first frame outside zerolog and the Session wrappers
func callSite() (file, fn string, line int) {
	var pcs [32]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if frame.Function != "" && !isInternalFrame(frame.Function) {
			return filepath.Base(frame.File), shortFuncName(frame.Function), frame.Line
		}
		if !more {
			break
		}
	}

	return "???", "???", 0
}

func isInternalFrame(function string) bool {
	for _, prefix := range internalFramePrefixes {
		if strings.HasPrefix(function, prefix) {
			return true
		}
	}
	return false
}

// shortFuncName strips the import path and package name from a function
func shortFuncName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// recorderHook counts emitted records
type recorderHook struct {
	recorder Recorder
}

func (h recorderHook) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	h.recorder.RecordEmitted(level)
}
