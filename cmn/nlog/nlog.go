// Package nlog is the module's leveled logger, in the same register/call
// shape as aistore's cmn/nlog: package-level Infof/Infoln/Warningf/Errorf
// functions gated by a global, atomically-set verbosity level rather than a
// per-logger object threaded through every call site.
package nlog

import (
	"fmt"
	"os"
	"sync/atomic"
)

// Level mirrors the original AMPCCL_LOG header's LogLevel enum: higher is
// more verbose.
type Level int32

const (
	Off Level = iota
	Error
	Warn
	Info
	Debug
)

var level atomic.Int32

// SetLevel sets the global log level. Safe to call concurrently with
// logging calls.
func SetLevel(l Level) { level.Store(int32(l)) }

// GetLevel returns the current global log level.
func GetLevel() Level { return Level(level.Load()) }

// FastV reports whether v is at or below the current level, named after
// aistore's cmn.Rom.FastV hot-path verbosity check: callers guard expensive
// argument construction with it instead of relying on the logger to
// short-circuit after formatting.
//
//	if nlog.FastV(Debug) { nlog.Debugf("alpha=%.4f plan=%+v", alpha, plan) }
func FastV(v Level) bool { return level.Load() >= int32(v) }

func logf(l Level, format string, args ...any) {
	if level.Load() < int32(l) {
		return
	}
	fmt.Fprintf(os.Stderr, "[ampccl][%s] "+format+"\n", append([]any{l}, args...)...)
}

func logln(l Level, args ...any) {
	if level.Load() < int32(l) {
		return
	}
	prefix := fmt.Sprintf("[ampccl][%s] ", l)
	fmt.Fprintln(os.Stderr, prefix+fmt.Sprint(args...))
}

func (l Level) String() string {
	switch l {
	case Off:
		return "OFF"
	case Error:
		return "ERROR"
	case Warn:
		return "WARN"
	case Info:
		return "INFO"
	case Debug:
		return "DEBUG"
	default:
		return "?"
	}
}

func Errorf(format string, args ...any) { logf(Error, format, args...) }
func Errorln(args ...any)               { logln(Error, args...) }
func Warningf(format string, args ...any) { logf(Warn, format, args...) }
func Warningln(args ...any)               { logln(Warn, args...) }
func Infof(format string, args ...any)  { logf(Info, format, args...) }
func Infoln(args ...any)                { logln(Info, args...) }
func Debugf(format string, args ...any) { logf(Debug, format, args...) }
func Debugln(args ...any)               { logln(Debug, args...) }
