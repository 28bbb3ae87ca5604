package blip

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// LogLevel is an engine-scoped verbosity threshold. Unlike slog's own
// levels this is read without synchronization: per the concurrency model,
// only the task that owns the engine ever touches it, so no atomic is
// needed even though slog itself is safe for concurrent use.
type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelWarning
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelWarning:
		return slog.LevelWarn
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelVerbose, LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelError + 1 // above everything; effectively silent
	}
}

// engineLog is the small structured-logging facade the engine uses
// internally. It wraps an *slog.Logger scoped to one engine instance (see
// Config.Logger) and filters by LogLevel before ever touching slog, so a
// None-level engine pays no formatting cost for calls it will discard.
type engineLog struct {
	level LogLevel
	base  *slog.Logger
}

// newEngineLog scopes base to one engine instance by tagging every record
// with a random connection ID, so log lines from concurrent connections in
// the same process can be told apart without the caller having to do it.
func newEngineLog(level LogLevel, base *slog.Logger) *engineLog {
	if base == nil {
		base = slog.Default()
	}
	return &engineLog{level: level, base: base.With("component", "blip", "conn", uuid.NewString())}
}

func (l *engineLog) enabled(at LogLevel) bool { return l != nil && l.level >= at }

func (l *engineLog) logf(at LogLevel, msg string, args ...any) {
	if !l.enabled(at) {
		return
	}
	l.base.Log(context.Background(), at.slogLevel(), fmt.Sprintf(msg, args...))
}

func (l *engineLog) warn(msg string, args ...any)    { l.logf(LogLevelWarning, msg, args...) }
func (l *engineLog) info(msg string, args ...any)    { l.logf(LogLevelInfo, msg, args...) }
func (l *engineLog) verbose(msg string, args ...any) { l.logf(LogLevelVerbose, msg, args...) }
func (l *engineLog) debug(msg string, args ...any)   { l.logf(LogLevelDebug, msg, args...) }
