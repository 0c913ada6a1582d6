package logredirect

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// Priority is an Android log priority (android_LogPriority).
type Priority int

const (
	PriorityUnknown = Priority(iota)
	PriorityDefault
	PriorityVerbose
	PriorityDebug
	PriorityInfo
	PriorityWarn
	PriorityError
	PriorityFatal
	PrioritySilent
)

func (p Priority) String() string {
	switch p {
	case PriorityUnknown:
		return "unknown"
	case PriorityDefault:
		return "default"
	case PriorityVerbose:
		return "verbose"
	case PriorityDebug:
		return "debug"
	case PriorityInfo:
		return "info"
	case PriorityWarn:
		return "warn"
	case PriorityError:
		return "error"
	case PriorityFatal:
		return "fatal"
	case PrioritySilent:
		return "silent"
	}
	return "unknown_priority"
}

// LoggerLevel maps the priority to the closest logger level.
func (p Priority) LoggerLevel() logger.Level {
	switch {
	case p <= PriorityVerbose:
		return logger.LevelTrace
	case p == PriorityDebug:
		return logger.LevelDebug
	case p == PriorityInfo:
		return logger.LevelInfo
	case p == PriorityWarn:
		return logger.LevelWarning
	case p == PriorityError:
		return logger.LevelError
	default:
		return logger.LevelFatal
	}
}

// Sink receives the captured output line by line.
type Sink interface {
	WriteLine(ctx context.Context, tag string, line string) error
}

// LoggerSink forwards lines to the logger carried by the context.
type LoggerSink struct {
	Priority Priority
}

var _ Sink = (*LoggerSink)(nil)

func NewLoggerSink(priority Priority) *LoggerSink {
	return &LoggerSink{Priority: priority}
}

func (s *LoggerSink) WriteLine(ctx context.Context, tag string, line string) error {
	level := s.Priority.LoggerLevel()
	if level == logger.LevelFatal {
		// do not let a captured line terminate the process
		level = logger.LevelError
	}
	logger.FromCtx(ctx).WithField("tag", tag).Log(level, line)
	return nil
}
