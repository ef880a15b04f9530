package logging

import (
	"io"
	"maps"
	"slices"

	"github.com/go-kratos/kratos/v2/log"
)

// KratosLogger writes structured key/value lines through a kratos logger.
type KratosLogger struct {
	logger log.Logger
}

func NewKratosLogger(w io.Writer, service, level string) *KratosLogger {
	l := log.With(log.NewStdLogger(w),
		"ts", log.DefaultTimestamp,
		"service.name", service,
	)
	return &KratosLogger{
		logger: log.NewFilter(l, log.FilterLevel(log.ParseLevel(level))),
	}
}

// Kratos exposes the underlying logger for libraries that take a kratos log.Logger.
func (l *KratosLogger) Kratos() log.Logger {
	return l.logger
}

func (l *KratosLogger) log(level log.Level, msg string, fields map[string]any) {
	keyvals := make([]any, 0, 2+2*len(fields))
	keyvals = append(keyvals, log.DefaultMessageKey, msg)

	for _, k := range slices.Sorted(maps.Keys(fields)) {
		keyvals = append(keyvals, k, fields[k])
	}

	_ = l.logger.Log(level, keyvals...)
}

func (l *KratosLogger) Info(msg string, fields map[string]any) {
	l.log(log.LevelInfo, msg, fields)
}

func (l *KratosLogger) Warn(msg string, fields map[string]any) {
	l.log(log.LevelWarn, msg, fields)
}

func (l *KratosLogger) Error(msg string, fields map[string]any) {
	l.log(log.LevelError, msg, fields)
}
