package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug (-1). Used for per-chunk and per-row detail
// that is almost always filtered.
const TraceLevel = zapcore.Level(-2)

// ParseLevel parses a level name, accepting "trace" in addition to zap's names.
func ParseLevel(level string) (zapcore.Level, error) {
	if strings.EqualFold(level, "trace") {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}
