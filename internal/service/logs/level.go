package logs

import (
	"fmt"
	"strings"
)

// Level is the severity of a recorded entry. API is kept apart from the diagnostic
// levels so prompt/response traffic can be inspected without flooding them.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelAPI   Level = "API"
)

// Levels lists every level in display order.
func Levels() []Level {
	return []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelAPI}
}

// ParseLevel accepts a level name in any case.
func ParseLevel(raw string) (Level, error) {
	level := Level(strings.ToUpper(strings.TrimSpace(raw)))
	switch level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError, LevelAPI:
		return level, nil
	default:
		return "", fmt.Errorf("unknown log level %q", raw)
	}
}
