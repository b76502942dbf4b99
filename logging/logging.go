// Package logging initializes the process-wide slog logger for Dess.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// levelSilent is above every slog level, so nothing is emitted.
const levelSilent = slog.Level(1000)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
	"silent":  levelSilent,
	"none":    levelSilent,
}

// ParseLogLevel converts a string log level to slog.Level.
// Unknown values fall back to info.
func ParseLogLevel(level string) slog.Level {
	if l, ok := levelNames[level]; ok {
		return l
	}
	return slog.LevelInfo
}

// ValidLogLevels returns the log levels accepted by the CLI flag
func ValidLogLevels() []string {
	return []string{"debug", "info", "warning", "error", "silent"}
}

// InitLogging installs a text handler at the specified level as the default logger
func InitLogging(logLevel string) {
	InitLoggingWithWriter(os.Stderr, logLevel)
}

// InitLoggingWithWriter is InitLogging with an explicit output stream, for tests
func InitLoggingWithWriter(w io.Writer, logLevel string) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLogLevel(logLevel),
	})
	slog.SetDefault(slog.New(handler))
}

// CLI flag for setting the log level

// LogLevel is a flag for setting the log level
var LogLevel = &logLevelFlag{value: "silent", set: false}

type logLevelFlag struct {
	value string
	set   bool
}

func (l *logLevelFlag) Set(value string) error {
	if _, ok := levelNames[value]; !ok || value == "none" {
		return fmt.Errorf("invalid value '%s'. Allowed values: %s",
			value, strings.Join(ValidLogLevels(), ", "))
	}
	l.value = value
	l.set = true
	return nil
}

func (l *logLevelFlag) String() string {
	return l.value
}

func (l *logLevelFlag) Type() string {
	return fmt.Sprintf("one of [%s]", strings.Join(ValidLogLevels(), "|"))
}

// IsSet returns true if the flag was explicitly set via command line
func (l *logLevelFlag) IsSet() bool {
	return l.set
}
