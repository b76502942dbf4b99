package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LogLevel classifies a deployment log entry.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
	LogLevelSuccess LogLevel = "success"
)

func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelInfo, LogLevelWarning, LogLevelError, LogLevelSuccess:
		return true
	default:
		return false
	}
}

func ParseLogLevel(s string) (LogLevel, error) {
	l := LogLevel(s)
	if !l.IsValid() {
		return "", fmt.Errorf("invalid log level: %q", s)
	}
	return l, nil
}

// DeploymentLogEntry is an immutable, timestamped log line owned by a deployment.
type DeploymentLogEntry struct {
	ID           uuid.UUID
	DeploymentID uuid.UUID
	Level        LogLevel
	Message      string
	CreatedAt    time.Time
}

func NewDeploymentLogEntry(deploymentID uuid.UUID, level LogLevel, message string) DeploymentLogEntry {
	return DeploymentLogEntry{
		ID:           uuid.New(),
		DeploymentID: deploymentID,
		Level:        level,
		Message:      message,
	}
}
