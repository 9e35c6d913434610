package logger

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultLogFilename = "taskwire.log"

type InitOptions struct {
	Level    string
	Format   string
	AppName  string
	Caller   bool
	Output   OutputOptions
	Rotation RotationOptions
}

type OutputOptions struct {
	ToStderr bool
	ToFile   bool
	FilePath string
}

type RotationOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func (o InitOptions) normalized() InitOptions {
	out := o
	out.Level = strings.ToLower(strings.TrimSpace(out.Level))
	if out.Level == "" {
		out.Level = "warn"
	}
	out.Format = strings.ToLower(strings.TrimSpace(out.Format))
	if out.Format == "" {
		out.Format = "console"
	}
	out.AppName = strings.TrimSpace(out.AppName)
	if out.AppName == "" {
		out.AppName = "taskwire"
	}
	if !out.Output.ToStderr && !out.Output.ToFile {
		out.Output.ToStderr = true
	}
	if out.Rotation.MaxSizeMB <= 0 {
		out.Rotation.MaxSizeMB = 20
	}
	if out.Rotation.MaxBackups < 0 {
		out.Rotation.MaxBackups = 3
	}
	if out.Rotation.MaxAgeDays < 0 {
		out.Rotation.MaxAgeDays = 14
	}
	return out
}

func defaultLogFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), defaultLogFilename)
	}
	return filepath.Join(home, ".taskwire", "logs", defaultLogFilename)
}

func parseLevel(level string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelWarn, false
	}
}
