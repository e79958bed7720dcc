package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/oneclickvirt/console/src/client/paths"
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string // debug, info, warn, error (default: warn)
	File     string // empty = {log_dir}/cli.log
	MaxSize  int    // MB per file (default: 10)
	MaxFiles int    // rotated files kept (default: 5)
}

// GetLogConfig returns logging configuration from viper
func GetLogConfig() LogConfig {
	return LogConfig{
		Level:    viper.GetString("logging.level"),
		File:     viper.GetString("logging.file"),
		MaxSize:  viper.GetInt("logging.max_size"),
		MaxFiles: viper.GetInt("logging.max_files"),
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// newLogWriter returns the rotating log file for cfg
func newLogWriter(cfg LogConfig) (*lumberjack.Logger, error) {
	logPath := cfg.File
	if logPath == "" {
		logPath = paths.LogFile()
	}
	logPath = paths.Expand(logPath)
	if err := paths.EnsureFile(logPath); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	maxSize := cfg.MaxSize
	if maxSize == 0 {
		maxSize = 10
	}
	maxFiles := cfg.MaxFiles
	if maxFiles == 0 {
		maxFiles = 5
	}

	return &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxSize,
		MaxBackups: maxFiles,
		MaxAge:     30, // days
		Compress:   true,
	}, nil
}

// newLogger builds a JSON logger writing to w
func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
}

// logFile is the open rotating writer, closed by closeLogging
var logFile io.Closer

// initLogging installs the configured logger as the slog default
func initLogging() error {
	cfg := GetLogConfig()
	w, err := newLogWriter(cfg)
	if err != nil {
		return err
	}
	closeLogging()
	logFile = w
	slog.SetDefault(newLogger(w, cfg.Level))
	return nil
}

func closeLogging() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}
