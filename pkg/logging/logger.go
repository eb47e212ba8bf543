// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for Governor services.
//
// Built on the standard library slog package with two destinations: JSON to
// stdout for container log collection, and an optional daily JSON log file
// for deployments that need a local audit trail.
//
// # Basic Usage
//
//	logger := logging.New(logging.Config{Service: "governor"})
//	defer logger.Close()
//	logger.SetAsDefault()
//	slog.Info("corpus loaded", "clauses", 42)
//
// # Security Considerations
//
// This package does NOT automatically redact sensitive data. Callers must
// ensure project descriptions, API keys, and telemetry payloads passed to
// the logger are already sanitized.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config controls logger construction. The zero value logs Info and above
// to stdout only.
type Config struct {
	// Level is the minimum severity to emit ("debug", "info", "warn",
	// "error"). Default: "info". LOG_LEVEL overrides an empty value.
	Level string

	// LogDir, when set, additionally writes JSON logs to
	// {LogDir}/{Service}_{date}.log. The directory is created if missing.
	LogDir string

	// Service names the log file and is attached to every record.
	// Default: "governor".
	Service string
}

// Logger wraps an slog.Logger plus the file handle it may own.
type Logger struct {
	*slog.Logger
	file *os.File
}

// New builds a Logger from cfg. File-logging failures degrade to
// stdout-only with a warning rather than failing startup.
func New(cfg Config) *Logger {
	if cfg.Service == "" {
		cfg.Service = "governor"
	}
	if cfg.Level == "" {
		cfg.Level = os.Getenv("LOG_LEVEL")
	}

	var out io.Writer = os.Stdout
	var file *os.File
	if cfg.LogDir != "" {
		f, err := openLogFile(cfg.LogDir, cfg.Service)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging: file output disabled: %v\n", err)
		} else {
			file = f
			out = io.MultiWriter(os.Stdout, f)
		}
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
	logger := slog.New(handler).With("service", cfg.Service)

	return &Logger{Logger: logger, file: file}
}

// Default returns a stdout-only logger with default settings.
func Default() *Logger {
	return New(Config{})
}

// SetAsDefault installs this logger as the process-wide slog default.
func (l *Logger) SetAsDefault() {
	slog.SetDefault(l.Logger)
}

// Close flushes and closes the log file, if one is open. Safe to call on a
// stdout-only logger.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func openLogFile(dir, service string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().UTC().Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
