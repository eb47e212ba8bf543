// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Service: "testsvc", LogDir: dir})
	defer logger.Close()

	logger.Info("hello", "k", "v")

	name := "testsvc_" + time.Now().UTC().Format("2006-01-02") + ".log"
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("Log file not created: %v", err)
	}

	line := strings.TrimSpace(string(raw))
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("Log line is not JSON: %v", err)
	}
	if record["msg"] != "hello" || record["k"] != "v" {
		t.Errorf("Unexpected record: %v", record)
	}
	if record["service"] != "testsvc" {
		t.Errorf("Service attribute missing: %v", record)
	}
}

func TestNewDegradesWhenLogDirUnusable(t *testing.T) {
	// A regular file where the directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger := New(Config{LogDir: filepath.Join(blocker, "logs")})
	defer logger.Close()

	// Stdout-only logger must still work and close cleanly.
	logger.Info("still alive")
	if err := logger.Close(); err != nil {
		t.Errorf("Close on degraded logger: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir()})
	if err := logger.Close(); err != nil {
		t.Fatalf("First close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Second close: %v", err)
	}

	if err := Default().Close(); err != nil {
		t.Errorf("Close on stdout-only logger: %v", err)
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Service: "lvl", LogDir: dir, Level: "error"})
	defer logger.Close()

	logger.Info("filtered out")
	logger.Error("kept")

	name := "lvl_" + time.Now().UTC().Format("2006-01-02") + ".log"
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	content := string(raw)
	if strings.Contains(content, "filtered out") {
		t.Error("Info record emitted at error level")
	}
	if !strings.Contains(content, "kept") {
		t.Error("Error record missing")
	}
}
