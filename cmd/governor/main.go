// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command governor starts the Governor compliance analysis HTTP server.
//
// This is the main entry point for the containerized analysis service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - GOVERNOR_PORT: HTTP server port (default: 8000)
//   - LLM_BACKEND_TYPE: inference provider - ollama, openai (default: ollama)
//   - USE_LLM: set to "false" to run rules-only (default: true)
//   - POLICY_CORPUS_PATH: policy corpus JSON file (default: embedded corpus)
//   - POLICY_RULES_PATH: legacy rules YAML file (default: embedded ruleset)
//   - OLLAMA_BASE_URL / OLLAMA_MODEL / OLLAMA_TIMEOUT_S: Ollama backend
//   - OPENAI_API_KEY / OPENAI_MODEL: OpenAI backend
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: governor-otel-collector:4317)
//   - GOVERNOR_LOG_DIR: also write JSON logs to this directory (optional)
//   - LOG_LEVEL: minimum log level - debug, info, warn, error (default: info)
//
// # Usage
//
//	# Build
//	go build -o governor ./cmd/governor
//
//	# Run
//	./governor
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/aiimpact/governor/pkg/logging"
	"github.com/aiimpact/governor/services/analysis"
)

func main() {
	// Setup structured logging
	logger := logging.New(logging.Config{
		Service: "governor",
		LogDir:  os.Getenv("GOVERNOR_LOG_DIR"),
	})
	defer logger.Close()
	logger.SetAsDefault()

	// Build configuration from environment variables
	cfg := analysis.Config{
		Port:       getEnvInt("GOVERNOR_PORT", 8000),
		LLMBackend: getEnvString("LLM_BACKEND_TYPE", "ollama"),
		CorpusPath: os.Getenv("POLICY_CORPUS_PATH"),
		RulesPath:  os.Getenv("POLICY_RULES_PATH"),
	}

	slog.Info("Starting governor",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"corpus_path", cfg.CorpusPath,
	)

	svc, err := analysis.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create analysis service: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Analysis service error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
