// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides clients for external language-model inference
// services and the generative flag client built on top of them.
package llm

import "context"

// GenerationParams carries decoding parameters for one inference call.
// Nil pointers fall back to backend defaults.
type GenerationParams struct {
	// System is the system-role prompt for the call. Empty means the
	// backend's default persona.
	System string `json:"system,omitempty"`

	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	NumCtx      *int     `json:"num_ctx"`
	Stop        []string `json:"stop"`

	// JSONFormat asks the backend for a JSON-constrained response where the
	// backend supports it (Ollama format=json, OpenAI response_format).
	JSONFormat bool `json:"json_format,omitempty"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	// Generate produces one completion for the prompt. The call must respect
	// ctx cancellation so an aborted analysis request releases the inference
	// slot promptly instead of waiting out the full timeout.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Model reports the backend model identifier, recorded on generated
	// flags for provenance.
	Model() string
}
