// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/aiimpact/governor/services/analysis/datatypes"
)

var flagGenTracer = otel.Tracer("governor.llm.flaggen")

const (
	defaultTemperature float32 = 0.2
	retrySystemSuffix          = "\nBe decisive. If evidence is partial, emit AMBER with a concise 'because' and a concrete mitigation. " +
		"If clearly compliant, emit GREEN with a short justification."
	retryUserSuffix = "\nIf you cannot find any issues, still emit at least one GREEN item that explains why."
)

// FlagGenerator drives the generative half of an analysis: it sends the
// assessor prompts to an LLMClient, parses whatever comes back into flags,
// and retries once at a higher temperature when the first pass yields
// nothing. An empty result after both attempts is a valid outcome, not an
// error; genuine transport failures propagate.
type FlagGenerator struct {
	client      LLMClient
	temperature float32
}

// FlagResult is one generation outcome plus the audit material the caller
// records alongside it.
type FlagResult struct {
	Flags    []datatypes.Flag
	Attempts int
}

// NewFlagGenerator wires a generator around an existing client. The base
// temperature comes from LLM_TEMPERATURE when set.
func NewFlagGenerator(client LLMClient) *FlagGenerator {
	temp := defaultTemperature
	if raw := os.Getenv("LLM_TEMPERATURE"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 32); err == nil {
			temp = float32(parsed)
		} else {
			slog.Warn("Invalid LLM_TEMPERATURE, using default", "value", raw)
		}
	}
	return &FlagGenerator{client: client, temperature: temp}
}

// # Description
//
//	Runs the two-attempt generation loop. The first attempt uses the base
//	temperature; when it produces zero flags, the second attempt reruns
//	with a sharpened system prompt, an explicit "emit at least one GREEN"
//	instruction, and temperature max(0.3, base+0.1). The retry happens at
//	most once per call.
//
// # Inputs
//   - ctx: Cancellation and deadline control for both attempts.
//   - system, user: Prompt turns, usually from BuildSystemPrompt/BuildUserPrompt.
//   - schemaHint: JSON schema appended to the user turn.
//
// # Outputs
//   - FlagResult: Normalized flags plus the attempt count (1 or 2).
//   - error: Transport or decoding failure from the underlying client.
func (g *FlagGenerator) GenerateFlags(ctx context.Context, system, user, schemaHint string) (FlagResult, error) {
	ctx, span := flagGenTracer.Start(ctx, "llm.GenerateFlags")
	defer span.End()

	flags, err := g.callOnce(ctx, system, user, schemaHint, g.temperature)
	if err != nil {
		return FlagResult{Attempts: 1}, err
	}
	if len(flags) > 0 {
		span.SetAttributes(attribute.Int("llm.attempts", 1), attribute.Int("llm.flags", len(flags)))
		return FlagResult{Flags: flags, Attempts: 1}, nil
	}

	slog.Info("First generation attempt returned no flags, retrying once", "model", g.client.Model())
	retryTemp := g.temperature + 0.1
	if retryTemp < 0.3 {
		retryTemp = 0.3
	}
	flags, err = g.callOnce(ctx, system+retrySystemSuffix, user+retryUserSuffix, schemaHint, retryTemp)
	if err != nil {
		return FlagResult{Attempts: 2}, err
	}
	span.SetAttributes(attribute.Int("llm.attempts", 2), attribute.Int("llm.flags", len(flags)))
	return FlagResult{Flags: flags, Attempts: 2}, nil
}

func (g *FlagGenerator) callOnce(ctx context.Context, system, user, schemaHint string, temp float32) ([]datatypes.Flag, error) {
	prompt := fmt.Sprintf("%s\n\nFollow this JSON schema strictly:\n%s\n\nReturn ONLY JSON (no extra text).", user, schemaHint)
	t := temp
	raw, err := g.client.Generate(ctx, prompt, GenerationParams{
		System:      system,
		Temperature: &t,
		JSONFormat:  true,
	})
	if err != nil {
		return nil, err
	}

	parsed, ok := ExtractJSONValue(raw)
	if !ok {
		slog.Warn("Model output contained no parseable JSON", "model", g.client.Model(), "bytes", len(raw))
		return nil, nil
	}
	var flags []datatypes.Flag
	for _, obj := range flagObjects(parsed) {
		f, ok := g.normalizeFlag(obj)
		if !ok {
			continue
		}
		flags = append(flags, f)
	}
	return flags, nil
}

// normalizeFlag fills the fields the rest of the pipeline expects: id and
// clause default to each other when only one is present, severity is coerced
// to the enum, and the serving model name is stamped on. A flag whose reason
// is empty after trimming carries no finding; it is dropped with a warning
// rather than failing the batch.
func (g *FlagGenerator) normalizeFlag(d map[string]any) (datatypes.Flag, bool) {
	id := strings.TrimSpace(stringOf(d["id"]))
	clause := strings.TrimSpace(stringOf(d["clause"]))
	if id == "" {
		id = clause
	}
	if clause == "" {
		clause = id
	}
	reason := strings.TrimSpace(stringOf(d["reason"]))
	if reason == "" {
		slog.Warn("Dropping generated flag with empty reason", "clause", clause, "model", g.client.Model())
		return datatypes.Flag{}, false
	}
	meta, _ := d["meta"].(map[string]any)
	return datatypes.Flag{
		ID:         id,
		Clause:     clause,
		Severity:   datatypes.CoerceSeverity(stringOf(d["severity"])),
		Reason:     reason,
		Mitigation: strings.TrimSpace(stringOf(d["mitigation"])),
		Evidence:   strings.TrimSpace(stringOf(d["evidence"])),
		Model:      g.client.Model(),
		Meta:       meta,
	}, true
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
