// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/aiimpact/governor/services/analysis/datatypes"
	"github.com/aiimpact/governor/services/analysis/observability"
	"github.com/aiimpact/governor/services/analysis/reconcile"
	"github.com/aiimpact/governor/services/corpus"
	"github.com/aiimpact/governor/services/llm"
)

var analyseTracer = otel.Tracer("governor.analysis.analyse")

// analysisTopK is how many clauses the pipeline retrieves per request. The
// retrieved set is both the prompt context and the clause-id allow-list.
const analysisTopK = 20

// HandleAnalyse runs the full compliance pipeline for one project.
//
// # Description
//
//	Retrieval, rule evaluation, and generative flagging run against a single
//	corpus snapshot taken at the start of the request, so a concurrent
//	reload can never split an analysis across corpus versions. Rule
//	evaluation and inference run concurrently; the reconciler merges their
//	outputs and enforces the clause-id allow-list.
//
// # Inputs
//
//   - Request body: datatypes.ProjectFacts (JSON).
//
// # Outputs
//
//   - 200: datatypes.AnalysisResponse with flags, corpus version, and debug
//     payload (retrieved hits, prompt, per-stage timings).
//   - 400: malformed request body.
//
// # Limitations
//
//   - Inference failures degrade to a rules-only result; they are never
//     surfaced as HTTP errors.
func HandleAnalyse(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := analyseTracer.Start(c.Request.Context(), "analysis.HandleAnalyse")
		defer span.End()

		var facts datatypes.ProjectFacts
		if err := c.BindJSON(&facts); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		snap := deps.Store.Current()
		timings := make(map[string]float64, 4)

		// Retrieval
		t0 := time.Now()
		query := fmt.Sprintf("%s\n%s\n%s\n%s", facts.Title, facts.Description, facts.ModelType, facts.DeploymentEnv)
		hits := snap.Retrieve(query, analysisTopK, nil)
		timings["retrieval"] = msSince(t0)
		observability.RecordStageDuration("retrieval", time.Since(t0).Seconds())
		span.SetAttributes(attribute.Int("analysis.retrieved", len(hits)))

		system := llm.BuildSystemPrompt()
		user := llm.BuildUserPrompt(facts, hits)

		// Each goroutine records into its own variable; the shared timings
		// map is only written after Wait.
		var (
			generative []datatypes.Flag
			ruleFlags  []datatypes.Flag
			rulesMs    float64
			llmMs      float64
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			t := time.Now()
			ruleFlags = evaluateRules(deps, hits, snap, facts)
			rulesMs = msSince(t)
			observability.RecordStageDuration("rules", time.Since(t).Seconds())
			return nil
		})
		g.Go(func() error {
			t := time.Now()
			generative = generateFlags(gctx, deps, system, user)
			llmMs = msSince(t)
			observability.RecordStageDuration("llm", time.Since(t).Seconds())
			return nil
		})
		_ = g.Wait()
		timings["rules"] = rulesMs
		timings["llm"] = llmMs

		// Reconcile
		t1 := time.Now()
		result := reconcile.Reconcile(generative, ruleFlags, hits, snap, facts)
		timings["reconcile"] = msSince(t1)
		observability.RecordStageDuration("reconcile", time.Since(t1).Seconds())

		recordOutcome(result)

		flags := result.Flags
		if flags == nil {
			flags = []datatypes.Flag{}
		}
		c.JSON(http.StatusOK, datatypes.AnalysisResponse{
			AnalysisID:    uuid.NewString(),
			Flags:         flags,
			CorpusVersion: snap.Version,
			Debug: datatypes.AnalysisDebug{
				Retrieved: hits,
				Prompt:    fmt.Sprintf("system:\n%s\n\nuser:\n%s", system, user),
				TimingsMs: timings,
			},
		})
	}
}

// evaluateRules runs the deterministic engine and enriches each fired flag
// with clause metadata from the same snapshot the prompt was built from.
func evaluateRules(deps *Deps, hits []corpus.SearchHit, snap *corpus.Snapshot, facts datatypes.ProjectFacts) []datatypes.Flag {
	fired := deps.RuleEngine.EvaluateAll(facts.Map())
	out := make([]datatypes.Flag, 0, len(fired))
	for _, f := range fired {
		out = append(out, reconcile.EnrichRuleFlag(f, hits, snap))
	}
	return out
}

// generateFlags runs the two-attempt generation loop. A nil generator
// (generation disabled) and any inference failure both yield an empty set.
func generateFlags(ctx context.Context, deps *Deps, system, user string) []datatypes.Flag {
	if deps.FlagGen == nil {
		return nil
	}
	result, err := deps.FlagGen.GenerateFlags(ctx, system, user, llm.DefaultSchemaHint())
	status := "success"
	if err != nil {
		status = "error"
		slog.Error("Inference call failed, continuing with rules only", "error", err)
	}
	if observability.DefaultMetrics != nil {
		observability.DefaultMetrics.InferenceAttemptsTotal.
			WithLabelValues(status, strconv.Itoa(result.Attempts)).Inc()
	}
	return result.Flags
}

func recordOutcome(result reconcile.Result) {
	if observability.DefaultMetrics == nil {
		return
	}
	if result.Dropped > 0 {
		observability.DefaultMetrics.DroppedFlagsTotal.Add(float64(result.Dropped))
	}

	outcome := "empty"
	switch {
	case result.Synthesized:
		outcome = "synthesized"
	case len(result.Flags) > 0:
		outcome = "flags"
	}
	observability.DefaultMetrics.AnalysesTotal.WithLabelValues(outcome).Inc()

	for _, f := range result.Flags {
		source := "generative"
		if result.Synthesized {
			source = "synthesized"
		} else if s, _ := f.Meta["source"].(string); s != "" {
			source = s
		}
		observability.RecordFlag(string(f.Severity), source)
	}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
