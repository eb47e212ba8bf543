// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package reconcile merges generative and rule-engine flags into the final
// flag list of an analysis.
//
// # Description
//
// The reconciler is the trust boundary between the probabilistic half of the
// pipeline and the response: every generative flag must reference a clause
// that was actually retrieved for the request, or it is dropped. Surviving
// flags are enriched with clause metadata (label, link, framework, document,
// phase), merged generative-first with the deterministic rule flags, and —
// when nothing fired at all — replaced by a battery of synthesized green
// checks so a clean project still produces a positive compliance signal.
//
// # Limitations
//
// Enrichment by reason similarity considers only the top 8 retrieved hits;
// beyond that the relevance scores are too weak to justify an attribution.
package reconcile

import (
	"log/slog"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/aiimpact/governor/services/analysis/datatypes"
	"github.com/aiimpact/governor/services/corpus"
)

// Result is the outcome of one reconciliation pass.
type Result struct {
	Flags []datatypes.Flag

	// Dropped counts generative flags discarded for referencing a clause
	// outside the retrieved set.
	Dropped int

	// Synthesized reports whether the green-check battery produced the
	// final flag list.
	Synthesized bool
}

// Reconcile merges the two flag sources against the retrieved hit set.
//
// # Inputs
//
//   - generative: flags from the inference service, already normalized.
//   - ruleFlags: flags from the deterministic rule engine.
//   - hits: the exact hit set retrieved for this request. The clause-id
//     allow-list is derived from it.
//   - snap: the corpus snapshot the hits came from, used for metadata lookup.
//   - facts: the project facts, consulted only by green synthesis.
//
// # Outputs
//
//   - Result: final flags in generative-then-rule order, plus audit counts.
func Reconcile(generative, ruleFlags []datatypes.Flag, hits []corpus.SearchHit, snap *corpus.Snapshot, facts datatypes.ProjectFacts) Result {
	validIDs := make(map[string]bool, len(hits))
	for _, h := range hits {
		id := strings.ToLower(strings.TrimSpace(h.Clause.ID))
		if id != "" {
			validIDs[id] = true
		}
	}

	var res Result
	for _, f := range generative {
		clauseID := strings.TrimSpace(f.Clause)
		if clauseID == "" {
			clauseID = strings.TrimSpace(f.ID)
		}

		enrich := lookupClauseMeta(clauseID, hits, snap)
		if enrich == nil {
			enrich = bestHitForReason(hits, f.Reason)
		}
		f.Meta = mergeMeta(f.Meta, enrich)

		// A flag with no clause id can still be saved when enrichment
		// resolved a label that maps back to a retrieved clause.
		if clauseID == "" && enrich != nil {
			if label, _ := enrich["label"].(string); label != "" {
				for _, h := range hits {
					if strings.EqualFold(strings.TrimSpace(h.Clause.Label), strings.TrimSpace(label)) {
						f.Clause = h.Clause.ID
						clauseID = h.Clause.ID
						break
					}
				}
			}
		}

		if !validIDs[strings.ToLower(clauseID)] {
			slog.Info("Dropping generative flag with out-of-scope clause", "clause", f.Clause)
			res.Dropped++
			continue
		}
		res.Flags = append(res.Flags, f)
	}

	res.Flags = append(res.Flags, ruleFlags...)

	if len(res.Flags) == 0 {
		res.Flags = SynthesizeGreenFlags(facts, hits)
		res.Synthesized = len(res.Flags) > 0
	}
	return res
}

// EnrichRuleFlag attaches clause metadata to a rule-engine flag. Rule flags
// bypass the allow-list: their clause references are authored, not generated.
func EnrichRuleFlag(f datatypes.Flag, hits []corpus.SearchHit, snap *corpus.Snapshot) datatypes.Flag {
	meta := lookupClauseMeta(f.Clause, hits, snap)
	f.Meta = mergeMeta(f.Meta, meta)
	if f.Meta == nil {
		f.Meta = map[string]any{}
	}
	f.Meta["source"] = "legacy-rule"
	if strings.TrimSpace(f.Clause) == "" {
		if label, _ := f.Meta["label"].(string); label != "" {
			f.Clause = label
		} else {
			f.Clause = "unknown"
		}
	}
	return f
}

// lookupClauseMeta resolves clause metadata by exact id or label match over
// the whole snapshot, falling back to the top retrieved hit when the id is
// empty or unknown. Returns nil when neither source can answer.
func lookupClauseMeta(clauseID string, hits []corpus.SearchHit, snap *corpus.Snapshot) map[string]any {
	cid := strings.TrimSpace(clauseID)
	if cid != "" && snap != nil {
		if c, ok := snap.Lookup(cid); ok {
			return clauseMeta(c, "")
		}
	}
	if len(hits) > 0 {
		return clauseMeta(hits[0].Clause, "retrieval")
	}
	return nil
}

// bestHitForReason scores the top retrieved hits against the flag's reason
// text and returns the metadata of the best match. The blend weights the
// retrieval score over the lexical similarity because the hit score already
// reflects the full query, while the reason is a single sentence.
func bestHitForReason(hits []corpus.SearchHit, reason string) map[string]any {
	if len(hits) == 0 {
		return nil
	}
	reasonLower := strings.ToLower(reason)

	limit := len(hits)
	if limit > 8 {
		limit = 8
	}
	var best *corpus.Clause
	bestScore := -1.0
	for i := 0; i < limit; i++ {
		h := hits[i]
		m := difflib.NewMatcher(chars(reasonLower), chars(strings.ToLower(h.Clause.Text)))
		score := 0.7*h.Score + 0.3*m.Ratio()
		if score > bestScore {
			bestScore = score
			c := h.Clause
			best = &c
		}
	}
	if best == nil {
		c := hits[0].Clause
		best = &c
	}
	return clauseMeta(*best, "reason-best-hit")
}

// chars explodes a string into per-rune elements so the matcher computes a
// character-level similarity ratio rather than a line-level one.
func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func clauseMeta(c corpus.Clause, matchedBy string) map[string]any {
	phase := c.Phase
	if phase == "" {
		phase = corpus.InferPhase(c)
	}
	meta := map[string]any{
		"label":     c.Label,
		"link":      c.Link,
		"framework": c.Framework,
		"document":  c.Document,
		"phase":     phase,
	}
	if matchedBy != "" {
		meta["matched_by"] = matchedBy
	}
	return meta
}

// mergeMeta overlays enrichment onto the flag's own meta; enrichment wins on
// key collisions so clause attribution cannot be spoofed by model output.
func mergeMeta(own, enrich map[string]any) map[string]any {
	if own == nil && enrich == nil {
		return nil
	}
	merged := make(map[string]any, len(own)+len(enrich))
	for k, v := range own {
		merged[k] = v
	}
	for k, v := range enrich {
		merged[k] = v
	}
	return merged
}
