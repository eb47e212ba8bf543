// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package corpus

import (
	"sort"
	"strings"
)

const snippetLength = 180

// Retrieve returns up to topK clauses relevant to the query, spread across
// frameworks instead of dominated by the largest one.
//
// # Description
//
// Candidates are ranked by TF-IDF cosine similarity (ties broken by corpus
// order), partitioned into per-framework buckets, capped at
// max(1, topK/len(frameworks)) each, and interleaved round-robin in sorted
// framework order. If that first pass comes up short of topK, the remaining
// candidates backfill by raw score regardless of framework. This guarantees
// that a framework with any matching clause is represented even when another
// framework has far more candidates.
//
// # Inputs
//
//   - query: free text to match against clause label+text.
//   - topK: maximum hits to return.
//   - frameworks: optional allow-list; matched case-insensitively. Nil or
//     empty means all frameworks.
//
// # Outputs
//
//   - []SearchHit: at most topK hits. Empty (never nil error) when the
//     snapshot is empty or no candidate survives the allow-list.
func (s *Snapshot) Retrieve(query string, topK int, frameworks []string) []SearchHit {
	if s.Empty() || topK <= 0 {
		return []SearchHit{}
	}

	scores := s.index.similarities(query)

	var allow map[string]bool
	if len(frameworks) > 0 {
		allow = make(map[string]bool, len(frameworks))
		for _, fw := range frameworks {
			allow[strings.ToUpper(fw)] = true
		}
	}

	type candidate struct {
		idx   int
		score float64
	}
	candidates := make([]candidate, 0, len(s.Clauses))
	for i := range s.Clauses {
		fw := strings.ToUpper(s.Clauses[i].Framework)
		if allow != nil && !allow[fw] {
			continue
		}
		candidates = append(candidates, candidate{idx: i, score: scores[i]})
	}

	// Stable keeps corpus order for equal scores.
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})

	buckets := make(map[string][]SearchHit)
	for _, cand := range candidates {
		c := s.Clauses[cand.idx]
		fw := strings.ToUpper(c.Framework)
		if fw == "" {
			fw = "UNK"
		}
		buckets[fw] = append(buckets[fw], SearchHit{
			ClauseID: c.ID,
			Score:    cand.score,
			Snippet:  snippet(c.Text),
			Clause:   c,
		})
	}

	fws := make([]string, 0, len(buckets))
	for fw := range buckets {
		fws = append(fws, fw)
	}
	sort.Strings(fws)
	if len(fws) == 0 {
		return []SearchHit{}
	}

	perFramework := topK / len(fws)
	if perFramework < 1 {
		perFramework = 1
	}

	capped := make(map[string][]SearchHit, len(buckets))
	for fw, hits := range buckets {
		n := perFramework
		if n > len(hits) {
			n = len(hits)
		}
		capped[fw] = append([]SearchHit(nil), hits[:n]...)
	}

	out := make([]SearchHit, 0, topK)
	for len(out) < topK {
		advanced := false
		for _, fw := range fws {
			if len(capped[fw]) == 0 {
				continue
			}
			out = append(out, capped[fw][0])
			capped[fw] = capped[fw][1:]
			advanced = true
			if len(out) >= topK {
				break
			}
		}
		if !advanced {
			break
		}
	}

	if len(out) < topK {
		var remaining []SearchHit
		for _, fw := range fws {
			if len(buckets[fw]) > perFramework {
				remaining = append(remaining, buckets[fw][perFramework:]...)
			}
		}
		sort.SliceStable(remaining, func(a, b int) bool {
			return remaining[a].Score > remaining[b].Score
		})
		if need := topK - len(out); need < len(remaining) {
			remaining = remaining[:need]
		}
		out = append(out, remaining...)
	}

	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) > snippetLength {
		return string(runes[:snippetLength]) + "…"
	}
	return text
}
