// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package corpus

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// buildTestSnapshot makes a snapshot with nA clauses in framework A and nB
// in framework B, all containing the shared term so every clause scores
// against the query.
func buildTestSnapshot(t *testing.T, nA, nB int) *Snapshot {
	t.Helper()
	var clauses []Clause
	for i := 0; i < nA; i++ {
		clauses = append(clauses, Clause{
			ID:        fmt.Sprintf("A-%02d", i),
			Label:     fmt.Sprintf("Alpha clause %d", i),
			Framework: "A",
			Text:      fmt.Sprintf("governance requirement number %d about monitoring systems", i),
		})
	}
	for i := 0; i < nB; i++ {
		clauses = append(clauses, Clause{
			ID:        fmt.Sprintf("B-%02d", i),
			Label:     fmt.Sprintf("Beta clause %d", i),
			Framework: "B",
			Text:      fmt.Sprintf("governance requirement number %d about monitoring systems", i),
		})
	}
	raw, err := json.Marshal(clauses)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := BuildSnapshot(raw)
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}
	return snap
}

func TestRetrieveDiversification(t *testing.T) {
	// 50 clauses in A, 2 in B. Without diversification, B would never
	// appear in a top-10.
	snap := buildTestSnapshot(t, 50, 2)

	hits := snap.Retrieve("governance monitoring", 10, nil)
	if len(hits) != 10 {
		t.Fatalf("Expected 10 hits, got %d", len(hits))
	}

	var fromB int
	for _, h := range hits {
		if h.Clause.Framework == "B" {
			fromB++
		}
	}
	if fromB != 2 {
		t.Errorf("Expected both B clauses in the top 10, got %d", fromB)
	}
}

func TestRetrieveDeterministic(t *testing.T) {
	snap := buildTestSnapshot(t, 12, 5)

	first := snap.Retrieve("governance monitoring", 8, nil)
	for i := 0; i < 5; i++ {
		again := snap.Retrieve("governance monitoring", 8, nil)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Retrieval not deterministic on run %d", i)
		}
	}
}

func TestRetrieveFrameworkFilter(t *testing.T) {
	snap := buildTestSnapshot(t, 5, 5)

	hits := snap.Retrieve("governance", 10, []string{"b"})
	if len(hits) == 0 {
		t.Fatal("Expected hits for framework filter")
	}
	for _, h := range hits {
		if h.Clause.Framework != "B" {
			t.Errorf("Filter leaked framework %q", h.Clause.Framework)
		}
	}

	none := snap.Retrieve("governance", 10, []string{"ZZZ"})
	if len(none) != 0 {
		t.Errorf("Expected no hits for unknown framework, got %d", len(none))
	}
}

func TestRetrieveRespectsTopK(t *testing.T) {
	snap := buildTestSnapshot(t, 20, 0)

	for _, k := range []int{1, 3, 7, 20, 100} {
		hits := snap.Retrieve("governance", k, nil)
		max := k
		if max > 20 {
			max = 20
		}
		if len(hits) > max {
			t.Errorf("topK=%d returned %d hits", k, len(hits))
		}
	}

	if hits := snap.Retrieve("governance", 0, nil); len(hits) != 0 {
		t.Errorf("topK=0 returned %d hits", len(hits))
	}
}

func TestRetrieveEmptySnapshot(t *testing.T) {
	var snap Snapshot
	hits := snap.Retrieve("anything", 10, nil)
	if len(hits) != 0 {
		t.Errorf("Empty snapshot returned %d hits", len(hits))
	}
}

func TestSnippetTruncation(t *testing.T) {
	long := strings.Repeat("word ", 100)
	s := snippet(long)
	if len([]rune(s)) != snippetLength+1 {
		t.Errorf("Expected %d runes plus ellipsis, got %d", snippetLength, len([]rune(s)))
	}
	if !strings.HasSuffix(s, "…") {
		t.Error("Truncated snippet missing ellipsis")
	}

	short := "short text"
	if snippet(short) != short {
		t.Error("Short text should pass through unchanged")
	}

	// Multibyte text must not be split mid-rune.
	multibyte := strings.Repeat("§", 200)
	ms := snippet(multibyte)
	if !strings.HasPrefix(ms, "§") || !strings.HasSuffix(ms, "…") {
		t.Error("Multibyte snippet corrupted")
	}
}

func TestInferPhase(t *testing.T) {
	tests := []struct {
		name   string
		clause Clause
		want   string
	}{
		{"data keyword", Clause{Text: "Retention of personal data"}, PhaseData},
		{"model keyword", Clause{Text: "Fairness and bias testing"}, PhaseModel},
		{"deployment keyword", Clause{Text: "Incident response and drift"}, PhaseDeployment},
		{"data wins over model", Clause{Text: "data fairness"}, PhaseData},
		{"ico fallback", Clause{Framework: "ICO", Text: "nothing matching here"}, PhaseData},
		{"dsit fallback", Clause{Framework: "DSIT", Text: "nothing matching here"}, PhaseModel},
		{"default fallback", Clause{Framework: "ISO", Text: "nothing matching here"}, PhaseDeployment},
		{"label counts", Clause{Label: "Model card documentation"}, PhaseModel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := InferPhase(tc.clause); got != tc.want {
				t.Errorf("InferPhase = %q, want %q", got, tc.want)
			}
		})
	}
}
