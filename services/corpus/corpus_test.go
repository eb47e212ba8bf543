// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package corpus

import (
	"os"
	"path/filepath"
	"testing"
)

const testCorpusJSON = `[
  {"id": "DSIT-1", "label": "Transparency", "framework": "DSIT",
   "text": "Systems must provide explainability and transparency to end users."},
  {"id": "ICO-1", "label": "Lawful Basis", "framework": "ICO",
   "text": "Personal data processing requires a documented lawful basis and consent records."},
  {"id": "ISO-1", "label": "Monitoring", "framework": "ISO",
   "text": "Deployed models require drift monitoring and incident response procedures."}
]`

func TestBuildSnapshot(t *testing.T) {
	snap, err := BuildSnapshot([]byte(testCorpusJSON))
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}
	if len(snap.Clauses) != 3 {
		t.Fatalf("Expected 3 clauses, got %d", len(snap.Clauses))
	}
	if len(snap.Version) != 12 {
		t.Errorf("Expected 12-char version hash, got %q", snap.Version)
	}

	// Same bytes must produce the same version.
	again, err := BuildSnapshot([]byte(testCorpusJSON))
	if err != nil {
		t.Fatalf("Second BuildSnapshot failed: %v", err)
	}
	if again.Version != snap.Version {
		t.Errorf("Version not stable across identical loads: %q vs %q", snap.Version, again.Version)
	}

	// Phases are inferred when absent.
	for _, c := range snap.Clauses {
		if c.Phase == "" {
			t.Errorf("Clause %s has no phase after load", c.ID)
		}
	}
}

func TestBuildSnapshotRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace", "   \n  "},
		{"not json", "hello world"},
		{"object not array", `{"id": "x"}`},
		{"empty array", `[]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := BuildSnapshot([]byte(tc.raw)); err == nil {
				t.Errorf("Expected error for %q input", tc.name)
			}
		})
	}
}

func TestSnapshotLookup(t *testing.T) {
	snap, err := BuildSnapshot([]byte(testCorpusJSON))
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}

	tests := []struct {
		name   string
		key    string
		wantID string
		found  bool
	}{
		{"by id", "DSIT-1", "DSIT-1", true},
		{"by id case-insensitive", "dsit-1", "DSIT-1", true},
		{"by label", "Lawful Basis", "ICO-1", true},
		{"by label case-insensitive", "lawful basis", "ICO-1", true},
		{"with whitespace", "  ISO-1  ", "ISO-1", true},
		{"unknown", "no-such-clause", "", false},
		{"empty", "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, ok := snap.Lookup(tc.key)
			if ok != tc.found {
				t.Fatalf("Lookup(%q) found=%v, want %v", tc.key, ok, tc.found)
			}
			if ok && c.ID != tc.wantID {
				t.Errorf("Lookup(%q) = %q, want %q", tc.key, c.ID, tc.wantID)
			}
		})
	}
}

func TestStoreReloadSwapsAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.json")
	if err := os.WriteFile(path, []byte(testCorpusJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path)
	first := store.Current()
	if len(first.Clauses) != 3 {
		t.Fatalf("Initial load: expected 3 clauses, got %d", len(first.Clauses))
	}

	// Overwrite with a smaller corpus and reload.
	smaller := `[{"id": "DSIT-1", "label": "Transparency", "framework": "DSIT", "text": "Short."}]`
	if err := os.WriteFile(path, []byte(smaller), 0o644); err != nil {
		t.Fatal(err)
	}
	next := store.Reload()
	if len(next.Clauses) != 1 {
		t.Fatalf("After reload: expected 1 clause, got %d", len(next.Clauses))
	}
	if next.Version == first.Version {
		t.Error("Version unchanged after content change")
	}

	// The old snapshot pointer must be untouched.
	if len(first.Clauses) != 3 {
		t.Error("Old snapshot mutated by reload")
	}
}

func TestStoreDegradesToEmptyOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.json")
	if err := os.WriteFile(path, []byte(testCorpusJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path)
	if store.Current().Empty() {
		t.Fatal("Expected non-empty snapshot after initial load")
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	snap := store.Reload()
	if !snap.Empty() {
		t.Error("Expected empty snapshot when source file is gone")
	}
	if hits := snap.Retrieve("anything", 5, nil); len(hits) != 0 {
		t.Errorf("Empty snapshot returned %d hits", len(hits))
	}
}

func TestStoreUsesEmbeddedDefaultWithoutPath(t *testing.T) {
	store := NewStore("")
	snap := store.Current()
	if snap.Empty() {
		t.Fatal("Embedded default corpus failed to load")
	}
	// The synthesis battery depends on these ids existing in the default
	// corpus.
	for _, id := range []string{
		"ISO 42001 §8.2 Data-Management",
		"DSIT §3.2.3 Transparency",
		"ICO-Audit Pre-Deployment-Testing",
		"ISO 42001 AnnexA A.6.5 Robustness-Accuracy",
	} {
		if _, ok := snap.Lookup(id); !ok {
			t.Errorf("Default corpus missing clause %q", id)
		}
	}
}
