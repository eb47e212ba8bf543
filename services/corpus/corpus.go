// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package corpus loads the versioned policy clause corpus and answers
// relevance queries against it.
//
// # Description
//
// The corpus is an ordered collection of normative policy clauses (DSIT,
// ICO, ISO/IEC 42001). On load the package builds a TF-IDF vector space over
// the clauses and exposes diversified nearest-neighbour retrieval. The loaded
// corpus plus its index form an immutable Snapshot; a Store holds the current
// Snapshot behind an atomic pointer so that a reload swaps the whole object
// graph at once and concurrent readers never observe a half-built index.
//
// # Failure Policy
//
// A missing, empty, or unparseable corpus source degrades to an empty
// Snapshot with a logged warning. Retrieval against an empty Snapshot
// returns no hits and no error; absence of candidates is not a failure.
package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Phase buckets a clause into the lifecycle stage it governs.
const (
	PhaseData       = "data"
	PhaseModel      = "model"
	PhaseDeployment = "deployment"
)

// Clause is one normative statement from a policy document.
//
// Clauses are immutable after load. Id is stable across corpus versions and
// is the only value a Flag may reference.
type Clause struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Text      string `json:"text"`
	Link      string `json:"link,omitempty"`
	Category  string `json:"category,omitempty"`
	Document  string `json:"document,omitempty"`
	Framework string `json:"framework,omitempty"`
	Phase     string `json:"phase,omitempty"`
}

// SearchHit is one retrieval result: a clause, its cosine relevance score,
// and a short snippet of the clause text. Hits are ephemeral, one batch per
// analysis request.
type SearchHit struct {
	ClauseID string  `json:"clause_id"`
	Score    float64 `json:"score"`
	Snippet  string  `json:"snippet,omitempty"`
	Clause   Clause  `json:"clause"`
}

// Snapshot is one immutable, versioned view of the corpus: the clause set,
// the TF-IDF index built over it, and a content hash of the raw source.
type Snapshot struct {
	Clauses []Clause
	Version string

	index *tfidfIndex
}

// Empty reports whether the snapshot carries no clauses (retrieval disabled).
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Clauses) == 0 || s.index == nil
}

// Lookup finds a clause by id or label, case-insensitively. The second
// return value reports whether a clause was found.
func (s *Snapshot) Lookup(idOrLabel string) (Clause, bool) {
	key := strings.ToLower(strings.TrimSpace(idOrLabel))
	if key == "" || s == nil {
		return Clause{}, false
	}
	for _, c := range s.Clauses {
		if strings.ToLower(strings.TrimSpace(c.ID)) == key ||
			strings.ToLower(strings.TrimSpace(c.Label)) == key {
			return c, true
		}
	}
	return Clause{}, false
}

// BuildSnapshot parses a raw corpus document (a JSON array of clauses) and
// builds the TF-IDF index over it.
//
// # Inputs
//
//   - raw: the corpus source bytes. The version hash is computed over these
//     exact bytes, so loading an identical snapshot yields an identical
//     version string.
//
// # Outputs
//
//   - *Snapshot: ready for retrieval. Never nil on success.
//   - error: non-nil if the source is empty or not a JSON clause array.
func BuildSnapshot(raw []byte) (*Snapshot, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("corpus source is empty")
	}

	var clauses []Clause
	if err := json.Unmarshal([]byte(trimmed), &clauses); err != nil {
		return nil, fmt.Errorf("failed to parse corpus JSON: %w", err)
	}
	if len(clauses) == 0 {
		return nil, fmt.Errorf("corpus parsed but has no rows")
	}

	for i := range clauses {
		if clauses[i].Phase == "" {
			clauses[i].Phase = InferPhase(clauses[i])
		}
	}

	sum := sha256.Sum256([]byte(trimmed))
	version := hex.EncodeToString(sum[:])[:12]

	docs := make([]string, len(clauses))
	for i, c := range clauses {
		docs[i] = c.Label + ". " + c.Text
	}

	return &Snapshot{
		Clauses: clauses,
		Version: version,
		index:   buildTFIDFIndex(docs),
	}, nil
}

// emptySnapshot is what the store falls back to when the source is unusable.
func emptySnapshot() *Snapshot {
	return &Snapshot{}
}

// Store holds the current corpus Snapshot and swaps it atomically on reload.
//
// # Thread Safety
//
// Safe for concurrent use. Readers call Current() once per request and keep
// the returned pointer for the request's duration; Reload installs a fully
// built replacement with a single pointer swap.
type Store struct {
	path    string
	current atomic.Pointer[Snapshot]
}

// NewStore creates a Store reading from path and performs the initial load.
//
// If path is empty the embedded default corpus is used. Load failures are
// not fatal: the store starts with an empty snapshot and a warning is
// logged, matching the degrade-to-empty policy for corpus failures.
func NewStore(path string) *Store {
	s := &Store{path: path}
	s.current.Store(emptySnapshot())
	s.Reload()
	return s
}

// Current returns the snapshot readers should use for one whole request.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Reload rebuilds the snapshot from the configured source and swaps it in.
//
// # Outputs
//
//   - *Snapshot: the snapshot now being served (the new one on success, an
//     empty one if the source was unusable).
//
// On any load failure the store serves an empty snapshot rather than the
// stale one, mirroring the source of record: a corpus that disappeared or
// became unreadable disables retrieval until fixed.
func (s *Store) Reload() *Snapshot {
	raw, err := s.readSource()
	if err != nil {
		slog.Warn("Corpus source unavailable, retrieval disabled", "path", s.path, "error", err)
		next := emptySnapshot()
		s.current.Store(next)
		return next
	}

	next, err := BuildSnapshot(raw)
	if err != nil {
		slog.Warn("Failed to build corpus snapshot, retrieval disabled", "path", s.path, "error", err)
		next = emptySnapshot()
		s.current.Store(next)
		return next
	}

	s.current.Store(next)
	slog.Info("Loaded policy corpus", "clauses", len(next.Clauses), "version", next.Version)
	return next
}

func (s *Store) readSource() ([]byte, error) {
	if s.path == "" {
		return DefaultCorpus, nil
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}
	return raw, nil
}
