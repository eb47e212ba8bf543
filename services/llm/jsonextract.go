// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingCommaRe   = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSONValue pulls the first parseable JSON value out of raw model
// output. Models wrap payloads in prose, markdown fences, or emit trailing
// commas, so the strategies run in order of strictness:
//
//  1. parse the whole string as-is
//  2. parse the contents of the first fenced code block
//  3. parse the widest [...] span
//  4. parse the widest {...} span
//
// Each candidate is retried after stripping trailing commas. Returns the
// decoded value and true on success.
func ExtractJSONValue(raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	for _, candidate := range jsonCandidates(raw) {
		if v, ok := tryParse(candidate); ok {
			return v, true
		}
	}
	return nil, false
}

func jsonCandidates(raw string) []string {
	candidates := []string{raw}
	if m := fencedJSONPattern.FindStringSubmatch(raw); len(m) == 2 {
		candidates = append(candidates, m[1])
	}
	if span := widestSpan(raw, '[', ']'); span != "" {
		candidates = append(candidates, span)
	}
	if span := widestSpan(raw, '{', '}'); span != "" {
		candidates = append(candidates, span)
	}
	return candidates
}

func widestSpan(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func tryParse(candidate string) (any, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(candidate), &v); err == nil {
		return v, true
	}
	cleaned := trailingCommaRe.ReplaceAllString(candidate, "$1")
	if cleaned != candidate {
		if err := json.Unmarshal([]byte(cleaned), &v); err == nil {
			return v, true
		}
	}
	return nil, false
}

// flagObjects normalizes an extracted JSON value into a list of flag-shaped
// maps. A bare object is treated as a single-element list; an object with a
// "flags" key unwraps that key first. Non-object list entries are dropped.
func flagObjects(v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		if inner, ok := t["flags"]; ok {
			return flagObjects(inner)
		}
		return []map[string]any{t}
	default:
		return nil
	}
}
