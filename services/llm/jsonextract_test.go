// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"testing"
)

func TestExtractJSONValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"clean object", `{"flags": []}`, true},
		{"clean array", `[{"id": "a"}]`, true},
		{"fenced block", "Here you go:\n```json\n{\"flags\": []}\n```\nDone.", true},
		{"fenced without language tag", "```\n{\"flags\": []}\n```", true},
		{"array span in prose", `The result is [{"id": "a"}] as requested.`, true},
		{"object span in prose", `Sure! {"flags": [{"id": "a"}]} Hope that helps.`, true},
		{"trailing comma repaired", `{"flags": [{"id": "a"},]}`, true},
		{"leading whitespace", "\n\n  {\"flags\": []}", true},
		{"empty", "", false},
		{"pure prose", "I could not find any issues with this project.", false},
		{"unclosed brace", `{"flags": [`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, ok := ExtractJSONValue(tc.raw)
			if ok != tc.ok {
				t.Fatalf("ExtractJSONValue ok=%v, want %v (value=%v)", ok, tc.ok, v)
			}
			if ok && v == nil {
				t.Error("ok but nil value")
			}
		})
	}
}

func TestExtractJSONValuePrefersDirectParse(t *testing.T) {
	// A whole-string parse must win over span extraction.
	v, ok := ExtractJSONValue(`{"a": "[not json inside]"}`)
	if !ok {
		t.Fatal("Expected parse")
	}
	m, ok := v.(map[string]any)
	if !ok || m["a"] != "[not json inside]" {
		t.Errorf("Direct parse lost: %v", v)
	}
}

func TestFlagObjects(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want int
	}{
		{"bare list", []any{map[string]any{"id": "a"}, map[string]any{"id": "b"}}, 2},
		{"flags container", map[string]any{"flags": []any{map[string]any{"id": "a"}}}, 1},
		{"single object", map[string]any{"id": "a"}, 1},
		{"non-object entries dropped", []any{"junk", 42, map[string]any{"id": "a"}}, 1},
		{"nil", nil, 0},
		{"scalar", "hello", 0},
		{"flags key not a list", map[string]any{"flags": "oops"}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := flagObjects(tc.v)
			if len(got) != tc.want {
				t.Errorf("flagObjects returned %d items, want %d", len(got), tc.want)
			}
		})
	}
}
