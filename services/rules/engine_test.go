// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aiimpact/governor/services/analysis/datatypes"
)

func TestStrictBooleanGate(t *testing.T) {
	engine := &Engine{}
	rule := Rule{
		ID: "cards", Severity: "amber",
		Trigger: map[string]any{"model_cards_published": false},
	}

	tests := []struct {
		name  string
		facts map[string]any
		fires bool
	}{
		{"explicit false fires", map[string]any{"model_cards_published": false}, true},
		{"explicit true does not fire", map[string]any{"model_cards_published": true}, false},
		{"absent never fires", map[string]any{}, false},
		{"null never fires", map[string]any{"model_cards_published": nil}, false},
		{"wrong type never fires", map[string]any{"model_cards_published": "false"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.Evaluate(rule, tc.facts); got != tc.fires {
				t.Errorf("Evaluate = %v, want %v", got, tc.fires)
			}
		})
	}
}

func TestGatedConditionDisarmedByFalse(t *testing.T) {
	engine := &Engine{}

	// A falsy trigger value imposes no constraint; the other condition
	// decides alone.
	rule := Rule{
		ID: "gated",
		Trigger: map[string]any{
			"title_missing":         false,
			"special_category_data": true,
		},
	}
	facts := map[string]any{
		"title":                 "Present",
		"special_category_data": true,
	}
	if !engine.Evaluate(rule, facts) {
		t.Error("Disarmed condition should not block the rule")
	}
}

func TestAllDisarmedTriggerNeverFires(t *testing.T) {
	engine := &Engine{}

	// Every gated key set falsy: nothing constrains the facts, so the rule
	// must not fire no matter what the project looks like.
	rule := Rule{
		ID: "all-disarmed",
		Trigger: map[string]any{
			"title_missing":         false,
			"special_category_data": false,
		},
	}
	for name, facts := range map[string]map[string]any{
		"populated": {"title": "Present", "special_category_data": false},
		"empty":     {},
	} {
		if engine.Evaluate(rule, facts) {
			t.Errorf("All-disarmed trigger fired on %s facts", name)
		}
	}

	// Arming one gate restores normal behavior.
	armed := Rule{
		ID: "one-armed",
		Trigger: map[string]any{
			"title_missing":         true,
			"special_category_data": false,
		},
	}
	if !engine.Evaluate(armed, map[string]any{"title": ""}) {
		t.Error("Armed gate should fire on a missing title")
	}
}

func TestDescriptionLengthCountsRunes(t *testing.T) {
	engine := &Engine{}
	rule := Rule{ID: "short-desc", Trigger: map[string]any{"description_min_length": 10}}

	// Ten two-byte runes: 20 bytes but exactly 10 characters, so the
	// minimum is met and the rule must not fire.
	tenRunes := strings.Repeat("é", 10)
	if engine.Evaluate(rule, map[string]any{"description": tenRunes}) {
		t.Error("Ten-rune description fired a min-length-10 rule")
	}
	if !engine.Evaluate(rule, map[string]any{"description": strings.Repeat("é", 9)}) {
		t.Error("Nine-rune description should fire a min-length-10 rule")
	}
}

func TestTriggerIsConjunction(t *testing.T) {
	engine := &Engine{}
	rule := Rule{
		ID: "personal-no-privacy",
		Trigger: map[string]any{
			"processes_personal_data": true,
			"privacy_techniques":      []any{},
		},
	}

	tests := []struct {
		name  string
		facts map[string]any
		fires bool
	}{
		{
			"both satisfied",
			map[string]any{"processes_personal_data": true, "privacy_techniques": []any{}},
			true,
		},
		{
			"techniques present blocks",
			map[string]any{"processes_personal_data": true, "privacy_techniques": []any{"pseudonymisation"}},
			false,
		},
		{
			"techniques of None still fires",
			map[string]any{"processes_personal_data": true, "privacy_techniques": []any{"none"}},
			true,
		},
		{
			"no personal data blocks",
			map[string]any{"privacy_techniques": []any{}},
			false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.Evaluate(rule, tc.facts); got != tc.fires {
				t.Errorf("Evaluate = %v, want %v", got, tc.fires)
			}
		})
	}
}

func TestDescriptionMinLength(t *testing.T) {
	engine := &Engine{}
	rule := Rule{ID: "short-desc", Trigger: map[string]any{"description_min_length": 80}}

	short := map[string]any{"description": "Too short."}
	long := map[string]any{
		"description": "This description is comfortably longer than the eighty character minimum that the transparency rule requires of every submitted project.",
	}
	if !engine.Evaluate(rule, short) {
		t.Error("Short description should fire")
	}
	if engine.Evaluate(rule, long) {
		t.Error("Long description should not fire")
	}
}

func TestRetrainingCadenceMembership(t *testing.T) {
	engine := &Engine{}
	rule := Rule{
		ID:      "infrequent",
		Trigger: map[string]any{"retraining_cadence": []any{"never", "ad-hoc", "yearly"}},
	}

	if !engine.Evaluate(rule, map[string]any{"retraining_cadence": "never"}) {
		t.Error("Exact member should fire")
	}
	if engine.Evaluate(rule, map[string]any{"retraining_cadence": "monthly"}) {
		t.Error("Non-member should not fire")
	}
	if engine.Evaluate(rule, map[string]any{}) {
		t.Error("Absent cadence should not fire")
	}
}

func TestGenericMatchFallback(t *testing.T) {
	engine := &Engine{}

	tests := []struct {
		name  string
		rule  Rule
		facts map[string]any
		fires bool
	}{
		{
			"unknown string key ci-equal",
			Rule{Trigger: map[string]any{"deployment_env": "Production"}},
			map[string]any{"deployment_env": "production"},
			true,
		},
		{
			"unknown list key intersection",
			Rule{Trigger: map[string]any{"regions": []any{"uk", "eu"}}},
			map[string]any{"regions": []any{"US", "UK"}},
			true,
		},
		{
			"unknown bool key strict",
			Rule{Trigger: map[string]any{"is_prototype": true}},
			map[string]any{},
			false,
		},
		{
			"unknown number key exact",
			Rule{Trigger: map[string]any{"replicas": 3}},
			map[string]any{"replicas": float64(3)},
			true,
		},
		{
			"empty trigger never fires",
			Rule{Trigger: map[string]any{}},
			map[string]any{"anything": true},
			false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.Evaluate(tc.rule, tc.facts); got != tc.fires {
				t.Errorf("Evaluate = %v, want %v", got, tc.fires)
			}
		})
	}
}

func TestEvaluateAllFlagShape(t *testing.T) {
	engine := &Engine{Rules: []Rule{
		{
			ID: "special-category-processing", Clause: "ICO-Audit Special-Category",
			Severity: "RED", Reason: "special category data",
			Mitigation: "document the condition",
			Trigger:    map[string]any{"special_category_data": true},
		},
		{
			ID: "never-fires", Clause: "X", Severity: "amber",
			Trigger: map[string]any{"model_cards_published": false},
		},
	}}

	flags := engine.EvaluateAll(map[string]any{"special_category_data": true})
	if len(flags) != 1 {
		t.Fatalf("Expected 1 flag, got %d", len(flags))
	}
	f := flags[0]
	if f.ID != "special-category-processing" {
		t.Errorf("Wrong rule id: %s", f.ID)
	}
	if f.Severity != datatypes.SeverityRed {
		t.Errorf("Severity not coerced: %s", f.Severity)
	}
	if src, _ := f.Meta["source"].(string); src != "legacy-rule" {
		t.Errorf("Missing legacy-rule source marker, meta=%v", f.Meta)
	}
}

func TestNewEngineDefaultRuleset(t *testing.T) {
	engine := NewEngine("")
	if len(engine.Rules) == 0 {
		t.Fatal("Embedded default ruleset failed to load")
	}
	for _, r := range engine.Rules {
		if r.ID == "" {
			t.Error("Rule with empty id in default ruleset")
		}
		if len(r.Trigger) == 0 {
			t.Errorf("Rule %s has no trigger", r.ID)
		}
		if r.Clause == "" {
			t.Errorf("Rule %s has no clause reference", r.ID)
		}
	}
}

func TestNewEngineDegradesOnBadSource(t *testing.T) {
	missing := NewEngine(filepath.Join(t.TempDir(), "nope.yaml"))
	if len(missing.Rules) != 0 {
		t.Error("Missing file should yield zero rules")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte(": not yaml : ["), 0o644); err != nil {
		t.Fatal(err)
	}
	engine := NewEngine(bad)
	if len(engine.Rules) != 0 {
		t.Error("Unparseable file should yield zero rules")
	}
	// A degraded engine still evaluates cleanly.
	if flags := engine.EvaluateAll(map[string]any{"title": ""}); len(flags) != 0 {
		t.Errorf("Degraded engine produced %d flags", len(flags))
	}
}

func TestDefaultRulesetScenario(t *testing.T) {
	engine := NewEngine("")

	// A minimal project: untitled, thin description, personal data with no
	// privacy techniques.
	facts := map[string]any{
		"title":                   "",
		"description":             "brief",
		"processes_personal_data": true,
		"privacy_techniques":      []any{},
	}
	flags := engine.EvaluateAll(facts)

	fired := make(map[string]bool, len(flags))
	for _, f := range flags {
		fired[f.ID] = true
	}
	for _, want := range []string{"title-missing", "description-too-short", "personal-data-no-privacy-techniques"} {
		if !fired[want] {
			t.Errorf("Expected rule %s to fire, fired=%v", want, fired)
		}
	}
	// Boolean-gated rules must stay quiet on absent fields.
	for _, silent := range []string{"special-category-processing", "model-cards-not-published"} {
		if fired[silent] {
			t.Errorf("Rule %s fired on absent facts", silent)
		}
	}
}
