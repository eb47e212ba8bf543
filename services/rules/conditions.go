// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"strings"
	"unicode/utf8"
)

// conditionFunc evaluates one named trigger condition against the facts.
// satisfied reports whether the condition holds; armed reports whether the
// condition actually constrained anything. A disarmed gate is vacuously
// satisfied but must not fire a rule on its own.
type conditionFunc func(expected any, facts map[string]any) (satisfied, armed bool)

// namedConditions maps each known trigger key to its evaluator. Keys not in
// this registry fall through to the generic typed matcher.
//
// Two styles coexist, inherited from the rule vocabulary:
//
//   - gated conditions (wrapped with gate()) are armed only when the rule
//     sets them to a truthy value; `title_missing: false` imposes no
//     constraint at all;
//   - valued conditions always evaluate their expected value
//     (model_cards_published: false is a real check for an explicit false).
var namedConditions = map[string]conditionFunc{
	"description_min_length": valued(func(expected any, facts map[string]any) bool {
		minLen, ok := asNumber(expected)
		if !ok {
			return false
		}
		return float64(utf8.RuneCountInString(stringField(facts, "description"))) < minLen
	}),

	"title_missing": gate(func(facts map[string]any) bool {
		return strings.TrimSpace(stringField(facts, "title")) == ""
	}),

	"model_type": valued(func(expected any, facts map[string]any) bool {
		actual := stringField(facts, "model_type")
		if list, ok := asStringList(expected); ok {
			for _, e := range list {
				if ciEquals(e, actual) {
					return true
				}
			}
			return false
		}
		e, ok := expected.(string)
		return ok && ciEquals(e, actual)
	}),

	"data_types": valued(func(expected any, facts map[string]any) bool {
		exp, ok := asStringList(expected)
		if !ok {
			return false
		}
		actual := listField(facts, "data_types")
		if len(exp) == 0 {
			return len(actual) == 0
		}
		return intersects(exp, actual, false)
	}),

	"special_category_data": gate(func(facts map[string]any) bool {
		return boolIs(facts, "special_category_data", true)
	}),

	"processes_personal_data": gate(func(facts map[string]any) bool {
		return boolIs(facts, "processes_personal_data", true)
	}),

	"privacy_techniques": valued(func(_ any, facts map[string]any) bool {
		actual := listField(facts, "privacy_techniques")
		if len(actual) == 0 {
			return true
		}
		for _, t := range actual {
			if ciEquals(t, "None") {
				return true
			}
		}
		return false
	}),

	"explainability_tooling_missing": gate(func(facts map[string]any) bool {
		return strings.TrimSpace(stringField(facts, "explainability_tooling")) == ""
	}),

	"interpretability_not_rated": gate(func(facts map[string]any) bool {
		v, present := facts["interpretability_rating"]
		if !present || v == nil {
			return true
		}
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s) == ""
		}
		return false
	}),

	"fairness_definition_missing": gate(func(facts map[string]any) bool {
		return isEmptyValue(facts["fairness_definition"])
	}),

	"accountable_owner_missing": gate(func(facts map[string]any) bool {
		return strings.TrimSpace(stringField(facts, "accountable_owner")) == ""
	}),

	// Strict boolean identity: an absent or null field never satisfies this
	// condition, for either expected value.
	"model_cards_published": valued(func(expected any, facts map[string]any) bool {
		exp, ok := expected.(bool)
		if !ok {
			return false
		}
		return boolIs(facts, "model_cards_published", exp)
	}),

	"credible_harms_listed": gate(func(facts map[string]any) bool {
		return len(listField(facts, "credible_harms")) > 0
	}),

	"safety_mitigations": valued(func(_ any, facts map[string]any) bool {
		return len(listField(facts, "safety_mitigations")) == 0
	}),

	"drift_detection_missing": gate(func(facts map[string]any) bool {
		return strings.TrimSpace(stringField(facts, "drift_detection")) == ""
	}),

	"retraining_cadence": valued(func(expected any, facts map[string]any) bool {
		exp, ok := asStringList(expected)
		if !ok {
			return false
		}
		actual := stringField(facts, "retraining_cadence")
		for _, e := range exp {
			if e == actual {
				return true
			}
		}
		return false
	}),

	"pen_test_missing": gate(func(facts map[string]any) bool {
		return boolIs(facts, "penetration_tested", false)
	}),

	"domain_threshold_not_met": gate(func(facts map[string]any) bool {
		return boolIs(facts, "domain_threshold_met", false)
	}),

	"robustness_below_baseline": gate(func(facts map[string]any) bool {
		return boolIs(facts, "robustness_above_baseline", false)
	}),

	"genai_risk_above_baseline": gate(func(facts map[string]any) bool {
		return boolIs(facts, "generative_risk_above_baseline", true)
	}),

	"retention_not_defined": gate(func(facts map[string]any) bool {
		return boolIs(facts, "retention_defined", false)
	}),

	"sustainability_estimate_missing": gate(func(facts map[string]any) bool {
		v, present := facts["sustainability_estimate"]
		if !present || v == nil {
			return true
		}
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s) == ""
		}
		return false
	}),

	"explainability_channels_missing": gate(func(facts map[string]any) bool {
		for _, ch := range listField(facts, "explainability_channels") {
			c := strings.ToLower(strings.TrimSpace(ch))
			if c != "" && c != "none" {
				return false
			}
		}
		return true
	}),

	"documentation_consumers_includes": valued(func(expected any, facts map[string]any) bool {
		exp, ok := asStringList(expected)
		if !ok {
			return false
		}
		got := listField(facts, "documentation_consumers")
		// Fires when documentation is NOT planned for any expected audience.
		return !intersects(exp, got, true)
	}),

	"community_reviews_missing_for_personal_data": gate(func(facts map[string]any) bool {
		return boolIs(facts, "processes_personal_data", true) &&
			boolIs(facts, "community_reviews", false)
	}),
}

// gate wraps a check so that a falsy expected value disarms the condition
// entirely (vacuously satisfied, but not armed), matching the flag-style
// trigger keys. A trigger made only of disarmed gates never fires.
func gate(check func(facts map[string]any) bool) conditionFunc {
	return func(expected any, facts map[string]any) (bool, bool) {
		if !truthy(expected) {
			return true, false
		}
		return check(facts), true
	}
}

// valued wraps a condition that always constrains the facts, whatever its
// expected value.
func valued(check func(expected any, facts map[string]any) bool) conditionFunc {
	return func(expected any, facts map[string]any) (bool, bool) {
		return check(expected, facts), true
	}
}

// genericMatch applies the typed fallback comparison for trigger keys not in
// the registry:
//
//   - empty list expectation: the fact must be empty or absent;
//   - non-empty list expectation: case-insensitive set intersection (or
//     membership when the fact is scalar);
//   - boolean expectation: strict identity, absence never satisfies;
//   - string expectation: case-insensitive equality;
//   - numeric expectation: exact equality.
func genericMatch(expected any, actual any) bool {
	if list, ok := asStringList(expected); ok {
		if len(list) == 0 {
			return isEmptyValue(actual)
		}
		if actualList, ok := toStringList(actual); ok {
			return intersects(list, actualList, true)
		}
		s, ok := actual.(string)
		if !ok {
			return false
		}
		for _, e := range list {
			if ciEquals(e, s) {
				return true
			}
		}
		return false
	}

	switch exp := expected.(type) {
	case bool:
		got, ok := actual.(bool)
		return ok && got == exp
	case string:
		s, ok := actual.(string)
		return ok && ciEquals(s, exp)
	default:
		expNum, expOk := asNumber(expected)
		gotNum, gotOk := asNumber(actual)
		if expOk && gotOk {
			return expNum == gotNum
		}
		return expected == actual
	}
}

// =============================================================================
// Typed field helpers
// =============================================================================

func stringField(facts map[string]any, key string) string {
	if s, ok := facts[key].(string); ok {
		return s
	}
	return ""
}

// boolIs reports whether the field is present, a bool, and equal to want.
func boolIs(facts map[string]any, key string, want bool) bool {
	v, ok := facts[key].(bool)
	return ok && v == want
}

func listField(facts map[string]any, key string) []string {
	list, _ := toStringList(facts[key])
	return list
}

func toStringList(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// asStringList is like toStringList but only for expected values, where a
// nil slice still counts as a list.
func asStringList(v any) ([]string, bool) {
	if v == nil {
		return nil, false
	}
	return toStringList(v)
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func ciEquals(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func isEmptyValue(v any) bool {
	switch vv := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(vv) == ""
	case []any:
		return len(vv) == 0
	case []string:
		return len(vv) == 0
	case map[string]any:
		return len(vv) == 0
	default:
		return false
	}
}

// truthy mirrors loose boolean coercion for trigger values: false, nil,
// empty strings, zero numbers, and empty collections are falsy.
func truthy(v any) bool {
	switch vv := v.(type) {
	case nil:
		return false
	case bool:
		return vv
	case string:
		return vv != ""
	case []any:
		return len(vv) > 0
	default:
		if n, ok := asNumber(v); ok {
			return n != 0
		}
		return true
	}
}

func intersects(expected, actual []string, caseInsensitive bool) bool {
	if caseInsensitive {
		set := make(map[string]bool, len(actual))
		for _, a := range actual {
			set[strings.ToLower(strings.TrimSpace(a))] = true
		}
		for _, e := range expected {
			if set[strings.ToLower(strings.TrimSpace(e))] {
				return true
			}
		}
		return false
	}
	set := make(map[string]bool, len(actual))
	for _, a := range actual {
		set[a] = true
	}
	for _, e := range expected {
		if set[e] {
			return true
		}
	}
	return false
}
