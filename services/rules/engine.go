// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rules evaluates the declarative compliance rule set against
// project facts.
//
// # Description
//
// Each rule carries a trigger block: a conjunction of named conditions over
// the project-fact record. Evaluation is deterministic and short-circuiting;
// the moment one condition is unsatisfied the rule does not fire. Known
// trigger keys dispatch through a registry of typed condition evaluators,
// and unknown keys fall back to a generic typed matcher, so new rule
// vocabulary degrades gracefully instead of erroring.
//
// The single most important correctness property of the engine is the
// strict boolean gate: a condition keyed on a boolean field is satisfied
// only when that field is present and equals the required literal. An
// absent or null field never satisfies a boolean condition.
//
// # Failure Policy
//
// A missing or unparseable rule source degrades to an empty rule set with a
// logged warning. A rule that panics during evaluation is logged and
// skipped; one bad rule cannot abort the batch.
package rules

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/aiimpact/governor/services/analysis/datatypes"
	"github.com/aiimpact/governor/services/rules/ruleset"
	"gopkg.in/yaml.v3"
)

// Engine holds the loaded rule set. Read-only after construction.
type Engine struct {
	Rules []Rule
}

// NewEngine loads the rule set from path, or from the embedded default rule
// file when path is empty.
//
// Load failures are not fatal: the engine starts with zero rules and a
// warning is logged, matching the degrade-to-empty policy for rule-set
// failures.
func NewEngine(path string) *Engine {
	raw, err := readRuleSource(path)
	if err != nil {
		slog.Warn("Rule set unavailable, proceeding without rules", "path", path, "error", err)
		return &Engine{}
	}

	loaded, err := parseRules(raw)
	if err != nil {
		slog.Warn("Failed to parse rule set, proceeding without rules", "path", path, "error", err)
		return &Engine{}
	}

	slog.Info("Loaded compliance rules", "count", len(loaded))
	return &Engine{Rules: loaded}
}

func readRuleSource(path string) ([]byte, error) {
	if path == "" {
		return ruleset.DefaultRules, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return raw, nil
}

// parseRules accepts either {rules: [...]} or a bare rule list.
func parseRules(raw []byte) ([]Rule, error) {
	var file ruleFile
	if err := yaml.Unmarshal(raw, &file); err == nil && len(file.Rules) > 0 {
		return file.Rules, nil
	}
	var bare []Rule
	if err := yaml.Unmarshal(raw, &bare); err != nil {
		return nil, fmt.Errorf("rule source is neither a rule file nor a rule list: %w", err)
	}
	return bare, nil
}

// Evaluate reports whether a rule's trigger block is satisfied by the facts.
//
// The trigger is a short-circuiting conjunction evaluated in sorted key
// order for determinism. Firing additionally requires at least one armed
// condition: an empty trigger block, or one consisting only of disarmed
// gates (every gated key set falsy), never fires.
func (e *Engine) Evaluate(rule Rule, facts map[string]any) bool {
	if len(rule.Trigger) == 0 {
		return false
	}

	keys := make([]string, 0, len(rule.Trigger))
	for k := range rule.Trigger {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	armed := false
	for _, key := range keys {
		expected := rule.Trigger[key]
		if cond, ok := namedConditions[key]; ok {
			satisfied, condArmed := cond(expected, facts)
			if !satisfied {
				return false
			}
			if condArmed {
				armed = true
			}
			continue
		}
		if !genericMatch(expected, facts[key]) {
			return false
		}
		armed = true
	}
	return armed
}

// EvaluateAll runs every rule against the facts and returns one flag per
// firing rule. Panics inside a single rule are recovered, logged, and
// skipped so the rest of the batch still evaluates.
func (e *Engine) EvaluateAll(facts map[string]any) []datatypes.Flag {
	flags := make([]datatypes.Flag, 0)
	for _, rule := range e.Rules {
		fired := func() (fired bool) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Rule evaluation panicked, skipping rule", "rule_id", rule.ID, "panic", r)
					fired = false
				}
			}()
			return e.Evaluate(rule, facts)
		}()
		if !fired {
			continue
		}
		flags = append(flags, datatypes.Flag{
			ID:         rule.ID,
			Clause:     rule.Clause,
			Severity:   datatypes.CoerceSeverity(rule.Severity),
			Reason:     rule.Reason,
			Mitigation: rule.Mitigation,
			Meta:       map[string]any{"source": "legacy-rule"},
		})
	}
	return flags
}
