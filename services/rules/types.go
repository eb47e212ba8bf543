// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

// Rule is one declarative compliance check: a trigger block evaluated
// against project facts, plus the flag it contributes when it fires.
//
// Rules are loaded once at startup and are read-only afterwards. The
// trigger is a conjunction: every key in the block must be satisfied for
// the rule to fire.
type Rule struct {
	ID         string         `yaml:"id"`
	Clause     string         `yaml:"clause"`
	Severity   string         `yaml:"severity"`
	Reason     string         `yaml:"reason"`
	Mitigation string         `yaml:"mitigation,omitempty"`
	Trigger    map[string]any `yaml:"trigger"`
}

// ruleFile is the on-disk shape of a rule set. A bare list of rules is also
// accepted for compatibility with older rule files.
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}
