// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package ruleset bakes the default compliance rule file into the binary via
the Go embed package, so the rule set travels with the executable and stays
immutable at runtime unless an explicit RULES_PATH override is configured.
*/
package ruleset

import (
	_ "embed"
)

// DefaultRules holds the raw byte content of 'default_rules.yaml'.
//
// Pass these bytes directly to yaml.Unmarshal.
//
//go:embed default_rules.yaml
var DefaultRules []byte
