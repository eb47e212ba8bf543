// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP endpoints of the analysis service.
package handlers

import (
	"github.com/aiimpact/governor/services/corpus"
	"github.com/aiimpact/governor/services/llm"
	"github.com/aiimpact/governor/services/rules"
)

// Deps bundles the shared components handlers close over. FlagGen is nil
// when generative analysis is disabled; handlers must tolerate that.
type Deps struct {
	Store      *corpus.Store
	RuleEngine *rules.Engine
	FlagGen    *llm.FlagGenerator
}
