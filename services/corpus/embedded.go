// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package corpus

import (
	_ "embed"
)

// DefaultCorpus holds the raw bytes of the default policy clause corpus.
//
// The corpus is baked into the binary at compile time so a deployment with
// no CORPUS_PATH configured still serves the stock DSIT/ICO/ISO clause set.
// An on-disk corpus, when configured, replaces it entirely.
//
//go:embed default_corpus.json
var DefaultCorpus []byte
