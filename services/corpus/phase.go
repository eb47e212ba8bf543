// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package corpus

import "strings"

var (
	dataKeywords = []string{
		"data", "privacy", "personal", "retention", "consent", "provenance",
		"access control", "collection", "minimisation",
	}
	modelKeywords = []string{
		"fairness", "bias", "explain", "interpret", "transparen", "accuracy",
		"robust", "testing", "validation", "documentation", "model card",
	}
	deploymentKeywords = []string{
		"monitor", "incident", "security", "ops", "operation", "post",
		"drift", "change", "audit", "retraining", "deployment",
	}
)

// InferPhase bucketizes a clause into a lifecycle phase by keyword
// heuristics over its category, label, and text. Keyword order matters:
// data wins over model wins over deployment. Clauses matching nothing fall
// back on the issuing framework (ICO is data-centric, DSIT model-centric).
func InferPhase(c Clause) string {
	txt := strings.ToLower(c.Category) + " " + strings.ToLower(c.Label) + " " + strings.ToLower(c.Text)

	hasAny := func(words []string) bool {
		for _, w := range words {
			if strings.Contains(txt, w) {
				return true
			}
		}
		return false
	}

	switch {
	case hasAny(dataKeywords):
		return PhaseData
	case hasAny(modelKeywords):
		return PhaseModel
	case hasAny(deploymentKeywords):
		return PhaseDeployment
	}

	switch strings.ToUpper(c.Framework) {
	case "ICO":
		return PhaseData
	case "DSIT":
		return PhaseModel
	}
	return PhaseDeployment
}
