// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reconcile

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aiimpact/governor/services/analysis/datatypes"
	"github.com/aiimpact/governor/services/corpus"
)

// SynthesizeGreenFlags emits positive compliance checks when an analysis
// produced no flags at all, so dashboards can show a green percentage
// instead of an empty result. Each check fires only when the project facts
// affirmatively evidence the control AND the target clause was retrieved for
// this request; the clause-id allow-list holds for synthesized flags too.
func SynthesizeGreenFlags(facts datatypes.ProjectFacts, hits []corpus.SearchHit) []datatypes.Flag {
	hasClause := func(cid string) bool {
		want := strings.ToLower(strings.TrimSpace(cid))
		for _, h := range hits {
			if strings.ToLower(strings.TrimSpace(h.Clause.ID)) == want {
				return true
			}
		}
		return false
	}

	green := func(cid, reason, evidence string) datatypes.Flag {
		return datatypes.Flag{
			ID:       cid,
			Clause:   cid,
			Severity: datatypes.SeverityGreen,
			Reason:   reason,
			Evidence: evidence,
		}
	}

	var greens []datatypes.Flag

	if isTrue(facts.RetentionDefined) && isTrue(facts.LineageDocPresent) && len(facts.PrivacyTechniques) > 0 {
		if cid := "ISO 42001 §8.2 Data-Management"; hasClause(cid) {
			greens = append(greens, green(cid,
				"Data governance present because retention is defined, lineage documented and privacy techniques are applied.",
				"retention_defined=true; lineage_doc_present=true; privacy_techniques set"))
		}
	}

	if facts.ExplainabilityTooling != "" && len(facts.ExplainabilityChannels) > 0 {
		if cid := "DSIT §3.2.3 Transparency"; hasClause(cid) {
			greens = append(greens, green(cid,
				"Transparent/explainable because explainability tooling and channels for users are defined.",
				facts.ExplainabilityTooling))
		}
	}

	if interpretabilityAdequate(facts.InterpretabilityRating) && facts.ExplainabilityTooling != "" {
		if cid := "ISO 42001 AnnexA A.6.8 Explainability"; hasClause(cid) {
			greens = append(greens, green(cid,
				"Interpretability is adequate for the context because interpretability is rated >=3 and tooling is in place.",
				fmt.Sprintf("interpretability_rating=%s", facts.InterpretabilityRating)))
		}
	}

	if isTrue(facts.PenetrationTested) && isTrue(facts.PreDeploymentTesting) {
		if cid := "ICO-Audit Pre-Deployment-Testing"; hasClause(cid) {
			greens = append(greens, green(cid,
				"Pre-deployment testing policy applied and penetration testing completed.",
				"penetration_tested=true; pre_deployment_testing=true"))
		}
	}

	if isTrue(facts.DomainThresholdMet) && hasRealNumber(facts.ValidationScore) {
		if cid := "ISO 42001 §8.3 Design-Development"; hasClause(cid) {
			greens = append(greens, green(cid,
				"Performance meets planned domain threshold with recorded validation score.",
				fmt.Sprintf("validation_score=%v", *facts.ValidationScore)))
		}
	}

	if isTrue(facts.RobustnessBaseline) {
		if cid := "ISO 42001 AnnexA A.6.5 Robustness-Accuracy"; hasClause(cid) {
			greens = append(greens, green(cid,
				"Robustness testing is above baseline according to stress/adversarial evaluations.",
				"robustness_above_baseline=true"))
		}
	}

	if facts.AccountableOwner != "" && facts.EscalationRoute != "" {
		if cid := "DSIT §3.2.3 Accountability"; hasClause(cid) {
			greens = append(greens, green(cid,
				"Clear accountability and escalation route are defined across the lifecycle.",
				facts.AccountableOwner))
		}
	}

	if isTrue(facts.DataQualityChecks) && hasRealNumber(facts.ValidationScore) {
		if cid := "ISO 42001 AnnexA A.6.2 Data-Quality"; hasClause(cid) {
			greens = append(greens, green(cid,
				"Data quality controls evidenced by validation score and explicit data-quality checks.",
				fmt.Sprintf("validation_score=%v; data_quality_checks=true", *facts.ValidationScore)))
		}
	}

	if isTrue(facts.OutputsExposedToEndUser) && isTrue(facts.ProbabilisticLabel) {
		if cid := "ICO-Audit Inference-Labeling"; hasClause(cid) {
			greens = append(greens, green(cid,
				"User-facing outputs are clearly labelled as probabilistic with provenance/context.",
				"output_label_includes_probabilistic=true"))
		}
	}

	if len(greens) > 8 {
		greens = greens[:8]
	}
	return greens
}

func isTrue(v *bool) bool {
	return v != nil && *v
}

func hasRealNumber(v *float64) bool {
	return v != nil && !math.IsNaN(*v)
}

// interpretabilityAdequate accepts numeric ratings of 3 or above, or the
// literal tokens projects commonly submit for the top of the scale.
func interpretabilityAdequate(rating string) bool {
	r := strings.TrimSpace(rating)
	if f, err := strconv.ParseFloat(r, 64); err == nil {
		return f >= 3
	}
	switch r {
	case "3", "4", "5", "high":
		return true
	}
	return false
}
