// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aiimpact/governor/services/analysis/datatypes"
	"github.com/aiimpact/governor/services/corpus"
)

// severityGuidance anchors the model's severity calibration so that repeated
// runs over the same facts land on the same colour.
const severityGuidance = `Calibrate consistently:
- "red" = legal/critical gap or high residual risk
- "amber" = material risk that needs mitigation
- "green" = aligned or low residual risk
When possible, include a short evidence snippet (quote) from the clause or project facts.
Return ONLY valid JSON that matches the provided schema.`

// BuildSystemPrompt returns the assessor persona used for every generation.
func BuildSystemPrompt() string {
	return "You are an AI governance assessor. Convert UK policy clauses (DSIT, ICO, ISO/IEC 42001) " +
		"into actionable checks with conservative judgements. Output strict JSON only.\n\n" +
		severityGuidance
}

// BuildUserPrompt renders the project facts and the retrieved clauses into
// the user turn. The retrieved clause ids are embedded verbatim as
// VALID_CLAUSE_IDS so the model has the allow-list in front of it; the
// reconciler enforces the same list server-side regardless.
func BuildUserPrompt(facts datatypes.ProjectFacts, hits []corpus.SearchHit) string {
	var lines []string
	var idList []string
	for _, h := range hits {
		c := h.Clause
		idList = append(idList, c.ID)
		lines = append(lines, fmt.Sprintf("- id: %s\n  label: %s\n  framework: %s\n  text: %s",
			c.ID, c.Label, c.Framework, c.Text))
	}
	clausesBlock := strings.Join(lines, "\n")

	idJSON, err := json.Marshal(idList)
	if err != nil {
		idJSON = []byte("[]")
	}

	var b strings.Builder
	b.WriteString("Project:\n")
	fmt.Fprintf(&b, "- title: %s\n", strings.TrimSpace(facts.Title))
	fmt.Fprintf(&b, "- description: %s\n", strings.TrimSpace(facts.Description))
	fmt.Fprintf(&b, "- model_type: %s\n", facts.ModelType)
	fmt.Fprintf(&b, "- deployment_env: %s\n", facts.DeploymentEnv)
	fmt.Fprintf(&b, "- data_types: %s\n", joinList(facts.DataTypes))
	fmt.Fprintf(&b, "- privacy: processes_personal_data=%s, special_category_data=%s\n",
		optBool(facts.ProcessesPersonalData), optBool(facts.SpecialCategoryData))
	fmt.Fprintf(&b, "- explainability_tooling: %s\n", facts.ExplainabilityTooling)
	fmt.Fprintf(&b, "- interpretability_rating: %s\n", facts.InterpretabilityRating)
	fmt.Fprintf(&b, "- fairness_definition: %s\n", joinList(facts.FairnessDefinition))
	fmt.Fprintf(&b, "- accountable_owner: %s\n", facts.AccountableOwner)
	fmt.Fprintf(&b, "- model_cards_published: %s\n", optBool(facts.ModelCardsPublished))
	fmt.Fprintf(&b, "- safety: harms=%s, mitigations=%s, drift_detection=%s, retraining_cadence=%s, penetration_tested=%s\n",
		joinList(facts.CredibleHarms), joinList(facts.SafetyMitigations),
		facts.DriftDetection, facts.RetrainingCadence, optBool(facts.PenetrationTested))
	b.WriteString("\nCandidate policy clauses (DSIT, ICO, ISO):\n")
	b.WriteString(clausesBlock)
	b.WriteString("\n\nVALID_CLAUSE_IDS = ")
	b.Write(idJSON)
	b.WriteString(`

TASK:
1) Use only the clauses above to evaluate the project.
2) The "clause" field for EACH flag MUST be one of VALID_CLAUSE_IDS (do not invent new IDs).
3) Produce ONLY this JSON object:
   {
     "flags": [
       {
         "id": "<clause id>",
         "clause": "<clause id (must be in VALID_CLAUSE_IDS)>",
         "severity": "red" | "amber" | "green",
         "reason": "<one-sentence 'because' explanation referencing project facts>",
         "mitigation": "<concrete step or null>",
         "evidence": "<short quote/snippet or null>"
       }
     ]
   }
4) Be conservative: choose "green" only when clearly compliant; use "amber" for partial/uncertain; "red" for clear gaps.
5) Return just the JSON object; no extra text.
`)
	return b.String()
}

// DefaultSchemaHint is the JSON schema attached to every generation request.
func DefaultSchemaHint() string {
	return `{
  "type": "object",
  "properties": {
    "flags": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id":        {"type":"string"},
          "clause":    {"type":"string"},
          "severity":  {"type":"string","enum":["red","amber","green"]},
          "reason":    {"type":"string"},
          "mitigation":{"type":["string","null"]},
          "evidence":  {"type":["string","null"]},
          "meta":      {"type":["object","null"]}
        },
        "required": ["id","clause","severity","reason"]
      }
    }
  },
  "required": ["flags"]
}`
}

func joinList(vals []string) string {
	var parts []string
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func optBool(v *bool) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%t", *v)
}
