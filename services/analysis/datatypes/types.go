// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes holds the wire and domain types shared across the
// analysis service: project facts, compliance flags, and the request and
// response shapes of the HTTP surface.
package datatypes

import (
	"encoding/json"
	"strings"

	"github.com/aiimpact/governor/services/corpus"
)

// =============================================================================
// Severity
// =============================================================================

// Severity is the traffic-light rating attached to a compliance flag.
type Severity string

const (
	SeverityRed   Severity = "red"
	SeverityAmber Severity = "amber"
	SeverityGreen Severity = "green"
)

// CoerceSeverity normalizes an arbitrary severity token to one of the three
// enumerated values. Tokens starting with "r" map to red, "a" to amber, and
// everything else (including empty or garbage) to green, the least alarming
// reading of an unparseable rating.
func CoerceSeverity(val string) Severity {
	v := strings.ToLower(strings.TrimSpace(val))
	switch {
	case strings.HasPrefix(v, "r"):
		return SeverityRed
	case strings.HasPrefix(v, "a"):
		return SeverityAmber
	default:
		return SeverityGreen
	}
}

// =============================================================================
// Flags
// =============================================================================

// Flag is one severity-tagged, clause-referenced compliance finding.
//
// Invariants enforced by the pipeline: Clause always names a clause id that
// was retrieved for the request, Reason is non-empty, and Severity is one of
// the three enumerated values.
type Flag struct {
	ID         string         `json:"id"`
	Clause     string         `json:"clause"`
	Severity   Severity       `json:"severity"`
	Reason     string         `json:"reason"`
	Mitigation string         `json:"mitigation,omitempty"`
	Evidence   string         `json:"evidence,omitempty"`
	Model      string         `json:"model,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// =============================================================================
// Project facts
// =============================================================================

// ProjectFacts is the flat record describing an AI project under assessment.
//
// Optional booleans and numbers are pointers: an absent field is semantically
// distinct from an explicit false/zero, and the rule engine depends on that
// distinction. Lists and strings use their zero value for absence, matching
// how the trigger conditions treat empty and missing identically for those
// kinds.
type ProjectFacts struct {
	// Core
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	DataTypes     []string `json:"data_types,omitempty"`
	ModelType     string   `json:"model_type,omitempty"`
	DeploymentEnv string   `json:"deployment_env,omitempty"`

	// Privacy
	ProcessesPersonalData *bool    `json:"processes_personal_data,omitempty"`
	SpecialCategoryData   *bool    `json:"special_category_data,omitempty"`
	PrivacyTechniques     []string `json:"privacy_techniques,omitempty"`
	RetentionDefined      *bool    `json:"retention_defined,omitempty"`
	LineageDocPresent     *bool    `json:"lineage_doc_present,omitempty"`

	// Explainability / interpretability
	ExplainabilityTooling   string   `json:"explainability_tooling,omitempty"`
	InterpretabilityRating  string   `json:"interpretability_rating,omitempty"`
	ExplainabilityChannels  []string `json:"explainability_channels,omitempty"`
	DocumentationConsumers  []string `json:"documentation_consumers,omitempty"`
	SustainabilityEstimate  string   `json:"sustainability_estimate,omitempty"`
	OutputsExposedToEndUser *bool    `json:"outputs_exposed_to_end_users,omitempty"`
	ProbabilisticLabel      *bool    `json:"output_label_includes_probabilistic,omitempty"`

	// Fairness / accountability / transparency
	FairnessDefinition  []string `json:"fairness_definition,omitempty"`
	AccountableOwner    string   `json:"accountable_owner,omitempty"`
	EscalationRoute     string   `json:"escalation_route,omitempty"`
	ModelCardsPublished *bool    `json:"model_cards_published,omitempty"`
	CommunityReviews    *bool    `json:"community_reviews,omitempty"`

	// Safety & robustness
	CredibleHarms        []string `json:"credible_harms,omitempty"`
	SafetyMitigations    []string `json:"safety_mitigations,omitempty"`
	PenetrationTested    *bool    `json:"penetration_tested,omitempty"`
	PreDeploymentTesting *bool    `json:"pre_deployment_testing,omitempty"`
	RobustnessBaseline   *bool    `json:"robustness_above_baseline,omitempty"`
	GenAIRiskBaseline    *bool    `json:"generative_risk_above_baseline,omitempty"`
	DomainThresholdMet   *bool    `json:"domain_threshold_met,omitempty"`
	ValidationScore      *float64 `json:"validation_score,omitempty"`
	DataQualityChecks    *bool    `json:"data_quality_checks,omitempty"`

	// Operations
	DriftDetection    string `json:"drift_detection,omitempty"`
	RetrainingCadence string `json:"retraining_cadence,omitempty"`
}

// Map flattens the facts into a key-value record keyed by the JSON field
// names the rule triggers use. Absent optional fields are absent from the
// map, which is what lets boolean gates distinguish "not set" from an
// explicit false.
func (p ProjectFacts) Map() map[string]any {
	raw, err := json.Marshal(p)
	if err != nil {
		return map[string]any{}
	}
	m := make(map[string]any)
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// =============================================================================
// HTTP request/response shapes
// =============================================================================

// SearchQuery is the body of POST /v1/search.
type SearchQuery struct {
	Q          string   `json:"q" binding:"required"`
	TopK       int      `json:"top_k"`
	Frameworks []string `json:"frameworks,omitempty"`
}

// AnalysisDebug carries audit material alongside an analysis result: the
// retrieved hit set, the exact prompt sent to the inference service, and
// per-stage timings in milliseconds. Intended for tuning, not control flow.
type AnalysisDebug struct {
	Retrieved []corpus.SearchHit `json:"retrieved"`
	Prompt    string             `json:"prompt,omitempty"`
	TimingsMs map[string]float64 `json:"timings_ms,omitempty"`
}

// AnalysisResponse is the body of POST /v1/analyse.
type AnalysisResponse struct {
	AnalysisID    string        `json:"analysis_id"`
	Flags         []Flag        `json:"flags"`
	CorpusVersion string        `json:"corpus_version"`
	Debug         AnalysisDebug `json:"debug"`
}

// ReloadResponse is the body of GET /v1/admin/reload.
type ReloadResponse struct {
	OK      bool   `json:"ok"`
	Count   int    `json:"count"`
	Version string `json:"version"`
}
