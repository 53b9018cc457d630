/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package manifest implements agent-cell admission control: field
// validation, risk scoring, and lane selection, all fail-closed.
package manifest

import (
	"fmt"
	"regexp"
	"strings"
)

// Manifest is the immutable input to Validate.
type Manifest struct {
	APIVersion string
	CodeRef    CodeRef
	Budgets    map[string]float64
	ToolsAllowed []string
	ToolPolicy ToolPolicy
	DataPolicy DataPolicy
	NeedsNativeThreads bool
	PortabilityRequired bool
	CoherenceGateEnabled bool
	AntiHallucinationGateEnabled bool
	WriteConfirmationRequired bool
	WriteMode string // e.g. "append", "overwrite"
	AuthorityScopeIndex float64 // 0..1, higher = broader authority
	SensitivityIndex    float64 // 0..1
	PIIAllowed          bool
	TraceLevel          string // "none", "basic", "full"
}

// CodeRef references the code artifact a cell runs.
type CodeRef struct {
	Digest string // "sha256:<64 hex chars>"
}

// ToolPolicy configures per-cell tool/network access.
type ToolPolicy struct {
	NetworkAllowlist []string
}

// DataPolicy configures per-cell data handling.
type DataPolicy struct {
	Sensitivity     string // enum: "public","internal","confidential","restricted"
	RetentionDays   int
	AllowedRegions  []string
	BlockedRegions  []string
}

var validSensitivities = map[string]bool{"public": true, "internal": true, "confidential": true, "restricted": true}

var digestPattern = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)

// ErrorCode names a specific validation failure.
type ErrorCode string

const (
	ErrMissingField     ErrorCode = "MISSING_FIELD"
	ErrBadAPIVersion    ErrorCode = "BAD_API_VERSION"
	ErrBadDigest        ErrorCode = "BAD_DIGEST"
	ErrBudgetNegative   ErrorCode = "BUDGET_NEGATIVE"
	ErrBudgetOverCap    ErrorCode = "BUDGET_OVER_CAP"
	ErrWildcardNetwork  ErrorCode = "WILDCARD_NETWORK"
	ErrBadSensitivity   ErrorCode = "BAD_SENSITIVITY"
	ErrNegativeRetention ErrorCode = "NEGATIVE_RETENTION"
	ErrRegionOverlap    ErrorCode = "REGION_OVERLAP"
)

// ValidationError is one collected validation failure.
type ValidationError struct {
	Code    ErrorCode
	Message string
}

// ValidationResult collects every error and warning found; the first error
// found never aborts collection of the rest.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []string
}

func (r ValidationResult) Valid() bool { return len(r.Errors) == 0 }

// BudgetCaps configures the sanity ceiling for each budget field.
type BudgetCaps map[string]float64

// Validate runs every check in order, collecting all errors before
// returning.
func Validate(m Manifest, caps BudgetCaps) ValidationResult {
	var res ValidationResult

	if m.APIVersion == "" {
		res.Errors = append(res.Errors, ValidationError{ErrMissingField, "apiVersion is required"})
	} else if m.APIVersion != "agentic_cells.v0_1" {
		res.Errors = append(res.Errors, ValidationError{ErrBadAPIVersion, "apiVersion must be agentic_cells.v0_1"})
	}

	if m.CodeRef.Digest == "" {
		res.Errors = append(res.Errors, ValidationError{ErrMissingField, "codeRef.digest is required"})
	} else if !digestPattern.MatchString(m.CodeRef.Digest) {
		res.Errors = append(res.Errors, ValidationError{ErrBadDigest, "codeRef.digest must match sha256:<64 hex chars>"})
	}

	for field, v := range m.Budgets {
		if v < 0 {
			res.Errors = append(res.Errors, ValidationError{ErrBudgetNegative, fmt.Sprintf("budget %q must be non-negative", field)})
			continue
		}
		if cap, ok := caps[field]; ok && v > cap {
			res.Errors = append(res.Errors, ValidationError{ErrBudgetOverCap, fmt.Sprintf("budget %q exceeds configured cap %v", field, cap)})
		}
	}

	hasBash := toolsContain(m.ToolsAllowed, "Bash")
	for _, host := range m.ToolPolicy.NetworkAllowlist {
		if (host == "*" || strings.HasPrefix(host, "*.")) && !hasBash {
			res.Errors = append(res.Errors, ValidationError{ErrWildcardNetwork, "wildcard network allowlist entries require the Bash tool"})
			break
		}
	}

	if m.DataPolicy.Sensitivity != "" && !validSensitivities[m.DataPolicy.Sensitivity] {
		res.Errors = append(res.Errors, ValidationError{ErrBadSensitivity, "dataPolicy.sensitivity is not a recognized enum value"})
	}
	if m.DataPolicy.RetentionDays < 0 {
		res.Errors = append(res.Errors, ValidationError{ErrNegativeRetention, "dataPolicy.retentionDays must be non-negative"})
	}
	if overlaps(m.DataPolicy.AllowedRegions, m.DataPolicy.BlockedRegions) {
		res.Errors = append(res.Errors, ValidationError{ErrRegionOverlap, "allowedRegions and blockedRegions must be disjoint"})
	}

	for _, tool := range m.ToolsAllowed {
		if !knownTools[tool] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unknown tool name %q", tool))
		}
	}
	if !m.CoherenceGateEnabled && !m.AntiHallucinationGateEnabled {
		res.Warnings = append(res.Warnings, "both memory gates are disabled")
	}
	if m.DataPolicy.Sensitivity == "restricted" && m.DataPolicy.RetentionDays > 30 {
		res.Warnings = append(res.Warnings, "restricted data retained beyond 30 days")
	}
	if len(m.ToolsAllowed) > 0 && m.TraceLevel == "none" {
		res.Warnings = append(res.Warnings, "artifact emission with traceLevel=none")
	}

	return res
}

var knownTools = map[string]bool{
	"Read": true, "Write": true, "Edit": true, "Bash": true, "Task": true,
	"Grep": true, "Glob": true,
}

func toolsContain(tools []string, name string) bool {
	for _, t := range tools {
		if t == name {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	for _, y := range b {
		if set[y] {
			return true
		}
	}
	return false
}

// RiskScore computes the [0,100] risk score from a manifest's tool,
// data-sensitivity, and privilege-surface sub-scores.
func RiskScore(m Manifest) float64 {
	toolRisk := 0.0
	if toolsContain(m.ToolsAllowed, "Bash") {
		toolRisk += 15
	}
	if toolsContain(m.ToolsAllowed, "Task") {
		toolRisk += 8
	}
	if toolsContain(m.ToolsAllowed, "Write") || toolsContain(m.ToolsAllowed, "Edit") {
		toolRisk += 5
	}
	for _, t := range m.ToolsAllowed {
		if strings.HasPrefix(t, "mcp_") {
			toolRisk += 5
			break
		}
	}
	if len(m.ToolPolicy.NetworkAllowlist) > 0 {
		toolRisk += 5
	}
	for _, h := range m.ToolPolicy.NetworkAllowlist {
		if h == "*" || strings.HasPrefix(h, "*.") {
			toolRisk += 10
			break
		}
	}
	if !m.WriteConfirmationRequired {
		toolRisk += 3
	}
	toolRisk = clamp(toolRisk, 0, 40)

	// SensitivityIndex/AuthorityScopeIndex are documented as 0..1 fields;
	// the extra *10 rescales the index×8 / index×5 weights onto the same
	// 0..100 risk scale the tool sub-score already uses.
	dataRisk := m.SensitivityIndex*8*10 + boolAdd(m.PIIAllowed, 6)
	dataRisk = clamp(dataRisk, 0, 30)

	privRisk := m.AuthorityScopeIndex * 5 * 10
	if m.WriteMode == "overwrite" {
		privRisk += 5
	}
	if m.NeedsNativeThreads {
		privRisk += 8
	}
	if !m.CoherenceGateEnabled {
		privRisk += 3
	}
	if !m.AntiHallucinationGateEnabled {
		privRisk += 3
	}
	privRisk = clamp(privRisk, 0, 30)

	return clamp(toolRisk+dataRisk+privRisk, 0, 100)
}

func boolAdd(b bool, v float64) float64 {
	if b {
		return v
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lane names a runtime isolation lane.
type Lane string

const (
	LaneWASM      Lane = "wasm"
	LaneSandboxed Lane = "sandboxed"
	LaneNative    Lane = "native"
	LanePreferred Lane = "preferred"
)

// LaneConfig tunes lane selection.
type LaneConfig struct {
	MaxRiskScore float64
}

// SelectLane picks a runtime lane from risk and manifest flags, or nil if
// validation failed (admission must fail closed).
func SelectLane(valid bool, risk float64, m Manifest, cfg LaneConfig) *Lane {
	if !valid {
		return nil
	}
	lane := func(l Lane) *Lane { return &l }

	if risk > cfg.MaxRiskScore {
		return lane(LaneWASM)
	}
	if m.PortabilityRequired {
		return lane(LaneWASM)
	}
	if m.NeedsNativeThreads {
		if risk <= 50 {
			return lane(LaneNative)
		}
		return lane(LaneSandboxed)
	}
	switch {
	case risk <= 20:
		return lane(LanePreferred)
	case risk <= 50:
		return lane(LanePreferred)
	default:
		return lane(LaneWASM)
	}
}

// AdmissionDecision is the final accept/reject/review verdict.
type AdmissionDecision string

const (
	AdmissionAdmit  AdmissionDecision = "admit"
	AdmissionReview AdmissionDecision = "review"
	AdmissionReject AdmissionDecision = "reject"
)

// Admit computes the admission decision: reject on any validation error,
// else admit/review/reject by risk band.
func Admit(valid bool, risk float64) AdmissionDecision {
	if !valid {
		return AdmissionReject
	}
	switch {
	case risk <= 30:
		return AdmissionAdmit
	case risk <= 70:
		return AdmissionReview
	default:
		return AdmissionReject
	}
}
