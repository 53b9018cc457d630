/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package ledger maintains the append-only run ledger: RunEvents created at
// task start, mutated through the task, and sealed at task end.
package ledger

import "github.com/marcus-qen/guidance/internal/guidance/kernel"

// Violation records a single gate denial or warning attached to an event.
type Violation struct {
	RuleID      string `json:"ruleId"`
	GateName    string `json:"gateName"`
	Decision    string `json:"decision"`
	Reason      string `json:"reason"`
	Remediation string `json:"remediation,omitempty"`
}

// RunEvent is the unit of the run ledger. It is created at task start,
// mutated through the task's lifetime, and finalized (content hash sealed)
// at task end. It must never be mutated after finalization.
type RunEvent struct {
	EventID            string      `json:"eventId"`
	Timestamp          int64       `json:"timestamp"`
	DurationMs         int64       `json:"durationMs"`
	TaskID             string      `json:"taskId"`
	Intent             string      `json:"intent"`
	GuidanceBundleHash string      `json:"guidanceBundleHash"`
	RetrievedRuleIDs   []string    `json:"retrievedRuleIds"`
	ToolsUsed          []string    `json:"toolsUsed"`
	FilesTouched       []string    `json:"filesTouched"`
	Violations         []Violation `json:"violations"`
	OutcomeAccepted    bool        `json:"outcomeAccepted"`
	ReworkLines        int         `json:"reworkLines"`
	ContentHash        string      `json:"contentHash"`

	finalized bool
}

// Finalized reports whether the event has been sealed.
func (e *RunEvent) Finalized() bool { return e.finalized }

// sealableView returns the subset of fields that participate in the
// content hash: everything except ContentHash itself.
func (e RunEvent) sealableView() map[string]interface{} {
	return map[string]interface{}{
		"eventId":            e.EventID,
		"timestamp":          e.Timestamp,
		"durationMs":         e.DurationMs,
		"taskId":             e.TaskID,
		"intent":             e.Intent,
		"guidanceBundleHash": e.GuidanceBundleHash,
		"retrievedRuleIds":   e.RetrievedRuleIDs,
		"toolsUsed":          e.ToolsUsed,
		"filesTouched":       e.FilesTouched,
		"violations":         e.Violations,
		"outcomeAccepted":    e.OutcomeAccepted,
		"reworkLines":        e.ReworkLines,
	}
}

// computeContentHash returns the canonical-JSON SHA-256 hash of the event's
// sealable fields, hex-encoded.
func computeContentHash(e RunEvent) (string, error) {
	h, err := kernel.ContentHash(e.sealableView())
	if err != nil {
		return "", err
	}
	return hex(h), nil
}

// VerifyContentHash reports whether e's stored ContentHash matches a fresh
// recomputation over its sealable fields. An unfinalized event (empty
// ContentHash) never verifies.
func VerifyContentHash(e RunEvent) (bool, error) {
	if e.ContentHash == "" {
		return false, nil
	}
	recomputed, err := computeContentHash(e)
	if err != nil {
		return false, err
	}
	return recomputed == e.ContentHash, nil
}

func hex(h kernel.Hash) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(h)*2)
	for i, b := range h {
		out[i*2] = digits[b>>4]
		out[i*2+1] = digits[b&0xf]
	}
	return string(out)
}
