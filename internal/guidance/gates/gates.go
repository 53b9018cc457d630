/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package gates implements the pluggable enforcement gates: pure functions
// from an input to a decision, never mutating caller state.
package gates

import (
	"fmt"
	"strings"

	"github.com/marcus-qen/guidance/internal/guidance/kernel"
)

// Decision is the outcome severity of a gate evaluation, ordered from
// least to most restrictive.
type Decision string

const (
	Allow                Decision = "allow"
	Warn                 Decision = "warn"
	RequireConfirmation  Decision = "require-confirmation"
	Block                Decision = "block"
)

// severity ranks decisions for aggregation: higher is more restrictive.
var severity = map[Decision]int{
	Allow:               0,
	Warn:                1,
	RequireConfirmation: 2,
	Block:               3,
}

// GateResult is the outcome of one gate's evaluation.
type GateResult struct {
	GateName    string
	Decision    Decision
	Reason      string
	Remediation string
	Evidence    map[string]string
}

// EditSizeThresholds configures the edit-size gate.
type EditSizeThresholds struct {
	SoftLines int // warn above this
	HardLines int // block above this
}

// DefaultEditSizeThresholds matches the spec's defaults.
func DefaultEditSizeThresholds() EditSizeThresholds {
	return EditSizeThresholds{SoftLines: 200, HardLines: 1000}
}

// Config configures the built-in gates.
type Config struct {
	ToolAllowlist    map[string]bool // tool name -> allowed
	SensitiveTools   map[string]bool // tool name -> requires confirmation even if allowed
	EditSize         EditSizeThresholds
}

// Gates evaluates commands, tool calls, and edits against the built-in
// enforcement gates.
type Gates struct {
	cfg Config
}

// New creates a Gates evaluator with the given configuration.
func New(cfg Config) *Gates {
	if cfg.EditSize == (EditSizeThresholds{}) {
		cfg.EditSize = DefaultEditSizeThresholds()
	}
	return &Gates{cfg: cfg}
}

// EvaluateCommand runs the destructive-ops gate against command.
func (g *Gates) EvaluateCommand(command string) []GateResult {
	return []GateResult{destructiveOpsGate(command)}
}

// EvaluateToolUse runs the secret-scanner and tool-allowlist gates against a
// tool invocation. params values are scanned as text for secrets.
func (g *Gates) EvaluateToolUse(toolName string, params map[string]string) []GateResult {
	var results []GateResult
	results = append(results, secretScannerGate(params))
	results = append(results, g.toolAllowlistGate(toolName))
	return results
}

// EvaluateEdit runs the edit-size gate against a file edit.
func (g *Gates) EvaluateEdit(path, content string, diffLines int) []GateResult {
	return []GateResult{g.editSizeGate(path, diffLines), secretScannerGate(map[string]string{"content": content})}
}

// AggregateDecision picks the most restrictive decision among results:
// block > require-confirmation > warn > allow.
func AggregateDecision(results []GateResult) Decision {
	best := Allow
	for _, r := range results {
		if severity[r.Decision] > severity[best] {
			best = r.Decision
		}
	}
	return best
}

func destructiveOpsGate(command string) GateResult {
	kind, ok := kernel.DetectDestructive(command)
	if !ok {
		return GateResult{GateName: "destructive-ops", Decision: Allow}
	}
	return GateResult{
		GateName:    "destructive-ops",
		Decision:    Block,
		Reason:      fmt.Sprintf("command matches destructive pattern: %s", kind),
		Remediation: "rewrite the command to target a specific, non-wildcard path, or request manual confirmation",
		Evidence:    map[string]string{"kind": string(kind)},
	}
}

func secretScannerGate(values map[string]string) GateResult {
	var kinds []string
	for _, v := range values {
		for _, k := range kernel.ScanSecrets(v) {
			kinds = append(kinds, string(k))
		}
	}
	if len(kinds) == 0 {
		return GateResult{GateName: "secret-scanner", Decision: Allow}
	}
	return GateResult{
		GateName:    "secret-scanner",
		Decision:    Block,
		Reason:      fmt.Sprintf("content matches secret pattern(s): %s", strings.Join(kinds, ", ")),
		Remediation: "remove the credential and load it from a secret store instead",
		Evidence:    map[string]string{"kinds": strings.Join(kinds, ",")},
	}
}

func (g *Gates) toolAllowlistGate(toolName string) GateResult {
	if g.cfg.ToolAllowlist != nil && !g.cfg.ToolAllowlist[toolName] {
		return GateResult{
			GateName:    "tool-allowlist",
			Decision:    Block,
			Reason:      fmt.Sprintf("tool %q is not on the allowlist", toolName),
			Remediation: "add the tool to the allowlist or use an approved alternative",
		}
	}
	if g.cfg.SensitiveTools != nil && g.cfg.SensitiveTools[toolName] {
		return GateResult{
			GateName:    "tool-allowlist",
			Decision:    RequireConfirmation,
			Reason:      fmt.Sprintf("tool %q is flagged sensitive", toolName),
			Remediation: "confirm this call explicitly before proceeding",
		}
	}
	return GateResult{GateName: "tool-allowlist", Decision: Allow}
}

func (g *Gates) editSizeGate(path string, diffLines int) GateResult {
	t := g.cfg.EditSize
	switch {
	case diffLines > t.HardLines:
		return GateResult{
			GateName:    "edit-size",
			Decision:    Block,
			Reason:      fmt.Sprintf("edit to %s touches %d lines, exceeding the hard limit of %d", path, diffLines, t.HardLines),
			Remediation: "split the change into smaller, reviewable edits",
		}
	case diffLines > t.SoftLines:
		return GateResult{
			GateName: "edit-size",
			Decision: Warn,
			Reason:   fmt.Sprintf("edit to %s touches %d lines, above the soft limit of %d", path, diffLines, t.SoftLines),
		}
	default:
		return GateResult{GateName: "edit-size", Decision: Allow}
	}
}
