/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package hooks wires the guidance core's gates into an external hook
// registry, at fixed priorities, so a host agent runtime invokes them at
// the right point in its lifecycle without importing the gate packages
// directly.
package hooks

import (
	"context"

	"github.com/marcus-qen/guidance/internal/guidance/gates"
)

// Priority orders hook execution within a single lifecycle event; lower
// values run first.
type Priority int

const (
	PriorityCritical Priority = 0
	PriorityHigh     Priority = 10
	PriorityNormal   Priority = 20
)

// Event names a lifecycle point a hook can attach to.
type Event string

const (
	EventPreCommand Event = "pre_command"
	EventPreToolUse Event = "pre_tool_use"
	EventPreEdit    Event = "pre_edit"
	EventPreTask    Event = "pre_task"
	EventPostTask   Event = "post_task"
)

// Handler runs a check for one lifecycle event and reports the gate
// outcome. Returning a non-allow decision tells the host runtime to act on
// it (warn, confirm, or block).
type Handler func(ctx context.Context, payload Payload) (gates.GateResult, error)

// Payload carries whatever fields a given event needs; unused fields are
// left zero.
type Payload struct {
	Command    string
	ToolName   string
	ToolParams map[string]string
	EditPath    string
	EditContent string
	EditLines   int
	TaskID     string
	Intent     string
}

// Registry is the external hook registry a host runtime provides. It is
// intentionally minimal so any runtime's hook system can satisfy it.
type Registry interface {
	Register(event string, priority int, handler func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error)) error
}

// Provider owns the gate engine and registers its checks against a
// Registry at the priorities the lifecycle requires.
type Provider struct {
	gates *gates.Gates
}

// New creates a Provider over a configured gate engine.
func New(g *gates.Gates) *Provider {
	return &Provider{gates: g}
}

// RegisterAll registers every lifecycle hook at its fixed priority:
// pre_command and pre_tool_use at Critical (they can block destructive
// actions before they run), pre_edit at High, pre_task and post_task at
// Normal.
func (p *Provider) RegisterAll(reg Registry) error {
	bindings := []struct {
		event    Event
		priority Priority
		handler  Handler
	}{
		{EventPreCommand, PriorityCritical, p.preCommand},
		{EventPreToolUse, PriorityCritical, p.preToolUse},
		{EventPreEdit, PriorityHigh, p.preEdit},
		{EventPreTask, PriorityNormal, p.preTask},
		{EventPostTask, PriorityNormal, p.postTask},
	}

	for _, b := range bindings {
		handler := b.handler
		if err := reg.Register(string(b.event), int(b.priority), adapt(handler)); err != nil {
			return err
		}
	}
	return nil
}

func adapt(h Handler) func(context.Context, map[string]interface{}) (map[string]interface{}, error) {
	return func(ctx context.Context, raw map[string]interface{}) (map[string]interface{}, error) {
		payload := payloadFromMap(raw)
		result, err := h(ctx, payload)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"gate":        result.GateName,
			"decision":    string(result.Decision),
			"reason":      result.Reason,
			"remediation": result.Remediation,
		}, nil
	}
}

func payloadFromMap(raw map[string]interface{}) Payload {
	var p Payload
	if v, ok := raw["command"].(string); ok {
		p.Command = v
	}
	if v, ok := raw["toolName"].(string); ok {
		p.ToolName = v
	}
	if v, ok := raw["toolParams"].(map[string]string); ok {
		p.ToolParams = v
	}
	if v, ok := raw["editPath"].(string); ok {
		p.EditPath = v
	}
	if v, ok := raw["editContent"].(string); ok {
		p.EditContent = v
	}
	if v, ok := raw["editLines"].(int); ok {
		p.EditLines = v
	}
	if v, ok := raw["taskId"].(string); ok {
		p.TaskID = v
	}
	if v, ok := raw["intent"].(string); ok {
		p.Intent = v
	}
	return p
}

func (p *Provider) preCommand(_ context.Context, payload Payload) (gates.GateResult, error) {
	results := p.gates.EvaluateCommand(payload.Command)
	return worstResult(results, "pre_command"), nil
}

func (p *Provider) preToolUse(_ context.Context, payload Payload) (gates.GateResult, error) {
	results := p.gates.EvaluateToolUse(payload.ToolName, payload.ToolParams)
	return worstResult(results, "pre_tool_use"), nil
}

func (p *Provider) preEdit(_ context.Context, payload Payload) (gates.GateResult, error) {
	results := p.gates.EvaluateEdit(payload.EditPath, payload.EditContent, payload.EditLines)
	return worstResult(results, "pre_edit"), nil
}

func (p *Provider) preTask(_ context.Context, payload Payload) (gates.GateResult, error) {
	return gates.GateResult{GateName: "pre_task", Decision: gates.Allow}, nil
}

func (p *Provider) postTask(_ context.Context, payload Payload) (gates.GateResult, error) {
	return gates.GateResult{GateName: "post_task", Decision: gates.Allow}, nil
}

// severityRank orders gate decisions from least to most restrictive; it
// mirrors the unexported ranking gates.AggregateDecision uses internally.
var severityRank = map[gates.Decision]int{
	gates.Allow:               0,
	gates.Warn:                1,
	gates.RequireConfirmation: 2,
	gates.Block:               3,
}

func worstResult(results []gates.GateResult, fallbackName string) gates.GateResult {
	if len(results) == 0 {
		return gates.GateResult{GateName: fallbackName, Decision: gates.Allow}
	}
	worst := results[0]
	for _, r := range results[1:] {
		if severityRank[r.Decision] > severityRank[worst.Decision] {
			worst = r
		}
	}
	return worst
}
