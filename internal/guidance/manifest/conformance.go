/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package manifest

// ConformanceEvent is one scripted step of a golden trace. EventType names
// the decision surface under test ("command", "tool_call", "budget_check",
// "memory_write", "admission"); Payload carries whatever that surface's
// evaluator needs to reach a decision.
type ConformanceEvent struct {
	Seq             int
	EventType       string
	Payload         map[string]any
	ExpectedOutcome string
}

// GoldenTrace is a named sequence of events a conforming evaluator must
// decide exactly as scripted. ExpectedDecisions runs parallel to Events;
// ExpectedMemoryLineage is the ordered list of memory entry tags the trace
// expects to exist once every event has been replayed.
type GoldenTrace struct {
	TraceID               string
	Events                []ConformanceEvent
	ExpectedDecisions     []string
	ExpectedMemoryLineage []string
}

// Evaluator decides one conformance event the way a host's gates, gateway,
// governor, or memory gate would. It returns the decision reached and the
// memory lineage tags (if any) written as a result of that event.
type Evaluator func(event ConformanceEvent) (decision string, memoryLineage []string, err error)

// Mismatch records one event whose evaluator decision diverged from its
// golden trace's expectation.
type Mismatch struct {
	TraceID   string
	Seq       int
	EventType string
	Want      string
	Got       string
	Err       error
}

// ConformanceResult is the outcome of replaying one or more golden traces
// through an evaluator.
type ConformanceResult struct {
	Passed        bool
	TotalEvents   int
	MatchedEvents int
	Mismatches    []Mismatch
}

// Run replays every event of every trace through evaluate, in seq order,
// comparing the returned decision against the trace's expectation for that
// event and accumulating the memory lineage the evaluator reports. A
// mismatch on one event never stops the rest of the trace from running.
func Run(traces []GoldenTrace, evaluate Evaluator) ConformanceResult {
	var res ConformanceResult

	for _, tr := range traces {
		var lineage []string

		for i, ev := range tr.Events {
			res.TotalEvents++

			want := ev.ExpectedOutcome
			if want == "" && i < len(tr.ExpectedDecisions) {
				want = tr.ExpectedDecisions[i]
			}

			got, mem, err := evaluate(ev)
			lineage = append(lineage, mem...)

			if err == nil && got == want {
				res.MatchedEvents++
				continue
			}
			res.Mismatches = append(res.Mismatches, Mismatch{
				TraceID:   tr.TraceID,
				Seq:       ev.Seq,
				EventType: ev.EventType,
				Want:      want,
				Got:       got,
				Err:       err,
			})
		}

		if !lineageMatches(lineage, tr.ExpectedMemoryLineage) {
			res.Mismatches = append(res.Mismatches, Mismatch{
				TraceID: tr.TraceID,
				Want:    "memoryLineage=" + joinTags(tr.ExpectedMemoryLineage),
				Got:     "memoryLineage=" + joinTags(lineage),
			})
		}
	}

	res.Passed = len(res.Mismatches) == 0
	return res
}

func lineageMatches(got, want []string) bool {
	if len(want) == 0 {
		return len(got) == 0
	}
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}

// DefaultTraces returns the built-in golden traces every conforming
// evaluator is checked against: a destructive command blocked, a secret in
// a tool parameter blocked, a budget exceeded denied, a memory write
// without evidence blocked, and a valid operation allowed.
func DefaultTraces() []GoldenTrace {
	return []GoldenTrace{
		{
			TraceID: "destructive-command-blocked",
			Events: []ConformanceEvent{
				{Seq: 1, EventType: "command", Payload: map[string]any{"command": "rm -rf /"}, ExpectedOutcome: "block"},
			},
			ExpectedDecisions:     []string{"block"},
			ExpectedMemoryLineage: nil,
		},
		{
			TraceID: "secret-in-tool-parameter-blocked",
			Events: []ConformanceEvent{
				{
					Seq:       1,
					EventType: "tool_call",
					Payload: map[string]any{
						"tool":       "Bash",
						"parameters": map[string]any{"command": "curl -H 'Authorization: Bearer sk-ant-REDACTED'"},
					},
					ExpectedOutcome: "block",
				},
			},
			ExpectedDecisions:     []string{"block"},
			ExpectedMemoryLineage: nil,
		},
		{
			TraceID: "budget-exceeded-denied",
			Events: []ConformanceEvent{
				{
					Seq:             1,
					EventType:       "budget_check",
					Payload:         map[string]any{"dimension": "tokens", "used": 1_000_000.0, "limit": 100_000.0},
					ExpectedOutcome: "deny",
				},
			},
			ExpectedDecisions:     []string{"deny"},
			ExpectedMemoryLineage: nil,
		},
		{
			TraceID: "memory-write-without-evidence-blocked",
			Events: []ConformanceEvent{
				{
					Seq:             1,
					EventType:       "memory_write",
					Payload:         map[string]any{"authority": "none", "hasEvidence": false},
					ExpectedOutcome: "block",
				},
			},
			ExpectedDecisions:     []string{"block"},
			ExpectedMemoryLineage: nil,
		},
		{
			TraceID: "valid-operation-allowed",
			Events: []ConformanceEvent{
				{
					Seq:             1,
					EventType:       "tool_call",
					Payload:         map[string]any{"tool": "Read", "parameters": map[string]any{"path": "README.md"}},
					ExpectedOutcome: "allow",
				},
			},
			ExpectedDecisions:     []string{"allow"},
			ExpectedMemoryLineage: []string{"read:README.md"},
		},
	}
}
