/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package ledger

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrEventNotFound is returned when an operation references an unknown
// event ID.
var ErrEventNotFound = errors.New("ledger: event not found")

// ErrAlreadyFinalized is returned when a caller attempts to mutate an event
// that has already been sealed.
var ErrAlreadyFinalized = errors.New("ledger: event already finalized")

// Clock returns the current time in integer milliseconds since epoch. It is
// injected so tests and hosts can control time without the core reaching
// for wall-clock time directly.
type Clock func() int64

// Ledger is the in-memory run-event store described by the run ledger
// component: create at task start, mutate through the task, finalize at
// task end, export in timestamp order.
type Ledger struct {
	mu         sync.Mutex
	clock      Clock
	byID       map[string]*RunEvent
	order      []string // insertion order, for stable tie-breaking on export
	byTask     map[string][]string
	createdAt  map[string]int64
}

// New creates an empty Ledger using clock for timestamps.
func New(clock Clock) *Ledger {
	return &Ledger{
		clock:     clock,
		byID:      make(map[string]*RunEvent),
		byTask:    make(map[string][]string),
		createdAt: make(map[string]int64),
	}
}

// CreateEvent starts a new RunEvent for taskID with the given intent and
// guidance bundle hash, returning a pointer the caller mutates through the
// task's lifetime via the Record* methods.
func (l *Ledger) CreateEvent(taskID, intent, guidanceBundleHash string) *RunEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	e := &RunEvent{
		EventID:            uuid.NewString(),
		Timestamp:          now,
		TaskID:             taskID,
		Intent:             intent,
		GuidanceBundleHash: guidanceBundleHash,
	}
	l.byID[e.EventID] = e
	l.order = append(l.order, e.EventID)
	l.byTask[taskID] = append(l.byTask[taskID], e.EventID)
	l.createdAt[e.EventID] = now
	return e
}

// RecordViolation appends v to event's violation list.
func (l *Ledger) RecordViolation(e *RunEvent, v Violation) error {
	if e.finalized {
		return ErrAlreadyFinalized
	}
	e.Violations = append(e.Violations, v)
	return nil
}

// RecordToolUse records toolName as used by event, de-duplicated,
// first-insertion order preserved.
func (l *Ledger) RecordToolUse(e *RunEvent, toolName string) error {
	if e.finalized {
		return ErrAlreadyFinalized
	}
	e.ToolsUsed = appendUnique(e.ToolsUsed, toolName)
	return nil
}

// RecordFileTouch records path as touched by event, de-duplicated,
// first-insertion order preserved.
func (l *Ledger) RecordFileTouch(e *RunEvent, path string) error {
	if e.finalized {
		return ErrAlreadyFinalized
	}
	e.FilesTouched = appendUnique(e.FilesTouched, path)
	return nil
}

// RecordRetrievedRule records ruleID as retrieved for event, de-duplicated,
// first-insertion order preserved.
func (l *Ledger) RecordRetrievedRule(e *RunEvent, ruleID string) error {
	if e.finalized {
		return ErrAlreadyFinalized
	}
	e.RetrievedRuleIDs = appendUnique(e.RetrievedRuleIDs, ruleID)
	return nil
}

// FinalizeEvent seals event: computes durationMs from its creation time,
// sets outcomeAccepted, and seals the content hash. After this call the
// event must never be mutated again.
func (l *Ledger) FinalizeEvent(e *RunEvent, outcomeAccepted bool, reworkLines int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.finalized {
		return ErrAlreadyFinalized
	}
	if _, ok := l.byID[e.EventID]; !ok {
		return ErrEventNotFound
	}

	now := l.clock()
	e.DurationMs = now - e.Timestamp
	e.OutcomeAccepted = outcomeAccepted
	e.ReworkLines = reworkLines

	hash, err := computeContentHash(*e)
	if err != nil {
		return err
	}
	e.ContentHash = hash
	e.finalized = true
	return nil
}

// ExportEvents returns all events ordered by timestamp ascending, with ties
// broken by insertion order.
func (l *Ledger) ExportEvents() []RunEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]string, len(l.order))
	copy(ids, l.order)
	sort.SliceStable(ids, func(i, j int) bool {
		return l.byID[ids[i]].Timestamp < l.byID[ids[j]].Timestamp
	})

	out := make([]RunEvent, 0, len(ids))
	for _, id := range ids {
		out = append(out, *l.byID[id])
	}
	return out
}

// ImportEvents loads events into the ledger, e.g. after reading them back
// from persistence. Existing events with the same ID are replaced.
func (l *Ledger) ImportEvents(events []RunEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range events {
		e := events[i]
		e.finalized = e.ContentHash != ""
		if _, exists := l.byID[e.EventID]; !exists {
			l.order = append(l.order, e.EventID)
			l.byTask[e.TaskID] = append(l.byTask[e.TaskID], e.EventID)
		}
		l.byID[e.EventID] = &e
	}
}

// Clear removes all events from the ledger.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.byID = make(map[string]*RunEvent)
	l.order = nil
	l.byTask = make(map[string][]string)
	l.createdAt = make(map[string]int64)
}

// ByTask returns all events for taskID in timestamp order.
func (l *Ledger) ByTask(taskID string) []RunEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := l.byTask[taskID]
	out := make([]RunEvent, 0, len(ids))
	for _, id := range ids {
		out = append(out, *l.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// ByIntent returns all events with the given intent tag, timestamp order.
func (l *Ledger) ByIntent(intent string) []RunEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []RunEvent
	for _, id := range l.order {
		e := l.byID[id]
		if e.Intent == intent {
			out = append(out, *e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// ByTimeWindow returns all events with Timestamp in [start, end].
func (l *Ledger) ByTimeWindow(start, end int64) []RunEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []RunEvent
	for _, id := range l.order {
		e := l.byID[id]
		if e.Timestamp >= start && e.Timestamp <= end {
			out = append(out, *e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// Get returns a copy of the event with the given ID.
func (l *Ledger) Get(eventID string) (RunEvent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byID[eventID]
	if !ok {
		return RunEvent{}, false
	}
	return *e, true
}
