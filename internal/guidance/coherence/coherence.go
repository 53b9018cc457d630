/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package coherence computes a rolling coherence score from recent run
// events and maps it to a privilege level, with advisory drift signals
// adapted from anomaly-detection heuristics.
package coherence

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics describes the subset of a run's rolling counters the scheduler
// reads; callers compute these from their own event history.
type Metrics struct {
	ViolationRate float64 // violations per event over the window
	ReworkLines   float64 // total rework lines over the window
}

// EventSample is the minimal per-event shape the drift component and
// advisory signals need.
type EventSample struct {
	Timestamp    int64
	Intent       string
	ToolsUsed    []string
	FilesTouched []string
}

// Score is the computed coherence score and its components.
type Score struct {
	Overall            float64
	ViolationComponent float64
	ReworkComponent    float64
	DriftComponent     float64
	Timestamp          int64
	WindowSize         int
	Recommendations    []string
}

// Privilege is the privilege level derived from a coherence score.
type Privilege string

const (
	PrivilegeFull       Privilege = "full"
	PrivilegeRestricted Privilege = "restricted"
	PrivilegeReadOnly   Privilege = "read-only"
	PrivilegeSuspended  Privilege = "suspended"
)

const defaultWindow = 20
const historyCap = 100

// Config tunes the advisory drift signals.
type Config struct {
	FrequencyThreshold      int
	FrequencyWindow         int
	ScopeSpikeMultiplier    float64
	MinScopeSpikeDelta      int
	TargetDriftMinSamples   int
}

func DefaultConfig() Config {
	return Config{
		FrequencyThreshold:    8,
		FrequencyWindow:       10,
		ScopeSpikeMultiplier:  2.0,
		MinScopeSpikeDelta:    3,
		TargetDriftMinSamples: 5,
	}
}

// Scheduler maintains bounded score history and exposes the current
// privilege level.
type Scheduler struct {
	cfg     Config
	history []Score
	gauge   prometheus.Gauge
}

// New creates a Scheduler. reg may be nil to skip metrics registration.
func New(cfg Config, reg prometheus.Registerer) *Scheduler {
	s := &Scheduler{cfg: cfg}
	if reg != nil {
		s.gauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "guidance_coherence_score",
			Help: "Current overall coherence score in [0,1].",
		})
		reg.MustRegister(s.gauge)
	}
	return s
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

// ComputeCoherence computes the score from metrics and the most recent
// events (at most window entries are considered; window defaults to 20).
func (s *Scheduler) ComputeCoherence(now int64, metrics Metrics, recentEvents []EventSample, window int) Score {
	if window <= 0 {
		window = defaultWindow
	}
	if len(recentEvents) > window {
		recentEvents = recentEvents[len(recentEvents)-window:]
	}

	violationComponent := clamp(1-metrics.ViolationRate/10, 0, 1)
	reworkComponent := clamp(1-metrics.ReworkLines/100, 0, 1)

	driftComponent := 1.0
	if len(recentEvents) > 0 {
		unique := map[string]bool{}
		for _, e := range recentEvents {
			unique[e.Intent] = true
		}
		denom := window - 1
		if denom < 1 {
			denom = 1
		}
		driftComponent = clamp(1-float64(len(unique)-1)/float64(denom), 0, 1)
	}

	overall := 0.4*violationComponent + 0.3*reworkComponent + 0.3*driftComponent

	score := Score{
		Overall:            overall,
		ViolationComponent: violationComponent,
		ReworkComponent:    reworkComponent,
		DriftComponent:     driftComponent,
		Timestamp:          now,
		WindowSize:         len(recentEvents),
	}
	score.Recommendations = recommendations(score)
	score.Recommendations = append(score.Recommendations, driftSignals(s.cfg, recentEvents)...)

	s.history = append(s.history, score)
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	if s.gauge != nil {
		s.gauge.Set(overall)
	}
	return score
}

func recommendations(s Score) []string {
	var recs []string
	if s.ViolationComponent < 0.5 {
		recs = append(recs, "violation rate is elevated: review recent gate blocks before continuing")
	}
	if s.ReworkComponent < 0.5 {
		recs = append(recs, "rework volume is high: consider checkpointing before further edits")
	}
	if s.DriftComponent < 0.5 {
		recs = append(recs, "task intent is drifting across many categories: confirm scope with the operator")
	}
	return recs
}

// PrivilegeFor maps an overall coherence score to a privilege level.
func PrivilegeFor(overall float64) Privilege {
	switch {
	case overall >= 0.7:
		return PrivilegeFull
	case overall >= 0.5:
		return PrivilegeRestricted
	case overall >= 0.3:
		return PrivilegeReadOnly
	default:
		return PrivilegeSuspended
	}
}

// EscalationAllowed reports whether overall permits privilege escalation.
func EscalationAllowed(overall float64) bool { return overall > 0.9 }

// History returns a copy of the bounded score history.
func (s *Scheduler) History() []Score {
	out := make([]Score, len(s.history))
	copy(out, s.history)
	return out
}

// driftSignals produces advisory-only annotations grounded in frequency,
// scope, and target-drift heuristics; they never change the overall score.
func driftSignals(cfg Config, events []EventSample) []string {
	var out []string
	if len(events) == 0 {
		return out
	}

	byIntent := map[string]int{}
	window := events
	if cfg.FrequencyWindow > 0 && len(window) > cfg.FrequencyWindow {
		window = window[len(window)-cfg.FrequencyWindow:]
	}
	for _, e := range window {
		byIntent[e.Intent]++
	}
	for intent, count := range byIntent {
		if count > cfg.FrequencyThreshold {
			out = append(out, "frequency-spike: intent "+intent+" repeated unusually often in the recent window")
			break
		}
	}

	if len(events) > 1 {
		avgScope := 0.0
		for _, e := range events[:len(events)-1] {
			avgScope += float64(len(e.ToolsUsed) + len(e.FilesTouched))
		}
		avgScope /= float64(len(events) - 1)
		last := events[len(events)-1]
		lastScope := float64(len(last.ToolsUsed) + len(last.FilesTouched))
		if lastScope > avgScope*cfg.ScopeSpikeMultiplier && lastScope-avgScope >= float64(cfg.MinScopeSpikeDelta) {
			out = append(out, "scope-spike: the latest step touched far more tools/files than the recent average")
		}
	}

	if len(events) >= cfg.TargetDriftMinSamples {
		recent := events[len(events)-cfg.TargetDriftMinSamples : len(events)-1]
		seenClasses := map[string]bool{}
		for _, e := range recent {
			for _, f := range e.FilesTouched {
				seenClasses[topLevelClass(f)] = true
			}
		}
		last := events[len(events)-1]
		for _, f := range last.FilesTouched {
			if !seenClasses[topLevelClass(f)] {
				out = append(out, "target-drift: the latest step touches a file area not seen in recent history")
				break
			}
		}
	}

	return out
}

func topLevelClass(path string) string {
	for i, r := range path {
		if r == '/' {
			return path[:i]
		}
	}
	return path
}
