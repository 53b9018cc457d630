/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package memorygate is a decision engine over caller-supplied memory
// state: it never persists entries itself, only evaluates whether a write
// should be allowed.
package memorygate

import (
	"fmt"
	"math"
	"strings"
)

// Role is an agent's position in the memory authority hierarchy.
type Role string

const (
	RoleQueen       Role = "queen"
	RoleCoordinator Role = "coordinator"
	RoleWorker      Role = "worker"
	RoleObserver    Role = "observer"
)

var roleRank = map[Role]int{
	RoleObserver:    0,
	RoleWorker:      1,
	RoleCoordinator: 2,
	RoleQueen:       3,
}

// Authority describes what an agent is permitted to write.
type Authority struct {
	AgentID            string
	Role               Role
	Namespaces         []string
	MaxWritesPerMinute int
	CanDelete          bool
	CanOverwrite       bool
	TrustLevel         float64
}

func (a Authority) allowsNamespace(ns string) bool {
	if a.Role == RoleQueen {
		return true
	}
	for _, n := range a.Namespaces {
		if n == ns {
			return true
		}
	}
	return false
}

// Lineage records how an entry's value was derived.
type Lineage struct {
	ParentKey   string
	DerivedFrom string
	Operation   string
}

// Entry is a memory entry as supplied by the caller's storage layer.
type Entry struct {
	Key          string
	Namespace    string
	Value        string
	Authority    Authority
	CreatedAt    int64
	UpdatedAt    int64
	TTLMs        *int64
	DecayRate    float64
	Confidence   float64
	Lineage      Lineage
	Contradictions []string
}

// Expired reports whether the entry has exceeded its TTL as of now.
func (e Entry) Expired(now int64) bool {
	return e.TTLMs != nil && now-e.CreatedAt > *e.TTLMs
}

// ComputeConfidence applies the exponential decay formula: the entry's
// confidence at now, decayed from its confidence at UpdatedAt.
func ComputeConfidence(e Entry, now int64) float64 {
	if now <= e.UpdatedAt {
		return e.Confidence
	}
	elapsedHours := float64(now-e.UpdatedAt) / 3_600_000.0
	return e.Confidence * math.Exp(-e.DecayRate*elapsedHours)
}

// antonymPairs are the pattern names contradiction detection checks for.
var antonymPairs = []struct {
	name string
	a, b string
}{
	{"must-vs-never", "must", "never"},
	{"always-vs-never", "always", "never"},
	{"require-vs-forbid", "require", "forbid"},
	{"enable-vs-disable", "enable", "disable"},
	{"true-vs-false", "true", "false"},
}

// Contradiction names an existing entry and the antonym pattern matched
// between it and a proposed new value.
type Contradiction struct {
	EntryKey string
	Pattern  string
}

// WriteDecision is the outcome of evaluating a proposed write.
type WriteDecision struct {
	Allowed        bool
	Reason         string
	Contradictions []Contradiction
}

// Gate evaluates memory writes. It holds per-agent write-timestamp history
// for the sliding rate-limit window; it never stores entry values.
type Gate struct {
	writeHistory map[string][]int64 // agentID -> write timestamps (ms)
}

// New creates an empty Gate.
func New() *Gate {
	return &Gate{writeHistory: make(map[string][]int64)}
}

const rateLimitWindowMs = 60_000

// EvaluateWrite runs the authority, rate-limit, overwrite, and
// contradiction checks in order and, on allow, records the write.
func (g *Gate) EvaluateWrite(now int64, authority Authority, key, namespace, value string, existing []Entry) WriteDecision {
	if roleRank[authority.Role] < roleRank[RoleWorker] {
		return WriteDecision{Allowed: false, Reason: "role below minimum required (worker)"}
	}
	if !authority.allowsNamespace(namespace) {
		return WriteDecision{Allowed: false, Reason: fmt.Sprintf("namespace %q not in agent's allowlist", namespace)}
	}

	g.pruneHistory(authority.AgentID, now)
	if authority.MaxWritesPerMinute > 0 && len(g.writeHistory[authority.AgentID]) >= authority.MaxWritesPerMinute {
		return WriteDecision{Allowed: false, Reason: "write rate limit exceeded for the current 60s window"}
	}

	for _, e := range existing {
		if e.Key == key && e.Namespace == namespace && !authority.CanOverwrite {
			return WriteDecision{Allowed: false, Reason: "key already exists and authority lacks overwrite permission"}
		}
	}

	var contradictions []Contradiction
	for _, e := range existing {
		if e.Key == key {
			continue
		}
		for _, pair := range antonymPairs {
			if containsWord(value, pair.a) && containsWord(e.Value, pair.b) ||
				containsWord(value, pair.b) && containsWord(e.Value, pair.a) {
				contradictions = append(contradictions, Contradiction{EntryKey: e.Key, Pattern: pair.name})
			}
		}
	}

	g.writeHistory[authority.AgentID] = append(g.writeHistory[authority.AgentID], now)
	return WriteDecision{Allowed: true, Contradictions: contradictions}
}

func containsWord(text, word string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(word))
}

func (g *Gate) pruneHistory(agentID string, now int64) {
	history := g.writeHistory[agentID]
	cutoff := now - rateLimitWindowMs
	i := 0
	for ; i < len(history); i++ {
		if history[i] > cutoff {
			break
		}
	}
	g.writeHistory[agentID] = history[i:]
}

// GetExpiredEntries returns the subset of entries that have expired as of
// now, without mutating the supplied slice.
func GetExpiredEntries(entries []Entry, now int64) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Expired(now) {
			out = append(out, e)
		}
	}
	return out
}

// GetDecayedEntries returns the subset of entries whose decayed confidence
// at now is below threshold.
func GetDecayedEntries(entries []Entry, now int64, threshold float64) []Entry {
	var out []Entry
	for _, e := range entries {
		if ComputeConfidence(e, now) < threshold {
			out = append(out, e)
		}
	}
	return out
}
