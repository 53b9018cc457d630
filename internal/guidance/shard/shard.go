/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package shard retrieves the policy shards relevant to a task's intent and
// resolves contradictions between overlapping rules.
package shard

import (
	"sort"
	"strings"
)

// Shard is one retrievable unit of guidance text, tagged by intent and rule
// source.
type Shard struct {
	ID         string
	Intent     string
	Source     string // rule-source name, used for precedence
	RuleID     string
	Text       string
	Keywords   []string
	Relevance  float64 // set by classification, not stored input
}

// IntentResult is the output of classifyIntent.
type IntentResult struct {
	Intent     string
	Confidence float64
}

// classifyIntent scores text against each shard's keyword set by overlap
// fraction and returns the best match, breaking ties lexicographically by
// intent name for determinism.
func classifyIntent(text string, shards []Shard) IntentResult {
	words := tokenize(text)
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[w] = true
	}

	scores := make(map[string]float64)
	for _, s := range shards {
		if len(s.Keywords) == 0 {
			continue
		}
		hits := 0
		for _, kw := range s.Keywords {
			if wordSet[strings.ToLower(kw)] {
				hits++
			}
		}
		score := float64(hits) / float64(len(s.Keywords))
		if score > scores[s.Intent] {
			scores[s.Intent] = score
		}
	}

	if len(scores) == 0 {
		return IntentResult{Intent: "general", Confidence: 0}
	}

	intents := make([]string, 0, len(scores))
	for intent := range scores {
		intents = append(intents, intent)
	}
	sort.Strings(intents)

	best := intents[0]
	for _, intent := range intents[1:] {
		if scores[intent] > scores[best] {
			best = intent
		}
	}
	return IntentResult{Intent: best, Confidence: scores[best]}
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	return fields
}

// Constitution is the hash-stamped, immutable baseline ruleset.
type Constitution struct {
	Hash string
	Text string
}

// ContradictionResolution records which rule was kept over which, and why.
type ContradictionResolution struct {
	KeptRuleID     string
	DroppedRuleID  string
	Reason         string
}

// RetrievalResult is the output of Retrieve.
type RetrievalResult struct {
	Shards                []Shard
	PolicyText            string
	Constitution          Constitution
	ContradictionsResolved []ContradictionResolution
	LatencyMs             int64
}

// SourcePrecedence orders rule sources from highest to lowest precedence;
// earlier entries win contradictions.
type SourcePrecedence []string

func (p SourcePrecedence) rank(source string) int {
	for i, s := range p {
		if s == source {
			return i
		}
	}
	return len(p)
}

// Retriever ranks and retrieves shards for a classified intent.
type Retriever struct {
	shards       []Shard
	constitution Constitution
	precedence   SourcePrecedence
	clock        func() int64
}

// New creates a Retriever over a fixed shard corpus and constitution.
func New(shards []Shard, constitution Constitution, precedence SourcePrecedence, clock func() int64) *Retriever {
	return &Retriever{shards: shards, constitution: constitution, precedence: precedence, clock: clock}
}

// Retrieve classifies the task text's intent, ranks matching shards by
// relevance descending, resolves any contradictions by configured source
// precedence (ruleId ascending on ties), and concatenates the surviving
// shard text with the constitution.
func (r *Retriever) Retrieve(taskText string) RetrievalResult {
	start := int64(0)
	if r.clock != nil {
		start = r.clock()
	}

	ir := classifyIntent(taskText, r.shards)

	var matched []Shard
	for _, s := range r.shards {
		if s.Intent != ir.Intent && s.Intent != "all" {
			continue
		}
		sc := s
		sc.Relevance = relevance(taskText, s)
		matched = append(matched, sc)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Relevance != matched[j].Relevance {
			return matched[i].Relevance > matched[j].Relevance
		}
		return matched[i].RuleID < matched[j].RuleID
	})

	kept, resolutions := resolveContradictions(matched, r.precedence)

	var sb strings.Builder
	for _, s := range kept {
		sb.WriteString(s.Text)
		sb.WriteString("\n")
	}
	sb.WriteString(r.constitution.Text)

	end := int64(0)
	if r.clock != nil {
		end = r.clock()
	}

	return RetrievalResult{
		Shards:                 kept,
		PolicyText:             sb.String(),
		Constitution:           r.constitution,
		ContradictionsResolved: resolutions,
		LatencyMs:              end - start,
	}
}

func relevance(text string, s Shard) float64 {
	words := tokenize(text)
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[w] = true
	}
	if len(s.Keywords) == 0 {
		return 0
	}
	hits := 0
	for _, kw := range s.Keywords {
		if wordSet[strings.ToLower(kw)] {
			hits++
		}
	}
	return float64(hits) / float64(len(s.Keywords))
}

// contradictory reports whether two shards' texts conflict, by a minimal
// antonym-substring heuristic over a shared subject line.
func contradictory(a, b Shard) bool {
	if a.RuleID == b.RuleID {
		return false
	}
	pairs := [][2]string{
		{"must", "must not"}, {"require", "forbid"}, {"allow", "block"}, {"enable", "disable"},
	}
	la, lb := strings.ToLower(a.Text), strings.ToLower(b.Text)
	for _, p := range pairs {
		if strings.Contains(la, p[0]) && strings.Contains(lb, p[1]) {
			return true
		}
		if strings.Contains(la, p[1]) && strings.Contains(lb, p[0]) {
			return true
		}
	}
	return false
}

// resolveContradictions drops the lower-precedence shard out of every
// contradicting pair, ties broken by ruleId ascending.
func resolveContradictions(shards []Shard, precedence SourcePrecedence) ([]Shard, []ContradictionResolution) {
	dropped := make(map[int]bool)
	var resolutions []ContradictionResolution

	for i := 0; i < len(shards); i++ {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(shards); j++ {
			if dropped[j] || !contradictory(shards[i], shards[j]) {
				continue
			}
			ri, rj := precedence.rank(shards[i].Source), precedence.rank(shards[j].Source)
			var keepIdx, dropIdx int
			switch {
			case ri < rj:
				keepIdx, dropIdx = i, j
			case rj < ri:
				keepIdx, dropIdx = j, i
			case shards[i].RuleID <= shards[j].RuleID:
				keepIdx, dropIdx = i, j
			default:
				keepIdx, dropIdx = j, i
			}
			dropped[dropIdx] = true
			resolutions = append(resolutions, ContradictionResolution{
				KeptRuleID:    shards[keepIdx].RuleID,
				DroppedRuleID: shards[dropIdx].RuleID,
				Reason:        "source precedence",
			})
		}
	}

	var kept []Shard
	for i, s := range shards {
		if !dropped[i] {
			kept = append(kept, s)
		}
	}
	return kept, resolutions
}
