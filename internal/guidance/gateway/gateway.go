/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package gateway is the canonical tool-call entry point: idempotency
// cache, schema validation, budget check, and gate aggregation, in that
// fixed order.
package gateway

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/marcus-qen/guidance/internal/guidance/gates"
	"github.com/marcus-qen/guidance/internal/guidance/governor"
	"github.com/marcus-qen/guidance/internal/guidance/kernel"
)

// Schema describes the accepted shape of a tool's parameters.
type Schema struct {
	Required  []string
	Allowed   map[string]bool // allowed param keys; nil = no restriction
	MaxBytes  int
	Whitelist map[string][]string // param key -> allowed values, if specified
}

// IdempotencyRecord is one cached tool-call result.
type IdempotencyRecord struct {
	Key       string
	ToolName  string
	ParamsHash string
	Result    string
	Timestamp int64
	TTLMs     int64
}

// Decision is the gateway's verdict for one call.
type Decision struct {
	Allowed         bool
	Gate            string
	Reason          string
	Evidence        map[string]string
	Warnings        []string
	IdempotencyHit  bool
	CachedResult    string
}

const defaultMaxCacheSize = 10_000

// Gateway orchestrates the tool-call pipeline.
type Gateway struct {
	gates       *gates.Gates
	budget      *governor.Governor
	schemas     map[string]Schema
	cache       map[string]IdempotencyRecord
	cacheOrder  []string // FIFO eviction order
	maxCache    int
	cacheTTLMs  int64
	lastCleanup int64
}

const defaultCacheTTLMs = 60_000

// New creates a Gateway. cacheTTLMs configures how long an idempotency
// cache entry stays valid after RecordCall inserts it; 0 selects the
// default of 60s.
func New(g *gates.Gates, budget *governor.Governor, schemas map[string]Schema, cacheTTLMs int64) *Gateway {
	if cacheTTLMs <= 0 {
		cacheTTLMs = defaultCacheTTLMs
	}
	return &Gateway{
		gates:      g,
		budget:     budget,
		schemas:    schemas,
		cache:      make(map[string]IdempotencyRecord),
		maxCache:   defaultMaxCacheSize,
		cacheTTLMs: cacheTTLMs,
	}
}

func canonicalParamsJSON(params map[string]string) (string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]string, len(params))
	for _, k := range keys {
		ordered[k] = params[k]
	}
	b, err := json.Marshal(ordered)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func idempotencyKey(toolName string, params map[string]string) (string, error) {
	canon, err := canonicalParamsJSON(params)
	if err != nil {
		return "", err
	}
	h := kernel.SHA256([]byte(toolName + ":" + canon))
	return fmt.Sprintf("%x", h), nil
}

// CallContext carries the optional fields evaluate needs beyond the tool
// name and parameters.
type CallContext struct {
	Command string
}

// Evaluate runs the fixed pipeline: periodic idempotency cleanup, cache
// lookup, schema validation, budget check, then gate aggregation.
func (g *Gateway) Evaluate(now int64, toolName string, params map[string]string, ctx CallContext) Decision {
	g.maybeCleanup(now)

	key, err := idempotencyKey(toolName, params)
	if err != nil {
		return Decision{Allowed: false, Gate: "idempotency", Reason: err.Error()}
	}
	if rec, ok := g.cache[key]; ok && now-rec.Timestamp < rec.TTLMs {
		return Decision{Allowed: true, Gate: "idempotency", IdempotencyHit: true, CachedResult: rec.Result}
	}

	if schema, ok := g.schemas[toolName]; ok {
		if reason, ok := validateSchema(schema, params); !ok {
			return Decision{Allowed: false, Gate: "schema", Reason: reason}
		}
	}

	if g.budget != nil {
		if dim, exceeded := g.budget.FirstExceeded(); exceeded {
			return Decision{
				Allowed: false, Gate: "budget",
				Reason:   fmt.Sprintf("%s budget exhausted", dim),
				Evidence: map[string]string{"dimension": string(dim)},
			}
		}
	}

	var results []gates.GateResult
	results = append(results, g.gates.EvaluateToolUse(toolName, params)...)
	if ctx.Command != "" {
		results = append(results, g.gates.EvaluateCommand(ctx.Command)...)
	}
	aggregate := gates.AggregateDecision(results)

	switch aggregate {
	case gates.Block, gates.RequireConfirmation:
		reasons := ""
		evidence := map[string]string{}
		for _, r := range results {
			if r.Decision == aggregate {
				reasons += r.Reason + "; "
				for k, v := range r.Evidence {
					evidence[k] = v
				}
			}
		}
		return Decision{Allowed: false, Gate: string(aggregate), Reason: reasons, Evidence: evidence}
	case gates.Warn:
		var warnings []string
		for _, r := range results {
			if r.Decision == gates.Warn {
				warnings = append(warnings, r.Reason)
			}
		}
		return Decision{Allowed: true, Gate: "warn", Warnings: warnings}
	default:
		return Decision{Allowed: true, Gate: "allow"}
	}
}

func validateSchema(s Schema, params map[string]string) (string, bool) {
	for _, req := range s.Required {
		if _, ok := params[req]; !ok {
			return fmt.Sprintf("missing required parameter %q", req), false
		}
	}
	if s.Allowed != nil {
		for k := range params {
			if !s.Allowed[k] {
				return fmt.Sprintf("unknown parameter %q", k), false
			}
		}
	}
	totalBytes := 0
	for k, v := range params {
		totalBytes += len(k) + len(v)
	}
	if s.MaxBytes > 0 && totalBytes > s.MaxBytes {
		return fmt.Sprintf("parameters size %d exceeds limit %d", totalBytes, s.MaxBytes), false
	}
	for key, allowed := range s.Whitelist {
		v, ok := params[key]
		if !ok {
			continue
		}
		found := false
		for _, a := range allowed {
			if a == v {
				found = true
				break
			}
		}
		if !found {
			return fmt.Sprintf("value %q for %q is not in the allowed whitelist", v, key), false
		}
	}
	return "", true
}

// RecordCall updates budgets with durationMs and tokenCount, and inserts
// result into the idempotency cache under the gateway's configured TTL,
// evicting the oldest entry (FIFO) if the cache is at capacity.
func (g *Gateway) RecordCall(now int64, toolName string, params map[string]string, result string, durationMs int64, tokenCount int) error {
	key, err := idempotencyKey(toolName, params)
	if err != nil {
		return err
	}
	canon, err := canonicalParamsJSON(params)
	if err != nil {
		return err
	}

	if _, exists := g.cache[key]; !exists {
		if len(g.cacheOrder) >= g.maxCache {
			oldest := g.cacheOrder[0]
			g.cacheOrder = g.cacheOrder[1:]
			delete(g.cache, oldest)
		}
		g.cacheOrder = append(g.cacheOrder, key)
	}
	g.cache[key] = IdempotencyRecord{
		Key: key, ToolName: toolName, ParamsHash: canon,
		Result: result, Timestamp: now, TTLMs: g.cacheTTLMs,
	}

	if g.budget != nil {
		g.budget.RecordToolCall(tokenCount)
		if durationMs > 0 {
			g.budget.RecordUsage(governor.DimTimeMs, float64(durationMs))
		}
	}
	return nil
}

const cleanupIntervalMs = 30_000

func (g *Gateway) maybeCleanup(now int64) {
	if now-g.lastCleanup < cleanupIntervalMs {
		return
	}
	g.lastCleanup = now
	var kept []string
	for _, key := range g.cacheOrder {
		rec := g.cache[key]
		if now-rec.Timestamp < rec.TTLMs {
			kept = append(kept, key)
		} else {
			delete(g.cache, key)
		}
	}
	g.cacheOrder = kept
}
