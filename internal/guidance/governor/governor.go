/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package governor tracks five independent budget dimensions and emits
// threshold alerts as usage approaches each limit.
package governor

import (
	"fmt"

	"k8s.io/apimachinery/pkg/api/resource"
)

// Dimension names one of the five tracked budget axes.
type Dimension string

const (
	DimTokens       Dimension = "tokens"
	DimToolCalls    Dimension = "toolCalls"
	DimStorageBytes Dimension = "storageBytes"
	DimTimeMs       Dimension = "timeMs"
	DimCostUSD      Dimension = "costUsd"
)

var allDimensions = []Dimension{DimTokens, DimToolCalls, DimStorageBytes, DimTimeMs, DimCostUSD}

// Budget is a single dimension's usage/limit pair.
type Budget struct {
	Used  float64
	Limit float64
}

func (b Budget) fraction() float64 {
	if b.Limit <= 0 {
		return 0
	}
	return b.Used / b.Limit
}

// Rates configures cost derivation from raw usage.
type Rates struct {
	CostPerToken    float64
	CostPerToolCall float64
}

// Alert is an emitted threshold crossing for one dimension.
type Alert struct {
	Dimension Dimension
	Fraction  float64
	Message   string
}

// Governor tracks budgets for a single period.
type Governor struct {
	budgets map[Dimension]Budget
	rates   Rates
}

// ParseQuantity parses an operator-supplied byte/cost quantity string
// ("64Mi", "10.50") into a float64, using the same Quantity grammar the
// teacher's manifests use for resource fields.
func ParseQuantity(s string) (float64, error) {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, err
	}
	return q.AsApproximateFloat64(), nil
}

// New creates a Governor with the given per-dimension limits and cost
// rates.
func New(limits map[Dimension]float64, rates Rates) *Governor {
	g := &Governor{budgets: make(map[Dimension]Budget), rates: rates}
	for _, d := range allDimensions {
		g.budgets[d] = Budget{Limit: limits[d]}
	}
	return g
}

// RecordUsage adds delta usage to dimension d and returns any alerts
// triggered at the 75/90/95/100% thresholds.
func (g *Governor) RecordUsage(d Dimension, delta float64) []Alert {
	b := g.budgets[d]
	before := b.fraction()
	b.Used += delta
	g.budgets[d] = b
	after := b.fraction()

	var alerts []Alert
	for _, threshold := range []float64{0.75, 0.90, 0.95, 1.0} {
		if before < threshold && after >= threshold {
			msg := fmt.Sprintf("%s at %.0f%% of budget", d, after*100)
			if threshold >= 1.0 {
				msg = fmt.Sprintf("%s: BUDGET EXCEEDED", d)
			}
			alerts = append(alerts, Alert{Dimension: d, Fraction: after, Message: msg})
		}
	}
	return alerts
}

// RecordToolCall records one tool call consuming tokenCount tokens,
// deriving cost from the configured rates.
func (g *Governor) RecordToolCall(tokenCount int) []Alert {
	var alerts []Alert
	alerts = append(alerts, g.RecordUsage(DimToolCalls, 1)...)
	if tokenCount > 0 {
		alerts = append(alerts, g.RecordUsage(DimTokens, float64(tokenCount))...)
		cost := float64(tokenCount)*g.rates.CostPerToken + g.rates.CostPerToolCall
		alerts = append(alerts, g.RecordUsage(DimCostUSD, cost)...)
	}
	return alerts
}

// WithinBudget reports whether every dimension is under 100% usage.
func (g *Governor) WithinBudget() bool {
	for _, b := range g.budgets {
		if b.fraction() >= 1.0 {
			return false
		}
	}
	return true
}

// FirstExceeded returns the first dimension (in allDimensions order) that
// is at or beyond its limit, or ("", false) if none are.
func (g *Governor) FirstExceeded() (Dimension, bool) {
	for _, d := range allDimensions {
		if g.budgets[d].fraction() >= 1.0 {
			return d, true
		}
	}
	return "", false
}

// Snapshot returns a copy of the current budgets.
func (g *Governor) Snapshot() map[Dimension]Budget {
	out := make(map[Dimension]Budget, len(g.budgets))
	for k, v := range g.budgets {
		out[k] = v
	}
	return out
}

// ResetPeriod zeros all usage counters, keeping configured limits.
func (g *Governor) ResetPeriod() {
	for d, b := range g.budgets {
		g.budgets[d] = Budget{Limit: b.Limit}
	}
}
