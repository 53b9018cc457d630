/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package continuegate decides, step by step, whether an agent loop should
// keep going.
package continuegate

// Decision is the continue gate's verdict for one step.
type Decision string

const (
	DecisionContinue   Decision = "continue"
	DecisionCheckpoint Decision = "checkpoint"
	DecisionThrottle   Decision = "throttle"
	DecisionPause      Decision = "pause"
	DecisionStop       Decision = "stop"
)

// BudgetRemaining names one budget dimension's remaining fraction.
type BudgetRemaining struct {
	Dimension string
	Remaining float64
}

// TokenSample is one step's token usage, used for the slope regression.
type TokenSample struct {
	Step   int
	Tokens float64
}

// StepContext carries everything evaluate needs for one step.
type StepContext struct {
	StepNumber        int
	CoherenceScore    float64
	MinCoherence      float64
	MaxConsecutiveSteps int
	LastCheckpointStep int
	CheckpointInterval int
	Budgets           []BudgetRemaining
	ReworkCount       int
	MaxReworkRatio    float64
	UncertaintyScore  float64
	MaxUncertainty    float64
	RecentTokens      []TokenSample // most recent, at most 10
	SlopeThreshold    float64
}

// ContinueDecision is the gate's output.
type ContinueDecision struct {
	Decision Decision
	Reasons  []string
	Metrics  map[string]float64
}

// Gate evaluates step contexts, with a cooldown between full evaluations.
type Gate struct {
	cooldownMs      int64
	lastEvaluatedAt int64
	history         []ContinueDecision
}

const defaultCooldownMs = 5000
const historyCap = 10_000

// New creates a Gate with the given cooldown (0 uses the 5s default).
func New(cooldownMs int64) *Gate {
	if cooldownMs <= 0 {
		cooldownMs = defaultCooldownMs
	}
	return &Gate{cooldownMs: cooldownMs}
}

// Evaluate runs the full decision cascade, first-hit-wins.
func (g *Gate) Evaluate(ctx StepContext) ContinueDecision {
	metrics := map[string]float64{"coherenceScore": ctx.CoherenceScore}

	if ctx.CoherenceScore < ctx.MinCoherence {
		return g.record(ContinueDecision{Decision: DecisionStop, Reasons: []string{"coherence score fell below the configured minimum"}, Metrics: metrics})
	}
	if ctx.MaxConsecutiveSteps > 0 && ctx.StepNumber >= ctx.MaxConsecutiveSteps &&
		ctx.StepNumber-ctx.LastCheckpointStep >= ctx.CheckpointInterval {
		return g.record(ContinueDecision{Decision: DecisionStop, Reasons: []string{"reached the maximum consecutive steps without a checkpoint"}, Metrics: metrics})
	}
	for _, b := range ctx.Budgets {
		if b.Remaining <= 0 {
			return g.record(ContinueDecision{Decision: DecisionStop, Reasons: []string{"budget exhausted: " + b.Dimension}, Metrics: metrics})
		}
	}
	if ctx.MaxReworkRatio > 0 && ctx.StepNumber > 0 && float64(ctx.ReworkCount)/float64(ctx.StepNumber) > ctx.MaxReworkRatio {
		return g.record(ContinueDecision{Decision: DecisionPause, Reasons: []string{"rework ratio exceeds the configured maximum"}, Metrics: metrics})
	}
	if ctx.MaxUncertainty > 0 && ctx.UncertaintyScore > ctx.MaxUncertainty {
		return g.record(ContinueDecision{Decision: DecisionPause, Reasons: []string{"uncertainty score exceeds the configured maximum"}, Metrics: metrics})
	}

	slope := tokenSlope(ctx.RecentTokens)
	metrics["budgetSlope"] = slope
	if ctx.SlopeThreshold > 0 && slope > ctx.SlopeThreshold {
		return g.record(ContinueDecision{Decision: DecisionThrottle, Reasons: []string{"token usage is trending up faster than the configured threshold"}, Metrics: metrics})
	}

	if ctx.CheckpointInterval > 0 && ctx.StepNumber-ctx.LastCheckpointStep >= ctx.CheckpointInterval {
		return g.record(ContinueDecision{Decision: DecisionCheckpoint, Reasons: []string{"checkpoint interval reached"}, Metrics: metrics})
	}

	return g.record(ContinueDecision{Decision: DecisionContinue, Metrics: metrics})
}

// EvaluateWithHistory enforces a cooldown between full evaluations but
// never short-circuits the critical stop checks (coherence collapse,
// budget exhaustion) even within the cooldown window.
func (g *Gate) EvaluateWithHistory(now int64, ctx StepContext) ContinueDecision {
	if ctx.CoherenceScore < ctx.MinCoherence {
		return g.record(ContinueDecision{Decision: DecisionStop, Reasons: []string{"coherence score fell below the configured minimum"}})
	}
	for _, b := range ctx.Budgets {
		if b.Remaining <= 0 {
			return g.record(ContinueDecision{Decision: DecisionStop, Reasons: []string{"budget exhausted: " + b.Dimension}})
		}
	}

	if now-g.lastEvaluatedAt < g.cooldownMs {
		return g.record(ContinueDecision{Decision: DecisionContinue, Reasons: []string{"within cooldown, skipping full evaluation"}})
	}
	g.lastEvaluatedAt = now
	return g.Evaluate(ctx)
}

func (g *Gate) record(d ContinueDecision) ContinueDecision {
	g.history = append(g.history, d)
	if len(g.history) > historyCap {
		g.history = g.history[len(g.history)-historyCap:]
	}
	return d
}

// History returns a copy of the bounded decision history.
func (g *Gate) History() []ContinueDecision {
	out := make([]ContinueDecision, len(g.history))
	copy(out, g.history)
	return out
}

// tokenSlope computes the ordinary-least-squares slope of tokens against
// step number over the supplied samples (at most the most recent 10).
func tokenSlope(samples []TokenSample) float64 {
	if len(samples) > 10 {
		samples = samples[len(samples)-10:]
	}
	n := float64(len(samples))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for _, s := range samples {
		x := float64(s.Step)
		y := s.Tokens
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
