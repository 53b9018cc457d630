/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package config loads guidance-core tunables. Sources, in priority order:
// environment variables > config file > defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"sigs.k8s.io/yaml"
)

// Config holds every tunable the guidance core needs at startup.
type Config struct {
	// LedgerDir is where the run ledger persists its NDJSON event log.
	LedgerDir string `json:"ledgerDir"`

	// CompactionSchedule is a cron expression for periodic ledger compaction.
	CompactionSchedule string `json:"compactionSchedule"`
	// CompactionMaxEvents caps the ledger after compaction.
	CompactionMaxEvents int `json:"compactionMaxEvents"`

	// CoherenceWindow is the rolling window size for coherence scoring.
	CoherenceWindow int `json:"coherenceWindow"`
	// EscalationThreshold is the overall-coherence cutoff above which
	// escalation is permitted.
	EscalationThreshold float64 `json:"escalationThreshold"`

	// BudgetLimits maps a governor dimension name to its limit.
	BudgetLimits map[string]string `json:"budgetLimits"`
	// CostPerToken and CostPerToolCall feed the economic governor's rate table.
	CostPerToken    float64 `json:"costPerToken"`
	CostPerToolCall float64 `json:"costPerToolCall"`

	// EditSizeSoftLines / EditSizeHardLines configure the edit-size gate.
	EditSizeSoftLines int `json:"editSizeSoftLines"`
	EditSizeHardLines int `json:"editSizeHardLines"`

	// ToolAllowlist lists the tool names the deterministic gateway permits.
	ToolAllowlist []string `json:"toolAllowlist"`
	// SensitiveTools lists tool names that require confirmation even when
	// allowlisted.
	SensitiveTools []string `json:"sensitiveTools"`

	// IdempotencyCacheSize bounds the gateway's idempotency cache.
	IdempotencyCacheSize int `json:"idempotencyCacheSize"`

	// ContinueGateCooldownMs is the minimum gap between full continue-gate
	// evaluations.
	ContinueGateCooldownMs int64 `json:"continueGateCooldownMs"`

	// MemoryWriteRateLimitPerMinute bounds writes per agent per namespace.
	MemoryWriteRateLimitPerMinute int `json:"memoryWriteRateLimitPerMinute"`

	// LogLevel controls the structured logger's verbosity (debug, info,
	// warn, error).
	LogLevel string `json:"logLevel"`

	// OCIRegistry is the default registry host for bundle pulls.
	OCIRegistry string `json:"ociRegistry,omitempty"`

	// LedgerMirrorDSN, if set, enables a SQL mirror of the ledger
	// (postgres:// or mysql DSN syntax, driver inferred from scheme/prefix).
	LedgerMirrorDSN string `json:"ledgerMirrorDsn,omitempty"`
}

// Default returns configuration with sensible defaults.
func Default() Config {
	return Config{
		LedgerDir:                     "/var/lib/guidance/ledger",
		CompactionSchedule:            "@every 1h",
		CompactionMaxEvents:           100_000,
		CoherenceWindow:               20,
		EscalationThreshold:           0.9,
		BudgetLimits:                  map[string]string{"tokens": "1000000", "toolCalls": "10000"},
		CostPerToken:                  0,
		CostPerToolCall:               0,
		EditSizeSoftLines:             200,
		EditSizeHardLines:             1000,
		IdempotencyCacheSize:          10_000,
		ContinueGateCooldownMs:        5000,
		MemoryWriteRateLimitPerMinute: 60,
		LogLevel:                      "info",
	}
}

// Load reads configuration from a file (JSON or YAML, detected by
// extension; YAML is converted to JSON via sigs.k8s.io/yaml so one decoder
// handles both), then overlays environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("GUIDANCE_LEDGER_DIR"); v != "" {
		cfg.LedgerDir = v
	}
	if v := os.Getenv("GUIDANCE_COMPACTION_SCHEDULE"); v != "" {
		cfg.CompactionSchedule = v
	}
	if v := os.Getenv("GUIDANCE_COMPACTION_MAX_EVENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CompactionMaxEvents = n
		}
	}
	if v := os.Getenv("GUIDANCE_COHERENCE_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CoherenceWindow = n
		}
	}
	if v := os.Getenv("GUIDANCE_ESCALATION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.EscalationThreshold = f
		}
	}
	if v := os.Getenv("GUIDANCE_EDIT_SOFT_LINES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EditSizeSoftLines = n
		}
	}
	if v := os.Getenv("GUIDANCE_EDIT_HARD_LINES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EditSizeHardLines = n
		}
	}
	if v := os.Getenv("GUIDANCE_IDEMPOTENCY_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.IdempotencyCacheSize = n
		}
	}
	if v := os.Getenv("GUIDANCE_CONTINUE_COOLDOWN_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ContinueGateCooldownMs = n
		}
	}
	if v := os.Getenv("GUIDANCE_MEMORY_WRITE_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MemoryWriteRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("GUIDANCE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GUIDANCE_OCI_REGISTRY"); v != "" {
		cfg.OCIRegistry = v
	}
	if v := os.Getenv("GUIDANCE_LEDGER_MIRROR_DSN"); v != "" {
		cfg.LedgerMirrorDSN = v
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() Config {
	cfg, _ := Load("")
	return cfg
}

// Save writes configuration to a YAML file.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0640)
}

// HasLedgerMirror reports whether a SQL ledger mirror is configured.
func (c Config) HasLedgerMirror() bool {
	return c.LedgerMirrorDSN != ""
}
