/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package kernel implements the pure, reentrant primitives the rest of the
// guidance core builds on: content hashing, HMAC signing, and pattern
// scanning for destructive commands and leaked secrets. Every function here
// is side-effect free and safe to call from any goroutine.
package kernel

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"regexp"
	"sort"
)

// Hash is a 32-byte SHA-256 digest.
type Hash [32]byte

// SHA256 returns the SHA-256 digest of b.
func SHA256(b []byte) Hash {
	return sha256.Sum256(b)
}

// HMACSHA256 returns the HMAC-SHA-256 of b under key.
func HMACSHA256(key, b []byte) Hash {
	mac := hmac.New(sha256.New, key)
	mac.Write(b)
	var h Hash
	copy(h[:], mac.Sum(nil))
	return h
}

// ContentHash computes the canonical-JSON SHA-256 digest of v: map keys are
// sorted at every level before serialization, so two values with the same
// logical content always hash identically regardless of field order.
func ContentHash(v interface{}) (Hash, error) {
	canon, err := canonicalize(v)
	if err != nil {
		return Hash{}, err
	}
	b, err := json.Marshal(canon)
	if err != nil {
		return Hash{}, err
	}
	return SHA256(b), nil
}

// canonicalize deep-copies v into a representation whose map keys marshal
// in sorted order. json.Marshal already sorts map[string]T keys, but nested
// map[string]interface{} produced by round-tripping through
// encoding/json requires a normalization pass to guarantee stability across
// differently-ordered input structs.
func canonicalize(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return normalize(generic), nil
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(orderedMap, 0, len(keys))
		for _, k := range keys {
			out = append(out, kv{k, normalize(t[k])})
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return t
	}
}

type kv struct {
	Key string
	Val interface{}
}

// orderedMap marshals as a JSON object with keys in insertion order, which
// normalize() has already sorted lexicographically.
type orderedMap []kv

func (m orderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, e := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(e.Val)
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// SecretKind names a category of leaked credential. Matches never carry the
// matched text, only the kind, so evidence objects never echo secrets.
type SecretKind string

const (
	SecretAWSAccessKey  SecretKind = "aws-access-key"
	SecretBearerToken   SecretKind = "bearer-token"
	SecretPEMPrivateKey SecretKind = "pem-private-key"
	SecretGitHubToken   SecretKind = "github-token"
	SecretJWT           SecretKind = "jwt"
)

var secretPatterns = []struct {
	kind SecretKind
	re   *regexp.Regexp
}{
	{SecretAWSAccessKey, regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{SecretPEMPrivateKey, regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`)},
	{SecretGitHubToken, regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{20,}\b`)},
	{SecretBearerToken, regexp.MustCompile(`(?i)(api_key|token|secret|password)\s*[:=]\s*["']?[A-Za-z0-9_\-]{20,}["']?`)},
	{SecretJWT, regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`)},
}

// ScanSecrets returns the kinds of secret matched in text, in the order the
// patterns are checked. An empty slice means no secret-shaped text was found.
func ScanSecrets(text string) []SecretKind {
	var found []SecretKind
	for _, p := range secretPatterns {
		if p.re.MatchString(text) {
			found = append(found, p.kind)
		}
	}
	return found
}

// DestructiveKind names a category of destructive command.
type DestructiveKind string

const (
	DestructiveRMRF        DestructiveKind = "rm-rf"
	DestructiveMkfs        DestructiveKind = "mkfs"
	DestructiveDDDevice    DestructiveKind = "dd-to-device"
	DestructiveDropTable   DestructiveKind = "drop-table"
	DestructiveDropDB      DestructiveKind = "drop-database"
	DestructiveTruncate    DestructiveKind = "truncate"
	DestructiveForcePush   DestructiveKind = "git-force-push"
	DestructiveChmodRecurs DestructiveKind = "chmod-777-root"
)

var destructivePatterns = []struct {
	kind DestructiveKind
	re   *regexp.Regexp
}{
	{DestructiveRMRF, regexp.MustCompile(`\brm\s+-rf\s+(/($|[^/ ])|~/?\s|~$)`)},
	{DestructiveMkfs, regexp.MustCompile(`\bmkfs\b`)},
	{DestructiveDDDevice, regexp.MustCompile(`\bdd\s+if=\S+\s+of=/dev/\S+`)},
	{DestructiveDropTable, regexp.MustCompile(`(?i)\bDROP\s+TABLE\b`)},
	{DestructiveDropDB, regexp.MustCompile(`(?i)\bDROP\s+DATABASE\b`)},
	{DestructiveTruncate, regexp.MustCompile(`(?i)\bTRUNCATE\b`)},
	{DestructiveForcePush, regexp.MustCompile(`\bgit\s+push\s+(--force|-f)\b`)},
	{DestructiveChmodRecurs, regexp.MustCompile(`\bchmod\s+-R\s+777\s+/`)},
}

// DetectDestructive returns the first destructive pattern matched in
// command, or ("", false) if none match.
func DetectDestructive(command string) (DestructiveKind, bool) {
	for _, p := range destructivePatterns {
		if p.re.MatchString(command) {
			return p.kind, true
		}
	}
	return "", false
}

// Op is one unit of work for BatchProcess: a command or text to scan.
type Op struct {
	Command string
	Text    string
}

// OpResult is the outcome of one Op.
type OpResult struct {
	Destructive     DestructiveKind
	IsDestructive   bool
	Secrets         []SecretKind
}

// BatchProcess evaluates every op and returns results in the same order,
// so a host can batch an entire event's worth of commands/texts into a
// single call instead of crossing the kernel boundary once per operation.
func BatchProcess(ops []Op) []OpResult {
	results := make([]OpResult, len(ops))
	for i, op := range ops {
		kind, ok := DetectDestructive(op.Command)
		results[i] = OpResult{
			Destructive:   kind,
			IsDestructive: ok,
			Secrets:       ScanSecrets(op.Text),
		}
	}
	return results
}
