/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package capability implements the capability algebra: typed capability
// objects with grant/restrict/delegate/revoke/compose/subset operations
// over an arena-and-index store so delegation trees cascade-revoke without
// cyclic references.
package capability

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrNotDelegatable is returned by Delegate when the parent capability
// cannot be delegated.
var ErrNotDelegatable = errors.New("capability: not delegatable")

// ErrRevoked is returned by Delegate/Check when the capability is revoked.
var ErrRevoked = errors.New("capability: revoked")

// ErrExpired is returned by Delegate/Check when the capability has expired.
var ErrExpired = errors.New("capability: expired")

// ErrScopeMismatch is returned by Compose when scopes or resources differ.
var ErrScopeMismatch = errors.New("capability: scope or resource mismatch")

// Scope enumerates the kinds of resource a capability can govern.
type Scope string

const (
	ScopeTool    Scope = "tool"
	ScopeMemory  Scope = "memory"
	ScopeNetwork Scope = "network"
	ScopeFile    Scope = "file"
	ScopeModel   Scope = "model"
	ScopeSystem  Scope = "system"
)

// ConstraintType enumerates the kinds of constraint a capability can carry.
type ConstraintType string

const (
	ConstraintRateLimit       ConstraintType = "rate-limit"
	ConstraintBudget          ConstraintType = "budget"
	ConstraintTimeWindow      ConstraintType = "time-window"
	ConstraintCondition       ConstraintType = "condition"
	ConstraintScopeRestriction ConstraintType = "scope-restriction"
)

// Constraint is a single typed restriction on a capability's use.
type Constraint struct {
	Type   ConstraintType
	Params map[string]interface{}
}

// Attestation is an append-only claim about a capability's use.
type Attestation struct {
	AttesterID string
	AttestedAt int64
	Claim      string
	Evidence   string
	Signature  string
}

// Capability is a grant of actions over a resource, optionally delegated
// from a parent.
type Capability struct {
	ID                 string
	Scope              Scope
	Resource           string
	Actions            map[string]bool
	Constraints        []Constraint
	GrantedBy          string
	GrantedTo          string
	GrantedAt          int64
	ExpiresAt          *int64
	Delegatable        bool
	Revoked            bool
	RevokedAt          *int64
	Attestations       []Attestation
	ParentCapabilityID *string
}

func (c Capability) isExpired(now int64) bool {
	return c.ExpiresAt != nil && now >= *c.ExpiresAt
}

// GrantParams describes a new root capability.
type GrantParams struct {
	Scope       Scope
	Resource    string
	Actions     []string
	Constraints []Constraint
	GrantedBy   string
	GrantedTo   string
	ExpiresAt   *int64
	Delegatable bool
}

// Restriction narrows a capability: Actions intersect with the existing
// set (nil means "no narrowing"), Constraints are unioned, ExpiresAt takes
// the minimum, Delegatable can only move false.
type Restriction struct {
	Actions     []string
	Constraints []Constraint
	ExpiresAt   *int64
	Delegatable *bool
}

// Clock returns the current time in ms since epoch.
type Clock func() int64

// Algebra owns the capability graph: an arena of capabilities keyed by ID,
// plus a parent->children index enabling cascade revoke without cyclic
// object references.
type Algebra struct {
	mu       sync.Mutex
	clock    Clock
	byID     map[string]*Capability
	children map[string]map[string]bool // parentID -> set of childIDs
}

// New creates an empty Algebra.
func New(clock Clock) *Algebra {
	return &Algebra{
		clock:    clock,
		byID:     make(map[string]*Capability),
		children: make(map[string]map[string]bool),
	}
}

func toActionSet(actions []string) map[string]bool {
	m := make(map[string]bool, len(actions))
	for _, a := range actions {
		m[a] = true
	}
	return m
}

func actionSetToSlice(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Grant creates a new root capability (ParentCapabilityID is nil).
func (a *Algebra) Grant(p GrantParams) *Capability {
	a.mu.Lock()
	defer a.mu.Unlock()

	c := &Capability{
		ID:          uuid.NewString(),
		Scope:       p.Scope,
		Resource:    p.Resource,
		Actions:     toActionSet(p.Actions),
		Constraints: append([]Constraint{}, p.Constraints...),
		GrantedBy:   p.GrantedBy,
		GrantedTo:   p.GrantedTo,
		GrantedAt:   a.clock(),
		ExpiresAt:   p.ExpiresAt,
		Delegatable: p.Delegatable,
	}
	a.byID[c.ID] = c
	return c.copy()
}

// Restrict narrows cap by partial and returns a new capability (same ID
// lineage is not implied — restrict mutates a copy registered under a fresh
// ID so callers never share state with the Algebra's internal copy).
func (a *Algebra) Restrict(capID string, partial Restriction) (*Capability, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	orig, ok := a.byID[capID]
	if !ok {
		return nil, errNotFound(capID)
	}

	narrowed := orig.copy()
	if partial.Actions != nil {
		restricted := toActionSet(partial.Actions)
		for action := range narrowed.Actions {
			if !restricted[action] {
				delete(narrowed.Actions, action)
			}
		}
	}
	narrowed.Constraints = append(narrowed.Constraints, partial.Constraints...)
	narrowed.ExpiresAt = minExpiry(narrowed.ExpiresAt, partial.ExpiresAt)
	if partial.Delegatable != nil && !*partial.Delegatable {
		narrowed.Delegatable = false
	}

	a.byID[narrowed.ID] = narrowed
	return narrowed.copy(), nil
}

// Delegate produces a child capability granted by cap.GrantedTo to toAgent,
// requiring the parent be delegatable, non-revoked, and non-expired.
func (a *Algebra) Delegate(capID, toAgent string, partial *Restriction) (*Capability, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	parent, ok := a.byID[capID]
	if !ok {
		return nil, errNotFound(capID)
	}
	now := a.clock()
	if parent.Revoked {
		return nil, ErrRevoked
	}
	if parent.isExpired(now) {
		return nil, ErrExpired
	}
	if !parent.Delegatable {
		return nil, ErrNotDelegatable
	}

	child := parent.copy()
	child.ID = uuid.NewString()
	child.GrantedBy = parent.GrantedTo
	child.GrantedTo = toAgent
	child.GrantedAt = now
	child.Revoked = false
	child.RevokedAt = nil
	child.Attestations = nil
	pid := parent.ID
	child.ParentCapabilityID = &pid

	if partial != nil {
		if partial.Actions != nil {
			restricted := toActionSet(partial.Actions)
			for action := range child.Actions {
				if !restricted[action] {
					delete(child.Actions, action)
				}
			}
		}
		child.Constraints = append(child.Constraints, partial.Constraints...)
		child.ExpiresAt = minExpiry(child.ExpiresAt, partial.ExpiresAt)
		if partial.Delegatable != nil && !*partial.Delegatable {
			child.Delegatable = false
		}
	}

	a.byID[child.ID] = child
	if a.children[parent.ID] == nil {
		a.children[parent.ID] = make(map[string]bool)
	}
	a.children[parent.ID][child.ID] = true

	return child.copy(), nil
}

// Revoke marks id revoked and cascades to every descendant via DFS.
func (a *Algebra) Revoke(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.byID[id]; !ok {
		return errNotFound(id)
	}
	now := a.clock()
	a.revokeCascade(id, now)
	return nil
}

func (a *Algebra) revokeCascade(id string, now int64) {
	c, ok := a.byID[id]
	if !ok || c.Revoked {
		return
	}
	c.Revoked = true
	t := now
	c.RevokedAt = &t
	for childID := range a.children[id] {
		a.revokeCascade(childID, now)
	}
}

// Expire sets id's expiresAt to now.
func (a *Algebra) Expire(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.byID[id]
	if !ok {
		return errNotFound(id)
	}
	now := a.clock()
	c.ExpiresAt = &now
	return nil
}

// Attest appends an attestation to id's append-only log.
func (a *Algebra) Attest(id string, att Attestation) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.byID[id]
	if !ok {
		return errNotFound(id)
	}
	c.Attestations = append(c.Attestations, att)
	return nil
}

// Compose produces a fresh root capability from two capabilities sharing
// the same scope and resource: actions intersect, constraints union,
// expiry takes the minimum, delegatable is the conjunction.
func (a *Algebra) Compose(id1, id2 string) (*Capability, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c1, ok := a.byID[id1]
	if !ok {
		return nil, errNotFound(id1)
	}
	c2, ok := a.byID[id2]
	if !ok {
		return nil, errNotFound(id2)
	}
	if c1.Scope != c2.Scope || c1.Resource != c2.Resource {
		return nil, ErrScopeMismatch
	}

	actions := map[string]bool{}
	for action := range c1.Actions {
		if c2.Actions[action] {
			actions[action] = true
		}
	}

	composed := &Capability{
		ID:          uuid.NewString(),
		Scope:       c1.Scope,
		Resource:    c1.Resource,
		Actions:     actions,
		Constraints: append(append([]Constraint{}, c1.Constraints...), c2.Constraints...),
		GrantedAt:   a.clock(),
		ExpiresAt:   minExpiry(c1.ExpiresAt, c2.ExpiresAt),
		Delegatable: c1.Delegatable && c2.Delegatable,
	}
	a.byID[composed.ID] = composed
	return composed.copy(), nil
}

// IsSubset reports whether inner is a subset of outer: same scope and
// resource, inner's actions a subset of outer's, and inner's expiry no
// later than outer's (nil expiry means "no expiry", the widest case).
func IsSubset(inner, outer *Capability) bool {
	if inner.Scope != outer.Scope || inner.Resource != outer.Resource {
		return false
	}
	for action := range inner.Actions {
		if !outer.Actions[action] && !outer.Actions["*"] {
			return false
		}
	}
	if outer.ExpiresAt == nil {
		return true
	}
	if inner.ExpiresAt == nil {
		return false
	}
	return *inner.ExpiresAt <= *outer.ExpiresAt
}

// CheckContext carries the evaluation-time facts constraints are judged
// against.
type CheckContext struct {
	Now           int64
	CurrentUsage  *float64
	BudgetUsed    *float64
	Values        map[string]interface{}
	TargetResource string
}

// Check reports whether agentID holds a non-revoked, non-expired capability
// for scope/resource/action whose constraints all evaluate true against
// ctx.
func (a *Algebra) Check(agentID string, scope Scope, resource, action string, ctx CheckContext) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := ctx.Now
	if now == 0 {
		now = a.clock()
	}

	for _, c := range a.byID {
		if c.GrantedTo != agentID || c.Revoked || c.isExpired(now) {
			continue
		}
		if c.Scope != scope {
			continue
		}
		if c.Resource != resource && c.Resource != "*" {
			continue
		}
		if !c.Actions[action] && !c.Actions["*"] {
			continue
		}
		if allConstraintsSatisfied(c.Constraints, ctx) {
			return true
		}
	}
	return false
}

func allConstraintsSatisfied(constraints []Constraint, ctx CheckContext) bool {
	for _, c := range constraints {
		if !constraintSatisfied(c, ctx) {
			return false
		}
	}
	return true
}

func constraintSatisfied(c Constraint, ctx CheckContext) bool {
	switch c.Type {
	case ConstraintTimeWindow:
		start, _ := c.Params["start"].(int64)
		end, _ := c.Params["end"].(int64)
		return ctx.Now >= start && ctx.Now <= end
	case ConstraintRateLimit:
		max, _ := c.Params["max"].(float64)
		if ctx.CurrentUsage == nil {
			return true
		}
		return *ctx.CurrentUsage < max
	case ConstraintBudget:
		limit, _ := c.Params["limit"].(float64)
		if ctx.BudgetUsed == nil {
			return true
		}
		return *ctx.BudgetUsed < limit
	case ConstraintCondition:
		key, _ := c.Params["key"].(string)
		if ctx.Values == nil {
			return false
		}
		val, present := ctx.Values[key]
		if want, ok := c.Params["value"]; ok {
			return present && val == want
		}
		return present && truthy(val)
	case ConstraintScopeRestriction:
		pattern, _ := c.Params["pattern"].(string)
		return len(ctx.TargetResource) >= len(pattern) && ctx.TargetResource[:len(pattern)] == pattern
	default:
		return true
	}
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}

func minExpiry(a, b *int64) *int64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *a < *b {
		return a
	}
	return b
}

func (c *Capability) copy() *Capability {
	cp := *c
	cp.Actions = make(map[string]bool, len(c.Actions))
	for k, v := range c.Actions {
		cp.Actions[k] = v
	}
	cp.Constraints = append([]Constraint{}, c.Constraints...)
	cp.Attestations = append([]Attestation{}, c.Attestations...)
	if c.ExpiresAt != nil {
		v := *c.ExpiresAt
		cp.ExpiresAt = &v
	}
	if c.RevokedAt != nil {
		v := *c.RevokedAt
		cp.RevokedAt = &v
	}
	return &cp
}

// Get returns a copy of the capability with the given ID.
func (a *Algebra) Get(id string) (*Capability, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.byID[id]
	if !ok {
		return nil, false
	}
	return c.copy(), true
}

type notFoundError struct{ id string }

func (e notFoundError) Error() string { return "capability: not found: " + e.id }

func errNotFound(id string) error { return notFoundError{id} }
