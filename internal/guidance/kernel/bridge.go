/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package kernel

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Bridge abstracts the kernel primitives behind an interface with two
// interchangeable implementations: a native one and a fallback one. Callers
// must only rely on value equality of the returned hashes across
// implementations, never on identity.
type Bridge interface {
	SHA256(b []byte) Hash
	HMACSHA256(key, b []byte) Hash
	ContentHash(v interface{}) (Hash, error)
}

// NativeBridge is the default Bridge, backed directly by this package's
// functions.
type NativeBridge struct{}

func (NativeBridge) SHA256(b []byte) Hash                      { return SHA256(b) }
func (NativeBridge) HMACSHA256(key, b []byte) Hash              { return HMACSHA256(key, b) }
func (NativeBridge) ContentHash(v interface{}) (Hash, error)    { return ContentHash(v) }

// FallbackBridge is used when the native bridge is unavailable. It must
// remain behaviorally identical to NativeBridge for every input; it exists
// as a distinct type so callers exercise the interface boundary rather than
// a concrete struct, matching the WASM/JS dual-implementation contract this
// core is modeled on.
type FallbackBridge struct{}

func (FallbackBridge) SHA256(b []byte) Hash                   { return SHA256(b) }
func (FallbackBridge) HMACSHA256(key, b []byte) Hash           { return HMACSHA256(key, b) }
func (FallbackBridge) ContentHash(v interface{}) (Hash, error) { return ContentHash(v) }

var _ Bridge = NativeBridge{}
var _ Bridge = FallbackBridge{}

// DeriveDelegationKey derives a per-delegation signing key from a root
// secret and a child capability ID via HKDF-SHA256, so each delegated
// capability can sign attestations without re-deriving from the root key on
// every call. info binds additional constraint material (e.g. an
// expiration or action set digest) into the derived key.
func DeriveDelegationKey(root []byte, childID string, info ...byte) ([]byte, error) {
	salt := []byte("guidance-capability-delegation")
	bound := append([]byte(childID+"|"), info...)
	r := hkdf.New(sha256.New, root, salt, bound)
	out := make([]byte, 32)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
