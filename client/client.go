// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package client implements the per-client resource model of spec §4.C and
// §4.I: namespaced keystore, certstore, counterstore, and filestore wrappers
// over a shared store.Store, plus the server-side directory-iteration
// cursors that make paginated requests stateless on the wire.
package client

import (
	"keyforge.io/keyforge"
	"keyforge.io/store"
)

// Context is the per-connected-client state the broker keeps from attach to
// detach: its namespace path, its backend chain, its authenticated PIN
// kind, its key-creation policy, and its two directory cursors. It owns its
// cursors and auth-runtime exclusively; the underlying Store is shared by
// reference but every access is routed through the namespace wrappers below
// so no cross-client aliasing is possible.
type Context struct {
	ID       keyforge.ClientID
	st       store.Store
	Backends []keyforge.BackendSelector

	// CreationPolicy is applied to key material this client generates.
	CreationPolicy keyforge.Policy

	// Authenticated is the PIN kind the client's session currently holds,
	// or nil if unauthenticated.
	Authenticated *keyforge.AuthKind

	dir      *dirCursor
	dirFiles *dirFilesCursor
}

// New returns a fresh Context rooted at id over st. A new Context has no
// backends configured, which per spec §4.F is equivalent to [Software].
func New(id keyforge.ClientID, st store.Store) *Context {
	return &Context{ID: id, st: st}
}

// prefix is the namespace every blob this client touches is rooted under.
func (c *Context) prefix() string {
	return string(c.ID)
}

// Store returns the shared backing store this Context's facades are routed
// through, for callers (such as Attest) that need to reach a different
// client's fixed namespace.
func (c *Context) Store() store.Store { return c.st }

// invalidateCursors discards both directory cursors, per spec §4.I: "any
// mutating filesystem operation on the same client invalidates active
// cursors".
func (c *Context) invalidateCursors() {
	c.dir = nil
	c.dirFiles = nil
}

// Keystore returns the namespaced key-material facade for this client.
func (c *Context) Keystore() Keystore { return Keystore{c} }

// Certstore returns the namespaced certificate facade for this client.
func (c *Context) Certstore() Certstore { return Certstore{c} }

// Counterstore returns the namespaced monotonic-counter facade for this
// client.
func (c *Context) Counterstore() Counterstore { return Counterstore{c} }

// Filestore returns the namespaced arbitrary-file facade for this client.
func (c *Context) Filestore() Filestore { return Filestore{c} }

// attnContext returns a Context rooted at the fixed "attn" namespace spec
// §4.E reserves for the attestation key, independent of any caller.
func attnContext(st store.Store) *Context {
	return New("attn", st)
}

// AttestationKeystore returns the keystore over the fixed attestation
// namespace, used by the Attest operation regardless of which client asked.
func AttestationKeystore(st store.Store) Keystore {
	return attnContext(st).Keystore()
}
