// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package backend implements the backend chain walk and extension routing
// of spec §4.F: each client context names an ordered list of backend
// selectors, and dispatch tries each in turn until one produces something
// other than the RequestNotAvailable sentinel.
package backend

import (
	"sync"

	"keyforge.io/client"
	"keyforge.io/errors"
	"keyforge.io/keyforge"
	"keyforge.io/service"
	"keyforge.io/wire"
)

// Backend is anything that can answer a normal request. Software
// (keyforge.io/service.Software) is the universal built-in implementation;
// custom backends are registered under a small integer id the way a
// client's BackendSelector names them. Every backend shares the same
// platform Resources (PRNG root, UI/entropy traits) as Software, so a
// custom backend can fork its own DRBG child or drive the UI the same
// way the built-in one does.
type Backend interface {
	// Request answers one request, or returns a RequestNotAvailable
	// *errors.Error packed as an Outcome to defer to the next backend
	// in the chain.
	Request(cc *client.Context, res *service.Resources, tag wire.Tag, payload []byte) wire.Outcome
}

// Extension is implemented by a backend that also owns one or more
// extension sub-protocols, keyed by an extension id it assigns itself.
type Extension interface {
	ExtensionRequest(cc *client.Context, res *service.Resources, extID uint8, payload []byte) wire.Outcome
}

var (
	mu       sync.Mutex
	customs  = make(map[uint8]Backend)
	software Backend
)

// RegisterSoftware installs the built-in default backend that the
// Software selector names. It must be called exactly once at startup.
func RegisterSoftware(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	software = b
}

// RegisterCustom installs a backend under a custom id, for selection via
// keyforge.Custom(id). Registering the same id twice panics.
func RegisterCustom(id uint8, b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if _, present := customs[id]; present {
		panic("backend: custom id already registered")
	}
	customs[id] = b
}

func lookup(sel keyforge.BackendSelector) Backend {
	mu.Lock()
	defer mu.Unlock()
	if sel.Kind == keyforge.BackendSoftware {
		return software
	}
	return customs[sel.CustomID]
}

// effectiveChain returns cc's configured backend list, or [Software] if
// none is configured (spec §4.F: "An empty list is equivalent to
// [Software]").
func effectiveChain(cc *client.Context) []keyforge.BackendSelector {
	if len(cc.Backends) == 0 {
		return []keyforge.BackendSelector{keyforge.Software()}
	}
	return cc.Backends
}

// Dispatch walks cc's backend chain left to right, invoking each
// backend's Request until one returns something other than
// RequestNotAvailable.
func Dispatch(cc *client.Context, res *service.Resources, tag wire.Tag, payload []byte) wire.Outcome {
	for _, sel := range effectiveChain(cc) {
		b := lookup(sel)
		if b == nil {
			continue
		}
		out := b.Request(cc, res, tag, payload)
		if out.Err != nil && errors.Is(errors.RequestNotAvailable, out.Err) {
			continue
		}
		return out
	}
	return wire.PackErr(errors.E("backend.Dispatch", errors.RequestNotAvailable))
}

// DispatchExtension routes an ExtensionRequest to the backend that owns
// backendID, then to its ExtensionRequest method for extID. The dispatcher
// itself knows nothing about the extension's own request/reply shapes;
// Payload carries that sub-protocol's own encoding verbatim.
func DispatchExtension(cc *client.Context, res *service.Resources, backendID, extID uint8, payload []byte) wire.Outcome {
	const op = "backend.DispatchExtension"
	sel := keyforge.Custom(backendID)
	if backendID == 0 {
		sel = keyforge.Software()
	}
	b := lookup(sel)
	if b == nil {
		return wire.PackErr(errors.E(op, errors.RequestNotAvailable))
	}
	ext, ok := b.(Extension)
	if !ok {
		return wire.PackErr(errors.E(op, errors.RequestNotAvailable))
	}
	return ext.ExtensionRequest(cc, res, extID, payload)
}

// SetBackends validates and installs a new backend chain for cc, enforcing
// spec §4.F's rule that a caller may not remove Software while retaining a
// custom backend (they would then have no path back to reconfigure).
func SetBackends(cc *client.Context, selectors []keyforge.BackendSelector) error {
	const op = "backend.SetBackends"
	hasSoftware := false
	hasCustom := false
	for _, s := range selectors {
		if s.Kind == keyforge.BackendSoftware {
			hasSoftware = true
		} else {
			hasCustom = true
		}
	}
	if hasCustom && !hasSoftware {
		return errors.E(op, errors.PermissionDenied)
	}
	cc.Backends = selectors
	return nil
}

// Handle is the broker's single entry point for every request tag: it
// intercepts the two tags the chain walk owns outright
// (TagSetServiceBackends, TagExtension) and falls through to Dispatch for
// everything else.
func Handle(cc *client.Context, res *service.Resources, tag wire.Tag, payload []byte) wire.Outcome {
	switch tag {
	case wire.TagSetServiceBackends:
		var req wire.SetServiceBackendsRequest
		if err := wire.Unpack(wire.Envelope{Tag: tag, Payload: payload}, &req); err != nil {
			return wire.PackErr(err)
		}
		if err := SetBackends(cc, req.Backends); err != nil {
			return wire.PackErr(err)
		}
		out, err := wire.PackOK(&wire.SetServiceBackendsReply{})
		if err != nil {
			return wire.PackErr(err)
		}
		return out
	case wire.TagExtension:
		var req wire.ExtensionRequest
		if err := wire.Unpack(wire.Envelope{Tag: tag, Payload: payload}, &req); err != nil {
			return wire.PackErr(err)
		}
		return DispatchExtension(cc, res, req.BackendID, req.ExtID, req.Payload)
	default:
		return Dispatch(cc, res, tag, payload)
	}
}
