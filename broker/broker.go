// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package broker implements the single-threaded cooperative dispatch loop
// of spec §4.H and §5: one tick visits every attached client endpoint in
// round-robin order and answers at most one pending request per endpoint,
// routed through the backend chain.
package broker

import (
	"sync"

	"keyforge.io/backend"
	"keyforge.io/client"
	"keyforge.io/errors"
	"keyforge.io/keyforge"
	"keyforge.io/log"
	"keyforge.io/service"
	"keyforge.io/wire"
)

// SlotState is the SPSC exchange slot's state (spec §5): the client
// transitions Idle→Requested, the broker transitions Requested→Replied,
// and the client consumes Replied back to Idle. A concurrent Requested
// overwrite by the client while still Requested or Replied is a misuse
// the slot's mutex turns into a panic rather than silently dropping data.
type SlotState uint8

const (
	Idle SlotState = iota
	Requested
	Replied
)

// Slot is one client's exchange endpoint: the single mailbox a stub and
// the broker rendezvous through. It is not safe for concurrent use by
// more than one stub at a time (each client owns exactly one), but is
// safe to share between that stub's goroutine and the broker's.
type Slot struct {
	mu    sync.Mutex
	state SlotState
	tag   wire.Tag
	req   []byte
	reply wire.Outcome
}

// NewSlot returns a fresh, Idle exchange slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Submit places a request in the slot and transitions Idle→Requested. It
// panics if the slot is not Idle, since only one request may be in
// flight per client at a time (spec §5: "concurrent Requested overwrites
// by the client are forbidden").
func (s *Slot) Submit(tag wire.Tag, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		panic("broker: Submit called on a non-Idle slot")
	}
	s.tag = tag
	s.req = payload
	s.state = Requested
}

// TakeReply consumes a Replied slot back to Idle and returns the stored
// outcome. The second return is false if no reply is ready yet.
func (s *Slot) TakeReply() (wire.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Replied {
		return wire.Outcome{}, false
	}
	out := s.reply
	s.reply = wire.Outcome{}
	s.state = Idle
	return out, true
}

// Reset forces the slot back to Idle, discarding any in-flight request or
// unconsumed reply. Used both for re-entrancy safety (a stub dropped
// mid-call) and for a disappeared client's context being dropped on the
// next tick (spec §4.H: "Clients that disappear mid-request have their
// context dropped on next tick; any pending reply is discarded").
func (s *Slot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Idle
	s.req = nil
	s.reply = wire.Outcome{}
}

func (s *Slot) peekRequest() (wire.Tag, []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Requested {
		return 0, nil, false
	}
	return s.tag, s.req, true
}

func (s *Slot) putReply(out wire.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = out
	s.state = Replied
}

// endpoint pairs a client's Context with its exchange Slot: the unit the
// broker round-robins over.
type endpoint struct {
	cc   *client.Context
	slot *Slot
}

// Broker is the dispatch loop owner: one Broker instance per device. It
// is Send but not concurrently callable — Tick must be invoked from a
// single thread (spec §5).
type Broker struct {
	res       *service.Resources
	endpoints []endpoint
	cursor    int
}

// New returns a Broker that forks DRBG children and reads platform UI
// state from res.
func New(res *service.Resources) *Broker {
	return &Broker{res: res}
}

// Attach registers a client endpoint the broker will visit on every
// subsequent Tick, returning the exchange slot its stub submits requests
// through.
func (b *Broker) Attach(cc *client.Context) *Slot {
	slot := NewSlot()
	b.endpoints = append(b.endpoints, endpoint{cc: cc, slot: slot})
	return slot
}

// Detach removes a client's endpoint, discarding whatever is in its
// slot (spec §4.H: a disappeared client's pending reply is discarded on
// the next tick).
func (b *Broker) Detach(slot *Slot) {
	for i, e := range b.endpoints {
		if e.slot == slot {
			e.slot.Reset()
			b.endpoints = append(b.endpoints[:i], b.endpoints[i+1:]...)
			return
		}
	}
}

// Tick visits every attached endpoint once, in round-robin order whose
// starting endpoint advances by one on every tick, and answers at most
// one pending request per endpoint. It returns the number of
// requests it answered this tick.
func (b *Broker) Tick() int {
	n := len(b.endpoints)
	if n == 0 {
		return 0
	}
	answered := 0
	for i := 0; i < n; i++ {
		idx := (b.cursor + i) % n
		e := b.endpoints[idx]
		tag, payload, pending := e.slot.peekRequest()
		if !pending {
			continue
		}
		log.Debug.Printf("broker: tick endpoint %s tag=%d", e.cc.ID, tag)
		ui := b.res.Platform.UI()
		ui.SetStatus(keyforge.Processing)
		out := backend.Handle(e.cc, b.res, tag, payload)
		ui.SetStatus(keyforge.Idle)
		if out.Err != nil {
			if errors.Is(errors.EntropyMalfunction, out.Err) || errors.Is(errors.ImplementationError, out.Err) {
				log.Error.Printf("broker: endpoint %s tag=%d error=%v", e.cc.ID, tag, out.Err)
			} else {
				log.Debug.Printf("broker: endpoint %s tag=%d error=%v", e.cc.ID, tag, out.Err)
			}
		}
		e.slot.putReply(out)
		answered++
	}
	b.cursor = (b.cursor + 1) % n
	return answered
}
