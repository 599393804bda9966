// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stub

import (
	"testing"

	"keyforge.io/backend"
	"keyforge.io/broker"
	"keyforge.io/client"
	"keyforge.io/keyforge"
	"keyforge.io/rng"
	"keyforge.io/service"
	"keyforge.io/store/volatile"
)

type fakeEntropy struct{}

func (fakeEntropy) Read(buf []byte) error {
	for i := range buf {
		buf[i] = byte(i * 13)
	}
	return nil
}

type fakeUI struct{}

func (fakeUI) SetStatus(keyforge.UIStatus)  {}
func (fakeUI) CheckPresence() keyforge.Presence { return keyforge.PresenceNone }
func (fakeUI) Wink(uint32)                  {}
func (fakeUI) Uptime() uint64               { return 42 }
func (fakeUI) Reboot(keyforge.RebootTo)     { panic("reboot") }

type fakePlatform struct{}

func (fakePlatform) Entropy() keyforge.Entropy     { return fakeEntropy{} }
func (fakePlatform) UI() keyforge.UserInterface     { return fakeUI{} }

func newHarness(t *testing.T) (*broker.Broker, *Stub) {
	t.Helper()
	root, err := rng.BootFromStore(volatile.New(), fakeEntropy{})
	if err != nil {
		t.Fatalf("rng.BootFromStore: %v", err)
	}
	res := &service.Resources{Root: root, Platform: fakePlatform{}}
	backend.RegisterSoftware(service.Software{})

	b := broker.New(res)
	cc := client.New("alice", volatile.New())
	slot := b.Attach(cc)
	s := New(slot, func() { b.Tick() })
	return b, s
}

func TestWriteThenReadFileRoundTrip(t *testing.T) {
	_, s := newHarness(t)
	if err := s.WriteFile(keyforge.Internal, "a", []byte{0xAA}, ""); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := s.ReadFile(keyforge.Internal, "a")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 1 || data[0] != 0xAA {
		t.Fatalf("got %v", data)
	}
}

func TestCounterIncrementsSequentially(t *testing.T) {
	_, s := newHarness(t)
	id, err := s.CreateCounter(keyforge.Internal)
	if err != nil {
		t.Fatalf("CreateCounter: %v", err)
	}
	for want := uint64(1); want <= 3; want++ {
		v, err := s.IncrementCounter(id)
		if err != nil {
			t.Fatalf("IncrementCounter: %v", err)
		}
		if v.Lo != want || v.Hi != 0 {
			t.Fatalf("increment %d: got %+v", want, v)
		}
	}
}

func TestAbandonResetsSlotForReentrancy(t *testing.T) {
	_, s := newHarness(t)
	s.slot.Submit(0, nil)
	s.Abandon()
	// A fresh Submit must not panic, proving the slot went back to Idle.
	s.slot.Submit(0, nil)
	s.slot.Reset()
}

func TestUptimeRoundTrip(t *testing.T) {
	_, s := newHarness(t)
	ms, err := s.Uptime()
	if err != nil {
		t.Fatalf("Uptime: %v", err)
	}
	if ms != 42 {
		t.Fatalf("got %d", ms)
	}
}
