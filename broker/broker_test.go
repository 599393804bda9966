// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package broker

import (
	"testing"

	"keyforge.io/backend"
	"keyforge.io/client"
	"keyforge.io/keyforge"
	"keyforge.io/rng"
	"keyforge.io/service"
	"keyforge.io/store/volatile"
	"keyforge.io/wire"
)

type fakeEntropy struct{}

func (fakeEntropy) Read(buf []byte) error {
	for i := range buf {
		buf[i] = byte(i * 7)
	}
	return nil
}

type fakeUI struct{ statuses []keyforge.UIStatus }

func (u *fakeUI) SetStatus(s keyforge.UIStatus)      { u.statuses = append(u.statuses, s) }
func (*fakeUI) CheckPresence() keyforge.Presence     { return keyforge.PresenceNone }
func (*fakeUI) Wink(uint32)                          {}
func (*fakeUI) Uptime() uint64                       { return 0 }
func (*fakeUI) Reboot(keyforge.RebootTo)              { panic("reboot") }

type fakePlatform struct{ ui *fakeUI }

func (p fakePlatform) Entropy() keyforge.Entropy       { return fakeEntropy{} }
func (p fakePlatform) UI() keyforge.UserInterface       { return p.ui }

func newTestBroker(t *testing.T) (*Broker, *fakeUI) {
	t.Helper()
	root, err := rng.BootFromStore(volatile.New(), fakeEntropy{})
	if err != nil {
		t.Fatalf("rng.BootFromStore: %v", err)
	}
	ui := &fakeUI{}
	res := &service.Resources{Root: root, Platform: fakePlatform{ui: ui}}
	backend.RegisterSoftware(service.Software{})
	return New(res), ui
}

func TestTickAnswersPendingRequestAndSetsProcessingThenIdle(t *testing.T) {
	b, ui := newTestBroker(t)
	cc := client.New("alice", volatile.New())
	slot := b.Attach(cc)

	env, err := wire.Pack(wire.TagWriteFile, &wire.WriteFileRequest{Loc: keyforge.Internal, Path: "a", Data: []byte{0xAA}})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	slot.Submit(env.Tag, env.Payload)

	if n := b.Tick(); n != 1 {
		t.Fatalf("expected 1 answered, got %d", n)
	}
	out, ok := slot.TakeReply()
	if !ok {
		t.Fatal("expected a reply ready")
	}
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if len(ui.statuses) != 2 || ui.statuses[0] != keyforge.Processing || ui.statuses[1] != keyforge.Idle {
		t.Fatalf("expected Processing then Idle, got %v", ui.statuses)
	}
}

func TestSubmitPanicsWhenNotIdle(t *testing.T) {
	s := NewSlot()
	s.Submit(wire.TagUptime, nil)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double Submit")
		}
	}()
	s.Submit(wire.TagUptime, nil)
}

func TestTickVisitsEachEndpointAtMostOncePerTick(t *testing.T) {
	b, _ := newTestBroker(t)
	cc1 := client.New("alice", volatile.New())
	cc2 := client.New("bob", volatile.New())
	s1 := b.Attach(cc1)
	s2 := b.Attach(cc2)

	env, _ := wire.Pack(wire.TagUptime, &wire.UptimeRequest{})
	s1.Submit(env.Tag, env.Payload)
	s2.Submit(env.Tag, env.Payload)

	if n := b.Tick(); n != 2 {
		t.Fatalf("expected both endpoints answered, got %d", n)
	}
	if _, ok := s1.TakeReply(); !ok {
		t.Fatal("expected s1 reply")
	}
	if _, ok := s2.TakeReply(); !ok {
		t.Fatal("expected s2 reply")
	}
}

func TestDetachDiscardsPendingReply(t *testing.T) {
	b, _ := newTestBroker(t)
	cc := client.New("alice", volatile.New())
	slot := b.Attach(cc)
	env, _ := wire.Pack(wire.TagUptime, &wire.UptimeRequest{})
	slot.Submit(env.Tag, env.Payload)
	b.Detach(slot)
	b.Tick()
	if _, ok := slot.TakeReply(); ok {
		t.Fatal("expected no reply after detach")
	}
}

func TestRequestReplyOrderingPerClient(t *testing.T) {
	b, _ := newTestBroker(t)
	cc := client.New("alice", volatile.New())
	slot := b.Attach(cc)

	for i := 0; i < 3; i++ {
		path := string(rune('a' + i))
		env, _ := wire.Pack(wire.TagWriteFile, &wire.WriteFileRequest{Loc: keyforge.Internal, Path: path, Data: []byte{byte(i)}})
		slot.Submit(env.Tag, env.Payload)
		b.Tick()
		out, ok := slot.TakeReply()
		if !ok {
			t.Fatalf("iteration %d: expected reply", i)
		}
		if out.Err != nil {
			t.Fatalf("iteration %d: unexpected error %v", i, out.Err)
		}
	}
}
