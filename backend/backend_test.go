// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package backend

import (
	"testing"

	"keyforge.io/client"
	"keyforge.io/errors"
	"keyforge.io/keyforge"
	"keyforge.io/rng"
	"keyforge.io/service"
	"keyforge.io/store/volatile"
	"keyforge.io/wire"
)

type fakeEntropy struct{}

func (fakeEntropy) Read(buf []byte) error {
	for i := range buf {
		buf[i] = byte(i)
	}
	return nil
}

type fakePlatform struct{}

func (fakePlatform) Entropy() keyforge.Entropy         { return fakeEntropy{} }
func (fakePlatform) UI() keyforge.UserInterface         { return fakeUI{} }

type fakeUI struct{}

func (fakeUI) SetStatus(keyforge.UIStatus)        {}
func (fakeUI) CheckPresence() keyforge.Presence   { return keyforge.PresenceNone }
func (fakeUI) Wink(uint32)                        {}
func (fakeUI) Uptime() uint64                     { return 1000 }
func (fakeUI) Reboot(keyforge.RebootTo)           { panic("reboot") }

func newResources(t *testing.T) *service.Resources {
	t.Helper()
	root, err := rng.BootFromStore(volatile.New(), fakeEntropy{})
	if err != nil {
		t.Fatalf("rng.BootFromStore: %v", err)
	}
	return &service.Resources{Root: root, Platform: fakePlatform{}}
}

// stubBackend answers every tag it's told to, or defers with
// RequestNotAvailable otherwise, for exercising chain walk order.
type stubBackend struct {
	handles wire.Tag
	calls   *int
}

func (s stubBackend) Request(cc *client.Context, res *service.Resources, tag wire.Tag, payload []byte) wire.Outcome {
	*s.calls++
	if tag != s.handles {
		return wire.PackErr(errors.E("stub", errors.RequestNotAvailable))
	}
	out, _ := wire.PackOK(&wire.WinkReply{})
	return out
}

func TestDispatchFallsThroughToNextBackend(t *testing.T) {
	mu.Lock()
	customs = make(map[uint8]Backend)
	mu.Unlock()

	calls := 0
	RegisterCustom(1, stubBackend{handles: wire.TagWink, calls: &calls})
	RegisterSoftware(stubBackend{handles: wire.TagUptime, calls: &calls})

	cc := client.New("alice", volatile.New())
	cc.Backends = []keyforge.BackendSelector{keyforge.Custom(1), keyforge.Software()}

	res := newResources(t)
	out := Dispatch(cc, res, wire.TagUptime, nil)
	if out.Err != nil {
		t.Fatalf("expected success from software fallback, got %v", out.Err)
	}
	if calls != 2 {
		t.Fatalf("expected both backends consulted, got %d calls", calls)
	}
}

func TestDispatchEmptyChainDefaultsToSoftware(t *testing.T) {
	mu.Lock()
	customs = make(map[uint8]Backend)
	mu.Unlock()

	calls := 0
	RegisterSoftware(stubBackend{handles: wire.TagUptime, calls: &calls})

	cc := client.New("bob", volatile.New())
	res := newResources(t)
	out := Dispatch(cc, res, wire.TagUptime, nil)
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
}

func TestDispatchReturnsRequestNotAvailableWhenNobodyHandles(t *testing.T) {
	mu.Lock()
	customs = make(map[uint8]Backend)
	mu.Unlock()
	calls := 0
	RegisterSoftware(stubBackend{handles: wire.TagWink, calls: &calls})

	cc := client.New("carol", volatile.New())
	res := newResources(t)
	out := Dispatch(cc, res, wire.TagUptime, nil)
	if out.Err == nil {
		t.Fatal("expected RequestNotAvailable, got success")
	}
	if !errors.Is(errors.RequestNotAvailable, out.Err) {
		t.Fatalf("expected RequestNotAvailable, got %v", out.Err)
	}
}

func TestSetBackendsRejectsCustomWithoutSoftware(t *testing.T) {
	cc := client.New("dave", volatile.New())
	err := SetBackends(cc, []keyforge.BackendSelector{keyforge.Custom(1)})
	if err == nil || !errors.Is(errors.PermissionDenied, err) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

func TestSetBackendsAllowsCustomAlongsideSoftware(t *testing.T) {
	cc := client.New("erin", volatile.New())
	selectors := []keyforge.BackendSelector{keyforge.Custom(1), keyforge.Software()}
	if err := SetBackends(cc, selectors); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cc.Backends) != 2 {
		t.Fatalf("expected backends installed, got %v", cc.Backends)
	}
}

type stubExtension struct {
	stubBackend
	reply []byte
}

func (s stubExtension) ExtensionRequest(cc *client.Context, res *service.Resources, extID uint8, payload []byte) wire.Outcome {
	out, _ := wire.PackOK(&wire.ExtensionReply{Payload: s.reply})
	return out
}

func TestDispatchExtensionRoutesToOwningBackend(t *testing.T) {
	mu.Lock()
	customs = make(map[uint8]Backend)
	mu.Unlock()
	calls := 0
	RegisterCustom(7, stubExtension{stubBackend: stubBackend{handles: wire.TagWink, calls: &calls}, reply: []byte("pong")})

	cc := client.New("frank", volatile.New())
	res := newResources(t)
	out := DispatchExtension(cc, res, 7, 3, []byte("ping"))
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	var reply wire.ExtensionReply
	if err := wire.UnpackOK(out, &reply); err != nil {
		t.Fatalf("UnpackOK: %v", err)
	}
	if string(reply.Payload) != "pong" {
		t.Fatalf("got %q", reply.Payload)
	}
}

func TestDispatchExtensionUnknownBackendIsUnavailable(t *testing.T) {
	mu.Lock()
	customs = make(map[uint8]Backend)
	mu.Unlock()

	cc := client.New("gwen", volatile.New())
	res := newResources(t)
	out := DispatchExtension(cc, res, 99, 1, nil)
	if out.Err == nil || !errors.Is(errors.RequestNotAvailable, out.Err) {
		t.Fatalf("expected RequestNotAvailable, got %v", out.Err)
	}
}
