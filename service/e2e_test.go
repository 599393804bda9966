// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package service_test

import (
	"testing"

	"keyforge.io/backend"
	"keyforge.io/broker"
	"keyforge.io/client"
	"keyforge.io/keyforge"
	"keyforge.io/rng"
	"keyforge.io/service"
	"keyforge.io/store/volatile"
	"keyforge.io/stub"
	"keyforge.io/wire"
)

// pinCheckPayload mirrors auth's private pinRequest wire shape (op 1 is
// CheckPin) closely enough to exercise the extension round trip without
// reaching into that package's internals.
type pinCheckPayload struct {
	Op   uint8             `cbor:"0,keyasint"`
	Kind keyforge.AuthKind `cbor:"1,keyasint"`
	Pin  []byte            `cbor:"2,keyasint,omitempty"`
}

func mustMarshalCheckPin(t *testing.T) []byte {
	t.Helper()
	b, err := wire.Marshal(&pinCheckPayload{Op: 1, Kind: keyforge.User, Pin: []byte("123456")})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return b
}

type fakeEntropy struct{}

func (fakeEntropy) Read(buf []byte) error {
	for i := range buf {
		buf[i] = byte(i*7 + 1)
	}
	return nil
}

type fakeUI struct{}

func (fakeUI) SetStatus(keyforge.UIStatus)          {}
func (fakeUI) CheckPresence() keyforge.Presence     { return keyforge.PresenceVerifiedUser }
func (fakeUI) Wink(uint32)                          {}
func (fakeUI) Uptime() uint64                       { return 42 }
func (fakeUI) Reboot(keyforge.RebootTo)              {}

type fakePlatform struct{}

func (fakePlatform) Entropy() keyforge.Entropy        { return fakeEntropy{} }
func (fakePlatform) UI() keyforge.UserInterface       { return fakeUI{} }

// harness wires the full call path exercised in production: a Stub
// submits into a Slot, a Broker ticks it through backend.Handle into the
// registered Software backend.
func harness(t *testing.T) *stub.Stub {
	t.Helper()
	root, err := rng.BootFromStore(volatile.New(), fakePlatform{}.Entropy())
	if err != nil {
		t.Fatalf("rng.BootFromStore: %v", err)
	}
	res := &service.Resources{Root: root, Platform: fakePlatform{}}
	backend.RegisterSoftware(service.Software{})

	b := broker.New(res)
	cc := client.New("e2e", volatile.New())
	// Give this demo client's generated keys every policy bit: these
	// tests exercise the crypto operations themselves, not the gating
	// overlay (auth_test.go covers that).
	var policy keyforge.Policy
	for op := keyforge.OpAgree; op <= keyforge.OpWrite; op++ {
		policy = policy.With(op)
	}
	cc.CreationPolicy = policy
	slot := b.Attach(cc)
	return stub.New(slot, func() { b.Tick() })
}

func attrs() keyforge.StorageAttributes {
	return keyforge.StorageAttributes{Persistence: keyforge.Internal}
}

func TestGenerateEncryptDecryptRoundTrip(t *testing.T) {
	s := harness(t)
	key, err := s.GenerateKey(keyforge.Chacha8Poly1305, attrs())
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	ciphertext, nonce, tag, err := s.Encrypt(keyforge.Chacha8Poly1305, key, []byte("keyforge payload"), nil, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	plain, err := s.Decrypt(keyforge.Chacha8Poly1305, key, ciphertext, nil, nonce, tag)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(plain) != "keyforge payload" {
		t.Fatalf("got %q", plain)
	}
}

func TestDecryptDetectsTamperedCiphertext(t *testing.T) {
	s := harness(t)
	key, err := s.GenerateKey(keyforge.Chacha8Poly1305, attrs())
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	ciphertext, nonce, tag, err := s.Encrypt(keyforge.Chacha8Poly1305, key, []byte("secret"), nil, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 0xFF
	plain, err := s.Decrypt(keyforge.Chacha8Poly1305, key, tampered, nil, nonce, tag)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain != nil {
		t.Fatalf("expected nil plaintext for tampered ciphertext, got %q", plain)
	}
}

func TestSignVerifyHmacRoundTrip(t *testing.T) {
	s := harness(t)
	key, err := s.GenerateKey(keyforge.HmacSha256, attrs())
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	sig, err := s.Sign(keyforge.HmacSha256, key, []byte("msg"), 0)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	ok, err := s.Verify(keyforge.HmacSha256, key, []byte("msg"), sig, 0)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}
	ok, err = s.Verify(keyforge.HmacSha256, key, []byte("tampered"), sig, 0)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("expected signature over different message to fail verification")
	}
}

func TestHashIsDeterministic(t *testing.T) {
	s := harness(t)
	a, err := s.Hash(keyforge.Sha256, []byte("abc"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := s.Hash(keyforge.Sha256, []byte("abc"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("expected Hash to be deterministic for the same input")
	}
}

func TestWriteReadFileRoundTrip(t *testing.T) {
	s := harness(t)
	if err := s.WriteFile(keyforge.Internal, "greeting", []byte("hello"), ""); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := s.ReadFile(keyforge.Internal, "greeting")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q", data)
	}
}

func TestCounterIncrementsAcrossCalls(t *testing.T) {
	s := harness(t)
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
			t.Fatalf("increment %d: got {Lo:%d Hi:%d}", want, v.Lo, v.Hi)
		}
	}
}

func TestSetServiceBackendsRejectsCustomWithoutSoftware(t *testing.T) {
	s := harness(t)
	err := s.SetServiceBackends([]keyforge.BackendSelector{keyforge.Custom(7)})
	if err == nil {
		t.Fatal("expected error removing Software while retaining a custom backend")
	}
}

func TestDebugDumpStoreWalksWithoutError(t *testing.T) {
	s := harness(t)
	if err := s.WriteFile(keyforge.Internal, "a/b", []byte("nested"), ""); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := s.DebugDumpStore(); err != nil {
		t.Fatalf("DebugDumpStore: %v", err)
	}
}

func TestPinExtensionRoundTripThroughBroker(t *testing.T) {
	s := harness(t)
	reply, err := s.Extension(0, 0, mustMarshalCheckPin(t))
	if err != nil {
		t.Fatalf("Extension: %v", err)
	}
	if len(reply) == 0 {
		t.Fatal("expected a non-empty pin-state reply")
	}
}
