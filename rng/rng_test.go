// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rng

import (
	"bytes"
	"testing"
)

type fakeEntropy struct {
	b   [SeedSize]byte
	err error
}

func (f fakeEntropy) Read(buf []byte) error {
	if f.err != nil {
		return f.err
	}
	copy(buf, f.b[:])
	return nil
}

func TestBootMixesPersistedSeedWithEntropy(t *testing.T) {
	var persisted [SeedSize]byte
	persisted[0] = 0xFF

	var e fakeEntropy
	e.b[0] = 0xFF // same byte: boot seed's first byte should come out 0x00

	root, next, err := Boot(persisted, e)
	if err != nil {
		t.Fatal(err)
	}
	if root == nil {
		t.Fatal("expected non-nil root")
	}
	var zero [SeedSize]byte
	if next == zero {
		t.Fatal("expected a non-trivial seed to persist for next boot")
	}
}

func TestBootSurfacesEntropyFailure(t *testing.T) {
	var persisted [SeedSize]byte
	e := fakeEntropy{err: errFake}
	if _, _, err := Boot(persisted, e); err == nil {
		t.Fatal("expected an error when the entropy source fails")
	}
}

var errFake = &fakeErr{}

type fakeErr struct{}

func (*fakeErr) Error() string { return "entropy offline" }

// TestForksAreIndependent exercises testable property 8: two successive
// forks differ from each other and from the root's own stream.
func TestForksAreIndependent(t *testing.T) {
	var persisted [SeedSize]byte
	var e fakeEntropy
	e.b[0] = 0x42

	root, _, err := Boot(persisted, e)
	if err != nil {
		t.Fatal(err)
	}

	c1, err := root.Fork()
	if err != nil {
		t.Fatal(err)
	}
	c2, err := root.Fork()
	if err != nil {
		t.Fatal(err)
	}

	b1 := c1.Bytes(64)
	b2 := c2.Bytes(64)
	if bytes.Equal(b1, b2) {
		t.Fatal("two forks produced identical output")
	}

	rootSeed2, _, err := Boot(persisted, e)
	if err != nil {
		t.Fatal(err)
	}
	rb := rootSeed2.Bytes(64)
	if bytes.Equal(b1, rb) || bytes.Equal(b2, rb) {
		t.Fatal("a fork's output matched the root's own stream")
	}
}

// Bytes draws n bytes directly from the root stream, for tests only.
func (r *Root) Bytes(n int) []byte {
	buf := make([]byte, n)
	r.mu.Lock()
	r.cipher.XORKeyStream(buf, buf)
	r.mu.Unlock()
	return buf
}

func TestForkAdvancesRootPastConsumedBytes(t *testing.T) {
	var persisted [SeedSize]byte
	var e fakeEntropy

	root, _, err := Boot(persisted, e)
	if err != nil {
		t.Fatal(err)
	}

	before := root.Bytes(0) // no-op, but confirms method exists and compiles
	_ = before

	c, err := root.Fork()
	if err != nil {
		t.Fatal(err)
	}
	afterFork := root.Bytes(32)
	childOut := c.Bytes(32)
	if bytes.Equal(afterFork, childOut) {
		t.Fatal("root stream replayed bytes already consumed by Fork")
	}
}
