// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rng implements the splittable DRBG described in spec §4.D: a
// ChaCha20-keystream root seeded at boot from hardware entropy XORed with a
// persisted seed, from which every operation forks an independent child
// stream without re-touching flash; each fork advances the root's stream.
package rng

import (
	"sync"

	"golang.org/x/crypto/chacha20"

	"keyforge.io/errors"
	"keyforge.io/keyforge"
	"keyforge.io/store"
)

// SeedSize is the size, in bytes, of both the persisted seed and every
// derived child seed.
const SeedSize = 32

// StatePath is where the persisted seed lives in Internal storage (spec
// §3's PRNG State Record).
const StatePath = "trussed/rng-state.bin"

// LoadSeed reads the persisted seed back from st, returning the zero seed
// if none has ever been written (spec: "absent ⇒ treated as zero").
func LoadSeed(st store.Store) ([SeedSize]byte, error) {
	var seed [SeedSize]byte
	data, err := st.Read(keyforge.Internal, StatePath)
	if errors.Is(errors.NotFound, err) {
		return seed, nil
	}
	if err != nil {
		return seed, errors.E("rng.LoadSeed", err)
	}
	if len(data) != SeedSize {
		return seed, errors.E("rng.LoadSeed", errors.InternalError)
	}
	copy(seed[:], data)
	return seed, nil
}

// SaveSeed persists seed to st so the next BootFromStore call can fold it
// back into the boot seed.
func SaveSeed(st store.Store, seed [SeedSize]byte) error {
	return st.Write(keyforge.Internal, StatePath, seed[:])
}

// BootFromStore loads the persisted seed from st, boots the root DRBG from
// it, and immediately writes the freshly drawn next-boot seed back to st —
// spec §4.D's persisted-seed step happens at boot, not shutdown, so this is
// the only point at which the state record needs to be written.
func BootFromStore(st store.Store, entropy keyforge.Entropy) (*Root, error) {
	seed, err := LoadSeed(st)
	if err != nil {
		return nil, err
	}
	root, next, err := Boot(seed, entropy)
	if err != nil {
		return nil, err
	}
	if err := SaveSeed(st, next); err != nil {
		return nil, errors.E("rng.BootFromStore", err)
	}
	return root, nil
}

var zeroNonce [chacha20.NonceSize]byte

// Boot performs the five-step sequence of spec §4.D: it XORs the persisted
// seed with fresh hardware entropy to form the boot seed, constructs the
// root DRBG from it, and draws the seed to persist for next boot.
//
// persisted is the previous boot's saved seed, or the zero value if this is
// the first boot (spec: "absent ⇒ treated as zero").
func Boot(persisted [SeedSize]byte, entropy keyforge.Entropy) (root *Root, nextPersisted [SeedSize]byte, err error) {
	var e [SeedSize]byte
	if readErr := entropy.Read(e[:]); readErr != nil {
		return nil, nextPersisted, errors.E("rng.Boot", errors.EntropyMalfunction, readErr)
	}

	var bootSeed [SeedSize]byte
	for i := range bootSeed {
		bootSeed[i] = persisted[i] ^ e[i]
	}

	root, err = newStream(bootSeed)
	if err != nil {
		return nil, nextPersisted, errors.E("rng.Boot", errors.InternalError, err)
	}

	root.mu.Lock()
	root.cipher.XORKeyStream(nextPersisted[:], nextPersisted[:])
	root.mu.Unlock()

	return root, nextPersisted, nil
}

// Root is the per-boot DRBG (R₀ in spec §4.D). It is never consumed
// directly for operation output; every operation instead calls Fork to
// obtain an independent child.
type Root struct {
	mu     sync.Mutex
	cipher *chacha20.Cipher
}

func newStream(seed [SeedSize]byte) (*Root, error) {
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], zeroNonce[:])
	if err != nil {
		return nil, err
	}
	return &Root{cipher: c}, nil
}

// Fork draws the root's next 32 bytes and uses them to seed a brand new,
// independent ChaCha20 stream, returned as a Child. The root's own stream
// position advances past those 32 bytes and is never replayed, so two
// forks never share output (testable property 8).
func (r *Root) Fork() (*Child, error) {
	var seed [SeedSize]byte
	r.mu.Lock()
	r.cipher.XORKeyStream(seed[:], seed[:])
	r.mu.Unlock()

	c, err := chacha20.NewUnauthenticatedCipher(seed[:], zeroNonce[:])
	if err != nil {
		return nil, errors.E("rng.Fork", errors.InternalError, err)
	}
	return &Child{cipher: c}, nil
}

// Child is a forked DRBG stream, good for exactly the lifetime of one
// dispatched request.
type Child struct {
	cipher *chacha20.Cipher
}

// Read fills buf with the child's next len(buf) keystream bytes. It never
// returns an error; it implements io.Reader for convenience at call sites
// that want one (e.g. io.ReadFull).
func (c *Child) Read(buf []byte) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	c.cipher.XORKeyStream(buf, buf)
	return len(buf), nil
}

// Bytes returns n fresh bytes from the child stream.
func (c *Child) Bytes(n int) []byte {
	buf := make([]byte, n)
	c.Read(buf)
	return buf
}

// KeyID draws a fresh unguessable 16-byte identifier.
func (c *Child) KeyID() keyforge.KeyID {
	var id keyforge.KeyID
	c.Read(id[:])
	return id
}
