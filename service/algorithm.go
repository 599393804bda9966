// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package service implements the default software handler of spec §4.E: the
// per-request dispatch for every request variant, routing keyed-crypto
// operations through a small registry of algorithm implementations keyed by
// keyforge.Mechanism.
package service

import (
	"fmt"
	"io"
	"sync"

	"keyforge.io/keyforge"
)

// Algorithm is the base every registered mechanism implementation
// satisfies. Most mechanisms implement one or two of the optional
// interfaces below as well; the dispatcher uses a type assertion to find
// the right one for the operation at hand, the same way it would look up a
// separate vtable entry per capability.
type Algorithm interface {
	Mechanism() keyforge.Mechanism
}

// KeyGenerator mints fresh key material for GenerateKey.
type KeyGenerator interface {
	Algorithm
	GenerateKey(rand io.Reader) (kind keyforge.KeyKind, material []byte, err error)
}

// Agreer implements Diffie-Hellman-style Agree.
type Agreer interface {
	Algorithm
	Agree(priv, pub []byte) (shared []byte, err error)
}

// Signer implements Sign.
type Signer interface {
	Algorithm
	Sign(rand io.Reader, key, msg []byte) (sig []byte, err error)
}

// Verifier implements Verify.
type Verifier interface {
	Algorithm
	Verify(key, msg, sig []byte) bool
}

// AEAD implements Encrypt/Decrypt.
type AEAD interface {
	Algorithm
	NonceSize() int
	Encrypt(key, nonce, aad, msg []byte) (ciphertext, tag []byte, err error)
	Decrypt(key, nonce, aad, ciphertext, tag []byte) (msg []byte, err error)
}

// Deriver implements DeriveKey.
type Deriver interface {
	Algorithm
	Derive(base, aux []byte, outSize int) ([]byte, error)
}

// Hasher implements the keyless Hash operation.
type Hasher interface {
	Algorithm
	Hash(msg []byte) []byte
}

// PublicDeriver computes the public half of an asymmetric key from its
// private material, used right after GenerateKey to populate the matching
// Public-secrecy record.
type PublicDeriver interface {
	Algorithm
	PublicFromPrivate(priv []byte) ([]byte, error)
}

var (
	mu        sync.Mutex
	registry  = make(map[keyforge.Mechanism]Algorithm)
)

// Register binds a Mechanism code to the implementation of its algorithm.
// It is called from the init function of each algorithm file in this
// package. Registering the same mechanism twice panics.
func Register(a Algorithm) {
	mu.Lock()
	defer mu.Unlock()
	m := a.Mechanism()
	if _, present := registry[m]; present {
		panic(fmt.Sprintf("service: mechanism %d already registered", m))
	}
	registry[m] = a
}

// Lookup returns the implementation registered for m, or nil if none is.
func Lookup(m keyforge.Mechanism) Algorithm {
	mu.Lock()
	defer mu.Unlock()
	return registry[m]
}
