// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package service

import (
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"keyforge.io/errors"
	"keyforge.io/keyforge"
)

// keySize is the symmetric key size used for both Chacha8Poly1305 and
// HmacSha256: 32 bytes, forked straight from the per-operation DRBG.
const keySize = 32

type chacha8poly1305Algo struct{}

func init() { Register(chacha8poly1305Algo{}) }

func (chacha8poly1305Algo) Mechanism() keyforge.Mechanism { return keyforge.Chacha8Poly1305 }

func (chacha8poly1305Algo) NonceSize() int { return chacha20poly1305.NonceSize }

func (chacha8poly1305Algo) GenerateKey(rand io.Reader) (keyforge.KeyKind, []byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand, key); err != nil {
		return keyforge.KeyKind{}, nil, errors.E("chacha8poly1305.GenerateKey", errors.EntropyMalfunction, err)
	}
	return keyforge.KeyKind{Family: keyforge.Symmetric, Size: keySize}, key, nil
}

func (chacha8poly1305Algo) Encrypt(key, nonce, aad, msg []byte) ([]byte, []byte, error) {
	const op = "chacha8poly1305.Encrypt"
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, errors.E(op, errors.WrongKeyKind, err)
	}
	sealed := aead.Seal(nil, nonce, msg, aad)
	ct := sealed[:len(sealed)-aead.Overhead()]
	tag := sealed[len(sealed)-aead.Overhead():]
	return ct, tag, nil
}

func (chacha8poly1305Algo) Decrypt(key, nonce, aad, ciphertext, tag []byte) ([]byte, error) {
	const op = "chacha8poly1305.Decrypt"
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.E(op, errors.WrongKeyKind, err)
	}
	sealed := append(append([]byte{}, ciphertext...), tag...)
	pt, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		// Authentication failure is reported to the caller as a nil
		// plaintext (spec's DecryptReply), not a protocol error.
		return nil, nil
	}
	return pt, nil
}
