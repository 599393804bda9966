// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package service

import (
	"io"

	"golang.org/x/crypto/curve25519"

	"keyforge.io/errors"
	"keyforge.io/keyforge"
)

type x25519Algo struct{}

func init() { Register(x25519Algo{}) }

func (x25519Algo) Mechanism() keyforge.Mechanism { return keyforge.X25519 }

func (x25519Algo) GenerateKey(rand io.Reader) (keyforge.KeyKind, []byte, error) {
	const op = "x25519.GenerateKey"
	var priv [32]byte
	if _, err := io.ReadFull(rand, priv[:]); err != nil {
		return keyforge.KeyKind{}, nil, errors.E(op, errors.EntropyMalfunction, err)
	}
	// Clamp per RFC 7748 so every generated scalar is a valid X25519
	// private key.
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	return keyforge.KeyKind{Family: keyforge.SecretEc, Curve: keyforge.X25519}, priv[:], nil
}

func (x25519Algo) Agree(priv, pub []byte) ([]byte, error) {
	const op = "x25519.Agree"
	shared, err := curve25519.X25519(priv, pub)
	if err != nil {
		return nil, errors.E(op, errors.WrongKeyKind, err)
	}
	return shared, nil
}

func (x25519Algo) PublicFromPrivate(priv []byte) ([]byte, error) {
	const op = "x25519.PublicFromPrivate"
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, errors.E(op, errors.WrongKeyKind, err)
	}
	return pub, nil
}
