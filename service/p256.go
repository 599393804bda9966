// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package service

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"io"
	"math/big"

	"keyforge.io/errors"
	"keyforge.io/keyforge"
)

// p256Algo implements KeyGenerator, Signer, Verifier, and Agreer for
// ECDSA/ECDH over NIST P-256. The ecosystem packs in this corpus reach for
// an external EC library only when the curve isn't one of the handful
// go's crypto/elliptic already special-cases (P-256 is); using the
// standard library here — the way the retrieved corpus itself does for its
// own ECDSA signing — avoids a second, slower P-256 implementation rather
// than adding one for its own sake.
type p256Algo struct{}

func init() { Register(p256Algo{}) }

func (p256Algo) Mechanism() keyforge.Mechanism { return keyforge.P256 }

// material is the on-disk encoding of a P-256 private key: the raw 32-byte
// scalar. Public keys are stored as the uncompressed SEC1 point.
func (p256Algo) GenerateKey(rand io.Reader) (keyforge.KeyKind, []byte, error) {
	const op = "p256.GenerateKey"
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand)
	if err != nil {
		return keyforge.KeyKind{}, nil, errors.E(op, errors.EntropyMalfunction, err)
	}
	return keyforge.KeyKind{Family: keyforge.SecretEc, Curve: keyforge.P256}, priv.D.FillBytes(make([]byte, 32)), nil
}

func (p256Algo) privateFromMaterial(material []byte) *ecdsa.PrivateKey {
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(material)
	x, y := curve.ScalarBaseMult(material)
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}
}

func (p256Algo) Sign(rand io.Reader, key, msg []byte) ([]byte, error) {
	const op = "p256.Sign"
	priv := p256Algo{}.privateFromMaterial(key)
	digest := sha256.Sum256(msg)
	sig, err := ecdsa.SignASN1(rand, priv, digest[:])
	if err != nil {
		return nil, errors.E(op, errors.ImplementationError, err)
	}
	return sig, nil
}

func (p256Algo) Verify(key, msg, sig []byte) bool {
	curve := elliptic.P256()
	if len(key) != 65 || key[0] != 0x04 {
		return false
	}
	x := new(big.Int).SetBytes(key[1:33])
	y := new(big.Int).SetBytes(key[33:65])
	pub := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	digest := sha256.Sum256(msg)
	return ecdsa.VerifyASN1(pub, digest[:], sig)
}

// Agree implements ECDH-P256: priv is the raw scalar, pub is the
// uncompressed SEC1 point.
func (p256Algo) Agree(priv, pub []byte) ([]byte, error) {
	const op = "p256.Agree"
	curve := ecdh.P256()
	privKey, err := curve.NewPrivateKey(priv)
	if err != nil {
		return nil, errors.E(op, errors.WrongKeyKind, err)
	}
	pubKey, err := curve.NewPublicKey(pub)
	if err != nil {
		return nil, errors.E(op, errors.WrongKeyKind, err)
	}
	shared, err := privKey.ECDH(pubKey)
	if err != nil {
		return nil, errors.E(op, errors.ImplementationError, err)
	}
	return shared, nil
}

func (p256Algo) PublicFromPrivate(priv []byte) ([]byte, error) {
	curve := elliptic.P256()
	x, y := curve.ScalarBaseMult(priv)
	return elliptic.Marshal(curve, x, y), nil
}
