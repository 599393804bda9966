// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package service

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"keyforge.io/errors"
	"keyforge.io/keyforge"
)

// hkdfSha256Algo implements DeriveKey: RFC 5869 HKDF-SHA256 over a base key
// and an optional auxiliary info string.
type hkdfSha256Algo struct{}

func init() { Register(hkdfSha256Algo{}) }

func (hkdfSha256Algo) Mechanism() keyforge.Mechanism { return keyforge.HkdfSha256 }

func (hkdfSha256Algo) Derive(base, aux []byte, outSize int) ([]byte, error) {
	const op = "hkdf256.Derive"
	r := hkdf.New(sha256.New, base, nil, aux)
	out := make([]byte, outSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, errors.E(op, errors.ImplementationError, err)
	}
	return out, nil
}
