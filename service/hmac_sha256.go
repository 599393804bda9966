// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"io"

	"keyforge.io/errors"
	"keyforge.io/keyforge"
)

// hmacSha256Algo implements Sign/Verify of symmetric keys. HMAC has no
// third-party implementation anywhere in the retrieved corpus; crypto/hmac
// plus crypto/sha256 is the idiomatic choice across the Go ecosystem for
// it, so it is used here as the one stdlib-only mechanism rather than
// inventing or importing an equivalent.
type hmacSha256Algo struct{}

func init() { Register(hmacSha256Algo{}) }

func (hmacSha256Algo) Mechanism() keyforge.Mechanism { return keyforge.HmacSha256 }

func (hmacSha256Algo) GenerateKey(rand io.Reader) (keyforge.KeyKind, []byte, error) {
	const op = "hmac256.GenerateKey"
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand, key); err != nil {
		return keyforge.KeyKind{}, nil, errors.E(op, errors.EntropyMalfunction, err)
	}
	return keyforge.KeyKind{Family: keyforge.Symmetric, Size: keySize}, key, nil
}

func (hmacSha256Algo) Sign(_ io.Reader, key, msg []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil), nil
}

func (hmacSha256Algo) Verify(key, msg, sig []byte) bool {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return hmac.Equal(mac.Sum(nil), sig)
}
