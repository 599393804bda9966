// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package service

import (
	"crypto/sha256"

	"keyforge.io/keyforge"
)

// sha256Algo implements the keyless Hash operation. Like HMAC, a keyless
// digest has no third-party presence in the corpus; crypto/sha256 is the
// idiomatic choice.
type sha256Algo struct{}

func init() { Register(sha256Algo{}) }

func (sha256Algo) Mechanism() keyforge.Mechanism { return keyforge.Sha256 }

func (sha256Algo) Hash(msg []byte) []byte {
	sum := sha256.Sum256(msg)
	return sum[:]
}
