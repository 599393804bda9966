// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import (
	"encoding/binary"
	"encoding/hex"

	"keyforge.io/errors"
	"keyforge.io/keyforge"
)

// Counterstore is a client's namespaced view over monotonic counters,
// stored at "<client>/ctr/<hex id>" as a raw little-endian u128 (spec's
// on-disk layout table), not a CBOR envelope.
type Counterstore struct{ c *Context }

func counterPath(prefix string, id keyforge.CounterID) string {
	return prefix + "/ctr/" + hex.EncodeToString(id[:])
}

// encodeCounter renders v as 16 raw little-endian bytes: the low 8 bytes
// of v.Lo followed by the low 8 bytes of v.Hi.
func encodeCounter(v keyforge.Uint128) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[0:8], v.Lo)
	binary.LittleEndian.PutUint64(b[8:16], v.Hi)
	return b
}

func decodeCounter(b []byte) (keyforge.Uint128, error) {
	if len(b) != 16 {
		return keyforge.Uint128{}, errors.E(errors.InternalError)
	}
	return keyforge.Uint128{
		Lo: binary.LittleEndian.Uint64(b[0:8]),
		Hi: binary.LittleEndian.Uint64(b[8:16]),
	}, nil
}

// Create allocates a counter at id, initialized to zero.
func (cs Counterstore) Create(id keyforge.CounterID, loc keyforge.Location) error {
	const op = "counterstore.Create"
	path := counterPath(cs.c.prefix(), id)
	if err := cs.c.st.Write(loc, path, encodeCounter(keyforge.Uint128{})); err != nil {
		return errors.E(op, errors.Client(cs.c.ID), errors.Path(path), errors.FilesystemWriteFailure, err)
	}
	return nil
}

// Increment reads the counter's current value, adds one (saturating), and
// writes the result back before returning it. The value the store holds at
// any instant is always either the pre- or post-increment value, never
// anything smaller than both, satisfying the "never decreases across a
// crash" invariant of spec §4.C as long as the underlying Write is atomic.
func (cs Counterstore) Increment(id keyforge.CounterID) (keyforge.Uint128, error) {
	const op = "counterstore.Increment"
	path := counterPath(cs.c.prefix(), id)
	for _, loc := range []keyforge.Location{keyforge.Internal, keyforge.External, keyforge.Volatile} {
		b, err := cs.c.st.Read(loc, path)
		if err != nil {
			continue
		}
		cur, derr := decodeCounter(b)
		if derr != nil {
			return keyforge.Uint128{}, errors.E(op, errors.Client(cs.c.ID), errors.Path(path), derr)
		}
		next := cur.Incr()
		if err := cs.c.st.Write(loc, path, encodeCounter(next)); err != nil {
			return keyforge.Uint128{}, errors.E(op, errors.Client(cs.c.ID), errors.Path(path), errors.FilesystemWriteFailure, err)
		}
		return next, nil
	}
	return keyforge.Uint128{}, errors.E(op, errors.Client(cs.c.ID), errors.Path(path), errors.NotFound)
}
