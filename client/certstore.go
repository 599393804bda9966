// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import (
	"encoding/hex"

	"keyforge.io/errors"
	"keyforge.io/keyforge"
)

// Certstore is a client's namespaced view over DER-encoded certificates,
// stored at "<client>/cert/<hex id>".
type Certstore struct{ c *Context }

func certPath(prefix string, id keyforge.CertID) string {
	return prefix + "/cert/" + hex.EncodeToString(id[:])
}

// Write stores a DER-encoded certificate under a freshly-provided id.
func (cs Certstore) Write(id keyforge.CertID, loc keyforge.Location, der []byte) error {
	const op = "certstore.Write"
	path := certPath(cs.c.prefix(), id)
	if err := cs.c.st.Write(loc, path, der); err != nil {
		return errors.E(op, errors.Client(cs.c.ID), errors.Path(path), errors.FilesystemWriteFailure, err)
	}
	return nil
}

// Read returns the DER bytes stored at id.
func (cs Certstore) Read(id keyforge.CertID) ([]byte, error) {
	const op = "certstore.Read"
	path := certPath(cs.c.prefix(), id)
	for _, loc := range []keyforge.Location{keyforge.Internal, keyforge.External, keyforge.Volatile} {
		b, err := cs.c.st.Read(loc, path)
		if err == nil {
			return b, nil
		}
	}
	return nil, errors.E(op, errors.Client(cs.c.ID), errors.Path(path), errors.NotFound)
}

// Delete removes the certificate at id from every location.
func (cs Certstore) Delete(id keyforge.CertID) error {
	path := certPath(cs.c.prefix(), id)
	for _, loc := range []keyforge.Location{keyforge.Internal, keyforge.External, keyforge.Volatile} {
		cs.c.st.Remove(loc, path)
	}
	return nil
}
