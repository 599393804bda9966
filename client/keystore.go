// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import (
	"encoding/hex"

	"keyforge.io/errors"
	"keyforge.io/keyforge"
	"keyforge.io/wire"
)

// MaxKeyMaterial bounds the size of material a keystore will accept, per
// spec §4.C's "Store rejects overlong material."
const MaxKeyMaterial = 4096

// record is the on-disk shape of one key-material blob: the key's shape
// and the raw bytes. The key's policy is stored separately, alongside it,
// in its own ".policy" record (spec: "Policy Record: one per key path,
// stored alongside as <keypath>.policy").
type record struct {
	Kind     keyforge.KeyKind `cbor:"0,keyasint"`
	Material []byte           `cbor:"1,keyasint"`
}

// policyRecord is the on-disk shape of a key's adjacent policy blob.
type policyRecord struct {
	Policy keyforge.Policy `cbor:"0,keyasint"`
}

// Keystore is a client's namespaced view over key material. The on-disk
// path of a key is "<client>/<secrecy>/<hex id>" (spec §6 naming); its
// policy lives alongside it at the same path plus a ".policy" suffix.
type Keystore struct{ c *Context }

func keyPath(prefix string, secrecy keyforge.Secrecy, id keyforge.KeyID) string {
	return prefix + "/" + secrecy.String() + "/" + hex.EncodeToString(id[:])
}

// Path returns the storage path a given (secrecy, id) resolves to, exposed
// for DebugDumpStore and tests.
func (k Keystore) Path(secrecy keyforge.Secrecy, id keyforge.KeyID) string {
	return keyPath(k.c.prefix(), secrecy, id)
}

func policyPath(keyPath string) string {
	return keyPath + ".policy"
}

// Store writes material under a freshly-provided id at the given
// persistence location, secrecy half, kind, and policy. The policy is
// written as its own adjacent record, independent of the key material.
func (k Keystore) Store(id keyforge.KeyID, loc keyforge.Location, secrecy keyforge.Secrecy, kind keyforge.KeyKind, material []byte, policy keyforge.Policy) error {
	const op = "keystore.Store"
	if len(material) > MaxKeyMaterial {
		return errors.E(op, errors.Client(k.c.ID), errors.NoSpace)
	}
	b, err := wire.Marshal(record{Kind: kind, Material: material})
	if err != nil {
		return errors.E(op, errors.Client(k.c.ID), errors.CborError, err)
	}
	path := k.Path(secrecy, id)
	if err := k.c.st.Write(loc, path, b); err != nil {
		return errors.E(op, errors.Client(k.c.ID), errors.Path(path), errors.FilesystemWriteFailure, err)
	}
	pb, err := wire.Marshal(policyRecord{Policy: policy})
	if err != nil {
		return errors.E(op, errors.Client(k.c.ID), errors.CborError, err)
	}
	if err := k.c.st.Write(loc, policyPath(path), pb); err != nil {
		return errors.E(op, errors.Client(k.c.ID), errors.Path(path), errors.FilesystemWriteFailure, err)
	}
	return nil
}

// Read returns the full record stored at (secrecy, id) under any of the
// three locations, trying Internal, External, Volatile in turn since the
// caller does not name a location when reading by id. The policy is loaded
// from its own adjacent record, the way the auth overlay loads it
// independently when gating a request.
func (k Keystore) Read(secrecy keyforge.Secrecy, id keyforge.KeyID) (kind keyforge.KeyKind, policy keyforge.Policy, material []byte, err error) {
	const op = "keystore.Read"
	path := k.Path(secrecy, id)
	for _, loc := range []keyforge.Location{keyforge.Internal, keyforge.External, keyforge.Volatile} {
		b, rerr := k.c.st.Read(loc, path)
		if rerr != nil {
			continue
		}
		var rec record
		if uerr := wire.Unmarshal(b, &rec); uerr != nil {
			return keyforge.KeyKind{}, 0, nil, errors.E(op, errors.Client(k.c.ID), errors.Path(path), errors.CborError, uerr)
		}
		p, perr := k.readPolicy(loc, path)
		if perr != nil {
			return keyforge.KeyKind{}, 0, nil, errors.E(op, errors.Client(k.c.ID), errors.Path(path), perr)
		}
		return rec.Kind, p, rec.Material, nil
	}
	return keyforge.KeyKind{}, 0, nil, errors.E(op, errors.Client(k.c.ID), errors.Path(path), errors.NoSuchKey)
}

// readPolicy loads the policy blob adjacent to path at loc.
func (k Keystore) readPolicy(loc keyforge.Location, path string) (keyforge.Policy, error) {
	b, err := k.c.st.Read(loc, policyPath(path))
	if err != nil {
		return 0, errors.E("keystore.readPolicy", errors.CborError, err)
	}
	var pr policyRecord
	if err := wire.Unmarshal(b, &pr); err != nil {
		return 0, errors.E("keystore.readPolicy", errors.CborError, err)
	}
	return pr.Policy, nil
}

// Exists reports whether a key id has a record under the given secrecy
// half, in any location.
func (k Keystore) Exists(secrecy keyforge.Secrecy, id keyforge.KeyID) bool {
	path := k.Path(secrecy, id)
	for _, loc := range []keyforge.Location{keyforge.Internal, keyforge.External, keyforge.Volatile} {
		if ok, _ := k.c.st.Exists(loc, path); ok {
			return true
		}
	}
	return false
}

// Delete removes the record and its adjacent policy blob at (secrecy, id)
// from every location.
func (k Keystore) Delete(secrecy keyforge.Secrecy, id keyforge.KeyID) error {
	path := k.Path(secrecy, id)
	for _, loc := range []keyforge.Location{keyforge.Internal, keyforge.External, keyforge.Volatile} {
		k.c.st.Remove(loc, path)
		k.c.st.Remove(loc, policyPath(path))
	}
	return nil
}

// DeleteAll removes every key this client owns under loc, across both
// secrecy halves, returning the count removed.
func (k Keystore) DeleteAll(loc keyforge.Location) (uint32, error) {
	const op = "keystore.DeleteAll"
	var total uint32
	for _, secrecy := range []keyforge.Secrecy{keyforge.Secret, keyforge.Public} {
		n, err := k.c.st.RemoveDirAll(loc, k.c.prefix()+"/"+secrecy.String())
		if err != nil {
			return total, errors.E(op, errors.Client(k.c.ID), err)
		}
		total += n
	}
	return total, nil
}
