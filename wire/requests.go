// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import "keyforge.io/keyforge"

// Request payload structs, one per Tag constant in wire.go. Field indices
// are positional and start at 0; they must never be renumbered even if a
// struct's Go field order changes, which is why every field carries an
// explicit `cbor:"N,keyasint"` tag rather than relying on declaration
// order.

type AgreeRequest struct {
	Mech  keyforge.Mechanism         `cbor:"0,keyasint"`
	Priv  keyforge.KeyID             `cbor:"1,keyasint"`
	Pub   keyforge.KeyID             `cbor:"2,keyasint"`
	Attrs keyforge.StorageAttributes `cbor:"3,keyasint"`
}

type DecryptRequest struct {
	Mech  keyforge.Mechanism `cbor:"0,keyasint"`
	Key   keyforge.KeyID     `cbor:"1,keyasint"`
	Msg   []byte             `cbor:"2,keyasint"`
	Aad   []byte             `cbor:"3,keyasint"`
	Nonce []byte             `cbor:"4,keyasint"`
	Tag   []byte             `cbor:"5,keyasint"`
}

type DeriveKeyRequest struct {
	Mech  keyforge.Mechanism         `cbor:"0,keyasint"`
	Base  keyforge.KeyID             `cbor:"1,keyasint"`
	Aux   []byte                     `cbor:"2,keyasint,omitempty"`
	Attrs keyforge.StorageAttributes `cbor:"3,keyasint"`
}

type DeserializeKeyRequest struct {
	Mech   keyforge.Mechanism         `cbor:"0,keyasint"`
	Bytes  []byte                     `cbor:"1,keyasint"`
	Format uint8                      `cbor:"2,keyasint"`
	Attrs  keyforge.StorageAttributes `cbor:"3,keyasint"`
}

type EncryptRequest struct {
	Mech  keyforge.Mechanism `cbor:"0,keyasint"`
	Key   keyforge.KeyID     `cbor:"1,keyasint"`
	Msg   []byte             `cbor:"2,keyasint"`
	Aad   []byte             `cbor:"3,keyasint"`
	Nonce []byte             `cbor:"4,keyasint,omitempty"`
}

type DeleteRequest struct {
	Key keyforge.KeyID `cbor:"0,keyasint"`
}

type ExistsRequest struct {
	Mech keyforge.Mechanism `cbor:"0,keyasint"`
	Key  keyforge.KeyID     `cbor:"1,keyasint"`
}

type GenerateKeyRequest struct {
	Mech  keyforge.Mechanism         `cbor:"0,keyasint"`
	Attrs keyforge.StorageAttributes `cbor:"1,keyasint"`
}

type GenerateSecretKeyRequest struct {
	Size  uint16                     `cbor:"0,keyasint"`
	Attrs keyforge.StorageAttributes `cbor:"1,keyasint"`
}

type HashRequest struct {
	Mech keyforge.Mechanism `cbor:"0,keyasint"`
	Msg  []byte             `cbor:"1,keyasint"`
}

type ReadDirFilesFirstRequest struct {
	Loc      keyforge.Location `cbor:"0,keyasint"`
	Dir      string            `cbor:"1,keyasint"`
	UserAttr string            `cbor:"2,keyasint,omitempty"`
}

type ReadDirFilesNextRequest struct{}

type ReadFileRequest struct {
	Loc  keyforge.Location `cbor:"0,keyasint"`
	Path string            `cbor:"1,keyasint"`
}

type RandomBytesRequest struct {
	Count uint32 `cbor:"0,keyasint"`
}

type SerializeKeyRequest struct {
	Mech   keyforge.Mechanism `cbor:"0,keyasint"`
	Key    keyforge.KeyID     `cbor:"1,keyasint"`
	Format uint8              `cbor:"2,keyasint"`
}

type SignRequest struct {
	Mech   keyforge.Mechanism `cbor:"0,keyasint"`
	Key    keyforge.KeyID     `cbor:"1,keyasint"`
	Msg    []byte             `cbor:"2,keyasint"`
	Format uint8              `cbor:"3,keyasint"`
}

type WriteFileRequest struct {
	Loc      keyforge.Location `cbor:"0,keyasint"`
	Path     string            `cbor:"1,keyasint"`
	Data     []byte            `cbor:"2,keyasint"`
	UserAttr string            `cbor:"3,keyasint,omitempty"`
}

type UnsafeInjectKeyRequest struct {
	Mech   keyforge.Mechanism         `cbor:"0,keyasint"`
	Raw    []byte                     `cbor:"1,keyasint"`
	Attrs  keyforge.StorageAttributes `cbor:"2,keyasint"`
	Format uint8                      `cbor:"3,keyasint"`
}

type UnsafeInjectSharedKeyRequest struct {
	Loc keyforge.Location `cbor:"0,keyasint"`
	Raw []byte            `cbor:"1,keyasint"`
}

type UnwrapKeyRequest struct {
	Mech    keyforge.Mechanism         `cbor:"0,keyasint"`
	Wkey    keyforge.KeyID             `cbor:"1,keyasint"`
	Wrapped []byte                     `cbor:"2,keyasint"`
	Aad     []byte                     `cbor:"3,keyasint"`
	Attrs   keyforge.StorageAttributes `cbor:"4,keyasint"`
}

type VerifyRequest struct {
	Mech   keyforge.Mechanism `cbor:"0,keyasint"`
	Key    keyforge.KeyID     `cbor:"1,keyasint"`
	Msg    []byte             `cbor:"2,keyasint"`
	Sig    []byte             `cbor:"3,keyasint"`
	Format uint8              `cbor:"4,keyasint"`
}

type WrapKeyRequest struct {
	Mech keyforge.Mechanism `cbor:"0,keyasint"`
	Wkey keyforge.KeyID     `cbor:"1,keyasint"`
	Key  keyforge.KeyID     `cbor:"2,keyasint"`
	Aad  []byte             `cbor:"3,keyasint"`
}

type DeleteAllKeysRequest struct {
	Loc keyforge.Location `cbor:"0,keyasint"`
}

type MetadataRequest struct {
	Loc  keyforge.Location `cbor:"0,keyasint"`
	Path string            `cbor:"1,keyasint"`
}

type ReadDirFirstRequest struct {
	Loc       keyforge.Location `cbor:"0,keyasint"`
	Dir       string            `cbor:"1,keyasint"`
	NotBefore string            `cbor:"2,keyasint,omitempty"`
}

type ReadDirNextRequest struct{}

type RemoveFileRequest struct {
	Loc  keyforge.Location `cbor:"0,keyasint"`
	Path string            `cbor:"1,keyasint"`
}

type RemoveDirAllRequest struct {
	Loc  keyforge.Location `cbor:"0,keyasint"`
	Path string            `cbor:"1,keyasint"`
}

type LocateFileRequest struct {
	Loc  keyforge.Location `cbor:"0,keyasint"`
	Dir  string            `cbor:"1,keyasint,omitempty"`
	Name string            `cbor:"2,keyasint"`
}

type RemoveDirRequest struct {
	Loc  keyforge.Location `cbor:"0,keyasint"`
	Path string            `cbor:"1,keyasint"`
}

type RequestUserConsentRequest struct {
	Level         keyforge.Presence `cbor:"0,keyasint"`
	TimeoutMillis uint32            `cbor:"1,keyasint"`
}

type RebootRequest struct {
	To keyforge.RebootTo `cbor:"0,keyasint"`
}

type UptimeRequest struct{}

type WinkRequest struct {
	DurationMillis uint32 `cbor:"0,keyasint"`
}

type CreateCounterRequest struct {
	Loc keyforge.Location `cbor:"0,keyasint"`
}

type IncrementCounterRequest struct {
	ID keyforge.CounterID `cbor:"0,keyasint"`
}

type DeleteCertificateRequest struct {
	ID keyforge.CertID `cbor:"0,keyasint"`
}

type ReadCertificateRequest struct {
	ID keyforge.CertID `cbor:"0,keyasint"`
}

type WriteCertificateRequest struct {
	Loc keyforge.Location `cbor:"0,keyasint"`
	Der []byte            `cbor:"1,keyasint"`
}

type SetServiceBackendsRequest struct {
	Backends []keyforge.BackendSelector `cbor:"0,keyasint"`
}

type DebugDumpStoreRequest struct{}

type AttestRequest struct {
	SignMech keyforge.Mechanism `cbor:"0,keyasint"`
	Priv     keyforge.KeyID     `cbor:"1,keyasint"`
}

// ExtensionRequest carries a domain-specific sub-protocol owned by one
// backend (spec §4.F): ext_id names the extension, Payload is that
// extension's own CBOR-encoded request union member.
type ExtensionRequest struct {
	BackendID uint8  `cbor:"0,keyasint"`
	ExtID     uint8  `cbor:"1,keyasint"`
	Payload   []byte `cbor:"2,keyasint"`
}
