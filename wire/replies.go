// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import "keyforge.io/keyforge"

// Reply payload structs, one per Tag constant in wire.go. See requests.go
// for the field-index stability rule.

type AgreeReply struct {
	Shared keyforge.KeyID `cbor:"0,keyasint"`
}

type DecryptReply struct {
	// Plaintext is nil when authentication failed (tamper detected).
	Plaintext []byte `cbor:"0,keyasint,omitempty"`
}

type DeriveKeyReply struct {
	Key keyforge.KeyID `cbor:"0,keyasint"`
}

type DeserializeKeyReply struct {
	Key keyforge.KeyID `cbor:"0,keyasint"`
}

type EncryptReply struct {
	Ciphertext []byte `cbor:"0,keyasint"`
	Nonce      []byte `cbor:"1,keyasint"`
	Tag        []byte `cbor:"2,keyasint"`
}

type DeleteReply struct {
	Success bool `cbor:"0,keyasint"`
}

type ExistsReply struct {
	Exists bool `cbor:"0,keyasint"`
}

type GenerateKeyReply struct {
	Key keyforge.KeyID `cbor:"0,keyasint"`
}

type GenerateSecretKeyReply struct {
	Key keyforge.KeyID `cbor:"0,keyasint"`
}

type HashReply struct {
	Hash []byte `cbor:"0,keyasint"`
}

type ReadDirFilesFirstReply struct {
	Data []byte `cbor:"0,keyasint,omitempty"`
}

type ReadDirFilesNextReply struct {
	Data []byte `cbor:"0,keyasint,omitempty"`
}

type ReadFileReply struct {
	Data []byte `cbor:"0,keyasint"`
}

type RandomBytesReply struct {
	Bytes []byte `cbor:"0,keyasint"`
}

type SerializeKeyReply struct {
	Bytes []byte `cbor:"0,keyasint"`
}

type SignReply struct {
	Sig []byte `cbor:"0,keyasint"`
}

type WriteFileReply struct{}

type UnsafeInjectKeyReply struct {
	Key keyforge.KeyID `cbor:"0,keyasint"`
}

type UnsafeInjectSharedKeyReply struct {
	Key keyforge.KeyID `cbor:"0,keyasint"`
}

type UnwrapKeyReply struct {
	// Key is the zero KeyID when unwrap/verification failed.
	Key    keyforge.KeyID `cbor:"0,keyasint"`
	Wrapok bool           `cbor:"1,keyasint"`
}

type VerifyReply struct {
	Valid bool `cbor:"0,keyasint"`
}

type WrapKeyReply struct {
	Wrapped []byte `cbor:"0,keyasint"`
}

type DeleteAllKeysReply struct {
	Count uint32 `cbor:"0,keyasint"`
}

type MetadataReply struct {
	Meta   *keyforge.FileMetadata `cbor:"0,keyasint,omitempty"`
}

type ReadDirFirstReply struct {
	Entry *keyforge.DirEntry `cbor:"0,keyasint,omitempty"`
}

type ReadDirNextReply struct {
	Entry *keyforge.DirEntry `cbor:"0,keyasint,omitempty"`
}

type RemoveFileReply struct{}

type RemoveDirAllReply struct {
	Count uint32 `cbor:"0,keyasint"`
}

type LocateFileReply struct {
	Path string `cbor:"0,keyasint,omitempty"`
}

type RemoveDirReply struct{}

type RequestUserConsentReply struct {
	Result keyforge.ConsentResult `cbor:"0,keyasint"`
}

// RebootRequest never replies: the broker does not enqueue an Outcome for
// it because the call does not return on real hardware.

type UptimeReply struct {
	UptimeMillis uint64 `cbor:"0,keyasint"`
}

type WinkReply struct{}

type CreateCounterReply struct {
	ID keyforge.CounterID `cbor:"0,keyasint"`
}

type IncrementCounterReply struct {
	Counter keyforge.Uint128 `cbor:"0,keyasint"`
}

type DeleteCertificateReply struct{}

type ReadCertificateReply struct {
	Der []byte `cbor:"0,keyasint"`
}

type WriteCertificateReply struct {
	ID keyforge.CertID `cbor:"0,keyasint"`
}

type SetServiceBackendsReply struct{}

type DebugDumpStoreReply struct{}

type AttestReply struct {
	Cert keyforge.CertID `cbor:"0,keyasint"`
}

// ExtensionReply mirrors ExtensionRequest: the dispatcher knows nothing
// about Payload's contents, only that it is CBOR produced by the owning
// backend's extension.
type ExtensionReply struct {
	Payload []byte `cbor:"0,keyasint"`
}
