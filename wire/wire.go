// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wire defines the closed request/reply tagged union that crosses
// the client/broker boundary, and the CBOR-based codec that serializes it.
//
// Each variant has a stable 8-bit discriminant (the Tag constants below)
// that defines its on-wire identity; these must never be renumbered.
// Each variant's payload serializes as a CBOR map keyed by field index
// (the struct tag `cbor:"N,keyasint"`); field indices are positional,
// start at 0, and must likewise never be renumbered. Discriminants are
// deliberately decoupled from Go declaration order, following the
// teacher's practice in upspin/code.go of keeping wire layout independent
// of source layout.
package wire

import (
	"github.com/fxamacker/cbor/v2"

	"keyforge.io/errors"
)

// Tag is the 8-bit wire discriminant for a request/reply variant.
type Tag uint8

// The canonical discriminant table. Values are fixed by specification and
// must not be renumbered even if declarations are reordered.
const (
	TagAgree                  Tag = 1
	TagDecrypt                Tag = 3
	TagDeriveKey              Tag = 4
	TagDeserializeKey         Tag = 5
	TagEncrypt                Tag = 6
	TagDelete                 Tag = 7
	TagExists                 Tag = 8
	TagGenerateKey            Tag = 10
	TagGenerateSecretKey      Tag = 11
	TagHash                   Tag = 12
	TagReadDirFilesFirst      Tag = 13
	TagReadDirFilesNext       Tag = 14
	TagReadFile               Tag = 15
	TagRandomBytes            Tag = 16
	TagSerializeKey           Tag = 17
	TagSign                   Tag = 18
	TagWriteFile              Tag = 19
	TagUnsafeInjectKey        Tag = 20
	TagUnsafeInjectSharedKey  Tag = 21
	TagUnwrapKey              Tag = 22
	TagVerify                 Tag = 23
	TagWrapKey                Tag = 24
	TagDeleteAllKeys          Tag = 25
	TagMetadata               Tag = 26
	TagReadDirFirst           Tag = 31
	TagReadDirNext            Tag = 32
	TagRemoveFile             Tag = 33
	TagRemoveDirAll           Tag = 34
	TagLocateFile             Tag = 35
	TagRemoveDir              Tag = 36
	TagRequestUserConsent     Tag = 41
	TagReboot                 Tag = 42
	TagUptime                 Tag = 43
	TagWink                   Tag = 44
	TagCreateCounter          Tag = 50
	TagIncrementCounter       Tag = 51
	TagDeleteCertificate      Tag = 60
	TagReadCertificate        Tag = 61
	TagWriteCertificate       Tag = 62
	TagSetServiceBackends     Tag = 90
	TagExtension              Tag = 91
	TagDebugDumpStore         Tag = 0x79
	TagAttest                 Tag = 0xFF
)

// Envelope is the outermost frame placed in the exchange slot (spec §4.J):
// a discriminant plus the CBOR-encoded payload for that discriminant's
// request or reply struct.
type Envelope struct {
	Tag     Tag    `cbor:"0,keyasint"`
	Payload []byte `cbor:"1,keyasint"`
}

// Outcome is the wire rendition of Result<Reply, Error>: exactly one of OK
// or Err is set. It is what the broker writes back into the exchange slot.
type Outcome struct {
	OK  []byte        `cbor:"0,keyasint,omitempty"`
	Err *errors.Error `cbor:"1,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.EncOptions{
		Sort: cbor.SortNone,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em

	dm, err := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	decMode = dm
}

// Marshal encodes v (a request or reply payload struct, or the Envelope /
// Outcome types above) into CBOR.
func Marshal(v interface{}) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, errors.E("wire.Marshal", errors.CborError, err)
	}
	return b, nil
}

// Unmarshal decodes CBOR bytes into v. An index present in the encoded map
// but absent from v's fields is a protocol error (errors.InvalidSerialization),
// per spec §4.A.
func Unmarshal(data []byte, v interface{}) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return errors.E("wire.Unmarshal", errors.InvalidSerialization, err)
	}
	return nil
}

// Pack encodes a request/reply payload and wraps it with tag into an
// Envelope, ready to place in an exchange slot.
func Pack(tag Tag, payload interface{}) (Envelope, error) {
	b, err := Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Tag: tag, Payload: b}, nil
}

// Unpack decodes an Envelope's payload into dst, which must be a pointer to
// the payload struct matching env.Tag.
func Unpack(env Envelope, dst interface{}) error {
	return Unmarshal(env.Payload, dst)
}

// PackOK wraps a successful reply payload into an Outcome.
func PackOK(reply interface{}) (Outcome, error) {
	b, err := Marshal(reply)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{OK: b}, nil
}

// PackErr wraps err into an Outcome. err should be an *errors.Error; other
// error types are adapted via errors.E.
func PackErr(err error) Outcome {
	e, ok := err.(*errors.Error)
	if !ok {
		e = &errors.Error{Err: err}
	}
	return Outcome{Err: e}
}

// UnpackOK decodes a successful Outcome's payload into dst. If o carries
// Err, UnpackOK returns that error and leaves dst untouched.
func UnpackOK(o Outcome, dst interface{}) error {
	if o.Err != nil {
		return o.Err
	}
	return Unmarshal(o.OK, dst)
}
