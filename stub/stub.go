// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stub implements the client-facing typed wrapper of spec §4.J: it
// constructs a request variant, places it in the exchange slot, invokes the
// platform's syscall hook to trigger a broker tick, then polls for the
// reply. Every method here is a thin marshal/unmarshal pair around
// keyforge.io/wire and keyforge.io/broker's exchange Slot.
package stub

import (
	"keyforge.io/errors"
	"keyforge.io/keyforge"
	"keyforge.io/wire"
)

// Slot is the subset of *broker.Slot the stub needs. Defined locally to
// avoid a dependency cycle (broker imports backend and service; neither
// needs to know about the stub).
type Slot interface {
	Submit(tag wire.Tag, payload []byte)
	TakeReply() (wire.Outcome, bool)
	Reset()
}

// Syscall triggers one broker tick. On real hardware this is typically a
// supervisor call or interrupt; in-process it can simply call Broker.Tick.
type Syscall func()

// Stub is one client's handle onto the broker: its exchange slot and the
// hook that wakes the broker up to service it.
type Stub struct {
	slot    Slot
	syscall Syscall
}

// New returns a Stub that submits through slot and wakes the broker with
// syscall after every Submit.
func New(slot Slot, syscall Syscall) *Stub {
	return &Stub{slot: slot, syscall: syscall}
}

// invoke is re-entrancy safe per spec §4.J: if the caller abandons the
// call (panics, or the goroutine is torn down) mid-poll, nothing here
// leaves the slot Requested forever from this call's perspective, because
// TakeReply only ever observes a slot the broker itself transitioned; a
// caller wanting to abandon a call must use Abandon below, which resets
// the slot explicitly rather than relying on this function unwinding.
func (s *Stub) invoke(tag wire.Tag, req interface{}) (wire.Outcome, error) {
	env, err := wire.Pack(tag, req)
	if err != nil {
		return wire.Outcome{}, errors.E("stub.invoke", errors.CborError, err)
	}
	s.slot.Submit(env.Tag, env.Payload)
	for {
		s.syscall()
		if out, ok := s.slot.TakeReply(); ok {
			return out, nil
		}
	}
}

// Abandon resets the exchange slot without waiting for a reply, per spec
// §4.J's re-entrancy requirement ("if the stub is dropped mid-call the
// exchange slot must be reset").
func (s *Stub) Abandon() {
	s.slot.Reset()
}

func call(s *Stub, tag wire.Tag, req, reply interface{}) error {
	out, err := s.invoke(tag, req)
	if err != nil {
		return err
	}
	return wire.UnpackOK(out, reply)
}

func (s *Stub) Agree(mech keyforge.Mechanism, priv, pub keyforge.KeyID, attrs keyforge.StorageAttributes) (keyforge.KeyID, error) {
	var reply wire.AgreeReply
	err := call(s, wire.TagAgree, &wire.AgreeRequest{Mech: mech, Priv: priv, Pub: pub, Attrs: attrs}, &reply)
	return reply.Shared, err
}

func (s *Stub) Decrypt(mech keyforge.Mechanism, key keyforge.KeyID, msg, aad, nonce, tag []byte) ([]byte, error) {
	var reply wire.DecryptReply
	err := call(s, wire.TagDecrypt, &wire.DecryptRequest{Mech: mech, Key: key, Msg: msg, Aad: aad, Nonce: nonce, Tag: tag}, &reply)
	return reply.Plaintext, err
}

func (s *Stub) DeriveKey(mech keyforge.Mechanism, base keyforge.KeyID, aux []byte, attrs keyforge.StorageAttributes) (keyforge.KeyID, error) {
	var reply wire.DeriveKeyReply
	err := call(s, wire.TagDeriveKey, &wire.DeriveKeyRequest{Mech: mech, Base: base, Aux: aux, Attrs: attrs}, &reply)
	return reply.Key, err
}

func (s *Stub) DeserializeKey(mech keyforge.Mechanism, bytes []byte, format uint8, attrs keyforge.StorageAttributes) (keyforge.KeyID, error) {
	var reply wire.DeserializeKeyReply
	err := call(s, wire.TagDeserializeKey, &wire.DeserializeKeyRequest{Mech: mech, Bytes: bytes, Format: format, Attrs: attrs}, &reply)
	return reply.Key, err
}

func (s *Stub) Encrypt(mech keyforge.Mechanism, key keyforge.KeyID, msg, aad, nonce []byte) (ciphertext, retNonce, tag []byte, err error) {
	var reply wire.EncryptReply
	err = call(s, wire.TagEncrypt, &wire.EncryptRequest{Mech: mech, Key: key, Msg: msg, Aad: aad, Nonce: nonce}, &reply)
	return reply.Ciphertext, reply.Nonce, reply.Tag, err
}

func (s *Stub) Delete(key keyforge.KeyID) (bool, error) {
	var reply wire.DeleteReply
	err := call(s, wire.TagDelete, &wire.DeleteRequest{Key: key}, &reply)
	return reply.Success, err
}

func (s *Stub) Exists(mech keyforge.Mechanism, key keyforge.KeyID) (bool, error) {
	var reply wire.ExistsReply
	err := call(s, wire.TagExists, &wire.ExistsRequest{Mech: mech, Key: key}, &reply)
	return reply.Exists, err
}

func (s *Stub) GenerateKey(mech keyforge.Mechanism, attrs keyforge.StorageAttributes) (keyforge.KeyID, error) {
	var reply wire.GenerateKeyReply
	err := call(s, wire.TagGenerateKey, &wire.GenerateKeyRequest{Mech: mech, Attrs: attrs}, &reply)
	return reply.Key, err
}

func (s *Stub) GenerateSecretKey(size uint16, attrs keyforge.StorageAttributes) (keyforge.KeyID, error) {
	var reply wire.GenerateSecretKeyReply
	err := call(s, wire.TagGenerateSecretKey, &wire.GenerateSecretKeyRequest{Size: size, Attrs: attrs}, &reply)
	return reply.Key, err
}

func (s *Stub) Hash(mech keyforge.Mechanism, msg []byte) ([]byte, error) {
	var reply wire.HashReply
	err := call(s, wire.TagHash, &wire.HashRequest{Mech: mech, Msg: msg}, &reply)
	return reply.Hash, err
}

func (s *Stub) ReadDirFilesFirst(loc keyforge.Location, dir, userAttr string) ([]byte, error) {
	var reply wire.ReadDirFilesFirstReply
	err := call(s, wire.TagReadDirFilesFirst, &wire.ReadDirFilesFirstRequest{Loc: loc, Dir: dir, UserAttr: userAttr}, &reply)
	return reply.Data, err
}

func (s *Stub) ReadDirFilesNext() ([]byte, error) {
	var reply wire.ReadDirFilesNextReply
	err := call(s, wire.TagReadDirFilesNext, &wire.ReadDirFilesNextRequest{}, &reply)
	return reply.Data, err
}

func (s *Stub) ReadFile(loc keyforge.Location, path string) ([]byte, error) {
	var reply wire.ReadFileReply
	err := call(s, wire.TagReadFile, &wire.ReadFileRequest{Loc: loc, Path: path}, &reply)
	return reply.Data, err
}

func (s *Stub) RandomBytes(count uint32) ([]byte, error) {
	var reply wire.RandomBytesReply
	err := call(s, wire.TagRandomBytes, &wire.RandomBytesRequest{Count: count}, &reply)
	return reply.Bytes, err
}

func (s *Stub) SerializeKey(mech keyforge.Mechanism, key keyforge.KeyID, format uint8) ([]byte, error) {
	var reply wire.SerializeKeyReply
	err := call(s, wire.TagSerializeKey, &wire.SerializeKeyRequest{Mech: mech, Key: key, Format: format}, &reply)
	return reply.Bytes, err
}

func (s *Stub) Sign(mech keyforge.Mechanism, key keyforge.KeyID, msg []byte, format uint8) ([]byte, error) {
	var reply wire.SignReply
	err := call(s, wire.TagSign, &wire.SignRequest{Mech: mech, Key: key, Msg: msg, Format: format}, &reply)
	return reply.Sig, err
}

func (s *Stub) WriteFile(loc keyforge.Location, path string, data []byte, userAttr string) error {
	return call(s, wire.TagWriteFile, &wire.WriteFileRequest{Loc: loc, Path: path, Data: data, UserAttr: userAttr}, &wire.WriteFileReply{})
}

func (s *Stub) UnsafeInjectKey(mech keyforge.Mechanism, raw []byte, attrs keyforge.StorageAttributes, format uint8) (keyforge.KeyID, error) {
	var reply wire.UnsafeInjectKeyReply
	err := call(s, wire.TagUnsafeInjectKey, &wire.UnsafeInjectKeyRequest{Mech: mech, Raw: raw, Attrs: attrs, Format: format}, &reply)
	return reply.Key, err
}

func (s *Stub) UnsafeInjectSharedKey(loc keyforge.Location, raw []byte) (keyforge.KeyID, error) {
	var reply wire.UnsafeInjectSharedKeyReply
	err := call(s, wire.TagUnsafeInjectSharedKey, &wire.UnsafeInjectSharedKeyRequest{Loc: loc, Raw: raw}, &reply)
	return reply.Key, err
}

func (s *Stub) UnwrapKey(mech keyforge.Mechanism, wkey keyforge.KeyID, wrapped, aad []byte, attrs keyforge.StorageAttributes) (keyforge.KeyID, bool, error) {
	var reply wire.UnwrapKeyReply
	err := call(s, wire.TagUnwrapKey, &wire.UnwrapKeyRequest{Mech: mech, Wkey: wkey, Wrapped: wrapped, Aad: aad, Attrs: attrs}, &reply)
	return reply.Key, reply.Wrapok, err
}

func (s *Stub) Verify(mech keyforge.Mechanism, key keyforge.KeyID, msg, sig []byte, format uint8) (bool, error) {
	var reply wire.VerifyReply
	err := call(s, wire.TagVerify, &wire.VerifyRequest{Mech: mech, Key: key, Msg: msg, Sig: sig, Format: format}, &reply)
	return reply.Valid, err
}

func (s *Stub) WrapKey(mech keyforge.Mechanism, wkey, key keyforge.KeyID, aad []byte) ([]byte, error) {
	var reply wire.WrapKeyReply
	err := call(s, wire.TagWrapKey, &wire.WrapKeyRequest{Mech: mech, Wkey: wkey, Key: key, Aad: aad}, &reply)
	return reply.Wrapped, err
}

func (s *Stub) DeleteAllKeys(loc keyforge.Location) (uint32, error) {
	var reply wire.DeleteAllKeysReply
	err := call(s, wire.TagDeleteAllKeys, &wire.DeleteAllKeysRequest{Loc: loc}, &reply)
	return reply.Count, err
}

func (s *Stub) Metadata(loc keyforge.Location, path string) (*keyforge.FileMetadata, error) {
	var reply wire.MetadataReply
	err := call(s, wire.TagMetadata, &wire.MetadataRequest{Loc: loc, Path: path}, &reply)
	return reply.Meta, err
}

func (s *Stub) ReadDirFirst(loc keyforge.Location, dir, notBefore string) (*keyforge.DirEntry, error) {
	var reply wire.ReadDirFirstReply
	err := call(s, wire.TagReadDirFirst, &wire.ReadDirFirstRequest{Loc: loc, Dir: dir, NotBefore: notBefore}, &reply)
	return reply.Entry, err
}

func (s *Stub) ReadDirNext() (*keyforge.DirEntry, error) {
	var reply wire.ReadDirNextReply
	err := call(s, wire.TagReadDirNext, &wire.ReadDirNextRequest{}, &reply)
	return reply.Entry, err
}

func (s *Stub) RemoveFile(loc keyforge.Location, path string) error {
	return call(s, wire.TagRemoveFile, &wire.RemoveFileRequest{Loc: loc, Path: path}, &wire.RemoveFileReply{})
}

func (s *Stub) RemoveDirAll(loc keyforge.Location, path string) (uint32, error) {
	var reply wire.RemoveDirAllReply
	err := call(s, wire.TagRemoveDirAll, &wire.RemoveDirAllRequest{Loc: loc, Path: path}, &reply)
	return reply.Count, err
}

func (s *Stub) LocateFile(loc keyforge.Location, dir, name string) (string, error) {
	var reply wire.LocateFileReply
	err := call(s, wire.TagLocateFile, &wire.LocateFileRequest{Loc: loc, Dir: dir, Name: name}, &reply)
	return reply.Path, err
}

func (s *Stub) RemoveDir(loc keyforge.Location, path string) error {
	return call(s, wire.TagRemoveDir, &wire.RemoveDirRequest{Loc: loc, Path: path}, &wire.RemoveDirReply{})
}

func (s *Stub) RequestUserConsent(level keyforge.Presence, timeoutMillis uint32) (keyforge.ConsentResult, error) {
	var reply wire.RequestUserConsentReply
	err := call(s, wire.TagRequestUserConsent, &wire.RequestUserConsentRequest{Level: level, TimeoutMillis: timeoutMillis}, &reply)
	return reply.Result, err
}

// Reboot submits the request but does not wait for a reply: the broker
// side never returns from it.
func (s *Stub) Reboot(to keyforge.RebootTo) error {
	env, err := wire.Pack(wire.TagReboot, &wire.RebootRequest{To: to})
	if err != nil {
		return errors.E("stub.Reboot", errors.CborError, err)
	}
	s.slot.Submit(env.Tag, env.Payload)
	s.syscall()
	return nil
}

func (s *Stub) Uptime() (uint64, error) {
	var reply wire.UptimeReply
	err := call(s, wire.TagUptime, &wire.UptimeRequest{}, &reply)
	return reply.UptimeMillis, err
}

func (s *Stub) Wink(durationMillis uint32) error {
	return call(s, wire.TagWink, &wire.WinkRequest{DurationMillis: durationMillis}, &wire.WinkReply{})
}

func (s *Stub) CreateCounter(loc keyforge.Location) (keyforge.CounterID, error) {
	var reply wire.CreateCounterReply
	err := call(s, wire.TagCreateCounter, &wire.CreateCounterRequest{Loc: loc}, &reply)
	return reply.ID, err
}

func (s *Stub) IncrementCounter(id keyforge.CounterID) (keyforge.Uint128, error) {
	var reply wire.IncrementCounterReply
	err := call(s, wire.TagIncrementCounter, &wire.IncrementCounterRequest{ID: id}, &reply)
	return reply.Counter, err
}

func (s *Stub) DeleteCertificate(id keyforge.CertID) error {
	return call(s, wire.TagDeleteCertificate, &wire.DeleteCertificateRequest{ID: id}, &wire.DeleteCertificateReply{})
}

func (s *Stub) ReadCertificate(id keyforge.CertID) ([]byte, error) {
	var reply wire.ReadCertificateReply
	err := call(s, wire.TagReadCertificate, &wire.ReadCertificateRequest{ID: id}, &reply)
	return reply.Der, err
}

func (s *Stub) WriteCertificate(loc keyforge.Location, der []byte) (keyforge.CertID, error) {
	var reply wire.WriteCertificateReply
	err := call(s, wire.TagWriteCertificate, &wire.WriteCertificateRequest{Loc: loc, Der: der}, &reply)
	return reply.ID, err
}

func (s *Stub) SetServiceBackends(backends []keyforge.BackendSelector) error {
	return call(s, wire.TagSetServiceBackends, &wire.SetServiceBackendsRequest{Backends: backends}, &wire.SetServiceBackendsReply{})
}

func (s *Stub) DebugDumpStore() error {
	return call(s, wire.TagDebugDumpStore, &wire.DebugDumpStoreRequest{}, &wire.DebugDumpStoreReply{})
}

func (s *Stub) Attest(signMech keyforge.Mechanism, priv keyforge.KeyID) (keyforge.CertID, error) {
	var reply wire.AttestReply
	err := call(s, wire.TagAttest, &wire.AttestRequest{SignMech: signMech, Priv: priv}, &reply)
	return reply.Cert, err
}

// Extension submits a domain-specific sub-protocol payload to the backend
// owning backendID, under extension id extID.
func (s *Stub) Extension(backendID, extID uint8, payload []byte) ([]byte, error) {
	var reply wire.ExtensionReply
	err := call(s, wire.TagExtension, &wire.ExtensionRequest{BackendID: backendID, ExtID: extID, Payload: payload}, &reply)
	return reply.Payload, err
}
