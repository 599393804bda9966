// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package service

import (
	"keyforge.io/auth"
	"keyforge.io/client"
	"keyforge.io/errors"
	"keyforge.io/keyforge"
	"keyforge.io/log"
	"keyforge.io/store"
	"keyforge.io/wire"
)

func lookupFor(op string, mech keyforge.Mechanism) (Algorithm, error) {
	a := Lookup(mech)
	if a == nil {
		return nil, errors.E(op, errors.MechanismNotAvailable)
	}
	return a, nil
}

// storeGenerated persists freshly generated material (and, for asymmetric
// families, the derived public half) under a fresh id, returning it.
func storeGenerated(cc *client.Context, res *Resources, algo Algorithm, kind keyforge.KeyKind, material []byte, attrs keyforge.StorageAttributes, policy keyforge.Policy) (keyforge.KeyID, error) {
	child, err := res.fork()
	if err != nil {
		return keyforge.KeyID{}, err
	}
	id := child.KeyID()
	if err := cc.Keystore().Store(id, attrs.Persistence, keyforge.Secret, kind, material, policy); err != nil {
		return keyforge.KeyID{}, err
	}
	if pd, ok := algo.(PublicDeriver); ok && kind.Family == keyforge.SecretEc {
		pub, err := pd.PublicFromPrivate(material)
		if err != nil {
			return keyforge.KeyID{}, err
		}
		pubKind := kind
		if err := cc.Keystore().Store(id, attrs.Persistence, keyforge.Public, pubKind, pub, policy); err != nil {
			return keyforge.KeyID{}, err
		}
	}
	return id, nil
}

func doGenerateKey(cc *client.Context, res *Resources, req *wire.GenerateKeyRequest) (*wire.GenerateKeyReply, error) {
	const op = "service.GenerateKey"
	algo, err := lookupFor(op, req.Mech)
	if err != nil {
		return nil, err
	}
	gen, ok := algo.(KeyGenerator)
	if !ok {
		return nil, errors.E(op, errors.MechanismNotAvailable)
	}
	child, err := res.fork()
	if err != nil {
		return nil, err
	}
	kind, material, err := gen.GenerateKey(child)
	if err != nil {
		return nil, errors.E(op, err)
	}
	id, err := storeGenerated(cc, res, algo, kind, material, req.Attrs, cc.CreationPolicy)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &wire.GenerateKeyReply{Key: id}, nil
}

func doGenerateSecretKey(cc *client.Context, res *Resources, req *wire.GenerateSecretKeyRequest) (*wire.GenerateSecretKeyReply, error) {
	const op = "service.GenerateSecretKey"
	child, err := res.fork()
	if err != nil {
		return nil, err
	}
	material := child.Bytes(int(req.Size))
	kind := keyforge.KeyKind{Family: keyforge.Symmetric, Size: req.Size}
	id := child.KeyID()
	if err := cc.Keystore().Store(id, req.Attrs.Persistence, keyforge.Secret, kind, material, cc.CreationPolicy); err != nil {
		return nil, errors.E(op, err)
	}
	return &wire.GenerateSecretKeyReply{Key: id}, nil
}

// requireGated loads id's stored policy and checks it against op via the
// auth package's policy gate (spec §4.G). The check is policy-only: it
// does not require the session to currently hold an authenticated PIN
// kind (see auth.RequireGated's doc comment for why).
func requireGated(cc *client.Context, id keyforge.KeyID, op keyforge.Operation) (keyforge.Policy, error) {
	_, policy, _, err := cc.Keystore().Read(keyforge.Secret, id)
	if err != nil {
		return 0, err
	}
	if err := auth.RequireGated(cc, policy, op); err != nil {
		return 0, errors.E("service.policy", err)
	}
	return policy, nil
}

func doAgree(cc *client.Context, res *Resources, req *wire.AgreeRequest) (*wire.AgreeReply, error) {
	const opName = "service.Agree"
	algo, err := lookupFor(opName, req.Mech)
	if err != nil {
		return nil, err
	}
	agreer, ok := algo.(Agreer)
	if !ok {
		return nil, errors.E(opName, errors.MechanismNotAvailable)
	}
	if _, err := requireGated(cc, req.Priv, keyforge.OpAgree); err != nil {
		return nil, errors.E(opName, err)
	}
	_, _, priv, err := cc.Keystore().Read(keyforge.Secret, req.Priv)
	if err != nil {
		return nil, errors.E(opName, err)
	}
	_, _, pub, err := cc.Keystore().Read(keyforge.Public, req.Pub)
	if err != nil {
		return nil, errors.E(opName, err)
	}
	shared, err := agreer.Agree(priv, pub)
	if err != nil {
		return nil, errors.E(opName, err)
	}
	kind := keyforge.KeyKind{Family: keyforge.Shared, Size: uint16(len(shared))}
	id, err := storeGenerated(cc, res, algo, kind, shared, req.Attrs, cc.CreationPolicy)
	if err != nil {
		return nil, errors.E(opName, err)
	}
	return &wire.AgreeReply{Shared: id}, nil
}

func doEncrypt(cc *client.Context, res *Resources, req *wire.EncryptRequest) (*wire.EncryptReply, error) {
	const op = "service.Encrypt"
	algo, err := lookupFor(op, req.Mech)
	if err != nil {
		return nil, err
	}
	aead, ok := algo.(AEAD)
	if !ok {
		return nil, errors.E(op, errors.MechanismNotAvailable)
	}
	if _, err := requireGated(cc, req.Key, keyforge.OpEncrypt); err != nil {
		return nil, errors.E(op, err)
	}
	_, _, key, err := cc.Keystore().Read(keyforge.Secret, req.Key)
	if err != nil {
		return nil, errors.E(op, err)
	}
	nonce := req.Nonce
	if len(nonce) == 0 {
		child, err := res.fork()
		if err != nil {
			return nil, err
		}
		nonce = child.Bytes(aead.NonceSize())
	}
	ct, tag, err := aead.Encrypt(key, nonce, req.Aad, req.Msg)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &wire.EncryptReply{Ciphertext: ct, Nonce: nonce, Tag: tag}, nil
}

func doDecrypt(cc *client.Context, req *wire.DecryptRequest) (*wire.DecryptReply, error) {
	const op = "service.Decrypt"
	algo, err := lookupFor(op, req.Mech)
	if err != nil {
		return nil, err
	}
	aead, ok := algo.(AEAD)
	if !ok {
		return nil, errors.E(op, errors.MechanismNotAvailable)
	}
	if _, err := requireGated(cc, req.Key, keyforge.OpDecrypt); err != nil {
		return nil, errors.E(op, err)
	}
	_, _, key, err := cc.Keystore().Read(keyforge.Secret, req.Key)
	if err != nil {
		return nil, errors.E(op, err)
	}
	pt, err := aead.Decrypt(key, req.Nonce, req.Aad, req.Msg, req.Tag)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &wire.DecryptReply{Plaintext: pt}, nil
}

func doDeriveKey(cc *client.Context, res *Resources, req *wire.DeriveKeyRequest) (*wire.DeriveKeyReply, error) {
	const op = "service.DeriveKey"
	algo, err := lookupFor(op, req.Mech)
	if err != nil {
		return nil, err
	}
	deriver, ok := algo.(Deriver)
	if !ok {
		return nil, errors.E(op, errors.MechanismNotAvailable)
	}
	if _, err := requireGated(cc, req.Base, keyforge.OpDerive); err != nil {
		return nil, errors.E(op, err)
	}
	_, _, base, err := cc.Keystore().Read(keyforge.Secret, req.Base)
	if err != nil {
		return nil, errors.E(op, err)
	}
	out, err := deriver.Derive(base, req.Aux, keySize)
	if err != nil {
		return nil, errors.E(op, err)
	}
	child, err := res.fork()
	if err != nil {
		return nil, err
	}
	id := child.KeyID()
	kind := keyforge.KeyKind{Family: keyforge.Symmetric, Size: keySize}
	if err := cc.Keystore().Store(id, req.Attrs.Persistence, keyforge.Secret, kind, out, cc.CreationPolicy); err != nil {
		return nil, errors.E(op, err)
	}
	return &wire.DeriveKeyReply{Key: id}, nil
}

func doDeserializeKey(cc *client.Context, res *Resources, req *wire.DeserializeKeyRequest) (*wire.DeserializeKeyReply, error) {
	const op = "service.DeserializeKey"
	algo, err := lookupFor(op, req.Mech)
	if err != nil {
		return nil, err
	}
	// A deserialized key's family follows the mechanism's own convention;
	// Symmetric for AEAD/HMAC mechanisms, SecretEc for curve mechanisms.
	kind := keyforge.KeyKind{Family: keyforge.Symmetric, Size: uint16(len(req.Bytes))}
	if _, ok := algo.(Agreer); ok {
		kind = keyforge.KeyKind{Family: keyforge.SecretEc, Curve: req.Mech}
	}
	id, err := storeGenerated(cc, res, algo, kind, req.Bytes, req.Attrs, cc.CreationPolicy)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &wire.DeserializeKeyReply{Key: id}, nil
}

func doSerializeKey(cc *client.Context, req *wire.SerializeKeyRequest) (*wire.SerializeKeyReply, error) {
	const op = "service.SerializeKey"
	if _, err := requireGated(cc, req.Key, keyforge.OpSerialize); err != nil {
		return nil, errors.E(op, err)
	}
	_, _, material, err := cc.Keystore().Read(keyforge.Secret, req.Key)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &wire.SerializeKeyReply{Bytes: material}, nil
}

func doSign(cc *client.Context, res *Resources, req *wire.SignRequest) (*wire.SignReply, error) {
	const op = "service.Sign"
	algo, err := lookupFor(op, req.Mech)
	if err != nil {
		return nil, err
	}
	signer, ok := algo.(Signer)
	if !ok {
		return nil, errors.E(op, errors.MechanismNotAvailable)
	}
	if _, err := requireGated(cc, req.Key, keyforge.OpSign); err != nil {
		return nil, errors.E(op, err)
	}
	_, _, key, err := cc.Keystore().Read(keyforge.Secret, req.Key)
	if err != nil {
		return nil, errors.E(op, err)
	}
	child, err := res.fork()
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(child, key, req.Msg)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &wire.SignReply{Sig: sig}, nil
}

// verifySecrecy names which secrecy half Verify reads its key from: the
// Public half for asymmetric mechanisms, the Secret half (the same key
// Sign uses) for symmetric ones such as HMAC.
func verifySecrecy(algo Algorithm) keyforge.Secrecy {
	if _, ok := algo.(PublicDeriver); ok {
		return keyforge.Public
	}
	return keyforge.Secret
}

func doVerify(cc *client.Context, req *wire.VerifyRequest) (*wire.VerifyReply, error) {
	const op = "service.Verify"
	algo, err := lookupFor(op, req.Mech)
	if err != nil {
		return nil, err
	}
	verifier, ok := algo.(Verifier)
	if !ok {
		return nil, errors.E(op, errors.MechanismNotAvailable)
	}
	if _, err := requireGated(cc, req.Key, keyforge.OpVerify); err != nil {
		return nil, errors.E(op, err)
	}
	_, _, key, err := cc.Keystore().Read(verifySecrecy(algo), req.Key)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &wire.VerifyReply{Valid: verifier.Verify(key, req.Msg, req.Sig)}, nil
}

func doHash(req *wire.HashRequest) (*wire.HashReply, error) {
	const op = "service.Hash"
	algo, err := lookupFor(op, req.Mech)
	if err != nil {
		return nil, err
	}
	hasher, ok := algo.(Hasher)
	if !ok {
		return nil, errors.E(op, errors.MechanismNotAvailable)
	}
	return &wire.HashReply{Hash: hasher.Hash(req.Msg)}, nil
}

func doRandomBytes(res *Resources, req *wire.RandomBytesRequest) (*wire.RandomBytesReply, error) {
	const op = "service.RandomBytes"
	const maxMessageLength = 1 << 16
	if req.Count > maxMessageLength {
		return nil, errors.E(op, errors.ImplementationError)
	}
	child, err := res.fork()
	if err != nil {
		return nil, err
	}
	return &wire.RandomBytesReply{Bytes: child.Bytes(int(req.Count))}, nil
}

func doDelete(cc *client.Context, req *wire.DeleteRequest) (*wire.DeleteReply, error) {
	if err := cc.Keystore().Delete(keyforge.Secret, req.Key); err != nil {
		return nil, errors.E("service.Delete", err)
	}
	cc.Keystore().Delete(keyforge.Public, req.Key)
	return &wire.DeleteReply{Success: true}, nil
}

func doExists(cc *client.Context, req *wire.ExistsRequest) (*wire.ExistsReply, error) {
	ok := cc.Keystore().Exists(keyforge.Secret, req.Key) || cc.Keystore().Exists(keyforge.Public, req.Key)
	return &wire.ExistsReply{Exists: ok}, nil
}

func doUnsafeInjectKey(cc *client.Context, res *Resources, req *wire.UnsafeInjectKeyRequest) (*wire.UnsafeInjectKeyReply, error) {
	const op = "service.UnsafeInjectKey"
	algo, err := lookupFor(op, req.Mech)
	if err != nil {
		return nil, err
	}
	kind := keyforge.KeyKind{Family: keyforge.Symmetric, Size: uint16(len(req.Raw))}
	if _, ok := algo.(Agreer); ok {
		kind = keyforge.KeyKind{Family: keyforge.SecretEc, Curve: req.Mech}
	}
	id, err := storeGenerated(cc, res, algo, kind, req.Raw, req.Attrs, cc.CreationPolicy)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &wire.UnsafeInjectKeyReply{Key: id}, nil
}

func doUnsafeInjectSharedKey(cc *client.Context, res *Resources, req *wire.UnsafeInjectSharedKeyRequest) (*wire.UnsafeInjectSharedKeyReply, error) {
	const op = "service.UnsafeInjectSharedKey"
	child, err := res.fork()
	if err != nil {
		return nil, err
	}
	id := child.KeyID()
	kind := keyforge.KeyKind{Family: keyforge.Shared, Size: uint16(len(req.Raw))}
	if err := cc.Keystore().Store(id, req.Loc, keyforge.Secret, kind, req.Raw, cc.CreationPolicy); err != nil {
		return nil, errors.E(op, err)
	}
	return &wire.UnsafeInjectSharedKeyReply{Key: id}, nil
}

func doWrapKey(cc *client.Context, res *Resources, req *wire.WrapKeyRequest) (*wire.WrapKeyReply, error) {
	const op = "service.WrapKey"
	algo, err := lookupFor(op, req.Mech)
	if err != nil {
		return nil, err
	}
	aead, ok := algo.(AEAD)
	if !ok {
		return nil, errors.E(op, errors.MechanismNotAvailable)
	}
	if _, err := requireGated(cc, req.Wkey, keyforge.OpWrap); err != nil {
		return nil, errors.E(op, err)
	}
	_, _, wkey, err := cc.Keystore().Read(keyforge.Secret, req.Wkey)
	if err != nil {
		return nil, errors.E(op, err)
	}
	_, _, material, err := cc.Keystore().Read(keyforge.Secret, req.Key)
	if err != nil {
		return nil, errors.E(op, err)
	}
	child, err := res.fork()
	if err != nil {
		return nil, err
	}
	nonce := child.Bytes(aead.NonceSize())
	ct, tag, err := aead.Encrypt(wkey, nonce, req.Aad, material)
	if err != nil {
		return nil, errors.E(op, err)
	}
	wrapped := append(append(nonce, tag...), ct...)
	return &wire.WrapKeyReply{Wrapped: wrapped}, nil
}

func doUnwrapKey(cc *client.Context, res *Resources, req *wire.UnwrapKeyRequest) (*wire.UnwrapKeyReply, error) {
	const op = "service.UnwrapKey"
	algo, err := lookupFor(op, req.Mech)
	if err != nil {
		return nil, err
	}
	aead, ok := algo.(AEAD)
	if !ok {
		return nil, errors.E(op, errors.MechanismNotAvailable)
	}
	if _, err := requireGated(cc, req.Wkey, keyforge.OpUnwrap); err != nil {
		return nil, errors.E(op, err)
	}
	_, _, wkey, err := cc.Keystore().Read(keyforge.Secret, req.Wkey)
	if err != nil {
		return nil, errors.E(op, err)
	}
	n := aead.NonceSize()
	if len(req.Wrapped) < n+16 {
		return &wire.UnwrapKeyReply{}, nil
	}
	nonce, rest := req.Wrapped[:n], req.Wrapped[n:]
	tag, ct := rest[:16], rest[16:]
	material, err := aead.Decrypt(wkey, nonce, req.Aad, ct, tag)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if material == nil {
		return &wire.UnwrapKeyReply{Wrapok: false}, nil
	}
	child, err := res.fork()
	if err != nil {
		return nil, err
	}
	id := child.KeyID()
	kind := keyforge.KeyKind{Family: keyforge.Symmetric, Size: uint16(len(material))}
	if err := cc.Keystore().Store(id, req.Attrs.Persistence, keyforge.Secret, kind, material, cc.CreationPolicy); err != nil {
		return nil, errors.E(op, err)
	}
	return &wire.UnwrapKeyReply{Key: id, Wrapok: true}, nil
}

func doCreateCounter(cc *client.Context, res *Resources, req *wire.CreateCounterRequest) (*wire.CreateCounterReply, error) {
	const op = "service.CreateCounter"
	child, err := res.fork()
	if err != nil {
		return nil, err
	}
	var id keyforge.CounterID
	copy(id[:], child.Bytes(16))
	if err := cc.Counterstore().Create(id, req.Loc); err != nil {
		return nil, errors.E(op, err)
	}
	return &wire.CreateCounterReply{ID: id}, nil
}

func doWriteCertificate(cc *client.Context, res *Resources, req *wire.WriteCertificateRequest) (*wire.WriteCertificateReply, error) {
	const op = "service.WriteCertificate"
	child, err := res.fork()
	if err != nil {
		return nil, err
	}
	var id keyforge.CertID
	copy(id[:], child.Bytes(16))
	if err := cc.Certstore().Write(id, req.Loc, req.Der); err != nil {
		return nil, errors.E(op, err)
	}
	return &wire.WriteCertificateReply{ID: id}, nil
}

// doDebugDumpStore walks every location's view of this client's namespace
// for diagnostic logging only (spec §4.E); it must produce no mutation, so
// it reads directly off the shared store rather than through the
// filestore's stateful ReadDirFirst/ReadDirNext cursor, which would discard
// whatever cursor the client currently holds.
func doDebugDumpStore(cc *client.Context) {
	st := cc.Store()
	root := string(cc.ID)
	for _, loc := range []keyforge.Location{keyforge.Internal, keyforge.External, keyforge.Volatile} {
		dumpDir(st, loc, root)
	}
}

// dumpDir logs every entry directly inside dir and recurses into its
// subdirectories, one List call per level.
func dumpDir(st store.Store, loc keyforge.Location, dir string) {
	names, err := st.List(loc, dir)
	if err != nil {
		log.Debug.Printf("debugdump %s %s: List: %v", loc, dir, err)
		return
	}
	for _, name := range names {
		path := name
		if dir != "" {
			path = dir + "/" + name
		}
		meta, err := st.Metadata(loc, path)
		if err != nil {
			log.Debug.Printf("debugdump %s %s: Metadata: %v", loc, path, err)
			continue
		}
		if meta.IsDirectory {
			log.Debug.Printf("debugdump %s %s/ (dir)", loc, path)
			dumpDir(st, loc, path)
			continue
		}
		log.Debug.Printf("debugdump %s %s (%d bytes)", loc, path, meta.Size)
	}
}

func doRequestUserConsent(res *Resources, req *wire.RequestUserConsentRequest) (*wire.RequestUserConsentReply, error) {
	ui := res.Platform.UI()
	ui.SetStatus(keyforge.WaitingForUserPresence)
	defer ui.SetStatus(keyforge.Idle)

	deadline := ui.Uptime() + uint64(req.TimeoutMillis)
	for {
		p := ui.CheckPresence()
		if p >= req.Level {
			return &wire.RequestUserConsentReply{Result: keyforge.ConsentOK}, nil
		}
		if ui.Uptime() >= deadline {
			return &wire.RequestUserConsentReply{Result: keyforge.ConsentTimedOut}, nil
		}
	}
}

// doAttest signs the caller's namespace path with the fixed attestation
// key named by req.Priv (held in the "attn" namespace, independent of the
// caller per spec §4.E) and files the signature as a certificate in the
// caller's own certstore.
func doAttest(cc *client.Context, res *Resources, req *wire.AttestRequest) (*wire.AttestReply, error) {
	const op = "service.Attest"
	algo, err := lookupFor(op, req.SignMech)
	if err != nil {
		return nil, err
	}
	signer, ok := algo.(Signer)
	if !ok {
		return nil, errors.E(op, errors.MechanismNotAvailable)
	}
	attn := client.AttestationKeystore(cc.Store())
	_, _, key, err := attn.Read(keyforge.Secret, req.Priv)
	if err != nil {
		return nil, errors.E(op, err)
	}
	child, err := res.fork()
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(child, key, []byte(cc.ID))
	if err != nil {
		return nil, errors.E(op, err)
	}
	var certID keyforge.CertID
	copy(certID[:], child.Bytes(16))
	if err := cc.Certstore().Write(certID, keyforge.Internal, sig); err != nil {
		return nil, errors.E(op, err)
	}
	return &wire.AttestReply{Cert: certID}, nil
}
