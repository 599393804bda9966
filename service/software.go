// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package service

import (
	"keyforge.io/auth"
	"keyforge.io/client"
	"keyforge.io/errors"
	"keyforge.io/keyforge"
	"keyforge.io/rng"
	"keyforge.io/wire"
)

// Resources bundles the collaborators a dispatched request needs beyond the
// calling client's own Context: the PRNG root to fork from and the
// platform's entropy/UI traits.
type Resources struct {
	Root     *rng.Root
	Platform keyforge.Platform
}

// fork draws a per-operation child DRBG, the only way Software ever touches
// randomness (spec §4.D: operations never consume the root directly).
func (r *Resources) fork() (*rng.Child, error) {
	return r.Root.Fork()
}

// Software is the built-in default backend implementing every request
// variant named in spec §6 (spec §4.E); it is the backend chain's fallback.
// It returns errors.RequestNotAvailable only for a tag its dispatch table
// does not handle and for an extension id other than auth.ExtID.
type Software struct{}

// Request dispatches one request payload by tag and returns the packed
// Outcome the broker places in the reply half of the exchange slot.
func (Software) Request(cc *client.Context, res *Resources, tag wire.Tag, payload []byte) wire.Outcome {
	reply, err := dispatch(cc, res, tag, payload)
	if err != nil {
		return wire.PackErr(err)
	}
	out, err := wire.PackOK(reply)
	if err != nil {
		return wire.PackErr(errors.E("service.Request", errors.CborError, err))
	}
	return out
}

// ExtensionRequest answers backend-owned sub-protocol requests. The only
// extension Software owns is the PIN-management protocol at extension id
// auth.ExtID; everything else defers with errors.RequestNotAvailable.
func (Software) ExtensionRequest(cc *client.Context, res *Resources, extID uint8, payload []byte) wire.Outcome {
	return auth.HandleExtension(cc, extID, payload)
}

func unpack(tag wire.Tag, payload []byte, dst interface{}) error {
	env := wire.Envelope{Tag: tag, Payload: payload}
	return wire.Unpack(env, dst)
}

func dispatch(cc *client.Context, res *Resources, tag wire.Tag, payload []byte) (interface{}, error) {
	switch tag {
	case wire.TagAgree:
		var req wire.AgreeRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doAgree(cc, res, &req)
	case wire.TagDecrypt:
		var req wire.DecryptRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doDecrypt(cc, &req)
	case wire.TagDeriveKey:
		var req wire.DeriveKeyRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doDeriveKey(cc, res, &req)
	case wire.TagDeserializeKey:
		var req wire.DeserializeKeyRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doDeserializeKey(cc, res, &req)
	case wire.TagEncrypt:
		var req wire.EncryptRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doEncrypt(cc, res, &req)
	case wire.TagDelete:
		var req wire.DeleteRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doDelete(cc, &req)
	case wire.TagExists:
		var req wire.ExistsRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doExists(cc, &req)
	case wire.TagGenerateKey:
		var req wire.GenerateKeyRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doGenerateKey(cc, res, &req)
	case wire.TagGenerateSecretKey:
		var req wire.GenerateSecretKeyRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doGenerateSecretKey(cc, res, &req)
	case wire.TagHash:
		var req wire.HashRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doHash(&req)
	case wire.TagReadDirFilesFirst:
		var req wire.ReadDirFilesFirstRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		data, err := cc.Filestore().ReadDirFilesFirst(req.Loc, req.Dir, req.UserAttr)
		if err != nil {
			return nil, err
		}
		return &wire.ReadDirFilesFirstReply{Data: data}, nil
	case wire.TagReadDirFilesNext:
		data, err := cc.Filestore().ReadDirFilesNext()
		if err != nil {
			return nil, err
		}
		return &wire.ReadDirFilesNextReply{Data: data}, nil
	case wire.TagReadFile:
		var req wire.ReadFileRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		data, err := cc.Filestore().Read(req.Loc, req.Path)
		if err != nil {
			return nil, err
		}
		return &wire.ReadFileReply{Data: data}, nil
	case wire.TagRandomBytes:
		var req wire.RandomBytesRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doRandomBytes(res, &req)
	case wire.TagSerializeKey:
		var req wire.SerializeKeyRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doSerializeKey(cc, &req)
	case wire.TagSign:
		var req wire.SignRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doSign(cc, res, &req)
	case wire.TagWriteFile:
		var req wire.WriteFileRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		if err := cc.Filestore().Write(req.Loc, req.Path, req.Data); err != nil {
			return nil, err
		}
		return &wire.WriteFileReply{}, nil
	case wire.TagUnsafeInjectKey:
		var req wire.UnsafeInjectKeyRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doUnsafeInjectKey(cc, res, &req)
	case wire.TagUnsafeInjectSharedKey:
		var req wire.UnsafeInjectSharedKeyRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doUnsafeInjectSharedKey(cc, res, &req)
	case wire.TagUnwrapKey:
		var req wire.UnwrapKeyRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doUnwrapKey(cc, res, &req)
	case wire.TagVerify:
		var req wire.VerifyRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doVerify(cc, &req)
	case wire.TagWrapKey:
		var req wire.WrapKeyRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doWrapKey(cc, res, &req)
	case wire.TagDeleteAllKeys:
		var req wire.DeleteAllKeysRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		n, err := cc.Keystore().DeleteAll(req.Loc)
		if err != nil {
			return nil, err
		}
		return &wire.DeleteAllKeysReply{Count: n}, nil
	case wire.TagMetadata:
		var req wire.MetadataRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		m, err := cc.Filestore().Metadata(req.Loc, req.Path)
		if errors.Is(errors.NotFound, err) {
			return &wire.MetadataReply{}, nil
		}
		if err != nil {
			return nil, err
		}
		return &wire.MetadataReply{Meta: m}, nil
	case wire.TagReadDirFirst:
		var req wire.ReadDirFirstRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		e, err := cc.Filestore().ReadDirFirst(req.Loc, req.Dir, req.NotBefore)
		if err != nil {
			return nil, err
		}
		return &wire.ReadDirFirstReply{Entry: e}, nil
	case wire.TagReadDirNext:
		e, err := cc.Filestore().ReadDirNext()
		if err != nil {
			return nil, err
		}
		return &wire.ReadDirNextReply{Entry: e}, nil
	case wire.TagRemoveFile:
		var req wire.RemoveFileRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		if err := cc.Filestore().Remove(req.Loc, req.Path); err != nil {
			return nil, err
		}
		return &wire.RemoveFileReply{}, nil
	case wire.TagRemoveDirAll:
		var req wire.RemoveDirAllRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		n, err := cc.Filestore().RemoveDirAll(req.Loc, req.Path)
		if err != nil {
			return nil, err
		}
		return &wire.RemoveDirAllReply{Count: n}, nil
	case wire.TagLocateFile:
		var req wire.LocateFileRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		p, err := cc.Filestore().LocateFile(req.Loc, req.Dir, req.Name)
		if err != nil {
			return nil, err
		}
		return &wire.LocateFileReply{Path: p}, nil
	case wire.TagRemoveDir:
		var req wire.RemoveDirRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		if _, err := cc.Filestore().RemoveDirAll(req.Loc, req.Path); err != nil {
			return nil, err
		}
		return &wire.RemoveDirReply{}, nil
	case wire.TagRequestUserConsent:
		var req wire.RequestUserConsentRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doRequestUserConsent(res, &req)
	case wire.TagReboot:
		var req wire.RebootRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		res.Platform.UI().Reboot(req.To)
		panic("unreachable: Reboot never returns")
	case wire.TagUptime:
		return &wire.UptimeReply{UptimeMillis: res.Platform.UI().Uptime()}, nil
	case wire.TagWink:
		var req wire.WinkRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		res.Platform.UI().Wink(req.DurationMillis)
		return &wire.WinkReply{}, nil
	case wire.TagCreateCounter:
		var req wire.CreateCounterRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doCreateCounter(cc, res, &req)
	case wire.TagIncrementCounter:
		var req wire.IncrementCounterRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		v, err := cc.Counterstore().Increment(req.ID)
		if err != nil {
			return nil, err
		}
		return &wire.IncrementCounterReply{Counter: v}, nil
	case wire.TagDeleteCertificate:
		var req wire.DeleteCertificateRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		if err := cc.Certstore().Delete(req.ID); err != nil {
			return nil, err
		}
		return &wire.DeleteCertificateReply{}, nil
	case wire.TagReadCertificate:
		var req wire.ReadCertificateRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		der, err := cc.Certstore().Read(req.ID)
		if err != nil {
			return nil, err
		}
		return &wire.ReadCertificateReply{Der: der}, nil
	case wire.TagWriteCertificate:
		var req wire.WriteCertificateRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doWriteCertificate(cc, res, &req)
	case wire.TagDebugDumpStore:
		doDebugDumpStore(cc)
		return &wire.DebugDumpStoreReply{}, nil
	case wire.TagAttest:
		var req wire.AttestRequest
		if err := unpack(tag, payload, &req); err != nil {
			return nil, err
		}
		return doAttest(cc, res, &req)
	}
	return nil, errors.E("service.Request", errors.RequestNotAvailable)
}
