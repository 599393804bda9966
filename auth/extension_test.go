// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package auth

import (
	"testing"

	"keyforge.io/keyforge"
	"keyforge.io/wire"
)

func extReq(t *testing.T, op ExtOp, kind keyforge.AuthKind, pin []byte) []byte {
	t.Helper()
	b, err := wire.Marshal(&pinRequest{Op: op, Kind: kind, Pin: pin})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return b
}

// pinReplyFrom unwraps the outer wire.ExtensionReply envelope every
// backend's ExtensionRequest answers in, then decodes the inner
// extension-private pinReply payload.
func pinReplyFrom(t *testing.T, out wire.Outcome) pinReply {
	t.Helper()
	var env wire.ExtensionReply
	if err := wire.UnpackOK(out, &env); err != nil {
		t.Fatalf("UnpackOK: %v", err)
	}
	var reply pinReply
	if err := wire.Unmarshal(env.Payload, &reply); err != nil {
		t.Fatalf("Unmarshal inner payload: %v", err)
	}
	return reply
}

func TestHandleExtensionCheckPin(t *testing.T) {
	cc := newCC()
	out := HandleExtension(cc, ExtID, extReq(t, ExtOpCheckPin, keyforge.User, []byte("123456")))
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	reply := pinReplyFrom(t, out)
	if reply.Retries != DefaultRetries {
		t.Fatalf("got retries %d, want %d", reply.Retries, DefaultRetries)
	}
}

func TestHandleExtensionAuthenticateThenSetPin(t *testing.T) {
	cc := newCC()
	out := HandleExtension(cc, ExtID, extReq(t, ExtOpAuthenticate, keyforge.User, []byte("123456")))
	if out.Err != nil {
		t.Fatalf("Authenticate: %v", out.Err)
	}
	out = HandleExtension(cc, ExtID, extReq(t, ExtOpSetPin, keyforge.User, []byte("999999")))
	if out.Err != nil {
		t.Fatalf("SetPin: %v", out.Err)
	}
	if err := CheckPin(cc, keyforge.User, []byte("999999")); err != nil {
		t.Fatalf("new pin should check out: %v", err)
	}
}

func TestHandleExtensionUnknownExtIDIsUnavailable(t *testing.T) {
	cc := newCC()
	out := HandleExtension(cc, ExtID+1, extReq(t, ExtOpCheckPin, keyforge.User, []byte("123456")))
	if out.Err == nil {
		t.Fatal("expected error for unknown extension id")
	}
}

func TestHandleExtensionDeauthenticate(t *testing.T) {
	cc := newCC()
	HandleExtension(cc, ExtID, extReq(t, ExtOpAuthenticate, keyforge.User, []byte("123456")))
	if cc.Authenticated == nil {
		t.Fatal("expected authenticated after Authenticate op")
	}
	out := HandleExtension(cc, ExtID, extReq(t, ExtOpDeauthenticate, keyforge.User, nil))
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if cc.Authenticated != nil {
		t.Fatal("expected cleared after Deauthenticate op")
	}
}
