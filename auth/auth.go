// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package auth implements the PIN/retry state machine and per-key policy
// check of spec §4.G: the authenticated-access overlay layered on top of
// the client namespace.
package auth

import (
	"crypto/subtle"

	"keyforge.io/client"
	"keyforge.io/errors"
	"keyforge.io/keyforge"
	"keyforge.io/wire"
)

// DefaultRetries is the retry budget a pin state resets to on every
// successful check. Overridable at boot via Configure; spec §4.G fixes it
// at 3 but leaves device-specific tuning to the implementation.
var DefaultRetries uint8 = 3

// Configure overrides DefaultRetries. Intended to be called once at boot
// from the loaded device configuration, before any client attaches.
func Configure(retries uint8) {
	DefaultRetries = retries
}

var defaultPin = map[keyforge.AuthKind]string{
	keyforge.User:  "123456",
	keyforge.Admin: "12345678",
}

const statePath = "auth/state"

// record is one kind's entry in the persisted state blob. Fresh marks a
// kind still holding its compiled-in default pin; the first successful
// CheckPin or SetPin clears it.
type record struct {
	Pin     []byte `cbor:"0,keyasint"`
	Retries uint8  `cbor:"1,keyasint"`
	Fresh   bool   `cbor:"2,keyasint"`
}

type stateFile struct {
	Records map[uint8]record `cbor:"0,keyasint"`
}

func freshRecord(kind keyforge.AuthKind) record {
	return record{Pin: []byte(defaultPin[kind]), Retries: DefaultRetries, Fresh: true}
}

func load(cc *client.Context) (stateFile, error) {
	data, err := cc.Filestore().Read(keyforge.Internal, statePath)
	if errors.Is(errors.NotFound, err) {
		return stateFile{Records: make(map[uint8]record)}, nil
	}
	if err != nil {
		return stateFile{}, err
	}
	var sf stateFile
	if err := wire.Unmarshal(data, &sf); err != nil {
		return stateFile{}, errors.E("auth.load", errors.CborError, err)
	}
	if sf.Records == nil {
		sf.Records = make(map[uint8]record)
	}
	return sf, nil
}

func save(cc *client.Context, sf stateFile) error {
	data, err := wire.Marshal(sf)
	if err != nil {
		return errors.E("auth.save", errors.CborError, err)
	}
	return cc.Filestore().Write(keyforge.Internal, statePath, data)
}

func recordFor(sf stateFile, kind keyforge.AuthKind) record {
	r, ok := sf.Records[uint8(kind)]
	if !ok {
		return freshRecord(kind)
	}
	return r
}

// CheckPin implements spec §4.G's CheckPin transition: Blocked sessions
// always fail regardless of the pin offered; a correct pin resets
// retries and clears Fresh; a wrong pin saturating-decrements retries and
// blocks the kind once they reach zero.
func CheckPin(cc *client.Context, kind keyforge.AuthKind, pin []byte) error {
	const op = "auth.CheckPin"
	sf, err := load(cc)
	if err != nil {
		return errors.E(op, err)
	}
	r := recordFor(sf, kind)
	if r.Retries == 0 {
		return errors.E(op, errors.PermissionDenied)
	}
	if subtle.ConstantTimeCompare(r.Pin, pin) == 1 {
		r.Retries = DefaultRetries
		r.Fresh = false
		sf.Records[uint8(kind)] = r
		if err := save(cc, sf); err != nil {
			return errors.E(op, err)
		}
		return nil
	}
	if r.Retries > 0 {
		r.Retries--
	}
	sf.Records[uint8(kind)] = r
	if err := save(cc, sf); err != nil {
		return errors.E(op, err)
	}
	return errors.E(op, errors.PermissionDenied)
}

// SetPin implements spec §4.G's SetPin transition: permitted only when the
// client session is currently authenticated as kind. Retries are left
// untouched; Fresh is cleared since the default pin no longer applies.
func SetPin(cc *client.Context, kind keyforge.AuthKind, newPin []byte) error {
	const op = "auth.SetPin"
	if cc.Authenticated == nil || *cc.Authenticated != kind {
		return errors.E(op, errors.PermissionDenied)
	}
	sf, err := load(cc)
	if err != nil {
		return errors.E(op, err)
	}
	r := recordFor(sf, kind)
	r.Pin = append([]byte(nil), newPin...)
	r.Fresh = false
	sf.Records[uint8(kind)] = r
	if err := save(cc, sf); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Authenticate runs CheckPin and, on success, marks cc's runtime session
// as authenticated for kind.
func Authenticate(cc *client.Context, kind keyforge.AuthKind, pin []byte) error {
	if err := CheckPin(cc, kind, pin); err != nil {
		return err
	}
	k := kind
	cc.Authenticated = &k
	return nil
}

// Deauthenticate clears cc's runtime authenticated kind.
func Deauthenticate(cc *client.Context) {
	cc.Authenticated = nil
}

// RequireGated implements spec §4.G's per-key policy check: verifies the
// operation's bit is set in the key's stored policy. Policy bits are
// fixed at key-creation time from the client's creation policy and are
// independent of whether a PIN session is currently authenticated — spec
// §8 property 10 and scenario S2 both exercise gated operations
// (Encrypt/Decrypt) with no CheckPin/Authenticate call in the sequence at
// all, so this check is policy-only. The PIN state machine above gates a
// separate concern: SetPin itself, and any extension that chooses to call
// it (the reference PIN extension, for instance).
func RequireGated(_ *client.Context, policy keyforge.Policy, op keyforge.Operation) error {
	if !policy.Allows(op) {
		return errors.E("auth.RequireGated", errors.PermissionDenied)
	}
	return nil
}

// ExtOp identifies one operation within the PIN-management extension
// sub-protocol exposed at backend id 0 (the built-in Software backend),
// extension id 0. Unlike the core wire.Tag table, these ids are private
// to this extension and never appear on the wire outside an
// wire.ExtensionRequest's Payload.
type ExtOp uint8

const (
	ExtOpCheckPin ExtOp = iota + 1
	ExtOpSetPin
	ExtOpAuthenticate
	ExtOpDeauthenticate
	ExtOpPinRetries
)

// ExtID is the extension id the PIN-management sub-protocol registers
// itself under.
const ExtID uint8 = 0

type pinRequest struct {
	Op  ExtOp             `cbor:"0,keyasint"`
	Kind keyforge.AuthKind `cbor:"1,keyasint"`
	Pin  []byte           `cbor:"2,keyasint,omitempty"`
}

type pinReply struct {
	Retries uint8 `cbor:"0,keyasint"`
}

// HandleExtension answers one PIN-management extension request. It is the
// backend chain's entry point into this package (wired in by
// service.Software.ExtensionRequest), keeping the core dispatcher ignorant
// of the PIN state machine's own wire shapes.
func HandleExtension(cc *client.Context, extID uint8, payload []byte) wire.Outcome {
	const op = "auth.HandleExtension"
	if extID != ExtID {
		return wire.PackErr(errors.E(op, errors.RequestNotAvailable))
	}
	var req pinRequest
	if err := wire.Unmarshal(payload, &req); err != nil {
		return wire.PackErr(err)
	}
	switch req.Op {
	case ExtOpCheckPin:
		if err := CheckPin(cc, req.Kind, req.Pin); err != nil {
			return wire.PackErr(err)
		}
		return packPinReply(cc, req.Kind)
	case ExtOpSetPin:
		if err := SetPin(cc, req.Kind, req.Pin); err != nil {
			return wire.PackErr(err)
		}
		return packPinReply(cc, req.Kind)
	case ExtOpAuthenticate:
		if err := Authenticate(cc, req.Kind, req.Pin); err != nil {
			return wire.PackErr(err)
		}
		return packPinReply(cc, req.Kind)
	case ExtOpDeauthenticate:
		Deauthenticate(cc)
		return wrapPinReply(&pinReply{})
	case ExtOpPinRetries:
		return packPinReply(cc, req.Kind)
	}
	return wire.PackErr(errors.E(op, errors.RequestNotAvailable))
}

func packPinReply(cc *client.Context, kind keyforge.AuthKind) wire.Outcome {
	sf, err := load(cc)
	if err != nil {
		return wire.PackErr(err)
	}
	r := recordFor(sf, kind)
	return wrapPinReply(&pinReply{Retries: r.Retries})
}

// wrapPinReply encodes reply and wraps it in wire.ExtensionReply, the
// envelope every backend's ExtensionRequest is expected to return its
// answer in (spec §4.F: "Payload carries that sub-protocol's own encoding
// verbatim").
func wrapPinReply(reply *pinReply) wire.Outcome {
	inner, err := wire.Marshal(reply)
	if err != nil {
		return wire.PackErr(errors.E("auth.HandleExtension", errors.CborError, err))
	}
	out, err := wire.PackOK(&wire.ExtensionReply{Payload: inner})
	if err != nil {
		return wire.PackErr(err)
	}
	return out
}
