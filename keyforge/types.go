// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package keyforge defines the core domain types shared by every component
// of the service broker: locations, mechanisms, identifiers, and the
// interfaces to the external collaborators (entropy source, block store,
// user interface) that the core is deliberately ignorant of the internals
// of.
package keyforge

// A ClientID is the short printable identifier used as a namespace prefix
// for every blob a client's key material, files, counters, and certificates
// are stored under. It never changes after the client context is created.
type ClientID string

// A Location selects which blob namespace a record lives in.
type Location uint8

const (
	// Internal is power-safe, wear-levelled storage that survives reboot.
	Internal Location = iota
	// External is larger storage that may be absent.
	External
	// Volatile is RAM-backed storage cleared on reboot.
	Volatile
)

func (l Location) String() string {
	switch l {
	case Internal:
		return "internal"
	case External:
		return "external"
	case Volatile:
		return "volatile"
	}
	return "unknown-location"
}

// A Mechanism identifies a cryptographic algorithm and its parameterization.
// Unknown mechanisms must yield errors.MechanismNotAvailable.
type Mechanism uint16

const (
	// MechanismNone is the zero value and never names a real algorithm.
	MechanismNone Mechanism = iota

	// Chacha8Poly1305 is an AEAD mechanism: ChaCha20-Poly1305 keyed by a
	// 32-byte symmetric key. Despite the name, the cipher runs the standard
	// 20 rounds.
	Chacha8Poly1305

	// P256 is ECDSA-P256 for Sign/Verify and ECDH-P256 for Agree/Attest.
	P256

	// X25519 is Curve25519 Diffie-Hellman for Agree.
	X25519

	// HmacSha256 is HMAC-SHA256 for Sign/Verify of symmetric keys.
	HmacSha256

	// Sha256 is a keyless digest mechanism for Hash.
	Sha256

	// HkdfSha256 derives a child symmetric key from a base key via
	// RFC 5869 HKDF-SHA256, used by DeriveKey.
	HkdfSha256
)

// A Secrecy partitions key material storage into the secret/private and
// public halves of the on-disk layout (spec.md §6: "<client>/sec/<id>" and
// "<client>/pub/<id>").
type Secrecy uint8

const (
	Secret Secrecy = iota
	Public
)

func (s Secrecy) String() string {
	if s == Public {
		return "pub"
	}
	return "sec"
}

// KeyKind describes the shape of a key's material without revealing the
// bytes themselves: what algorithm family it belongs to and, for
// variable-length kinds, its size.
type KeyKind struct {
	Family KeyFamily
	Size   uint16 // meaningful for Symmetric and Shared
	Curve  Mechanism // meaningful for SecretEc and PublicEc
}

// KeyFamily enumerates the kinds of key material the keystore can hold.
type KeyFamily uint8

const (
	Symmetric KeyFamily = iota
	Shared
	SecretEc
	PublicEc
)

// KeyID is an opaque, unguessable 16-byte identifier drawn from the forked
// DRBG at key creation time. It never encodes any information about the key
// it names.
type KeyID [16]byte

// CertID is an opaque 16-byte identifier for a stored certificate.
type CertID [16]byte

// CounterID is an opaque 16-byte identifier for a monotonic counter.
type CounterID [16]byte

// Operation enumerates the kinds of key-gated operations a Policy bitset can
// permit. It is also used, orthogonally, as the set of mechanisms the auth
// overlay's per-key policy check gates (spec.md §4.G).
type Operation uint8

const (
	OpAgree Operation = iota
	OpAttest
	OpDecrypt
	OpDerive
	OpEncrypt
	OpSign
	OpVerify
	OpWrap
	OpUnwrap
	OpSerialize
	OpWrite
)

func (o Operation) String() string {
	switch o {
	case OpAgree:
		return "agree"
	case OpAttest:
		return "attest"
	case OpDecrypt:
		return "decrypt"
	case OpDerive:
		return "derive"
	case OpEncrypt:
		return "encrypt"
	case OpSign:
		return "sign"
	case OpVerify:
		return "verify"
	case OpWrap:
		return "wrap"
	case OpUnwrap:
		return "unwrap"
	case OpSerialize:
		return "serialize"
	case OpWrite:
		return "write"
	}
	return "unknown-op"
}

// Policy is a bitset over Operation, fixed at key-creation time from the
// client's current creation policy and immutable thereafter.
type Policy uint16

// Allows reports whether op is permitted under p.
func (p Policy) Allows(op Operation) bool {
	return p&(1<<uint(op)) != 0
}

// With returns a copy of p with op added.
func (p Policy) With(op Operation) Policy {
	return p | (1 << uint(op))
}

// StorageAttributes accompanies key-creating requests, naming where the
// resulting key material should be persisted.
type StorageAttributes struct {
	Persistence Location
}

// AuthKind names which PIN-gated role a request is checked against.
type AuthKind uint8

const (
	User AuthKind = iota
	Admin
)

func (k AuthKind) String() string {
	if k == Admin {
		return "admin"
	}
	return "user"
}

// Presence names a strength of user-presence attestation the UI trait can
// report, used by RequestUserConsent.
type Presence uint8

const (
	// PresenceNone indicates no consent observed.
	PresenceNone Presence = iota
	// PresenceTouch indicates a physical touch/button press.
	PresenceTouch
	// PresenceVerifiedUser indicates a stronger, user-verified presence
	// (e.g. a successful biometric or PIN check alongside the touch).
	PresenceVerifiedUser
)

// UIStatus is set by the broker for the duration of a request so the
// platform's UI trait can reflect what the core is doing.
type UIStatus uint8

const (
	Idle UIStatus = iota
	Processing
	WaitingForUserPresence
)

// RebootTo names the target mode for a Reboot request.
type RebootTo uint8

const (
	RebootToNormal RebootTo = iota
	RebootToBootloader
)

// Entropy is a blocking byte oracle backed by the hardware TRNG. A failure
// is fatal: it surfaces as errors.EntropyMalfunction.
type Entropy interface {
	// Read fills buf with hardware-sourced random bytes or returns an
	// error if the source has failed.
	Read(buf []byte) error
}

// UserInterface is the thin trait the core uses to solicit and reflect user
// presence. Consent, wink, uptime, and reboot are all external to the core;
// the core only ever polls or sets state through this interface.
type UserInterface interface {
	// SetStatus reflects the core's current activity.
	SetStatus(UIStatus)
	// CheckPresence returns the strongest presence level currently
	// observed (e.g. a held button), without blocking.
	CheckPresence() Presence
	// Wink draws user attention for roughly the given duration.
	Wink(durationMillis uint32)
	// Uptime returns milliseconds since boot.
	Uptime() uint64
	// Reboot never returns.
	Reboot(to RebootTo)
}

// Platform bundles the collaborators a service resources instance needs at
// construction: entropy for the PRNG fork and the UI trait.
type Platform interface {
	Entropy() Entropy
	UI() UserInterface
}

// Uint128 is a 128-bit unsigned integer, used for Counter Records. CBOR has
// no native 128-bit integer type, so it rides the wire as a pair of
// big-endian halves.
type Uint128 struct {
	Hi uint64 `cbor:"0,keyasint"`
	Lo uint64 `cbor:"1,keyasint"`
}

// Incr returns u+1, saturating at the all-ones value instead of wrapping,
// so a counter can never appear to decrease across a rollover.
func (u Uint128) Incr() Uint128 {
	if u.Lo == ^uint64(0) {
		if u.Hi == ^uint64(0) {
			return u // saturate; a real rollover is not a spec'd scenario
		}
		return Uint128{Hi: u.Hi + 1, Lo: 0}
	}
	return Uint128{Hi: u.Hi, Lo: u.Lo + 1}
}

// ConsentResult is the outcome of RequestUserConsent.
type ConsentResult uint8

const (
	ConsentOK ConsentResult = iota
	ConsentTimedOut
)

// FileMetadata describes a stored file without its contents.
type FileMetadata struct {
	IsDirectory bool  `cbor:"0,keyasint"`
	Size        int64 `cbor:"1,keyasint"`
}

// DirEntry names one entry returned by directory iteration.
type DirEntry struct {
	Path        string `cbor:"0,keyasint"`
	IsDirectory bool   `cbor:"1,keyasint"`
}

// BackendKind distinguishes the two selector shapes a client's backend
// chain can hold.
type BackendKind uint8

const (
	// BackendSoftware selects the built-in default software handler.
	BackendSoftware BackendKind = iota
	// BackendCustom selects a registered custom backend by id.
	BackendCustom
)

// BackendSelector names one link of a client's backend chain (spec §4.F).
// CustomID is meaningful only when Kind is BackendCustom.
type BackendSelector struct {
	Kind     BackendKind `cbor:"0,keyasint"`
	CustomID uint8       `cbor:"1,keyasint"`
}

// Software is the selector for the built-in default software backend.
func Software() BackendSelector { return BackendSelector{Kind: BackendSoftware} }

// Custom is the selector for a registered custom backend.
func Custom(id uint8) BackendSelector { return BackendSelector{Kind: BackendCustom, CustomID: id} }
