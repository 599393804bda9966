// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errors defines the error handling used throughout keyforge.
package errors

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"fmt"
	"runtime"

	"keyforge.io/log"
)

// Error is the type returned by every broker-facing operation that fails.
// It contains a number of fields, each of different type. An Error value
// may leave some values unset.
type Error struct {
	// Client is the namespace path of the client that triggered the
	// error, when known.
	Client string
	// KeyPath identifies the key, file, or record being accessed, when
	// relevant.
	KeyPath string
	// Op is the operation being performed, usually the name of the
	// request variant (Sign, ReadFile, CheckPin, ...).
	Op string
	// Kind is the class of error. See the Kind constants below; these
	// map 1:1 onto the taxonomy clients observe on the wire.
	Kind Kind
	// The underlying error that triggered this one, if any.
	Err error
}

var (
	_       error                      = (*Error)(nil)
	_       encoding.BinaryUnmarshaler = (*Error)(nil)
	_       encoding.BinaryMarshaler   = (*Error)(nil)
	zeroErr Error
)

// Separator is the string used to separate nested errors when printed.
var Separator = ":\n\t"

// Kind classifies an Error for programmatic handling by a client; its
// values are the stable taxonomy of spec §7 and are what rides the wire in
// a Reply's error field.
type Kind uint8

// Kinds of errors. These codes are stable and must not be renumbered.
const (
	Other Kind = iota
	MechanismNotAvailable
	RequestNotAvailable
	NoSuchKey
	WrongKeyKind
	FilesystemReadFailure
	FilesystemWriteFailure
	NoSpace
	NotFound
	InvalidSerialization
	CborError
	PermissionDenied
	EntropyMalfunction
	ImplementationError
	InternalError
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case MechanismNotAvailable:
		return "mechanism not available"
	case RequestNotAvailable:
		return "request not available"
	case NoSuchKey:
		return "no such key"
	case WrongKeyKind:
		return "wrong key kind"
	case FilesystemReadFailure:
		return "filesystem read failure"
	case FilesystemWriteFailure:
		return "filesystem write failure"
	case NoSpace:
		return "no space"
	case NotFound:
		return "not found"
	case InvalidSerialization:
		return "invalid serialization"
	case CborError:
		return "cbor error"
	case PermissionDenied:
		return "permission denied"
	case EntropyMalfunction:
		return "entropy malfunction"
	case ImplementationError:
		return "implementation error"
	case InternalError:
		return "internal error"
	}
	return "unknown error kind"
}

// E builds an error value from its arguments. The type of each argument
// determines its meaning. If more than one argument of a given type is
// presented, only the last one is recorded.
//
// The types are:
//	errors.Client (string wrapper)
//		The namespace path of the client.
//	errors.Path (string wrapper)
//		The key or file path being accessed.
//	string
//		The operation being performed.
//	errors.Kind
//		The class of error.
//	error
//		The underlying error that triggered this one.
//
// If Kind is not specified or Other, it is set to the Kind of the
// underlying error, if any.
func E(args ...interface{}) error {
	if len(args) == 0 {
		return nil
	}
	e := &Error{}
	for _, arg := range args {
		switch arg := arg.(type) {
		case Client:
			e.Client = string(arg)
		case Path:
			e.KeyPath = string(arg)
		case string:
			e.Op = arg
		case Kind:
			e.Kind = arg
		case *Error:
			// Make a copy.
			e.Err = &Error{
				Client:  arg.Client,
				KeyPath: arg.KeyPath,
				Op:      arg.Op,
				Kind:    arg.Kind,
				Err:     arg.Err,
			}
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Printf("errors.E: bad call from %s:%d: %v", file, line, args)
			return Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}
	prev, ok := e.Err.(*Error)
	if !ok {
		return e
	}

	// The previous error was also one of ours. Suppress duplication so
	// the message won't contain the same kind, client, or path twice.
	if prev.Client == e.Client {
		prev.Client = ""
	}
	if prev.KeyPath == e.KeyPath {
		prev.KeyPath = ""
	}
	if prev.Kind == e.Kind {
		prev.Kind = Other
	}
	if e.Kind == Other {
		e.Kind = prev.Kind
		prev.Kind = Other
	}
	return e
}

// Client annotates an E call with the namespace path of the client that
// triggered the error.
type Client string

// Path annotates an E call with the key or file path being accessed.
type Path string

func pad(b *bytes.Buffer, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

func (e *Error) Error() string {
	b := new(bytes.Buffer)
	if e.Client != "" {
		b.WriteString(e.Client)
	}
	if e.KeyPath != "" {
		pad(b, ", ")
		b.WriteString(e.KeyPath)
	}
	if e.Op != "" {
		pad(b, ": ")
		b.WriteString(e.Op)
	}
	if e.Kind != 0 {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		if prevErr, ok := e.Err.(*Error); ok {
			if *prevErr != zeroErr {
				pad(b, Separator)
				b.WriteString(e.Err.Error())
			}
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

// Match compares two errors for equivalence, used in tests where the
// expected error does not need to specify every field present in the
// actual error: any zero-valued field in want is treated as a wildcard.
func Match(want, got error) bool {
	we, ok := want.(*Error)
	if !ok {
		return false
	}
	ge, ok := got.(*Error)
	if !ok {
		return false
	}
	if we.Client != "" && we.Client != ge.Client {
		return false
	}
	if we.KeyPath != "" && we.KeyPath != ge.KeyPath {
		return false
	}
	if we.Op != "" && we.Op != ge.Op {
		return false
	}
	if we.Kind != Other && we.Kind != ge.Kind {
		return false
	}
	if we.Err == nil {
		return true
	}
	return Match(we.Err, ge.Err)
}

// Is reports whether err is an *Error of the given Kind.
func Is(kind Kind, err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	if e.Kind != Other {
		return e.Kind == kind
	}
	if e.Err != nil {
		return Is(kind, e.Err)
	}
	return kind == Other
}

// Str returns an error that formats as the given text. It is intended to be
// used as the error-typed argument to the E function.
func Str(text string) error {
	return &errorString{text}
}

type errorString struct {
	s string
}

func (e *errorString) Error() string {
	return e.s
}

// Errorf is equivalent to fmt.Errorf but returns a type this package's
// callers can treat uniformly alongside E-built errors.
func Errorf(format string, args ...interface{}) error {
	return &errorString{fmt.Sprintf(format, args...)}
}

// MarshalAppend marshals err into a byte slice, appended to b (which may be
// nil). It is used to carry an *Error inside a wire.Reply's error field.
func (e *Error) MarshalAppend(b []byte) []byte {
	if e == nil {
		return b
	}
	b = appendString(b, e.Client)
	b = appendString(b, e.KeyPath)
	b = appendString(b, e.Op)
	var tmp [16]byte
	n := binary.PutVarint(tmp[:], int64(e.Kind))
	b = append(b, tmp[:n]...)
	b = MarshalErrorAppend(e.Err, b)
	return b
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (e *Error) MarshalBinary() ([]byte, error) {
	return e.MarshalAppend(nil), nil
}

// MarshalErrorAppend marshals an arbitrary error into a byte slice, appended
// to b. If err is not an *Error it just records err.Error().
func MarshalErrorAppend(err error, b []byte) []byte {
	if err == nil {
		return b
	}
	if e, ok := err.(*Error); ok {
		b = append(b, 'E')
		return e.MarshalAppend(b)
	}
	b = append(b, 'e')
	b = appendString(b, err.Error())
	return b
}

// MarshalError marshals an arbitrary error and returns the byte slice. It
// returns nil if err is nil.
func MarshalError(err error) []byte {
	return MarshalErrorAppend(err, nil)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (e *Error) UnmarshalBinary(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	data, b := getBytes(b)
	e.Client = string(data)
	data, b = getBytes(b)
	e.KeyPath = string(data)
	data, b = getBytes(b)
	e.Op = string(data)
	k, n := binary.Varint(b)
	e.Kind = Kind(k)
	b = b[n:]
	e.Err = UnmarshalError(b)
	return nil
}

// UnmarshalError unmarshals a byte slice produced by MarshalError or
// MarshalErrorAppend back into an error value.
func UnmarshalError(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	code := b[0]
	b = b[1:]
	switch code {
	case 'e':
		data, rest := getBytes(b)
		if len(rest) != 0 {
			log.Printf("errors.UnmarshalError: trailing bytes")
		}
		return Str(string(data))
	case 'E':
		var err Error
		err.UnmarshalBinary(b)
		return &err
	default:
		log.Printf("errors.UnmarshalError: corrupt data %q", b)
		return Str(string(b))
	}
}

func appendString(b []byte, str string) []byte {
	var tmp [16]byte
	n := binary.PutUvarint(tmp[:], uint64(len(str)))
	b = append(b, tmp[:n]...)
	b = append(b, str...)
	return b
}

func getBytes(b []byte) (data, remaining []byte) {
	u, n := binary.Uvarint(b)
	if n == 0 || len(b) < n+int(u) {
		log.Printf("errors.getBytes: bad encoding")
		return nil, nil
	}
	return b[n : n+int(u)], b[n+int(u):]
}
