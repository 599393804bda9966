// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errors

import (
	"io"
	"testing"
)

func TestMarshal(t *testing.T) {
	path := Path("alice/sec/0123")

	e1 := E("Read", path, FilesystemReadFailure, Str("device unresponsive"))
	e2 := E("ReadFile", path, Client("alice"), Other, e1)

	b := MarshalError(e2)
	e3 := UnmarshalError(b)

	in := e2.(*Error)
	out := e3.(*Error)
	if in.KeyPath != out.KeyPath {
		t.Errorf("expected KeyPath %q; got %q", in.KeyPath, out.KeyPath)
	}
	if in.Client != out.Client {
		t.Errorf("expected Client %q; got %q", in.Client, out.Client)
	}
	if in.Op != out.Op {
		t.Errorf("expected Op %q; got %q", in.Op, out.Op)
	}
	if in.Kind != out.Kind {
		t.Errorf("expected kind %d; got %d", in.Kind, out.Kind)
	}
	if in.Err.Error() != out.Err.Error() {
		t.Errorf("expected Err %q; got %q", in.Err, out.Err)
	}
}

func TestSeparator(t *testing.T) {
	defer func(prev string) { Separator = prev }(Separator)
	Separator = ":: "

	path := Path("alice/sec/0123")
	e1 := E("Read", path, FilesystemReadFailure, Str("device unresponsive"))
	e2 := E("ReadFile", path, Client("alice"), Other, e1)

	want := "alice, alice/sec/0123: ReadFile: filesystem read failure:: Read: device unresponsive"
	if e2.Error() != want {
		t.Errorf("expected %q; got %q", want, e2.Error())
	}
}

func TestDoesNotChangePreviousError(t *testing.T) {
	err := E(PermissionDenied)
	err2 := E("CheckPin", err)

	expected := "CheckPin: permission denied"
	if err2.Error() != expected {
		t.Fatalf("expected %q, got %q", expected, err2.Error())
	}
	kind := err.(*Error).Kind
	if kind != PermissionDenied {
		t.Fatalf("expected kind %v, got %v", PermissionDenied, kind)
	}
}

func TestNoArgs(t *testing.T) {
	if E() != nil {
		t.Fatal("E() with no args should return nil")
	}
}

func TestMatch(t *testing.T) {
	const (
		op1 = "Sign"
		op2 = "Verify"
	)
	path1 := Path("alice/sec/0001")
	path2 := Path("alice/sec/0002")

	tests := []struct {
		want, got error
		matched   bool
	}{
		{nil, nil, false},
		{io.EOF, io.EOF, false},
		{E(io.EOF), io.EOF, false},
		{E(op1, PermissionDenied, path1), E(op1, PermissionDenied, path1), true},
		{E(op1, PermissionDenied), E(op1, PermissionDenied, path1), true},
		{E(op1), E(op1, PermissionDenied, path1), true},
		{E(op1), E(op2, PermissionDenied, path1), false},
		{E(path1), E(path2), false},
		{E(op1, PermissionDenied), E(op1, NoSuchKey), false},
	}
	for _, test := range tests {
		if got := Match(test.want, test.got); got != test.matched {
			t.Errorf("Match(%v, %v) = %v; want %v", test.want, test.got, got, test.matched)
		}
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
		want bool
	}{
		{nil, NotFound, false},
		{Str("not an *Error"), NotFound, false},
		{E(NotFound), NotFound, true},
		{E(NoSpace), NotFound, false},
		{E("no kind"), NotFound, false},
		{E("Nesting", E(NotFound)), NotFound, true},
		{E("Nesting", E(NoSpace)), NotFound, false},
	}
	for _, test := range tests {
		if got := Is(test.kind, test.err); got != test.want {
			t.Errorf("Is(%v, %v) = %v; want %v", test.kind, test.err, got, test.want)
		}
	}
}

func TestLastWins(t *testing.T) {
	e := E(Client("alice"), Client("bob")).(*Error)
	if e.Client != "bob" {
		t.Errorf("expected last Client wins: got %q", e.Client)
	}
}
