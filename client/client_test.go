// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import (
	"testing"

	"keyforge.io/errors"
	"keyforge.io/keyforge"
	"keyforge.io/store/volatile"
)

func TestKeystoreRoundTrip(t *testing.T) {
	st := volatile.New()
	c := New("alice", st)
	ks := c.Keystore()

	id := keyforge.KeyID{1, 2, 3}
	kind := keyforge.KeyKind{Family: keyforge.Symmetric, Size: 32}
	pol := keyforge.Policy(0).With(keyforge.OpEncrypt).With(keyforge.OpDecrypt)

	if err := ks.Store(id, keyforge.Internal, keyforge.Secret, kind, []byte("material"), pol); err != nil {
		t.Fatal(err)
	}
	gotKind, gotPol, gotMat, err := ks.Read(keyforge.Secret, id)
	if err != nil {
		t.Fatal(err)
	}
	if gotKind != kind || gotPol != pol || string(gotMat) != "material" {
		t.Fatalf("round trip mismatch: %+v %v %q", gotKind, gotPol, gotMat)
	}
	if !ks.Exists(keyforge.Secret, id) {
		t.Fatal("expected key to exist")
	}
	if err := ks.Delete(keyforge.Secret, id); err != nil {
		t.Fatal(err)
	}
	if ks.Exists(keyforge.Secret, id) {
		t.Fatal("expected key to be gone after delete")
	}
}

func TestKeystoreRejectsOverlongMaterial(t *testing.T) {
	st := volatile.New()
	c := New("alice", st)
	ks := c.Keystore()
	big := make([]byte, MaxKeyMaterial+1)
	err := ks.Store(keyforge.KeyID{}, keyforge.Internal, keyforge.Secret, keyforge.KeyKind{}, big, 0)
	if !errors.Is(errors.NoSpace, err) {
		t.Fatalf("expected NoSpace, got %v", err)
	}
}

func TestClientsAreNamespaceIsolated(t *testing.T) {
	st := volatile.New()
	alice := New("alice", st)
	bob := New("bob", st)

	id := keyforge.KeyID{9}
	if err := alice.Keystore().Store(id, keyforge.Internal, keyforge.Secret, keyforge.KeyKind{}, []byte("x"), 0); err != nil {
		t.Fatal(err)
	}
	if bob.Keystore().Exists(keyforge.Secret, id) {
		t.Fatal("bob should not see alice's key")
	}
}

func TestCounterstoreNeverDecreases(t *testing.T) {
	st := volatile.New()
	c := New("alice", st)
	cs := c.Counterstore()
	id := keyforge.CounterID{1}
	if err := cs.Create(id, keyforge.Internal); err != nil {
		t.Fatal(err)
	}
	var last keyforge.Uint128
	for i := 0; i < 5; i++ {
		next, err := cs.Increment(id)
		if err != nil {
			t.Fatal(err)
		}
		if next.Hi < last.Hi || (next.Hi == last.Hi && next.Lo <= last.Lo) {
			t.Fatalf("counter decreased: %v -> %v", last, next)
		}
		last = next
	}
	if last.Lo != 5 {
		t.Fatalf("expected 5 increments, got %v", last)
	}
}

func TestDirectoryIterationCursorDiscipline(t *testing.T) {
	st := volatile.New()
	c := New("alice", st)
	fs := c.Filestore()

	fs.Write(keyforge.Internal, "a", []byte("1"))
	fs.Write(keyforge.Internal, "b", []byte("2"))
	fs.Write(keyforge.Internal, "c", []byte("3"))

	e1, err := fs.ReadDirFirst(keyforge.Internal, "", "")
	if err != nil || e1 == nil || e1.Path != "a" {
		t.Fatalf("ReadDirFirst = %+v, %v", e1, err)
	}
	e2, err := fs.ReadDirNext()
	if err != nil || e2 == nil || e2.Path != "b" {
		t.Fatalf("ReadDirNext = %+v, %v", e2, err)
	}
	e3, err := fs.ReadDirNext()
	if err != nil || e3 == nil || e3.Path != "c" {
		t.Fatalf("ReadDirNext = %+v, %v", e3, err)
	}
	e4, err := fs.ReadDirNext()
	if err != nil || e4 != nil {
		t.Fatalf("expected exhausted cursor, got %+v, %v", e4, err)
	}

	// A Next without a prior First returns "no more", not an error.
	c2 := New("bob", st)
	noEntry, err := c2.Filestore().ReadDirNext()
	if err != nil || noEntry != nil {
		t.Fatalf("expected nil, nil for Next without First, got %+v, %v", noEntry, err)
	}
}

func TestMutationInvalidatesCursor(t *testing.T) {
	st := volatile.New()
	c := New("alice", st)
	fs := c.Filestore()
	fs.Write(keyforge.Internal, "a", []byte("1"))
	fs.Write(keyforge.Internal, "b", []byte("2"))

	if _, err := fs.ReadDirFirst(keyforge.Internal, "", ""); err != nil {
		t.Fatal(err)
	}
	if err := fs.Write(keyforge.Internal, "c", []byte("3")); err != nil {
		t.Fatal(err)
	}
	entry, err := fs.ReadDirNext()
	if err != nil || entry != nil {
		t.Fatalf("expected cursor invalidated by mutation, got %+v, %v", entry, err)
	}
}

func TestNewFirstDiscardsPreviousCursor(t *testing.T) {
	st := volatile.New()
	c := New("alice", st)
	fs := c.Filestore()
	fs.Write(keyforge.Internal, "a", []byte("1"))
	fs.Write(keyforge.Internal, "b", []byte("2"))

	if _, err := fs.ReadDirFirst(keyforge.Internal, "", ""); err != nil {
		t.Fatal(err)
	}
	// A second First before any Next starts over from the beginning.
	e, err := fs.ReadDirFirst(keyforge.Internal, "", "")
	if err != nil || e == nil || e.Path != "a" {
		t.Fatalf("second First = %+v, %v", e, err)
	}
}
