// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package volatile

import (
	"testing"

	"keyforge.io/errors"
	"keyforge.io/keyforge"
)

func TestWriteReadRemove(t *testing.T) {
	s := New()
	if err := s.Write(keyforge.Internal, "alice/sec/0123", []byte("secret")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Read(keyforge.Internal, "alice/sec/0123")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "secret" {
		t.Fatalf("got %q, want %q", got, "secret")
	}

	ok, err := s.Exists(keyforge.Internal, "alice/sec/0123")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true, nil", ok, err)
	}

	if err := s.Remove(keyforge.Internal, "alice/sec/0123"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(keyforge.Internal, "alice/sec/0123"); !errors.Is(errors.NotFound, err) {
		t.Fatalf("expected NotFound after remove, got %v", err)
	}
}

func TestLocationsAreIsolated(t *testing.T) {
	s := New()
	s.Write(keyforge.Internal, "a", []byte("x"))
	if ok, _ := s.Exists(keyforge.Volatile, "a"); ok {
		t.Fatal("expected Volatile to be isolated from Internal")
	}
}

func TestListAndRemoveDirAll(t *testing.T) {
	s := New()
	s.Write(keyforge.Internal, "alice/sec/0001", []byte("a"))
	s.Write(keyforge.Internal, "alice/sec/0002", []byte("b"))
	s.Write(keyforge.Internal, "alice/pub/0001", []byte("c"))

	names, err := s.List(keyforge.Internal, "alice/sec")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "0001" || names[1] != "0002" {
		t.Fatalf("unexpected listing: %v", names)
	}

	n, err := s.RemoveDirAll(keyforge.Internal, "alice/sec")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if ok, _ := s.Exists(keyforge.Internal, "alice/pub/0001"); !ok {
		t.Fatal("RemoveDirAll touched an unrelated subtree")
	}
}

func TestMetadataDistinguishesDirs(t *testing.T) {
	s := New()
	s.Write(keyforge.Internal, "alice/sec/0001", []byte("abcd"))

	meta, err := s.Metadata(keyforge.Internal, "alice/sec/0001")
	if err != nil {
		t.Fatal(err)
	}
	if meta.IsDirectory || meta.Size != 4 {
		t.Fatalf("unexpected file metadata: %+v", meta)
	}

	dirMeta, err := s.Metadata(keyforge.Internal, "alice/sec")
	if err != nil {
		t.Fatal(err)
	}
	if !dirMeta.IsDirectory {
		t.Fatalf("expected IsDirectory, got %+v", dirMeta)
	}
}
