// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package volatile implements an in-memory store.Store, used for
// keyforge.Volatile and, in tests, to stand in for any Location.
package volatile

import (
	"sort"
	"strings"
	"sync"

	"keyforge.io/errors"
	"keyforge.io/keyforge"
	"keyforge.io/store"
)

// Store is a map-backed, mutex-guarded blob store cleared whenever the
// process restarts, mirroring the one dataService kept for the lifetime of
// the address space in the in-process reference store this is grounded on.
type Store struct {
	mu   sync.Mutex
	blob map[keyforge.Location]map[string][]byte
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		blob: map[keyforge.Location]map[string][]byte{
			keyforge.Internal: make(map[string][]byte),
			keyforge.External: make(map[string][]byte),
			keyforge.Volatile: make(map[string][]byte),
		},
	}
}

func copyOf(in []byte) []byte {
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func (s *Store) Write(loc keyforge.Location, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob[loc][path] = copyOf(data)
	return nil
}

func (s *Store) Read(loc keyforge.Location, path string) ([]byte, error) {
	const op = "volatile.Read"
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blob[loc][path]
	if !ok {
		return nil, errors.E(op, errors.Path(path), errors.NotFound)
	}
	return copyOf(data), nil
}

func (s *Store) Exists(loc keyforge.Location, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blob[loc][path]
	return ok, nil
}

func (s *Store) Metadata(loc keyforge.Location, path string) (*keyforge.FileMetadata, error) {
	const op = "volatile.Metadata"
	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.blob[loc][path]; ok {
		return &keyforge.FileMetadata{IsDirectory: false, Size: int64(len(data))}, nil
	}
	prefix := path + "/"
	for k := range s.blob[loc] {
		if strings.HasPrefix(k, prefix) {
			return &keyforge.FileMetadata{IsDirectory: true}, nil
		}
	}
	return nil, errors.E(op, errors.Path(path), errors.NotFound)
}

func (s *Store) Remove(loc keyforge.Location, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blob[loc], path)
	return nil
}

func (s *Store) RemoveDirAll(loc keyforge.Location, dir string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := dir + "/"
	var n uint32
	for k := range s.blob[loc] {
		if k == dir || strings.HasPrefix(k, prefix) {
			delete(s.blob[loc], k)
			n++
		}
	}
	return n, nil
}

func (s *Store) List(loc keyforge.Location, dir string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	var names []string
	seen := make(map[string]bool)
	for k := range s.blob[loc] {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		if rest == "" {
			continue
		}
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		if !seen[rest] {
			seen[rest] = true
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names, nil
}
