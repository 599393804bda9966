// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package filesystem implements a store.Store backed by a real directory
// tree, standing in for a device's internal or external flash during
// development and testing. One root holds three subdirectories, one per
// keyforge.Location.
package filesystem

import (
	goerrors "errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"

	"keyforge.io/errors"
	"keyforge.io/keyforge"
	"keyforge.io/log"
	"keyforge.io/store"
)

// Store is a directory-tree-backed store.Store.
type Store struct {
	root string
}

var _ store.Store = (*Store)(nil)

// New returns a Store rooted at dir, creating the per-Location
// subdirectories if they don't already exist.
func New(dir string) (*Store, error) {
	const op = "filesystem.New"
	s := &Store{root: dir}
	for _, loc := range []keyforge.Location{keyforge.Internal, keyforge.External, keyforge.Volatile} {
		if err := os.MkdirAll(s.dir(loc, ""), 0700); err != nil {
			return nil, errors.E(op, errors.FilesystemWriteFailure, err)
		}
	}
	return s, nil
}

func (s *Store) dir(loc keyforge.Location, rel string) string {
	return filepath.Join(s.root, strconv.Itoa(int(loc)), filepath.FromSlash(rel))
}

func (s *Store) Write(loc keyforge.Location, path string, data []byte) error {
	const op = "filesystem.Write"
	full := s.dir(loc, path)
	if err := os.MkdirAll(filepath.Dir(full), 0700); err != nil {
		if goerrors.Is(err, syscall.ENOSPC) {
			return errors.E(op, errors.Path(path), errors.NoSpace, err)
		}
		return errors.E(op, errors.Path(path), errors.FilesystemWriteFailure, err)
	}
	if err := os.WriteFile(full, data, 0600); err != nil {
		if goerrors.Is(err, syscall.ENOSPC) {
			return errors.E(op, errors.Path(path), errors.NoSpace, err)
		}
		return errors.E(op, errors.Path(path), errors.FilesystemWriteFailure, err)
	}
	log.Debug.Printf("filesystem.Write: wrote %d bytes to %s", len(data), full)
	return nil
}

func (s *Store) Read(loc keyforge.Location, path string) ([]byte, error) {
	const op = "filesystem.Read"
	data, err := os.ReadFile(s.dir(loc, path))
	if os.IsNotExist(err) {
		return nil, errors.E(op, errors.Path(path), errors.NotFound)
	}
	if err != nil {
		return nil, errors.E(op, errors.Path(path), errors.FilesystemReadFailure, err)
	}
	return data, nil
}

func (s *Store) Exists(loc keyforge.Location, path string) (bool, error) {
	_, err := os.Stat(s.dir(loc, path))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.E("filesystem.Exists", errors.Path(path), errors.FilesystemReadFailure, err)
	}
	return true, nil
}

func (s *Store) Metadata(loc keyforge.Location, path string) (*keyforge.FileMetadata, error) {
	const op = "filesystem.Metadata"
	fi, err := os.Stat(s.dir(loc, path))
	if os.IsNotExist(err) {
		return nil, errors.E(op, errors.Path(path), errors.NotFound)
	}
	if err != nil {
		return nil, errors.E(op, errors.Path(path), errors.FilesystemReadFailure, err)
	}
	return &keyforge.FileMetadata{IsDirectory: fi.IsDir(), Size: fi.Size()}, nil
}

func (s *Store) Remove(loc keyforge.Location, path string) error {
	const op = "filesystem.Remove"
	if err := os.Remove(s.dir(loc, path)); err != nil && !os.IsNotExist(err) {
		return errors.E(op, errors.Path(path), errors.FilesystemWriteFailure, err)
	}
	return nil
}

func (s *Store) RemoveDirAll(loc keyforge.Location, dir string) (uint32, error) {
	const op = "filesystem.RemoveDirAll"
	full := s.dir(loc, dir)
	var n uint32
	err := filepath.Walk(full, func(_ string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			n++
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, errors.E(op, errors.Path(dir), errors.FilesystemReadFailure, err)
	}
	if err := os.RemoveAll(full); err != nil {
		return 0, errors.E(op, errors.Path(dir), errors.FilesystemWriteFailure, err)
	}
	return n, nil
}

func (s *Store) List(loc keyforge.Location, dir string) ([]string, error) {
	const op = "filesystem.List"
	full := s.dir(loc, dir)
	entries, err := os.ReadDir(full)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.E(op, errors.Path(dir), errors.FilesystemReadFailure, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
