// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store defines the blob storage abstraction that backs every
// client's keystore, certstore, counterstore, and filestore namespaces
// (spec §4.B). A Store is not itself namespaced by client; callers are
// expected to prefix paths with the client's id, the way the client
// package's namespacing layer does.
package store

import "keyforge.io/keyforge"

// Store is the minimal blob interface a backing medium (RAM, flash,
// external NOR) must provide. Implementations live in subpackages: volatile
// for RAM-backed storage cleared on reboot, filesystem for a real
// filesystem standing in for internal/external flash in development and
// testing.
type Store interface {
	// Write stores data at path under loc, creating or overwriting it.
	Write(loc keyforge.Location, path string, data []byte) error

	// Read returns the bytes stored at path under loc, or a NotFound error
	// if no such entry exists.
	Read(loc keyforge.Location, path string) ([]byte, error)

	// Exists reports whether path has an entry under loc.
	Exists(loc keyforge.Location, path string) (bool, error)

	// Metadata returns size and directory-ness for path under loc.
	Metadata(loc keyforge.Location, path string) (*keyforge.FileMetadata, error)

	// Remove deletes the entry at path under loc. Removing an absent path
	// is not an error.
	Remove(loc keyforge.Location, path string) error

	// RemoveDirAll deletes every entry whose path is dir or begins with
	// dir+"/", returning the count removed.
	RemoveDirAll(loc keyforge.Location, dir string) (uint32, error)

	// List returns the sorted relative paths of every entry directly
	// inside dir (spec's directory iteration walks one level at a time;
	// the client package's cursor logic pages through this slice).
	List(loc keyforge.Location, dir string) ([]string, error)
}
