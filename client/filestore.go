// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import (
	"strings"

	"keyforge.io/errors"
	"keyforge.io/keyforge"
)

// Filestore is a client's namespaced view over arbitrary user files, stored
// at "<client>/fs/<path>" (spec §4.C).
type Filestore struct{ c *Context }

func (f Filestore) fullPath(path string) string {
	if path == "" {
		return f.c.prefix() + "/fs"
	}
	return f.c.prefix() + "/fs/" + path
}

// Write stores data at path, invalidating both directory cursors.
func (f Filestore) Write(loc keyforge.Location, path string, data []byte) error {
	const op = "filestore.Write"
	full := f.fullPath(path)
	if err := f.c.st.Write(loc, full, data); err != nil {
		return errors.E(op, errors.Client(f.c.ID), errors.Path(path), errors.FilesystemWriteFailure, err)
	}
	f.c.invalidateCursors()
	return nil
}

// Read returns the bytes stored at path.
func (f Filestore) Read(loc keyforge.Location, path string) ([]byte, error) {
	const op = "filestore.Read"
	b, err := f.c.st.Read(loc, f.fullPath(path))
	if err != nil {
		return nil, errors.E(op, errors.Client(f.c.ID), errors.Path(path), err)
	}
	return b, nil
}

// Metadata returns size/directory-ness for path.
func (f Filestore) Metadata(loc keyforge.Location, path string) (*keyforge.FileMetadata, error) {
	const op = "filestore.Metadata"
	m, err := f.c.st.Metadata(loc, f.fullPath(path))
	if err != nil {
		return nil, errors.E(op, errors.Client(f.c.ID), errors.Path(path), err)
	}
	return m, nil
}

// Remove deletes the file at path, invalidating both directory cursors.
func (f Filestore) Remove(loc keyforge.Location, path string) error {
	const op = "filestore.Remove"
	if err := f.c.st.Remove(loc, f.fullPath(path)); err != nil {
		return errors.E(op, errors.Client(f.c.ID), errors.Path(path), err)
	}
	f.c.invalidateCursors()
	return nil
}

// RemoveDirAll deletes every file under path, invalidating both directory
// cursors.
func (f Filestore) RemoveDirAll(loc keyforge.Location, path string) (uint32, error) {
	const op = "filestore.RemoveDirAll"
	n, err := f.c.st.RemoveDirAll(loc, f.fullPath(path))
	if err != nil {
		return 0, errors.E(op, errors.Client(f.c.ID), errors.Path(path), err)
	}
	f.c.invalidateCursors()
	return n, nil
}

// LocateFile reports the full path of name inside dir if it exists there
// directly, or "" if not found.
func (f Filestore) LocateFile(loc keyforge.Location, dir, name string) (string, error) {
	sub := dir
	if sub != "" {
		sub = sub + "/" + name
	} else {
		sub = name
	}
	if ok, err := f.c.st.Exists(loc, f.fullPath(sub)); err != nil {
		return "", errors.E("filestore.LocateFile", errors.Client(f.c.ID), err)
	} else if ok {
		return sub, nil
	}
	return "", nil
}

// dirCursor is the server-held continuation for ReadDirFirst/ReadDirNext.
type dirCursor struct {
	loc     keyforge.Location
	dir     string
	pending []string // remaining names, lexicographically ordered
}

func (f Filestore) entryFor(loc keyforge.Location, dir, name string) (*keyforge.DirEntry, error) {
	rel := name
	if dir != "" {
		rel = dir + "/" + name
	}
	m, err := f.c.st.Metadata(loc, f.fullPath(rel))
	if err != nil {
		return nil, err
	}
	return &keyforge.DirEntry{Path: rel, IsDirectory: m.IsDirectory}, nil
}

// ReadDirFirst lists dir and returns its first entry at or after notBefore,
// storing the remainder as this client's directory cursor (spec §4.I:
// starting a new First silently discards any previous cursor).
func (f Filestore) ReadDirFirst(loc keyforge.Location, dir, notBefore string) (*keyforge.DirEntry, error) {
	const op = "filestore.ReadDirFirst"
	names, err := f.c.st.List(loc, f.fullPath(dir))
	if err != nil {
		return nil, errors.E(op, errors.Client(f.c.ID), errors.Path(dir), err)
	}
	start := 0
	if notBefore != "" {
		for i, n := range names {
			if n >= notBefore {
				start = i
				break
			}
			start = i + 1
		}
	}
	names = names[start:]
	if len(names) == 0 {
		f.c.dir = nil
		return nil, nil
	}
	entry, err := f.entryFor(loc, dir, names[0])
	if err != nil {
		return nil, errors.E(op, errors.Client(f.c.ID), errors.Path(dir), err)
	}
	f.c.dir = &dirCursor{loc: loc, dir: dir, pending: names[1:]}
	return entry, nil
}

// ReadDirNext consumes the stored cursor, replacing it if more remain or
// clearing it if exhausted. It returns nil, nil if there is no stored
// cursor ("no more").
func (f Filestore) ReadDirNext() (*keyforge.DirEntry, error) {
	const op = "filestore.ReadDirNext"
	cur := f.c.dir
	if cur == nil || len(cur.pending) == 0 {
		f.c.dir = nil
		return nil, nil
	}
	name := cur.pending[0]
	entry, err := f.entryFor(cur.loc, cur.dir, name)
	if err != nil {
		f.c.dir = nil
		return nil, errors.E(op, errors.Client(f.c.ID), errors.Path(cur.dir), err)
	}
	rest := cur.pending[1:]
	if len(rest) == 0 {
		f.c.dir = nil
	} else {
		f.c.dir = &dirCursor{loc: cur.loc, dir: cur.dir, pending: rest}
	}
	return entry, nil
}

// dirFilesCursor is the server-held continuation for ReadDirFilesFirst and
// ReadDirFilesNext: unlike dirCursor, it yields file contents directly
// (filtered by a user attribute substring match against the filename)
// rather than bare directory entries.
type dirFilesCursor struct {
	loc     keyforge.Location
	dir     string
	pending []string
}

// ReadDirFilesFirst lists the plain files directly inside dir whose name
// contains userAttr (or all files, if userAttr is empty), returning the
// first match's content and storing the rest as this client's
// files-cursor.
func (f Filestore) ReadDirFilesFirst(loc keyforge.Location, dir, userAttr string) ([]byte, error) {
	const op = "filestore.ReadDirFilesFirst"
	names, err := f.c.st.List(loc, f.fullPath(dir))
	if err != nil {
		return nil, errors.E(op, errors.Client(f.c.ID), errors.Path(dir), err)
	}
	var matches []string
	for _, n := range names {
		rel := n
		if dir != "" {
			rel = dir + "/" + n
		}
		m, err := f.c.st.Metadata(loc, f.fullPath(rel))
		if err != nil || m.IsDirectory {
			continue
		}
		if userAttr == "" || strings.Contains(n, userAttr) {
			matches = append(matches, rel)
		}
	}
	if len(matches) == 0 {
		f.c.dirFiles = nil
		return nil, nil
	}
	data, err := f.c.st.Read(loc, f.fullPath(matches[0]))
	if err != nil {
		return nil, errors.E(op, errors.Client(f.c.ID), errors.Path(matches[0]), err)
	}
	f.c.dirFiles = &dirFilesCursor{loc: loc, dir: dir, pending: matches[1:]}
	return data, nil
}

// ReadDirFilesNext consumes the stored files-cursor the same way
// ReadDirNext does for dirCursor.
func (f Filestore) ReadDirFilesNext() ([]byte, error) {
	const op = "filestore.ReadDirFilesNext"
	cur := f.c.dirFiles
	if cur == nil || len(cur.pending) == 0 {
		f.c.dirFiles = nil
		return nil, nil
	}
	path := cur.pending[0]
	data, err := f.c.st.Read(cur.loc, f.fullPath(path))
	if err != nil {
		f.c.dirFiles = nil
		return nil, errors.E(op, errors.Client(f.c.ID), errors.Path(path), err)
	}
	rest := cur.pending[1:]
	if len(rest) == 0 {
		f.c.dirFiles = nil
	} else {
		f.c.dirFiles = &dirFilesCursor{loc: cur.loc, dir: cur.dir, pending: rest}
	}
	return data, nil
}
