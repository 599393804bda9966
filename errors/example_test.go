// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errors_test

import (
	"fmt"

	"keyforge.io/errors"
)

func ExampleError() {
	path := errors.Path("alice/sec/0123")

	e1 := errors.E("Read", path, errors.FilesystemReadFailure, errors.Str("device unresponsive"))
	fmt.Println("\nSimple error:")
	fmt.Println(e1)

	e2 := errors.E("ReadFile", path, errors.Client("alice"), errors.Other, e1)
	fmt.Println("\nNested error:")
	fmt.Println(e2)

	// Output:
	//
	// Simple error:
	// alice/sec/0123: Read: filesystem read failure: device unresponsive
	//
	// Nested error:
	// alice, alice/sec/0123: ReadFile: filesystem read failure:
	//	Read: device unresponsive
}

func ExampleMatch() {
	path := errors.Path("alice/sec/0123")
	err := errors.Str("device unresponsive")

	got := errors.E("Read", path, errors.Client("alice"), errors.FilesystemReadFailure, err)
	expect := errors.E(errors.Client("alice"), errors.FilesystemReadFailure)

	fmt.Println("Match:", errors.Match(expect, got))

	got = errors.E("Read", path, errors.Client("alice"), errors.PermissionDenied, err)
	fmt.Println("Mismatch:", errors.Match(expect, got))

	// Output:
	//
	// Match: true
	// Mismatch: false
}
