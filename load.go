// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package rhs

import (
	"fmt"
	"os"
)

// Load loads a recording from path. A regular file is decoded on its own; a
// directory is treated as one session split across several RHS files, which
// are validated, ordered by filename and merged.
func Load(path string) (*File, error) {
	return LoadWithOptions(path, DefaultOptions())
}

// LoadWithOptions is like Load but uses the given options.
func LoadWithOptions(path string, opts Options) (*File, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, withFile(err, path)
	}

	switch {
	case fi.Mode().IsRegular():
		return readFile(path, opts)
	case fi.IsDir():
		return combineSession(path, opts)
	default:
		return nil, &FormatError{Kind: KindInvalidInput, Offset: -1, File: path,
			Err: fmt.Errorf("not a regular file or directory: %s", fi.Mode().Type())}
	}
}
