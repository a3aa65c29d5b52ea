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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Options controls how recordings are loaded.
type Options struct {
	// Workers bounds the number of files decoded concurrently when combining a session.
	Workers int `json:"workers,omitempty"`
	// SkipNotchFilter leaves amplifier data unfiltered even when the recording
	// software did not apply its notch filter before saving.
	SkipNotchFilter bool `json:"skip_notch_filter,omitempty"`
}

// DefaultOptions returns the options used by Load.
func DefaultOptions() Options {
	return Options{Workers: runtime.GOMAXPROCS(0)}
}

const maxOptionsFileSize = 1 << 20

// LoadOptions reads Options from a JSON file. Fields omitted from the file
// keep their default values.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return opts, fmt.Errorf("options file must have .json extension, got %q", ext)
	}

	fi, err := os.Stat(cleanPath)
	if err != nil {
		return opts, fmt.Errorf("error reading options file: %w", err)
	}
	if fi.Size() > maxOptionsFileSize {
		return opts, fmt.Errorf("options file too large: %d bytes (max %d)", fi.Size(), maxOptionsFileSize)
	}

	b, err := os.ReadFile(cleanPath)
	if err != nil {
		return opts, fmt.Errorf("error reading options file: %w", err)
	}
	if err := json.Unmarshal(b, &opts); err != nil {
		return opts, fmt.Errorf("error parsing options file: %w", err)
	}
	if opts.Workers < 1 {
		return opts, fmt.Errorf("workers must be at least 1, got %d", opts.Workers)
	}

	return opts, nil
}

func (o Options) workers() int {
	if o.Workers < 1 {
		return 1
	}
	return o.Workers
}
