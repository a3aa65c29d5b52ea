// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package rhs_test

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/OpenPSG/rhs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCombine(t *testing.T) {
	dir := t.TempDir()
	hdr := testHeader(layout{amps: 2, adcs: 1, digIn: 2})

	// Written out of order; both files restart their sample counter.
	second := writeFile(t, dir, "rec_240101_120500.rhs", hdr, 150, 0)
	first := writeFile(t, dir, "rec_240101_120000.rhs", hdr, 200, 0)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a recording"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "spikes.rhs"), 0o755))

	f, err := rhs.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{first, second}, f.SourceFiles)
	require.Equal(t, 350, f.NumSamples())

	data := f.Data
	for i := 1; i < len(data.Timestamps); i++ {
		require.Greater(t, data.Timestamps[i], data.Timestamps[i-1])
		require.Equal(t, data.SampleIndex[i-1]+1, data.SampleIndex[i])
	}
	assert.InDelta(t, 350.0/20000, f.Duration(), 1e-12)

	for _, row := range data.Amplifier {
		assert.Len(t, row, 350)
	}
	for _, row := range data.BoardDigIn {
		assert.Len(t, row, 350)
	}

	// Data from the second file follows the first.
	assert.InDelta(t, float64(10+199%100)*rhs.AmplifierGain, data.Amplifier[1][199], 1e-9)
	assert.InDelta(t, float64(10)*rhs.AmplifierGain, data.Amplifier[1][200], 1e-9)
	assert.True(t, data.ComplianceLimit[0][200])
}

func TestSessionSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "only.RHS", testHeader(layout{amps: 1}), 64, 500)

	f, err := rhs.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, f.SourceFiles)
	assert.Equal(t, 64, f.NumSamples())
	assert.Equal(t, int32(500), f.Data.SampleIndex[0])
}

func TestSessionHeaderOnlyFiles(t *testing.T) {
	dir := t.TempDir()
	hdr := testHeader(layout{amps: 1})
	writeFile(t, dir, "a.rhs", hdr, 0, 0)
	writeFile(t, dir, "b.rhs", hdr, 0, 0)

	f, err := rhs.Load(dir)
	require.NoError(t, err)
	assert.Len(t, f.SourceFiles, 2)
	assert.False(t, f.DataPresent())

	writeFile(t, dir, "c.rhs", hdr, 10, 0)

	f, err = rhs.Load(dir)
	require.NoError(t, err)
	assert.Len(t, f.SourceFiles, 3)
	assert.Equal(t, 10, f.NumSamples())
}

func TestSessionIncompatible(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(hdr *rhs.Header)
		field  string
	}{
		{
			name:   "channel count",
			mutate: func(hdr *rhs.Header) { *hdr = testHeader(layout{amps: 3}) },
			field:  "amplifier_channels.count",
		},
		{
			name:   "sample rate",
			mutate: func(hdr *rhs.Header) { hdr.SampleRate = 30000 },
			field:  "sample_rate",
		},
		{
			name:   "dc amplifier",
			mutate: func(hdr *rhs.Header) { hdr.DCAmplifierDataSaved = true },
			field:  "dc_amplifier_data_saved",
		},
		{
			name:   "stim step",
			mutate: func(hdr *rhs.Header) { hdr.Stim.StepSize = 20e-6 },
			field:  "stim_step_size",
		},
		{
			name:   "custom name",
			mutate: func(hdr *rhs.Header) { hdr.SignalGroups[0].Channels[1].CustomName = "CA1" },
			field:  "amplifier_channels[1].custom_name",
		},
		{
			name:   "native order",
			mutate: func(hdr *rhs.Header) { hdr.SignalGroups[0].Channels[0].NativeOrder = 9 },
			field:  "amplifier_channels[0].native_order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "a.rhs", testHeader(layout{amps: 2}), 10, 0)

			other := testHeader(layout{amps: 2})
			tt.mutate(&other)
			path := writeFile(t, dir, "b.rhs", other, 10, 0)

			_, err := rhs.Load(dir)
			require.ErrorIs(t, err, rhs.ErrIncompatibleSession)

			var fe *rhs.FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.field, fe.Field)
			assert.Equal(t, path, fe.File)
		})
	}
}

func TestSessionEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), nil, 0o644))

	_, err := rhs.Load(dir)
	require.ErrorIs(t, err, rhs.ErrEmptySession)

	var fe *rhs.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, dir, fe.File)
}

func TestSessionCorruptFile(t *testing.T) {
	dir := t.TempDir()
	hdr := testHeader(layout{amps: 1})
	writeFile(t, dir, "a.rhs", hdr, 10, 0)
	bad := filepath.Join(dir, "b.rhs")
	require.NoError(t, os.WriteFile(bad, []byte("definitely not intan"), 0o644))
	writeFile(t, dir, "c.rhs", hdr, 10, 0)

	_, err := rhs.Load(dir)
	require.ErrorIs(t, err, rhs.ErrBadMagic)

	var fe *rhs.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, bad, fe.File)
	assert.Equal(t, int64(0), fe.Offset)
	assert.Contains(t, err.Error(), bad)
}

func TestSessionFirstErrorInOrder(t *testing.T) {
	dir := t.TempDir()
	for i := range 8 {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("f%d.rhs", i)), []byte{1}, 0o644))
	}

	opts := rhs.DefaultOptions()
	opts.Workers = 4

	_, err := rhs.LoadWithOptions(dir, opts)
	var fe *rhs.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, filepath.Join(dir, "f0.rhs"), fe.File)
	assert.ErrorIs(t, err, rhs.ErrTruncated)
}

func TestSessionFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.rhs", "a.RHS", "c.rhd", "d.rhs.bak"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	paths, err := rhs.SessionFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.RHS"), filepath.Join(dir, "b.rhs")}, paths)

	_, err = rhs.SessionFiles(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSessionLogging(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
	)
	rhs.SetLogger(func(format string, v ...any) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() {
		rhs.SetLogger(log.Printf)
	})

	dir := t.TempDir()
	hdr := testHeader(layout{amps: 1})
	writeFile(t, dir, "a.rhs", hdr, 20, 0)
	writeFile(t, dir, "b.rhs", hdr, 20, 0)

	_, err := rhs.Load(dir)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, strings.Join(lines, "\n"), "Combined 2 files")
}
