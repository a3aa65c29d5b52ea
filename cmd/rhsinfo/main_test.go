// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenPSG/rhs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecording(t *testing.T, dir string, samples int) string {
	t.Helper()

	var channels []rhs.ChannelInfo
	for i, name := range []string{"A-000", "A-001"} {
		channels = append(channels, rhs.ChannelInfo{
			NativeName:  name,
			CustomName:  "CA1-" + name,
			NativeOrder: int16(i),
			CustomOrder: int16(i),
			SignalType:  rhs.SignalAmplifier,
			Enabled:     true,
		})
	}
	hdr := rhs.Header{
		Version:     rhs.Version{Major: 3, Minor: 3},
		SampleRate:  1000,
		NotchFilter: rhs.Notch50Hz,
		Stim:        rhs.StimParameters{StepSize: 1e-6},
		Notes:       [3]string{"awake", "", ""},
		SignalGroups: []rhs.SignalGroup{{
			Name:                 "Port A",
			Prefix:               "A",
			Enabled:              true,
			NumChannels:          2,
			NumAmplifierChannels: 2,
			Channels:             channels,
		}},
	}

	path := filepath.Join(dir, "rec.rhs")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	ew, err := rhs.Create(f, hdr)
	require.NoError(t, err)

	raw := &rhs.RawData{
		Timestamps:      make([]int32, samples),
		Amplifier:       [][]uint16{make([]uint16, samples), make([]uint16, samples)},
		Stim:            [][]int32{make([]int32, samples), make([]int32, samples)},
		ComplianceLimit: [][]bool{make([]bool, samples), make([]bool, samples)},
	}
	for i := range samples {
		raw.Timestamps[i] = int32(i)
		raw.Amplifier[0][i] = rhs.AmplifierZero
		raw.Amplifier[1][i] = uint16(rhs.AmplifierZero + 100*(i%2))
	}
	require.NoError(t, ew.WriteData(raw))
	require.NoError(t, ew.Close())

	return path
}

func TestPrintSummary(t *testing.T) {
	rhs.SetLogger(nil)

	path := writeRecording(t, t.TempDir(), 2000)
	f, err := rhs.Load(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	printSummary(&buf, f, 1)
	out := buf.String()

	assert.Contains(t, out, "File version: 3.3\n")
	assert.Contains(t, out, "Sample rate: 1000 Hz\n")
	assert.Contains(t, out, "Notch filter: 50Hz\n")
	assert.Contains(t, out, "Note 1: awake\n")
	assert.Contains(t, out, "Number of amplifier channels: 2\n")
	assert.Contains(t, out, "Number of time samples: 2000\n")
	assert.Contains(t, out, "Duration: 2.000 seconds\n")
	assert.Contains(t, out, "0: CA1-A-000 (A-000) mean 0.00 uV, std 0.00 uV\n")
	assert.Contains(t, out, "... and 1 more\n")
}

func TestRootCommand(t *testing.T) {
	path := writeRecording(t, t.TempDir(), 300)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"--quiet", "--limit", "2", filepath.Dir(path)})
	require.NoError(t, rootCmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "Source files: 1\n")
	assert.Contains(t, out, "1: CA1-A-001 (A-001) mean 9.75 uV")
}

func TestPlotChannel(t *testing.T) {
	rhs.SetLogger(nil)

	path := writeRecording(t, t.TempDir(), 2000)
	f, err := rhs.Load(path)
	require.NoError(t, err)

	output := filepath.Join(t.TempDir(), "channel.png")
	require.NoError(t, plotChannelData(f, "amplifier", 1, 0.5, 0.25, output))

	fi, err := os.Stat(output)
	require.NoError(t, err)
	assert.Positive(t, fi.Size())

	require.Error(t, plotChannelData(f, "amplifier", 2, 0, 1, output))
	require.Error(t, plotChannelData(f, "adc", 0, 0, 1, output))
	require.Error(t, plotChannelData(f, "emg", 0, 0, 1, output))
	require.Error(t, plotChannelData(f, "amplifier", 0, 10, 1, output))
}
