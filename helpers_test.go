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
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenPSG/rhs"
	"github.com/stretchr/testify/require"
)

// layout describes the channels of a synthetic recording.
type layout struct {
	amps    int
	adcs    int
	dacs    int
	digIn   int
	digOut  int
	dcSaved bool
}

func channel(prefix string, t rhs.SignalType, i int) rhs.ChannelInfo {
	name := fmt.Sprintf("%s-%03d", prefix, i)
	return rhs.ChannelInfo{
		NativeName:         name,
		CustomName:         name,
		NativeOrder:        int16(i),
		CustomOrder:        int16(i),
		SignalType:         t,
		Enabled:            true,
		ChipChannel:        int16(i),
		BoardStream:        1,
		ImpedanceMagnitude: 12500,
		ImpedancePhase:     -45,
	}
}

func group(name, prefix string, t rhs.SignalType, n int) rhs.SignalGroup {
	g := rhs.SignalGroup{Name: name, Prefix: prefix, Enabled: true, NumChannels: int16(n)}
	for i := range n {
		g.Channels = append(g.Channels, channel(prefix, t, i))
	}
	if t == rhs.SignalAmplifier {
		g.NumAmplifierChannels = int16(n)
	}
	return g
}

func testHeader(l layout) rhs.Header {
	return rhs.Header{
		Version:    rhs.Version{Major: 3, Minor: 2},
		SampleRate: 20000,
		DSPEnabled: true,
		Actual: rhs.Bandwidth{
			DSPCutoff: 1.17, Lower: 0.1, LowerSettle: 1000, Upper: 7500,
		},
		Desired: rhs.Bandwidth{
			DSPCutoff: 1, Lower: 0.1, LowerSettle: 1000, Upper: 7500,
		},
		NotchFilter:                   rhs.NotchOff,
		DesiredImpedanceTestFrequency: 1000,
		ActualImpedanceTestFrequency:  1000,
		Stim: rhs.StimParameters{
			AmpSettleMode:               1,
			ChargeRecoveryMode:          0,
			StepSize:                    10e-6,
			ChargeRecoveryCurrentLimit:  1e-6,
			ChargeRecoveryTargetVoltage: 0,
		},
		Notes:                [3]string{"mouse 7", "", "électrode µ-array"},
		DCAmplifierDataSaved: l.dcSaved,
		EvalBoardMode:        0,
		ReferenceChannel:     "hardware",
		SignalGroups: []rhs.SignalGroup{
			group("Port A", "A", rhs.SignalAmplifier, l.amps),
			{Name: "Port B", Prefix: "B", Enabled: false, NumChannels: 16},
			group("Analog In Ports", "ANALOG-IN", rhs.SignalBoardADC, l.adcs),
			group("Analog Out Ports", "ANALOG-OUT", rhs.SignalBoardDAC, l.dacs),
			group("Digital In Ports", "DIGITAL-IN", rhs.SignalDigitalIn, l.digIn),
			group("Digital Out Ports", "DIGITAL-OUT", rhs.SignalDigitalOut, l.digOut),
		},
	}
}

// rampData fills every enabled stream of hdr with n deterministic samples.
func rampData(hdr *rhs.Header, n int, firstTimestamp int32) *rhs.RawData {
	raw := &rhs.RawData{Timestamps: make([]int32, n)}
	for i := range n {
		raw.Timestamps[i] = firstTimestamp + int32(i)
	}

	rows := func(channels int, f func(ch, i int) uint16) [][]uint16 {
		out := make([][]uint16, channels)
		for ch := range out {
			out[ch] = make([]uint16, n)
			for i := range n {
				out[ch][i] = f(ch, i)
			}
		}
		return out
	}

	amps := len(hdr.AmplifierChannels)
	if hdr.Streams.Has(rhs.StreamAmplifier) {
		raw.Amplifier = rows(amps, func(ch, i int) uint16 { return uint16(32768 + 10*ch + i%100) })
	}
	if hdr.Streams.Has(rhs.StreamDCAmplifier) {
		raw.DCAmplifier = rows(amps, func(ch, i int) uint16 { return uint16(512 + ch + i%3) })
	}
	if hdr.Streams.Has(rhs.StreamStim) {
		raw.Stim = make([][]int32, amps)
		raw.ComplianceLimit = make([][]bool, amps)
		for ch := range amps {
			raw.Stim[ch] = make([]int32, n)
			raw.ComplianceLimit[ch] = make([]bool, n)
			for i := range n {
				raw.Stim[ch][i] = int32(i%7) - 3
				raw.ComplianceLimit[ch][i] = i%5 == 0
			}
		}
	}
	if hdr.Streams.Has(rhs.StreamBoardADC) {
		raw.BoardADC = rows(len(hdr.BoardADCChannels), func(ch, i int) uint16 { return uint16(32768 + 3200*ch) })
	}
	if hdr.Streams.Has(rhs.StreamBoardDAC) {
		raw.BoardDAC = rows(len(hdr.BoardDACChannels), func(ch, i int) uint16 { return uint16(32768 - 3200*ch) })
	}
	if hdr.Streams.Has(rhs.StreamDigitalIn) {
		raw.BoardDigIn = make([]uint16, n)
		for i := range n {
			raw.BoardDigIn[i] = uint16(i)
		}
	}
	if hdr.Streams.Has(rhs.StreamDigitalOut) {
		raw.BoardDigOut = make([]uint16, n)
		for i := range n {
			raw.BoardDigOut[i] = ^uint16(i)
		}
	}
	return raw
}

// writeFile writes a synthetic recording of n samples and returns its path.
// An n of zero writes the header only.
func writeFile(t *testing.T, dir, name string, hdr rhs.Header, n int, firstTimestamp int32) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = f.Close()
	})

	ew, err := rhs.Create(f, hdr)
	require.NoError(t, err)

	if n > 0 {
		require.NoError(t, ew.WriteData(rampData(ew.Header(), n, firstTimestamp)))
	}
	require.NoError(t, ew.Close())
	require.NoError(t, f.Close())

	return path
}
