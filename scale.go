// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package rhs

import "gonum.org/v1/gonum/floats"

// Hardware scaling constants. DCAmplifierGain is negative to match Intan's
// read_Intan_RHS2000_file loader, which scales DC amplifier codes by -0.01923 V.
const (
	AmplifierGain   = 0.195    // Microvolts per code
	AmplifierZero   = 32768    // Code for 0 uV
	DCAmplifierGain = -19.23   // Millivolts per code
	DCAmplifierZero = 512      // Code for 0 mV
	BoardAnalogGain = 312.5e-6 // Volts per code, board ADC and DAC
	BoardAnalogZero = 32768    // Code for 0 V
	stimUnitsPerAmp = 1e6
)

// channelScale returns the gain, zero offset and units for a signal type.
func channelScale(t SignalType) (gain, offset float64, units string) {
	switch t {
	case SignalAmplifier:
		return AmplifierGain, AmplifierZero, "uV"
	case SignalBoardADC, SignalBoardDAC:
		return BoardAnalogGain, BoardAnalogZero, "V"
	default:
		return 1, 0, ""
	}
}

// scale converts raw samples to physical units.
func scale(hdr *Header, raw *RawData, opts Options) *Data {
	data := &Data{
		Timestamps:  scaleTimestamps(raw.Timestamps, float64(hdr.SampleRate)),
		SampleIndex: raw.Timestamps,
	}

	if hdr.Streams.Has(StreamAmplifier) {
		data.Amplifier = make([][]float64, len(raw.Amplifier))
		for ch, row := range raw.Amplifier {
			info := hdr.AmplifierChannels[ch]
			data.Amplifier[ch] = affine(row, info.Offset, info.Gain)
		}
		if !opts.SkipNotchFilter && notchRequired(hdr) {
			Logf("Applying %s notch filter to %d amplifier channel%s", hdr.NotchFilter, len(data.Amplifier), plural(len(data.Amplifier)))
			for ch, row := range data.Amplifier {
				data.Amplifier[ch] = notchFilter(row, float64(hdr.SampleRate), hdr.NotchFilter.Frequency(), notchBandwidth)
			}
		}
	}

	if hdr.Streams.Has(StreamDCAmplifier) {
		data.DCAmplifier = make([][]float64, len(raw.DCAmplifier))
		for ch, row := range raw.DCAmplifier {
			data.DCAmplifier[ch] = affine(row, DCAmplifierZero, DCAmplifierGain)
		}
	}

	if hdr.Streams.Has(StreamStim) {
		microampsPerStep := float64(hdr.Stim.StepSize) * stimUnitsPerAmp
		data.Stim = make([][]float64, len(raw.Stim))
		for ch, row := range raw.Stim {
			dst := make([]float64, len(row))
			for i, v := range row {
				dst[i] = float64(v)
			}
			floats.Scale(microampsPerStep, dst)
			data.Stim[ch] = dst
		}
		data.ComplianceLimit = raw.ComplianceLimit
		data.ChargeRecovery = raw.ChargeRecovery
		data.AmpSettle = raw.AmpSettle
	}

	if hdr.Streams.Has(StreamBoardADC) {
		data.BoardADC = make([][]float64, len(raw.BoardADC))
		for ch, row := range raw.BoardADC {
			info := hdr.BoardADCChannels[ch]
			data.BoardADC[ch] = affine(row, info.Offset, info.Gain)
		}
	}

	if hdr.Streams.Has(StreamBoardDAC) {
		data.BoardDAC = make([][]float64, len(raw.BoardDAC))
		for ch, row := range raw.BoardDAC {
			info := hdr.BoardDACChannels[ch]
			data.BoardDAC[ch] = affine(row, info.Offset, info.Gain)
		}
	}

	if hdr.Streams.Has(StreamDigitalIn) {
		data.BoardDigIn = unpackDigital(raw.BoardDigIn, hdr.BoardDigInChannels)
	}
	if hdr.Streams.Has(StreamDigitalOut) {
		data.BoardDigOut = unpackDigital(raw.BoardDigOut, hdr.BoardDigOutChannels)
	}

	return data
}

// affine maps raw codes to gain * (code - zero).
func affine(codes []uint16, zero, gain float64) []float64 {
	dst := make([]float64, len(codes))
	for i, v := range codes {
		dst[i] = float64(v)
	}
	floats.AddConst(-zero, dst)
	floats.Scale(gain, dst)
	return dst
}

func scaleTimestamps(ts []int32, rate float64) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = float64(t) / rate
	}
	return out
}

// unpackDigital expands packed digital words into one boolean row per channel,
// using each channel's native order as its bit index.
func unpackDigital(words []uint16, channels []ChannelInfo) [][]bool {
	out := make([][]bool, len(channels))
	for ch, info := range channels {
		row := make([]bool, len(words))
		for i, w := range words {
			row[i] = digitalBit(w, info.NativeOrder)
		}
		out[ch] = row
	}
	return out
}

// timestampGaps counts adjacent timestamps that do not advance by exactly one.
func timestampGaps(ts []int32) int {
	gaps := 0
	for i := 1; i < len(ts); i++ {
		if ts[i]-ts[i-1] != 1 {
			gaps++
		}
	}
	return gaps
}
