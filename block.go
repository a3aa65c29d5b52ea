// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package rhs

// Stimulation command word layout.
const (
	stimComplianceBit     = 1 << 15
	stimChargeRecoveryBit = 1 << 14
	stimAmpSettleBit      = 1 << 13
	stimPolarityBit       = 1 << 8 // Set for negative current
	stimMagnitudeMask     = 0xFF
)

// stimWord is a decoded stimulation command word.
type stimWord struct {
	Current         int32 // Signed current in multiples of the stim step size
	ComplianceLimit bool
	ChargeRecovery  bool
	AmpSettle       bool
}

func unpackStim(w uint16) stimWord {
	current := int32(w & stimMagnitudeMask)
	if w&stimPolarityBit != 0 {
		current = -current
	}
	return stimWord{
		Current:         current,
		ComplianceLimit: w&stimComplianceBit != 0,
		ChargeRecovery:  w&stimChargeRecoveryBit != 0,
		AmpSettle:       w&stimAmpSettleBit != 0,
	}
}

func packStim(s stimWord) uint16 {
	current := s.Current
	var w uint16
	if current < 0 {
		w |= stimPolarityBit
		current = -current
	}
	w |= uint16(current) & stimMagnitudeMask
	if s.ComplianceLimit {
		w |= stimComplianceBit
	}
	if s.ChargeRecovery {
		w |= stimChargeRecoveryBit
	}
	if s.AmpSettle {
		w |= stimAmpSettleBit
	}
	return w
}

// digitalBit reports whether bit n of a packed digital word is set.
func digitalBit(w uint16, n int16) bool {
	if n < 0 || n > 15 {
		return false
	}
	return w&(1<<uint(n)) != 0
}

// bytesPerSample returns the size of one sample across all streams.
func bytesPerSample(hdr *Header) int {
	n := 4 // timestamp
	amps := len(hdr.AmplifierChannels)
	if hdr.Streams.Has(StreamAmplifier) {
		n += 2 * amps
	}
	if hdr.Streams.Has(StreamDCAmplifier) {
		n += 2 * amps
	}
	if hdr.Streams.Has(StreamStim) {
		n += 2 * amps
	}
	if hdr.Streams.Has(StreamBoardADC) {
		n += 2 * len(hdr.BoardADCChannels)
	}
	if hdr.Streams.Has(StreamBoardDAC) {
		n += 2 * len(hdr.BoardDACChannels)
	}
	if hdr.Streams.Has(StreamDigitalIn) {
		n += 2
	}
	if hdr.Streams.Has(StreamDigitalOut) {
		n += 2
	}
	return n
}

// decodeData demultiplexes all data blocks following the header.
// It returns nil when the file holds no data.
func decodeData(c *cursor, hdr *Header) (*RawData, error) {
	if c.eof() {
		return nil, nil
	}

	sampleSize := bytesPerSample(hdr)
	blockSize := sampleSize * SamplesPerBlock
	fullBlocks := c.remaining() / blockSize
	tail := c.remaining() % blockSize

	// A short final block must still end on a sample boundary.
	if tail%sampleSize != 0 {
		end := int64(len(c.buf))
		return nil, &FormatError{
			Kind:   KindCorruptBlock,
			Offset: c.offset() + int64(fullBlocks*blockSize),
			Err:    newError(KindTruncated, end, "", "final block holds %d bytes, not a multiple of the %d byte sample size", tail, sampleSize),
		}
	}
	tailSamples := tail / sampleSize
	numSamples := fullBlocks*SamplesPerBlock + tailSamples

	raw := newRawData(hdr, numSamples)
	for b := range fullBlocks {
		if err := decodeBlock(c, hdr, raw, b*SamplesPerBlock, SamplesPerBlock); err != nil {
			return nil, err
		}
	}
	if tailSamples > 0 {
		if err := decodeBlock(c, hdr, raw, fullBlocks*SamplesPerBlock, tailSamples); err != nil {
			return nil, err
		}
	}

	return raw, nil
}

func newRawData(hdr *Header, n int) *RawData {
	raw := &RawData{Timestamps: make([]int32, n)}
	amps := len(hdr.AmplifierChannels)
	if hdr.Streams.Has(StreamAmplifier) {
		raw.Amplifier = makeUint16(amps, n)
	}
	if hdr.Streams.Has(StreamDCAmplifier) {
		raw.DCAmplifier = makeUint16(amps, n)
	}
	if hdr.Streams.Has(StreamStim) {
		raw.Stim = make([][]int32, amps)
		for i := range raw.Stim {
			raw.Stim[i] = make([]int32, n)
		}
		raw.ComplianceLimit = makeBool(amps, n)
		raw.ChargeRecovery = makeBool(amps, n)
		raw.AmpSettle = makeBool(amps, n)
	}
	if hdr.Streams.Has(StreamBoardADC) {
		raw.BoardADC = makeUint16(len(hdr.BoardADCChannels), n)
	}
	if hdr.Streams.Has(StreamBoardDAC) {
		raw.BoardDAC = makeUint16(len(hdr.BoardDACChannels), n)
	}
	if hdr.Streams.Has(StreamDigitalIn) {
		raw.BoardDigIn = make([]uint16, n)
	}
	if hdr.Streams.Has(StreamDigitalOut) {
		raw.BoardDigOut = make([]uint16, n)
	}
	return raw
}

// decodeBlock reads one block of n samples into raw starting at sample index start.
// Within a block each stream is stored sample-major: all channels of sample 0,
// then all channels of sample 1, and so on.
func decodeBlock(c *cursor, hdr *Header, raw *RawData, start, n int) error {
	b, err := c.next(4 * n)
	if err != nil {
		return err
	}
	for s := range n {
		raw.Timestamps[start+s] = int32(c.order.Uint32(b[4*s:]))
	}

	if raw.Amplifier != nil {
		if err := readInterleaved(c, raw.Amplifier, start, n); err != nil {
			return err
		}
	}
	if raw.DCAmplifier != nil {
		if err := readInterleaved(c, raw.DCAmplifier, start, n); err != nil {
			return err
		}
	}
	if raw.Stim != nil {
		channels := len(raw.Stim)
		b, err := c.next(2 * n * channels)
		if err != nil {
			return err
		}
		for s := range n {
			for ch := range channels {
				w := unpackStim(c.order.Uint16(b[2*(s*channels+ch):]))
				raw.Stim[ch][start+s] = w.Current
				raw.ComplianceLimit[ch][start+s] = w.ComplianceLimit
				raw.ChargeRecovery[ch][start+s] = w.ChargeRecovery
				raw.AmpSettle[ch][start+s] = w.AmpSettle
			}
		}
	}
	if raw.BoardADC != nil {
		if err := readInterleaved(c, raw.BoardADC, start, n); err != nil {
			return err
		}
	}
	if raw.BoardDAC != nil {
		if err := readInterleaved(c, raw.BoardDAC, start, n); err != nil {
			return err
		}
	}
	if raw.BoardDigIn != nil {
		if err := readWords(c, raw.BoardDigIn[start:start+n]); err != nil {
			return err
		}
	}
	if raw.BoardDigOut != nil {
		if err := readWords(c, raw.BoardDigOut[start:start+n]); err != nil {
			return err
		}
	}

	return nil
}

func readInterleaved(c *cursor, dst [][]uint16, start, n int) error {
	channels := len(dst)
	b, err := c.next(2 * n * channels)
	if err != nil {
		return err
	}
	for s := range n {
		for ch := range channels {
			dst[ch][start+s] = c.order.Uint16(b[2*(s*channels+ch):])
		}
	}
	return nil
}

func readWords(c *cursor, dst []uint16) error {
	b, err := c.next(2 * len(dst))
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = c.order.Uint16(b[2*i:])
	}
	return nil
}

func makeUint16(channels, n int) [][]uint16 {
	out := make([][]uint16, channels)
	for i := range out {
		out[i] = make([]uint16, n)
	}
	return out
}

func makeBool(channels, n int) [][]bool {
	out := make([][]bool, channels)
	for i := range out {
		out[i] = make([]bool, n)
	}
	return out
}
