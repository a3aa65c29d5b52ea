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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf16"
)

// Writer writes RHS files.
type Writer struct {
	w       *bufio.Writer
	hdr     *Header
	samples int  // Number of samples written so far.
	partial bool // Whether a short final block has been written.
}

// Create writes the header to w and returns a Writer for the data blocks.
func Create(w io.Writer, hdr Header) (*Writer, error) {
	if err := hdr.index(); err != nil {
		return nil, err
	}

	b, err := MarshalHeader(&hdr)
	if err != nil {
		return nil, err
	}

	ew := &Writer{w: bufio.NewWriter(w), hdr: &hdr}
	if _, err := ew.w.Write(b); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return ew, nil
}

// Header returns the header being written, with derived fields populated.
func (ew *Writer) Header() *Header {
	return ew.hdr
}

// WriteData writes raw samples as data blocks of SamplesPerBlock samples.
// A trailing remainder is written as a short final block, after which no
// further data may be written.
func (ew *Writer) WriteData(raw *RawData) error {
	if ew.partial {
		return fmt.Errorf("cannot write data after a short final block")
	}
	if err := ew.validate(raw); err != nil {
		return err
	}

	n := raw.NumSamples()
	var e encoder
	for start := 0; start < n; start += SamplesPerBlock {
		count := min(SamplesPerBlock, n-start)
		e.b = e.b[:0]
		e.block(raw, start, count)
		if _, err := ew.w.Write(e.b); err != nil {
			return fmt.Errorf("error writing data block: %w", err)
		}
		if count < SamplesPerBlock {
			ew.partial = true
		}
	}

	ew.samples += n
	return nil
}

// Samples returns the number of samples written so far.
func (ew *Writer) Samples() int {
	return ew.samples
}

// Close flushes buffered data to the underlying writer.
func (ew *Writer) Close() error {
	if err := ew.w.Flush(); err != nil {
		return fmt.Errorf("error flushing data: %w", err)
	}
	return nil
}

func (ew *Writer) validate(raw *RawData) error {
	n := raw.NumSamples()
	hdr := ew.hdr

	check := func(name string, present bool, channels, got int, lengths func(int) int) error {
		if !present {
			if got != 0 {
				return fmt.Errorf("%s data supplied but stream is not enabled", name)
			}
			return nil
		}
		if got != channels {
			return fmt.Errorf("expected %d %s channels, got %d", channels, name, got)
		}
		for ch := range got {
			if lengths(ch) != n {
				return fmt.Errorf("%s channel %d has %d samples, expected %d", name, ch, lengths(ch), n)
			}
		}
		return nil
	}

	amps := len(hdr.AmplifierChannels)
	if err := check("amplifier", hdr.Streams.Has(StreamAmplifier), amps, len(raw.Amplifier),
		func(ch int) int { return len(raw.Amplifier[ch]) }); err != nil {
		return err
	}
	if err := check("DC amplifier", hdr.Streams.Has(StreamDCAmplifier), amps, len(raw.DCAmplifier),
		func(ch int) int { return len(raw.DCAmplifier[ch]) }); err != nil {
		return err
	}
	if err := check("stim", hdr.Streams.Has(StreamStim), amps, len(raw.Stim),
		func(ch int) int { return len(raw.Stim[ch]) }); err != nil {
		return err
	}
	if err := check("board ADC", hdr.Streams.Has(StreamBoardADC), len(hdr.BoardADCChannels), len(raw.BoardADC),
		func(ch int) int { return len(raw.BoardADC[ch]) }); err != nil {
		return err
	}
	if err := check("board DAC", hdr.Streams.Has(StreamBoardDAC), len(hdr.BoardDACChannels), len(raw.BoardDAC),
		func(ch int) int { return len(raw.BoardDAC[ch]) }); err != nil {
		return err
	}
	for _, ch := range raw.Stim {
		for _, v := range ch {
			if v < -stimMagnitudeMask || v > stimMagnitudeMask {
				return fmt.Errorf("stim current %d exceeds the %d step range", v, stimMagnitudeMask)
			}
		}
	}
	if err := checkWords("digital input", hdr.Streams.Has(StreamDigitalIn), raw.BoardDigIn, n); err != nil {
		return err
	}
	if err := checkWords("digital output", hdr.Streams.Has(StreamDigitalOut), raw.BoardDigOut, n); err != nil {
		return err
	}

	return nil
}

func checkWords(name string, present bool, words []uint16, n int) error {
	if !present {
		if words != nil {
			return fmt.Errorf("%s data supplied but stream is not enabled", name)
		}
		return nil
	}
	if len(words) != n {
		return fmt.Errorf("%s has %d samples, expected %d", name, len(words), n)
	}
	return nil
}

// MarshalHeader encodes hdr in the RHS header layout.
func MarshalHeader(hdr *Header) ([]byte, error) {
	var e encoder

	e.uint32(MagicNumber)
	e.int16(hdr.Version.Major)
	e.int16(hdr.Version.Minor)

	e.float32(hdr.SampleRate)
	e.bool16(hdr.DSPEnabled)
	e.bandwidth(hdr.Actual)
	e.bandwidth(hdr.Desired)
	e.int16(int16(hdr.NotchFilter))
	e.float32(hdr.DesiredImpedanceTestFrequency)
	e.float32(hdr.ActualImpedanceTestFrequency)

	e.int16(hdr.Stim.AmpSettleMode)
	e.int16(hdr.Stim.ChargeRecoveryMode)
	e.float32(hdr.Stim.StepSize)
	e.float32(hdr.Stim.ChargeRecoveryCurrentLimit)
	e.float32(hdr.Stim.ChargeRecoveryTargetVoltage)

	for i, note := range hdr.Notes {
		e.qstring(note, hdr.NullNotes[i])
	}

	e.bool16(hdr.DCAmplifierDataSaved)
	e.int16(hdr.EvalBoardMode)
	e.qstring(hdr.ReferenceChannel, hdr.NullReferenceChannel)

	if len(hdr.SignalGroups) > math.MaxInt16 {
		return nil, fmt.Errorf("too many signal groups: %d", len(hdr.SignalGroups))
	}
	e.int16(int16(len(hdr.SignalGroups)))

	for _, group := range hdr.SignalGroups {
		count := group.NumChannels
		if group.Enabled {
			if len(group.Channels) > math.MaxInt16 {
				return nil, fmt.Errorf("too many channels in signal group %q: %d", group.Name, len(group.Channels))
			}
			count = int16(len(group.Channels))
		}

		e.qstring(group.Name, group.NullName)
		e.qstring(group.Prefix, group.NullPrefix)
		e.bool16(group.Enabled)
		e.int16(count)
		e.int16(group.NumAmplifierChannels)

		if !group.Enabled {
			continue
		}
		for _, ch := range group.Channels {
			e.qstring(ch.NativeName, ch.NullNativeName)
			e.qstring(ch.CustomName, ch.NullCustomName)
			e.int16(ch.NativeOrder)
			e.int16(ch.CustomOrder)
			e.int16(int16(ch.SignalType))
			e.bool16(ch.Enabled)
			e.int16(ch.ChipChannel)
			e.int16(ch.CommandStream)
			e.int16(ch.BoardStream)
			e.int16(ch.Trigger.VoltageTriggerMode)
			e.int16(ch.Trigger.VoltageThreshold)
			e.int16(ch.Trigger.DigitalTriggerChannel)
			e.int16(ch.Trigger.DigitalEdgePolarity)
			e.float32(ch.ImpedanceMagnitude)
			e.float32(ch.ImpedancePhase)
		}
	}

	return e.b, nil
}

// encoder appends little-endian fields to a byte slice.
type encoder struct {
	b []byte
}

func (e *encoder) uint16(v uint16) { e.b = binary.LittleEndian.AppendUint16(e.b, v) }

func (e *encoder) int16(v int16) { e.uint16(uint16(v)) }

func (e *encoder) uint32(v uint32) { e.b = binary.LittleEndian.AppendUint32(e.b, v) }

func (e *encoder) float32(v float32) { e.uint32(math.Float32bits(v)) }

func (e *encoder) bool16(v bool) {
	if v {
		e.int16(1)
		return
	}
	e.int16(0)
}

// qstring writes s as a QString. An empty string marked null is written as a
// Qt null string.
func (e *encoder) qstring(s string, null bool) {
	if null && s == "" {
		e.uint32(nullQString)
		return
	}
	units := utf16.Encode([]rune(s))
	e.uint32(uint32(2 * len(units)))
	for _, u := range units {
		e.uint16(u)
	}
}

func (e *encoder) bandwidth(bw Bandwidth) {
	e.float32(bw.DSPCutoff)
	e.float32(bw.Lower)
	e.float32(bw.LowerSettle)
	e.float32(bw.Upper)
}

// block appends n samples of raw starting at start in data block layout.
func (e *encoder) block(raw *RawData, start, n int) {
	for s := range n {
		e.uint32(uint32(raw.Timestamps[start+s]))
	}
	e.interleaved(raw.Amplifier, start, n)
	e.interleaved(raw.DCAmplifier, start, n)
	for s := range n {
		for ch := range raw.Stim {
			e.uint16(packStim(stimWord{
				Current:         raw.Stim[ch][start+s],
				ComplianceLimit: flag(raw.ComplianceLimit, ch, start+s),
				ChargeRecovery:  flag(raw.ChargeRecovery, ch, start+s),
				AmpSettle:       flag(raw.AmpSettle, ch, start+s),
			}))
		}
	}
	e.interleaved(raw.BoardADC, start, n)
	e.interleaved(raw.BoardDAC, start, n)
	if raw.BoardDigIn != nil {
		for _, w := range raw.BoardDigIn[start : start+n] {
			e.uint16(w)
		}
	}
	if raw.BoardDigOut != nil {
		for _, w := range raw.BoardDigOut[start : start+n] {
			e.uint16(w)
		}
	}
}

func (e *encoder) interleaved(rows [][]uint16, start, n int) {
	for s := range n {
		for ch := range rows {
			e.uint16(rows[ch][start+s])
		}
	}
}

func flag(rows [][]bool, ch, i int) bool {
	if ch >= len(rows) || i >= len(rows[ch]) {
		return false
	}
	return rows[ch][i]
}
