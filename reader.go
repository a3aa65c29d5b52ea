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
	"io"
	"os"
)

// Open reads and decodes a complete RHS file from r.
func Open(r io.Reader) (*File, error) {
	return OpenWithOptions(r, DefaultOptions())
}

// OpenWithOptions is like Open but uses the given options.
func OpenWithOptions(r io.Reader, opts Options) (*File, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, &FormatError{Kind: KindIO, Offset: -1, Err: fmt.Errorf("error reading file: %w", err)}
	}
	return decode(b, opts)
}

// ReadHeader decodes only the header of an RHS file.
func ReadHeader(r io.Reader) (*Header, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, &FormatError{Kind: KindIO, Offset: -1, Err: fmt.Errorf("error reading file: %w", err)}
	}
	return decodeHeader(newCursor(b))
}

// readFile decodes the RHS file at path.
func readFile(path string, opts Options) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, withFile(err, path)
	}
	f, err := decode(b, opts)
	if err != nil {
		return nil, withFile(err, path)
	}
	return f, nil
}

func decode(b []byte, opts Options) (*File, error) {
	c := newCursor(b)

	hdr, err := decodeHeader(c)
	if err != nil {
		return nil, err
	}
	logHeaderSummary(hdr)

	raw, err := decodeData(c, hdr)
	if err != nil {
		return nil, err
	}

	f := &File{Header: hdr}
	if raw == nil {
		Logf("Header file contains no data. Amplifiers were sampled at %.2f kS/s.", hdr.SampleRate/1000)
		return f, nil
	}

	Logf("File contains %.3f seconds of data. Amplifiers were sampled at %.2f kS/s.",
		float64(raw.NumSamples())/float64(hdr.SampleRate), hdr.SampleRate/1000)

	if gaps := timestampGaps(raw.Timestamps); gaps > 0 {
		Logf("Warning: %d gap%s in timestamp data found. Time scale will not be uniform!", gaps, plural(gaps))
	}

	f.Data = scale(hdr, raw, opts)
	return f, nil
}

func logHeaderSummary(hdr *Header) {
	Logf("Reading Intan Technologies RHS Data File, Version %s", hdr.Version)

	amps := len(hdr.AmplifierChannels)
	Logf("Found %d amplifier channel%s.", amps, plural(amps))
	if hdr.Streams.Has(StreamDCAmplifier) {
		Logf("Found %d DC amplifier channel%s.", amps, plural(amps))
	}
	Logf("Found %d board ADC channel%s.", len(hdr.BoardADCChannels), plural(len(hdr.BoardADCChannels)))
	Logf("Found %d board DAC channel%s.", len(hdr.BoardDACChannels), plural(len(hdr.BoardDACChannels)))
	Logf("Found %d board digital input channel%s.", len(hdr.BoardDigInChannels), plural(len(hdr.BoardDigInChannels)))
	Logf("Found %d board digital output channel%s.", len(hdr.BoardDigOutChannels), plural(len(hdr.BoardDigOutChannels)))
}
