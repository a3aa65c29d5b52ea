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
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// FileExtension is the extension of RHS data files.
const FileExtension = ".rhs"

// SessionFiles lists the RHS files in dir in acquisition order. The
// acquisition software names files with a date and time suffix, so filename
// order is chronological.
func SessionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, withFile(err, dir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), FileExtension) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// combineSession decodes every RHS file in dir and merges them into one recording.
func combineSession(dir string, opts Options) (*File, error) {
	paths, err := SessionFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, &FormatError{Kind: KindEmptySession, Offset: -1, File: dir,
			Err: fmt.Errorf("no %s files found", FileExtension)}
	}

	files := make([]*File, len(paths))
	errs := make([]error, len(paths))

	var g errgroup.Group
	g.SetLimit(opts.workers())
	for i, path := range paths {
		g.Go(func() error {
			Logf("Loading file %d/%d: %s", i+1, len(paths), path)
			files[i], errs[i] = readFile(path, opts)
			return errs[i]
		})
	}
	_ = g.Wait()

	// Report the first failure in acquisition order, not completion order.
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	combined, err := combineFiles(paths, files)
	if err != nil {
		return nil, err
	}

	Logf("Combined %d file%s, total duration %.2f seconds", len(paths), plural(len(paths)), combined.Duration())
	return combined, nil
}

// combineFiles validates that files share one configuration and concatenates their data.
func combineFiles(paths []string, files []*File) (*File, error) {
	key := newSessionKey(files[0].Header)
	for i := 1; i < len(files); i++ {
		if field := key.diff(newSessionKey(files[i].Header)); field != "" {
			return nil, &FormatError{Kind: KindIncompatibleSession, Offset: -1, File: paths[i], Field: field,
				Err: fmt.Errorf("does not match %s", filepath.Base(paths[0]))}
		}
	}

	hdr := files[0].Header
	combined := &File{
		Header:      hdr,
		SourceFiles: slices.Clone(paths),
	}

	var parts []*Data
	total := 0
	for _, f := range files {
		if f.Data != nil {
			parts = append(parts, f.Data)
			total += f.Data.NumSamples()
		}
	}
	if total == 0 {
		return combined, nil
	}

	data := &Data{
		Amplifier:       gather(parts, total, func(d *Data) [][]float64 { return d.Amplifier }),
		DCAmplifier:     gather(parts, total, func(d *Data) [][]float64 { return d.DCAmplifier }),
		Stim:            gather(parts, total, func(d *Data) [][]float64 { return d.Stim }),
		ComplianceLimit: gather(parts, total, func(d *Data) [][]bool { return d.ComplianceLimit }),
		ChargeRecovery:  gather(parts, total, func(d *Data) [][]bool { return d.ChargeRecovery }),
		AmpSettle:       gather(parts, total, func(d *Data) [][]bool { return d.AmpSettle }),
		BoardADC:        gather(parts, total, func(d *Data) [][]float64 { return d.BoardADC }),
		BoardDAC:        gather(parts, total, func(d *Data) [][]float64 { return d.BoardDAC }),
		BoardDigIn:      gather(parts, total, func(d *Data) [][]bool { return d.BoardDigIn }),
		BoardDigOut:     gather(parts, total, func(d *Data) [][]bool { return d.BoardDigOut }),
	}

	// Each file restarts its counter, so the merged time base is recomputed
	// from the first sample of the session.
	base := parts[0].SampleIndex[0]
	data.SampleIndex = make([]int32, total)
	for i := range data.SampleIndex {
		data.SampleIndex[i] = base + int32(i)
	}
	data.Timestamps = scaleTimestamps(data.SampleIndex, float64(hdr.SampleRate))

	combined.Data = data
	return combined, nil
}

// gather concatenates one stream of every part along the sample axis.
func gather[T any](parts []*Data, total int, stream func(*Data) [][]T) [][]T {
	first := stream(parts[0])
	if first == nil {
		return nil
	}
	out := make([][]T, len(first))
	for ch := range out {
		row := make([]T, 0, total)
		for _, p := range parts {
			row = append(row, stream(p)[ch]...)
		}
		out[ch] = row
	}
	return out
}

// channelKey is the part of a channel that must match across a session.
type channelKey struct {
	NativeName  string
	CustomName  string
	NativeOrder int16
	Gain        float64
	Offset      float64
	Units       string
}

type groupKey struct {
	name     string
	channels []channelKey
}

// sessionKey identifies the recording configuration of a file.
type sessionKey struct {
	sampleRate float32
	dcSaved    bool
	stimStep   float32
	groups     []groupKey
}

func newSessionKey(h *Header) sessionKey {
	k := sessionKey{
		sampleRate: h.SampleRate,
		dcSaved:    h.DCAmplifierDataSaved,
		stimStep:   h.Stim.StepSize,
	}
	for _, g := range []struct {
		name     string
		channels []ChannelInfo
	}{
		{"amplifier_channels", h.AmplifierChannels},
		{"board_adc_channels", h.BoardADCChannels},
		{"board_dac_channels", h.BoardDACChannels},
		{"board_dig_in_channels", h.BoardDigInChannels},
		{"board_dig_out_channels", h.BoardDigOutChannels},
	} {
		gk := groupKey{name: g.name, channels: make([]channelKey, len(g.channels))}
		for i, ch := range g.channels {
			gk.channels[i] = channelKey{
				NativeName:  ch.NativeName,
				CustomName:  ch.CustomName,
				NativeOrder: ch.NativeOrder,
				Gain:        ch.Gain,
				Offset:      ch.Offset,
				Units:       ch.Units,
			}
		}
		k.groups = append(k.groups, gk)
	}
	return k
}

// diff returns the name of the first field that differs between k and o,
// or the empty string if the keys match.
func (k sessionKey) diff(o sessionKey) string {
	switch {
	case k.sampleRate != o.sampleRate:
		return "sample_rate"
	case k.dcSaved != o.dcSaved:
		return "dc_amplifier_data_saved"
	case k.stimStep != o.stimStep:
		return "stim_step_size"
	}

	for gi, g := range k.groups {
		og := o.groups[gi]
		if len(g.channels) != len(og.channels) {
			return g.name + ".count"
		}
		for i, ch := range g.channels {
			och := og.channels[i]
			var field string
			switch {
			case ch.CustomName != och.CustomName:
				field = "custom_name"
			case ch.NativeName != och.NativeName:
				field = "native_name"
			case ch.NativeOrder != och.NativeOrder:
				field = "native_order"
			case ch.Gain != och.Gain:
				field = "gain"
			case ch.Offset != och.Offset:
				field = "offset"
			case ch.Units != och.Units:
				field = "units"
			default:
				continue
			}
			return fmt.Sprintf("%s[%d].%s", g.name, i, field)
		}
	}
	return ""
}
