// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package rhs

import "math"

// notchBandwidth is the -3 dB bandwidth of the notch filter in Hz.
const notchBandwidth = 10

// notchRequired reports whether amplifier data must be notch filtered after
// loading. Software version 3.0 and later saves data with the notch already applied.
func notchRequired(hdr *Header) bool {
	return hdr.NotchFilter != NotchOff && hdr.Version.Major < 3
}

// notchFilter applies a second-order IIR notch centred on fNotch to in,
// returning a new slice. The first two samples are passed through unchanged.
func notchFilter(in []float64, fSample, fNotch, bandwidth float64) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	if len(in) < 3 || fSample <= 0 {
		return out
	}

	tStep := 1 / fSample
	fc := fNotch * tStep

	d := math.Exp(-2 * math.Pi * (bandwidth / 2) * tStep)
	b := (1 + d*d) * math.Cos(2*math.Pi*fc)
	a1 := -b
	a2 := d * d
	a := (1 + d*d) / 2
	b1 := -2 * math.Cos(2*math.Pi*fc)

	for i := 2; i < len(in); i++ {
		out[i] = a*in[i] + a*b1*in[i-1] + a*in[i-2] - a2*out[i-2] - a1*out[i-1]
	}

	return out
}
