// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package rhs decodes Intan Technologies RHS neural recording files.
//
// An RHS file holds an instrument configuration header followed by data
// blocks of interleaved samples from every enabled stream. Load decodes a
// single file, or a directory holding one session that the acquisition
// software split across several files, and converts samples to physical
// units: amplifier data in microvolts, DC amplifier data in millivolts,
// stimulation current in microamps, board ADC and DAC data in volts and
// digital I/O as booleans.
//
//	f, err := rhs.Load("session/")
//	if err != nil {
//		return err
//	}
//	fmt.Println(f.Header.SampleRate, f.Duration())
package rhs
