// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package rhs

import "fmt"

// MagicNumber identifies an RHS file.
const MagicNumber uint32 = 0xD69127AC

// SamplesPerBlock is the number of samples held by each data block.
const SamplesPerBlock = 128

// Version is the file format version written by the acquisition software.
type Version struct {
	Major int16
	Minor int16
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// NotchFilter is the line-noise notch filter setting at recording time.
type NotchFilter int16

const (
	NotchOff  NotchFilter = 0
	Notch50Hz NotchFilter = 1
	Notch60Hz NotchFilter = 2
)

// Frequency returns the notch center frequency in Hz, or 0 when off.
func (n NotchFilter) Frequency() float64 {
	switch n {
	case Notch50Hz:
		return 50
	case Notch60Hz:
		return 60
	default:
		return 0
	}
}

func (n NotchFilter) String() string {
	switch n {
	case NotchOff:
		return "off"
	case Notch50Hz:
		return "50Hz"
	case Notch60Hz:
		return "60Hz"
	default:
		return fmt.Sprintf("notch(%d)", int16(n))
	}
}

// SignalType is the kind of signal a channel carries.
type SignalType int16

const (
	SignalAmplifier     SignalType = 0
	SignalAuxInput      SignalType = 1
	SignalSupplyVoltage SignalType = 2
	SignalBoardADC      SignalType = 3
	SignalBoardDAC      SignalType = 4
	SignalDigitalIn     SignalType = 5
	SignalDigitalOut    SignalType = 6
)

func (t SignalType) String() string {
	switch t {
	case SignalAmplifier:
		return "amplifier"
	case SignalAuxInput:
		return "aux input"
	case SignalSupplyVoltage:
		return "supply voltage"
	case SignalBoardADC:
		return "board ADC"
	case SignalBoardDAC:
		return "board DAC"
	case SignalDigitalIn:
		return "digital input"
	case SignalDigitalOut:
		return "digital output"
	default:
		return fmt.Sprintf("signal(%d)", int16(t))
	}
}

// Stream is one data stream that may be interleaved into each data block.
type Stream uint8

const (
	StreamAmplifier Stream = iota
	StreamDCAmplifier
	StreamStim
	StreamBoardADC
	StreamBoardDAC
	StreamDigitalIn
	StreamDigitalOut
)

// StreamSet is the set of streams present in a file.
type StreamSet uint8

// Has reports whether s is in the set.
func (ss StreamSet) Has(s Stream) bool { return ss&(1<<s) != 0 }

func (ss StreamSet) with(s Stream) StreamSet { return ss | 1<<s }

// Bandwidth holds one set of amplifier filter settings, in Hz.
type Bandwidth struct {
	DSPCutoff   float32 // DSP offset-removal high-pass cutoff
	Lower       float32 // Lower bandwidth
	LowerSettle float32 // Lower bandwidth used during amplifier settle
	Upper       float32 // Upper bandwidth
}

// StimParameters holds the stimulation settings of a recording.
type StimParameters struct {
	AmpSettleMode               int16
	ChargeRecoveryMode          int16
	StepSize                    float32 // Current step size in amps
	ChargeRecoveryCurrentLimit  float32 // In amps
	ChargeRecoveryTargetVoltage float32 // In volts
}

// SpikeTrigger is the spike scope trigger configuration of an amplifier channel.
type SpikeTrigger struct {
	VoltageTriggerMode    int16
	VoltageThreshold      int16
	DigitalTriggerChannel int16
	DigitalEdgePolarity   int16
}

// ChannelInfo describes one physical channel.
type ChannelInfo struct {
	PortName           string     // Signal group name (e.g. Port A)
	PortPrefix         string     // Signal group prefix (e.g. A)
	PortNumber         int        // One-based index of the signal group
	NativeName         string     // Channel name assigned by the hardware (e.g. A-000)
	CustomName         string     // User-assigned channel name
	NativeOrder        int16      // Hardware channel order; bit index for digital channels
	CustomOrder        int16      // User-assigned display order
	SignalType         SignalType // Signal type of the channel
	Enabled            bool       // Whether the channel was recorded
	ChipChannel        int16      // Channel number on the amplifier chip
	CommandStream      int16      // Stimulation command stream
	BoardStream        int16      // USB board data stream
	Trigger            SpikeTrigger
	ImpedanceMagnitude float32 // Electrode impedance magnitude in ohms
	ImpedancePhase     float32 // Electrode impedance phase in degrees

	// Set when the name was stored as a Qt null string rather than an empty one.
	NullNativeName bool
	NullCustomName bool

	// Scaling from raw codes to physical units, derived from the signal type.
	Gain   float64
	Offset float64
	Units  string
}

// SignalGroup is a port of related channels as listed in the header.
type SignalGroup struct {
	Name                 string
	Prefix               string
	Enabled              bool
	NumChannels          int16 // Declared channel count; records are only stored for enabled groups
	NumAmplifierChannels int16
	Channels             []ChannelInfo // All channel records, including disabled channels

	NullName   bool // Name was stored as a Qt null string
	NullPrefix bool // Prefix was stored as a Qt null string
}

// Header represents the RHS file header.
type Header struct {
	Version                       Version
	SampleRate                    float32 // Amplifier sample rate in Hz
	DSPEnabled                    bool
	Actual                        Bandwidth // Bandwidths realised by the hardware
	Desired                       Bandwidth // Bandwidths requested by the user
	NotchFilter                   NotchFilter
	DesiredImpedanceTestFrequency float32
	ActualImpedanceTestFrequency  float32
	Stim                          StimParameters // Raw stimulation settings, see StimParameters
	Notes                         [3]string
	DCAmplifierDataSaved          bool
	EvalBoardMode                 int16
	ReferenceChannel              string
	SignalGroups                  []SignalGroup

	// Set for strings stored as Qt null strings rather than empty ones.
	NullNotes            [3]bool
	NullReferenceChannel bool

	// Derived when the header is decoded.
	Streams             StreamSet
	AmplifierChannels   []ChannelInfo
	SpikeTriggers       []SpikeTrigger
	BoardADCChannels    []ChannelInfo
	BoardDACChannels    []ChannelInfo
	BoardDigInChannels  []ChannelInfo
	BoardDigOutChannels []ChannelInfo
}

// StimParameters returns the stimulation settings when the file carries stimulation data.
func (h *Header) StimParameters() (StimParameters, bool) {
	if !h.Streams.Has(StreamStim) {
		return StimParameters{}, false
	}
	return h.Stim, true
}

// Channels returns the enabled channels of the given signal type.
func (h *Header) Channels(t SignalType) []ChannelInfo {
	switch t {
	case SignalAmplifier:
		return h.AmplifierChannels
	case SignalBoardADC:
		return h.BoardADCChannels
	case SignalBoardDAC:
		return h.BoardDACChannels
	case SignalDigitalIn:
		return h.BoardDigInChannels
	case SignalDigitalOut:
		return h.BoardDigOutChannels
	default:
		return nil
	}
}

// RawData holds undecoded samples demultiplexed from the data blocks.
// Two-dimensional slices are indexed [channel][sample].
type RawData struct {
	Timestamps      []int32
	Amplifier       [][]uint16
	DCAmplifier     [][]uint16
	Stim            [][]int32 // Signed current in multiples of the stim step size
	ComplianceLimit [][]bool
	ChargeRecovery  [][]bool
	AmpSettle       [][]bool
	BoardADC        [][]uint16
	BoardDAC        [][]uint16
	BoardDigIn      []uint16 // One packed word per sample
	BoardDigOut     []uint16 // One packed word per sample
}

// NumSamples returns the number of samples per channel.
func (r *RawData) NumSamples() int {
	return len(r.Timestamps)
}

// Data holds samples converted to physical units.
// Two-dimensional slices are indexed [channel][sample]; absent streams are nil.
type Data struct {
	Timestamps      []float64   // Seconds
	SampleIndex     []int32     // Timestamps as sample indices
	Amplifier       [][]float64 // Microvolts
	DCAmplifier     [][]float64 // Millivolts
	Stim            [][]float64 // Microamps
	ComplianceLimit [][]bool
	ChargeRecovery  [][]bool
	AmpSettle       [][]bool
	BoardADC        [][]float64 // Volts
	BoardDAC        [][]float64 // Volts
	BoardDigIn      [][]bool
	BoardDigOut     [][]bool
}

// NumSamples returns the number of samples per channel.
func (d *Data) NumSamples() int {
	return len(d.Timestamps)
}

// File is a decoded recording: a single RHS file or a combined session.
type File struct {
	Header      *Header
	Data        *Data    // nil if the file holds a header only
	SourceFiles []string // Files merged into this recording, in order; nil for a single file
}

// DataPresent reports whether the recording holds any samples.
func (f *File) DataPresent() bool {
	return f.Data != nil
}

// NumSamples returns the number of samples per channel.
func (f *File) NumSamples() int {
	if f.Data == nil {
		return 0
	}
	return f.Data.NumSamples()
}

// Duration returns the recorded duration in seconds.
func (f *File) Duration() float64 {
	if f.Header == nil || f.Header.SampleRate <= 0 {
		return 0
	}
	return float64(f.NumSamples()) / float64(f.Header.SampleRate)
}
