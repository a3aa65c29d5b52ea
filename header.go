// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package rhs

// Supported range of major format versions.
const (
	minMajorVersion = 1
	maxMajorVersion = 3
)

// fieldReader reads named header fields from a cursor, keeping the first error.
type fieldReader struct {
	c   *cursor
	err error
}

func (r *fieldReader) fail(field string, err error) {
	if r.err != nil {
		return
	}
	if fe, ok := err.(*FormatError); ok && fe.Field == "" {
		fe.Field = field
	}
	r.err = err
}

func (r *fieldReader) int16(field string) int16 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.int16()
	if err != nil {
		r.fail(field, err)
	}
	return v
}

func (r *fieldReader) bool16(field string) bool {
	if r.err != nil {
		return false
	}
	v, err := r.c.bool16()
	if err != nil {
		r.fail(field, err)
	}
	return v
}

func (r *fieldReader) uint32(field string) uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.uint32()
	if err != nil {
		r.fail(field, err)
	}
	return v
}

func (r *fieldReader) float32(field string) float32 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.float32()
	if err != nil {
		r.fail(field, err)
	}
	return v
}

func (r *fieldReader) qstring(field string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	v, null, err := r.c.qstring()
	if err != nil {
		r.fail(field, err)
	}
	return v, null
}

func (r *fieldReader) bandwidth(prefix string) Bandwidth {
	return Bandwidth{
		DSPCutoff:   r.float32(prefix + "_dsp_cutoff_frequency"),
		Lower:       r.float32(prefix + "_lower_bandwidth"),
		LowerSettle: r.float32(prefix + "_lower_settle_bandwidth"),
		Upper:       r.float32(prefix + "_upper_bandwidth"),
	}
}

// decodeHeader reads the header from c, leaving c positioned at the first data block.
func decodeHeader(c *cursor) (*Header, error) {
	r := &fieldReader{c: c}
	hdr := &Header{}

	if magic := r.uint32("magic"); r.err == nil && magic != MagicNumber {
		return nil, newError(KindBadMagic, 0, "magic", "got %#08x, want %#08x", magic, MagicNumber)
	}

	hdr.Version.Major = r.int16("version_major")
	hdr.Version.Minor = r.int16("version_minor")
	if r.err != nil {
		return nil, r.err
	}
	if hdr.Version.Major < minMajorVersion || hdr.Version.Major > maxMajorVersion {
		return nil, newError(KindUnsupportedVersion, 4, "version", "version %s", hdr.Version)
	}

	hdr.SampleRate = r.float32("sample_rate")
	hdr.DSPEnabled = r.bool16("dsp_enabled")
	hdr.Actual = r.bandwidth("actual")
	hdr.Desired = r.bandwidth("desired")

	notchOffset := c.offset()
	notch := NotchFilter(r.int16("notch_filter_mode"))
	if r.err != nil {
		return nil, r.err
	}
	switch notch {
	case NotchOff, Notch50Hz, Notch60Hz:
		hdr.NotchFilter = notch
	default:
		return nil, newError(KindInvalidNotchSetting, notchOffset, "notch_filter_mode", "code %d", int16(notch))
	}

	hdr.DesiredImpedanceTestFrequency = r.float32("desired_impedance_test_frequency")
	hdr.ActualImpedanceTestFrequency = r.float32("actual_impedance_test_frequency")

	hdr.Stim.AmpSettleMode = r.int16("amp_settle_mode")
	hdr.Stim.ChargeRecoveryMode = r.int16("charge_recovery_mode")
	hdr.Stim.StepSize = r.float32("stim_step_size")
	hdr.Stim.ChargeRecoveryCurrentLimit = r.float32("charge_recovery_current_limit")
	hdr.Stim.ChargeRecoveryTargetVoltage = r.float32("charge_recovery_target_voltage")

	for i := range hdr.Notes {
		hdr.Notes[i], hdr.NullNotes[i] = r.qstring("notes")
	}

	hdr.DCAmplifierDataSaved = r.bool16("dc_amplifier_data_saved")
	hdr.EvalBoardMode = r.int16("eval_board_mode")
	hdr.ReferenceChannel, hdr.NullReferenceChannel = r.qstring("reference_channel")

	countOffset := c.offset()
	numGroups := r.int16("signal_group_count")
	if r.err != nil {
		return nil, r.err
	}
	if numGroups < 0 {
		return nil, newError(KindCorruptHeader, countOffset, "signal_group_count", "negative count %d", numGroups)
	}

	for g := range int(numGroups) {
		group, err := decodeSignalGroup(r, g+1)
		if err != nil {
			return nil, err
		}
		hdr.SignalGroups = append(hdr.SignalGroups, group)
	}

	if err := hdr.index(); err != nil {
		return nil, err
	}

	return hdr, nil
}

func decodeSignalGroup(r *fieldReader, portNumber int) (SignalGroup, error) {
	var group SignalGroup
	group.Name, group.NullName = r.qstring("signal_group_name")
	group.Prefix, group.NullPrefix = r.qstring("signal_group_prefix")
	group.Enabled = r.bool16("signal_group_enabled")
	countOffset := r.c.offset()
	numChannels := r.int16("signal_group_num_channels")
	group.NumAmplifierChannels = r.int16("signal_group_num_amp_channels")
	if r.err != nil {
		return group, r.err
	}
	if numChannels < 0 {
		return group, newError(KindCorruptHeader, countOffset, "signal_group_num_channels", "negative count %d", numChannels)
	}
	group.NumChannels = numChannels

	// Channel records are only written for enabled groups.
	if !group.Enabled || numChannels == 0 {
		return group, nil
	}

	group.Channels = make([]ChannelInfo, 0, numChannels)
	for range int(numChannels) {
		ch := ChannelInfo{
			PortName:   group.Name,
			PortPrefix: group.Prefix,
			PortNumber: portNumber,
		}
		ch.NativeName, ch.NullNativeName = r.qstring("native_channel_name")
		ch.CustomName, ch.NullCustomName = r.qstring("custom_channel_name")
		ch.NativeOrder = r.int16("native_order")
		ch.CustomOrder = r.int16("custom_order")
		ch.SignalType = SignalType(r.int16("signal_type"))
		ch.Enabled = r.bool16("channel_enabled")
		ch.ChipChannel = r.int16("chip_channel")
		ch.CommandStream = r.int16("command_stream")
		ch.BoardStream = r.int16("board_stream")
		ch.Trigger = SpikeTrigger{
			VoltageTriggerMode:    r.int16("voltage_trigger_mode"),
			VoltageThreshold:      r.int16("voltage_threshold"),
			DigitalTriggerChannel: r.int16("digital_trigger_channel"),
			DigitalEdgePolarity:   r.int16("digital_edge_polarity"),
		}
		ch.ImpedanceMagnitude = r.float32("electrode_impedance_magnitude")
		ch.ImpedancePhase = r.float32("electrode_impedance_phase")
		if r.err != nil {
			return group, r.err
		}
		ch.Gain, ch.Offset, ch.Units = channelScale(ch.SignalType)
		group.Channels = append(group.Channels, ch)
	}

	return group, nil
}

// index builds the per-type channel lists and the stream set from the signal groups.
func (h *Header) index() error {
	h.AmplifierChannels = nil
	h.SpikeTriggers = nil
	h.BoardADCChannels = nil
	h.BoardDACChannels = nil
	h.BoardDigInChannels = nil
	h.BoardDigOutChannels = nil

	for _, group := range h.SignalGroups {
		for _, ch := range group.Channels {
			if !ch.Enabled {
				continue
			}
			switch ch.SignalType {
			case SignalAmplifier:
				h.AmplifierChannels = append(h.AmplifierChannels, ch)
				h.SpikeTriggers = append(h.SpikeTriggers, ch.Trigger)
			case SignalBoardADC:
				h.BoardADCChannels = append(h.BoardADCChannels, ch)
			case SignalBoardDAC:
				h.BoardDACChannels = append(h.BoardDACChannels, ch)
			case SignalDigitalIn:
				h.BoardDigInChannels = append(h.BoardDigInChannels, ch)
			case SignalDigitalOut:
				h.BoardDigOutChannels = append(h.BoardDigOutChannels, ch)
			default:
				return newError(KindCorruptHeader, -1, "signal_type", "channel %s has signal type %s", ch.NativeName, ch.SignalType)
			}
		}
	}

	var streams StreamSet
	if len(h.AmplifierChannels) > 0 {
		streams = streams.with(StreamAmplifier).with(StreamStim)
		if h.DCAmplifierDataSaved {
			streams = streams.with(StreamDCAmplifier)
		}
	}
	if len(h.BoardADCChannels) > 0 {
		streams = streams.with(StreamBoardADC)
	}
	if len(h.BoardDACChannels) > 0 {
		streams = streams.with(StreamBoardDAC)
	}
	if len(h.BoardDigInChannels) > 0 {
		streams = streams.with(StreamDigitalIn)
	}
	if len(h.BoardDigOutChannels) > 0 {
		streams = streams.with(StreamDigitalOut)
	}
	h.Streams = streams

	return nil
}
