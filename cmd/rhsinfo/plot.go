// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"fmt"

	"github.com/OpenPSG/rhs"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	plotStream  string
	plotChannel int
	plotOutput  string
	plotStart   float64
	plotLength  float64
)

var plotCmd = &cobra.Command{
	Use:   "plot [file.rhs | directory]",
	Short: "Plot one channel of a recording to an image file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadRecording(cmd, args[0])
		if err != nil {
			return err
		}
		if err := plotChannelData(f, plotStream, plotChannel, plotStart, plotLength, plotOutput); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", plotOutput)
		return nil
	},
}

func init() {
	plotCmd.Flags().StringVarP(&plotStream, "stream", "s", "amplifier", "stream to plot (amplifier, dc, stim, adc, dac)")
	plotCmd.Flags().IntVarP(&plotChannel, "channel", "n", 0, "channel index within the stream")
	plotCmd.Flags().StringVarP(&plotOutput, "output", "o", "channel.png", "output image (.png, .svg, .pdf)")
	plotCmd.Flags().Float64Var(&plotStart, "start", 0, "start time in seconds from the first sample")
	plotCmd.Flags().Float64Var(&plotLength, "length", 1, "length in seconds, 0 for all")
}

// streamRows returns the samples and units of a named stream.
func streamRows(data *rhs.Data, stream string) ([][]float64, string, error) {
	switch stream {
	case "amplifier":
		return data.Amplifier, "uV", nil
	case "dc":
		return data.DCAmplifier, "mV", nil
	case "stim":
		return data.Stim, "uA", nil
	case "adc":
		return data.BoardADC, "V", nil
	case "dac":
		return data.BoardDAC, "V", nil
	default:
		return nil, "", fmt.Errorf("unknown stream %q", stream)
	}
}

func plotChannelData(f *rhs.File, stream string, channel int, start, length float64, output string) error {
	if !f.DataPresent() {
		return fmt.Errorf("recording holds no data")
	}

	rows, units, err := streamRows(f.Data, stream)
	if err != nil {
		return err
	}
	if channel < 0 || channel >= len(rows) {
		return fmt.Errorf("channel %d out of range, %s stream has %d channels", channel, stream, len(rows))
	}

	ts := f.Data.Timestamps
	t0 := ts[0] + start
	var pts plotter.XYs
	for i, t := range ts {
		if t < t0 || (length > 0 && t >= t0+length) {
			continue
		}
		pts = append(pts, plotter.XY{X: t, Y: rows[channel][i]})
	}
	if len(pts) == 0 {
		return fmt.Errorf("no samples in the requested time range")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s channel %d", stream, channel)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = fmt.Sprintf("Amplitude (%s)", units)

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("error creating plot line: %w", err)
	}
	p.Add(line)

	if err := p.Save(10*vg.Inch, 4*vg.Inch, output); err != nil {
		return fmt.Errorf("error saving plot: %w", err)
	}
	return nil
}
