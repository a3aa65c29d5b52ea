// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command rhsinfo prints a summary of an Intan RHS recording or session directory.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/OpenPSG/rhs"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

var (
	configPath   string
	workers      int
	quiet        bool
	channelLimit int
)

var rootCmd = &cobra.Command{
	Use:   "rhsinfo [file.rhs | directory]",
	Short: "Summarise Intan RHS recordings",
	Long: `rhsinfo loads an Intan RHS file, or a directory holding one session split
across several RHS files, and prints the recording configuration, channel
list and a per-channel summary of the amplifier data.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadRecording(cmd, args[0])
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), f, channelLimit)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON options file")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "number of files decoded concurrently (default from options)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress decoder progress messages")
	rootCmd.Flags().IntVarP(&channelLimit, "limit", "l", 5, "number of channels to list")

	rootCmd.AddCommand(plotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadRecording(cmd *cobra.Command, path string) (*rhs.File, error) {
	opts := rhs.DefaultOptions()
	if configPath != "" {
		var err error
		if opts, err = rhs.LoadOptions(configPath); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("workers") {
		opts.Workers = workers
	}
	if quiet {
		rhs.SetLogger(nil)
	}

	return rhs.LoadWithOptions(path, opts)
}

func printSummary(w io.Writer, f *rhs.File, limit int) {
	hdr := f.Header

	fmt.Fprintf(w, "File version: %s\n", hdr.Version)
	fmt.Fprintf(w, "Sample rate: %g Hz\n", hdr.SampleRate)
	fmt.Fprintf(w, "Notch filter: %s\n", hdr.NotchFilter)
	for i, note := range hdr.Notes {
		if note != "" {
			fmt.Fprintf(w, "Note %d: %s\n", i+1, note)
		}
	}

	fmt.Fprintf(w, "Number of amplifier channels: %d\n", len(hdr.AmplifierChannels))
	fmt.Fprintf(w, "Number of ADC channels: %d\n", len(hdr.BoardADCChannels))
	fmt.Fprintf(w, "Number of DAC channels: %d\n", len(hdr.BoardDACChannels))
	fmt.Fprintf(w, "Number of digital input channels: %d\n", len(hdr.BoardDigInChannels))
	fmt.Fprintf(w, "Number of digital output channels: %d\n", len(hdr.BoardDigOutChannels))

	if len(f.SourceFiles) > 0 {
		fmt.Fprintf(w, "Source files: %d\n", len(f.SourceFiles))
		for i, src := range f.SourceFiles {
			fmt.Fprintf(w, "  %d: %s\n", i+1, src)
		}
	}

	if !f.DataPresent() {
		fmt.Fprintln(w, "No data present in file (header only).")
		return
	}

	data := f.Data
	n := data.NumSamples()
	fmt.Fprintf(w, "Number of time samples: %d\n", n)
	fmt.Fprintf(w, "Time range: %.3f to %.3f seconds\n", data.Timestamps[0], data.Timestamps[n-1])
	fmt.Fprintf(w, "Duration: %.3f seconds\n", f.Duration())

	if len(data.Amplifier) == 0 {
		return
	}
	fmt.Fprintf(w, "Amplifier data: %d channels x %d samples\n", len(data.Amplifier), n)
	for i, ch := range hdr.AmplifierChannels {
		if i >= limit {
			fmt.Fprintf(w, "  ... and %d more\n", len(hdr.AmplifierChannels)-limit)
			break
		}
		mean, std := stat.MeanStdDev(data.Amplifier[i], nil)
		fmt.Fprintf(w, "  %d: %s (%s) mean %.2f uV, std %.2f uV\n", i, ch.CustomName, ch.NativeName, mean, std)
	}
}
