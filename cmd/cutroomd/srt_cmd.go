// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/cutroom/cutroom/internal/captions"
	"github.com/cutroom/cutroom/internal/subtitle"
)

func newSRTCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "srt",
		Short: "Offline SubRip tools",
	}
	cmd.AddCommand(newSRTShiftCmd())
	return cmd
}

func newSRTShiftCmd() *cobra.Command {
	var (
		offset float64
		output string
		minCue time.Duration
	)
	cmd := &cobra.Command{
		Use:   "shift <file.srt|->",
		Short: "Shift every cue of an SRT document by a signed number of seconds",
		Example: "  cutroomd srt shift movie.srt --offset -1.25 -o movie.fixed.srt\n" +
			"  cat movie.srt | cutroomd srt shift - --offset 2",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("offset") {
				return errors.New("--offset is required")
			}
			if err := subtitle.ValidateOffset(offset); err != nil {
				return fmt.Errorf("--offset %v: %w", offset, err)
			}
			if minCue < time.Millisecond {
				return fmt.Errorf("--min-cue must be at least 1ms, got %s", minCue)
			}
			doc, err := readDocument(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			shifted, cues := subtitle.AdjustDocument(string(doc), offset, subtitle.Policy{MinCueDuration: minCue})
			if cues == 0 {
				// Same as the API: an input without valid cues yields an empty document.
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: no subtitle cues found")
			}

			if output == "" || output == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), shifted)
				return err
			}
			if err := renameio.WriteFile(output, []byte(shifted), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Shifted %d cues by %+gs -> %s\n", cues, offset, output)
			return nil
		},
	}
	cmd.Flags().Float64Var(&offset, "offset", 0, "seconds to add to every timestamp (negative moves cues earlier)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().DurationVar(&minCue, "min-cue", subtitle.DefaultMinCueDuration, "duration forced onto cues that collapse after clamping")
	return cmd
}

func readDocument(stdin io.Reader, path string) ([]byte, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	doc, err := io.ReadAll(io.LimitReader(r, captions.MaxDocumentBytes+1))
	if err != nil {
		return nil, err
	}
	if len(doc) > captions.MaxDocumentBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", captions.MaxDocumentBytes)
	}
	return doc, nil
}
