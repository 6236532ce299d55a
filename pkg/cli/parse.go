// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/crashcore/pkg/defaults"
	"github.com/NVIDIA/crashcore/pkg/errors"
	"github.com/NVIDIA/crashcore/pkg/header"
	"github.com/NVIDIA/crashcore/pkg/serializer"
	"github.com/NVIDIA/crashcore/pkg/snapshotter"
	"github.com/NVIDIA/crashcore/pkg/stack"
)

var crashPrefixes = [][]byte{[]byte("panic:"), []byte("fatal error:")}

func parseCmd() *cli.Command {
	return &cli.Command{
		Name:                  "parse",
		EnableShellCompletion: true,
		Usage:                 "Capture a goroutine dump into a thread snapshot",
		ArgsUsage:             "<file|url|->",
		Description: `Parse a textual goroutine dump and capture it as a report.

The dump may come from a panic, runtime.Stack(buf, true), debug.Stack or a
SIGQUIT. Text before the first "goroutine N [...]:" header is ignored.

# Examples

Parse a crash log from a file:
  crashcore parse --project-package github.com/acme/app crash.log

Read from standard input and write YAML:
  go run ./cmd/app 2>&1 | crashcore parse --format yaml -

Write crash_<unix-millis>.json into a directory:
  crashcore parse --output-dir ./crashes crash.log`,
		Flags: []cli.Flag{
			projectPackageFlag(),
			&cli.Int64Flag{
				Name:  "current",
				Usage: "id of the reporting goroutine (default: first goroutine in the dump)",
			},
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "write crash_<unix-millis>.<format> into this directory instead of --output",
			},
			outputFlag(),
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, defaults.CLIParseTimeout)
			defer cancel()

			input := cmd.Args().First()
			if input == "" {
				input = serializer.StdinPath
			}

			data, err := readDump(ctx, input, defaults.StackMaxInputBytes)
			if err != nil {
				return err
			}

			goroutines, err := stack.Parse(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("failed to parse %q: %w", input, err)
			}
			if len(goroutines) == 0 {
				return errors.NewWithContext(errors.ErrCodeInvalidRequest,
					"no goroutines found in dump", map[string]any{"input": input})
			}

			current, err := selectCurrent(goroutines, cmd.IsSet("current"), cmd.Int64("current"))
			if err != nil {
				return err
			}

			snap := snapshotter.Capture(stackMap(goroutines), current, nil, cmd.StringSlice("project-package"))

			kind := header.KindThreadSnapshot
			if isCrash(data) {
				kind = header.KindCrashReport
			}
			report := snapshotter.NewReport(kind, version, snap)
			report.Metadata["source"] = input

			slog.Debug("parsed dump",
				"input", input,
				"kind", kind,
				"goroutines", snap.Len(),
				"current", current.ID)

			output := cmd.String("output")
			if dir := cmd.String("output-dir"); dir != "" {
				output = filepath.Join(dir, fmt.Sprintf("crash_%d.%s", time.Now().UnixMilli(), extension(outFormat)))
				slog.Info("writing report", "path", output)
			}

			return writeOutput(ctx, cmd, outFormat, output, report)
		},
	}
}

// readDump reads at most limit bytes of input; a larger dump is rejected
// rather than parsed partially.
func readDump(ctx context.Context, input string, limit int) ([]byte, error) {
	r, err := serializer.OpenRaw(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", input, err)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			slog.Warn("failed to close input", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", input, err)
	}
	if len(data) > limit {
		return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"goroutine dump exceeds size limit", map[string]any{
				"input": input,
				"limit": limit,
			})
	}
	return data, nil
}

// selectCurrent picks the reporting goroutine: the requested id, or the
// first goroutine of the dump.
func selectCurrent(goroutines []stack.Goroutine, requested bool, id int64) (stack.Thread, error) {
	if !requested {
		return goroutines[0].Thread(), nil
	}
	for _, g := range goroutines {
		if g.ID == id {
			return g.Thread(), nil
		}
	}
	return stack.Thread{}, errors.NewWithContext(errors.ErrCodeNotFound,
		"goroutine not found in dump", map[string]any{"current": id})
}

func stackMap(goroutines []stack.Goroutine) map[stack.Thread][]stack.RawFrame {
	out := make(map[stack.Thread][]stack.RawFrame, len(goroutines))
	for _, g := range goroutines {
		out[g.Thread()] = g.Frames
	}
	return out
}

func isCrash(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	for _, p := range crashPrefixes {
		if bytes.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}
