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
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/crashcore/pkg/serializer"
	"github.com/NVIDIA/crashcore/pkg/snapshotter"
)

func viewCmd() *cli.Command {
	return &cli.Command{
		Name:                  "view",
		EnableShellCompletion: true,
		Usage:                 "Re-render a saved report",
		ArgsUsage:             "<file|url|->",
		Description: `Read a report written by "crashcore parse", "crashcore watch" or the
crashcored daemon and render it again.

JSON and YAML are detected from the file extension; a trailing .zst is
decompressed. Standard input is read as JSON.

# Examples

Show a compressed report as a table:
  crashcore view --format table crash.json.zst

Keep only frames inside the project:
  crashcore view --in-project-only http://localhost:8080/v1/blocked`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "in-project-only",
				Usage: "drop frames outside the project packages recorded in the report",
			},
			outputFlag(),
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}

			input := cmd.Args().First()
			if input == "" {
				return fmt.Errorf("report path is required")
			}

			report, err := serializer.FromFileWithContext[snapshotter.Report](ctx, input)
			if err != nil {
				return fmt.Errorf("failed to load report from %q: %w", input, err)
			}

			if cmd.Bool("in-project-only") {
				report.Threads = report.Threads.Filter(func(f snapshotter.Frame) bool {
					return f.InProject
				})
			}

			return writeOutput(ctx, cmd, outFormat, cmd.String("output"), report)
		},
	}
}
