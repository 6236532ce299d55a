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

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/crashcore/pkg/snapshotter"
)

func snapshotCmd() *cli.Command {
	return &cli.Command{
		Name:                  "snapshot",
		EnableShellCompletion: true,
		Usage:                 "Capture every goroutine of this process",
		Description: `Capture the goroutines of the running crashcore process and write them as
a ThreadSnapshot report. Useful to check the report format and the effect of
--project-package without a dump at hand.

# Examples

  crashcore snapshot --format table
  crashcore snapshot -p github.com/NVIDIA/crashcore -o self.json.zst`,
		Flags: []cli.Flag{
			projectPackageFlag(),
			outputFlag(),
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}

			ser := outputSerializer(cmd, outFormat, cmd.String("output"))
			defer closeSerializer(ser)

			gs := snapshotter.GoroutineSnapshotter{
				Version:    version,
				Capturer:   snapshotter.NewCapturer(cmd.StringSlice("project-package")...),
				Serializer: ser,
			}
			return gs.Measure(ctx)
		},
	}
}
