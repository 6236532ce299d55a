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
	"log/slog"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/crashcore/pkg/serializer"
)

const envProjectPackages = "CRASHCORE_PROJECT_PACKAGES"

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "output file path (default: stdout); a .zst suffix compresses the file",
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Value:   string(serializer.FormatJSON),
		Usage:   fmt.Sprintf("output format (%s)", strings.Join(serializer.SupportedFormats(), ", ")),
	}
}

func projectPackageFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "project-package",
		Aliases: []string{"p"},
		Usage:   "package prefix marking in-project frames (can be repeated)",
		Sources: cli.EnvVars(envProjectPackages),
	}
}

// parseOutputFormat validates the --format flag.
func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	format := serializer.Format(cmd.String("format"))
	if format.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q (supported: %s)",
			format, strings.Join(serializer.SupportedFormats(), ", "))
	}
	return format, nil
}

// writeOutput serializes doc to path, or to the command's writer when path
// is empty.
func writeOutput(ctx context.Context, cmd *cli.Command, format serializer.Format, path string, doc any) error {
	ser := outputSerializer(cmd, format, path)
	defer closeSerializer(ser)

	if err := ser.Serialize(ctx, doc); err != nil {
		return fmt.Errorf("failed to serialize output: %w", err)
	}
	return nil
}

func outputSerializer(cmd *cli.Command, format serializer.Format, path string) serializer.Serializer {
	if strings.TrimSpace(path) == "" {
		return serializer.NewWriter(format, cmd.Root().Writer)
	}
	return serializer.NewFileWriterOrStdout(format, path)
}

func closeSerializer(ser serializer.Serializer) {
	if closer, ok := ser.(serializer.Closer); ok {
		if err := closer.Close(); err != nil {
			slog.Warn("failed to close serializer", "error", err)
		}
	}
}

func extension(format serializer.Format) string {
	if format == serializer.FormatTable {
		return "txt"
	}
	return string(format)
}
