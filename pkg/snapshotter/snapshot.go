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

package snapshotter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/NVIDIA/crashcore/pkg/header"
	"github.com/NVIDIA/crashcore/pkg/serializer"
)

// GoroutineSnapshotter captures every goroutine of the current process and
// serializes the result as a thread snapshot report.
type GoroutineSnapshotter struct {
	// Version is stamped into the report metadata.
	Version string

	// Capturer builds the snapshot. If nil, a Capturer with no project
	// packages is used.
	Capturer *Capturer

	// Serializer is the serializer to use for output. If nil, a default stdout JSON serializer is used.
	Serializer serializer.Serializer
}

// Measure captures a live snapshot and serializes it.
func (g *GoroutineSnapshotter) Measure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("snapshot canceled: %w", err)
	}
	if g.Capturer == nil {
		g.Capturer = NewCapturer()
	}

	slog.Debug("starting goroutine snapshot")

	report := NewReport(header.KindThreadSnapshot, g.Version, g.Capturer.CaptureLive(nil))

	if g.Serializer == nil {
		g.Serializer = serializer.NewStdoutWriter(serializer.FormatJSON)
	}

	if err := g.Serializer.Serialize(ctx, report); err != nil {
		slog.Error("failed to serialize", slog.String("error", err.Error()))
		return fmt.Errorf("failed to serialize: %w", err)
	}

	return nil
}
