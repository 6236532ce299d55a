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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/crashcore/pkg/header"
	"github.com/NVIDIA/crashcore/pkg/serializer"
	"github.com/NVIDIA/crashcore/pkg/snapshotter"
)

func TestWatchReportsInjectedStall(t *testing.T) {
	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := watch(ctx, watchConfig{
		threshold: 100 * time.Millisecond,
		interval:  10 * time.Millisecond,
		blockFor:  400 * time.Millisecond,
		out:       serializer.NewWriter(serializer.FormatJSON, &out),
	})
	require.NoError(t, err)

	dec := json.NewDecoder(&out)
	var report snapshotter.Report
	require.NoError(t, dec.Decode(&report))
	assert.Equal(t, header.KindBlockedReport, report.Kind)
	assert.Equal(t, watchLoopName, report.Metadata["detector"])

	current, ok := report.Threads.Current()
	require.True(t, ok)
	assert.Equal(t, snapshotter.ThreadTypeEventLoop, current.Type)
}

func TestWatchQuietLoop(t *testing.T) {
	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := watch(ctx, watchConfig{
		threshold: 100 * time.Millisecond,
		interval:  10 * time.Millisecond,
		out:       serializer.NewWriter(serializer.FormatJSON, &out),
	})
	require.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestWatchInvalidThreshold(t *testing.T) {
	err := watch(context.Background(), watchConfig{
		threshold: -time.Second,
		out:       serializer.NewWriter(serializer.FormatJSON, &bytes.Buffer{}),
	})
	assert.Error(t, err)
}

func TestWatchCmd(t *testing.T) {
	out, err := runCLI(t, "watch",
		"--threshold", "50ms",
		"--interval", "10ms",
		"--block-for", "200ms",
		"--duration", "500ms")
	require.NoError(t, err)
	assert.Contains(t, out, string(header.KindBlockedReport))
}

func TestDrainReportsWritesBuffered(t *testing.T) {
	reports := make(chan *snapshotter.Report, 4)
	for range 2 {
		reports <- snapshotter.NewReport(header.KindBlockedReport, "test", nil)
	}

	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, drainReports(context.WithoutCancel(ctx), serializer.NewWriter(serializer.FormatJSON, &out), reports))

	dec := json.NewDecoder(&out)
	var count int
	for dec.More() {
		var report snapshotter.Report
		require.NoError(t, dec.Decode(&report))
		assert.Equal(t, header.KindBlockedReport, report.Kind)
		count++
	}
	assert.Equal(t, 2, count)
	assert.Empty(t, reports)
}
