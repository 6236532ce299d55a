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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/crashcore/pkg/header"
	"github.com/NVIDIA/crashcore/pkg/serializer"
	"github.com/NVIDIA/crashcore/pkg/snapshotter"
)

func TestSnapshotCmd(t *testing.T) {
	t.Run("stdout", func(t *testing.T) {
		out, err := runCLI(t, "snapshot", "--project-package", "github.com/NVIDIA/crashcore")
		require.NoError(t, err)

		report := decodeReport(t, []byte(out))
		assert.Equal(t, header.KindThreadSnapshot, report.Kind)

		current, ok := report.Threads.Current()
		require.True(t, ok)
		assert.NotZero(t, current.InProjectFrames())
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "self.yaml")
		_, err := runCLI(t, "snapshot", "--format", "yaml", "--output", path)
		require.NoError(t, err)

		report, err := serializer.FromFile[snapshotter.Report](path)
		require.NoError(t, err)
		assert.NotZero(t, report.Threads.Len())
	})
}
