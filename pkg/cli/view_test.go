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
)

func TestViewCmd(t *testing.T) {
	saved := filepath.Join(t.TempDir(), "report.json.zst")
	_, err := runCLI(t, "parse", "--project-package", "github.com/acme/app", "--output", saved, writeDump(t, panicDump))
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		out, err := runCLI(t, "view", saved)
		require.NoError(t, err)

		report := decodeReport(t, []byte(out))
		assert.Equal(t, 3, report.Threads.Len())
	})

	t.Run("in project only", func(t *testing.T) {
		out, err := runCLI(t, "view", "--in-project-only", saved)
		require.NoError(t, err)

		for _, th := range decodeReport(t, []byte(out)).Threads.Threads() {
			for _, f := range th.Frames {
				assert.True(t, f.InProject, f.Method)
			}
			if th.ID == 19 {
				assert.Empty(t, th.Frames)
			}
		}
	})

	t.Run("table", func(t *testing.T) {
		out, err := runCLI(t, "view", "--format", "table", saved)
		require.NoError(t, err)
		assert.Contains(t, out, "github.com/acme/app/internal/store.(*Store).Get")
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := runCLI(t, "view")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := runCLI(t, "view", filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}
