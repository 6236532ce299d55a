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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/crashcore/pkg/errors"
	"github.com/NVIDIA/crashcore/pkg/header"
	"github.com/NVIDIA/crashcore/pkg/serializer"
	"github.com/NVIDIA/crashcore/pkg/snapshotter"
	"github.com/NVIDIA/crashcore/pkg/stack"
)

const panicDump = `panic: runtime error: index out of range [3] with length 2

goroutine 7 [running]:
github.com/acme/app/internal/store.(*Store).Get(...)
	/src/app/internal/store/store.go:42 +0x1d
github.com/acme/app/internal/api.handle(0xc000010000)
	/src/app/internal/api/api.go:88 +0x65
created by github.com/acme/app/internal/api.Serve in goroutine 1
	/src/app/internal/api/api.go:30 +0x8c

goroutine 1 [chan receive]:
main.main()
	/src/app/main.go:12 +0x2a

goroutine 19 [select]:
net/http.(*persistConn).writeLoop(0xc0001b4000)
	/usr/local/go/src/net/http/transport.go:2421 +0xe5
created by net/http.(*Transport).dialConn in goroutine 7
	/usr/local/go/src/net/http/transport.go:1777 +0x16f1
`

func writeDump(t *testing.T, dump string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dump.txt")
	require.NoError(t, os.WriteFile(path, []byte(dump), 0o600))
	return path
}

func decodeReport(t *testing.T, data []byte) snapshotter.Report {
	t.Helper()
	var report snapshotter.Report
	require.NoError(t, json.Unmarshal(data, &report))
	return report
}

func TestParseCmd(t *testing.T) {
	dump := writeDump(t, panicDump)

	t.Run("panic dump", func(t *testing.T) {
		out, err := runCLI(t, "parse", "--project-package", "github.com/acme/app", dump)
		require.NoError(t, err)

		report := decodeReport(t, []byte(out))
		assert.Equal(t, header.KindCrashReport, report.Kind)
		assert.Equal(t, dump, report.Metadata["source"])

		threads := report.Threads.Threads()
		require.Len(t, threads, 3)
		assert.Equal(t, []int64{1, 7, 19}, []int64{threads[0].ID, threads[1].ID, threads[2].ID})

		current, ok := report.Threads.Current()
		require.True(t, ok)
		assert.Equal(t, int64(7), current.ID)
		require.Len(t, current.Frames, 2)
		assert.True(t, current.Frames[0].InProject)
		assert.Equal(t, 42, current.Frames[0].Line)

		assert.False(t, threads[2].Frames[0].InProject)
	})

	t.Run("explicit current", func(t *testing.T) {
		out, err := runCLI(t, "parse", "--current", "19", dump)
		require.NoError(t, err)

		current, ok := decodeReport(t, []byte(out)).Threads.Current()
		require.True(t, ok)
		assert.Equal(t, int64(19), current.ID)
	})

	t.Run("unknown current", func(t *testing.T) {
		_, err := runCLI(t, "parse", "--current", "99", dump)
		assert.Error(t, err)
	})

	t.Run("plain dump is a thread snapshot", func(t *testing.T) {
		plain := writeDump(t, panicDump[strings.Index(panicDump, "goroutine 7"):])
		out, err := runCLI(t, "parse", plain)
		require.NoError(t, err)
		assert.Equal(t, header.KindThreadSnapshot, decodeReport(t, []byte(out)).Kind)
	})

	t.Run("no goroutines", func(t *testing.T) {
		_, err := runCLI(t, "parse", writeDump(t, "nothing to see\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := runCLI(t, "parse", filepath.Join(t.TempDir(), "nope.txt"))
		assert.Error(t, err)
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := runCLI(t, "parse", "--format", "xml", dump)
		assert.Error(t, err)
	})

	t.Run("output dir", func(t *testing.T) {
		dir := t.TempDir()
		_, err := runCLI(t, "parse", "--output-dir", dir, dump)
		require.NoError(t, err)

		matches, err := filepath.Glob(filepath.Join(dir, "crash_*.json"))
		require.NoError(t, err)
		require.Len(t, matches, 1)

		report, err := serializer.FromFile[snapshotter.Report](matches[0])
		require.NoError(t, err)
		assert.Equal(t, 3, report.Threads.Len())
	})

	t.Run("compressed output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.yaml.zst")
		_, err := runCLI(t, "parse", "--format", "yaml", "--output", path, dump)
		require.NoError(t, err)

		report, err := serializer.FromFile[snapshotter.Report](path)
		require.NoError(t, err)
		assert.Equal(t, header.KindCrashReport, report.Kind)
	})
}

func TestSelectCurrent(t *testing.T) {
	goroutines := []stack.Goroutine{{ID: 5}, {ID: 1}}

	th, err := selectCurrent(goroutines, false, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), th.ID)

	th, err = selectCurrent(goroutines, true, 1)
	require.NoError(t, err)
	assert.Equal(t, stack.Thread{ID: 1, Name: "main"}, th)

	_, err = selectCurrent(goroutines, true, 3)
	assert.Error(t, err)
}

func TestIsCrash(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "panic", in: "panic: boom\n", want: true},
		{name: "leading blank lines", in: "\n\n  panic: boom", want: true},
		{name: "fatal error", in: "fatal error: all goroutines are asleep", want: true},
		{name: "plain dump", in: "goroutine 1 [running]:", want: false},
		{name: "empty", in: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isCrash([]byte(tt.in)))
		})
	}
}

func TestReadDumpLimit(t *testing.T) {
	dump := writeDump(t, panicDump)

	t.Run("within limit", func(t *testing.T) {
		data, err := readDump(context.Background(), dump, len(panicDump))
		require.NoError(t, err)
		assert.Equal(t, panicDump, string(data))
	})

	t.Run("over limit", func(t *testing.T) {
		_, err := readDump(context.Background(), dump, len(panicDump)-1)
		require.Error(t, err)

		var se *errors.StructuredError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, errors.ErrCodeInvalidRequest, se.Code)
	})
}
