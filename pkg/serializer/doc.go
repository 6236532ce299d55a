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

// Package serializer encodes and decodes crashcore documents.
//
// # Formats
//
// JSON is the canonical on-disk and wire format. YAML is accepted wherever
// JSON is and is convenient for reading reports by eye. Table output is
// write-only: values implementing TableSource render their own rows, other
// values are flattened into FIELD/VALUE pairs.
//
// # Compression
//
// Paths ending in ".zst" are transparently zstd-compressed on write and
// decompressed on read. The format is taken from the extension preceding
// ".zst", so "crash.json.zst" is compressed JSON.
//
// # Usage
//
// Writing to a file, falling back to stdout:
//
//	w := serializer.NewFileWriterOrStdout(serializer.FormatJSON, "crash.json.zst")
//	defer func() {
//		if c, ok := w.(serializer.Closer); ok {
//			_ = c.Close()
//		}
//	}()
//	if err := w.Serialize(ctx, report); err != nil {
//		return err
//	}
//
// Reading a local file or http(s) URL:
//
//	report, err := serializer.FromFile[snapshotter.Report]("crash.json.zst")
//
// Responding from an HTTP handler:
//
//	serializer.RespondJSON(w, http.StatusOK, report)
package serializer
