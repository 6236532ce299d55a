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

package serializer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

// StdinPath selects standard input in NewFileReader.
const StdinPath = "-"

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// IsCompressed reports whether path names a zstd-compressed file.
func IsCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(path)), CompressedExt)
}

// FormatFromPath determines the serialization format from the file
// extension, ignoring a trailing ".zst":
//   - .json → FormatJSON
//   - .yaml, .yml → FormatYAML
//   - .table, .txt → FormatTable
//
// Unknown extensions default to JSON.
func FormatFromPath(filePath string) Format {
	lowerPath := strings.ToLower(strings.TrimSpace(filePath))
	lowerPath = strings.TrimSuffix(lowerPath, CompressedExt)
	switch {
	case strings.HasSuffix(lowerPath, ".json"):
		return FormatJSON
	case strings.HasSuffix(lowerPath, ".yaml"), strings.HasSuffix(lowerPath, ".yml"):
		return FormatYAML
	case strings.HasSuffix(lowerPath, ".table"), strings.HasSuffix(lowerPath, ".txt"):
		return FormatTable
	default:
		slog.Debug("unknown file extension, defaulting to JSON", "filePath", filePath)
		return FormatJSON
	}
}

// Reader decodes JSON or YAML documents from a source. zstd-compressed input
// is detected by its magic number and decompressed transparently.
type Reader struct {
	format  Format
	input   io.Reader
	closers []io.Closer
}

// NewReader creates a Reader over input. If input implements io.Closer it is
// closed by Reader.Close.
func NewReader(format Format, input io.Reader) (*Reader, error) {
	if err := checkReadable(format); err != nil {
		return nil, err
	}
	return newReader(format, input)
}

func newReader(format Format, input io.Reader) (*Reader, error) {
	if input == nil {
		return nil, errors.New("input source is nil")
	}

	r := &Reader{format: format}
	if closer, ok := input.(io.Closer); ok {
		r.closers = append(r.closers, closer)
	}

	decoded, dec, err := decompress(input)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	if dec != nil {
		// decoder goes first so it releases before the source closes
		r.closers = append([]io.Closer{dec}, r.closers...)
	}
	r.input = decoded
	return r, nil
}

// NewFileReader creates a Reader over a local file, an http(s) URL, or
// standard input when filePath is "-".
func NewFileReader(format Format, filePath string) (*Reader, error) {
	return NewFileReaderWithContext(context.Background(), format, filePath)
}

// NewFileReaderWithContext is NewFileReader with a context bounding URL
// downloads.
func NewFileReaderWithContext(ctx context.Context, format Format, filePath string) (*Reader, error) {
	if err := checkReadable(format); err != nil {
		return nil, err
	}
	src, err := openSource(ctx, filePath)
	if err != nil {
		return nil, err
	}
	return newReader(format, src)
}

// OpenRaw opens filePath like NewFileReaderWithContext but skips document
// decoding. The returned Reader yields the decompressed bytes.
func OpenRaw(ctx context.Context, filePath string) (*Reader, error) {
	src, err := openSource(ctx, filePath)
	if err != nil {
		return nil, err
	}
	return newReader("", src)
}

func openSource(ctx context.Context, filePath string) (io.Reader, error) {
	switch {
	case filePath == StdinPath:
		return io.NopCloser(os.Stdin), nil
	case IsURL(filePath):
		data, err := NewHttpReader().ReadWithContext(ctx, filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to download remote file: %w", err)
		}
		return bytes.NewReader(data), nil
	default:
		file, err := os.Open(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		return file, nil
	}
}

// Read reads the decompressed source.
func (r *Reader) Read(p []byte) (int, error) {
	if r == nil || r.input == nil {
		return 0, io.EOF
	}
	return r.input.Read(p)
}

// NewFileReaderAuto creates a Reader detecting the format from filePath.
func NewFileReaderAuto(filePath string) (*Reader, error) {
	return NewFileReader(FormatFromPath(filePath), filePath)
}

// IsURL reports whether path is an http or https URL.
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

func checkReadable(format Format) error {
	if format.IsUnknown() {
		return fmt.Errorf("unknown format: %s", format)
	}
	if format == FormatTable {
		return errors.New("table format does not support deserialization")
	}
	return nil
}

// decompress wraps input in a zstd decoder when it starts with the zstd
// magic number. The returned closer is nil for plain input.
func decompress(input io.Reader) (io.Reader, io.Closer, error) {
	br := bufio.NewReader(input)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("failed to read input: %w", err)
	}
	if !bytes.Equal(head, zstdMagic) {
		return br, nil, nil
	}
	dec, err := zstd.NewReader(br)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return dec, dec.IOReadCloser(), nil
}

// Deserialize decodes the next document into v, which must be a pointer.
func (r *Reader) Deserialize(v any) error {
	if r == nil {
		return errors.New("reader is nil")
	}
	if r.input == nil {
		return errors.New("input source is nil")
	}

	switch r.format {
	case FormatJSON:
		if err := json.NewDecoder(r.input).Decode(v); err != nil {
			return fmt.Errorf("failed to decode JSON: %w", err)
		}
		return nil
	case FormatYAML:
		if err := yaml.NewDecoder(r.input).Decode(v); err != nil {
			return fmt.Errorf("failed to decode YAML: %w", err)
		}
		return nil
	case FormatTable:
		return errors.New("table format is not supported for deserialization")
	default:
		return fmt.Errorf("unsupported format for deserialization: %s", r.format)
	}
}

// Close releases the decoder and underlying source. Safe to call on a nil
// Reader and more than once.
func (r *Reader) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// FromFile loads a T from a local file, http(s) URL or "-", detecting the
// format from the path extension.
func FromFile[T any](path string) (*T, error) {
	return FromFileWithContext[T](context.Background(), path)
}

// FromFileWithContext is FromFile with a context bounding URL downloads.
func FromFileWithContext[T any](ctx context.Context, path string) (*T, error) {
	fileFormat := FormatFromPath(path)
	slog.Debug("determined file format",
		slog.String("path", path),
		slog.String("format", string(fileFormat)),
	)

	ser, err := NewFileReaderWithContext(ctx, fileFormat, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create serializer for %q: %w", path, err)
	}
	defer func() {
		if closeErr := ser.Close(); closeErr != nil {
			slog.Warn("failed to close serializer", "error", closeErr)
		}
	}()

	var v T
	if err := ser.Deserialize(&v); err != nil {
		return nil, fmt.Errorf("failed to deserialize object from %q: %w", path, err)
	}

	slog.Debug("successfully loaded object from file", slog.String("path", path))
	return &v, nil
}
