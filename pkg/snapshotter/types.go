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
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/NVIDIA/crashcore/pkg/header"
)

// Snapshotter defines the interface for capturing and emitting goroutine
// snapshots.
type Snapshotter interface {
	Measure(ctx context.Context) error
}

// ThreadType is a domain label for the role of a goroutine.
type ThreadType string

const (
	// ThreadTypeEventLoop marks a goroutine draining a primary task queue.
	ThreadTypeEventLoop ThreadType = "event-loop"
	// ThreadTypeWorker marks any other goroutine whose stack was read.
	ThreadTypeWorker ThreadType = "worker"
	// ThreadTypeUnknown marks a goroutine whose stack could not be read.
	ThreadTypeUnknown ThreadType = "unknown"
)

// Frame is one stack entry of a captured goroutine.
type Frame struct {
	// Method is the fully qualified function name.
	Method string `json:"method" yaml:"method"`

	// File and Line locate the call; omitted when unknown.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
	Line int    `json:"lineNumber,omitempty" yaml:"lineNumber,omitempty"`

	// InProject is true when the declaring package matches a project prefix.
	InProject bool `json:"inProject" yaml:"inProject"`
}

// ThreadRecord is the captured state of one goroutine.
type ThreadRecord struct {
	ID        int64      `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Type      ThreadType `json:"type" yaml:"type"`
	IsCurrent bool       `json:"errorReportingThread" yaml:"errorReportingThread"`

	// Frames is innermost-first.
	Frames []Frame `json:"stacktrace" yaml:"stacktrace"`
}

// InProjectFrames returns the number of in-project frames.
func (r ThreadRecord) InProjectFrames() int {
	n := 0
	for _, f := range r.Frames {
		if f.InProject {
			n++
		}
	}
	return n
}

// TopFrame returns the innermost in-project frame, falling back to the
// innermost frame. ok is false for an empty stack.
func (r ThreadRecord) TopFrame() (Frame, bool) {
	if len(r.Frames) == 0 {
		return Frame{}, false
	}
	for _, f := range r.Frames {
		if f.InProject {
			return f, true
		}
	}
	return r.Frames[0], true
}

func (r ThreadRecord) clone() ThreadRecord {
	r.Frames = append([]Frame(nil), r.Frames...)
	return r
}

// Snapshot is an immutable capture of goroutine stacks ordered ascending by
// goroutine id. It serializes as a bare array of ThreadRecords.
type Snapshot struct {
	threads []ThreadRecord
}

func newSnapshot(threads []ThreadRecord) *Snapshot {
	return &Snapshot{threads: threads}
}

// Len returns the number of captured goroutines.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.threads)
}

// Threads returns a copy of the captured records in snapshot order.
func (s *Snapshot) Threads() []ThreadRecord {
	if s == nil {
		return nil
	}
	out := make([]ThreadRecord, len(s.threads))
	for i, r := range s.threads {
		out[i] = r.clone()
	}
	return out
}

// Current returns the record flagged as the current goroutine.
func (s *Snapshot) Current() (ThreadRecord, bool) {
	if s == nil {
		return ThreadRecord{}, false
	}
	for _, r := range s.threads {
		if r.IsCurrent {
			return r.clone(), true
		}
	}
	return ThreadRecord{}, false
}

// Thread returns the record with the given goroutine id.
func (s *Snapshot) Thread(id int64) (ThreadRecord, bool) {
	if s == nil {
		return ThreadRecord{}, false
	}
	for _, r := range s.threads {
		if r.ID == id {
			return r.clone(), true
		}
	}
	return ThreadRecord{}, false
}

// Filter returns a new snapshot whose records keep only frames accepted by
// keep. Records and their order are preserved.
func (s *Snapshot) Filter(keep func(Frame) bool) *Snapshot {
	threads := s.Threads()
	for i := range threads {
		frames := make([]Frame, 0, len(threads[i].Frames))
		for _, f := range threads[i].Frames {
			if keep(f) {
				frames = append(frames, f)
			}
		}
		threads[i].Frames = frames
	}
	return newSnapshot(threads)
}

// MarshalJSON encodes the snapshot as an array of records.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	if s == nil || s.threads == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.threads)
}

// UnmarshalJSON decodes an array of records.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var threads []ThreadRecord
	if err := json.Unmarshal(data, &threads); err != nil {
		return fmt.Errorf("failed to decode thread snapshot: %w", err)
	}
	s.threads = threads
	return nil
}

// MarshalYAML encodes the snapshot as a sequence of records.
func (s *Snapshot) MarshalYAML() (any, error) {
	if s == nil || s.threads == nil {
		return []ThreadRecord{}, nil
	}
	return s.threads, nil
}

// UnmarshalYAML decodes a sequence of records.
func (s *Snapshot) UnmarshalYAML(node *yaml.Node) error {
	var threads []ThreadRecord
	if err := node.Decode(&threads); err != nil {
		return fmt.Errorf("failed to decode thread snapshot: %w", err)
	}
	s.threads = threads
	return nil
}

// TableRows renders one row per goroutine for table output.
func (s *Snapshot) TableRows() ([]string, [][]string) {
	cols := []string{"ID", "NAME", "TYPE", "CURRENT", "FRAMES", "IN-PROJECT", "TOP"}
	rows := make([][]string, 0, s.Len())
	if s == nil {
		return cols, rows
	}
	for _, r := range s.threads {
		top := "-"
		if f, ok := r.TopFrame(); ok {
			top = f.Method
			if f.File != "" {
				top = fmt.Sprintf("%s (%s:%d)", f.Method, f.File, f.Line)
			}
		}
		name := r.Name
		if name == "" {
			name = "-"
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			name,
			string(r.Type),
			strconv.FormatBool(r.IsCurrent),
			strconv.Itoa(len(r.Frames)),
			strconv.Itoa(r.InProjectFrames()),
			top,
		})
	}
	return cols, rows
}

// FullAPIVersion is the API version stamped on reports.
const FullAPIVersion = header.APIVersion

// Report wraps a Snapshot with a document header for standalone output.
type Report struct {
	header.Header `json:",inline" yaml:",inline"`

	// Threads is the captured snapshot.
	Threads *Snapshot `json:"threads" yaml:"threads"`
}

// NewReport builds a Report of the given kind around snap.
func NewReport(kind header.Kind, version string, snap *Snapshot) *Report {
	r := &Report{Threads: snap}
	r.Init(kind, FullAPIVersion, version)
	return r
}

// TableRows renders the report's snapshot.
func (r *Report) TableRows() ([]string, [][]string) {
	return r.Threads.TableRows()
}
