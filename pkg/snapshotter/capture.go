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
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/NVIDIA/crashcore/pkg/stack"
)

// StackSource lazily reads goroutine stacks. Reading a single goroutine may
// fail without affecting the others.
type StackSource interface {
	Threads() []stack.Thread
	Stack(th stack.Thread) ([]stack.RawFrame, error)
}

// mapSource adapts an already-read mapping to StackSource.
type mapSource map[stack.Thread][]stack.RawFrame

func (m mapSource) Threads() []stack.Thread {
	out := make([]stack.Thread, 0, len(m))
	for th := range m {
		out = append(out, th)
	}
	return out
}

func (m mapSource) Stack(th stack.Thread) ([]stack.RawFrame, error) {
	return m[th], nil
}

// Capturer builds Snapshots. The zero value is usable: no frame is
// in-project and no goroutine is labelled as an event loop.
type Capturer struct {
	// ProjectPackages are package path prefixes identifying application code.
	ProjectPackages []string

	// EventLoopIDs are goroutine ids labelled ThreadTypeEventLoop.
	EventLoopIDs []int64

	// CurrentStack reads the calling goroutine's stack when the supplied
	// mapping omits it. Defaults to stack.CurrentFrames.
	CurrentStack func() ([]stack.RawFrame, error)
}

// NewCapturer returns a Capturer classifying frames against projectPackages.
func NewCapturer(projectPackages ...string) *Capturer {
	return &Capturer{ProjectPackages: projectPackages}
}

// Capture builds a snapshot from stacks. current identifies the goroutine on
// whose behalf the capture is taken; a non-nil exception replaces whatever
// stack is recorded for it.
func Capture(stacks map[stack.Thread][]stack.RawFrame, current stack.Thread, exception []stack.RawFrame, projectPackages []string) *Snapshot {
	c := Capturer{ProjectPackages: projectPackages}
	return c.Capture(stacks, current, exception)
}

// Capture builds a snapshot from an already-read mapping. The mapping is
// copied; later changes to it do not affect the snapshot.
func (c *Capturer) Capture(stacks map[stack.Thread][]stack.RawFrame, current stack.Thread, exception []stack.RawFrame) *Snapshot {
	return c.CaptureSource(mapSource(stacks), current, exception)
}

// CaptureLive captures every goroutine of the running process with the
// calling goroutine as current.
func (c *Capturer) CaptureLive(exception []stack.RawFrame) *Snapshot {
	current := stack.Self()
	stacks, err := stack.Enumerate()
	if err != nil {
		slog.Warn("goroutine enumeration incomplete", "error", err, "goroutines", len(stacks))
	}
	return c.Capture(stacks, current, exception)
}

// CaptureGoroutine captures the live process with goroutine id as current.
// If that goroutine has exited it is recorded with no frames.
func (c *Capturer) CaptureGoroutine(id int64) *Snapshot {
	stacks, err := stack.Enumerate()
	if err != nil {
		slog.Warn("goroutine enumeration incomplete", "error", err, "goroutines", len(stacks))
	}
	for th := range stacks {
		if th.ID == id {
			return c.Capture(stacks, th, nil)
		}
	}
	return c.Capture(stacks, stack.Thread{ID: id}, []stack.RawFrame{})
}

// CapturePanic captures the live process from inside a deferred recover,
// using the panic site as the calling goroutine's stack.
func (c *Capturer) CapturePanic() *Snapshot {
	return c.CaptureLive(stack.PanicFrames())
}

// entry is one goroutine before translation.
type entry struct {
	thread   stack.Thread
	frames   []stack.RawFrame
	readable bool
}

// CaptureSource builds a snapshot reading each goroutine from src. It never
// panics: a goroutine whose stack cannot be read is recorded with no frames,
// and a failure of the capture as a whole yields a snapshot holding only the
// current goroutine.
func (c *Capturer) CaptureSource(src StackSource, current stack.Thread, exception []stack.RawFrame) (snap *Snapshot) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			captureFailures.WithLabelValues(failureScopeSnapshot).Inc()
			slog.Error("thread capture failed, keeping current goroutine only",
				"panic", fmt.Sprint(r), "current", current.ID)
			snap = c.fallback(current, exception)
		}
		captureTotal.Inc()
		captureDuration.Observe(time.Since(start).Seconds())
		capturedThreads.Set(float64(snap.Len()))
	}()

	entries := make(map[int64]entry)
	for _, th := range src.Threads() {
		if prev, ok := entries[th.ID]; ok && prev.thread.Name <= th.Name {
			continue
		}
		frames, ok := c.read(src, th)
		entries[th.ID] = entry{thread: th, frames: frames, readable: ok}
	}

	e, ok := entries[current.ID]
	switch {
	case !ok && exception == nil:
		frames, readable := c.readCurrent()
		e = entry{thread: current, frames: frames, readable: readable}
	case !ok:
		e = entry{thread: current}
	}
	if exception != nil {
		e.frames, e.readable = exception, true
	}
	if e.thread.Name == "" {
		e.thread.Name = current.Name
	}
	entries[current.ID] = e

	ids := make([]int64, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	records := make([]ThreadRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, c.record(entries[id], id == current.ID))
	}

	slog.Debug("captured goroutine snapshot",
		"goroutines", len(records),
		"current", current.ID,
		"exception", exception != nil)
	return newSnapshot(records)
}

// read returns the stack of th, containing errors and panics from src.
func (c *Capturer) read(src StackSource, th stack.Thread) (frames []stack.RawFrame, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			captureFailures.WithLabelValues(failureScopeThread).Inc()
			slog.Warn("failed to read goroutine stack", "id", th.ID, "panic", fmt.Sprint(r))
			frames, ok = nil, false
		}
	}()
	frames, err := src.Stack(th)
	if err != nil {
		captureFailures.WithLabelValues(failureScopeThread).Inc()
		slog.Warn("failed to read goroutine stack", "id", th.ID, "error", err)
		return nil, false
	}
	return frames, true
}

// readCurrent synthesizes the calling goroutine's stack for mappings that
// omit it.
func (c *Capturer) readCurrent() (frames []stack.RawFrame, ok bool) {
	read := c.CurrentStack
	if read == nil {
		read = stack.CurrentFrames
	}
	defer func() {
		if r := recover(); r != nil {
			captureFailures.WithLabelValues(failureScopeThread).Inc()
			slog.Warn("failed to read current goroutine stack", "panic", fmt.Sprint(r))
			frames, ok = nil, false
		}
	}()
	frames, err := read()
	if err != nil {
		captureFailures.WithLabelValues(failureScopeThread).Inc()
		slog.Warn("failed to read current goroutine stack", "error", err)
		return nil, false
	}
	return frames, true
}

// record translates one goroutine. A translation failure leaves the record
// with an empty frame list.
func (c *Capturer) record(e entry, current bool) (rec ThreadRecord) {
	rec = ThreadRecord{
		ID:        e.thread.ID,
		Name:      e.thread.Name,
		Type:      c.classify(e),
		IsCurrent: current,
		Frames:    []Frame{},
	}
	defer func() {
		if r := recover(); r != nil {
			captureFailures.WithLabelValues(failureScopeThread).Inc()
			slog.Warn("failed to translate goroutine stack", "id", e.thread.ID, "panic", fmt.Sprint(r))
			rec.Frames = []Frame{}
			rec.Type = ThreadTypeUnknown
		}
	}()

	frames := make([]Frame, 0, len(e.frames))
	for _, f := range e.frames {
		frames = append(frames, c.frame(f))
	}
	rec.Frames = frames
	return rec
}

func (c *Capturer) frame(f stack.RawFrame) Frame {
	line := f.Line
	if line < 0 {
		line = 0
	}
	return Frame{
		Method:    f.Function,
		File:      f.File,
		Line:      line,
		InProject: c.inProject(f.Function),
	}
}

func (c *Capturer) classify(e entry) ThreadType {
	switch {
	case slices.Contains(c.EventLoopIDs, e.thread.ID):
		return ThreadTypeEventLoop
	case !e.readable:
		return ThreadTypeUnknown
	default:
		return ThreadTypeWorker
	}
}

// inProject reports whether the package declaring function starts with any
// configured prefix. Empty prefixes never match.
func (c *Capturer) inProject(function string) bool {
	if len(c.ProjectPackages) == 0 {
		return false
	}
	pkg := stack.Package(function)
	for _, prefix := range c.ProjectPackages {
		if prefix != "" && strings.HasPrefix(pkg, prefix) {
			return true
		}
	}
	return false
}

// fallback builds the last-resort snapshot holding only the current goroutine.
func (c *Capturer) fallback(current stack.Thread, exception []stack.RawFrame) *Snapshot {
	e := entry{thread: current, frames: exception, readable: exception != nil}
	return newSnapshot([]ThreadRecord{c.record(e, true)})
}
