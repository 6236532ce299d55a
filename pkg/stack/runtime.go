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

package stack

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"

	"github.com/NVIDIA/crashcore/pkg/defaults"
)

const (
	// maxCallers caps the depth recorded by Callers.
	maxCallers = 4096

	goroutinePrefix = "goroutine "
)

// selfPackage is the import path of this package.
var selfPackage = func() string {
	pc, _, _, _ := runtime.Caller(0)
	if fn := runtime.FuncForPC(pc); fn != nil {
		return Package(fn.Name())
	}
	return ""
}()

// All returns a dump of every goroutine in the process.
func All() []byte {
	return dump(true)
}

// Current returns a dump of the calling goroutine.
func Current() []byte {
	return dump(false)
}

// dump grows the buffer until runtime.Stack fits, or the cap is reached, in
// which case the dump is truncated.
func dump(all bool) []byte {
	buf := make([]byte, defaults.StackInitialBuffer)
	for {
		n := runtime.Stack(buf, all)
		if n < len(buf) || len(buf) >= defaults.StackMaxBuffer {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}

// CurrentID returns the runtime id of the calling goroutine, or 0 if it
// cannot be determined.
func CurrentID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	line := buf[:n]
	line = bytes.TrimPrefix(line, []byte(goroutinePrefix))
	if i := bytes.IndexByte(line, ' '); i > 0 {
		line = line[:i]
	}
	id, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Self returns the handle of the calling goroutine.
func Self() Thread {
	gs, err := Parse(bytes.NewReader(Current()))
	if err != nil || len(gs) == 0 {
		return Thread{ID: CurrentID()}
	}
	return gs[0].Thread()
}

// CurrentFrames returns the stack of the calling goroutine, innermost first,
// starting at the caller of CurrentFrames.
func CurrentFrames() ([]RawFrame, error) {
	gs, err := Parse(bytes.NewReader(Current()))
	if err != nil {
		return nil, err
	}
	if len(gs) == 0 {
		return nil, fmt.Errorf("runtime reported no stack for the current goroutine")
	}
	return trimSelf(gs[0].Frames), nil
}

// Enumerate returns the stacks of all live goroutines keyed by handle.
// The result is a one-shot copy; it is not updated as goroutines come and go.
func Enumerate() (map[Thread][]RawFrame, error) {
	gs, err := Parse(bytes.NewReader(All()))
	stacks := make(map[Thread][]RawFrame, len(gs))
	for _, g := range gs {
		stacks[g.Thread()] = g.Frames
	}
	if err != nil {
		return stacks, err
	}
	return stacks, nil
}

// Callers returns the calling goroutine's stack from program counters.
// skip=0 starts at the caller of Callers.
func Callers(skip int) []RawFrame {
	pcs := make([]uintptr, 64)
	for {
		n := runtime.Callers(skip+2, pcs)
		if n < len(pcs) || len(pcs) >= maxCallers {
			pcs = pcs[:n]
			break
		}
		pcs = make([]uintptr, 2*len(pcs))
	}
	if len(pcs) == 0 {
		return nil
	}

	out := make([]RawFrame, 0, len(pcs))
	frames := runtime.CallersFrames(pcs)
	for {
		f, more := frames.Next()
		out = append(out, RawFrame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return out
}

// PanicFrames returns the stack of an in-flight panic when called from a
// deferred function that recovered it. Frames of the deferred handler and of
// the panic machinery are dropped so the first frame is the panic site. When
// no panic is in flight the full stack of the caller is returned.
func PanicFrames() []RawFrame {
	frames := Callers(1)
	for i, f := range frames {
		if f.Function != "runtime.gopanic" {
			continue
		}
		// runtime errors add panicmem/sigpanic style frames after gopanic
		j := i + 1
		for j < len(frames)-1 && frames[j].Package() == "runtime" {
			j++
		}
		return frames[j:]
	}
	return frames
}

// ownFrames are the functions between runtime.Stack and the caller of
// CurrentFrames.
var ownFrames = map[string]bool{
	selfPackage + ".dump":          true,
	selfPackage + ".Current":       true,
	selfPackage + ".CurrentFrames": true,
}

func trimSelf(frames []RawFrame) []RawFrame {
	i := 0
	for i < len(frames) && ownFrames[frames[i].Function] {
		i++
	}
	if i == len(frames) {
		return frames
	}
	return frames[i:]
}
