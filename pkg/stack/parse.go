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
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/DataDog/gostackparse"
)

const mainGoroutineID = 1

// Goroutine is one goroutine block of a textual dump.
type Goroutine struct {
	ID int64 `json:"id" yaml:"id"`

	// State is the scheduler state, e.g. "running" or "chan receive".
	State string `json:"state" yaml:"state"`

	// Wait is how long the goroutine has been parked, at minute precision.
	Wait time.Duration `json:"wait,omitempty" yaml:"wait,omitempty"`

	LockedToThread bool `json:"lockedToThread,omitempty" yaml:"lockedToThread,omitempty"`

	// CreatedBy is the function that started the goroutine, if reported.
	CreatedBy string `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`

	// Frames is innermost-first.
	Frames []RawFrame `json:"frames" yaml:"frames"`

	// FramesElided is set when the runtime cut the stack short.
	FramesElided bool `json:"framesElided,omitempty" yaml:"framesElided,omitempty"`
}

// Thread returns the goroutine's handle. The main goroutine is named "main";
// others are named after the function that created them.
func (g Goroutine) Thread() Thread {
	name := g.CreatedBy
	if name == "" && g.ID == mainGoroutineID {
		name = "main"
	}
	return Thread{ID: g.ID, Name: name}
}

// Parse reads a goroutine dump and returns its goroutines in dump order.
//
// Text before the first goroutine header (e.g. "panic: ..." lines) is
// ignored. A goroutine block that does not fit the dump grammar is skipped;
// an error is returned only when blocks were found and none could be parsed.
func Parse(r io.Reader) ([]Goroutine, error) {
	parsed, errs := gostackparse.Parse(r)
	for _, err := range errs {
		slog.Debug("skipped malformed goroutine", "error", err)
	}

	out := make([]Goroutine, 0, len(parsed))
	for _, g := range parsed {
		out = append(out, fromParsed(g))
	}

	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func fromParsed(g *gostackparse.Goroutine) Goroutine {
	out := Goroutine{
		ID:             int64(g.ID),
		State:          g.State,
		Wait:           g.Wait,
		LockedToThread: g.LockedToThread,
		FramesElided:   g.FramesElided,
		Frames:         make([]RawFrame, 0, len(g.Stack)),
	}
	if g.CreatedBy != nil {
		out.CreatedBy = g.CreatedBy.Func
	}
	for _, f := range g.Stack {
		out.Frames = append(out.Frames, RawFrame{Function: f.Func, File: f.File, Line: f.Line})
	}
	return out
}
