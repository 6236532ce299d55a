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

// Package stack reads raw goroutine stacks from the Go runtime.
//
// It is the host-runtime side of snapshot capture: it enumerates live
// goroutines, identifies the calling goroutine, captures the stack of a
// recovered panic and parses textual goroutine dumps (runtime.Stack output,
// unrecovered panic output, SIGQUIT dumps) into RawFrame slices.
//
// Nothing here classifies or orders frames; that is the snapshotter's job.
//
// # Usage
//
// Enumerate all goroutines of the current process:
//
//	stacks, err := stack.Enumerate()
//	self := stack.Self()
//
// Capture the stack of a panic from inside a deferred recover:
//
//	defer func() {
//	    if r := recover(); r != nil {
//	        frames := stack.PanicFrames()
//	        // frames[0] is the function that panicked
//	    }
//	}()
//
// Parse a dump read from disk:
//
//	goroutines, err := stack.Parse(f)
package stack
