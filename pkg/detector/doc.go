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

// Package detector watches a primary event loop and reports when it stops
// draining its queue.
//
// # How it works
//
// A monitor goroutine posts a heartbeat task to the target and waits up to
// the threshold for the task to run. When the heartbeat does not run in time
// the detector moves to Blocked and calls the delegate once. While Blocked no
// new heartbeat is posted; the outstanding one is awaited, and its arrival
// moves the detector back to Healthy so a later stall is reported again.
//
// A stall is therefore reported at most threshold + interval after it
// begins, where interval defaults to half the threshold.
//
// # Usage
//
//	d, err := detector.New(5*time.Second, loop, func(ev detector.Event) {
//		report := capturer.CaptureLive(nil)
//		...
//	}, detector.WithName("ui"))
//	if err != nil {
//		return err
//	}
//	if err := d.Start(ctx); err != nil {
//		return err
//	}
//	defer d.Stop()
//
// The delegate runs on the monitor goroutine; a panic inside it is recovered
// and counted. Calling Stop from the delegate is allowed.
package detector
