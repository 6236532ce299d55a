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

// Package eventloop provides a single goroutine that drains a bounded queue
// of tasks in submission order.
//
// An event loop is the "primary thread" of a crashcore process: the
// goroutine whose responsiveness the detector package watches. Tasks are
// posted with Post and run one at a time on the loop goroutine. A task that
// panics is recovered and counted; the loop keeps draining.
//
// Usage:
//
//	loop := eventloop.New("main", defaults.EventLoopCapacity)
//	if err := loop.Start(ctx); err != nil {
//		return err
//	}
//	defer loop.Stop()
//
//	loop.Post(func() { render() })
//
// Post never blocks. It returns false when the queue is full or the loop has
// stopped.
//
// Metrics:
//   - crashcore_eventloop_tasks_total{loop,result}
//   - crashcore_eventloop_rejected_total{loop}
//   - crashcore_eventloop_queue_depth{loop}
package eventloop
