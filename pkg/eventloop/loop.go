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

package eventloop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NVIDIA/crashcore/pkg/defaults"
	"github.com/NVIDIA/crashcore/pkg/errors"
	"github.com/NVIDIA/crashcore/pkg/stack"
)

const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

// Loop runs posted tasks sequentially on one goroutine.
type Loop struct {
	name  string
	tasks chan func()

	state    atomic.Int32
	gid      atomic.Int64
	running  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates an idle loop accepting up to capacity queued tasks. A
// non-positive capacity uses defaults.EventLoopCapacity.
func New(name string, capacity int) *Loop {
	if capacity <= 0 {
		capacity = defaults.EventLoopCapacity
	}
	return &Loop{
		name:    name,
		tasks:   make(chan func(), capacity),
		running: make(chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Name returns the loop name.
func (l *Loop) Name() string {
	return l.name
}

// GoroutineID returns the id of the goroutine draining the loop, or 0 before
// Run starts.
func (l *Loop) GoroutineID() int64 {
	return l.gid.Load()
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	return len(l.tasks)
}

// Post enqueues task without blocking. It returns false when the task is
// nil, the queue is full or the loop has stopped.
func (l *Loop) Post(task func()) bool {
	if task == nil || l.state.Load() == stateStopped {
		return false
	}
	select {
	case l.tasks <- task:
		queueDepth.WithLabelValues(l.name).Set(float64(len(l.tasks)))
		return true
	default:
		rejectedTotal.WithLabelValues(l.name).Inc()
		return false
	}
}

// Run drains the queue on the calling goroutine until ctx is canceled or
// Stop is called. A loop runs at most once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(stateIdle, stateRunning) {
		return l.startError()
	}
	l.gid.Store(stack.CurrentID())
	close(l.running)
	defer close(l.done)
	defer l.state.Store(stateStopped)

	slog.Debug("event loop started", "loop", l.name, "goroutine", l.gid.Load())

	for {
		select {
		case <-ctx.Done():
			slog.Debug("event loop context done", "loop", l.name)
			return nil
		case <-l.stop:
			slog.Debug("event loop stopped", "loop", l.name)
			return nil
		case task := <-l.tasks:
			queueDepth.WithLabelValues(l.name).Set(float64(len(l.tasks)))
			l.run(task)
		}
	}
}

// Start runs the loop on a new goroutine. It returns once the loop goroutine
// is running, so GoroutineID is valid afterwards.
func (l *Loop) Start(ctx context.Context) error {
	if l.state.Load() != stateIdle {
		return l.startError()
	}
	failed := make(chan error, 1)
	go func() {
		if err := l.Run(ctx); err != nil {
			failed <- err
		}
	}()
	select {
	case err := <-failed:
		return err
	case <-l.running:
		return nil
	}
}

// Stop ends the loop. Queued tasks that have not started are dropped. Stop
// waits up to defaults.EventLoopStopTimeout for the running task to finish
// unless called from a task, and is safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		prev := l.state.Swap(stateStopped)
		close(l.stop)
		if prev == stateIdle {
			close(l.done)
		}
	})
	if stack.CurrentID() == l.gid.Load() {
		return
	}
	select {
	case <-l.done:
	case <-time.After(defaults.EventLoopStopTimeout):
		slog.Warn("event loop did not stop in time", "loop", l.name,
			"timeout", defaults.EventLoopStopTimeout)
	}
}

func (l *Loop) startError() error {
	ctx := map[string]any{"loop": l.name}
	if l.state.Load() == stateStopped {
		return errors.NewWithContext(errors.ErrCodeUnavailable, "event loop stopped", ctx)
	}
	return errors.NewWithContext(errors.ErrCodeConflict, "event loop already started", ctx)
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			tasksTotal.WithLabelValues(l.name, "panic").Inc()
			slog.Error("event loop task panicked", "loop", l.name, "panic", fmt.Sprint(r))
		}
	}()
	task()
	tasksTotal.WithLabelValues(l.name, "ok").Inc()
}
