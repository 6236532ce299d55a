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

package detector

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/crashcore/pkg/errors"
	"github.com/NVIDIA/crashcore/pkg/eventloop"
)

// recorder collects delegate events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) delegate(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) first() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[0]
}

func newLoop(t *testing.T) *eventloop.Loop {
	t.Helper()
	loop := eventloop.New(t.Name(), 16)
	require.NoError(t, loop.Start(context.Background()))
	t.Cleanup(loop.Stop)
	return loop
}

// block occupies the loop for d.
func block(t *testing.T, loop *eventloop.Loop, d time.Duration) {
	t.Helper()
	require.True(t, loop.Post(func() { time.Sleep(d) }))
}

type rejectingTarget struct {
	posts atomic.Int64
}

func (r *rejectingTarget) Post(func()) bool {
	r.posts.Add(1)
	return false
}

// blackHole accepts tasks and never runs them.
type blackHole struct{}

func (blackHole) Post(func()) bool { return true }

func TestNew_InvalidConfiguration(t *testing.T) {
	noop := func(Event) {}
	tests := []struct {
		name      string
		threshold time.Duration
		target    Target
		delegate  Delegate
	}{
		{"zero threshold", 0, blackHole{}, noop},
		{"negative threshold", -time.Second, blackHole{}, noop},
		{"nil target", time.Second, nil, noop},
		{"nil delegate", time.Second, blackHole{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.threshold, tt.target, tt.delegate)
			assert.Nil(t, d)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig), "got %v", err)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	d, err := New(time.Second, blackHole{}, func(Event) {})
	require.NoError(t, err)
	assert.Equal(t, "main", d.Name())
	assert.Equal(t, time.Second, d.Threshold())
	assert.Equal(t, 500*time.Millisecond, d.Interval())

	d, err = New(time.Nanosecond, blackHole{}, func(Event) {})
	require.NoError(t, err)
	assert.Equal(t, time.Millisecond, d.Interval())

	d, err = New(time.Second, blackHole{}, func(Event) {},
		WithName("ui"), WithInterval(50*time.Millisecond), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, "ui", d.Name())
	assert.Equal(t, 50*time.Millisecond, d.Interval())
}

func TestDetector_HealthyLoopNeverFires(t *testing.T) {
	loop := newLoop(t)
	rec := &recorder{}
	d, err := New(100*time.Millisecond, loop, rec.delegate, WithInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	time.Sleep(time.Second)

	assert.Zero(t, rec.count())
	assert.Equal(t, StateHealthy, d.State())
	stats := d.Stats()
	assert.Greater(t, stats.Heartbeats, uint64(10))
	assert.Zero(t, stats.Episodes)
	assert.Less(t, stats.LastLatency, 100*time.Millisecond)
}

func TestDetector_BlockedLoopFiresOnce(t *testing.T) {
	loop := newLoop(t)
	rec := &recorder{}
	d, err := New(50*time.Millisecond, loop, rec.delegate, WithName("ui"))
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	block(t, loop, 500*time.Millisecond)
	assert.Eventually(t, func() bool { return rec.count() == 1 }, 300*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, StateBlocked, d.State())

	// still blocked for a while: no second report
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, rec.count())

	ev := rec.first()
	assert.Equal(t, "ui", ev.Name)
	assert.Equal(t, loop.GoroutineID(), ev.GoroutineID)
	assert.Equal(t, 50*time.Millisecond, ev.Threshold)
	assert.GreaterOrEqual(t, ev.Waited(), 50*time.Millisecond)

	assert.Eventually(t, func() bool { return d.State() == StateHealthy }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestDetector_RefiresAfterRecovery(t *testing.T) {
	loop := newLoop(t)
	rec := &recorder{}
	d, err := New(50*time.Millisecond, loop, rec.delegate, WithInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	block(t, loop, 200*time.Millisecond)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return d.State() == StateHealthy }, time.Second, 5*time.Millisecond)

	block(t, loop, 200*time.Millisecond)
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), d.Stats().Episodes)
}

func TestDetector_NoEventsAfterStop(t *testing.T) {
	rec := &recorder{}
	d, err := New(20*time.Millisecond, blackHole{}, rec.delegate)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))

	d.Stop()
	n := rec.count()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, n, rec.count())
	assert.Equal(t, StateStopped, d.State())
}

func TestDetector_Lifecycle(t *testing.T) {
	t.Run("second start conflicts", func(t *testing.T) {
		d, err := New(time.Second, blackHole{}, func(Event) {})
		require.NoError(t, err)
		require.NoError(t, d.Start(context.Background()))
		defer d.Stop()
		assert.True(t, errors.HasCode(d.Start(context.Background()), errors.ErrCodeConflict))
	})

	t.Run("start after stop is unavailable", func(t *testing.T) {
		d, err := New(time.Second, blackHole{}, func(Event) {})
		require.NoError(t, err)
		require.NoError(t, d.Start(context.Background()))
		d.Stop()
		assert.True(t, errors.HasCode(d.Start(context.Background()), errors.ErrCodeUnavailable))
	})

	t.Run("stop before start", func(t *testing.T) {
		d, err := New(time.Second, blackHole{}, func(Event) {})
		require.NoError(t, err)
		d.Stop()
		d.Stop()
		assert.Equal(t, StateStopped, d.State())
		assert.True(t, errors.HasCode(d.Start(context.Background()), errors.ErrCodeUnavailable))
	})

	t.Run("context cancel stops monitoring", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		d, err := New(time.Second, blackHole{}, func(Event) {})
		require.NoError(t, err)
		require.NoError(t, d.Start(ctx))
		cancel()
		select {
		case <-d.Done():
		case <-time.After(time.Second):
			t.Fatal("detector did not stop on cancel")
		}
		assert.Equal(t, StateStopped, d.State())
		d.Stop()
	})
}

func TestDetector_StopFromDelegate(t *testing.T) {
	var d *Detector
	called := make(chan struct{})
	d, err := New(20*time.Millisecond, blackHole{}, func(Event) {
		d.Stop()
		close(called)
	})
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("delegate not called")
	}
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("detector did not stop")
	}
}

func TestDetector_DelegatePanicIsContained(t *testing.T) {
	loop := newLoop(t)
	var calls atomic.Int64
	d, err := New(30*time.Millisecond, loop, func(Event) {
		calls.Add(1)
		panic("delegate failed")
	}, WithInterval(5*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	block(t, loop, 100*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return d.State() == StateHealthy }, time.Second, 5*time.Millisecond)

	block(t, loop, 100*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, d.Stats().Errors, uint64(2))
}

func TestDetector_RejectedPostsAreRetried(t *testing.T) {
	target := &rejectingTarget{}
	rec := &recorder{}
	d, err := New(time.Second, target, rec.delegate, WithInterval(5*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	require.Eventually(t, func() bool { return target.posts.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, rec.count())
	assert.GreaterOrEqual(t, d.Stats().Errors, uint64(3))
	assert.Zero(t, d.Stats().Heartbeats)
	assert.Equal(t, StateHealthy, d.State())
}

func TestDetector_RejectingTargetIsReportedBlocked(t *testing.T) {
	target := &rejectingTarget{}
	rec := &recorder{}
	d, err := New(30*time.Millisecond, target, rec.delegate, WithInterval(5*time.Millisecond))
	require.NoError(t, err)
	start := time.Now()
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	ev := rec.first()
	assert.GreaterOrEqual(t, ev.Waited(), 30*time.Millisecond)
	assert.False(t, ev.PostedAt.Before(start))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, StateBlocked, d.State())
}

func TestDetector_FullQueueIsReportedBlocked(t *testing.T) {
	loop := eventloop.New(t.Name(), 4)
	require.NoError(t, loop.Start(context.Background()))
	t.Cleanup(loop.Stop)

	release := make(chan struct{})
	require.True(t, loop.Post(func() { <-release }))
	for loop.Post(func() {}) {
	}

	rec := &recorder{}
	d, err := New(50*time.Millisecond, loop, rec.delegate, WithInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateBlocked, d.State())
	assert.Equal(t, loop.GoroutineID(), rec.first().GoroutineID)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, rec.count())

	close(release)
	require.Eventually(t, func() bool { return d.State() == StateHealthy }, time.Second, 5*time.Millisecond)
	assert.Positive(t, d.Stats().Heartbeats)
	assert.Equal(t, 1, rec.count())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "healthy", StateHealthy.String())
	assert.Equal(t, "blocked", StateBlocked.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(9).String())

	text, err := StateBlocked.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "blocked", string(text))
}
