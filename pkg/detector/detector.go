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
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NVIDIA/crashcore/pkg/defaults"
	"github.com/NVIDIA/crashcore/pkg/errors"
	"github.com/NVIDIA/crashcore/pkg/stack"
)

const defaultName = "main"

// Detector reports when a Target stops running posted tasks.
type Detector struct {
	name      string
	threshold time.Duration
	interval  time.Duration
	target    Target
	delegate  Delegate
	logger    *slog.Logger

	state    atomic.Int32
	started  atomic.Bool
	gid      atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	ticks       atomic.Uint64
	heartbeats  atomic.Uint64
	episodes    atomic.Uint64
	errs        atomic.Uint64
	lastLatency atomic.Int64

	// rejectedSince is when the current run of rejected posts began; owned
	// by the monitor goroutine.
	rejectedSince time.Time
}

// New validates the configuration and returns a stopped-until-started
// Detector. It fails with ErrCodeInvalidConfig when threshold is not
// positive, or target or delegate is nil.
func New(threshold time.Duration, target Target, delegate Delegate, opts ...Option) (*Detector, error) {
	switch {
	case threshold <= 0:
		return nil, errors.NewWithContext(errors.ErrCodeInvalidConfig,
			"threshold must be positive", map[string]any{"threshold": threshold.String()})
	case target == nil:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "target is required")
	case delegate == nil:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "delegate is required")
	}

	d := &Detector{
		name:      defaultName,
		threshold: threshold,
		interval:  max(threshold/defaults.DetectorIntervalDivisor, defaults.DetectorMinInterval),
		target:    target,
		delegate:  delegate,
		logger:    slog.Default(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("detector", d.name)
	return d, nil
}

// Name returns the detector name.
func (d *Detector) Name() string {
	return d.name
}

// Threshold returns the configured blocking threshold.
func (d *Detector) Threshold() time.Duration {
	return d.threshold
}

// Interval returns the pause between heartbeats.
func (d *Detector) Interval() time.Duration {
	return d.interval
}

// State returns the current state.
func (d *Detector) State() State {
	return State(d.state.Load())
}

// Stats returns a copy of the counters.
func (d *Detector) Stats() Stats {
	return Stats{
		State:       d.State(),
		Ticks:       d.ticks.Load(),
		Heartbeats:  d.heartbeats.Load(),
		Episodes:    d.episodes.Load(),
		Errors:      d.errs.Load(),
		LastLatency: time.Duration(d.lastLatency.Load()),
	}
}

// Start launches the monitor goroutine. Monitoring ends when ctx is canceled
// or Stop is called. A Detector starts at most once.
func (d *Detector) Start(ctx context.Context) error {
	if d.State() == StateStopped {
		return errors.NewWithContext(errors.ErrCodeUnavailable, "detector stopped",
			map[string]any{"detector": d.name})
	}
	if !d.started.CompareAndSwap(false, true) {
		return errors.NewWithContext(errors.ErrCodeConflict, "detector already started",
			map[string]any{"detector": d.name})
	}

	d.setState(StateHealthy)
	running := make(chan struct{})
	go d.monitor(ctx, running)
	<-running

	d.logger.Info("blocked-thread detector started",
		"threshold", d.threshold, "interval", d.interval)
	return nil
}

// Stop ends monitoring and waits for the monitor goroutine to exit, so the
// delegate is never invoked after Stop returns. Calling Stop from the
// delegate does not wait. Stop is safe to call more than once.
func (d *Detector) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
		if !d.started.Swap(true) {
			// never started
			d.setState(StateStopped)
			close(d.done)
		}
	})
	if stack.CurrentID() == d.gid.Load() {
		return
	}
	<-d.done
}

// Done is closed once monitoring has ended.
func (d *Detector) Done() <-chan struct{} {
	return d.done
}

func (d *Detector) setState(s State) {
	d.state.Store(int32(s))
	stateGauge.WithLabelValues(d.name).Set(float64(s))
}

// heartbeat is the one task in flight on the target.
type heartbeat struct {
	postedAt time.Time
	ran      chan time.Time
}

func (d *Detector) monitor(ctx context.Context, running chan<- struct{}) {
	d.gid.Store(stack.CurrentID())
	close(running)
	defer func() {
		d.setState(StateStopped)
		close(d.done)
		d.logger.Info("blocked-thread detector stopped")
	}()

	var hb *heartbeat
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-timer.C:
		}

		hb = d.tick(ctx, hb)

		if hb == nil {
			timer.Reset(d.interval)
		} else {
			// beat arrived mid-wait is picked up on the next tick
			timer.Reset(0)
		}
	}
}

// tick advances the state machine once. It returns the heartbeat still
// outstanding, or nil when the next heartbeat may be posted after the
// interval.
func (d *Detector) tick(ctx context.Context, hb *heartbeat) (out *heartbeat) {
	d.ticks.Add(1)
	defer func() {
		if r := recover(); r != nil {
			d.tickError("panic")
			d.logger.Error("detector tick panicked", "panic", fmt.Sprint(r))
			out = hb
		}
	}()

	if hb == nil {
		hb = d.post()
		if hb == nil {
			return nil
		}
	}

	wait := time.Until(hb.postedAt.Add(d.threshold))
	if d.State() == StateBlocked || wait <= 0 {
		// already reported; poll for the heartbeat at the interval
		wait = max(wait, d.interval)
	}

	timeout := time.NewTimer(wait)
	defer timeout.Stop()

	select {
	case <-ctx.Done():
		return hb
	case <-d.stop:
		return hb
	case at := <-hb.ran:
		d.arrived(hb, at)
		return nil
	case <-timeout.C:
		d.timedOut(hb)
		return hb
	}
}

// post hands a heartbeat to the target. A target that keeps rejecting posts
// for longer than threshold is reported blocked, the same as one that never
// runs an accepted heartbeat.
func (d *Detector) post() *heartbeat {
	now := time.Now()
	hb := &heartbeat{ran: make(chan time.Time, 1), postedAt: now}
	if !d.target.Post(func() { hb.ran <- time.Now() }) {
		d.tickError("rejected")
		if d.rejectedSince.IsZero() {
			d.rejectedSince = now
			d.logger.Warn("heartbeat rejected by target")
		} else {
			d.logger.Debug("heartbeat rejected by target", "since", d.rejectedSince)
		}
		if now.Sub(d.rejectedSince) >= d.threshold {
			d.timedOut(&heartbeat{postedAt: d.rejectedSince})
		}
		return nil
	}

	if !d.rejectedSince.IsZero() {
		// the threshold keeps counting from the first rejection
		hb.postedAt = d.rejectedSince
		d.rejectedSince = time.Time{}
	}
	d.heartbeats.Add(1)
	return hb
}

func (d *Detector) arrived(hb *heartbeat, at time.Time) {
	latency := at.Sub(hb.postedAt)
	d.lastLatency.Store(int64(latency))
	heartbeatLatency.WithLabelValues(d.name).Observe(latency.Seconds())

	if d.State() == StateBlocked {
		d.setState(StateHealthy)
		d.logger.Info("thread unblocked", "latency", latency)
	}
}

func (d *Detector) timedOut(hb *heartbeat) {
	if d.State() == StateBlocked {
		return
	}
	select {
	case <-d.stop:
		return
	default:
	}

	d.setState(StateBlocked)
	d.episodes.Add(1)
	episodesTotal.WithLabelValues(d.name).Inc()

	ev := Event{
		Name:       d.name,
		PostedAt:   hb.postedAt,
		DetectedAt: time.Now(),
		Threshold:  d.threshold,
	}
	if gt, ok := d.target.(goroutineTarget); ok {
		ev.GoroutineID = gt.GoroutineID()
	}

	d.logger.Warn("thread blocked",
		"waited", ev.Waited(),
		"goroutine", ev.GoroutineID)
	d.delegate(ev)
}

func (d *Detector) tickError(reason string) {
	d.errs.Add(1)
	tickErrors.WithLabelValues(d.name, reason).Inc()
}
