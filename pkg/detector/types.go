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
	"log/slog"
	"time"
)

// Target is the queue being watched. Post enqueues task without blocking and
// reports whether it was accepted.
type Target interface {
	Post(task func()) bool
}

// goroutineTarget is implemented by targets that know which goroutine drains
// them, such as eventloop.Loop.
type goroutineTarget interface {
	GoroutineID() int64
}

// Delegate receives blocked-loop events.
type Delegate func(Event)

// Event describes a detected stall.
type Event struct {
	// Name is the detector name.
	Name string `json:"name" yaml:"name"`

	// GoroutineID is the goroutine draining the target, or 0 if unknown.
	GoroutineID int64 `json:"goroutineId,omitempty" yaml:"goroutineId,omitempty"`

	// PostedAt is when the unanswered heartbeat was posted.
	PostedAt time.Time `json:"postedAt" yaml:"postedAt"`

	// DetectedAt is when the stall was declared.
	DetectedAt time.Time `json:"detectedAt" yaml:"detectedAt"`

	// Threshold is the configured blocking threshold.
	Threshold time.Duration `json:"threshold" yaml:"threshold"`
}

// Waited returns how long the heartbeat had been waiting at detection.
func (e Event) Waited() time.Duration {
	return e.DetectedAt.Sub(e.PostedAt)
}

// State is the detector's view of the target.
type State int32

const (
	StateHealthy State = iota
	StateBlocked
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateBlocked:
		return "blocked"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Stats are cumulative counters since Start.
type Stats struct {
	State       State         `json:"state" yaml:"state"`
	Ticks       uint64        `json:"ticks" yaml:"ticks"`
	Heartbeats  uint64        `json:"heartbeats" yaml:"heartbeats"`
	Episodes    uint64        `json:"episodes" yaml:"episodes"`
	Errors      uint64        `json:"errors" yaml:"errors"`
	LastLatency time.Duration `json:"lastLatency" yaml:"lastLatency"`
}

// Option configures a Detector.
type Option func(*Detector)

// WithInterval sets the pause between a completed heartbeat and the next
// one. Non-positive values keep the default.
func WithInterval(interval time.Duration) Option {
	return func(d *Detector) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

// WithName labels logs and metrics.
func WithName(name string) Option {
	return func(d *Detector) {
		if name != "" {
			d.name = name
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}
