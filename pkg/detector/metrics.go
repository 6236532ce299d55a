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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crashcore_detector_state",
			Help: "Detector state: 0 healthy, 1 blocked, 2 stopped",
		},
		[]string{"detector"},
	)

	episodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crashcore_detector_blocked_episodes_total",
			Help: "Blocked episodes reported to the delegate",
		},
		[]string{"detector"},
	)

	tickErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crashcore_detector_tick_errors_total",
			Help: "Detector ticks that failed",
		},
		[]string{"detector", "reason"}, // rejected or panic
	)

	heartbeatLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crashcore_detector_heartbeat_latency_seconds",
			Help:    "Time from posting a heartbeat to it running on the target",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"detector"},
	)
)
