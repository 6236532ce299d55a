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

package snapshotter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	failureScopeThread   = "thread"
	failureScopeSnapshot = "snapshot"
)

var (
	captureTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crashcore_capture_total",
			Help: "Total number of goroutine snapshots captured",
		},
	)

	captureDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crashcore_capture_duration_seconds",
			Help:    "Time taken to build a goroutine snapshot",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	capturedThreads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crashcore_capture_goroutines",
			Help: "Number of goroutines in the last captured snapshot",
		},
	)

	captureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crashcore_capture_failures_total",
			Help: "Contained failures while capturing goroutine stacks",
		},
		[]string{"scope"}, // thread or snapshot
	)
)
