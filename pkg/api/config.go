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

package api

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NVIDIA/crashcore/pkg/defaults"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvThresholdMillis = "CRASHCORE_THRESHOLD_MS"
	EnvIntervalMillis  = "CRASHCORE_INTERVAL_MS"
	EnvProjectPackages = "CRASHCORE_PROJECT_PACKAGES"
)

// Config configures a Service.
type Config struct {
	// Version is stamped into reports.
	Version string

	// LoopName names the event loop and its detector.
	LoopName string

	// LoopCapacity bounds the event loop queue.
	LoopCapacity int

	// Threshold is how long a heartbeat may wait before the loop is
	// reported blocked.
	Threshold time.Duration

	// Interval is the pause between heartbeats; zero derives it from
	// Threshold.
	Interval time.Duration

	// ProjectPackages are package prefixes marking in-project frames.
	ProjectPackages []string
}

// ConfigFromEnv returns defaults overridden by CRASHCORE_* variables.
// Invalid values are logged and ignored.
func ConfigFromEnv() Config {
	cfg := Config{
		Version:      version,
		LoopName:     "main",
		LoopCapacity: defaults.EventLoopCapacity,
		Threshold:    defaults.DetectorThreshold,
	}

	if d, ok := millisFromEnv(EnvThresholdMillis); ok {
		cfg.Threshold = d
	}
	if d, ok := millisFromEnv(EnvIntervalMillis); ok {
		cfg.Interval = d
	}
	cfg.ProjectPackages = SplitPackages(os.Getenv(EnvProjectPackages))

	return cfg
}

func millisFromEnv(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		slog.Warn("ignoring invalid duration", "env", key, "value", v)
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

// SplitPackages parses a comma separated prefix list, dropping blanks.
func SplitPackages(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
