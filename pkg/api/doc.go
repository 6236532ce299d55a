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

// Package api wires the crashcore daemon: a primary event loop, a
// blocked-thread detector watching it, and the HTTP debug server exposing
// goroutine snapshots and detector state.
//
// # Usage
//
//	func main() {
//	    if err := api.Serve(); err != nil {
//	        log.Fatalf("server error: %v", err)
//	    }
//	}
//
// # Endpoints
//
// Application endpoints (rate limited):
//   - GET  /v1/threads   capture every goroutine now
//   - GET  /v1/detector  detector state and counters
//   - GET  /v1/blocked   the report captured at the last detected stall
//   - POST /v1/stall     occupy the event loop for ?duration= (max 1m)
//
// System endpoints:
//   - GET /health, /ready, /metrics
//
// /ready reports 503 while the event loop is blocked.
//
// # Query Parameters (GET /v1/threads)
//
//   - project: package prefix marking in-project frames; repeatable,
//     defaults to CRASHCORE_PROJECT_PACKAGES
//   - in-project-only: drop frames outside the project (true/false)
//   - format: json (default), yaml or table
//
// # Configuration
//
//	PORT                        HTTP port (default 8080)
//	SHUTDOWN_TIMEOUT_SECONDS    graceful shutdown timeout
//	LOG_LEVEL                   debug, info, warn, error
//	CRASHCORE_THRESHOLD_MS      blocking threshold (default 5000)
//	CRASHCORE_INTERVAL_MS       heartbeat interval (default threshold/2)
//	CRASHCORE_PROJECT_PACKAGES  comma separated package prefixes
//
// Version information is set at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/NVIDIA/crashcore/pkg/api.version=1.0.0'"
package api
