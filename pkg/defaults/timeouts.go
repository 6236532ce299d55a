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

package defaults

import "time"

// Detector tuning for blocked event-loop detection.
const (
	// DetectorThreshold is the default time a heartbeat may wait in the
	// primary queue before the queue is considered blocked.
	DetectorThreshold = 5 * time.Second

	// DetectorIntervalDivisor derives the tick interval from the threshold
	// when no interval is configured (interval = threshold / divisor).
	DetectorIntervalDivisor = 2

	// DetectorMinInterval floors the derived tick interval.
	DetectorMinInterval = time.Millisecond
)

// Event loop settings.
const (
	// EventLoopCapacity is the default number of queued tasks an event loop
	// accepts before Post starts rejecting.
	EventLoopCapacity = 1024

	// EventLoopStopTimeout bounds how long Stop waits for the drain goroutine.
	EventLoopStopTimeout = 5 * time.Second
)

// Stack capture buffers.
const (
	// StackInitialBuffer is the first buffer size tried for runtime.Stack.
	StackInitialBuffer = 64 << 10

	// StackMaxBuffer caps the buffer growth for all-goroutine dumps. A dump
	// larger than this is truncated rather than allocating without bound.
	StackMaxBuffer = 64 << 20

	// StackMaxInputBytes caps goroutine dumps read by the CLI.
	StackMaxInputBytes = 256 << 20
)

// Server timeouts for HTTP server configuration.
const (
	// ServerReadTimeout is the maximum duration for reading request headers.
	ServerReadTimeout = 10 * time.Second

	// ServerReadHeaderTimeout prevents slow header attacks.
	ServerReadHeaderTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration for writing a response.
	ServerWriteTimeout = 30 * time.Second

	// ServerIdleTimeout is the maximum duration to wait for the next request.
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownTimeout is the maximum duration for graceful shutdown.
	ServerShutdownTimeout = 30 * time.Second
)

// HTTP client timeouts for outbound requests.
const (
	// HTTPClientTimeout is the default total timeout for HTTP requests.
	HTTPClientTimeout = 30 * time.Second

	// HTTPConnectTimeout is the timeout for establishing connections.
	HTTPConnectTimeout = 5 * time.Second

	// HTTPTLSHandshakeTimeout is the timeout for TLS handshake.
	HTTPTLSHandshakeTimeout = 5 * time.Second

	// HTTPResponseHeaderTimeout is the timeout for reading response headers.
	HTTPResponseHeaderTimeout = 10 * time.Second

	// HTTPIdleConnTimeout is the timeout for idle connections in the pool.
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPKeepAlive is the keep-alive duration for connections.
	HTTPKeepAlive = 30 * time.Second
)

// CLI timeouts for command-line operations.
const (
	// CLIParseTimeout bounds reading a remote goroutine dump.
	CLIParseTimeout = 2 * time.Minute

	// CLIWatchDuration is the default run time of the watch command.
	CLIWatchDuration = 10 * time.Second
)
