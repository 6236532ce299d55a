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

// Package server provides the HTTP debug server embedded in crashcore
// daemons.
//
// # Endpoints
//
// The server always exposes:
//
//	GET /         service name, version, readiness and registered routes
//	GET /health   liveness; 200 while the process serves requests
//	GET /ready    readiness; 503 until ready or while a readiness check fails
//	GET /metrics  Prometheus metrics
//
// Additional routes are registered with WithHandler and run behind the
// middleware chain: metrics, API version header, request ID, panic
// recovery, rate limiting and request logging.
//
// # Errors
//
// Handlers report failures with WriteError or WriteErrorFromErr. The latter
// maps a *errors.StructuredError code to an HTTP status:
//
//	{
//	  "code": "SERVICE_UNAVAILABLE",
//	  "message": "event loop is blocked",
//	  "requestId": "5b0c...",
//	  "timestamp": "2025-01-01T00:00:00Z",
//	  "retryable": true
//	}
//
// # Configuration
//
// Defaults come from package defaults and NewConfig. PORT and
// SHUTDOWN_TIMEOUT_SECONDS override the listen port and graceful shutdown
// timeout.
//
// # Usage
//
//	s := server.New(
//		server.WithName("crashcored"),
//		server.WithVersion(version),
//		server.WithHandler(map[string]http.HandlerFunc{
//			"/v1/threads": threadsHandler,
//		}),
//	)
//	if err := s.Run(ctx); err != nil {
//		return err
//	}
package server
