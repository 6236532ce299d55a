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

// Package cli implements the crashcore command-line interface.
//
// # Commands
//
// snapshot - Capture the goroutines of this process:
//
//	crashcore snapshot --format table
//
// parse - Capture a goroutine dump into a thread snapshot:
//
//	crashcore parse --project-package github.com/acme/app dump.txt
//
// Reads a dump as printed by a Go panic, runtime.Stack or SIGQUIT from a
// file, an http(s) URL or standard input ("-"). The first goroutine in the
// dump is the reporting goroutine unless --current names another. Dumps that
// start with "panic:" or "fatal error:" produce a CrashReport, anything else
// a ThreadSnapshot.
//
// view - Re-render a saved report:
//
//	crashcore view --in-project-only --format table report.json.zst
//
// watch - Run an event loop under the blocked-thread detector:
//
//	crashcore watch --threshold 200ms --block-for 1s --duration 3s
//
// Prints a BlockedReport each time the loop stays blocked past the
// threshold. --block-for injects one stall so the detector has something
// to find.
//
// # Global Flags
//
//	--log-level    debug, info, warn, error (default: info)
//	--help, -h     Show command help
//	--version, -v  Show version information
//
// # Output
//
//	--output, -o   Output file path (default: stdout); ".zst" compresses
//	--format, -t   json (default), yaml or table
//
// # Environment Variables
//
//	LOG_LEVEL                   Logging verbosity
//	CRASHCORE_PROJECT_PACKAGES  Default --project-package values
//
// # Exit Codes
//
//	0  Success
//	1  General error (invalid arguments, execution failure)
//	2  Context canceled or timeout
//
// Version information is embedded at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/NVIDIA/crashcore/pkg/cli.version=1.0.0'"
package cli
