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
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/NVIDIA/crashcore/pkg/logging"
	"github.com/NVIDIA/crashcore/pkg/server"
)

const (
	name           = "crashcored"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags to reflect actual version info
	// e.g., -X "github.com/NVIDIA/crashcore/pkg/api.version=1.0.0"
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Serve starts the daemon and blocks until SIGINT or SIGTERM.
func Serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return ServeContext(ctx, ConfigFromEnv())
}

// ServeContext runs the daemon with cfg until ctx is done.
func ServeContext(ctx context.Context, cfg Config) error {
	logging.SetDefaultStructuredLogger(name, version)
	slog.Info("starting",
		"name", name,
		"version", version,
		"commit", commit,
		"date", date,
	)

	svc, err := NewService(cfg)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		return err
	}
	slog.Info("service config", svc.queueInfo()...)

	s := server.New(
		server.WithName(name),
		server.WithVersion(version),
		server.WithHandler(svc.Handlers()),
		server.WithReadinessCheck(svc.Ready),
	)

	if err := s.Run(ctx, svc.Run); err != nil {
		slog.Error("server exited with error", "error", err)
		return err
	}

	return nil
}
