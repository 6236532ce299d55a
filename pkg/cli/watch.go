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

package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/crashcore/pkg/defaults"
	"github.com/NVIDIA/crashcore/pkg/detector"
	"github.com/NVIDIA/crashcore/pkg/errors"
	"github.com/NVIDIA/crashcore/pkg/eventloop"
	"github.com/NVIDIA/crashcore/pkg/header"
	"github.com/NVIDIA/crashcore/pkg/serializer"
	"github.com/NVIDIA/crashcore/pkg/snapshotter"
)

const watchLoopName = "watch"

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:                  "watch",
		EnableShellCompletion: true,
		Usage:                 "Run an event loop under the blocked-thread detector",
		Description: `Start an event loop, watch it with the blocked-thread detector and print a
BlockedReport every time the loop stays busy longer than --threshold.

Use --block-for to occupy the loop once and see what a report looks like.

# Examples

  crashcore watch --threshold 200ms --block-for 1s --duration 3s
  crashcore watch --format table --block-for 500ms`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "threshold",
				Usage: "how long a heartbeat may wait before the loop is reported blocked",
				Value: time.Second,
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "pause between heartbeats (default: threshold/2)",
			},
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "how long to watch",
				Value: defaults.CLIWatchDuration,
			},
			&cli.DurationFlag{
				Name:  "block-for",
				Usage: "occupy the event loop once for this long",
			},
			projectPackageFlag(),
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("duration"))
			defer cancel()

			return watch(ctx, watchConfig{
				threshold: cmd.Duration("threshold"),
				interval:  cmd.Duration("interval"),
				blockFor:  cmd.Duration("block-for"),
				packages:  cmd.StringSlice("project-package"),
				out:       serializer.NewWriter(outFormat, cmd.Root().Writer),
			})
		},
	}
}

type watchConfig struct {
	threshold time.Duration
	interval  time.Duration
	blockFor  time.Duration
	packages  []string
	out       serializer.Serializer
}

// watch runs until ctx is done. Reaching the deadline is a clean exit.
func watch(ctx context.Context, cfg watchConfig) error {
	loop := eventloop.New(watchLoopName, 0)
	if err := loop.Start(ctx); err != nil {
		return err
	}
	defer loop.Stop()

	capturer := &snapshotter.Capturer{
		ProjectPackages: cfg.packages,
		EventLoopIDs:    []int64{loop.GoroutineID()},
	}

	reports := make(chan *snapshotter.Report, 8)
	onBlocked := func(ev detector.Event) {
		report := snapshotter.NewReport(header.KindBlockedReport, version, capturer.CaptureGoroutine(ev.GoroutineID))
		report.Metadata["detector"] = ev.Name
		report.Metadata["waited"] = ev.Waited().String()
		select {
		case reports <- report:
		default:
			slog.Warn("dropping blocked report, output is behind", "detector", ev.Name)
		}
	}

	d, err := detector.New(cfg.threshold, loop, onBlocked,
		detector.WithName(watchLoopName),
		detector.WithInterval(cfg.interval))
	if err != nil {
		return err
	}
	if err := d.Start(ctx); err != nil {
		return err
	}
	defer d.Stop()

	slog.Info("watching event loop",
		"threshold", d.Threshold(),
		"interval", d.Interval(),
		"blockFor", cfg.blockFor)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.blockFor > 0 {
		g.Go(func() error {
			stall := func() {
				select {
				case <-time.After(cfg.blockFor):
				case <-gctx.Done():
				}
			}
			if !loop.Post(stall) {
				return errors.New(errors.ErrCodeUnavailable, "event loop rejected the stall")
			}
			return nil
		})
	}

	g.Go(func() error {
		// a report already captured is written even when the watch ends
		out := context.WithoutCancel(gctx)
		for {
			select {
			case <-gctx.Done():
				return drainReports(out, cfg.out, reports)
			case report := <-reports:
				if err := cfg.out.Serialize(out, report); err != nil {
					return err
				}
			}
		}
	})

	err = g.Wait()
	d.Stop()
	if err == nil {
		// the delegate may have fired while the writer was finishing
		err = drainReports(context.Background(), cfg.out, reports)
	}
	stats := d.Stats()
	slog.Info("watch finished",
		"ticks", stats.Ticks,
		"heartbeats", stats.Heartbeats,
		"episodes", stats.Episodes,
		"errors", stats.Errors)
	return err
}

// drainReports writes the reports still buffered without waiting for more.
func drainReports(ctx context.Context, out serializer.Serializer, reports <-chan *snapshotter.Report) error {
	for {
		select {
		case report := <-reports:
			if err := out.Serialize(ctx, report); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}
