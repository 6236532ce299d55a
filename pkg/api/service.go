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
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/NVIDIA/crashcore/pkg/detector"
	"github.com/NVIDIA/crashcore/pkg/errors"
	"github.com/NVIDIA/crashcore/pkg/eventloop"
	"github.com/NVIDIA/crashcore/pkg/header"
	"github.com/NVIDIA/crashcore/pkg/serializer"
	"github.com/NVIDIA/crashcore/pkg/server"
	"github.com/NVIDIA/crashcore/pkg/snapshotter"
)

// maxStall bounds injected stalls.
const maxStall = time.Minute

// Service owns the event loop, its detector and the latest blocked report.
type Service struct {
	cfg      Config
	loop     *eventloop.Loop
	detector *detector.Detector
	capturer *snapshotter.Capturer

	mu          sync.RWMutex
	lastBlocked *snapshotter.Report
}

// DetectorStatus is served on /v1/detector.
type DetectorStatus struct {
	Name        string         `json:"name" yaml:"name"`
	Threshold   string         `json:"threshold" yaml:"threshold"`
	Interval    string         `json:"interval" yaml:"interval"`
	LoopID      int64          `json:"loopGoroutine" yaml:"loopGoroutine"`
	QueueLength int            `json:"queueLength" yaml:"queueLength"`
	Stats       detector.Stats `json:"stats" yaml:"stats"`
	LastBlocked *header.Header `json:"lastBlocked,omitempty" yaml:"lastBlocked,omitempty"`
}

// NewService validates cfg and builds an unstarted Service.
func NewService(cfg Config) (*Service, error) {
	s := &Service{
		cfg:  cfg,
		loop: eventloop.New(cfg.LoopName, cfg.LoopCapacity),
	}

	d, err := detector.New(cfg.Threshold, s.loop, s.onBlocked,
		detector.WithName(cfg.LoopName),
		detector.WithInterval(cfg.Interval),
	)
	if err != nil {
		return nil, err
	}
	s.detector = d
	s.capturer = &snapshotter.Capturer{ProjectPackages: cfg.ProjectPackages}
	return s, nil
}

// Start runs the event loop, then the detector.
func (s *Service) Start(ctx context.Context) error {
	if err := s.loop.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event loop: %w", err)
	}
	s.capturer.EventLoopIDs = []int64{s.loop.GoroutineID()}
	if err := s.detector.Start(ctx); err != nil {
		s.loop.Stop()
		return fmt.Errorf("failed to start detector: %w", err)
	}
	return nil
}

// Run starts the service and blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop stops the detector, then the event loop.
func (s *Service) Stop() {
	s.detector.Stop()
	s.loop.Stop()
}

// Ready fails while the event loop is blocked or monitoring has stopped.
func (s *Service) Ready() error {
	switch s.detector.State() {
	case detector.StateBlocked:
		return errors.New(errors.ErrCodeUnavailable, "event loop is blocked")
	case detector.StateStopped:
		return errors.New(errors.ErrCodeUnavailable, "detector stopped")
	default:
		return nil
	}
}

// LastBlocked returns the report captured at the most recent stall.
func (s *Service) LastBlocked() (*snapshotter.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastBlocked, s.lastBlocked != nil
}

// onBlocked captures every goroutine with the event loop as current.
func (s *Service) onBlocked(ev detector.Event) {
	snap := s.capturer.CaptureGoroutine(ev.GoroutineID)
	report := snapshotter.NewReport(header.KindBlockedReport, s.cfg.Version, snap)
	report.Metadata["detector"] = ev.Name
	report.Metadata["posted-at"] = ev.PostedAt.UTC().Format(time.RFC3339Nano)
	report.Metadata["waited"] = ev.Waited().String()

	s.mu.Lock()
	s.lastBlocked = report
	s.mu.Unlock()

	slog.Warn("captured blocked report",
		"report", report.Metadata[header.MetadataReportID],
		"goroutines", snap.Len())
}

// Handlers returns the application routes.
func (s *Service) Handlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"/v1/threads":  s.handleThreads,
		"/v1/detector": s.handleDetector,
		"/v1/blocked":  s.handleBlocked,
		"/v1/stall":    s.handleStall,
	}
}

func (s *Service) handleThreads(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	c := &snapshotter.Capturer{
		ProjectPackages: s.cfg.ProjectPackages,
		EventLoopIDs:    []int64{s.loop.GoroutineID()},
	}
	if prefixes := q["project"]; len(prefixes) > 0 {
		c.ProjectPackages = prefixes
	}

	snap := c.CaptureLive(nil)
	if q.Get("in-project-only") == "true" {
		snap = snap.Filter(func(f snapshotter.Frame) bool { return f.InProject })
	}

	respond(w, r, snapshotter.NewReport(header.KindThreadSnapshot, s.cfg.Version, snap))
}

func (s *Service) handleDetector(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	status := DetectorStatus{
		Name:        s.detector.Name(),
		Threshold:   s.detector.Threshold().String(),
		Interval:    s.detector.Interval().String(),
		LoopID:      s.loop.GoroutineID(),
		QueueLength: s.loop.Len(),
		Stats:       s.detector.Stats(),
	}
	if report, ok := s.LastBlocked(); ok {
		status.LastBlocked = &report.Header
	}
	respond(w, r, status)
}

func (s *Service) handleBlocked(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	report, ok := s.LastBlocked()
	if !ok {
		server.WriteErrorFromErr(w, r, errors.New(errors.ErrCodeNotFound, "no blocked report captured"))
		return
	}
	respond(w, r, report)
}

func (s *Service) handleStall(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	d, err := time.ParseDuration(r.URL.Query().Get("duration"))
	if err != nil || d <= 0 || d > maxStall {
		server.WriteErrorFromErr(w, r, errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"duration must be a positive duration up to 1m",
			map[string]any{"duration": r.URL.Query().Get("duration")}))
		return
	}
	if !s.loop.Post(func() { time.Sleep(d) }) {
		server.WriteErrorFromErr(w, r, errors.New(errors.ErrCodeUnavailable, "event loop rejected the task"))
		return
	}
	slog.Info("stall injected", "duration", d)
	serializer.RespondJSON(w, http.StatusAccepted, map[string]string{"stall": d.String()})
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	server.WriteError(w, r, http.StatusMethodNotAllowed, errors.ErrCodeMethodNotAllowed,
		"method not allowed", false, map[string]any{"allowed": method})
	return false
}

// respond writes doc in the format named by ?format=.
func respond(w http.ResponseWriter, r *http.Request, doc any) {
	switch serializer.Format(r.URL.Query().Get("format")) {
	case serializer.FormatYAML:
		serializer.RespondYAML(w, http.StatusOK, doc)
	case serializer.FormatTable:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := serializer.NewWriter(serializer.FormatTable, w).Serialize(r.Context(), doc); err != nil {
			slog.Warn("table write failed", "error", err)
		}
	case serializer.FormatJSON, "":
		serializer.RespondJSON(w, http.StatusOK, doc)
	default:
		server.WriteError(w, r, http.StatusBadRequest, errors.ErrCodeInvalidRequest,
			"unsupported format", false, map[string]any{
				"format":    r.URL.Query().Get("format"),
				"supported": serializer.SupportedFormats(),
			})
	}
}

// queueInfo describes the service for the startup log.
func (s *Service) queueInfo() []any {
	return []any{
		"loop", s.cfg.LoopName,
		"capacity", s.cfg.LoopCapacity,
		"threshold", s.detector.Threshold(),
		"interval", s.detector.Interval(),
		"projectPackages", s.cfg.ProjectPackages,
	}
}
