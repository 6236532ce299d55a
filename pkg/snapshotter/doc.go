// Package snapshotter captures point-in-time snapshots of every goroutine's stack.
//
// # Overview
//
// A Snapshot is an ordered, immutable list of ThreadRecords, one per goroutine,
// sorted ascending by goroutine id. Exactly one record is flagged as the
// current (error reporting) goroutine. Each record carries the goroutine's
// frames innermost-first; every frame is classified as in-project or not by
// matching its package path against configured prefixes.
//
// Capture is designed to run while the process is already failing: it never
// panics and never returns an error. A goroutine whose stack cannot be read or
// translated is recorded with an empty frame list instead of aborting the
// capture.
//
// # Core Types
//
// Capturer: builds snapshots from a goroutine-to-stack mapping
//
//	type Capturer struct {
//	    ProjectPackages []string // package path prefixes of application code
//	    EventLoopIDs    []int64  // goroutines labelled "event-loop"
//	    CurrentStack    func() ([]stack.RawFrame, error)
//	}
//
// Snapshot: the capture result; serializes as a bare JSON/YAML array
//
//	[
//	  {
//	    "id": 1,
//	    "name": "main",
//	    "type": "event-loop",
//	    "errorReportingThread": true,
//	    "stacktrace": [
//	      {"method": "main.main", "file": "/app/main.go", "lineNumber": 12, "inProject": true}
//	    ]
//	  }
//	]
//
// Report: a Snapshot wrapped in a header for standalone output
//
// GoroutineSnapshotter: captures the live process and serializes a Report
//
// # Usage
//
// Capture from an explicit mapping (e.g. a parsed dump):
//
//	snap := snapshotter.Capture(stacks, current, nil, []string{"github.com/acme/app"})
//
// Capture the live process from a deferred recover:
//
//	defer func() {
//	    if r := recover(); r != nil {
//	        c := snapshotter.NewCapturer("github.com/acme/app")
//	        snap := c.CapturePanic()
//	        // hand snap to the report pipeline
//	    }
//	}()
//
// # Observability
//
// Capture duration, captured goroutine count and contained failures are
// exported as Prometheus metrics (crashcore_capture_*).
package snapshotter
