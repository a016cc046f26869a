// Package build implements the incremental build engine: a DAG of build
// nodes with mtime-based staleness tracking, at-most-once rule execution,
// cycle detection, and bounded-concurrency updates.
//
// Nodes are constructed once, bottom-up, before any update. The "needs"
// graph is append-only during construction and frozen during updates.
// An Updater walks the graph from one or more roots on the calling
// goroutine; only rule bodies run concurrently, limited by the configured
// number of jobs.
package build
