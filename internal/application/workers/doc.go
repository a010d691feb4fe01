// Package workers implements the fixed-size worker pool that executes task batches.
//
// The pool owns N workers created once at construction. A batch is split by
// static round-robin (task i goes to worker i mod N) and every worker runs its
// share sequentially, so at most N tasks are in flight and each worker's
// IDLE/BUSY status reflects exactly one task at a time.
//
// Task failures, including panics, are contained in FAILED results; only
// pool-level problems such as dispatching after Shutdown are returned as errors.
//
// The health monitor tracks worker status and logs metrics.
package workers
