// Package orchestrator composes worker pools and the context store into
// multi-step workflows.
//
// The orchestrator coordinates:
//   - Batch validation before dispatch (non-nil tasks, unique ids)
//   - Impact analysis: one audit task per context entry for a changed symbol
//   - Project transformation: three phase pools run in sequence, results
//     written back to the context store
//
// Payloads are applied to shared state on the calling goroutine only;
// executors never touch the store.
package orchestrator
