// Package events provides message bus implementations.
//
// Implementations:
//   - memory: bounded in-process FIFO bus and the keyed context store built on it
//   - redis: relay mirroring bus notifications into a capped Redis stream
package events
