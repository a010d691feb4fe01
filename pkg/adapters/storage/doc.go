// Package storage provides export targets for context store snapshots.
//
// Implementations:
//   - s3: S3-compatible object storage via minio-go
//
// The context store itself stays in memory; exports are point-in-time copies
// for offline inspection and are never read back by the swarm.
package storage
