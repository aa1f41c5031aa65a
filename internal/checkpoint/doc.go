// Package checkpoint snapshots and restores file sets around risky
// workflow phases.
//
// A checkpoint records each file's content and hash in a
// human-readable text format, plus an optional git commit reference.
// Restore prefers the commit revert (no direct file writes) and falls
// back to writing each snapshotted file individually. Compaction
// retains the first and last checkpoint of every phase plus the N
// most recent overall, and deletes the rest.
package checkpoint
