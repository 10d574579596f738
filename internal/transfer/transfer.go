// Package transfer moves an exported snapshot to a deployment target and
// reports per-file outcomes as a result.Result.
package transfer

import (
	"context"

	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/result"
)

// Request describes one synchronization.
type Request struct {
	// Source is the local directory whose contents are sent.
	Source string
	// Destination is an rsync-style target: a local path or host:path.
	Destination string
	// Excludes are rsync exclude patterns.
	Excludes []string
	// DryRun reports what would change without changing it.
	DryRun bool
	// Delete removes target files absent from Source.
	Delete bool
}

// Engine synchronizes a Request and reports what changed.
type Engine interface {
	Sync(ctx context.Context, req Request) (*result.Result, error)
}
