// Package cleanup tracks the scratch files one request creates so they can
// be deleted on every exit path, including partial failures.
package cleanup

import (
	"context"
	"os"
	"sync"

	"github.com/deporecord/backend/pkg/logger"
	"github.com/deporecord/backend/pkg/metrics"
)

// Tracker owns the set of temporary-file paths created during a single
// request. Paths are registered at creation time, not on success.
type Tracker struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	paths []string
}

func NewTracker() *Tracker {
	return &Tracker{
		seen: make(map[string]struct{}),
	}
}

// Add registers a path for deletion. Registering the same path twice is a
// no-op, so a path can never be deleted more than once.
func (t *Tracker) Add(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[path]; ok {
		return
	}
	t.seen[path] = struct{}{}
	t.paths = append(t.paths, path)
	metrics.Default.TempFilesCreated.Inc()
}

// Len reports how many paths are currently registered.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.paths)
}

// Drain deletes every registered path and empties the tracker. Deletion
// failures are logged and skipped; a path that is already gone is not an
// error. Calling Drain again after it has run is a no-op.
func (t *Tracker) Drain(ctx context.Context) {
	t.mu.Lock()
	paths := t.paths
	t.paths = nil
	t.seen = make(map[string]struct{})
	t.mu.Unlock()

	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			logger.Warn(ctx, "failed to remove temp file", "path", path, "error", err)
			continue
		}
		metrics.Default.TempFilesRemoved.Inc()
		logger.Debug(ctx, "temp file removed", "path", path)
	}
}
