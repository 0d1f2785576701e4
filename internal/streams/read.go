package streams

import (
	"context"
	"time"
)

// pollInterval matches original_source's XREAD BLOCK poll cadence
// (Duration::from_millis(20) in src/db.rs).
const pollInterval = 20 * time.Millisecond

// StreamResult pairs a stream key with the entries found after its
// resolved starting ID.
type StreamResult struct {
	Key     string
	Entries []Entry
}

// ReadOnce performs a single, non-blocking pass over keys, returning only
// the streams that produced at least one entry.
func (e *Engine) ReadOnce(keys []string, after []ID) []StreamResult {
	results := make([]StreamResult, 0, len(keys))
	for i, key := range keys {
		entries := e.After(key, after[i])
		if len(entries) > 0 {
			results = append(results, StreamResult{Key: key, Entries: entries})
		}
	}
	return results
}

// BlockingRead polls every pollInterval until at least one stream has new
// entries, ctx is cancelled, or timeout elapses (timeout <= 0 means block
// indefinitely). It returns nil results on timeout with no error, mirroring
// XREAD's null-array reply on expiry.
func (e *Engine) BlockingRead(ctx context.Context, keys []string, after []ID, timeout time.Duration) ([]StreamResult, error) {
	if results := e.ReadOnce(keys, after); len(results) > 0 {
		return results, nil
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, nil
		case <-ticker.C:
			if results := e.ReadOnce(keys, after); len(results) > 0 {
				return results, nil
			}
		}
	}
}
