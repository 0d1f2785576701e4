// Package replication implements the master/replica protocol (C7): replica
// session bookkeeping, the command log and fan-out loop, WAIT, and the
// replica-side handshake and apply loop. Grounded on the teacher's
// internal/replication package, adapted where the teacher's behavior
// diverges from spec.md §4.6 (offset accounting, the empty-snapshot
// payload, and INFO replication's exact field list, all taken from
// original_source's src/duplication.rs and src/slave_stream.rs).
package replication

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// generateReplID produces a 40-character hex replication ID the way the
// teacher's ReplicationManager does, falling back to a timestamp-derived
// value if the system CSPRNG is unavailable.
func generateReplID() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%040d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
