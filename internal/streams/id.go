// Package streams implements the append-only stream engine (C4): entry IDs,
// XADD/XRANGE/XREAD, grounded on original_source/src/stream.rs since the
// teacher repo carries no stream support of its own.
package streams

import (
	"fmt"
	"strconv"
	"strings"
)

// ID is a stream entry identifier: a millisecond timestamp and a sequence
// number used to break ties within the same millisecond.
type ID struct {
	Ms  uint64
	Seq uint64
}

func (id ID) String() string {
	return fmt.Sprintf("%d-%d", id.Ms, id.Seq)
}

// Less reports whether id sorts strictly before other.
func (id ID) Less(other ID) bool {
	if id.Ms != other.Ms {
		return id.Ms < other.Ms
	}
	return id.Seq < other.Seq
}

// LessEqual reports id <= other.
func (id ID) LessEqual(other ID) bool {
	return id.Less(other) || id == other
}

var zeroID = ID{Ms: 0, Seq: 0}

// parseID parses a complete "ms-seq" or bare "ms" identifier.
func parseID(s string) (ID, error) {
	ms, seqPart, hasHyphen := strings.Cut(s, "-")
	msVal, err := strconv.ParseUint(ms, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("invalid stream ID")
	}
	if !hasHyphen {
		return ID{Ms: msVal}, nil
	}
	seqVal, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("invalid stream ID")
	}
	return ID{Ms: msVal, Seq: seqVal}, nil
}
