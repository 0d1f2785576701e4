package streams

import "time"

// nowMillis is the wall-clock source for auto-generated entry IDs.
var nowMillis = func() uint64 {
	return uint64(time.Now().UnixMilli())
}
