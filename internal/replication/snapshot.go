package replication

import "encoding/hex"

// emptySnapshotHex is the minimal valid empty snapshot shipped to a replica
// on FULLRESYNC, taken verbatim from original_source's get_empty_rdbfile
// (src/slave_stream.rs): a header, five aux fields, and an EOF marker with
// checksum (88 bytes once decoded).
const emptySnapshotHex = "524544495330303131fa0972656469732d76657205372e322e30fa0a72656469732d62697473c040fa056374696d65c26d08bc65fa08757365642d6d656dc2b0c41000fa08616f662d62617365c000fff06e3bfec0ff5aa2"

// EmptySnapshot returns the decoded bytes of the minimal empty snapshot.
func EmptySnapshot() []byte {
	b, err := hex.DecodeString(emptySnapshotHex)
	if err != nil {
		panic("replication: invalid embedded snapshot hex: " + err.Error())
	}
	return b
}
