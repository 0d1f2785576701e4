// Package snapshot loads the binary RDB-like file format described by
// spec.md §4.4: a simplified single-db snapshot, grounded on the teacher's
// internal/rdb reader but with the teacher's classic 6/14/32-bit RDB length
// scheme replaced by the spec's single-byte-plus-inline-int encoding.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	opAux          = 0xFA
	opSelectDB     = 0xFE
	opResizeDB     = 0xFB
	opExpireMS     = 0xFC
	opExpireSec    = 0xFD
	opEOF          = 0xFF
	typeStringByte = 0x00
)

var magic = []byte("REDIS")

// StringEntry is one key/value/expiry record recovered from the file, ready
// for replay into the keyspace.
type StringEntry struct {
	Key       string
	Value     string
	IsInteger bool
	ExpiresAt *time.Time
}

// Result is everything extracted from a snapshot file.
type Result struct {
	Version string
	Aux     map[string]string
	Strings []StringEntry
}

// Load reads and parses the snapshot file at path. A missing file is not an
// error — spec.md §4.4 treats startup with no snapshot as "start empty" —
// and is reported via ok=false with a nil error.
func Load(path string, log *logrus.Logger) (*Result, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	result, err := parse(r, log)
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

func parse(r *bufio.Reader, log *logrus.Logger) (*Result, error) {
	header := make([]byte, 9)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("snapshot: short header: %w", err)
	}
	if string(header[:5]) != string(magic) {
		return nil, fmt.Errorf("snapshot: bad magic %q", header[:5])
	}

	result := &Result{Version: string(header[5:9]), Aux: make(map[string]string)}

	var pendingExpiry *time.Time
	for {
		op, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("snapshot: truncated before EOF marker: %w", err)
		}

		switch op {
		case opEOF:
			checksum := make([]byte, 8)
			if _, err := io.ReadFull(r, checksum); err != nil {
				return nil, fmt.Errorf("snapshot: short checksum: %w", err)
			}
			return result, nil

		case opAux:
			key, err := readString(r)
			if err != nil {
				return nil, fmt.Errorf("snapshot: aux key: %w", err)
			}
			val, _, err := readStringValue(r)
			if err != nil {
				return nil, fmt.Errorf("snapshot: aux value: %w", err)
			}
			result.Aux[key] = val

		case opSelectDB:
			if _, err := r.ReadByte(); err != nil {
				return nil, fmt.Errorf("snapshot: db index: %w", err)
			}

		case opResizeDB:
			if _, err := r.ReadByte(); err != nil { // hash size
				return nil, fmt.Errorf("snapshot: resizedb hash size: %w", err)
			}
			if _, err := r.ReadByte(); err != nil { // expire size
				return nil, fmt.Errorf("snapshot: resizedb expire size: %w", err)
			}

		case opExpireMS:
			raw := make([]byte, 8)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, fmt.Errorf("snapshot: ms expiry: %w", err)
			}
			ms := binary.LittleEndian.Uint64(raw)
			t := time.UnixMilli(int64(ms))
			pendingExpiry = &t
			entry, err := readEntry(r, pendingExpiry)
			if err != nil {
				return nil, err
			}
			result.Strings = append(result.Strings, entry)
			pendingExpiry = nil

		case opExpireSec:
			raw := make([]byte, 4)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, fmt.Errorf("snapshot: sec expiry: %w", err)
			}
			secs := binary.LittleEndian.Uint32(raw)
			t := time.Unix(int64(secs), 0)
			pendingExpiry = &t
			entry, err := readEntry(r, pendingExpiry)
			if err != nil {
				return nil, err
			}
			result.Strings = append(result.Strings, entry)
			pendingExpiry = nil

		case typeStringByte:
			entry, err := readKeyValue(r, nil)
			if err != nil {
				return nil, err
			}
			result.Strings = append(result.Strings, entry)

		default:
			if log != nil {
				log.WithField("opcode", fmt.Sprintf("0x%02X", op)).Warn("snapshot: unknown opcode, stopping load best-effort")
			}
			return result, nil
		}
	}
}

// readEntry consumes the type byte that follows an expiry marker (spec.md
// §4.4: "0xFC <...> then 0x00 <key> <value>") and the key/value pair.
func readEntry(r *bufio.Reader, expiresAt *time.Time) (StringEntry, error) {
	typ, err := r.ReadByte()
	if err != nil {
		return StringEntry{}, fmt.Errorf("snapshot: entry type: %w", err)
	}
	if typ != typeStringByte {
		return StringEntry{}, fmt.Errorf("snapshot: unsupported value type 0x%02X", typ)
	}
	return readKeyValue(r, expiresAt)
}

func readKeyValue(r *bufio.Reader, expiresAt *time.Time) (StringEntry, error) {
	key, err := readString(r)
	if err != nil {
		return StringEntry{}, fmt.Errorf("snapshot: key: %w", err)
	}
	val, isInt, err := readStringValue(r)
	if err != nil {
		return StringEntry{}, fmt.Errorf("snapshot: value: %w", err)
	}
	return StringEntry{Key: key, Value: val, IsInteger: isInt, ExpiresAt: expiresAt}, nil
}

func readString(r *bufio.Reader) (string, error) {
	s, _, err := readStringValue(r)
	return s, err
}

// readStringValue reads one length-prefixed string, per spec.md §4.4:
// lengths <= 0xBF are a direct byte count; 0xC0/0xC1/0xC2/0xC3 instead
// encode an inline little-endian integer of 1/2/4/8 bytes, decoded here to
// its decimal text form and flagged via isInteger.
func readStringValue(r *bufio.Reader) (string, bool, error) {
	lenByte, err := r.ReadByte()
	if err != nil {
		return "", false, err
	}

	switch lenByte {
	case 0xC0:
		b, err := r.ReadByte()
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("%d", int8(b)), true, nil
	case 0xC1:
		raw := make([]byte, 2)
		if _, err := io.ReadFull(r, raw); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("%d", int16(binary.LittleEndian.Uint16(raw))), true, nil
	case 0xC2:
		raw := make([]byte, 4)
		if _, err := io.ReadFull(r, raw); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("%d", int32(binary.LittleEndian.Uint32(raw))), true, nil
	case 0xC3:
		raw := make([]byte, 8)
		if _, err := io.ReadFull(r, raw); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("%d", int64(binary.LittleEndian.Uint64(raw))), true, nil
	}

	if lenByte > 0xBF {
		return "", false, fmt.Errorf("snapshot: unsupported length byte 0x%02X", lenByte)
	}

	buf := make([]byte, lenByte)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", false, err
	}
	return string(buf), false, nil
}
