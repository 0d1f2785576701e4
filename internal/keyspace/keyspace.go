// Package keyspace implements the string keyspace (C3): a key→Value map
// with millisecond-precision lazy expiration, grounded on the teacher's
// internal/storage/store.go and string_ops.go and on original_source's
// SET/GET/INCR handling in src/db.rs.
package keyspace

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"redisserver/internal/resp"
)

type entry struct {
	value     resp.Value
	expiresAt *time.Time
}

// Keyspace holds string values under a single coarse lock, per spec.md §5.
type Keyspace struct {
	mu   sync.Mutex
	data map[string]entry
}

func New() *Keyspace {
	return &Keyspace{data: make(map[string]entry)}
}

// SetOptions captures the greedily-parsed PX/EX options from SET.
type SetOptions struct {
	HasExpiry bool
	ExpiresAt time.Time
}

// Set stores value under key, overwriting any previous entry, optionally
// recording an absolute expiration time.
func (k *Keyspace) Set(key string, value string, opts SetOptions) resp.Value {
	k.mu.Lock()
	defer k.mu.Unlock()

	e := entry{value: coerce(value)}
	if opts.HasExpiry {
		t := opts.ExpiresAt
		e.expiresAt = &t
	}
	k.data[key] = e
	return resp.SimpleString("OK")
}

// coerce stores integer-parsable payloads as Integer values so INCR can
// operate on SET-created keys, per spec.md §4.2.
func coerce(s string) resp.Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return resp.Integer(n)
	}
	return resp.BulkString(s)
}

// SetRaw stores a pre-built Value directly, used by snapshot restore where
// the expiry is supplied out of band and the value is already typed.
func (k *Keyspace) SetRaw(key string, value resp.Value, expiresAt *time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = entry{value: value, expiresAt: expiresAt}
}

// Get returns the stored value coerced to BulkString text, or the null bulk
// if the key is absent or has lazily expired.
func (k *Keyspace) Get(key string) resp.Value {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.expireAndLookup(key)
	if !ok {
		return resp.NullBulk()
	}
	s, _ := e.value.AsString()
	return resp.BulkString(s)
}

// Del removes key, returning 1 if it existed (and was not already expired).
func (k *Keyspace) Del(key string) resp.Value {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.expireAndLookup(key); !ok {
		return resp.Integer(0)
	}
	delete(k.data, key)
	return resp.Integer(1)
}

// Exists reports whether key is present and unexpired.
func (k *Keyspace) Exists(key string) resp.Value {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.expireAndLookup(key); !ok {
		return resp.Integer(0)
	}
	return resp.Integer(1)
}

// Incr adds delta to the integer stored at key, creating it at delta if
// absent. Non-integer values produce the standard Redis range error.
func (k *Keyspace) Incr(key string, delta int64) resp.Value {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.expireAndLookup(key)
	if !ok {
		n := delta
		k.data[key] = entry{value: resp.Integer(n)}
		return resp.Integer(n)
	}
	if e.value.Type != resp.TypeInteger {
		return resp.Err("ERR value is not an integer or out of range")
	}
	n := e.value.Int + delta
	e.value = resp.Integer(n)
	k.data[key] = e
	return resp.Integer(n)
}

// Expire sets key's expiration to now+d, returning 1 if the key exists.
func (k *Keyspace) Expire(key string, d time.Duration) resp.Value {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.expireAndLookup(key)
	if !ok {
		return resp.Integer(0)
	}
	t := time.Now().Add(d)
	e.expiresAt = &t
	k.data[key] = e
	return resp.Integer(1)
}

// ExpireAt sets key's expiration to an absolute wall-clock instant,
// returning 1 if the key exists.
func (k *Keyspace) ExpireAt(key string, at time.Time) resp.Value {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.expireAndLookup(key)
	if !ok {
		return resp.Integer(0)
	}
	e.expiresAt = &at
	k.data[key] = e
	return resp.Integer(1)
}

// TTL returns remaining seconds, -1 if the key has no expiry, -2 if absent.
func (k *Keyspace) TTL(key string) resp.Value {
	return k.ttl(key, time.Second)
}

// PTTL is TTL with millisecond resolution.
func (k *Keyspace) PTTL(key string) resp.Value {
	return k.ttl(key, time.Millisecond)
}

func (k *Keyspace) ttl(key string, unit time.Duration) resp.Value {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.expireAndLookup(key)
	if !ok {
		return resp.Integer(-2)
	}
	if e.expiresAt == nil {
		return resp.Integer(-1)
	}
	remaining := time.Until(*e.expiresAt)
	if remaining < 0 {
		remaining = 0
	}
	return resp.Integer(int64(remaining / unit))
}

// Type returns "string" or "none" for this keyspace; the dispatcher
// combines this with the streams engine to also report "stream".
func (k *Keyspace) Type(key string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.expireAndLookup(key); !ok {
		return "", false
	}
	return "string", true
}

// Keys returns all non-expired keys matching pattern, where * and ? are
// wildcards and all other glob metacharacters are treated as literal
// characters, per spec.md §4.2. A pattern with no wildcard is a literal
// single-key lookup: it returns a single-element BulkString if the key is
// present, else an empty Array, rather than the usual array-of-keys shape.
func (k *Keyspace) Keys(pattern string) resp.Value {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !strings.ContainsAny(pattern, "*?") {
		if _, ok := k.expireAndLookup(pattern); ok {
			return resp.BulkString(pattern)
		}
		return resp.Array()
	}

	g, err := compileLiteralGlob(pattern)
	if err != nil {
		return resp.Array()
	}

	now := time.Now()
	keys := make([]resp.Value, 0, len(k.data))
	for key, e := range k.data {
		if e.expiresAt != nil && !now.Before(*e.expiresAt) {
			continue
		}
		if g.Match(key) {
			keys = append(keys, resp.BulkString(key))
		}
	}
	return resp.Array(keys...)
}

// FlushAll removes every key.
func (k *Keyspace) FlushAll() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data = make(map[string]entry)
}

// Snapshot returns a point-in-time copy of all non-expired keys and values.
func (k *Keyspace) Snapshot() map[string]resp.Value {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	out := make(map[string]resp.Value, len(k.data))
	for key, e := range k.data {
		if e.expiresAt != nil && !now.Before(*e.expiresAt) {
			continue
		}
		out[key] = e.value
	}
	return out
}

// expireAndLookup performs lazy eviction: if key exists but its expiry has
// passed, it is removed and treated as absent. Caller must hold k.mu.
func (k *Keyspace) expireAndLookup(key string) (entry, bool) {
	e, ok := k.data[key]
	if !ok {
		return entry{}, false
	}
	if e.expiresAt != nil && !time.Now().Before(*e.expiresAt) {
		delete(k.data, key)
		return entry{}, false
	}
	return e, true
}

// compileLiteralGlob builds a glob.Glob where only '*' and '?' act as
// wildcards; every other glob-special character (`[`, `]`, `{`, `}`, `\`)
// is escaped so it matches itself literally.
func compileLiteralGlob(pattern string) (glob.Glob, error) {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*', '?':
			b.WriteRune(r)
		case '\\', '[', ']', '{', '}':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return glob.Compile(b.String())
}
