package keyspace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redisserver/internal/resp"
)

func TestSetGetRoundTrip(t *testing.T) {
	k := New()
	k.Set("foo", "bar", SetOptions{})
	got := k.Get("foo")
	s, ok := got.AsString()
	require.True(t, ok)
	assert.Equal(t, "bar", s)
}

func TestGetMissingReturnsNullBulk(t *testing.T) {
	k := New()
	got := k.Get("nope")
	assert.Equal(t, resp.TypeBulkString, got.Type)
	assert.True(t, got.IsNil)
}

func TestSetWithExpiryThenLazyExpire(t *testing.T) {
	k := New()
	k.Set("foo", "bar", SetOptions{HasExpiry: true, ExpiresAt: time.Now().Add(-time.Second)})
	got := k.Get("foo")
	assert.True(t, got.IsNil)
	assert.Equal(t, resp.Integer(0), k.Exists("foo"))
}

func TestIncrCreatesAndAccumulates(t *testing.T) {
	k := New()
	assert.Equal(t, resp.Integer(1), k.Incr("counter", 1))
	assert.Equal(t, resp.Integer(3), k.Incr("counter", 2))
	assert.Equal(t, resp.Integer(2), k.Incr("counter", -1))
}

func TestIncrOnNonIntegerErrors(t *testing.T) {
	k := New()
	k.Set("foo", "bar", SetOptions{})
	got := k.Incr("foo", 1)
	assert.Equal(t, resp.TypeError, got.Type)
}

func TestDelAndExists(t *testing.T) {
	k := New()
	k.Set("foo", "bar", SetOptions{})
	assert.Equal(t, resp.Integer(1), k.Exists("foo"))
	assert.Equal(t, resp.Integer(1), k.Del("foo"))
	assert.Equal(t, resp.Integer(0), k.Del("foo"))
	assert.Equal(t, resp.Integer(0), k.Exists("foo"))
}

func TestTTLStates(t *testing.T) {
	k := New()
	assert.Equal(t, resp.Integer(-2), k.TTL("missing"))

	k.Set("foo", "bar", SetOptions{})
	assert.Equal(t, resp.Integer(-1), k.TTL("foo"))

	k.Set("baz", "qux", SetOptions{HasExpiry: true, ExpiresAt: time.Now().Add(10 * time.Second)})
	got := k.TTL("baz")
	require.Equal(t, resp.TypeInteger, got.Type)
	assert.True(t, got.Int > 0 && got.Int <= 10)
}

func TestExpireSetsExpiry(t *testing.T) {
	k := New()
	k.Set("foo", "bar", SetOptions{})
	assert.Equal(t, resp.Integer(1), k.Expire("foo", 100*time.Millisecond))
	assert.Equal(t, resp.Integer(0), k.Expire("missing", time.Second))
}

func TestKeysLiteralBracketsAndWildcards(t *testing.T) {
	k := New()
	k.Set("foo:1", "a", SetOptions{})
	k.Set("foo:2", "b", SetOptions{})
	k.Set("bar", "c", SetOptions{})
	k.Set("weird[1]", "d", SetOptions{})

	got := k.Keys("foo:*")
	require.Len(t, got.Array, 2)

	got = k.Keys("*")
	require.Len(t, got.Array, 4)

	// "weird[1]" has no * or ?, so it's a literal single-key lookup rather
	// than a glob: it returns the key itself as a BulkString, not an array.
	got = k.Keys("weird[1]")
	require.Equal(t, resp.TypeBulkString, got.Type)
	s, ok := got.AsString()
	require.True(t, ok)
	assert.Equal(t, "weird[1]", s)

	got = k.Keys("missing[literal]")
	assert.Equal(t, resp.TypeArray, got.Type)
	assert.Len(t, got.Array, 0)
}

func TestFlushAll(t *testing.T) {
	k := New()
	k.Set("foo", "bar", SetOptions{})
	k.FlushAll()
	assert.Equal(t, resp.Integer(0), k.Exists("foo"))
}

func TestTypeReportsStringOrAbsent(t *testing.T) {
	k := New()
	_, ok := k.Type("missing")
	assert.False(t, ok)

	k.Set("foo", "bar", SetOptions{})
	typ, ok := k.Type("foo")
	assert.True(t, ok)
	assert.Equal(t, "string", typ)
}
