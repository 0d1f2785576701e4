package snapshot

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lengthPrefixed(s string) []byte {
	return append([]byte{byte(len(s))}, []byte(s)...)
}

func buildSnapshot(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("REDIS0011")

	buf.WriteByte(opAux)
	buf.Write(lengthPrefixed("redis-ver"))
	buf.Write(lengthPrefixed("7.2.0"))

	buf.WriteByte(opSelectDB)
	buf.WriteByte(0x00)

	buf.WriteByte(opResizeDB)
	buf.WriteByte(0x02)
	buf.WriteByte(0x01)

	// plain string entry
	buf.WriteByte(typeStringByte)
	buf.Write(lengthPrefixed("foo"))
	buf.Write(lengthPrefixed("bar"))

	// entry with ms expiry
	buf.WriteByte(opExpireMS)
	buf.Write([]byte{0xE8, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}) // 1000ms
	buf.WriteByte(typeStringByte)
	buf.Write(lengthPrefixed("baz"))
	buf.Write(lengthPrefixed("qux"))

	// integer-valued entry using inline int encoding (0xC0, 1 byte)
	buf.WriteByte(typeStringByte)
	buf.Write(lengthPrefixed("counter"))
	buf.WriteByte(0xC0)
	buf.WriteByte(42)

	buf.WriteByte(opEOF)
	buf.Write(make([]byte, 8))

	return buf.Bytes()
}

func TestParseSnapshotRoundTrip(t *testing.T) {
	data := buildSnapshot(t)
	r := bufio.NewReader(bytes.NewReader(data))

	result, err := parse(r, logrus.New())
	require.NoError(t, err)

	assert.Equal(t, "0011", result.Version)
	assert.Equal(t, "7.2.0", result.Aux["redis-ver"])
	require.Len(t, result.Strings, 3)

	assert.Equal(t, "foo", result.Strings[0].Key)
	assert.Equal(t, "bar", result.Strings[0].Value)
	assert.Nil(t, result.Strings[0].ExpiresAt)

	assert.Equal(t, "baz", result.Strings[1].Key)
	require.NotNil(t, result.Strings[1].ExpiresAt)
	assert.Equal(t, int64(1000), result.Strings[1].ExpiresAt.UnixMilli())

	assert.Equal(t, "counter", result.Strings[2].Key)
	assert.Equal(t, "42", result.Strings[2].Value)
	assert.True(t, result.Strings[2].IsInteger)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	result, ok, err := Load(filepath.Join(t.TempDir(), "missing.rdb"), logrus.New())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, result)
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.rdb")
	require.NoError(t, os.WriteFile(path, buildSnapshot(t), 0o644))

	result, ok, err := Load(path, logrus.New())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, result.Strings, 3)
}
