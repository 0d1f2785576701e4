package streams

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddExplicitIDMustIncrease(t *testing.T) {
	e := NewEngine()
	id1, err := e.Add("s", "5-1", nil)
	require.NoError(t, err)
	assert.Equal(t, ID{5, 1}, id1)

	_, err = e.Add("s", "5-1", nil)
	assert.Error(t, err)

	_, err = e.Add("s", "4-9", nil)
	assert.Error(t, err)

	id2, err := e.Add("s", "5-2", nil)
	require.NoError(t, err)
	assert.Equal(t, ID{5, 2}, id2)
}

func TestAddRejectsZeroZero(t *testing.T) {
	e := NewEngine()
	_, err := e.Add("s", "0-0", nil)
	assert.Error(t, err)
}

func TestAddAutoSeqWithinSameMillisecond(t *testing.T) {
	e := NewEngine()
	id1, err := e.Add("s", "100-*", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id1.Seq)

	id2, err := e.Add("s", "100-*", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id2.Seq)
}

func TestAddAutoSeqMillisecondZeroStartsAtOne(t *testing.T) {
	e := NewEngine()
	id, err := e.Add("s", "0-*", nil)
	require.NoError(t, err)
	assert.Equal(t, ID{0, 1}, id)
}

func TestAddFullyAutoUsesClock(t *testing.T) {
	restore := nowMillis
	nowMillis = func() uint64 { return 12345 }
	defer func() { nowMillis = restore }()

	e := NewEngine()
	id, err := e.Add("s", "*", []Field{{Key: "k", Value: "v"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), id.Ms)
}

func TestRangeInclusiveBounds(t *testing.T) {
	e := NewEngine()
	_, _ = e.Add("s", "1-1", []Field{{Key: "a", Value: "1"}})
	_, _ = e.Add("s", "2-1", []Field{{Key: "a", Value: "2"}})
	_, _ = e.Add("s", "3-1", []Field{{Key: "a", Value: "3"}})

	entries, err := e.Range("s", "-", "+")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	entries, err = e.Range("s", "2", "2")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ID{2, 1}, entries[0].ID)
}

func TestReadOnceReturnsOnlyNewEntries(t *testing.T) {
	e := NewEngine()
	id1, _ := e.Add("s", "1-1", nil)
	_, _ = e.Add("s", "2-1", nil)

	results := e.ReadOnce([]string{"s"}, []ID{id1})
	require.Len(t, results, 1)
	assert.Len(t, results[0].Entries, 1)
	assert.Equal(t, ID{2, 1}, results[0].Entries[0].ID)
}

func TestReadOnceReturnsOnlyTheMinimumQualifyingEntry(t *testing.T) {
	e := NewEngine()
	id1, _ := e.Add("s", "1-1", nil)
	_, _ = e.Add("s", "2-1", nil)
	_, _ = e.Add("s", "3-1", nil)

	results := e.ReadOnce([]string{"s"}, []ID{id1})
	require.Len(t, results, 1)
	require.Len(t, results[0].Entries, 1)
	assert.Equal(t, ID{2, 1}, results[0].Entries[0].ID)
}

func TestBlockingReadTimesOutWithNilResult(t *testing.T) {
	e := NewEngine()
	results, err := e.BlockingRead(context.Background(), []string{"s"}, []ID{zeroID}, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestBlockingReadWakesOnNewEntry(t *testing.T) {
	e := NewEngine()
	last := e.LastID("s")

	go func() {
		time.Sleep(40 * time.Millisecond)
		_, _ = e.Add("s", "*", []Field{{Key: "k", Value: "v"}})
	}()

	results, err := e.BlockingRead(context.Background(), []string{"s"}, []ID{last}, time.Second)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Entries, 1)
}
