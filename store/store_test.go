package store

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryInsertAssignsSequentialIndices(t *testing.T) {
	var m Memory
	for i := range 10 {
		idx, err := m.Insert([]byte(fmt.Sprintf("rec-%d", i)))
		require.NoError(t, err)
		require.Equal(t, i, idx)
	}
	require.Equal(t, 10, m.Len())

	for i := range 10 {
		rec, ok := m.Get(i)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("rec-%d", i), string(rec))
	}
}

func TestMemoryGetOutOfRange(t *testing.T) {
	m := NewMemory(1, 4)
	_, err := m.Insert([]byte("x"))
	require.NoError(t, err)

	_, ok := m.Get(-1)
	assert.False(t, ok)
	_, ok = m.Get(1)
	assert.False(t, ok)
}

func TestMemoryEmptyRecords(t *testing.T) {
	var m Memory
	_, err := m.Insert(nil)
	require.NoError(t, err)
	_, err = m.Insert([]byte("b"))
	require.NoError(t, err)

	rec, ok := m.Get(0)
	require.True(t, ok)
	assert.Empty(t, rec)
	rec, ok = m.Get(1)
	require.True(t, ok)
	assert.Equal(t, "b", string(rec))
}

func TestMemoryGetDoesNotAliasNeighbours(t *testing.T) {
	var m Memory
	_, _ = m.Insert([]byte("aa"))
	_, _ = m.Insert([]byte("bb"))

	rec, _ := m.Get(0)
	_ = append(rec, 'X')

	next, _ := m.Get(1)
	assert.Equal(t, "bb", string(next))
}

func TestMemoryWriteToReadFrom(t *testing.T) {
	var m Memory
	for i := range 300 {
		_, err := m.Insert(bytes.Repeat([]byte{byte(i)}, i%7))
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	n, err := m.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)

	var loaded Memory
	_, err = loaded.ReadFrom(&buf)
	require.NoError(t, err)
	require.Equal(t, m.Len(), loaded.Len())
	for i := range m.Len() {
		want, _ := m.Get(i)
		got, _ := loaded.Get(i)
		require.Equal(t, want, got, "record %d", i)
	}
}

func TestReadRecordsTruncated(t *testing.T) {
	var m Memory
	_, _ = m.Insert([]byte("hello"))
	b := AppendRecords(nil, &m)

	_, _, err := ReadRecords(b[:len(b)-1], 1)
	require.ErrorIs(t, err, ErrTruncated)

	_, _, err = ReadRecords(b, 10)
	require.ErrorIs(t, err, ErrTruncated)

	got, used, err := ReadRecords(b, 1)
	require.NoError(t, err)
	require.Equal(t, len(b), used)
	require.Equal(t, 1, got.Len())
}
