package preview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ChunkedRoundTrip(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Start("a", 2, 2))

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	require.NoError(t, s.Append("a", data[:6]))
	require.NoError(t, s.Append("a", data[6:]))

	buf, err := s.Finish("a")
	require.NoError(t, err)
	assert.Equal(t, data, buf.Data)
	assert.Equal(t, len(data), buf.ExpectedLen)
}

func TestStore_SingleAppendSameBytes(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	s1 := NewStore()
	require.NoError(t, s1.Start("a", 2, 2))
	require.NoError(t, s1.Append("a", data[:6]))
	require.NoError(t, s1.Append("a", data[6:]))
	buf1, err := s1.Finish("a")
	require.NoError(t, err)

	s2 := NewStore()
	require.NoError(t, s2.Start("b", 2, 2))
	require.NoError(t, s2.Append("b", data))
	buf2, err := s2.Finish("b")
	require.NoError(t, err)

	assert.Equal(t, buf1.Data, buf2.Data)
}

func TestStore_FinishThenAppendFailsNotFound(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Start("a", 2, 2))
	require.NoError(t, s.Append("a", make([]byte, 16)))
	_, err := s.Finish("a")
	require.NoError(t, err)

	err = s.Append("a", []byte{1})
	assert.Error(t, err)

	_, err = s.Finish("a")
	assert.Error(t, err)
}

func TestStore_Overflow(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Start("a", 2, 2))
	err := s.Append("a", make([]byte, 17))
	assert.Error(t, err)

	// the overflowing entry is removed
	err = s.Append("a", make([]byte, 1))
	assert.Error(t, err)
}

func TestStore_DuplicateStartFails(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Start("a", 2, 2))
	assert.Error(t, s.Start("a", 2, 2))
}

func TestStore_Discard(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Start("a", 2, 2))
	s.Discard("a")
	_, err := s.Finish("a")
	assert.Error(t, err)
}

func TestStore_PruneStale(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Start("a", 2, 2))
	s.buffers["a"].lastUpdated = time.Now().Add(-TTL - time.Second)

	require.NoError(t, s.Start("b", 2, 2))
	_, ok := s.buffers["a"]
	assert.False(t, ok, "stale entry should be pruned on the next start")
}

func TestStore_InvalidDimensions(t *testing.T) {
	s := NewStore()
	assert.Error(t, s.Start("a", 1, 1))
}
