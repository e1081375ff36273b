package ringbuffer

import (
	"testing"

	"github.com/corten/mediaengine/internal/mediaerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	r := New(8)
	n, err := r.Write([]byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, r.Available())

	dst := make([]byte, 4)
	n, err = r.Read(dst)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "abcd", string(dst))
	assert.Equal(t, 0, r.Available())
}

func TestWraparound(t *testing.T) {
	r := New(4)
	_, err := r.Write([]byte("ab"))
	require.NoError(t, err)
	dst := make([]byte, 2)
	_, err = r.Read(dst)
	require.NoError(t, err)

	_, err = r.Write([]byte("cdef"[:2]))
	require.NoError(t, err)
	_, err = r.Write([]byte("gh"))
	require.NoError(t, err)

	out := make([]byte, 4)
	n, err := r.Read(out)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestFullReturnsBufferFull(t *testing.T) {
	r := New(2)
	_, err := r.Write([]byte("ab"))
	require.NoError(t, err)
	_, err = r.Write([]byte("c"))
	assert.ErrorIs(t, err, mediaerr.ErrBufferFull)
}

func TestEmptyReturnsBufferEmpty(t *testing.T) {
	r := New(2)
	_, err := r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, mediaerr.ErrBufferEmpty)
}

func TestPartialWriteWhenNotEnoughRoom(t *testing.T) {
	r := New(4)
	n, err := r.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = r.Write([]byte("xy"))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only 1 byte of free space should be consumed")
}

func TestMultiCycleReadWrite(t *testing.T) {
	r := New(3)
	for i := 0; i < 10; i++ {
		_, err := r.Write([]byte{byte(i)})
		require.NoError(t, err)
		out := make([]byte, 1)
		_, err = r.Read(out)
		require.NoError(t, err)
		assert.Equal(t, byte(i), out[0])
	}
}
