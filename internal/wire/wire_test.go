package wire_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cifrazia/cats/internal/wire"
)

func TestReaderWriter_IntegerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	require.NoError(t, w.WriteU8(0xAB))
	require.NoError(t, w.WriteU16(0x1234))
	require.NoError(t, w.WriteU32(0x89ABCDEF))
	require.NoError(t, w.WriteU64(0x0102030405060708))
	require.NoError(t, w.WriteAll([]byte("payload")))

	r := wire.NewReader(&buf)
	u8, err := r.ReadU8()
	require.NoError(t, err)
	require.Equal(t, uint8(0xAB), u8)

	u16, err := r.ReadU16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), u16)

	u32, err := r.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(0x89ABCDEF), u32)

	u64, err := r.ReadU64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), u64)

	rest, err := r.ReadExact(len("payload"))
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), rest)
}

func TestReader_ReadUntil_FindsSeparator(t *testing.T) {
	buf := bytes.NewBufferString("{}\x00\x00rest-of-payload")
	r := wire.NewReader(buf)

	headers, err := r.ReadUntil([]byte{0x00, 0x00}, buf.Len())
	require.NoError(t, err)
	require.Equal(t, []byte("{}"), headers)
}

func TestReader_ReadUntil_ErrorsWhenSeparatorMissingWithinLimit(t *testing.T) {
	buf := bytes.NewBufferString("no separator here")
	r := wire.NewReader(buf)

	_, err := r.ReadUntil([]byte{0x00, 0x00}, 5)
	require.ErrorIs(t, err, wire.ErrSeparatorNotFound)
}

func TestRateLimitedWriter_ZeroLimitIsUnthrottled(t *testing.T) {
	var buf bytes.Buffer
	rw := wire.NewRateLimitedWriter(context.Background(), &buf)
	n, err := rw.Write(bytes.Repeat([]byte{1}, 1<<20))
	require.NoError(t, err)
	require.Equal(t, 1<<20, n)
}

func TestRateLimitedWriter_ThrottlesToConfiguredRate(t *testing.T) {
	var buf bytes.Buffer
	rw := wire.NewRateLimitedWriter(context.Background(), &buf)
	rw.SetLimit(4096)

	start := time.Now()
	_, err := rw.Write(bytes.Repeat([]byte{1}, 4096*3))
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 1500*time.Millisecond)
}
