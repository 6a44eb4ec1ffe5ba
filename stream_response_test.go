package cats_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cifrazia/cats"
	"github.com/cifrazia/cats/codec"
)

// readStreamResponse reads one 0x01 StreamRequest frame and reassembles its
// chunks: a header chunk (the message-header JSON followed by "\x00\x00",
// compressed like every other chunk), then the data chunks in order, then a
// terminating zero-length chunk.
func (c *testClient) readStreamResponse(t *testing.T) (messageID uint16, headers []byte, body []byte) {
	t.Helper()
	frameType, err := c.r.ReadU8()
	require.NoError(t, err)
	require.Equal(t, byte(0x01), frameType)

	_, err = c.r.ReadU16() // handler_id
	require.NoError(t, err)
	messageID, err = c.r.ReadU16()
	require.NoError(t, err)
	_, err = c.r.ReadU64() // send_time
	require.NoError(t, err)
	_, err = c.r.ReadU8() // data_type
	require.NoError(t, err)
	rawComp, err := c.r.ReadU8()
	require.NoError(t, err)
	comp := codec.Compression(rawComp)

	first := true
	for {
		chunkLen, err := c.r.ReadU32()
		require.NoError(t, err)
		if chunkLen == 0 {
			break
		}
		raw, err := c.r.ReadExact(int(chunkLen))
		require.NoError(t, err)
		plain, err := codec.Decompress(comp, raw)
		require.NoError(t, err)
		if first {
			first = false
			headers = plain
			continue
		}
		body = append(body, plain...)
	}
	return messageID, headers, body
}

func TestStreamResponse_GzipChunksReassemble(t *testing.T) {
	router := cats.NewRouter()
	router.Register(0, 0, -1, func(_ context.Context, req *cats.Request) (*cats.Response, error) {
		chunks := [][]byte{[]byte("hel"), []byte("lo wo"), []byte("rld!")}
		i := 0
		next := func() ([]byte, error) {
			if i >= len(chunks) {
				return nil, cats.ErrStreamDone
			}
			c := chunks[i]
			i++
			return c, nil
		}
		return cats.NewStreamResponse(codec.Binary, codec.CompressionGzip, next), nil
	})

	addr := startServer(t, router)
	client := dialClient(t, addr)
	defer client.conn.Close()

	client.sendRequest(t, 0, 9, `{}`)
	messageID, headers, body := client.readStreamResponse(t)

	require.Equal(t, uint16(9), messageID)
	require.Equal(t, []byte("{\"Status\":200}\x00\x00"), headers)
	require.Equal(t, "hello world!", string(body))
}
