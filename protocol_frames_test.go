package cats_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cifrazia/cats"
	"github.com/cifrazia/cats/internal/wire"
)

func TestPing_EchoesTimestamp(t *testing.T) {
	router := cats.NewRouter()
	addr := startServer(t, router)
	client := dialClient(t, addr)
	defer client.conn.Close()

	require.NoError(t, client.w.WriteU8(0xFF))
	require.NoError(t, client.w.WriteU64(123456789))

	frameType, err := client.r.ReadU8()
	require.NoError(t, err)
	require.Equal(t, byte(0xFF), frameType)
	ts, err := client.r.ReadU64()
	require.NoError(t, err)
	require.Equal(t, uint64(123456789), ts)
}

func TestCancelInput_ResolvesPendingAwaitWithCancellation(t *testing.T) {
	router := cats.NewRouter()
	handlerErrCh := make(chan error, 1)
	router.Register(0, 0, -1, func(ctx context.Context, req *cats.Request) (*cats.Response, error) {
		_, err := req.Input(ctx, map[string]any{"q": 1})
		handlerErrCh <- err
		if err != nil {
			return cats.NewResponse(nil).WithStatus(499), nil
		}
		return cats.NewResponse(nil), nil
	})

	addr := startServer(t, router)
	client := dialClient(t, addr)
	defer client.conn.Close()

	client.sendRequest(t, 0, 9, `{}`)
	prompt := client.readFrame(t)
	require.Equal(t, byte(0x02), prompt.frameType)

	require.NoError(t, client.w.WriteU8(0x06))
	require.NoError(t, client.w.WriteU16(9))

	select {
	case err := <-handlerErrCh:
		require.ErrorIs(t, err, cats.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for handler to observe cancellation")
	}
	client.readFrame(t) // final response
}

func TestDownloadSpeed_RejectsOutOfRangeValue(t *testing.T) {
	router := cats.NewRouter()
	addr := startServer(t, router)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	w := wire.NewWriter(conn)
	r := wire.NewReader(conn)
	require.NoError(t, w.WriteU32(1))
	_, err = r.ReadU64()
	require.NoError(t, err)

	require.NoError(t, w.WriteU8(0x05))
	require.NoError(t, w.WriteU32(1)) // below MinDownloadSpeed

	_, err = r.ReadU8()
	require.Error(t, err) // connection closed on protocol error
}
