package handshake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func digestFor(secret []byte, bucket int64) string {
	sum := sha256.Sum256(append(append([]byte{}, secret...), []byte(strconv.FormatInt(bucket, 10))...))
	return hex.EncodeToString(sum[:])
}

func TestSHA256TimeHandshake_AcceptsValidDigest(t *testing.T) {
	secret := []byte("s3cr3t")
	h := NewSHA256TimeHandshake(secret, 1, time.Second)
	fixedNow := time.Unix(1_700_000_000, 0)
	h.now = func() time.Time { return fixedNow }

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	bucket := (fixedNow.Unix() / 10) * 10
	digest := digestFor(secret, bucket)

	errCh := make(chan error, 1)
	go func() { errCh <- h.Perform(context.Background(), server) }()

	_, err := client.Write([]byte(digest))
	require.NoError(t, err)

	reply := make([]byte, 1)
	_, err = client.Read(reply)
	require.NoError(t, err)
	require.Equal(t, byte(0x01), reply[0])
	require.NoError(t, <-errCh)
}

func TestSHA256TimeHandshake_RejectsWrongDigest(t *testing.T) {
	h := NewSHA256TimeHandshake([]byte("s3cr3t"), 1, time.Second)
	h.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- h.Perform(context.Background(), server) }()

	_, err := client.Write([]byte(digestFor([]byte("wrong"), 1_700_000_000)))
	require.NoError(t, err)

	reply := make([]byte, 1)
	_, err = client.Read(reply)
	require.NoError(t, err)
	require.Equal(t, byte(0x00), reply[0])
	require.ErrorIs(t, <-errCh, ErrDigestMismatch)
}

func TestSHA256TimeHandshake_AcceptsWithinValidWindow(t *testing.T) {
	secret := []byte("s3cr3t")
	h := NewSHA256TimeHandshake(secret, 2, time.Second)
	fixedNow := time.Unix(1_700_000_000, 0)
	h.now = func() time.Time { return fixedNow }

	bucket := (fixedNow.Unix()/10)*10 - 20 // 2 buckets behind, within valid_window=2
	digest := digestFor(secret, bucket)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- h.Perform(context.Background(), server) }()

	_, err := client.Write([]byte(digest))
	require.NoError(t, err)

	reply := make([]byte, 1)
	_, err = client.Read(reply)
	require.NoError(t, err)
	require.Equal(t, byte(0x01), reply[0])
	require.NoError(t, <-errCh)
}
