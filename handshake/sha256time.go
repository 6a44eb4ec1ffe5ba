package handshake

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ErrDigestMismatch is returned by SHA256TimeHandshake when the peer's
// digest does not match any candidate within the configured window.
var ErrDigestMismatch = errors.New("handshake: digest mismatch")

const digestHexLen = sha256.Size * 2 // 64 hex characters

// SHA256TimeHandshake is the bundled default Plugin (spec.md §4.5): the
// peer proves knowledge of a pre-shared secret by sending
// hex(sha256(secret ∥ time_bucket)) for some time_bucket within
// validWindow*10 seconds of now.
//
// This is the later, byte-reply revision pinned by spec.md §9 open
// question (a): accept writes 0x01, reject writes 0x00 before the
// connection is closed by the caller.
type SHA256TimeHandshake struct {
	secret      []byte
	validWindow int
	timeout     time.Duration

	// now is overridable for tests; defaults to time.Now.
	now func() time.Time
}

// NewSHA256TimeHandshake builds the default handshake plugin. validWindow is
// the number of ±10-second buckets tolerated for clock skew; timeout bounds
// the whole exchange.
func NewSHA256TimeHandshake(secret []byte, validWindow int, timeout time.Duration) *SHA256TimeHandshake {
	return &SHA256TimeHandshake{secret: secret, validWindow: validWindow, timeout: timeout, now: time.Now}
}

// Perform implements Plugin.
func (h *SHA256TimeHandshake) Perform(ctx context.Context, conn Conn) error {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	digestCh := make(chan []byte, 1)
	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, digestHexLen)
		if _, err := io.ReadFull(conn, buf); err != nil {
			errCh <- err
			return
		}
		digestCh <- buf
	}()

	var peer []byte
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	case peer = <-digestCh:
	}

	bucket := (h.now().Unix() / 10) * 10
	ok := false
	for offset := -h.validWindow; offset <= h.validWindow; offset++ {
		candidate := h.digest(bucket + int64(offset)*10)
		if subtle.ConstantTimeCompare(candidate, peer) == 1 {
			ok = true
			break
		}
	}

	if !ok {
		_, _ = conn.Write([]byte{0x00})
		return fmt.Errorf("%w", ErrDigestMismatch)
	}
	_, err := conn.Write([]byte{0x01})
	return err
}

func (h *SHA256TimeHandshake) digest(bucket int64) []byte {
	sum := sha256.Sum256(append(append([]byte{}, h.secret...), []byte(strconv.FormatInt(bucket, 10))...))
	out := make([]byte, digestHexLen)
	hex.Encode(out, sum[:])
	return out
}
