package wire

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// chunkSize bounds how much of a single Write is admitted to the limiter at
// once, so a large write doesn't block in one enormous WaitN call and can
// still be throttled smoothly across several one-second windows.
const chunkSize = 4096

// RateLimitedWriter throttles writes to an average of Limit bytes/sec using
// a token bucket (golang.org/x/time/rate), the same library and WaitN usage
// docker-compose's progress reader applies to download progress metering.
// A Limit of 0 disables throttling entirely (spec.md §3, DownloadSpeed=0).
type RateLimitedWriter struct {
	w     io.Writer
	ctx   context.Context
	lim   *rate.Limiter
	burst int
}

// NewRateLimitedWriter wraps w. ctx bounds WaitN calls so a connection close
// unblocks any in-progress throttled write.
func NewRateLimitedWriter(ctx context.Context, w io.Writer) *RateLimitedWriter {
	return &RateLimitedWriter{w: w, ctx: ctx}
}

// SetLimit changes the throttling rate in bytes/sec. 0 disables throttling.
func (rw *RateLimitedWriter) SetLimit(bytesPerSec uint32) {
	if bytesPerSec == 0 {
		rw.lim = nil
		rw.burst = 0
		return
	}
	burst := int(bytesPerSec)
	if burst > chunkSize {
		burst = chunkSize
	}
	rw.burst = burst
	if rw.lim == nil {
		rw.lim = rate.NewLimiter(rate.Limit(bytesPerSec), burst)
		return
	}
	rw.lim.SetLimit(rate.Limit(bytesPerSec))
	rw.lim.SetBurst(burst)
}

// Write implements io.Writer, admitting bytes through the limiter in slices
// no larger than the limiter's own burst so WaitN never rejects a chunk as
// exceeding it (x/time/rate.WaitN requires n<=burst), while still chunking
// at chunkSize when burst is larger (spec.md §4.1 scenario 6 pins limit=1024,
// below chunkSize). The limit is advisory: Write never drops bytes, it only
// delays them.
func (rw *RateLimitedWriter) Write(p []byte) (int, error) {
	if rw.lim == nil {
		return rw.w.Write(p)
	}
	step := chunkSize
	if rw.burst < step {
		step = rw.burst
	}
	var written int
	for len(p) > 0 {
		n := len(p)
		if n > step {
			n = step
		}
		if err := rw.lim.WaitN(rw.ctx, n); err != nil {
			return written, err
		}
		wn, err := rw.w.Write(p[:n])
		written += wn
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}
