package cats

import (
	"errors"
	"io"
)

// errStreamDone signals a stream-producing func (e.g. the next() callback
// in writeStreamRequest) that there are no more chunks — distinct from
// io.EOF so producers reading from an underlying io.Reader can still
// surface a genuine io.EOF value without it being mistaken for "done".
var errStreamDone = errors.New("cats: stream exhausted")

// ErrStreamDone is the error a Response.Next func returns to signal that no
// more chunks remain (spec.md §9 "generators for streaming responses").
var ErrStreamDone = errStreamDone

func readAll(r io.Reader) ([]byte, error) { return io.ReadAll(r) }
