package cats

import (
	"bytes"
	"io"
	"os"
)

// spoolBuffer accumulates bytes in memory up to a threshold and
// transparently switches to a temp file beyond it, implementing the
// "large payloads MUST be spooled to a temp file" requirement on the
// receive path (StreamRequest chunk assembly, spec.md §4.1). The send path
// does not use it: streaming responses are written chunk by chunk straight
// from Response.Next. limit<=0 means never spool.
type spoolBuffer struct {
	limit int64
	buf   bytes.Buffer
	file  *os.File
	size  int64
}

func newSpoolBuffer(limit int64) *spoolBuffer {
	return &spoolBuffer{limit: limit}
}

func (s *spoolBuffer) Write(p []byte) (int, error) {
	s.size += int64(len(p))
	if s.file != nil {
		return s.file.Write(p)
	}
	if s.limit > 0 && s.size > s.limit {
		f, err := os.CreateTemp("", "cats-stream-*")
		if err != nil {
			return 0, err
		}
		if _, err := f.Write(s.buf.Bytes()); err != nil {
			f.Close()
			os.Remove(f.Name())
			return 0, err
		}
		s.buf.Reset()
		s.file = f
		return f.Write(p)
	}
	return s.buf.Write(p)
}

// Size returns the total number of bytes written so far.
func (s *spoolBuffer) Size() int64 { return s.size }

// Spooled reports whether the buffer switched to a temp file.
func (s *spoolBuffer) Spooled() bool { return s.file != nil }

// Bytes returns the accumulated bytes when not spooled. Panics if Spooled.
func (s *spoolBuffer) Bytes() []byte {
	if s.file != nil {
		panic("cats: spoolBuffer.Bytes called after spooling to disk")
	}
	return s.buf.Bytes()
}

// Reader returns a fresh reader over everything written so far, and for the
// spooled case a closer that removes the temp file. The caller must Close
// it on every exit path (spec.md §4.1 "temp files are deleted on all exit
// paths").
func (s *spoolBuffer) Reader() (io.ReadCloser, error) {
	if s.file == nil {
		return io.NopCloser(bytes.NewReader(s.buf.Bytes())), nil
	}
	f, err := os.Open(s.file.Name())
	if err != nil {
		return nil, err
	}
	return &spoolFileReader{File: f, path: s.file.Name()}, nil
}

// Close releases the temp file, if any. Safe to call multiple times.
func (s *spoolBuffer) Close() error {
	if s.file == nil {
		return nil
	}
	name := s.file.Name()
	err := s.file.Close()
	s.file = nil
	_ = os.Remove(name)
	return err
}

type spoolFileReader struct {
	*os.File
	path string
}

func (r *spoolFileReader) Close() error {
	err := r.File.Close()
	_ = os.Remove(r.path)
	return err
}
