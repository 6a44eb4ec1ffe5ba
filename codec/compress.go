package codec

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Compress applies the compression scheme identified by c to plain,
// returning the wire-ready bytes. Applied after codec Encode, once for a
// fixed-length frame or once per chunk for a streamed frame (spec.md §4.2).
func Compress(c Compression, plain []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return plain, nil
	case CompressionGzip:
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(plain); err != nil {
			_ = gw.Close()
			return nil, err
		}
		if err := gw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("codec: unknown compression %d", c)
	}
}

// Decompress reverses Compress.
func Decompress(c Compression, wire []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return wire, nil
	case CompressionGzip:
		gr, err := gzip.NewReader(bytes.NewReader(wire))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		return io.ReadAll(gr)
	default:
		return nil, fmt.Errorf("codec: unknown compression %d", c)
	}
}
