package cats

import (
	"time"

	"github.com/cifrazia/cats/codec"
	"github.com/cifrazia/cats/internal/wire"
)

// StreamRequest is frame family 0x01 (spec.md §3): a Request whose payload
// arrives as a sequence of independently-compressed, length-prefixed
// chunks terminated by a zero-length chunk, for payloads of unbounded
// length. The first chunk carries the message headers.
type StreamRequest struct {
	HandlerID   uint16
	MessageID   uint16
	SendTime    time.Time
	DataType    codec.DataType
	Compression codec.Compression
	Headers     codec.Header

	spool *spoolBuffer
	conn  *Connection
}

// Value reconstitutes the concatenated, decompressed payload and applies
// the codec named by DataType.
func (r *StreamRequest) Value() (any, error) {
	c, err := codec.Lookup(r.DataType)
	if err != nil {
		return nil, err
	}
	rc, err := r.spool.Reader()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	payload, err := readAll(rc)
	if err != nil {
		return nil, err
	}
	if n := r.Headers.Offset(); n > 0 {
		payload, err = codec.ApplyOffset(r.DataType, payload, r.Headers, n)
		if err != nil {
			return nil, err
		}
	}
	return c.Decode(payload, r.Headers, r.conn.maxPlainDataSize)
}

// Close releases the request's spooled temp file, if any. Callers should
// defer Close once Value() has been consumed.
func (r *StreamRequest) Close() error { return r.spool.Close() }

// asRequest adapts the assembled StreamRequest to the same *Request shape
// Connection's handler dispatch and Request's Input() method use, so a
// handler_id's handler does not need to care whether the peer chose
// Request or StreamRequest framing (spec.md §4.4 dispatches both the same
// way once the body is fully available).
func (r *StreamRequest) asRequest() *Request {
	return &Request{
		HandlerID:   r.HandlerID,
		MessageID:   r.MessageID,
		SendTime:    r.SendTime,
		DataType:    r.DataType,
		Compression: r.Compression,
		Headers:     r.Headers,
		loader: func() ([]byte, error) {
			rc, err := r.spool.Reader()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			payload, err := readAll(rc)
			if err != nil {
				return nil, err
			}
			if n := r.Headers.Offset(); n > 0 {
				payload, err = codec.ApplyOffset(r.DataType, payload, r.Headers, n)
				if err != nil {
					return nil, err
				}
			}
			return payload, nil
		},
		closer: r.spool.Close,
		conn:   r.conn,
	}
}

func readStreamRequest(conn *Connection, r *wire.Reader) (*StreamRequest, error) {
	handlerID, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	messageID, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	sendTimeMS, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	rawDT, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	rawComp, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	comp := codec.Compression(rawComp)

	spool := newSpoolBuffer(conn.maxPlainDataSize)
	var headers codec.Header
	first := true
	for {
		chunkLen, err := r.ReadU32()
		if err != nil {
			spool.Close()
			return nil, err
		}
		if chunkLen == 0 {
			break
		}
		raw, err := r.ReadExact(int(chunkLen))
		if err != nil {
			spool.Close()
			return nil, err
		}
		plain, err := codec.Decompress(comp, raw)
		if err != nil {
			spool.Close()
			return nil, protocolErrorf(byte(FrameStreamRequest), "chunk decompress: %v", err)
		}
		if first {
			first = false
			idx := indexOf(plain, headerSeparator)
			if idx < 0 {
				spool.Close()
				return nil, protocolErrorf(byte(FrameStreamRequest), "first chunk missing header separator")
			}
			headers, err = decodeHeaders(plain[:idx])
			if err != nil {
				spool.Close()
				return nil, err
			}
			plain = plain[idx+len(headerSeparator):]
		}
		if len(plain) > 0 {
			if _, err := spool.Write(plain); err != nil {
				spool.Close()
				return nil, err
			}
		}
	}
	if headers == nil {
		headers = codec.Header{}
	}

	return &StreamRequest{
		HandlerID:   handlerID,
		MessageID:   messageID,
		SendTime:    time.UnixMilli(int64(sendTimeMS)).UTC(),
		DataType:    codec.DataType(rawDT),
		Compression: comp,
		Headers:     headers,
		spool:       spool,
		conn:        conn,
	}, nil
}

// writeStreamRequest serializes a Request (or, from Connection.
// sendResponseFrame, a streaming Response) as a stream of chunks pulled
// from next(), gzipping each chunk independently when comp is
// CompressionGzip and writing the terminating zero-length chunk (spec.md
// §4.1, example 5). next returns ErrStreamDone once no more chunks remain.
func writeStreamRequest(w *wire.Writer, handlerID, messageID uint16, sendTime time.Time, dt codec.DataType, comp codec.Compression, headers codec.Header, next func() ([]byte, error)) error {
	if err := w.WriteU8(byte(FrameStreamRequest)); err != nil {
		return err
	}
	if err := w.WriteU16(handlerID); err != nil {
		return err
	}
	if err := w.WriteU16(messageID); err != nil {
		return err
	}
	if err := w.WriteU64(uint64(sendTime.UnixMilli())); err != nil {
		return err
	}
	if err := w.WriteU8(byte(dt)); err != nil {
		return err
	}
	if err := w.WriteU8(byte(comp)); err != nil {
		return err
	}

	headerBytes, err := encodeHeaders(headers)
	if err != nil {
		return err
	}
	writeChunk := func(plain []byte) error {
		compressed, err := codec.Compress(comp, plain)
		if err != nil {
			return err
		}
		if err := w.WriteU32(uint32(len(compressed))); err != nil {
			return err
		}
		return w.WriteAll(compressed)
	}

	// The header chunk always stands alone, even with an empty payload
	// piece (spec.md §4.1 example 5: header chunk is gzip("") after "\x00\x00").
	if err := writeChunk(append(append([]byte{}, headerBytes...), headerSeparator...)); err != nil {
		return err
	}

	for {
		chunk, err := next()
		if err == errStreamDone {
			break
		}
		if err != nil {
			return err
		}
		if err := writeChunk(chunk); err != nil {
			return err
		}
	}
	return w.WriteU32(0)
}

func indexOf(haystack, needle []byte) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
