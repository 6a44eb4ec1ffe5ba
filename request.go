package cats

import (
	"context"
	"fmt"
	"time"

	"github.com/cifrazia/cats/codec"
	"github.com/cifrazia/cats/internal/wire"
)

// Request is frame family 0x00 (spec.md §3): a fixed-length, single top-
// level exchange. Payload is decompressed and Offset-adjusted by the time
// a handler sees it; Value() applies the declared codec on demand.
type Request struct {
	HandlerID   uint16
	MessageID   uint16
	SendTime    time.Time
	DataType    codec.DataType
	Compression codec.Compression
	Headers     codec.Header
	Payload     []byte

	// loader, when set (a StreamRequest converted for dispatch — see
	// StreamRequest.asRequest), supplies Payload lazily from a spool
	// instead of holding it in memory up front. closer releases any temp
	// file it spooled to.
	loader func() ([]byte, error)
	closer func() error

	conn *Connection
}

// Value decodes Payload using the codec named by DataType.
func (r *Request) Value() (any, error) {
	payload := r.Payload
	if r.loader != nil {
		p, err := r.loader()
		if err != nil {
			return nil, err
		}
		payload = p
	}
	c, err := codec.Lookup(r.DataType)
	if err != nil {
		return nil, err
	}
	return c.Decode(payload, r.Headers, r.conn.maxPlainDataSize)
}

// Close releases any resources (spooled temp files) this request holds.
// Safe to call even when nothing was spooled.
func (r *Request) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

// Input sends prompt to the peer as an InputRequest carrying the same
// message_id and blocks until the peer answers with a matching
// InputRequest, the exchange is cancelled, it times out, or the connection
// closes (spec.md §4.4, §9). ctx additionally bounds the wait.
func (r *Request) Input(ctx context.Context, prompt any) (*InputRequest, error) {
	return r.conn.awaitInput(ctx, r.MessageID, prompt)
}

// readMessageBody is the shared receive procedure for frame families whose
// body is: data_type(u8) compression(u8) data_length(u32) headers "\x00\x00"
// payload — i.e. Request and InputRequest (spec.md §3, §4.1).
func readMessageBody(r *wire.Reader, frameType byte) (dt codec.DataType, comp codec.Compression, headers codec.Header, payload []byte, err error) {
	rawDT, err := r.ReadU8()
	if err != nil {
		return 0, 0, nil, nil, err
	}
	rawComp, err := r.ReadU8()
	if err != nil {
		return 0, 0, nil, nil, err
	}
	dataLength, err := r.ReadU32()
	if err != nil {
		return 0, 0, nil, nil, err
	}

	headerBytes, err := r.ReadUntil(headerSeparator, int(dataLength))
	if err != nil {
		return 0, 0, nil, nil, protocolErrorf(frameType, "header separator not found within data_length: %v", err)
	}
	headers, err = decodeHeaders(headerBytes)
	if err != nil {
		return 0, 0, nil, nil, protocolErrorf(frameType, "invalid message headers: %v", err)
	}

	remaining := int(dataLength) - len(headerBytes) - len(headerSeparator)
	if remaining < 0 {
		return 0, 0, nil, nil, protocolErrorf(frameType, "data_length shorter than headers")
	}
	payload, err = r.ReadExact(remaining)
	if err != nil {
		return 0, 0, nil, nil, err
	}

	payload, err = codec.Decompress(codec.Compression(rawComp), payload)
	if err != nil {
		return 0, 0, nil, nil, fmt.Errorf("cats: decompress: %w", err)
	}

	if n := headers.Offset(); n > 0 {
		payload, err = codec.ApplyOffset(codec.DataType(rawDT), payload, headers, n)
		if err != nil {
			return 0, 0, nil, nil, err
		}
	}

	return codec.DataType(rawDT), codec.Compression(rawComp), headers, payload, nil
}

// readRequest implements Request's receive_body once the 1-byte frame type
// and nothing else has been consumed (spec.md §4.1 framing procedure).
func readRequest(conn *Connection, r *wire.Reader) (*Request, error) {
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
	dt, comp, headers, payload, err := readMessageBody(r, byte(FrameRequest))
	if err != nil {
		return nil, err
	}
	return &Request{
		HandlerID:   handlerID,
		MessageID:   messageID,
		SendTime:    time.UnixMilli(int64(sendTimeMS)).UTC(),
		DataType:    dt,
		Compression: comp,
		Headers:     headers,
		Payload:     payload,
		conn:        conn,
	}, nil
}

// writeRequest serializes and writes a Request frame — used by
// Connection.sendResponseFrame to write replies, which share the Request
// frame layout (the protocol is symmetric, spec.md §1).
func writeRequest(w *wire.Writer, handlerID, messageID uint16, sendTime time.Time, dt codec.DataType, comp codec.Compression, headers codec.Header, payload []byte) error {
	body, err := encodeMessageBody(dt, comp, headers, payload)
	if err != nil {
		return err
	}
	if err := w.WriteU8(byte(FrameRequest)); err != nil {
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
	return w.WriteAll(body)
}

// encodeMessageBody builds the data_type/compression/data_length/headers/
// payload body shared by Request and InputRequest.
func encodeMessageBody(dt codec.DataType, comp codec.Compression, headers codec.Header, payload []byte) ([]byte, error) {
	compressed, err := codec.Compress(comp, payload)
	if err != nil {
		return nil, err
	}
	if headers == nil {
		headers = codec.Header{}
	}
	headerBytes, err := encodeHeaders(headers)
	if err != nil {
		return nil, err
	}

	dataLength := len(headerBytes) + len(headerSeparator) + len(compressed)
	out := make([]byte, 0, 2+4+dataLength)
	out = append(out, byte(dt), byte(comp))
	out = appendU32(out, uint32(dataLength))
	out = append(out, headerBytes...)
	out = append(out, headerSeparator...)
	out = append(out, compressed...)
	return out, nil
}

func appendU32(out []byte, v uint32) []byte {
	return append(out, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
