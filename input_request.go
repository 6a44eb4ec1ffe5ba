package cats

import (
	"github.com/cifrazia/cats/codec"
	"github.com/cifrazia/cats/internal/wire"
)

// InputRequest is frame family 0x02 (spec.md §3): reuses an in-flight
// exchange's message_id to thread a nested prompt/response, either a
// handler-initiated prompt sent to the peer, or the peer's answer routed
// back to the awaiting handler.
type InputRequest struct {
	MessageID   uint16
	DataType    codec.DataType
	Compression codec.Compression
	Headers     codec.Header
	Payload     []byte

	conn *Connection
}

// Value decodes Payload using the codec named by DataType.
func (r *InputRequest) Value() (any, error) {
	c, err := codec.Lookup(r.DataType)
	if err != nil {
		return nil, err
	}
	return c.Decode(r.Payload, r.Headers, r.conn.maxPlainDataSize)
}

func readInputRequest(conn *Connection, r *wire.Reader) (*InputRequest, error) {
	messageID, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	dt, comp, headers, payload, err := readMessageBody(r, byte(FrameInputRequest))
	if err != nil {
		return nil, err
	}
	return &InputRequest{
		MessageID:   messageID,
		DataType:    dt,
		Compression: comp,
		Headers:     headers,
		Payload:     payload,
		conn:        conn,
	}, nil
}

// writeInputRequest serializes and writes an InputRequest frame — used to
// send a nested prompt (Request.Input).
func writeInputRequest(w *wire.Writer, messageID uint16, dt codec.DataType, comp codec.Compression, headers codec.Header, payload []byte) error {
	body, err := encodeMessageBody(dt, comp, headers, payload)
	if err != nil {
		return err
	}
	if err := w.WriteU8(byte(FrameInputRequest)); err != nil {
		return err
	}
	if err := w.WriteU16(messageID); err != nil {
		return err
	}
	return w.WriteAll(body)
}
