package codec

import "fmt"

// BinaryCodec implements data_type 0x00: identity pass-through.
type BinaryCodec struct{}

func (BinaryCodec) DataType() DataType { return Binary }

// Encode accepts nil (empty payload), []byte or string; anything else is
// rejected rather than silently stringified.
func (BinaryCodec) Encode(value any, _ Header) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("codec: BINARY cannot encode %T", value)
	}
}

func (BinaryCodec) Decode(payload []byte, _ Header, _ int64) (any, error) {
	return payload, nil
}
