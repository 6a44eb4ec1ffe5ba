package codec

import (
	jsoniter "github.com/json-iterator/go"
)

// jsonAPI mirrors encoding/json's semantics exactly (field names, omitempty,
// map ordering) while avoiding reflection overhead on the hot path — the
// same config aistore's cmn/cos package reaches for.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONCodec implements data_type 0x01.
type JSONCodec struct{}

func (JSONCodec) DataType() DataType { return JSON }

// Encode marshals value to UTF-8 JSON. The NULL sentinel maps to a literal
// JSON null even though jsoniter would otherwise marshal a Go nil interface
// the same way — NULL exists so callers can request `null` explicitly in
// positions where "no value provided" must be distinguishable from "value
// is absent" at a higher layer (spec.md §4.2).
func (JSONCodec) Encode(value any, _ Header) ([]byte, error) {
	if value == nil {
		return []byte("null"), nil
	}
	if _, ok := value.(*nullSentinel); ok {
		return []byte("null"), nil
	}
	return jsonAPI.Marshal(value)
}

func (JSONCodec) Decode(payload []byte, _ Header, _ int64) (any, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var v any
	if err := jsonAPI.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return v, nil
}
