package cats

import (
	"bytes"
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/cifrazia/cats/codec"
)

var headerJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNulByteInHeaders rejects message headers containing a literal NUL,
// which would collide with the "\x00\x00" separator (spec.md §9 open
// question (b)).
var ErrNulByteInHeaders = errors.New("cats: message headers must not contain a NUL byte")

func decodeHeaders(raw []byte) (codec.Header, error) {
	if bytes.IndexByte(raw, 0) >= 0 {
		return nil, ErrNulByteInHeaders
	}
	if len(raw) == 0 {
		return codec.Header{}, nil
	}
	var h codec.Header
	if err := headerJSON.Unmarshal(raw, &h); err != nil {
		return nil, err
	}
	if h == nil {
		h = codec.Header{}
	}
	return h, nil
}

func encodeHeaders(h codec.Header) ([]byte, error) {
	if h == nil {
		h = codec.Header{}
	}
	b, err := headerJSON.Marshal(h)
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(b, 0) >= 0 {
		return nil, ErrNulByteInHeaders
	}
	return b, nil
}
