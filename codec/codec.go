// Package codec implements the three CATS payload codecs (spec.md §4.2):
// BINARY (0x00), JSON (0x01) and FILES (0x02), plus the gzip compression
// layer applied on top of any of them.
package codec

import (
	"errors"
)

// DataType identifies how a frame's payload bytes are structured.
type DataType uint8

const (
	Binary DataType = 0x00
	JSON   DataType = 0x01
	Files  DataType = 0x02
)

// Compression identifies the compression applied to a frame's payload.
type Compression uint8

const (
	CompressionNone Compression = 0x00
	CompressionGzip Compression = 0x01
)

// Header is the decoded `\x00\x00`-delimited JSON object carried ahead of
// every Request/InputRequest/StreamRequest body (spec.md §3 "Message
// Headers"). Keys not recognized here are preserved verbatim for
// application handlers.
type Header map[string]any

// Offset returns the Offset header (0 if absent or not an integer).
func (h Header) Offset() int64 {
	v, ok := h["Offset"]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

// Status returns the Status header, defaulting to 200 (spec.md §3).
func (h Header) Status() int {
	v, ok := h["Status"]
	if !ok {
		return 200
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 200
	}
}

// FileEntry is one element of the "Files" header.
type FileEntry struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type,omitempty"`
}

// Files returns the parsed "Files" header, required iff DataType == Files.
func (h Header) Files() ([]FileEntry, error) {
	raw, ok := h["Files"]
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		// Already-typed (e.g. set by the FILES encoder before the frame is
		// serialized back to JSON).
		if typed, ok := raw.([]FileEntry); ok {
			return typed, nil
		}
		return nil, errors.New("codec: Files header is not an array")
	}
	out := make([]FileEntry, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errors.New("codec: Files entry is not an object")
		}
		var fe FileEntry
		if v, ok := m["key"].(string); ok {
			fe.Key = v
		}
		if v, ok := m["name"].(string); ok {
			fe.Name = v
		}
		if v, ok := m["size"].(float64); ok {
			fe.Size = int64(v)
		}
		if v, ok := m["type"].(string); ok {
			fe.Type = v
		}
		out = append(out, fe)
	}
	return out, nil
}

// SetFiles installs the "Files" header from a concrete list, the way the
// FILES encoder populates it for serialization.
func (h Header) SetFiles(files []FileEntry) {
	h["Files"] = files
}

// Codec encodes an application value into wire payload bytes and decodes
// wire payload bytes back into an application value. Implementations never
// apply compression themselves — that is layered on separately per
// spec.md §4.2 ("Compression ... is applied after codec encode").
type Codec interface {
	DataType() DataType
	// Encode serializes value and returns the payload bytes. Any header
	// fields the codec needs in the frame's message header are written into
	// headers (FILES sets "Files"; BINARY/JSON add nothing).
	Encode(value any, headers Header) ([]byte, error)
	// Decode reconstructs the application value from payload bytes already
	// decompressed and Offset-adjusted. maxPlainSize is the
	// MAX_PLAIN_DATA_SIZE threshold above which FILES spools to disk.
	Decode(payload []byte, headers Header, maxPlainSize int64) (any, error)
}

// NULL is the distinguished sentinel JSON.Encode maps to a literal JSON
// `null`, for positions where the application's own nil/absence would be
// ambiguous (spec.md §4.2).
var NULL = &nullSentinel{}

type nullSentinel struct{}

// registry maps a DataType to its Codec, mirroring the teacher's
// functional-option registration style but keyed on a byte rather than
// built via self-registering subclasses (spec.md §9 design note).
var registry = map[DataType]Codec{
	Binary: BinaryCodec{},
	JSON:   JSONCodec{},
	Files:  FilesCodec{},
}

// ErrUnknownDataType is returned by Lookup for an unregistered data_type.
var ErrUnknownDataType = errors.New("codec: unknown data_type")

// Lookup resolves the Codec for a data_type byte read off the wire.
func Lookup(dt DataType) (Codec, error) {
	c, ok := registry[dt]
	if !ok {
		return nil, ErrUnknownDataType
	}
	return c, nil
}
