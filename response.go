package cats

import "github.com/cifrazia/cats/codec"

// Response is the value a handler returns (spec.md §4.4). Data is the
// application value fed to the codec named by DataType; Headers carries
// any extra message-header fields (Status defaults to 200 when absent).
//
// A handler that wants to stream its reply (spec.md §9 "generators for
// streaming responses") sets Next instead of Data: the connection then
// frames the response as 0x01 StreamRequest, pulling chunks from Next until
// it returns ErrStreamDone, gzipping each chunk independently when
// Compression is CompressionGzip (spec.md §6 scenario 5).
type Response struct {
	DataType    codec.DataType
	Compression codec.Compression
	Headers     codec.Header
	Data        any

	Next func() ([]byte, error)
}

// NewResponse builds a 200-status JSON response, the common case.
func NewResponse(data any) *Response {
	return &Response{DataType: codec.JSON, Headers: codec.Header{}, Data: data}
}

// NewStreamResponse builds a response whose payload is produced lazily by
// next, one chunk at a time, framed as 0x01 StreamRequest (spec.md §9). next
// must return ErrStreamDone once exhausted.
func NewStreamResponse(dt codec.DataType, comp codec.Compression, next func() ([]byte, error)) *Response {
	return &Response{DataType: dt, Compression: comp, Headers: codec.Header{}, Next: next}
}

// WithStatus sets the Status header and returns the receiver for chaining.
func (r *Response) WithStatus(status int) *Response {
	if r.Headers == nil {
		r.Headers = codec.Header{}
	}
	r.Headers["Status"] = status
	return r
}
