package codec

// ApplyOffset implements the `Offset` message header (spec.md §3, §4.2): it
// drops the first n bytes of a decoded payload. For BINARY/JSON this is a
// plain slice. For FILES, n is subtracted from each file's declared size in
// header order, dropping files whose remaining size reaches zero, and the
// "Files" header is rewritten in place to match — sizes sum to
// original_total-n and each surviving file keeps its original Name
// (spec.md §9 open question (c)).
func ApplyOffset(dt DataType, payload []byte, headers Header, n int64) ([]byte, error) {
	if n <= 0 {
		return payload, nil
	}
	switch dt {
	case Files:
		entries, err := headers.Files()
		if err != nil {
			return nil, err
		}
		var (
			remaining  = n
			newPayload []byte
			kept       []FileEntry
			srcOff     int64
		)
		for _, e := range entries {
			size := e.Size
			start := srcOff
			srcOff += size
			if remaining >= size {
				remaining -= size
				continue // fully consumed by the offset: dropped
			}
			start += remaining
			size -= remaining
			remaining = 0
			newPayload = append(newPayload, payload[start:start+size]...)
			e.Size = size
			kept = append(kept, e)
		}
		headers.SetFiles(kept)
		return newPayload, nil
	default:
		if n >= int64(len(payload)) {
			return nil, nil
		}
		return payload[n:], nil
	}
}
