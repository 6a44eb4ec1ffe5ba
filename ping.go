package cats

import "github.com/cifrazia/cats/internal/wire"

// Ping is frame family 0xFF: an 8-byte sender timestamp (ms UTC) the
// receiver echoes verbatim.
type Ping struct {
	TimestampMS uint64
}

func readPing(r *wire.Reader) (*Ping, error) {
	ts, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	return &Ping{TimestampMS: ts}, nil
}

func writePing(w *wire.Writer, timestampMS uint64) error {
	if err := w.WriteU8(byte(FramePing)); err != nil {
		return err
	}
	return w.WriteU64(timestampMS)
}
