package cats

import "github.com/cifrazia/cats/internal/wire"

// MinDownloadSpeed and MaxDownloadSpeed bound the non-zero range a
// DownloadSpeed frame may request (spec.md §3).
const (
	MinDownloadSpeed uint32 = 1024
	MaxDownloadSpeed uint32 = 33_554_432
)

// DownloadSpeed is frame family 0x05: updates the connection's outbound
// rate limit. 0 means unlimited.
type DownloadSpeed struct {
	BytesPerSec uint32
}

// validDownloadSpeed reports whether v is 0 or within [MinDownloadSpeed, MaxDownloadSpeed].
func validDownloadSpeed(v uint32) bool {
	return v == 0 || (v >= MinDownloadSpeed && v <= MaxDownloadSpeed)
}

func readDownloadSpeed(r *wire.Reader) (*DownloadSpeed, error) {
	v, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if !validDownloadSpeed(v) {
		return nil, protocolErrorf(byte(FrameDownloadSpeed), "download speed %d out of range", v)
	}
	return &DownloadSpeed{BytesPerSec: v}, nil
}

func writeDownloadSpeed(w *wire.Writer, bytesPerSec uint32) error {
	if !validDownloadSpeed(bytesPerSec) {
		return protocolErrorf(byte(FrameDownloadSpeed), "download speed %d out of range", bytesPerSec)
	}
	if err := w.WriteU8(byte(FrameDownloadSpeed)); err != nil {
		return err
	}
	return w.WriteU32(bytesPerSec)
}
