package cats

// FrameType identifies the 1-byte frame family tag that opens every frame
// on the wire (spec.md §3, §6).
type FrameType byte

const (
	FrameRequest       FrameType = 0x00
	FrameStreamRequest FrameType = 0x01
	FrameInputRequest  FrameType = 0x02
	FrameDownloadSpeed FrameType = 0x05
	FrameCancelInput   FrameType = 0x06
	FramePing          FrameType = 0xFF
)

// headerSeparator delimits message-header JSON from the payload inside a
// frame body (spec.md §3, §6).
var headerSeparator = []byte{0x00, 0x00}
