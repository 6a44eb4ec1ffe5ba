package cats

import "github.com/cifrazia/cats/internal/wire"

// CancelInput is frame family 0x06: aborts a pending InputRequest await
// identified by MessageID.
type CancelInput struct {
	MessageID uint16
}

func readCancelInput(r *wire.Reader) (*CancelInput, error) {
	id, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	return &CancelInput{MessageID: id}, nil
}

func writeCancelInput(w *wire.Writer, messageID uint16) error {
	if err := w.WriteU8(byte(FrameCancelInput)); err != nil {
		return err
	}
	return w.WriteU16(messageID)
}
