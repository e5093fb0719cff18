package transport

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// FrameReceipt marks a frame as a delivery receipt.
const FrameReceipt = "receipt"

// Frame is the JSON wire form shared by the provider implementations.
type Frame struct {
	Type      string            `json:"message_type,omitempty"`
	MessageID string            `json:"message_id"`
	From      string            `json:"from,omitempty"`
	To        string            `json:"to,omitempty"`
	Status    string            `json:"message_status,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// EncodeOutbound renders a downstream message as a frame.
func EncodeOutbound(out Outbound) ([]byte, error) {
	return json.Marshal(&Frame{
		MessageID: out.MessageID,
		To:        out.To,
		Data:      out.Data,
	})
}

// DecodeFrame parses an upstream frame and pushes it into q.
func DecodeFrame(data []byte, q *Queue) error {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return errors.Wrap(err, "failed to decode frame")
	}

	if f.Type == FrameReceipt {
		q.Receipt(Receipt{MessageID: f.MessageID, From: f.From, Status: f.Status})
		return nil
	}

	if f.From == "" {
		return errors.New("frame without sender")
	}
	q.Message(Envelope{MessageID: f.MessageID, From: f.From, Data: f.Data})

	return nil
}
