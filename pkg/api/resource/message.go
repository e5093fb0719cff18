package resource

import (
	"encoding/json"
	"time"

	"github.com/nsyszr/pushbridge/pkg/model"
)

type MessageResource struct {
	ID        int64       `json:"id"`
	BridgeID  int32       `json:"bridgeId"`
	Device    string      `json:"device,omitempty"`
	UserID    int32       `json:"userId,omitempty"`
	Kind      string      `json:"type"`
	Model     string      `json:"model,omitempty"`
	Data      interface{} `json:"data"`
	CreatedAt time.Time   `json:"createdAt"`
	SentAt    *time.Time  `json:"sentAt,omitempty"`
}

type MessageListResource struct {
	Members []*MessageResource `json:"members"`
}

func NewMessage(m *model.Message) (out *MessageResource) {
	out = &MessageResource{
		ID:        m.ID,
		BridgeID:  m.BridgeID,
		Device:    m.Device,
		UserID:    m.UserID,
		Kind:      m.Kind,
		Model:     m.Model,
		CreatedAt: m.CreatedAt,
		SentAt:    m.SentAt,
	}

	// Payloads are JSON documents, fall back to the raw string otherwise
	var data interface{}
	if err := json.Unmarshal([]byte(m.Payload), &data); err == nil {
		out.Data = data
	} else {
		out.Data = m.Payload
	}

	return // out
}

func NewMessageList(m []model.Message) (out *MessageListResource) {
	out = &MessageListResource{
		Members: make([]*MessageResource, 0, len(m)),
	}

	for i := range m {
		out.Members = append(out.Members, NewMessage(&m[i]))
	}

	return // out
}

// SendResource is the body of a send-to-user request.
type SendResource struct {
	Type  string          `json:"type"`
	Model string          `json:"model"`
	Data  json.RawMessage `json:"data"`
}

// ReachableResource answers a reachability query.
type ReachableResource struct {
	UserID    int32 `json:"userId"`
	Reachable bool  `json:"reachable"`
}
