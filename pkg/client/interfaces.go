package client

import (
	"context"
	"encoding/json"
)

// Interface sends push messages through a running bridge.
type Interface interface {
	// SendToUser pushes the object payload of resource to every active
	// session of the user and returns the id of the queued message.
	SendToUser(ctx context.Context, userID int32, resource string, payload json.RawMessage) (int64, error)
	// Notify pushes a notification payload to the user.
	Notify(ctx context.Context, userID int32, payload json.RawMessage) (int64, error)
}
