package resource

import "github.com/nsyszr/pushbridge/pkg/bridge"

type StatusResource struct {
	BridgeID      int32  `json:"bridgeId"`
	Running       bool   `json:"running"`
	State         string `json:"state"`
	Attempts      int    `json:"reconnectAttempts"`
	StopRequested bool   `json:"stopRequested"`
	Connected     bool   `json:"connected"`
}

type StatusListResource struct {
	Members []*StatusResource `json:"members"`
}

func NewStatus(s bridge.Status, connected bool) *StatusResource {
	return &StatusResource{
		BridgeID:      s.BridgeID,
		Running:       s.Running,
		State:         s.State.String(),
		Attempts:      s.Attempts,
		StopRequested: s.StopRequested,
		Connected:     connected,
	}
}
