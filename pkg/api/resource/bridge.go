package resource

import (
	"fmt"
	"sort"
	"time"

	"github.com/nsyszr/pushbridge/pkg/model"
)

type BridgeResource struct {
	ID             int32      `json:"id"`
	Name           string     `json:"name"`
	Host           string     `json:"host"`
	Port           int        `json:"port"`
	UseTLS         bool       `json:"useTls"`
	AccountID      string     `json:"accountId"`
	Domain         string     `json:"domain"`
	Secret         string     `json:"secret,omitempty"`
	Connected      bool       `json:"connected"`
	SessionTimeout int        `json:"sessionTimeout"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

type BridgeListResource struct {
	Members []*BridgeResource `json:"members"`
}

// NewBridge renders a bridge without its secret.
func NewBridge(m *model.Bridge) (out *BridgeResource) {
	out = &BridgeResource{
		ID:             m.ID,
		Name:           m.Name,
		Host:           m.Host,
		Port:           m.Port,
		UseTLS:         m.UseTLS,
		AccountID:      m.AccountID,
		Domain:         m.Domain,
		Connected:      m.Connected,
		SessionTimeout: m.SessionTimeout,
	}

	if !m.CreatedAt.IsZero() {
		out.CreatedAt = &time.Time{}
		*out.CreatedAt = m.CreatedAt.Round(time.Second)
	}
	if !m.UpdatedAt.IsZero() {
		out.UpdatedAt = &time.Time{}
		*out.UpdatedAt = m.UpdatedAt.Round(time.Second)
	}

	return // out
}

func NewBridgeList(m map[int32]model.Bridge) (out *BridgeListResource) {
	out = &BridgeListResource{
		Members: make([]*BridgeResource, 0),
	}

	for _, elem := range m {
		elem := elem
		out.Members = append(out.Members, NewBridge(&elem))
	}

	// Default sort by ID
	sort.Slice(out.Members, func(i, j int) bool {
		return out.Members[i].ID < out.Members[j].ID
	})

	return // out
}

// DefaultDomain is the account domain used when none is given.
const DefaultDomain = "fcm.googleapis.com"

func ValidateBridge(r *BridgeResource) (m *model.Bridge, err error) {
	if r.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if r.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if r.AccountID == "" {
		return nil, fmt.Errorf("accountId is required")
	}
	if r.Secret == "" {
		return nil, fmt.Errorf("secret is required")
	}
	if r.Port < 0 || r.Port > 65535 {
		return nil, fmt.Errorf("port is out of range")
	}
	if r.SessionTimeout < 0 {
		return nil, fmt.Errorf("sessionTimeout must not be negative")
	}

	domain := r.Domain
	if domain == "" {
		domain = DefaultDomain
	}

	m = &model.Bridge{
		Name:           r.Name,
		Host:           r.Host,
		Port:           r.Port,
		UseTLS:         r.UseTLS,
		AccountID:      r.AccountID,
		Domain:         domain,
		Secret:         r.Secret,
		SessionTimeout: r.SessionTimeout,
	}

	return m, nil
}
