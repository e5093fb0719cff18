package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nsyszr/pushbridge/pkg/auth"
	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// loginAck is the data of a login-ack message.
type loginAck struct {
	Key       string `json:"key"`
	UserID    int32  `json:"uid"`
	Name      string `json:"name"`
	ContactID int32  `json:"partner_id"`
}

// Sessions authenticates devices and tracks the liveness of their sessions.
// Every method works on the store of the caller's unit of work.
type Sessions struct {
	checker auth.Checker
	outbox  *Outbox
	now     func() time.Time
	newKey  func() string
}

func NewSessions(checker auth.Checker, outbox *Outbox) *Sessions {
	return &Sessions{
		checker: checker,
		outbox:  outbox,
		now:     time.Now,
		newKey:  newSessionKey,
	}
}

func newSessionKey() string {
	return uuid.NewString()[:8]
}

// Authenticate validates the credentials of device. On success every open
// session of the device is closed, a new one is created and a login-ack is
// enqueued. On denial a login-nack is enqueued and auth.ErrDenied returned.
func (s *Sessions) Authenticate(ctx context.Context, st storage.Interface, b *model.Bridge, device, username, password string) (*model.Session, error) {
	logger := log.WithFields(log.Fields{
		"bridge": b.ID,
		"device": device,
		"login":  username,
	})

	id, err := s.checker.Check(ctx, username, password)
	if err == auth.ErrDenied {
		logger.Warn("Login denied")
		nack := &model.Message{
			BridgeID: b.ID,
			Device:   device,
			Kind:     model.KindLoginNack,
			Payload:  "{}",
		}
		if err := s.outbox.Enqueue(st, nack); err != nil {
			return nil, err
		}
		return nil, auth.ErrDenied
	} else if err != nil {
		return nil, errors.Wrap(err, "credential check failed")
	}

	closed, err := st.Sessions().CloseByDevice(b.ID, device)
	if err != nil {
		return nil, errors.Wrap(err, "failed to close previous sessions")
	}

	now := s.now().UTC()
	sess := &model.Session{
		BridgeID:   b.ID,
		Device:     device,
		UserID:     id.UserID,
		ContactID:  id.ContactID,
		Key:        s.newKey(),
		LastSeenAt: &now,
		Active:     true,
	}
	if err := st.Sessions().Create(sess); err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}

	payload, err := json.Marshal(&loginAck{
		Key:       sess.Key,
		UserID:    id.UserID,
		Name:      id.Name,
		ContactID: id.ContactID,
	})
	if err != nil {
		return nil, err
	}
	ack := &model.Message{
		BridgeID: b.ID,
		Device:   device,
		UserID:   id.UserID,
		Kind:     model.KindLoginAck,
		Payload:  string(payload),
	}
	if err := s.outbox.Enqueue(st, ack); err != nil {
		return nil, err
	}

	logger.WithField("closed", closed).Info("Login accepted")

	return sess, nil
}

// Lookup returns the open session of device matching key, or nil. Expiry is
// not checked.
func (s *Sessions) Lookup(st storage.Interface, b *model.Bridge, device, key string) (*model.Session, error) {
	if key == "" {
		return nil, nil
	}

	sess, err := st.Sessions().FindOpen(b.ID, device, key)
	if err == storage.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to look up session")
	}

	return sess, nil
}

// Touch records activity of sess.
func (s *Sessions) Touch(st storage.Interface, b *model.Bridge, sess *model.Session) error {
	now := s.now().UTC()
	sess.LastSeenAt = &now
	sess.Active = sess.IsActive(now, b.Timeout())

	return st.Sessions().Touch(sess.ID, now, sess.Active)
}

// SweepExpiry recomputes the cached active flag of every session of b and
// returns how many changed.
func (s *Sessions) SweepExpiry(st storage.Interface, b *model.Bridge) (int, error) {
	sessions, err := st.Sessions().FetchByBridge(b.ID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	changed := 0
	for _, sess := range sessions {
		active := sess.IsActive(now, b.Timeout())
		if active == sess.Active {
			continue
		}
		if err := st.Sessions().SetActive(sess.ID, active); err != nil {
			return changed, err
		}
		changed++
	}

	return changed, nil
}

// SweepPing enqueues a ping for every active session of b idle for more than
// half the session timeout. Repeated sweeps ping again.
func (s *Sessions) SweepPing(st storage.Interface, b *model.Bridge) (int, error) {
	sessions, err := st.Sessions().FetchByBridge(b.ID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	timeout := b.Timeout()
	pinged := 0
	for _, sess := range sessions {
		if !sess.IsActive(now, timeout) || now.Sub(*sess.LastSeenAt) <= timeout/2 {
			continue
		}

		ping := &model.Message{
			BridgeID: b.ID,
			Device:   sess.Device,
			UserID:   sess.UserID,
			Kind:     model.KindPing,
			Payload:  "{}",
		}
		if err := s.outbox.Enqueue(st, ping); err != nil {
			return pinged, err
		}
		pinged++
	}

	return pinged, nil
}
