package bridge

import (
	"context"
	"strconv"
	"time"

	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/nsyszr/pushbridge/pkg/transport"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Sender writes one downstream message. transport.Session implements it.
type Sender interface {
	Send(out transport.Outbound) error
}

// Outbox is the durable queue of messages to devices.
type Outbox struct {
	now func() time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{now: time.Now}
}

// Enqueue appends m to the outbox. It may be called from any goroutine.
func (o *Outbox) Enqueue(st storage.Interface, m *model.Message) error {
	if m.BridgeID == 0 || m.Kind == "" || (m.Device == "" && m.UserID == 0) {
		return ErrInvalidMessage
	}
	if m.Payload == "" {
		m.Payload = "{}"
	}
	m.CreatedAt = o.now().UTC()

	if err := st.Messages().Create(m); err != nil {
		return errors.Wrap(err, "failed to enqueue message")
	}
	recordOutbox(m.BridgeID, m.Kind, "enqueued")

	return nil
}

// ResolveTargets returns the devices m is delivered to: its explicit device,
// or every device with an active session of its user.
func (o *Outbox) ResolveTargets(st storage.Interface, b *model.Bridge, m *model.Message) ([]string, error) {
	if m.Device != "" {
		return []string{m.Device}, nil
	}

	sessions, err := st.Sessions().FetchOpenByUser(b.ID, m.UserID)
	if err != nil {
		return nil, err
	}

	now := o.now()
	seen := make(map[string]bool)
	targets := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		if !sess.IsActive(now, b.Timeout()) || seen[sess.Device] {
			continue
		}
		seen[sess.Device] = true
		targets = append(targets, sess.Device)
	}

	return targets, nil
}

// Drain sends every pending message of b and marks it sent. Each message is
// handled in its own unit of work. A failed send ends the pass and leaves the
// message pending for the next one. It returns the number of messages marked sent.
func (o *Outbox) Drain(ctx context.Context, store storage.Interface, b *model.Bridge, sender Sender) (int, error) {
	pending, err := store.Messages().FetchPending(b.ID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to fetch pending messages")
	}

	sent := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		m := pending[i]
		err := store.WithinUnit(ctx, func(st storage.Interface) error {
			targets, err := o.ResolveTargets(st, b, &m)
			if err != nil {
				return errors.Wrap(err, "failed to resolve targets")
			}

			for n, device := range targets {
				out := transport.Outbound{
					To:        device,
					MessageID: strconv.FormatInt(m.ID, 10) + "-" + strconv.Itoa(n),
					Data:      outboundData(&m),
				}
				if err := sender.Send(out); err != nil {
					return err
				}
			}

			if len(targets) == 0 {
				log.WithFields(log.Fields{
					"bridge":  b.ID,
					"message": m.ID,
					"user":    m.UserID,
				}).Debug("No active session for outbox message")
			}

			return st.Messages().MarkSent(m.ID, o.now().UTC())
		})
		if err != nil {
			return sent, errors.Wrapf(err, "failed to deliver message %d", m.ID)
		}

		sent++
		recordOutbox(b.ID, m.Kind, "sent")
	}

	return sent, nil
}

func outboundData(m *model.Message) map[string]string {
	return map[string]string{
		"type":  m.Kind,
		"model": m.Model,
		"data":  m.Payload,
	}
}
