package bridge

import (
	"context"
	"sort"

	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultPingCleanupLimit caps the delivered pings deleted per cleanup run.
const DefaultPingCleanupLimit = 10000

// Maintenance holds the scheduled housekeeping operations.
type Maintenance struct {
	store    storage.Interface
	sessions *Sessions
	limit    int
}

func NewMaintenance(store storage.Interface, sessions *Sessions, limit int) *Maintenance {
	if limit <= 0 {
		limit = DefaultPingCleanupLimit
	}
	return &Maintenance{
		store:    store,
		sessions: sessions,
		limit:    limit,
	}
}

// ResetConnected clears the connected flag of every bridge. It runs at
// startup so workers re-establish their connections cleanly.
func (m *Maintenance) ResetConnected(ctx context.Context) (int64, error) {
	var n int64
	err := m.store.WithinUnit(ctx, func(st storage.Interface) error {
		var err error
		n, err = st.Bridges().ResetConnected()
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to reset bridges")
	}

	log.Infof("Reset connected flag of %d bridges", n)
	return n, nil
}

// SweepExpiry recomputes session liveness on every bridge.
func (m *Maintenance) SweepExpiry(ctx context.Context) error {
	return m.eachBridge(ctx, func(st storage.Interface, b *model.Bridge) error {
		n, err := m.sessions.SweepExpiry(st, b)
		if n > 0 {
			log.WithField("bridge", b.ID).Debugf("Updated liveness of %d sessions", n)
		}
		return err
	})
}

// SweepPing pings idle sessions on every bridge.
func (m *Maintenance) SweepPing(ctx context.Context) error {
	return m.eachBridge(ctx, func(st storage.Interface, b *model.Bridge) error {
		n, err := m.sessions.SweepPing(st, b)
		if n > 0 {
			log.WithField("bridge", b.ID).Debugf("Enqueued %d pings", n)
		}
		return err
	})
}

// DeleteDeliveredPings removes up to the configured limit of delivered pings
// and reports how many remain.
func (m *Maintenance) DeleteDeliveredPings(ctx context.Context) (deleted, remaining int64, err error) {
	err = m.store.WithinUnit(ctx, func(st storage.Interface) error {
		deleted, err = st.Messages().DeleteSent(model.KindPing, m.limit)
		if err != nil {
			return err
		}
		remaining, err = st.Messages().CountSent(model.KindPing)
		return err
	})
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to delete delivered pings")
	}

	log.WithFields(log.Fields{
		"deleted":   deleted,
		"remaining": remaining,
	}).Info("Deleted delivered pings")

	return deleted, remaining, nil
}

// eachBridge runs fn for every bridge in its own unit of work. A failing
// bridge does not stop the others; the first error is returned.
func (m *Maintenance) eachBridge(ctx context.Context, fn func(st storage.Interface, b *model.Bridge) error) error {
	bridges, err := m.store.Bridges().FetchAll()
	if err != nil {
		return errors.Wrap(err, "failed to fetch bridges")
	}

	ids := make([]int32, 0, len(bridges))
	for id := range bridges {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var first error
	for _, id := range ids {
		b := bridges[id]
		err := m.store.WithinUnit(ctx, func(st storage.Interface) error {
			return fn(st, &b)
		})
		if err != nil {
			log.WithField("bridge", id).Errorf("Maintenance failed: %s", err)
			if first == nil {
				first = err
			}
		}
	}

	return first
}
