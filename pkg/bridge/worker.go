package bridge

import (
	"context"
	"sync/atomic"

	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/nsyszr/pushbridge/pkg/transport"
	log "github.com/sirupsen/logrus"
)

// worker drives the transport session of one bridge. Transport events are
// dispatched on the worker goroutine, so handlers never run concurrently
// with the drain step.
type worker struct {
	sup    *Supervisor
	bridge model.Bridge
	log    *log.Entry

	ctx     context.Context
	cancel  context.CancelFunc
	session transport.Session

	state     atomic.Int32
	attempts  atomic.Int32
	stop      atomic.Bool
	exhausted bool

	done chan struct{}
}

func newWorker(s *Supervisor, b model.Bridge) *worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &worker{
		sup:    s,
		bridge: b,
		log:    log.WithFields(log.Fields{"bridge": b.ID, "name": b.Name}),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (w *worker) State() State {
	return State(w.state.Load())
}

func (w *worker) Attempts() int {
	return int(w.attempts.Load())
}

func (w *worker) requestStop() {
	w.stop.Store(true)
}

func (w *worker) run() {
	defer close(w.done)
	defer w.cancel()
	defer w.sup.remove(w)

	w.log.Info("Bridge worker started")

	session, err := w.sup.dialer.Dial(transport.Params{
		Host:     w.bridge.Host,
		Port:     w.bridge.Port,
		UseTLS:   w.bridge.UseTLS,
		Account:  w.bridge.AccountID,
		Identity: w.bridge.Identity(),
		Secret:   w.bridge.Secret,
	}, w)
	if err != nil {
		w.log.Errorf("Failed to create transport session: %s", err)
		return
	}
	w.session = session

	w.state.Store(int32(StateConnecting))
	if err := session.Connect(w.ctx); err != nil {
		w.log.Errorf("Failed to connect: %s", err)
		w.OnDisconnected(err)
	}

	for !w.stop.Load() && !w.exhausted {
		if err := session.Process(w.ctx, w.sup.opts.PollInterval); err != nil {
			w.log.Errorf("Event processing aborted: %s", err)
			break
		}
		if w.State() == StateConnected {
			w.drain()
		}
	}

	if err := session.Disconnect(); err != nil {
		w.log.Warnf("Disconnect failed: %s", err)
	}

	if w.stop.Load() {
		w.state.Store(int32(StateStopped))
		w.unit("stop", func(st storage.Interface) error {
			return st.Bridges().SetConnected(w.bridge.ID, false)
		})
		w.log.Info("Bridge worker stopped")
		return
	}

	w.log.Warn("Bridge worker gave up reconnecting")
}

func (w *worker) drain() {
	b, err := w.sup.store.Bridges().FindByID(w.bridge.ID)
	if err != nil {
		w.log.Errorf("Failed to load bridge: %s", err)
		return
	}

	n, err := w.sup.outbox.Drain(w.ctx, w.sup.store, b, w.session)
	if err != nil {
		w.log.Errorf("Outbox drain failed: %s", err)
	}
	if n > 0 {
		w.log.Debugf("Delivered %d outbox messages", n)
	}
}

// unit runs fn in its own unit of work. Failures and panics are logged and
// never reach the worker loop.
func (w *worker) unit(name string, fn func(st storage.Interface) error) {
	defer func() {
		if p := recover(); p != nil {
			w.log.Errorf("Callback %s panicked: %v", name, p)
		}
	}()

	if err := w.sup.store.WithinUnit(w.ctx, fn); err != nil {
		w.log.Errorf("Callback %s failed: %s", name, err)
	}
}

func (w *worker) OnConnected() {
	w.attempts.Store(0)
	w.state.Store(int32(StateConnected))
	recordConnectionEvent(w.bridge.ID, "connected")
	w.log.Info("Bridge connected")

	w.unit("connected", func(st storage.Interface) error {
		return st.Bridges().SetConnected(w.bridge.ID, true)
	})
}

func (w *worker) OnDisconnected(err error) {
	w.state.Store(int32(StateDisconnected))
	recordConnectionEvent(w.bridge.ID, "disconnected")
	w.log.Warnf("Bridge disconnected: %v", err)

	w.unit("disconnected", func(st storage.Interface) error {
		return st.Bridges().SetConnected(w.bridge.ID, false)
	})

	if w.stop.Load() {
		return
	}

	for {
		if w.Attempts() >= w.sup.opts.MaxReconnectAttempts {
			w.exhausted = true
			w.log.Errorf("Giving up after %d reconnect attempts", w.Attempts())
			return
		}

		n := w.attempts.Add(1)
		recordConnectionEvent(w.bridge.ID, "reconnect")
		w.log.Infof("Reconnect attempt %d", n)

		w.state.Store(int32(StateConnecting))
		err := w.session.Connect(w.ctx)
		if err == nil {
			return
		}
		w.state.Store(int32(StateDisconnected))
		w.log.Errorf("Reconnect attempt %d failed: %s", n, err)
	}
}

func (w *worker) OnReceipt(r transport.Receipt) {
	w.log.WithFields(log.Fields{
		"message": r.MessageID,
		"device":  r.From,
		"status":  r.Status,
	}).Debug("Delivery receipt")
}

func (w *worker) OnMessage(e transport.Envelope) {
	w.log.WithField("device", e.From).Debugf("Inbound envelope %s", e.MessageID)

	w.unit("message", func(st storage.Interface) error {
		b, err := st.Bridges().FindByID(w.bridge.ID)
		if err != nil {
			return err
		}
		return w.sup.router.Route(w.ctx, st, b, e)
	})
}
