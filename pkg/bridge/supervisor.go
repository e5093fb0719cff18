package bridge

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/nsyszr/pushbridge/pkg/transport"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// State is the connection state of a bridge worker.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Options tune the worker loop.
type Options struct {
	PollInterval         time.Duration
	MaxReconnectAttempts int
}

// DefaultOptions polls every five seconds and reconnects three times.
var DefaultOptions = Options{
	PollInterval:         5 * time.Second,
	MaxReconnectAttempts: 3,
}

// Status is a snapshot of a bridge worker.
type Status struct {
	BridgeID      int32
	Running       bool
	State         State
	Attempts      int
	StopRequested bool
}

// Supervisor owns one worker per started bridge.
type Supervisor struct {
	store  storage.Interface
	dialer transport.Dialer
	router *Router
	outbox *Outbox
	opts   Options

	mu       sync.Mutex
	workers  map[int32]*worker
	finished map[int32]State
	wg       sync.WaitGroup
}

func NewSupervisor(store storage.Interface, dialer transport.Dialer, router *Router, outbox *Outbox, opts Options) *Supervisor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions.PollInterval
	}
	if opts.MaxReconnectAttempts < 0 {
		opts.MaxReconnectAttempts = 0
	}

	return &Supervisor{
		store:    store,
		dialer:   dialer,
		router:   router,
		outbox:   outbox,
		opts:     opts,
		workers:  make(map[int32]*worker),
		finished: make(map[int32]State),
	}
}

// Start spawns the worker of b.
func (s *Supervisor) Start(b *model.Bridge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workers[b.ID]; ok {
		return ErrAlreadyRunning
	}

	w := newWorker(s, *b)
	s.workers[b.ID] = w
	delete(s.finished, b.ID)

	s.wg.Add(1)
	workersRunning.Inc()
	go func() {
		defer s.wg.Done()
		defer workersRunning.Dec()
		w.run()
	}()

	return nil
}

// StartByID loads the bridge from the store and starts it.
func (s *Supervisor) StartByID(id int32) error {
	b, err := s.store.Bridges().FindByID(id)
	if err != nil {
		return err
	}
	return s.Start(b)
}

// StartAll starts every configured bridge that is not running yet.
func (s *Supervisor) StartAll() error {
	bridges, err := s.store.Bridges().FetchAll()
	if err != nil {
		return errors.Wrap(err, "failed to fetch bridges")
	}

	for _, b := range bridges {
		b := b
		if err := s.Start(&b); err != nil && err != ErrAlreadyRunning {
			return err
		}
	}

	return nil
}

// Stop asks the worker of id to finish after its current cycle.
func (s *Supervisor) Stop(id int32) error {
	s.mu.Lock()
	w, ok := s.workers[id]
	s.mu.Unlock()

	if !ok {
		return ErrNotRunning
	}
	w.requestStop()

	return nil
}

// StopAndWait stops the worker of id and waits until it has exited.
func (s *Supervisor) StopAndWait(ctx context.Context, id int32) error {
	s.mu.Lock()
	w, ok := s.workers[id]
	s.mu.Unlock()

	if !ok {
		return ErrNotRunning
	}
	w.requestStop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports the state of the worker of id, or its final state once exited.
func (s *Supervisor) Status(id int32) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.workers[id]; ok {
		return Status{
			BridgeID:      id,
			Running:       true,
			State:         w.State(),
			Attempts:      w.Attempts(),
			StopRequested: w.stop.Load(),
		}
	}

	return Status{
		BridgeID: id,
		State:    s.finished[id],
	}
}

// Running returns the ids of all registered workers.
func (s *Supervisor) Running() []int32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int32, 0, len(s.workers))
	for id := range s.workers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// Shutdown stops every worker and waits for them to exit.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, w := range s.workers {
		w.requestStop()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("All bridge workers stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) remove(w *worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.workers[w.bridge.ID] == w {
		delete(s.workers, w.bridge.ID)
		s.finished[w.bridge.ID] = w.State()
	}
}
