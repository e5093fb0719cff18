package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/pushbridge/config"
	"github.com/nsyszr/pushbridge/pkg/api"
	"github.com/nsyszr/pushbridge/pkg/auth"
	"github.com/nsyszr/pushbridge/pkg/authority"
	"github.com/nsyszr/pushbridge/pkg/bridge"
	"github.com/nsyszr/pushbridge/pkg/rpc"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/nsyszr/pushbridge/pkg/transport"
	"github.com/nsyszr/pushbridge/pkg/transport/natsio"
	"github.com/nsyszr/pushbridge/pkg/transport/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type bridgeServer struct {
	c *config.Config

	quitCh chan bool
	doneCh chan bool

	nc         *nats.Conn
	store      storage.Interface
	closeStore func() error

	supervisor  *bridge.Supervisor
	notifier    *bridge.Notifier
	maintenance *bridge.Maintenance
	sendSub     *nats.Subscription
}

func newBridgeServer(c *config.Config) (*bridgeServer, error) {
	s := &bridgeServer{
		c:      c,
		quitCh: make(chan bool),
		doneCh: make(chan bool),
	}

	store, closeStore, err := openStore(c)
	if err != nil {
		return nil, err
	}
	s.store = store
	s.closeStore = closeStore

	nc, err := connectNATS(c, "pushbridge")
	if err != nil {
		closeStore()
		return nil, err
	}
	s.nc = nc

	dialer, err := newDialer(c)
	if err != nil {
		s.Close()
		return nil, err
	}

	registry := rpc.NewRegistry()
	if err := rpc.NewForwarder(nc, c.SubjectPrefix).RegisterAll(registry, c.RPCOperations); err != nil {
		s.Close()
		return nil, err
	}
	log.WithField("operations", registry.Operations()).Info("Registered rpc operations")

	outbox := bridge.NewOutbox()
	sessions := bridge.NewSessions(newChecker(c, store, nc), outbox)
	router := bridge.NewRouter(sessions, outbox, rpc.NewDispatcher(registry, nil, c.RPCTimeout))

	s.supervisor = bridge.NewSupervisor(store, dialer, router, outbox, bridge.Options{
		PollInterval:         c.PollInterval,
		MaxReconnectAttempts: c.MaxReconnectAttempts,
	})
	s.notifier = bridge.NewNotifier(store, outbox, c.DefaultBridge)
	s.maintenance = bridge.NewMaintenance(store, sessions, c.PingCleanupLimit)

	return s, nil
}

func newDialer(c *config.Config) (transport.Dialer, error) {
	switch c.Transport {
	case "", "nats":
		return natsio.NewDialer(c.SubjectPrefix), nil
	case "websocket":
		return websocket.NewDialer(c.WebSocketPath), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", c.Transport)
	}
}

// newChecker adds the remote authority to the local checks.
func newChecker(c *config.Config, store storage.Interface, nc *nats.Conn) auth.Checker {
	chain := localChecker(c, store)
	if c.AuthorityEnabled {
		chain = append(chain, authority.NewAuthorityClient(nc, c.SubjectPrefix))
	}
	return chain
}

func (s *bridgeServer) jobs() []bridge.Job {
	return []bridge.Job{
		{
			Name:     "session-expiry",
			Interval: s.c.SessionSweepInterval,
			Run:      s.maintenance.SweepExpiry,
		},
		{
			Name:     "session-ping",
			Interval: s.c.PingSweepInterval,
			Run:      s.maintenance.SweepPing,
		},
		{
			Name:     "ping-cleanup",
			Interval: s.c.PingCleanupInterval,
			Run: func(ctx context.Context) error {
				_, _, err := s.maintenance.DeleteDeliveredPings(ctx)
				return err
			},
		},
	}
}

func (s *bridgeServer) Serve() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := s.maintenance.ResetConnected(ctx); err != nil {
		log.Errorf("Failed to reset connection flags: %s", err)
	}

	sub, err := s.notifier.Subscribe(s.nc, s.c.SubjectPrefix)
	if err != nil {
		log.Errorf("Failed to subscribe send requests: %s", err)
	}
	s.sendSub = sub

	if err := s.supervisor.StartAll(); err != nil {
		log.Errorf("Failed to start bridges: %s", err)
	}

	scheduler := bridge.NewScheduler(s.jobs()...)
	scheduler.Start(ctx)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(logger())

	bridge.RegisterMetrics()
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api.NewHandler(s.store, s.supervisor, s.notifier).RegisterRoutes(e)

	go func() {
		log.WithFields(log.Fields{
			"host": s.c.BindHost,
			"port": s.c.BindPort,
		}).Info("Starting server")

		if err := e.Start(fmt.Sprintf("%s:%d", s.c.BindHost, s.c.BindPort)); err != nil {
			log.Info("Shutting down the server")
		}
	}()

	// Wait until receiving the quit signal
	<-s.quitCh
	log.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error(err)
	}

	cancel()
	scheduler.Wait()

	if err := s.supervisor.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Failed to stop bridges: %s", err)
	}

	s.doneCh <- true
}

func (s *bridgeServer) Shutdown() {
	if s.sendSub != nil {
		s.sendSub.Unsubscribe()
	}

	// Send the quit signal to the Serve routine
	s.quitCh <- true

	// Wait up to 15 seconds
	select {
	case <-s.doneCh:
		log.Info("Shutdown server successful")
	case <-time.After(15 * time.Second):
		log.Error("Shutdown server failed")
	}
}

func (s *bridgeServer) Close() {
	if s.nc != nil {
		s.nc.Drain()
	}
	if s.closeStore != nil {
		if err := s.closeStore(); err != nil {
			log.Error(errors.Wrap(err, "failed to close database"))
		}
	}
}

// RunServeBridge starts the bridge workers, the scheduler and the HTTP API.
func RunServeBridge(c *config.Config) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		setupLogging(c)

		s, err := newBridgeServer(c)
		if err != nil {
			log.Error("failed to create new server instance: ", err)
			os.Exit(1)
		}
		defer s.Close()

		go s.Serve()

		// Wait for interrupt signal to gracefully shutdown the server
		quitCh := make(chan os.Signal, 1)
		signal.Notify(quitCh, os.Interrupt, syscall.SIGTERM)
		<-quitCh

		s.Shutdown()
	}
}
