package server

import (
	"os"
	"os/signal"
	"syscall"

	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/pushbridge/config"
	"github.com/nsyszr/pushbridge/pkg/auth"
	"github.com/nsyszr/pushbridge/pkg/authority"
	"github.com/nsyszr/pushbridge/pkg/storage"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type authorityServer struct {
	nc         *nats.Conn
	closeStore func() error
	h          *authority.AuthorityHandler
}

func newAuthorityServer(c *config.Config) (*authorityServer, error) {
	store, closeStore, err := openStore(c)
	if err != nil {
		return nil, err
	}

	nc, err := connectNATS(c, "pushbridge-authority")
	if err != nil {
		closeStore()
		return nil, err
	}

	return &authorityServer{
		nc:         nc,
		closeStore: closeStore,
		h:          authority.NewAuthorityHandler(nc, c.SubjectPrefix, localChecker(c, store)),
	}, nil
}

// localChecker chains the password check with the optional Google token check.
func localChecker(c *config.Config, store storage.Interface) auth.Chain {
	chain := auth.Chain{auth.NewPasswordChecker(store)}
	if c.OAuthClientID != "" {
		chain = append(chain, auth.NewGoogleChecker(store, c.OAuthClientID))
	}
	return chain
}

func (s *authorityServer) Serve() error {
	log.Info("Starting authority server")

	if err := s.h.Subscribe(); err != nil {
		return err
	}

	log.Info("Authority server started successfully")
	return nil
}

func (s *authorityServer) Shutdown() {
	log.Info("Shutting down authority server")
	if err := s.h.Unsubscribe(); err != nil {
		log.Warnf("Failed to unsubscribe: %s", err)
	}
	if s.nc != nil {
		s.nc.Drain()
	}
	if s.closeStore != nil {
		s.closeStore()
	}
	log.Info("Authority server shutdown successfully")
}

// RunServeAuthority answers authorize requests from other bridge instances.
func RunServeAuthority(c *config.Config) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		setupLogging(c)

		s, err := newAuthorityServer(c)
		if err != nil {
			log.Fatal(err)
		}

		if err := s.Serve(); err != nil {
			s.Shutdown()
			log.Fatal(err)
		}

		// Wait for interrupt signal to gracefully shutdown the server
		quitCh := make(chan os.Signal, 1)
		signal.Notify(quitCh, os.Interrupt, syscall.SIGTERM)
		<-quitCh

		s.Shutdown()
	}
}
