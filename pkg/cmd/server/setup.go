package server

import (
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/pushbridge/config"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/nsyszr/pushbridge/pkg/storage/memory"
	"github.com/nsyszr/pushbridge/pkg/storage/postgres"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// MemoryDatabase selects the in-memory store instead of PostgreSQL.
const MemoryDatabase = "memory"

func setupLogging(c *config.Config) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warnf("Unknown log level %q, falling back to info", c.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// openStore returns the store selected by the database url. The returned
// close func releases the database connection, if any.
func openStore(c *config.Config) (storage.Interface, func() error, error) {
	if c.DatabaseURL == "" || c.DatabaseURL == MemoryDatabase {
		log.Warn("Using the in-memory store, state is lost on restart")
		return memory.NewStore(), func() error { return nil }, nil
	}

	db, err := sqlx.Connect("postgres", c.DatabaseURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to database")
	}
	return postgres.NewStore(db), db.Close, nil
}

func connectNATS(c *config.Config, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(c.NATSServerURL,
		nats.Name(name),
		nats.DrainTimeout(10*time.Second),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			fields := log.Fields{}
			if sub != nil {
				fields["subject"] = sub.Subject
			}
			log.WithFields(fields).Errorf("NATS error: %s", err)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("Disconnected from NATS: %s", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("Reconnected to NATS at %s", nc.ConnectedUrl())
		}))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to NATS at %s", c.NATSServerURL)
	}
	return nc, nil
}
