package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nsyszr/pushbridge/config"
	"github.com/nsyszr/pushbridge/pkg/auth"
	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/nsyszr/pushbridge/pkg/storage/postgres"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type UserHandler struct {
	c *config.Config
}

func newUserHandler(c *config.Config) *UserHandler {
	return &UserHandler{c: c}
}

// AddUser creates a directory user with a bcrypt hashed password.
func (h *UserHandler) AddUser(cmd *cobra.Command, args []string) {
	if len(args) != 2 {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	}
	url := getDatabaseURL(cmd, nil, 0, h.c.DatabaseURL)
	if url == "" {
		os.Exit(2)
	}

	setupColoredLogging()

	name, _ := cmd.Flags().GetString("name")
	contact, _ := cmd.Flags().GetInt32("contact")

	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		log.Errorf("An error occurred while connecting to SQL: %s", err)
		os.Exit(1)
	}
	defer db.Close()

	u, err := newUser(args[0], args[1], name, contact)
	if err != nil {
		log.Errorf("An error occurred while hashing the password: %s", err)
		os.Exit(1)
	}

	if err := createUser(context.Background(), postgres.NewStore(db), u); err != nil {
		log.Errorf("An error occurred while creating the user: %s", err)
		os.Exit(1)
	}
	log.WithField("login", u.Login).Infof("Created user with id %d", u.ID)
}

func newUser(login, password, name string, contactID int32) (*model.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = login
	}
	now := time.Now().UTC()
	return &model.User{
		Login:        login,
		PasswordHash: hash,
		Name:         name,
		ContactID:    contactID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func createUser(ctx context.Context, store storage.Interface, u *model.User) error {
	return store.WithinUnit(ctx, func(st storage.Interface) error {
		if _, err := st.Users().FindByLogin(u.Login); err == nil {
			return fmt.Errorf("login %q is taken", u.Login)
		} else if err != storage.ErrNotFound {
			return err
		}
		return st.Users().Create(u)
	})
}
