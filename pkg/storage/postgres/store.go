package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/pkg/errors"
)

// store contains all PostgreSQL based sub-stores for managing the models
type store struct {
	db       *sqlx.DB
	tx       *sqlx.Tx
	bridges  *bridgeStore
	sessions *sessionStore
	messages *messageStore
	users    *userStore
}

// NewStore creates a new PostgreSQL based Storage interface
func NewStore(db *sqlx.DB) storage.Interface {
	return newStore(db, nil, db)
}

func newStore(db *sqlx.DB, tx *sqlx.Tx, ext sqlx.Ext) *store {
	return &store{
		db:       db,
		tx:       tx,
		bridges:  newBridgeStore(ext),
		sessions: newSessionStore(ext),
		messages: newMessageStore(ext),
		users:    newUserStore(ext),
	}
}

// Bridges returns a sub-store for managing the Bridge model
func (s *store) Bridges() storage.BridgeStore {
	return s.bridges
}

// Sessions returns a sub-store for managing the Session model
func (s *store) Sessions() storage.SessionStore {
	return s.sessions
}

// Messages returns a sub-store for managing the outbox Message model
func (s *store) Messages() storage.MessageStore {
	return s.messages
}

// Users returns a sub-store for managing the User model
func (s *store) Users() storage.UserStore {
	return s.users
}

// WithinUnit runs fn inside a database transaction.
func (s *store) WithinUnit(ctx context.Context, fn func(storage.Interface) error) (err error) {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin unit of work")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = errors.Wrap(cerr, "failed to commit unit of work")
		}
	}()

	return fn(newStore(s.db, tx, tx))
}

// insertQuery builds a named INSERT for all params except the serial id column.
func insertQuery(table string, params []string) string {
	sqlParamsWithoutID := make([]string, 0, len(params))
	for _, p := range params {
		if p != "id" {
			sqlParamsWithoutID = append(sqlParamsWithoutID, p)
		}
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table,
		strings.Join(sqlParamsWithoutID, ", "),
		":"+strings.Join(sqlParamsWithoutID, ", :"),
	)
}

// updateQuery builds a named UPDATE of all params keyed by id.
func updateQuery(table string, params []string) string {
	var queryParams []string
	for _, param := range params {
		if param == "id" || param == "created_at" {
			continue
		}
		queryParams = append(queryParams, fmt.Sprintf("%s=:%s", param, param))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id=:id", table, strings.Join(queryParams, ", "))
}

// namedInsert runs an insert built by insertQuery and scans the new id into dest.
func namedInsert(ext sqlx.Ext, query string, arg interface{}, dest interface{}) error {
	rows, err := sqlx.NamedQuery(ext, query, arg)
	if err != nil {
		return err
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(dest); err != nil {
			return err
		}
	}
	return rows.Err()
}

func rowsAffected(res interface{ RowsAffected() (int64, error) }) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
