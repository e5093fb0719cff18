package postgres

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/pkg/errors"
)

func newSessionStore(db sqlx.Ext) *sessionStore {
	return &sessionStore{
		db: db,
	}
}

type sessionStore struct {
	db sqlx.Ext
}

type sqlDataSession struct {
	ID         int32        `db:"id"`
	BridgeID   int32        `db:"bridge_id"`
	Device     string       `db:"device"`
	UserID     int32        `db:"user_id"`
	ContactID  int32        `db:"contact_id"`
	Key        string       `db:"session_key"`
	LastSeenAt sql.NullTime `db:"last_seen_at"`
	Closed     bool         `db:"closed"`
	Active     bool         `db:"active"`
	CreatedAt  time.Time    `db:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at"`
}

var sqlParamsSession = []string{
	"id",
	"bridge_id",
	"device",
	"user_id",
	"contact_id",
	"session_key",
	"last_seen_at",
	"closed",
	"active",
	"created_at",
	"updated_at",
}

func (d *sqlDataSession) Scan(m *model.Session) {
	now := time.Now().Round(time.Second).UTC()

	d.ID = m.ID
	d.BridgeID = m.BridgeID
	d.Device = m.Device
	d.UserID = m.UserID
	d.ContactID = m.ContactID
	d.Key = m.Key
	d.LastSeenAt = sql.NullTime{}
	if m.LastSeenAt != nil {
		d.LastSeenAt = sql.NullTime{Time: *m.LastSeenAt, Valid: true}
	}
	d.Closed = m.Closed
	d.Active = m.Active
	d.CreatedAt = now
	d.UpdatedAt = now
}

func (d *sqlDataSession) Model() *model.Session {
	m := &model.Session{
		ID:        d.ID,
		BridgeID:  d.BridgeID,
		Device:    d.Device,
		UserID:    d.UserID,
		ContactID: d.ContactID,
		Key:       d.Key,
		Closed:    d.Closed,
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.LastSeenAt.Valid {
		last := d.LastSeenAt.Time
		m.LastSeenAt = &last
	}
	return m
}

func (s *sessionStore) FindByID(id int32) (*model.Session, error) {
	return s.findOne("SELECT * FROM sessions WHERE id=$1", id)
}

func (s *sessionStore) FindOpen(bridgeID int32, device, key string) (*model.Session, error) {
	return s.findOne(
		"SELECT * FROM sessions WHERE bridge_id=$1 AND device=$2 AND session_key=$3 AND NOT closed",
		bridgeID, device, key)
}

func (s *sessionStore) FetchByBridge(bridgeID int32) ([]model.Session, error) {
	return s.fetch("SELECT * FROM sessions WHERE bridge_id=$1 ORDER BY id", bridgeID)
}

func (s *sessionStore) FetchOpenByUser(bridgeID, userID int32) ([]model.Session, error) {
	return s.fetch(
		"SELECT * FROM sessions WHERE bridge_id=$1 AND user_id=$2 AND NOT closed ORDER BY id",
		bridgeID, userID)
}

func (s *sessionStore) Create(m *model.Session) error {
	d := sqlDataSession{}
	d.Scan(m)

	if err := namedInsert(s.db, insertQuery("sessions", sqlParamsSession), d, &m.ID); err != nil {
		return errors.Wrap(err, "failed to create session")
	}
	m.CreatedAt = d.CreatedAt
	m.UpdatedAt = d.UpdatedAt

	return nil
}

func (s *sessionStore) CloseByDevice(bridgeID int32, device string) (int64, error) {
	query := "UPDATE sessions SET closed=true, active=false, updated_at=$1 " +
		"WHERE bridge_id=$2 AND device=$3 AND NOT closed"
	res, err := s.db.Exec(query, time.Now().Round(time.Second).UTC(), bridgeID, device)
	if err != nil {
		return 0, errors.Wrap(err, "failed to close device sessions")
	}

	return rowsAffected(res), nil
}

func (s *sessionStore) Touch(id int32, at time.Time, active bool) error {
	query := "UPDATE sessions SET last_seen_at=$1, active=$2, updated_at=$3 WHERE id=$4"
	return s.exec(query, at.UTC(), active, time.Now().Round(time.Second).UTC(), id)
}

func (s *sessionStore) SetActive(id int32, active bool) error {
	query := "UPDATE sessions SET active=$1, updated_at=$2 WHERE id=$3"
	return s.exec(query, active, time.Now().Round(time.Second).UTC(), id)
}

func (s *sessionStore) exec(query string, args ...interface{}) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return errors.Wrap(err, "failed to update session")
	}
	if rowsAffected(res) == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *sessionStore) findOne(query string, args ...interface{}) (*model.Session, error) {
	d := sqlDataSession{}
	if err := sqlx.Get(s.db, &d, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find session")
	}

	return d.Model(), nil
}

func (s *sessionStore) fetch(query string, args ...interface{}) ([]model.Session, error) {
	rows := make([]sqlDataSession, 0)
	if err := sqlx.Select(s.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to fetch sessions")
	}

	models := make([]model.Session, 0, len(rows))
	for _, d := range rows {
		models = append(models, *d.Model())
	}

	return models, nil
}
