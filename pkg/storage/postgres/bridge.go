package postgres

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/pkg/errors"
)

func newBridgeStore(db sqlx.Ext) *bridgeStore {
	return &bridgeStore{
		db: db,
	}
}

type bridgeStore struct {
	db sqlx.Ext
}

type sqlDataBridge struct {
	ID             int32     `db:"id"`
	Name           string    `db:"name"`
	Host           string    `db:"host"`
	Port           int       `db:"port"`
	UseTLS         bool      `db:"use_tls"`
	AccountID      string    `db:"account_id"`
	Domain         string    `db:"domain"`
	Secret         string    `db:"secret"`
	Connected      bool      `db:"connected"`
	SessionTimeout int       `db:"session_timeout"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

var sqlParamsBridge = []string{
	"id",
	"name",
	"host",
	"port",
	"use_tls",
	"account_id",
	"domain",
	"secret",
	"connected",
	"session_timeout",
	"created_at",
	"updated_at",
}

func (d *sqlDataBridge) Scan(m *model.Bridge) {
	var createdAt, updatedAt = m.CreatedAt, m.UpdatedAt

	if m.CreatedAt.IsZero() {
		createdAt = time.Now().Round(time.Second).UTC()
	}

	if m.UpdatedAt.IsZero() {
		updatedAt = time.Now().Round(time.Second).UTC()
	}

	d.ID = m.ID
	d.Name = m.Name
	d.Host = m.Host
	d.Port = m.Port
	d.UseTLS = m.UseTLS
	d.AccountID = m.AccountID
	d.Domain = m.Domain
	d.Secret = m.Secret
	d.Connected = m.Connected
	d.SessionTimeout = m.SessionTimeout
	d.CreatedAt = createdAt
	d.UpdatedAt = updatedAt
}

func (d *sqlDataBridge) Model() *model.Bridge {
	return &model.Bridge{
		ID:             d.ID,
		Name:           d.Name,
		Host:           d.Host,
		Port:           d.Port,
		UseTLS:         d.UseTLS,
		AccountID:      d.AccountID,
		Domain:         d.Domain,
		Secret:         d.Secret,
		Connected:      d.Connected,
		SessionTimeout: d.SessionTimeout,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func (s *bridgeStore) FetchAll() (map[int32]model.Bridge, error) {
	rows := make([]sqlDataBridge, 0)
	models := make(map[int32]model.Bridge)

	query := "SELECT * FROM bridges ORDER BY id"
	if err := sqlx.Select(s.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "failed to fetch all bridges")
	}

	for _, d := range rows {
		models[d.ID] = *d.Model()
	}

	return models, nil
}

func (s *bridgeStore) FindByID(id int32) (*model.Bridge, error) {
	d := sqlDataBridge{}
	query := "SELECT * FROM bridges WHERE id=$1"
	if err := sqlx.Get(s.db, &d, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find bridge")
	}

	return d.Model(), nil
}

func (s *bridgeStore) Create(m *model.Bridge) error {
	if m.SessionTimeout == 0 {
		m.SessionTimeout = model.DefaultSessionTimeout
	}

	d := sqlDataBridge{}
	d.Scan(m)

	if err := namedInsert(s.db, insertQuery("bridges", sqlParamsBridge), d, &m.ID); err != nil {
		return errors.Wrap(err, "failed to create bridge")
	}
	m.CreatedAt = d.CreatedAt
	m.UpdatedAt = d.UpdatedAt

	return nil
}

func (s *bridgeStore) Update(m *model.Bridge) error {
	if _, err := s.FindByID(m.ID); err != nil {
		return err
	}

	m.UpdatedAt = time.Now().Round(time.Second).UTC()

	d := sqlDataBridge{}
	d.Scan(m)

	if _, err := sqlx.NamedExec(s.db, updateQuery("bridges", sqlParamsBridge), d); err != nil {
		return errors.Wrap(err, "failed to update bridge")
	}

	return nil
}

func (s *bridgeStore) SetConnected(id int32, connected bool) error {
	query := "UPDATE bridges SET connected=$1, updated_at=$2 WHERE id=$3"
	res, err := s.db.Exec(query, connected, time.Now().Round(time.Second).UTC(), id)
	if err != nil {
		return errors.Wrap(err, "failed to update bridge connected flag")
	}
	if rowsAffected(res) == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *bridgeStore) ResetConnected() (int64, error) {
	res, err := s.db.Exec("UPDATE bridges SET connected=false WHERE connected")
	if err != nil {
		return 0, errors.Wrap(err, "failed to reset bridge connected flags")
	}

	return rowsAffected(res), nil
}

func (s *bridgeStore) Delete(id int32) error {
	var refs int
	if err := sqlx.Get(s.db, &refs, "SELECT count(*) FROM sessions WHERE bridge_id=$1", id); err != nil {
		return errors.Wrap(err, "failed to count bridge sessions")
	}
	if refs > 0 {
		return storage.ErrReferenced
	}

	res, err := s.db.Exec("DELETE FROM bridges WHERE id=$1", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete bridge")
	}
	if rowsAffected(res) == 0 {
		return storage.ErrNotFound
	}

	return nil
}
