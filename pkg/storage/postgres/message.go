package postgres

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/pkg/errors"
)

func newMessageStore(db sqlx.Ext) *messageStore {
	return &messageStore{
		db: db,
	}
}

type messageStore struct {
	db sqlx.Ext
}

type sqlDataMessage struct {
	ID        int64          `db:"id"`
	BridgeID  int32          `db:"bridge_id"`
	Device    sql.NullString `db:"device"`
	UserID    sql.NullInt32  `db:"user_id"`
	Kind      string         `db:"kind"`
	ModelName string         `db:"model"`
	Payload   string         `db:"payload"`
	CreatedAt time.Time      `db:"created_at"`
	SentAt    sql.NullTime   `db:"sent_at"`
}

var sqlParamsMessage = []string{
	"id",
	"bridge_id",
	"device",
	"user_id",
	"kind",
	"model",
	"payload",
	"created_at",
	"sent_at",
}

func (d *sqlDataMessage) Scan(m *model.Message) {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	d.ID = m.ID
	d.BridgeID = m.BridgeID
	d.Device = sql.NullString{String: m.Device, Valid: m.Device != ""}
	d.UserID = sql.NullInt32{Int32: m.UserID, Valid: m.UserID != 0}
	d.Kind = m.Kind
	d.ModelName = m.Model
	d.Payload = m.Payload
	d.CreatedAt = createdAt
	d.SentAt = sql.NullTime{}
	if m.SentAt != nil {
		d.SentAt = sql.NullTime{Time: m.SentAt.UTC(), Valid: true}
	}
}

func (d *sqlDataMessage) Model() *model.Message {
	m := &model.Message{
		ID:        d.ID,
		BridgeID:  d.BridgeID,
		Device:    d.Device.String,
		UserID:    d.UserID.Int32,
		Kind:      d.Kind,
		Model:     d.ModelName,
		Payload:   d.Payload,
		CreatedAt: d.CreatedAt,
	}
	if d.SentAt.Valid {
		sent := d.SentAt.Time
		m.SentAt = &sent
	}
	return m
}

func (s *messageStore) FindByID(id int64) (*model.Message, error) {
	d := sqlDataMessage{}
	if err := sqlx.Get(s.db, &d, "SELECT * FROM messages WHERE id=$1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find message")
	}

	return d.Model(), nil
}

// FetchPending returns the unsent messages of a bridge in creation order.
// Rows are locked when called inside a unit of work.
func (s *messageStore) FetchPending(bridgeID int32) ([]model.Message, error) {
	query := "SELECT * FROM messages WHERE bridge_id=$1 AND sent_at IS NULL ORDER BY id"
	if _, ok := s.db.(*sqlx.Tx); ok {
		query += " FOR UPDATE SKIP LOCKED"
	}
	return s.fetch(query, bridgeID)
}

func (s *messageStore) FetchByBridge(bridgeID int32) ([]model.Message, error) {
	return s.fetch("SELECT * FROM messages WHERE bridge_id=$1 ORDER BY id", bridgeID)
}

func (s *messageStore) Create(m *model.Message) error {
	d := sqlDataMessage{}
	d.Scan(m)

	if err := namedInsert(s.db, insertQuery("messages", sqlParamsMessage), d, &m.ID); err != nil {
		return errors.Wrap(err, "failed to create message")
	}
	m.CreatedAt = d.CreatedAt
	m.SentAt = nil

	return nil
}

func (s *messageStore) MarkSent(id int64, at time.Time) error {
	res, err := s.db.Exec("UPDATE messages SET sent_at=$1 WHERE id=$2 AND sent_at IS NULL", at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "failed to mark message sent")
	}
	if rowsAffected(res) == 0 {
		// Either unknown or already sent
		if _, err := s.FindByID(id); err != nil {
			return err
		}
	}

	return nil
}

func (s *messageStore) DeleteSent(kind string, limit int) (int64, error) {
	query := "DELETE FROM messages WHERE id IN " +
		"(SELECT id FROM messages WHERE kind=$1 AND sent_at IS NOT NULL ORDER BY id LIMIT $2)"

	var lim interface{}
	if limit > 0 {
		lim = limit
	}

	res, err := s.db.Exec(query, kind, lim)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete sent messages")
	}

	return rowsAffected(res), nil
}

func (s *messageStore) CountSent(kind string) (int64, error) {
	var n int64
	if err := sqlx.Get(s.db, &n, "SELECT count(*) FROM messages WHERE kind=$1 AND sent_at IS NOT NULL", kind); err != nil {
		return 0, errors.Wrap(err, "failed to count sent messages")
	}

	return n, nil
}

func (s *messageStore) fetch(query string, args ...interface{}) ([]model.Message, error) {
	rows := make([]sqlDataMessage, 0)
	if err := sqlx.Select(s.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to fetch messages")
	}

	models := make([]model.Message, 0, len(rows))
	for _, d := range rows {
		models = append(models, *d.Model())
	}

	return models, nil
}
