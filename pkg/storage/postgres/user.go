package postgres

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/pkg/errors"
)

func newUserStore(db sqlx.Ext) *userStore {
	return &userStore{
		db: db,
	}
}

type userStore struct {
	db sqlx.Ext
}

type sqlDataUser struct {
	ID           int32     `db:"id"`
	Login        string    `db:"login"`
	PasswordHash string    `db:"password_hash"`
	Name         string    `db:"name"`
	ContactID    int32     `db:"contact_id"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

var sqlParamsUser = []string{
	"id",
	"login",
	"password_hash",
	"name",
	"contact_id",
	"created_at",
	"updated_at",
}

func (d *sqlDataUser) Scan(m *model.User) {
	now := time.Now().Round(time.Second).UTC()

	d.ID = m.ID
	d.Login = m.Login
	d.PasswordHash = m.PasswordHash
	d.Name = m.Name
	d.ContactID = m.ContactID
	d.CreatedAt = now
	d.UpdatedAt = now
}

func (d *sqlDataUser) Model() *model.User {
	return &model.User{
		ID:           d.ID,
		Login:        d.Login,
		PasswordHash: d.PasswordHash,
		Name:         d.Name,
		ContactID:    d.ContactID,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (s *userStore) FindByID(id int32) (*model.User, error) {
	return s.findOne("SELECT * FROM users WHERE id=$1", id)
}

func (s *userStore) FindByLogin(login string) (*model.User, error) {
	return s.findOne("SELECT * FROM users WHERE login=$1", login)
}

func (s *userStore) Create(m *model.User) error {
	d := sqlDataUser{}
	d.Scan(m)

	if err := namedInsert(s.db, insertQuery("users", sqlParamsUser), d, &m.ID); err != nil {
		return errors.Wrap(err, "failed to create user")
	}
	m.CreatedAt = d.CreatedAt
	m.UpdatedAt = d.UpdatedAt

	return nil
}

func (s *userStore) findOne(query string, args ...interface{}) (*model.User, error) {
	d := sqlDataUser{}
	if err := sqlx.Get(s.db, &d, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find user")
	}

	return d.Model(), nil
}
