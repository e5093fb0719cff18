package model

import "time"

// User is an entry of the backend user directory
type User struct {
	ID           int32
	Login        string
	PasswordHash string
	Name         string
	ContactID    int32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
