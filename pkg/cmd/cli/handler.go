package cli

import "github.com/nsyszr/pushbridge/config"

type Handler struct {
	Migration *MigrateHandler
	User      *UserHandler
	Send      *SendHandler
}

func NewHandler(c *config.Config) *Handler {
	return &Handler{
		Migration: newMigrateHandler(c),
		User:      newUserHandler(c),
		Send:      newSendHandler(c),
	}
}
