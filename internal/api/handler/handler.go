package handler

import (
	"supportchat/backend/internal/chathub"
	"supportchat/backend/internal/config"
	"supportchat/backend/internal/storage"
)

// Handler wires the HTTP surface to the chat hub and the store.
type Handler struct {
	Hub     *chathub.ManagerService
	Storage storage.Store
	Cfg     *config.Config
}

func NewHandler(hub *chathub.ManagerService, s storage.Store, cfg *config.Config) *Handler {
	return &Handler{Hub: hub, Storage: s, Cfg: cfg}
}
