package handlers

import (
	"context"

	"streamgate/internal/auth"
	"streamgate/internal/config"
	"streamgate/internal/ingest"
	"streamgate/internal/relay"
	"streamgate/internal/store"
)

// UploadLister is the registry read surface for the operator API.
// *store.Store satisfies it.
type UploadLister interface {
	ListRecentUploads(ctx context.Context, limit int) ([]store.Upload, error)
}

type Handler struct {
	cfg     config.Config
	relay   *relay.Relay
	ingest  *ingest.Service
	uploads UploadLister
	auth    *auth.Authenticator
}

func New(cfg config.Config, rly *relay.Relay, ing *ingest.Service, uploads UploadLister, authn *auth.Authenticator) *Handler {
	return &Handler{
		cfg:     cfg,
		relay:   rly,
		ingest:  ing,
		uploads: uploads,
		auth:    authn,
	}
}
