package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"streamgate/internal/metrics"
	"streamgate/internal/remote"
	"streamgate/internal/session"
	"streamgate/internal/store"
	"streamgate/internal/token"

	"github.com/google/uuid"
)

// Registry records relayed uploads for the operator API. Failures here must
// not fail the ingestion; the object is already durable in the channel.
type Registry interface {
	RecordUpload(ctx context.Context, u store.Upload) error
}

// Links are the public URLs derived from a freshly relayed object. Stream
// is only set for playable video.
type Links struct {
	Download string `json:"download"`
	Stream   string `json:"stream,omitempty"`
}

type Result struct {
	ObjectID int64  `json:"-"`
	Token    string `json:"token"`
	Filename string `json:"filename,omitempty"`
	Video    bool   `json:"video"`
	Links    Links  `json:"links"`
}

// Service relays inbound documents into the storage channel and mints
// their public links. How the inbound reference is produced (webhook
// update, bot dialog) is the caller's concern.
type Service struct {
	sessions *session.Manager
	codec    *token.Codec
	registry Registry
	baseURL  string
}

func New(sessions *session.Manager, codec *token.Codec, registry Registry, baseURL string) *Service {
	return &Service{
		sessions: sessions,
		codec:    codec,
		registry: registry,
		baseURL:  strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
	}
}

// RelayInboundObject copies the referenced document into the storage
// channel and returns its public token and derived links.
func (s *Service) RelayInboundObject(ctx context.Context, ref remote.InboundRef) (Result, error) {
	sess, err := s.sessions.Acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer sess.Release()

	id, err := sess.Store().CopyToChannel(ctx, ref)
	if err != nil {
		return Result{}, s.noteRateLimit(err)
	}

	meta, err := sess.Store().FetchMetadata(ctx, id)
	if err != nil {
		return Result{}, s.noteRateLimit(fmt.Errorf("fetch metadata for relayed object %d: %w", id, err))
	}

	tok := s.codec.Encode(id)
	result := Result{
		ObjectID: id,
		Token:    tok,
		Filename: meta.Filename,
		Video:    meta.Video,
		Links:    Links{Download: s.baseURL + "/download/" + tok},
	}
	if meta.Video {
		result.Links.Stream = s.baseURL + "/stream/" + tok
	}

	if s.registry != nil {
		err := s.registry.RecordUpload(ctx, store.Upload{
			ID:          uuid.New(),
			ObjectID:    id,
			PublicToken: tok,
			Filename:    meta.Filename,
			SizeBytes:   meta.Size,
			MimeType:    meta.MimeHint,
			Video:       meta.Video,
		})
		if err != nil {
			log.Printf("warning: record upload %d: %v", id, err)
		}
	}

	return result, nil
}

func (s *Service) noteRateLimit(err error) error {
	var rl *remote.RateLimitError
	if errors.As(err, &rl) {
		metrics.RemoteRateLimitsTotal.Inc()
		s.sessions.ReportRateLimit(rl.RetryAfter)
	}
	return err
}
