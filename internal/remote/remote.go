package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Metadata describes a stored object. It is fetched on demand for every
// request; the remote store is the source of truth and entries can vanish,
// so nothing here is cached.
type Metadata struct {
	ID       int64
	Size     int64
	Filename string
	MimeHint string
	Video    bool
}

// InboundRef identifies the document to relay into the storage channel.
// ChatID/MessageID address a document in an inbound platform message;
// SourceKey addresses an object directly for backends without a message
// layer (the S3 store).
type InboundRef struct {
	ChatID    int64
	MessageID int64
	SourceKey string
}

// ChunkStream is a lazy, bounded sequence of byte buffers read from the
// remote store. Next blocks on network I/O and returns io.EOF after the
// last chunk. Chunks arrive in ascending offset order.
//
// Cancellation rides on the context the stream was opened with: when it is
// cancelled the in-flight Next fails and no further fetches happen.
type ChunkStream interface {
	Next() ([]byte, error)
	Close() error
}

// Store is the contract against the remote object store.
type Store interface {
	// FetchMetadata resolves an object id. ErrNotFound when the id is
	// unknown, ErrNoDocument when the entry exists without a binary payload.
	FetchMetadata(ctx context.Context, id int64) (Metadata, error)

	// OpenChunks opens a chunked read of limit bytes starting at offset.
	OpenChunks(ctx context.Context, id int64, offset, limit int64, chunkSize int) (ChunkStream, error)

	// CopyToChannel relays the referenced document into the storage channel
	// and returns the id the store assigned to the copy.
	CopyToChannel(ctx context.Context, ref InboundRef) (int64, error)

	// Ping verifies the session is still usable.
	Ping(ctx context.Context) error

	Close(ctx context.Context) error
}

var (
	ErrNotFound   = errors.New("object not found")
	ErrNoDocument = errors.New("message has no document attached")
	ErrAuth       = errors.New("remote authentication failed")
	ErrClosed     = errors.New("session closed")
)

// RateLimitError is the structured rate-limit signal from the remote store.
// RetryAfter comes from the transport (a typed field or Retry-After header),
// never from scraping error message text.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// RetryAfterSeconds rounds up to whole seconds for Retry-After headers.
func (e *RateLimitError) RetryAfterSeconds() int64 {
	secs := int64((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
