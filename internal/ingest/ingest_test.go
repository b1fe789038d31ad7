package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"streamgate/internal/remote"
	"streamgate/internal/session"
	"streamgate/internal/store"
	"streamgate/internal/token"
)

type relayStore struct {
	nextID   int64
	metadata map[int64]remote.Metadata
	copyErr  error
	copies   int
}

func (r *relayStore) FetchMetadata(_ context.Context, id int64) (remote.Metadata, error) {
	meta, ok := r.metadata[id]
	if !ok {
		return remote.Metadata{}, remote.ErrNotFound
	}
	return meta, nil
}

func (r *relayStore) OpenChunks(context.Context, int64, int64, int64, int) (remote.ChunkStream, error) {
	return nil, remote.ErrNotFound
}

func (r *relayStore) CopyToChannel(context.Context, remote.InboundRef) (int64, error) {
	r.copies++
	if r.copyErr != nil {
		return 0, r.copyErr
	}
	return r.nextID, nil
}

func (r *relayStore) Ping(context.Context) error  { return nil }
func (r *relayStore) Close(context.Context) error { return nil }

type memRegistry struct {
	uploads []store.Upload
	err     error
}

func (m *memRegistry) RecordUpload(_ context.Context, u store.Upload) error {
	if m.err != nil {
		return m.err
	}
	m.uploads = append(m.uploads, u)
	return nil
}

func newTestService(rs *relayStore, reg Registry) *Service {
	mgr := session.New(func(context.Context) (remote.Store, error) {
		return rs, nil
	}, session.Config{Mode: session.ModePerRequest})
	return New(mgr, token.NewCodec(742658931), reg, "https://files.example/")
}

func TestRelayInboundObject_Video(t *testing.T) {
	t.Parallel()

	rs := &relayStore{
		nextID: 42,
		metadata: map[int64]remote.Metadata{
			42: {ID: 42, Size: 5_000_000, Filename: "movie.mp4", MimeHint: "video/mp4", Video: true},
		},
	}
	reg := &memRegistry{}
	svc := newTestService(rs, reg)

	res, err := svc.RelayInboundObject(context.Background(), remote.InboundRef{ChatID: 5, MessageID: 9})
	if err != nil {
		t.Fatalf("RelayInboundObject() error = %v", err)
	}

	codec := token.NewCodec(742658931)
	if res.ObjectID != 42 || res.Token != codec.Encode(42) {
		t.Fatalf("result = %#v", res)
	}
	if res.Links.Download != "https://files.example/download/"+res.Token {
		t.Fatalf("download link = %q", res.Links.Download)
	}
	if res.Links.Stream != "https://files.example/stream/"+res.Token {
		t.Fatalf("stream link = %q", res.Links.Stream)
	}

	if len(reg.uploads) != 1 {
		t.Fatalf("registry entries = %d, want 1", len(reg.uploads))
	}
	u := reg.uploads[0]
	if u.ObjectID != 42 || u.PublicToken != res.Token || u.SizeBytes != 5_000_000 || !u.Video {
		t.Fatalf("registry entry = %#v", u)
	}
}

func TestRelayInboundObject_NonVideoOmitsStreamLink(t *testing.T) {
	t.Parallel()

	rs := &relayStore{
		nextID: 7,
		metadata: map[int64]remote.Metadata{
			7: {ID: 7, Size: 1024, Filename: "notes.pdf", MimeHint: "application/pdf"},
		},
	}
	svc := newTestService(rs, &memRegistry{})

	res, err := svc.RelayInboundObject(context.Background(), remote.InboundRef{ChatID: 1, MessageID: 2})
	if err != nil {
		t.Fatalf("RelayInboundObject() error = %v", err)
	}
	if res.Links.Stream != "" {
		t.Fatalf("stream link = %q, want empty for non-video", res.Links.Stream)
	}
}

func TestRelayInboundObject_RegistryFailureDoesNotFailIngest(t *testing.T) {
	t.Parallel()

	rs := &relayStore{
		nextID: 7,
		metadata: map[int64]remote.Metadata{
			7: {ID: 7, Size: 10, Filename: "a.bin"},
		},
	}
	svc := newTestService(rs, &memRegistry{err: errors.New("db down")})

	if _, err := svc.RelayInboundObject(context.Background(), remote.InboundRef{ChatID: 1, MessageID: 2}); err != nil {
		t.Fatalf("RelayInboundObject() error = %v, want nil despite registry failure", err)
	}
}

func TestRelayInboundObject_RateLimitFeedsCooldown(t *testing.T) {
	t.Parallel()

	rs := &relayStore{
		copyErr: &remote.RateLimitError{RetryAfter: 20 * time.Second},
	}
	svc := newTestService(rs, nil)

	_, err := svc.RelayInboundObject(context.Background(), remote.InboundRef{ChatID: 1, MessageID: 2})
	var rl *remote.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %v, want RateLimitError", err)
	}

	// The cooldown now gates the next acquire before any copy attempt.
	before := rs.copies
	if _, err := svc.RelayInboundObject(context.Background(), remote.InboundRef{ChatID: 1, MessageID: 2}); err == nil {
		t.Fatal("second relay should fail during cooldown")
	}
	if rs.copies != before {
		t.Fatalf("copies during cooldown = %d, want %d", rs.copies, before)
	}
}
