package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"sync"

	"streamgate/internal/httprange"
	"streamgate/internal/metrics"
	"streamgate/internal/remote"
	"streamgate/internal/session"
	"streamgate/internal/token"
)

// Disposition selects how the browser should treat the body.
type Disposition string

const (
	// DispositionInline is the playback path: no attachment header, and the
	// content type is biased toward something a <video> tag will play.
	DispositionInline Disposition = "inline"
	// DispositionAttachment forces a download with the stored filename.
	DispositionAttachment Disposition = "attachment"
)

// DefaultChunkSize balances throughput against per-chunk latency and memory.
// A tuning knob, not a correctness parameter.
const DefaultChunkSize = 512 * 1024

// Relay serves one HTTP request end to end: decode the public token, lease a
// session, resolve metadata and range, then hand back a Stream that pulls
// chunks lazily and releases the session exactly once on any exit path.
type Relay struct {
	sessions  *session.Manager
	codec     *token.Codec
	chunkSize int
}

func New(sessions *session.Manager, codec *token.Codec, chunkSize int) *Relay {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Relay{
		sessions:  sessions,
		codec:     codec,
		chunkSize: chunkSize,
	}
}

// Stream is a prepared response: status, headers, and a lazy body.
// It implements io.ReadCloser; Close is safe on every exit path and
// releases the underlying session exactly once.
type Stream struct {
	Status        int
	ContentType   string
	ContentLength int64
	ContentRange  string // set on partial content only
	Disposition   string // Content-Disposition value, empty to omit
	Meta          remote.Metadata

	chunks  remote.ChunkStream
	release func()
	buf     []byte
	once    sync.Once
}

// Open prepares a stream for the given public token. Errors map to HTTP
// statuses at the edge: token.ErrInvalidToken, remote.ErrNotFound,
// remote.ErrNoDocument, *httprange.NotSatisfiableError,
// *remote.RateLimitError, remote.ErrAuth.
func (r *Relay) Open(ctx context.Context, tok, rangeHeader string, disposition Disposition) (*Stream, error) {
	return r.prepare(ctx, tok, rangeHeader, disposition, true)
}

// Head prepares the same status and headers as Open without opening a chunk
// stream: nothing is fetched from the remote beyond the metadata. The
// returned Stream has an empty body and still must be closed.
func (r *Relay) Head(ctx context.Context, tok, rangeHeader string, disposition Disposition) (*Stream, error) {
	return r.prepare(ctx, tok, rangeHeader, disposition, false)
}

func (r *Relay) prepare(ctx context.Context, tok, rangeHeader string, disposition Disposition, withBody bool) (*Stream, error) {
	id, err := r.codec.Decode(tok)
	if err != nil {
		return nil, err
	}

	sess, err := r.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	stream, err := r.open(ctx, sess, id, rangeHeader, disposition, withBody)
	if err != nil {
		sess.Release()
		return nil, r.noteRateLimit(err)
	}
	return stream, nil
}

func (r *Relay) open(ctx context.Context, sess *session.Session, id int64, rangeHeader string, disposition Disposition, withBody bool) (*Stream, error) {
	meta, err := sess.Store().FetchMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	spec, err := httprange.Resolve(meta.Size, rangeHeader)
	if err != nil {
		return nil, err
	}

	var chunks remote.ChunkStream = emptyChunks{}
	if withBody {
		chunks, err = sess.Store().OpenChunks(ctx, id, spec.Start, spec.Length(), r.chunkSize)
		if err != nil {
			return nil, err
		}
	}

	stream := &Stream{
		Status:        200,
		ContentType:   resolveContentType(meta, disposition),
		ContentLength: spec.Length(),
		Meta:          meta,
		chunks:        chunks,
		release:       sess.Release,
	}
	if spec.Partial {
		stream.Status = 206
		stream.ContentRange = spec.ContentRange(meta.Size)
	}
	if disposition == DispositionAttachment {
		stream.Disposition = fmt.Sprintf("attachment; filename=%q", filename(meta))
	}
	return stream, nil
}

// noteRateLimit folds mid-request rate-limit signals from the remote into
// the manager's shared cooldown window.
func (r *Relay) noteRateLimit(err error) error {
	var rl *remote.RateLimitError
	if errors.As(err, &rl) {
		metrics.RemoteRateLimitsTotal.Inc()
		r.sessions.ReportRateLimit(rl.RetryAfter)
	}
	return err
}

// Read hands out streamed bytes chunk by chunk, in ascending offset order.
// Each underlying chunk fetch may block on network I/O; cancellation of the
// request context aborts the in-flight fetch.
func (s *Stream) Read(p []byte) (int, error) {
	if len(s.buf) == 0 {
		chunk, err := s.chunks.Next()
		if err != nil {
			return 0, err
		}
		s.buf = chunk
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Close stops pulling chunks and releases the session. Idempotent; called
// on normal completion, client disconnect, and mid-stream errors alike.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.chunks.Close()
		s.release()
	})
	return err
}

// emptyChunks backs head-only streams.
type emptyChunks struct{}

func (emptyChunks) Next() ([]byte, error) { return nil, io.EOF }
func (emptyChunks) Close() error          { return nil }

func filename(meta remote.Metadata) string {
	if name := strings.TrimSpace(meta.Filename); name != "" {
		return name
	}
	return fmt.Sprintf("file_%d", meta.ID)
}

// resolveContentType picks the response media type: filename extension
// first, then the remote's mime hint, then octet-stream. The inline path
// additionally biases known videos toward video/mp4 so browsers attempt
// playback instead of downloading.
func resolveContentType(meta remote.Metadata, disposition Disposition) string {
	ctype := mime.TypeByExtension(path.Ext(meta.Filename))
	if ctype == "" {
		ctype = strings.TrimSpace(meta.MimeHint)
	}
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	if disposition == DispositionInline && meta.Video && !strings.HasPrefix(ctype, "video/") {
		ctype = "video/mp4"
	}
	return ctype
}
