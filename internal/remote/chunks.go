package remote

import (
	"io"
	"sync"
)

// bodyChunks slices a streaming response body into fixed-size chunks.
// The body belongs to a request bound to the caller's context, so a
// cancelled request surfaces as a read error on the next chunk.
type bodyChunks struct {
	body      io.ReadCloser
	remaining int64
	chunkSize int

	closeOnce sync.Once
	closeErr  error
}

func newBodyChunks(body io.ReadCloser, limit int64, chunkSize int) *bodyChunks {
	return &bodyChunks{
		body:      body,
		remaining: limit,
		chunkSize: chunkSize,
	}
}

func (b *bodyChunks) Next() ([]byte, error) {
	if b.remaining <= 0 {
		return nil, io.EOF
	}

	n := int64(b.chunkSize)
	if b.remaining < n {
		n = b.remaining
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(b.body, buf)
	if read > 0 {
		b.remaining -= int64(read)
		// A short final read still delivers the bytes; EOF comes next call.
		if err == io.ErrUnexpectedEOF {
			b.remaining = 0
			err = nil
		}
		if err == io.EOF {
			err = nil
		}
		return buf[:read], err
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil, io.EOF
	}
	return nil, err
}

func (b *bodyChunks) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.body.Close()
	})
	return b.closeErr
}
