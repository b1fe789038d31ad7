package remote

import (
	"io"
	"strings"
	"testing"
)

func TestBodyChunks_ExactMultiple(t *testing.T) {
	t.Parallel()

	body := io.NopCloser(strings.NewReader(strings.Repeat("x", 400)))
	chunks := newBodyChunks(body, 400, 100)

	var count int
	for {
		chunk, err := chunks.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if len(chunk) != 100 {
			t.Fatalf("chunk %d has %d bytes, want 100", count, len(chunk))
		}
		count++
	}
	if count != 4 {
		t.Fatalf("chunk count = %d, want 4", count)
	}
}

func TestBodyChunks_TruncatedBodyEndsStream(t *testing.T) {
	t.Parallel()

	// The remote delivered fewer bytes than promised: deliver what arrived,
	// then end. The HTTP layer's Content-Length mismatch tells the client.
	body := io.NopCloser(strings.NewReader(strings.Repeat("x", 150)))
	chunks := newBodyChunks(body, 400, 100)

	first, err := chunks.Next()
	if err != nil || len(first) != 100 {
		t.Fatalf("first Next() = %d bytes, %v", len(first), err)
	}
	second, err := chunks.Next()
	if err != nil || len(second) != 50 {
		t.Fatalf("second Next() = %d bytes, %v", len(second), err)
	}
	if _, err := chunks.Next(); err != io.EOF {
		t.Fatalf("third Next() error = %v, want io.EOF", err)
	}
}

func TestBodyChunks_CloseIdempotent(t *testing.T) {
	t.Parallel()

	body := io.NopCloser(strings.NewReader("data"))
	chunks := newBodyChunks(body, 4, 2)
	if err := chunks.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := chunks.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
