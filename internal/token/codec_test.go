package token

import (
	"errors"
	"math"
	"testing"
)

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewCodec(742658931)
	ids := []int64{0, 1, 42, 255, 4096, 1_000_000, math.MaxInt64}
	for _, id := range ids {
		tok := codec.Encode(id)
		got, err := codec.Decode(tok)
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", tok, err)
		}
		if got != id {
			t.Fatalf("roundtrip: encoded %d, decoded %d", id, got)
		}
	}
}

func TestCodec_RoundTripAcrossMasks(t *testing.T) {
	t.Parallel()

	for _, mask := range []uint64{0, 1, 742658931, math.MaxUint64} {
		codec := NewCodec(mask)
		for _, id := range []int64{0, 7, 1 << 40} {
			tok := codec.Encode(id)
			got, err := codec.Decode(tok)
			if err != nil {
				t.Fatalf("mask %d: Decode(%q) error = %v", mask, tok, err)
			}
			if got != id {
				t.Fatalf("mask %d: encoded %d, decoded %d", mask, id, got)
			}
		}
	}
}

func TestCodec_TokensDifferFromRawIDs(t *testing.T) {
	t.Parallel()

	codec := NewCodec(742658931)
	// A token must not expose the raw decimal id.
	if tok := codec.Encode(42); tok == "42" {
		t.Fatalf("Encode(42) = %q leaks the raw id", tok)
	}
}

func TestCodec_DecodeRejectsMalformed(t *testing.T) {
	t.Parallel()

	codec := NewCodec(742658931)
	inputs := []string{"", "  ", "zzz", "0x1f", "12g4", "-1f", "1.5", "deadbeefdeadbeef0"}
	for _, in := range inputs {
		if _, err := codec.Decode(in); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Decode(%q) error = %v, want ErrInvalidToken", in, err)
		}
	}
}

func TestCodec_DecodeUnknownButWellFormed(t *testing.T) {
	t.Parallel()

	// Well-formed hex that maps to no stored object must decode cleanly;
	// "unknown" is a downstream 404, not a codec failure.
	codec := NewCodec(742658931)
	if _, err := codec.Decode("abc123"); err != nil {
		t.Fatalf("Decode(\"abc123\") error = %v", err)
	}
}
