package httprange

import (
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int64
		header  string
		want    Spec
		wantErr bool
	}{
		{"no header", 1000, "", Spec{0, 999, false}, false},
		{"explicit range", 1000, "bytes=200-299", Spec{200, 299, true}, false},
		{"open end", 1000, "bytes=900-", Spec{900, 999, true}, false},
		{"end clamped", 1000, "bytes=0-5000", Spec{0, 999, true}, false},
		{"missing start treated as zero", 1000, "bytes=-500", Spec{0, 500, true}, false},
		{"single byte", 1000, "bytes=0-0", Spec{0, 0, true}, false},
		{"last byte", 1000, "bytes=999-999", Spec{999, 999, true}, false},
		{"start past end of resource", 1000, "bytes=1000-1005", Spec{}, true},
		{"start past clamped end", 1000, "bytes=500-200", Spec{}, true},
		{"multi-range falls back to full", 1000, "bytes=0-1,5-9", Spec{0, 999, false}, false},
		{"other unit falls back to full", 1000, "items=0-5", Spec{0, 999, false}, false},
		{"garbage falls back to full", 1000, "bytes=abc-def", Spec{0, 999, false}, false},
		{"no dash falls back to full", 1000, "bytes=123", Spec{0, 999, false}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Resolve(tt.size, tt.header)
			if tt.wantErr {
				var nse *NotSatisfiableError
				if !errors.As(err, &nse) {
					t.Fatalf("Resolve(%d, %q) error = %v, want NotSatisfiableError", tt.size, tt.header, err)
				}
				if nse.Size != tt.size {
					t.Fatalf("NotSatisfiableError.Size = %d, want %d", nse.Size, tt.size)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%d, %q) error = %v", tt.size, tt.header, err)
			}
			if got != tt.want {
				t.Fatalf("Resolve(%d, %q) = %#v, want %#v", tt.size, tt.header, got, tt.want)
			}
		})
	}
}

func TestSpec_Length(t *testing.T) {
	t.Parallel()

	if got := (Spec{Start: 200, End: 299}).Length(); got != 100 {
		t.Fatalf("Length() = %d, want 100", got)
	}
	if got := (Spec{Start: 0, End: 0}).Length(); got != 1 {
		t.Fatalf("Length() = %d, want 1", got)
	}
}

func TestSpec_ContentRange(t *testing.T) {
	t.Parallel()

	spec := Spec{Start: 1_000_000, End: 1_999_999, Partial: true}
	if got := spec.ContentRange(5_000_000); got != "bytes 1000000-1999999/5000000" {
		t.Fatalf("ContentRange() = %q", got)
	}
}
