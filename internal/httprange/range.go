package httprange

import (
	"fmt"
	"strconv"
	"strings"
)

// Spec is the concrete byte window resolved from a Range header against a
// known total size. End is inclusive.
type Spec struct {
	Start   int64
	End     int64
	Partial bool
}

// Length returns the number of bytes the spec covers.
func (s Spec) Length() int64 { return s.End - s.Start + 1 }

// ContentRange renders the Content-Range value for a 206 response.
func (s Spec) ContentRange(totalSize int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", s.Start, s.End, totalSize)
}

// NotSatisfiableError reports a requested range that lies entirely outside
// the resource. Callers respond 416 with "Content-Range: bytes */<Size>".
type NotSatisfiableError struct {
	Size int64
}

func (e *NotSatisfiableError) Error() string {
	return fmt.Sprintf("range not satisfiable for size %d", e.Size)
}

// Resolve maps an optional raw Range header value onto a resource of
// totalSize bytes.
//
// Only the single-range form "bytes=<start>-<end>" is interpreted. A missing
// start defaults to 0 (the suffix form "bytes=-N" is deliberately not read
// as "last N bytes"), a missing end defaults to totalSize-1, and end is
// clamped to the resource. Multi-range and malformed headers fall back to
// the full resource rather than erroring, so the client still gets usable
// bytes.
func Resolve(totalSize int64, header string) (Spec, error) {
	full := Spec{Start: 0, End: totalSize - 1}
	header = strings.TrimSpace(header)
	if header == "" {
		return full, nil
	}

	raw, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return full, nil
	}
	if strings.Contains(raw, ",") {
		// Multi-range is unsupported; serve the whole resource.
		return full, nil
	}

	startRaw, endRaw, ok := strings.Cut(raw, "-")
	if !ok {
		return full, nil
	}

	start := int64(0)
	if s := strings.TrimSpace(startRaw); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			return full, nil
		}
		start = v
	}

	end := totalSize - 1
	if s := strings.TrimSpace(endRaw); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			return full, nil
		}
		end = v
	}
	if end > totalSize-1 {
		end = totalSize - 1
	}

	if start > end {
		return Spec{}, &NotSatisfiableError{Size: totalSize}
	}
	return Spec{Start: start, End: end, Partial: true}, nil
}
