package handlers

import (
	"io"
	"net/http"
	"strconv"

	"streamgate/internal/metrics"
	"streamgate/internal/relay"

	"github.com/labstack/echo/v4"
)

// Stream serves the playback path: inline disposition, video-biased content
// type, full Range support.
func (h *Handler) Stream(c echo.Context) error {
	return h.serve(c, relay.DispositionInline)
}

// Download forces a download with the stored filename.
func (h *Handler) Download(c echo.Context) error {
	return h.serve(c, relay.DispositionAttachment)
}

func (h *Handler) serve(c echo.Context, disposition relay.Disposition) error {
	// HEAD answers with the same status and headers but must not pull the
	// object from the remote store.
	open := h.relay.Open
	if c.Request().Method == http.MethodHead {
		open = h.relay.Head
	}

	stream, err := open(
		c.Request().Context(),
		c.Param("token"),
		c.Request().Header.Get("Range"),
		disposition,
	)
	if err != nil {
		return mapRelayError(c, err)
	}
	defer stream.Close()

	header := c.Response().Header()
	header.Set("Accept-Ranges", "bytes")
	header.Set(echo.HeaderContentLength, strconv.FormatInt(stream.ContentLength, 10))
	if stream.ContentRange != "" {
		header.Set("Content-Range", stream.ContentRange)
	}
	if stream.Disposition != "" {
		header.Set("Content-Disposition", stream.Disposition)
	}

	body := &countingReader{r: stream, disposition: string(disposition)}
	return c.Stream(stream.Status, stream.ContentType, body)
}

// countingReader feeds the streamed-bytes counter as the copy progresses, so
// aborted transfers report what actually went out.
type countingReader struct {
	r           io.Reader
	disposition string
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		metrics.StreamedBytesTotal.WithLabelValues(cr.disposition).Add(float64(n))
	}
	return n, err
}
