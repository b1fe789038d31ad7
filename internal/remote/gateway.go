package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Gateway talks JSON-over-HTTP to the chat platform's media gateway. One
// Gateway value represents one authenticated session; metadata and chunk
// fetches are plain reads the transport serializes safely, so a Gateway may
// be shared across concurrent requests.
type Gateway struct {
	baseURL   string
	channelID int64
	session   string

	// api carries an overall timeout and serves the short JSON calls.
	// stream must not cap total response time (a long video download is
	// legitimate), so it only bounds the wait for response headers.
	api    *http.Client
	stream *http.Client
}

type GatewayConfig struct {
	BaseURL      string
	APIID        int64
	APIHash      string
	BotToken     string
	SessionToken string // pre-established credential; login handshake when empty
	ChannelID    int64
	Timeout      time.Duration
}

var _ Store = (*Gateway)(nil)

// DialGateway opens a gateway session. A configured session token is used
// as-is; otherwise a login handshake with the bot credential mints one.
func DialGateway(ctx context.Context, cfg GatewayConfig) (*Gateway, error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("gateway base URL is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	g := &Gateway{
		baseURL:   base,
		channelID: cfg.ChannelID,
		api:       &http.Client{Timeout: cfg.Timeout},
		stream: &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: cfg.Timeout},
		},
	}

	if s := strings.TrimSpace(cfg.SessionToken); s != "" {
		g.session = s
		return g, nil
	}

	session, err := g.login(ctx, cfg)
	if err != nil {
		return nil, err
	}
	g.session = session
	return g, nil
}

func (g *Gateway) login(ctx context.Context, cfg GatewayConfig) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"api_id":    cfg.APIID,
		"api_hash":  cfg.APIHash,
		"bot_token": cfg.BotToken,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/sessions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.api.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", statusError(resp)
	}

	var out struct {
		SessionToken string `json:"session_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if strings.TrimSpace(out.SessionToken) == "" {
		return "", fmt.Errorf("%w: login returned empty session token", ErrAuth)
	}
	return out.SessionToken, nil
}

func (g *Gateway) FetchMetadata(ctx context.Context, id int64) (Metadata, error) {
	url := fmt.Sprintf("%s/v1/channels/%d/messages/%d", g.baseURL, g.channelID, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Metadata{}, err
	}
	g.authorize(req)

	resp, err := g.api.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("fetch metadata %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Metadata{}, statusError(resp)
	}

	var out struct {
		ID       int64 `json:"id"`
		Document *struct {
			Size     int64  `json:"size"`
			FileName string `json:"file_name"`
			MimeType string `json:"mime_type"`
			Video    bool   `json:"video"`
		} `json:"document"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata %d: %w", id, err)
	}
	if out.Document == nil {
		return Metadata{}, ErrNoDocument
	}
	return Metadata{
		ID:       out.ID,
		Size:     out.Document.Size,
		Filename: out.Document.FileName,
		MimeHint: out.Document.MimeType,
		Video:    out.Document.Video,
	}, nil
}

func (g *Gateway) OpenChunks(ctx context.Context, id int64, offset, limit int64, chunkSize int) (ChunkStream, error) {
	url := fmt.Sprintf("%s/v1/channels/%d/messages/%d/document", g.baseURL, g.channelID, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	g.authorize(req)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+limit-1))

	resp, err := g.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open chunk stream %d: %w", id, err)
	}
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	if resp.StatusCode == http.StatusOK && offset > 0 {
		// The gateway ignored the Range header and sent the whole document.
		// Skip to the requested offset so the chunks stay aligned with it.
		if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("skip to offset %d of %d: %w", offset, id, err)
		}
	}
	return newBodyChunks(resp.Body, limit, chunkSize), nil
}

func (g *Gateway) CopyToChannel(ctx context.Context, ref InboundRef) (int64, error) {
	payload, err := json.Marshal(map[string]any{
		"from_chat_id": ref.ChatID,
		"message_id":   ref.MessageID,
	})
	if err != nil {
		return 0, err
	}

	url := fmt.Sprintf("%s/v1/channels/%d/copies", g.baseURL, g.channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	g.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	// The gateway dedupes retried copies on this key.
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := g.api.Do(req)
	if err != nil {
		return 0, fmt.Errorf("copy to channel: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return 0, statusError(resp)
	}

	var out struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode copy response: %w", err)
	}
	return out.ID, nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/me", nil)
	if err != nil {
		return err
	}
	g.authorize(req)

	resp, err := g.api.Do(req)
	if err != nil {
		return fmt.Errorf("gateway ping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (g *Gateway) Close(context.Context) error {
	g.api.CloseIdleConnections()
	g.stream.CloseIdleConnections()
	return nil
}

func (g *Gateway) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+g.session)
}

// statusError maps non-success gateway responses to the typed error set.
func statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter(resp)}
	default:
		return fmt.Errorf("gateway status %d", resp.StatusCode)
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if raw := strings.TrimSpace(resp.Header.Get("Retry-After")); raw != "" {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	var body struct {
		RetryAfter int64 `json:"retry_after"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.RetryAfter > 0 {
		return time.Duration(body.RetryAfter) * time.Second
	}
	return time.Minute
}
