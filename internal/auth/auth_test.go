package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"streamgate/internal/store"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type memTokens struct {
	rows map[uuid.UUID]store.APIToken
}

func newMemTokens() *memTokens {
	return &memTokens{rows: make(map[uuid.UUID]store.APIToken)}
}

func (m *memTokens) InsertAPIToken(_ context.Context, id uuid.UUID, subject, secretHash string) error {
	m.rows[id] = store.APIToken{ID: id, Subject: subject, SecretHash: secretHash}
	return nil
}

func (m *memTokens) GetAPIToken(_ context.Context, id uuid.UUID) (store.APIToken, error) {
	row, ok := m.rows[id]
	if !ok {
		return store.APIToken{}, store.ErrNotFound
	}
	return row, nil
}

func TestMintAndAuthenticate(t *testing.T) {
	t.Parallel()

	tokens := newMemTokens()
	a := NewAuthenticator(tokens, "")

	plaintext, err := a.MintToken(context.Background(), "ci-bot")
	if err != nil {
		t.Fatalf("MintToken() error = %v", err)
	}
	idPart, secret, ok := strings.Cut(plaintext, ".")
	if !ok || secret == "" {
		t.Fatalf("token %q is not in uuid.secret form", plaintext)
	}
	if _, err := uuid.Parse(idPart); err != nil {
		t.Fatalf("token id %q is not a uuid: %v", idPart, err)
	}

	claims, err := a.Authenticate(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if claims.Subject != "ci-bot" || claims.IsAdmin {
		t.Fatalf("claims = %#v", claims)
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	t.Parallel()

	tokens := newMemTokens()
	a := NewAuthenticator(tokens, "")

	good, err := a.MintToken(context.Background(), "ci-bot")
	if err != nil {
		t.Fatalf("MintToken() error = %v", err)
	}
	id, _, _ := strings.Cut(good, ".")

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separator", "justonepart"},
		{"bad uuid", "not-a-uuid.secret"},
		{"unknown id", uuid.NewString() + ".secret"},
		{"wrong secret", id + ".wrongsecret"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := a.Authenticate(context.Background(), tc.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("Authenticate(%q) error = %v, want ErrInvalidToken", tc.token, err)
			}
		})
	}
}

func TestAuthenticate_DisabledToken(t *testing.T) {
	t.Parallel()

	tokens := newMemTokens()
	a := NewAuthenticator(tokens, "")

	plaintext, err := a.MintToken(context.Background(), "ci-bot")
	if err != nil {
		t.Fatalf("MintToken() error = %v", err)
	}
	idPart, _, _ := strings.Cut(plaintext, ".")
	id := uuid.MustParse(idPart)
	row := tokens.rows[id]
	row.Disabled = true
	tokens.rows[id] = row

	if _, err := a.Authenticate(context.Background(), plaintext); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Authenticate() error = %v, want ErrInvalidToken for disabled token", err)
	}
}

func TestAuthenticate_AdminToken(t *testing.T) {
	t.Parallel()

	a := NewAuthenticator(newMemTokens(), "super-secret-admin")

	claims, err := a.Authenticate(context.Background(), "super-secret-admin")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !claims.IsAdmin || claims.Subject != "admin" {
		t.Fatalf("claims = %#v", claims)
	}

	// Empty configured admin token must not make empty bearer tokens admin.
	open := NewAuthenticator(newMemTokens(), "")
	if _, err := open.Authenticate(context.Background(), ""); err == nil {
		t.Fatal("empty token authenticated with no admin token configured")
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	tokens := newMemTokens()
	a := NewAuthenticator(tokens, "admin-token")

	e := echo.New()
	handler := a.Middleware(func(c echo.Context) error {
		claims, ok := GetClaims(c)
		if !ok {
			t.Fatal("claims missing from context")
		}
		return c.String(http.StatusOK, claims.Subject)
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer admin-token")
		rec := httptest.NewRecorder()
		if err := handler(e.NewContext(req, rec)); err != nil {
			t.Fatalf("handler error = %v", err)
		}
		if rec.Body.String() != "admin" {
			t.Fatalf("subject = %q", rec.Body.String())
		}
	})

	t.Run("x-api-token header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-API-Token", "admin-token")
		rec := httptest.NewRecorder()
		if err := handler(e.NewContext(req, rec)); err != nil {
			t.Fatalf("handler error = %v", err)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		err := handler(e.NewContext(req, rec))
		var httpErr *echo.HTTPError
		if !errors.As(err, &httpErr) || httpErr.Code != http.StatusUnauthorized {
			t.Fatalf("error = %v, want 401", err)
		}
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		err := handler(e.NewContext(req, rec))
		var httpErr *echo.HTTPError
		if !errors.As(err, &httpErr) || httpErr.Code != http.StatusUnauthorized {
			t.Fatalf("error = %v, want 401", err)
		}
	})
}
