package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"streamgate/internal/store"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

type Claims struct {
	Subject string
	IsAdmin bool
}

const claimsContextKey = "auth_claims"

var ErrInvalidToken = errors.New("invalid API token")

// TokenSource is the persistence surface the authenticator needs. *store.Store
// satisfies it.
type TokenSource interface {
	InsertAPIToken(ctx context.Context, id uuid.UUID, subject, secretHash string) error
	GetAPIToken(ctx context.Context, id uuid.UUID) (store.APIToken, error)
}

// Authenticator validates bearer tokens of the form "<uuid>.<secret>". The
// uuid locates the row, the secret is checked against its bcrypt hash. An
// optional static admin token short-circuits the lookup.
type Authenticator struct {
	tokens     TokenSource
	adminToken string
}

func NewAuthenticator(tokens TokenSource, adminToken string) *Authenticator {
	return &Authenticator{
		tokens:     tokens,
		adminToken: adminToken,
	}
}

// MintToken creates a new API token for subject and returns its plaintext
// form. The plaintext is shown once; only the hash is stored.
func (a *Authenticator) MintToken(ctx context.Context, subject string) (string, error) {
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token secret: %w", err)
	}

	id := uuid.New()
	if err := a.tokens.InsertAPIToken(ctx, id, subject, string(hash)); err != nil {
		return "", fmt.Errorf("store API token: %w", err)
	}
	return id.String() + "." + secret, nil
}

func (a *Authenticator) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := extractToken(c.Request())
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing API token")
		}

		claims, err := a.Authenticate(c.Request().Context(), token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid API token")
		}
		c.Set(claimsContextKey, claims)

		return next(c)
	}
}

func (a *Authenticator) Authenticate(ctx context.Context, token string) (Claims, error) {
	if a.adminToken != "" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(a.adminToken)) == 1 {
		return Claims{Subject: "admin", IsAdmin: true}, nil
	}

	idPart, secret, ok := strings.Cut(token, ".")
	if !ok || secret == "" {
		return Claims{}, ErrInvalidToken
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	row, err := a.tokens.GetAPIToken(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return Claims{}, ErrInvalidToken
		}
		return Claims{}, err
	}
	if row.Disabled {
		return Claims{}, ErrInvalidToken
	}
	if bcrypt.CompareHashAndPassword([]byte(row.SecretHash), []byte(secret)) != nil {
		return Claims{}, ErrInvalidToken
	}

	return Claims{Subject: row.Subject}, nil
}

func GetClaims(c echo.Context) (Claims, bool) {
	raw := c.Get(claimsContextKey)
	if raw == nil {
		return Claims{}, false
	}
	claims, ok := raw.(Claims)
	return claims, ok
}

func extractToken(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Token"))
}
