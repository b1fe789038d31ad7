package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// Upload is one registry entry for an object relayed into the storage
// channel. The registry is an audit surface for operators; object metadata
// served to clients is always re-fetched from the remote store.
type Upload struct {
	ID          uuid.UUID
	ObjectID    int64
	PublicToken string
	Filename    string
	SizeBytes   int64
	MimeType    string
	Video       bool
	CreatedAt   time.Time
}

// APIToken backs bearer authentication on the operator API. The secret is
// stored as a bcrypt hash; lookup is by the token's public id.
type APIToken struct {
	ID         uuid.UUID
	Subject    string
	SecretHash string
	Disabled   bool
	CreatedAt  time.Time
}

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the registry tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS uploads (
			id           UUID PRIMARY KEY,
			object_id    BIGINT NOT NULL,
			public_token TEXT NOT NULL,
			filename     TEXT NOT NULL DEFAULT '',
			size_bytes   BIGINT NOT NULL DEFAULT 0,
			mime_type    TEXT NOT NULL DEFAULT '',
			video        BOOLEAN NOT NULL DEFAULT FALSE,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS uploads_created_at_idx ON uploads (created_at DESC);

		CREATE TABLE IF NOT EXISTS api_tokens (
			id          UUID PRIMARY KEY,
			subject     TEXT NOT NULL,
			secret_hash TEXT NOT NULL,
			disabled    BOOLEAN NOT NULL DEFAULT FALSE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

func (s *Store) RecordUpload(ctx context.Context, u Upload) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO uploads (id, object_id, public_token, filename, size_bytes, mime_type, video)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.ObjectID, u.PublicToken, u.Filename, u.SizeBytes, u.MimeType, u.Video)
	return err
}

func (s *Store) ListRecentUploads(ctx context.Context, limit int) ([]Upload, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, object_id, public_token, filename, size_bytes, mime_type, video, created_at
		FROM uploads
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Upload
	for rows.Next() {
		var u Upload
		if err := rows.Scan(&u.ID, &u.ObjectID, &u.PublicToken, &u.Filename, &u.SizeBytes, &u.MimeType, &u.Video, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) InsertAPIToken(ctx context.Context, id uuid.UUID, subject, secretHash string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO api_tokens (id, subject, secret_hash)
		VALUES ($1, $2, $3)
	`, id, subject, secretHash)
	return err
}

func (s *Store) GetAPIToken(ctx context.Context, id uuid.UUID) (APIToken, error) {
	var tok APIToken
	err := s.db.QueryRow(ctx, `
		SELECT id, subject, secret_hash, disabled, created_at
		FROM api_tokens
		WHERE id = $1
	`, id).Scan(&tok.ID, &tok.Subject, &tok.SecretHash, &tok.Disabled, &tok.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return APIToken{}, ErrNotFound
		}
		return APIToken{}, err
	}
	return tok, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}
