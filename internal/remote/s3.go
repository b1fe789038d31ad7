package remote

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store serves the remote-store contract from an S3-compatible bucket
// (AWS S3, MinIO, etc.). Objects live under a key prefix, keyed by their
// sequential id. It is the self-hosted and development backend; the
// production path talks to the platform gateway.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string

	mu     sync.Mutex
	nextID int64 // 0 until loaded from the bucket
}

type S3Options struct {
	Client *s3.Client
	Bucket string
	Prefix string // optional key prefix, e.g. "channel/"
}

var _ Store = (*S3Store)(nil)

func NewS3Store(opts S3Options) *S3Store {
	return &S3Store{
		client: opts.Client,
		bucket: opts.Bucket,
		prefix: opts.Prefix,
	}
}

func (s *S3Store) objectKey(id int64) string {
	return s.prefix + strconv.FormatInt(id, 10)
}

func (s *S3Store) FetchMetadata(ctx context.Context, id int64) (Metadata, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(id)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return Metadata{}, ErrNotFound
		}
		return Metadata{}, fmt.Errorf("s3 head %d: %w", id, err)
	}

	meta := Metadata{
		ID:       id,
		Size:     aws.ToInt64(head.ContentLength),
		MimeHint: aws.ToString(head.ContentType),
	}
	if head.Metadata != nil {
		meta.Filename = head.Metadata["filename"]
	}
	meta.Video = strings.HasPrefix(meta.MimeHint, "video/")
	return meta, nil
}

func (s *S3Store) OpenChunks(ctx context.Context, id int64, offset, limit int64, chunkSize int) (ChunkStream, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(id)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+limit-1)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get %d: %w", id, err)
	}
	return newBodyChunks(resp.Body, limit, chunkSize), nil
}

func (s *S3Store) CopyToChannel(ctx context.Context, ref InboundRef) (int64, error) {
	source := strings.TrimSpace(ref.SourceKey)
	if source == "" {
		return 0, fmt.Errorf("s3 relay requires a source key")
	}

	id, err := s.reserveID(ctx)
	if err != nil {
		return 0, err
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(s.objectKey(id)),
		CopySource: aws.String(s.bucket + "/" + source),
		Metadata: map[string]string{
			"filename": path.Base(source),
		},
		MetadataDirective: types.MetadataDirectiveReplace,
	})
	if err != nil {
		if isS3NotFound(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("s3 copy %q: %w", source, err)
	}
	return id, nil
}

func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 ping: %w", err)
	}
	return nil
}

func (s *S3Store) Close(context.Context) error { return nil }

// reserveID hands out the next sequential id, scanning the bucket once to
// find the current high-water mark. Single-writer per process; the S3
// backend is not meant for multi-instance ingestion.
func (s *S3Store) reserveID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nextID == 0 {
		maxID, err := s.scanMaxID(ctx)
		if err != nil {
			return 0, err
		}
		s.nextID = maxID + 1
	}

	id := s.nextID
	s.nextID++
	return id, nil
}

func (s *S3Store) scanMaxID(ctx context.Context) (int64, error) {
	var maxID int64
	var continuation *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return 0, fmt.Errorf("s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			raw := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			if id > maxID {
				maxID = id
			}
		}
		if !aws.ToBool(page.IsTruncated) {
			break
		}
		continuation = page.NextContinuationToken
	}
	return maxID, nil
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}
