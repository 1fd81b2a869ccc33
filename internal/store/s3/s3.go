// Package s3 archives endpoints and snapshots as JSON objects in an
// S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/agentsh/mcpscope/internal/store"
	"github.com/agentsh/mcpscope/pkg/types"
	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectAPI is the subset of the minio client the archive uses.
type objectAPI interface {
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

type Store struct {
	api    objectAPI
	bucket string
	prefix string

	mu    sync.Mutex
	known map[string]bool
}

// New connects to an S3-compatible endpoint such as "s3.amazonaws.com" or
// "minio.internal:9000".
func New(endpoint, accessKey, secretKey string, useSSL bool, bucket, prefix string) (*Store, error) {
	if endpoint == "" || bucket == "" {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return newStore(mc, bucket, prefix), nil
}

func newStore(api objectAPI, bucket, prefix string) *Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{api: api, bucket: bucket, prefix: prefix, known: map[string]bool{}}
}

func (s *Store) endpointKey(id string) string {
	return s.prefix + "endpoints/" + url.PathEscape(id) + "/endpoint.json"
}

func (s *Store) snapshotKey(id string, inv *types.Inventory) string {
	return fmt.Sprintf("%sendpoints/%s/snapshots/%d-%s.json", s.prefix, url.PathEscape(id), inv.Meta.CollectedAt, inv.ScanID)
}

func (s *Store) RegisterEndpoint(ctx context.Context, ep store.Endpoint) error {
	if ep.ID == "" {
		return fmt.Errorf("endpoint missing id")
	}
	if err := s.putJSON(ctx, s.endpointKey(ep.ID), ep); err != nil {
		return fmt.Errorf("register endpoint: %w", err)
	}
	s.mu.Lock()
	s.known[ep.ID] = true
	s.mu.Unlock()
	return nil
}

func (s *Store) StoreSnapshot(ctx context.Context, endpointID string, inv *types.Inventory) error {
	if inv == nil || inv.ScanID == "" {
		return fmt.Errorf("snapshot missing scan id")
	}
	if err := s.ensureEndpoint(ctx, endpointID); err != nil {
		return err
	}
	if err := s.putJSON(ctx, s.snapshotKey(endpointID, inv), inv); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) ensureEndpoint(ctx context.Context, id string) error {
	s.mu.Lock()
	ok := s.known[id]
	s.mu.Unlock()
	if ok {
		return nil
	}
	_, err := s.api.StatObject(ctx, s.bucket, s.endpointKey(id), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("%w: %s", store.ErrUnknownEndpoint, id)
		}
		return fmt.Errorf("stat endpoint: %w", err)
	}
	s.mu.Lock()
	s.known[id] = true
	s.mu.Unlock()
	return nil
}

func (s *Store) putJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	_, err = s.api.PutObject(ctx, s.bucket, key, bytes.NewReader(b), int64(len(b)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}
