// Package webhook forwards endpoints and snapshots to an HTTP aggregation
// service, retrying transient failures with exponential backoff.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentsh/mcpscope/internal/store"
	"github.com/agentsh/mcpscope/pkg/types"
	"github.com/cenkalti/backoff/v4"
)

type Store struct {
	baseURL    string
	timeout    time.Duration
	maxElapsed time.Duration
	headers    map[string]string

	client     *http.Client
	newBackOff func() backoff.BackOff
}

// Option configures Store.
type Option func(*Store)

// WithMaxElapsed bounds the total retry time per request.
func WithMaxElapsed(d time.Duration) Option { return func(s *Store) { s.maxElapsed = d } }

// WithBackOff replaces the retry policy.
func WithBackOff(fn func() backoff.BackOff) Option { return func(s *Store) { s.newBackOff = fn } }

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(s *Store) { s.client = c } }

// New returns a Store posting to baseURL. Endpoints are registered with
// POST {base}/endpoints and snapshots go to
// POST {base}/endpoints/{id}/snapshots.
func New(baseURL string, timeout time.Duration, headers map[string]string, opts ...Option) (*Store, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("webhook url is empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid webhook url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hcopy := map[string]string{}
	for k, v := range headers {
		hcopy[k] = v
	}
	s := &Store{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		maxElapsed: 30 * time.Second,
		headers:    hcopy,
		client:     &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newBackOff == nil {
		s.newBackOff = func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = s.maxElapsed
			return bo
		}
	}
	return s, nil
}

func (s *Store) RegisterEndpoint(ctx context.Context, ep store.Endpoint) error {
	if ep.ID == "" {
		return fmt.Errorf("endpoint missing id")
	}
	return s.post(ctx, s.baseURL+"/endpoints", ep)
}

func (s *Store) StoreSnapshot(ctx context.Context, endpointID string, inv *types.Inventory) error {
	if inv == nil {
		return fmt.Errorf("snapshot is nil")
	}
	return s.post(ctx, s.baseURL+"/endpoints/"+url.PathEscape(endpointID)+"/snapshots", inv)
}

func (s *Store) Close() error { return nil }

// statusError is an unexpected response status.
type statusError struct {
	status string
	code   int
}

func (e *statusError) Error() string { return "webhook responded " + e.status }

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

func (s *Store) post(ctx context.Context, target string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	err = backoff.Retry(func() error {
		err := s.postOnce(ctx, target, b)
		if err == nil {
			return nil
		}
		if se, ok := err.(*statusError); ok && !retryable(se.code) {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(s.newBackOff(), ctx))
	if err != nil {
		return fmt.Errorf("post %s: %w", target, err)
	}
	return nil
}

func (s *Store) postOnce(ctx context.Context, target string, b []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{status: resp.Status, code: resp.StatusCode}
	}
	return nil
}
