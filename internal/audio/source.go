package audio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/go-resty/resty/v2"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultCacheBytes   = 8 << 20
)

// SourceError describes a failed sound fetch.
type SourceError struct {
	URI        string
	StatusCode int
	Cause      error
}

func (e *SourceError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	parts = append(parts, fmt.Sprintf("fetch sound %q", e.URI))
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *SourceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// HTTPSource fetches sound files over HTTP and keeps their bytes in memory.
type HTTPSource struct {
	client *resty.Client
	cache  *ristretto.Cache[string, []byte]
}

func NewHTTPSource(baseURL string, cacheBytes int64) (*HTTPSource, error) {
	client := resty.New()
	client.SetTimeout(defaultFetchTimeout)
	client.SetRetryCount(0)

	return NewHTTPSourceWithClient(baseURL, cacheBytes, client)
}

func NewHTTPSourceWithClient(baseURL string, cacheBytes int64, client *resty.Client) (*HTTPSource, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("sound base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid sound base url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if cacheBytes <= 0 {
		cacheBytes = defaultCacheBytes
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: cacheBytes / 1024 * 10,
		MaxCost:     cacheBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sound cache: %w", err)
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultFetchTimeout)
	}
	client.SetBaseURL(strings.TrimRight(trimmed, "/"))

	return &HTTPSource{client: client, cache: cache}, nil
}

func (s *HTTPSource) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if s == nil || s.client == nil {
		return nil, ErrNoSource
	}
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, &SourceError{URI: uri, Cause: errors.New("uri is required")}
	}

	if data, ok := s.cache.Get(uri); ok {
		return data, nil
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "audio/*").
		Get(uri)
	if err != nil {
		return nil, &SourceError{URI: uri, Cause: err}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, &SourceError{URI: uri, StatusCode: statusCode}
	}

	data := response.Body()
	if len(data) == 0 {
		return nil, &SourceError{URI: uri, StatusCode: statusCode, Cause: errors.New("empty body")}
	}

	s.cache.Set(uri, data, int64(len(data)))
	s.cache.Wait()
	return data, nil
}

func (s *HTTPSource) Close() {
	if s == nil || s.cache == nil {
		return
	}
	s.cache.Close()
}
