// Package credentialstatus implements StatusList2021 revocation and
// suspension: the verifier-side Service that checks a credential's status
// bit, and the issuer-side Registry that allocates and flips bits and
// publishes the status list credentials.
package credentialstatus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxStatusListBytes bounds the response body read from a status list endpoint.
const maxStatusListBytes = 4 << 20

// Fetcher retrieves the status list credential published at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, statusListURL string) (*StatusListCredential, error)
}

// FetcherOpt configures an HTTPFetcher.
type FetcherOpt func(*HTTPFetcher)

// WithHTTPClient sets the HTTP client used for fetches.
func WithHTTPClient(client *http.Client) FetcherOpt {
	return func(f *HTTPFetcher) {
		f.httpClient = client
	}
}

// WithRetries sets the number of retries after a failed fetch and the
// initial backoff interval.
func WithRetries(maxRetries uint64, initialInterval time.Duration) FetcherOpt {
	return func(f *HTTPFetcher) {
		f.maxRetries = maxRetries
		f.initialInterval = initialInterval
	}
}

// HTTPFetcher fetches status list credentials over HTTP, retrying transient
// failures with exponential backoff.
type HTTPFetcher struct {
	httpClient      *http.Client
	maxRetries      uint64
	initialInterval time.Duration
}

// NewHTTPFetcher creates a fetcher with a sensible default timeout and three retries.
func NewHTTPFetcher(opts ...FetcherOpt) *HTTPFetcher {
	f := &HTTPFetcher{
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxRetries:      3,
		initialInterval: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch fetches and parses the status list credential located at statusListURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, statusListURL string) (*StatusListCredential, error) {
	if statusListURL == "" {
		return nil, fmt.Errorf("statusListCredential URL is empty")
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.initialInterval

	var result *StatusListCredential
	err := backoff.Retry(func() error {
		credential, err := f.fetchOnce(ctx, statusListURL)
		if err != nil {
			return err
		}
		result = credential
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, f.maxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, statusListURL string) (*StatusListCredential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusListURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build status list request: %w", err))
	}
	req.Header.Set("Accept", "application/json, application/vc+ld+json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("failed to call status list credential endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status list credential endpoint returned non-200 status: %s", resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusListBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read status list credential response body: %w", err)
	}

	credential, err := ParseStatusListCredential(body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	return credential, nil
}
