package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/provider"
	"github.com/pilacorp/go-credential-trust/did/config"
)

const maxDocumentBytes = 1 << 20

// HTTPOpt configures an HTTPResolver.
type HTTPOpt func(*HTTPResolver)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOpt {
	return func(r *HTTPResolver) {
		r.client = client
	}
}

// WithRetries sets the number of retries after a transient failure.
func WithRetries(maxRetries uint64, initialInterval time.Duration) HTTPOpt {
	return func(r *HTTPResolver) {
		r.maxRetries = maxRetries
		r.initialInterval = initialInterval
	}
}

// HTTPResolver is a client for a universal resolver endpoint
// (GET <baseURL>/<did>).
type HTTPResolver struct {
	baseURL         string
	client          *http.Client
	maxRetries      uint64
	initialInterval time.Duration
}

var _ provider.DIDResolver = (*HTTPResolver)(nil)

// NewHTTPResolver creates a resolver for baseURL. An empty baseURL uses the
// configured universal resolver.
func NewHTTPResolver(baseURL string, opts ...HTTPOpt) *HTTPResolver {
	if baseURL == "" {
		baseURL = config.ResolverURL()
	}
	r := &HTTPResolver{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   config.ResolverTimeout(),
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxRetries:      config.ResolverRetries(),
		initialInterval: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches and parses a DID document from the resolver endpoint. The
// response may be a bare document or a resolution result carrying
// didDocument.
func (r *HTTPResolver) Resolve(ctx context.Context, identifier string) (*model.DIDDocument, error) {
	if _, err := model.ParseDID(identifier); err != nil {
		return nil, model.WrapError(model.KindNotFound, err, "cannot resolve %q", identifier)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.initialInterval

	var doc *model.DIDDocument
	err := backoff.Retry(func() error {
		resolved, err := r.resolveOnce(ctx, identifier)
		if err != nil {
			return err
		}
		doc = resolved
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, r.maxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *HTTPResolver) resolveOnce(ctx context.Context, identifier string) (*model.DIDDocument, error) {
	apiURL := r.baseURL + "/" + url.PathEscape(identifier)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build DID resolver request: %w", err))
	}
	req.Header.Set("Accept", "application/did+ld+json, application/ld+json, application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("failed to make HTTP request to DID resolver: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, backoff.Permanent(model.NewError(model.KindNotFound, "did", "DID %s not found", identifier))
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return nil, backoff.Permanent(model.NewError(model.KindNotFound, "did", "DID resolver API returned %s for %s", resp.Status, identifier))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("DID resolver API returned non-200 status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from DID resolver: %w", err)
	}
	doc, err := parseResolution(body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if doc.ID != identifier {
		return nil, backoff.Permanent(model.NewError(model.KindNotFound, "did", "resolver returned document %q for %q", doc.ID, identifier))
	}
	return doc, nil
}

func parseResolution(body []byte) (*model.DIDDocument, error) {
	var result struct {
		DIDDocument *model.DIDDocument `json:"didDocument"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, model.Format("didDocument", "failed to unmarshal DID document JSON: %v", err)
	}
	if result.DIDDocument != nil {
		return result.DIDDocument, nil
	}
	var doc model.DIDDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, model.Format("didDocument", "failed to unmarshal DID document JSON: %v", err)
	}
	return &doc, nil
}
