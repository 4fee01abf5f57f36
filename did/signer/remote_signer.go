package signer

import (
	"bytes"
	"context"
	gocrypto "crypto"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RemoteSigner is a secp256k1 crypto.Signer whose private key lives behind
// a remote signing API. It returns 64-byte R||S signatures.
type RemoteSigner struct {
	endpoint  string
	apiKey    string
	publicKey *ecdsa.PublicKey
	client    *http.Client
}

var _ gocrypto.Signer = (*RemoteSigner)(nil)

// NewRemoteSigner creates a new RemoteSigner for the key publicKey.
func NewRemoteSigner(endpoint, apiKey string, publicKey *ecdsa.PublicKey) (*RemoteSigner, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("endpoint required")
	}
	if publicKey == nil {
		return nil, fmt.Errorf("public key required")
	}

	return &RemoteSigner{
		endpoint:  endpoint,
		apiKey:    apiKey,
		publicKey: publicKey,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// Public returns the public key of the remote key.
func (s *RemoteSigner) Public() gocrypto.PublicKey {
	return s.publicKey
}

// Sign signs a 32-byte digest using the remote API.
func (s *RemoteSigner) Sign(_ io.Reader, digest []byte, _ gocrypto.SignerOpts) ([]byte, error) {
	return s.SignContext(context.Background(), digest)
}

// SignContext signs a 32-byte digest using the remote API, bound to ctx.
func (s *RemoteSigner) SignContext(ctx context.Context, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("payload must be 32 bytes, got %d", len(digest))
	}

	reqBody, err := json.Marshal(map[string]interface{}{
		"payload_hex": hex.EncodeToString(digest),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call remote signer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote signer http %d", resp.StatusCode)
	}

	var out struct {
		SignatureHex string `json:"signature_hex"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode remote signer response: %w", err)
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(out.SignatureHex, "0x"))
	if err != nil {
		return nil, err
	}
	switch len(sig) {
	case 64:
		return sig, nil
	case 65:
		// Drop the recovery byte.
		return sig[:64], nil
	default:
		return nil, fmt.Errorf("invalid signature length %d", len(sig))
	}
}
