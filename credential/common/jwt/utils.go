package jwt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Header is the protected header of a detached JWS.
type Header struct {
	Alg  string   `json:"alg"`
	B64  *bool    `json:"b64,omitempty"`
	Crit []string `json:"crit,omitempty"`
	Kid  string   `json:"kid,omitempty"`
}

// splitDetached splits a detached JWS into its encoded header, decoded
// header and signature.
func splitDetached(jws string) (string, Header, []byte, error) {
	parts := strings.Split(jws, ".")
	if len(parts) != 3 {
		return "", Header{}, nil, fmt.Errorf("invalid JWS format")
	}
	if parts[1] != "" {
		return "", Header{}, nil, fmt.Errorf("JWS payload must be detached")
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", Header{}, nil, fmt.Errorf("invalid header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return "", Header{}, nil, fmt.Errorf("invalid header: %w", err)
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", Header{}, nil, fmt.Errorf("invalid signature: %w", err)
	}
	return parts[0], header, signature, nil
}

// ParseHeader returns the protected header of a detached JWS.
func ParseHeader(jws string) (Header, error) {
	_, header, _, err := splitDetached(jws)
	return header, err
}
