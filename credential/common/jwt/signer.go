package jwt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// SignDetached produces a compact JWS with a detached, unencoded payload
// (RFC 7797): "<header>..<signature>". The signing input is the encoded
// header, a dot and the raw payload bytes.
func SignDetached(method jwt.SigningMethod, key interface{}, kid string, payload []byte) (string, error) {
	header := Header{
		Alg:  method.Alg(),
		B64:  new(bool),
		Crit: []string{"b64"},
		Kid:  kid,
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("failed to encode header: %w", err)
	}
	encodedHeader := base64.RawURLEncoding.EncodeToString(headerJSON)

	sig, err := method.Sign(signingInput(encodedHeader, payload), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}

	return encodedHeader + ".." + base64.RawURLEncoding.EncodeToString(sig), nil
}

func signingInput(encodedHeader string, payload []byte) string {
	return encodedHeader + "." + string(payload)
}
