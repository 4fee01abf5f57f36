package jwt

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/exp/slices"
)

// VerifyDetached verifies a detached JWS over payload with key. The header
// algorithm must be one of allowedAlgs and the payload must be unencoded.
func VerifyDetached(jws string, payload []byte, key interface{}, allowedAlgs ...string) error {
	encodedHeader, header, signature, err := splitDetached(jws)
	if err != nil {
		return err
	}
	if len(allowedAlgs) > 0 && !slices.Contains(allowedAlgs, header.Alg) {
		return fmt.Errorf("algorithm %q is not allowed", header.Alg)
	}
	if header.B64 == nil || *header.B64 || !slices.Contains(header.Crit, "b64") {
		return fmt.Errorf("JWS must use an unencoded payload")
	}

	method := jwt.GetSigningMethod(header.Alg)
	if method == nil {
		return fmt.Errorf("unsupported algorithm %q", header.Alg)
	}

	if err := method.Verify(signingInput(encodedHeader, payload), signature, key); err != nil {
		return fmt.Errorf("failed to verify JWS: %w", err)
	}
	return nil
}
