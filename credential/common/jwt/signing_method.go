package jwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
)

// SigningMethodES256K implements ES256K (ECDSA over secp256k1 with SHA-256).
type SigningMethodES256K struct{}

// ES256K is the ES256K signing method instance
var ES256K = &SigningMethodES256K{}

func init() {
	jwt.RegisterSigningMethod(ES256K.Alg(), func() jwt.SigningMethod {
		return ES256K
	})
}

// Alg returns the algorithm name
func (m *SigningMethodES256K) Alg() string {
	return "ES256K"
}

// Sign signs signingString. key is either an *ecdsa.PrivateKey on secp256k1
// or a crypto.Signer producing 64-byte R||S signatures over a SHA-256 digest.
func (m *SigningMethodES256K) Sign(signingString string, key interface{}) ([]byte, error) {
	hash := sha256.Sum256([]byte(signingString))

	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		sig, err := ethcrypto.Sign(hash[:], k)
		if err != nil {
			return nil, fmt.Errorf("signing failed: %w", err)
		}
		return sig[:64], nil // R and S, without the recovery id
	case crypto.Signer:
		sig, err := k.Sign(rand.Reader, hash[:], crypto.SHA256)
		if err != nil {
			return nil, fmt.Errorf("signing failed: %w", err)
		}
		if len(sig) != 64 {
			return nil, fmt.Errorf("signing failed: unexpected signature length %d", len(sig))
		}
		return sig, nil
	default:
		return nil, jwt.ErrInvalidKeyType
	}
}

// Verify verifies a 64-byte R||S signature with an *ecdsa.PublicKey.
func (m *SigningMethodES256K) Verify(signingString string, signature []byte, key interface{}) error {
	publicKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return jwt.ErrInvalidKeyType
	}
	if len(signature) != 64 {
		return fmt.Errorf("invalid signature length")
	}

	hash := sha256.Sum256([]byte(signingString))
	if !ethcrypto.VerifySignature(ethcrypto.CompressPubkey(publicKey), hash[:], signature) {
		return jwt.ErrSignatureInvalid
	}
	return nil
}
