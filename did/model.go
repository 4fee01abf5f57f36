package did

import (
	gocrypto "crypto"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pilacorp/go-credential-trust/credential/common/crypto"
	"github.com/pilacorp/go-credential-trust/credential/common/model"
)

// KeyType selects the key algorithm of a generated DID.
type KeyType string

const (
	KeyTypeEd25519   KeyType = "ed25519"
	KeyTypeSecp256k1 KeyType = "secp256k1"
)

// KeyPair represents the generated key and its DID identifier.
type KeyPair struct {
	PublicKey  gocrypto.PublicKey `json:"-"`
	PrivateKey string             `json:"privateKey"`
	Identifier string             `json:"identifier"`
	KeyID      string             `json:"keyId"`
}

// DID is a generated DID together with its secret and document.
type DID struct {
	DID      string            `json:"did"`
	KeyID    string            `json:"keyId"`
	KeyType  KeyType           `json:"keyType"`
	Secret   Secret            `json:"secret"`
	Document model.DIDDocument `json:"document"`
}

// Secret holds the private key of a generated DID.
type Secret struct {
	PrivateKeyHex string `json:"privateKeyHex"`
}

// Signer returns a crypto.Signer for the DID's private key.
func (d *DID) Signer() (gocrypto.Signer, error) {
	return NewSigner(d.KeyType, d.Secret.PrivateKeyHex)
}

// NewSigner decodes a hex private key of the given type. Ed25519 keys are
// accepted as a 32-byte seed or a 64-byte private key.
func NewSigner(keyType KeyType, privateKeyHex string) (gocrypto.Signer, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key hex: %w", err)
	}
	switch keyType {
	case KeyTypeEd25519:
		switch len(raw) {
		case ed25519.SeedSize:
			return ed25519.NewKeyFromSeed(raw), nil
		case ed25519.PrivateKeySize:
			return ed25519.PrivateKey(raw), nil
		default:
			return nil, fmt.Errorf("ed25519 private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
		}
	case KeyTypeSecp256k1:
		return crypto.NewSecp256k1Signer(raw)
	default:
		return nil, fmt.Errorf("unsupported key type %q", keyType)
	}
}
