package crypto

import (
	"bytes"
	gocrypto "crypto"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// KeyToBytes converts a hex string, with or without the 0x prefix, to bytes.
func KeyToBytes(key string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(key, "0x"))
	if err != nil {
		return nil, fmt.Errorf("key is not in hex format: %w", err)
	}
	return b, nil
}

// ParsePrivateKey parses a private key of type secp256k1 from bytes
// The length of the private key is 32 bytes.
func ParsePrivateKey(privateKeyBytes []byte) (*ecdsa.PrivateKey, error) {
	if len(privateKeyBytes) != 32 {
		return nil, errors.New("private key must be 32 bytes")
	}

	privKey, err := ethcrypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, err
	}

	return privKey, nil
}

// ParseSecp256k1PublicKey parses a compressed (33 byte) or uncompressed
// (65 byte) secp256k1 public key.
func ParseSecp256k1PublicKey(publicKey []byte) (*ecdsa.PublicKey, error) {
	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse secp256k1 public key: %w", err)
	}
	return pub.ToECDSA(), nil
}

// IsSecp256k1 reports whether pub lies on the secp256k1 curve.
func IsSecp256k1(pub *ecdsa.PublicKey) bool {
	if pub == nil || pub.Curve == nil {
		return false
	}
	return pub.Curve.Params().P.Cmp(secp256k1.Params().P) == 0
}

// Secp256k1Signer signs SHA-256 digests with a secp256k1 key and returns
// 64-byte R||S signatures.
type Secp256k1Signer struct {
	key *ecdsa.PrivateKey
}

// NewSecp256k1Signer returns a signer for the 32-byte private key.
func NewSecp256k1Signer(privateKey []byte) (*Secp256k1Signer, error) {
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return &Secp256k1Signer{key: key}, nil
}

// Public returns the *ecdsa.PublicKey of the signer.
func (s *Secp256k1Signer) Public() gocrypto.PublicKey {
	return &s.key.PublicKey
}

// Sign signs a 32-byte digest.
func (s *Secp256k1Signer) Sign(_ io.Reader, digest []byte, _ gocrypto.SignerOpts) ([]byte, error) {
	sig, err := ethcrypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("ecdsa: sign error: %w", err)
	}
	return sig[:64], nil
}

// VerifySignature verifies a secp256k1 signature over sha256(message).
// The signature is 64 bytes (R||S) or 65 bytes with a recovery byte, in
// which case the recovered key must match publicKey.
func VerifySignature(publicKey *ecdsa.PublicKey, message, signature []byte) bool {
	if publicKey == nil || len(message) == 0 {
		return false
	}
	compressed := ethcrypto.CompressPubkey(publicKey)
	hash := sha256.Sum256(message)

	switch len(signature) {
	case 64:
		return ethcrypto.VerifySignature(compressed, hash[:], signature)
	case 65:
		recovered, err := ethcrypto.SigToPub(hash[:], signature)
		if err != nil {
			return false
		}
		return bytes.Equal(ethcrypto.CompressPubkey(recovered), compressed)
	default:
		return false
	}
}

// VerifyKeyPair verifies if a private key and public key match
func VerifyKeyPair(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey) bool {
	derivedPublicKey := &privateKey.PublicKey
	return derivedPublicKey.X.Cmp(publicKey.X) == 0 &&
		derivedPublicKey.Y.Cmp(publicKey.Y) == 0
}
