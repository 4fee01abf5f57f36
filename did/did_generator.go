package did

import (
	"context"
	gocrypto "crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/pilacorp/go-credential-trust/credential/common/crypto"
	"github.com/pilacorp/go-credential-trust/credential/common/model"
	verificationmethod "github.com/pilacorp/go-credential-trust/credential/common/verification-method"
)

// MethodKey is the did:key method name.
const MethodKey = "key"

var documentContext = []string{
	"https://www.w3.org/ns/did/v1",
	"https://w3id.org/security/suites/ed25519-2020/v1",
	"https://w3id.org/security/suites/secp256k1-2019/v1",
}

// DIDGenerator generates did:key identifiers.
type DIDGenerator struct {
	keyType KeyType
}

// NewDIDGenerator creates a generator for keys of keyType.
func NewDIDGenerator(keyType KeyType) *DIDGenerator {
	return &DIDGenerator{keyType: keyType}
}

// GenerateDID generates a new key pair and the did:key document for it.
func (d *DIDGenerator) GenerateDID(ctx context.Context) (*DID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keyPair, err := d.generateKeyPair()
	if err != nil {
		return nil, err
	}
	doc, err := KeyDocument(keyPair.Identifier)
	if err != nil {
		return nil, err
	}
	return &DID{
		DID:      keyPair.Identifier,
		KeyID:    keyPair.KeyID,
		KeyType:  d.keyType,
		Secret:   Secret{PrivateKeyHex: keyPair.PrivateKey},
		Document: *doc,
	}, nil
}

// FromPrivateKey restores a did:key DID from an existing private key.
func FromPrivateKey(keyType KeyType, privateKeyHex string) (*DID, error) {
	signer, err := NewSigner(keyType, privateKeyHex)
	if err != nil {
		return nil, err
	}
	identifier, keyID, err := identifierFor(signer.Public())
	if err != nil {
		return nil, err
	}
	doc, err := KeyDocument(identifier)
	if err != nil {
		return nil, err
	}
	return &DID{
		DID:      identifier,
		KeyID:    keyID,
		KeyType:  keyType,
		Secret:   Secret{PrivateKeyHex: privateKeyHex},
		Document: *doc,
	}, nil
}

// FromPublicKey builds the did:key DID of a key held elsewhere, such as a
// remote signer. The result carries no secret.
func FromPublicKey(keyType KeyType, pub gocrypto.PublicKey) (*DID, error) {
	identifier, keyID, err := identifierFor(pub)
	if err != nil {
		return nil, err
	}
	doc, err := KeyDocument(identifier)
	if err != nil {
		return nil, err
	}
	return &DID{
		DID:      identifier,
		KeyID:    keyID,
		KeyType:  keyType,
		Document: *doc,
	}, nil
}

func (d *DIDGenerator) generateKeyPair() (*KeyPair, error) {
	var (
		pub     gocrypto.PublicKey
		privHex string
	)
	switch d.keyType {
	case KeyTypeEd25519:
		publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate private key: %w", err)
		}
		pub, privHex = publicKey, hex.EncodeToString(privateKey.Seed())
	case KeyTypeSecp256k1:
		privateKey, err := ethcrypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate private key: %w", err)
		}
		publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("error casting public key to ECDSA")
		}
		pub, privHex = publicKey, hex.EncodeToString(ethcrypto.FromECDSA(privateKey))
	default:
		return nil, fmt.Errorf("unsupported key type %q", d.keyType)
	}

	identifier, keyID, err := identifierFor(pub)
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		PublicKey:  pub,
		PrivateKey: privHex,
		Identifier: identifier,
		KeyID:      keyID,
	}, nil
}

// identifierFor returns did:key:<fingerprint> and its key id.
func identifierFor(pub gocrypto.PublicKey) (string, string, error) {
	fingerprint, err := crypto.EncodeMulticodecKey(pub)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode public key: %w", err)
	}
	identifier := "did:" + MethodKey + ":" + fingerprint
	return identifier, identifier + "#" + fingerprint, nil
}

// KeyDocument expands a did:key identifier into its DID document. The
// single verification method is usable for every relationship except key
// agreement.
func KeyDocument(identifier string) (*model.DIDDocument, error) {
	parsed, err := model.ParseDID(identifier)
	if err != nil {
		return nil, err
	}
	if parsed.Method != MethodKey {
		return nil, model.NewError(model.KindNotFound, "did", "%s is not a did:key identifier", identifier)
	}
	fingerprint := parsed.ID
	pub, err := crypto.DecodeMulticodecKey(fingerprint)
	if err != nil {
		return nil, model.Format("did", "invalid did:key fingerprint: %v", err)
	}

	vm := model.VerificationMethodEntry{
		ID:                 identifier + "#" + fingerprint,
		Controller:         identifier,
		PublicKeyMultibase: fingerprint,
	}
	switch k := pub.(type) {
	case ed25519.PublicKey:
		vm.Type = verificationmethod.Ed25519VerificationKey2020
	case *ecdsa.PublicKey:
		vm.Type = verificationmethod.Multikey
		if crypto.IsSecp256k1(k) {
			vm.Type = verificationmethod.EcdsaSecp256k1VerificationKey2019
		}
	}

	ref := []model.MethodRef{{ID: vm.ID}}
	return &model.DIDDocument{
		Context:              documentContext,
		ID:                   identifier,
		VerificationMethod:   []model.VerificationMethodEntry{vm},
		Authentication:       ref,
		AssertionMethod:      ref,
		CapabilityInvocation: ref,
		CapabilityDelegation: ref,
	}, nil
}
