// Package verificationmethod locates verification methods in DID documents
// and decodes their public keys.
package verificationmethod

import (
	gocrypto "crypto"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/go-jose/go-jose/v3"

	"github.com/pilacorp/go-credential-trust/credential/common/crypto"
	"github.com/pilacorp/go-credential-trust/credential/common/model"
)

// Verification method types with a known key encoding.
const (
	Ed25519VerificationKey2018        = "Ed25519VerificationKey2018"
	Ed25519VerificationKey2020        = "Ed25519VerificationKey2020"
	EcdsaSecp256k1VerificationKey2019 = "EcdsaSecp256k1VerificationKey2019"
	JsonWebKey2020                    = "JsonWebKey2020"
	Multikey                          = "Multikey"
)

// Find returns the verification method with the given id, looking at both
// the verificationMethod list and methods embedded in relationships.
func Find(doc *model.DIDDocument, id string) (model.VerificationMethodEntry, error) {
	if doc == nil {
		return model.VerificationMethodEntry{}, model.NewError(model.KindVerificationMethodNotFound, "verificationMethod", "DID document is nil")
	}
	target := doc.AbsoluteID(id)

	for _, vm := range doc.VerificationMethod {
		if doc.AbsoluteID(vm.ID) == target {
			return vm, nil
		}
	}
	for _, purpose := range model.ProofPurposes {
		for _, ref := range doc.Relationship(purpose) {
			if ref.Embedded != nil && doc.AbsoluteID(ref.Embedded.ID) == target {
				return *ref.Embedded, nil
			}
		}
	}
	return model.VerificationMethodEntry{}, model.NewError(model.KindVerificationMethodNotFound, "verificationMethod", "%s not found in DID document %s", id, doc.ID)
}

// ForPurpose returns the verification methods of the relationship named by
// purpose, in document order. References that do not resolve are skipped.
func ForPurpose(doc *model.DIDDocument, purpose string) []model.VerificationMethodEntry {
	if doc == nil {
		return nil
	}
	var methods []model.VerificationMethodEntry
	for _, ref := range doc.Relationship(purpose) {
		if ref.Embedded != nil {
			methods = append(methods, *ref.Embedded)
			continue
		}
		if vm, err := Find(doc, ref.ID); err == nil {
			methods = append(methods, vm)
		}
	}
	return methods
}

// First returns the first verification method usable for purpose.
func First(doc *model.DIDDocument, purpose string) (model.VerificationMethodEntry, error) {
	methods := ForPurpose(doc, purpose)
	if len(methods) == 0 {
		id := ""
		if doc != nil {
			id = doc.ID
		}
		return model.VerificationMethodEntry{}, model.NewError(model.KindVerificationMethodNotFound, purpose, "DID document %s has no %s verification method", id, purpose)
	}
	vm := methods[0]
	vm.ID = doc.AbsoluteID(vm.ID)
	return vm, nil
}

// IsAuthorized reports whether the method id is listed under purpose.
func IsAuthorized(doc *model.DIDDocument, id, purpose string) bool {
	if doc == nil {
		return false
	}
	target := doc.AbsoluteID(id)
	for _, ref := range doc.Relationship(purpose) {
		if doc.AbsoluteID(ref.ID) == target {
			return true
		}
	}
	return false
}

// DIDFromVerificationMethod extracts the DID from a verification method URL.
func DIDFromVerificationMethod(verificationMethod string) (string, error) {
	u, err := model.ParseDIDURL(verificationMethod)
	if err != nil {
		return "", fmt.Errorf("invalid verification method URL, could not extract DID: %w", err)
	}
	return u.DID.String(), nil
}

// PublicKey decodes the public key of a verification method.
func PublicKey(vm model.VerificationMethodEntry) (gocrypto.PublicKey, error) {
	switch {
	case vm.PublicKeyJwk != nil:
		return jwkPublicKey(vm.PublicKeyJwk)
	case vm.PublicKeyMultibase != "":
		if key, err := crypto.DecodeMulticodecKey(vm.PublicKeyMultibase); err == nil {
			return key, nil
		}
		// Ed25519VerificationKey2020 may carry the bare key without a codec prefix.
		raw, err := crypto.DecodeMultibase(vm.PublicKeyMultibase)
		if err != nil {
			return nil, err
		}
		return rawPublicKey(vm.Type, raw)
	case vm.PublicKeyBase58 != "":
		raw := base58.Decode(vm.PublicKeyBase58)
		if len(raw) == 0 {
			return nil, fmt.Errorf("invalid publicKeyBase58")
		}
		return rawPublicKey(vm.Type, raw)
	case vm.PublicKeyHex != "":
		raw, err := crypto.KeyToBytes(vm.PublicKeyHex)
		if err != nil {
			return nil, err
		}
		return rawPublicKey(vm.Type, raw)
	default:
		return nil, fmt.Errorf("verification method %s has no public key material", vm.ID)
	}
}

func rawPublicKey(typ string, raw []byte) (gocrypto.PublicKey, error) {
	switch typ {
	case Ed25519VerificationKey2018, Ed25519VerificationKey2020:
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("ed25519 public key must be %d bytes", ed25519.PublicKeySize)
		}
		return ed25519.PublicKey(raw), nil
	}
	// Keys of other types are read as secp256k1 points.
	if len(raw) == 33 || len(raw) == 65 {
		return crypto.ParseSecp256k1PublicKey(raw)
	}
	return nil, fmt.Errorf("unsupported key encoding for verification method type %q", typ)
}

func jwkPublicKey(jwk *model.JWK) (gocrypto.PublicKey, error) {
	if strings.EqualFold(jwk.Crv, "secp256k1") {
		return secp256k1JWK(jwk)
	}

	raw, err := json.Marshal(jwk)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JWK: %w", err)
	}
	var key jose.JSONWebKey
	if err := key.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("invalid publicKeyJwk: %w", err)
	}
	if !key.IsPublic() {
		return nil, fmt.Errorf("publicKeyJwk must not contain private key material")
	}
	return key.Key, nil
}

// secp256k1JWK decodes an EC JWK on secp256k1, which go-jose does not support.
func secp256k1JWK(jwk *model.JWK) (gocrypto.PublicKey, error) {
	if jwk.Kty != "EC" {
		return nil, fmt.Errorf("secp256k1 JWK must have kty EC")
	}
	x, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil || len(x) != 32 {
		return nil, fmt.Errorf("invalid secp256k1 JWK x coordinate")
	}
	y, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil || len(y) != 32 {
		return nil, fmt.Errorf("invalid secp256k1 JWK y coordinate")
	}
	uncompressed := append([]byte{0x04}, append(x, y...)...)
	return crypto.ParseSecp256k1PublicKey(uncompressed)
}
