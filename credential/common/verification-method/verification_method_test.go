package verificationmethod

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/btcsuite/btcutil/base58"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-credential-trust/credential/common/crypto"
	"github.com/pilacorp/go-credential-trust/credential/common/model"
)

const testDocument = `{
	"id": "did:example:issuer",
	"verificationMethod": [
		{"id": "did:example:issuer#key-1", "type": "Ed25519VerificationKey2020", "controller": "did:example:issuer", "publicKeyMultibase": "z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK"},
		{"id": "#key-2", "type": "EcdsaSecp256k1VerificationKey2019", "controller": "did:example:issuer", "publicKeyHex": "02b97c30de767f084ce3080168ee293053ba33b235d7116a3263d29f1450936b71"}
	],
	"assertionMethod": ["did:example:issuer#key-1", "#missing"],
	"authentication": [
		"#key-2",
		{"id": "did:example:issuer#auth", "type": "JsonWebKey2020", "controller": "did:example:issuer", "publicKeyJwk": {"kty": "OKP", "crv": "Ed25519", "x": "11qYAYKxCrfVS_7TyWQHOg7hcvPapiMlrwIaaPcHURo"}}
	]
}`

func loadDocument(t *testing.T) *model.DIDDocument {
	t.Helper()
	var doc model.DIDDocument
	require.NoError(t, json.Unmarshal([]byte(testDocument), &doc))
	return &doc
}

func TestFind(t *testing.T) {
	doc := loadDocument(t)

	vm, err := Find(doc, "did:example:issuer#key-2")
	require.NoError(t, err)
	assert.Equal(t, EcdsaSecp256k1VerificationKey2019, vm.Type)

	vm, err = Find(doc, "#auth")
	require.NoError(t, err)
	assert.Equal(t, JsonWebKey2020, vm.Type)

	_, err = Find(doc, "did:example:issuer#nope")
	assert.ErrorIs(t, err, model.ErrVerificationMethodNotFound)

	_, err = Find(nil, "did:example:issuer#key-1")
	assert.ErrorIs(t, err, model.ErrVerificationMethodNotFound)
}

func TestForPurposeAndFirst(t *testing.T) {
	doc := loadDocument(t)

	assertion := ForPurpose(doc, model.PurposeAssertionMethod)
	require.Len(t, assertion, 1)
	assert.Equal(t, "did:example:issuer#key-1", assertion[0].ID)

	auth := ForPurpose(doc, model.PurposeAuthentication)
	require.Len(t, auth, 2)

	first, err := First(doc, model.PurposeAuthentication)
	require.NoError(t, err)
	assert.Equal(t, "did:example:issuer#key-2", first.ID)

	_, err = First(doc, model.PurposeKeyAgreement)
	assert.ErrorIs(t, err, model.ErrVerificationMethodNotFound)
}

func TestIsAuthorized(t *testing.T) {
	doc := loadDocument(t)

	assert.True(t, IsAuthorized(doc, "did:example:issuer#key-1", model.PurposeAssertionMethod))
	assert.True(t, IsAuthorized(doc, "did:example:issuer#key-2", model.PurposeAuthentication))
	assert.False(t, IsAuthorized(doc, "did:example:issuer#key-2", model.PurposeAssertionMethod))
	assert.False(t, IsAuthorized(nil, "did:example:issuer#key-1", model.PurposeAssertionMethod))
}

func TestDIDFromVerificationMethod(t *testing.T) {
	did, err := DIDFromVerificationMethod("did:example:issuer#key-1")
	require.NoError(t, err)
	assert.Equal(t, "did:example:issuer", did)

	_, err = DIDFromVerificationMethod("")
	assert.Error(t, err)
	_, err = DIDFromVerificationMethod("https://example.com#key")
	assert.Error(t, err)
}

func TestPublicKey(t *testing.T) {
	edPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	k1, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	p256, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	multikey, err := crypto.EncodeMulticodecKey(edPub)
	require.NoError(t, err)
	bareMultibase, err := crypto.EncodeMultibase(edPub)
	require.NoError(t, err)
	compressed := ethcrypto.CompressPubkey(&k1.PublicKey)
	k1Bytes := ethcrypto.FromECDSAPub(&k1.PublicKey)

	tests := []struct {
		name    string
		vm      model.VerificationMethodEntry
		wantErr bool
		check   func(t *testing.T, key interface{})
	}{
		{
			name: "multikey ed25519",
			vm:   model.VerificationMethodEntry{Type: Multikey, PublicKeyMultibase: multikey},
			check: func(t *testing.T, key interface{}) {
				assert.Equal(t, edPub, key)
			},
		},
		{
			name: "bare multibase ed25519",
			vm:   model.VerificationMethodEntry{Type: Ed25519VerificationKey2020, PublicKeyMultibase: bareMultibase},
			check: func(t *testing.T, key interface{}) {
				assert.Equal(t, edPub, key)
			},
		},
		{
			name: "base58 ed25519",
			vm:   model.VerificationMethodEntry{Type: Ed25519VerificationKey2018, PublicKeyBase58: base58.Encode(edPub)},
			check: func(t *testing.T, key interface{}) {
				assert.Equal(t, edPub, key)
			},
		},
		{
			name: "hex secp256k1",
			vm:   model.VerificationMethodEntry{Type: EcdsaSecp256k1VerificationKey2019, PublicKeyHex: "0x" + hex.EncodeToString(compressed)},
			check: func(t *testing.T, key interface{}) {
				pub, ok := key.(*ecdsa.PublicKey)
				require.True(t, ok)
				assert.Equal(t, 0, pub.X.Cmp(k1.PublicKey.X))
			},
		},
		{
			name: "jwk secp256k1",
			vm: model.VerificationMethodEntry{Type: JsonWebKey2020, PublicKeyJwk: &model.JWK{
				Kty: "EC", Crv: "secp256k1",
				X: base64.RawURLEncoding.EncodeToString(k1Bytes[1:33]),
				Y: base64.RawURLEncoding.EncodeToString(k1Bytes[33:]),
			}},
			check: func(t *testing.T, key interface{}) {
				pub, ok := key.(*ecdsa.PublicKey)
				require.True(t, ok)
				assert.Equal(t, 0, pub.Y.Cmp(k1.PublicKey.Y))
			},
		},
		{
			name: "jwk P-256",
			vm: model.VerificationMethodEntry{Type: JsonWebKey2020, PublicKeyJwk: &model.JWK{
				Kty: "EC", Crv: "P-256",
				X: base64.RawURLEncoding.EncodeToString(p256.PublicKey.X.FillBytes(make([]byte, 32))),
				Y: base64.RawURLEncoding.EncodeToString(p256.PublicKey.Y.FillBytes(make([]byte, 32))),
			}},
			check: func(t *testing.T, key interface{}) {
				pub, ok := key.(*ecdsa.PublicKey)
				require.True(t, ok)
				assert.True(t, pub.Equal(&p256.PublicKey))
			},
		},
		{
			name: "jwk ed25519",
			vm: model.VerificationMethodEntry{Type: JsonWebKey2020, PublicKeyJwk: &model.JWK{
				Kty: "OKP", Crv: "Ed25519", X: base64.RawURLEncoding.EncodeToString(edPub),
			}},
			check: func(t *testing.T, key interface{}) {
				assert.Equal(t, edPub, key)
			},
		},
		{name: "no key material", vm: model.VerificationMethodEntry{ID: "did:example:a#k"}, wantErr: true},
		{name: "short ed25519", vm: model.VerificationMethodEntry{Type: Ed25519VerificationKey2018, PublicKeyBase58: base58.Encode([]byte{1, 2, 3})}, wantErr: true},
		{name: "bad hex", vm: model.VerificationMethodEntry{Type: EcdsaSecp256k1VerificationKey2019, PublicKeyHex: "xyz"}, wantErr: true},
		{name: "bad jwk", vm: model.VerificationMethodEntry{Type: JsonWebKey2020, PublicKeyJwk: &model.JWK{Kty: "EC", Crv: "secp256k1", X: "AA"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := PublicKey(tt.vm)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, key)
		})
	}
}
