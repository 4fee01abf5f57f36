package provider_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/pilacorp/go-credential-trust/credential/common/crypto"
	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/provider"
	"github.com/pilacorp/go-credential-trust/credential/common/provider/mocks"
)

const keyID = "did:example:issuer#key-1"

var fixedNow = time.Date(2025, 8, 5, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (provider.ProofService, *mocks.MockKeyProvider, model.VerificationMethodEntry, ed25519.PrivateKey) {
	t.Helper()
	ctrl := gomock.NewController(t)
	keys := mocks.NewMockKeyProvider(ctrl)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	multikey, err := crypto.EncodeMulticodecKey(pub)
	require.NoError(t, err)

	method := model.VerificationMethodEntry{
		ID:                 keyID,
		Type:               "Ed25519VerificationKey2020",
		Controller:         "did:example:issuer",
		PublicKeyMultibase: multikey,
	}
	return provider.NewProofService(keys, provider.WithProofClock(func() time.Time { return fixedNow })), keys, method, priv
}

func TestProofService_CreateAndVerify(t *testing.T) {
	svc, keys, method, priv := setup(t)
	keys.EXPECT().SigningKey(gomock.Any(), keyID).Return(priv, nil)

	doc := []byte(`{"credentialSubject":{"id":"did:example:subject"}}`)
	proof, err := svc.CreateProof(context.Background(), provider.ProofRequest{
		Suite:              model.Ed25519Signature2020,
		VerificationMethod: keyID,
		Purpose:            model.PurposeAuthentication,
		Challenge:          "c-123",
		Domain:             "verifier.example.com",
	}, doc)
	require.NoError(t, err)

	assert.Equal(t, fixedNow, proof.Created())
	assert.Equal(t, "c-123", proof.Challenge())
	assert.NotEmpty(t, proof.ProofValue())

	ok, err := svc.VerifyProof(context.Background(), doc, proof, method)
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("document tampering", func(t *testing.T) {
		ok, err := svc.VerifyProof(context.Background(), []byte(`{"credentialSubject":{"id":"did:example:mallory"}}`), proof, method)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("challenge is covered by the signature", func(t *testing.T) {
		params := proof.Params()
		params.Challenge = "c-456"
		replayed, err := model.NewProof(params)
		require.NoError(t, err)

		ok, err := svc.VerifyProof(context.Background(), doc, replayed, method)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wrong key", func(t *testing.T) {
		otherPub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		other := method
		other.PublicKeyMultibase, err = crypto.EncodeMulticodecKey(otherPub)
		require.NoError(t, err)

		ok, err := svc.VerifyProof(context.Background(), doc, proof, other)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestProofService_KeyProviderFailure(t *testing.T) {
	svc, keys, _, _ := setup(t)
	keys.EXPECT().SigningKey(gomock.Any(), keyID).Return(nil, errors.New("hsm offline"))

	_, err := svc.CreateProof(context.Background(), provider.ProofRequest{
		Suite:              model.Ed25519Signature2020,
		VerificationMethod: keyID,
		Purpose:            model.PurposeAssertionMethod,
	}, []byte("doc"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hsm offline")
}

func TestProofService_InvalidRequest(t *testing.T) {
	svc, _, method, _ := setup(t)

	_, err := svc.CreateProof(context.Background(), provider.ProofRequest{
		Suite:              "UnknownSuite",
		VerificationMethod: keyID,
		Purpose:            model.PurposeAssertionMethod,
	}, []byte("doc"))
	assert.Error(t, err)

	_, err = svc.CreateProof(context.Background(), provider.ProofRequest{
		Suite:              model.Ed25519Signature2020,
		VerificationMethod: "did:example:issuer",
		Purpose:            model.PurposeAssertionMethod,
	}, []byte("doc"))
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.VerifyProof(context.Background(), []byte("doc"), nil, method)
	assert.ErrorIs(t, err, model.ErrValidation)
}
