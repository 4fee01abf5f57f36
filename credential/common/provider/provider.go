// Package provider defines the collaborators the trust engine depends on:
// DID resolution, key custody, proof creation and verification, and status
// lookups. Implementations are injected into the services so each can be
// replaced or mocked.
package provider

//go:generate mockgen -source=provider.go -destination=mocks/mocks.go -package=mocks DIDResolver,KeyProvider,ProofService,StatusService

import (
	"context"
	"crypto"
	"time"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
)

// DIDResolver resolves a DID string into a DID Document. An unresolvable
// DID yields an error of kind NotFound.
type DIDResolver interface {
	Resolve(ctx context.Context, did string) (*model.DIDDocument, error)
}

// KeyProvider hands out signing keys by reference (a verification method id).
// Only ProofService implementations call it.
type KeyProvider interface {
	SigningKey(ctx context.Context, keyRef string) (crypto.Signer, error)
}

// ProofRequest describes the proof to create over a canonical document.
type ProofRequest struct {
	Suite              string
	VerificationMethod string
	Purpose            string
	Challenge          string
	Domain             string
	Nonce              string
	// Created defaults to the current time when zero.
	Created time.Time
}

// ProofService creates and verifies proofs over canonical documents.
type ProofService interface {
	CreateProof(ctx context.Context, req ProofRequest, canonicalDoc []byte) (*model.Proof, error)
	// VerifyProof reports whether proof is a valid signature of canonicalDoc
	// by method. The binding fields of the proof are covered by the signature.
	VerifyProof(ctx context.Context, canonicalDoc []byte, proof *model.Proof, method model.VerificationMethodEntry) (bool, error)
}

// StatusService answers revocation and suspension queries against status
// lists. It fails closed: when the status cannot be determined it returns an
// error of kind StatusIndeterminate rather than an active status.
type StatusService interface {
	GetCredentialStatus(ctx context.Context, status *model.CredentialStatus) (model.Status, error)
	// CheckCredentialStatus also requires the status list to be issued by issuer.
	CheckCredentialStatus(ctx context.Context, issuer string, status *model.CredentialStatus) (model.Status, error)
	IsRevoked(ctx context.Context, statusListURL string, index int) (bool, error)
}
