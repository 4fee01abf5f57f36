package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/pilacorp/go-credential-trust/credential/common/crypto"
	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/processor"
	verificationmethod "github.com/pilacorp/go-credential-trust/credential/common/verification-method"
)

// ProofOpt configures the default ProofService.
type ProofOpt func(*proofService)

// WithProofClock sets the clock used for the created timestamp.
func WithProofClock(now func() time.Time) ProofOpt {
	return func(p *proofService) {
		p.now = now
	}
}

type proofService struct {
	keys KeyProvider
	now  func() time.Time
}

// NewProofService returns a ProofService signing with keys from keys and
// dispatching to the proof suites in the crypto package. The signed data is
// sha256(JCS(proof options)) || sha256(canonical document).
func NewProofService(keys KeyProvider, opts ...ProofOpt) ProofService {
	p := &proofService{keys: keys, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *proofService) CreateProof(ctx context.Context, req ProofRequest, canonicalDoc []byte) (*model.Proof, error) {
	suite, err := crypto.SuiteFor(req.Suite)
	if err != nil {
		return nil, err
	}
	created := req.Created
	if created.IsZero() {
		created = p.now()
	}

	unsigned, err := model.NewProof(model.ProofParams{
		Type:               req.Suite,
		Created:            created,
		VerificationMethod: req.VerificationMethod,
		ProofPurpose:       req.Purpose,
		Challenge:          req.Challenge,
		Domain:             req.Domain,
		Nonce:              req.Nonce,
	})
	if err != nil {
		return nil, err
	}

	data, err := verifyData(unsigned, canonicalDoc)
	if err != nil {
		return nil, err
	}

	signer, err := p.keys.SigningKey(ctx, req.VerificationMethod)
	if err != nil {
		return nil, fmt.Errorf("failed to get signing key for %s: %w", req.VerificationMethod, err)
	}
	sig, err := suite.Sign(signer, req.VerificationMethod, data)
	if err != nil {
		return nil, fmt.Errorf("failed to sign proof: %w", err)
	}

	params := unsigned.Params()
	params.ProofValue = sig.ProofValue
	params.JWS = sig.JWS
	return model.NewProof(params)
}

func (p *proofService) VerifyProof(_ context.Context, canonicalDoc []byte, proof *model.Proof, method model.VerificationMethodEntry) (bool, error) {
	if proof == nil {
		return false, model.Validation("proof", "is required")
	}
	suite, err := crypto.SuiteFor(proof.Type())
	if err != nil {
		return false, err
	}
	pub, err := verificationmethod.PublicKey(method)
	if err != nil {
		return false, fmt.Errorf("failed to decode public key of %s: %w", method.ID, err)
	}
	data, err := verifyData(proof, canonicalDoc)
	if err != nil {
		return false, err
	}
	return suite.Verify(pub, data, crypto.Signature{ProofValue: proof.ProofValue(), JWS: proof.JWS()})
}

// verifyData hashes the proof options and the document separately so that
// neither can be shifted into the other.
func verifyData(proof *model.Proof, canonicalDoc []byte) ([]byte, error) {
	if canonicalDoc == nil {
		return nil, fmt.Errorf("canonical document is nil")
	}
	options, err := processor.JCS{}.Canonicalize(proof.Options())
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize proof options: %w", err)
	}
	optionsHash, err := processor.ComputeDigest(options)
	if err != nil {
		return nil, err
	}
	docHash, err := processor.ComputeDigest(canonicalDoc)
	if err != nil {
		return nil, err
	}
	return append(optionsHash, docHash...), nil
}
