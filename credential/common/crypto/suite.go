package crypto

import (
	gocrypto "crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	credjwt "github.com/pilacorp/go-credential-trust/credential/common/jwt"
	"github.com/pilacorp/go-credential-trust/credential/common/model"
)

// Signature is the signature material a suite places on a proof.
type Signature struct {
	ProofValue string
	JWS        string
}

// Suite signs and verifies proof data for one proof type.
type Suite interface {
	Type() string
	// Sign signs data with signer. kid identifies the verification method.
	Sign(signer gocrypto.Signer, kid string, data []byte) (Signature, error)
	// Verify reports whether sig is a valid signature of data under pub.
	// An error means the key or the signature cannot be used with the suite.
	Verify(pub gocrypto.PublicKey, data []byte, sig Signature) (bool, error)
}

var suites = map[string]Suite{
	model.Ed25519Signature2020:        ed25519Signature2020{},
	model.Ed25519Signature2018:        jwsSuite{typ: model.Ed25519Signature2018, algs: []string{"EdDSA"}},
	model.JsonWebSignature2020:        jwsSuite{typ: model.JsonWebSignature2020, algs: []string{"EdDSA", "ES256K", "ES256", "PS256"}},
	model.EcdsaSecp256k1Signature2019: jwsSuite{typ: model.EcdsaSecp256k1Signature2019, algs: []string{"ES256K"}},
	model.RsaSignature2018:            jwsSuite{typ: model.RsaSignature2018, algs: []string{"PS256"}},
}

// SuiteFor returns the suite implementing proofType.
func SuiteFor(proofType string) (Suite, error) {
	s, ok := suites[proofType]
	if !ok {
		return nil, fmt.Errorf("unsupported proof type %q", proofType)
	}
	return s, nil
}

type ed25519Signature2020 struct{}

func (ed25519Signature2020) Type() string { return model.Ed25519Signature2020 }

func (ed25519Signature2020) Sign(signer gocrypto.Signer, _ string, data []byte) (Signature, error) {
	if _, ok := signer.Public().(ed25519.PublicKey); !ok {
		return Signature{}, fmt.Errorf("%s requires an ed25519 key, got %T", model.Ed25519Signature2020, signer.Public())
	}
	sig, err := signer.Sign(rand.Reader, data, gocrypto.Hash(0))
	if err != nil {
		return Signature{}, fmt.Errorf("failed to sign: %w", err)
	}
	proofValue, err := EncodeMultibase(sig)
	if err != nil {
		return Signature{}, err
	}
	return Signature{ProofValue: proofValue}, nil
}

func (ed25519Signature2020) Verify(pub gocrypto.PublicKey, data []byte, sig Signature) (bool, error) {
	key, ok := pub.(ed25519.PublicKey)
	if !ok {
		return false, fmt.Errorf("%s requires an ed25519 key, got %T", model.Ed25519Signature2020, pub)
	}
	if sig.ProofValue == "" {
		return false, fmt.Errorf("proofValue is required")
	}
	raw, err := DecodeMultibase(sig.ProofValue)
	if err != nil {
		return false, nil
	}
	return ed25519.Verify(key, data, raw), nil
}

// jwsSuite carries the signature as a detached JWS in the proof's jws field.
type jwsSuite struct {
	typ  string
	algs []string
}

func (s jwsSuite) Type() string { return s.typ }

func (s jwsSuite) Sign(signer gocrypto.Signer, kid string, data []byte) (Signature, error) {
	method, err := s.method(signer.Public())
	if err != nil {
		return Signature{}, err
	}

	// ES256 and PS256 need the concrete private key type.
	switch method.Alg() {
	case "ES256":
		if _, ok := signer.(*ecdsa.PrivateKey); !ok {
			return Signature{}, fmt.Errorf("ES256 requires an *ecdsa.PrivateKey signer")
		}
	case "PS256":
		if _, ok := signer.(*rsa.PrivateKey); !ok {
			return Signature{}, fmt.Errorf("PS256 requires an *rsa.PrivateKey signer")
		}
	}

	jws, err := credjwt.SignDetached(method, signer, kid, data)
	if err != nil {
		return Signature{}, err
	}
	return Signature{JWS: jws}, nil
}

func (s jwsSuite) Verify(pub gocrypto.PublicKey, data []byte, sig Signature) (bool, error) {
	method, err := s.method(pub)
	if err != nil {
		return false, err
	}
	if sig.JWS == "" {
		return false, fmt.Errorf("jws is required")
	}
	if err := credjwt.VerifyDetached(sig.JWS, data, pub, method.Alg()); err != nil {
		return false, nil
	}
	return true, nil
}

// method selects the signing method for the key, restricted to the suite's algorithms.
func (s jwsSuite) method(pub gocrypto.PublicKey) (jwt.SigningMethod, error) {
	var method jwt.SigningMethod
	switch k := pub.(type) {
	case ed25519.PublicKey:
		method = jwt.SigningMethodEdDSA
	case *ecdsa.PublicKey:
		switch {
		case IsSecp256k1(k):
			method = credjwt.ES256K
		case k.Curve == elliptic.P256():
			method = jwt.SigningMethodES256
		}
	case *rsa.PublicKey:
		method = jwt.SigningMethodPS256
	}
	if method == nil {
		return nil, fmt.Errorf("%s does not support key type %T", s.typ, pub)
	}
	for _, alg := range s.algs {
		if alg == method.Alg() {
			return method, nil
		}
	}
	return nil, fmt.Errorf("%s does not support %s keys", s.typ, method.Alg())
}
