package model

import (
	"time"

	"golang.org/x/exp/slices"
)

// Supported proof suites.
const (
	Ed25519Signature2020        = "Ed25519Signature2020"
	Ed25519Signature2018        = "Ed25519Signature2018"
	JsonWebSignature2020        = "JsonWebSignature2020"
	EcdsaSecp256k1Signature2019 = "EcdsaSecp256k1Signature2019"
	RsaSignature2018            = "RsaSignature2018"
)

// ProofTypes lists the supported proof suites.
var ProofTypes = []string{
	Ed25519Signature2020,
	Ed25519Signature2018,
	JsonWebSignature2020,
	EcdsaSecp256k1Signature2019,
	RsaSignature2018,
}

// ProofPurposes lists the recognized proof purposes.
var ProofPurposes = []string{
	PurposeAssertionMethod,
	PurposeAuthentication,
	PurposeKeyAgreement,
	PurposeCapabilityInvocation,
	PurposeCapabilityDelegation,
}

// ProofParams carries the fields of a Proof to be constructed.
type ProofParams struct {
	Type               string
	Created            time.Time
	VerificationMethod string
	ProofPurpose       string
	ProofValue         string
	JWS                string
	Challenge          string
	Domain             string
	Nonce              string
}

// Proof represents a Linked Data Proof over a credential or presentation.
type Proof struct {
	typ                string
	created            time.Time
	verificationMethod string
	proofPurpose       string
	proofValue         string
	jws                string
	challenge          string
	domain             string
	nonce              string
}

// NewProof validates params and returns the Proof.
func NewProof(p ProofParams) (*Proof, error) {
	if err := requireNonBlank("proof.type", p.Type); err != nil {
		return nil, err
	}
	if !slices.Contains(ProofTypes, p.Type) {
		return nil, Validation("proof.type", "unsupported proof type %q", p.Type)
	}
	if err := requireTime("proof.created", p.Created); err != nil {
		return nil, err
	}
	if err := requireNonBlank("proof.verificationMethod", p.VerificationMethod); err != nil {
		return nil, err
	}
	vm, err := ParseDIDURL(p.VerificationMethod)
	if err != nil || vm.Fragment == "" {
		return nil, Validation("proof.verificationMethod", "%q is not a DID URL with a fragment", p.VerificationMethod)
	}
	if err := requireNonBlank("proof.proofPurpose", p.ProofPurpose); err != nil {
		return nil, err
	}
	if !slices.Contains(ProofPurposes, p.ProofPurpose) {
		return nil, Validation("proof.proofPurpose", "unsupported proof purpose %q", p.ProofPurpose)
	}
	optional := []struct {
		field string
		value string
	}{
		{"proof.proofValue", p.ProofValue},
		{"proof.jws", p.JWS},
		{"proof.challenge", p.Challenge},
		{"proof.domain", p.Domain},
		{"proof.nonce", p.Nonce},
	}
	for _, o := range optional {
		if err := optionalNonBlank(o.field, o.value); err != nil {
			return nil, err
		}
	}

	return &Proof{
		typ:                p.Type,
		created:            normalizeTime(p.Created),
		verificationMethod: p.VerificationMethod,
		proofPurpose:       p.ProofPurpose,
		proofValue:         p.ProofValue,
		jws:                p.JWS,
		challenge:          p.Challenge,
		domain:             p.Domain,
		nonce:              p.Nonce,
	}, nil
}

func (p *Proof) Type() string               { return p.typ }
func (p *Proof) Created() time.Time         { return p.created }
func (p *Proof) VerificationMethod() string { return p.verificationMethod }
func (p *Proof) ProofPurpose() string       { return p.proofPurpose }
func (p *Proof) ProofValue() string         { return p.proofValue }
func (p *Proof) JWS() string                { return p.jws }
func (p *Proof) Challenge() string          { return p.challenge }
func (p *Proof) Domain() string             { return p.domain }
func (p *Proof) Nonce() string              { return p.nonce }

// Params returns the fields of the proof, for deriving a modified copy.
func (p *Proof) Params() ProofParams {
	return ProofParams{
		Type:               p.typ,
		Created:            p.created,
		VerificationMethod: p.verificationMethod,
		ProofPurpose:       p.proofPurpose,
		ProofValue:         p.proofValue,
		JWS:                p.jws,
		Challenge:          p.challenge,
		Domain:             p.domain,
		Nonce:              p.nonce,
	}
}

// Options returns the proof as a JSON object without its signature
// (proofValue and jws). This is the part of the proof covered by the signature.
func (p *Proof) Options() map[string]interface{} {
	opts := map[string]interface{}{
		"type":               p.typ,
		"created":            formatTime(p.created),
		"verificationMethod": p.verificationMethod,
		"proofPurpose":       p.proofPurpose,
	}
	if p.challenge != "" {
		opts["challenge"] = p.challenge
	}
	if p.domain != "" {
		opts["domain"] = p.domain
	}
	if p.nonce != "" {
		opts["nonce"] = p.nonce
	}
	return opts
}

// Document returns the proof in its JSON-LD form.
func (p *Proof) Document() map[string]interface{} {
	doc := p.Options()
	if p.proofValue != "" {
		doc["proofValue"] = p.proofValue
	}
	if p.jws != "" {
		doc["jws"] = p.jws
	}
	return doc
}

// Equal reports whether both proofs carry the same values.
func (p *Proof) Equal(other *Proof) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.typ == other.typ &&
		p.created.Equal(other.created) &&
		p.verificationMethod == other.verificationMethod &&
		p.proofPurpose == other.proofPurpose &&
		p.proofValue == other.proofValue &&
		p.jws == other.jws &&
		p.challenge == other.challenge &&
		p.domain == other.domain &&
		p.nonce == other.nonce
}
