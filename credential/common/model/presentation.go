package model

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/pilacorp/go-credential-trust/credential/common/util"
)

// PresentationParams carries the fields of a presentation to be constructed.
type PresentationParams struct {
	ID          string
	Context     []string
	Type        []string
	Holder      string
	Credentials []*VerifiableCredential
}

// VerifiablePresentation is an immutable holder-wrapped bundle of
// credentials. The holder proof is attached once, through WithProof.
type VerifiablePresentation struct {
	id          string
	context     []string
	types       []string
	holder      string
	credentials []*VerifiableCredential
	proof       *Proof
}

// NewPresentation validates params and returns an unsigned presentation.
// A presentation must wrap at least one credential.
func NewPresentation(p PresentationParams) (*VerifiablePresentation, error) {
	if err := optionalURI("id", p.ID); err != nil {
		return nil, err
	}
	if err := validateContext(p.Context); err != nil {
		return nil, err
	}
	if err := validateTypes(p.Type, TypeVerifiablePresentation); err != nil {
		return nil, err
	}
	if err := requireDID("holder", p.Holder); err != nil {
		return nil, err
	}
	if len(p.Credentials) == 0 {
		return nil, Validation("verifiableCredential", "at least one credential is required")
	}
	for i, c := range p.Credentials {
		if c == nil {
			return nil, Validation(fmt.Sprintf("verifiableCredential[%d]", i), "is nil")
		}
	}
	return &VerifiablePresentation{
		id:          p.ID,
		context:     slices.Clone(p.Context),
		types:       slices.Clone(p.Type),
		holder:      p.Holder,
		credentials: slices.Clone(p.Credentials),
	}, nil
}

// WithProof returns a copy of the presentation carrying the holder proof.
func (vp *VerifiablePresentation) WithProof(proof *Proof) (*VerifiablePresentation, error) {
	if proof == nil {
		return nil, Validation("proof", "is required")
	}
	if vp.proof != nil {
		return nil, Validation("proof", "presentation already carries a proof")
	}
	signed := *vp
	signed.proof = proof
	return &signed, nil
}

func (vp *VerifiablePresentation) ID() string        { return vp.id }
func (vp *VerifiablePresentation) Context() []string { return slices.Clone(vp.context) }
func (vp *VerifiablePresentation) Type() []string    { return slices.Clone(vp.types) }
func (vp *VerifiablePresentation) Holder() string    { return vp.holder }
func (vp *VerifiablePresentation) Proof() *Proof     { return vp.proof }

// Credentials returns the embedded credentials in order.
func (vp *VerifiablePresentation) Credentials() []*VerifiableCredential {
	return slices.Clone(vp.credentials)
}

// Params returns the fields of the presentation, minus the proof.
func (vp *VerifiablePresentation) Params() PresentationParams {
	return PresentationParams{
		ID:          vp.id,
		Context:     vp.Context(),
		Type:        vp.Type(),
		Holder:      vp.holder,
		Credentials: vp.Credentials(),
	}
}

// Validate re-checks the construction invariants of the presentation and
// of the holder proof when present.
func (vp *VerifiablePresentation) Validate() error {
	if vp == nil {
		return Validation("presentation", "is nil")
	}
	if _, err := NewPresentation(vp.Params()); err != nil {
		return err
	}
	if vp.proof != nil {
		if _, err := NewProof(vp.proof.Params()); err != nil {
			return err
		}
	}
	return nil
}

// UnsignedDocument returns the JSON-LD form without the holder proof.
// Embedded credentials keep their own proofs.
func (vp *VerifiablePresentation) UnsignedDocument() map[string]interface{} {
	doc := map[string]interface{}{
		"@context": util.SerializeStrings(vp.context),
		"type":     util.SerializeStrings(vp.types),
		"holder":   vp.holder,
		"verifiableCredential": util.MapSlice(vp.credentials, func(c *VerifiableCredential) interface{} {
			return c.Document()
		}),
	}
	if vp.id != "" {
		doc["id"] = vp.id
	}
	return doc
}

// Document returns the JSON-LD form including the holder proof.
func (vp *VerifiablePresentation) Document() map[string]interface{} {
	doc := vp.UnsignedDocument()
	if vp.proof != nil {
		doc["proof"] = vp.proof.Document()
	}
	return doc
}

// Equal reports structural equality across every field, including the
// embedded credentials.
func (vp *VerifiablePresentation) Equal(other *VerifiablePresentation) bool {
	if vp == nil || other == nil {
		return vp == other
	}
	if len(vp.credentials) != len(other.credentials) {
		return false
	}
	for i := range vp.credentials {
		if !vp.credentials[i].Equal(other.credentials[i]) {
			return false
		}
	}
	return vp.id == other.id &&
		slices.Equal(vp.context, other.context) &&
		slices.Equal(vp.types, other.types) &&
		vp.holder == other.holder &&
		vp.proof.Equal(other.proof)
}
