package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pilacorp/go-credential-trust/credential/common/util"
)

// Verification relationships a proof purpose can refer to.
const (
	PurposeAssertionMethod      = "assertionMethod"
	PurposeAuthentication       = "authentication"
	PurposeKeyAgreement         = "keyAgreement"
	PurposeCapabilityInvocation = "capabilityInvocation"
	PurposeCapabilityDelegation = "capabilityDelegation"
)

// DIDDocument represents the structure of a resolved DID Document.
type DIDDocument struct {
	Context              Strings                   `json:"@context,omitempty"`
	ID                   string                    `json:"id"`
	Controller           Strings                   `json:"controller,omitempty"`
	VerificationMethod   []VerificationMethodEntry `json:"verificationMethod,omitempty"`
	Authentication       []MethodRef               `json:"authentication,omitempty"`
	AssertionMethod      []MethodRef               `json:"assertionMethod,omitempty"`
	KeyAgreement         []MethodRef               `json:"keyAgreement,omitempty"`
	CapabilityInvocation []MethodRef               `json:"capabilityInvocation,omitempty"`
	CapabilityDelegation []MethodRef               `json:"capabilityDelegation,omitempty"`
	DIDDocumentMetadata  map[string]interface{}    `json:"didDocumentMetadata,omitempty"`
}

// VerificationMethodEntry represents a single verification method in a DID Document.
type VerificationMethodEntry struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyHex       string `json:"publicKeyHex,omitempty"`
	PublicKeyBase58    string `json:"publicKeyBase58,omitempty"`
	PublicKeyMultibase string `json:"publicKeyMultibase,omitempty"`
	PublicKeyJwk       *JWK   `json:"publicKeyJwk,omitempty"`
}

// JWK represents a JSON Web Key structure
type JWK struct {
	Kty string `json:"kty"`           // Key type
	Crv string `json:"crv,omitempty"` // Curve
	X   string `json:"x,omitempty"`   // X coordinate
	Y   string `json:"y,omitempty"`   // Y coordinate
	N   string `json:"n,omitempty"`   // RSA modulus
	E   string `json:"e,omitempty"`   // RSA exponent
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
}

// MethodRef is an entry of a verification relationship: either a reference
// to a method id or an embedded method.
type MethodRef struct {
	ID       string
	Embedded *VerificationMethodEntry
}

func (r MethodRef) MarshalJSON() ([]byte, error) {
	if r.Embedded != nil {
		return json.Marshal(r.Embedded)
	}
	return json.Marshal(r.ID)
}

func (r *MethodRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*r = MethodRef{ID: id}
		return nil
	}
	var vm VerificationMethodEntry
	if err := json.Unmarshal(data, &vm); err != nil {
		return fmt.Errorf("failed to unmarshal verification relationship entry: %w", err)
	}
	*r = MethodRef{ID: vm.ID, Embedded: &vm}
	return nil
}

// Relationship returns the entries of the named verification relationship.
func (d *DIDDocument) Relationship(purpose string) []MethodRef {
	switch purpose {
	case PurposeAssertionMethod:
		return d.AssertionMethod
	case PurposeAuthentication:
		return d.Authentication
	case PurposeKeyAgreement:
		return d.KeyAgreement
	case PurposeCapabilityInvocation:
		return d.CapabilityInvocation
	case PurposeCapabilityDelegation:
		return d.CapabilityDelegation
	}
	return nil
}

// AbsoluteID expands a relative method id ("#key-1") against the document id.
func (d *DIDDocument) AbsoluteID(id string) string {
	if strings.HasPrefix(id, "#") {
		return d.ID + id
	}
	return id
}

// Strings is a JSON value that may be a single string or an array of strings.
// It always marshals as an array.
type Strings []string

func (s *Strings) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	values, err := util.NormalizeStrings(raw)
	if err != nil {
		return err
	}
	*s = values
	return nil
}
