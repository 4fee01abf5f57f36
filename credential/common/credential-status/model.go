package credentialstatus

import (
	"encoding/json"
	"fmt"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/util"
)

// Status list credential and subject types.
const (
	StatusList2021Credential = "StatusList2021Credential"
	StatusList2021           = "StatusList2021"
)

// StatusListCredentialResponse represents the envelope some status list
// endpoints wrap the credential in.
type StatusListCredentialResponse struct {
	Data json.RawMessage `json:"data"`
}

// StatusListCredential models the Verifiable Credential returned by the
// status list endpoint. Only the fields needed for status checks are typed.
type StatusListCredential struct {
	Context           model.Strings               `json:"@context"`
	ID                string                      `json:"id"`
	Type              model.Strings               `json:"type"`
	Issuer            json.RawMessage             `json:"issuer,omitempty"`
	IssuanceDate      string                      `json:"issuanceDate,omitempty"`
	ValidFrom         string                      `json:"validFrom,omitempty"`
	ValidUntil        string                      `json:"validUntil,omitempty"`
	CredentialSubject StatusListCredentialSubject `json:"credentialSubject"`
	Proof             map[string]interface{}      `json:"proof,omitempty"`

	// raw is the credential as published, which its proof covers.
	raw []byte
	// local is set for lists built by this process's Registry.
	local bool
}

// IssuerID returns the issuer DID, whether issuer is a string or an object
// with an id.
func (c *StatusListCredential) IssuerID() string {
	if len(c.Issuer) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(c.Issuer, &id); err == nil {
		return id
	}
	var object struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(c.Issuer, &object); err == nil {
		return object.ID
	}
	return ""
}

// Raw returns the credential JSON as it was parsed.
func (c *StatusListCredential) Raw() []byte {
	return c.raw
}

// StatusListCredentialSubject represents the credentialSubject of the
// status list credential, including the encoded bitstring list.
type StatusListCredentialSubject struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	StatusPurpose string `json:"statusPurpose"`
	EncodedList   string `json:"encodedList"`
}

// Purpose returns the purpose of the list. Revocation lists that predate
// statusPurpose are revocation lists.
func (s StatusListCredentialSubject) Purpose() string {
	if s.StatusPurpose == "" {
		return model.StatusPurposeRevocation
	}
	return s.StatusPurpose
}

// ParseStatusListCredential decodes a status list credential, either bare or
// wrapped in a {"data": ...} envelope.
func ParseStatusListCredential(body []byte) (*StatusListCredential, error) {
	var envelope StatusListCredentialResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status list credential JSON: %w", err)
	}
	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		body = envelope.Data
	}

	var credential StatusListCredential
	if err := json.Unmarshal(body, &credential); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status list credential JSON: %w", err)
	}
	credential.raw = body
	return validateStatusList(&credential)
}

func validateStatusList(c *StatusListCredential) (*StatusListCredential, error) {
	if c.CredentialSubject.EncodedList == "" {
		return nil, fmt.Errorf("status list credential has no encodedList")
	}
	return c, nil
}

// decodedList is the cached, decoded form of a status list credential.
type decodedList struct {
	issuer  string
	purpose string
	bits    util.Bitstring
}

func decode(c *StatusListCredential) (*decodedList, error) {
	bits, err := util.DecodeBitstring(c.CredentialSubject.EncodedList)
	if err != nil {
		return nil, err
	}
	return &decodedList{issuer: c.IssuerID(), purpose: c.CredentialSubject.Purpose(), bits: bits}, nil
}
