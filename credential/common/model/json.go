package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pilacorp/go-credential-trust/credential/common/util"
)

// ParseCredential parses a JSON-LD credential. Malformed JSON or values of
// the wrong shape fail with a format error; well-formed input that breaks a
// data model invariant fails with a validation error.
func ParseCredential(data []byte) (*VerifiableCredential, error) {
	doc, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	return CredentialFromDocument(doc)
}

// ParsePresentation parses a JSON-LD presentation.
func ParsePresentation(data []byte) (*VerifiablePresentation, error) {
	doc, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	return PresentationFromDocument(doc)
}

func (c *VerifiableCredential) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Document())
}

func (c *VerifiableCredential) UnmarshalJSON(data []byte) error {
	parsed, err := ParseCredential(data)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

func (vp *VerifiablePresentation) MarshalJSON() ([]byte, error) {
	return json.Marshal(vp.Document())
}

func (vp *VerifiablePresentation) UnmarshalJSON(data []byte) error {
	parsed, err := ParsePresentation(data)
	if err != nil {
		return err
	}
	*vp = *parsed
	return nil
}

func (p *Proof) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Document())
}

func (p *Proof) UnmarshalJSON(data []byte) error {
	doc, err := decodeObject(data)
	if err != nil {
		return err
	}
	parsed, err := ProofFromDocument(doc)
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}

func decodeObject(data []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, Format("document", "JSON is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, &Error{Kind: KindFormat, Field: "document", Message: "failed to unmarshal JSON", Err: err}
	}
	if dec.More() {
		return nil, Format("document", "unexpected data after JSON object")
	}
	if doc == nil {
		return nil, Format("document", "must be a JSON object")
	}
	return doc, nil
}

// CredentialFromDocument builds a credential from its decoded JSON-LD form.
func CredentialFromDocument(doc map[string]interface{}) (*VerifiableCredential, error) {
	var (
		p   CredentialParams
		err error
	)
	if p.Context, err = stringsField(doc, "@context"); err != nil {
		return nil, err
	}
	if p.ID, err = stringField(doc, "id"); err != nil {
		return nil, err
	}
	if p.Type, err = stringsField(doc, "type"); err != nil {
		return nil, err
	}
	if p.Issuer, err = issuerField(doc["issuer"]); err != nil {
		return nil, err
	}
	if p.IssuanceDate, err = timeField(doc, "issuanceDate", "validFrom"); err != nil {
		return nil, err
	}
	if p.ExpirationDate, err = timeField(doc, "expirationDate", "validUntil"); err != nil {
		return nil, err
	}
	if raw, ok := doc["credentialSubject"]; ok && raw != nil {
		obj, err := util.SingleObject(raw)
		if err != nil {
			return nil, Format("credentialSubject", "%v", err)
		}
		if p.Subject, err = subjectFromDocument(obj); err != nil {
			return nil, err
		}
	}
	if raw, ok := doc["credentialStatus"]; ok && raw != nil {
		obj, err := util.SingleObject(raw)
		if err != nil {
			return nil, Format("credentialStatus", "%v", err)
		}
		if p.Status, err = statusFromDocument(obj); err != nil {
			return nil, err
		}
	}
	schemas, err := util.Objects(doc["credentialSchema"])
	if err != nil {
		return nil, Format("credentialSchema", "%v", err)
	}
	for _, s := range schemas {
		id, err := stringField(s, "id")
		if err != nil {
			return nil, err
		}
		typ, err := stringField(s, "type")
		if err != nil {
			return nil, err
		}
		p.Schemas = append(p.Schemas, CredentialSchema{ID: id, Type: typ})
	}
	if p.TermsOfUse, err = util.Objects(doc["termsOfUse"]); err != nil {
		return nil, Format("termsOfUse", "%v", err)
	}

	credential, err := NewCredential(p)
	if err != nil {
		return nil, err
	}
	proof, err := optionalProof(doc)
	if err != nil || proof == nil {
		return credential, err
	}
	return credential.WithProof(proof)
}

// PresentationFromDocument builds a presentation from its decoded JSON-LD form.
func PresentationFromDocument(doc map[string]interface{}) (*VerifiablePresentation, error) {
	var (
		p   PresentationParams
		err error
	)
	if p.Context, err = stringsField(doc, "@context"); err != nil {
		return nil, err
	}
	if p.ID, err = stringField(doc, "id"); err != nil {
		return nil, err
	}
	if p.Type, err = stringsField(doc, "type"); err != nil {
		return nil, err
	}
	if p.Holder, err = stringField(doc, "holder"); err != nil {
		return nil, err
	}
	embedded, err := util.Objects(doc["verifiableCredential"])
	if err != nil {
		return nil, Format("verifiableCredential", "%v", err)
	}
	for i, obj := range embedded {
		credential, err := CredentialFromDocument(obj)
		if err != nil {
			return nil, fmt.Errorf("verifiableCredential[%d]: %w", i, err)
		}
		p.Credentials = append(p.Credentials, credential)
	}

	presentation, err := NewPresentation(p)
	if err != nil {
		return nil, err
	}
	proof, err := optionalProof(doc)
	if err != nil || proof == nil {
		return presentation, err
	}
	return presentation.WithProof(proof)
}

// ProofFromDocument builds a proof from its decoded JSON-LD form.
func ProofFromDocument(doc map[string]interface{}) (*Proof, error) {
	var (
		p   ProofParams
		err error
	)
	fields := []struct {
		name   string
		target *string
	}{
		{"type", &p.Type},
		{"verificationMethod", &p.VerificationMethod},
		{"proofPurpose", &p.ProofPurpose},
		{"proofValue", &p.ProofValue},
		{"jws", &p.JWS},
		{"challenge", &p.Challenge},
		{"domain", &p.Domain},
		{"nonce", &p.Nonce},
	}
	for _, f := range fields {
		if *f.target, err = stringField(doc, f.name); err != nil {
			return nil, err
		}
	}
	if p.Created, err = timeField(doc, "created"); err != nil {
		return nil, err
	}
	return NewProof(p)
}

func optionalProof(doc map[string]interface{}) (*Proof, error) {
	raw, ok := doc["proof"]
	if !ok || raw == nil {
		return nil, nil
	}
	obj, err := util.SingleObject(raw)
	if err != nil {
		return nil, Format("proof", "%v", err)
	}
	return ProofFromDocument(obj)
}

func stringField(doc map[string]interface{}, name string) (string, error) {
	raw, ok := doc[name]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", Format(name, "must be a string, got %T", raw)
	}
	return s, nil
}

func stringsField(doc map[string]interface{}, name string) ([]string, error) {
	values, err := util.NormalizeStrings(doc[name])
	if err != nil {
		return nil, Format(name, "%v", err)
	}
	return values, nil
}

func issuerField(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case map[string]interface{}:
		return stringField(v, "id")
	default:
		return "", Format("issuer", "must be a string or an object, got %T", raw)
	}
}

// timeField reads the first present of names as an RFC 3339 timestamp.
func timeField(doc map[string]interface{}, names ...string) (time.Time, error) {
	for _, name := range names {
		s, err := stringField(doc, name)
		if err != nil {
			return time.Time{}, err
		}
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, &Error{Kind: KindFormat, Field: name, Message: "must be an RFC 3339 timestamp", Err: err}
		}
		return t, nil
	}
	return time.Time{}, nil
}
