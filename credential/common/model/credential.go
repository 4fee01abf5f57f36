package model

import (
	"reflect"
	"time"

	"golang.org/x/exp/slices"

	"github.com/pilacorp/go-credential-trust/credential/common/util"
)

// Well-known contexts and types.
const (
	ContextCredentialsV1       = "https://www.w3.org/2018/credentials/v1"
	ContextStatusList2021      = "https://w3id.org/vc/status-list/2021/v1"
	TypeVerifiableCredential   = "VerifiableCredential"
	TypeVerifiablePresentation = "VerifiablePresentation"
)

// CredentialSchema references a schema the credential subject conforms to.
type CredentialSchema struct {
	ID   string
	Type string
}

// CredentialParams carries the fields of a credential to be constructed.
// A zero ExpirationDate means the credential does not expire.
type CredentialParams struct {
	ID             string
	Context        []string
	Type           []string
	Issuer         string
	IssuanceDate   time.Time
	ExpirationDate time.Time
	Subject        *CredentialSubject
	Status         *CredentialStatus
	Schemas        []CredentialSchema
	TermsOfUse     []map[string]interface{}
}

// VerifiableCredential is an immutable W3C verifiable credential. The proof
// is attached once, through WithProof.
type VerifiableCredential struct {
	id             string
	context        []string
	types          []string
	issuer         string
	issuanceDate   time.Time
	expirationDate time.Time
	subject        *CredentialSubject
	status         *CredentialStatus
	schemas        []CredentialSchema
	termsOfUse     []map[string]interface{}
	proof          *Proof
}

// NewCredential validates params and returns an unsigned credential.
func NewCredential(p CredentialParams) (*VerifiableCredential, error) {
	if err := optionalURI("id", p.ID); err != nil {
		return nil, err
	}
	if err := validateContext(p.Context); err != nil {
		return nil, err
	}
	if err := validateTypes(p.Type, TypeVerifiableCredential); err != nil {
		return nil, err
	}
	if err := requireDID("issuer", p.Issuer); err != nil {
		return nil, err
	}
	if err := requireTime("issuanceDate", p.IssuanceDate); err != nil {
		return nil, err
	}
	issued := normalizeTime(p.IssuanceDate)
	expires := normalizeTime(p.ExpirationDate)
	if !expires.IsZero() && !expires.After(issued) {
		return nil, Validation("expirationDate", "must be after issuanceDate")
	}
	if p.Subject == nil {
		return nil, Validation("credentialSubject", "is required")
	}
	for i, s := range p.Schemas {
		if err := requireURI("credentialSchema.id", s.ID); err != nil {
			return nil, err
		}
		if err := requireNonBlank("credentialSchema.type", s.Type); err != nil {
			return nil, Validation("credentialSchema.type", "entry %d: type is required", i)
		}
	}
	terms := make([]map[string]interface{}, 0, len(p.TermsOfUse))
	for _, t := range p.TermsOfUse {
		normalized, err := normalizeObject("termsOfUse", t)
		if err != nil {
			return nil, err
		}
		if _, ok := normalized["type"].(string); !ok {
			return nil, Validation("termsOfUse.type", "is required")
		}
		terms = append(terms, normalized)
	}

	return &VerifiableCredential{
		id:             p.ID,
		context:        slices.Clone(p.Context),
		types:          slices.Clone(p.Type),
		issuer:         p.Issuer,
		issuanceDate:   issued,
		expirationDate: expires,
		subject:        p.Subject,
		status:         p.Status,
		schemas:        slices.Clone(p.Schemas),
		termsOfUse:     terms,
	}, nil
}

func validateContext(context []string) error {
	if len(context) == 0 {
		return Validation("@context", "is required")
	}
	if context[0] != ContextCredentialsV1 {
		return Validation("@context", "first entry must be %q", ContextCredentialsV1)
	}
	for _, c := range context {
		if err := requireURI("@context", c); err != nil {
			return err
		}
	}
	return nil
}

func validateTypes(types []string, required string) error {
	if len(types) == 0 {
		return Validation("type", "is required")
	}
	for _, t := range types {
		if util.IsBlank(t) {
			return Validation("type", "entries must not be blank")
		}
	}
	if !slices.Contains(types, required) {
		return Validation("type", "must include %q", required)
	}
	return nil
}

// WithProof returns a copy of the credential carrying proof. A credential
// can only be signed once.
func (c *VerifiableCredential) WithProof(proof *Proof) (*VerifiableCredential, error) {
	if proof == nil {
		return nil, Validation("proof", "is required")
	}
	if c.proof != nil {
		return nil, Validation("proof", "credential already carries a proof")
	}
	signed := *c
	signed.proof = proof
	return &signed, nil
}

func (c *VerifiableCredential) ID() string                     { return c.id }
func (c *VerifiableCredential) Context() []string              { return slices.Clone(c.context) }
func (c *VerifiableCredential) Type() []string                 { return slices.Clone(c.types) }
func (c *VerifiableCredential) Issuer() string                 { return c.issuer }
func (c *VerifiableCredential) IssuanceDate() time.Time        { return c.issuanceDate }
func (c *VerifiableCredential) Subject() *CredentialSubject    { return c.subject }
func (c *VerifiableCredential) Status() *CredentialStatus      { return c.status }
func (c *VerifiableCredential) Schemas() []CredentialSchema    { return slices.Clone(c.schemas) }
func (c *VerifiableCredential) Proof() *Proof                  { return c.proof }
func (c *VerifiableCredential) HasType(credentialType string) bool {
	return slices.Contains(c.types, credentialType)
}

// ExpirationDate returns the expiration date and whether one is set.
func (c *VerifiableCredential) ExpirationDate() (time.Time, bool) {
	return c.expirationDate, !c.expirationDate.IsZero()
}

// IsExpired reports whether the credential has an expiration date at or
// before now.
func (c *VerifiableCredential) IsExpired(now time.Time) bool {
	return !c.expirationDate.IsZero() && !c.expirationDate.After(now)
}

// TermsOfUse returns a copy of the terms of use entries.
func (c *VerifiableCredential) TermsOfUse() []map[string]interface{} {
	result := make([]map[string]interface{}, len(c.termsOfUse))
	for i, t := range c.termsOfUse {
		result[i] = copyObject(t)
	}
	return result
}

// Params returns the fields of the credential, minus the proof.
func (c *VerifiableCredential) Params() CredentialParams {
	return CredentialParams{
		ID:             c.id,
		Context:        c.Context(),
		Type:           c.Type(),
		Issuer:         c.issuer,
		IssuanceDate:   c.issuanceDate,
		ExpirationDate: c.expirationDate,
		Subject:        c.subject,
		Status:         c.status,
		Schemas:        c.Schemas(),
		TermsOfUse:     c.TermsOfUse(),
	}
}

// Validate re-checks the construction invariants. It is only useful for
// values that did not come from NewCredential, such as a zero value.
func (c *VerifiableCredential) Validate() error {
	if c == nil {
		return Validation("credential", "is nil")
	}
	rebuilt, err := NewCredential(c.Params())
	if err != nil {
		return err
	}
	if c.proof != nil {
		if _, err := NewProof(c.proof.Params()); err != nil {
			return err
		}
		_, err = rebuilt.WithProof(c.proof)
		return err
	}
	return nil
}

// UnsignedDocument returns the JSON-LD form of the credential without its
// proof. It is the input to canonicalization.
func (c *VerifiableCredential) UnsignedDocument() map[string]interface{} {
	doc := map[string]interface{}{
		"@context":     util.SerializeStrings(c.context),
		"type":         util.SerializeStrings(c.types),
		"issuer":       c.issuer,
		"issuanceDate": formatTime(c.issuanceDate),
	}
	if c.subject != nil {
		doc["credentialSubject"] = c.subject.Document()
	}
	if c.id != "" {
		doc["id"] = c.id
	}
	if !c.expirationDate.IsZero() {
		doc["expirationDate"] = formatTime(c.expirationDate)
	}
	if c.status != nil {
		doc["credentialStatus"] = c.status.Document()
	}
	if len(c.schemas) > 0 {
		schemas := util.MapSlice(c.schemas, func(s CredentialSchema) interface{} {
			return map[string]interface{}{"id": s.ID, "type": s.Type}
		})
		if len(schemas) == 1 {
			doc["credentialSchema"] = schemas[0]
		} else {
			doc["credentialSchema"] = schemas
		}
	}
	if len(c.termsOfUse) > 0 {
		doc["termsOfUse"] = util.MapSlice(c.termsOfUse, func(t map[string]interface{}) interface{} {
			return copyObject(t)
		})
	}
	return doc
}

// Document returns the JSON-LD form of the credential including its proof.
func (c *VerifiableCredential) Document() map[string]interface{} {
	doc := c.UnsignedDocument()
	if c.proof != nil {
		doc["proof"] = c.proof.Document()
	}
	return doc
}

// Equal reports structural equality across every field.
func (c *VerifiableCredential) Equal(other *VerifiableCredential) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.id == other.id &&
		slices.Equal(c.context, other.context) &&
		slices.Equal(c.types, other.types) &&
		c.issuer == other.issuer &&
		c.issuanceDate.Equal(other.issuanceDate) &&
		c.expirationDate.Equal(other.expirationDate) &&
		c.subject.Equal(other.subject) &&
		c.status.Equal(other.status) &&
		slices.Equal(c.schemas, other.schemas) &&
		reflect.DeepEqual(c.termsOfUse, other.termsOfUse) &&
		c.proof.Equal(other.proof)
}
