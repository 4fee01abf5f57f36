package vc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/slices"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/provider"
	"github.com/pilacorp/go-credential-trust/credential/common/validation"
	verificationmethod "github.com/pilacorp/go-credential-trust/credential/common/verification-method"
	"github.com/pilacorp/go-credential-trust/internal/batch"
)

// SchemaType is the credentialSchema type attached when a request names a schema.
const SchemaType = "JsonSchemaValidator2018"

// IssueRequest describes a credential to issue.
type IssueRequest struct {
	IssuerDID      string                 `json:"issuerDid" validate:"required,did"`
	SubjectDID     string                 `json:"subjectDid" validate:"required,did"`
	CredentialType string                 `json:"credentialType" validate:"required,notblank"`
	Claims         map[string]interface{} `json:"claims"`
	// ProofType defaults to the service's default proof suite.
	ProofType     string `json:"proofType" validate:"omitempty,oneof=Ed25519Signature2020 Ed25519Signature2018 JsonWebSignature2020 EcdsaSecp256k1Signature2019 RsaSignature2018"`
	IncludeStatus bool   `json:"includeStatus"`
	// StatusPurpose defaults to revocation.
	StatusPurpose      string     `json:"statusPurpose" validate:"omitempty,oneof=revocation suspension"`
	ExpirationDate     *time.Time `json:"expirationDate"`
	AdditionalContexts []string   `json:"additionalContexts" validate:"omitempty,dive,uri"`
	SchemaID           string     `json:"schemaId" validate:"omitempty,uri"`
}

// IssuedItem is a credential issued for the batch request at Index.
type IssuedItem struct {
	Index      int
	Credential *model.VerifiableCredential
}

// BatchResult aggregates a batch issuance. TotalProcessed always equals
// len(Issued)+len(Errors), and both slices are ordered by request index.
type BatchResult struct {
	TotalProcessed int
	Issued         []IssuedItem
	Errors         []BatchError
}

// IssueCredential resolves the issuer and subject, builds the credential,
// allocates a status entry when requested and signs it with the issuer's
// first assertionMethod key.
func (s *Service) IssueCredential(ctx context.Context, req IssueRequest) (_ *model.VerifiableCredential, err error) {
	start := time.Now()
	ctx, span := s.opts.tracer.Start(ctx, "vc.IssueCredential", trace.WithAttributes(
		attribute.String("credential.issuer", req.IssuerDID),
		attribute.String("credential.type", req.CredentialType),
	))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.opts.metrics.RecordIssuance(err == nil)
		s.opts.metrics.ObserveDuration("issue", start)
	}()

	if err := validation.Validate(req); err != nil {
		return nil, err
	}

	issuerDoc, err := s.resolve(ctx, "issuerDid", req.IssuerDID)
	if err != nil {
		return nil, err
	}
	if _, err := s.resolve(ctx, "subjectDid", req.SubjectDID); err != nil {
		return nil, err
	}

	subject, err := model.NewCredentialSubject(req.SubjectDID, req.Claims)
	if err != nil {
		return nil, err
	}
	if req.SchemaID != "" && s.opts.schemas != nil {
		if err := s.opts.schemas.Validate(ctx, req.SchemaID, subject.Properties()); err != nil {
			return nil, err
		}
	}

	params := model.CredentialParams{
		ID:           uuid.New().URN(),
		Context:      credentialContexts(req.AdditionalContexts),
		Type:         credentialTypes(req.CredentialType),
		Issuer:       req.IssuerDID,
		IssuanceDate: s.opts.now(),
		Subject:      subject,
	}
	if req.ExpirationDate != nil {
		params.ExpirationDate = *req.ExpirationDate
	}
	if req.SchemaID != "" {
		params.Schemas = []model.CredentialSchema{{ID: req.SchemaID, Type: SchemaType}}
	}
	// Fail on the request before a status bit is spent on it.
	if _, err := model.NewCredential(params); err != nil {
		return nil, err
	}

	if req.IncludeStatus {
		status, err := s.allocateStatus(ctx, req.IssuerDID, req.StatusPurpose)
		if err != nil {
			return nil, err
		}
		params.Status = status
		if !slices.Contains(params.Context, model.ContextStatusList2021) {
			params.Context = append(params.Context, model.ContextStatusList2021)
		}
	}

	unsigned, err := model.NewCredential(params)
	if err != nil {
		return nil, err
	}
	credential, err := s.sign(ctx, issuerDoc, unsigned, s.proofType(req.ProofType))
	if err != nil {
		return nil, err
	}

	if err := s.opts.repository.Save(ctx, credential); err != nil {
		return nil, model.WrapError(model.KindIssuanceFailed, err, "failed to store credential %s", credential.ID())
	}
	s.opts.logger.Debug("credential issued",
		"id", credential.ID(),
		"issuer", credential.Issuer(),
		"status", req.IncludeStatus,
	)
	return credential, nil
}

// IssueCredentialsBatch issues every request independently, at most
// WithBatchConcurrency at a time. A failed request is recorded in Errors
// and never stops the others. If ctx is cancelled, requests not yet
// started are recorded as errors carrying the context error.
func (s *Service) IssueCredentialsBatch(ctx context.Context, reqs []IssueRequest) BatchResult {
	type outcome struct {
		credential *model.VerifiableCredential
		err        error
	}
	outcomes := batch.Run(ctx, s.opts.batchConcurrency, len(reqs),
		func(ctx context.Context, i int) outcome {
			credential, err := s.IssueCredential(ctx, reqs[i])
			return outcome{credential: credential, err: err}
		},
		func(_ int, err error) outcome {
			return outcome{err: err}
		},
	)

	result := BatchResult{TotalProcessed: len(reqs)}
	for i, o := range outcomes {
		if o.err != nil {
			s.opts.logger.Warn("batch issuance item failed", "index", i, "error", o.err)
			result.Errors = append(result.Errors, newBatchError(i, o.err))
			continue
		}
		result.Issued = append(result.Issued, IssuedItem{Index: i, Credential: o.credential})
	}
	return result
}

// SignCredential signs an unsigned credential with its issuer's first
// assertionMethod key and the default proof suite. It is how status list
// credentials get their proof.
func (s *Service) SignCredential(ctx context.Context, credential *model.VerifiableCredential) (*model.VerifiableCredential, error) {
	if credential == nil {
		return nil, model.Validation("credential", "is nil")
	}
	issuerDoc, err := s.resolve(ctx, "issuer", credential.Issuer())
	if err != nil {
		return nil, err
	}
	return s.sign(ctx, issuerDoc, credential, s.opts.defaultProofType)
}

func (s *Service) sign(ctx context.Context, issuerDoc *model.DIDDocument, unsigned *model.VerifiableCredential, suite string) (*model.VerifiableCredential, error) {
	method, err := verificationmethod.First(issuerDoc, model.PurposeAssertionMethod)
	if err != nil {
		return nil, model.WrapError(model.KindIssuanceFailed, err, "issuer %s cannot sign credentials", issuerDoc.ID)
	}
	canonical, err := s.canonicalize(unsigned.UnsignedDocument())
	if err != nil {
		return nil, model.WrapError(model.KindIssuanceFailed, err, "failed to canonicalize credential")
	}
	proof, err := s.proofs.CreateProof(ctx, provider.ProofRequest{
		Suite:              suite,
		VerificationMethod: method.ID,
		Purpose:            model.PurposeAssertionMethod,
	}, canonical)
	if err != nil {
		return nil, model.WrapError(model.KindIssuanceFailed, err, "failed to create proof with %s", method.ID)
	}
	signed, err := unsigned.WithProof(proof)
	if err != nil {
		return nil, model.WrapError(model.KindIssuanceFailed, err, "failed to attach proof")
	}
	return signed, nil
}

func (s *Service) allocateStatus(ctx context.Context, issuerDID, purpose string) (*model.CredentialStatus, error) {
	if s.opts.registry == nil {
		return nil, model.NewError(model.KindIssuanceFailed, "includeStatus", "no status registry configured")
	}
	if purpose == "" {
		purpose = model.StatusPurposeRevocation
	}
	status, err := s.opts.registry.Allocate(ctx, issuerDID, purpose)
	if err != nil {
		return nil, model.WrapError(model.KindIssuanceFailed, err, "failed to allocate %s status entry", purpose)
	}
	return status, nil
}

// resolve resolves did. Every failure is reported as NotFound on field.
func (s *Service) resolve(ctx context.Context, field, did string) (*model.DIDDocument, error) {
	doc, err := s.resolver.Resolve(ctx, did)
	if err != nil {
		wrapped := model.WrapError(model.KindNotFound, err, "failed to resolve %s", did)
		wrapped.Field = field
		return nil, wrapped
	}
	if doc == nil {
		return nil, model.NewError(model.KindNotFound, field, "no DID document for %s", did)
	}
	return doc, nil
}

func (s *Service) proofType(requested string) string {
	if requested != "" {
		return requested
	}
	return s.opts.defaultProofType
}

func credentialContexts(additional []string) []string {
	contexts := []string{model.ContextCredentialsV1}
	for _, c := range additional {
		if !slices.Contains(contexts, c) {
			contexts = append(contexts, c)
		}
	}
	return contexts
}

func credentialTypes(credentialType string) []string {
	if credentialType == model.TypeVerifiableCredential {
		return []string{model.TypeVerifiableCredential}
	}
	return []string{model.TypeVerifiableCredential, credentialType}
}

func describe(credential *model.VerifiableCredential) string {
	if credential == nil {
		return "<nil>"
	}
	if credential.ID() != "" {
		return credential.ID()
	}
	return fmt.Sprintf("credential from %s", credential.Issuer())
}
