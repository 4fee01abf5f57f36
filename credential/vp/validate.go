package vp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
	verificationmethod "github.com/pilacorp/go-credential-trust/credential/common/verification-method"
	"github.com/pilacorp/go-credential-trust/credential/vc"
)

// ValidateOptions are the verifier's expectations. An empty
// ExpectedChallenge or ExpectedDomain is not checked. Credentials from
// issuers outside a non-empty TrustedIssuers produce warnings.
type ValidateOptions struct {
	ExpectedChallenge string
	ExpectedDomain    string
	TrustedIssuers    []string
}

// CredentialError is a failure of the embedded credential at Index. It
// unwraps to the underlying error, so errors.Is matches its kind.
type CredentialError struct {
	Index int
	Err   error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential %d: %v", e.Index, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// CredentialResult is the verdict on the embedded credential at Index.
type CredentialResult struct {
	Index  int
	Result vc.VerificationResult
}

// ExtractedClaims are the subject claims of the embedded credential at Index.
type ExtractedClaims struct {
	Index        int
	CredentialID string
	Issuer       string
	Types        []string
	SubjectID    string
	Claims       map[string]interface{}
}

// ValidationResult is the verdict on a presentation. IsValid is true iff
// the holder proof is valid and bound as expected and every embedded
// credential is valid.
type ValidationResult struct {
	IsValid           bool
	Errors            []error
	CredentialResults []CredentialResult
	Warnings          []string
	Claims            []ExtractedClaims
}

// Has reports whether any recorded error matches target.
func (r ValidationResult) Has(target error) bool {
	for _, err := range r.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// CredentialErrors returns the errors attributed to the credential at index.
func (r ValidationResult) CredentialErrors(index int) []error {
	var errs []error
	for _, err := range r.Errors {
		var ce *CredentialError
		if errors.As(err, &ce) && ce.Index == index {
			errs = append(errs, ce.Err)
		}
	}
	return errs
}

func (r *ValidationResult) fail(err error) {
	r.Errors = append(r.Errors, err)
}

func (r *ValidationResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidatePresentation runs every check on presentation and records every
// failure: structure, the holder proof and its challenge and domain
// binding, then each embedded credential.
func (s *Service) ValidatePresentation(ctx context.Context, presentation *model.VerifiablePresentation, opts ValidateOptions) ValidationResult {
	start := time.Now()
	ctx, span := s.opts.tracer.Start(ctx, "vp.ValidatePresentation")
	defer span.End()

	result := s.validate(ctx, presentation, opts)

	result.IsValid = len(result.Errors) == 0
	if !result.IsValid {
		span.SetStatus(codes.Error, errors.Join(result.Errors...).Error())
	}
	span.SetAttributes(attribute.Bool("presentation.valid", result.IsValid))
	s.opts.metrics.RecordVerification("presentation", result.IsValid, errorKinds(result.Errors))
	s.opts.metrics.ObserveDuration("validate_presentation", start)
	return result
}

// ValidatePresentationJSON parses raw and validates the presentation. A
// document that cannot be parsed yields an invalid result with a Format
// error.
func (s *Service) ValidatePresentationJSON(ctx context.Context, raw []byte, opts ValidateOptions) ValidationResult {
	presentation, err := model.ParsePresentation(raw)
	if err != nil {
		if model.KindOf(err) != model.KindFormat {
			err = model.WrapError(model.KindFormat, err, "malformed presentation")
		}
		s.opts.metrics.RecordVerification("presentation", false, errorKinds([]error{err}))
		return ValidationResult{Errors: []error{err}}
	}
	return s.ValidatePresentation(ctx, presentation, opts)
}

func (s *Service) validate(ctx context.Context, presentation *model.VerifiablePresentation, opts ValidateOptions) ValidationResult {
	var result ValidationResult
	if presentation == nil {
		result.fail(model.Format("presentation", "is nil"))
		return result
	}

	// 1. Structure.
	if err := presentation.Validate(); err != nil {
		result.fail(model.WrapError(model.KindFormat, err, "malformed presentation"))
	}

	// 2. Holder proof and binding.
	if proof := presentation.Proof(); proof == nil {
		result.fail(model.Format("proof", "presentation is not signed by its holder"))
	} else {
		if err := s.verifyHolderProof(ctx, presentation); err != nil {
			result.fail(err)
		}
		for _, err := range checkBinding(proof, opts) {
			result.fail(err)
		}
	}
	if opts.ExpectedChallenge == "" {
		result.warn("no expected challenge supplied; the presentation is not bound to this request")
	}

	// 3. Embedded credentials.
	credentials := presentation.Credentials()
	result.CredentialResults = s.verifyCredentials(ctx, credentials)
	for _, cr := range result.CredentialResults {
		for _, err := range cr.Result.Errors {
			result.fail(&CredentialError{Index: cr.Index, Err: err})
		}
		for _, w := range cr.Result.Warnings {
			result.warn("credential %d: %s", cr.Index, w)
		}
	}
	for i, credential := range credentials {
		if credential == nil {
			continue
		}
		if len(opts.TrustedIssuers) > 0 && !slices.Contains(opts.TrustedIssuers, credential.Issuer()) {
			result.warn("credential %d: issuer %s is not trusted", i, credential.Issuer())
		}
		if subject := credential.Subject(); subject != nil {
			if subject.ID() != "" && subject.ID() != presentation.Holder() {
				result.warn("credential %d: subject %s is not the holder", i, subject.ID())
			}
			result.Claims = append(result.Claims, ExtractedClaims{
				Index:        i,
				CredentialID: credential.ID(),
				Issuer:       credential.Issuer(),
				Types:        credential.Type(),
				SubjectID:    subject.ID(),
				Claims:       subject.Properties(),
			})
		}
	}
	return result
}

func (s *Service) verifyHolderProof(ctx context.Context, presentation *model.VerifiablePresentation) error {
	proof := presentation.Proof()
	if proof.ProofPurpose() != model.PurposeAuthentication {
		return model.NewError(model.KindSignatureInvalid, "proof.proofPurpose", "holder proofs must have purpose %s, got %s", model.PurposeAuthentication, proof.ProofPurpose())
	}

	holderDoc, err := s.resolveHolder(ctx, presentation.Holder())
	if err != nil {
		return err
	}
	method, err := verificationmethod.Find(holderDoc, proof.VerificationMethod())
	if err != nil {
		return err
	}
	if !verificationmethod.IsAuthorized(holderDoc, proof.VerificationMethod(), model.PurposeAuthentication) {
		return model.NewError(model.KindVerificationMethodNotFound, "proof.verificationMethod",
			"%s is not an authentication method of %s", proof.VerificationMethod(), holderDoc.ID)
	}

	canonical, err := s.opts.canonicalizer.Canonicalize(presentation.UnsignedDocument())
	if err != nil {
		return model.WrapError(model.KindFormat, err, "failed to canonicalize presentation")
	}
	ok, err := s.proofs.VerifyProof(ctx, canonical, proof, method)
	if err != nil {
		return model.WrapError(model.KindSignatureInvalid, err, "failed to verify holder proof by %s", proof.VerificationMethod())
	}
	if !ok {
		return model.NewError(model.KindSignatureInvalid, "proof", "holder signature by %s does not match the presentation", proof.VerificationMethod())
	}
	return nil
}

func checkBinding(proof *model.Proof, opts ValidateOptions) []error {
	var errs []error
	if opts.ExpectedChallenge != "" && proof.Challenge() != opts.ExpectedChallenge {
		errs = append(errs, model.NewError(model.KindHolderBinding, "proof.challenge", "expected challenge %q, got %q", opts.ExpectedChallenge, proof.Challenge()))
	}
	if opts.ExpectedDomain != "" && proof.Domain() != opts.ExpectedDomain {
		errs = append(errs, model.NewError(model.KindHolderBinding, "proof.domain", "expected domain %q, got %q", opts.ExpectedDomain, proof.Domain()))
	}
	return errs
}

// verifyCredentials runs the credential pipeline on each credential,
// concurrently, and returns the results in order.
func (s *Service) verifyCredentials(ctx context.Context, credentials []*model.VerifiableCredential) []CredentialResult {
	results := make([]CredentialResult, len(credentials))
	g := new(errgroup.Group)
	g.SetLimit(s.opts.batchConcurrency)
	for i, credential := range credentials {
		g.Go(func() error {
			results[i] = CredentialResult{Index: i, Result: s.verifier.VerifyCredential(ctx, credential)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func errorKinds(errs []error) []string {
	kinds := make([]string, 0, len(errs))
	for _, err := range errs {
		if kind := model.KindOf(err); kind != 0 {
			kinds = append(kinds, kind.String())
			continue
		}
		kinds = append(kinds, "unknown")
	}
	return kinds
}
