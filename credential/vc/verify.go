package vc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
	verificationmethod "github.com/pilacorp/go-credential-trust/credential/common/verification-method"
	"github.com/pilacorp/go-credential-trust/internal/batch"
)

// VerificationResult is the verdict on one credential. Every failed check
// contributes an error; IsValid is true iff Errors is empty. Status is the
// status list verdict, StatusUnknown when the credential has no status
// entry or it could not be determined.
type VerificationResult struct {
	IsValid  bool
	Errors   []error
	Warnings []string
	Status   model.Status
}

// Has reports whether any recorded error matches target.
func (r VerificationResult) Has(target error) bool {
	for _, err := range r.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ErrorKinds lists the kinds of the recorded errors, in order.
func (r VerificationResult) ErrorKinds() []string {
	kinds := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		kinds = append(kinds, kindName(err))
	}
	return kinds
}

func (r *VerificationResult) fail(err error) {
	r.Errors = append(r.Errors, err)
}

func (r *VerificationResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// VerifyCredential runs every check on credential and records every
// failure: structure, expiry, the issuer's verification method, the
// signature, and the status list entry when present.
func (s *Service) VerifyCredential(ctx context.Context, credential *model.VerifiableCredential) VerificationResult {
	start := time.Now()
	ctx, span := s.opts.tracer.Start(ctx, "vc.VerifyCredential", trace.WithAttributes(
		attribute.String("credential.id", describe(credential)),
	))
	defer span.End()

	result := s.verify(ctx, credential)

	result.IsValid = len(result.Errors) == 0
	if !result.IsValid {
		span.SetStatus(codes.Error, errors.Join(result.Errors...).Error())
		s.opts.logger.Debug("credential rejected", "id", describe(credential), "errors", result.ErrorKinds())
	}
	s.opts.metrics.RecordVerification("credential", result.IsValid, result.ErrorKinds())
	s.opts.metrics.ObserveDuration("verify_credential", start)
	return result
}

// VerifyCredentialJSON parses raw and verifies the credential. A document
// that cannot be parsed yields an invalid result with a Format error.
func (s *Service) VerifyCredentialJSON(ctx context.Context, raw []byte) VerificationResult {
	credential, err := model.ParseCredential(raw)
	if err != nil {
		if model.KindOf(err) != model.KindFormat {
			err = model.WrapError(model.KindFormat, err, "malformed credential")
		}
		s.opts.metrics.RecordVerification("credential", false, []string{kindName(err)})
		return VerificationResult{Errors: []error{err}}
	}
	return s.VerifyCredential(ctx, credential)
}

// VerifyListCredential verifies a published status list credential, so
// the Service can act as the status service's list verifier.
func (s *Service) VerifyListCredential(ctx context.Context, raw []byte) error {
	result := s.VerifyCredentialJSON(ctx, raw)
	if !result.IsValid {
		return errors.Join(result.Errors...)
	}
	return nil
}

// VerifyCredentialsBatch verifies credentials concurrently. Results are in
// input order; credentials not verified because ctx ended are invalid.
func (s *Service) VerifyCredentialsBatch(ctx context.Context, credentials []*model.VerifiableCredential) []VerificationResult {
	return batch.Run(ctx, s.opts.batchConcurrency, len(credentials),
		func(ctx context.Context, i int) VerificationResult {
			return s.VerifyCredential(ctx, credentials[i])
		},
		func(_ int, err error) VerificationResult {
			return VerificationResult{Errors: []error{err}}
		},
	)
}

func (s *Service) verify(ctx context.Context, credential *model.VerifiableCredential) VerificationResult {
	var result VerificationResult
	if credential == nil {
		result.fail(model.Format("credential", "is nil"))
		return result
	}

	// 1. Structure.
	if err := credential.Validate(); err != nil {
		result.fail(model.WrapError(model.KindFormat, err, "malformed credential"))
	}
	proof := credential.Proof()
	if proof == nil {
		result.fail(model.Format("proof", "credential is not signed"))
	}

	// 2. Validity period.
	now := s.opts.now()
	if credential.IsExpired(now) {
		expires, _ := credential.ExpirationDate()
		result.fail(model.NewError(model.KindExpired, "expirationDate", "credential expired at %s", expires.Format(time.RFC3339)))
	}
	if credential.IssuanceDate().After(now) {
		result.warn("issuanceDate %s is in the future", credential.IssuanceDate().Format(time.RFC3339))
	}

	// 3-4. Issuer key and signature.
	if proof != nil {
		if err := s.verifyProof(ctx, credential); err != nil {
			result.fail(err)
		}
	}

	// 5. Status.
	if status := credential.Status(); status != nil {
		verdict, err := s.checkStatus(ctx, credential.Issuer(), status)
		result.Status = verdict
		if err != nil {
			s.opts.logger.Warn("credential status not confirmed", "id", describe(credential), "error", err)
			result.fail(err)
		}
	}
	return result
}

func (s *Service) verifyProof(ctx context.Context, credential *model.VerifiableCredential) error {
	proof := credential.Proof()
	if proof.ProofPurpose() != model.PurposeAssertionMethod {
		return model.NewError(model.KindSignatureInvalid, "proof.proofPurpose", "credential proofs must have purpose %s, got %s", model.PurposeAssertionMethod, proof.ProofPurpose())
	}

	issuerDoc, err := s.resolve(ctx, "issuer", credential.Issuer())
	if err != nil {
		return err
	}
	method, err := verificationmethod.Find(issuerDoc, proof.VerificationMethod())
	if err != nil {
		return err
	}
	if !verificationmethod.IsAuthorized(issuerDoc, proof.VerificationMethod(), model.PurposeAssertionMethod) {
		return model.NewError(model.KindVerificationMethodNotFound, "proof.verificationMethod",
			"%s is not an assertionMethod of %s", proof.VerificationMethod(), issuerDoc.ID)
	}

	canonical, err := s.canonicalize(credential.UnsignedDocument())
	if err != nil {
		return model.WrapError(model.KindFormat, err, "failed to canonicalize credential")
	}
	ok, err := s.proofs.VerifyProof(ctx, canonical, proof, method)
	if err != nil {
		return model.WrapError(model.KindSignatureInvalid, err, "failed to verify proof by %s", proof.VerificationMethod())
	}
	if !ok {
		return model.NewError(model.KindSignatureInvalid, "proof", "signature by %s does not match the credential", proof.VerificationMethod())
	}
	return nil
}

// checkStatus maps the status list verdict to an error. It fails closed:
// without a status service, when the lookup fails or when the list is not
// the issuer's, the result is StatusIndeterminate.
func (s *Service) checkStatus(ctx context.Context, issuer string, status *model.CredentialStatus) (model.Status, error) {
	if s.opts.status == nil {
		return model.StatusUnknown, model.NewError(model.KindStatusIndeterminate, "credentialStatus", "no status service configured to check %s", status.StatusListCredential())
	}
	verdict, err := s.opts.status.CheckCredentialStatus(ctx, issuer, status)
	if err != nil {
		if model.KindOf(err) != model.KindStatusIndeterminate {
			err = model.WrapError(model.KindStatusIndeterminate, err, "status of %s", status.ID())
		}
		return model.StatusUnknown, err
	}
	switch verdict {
	case model.StatusActive:
		return verdict, nil
	case model.StatusRevoked:
		return verdict, model.NewError(model.KindRevoked, "credentialStatus", "revoked in %s", status.StatusListCredential())
	case model.StatusSuspended:
		return verdict, model.NewError(model.KindSuspended, "credentialStatus", "suspended in %s", status.StatusListCredential())
	default:
		return model.StatusUnknown, model.NewError(model.KindStatusIndeterminate, "credentialStatus", "unknown status %s", verdict)
	}
}

func kindName(err error) string {
	if kind := model.KindOf(err); kind != 0 {
		return kind.String()
	}
	return "unknown"
}
