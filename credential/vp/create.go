package vp

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/slices"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/provider"
	"github.com/pilacorp/go-credential-trust/credential/common/validation"
	verificationmethod "github.com/pilacorp/go-credential-trust/credential/common/verification-method"
)

// CreateRequest describes a presentation to create. Challenge and Domain
// are echoed into the holder proof.
type CreateRequest struct {
	HolderDID   string                        `json:"holderDid" validate:"required,did"`
	Credentials []*model.VerifiableCredential `json:"verifiableCredential" validate:"required,min=1"`
	Challenge   string                        `json:"challenge"`
	Domain      string                        `json:"domain"`
	// ID defaults to a fresh urn:uuid.
	ID                 string   `json:"id" validate:"omitempty,uri"`
	AdditionalContexts []string `json:"additionalContexts" validate:"omitempty,dive,uri"`
	AdditionalTypes    []string `json:"additionalTypes" validate:"omitempty,dive,notblank"`
	ProofType          string   `json:"proofType" validate:"omitempty,oneof=Ed25519Signature2020 Ed25519Signature2018 JsonWebSignature2020 EcdsaSecp256k1Signature2019 RsaSignature2018"`
}

// CreatePresentation wraps the credentials verbatim and signs the
// presentation with the holder's first authentication key. Credentials are
// not verified here.
func (s *Service) CreatePresentation(ctx context.Context, req CreateRequest) (_ *model.VerifiablePresentation, err error) {
	ctx, span := s.opts.tracer.Start(ctx, "vp.CreatePresentation", trace.WithAttributes(
		attribute.String("presentation.holder", req.HolderDID),
		attribute.Int("presentation.credentials", len(req.Credentials)),
	))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	holderDoc, err := s.resolveHolder(ctx, req.HolderDID)
	if err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = uuid.New().URN()
	}
	unsigned, err := model.NewPresentation(model.PresentationParams{
		ID:          id,
		Context:     appendUnique([]string{model.ContextCredentialsV1}, req.AdditionalContexts),
		Type:        appendUnique([]string{model.TypeVerifiablePresentation}, req.AdditionalTypes),
		Holder:      req.HolderDID,
		Credentials: req.Credentials,
	})
	if err != nil {
		return nil, err
	}

	method, err := verificationmethod.First(holderDoc, model.PurposeAuthentication)
	if err != nil {
		return nil, err
	}
	canonical, err := s.opts.canonicalizer.Canonicalize(unsigned.UnsignedDocument())
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize presentation: %w", err)
	}
	proofType := req.ProofType
	if proofType == "" {
		proofType = s.opts.defaultProofType
	}
	proof, err := s.proofs.CreateProof(ctx, provider.ProofRequest{
		Suite:              proofType,
		VerificationMethod: method.ID,
		Purpose:            model.PurposeAuthentication,
		Challenge:          req.Challenge,
		Domain:             req.Domain,
	}, canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to create holder proof with %s: %w", method.ID, err)
	}
	if proof.Challenge() != req.Challenge || proof.Domain() != req.Domain {
		return nil, model.NewError(model.KindHolderBinding, "proof", "holder proof does not carry the requested challenge and domain")
	}

	signed, err := unsigned.WithProof(proof)
	if err != nil {
		return nil, err
	}
	s.opts.logger.Debug("presentation created", "id", signed.ID(), "holder", signed.Holder(), "credentials", len(req.Credentials))
	return signed, nil
}

func appendUnique(base, extra []string) []string {
	for _, v := range extra {
		if !slices.Contains(base, v) {
			base = append(base, v)
		}
	}
	return base
}
