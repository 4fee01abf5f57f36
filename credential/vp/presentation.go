// Package vp creates and validates Verifiable Presentations. A
// presentation binds embedded credentials to their holder through an
// authentication proof carrying the verifier's challenge and domain.
package vp

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pilacorp/go-credential-trust/credential/common/metrics"
	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/processor"
	"github.com/pilacorp/go-credential-trust/credential/common/provider"
	"github.com/pilacorp/go-credential-trust/credential/vc"
)

const defaultBatchConcurrency = 8

// CredentialVerifier verifies embedded credentials. *vc.Service implements it.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, credential *model.VerifiableCredential) vc.VerificationResult
}

var _ CredentialVerifier = (*vc.Service)(nil)

// PresentationOpt configures the Service.
type PresentationOpt func(*presentationOptions)

type presentationOptions struct {
	canonicalizer    processor.Canonicalizer
	now              func() time.Time
	logger           *slog.Logger
	metrics          *metrics.Metrics
	tracer           trace.Tracer
	batchConcurrency int
	defaultProofType string
}

// WithCanonicalizer sets the document canonicalizer (URDNA2015 by default).
// It must match the one holders sign with.
func WithCanonicalizer(canonicalizer processor.Canonicalizer) PresentationOpt {
	return func(p *presentationOptions) {
		p.canonicalizer = canonicalizer
	}
}

// WithClock sets the clock used for proof timestamps.
func WithClock(now func() time.Time) PresentationOpt {
	return func(p *presentationOptions) {
		p.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PresentationOpt {
	return func(p *presentationOptions) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) PresentationOpt {
	return func(p *presentationOptions) {
		p.metrics = m
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer trace.Tracer) PresentationOpt {
	return func(p *presentationOptions) {
		p.tracer = tracer
	}
}

// WithBatchConcurrency bounds how many credentials or presentations are
// verified at once.
func WithBatchConcurrency(n int) PresentationOpt {
	return func(p *presentationOptions) {
		p.batchConcurrency = n
	}
}

// WithDefaultProofType sets the proof suite used when a request names none.
func WithDefaultProofType(proofType string) PresentationOpt {
	return func(p *presentationOptions) {
		p.defaultProofType = proofType
	}
}

// Service creates and validates presentations.
type Service struct {
	resolver provider.DIDResolver
	proofs   provider.ProofService
	verifier CredentialVerifier
	opts     presentationOptions
}

// NewService creates a Service. Embedded credentials are checked by verifier.
func NewService(resolver provider.DIDResolver, proofs provider.ProofService, verifier CredentialVerifier, opts ...PresentationOpt) *Service {
	options := presentationOptions{
		now:              time.Now,
		logger:           slog.New(slog.DiscardHandler),
		tracer:           otel.Tracer("github.com/pilacorp/go-credential-trust/vp"),
		batchConcurrency: defaultBatchConcurrency,
		defaultProofType: model.Ed25519Signature2020,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.canonicalizer == nil {
		options.canonicalizer = processor.NewLDProcessor()
	}
	if options.batchConcurrency <= 0 {
		options.batchConcurrency = defaultBatchConcurrency
	}
	return &Service{resolver: resolver, proofs: proofs, verifier: verifier, opts: options}
}

func (s *Service) resolveHolder(ctx context.Context, holder string) (*model.DIDDocument, error) {
	doc, err := s.resolver.Resolve(ctx, holder)
	if err != nil {
		wrapped := model.WrapError(model.KindNotFound, err, "failed to resolve holder %s", holder)
		wrapped.Field = "holder"
		return nil, wrapped
	}
	if doc == nil {
		return nil, model.NewError(model.KindNotFound, "holder", "no DID document for %s", holder)
	}
	return doc, nil
}
