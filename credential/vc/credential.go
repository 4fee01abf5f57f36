// Package vc issues and verifies W3C Verifiable Credentials. The Service
// orchestrates DID resolution, proof creation and verification, schema
// checks and StatusList2021 revocation over injected collaborators.
package vc

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
)

const defaultBatchConcurrency = 8

// StatusRegistry allocates status list entries and flips their bits.
// *credentialstatus.Registry implements it.
type StatusRegistry interface {
	Allocate(ctx context.Context, issuerDID, purpose string) (*model.CredentialStatus, error)
	SetCredentialStatus(ctx context.Context, status *model.CredentialStatus, set bool) error
}

// SchemaValidator validates credential claims against a schema.
// *schema.Validator implements it.
type SchemaValidator interface {
	Validate(ctx context.Context, schemaID string, claims map[string]interface{}) error
}

// CredentialOpt configures the Service.
type CredentialOpt func(*credentialOptions)

type credentialOptions struct {
	status           provider.StatusService
	registry         StatusRegistry
	repository       Repository
	canonicalizer    processor.Canonicalizer
	schemas          SchemaValidator
	now              func() time.Time
	logger           *slog.Logger
	metrics          *metrics.Metrics
	tracer           trace.Tracer
	batchConcurrency int
	defaultProofType string
}

// WithStatus sets the status service consulted during verification.
func WithStatus(status provider.StatusService) CredentialOpt {
	return func(c *credentialOptions) {
		c.status = status
	}
}

// WithRegistry sets the registry status entries are allocated from.
func WithRegistry(registry StatusRegistry) CredentialOpt {
	return func(c *credentialOptions) {
		c.registry = registry
	}
}

// WithRepository sets where issued credentials are stored.
func WithRepository(repository Repository) CredentialOpt {
	return func(c *credentialOptions) {
		c.repository = repository
	}
}

// WithCanonicalizer sets the document canonicalizer (URDNA2015 by default).
func WithCanonicalizer(canonicalizer processor.Canonicalizer) CredentialOpt {
	return func(c *credentialOptions) {
		c.canonicalizer = canonicalizer
	}
}

// WithSchemaValidator enables claim validation for requests naming a schema.
func WithSchemaValidator(schemas SchemaValidator) CredentialOpt {
	return func(c *credentialOptions) {
		c.schemas = schemas
	}
}

// WithClock sets the clock used for issuance dates and expiry checks.
func WithClock(now func() time.Time) CredentialOpt {
	return func(c *credentialOptions) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) CredentialOpt {
	return func(c *credentialOptions) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) CredentialOpt {
	return func(c *credentialOptions) {
		c.metrics = m
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer trace.Tracer) CredentialOpt {
	return func(c *credentialOptions) {
		c.tracer = tracer
	}
}

// WithBatchConcurrency bounds how many batch items run at once.
func WithBatchConcurrency(n int) CredentialOpt {
	return func(c *credentialOptions) {
		c.batchConcurrency = n
	}
}

// WithDefaultProofType sets the proof suite used when a request names none.
func WithDefaultProofType(proofType string) CredentialOpt {
	return func(c *credentialOptions) {
		c.defaultProofType = proofType
	}
}

// Service issues, verifies and revokes credentials. It holds no mutable
// state of its own; caches belong to its collaborators.
type Service struct {
	resolver provider.DIDResolver
	proofs   provider.ProofService
	opts     credentialOptions
}

// NewService creates a Service. Without WithRepository, issued credentials
// are kept in memory.
func NewService(resolver provider.DIDResolver, proofs provider.ProofService, opts ...CredentialOpt) *Service {
	options := credentialOptions{
		now:              time.Now,
		logger:           slog.New(slog.DiscardHandler),
		tracer:           otel.Tracer("github.com/pilacorp/go-credential-trust/vc"),
		batchConcurrency: defaultBatchConcurrency,
		defaultProofType: model.Ed25519Signature2020,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.repository == nil {
		options.repository = NewMemoryRepository()
	}
	if options.canonicalizer == nil {
		options.canonicalizer = processor.NewLDProcessor()
	}
	if options.batchConcurrency <= 0 {
		options.batchConcurrency = defaultBatchConcurrency
	}
	return &Service{resolver: resolver, proofs: proofs, opts: options}
}

// canonicalize returns the canonical form of an unsigned document.
func (s *Service) canonicalize(doc map[string]interface{}) ([]byte, error) {
	return s.opts.canonicalizer.Canonicalize(doc)
}
