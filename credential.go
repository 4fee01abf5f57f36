// Package credential wires the credential, presentation and status
// services into one Engine.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	credentialstatus "github.com/pilacorp/go-credential-trust/credential/common/credential-status"
	"github.com/pilacorp/go-credential-trust/credential/common/metrics"
	"github.com/pilacorp/go-credential-trust/credential/common/processor"
	"github.com/pilacorp/go-credential-trust/credential/common/provider"
	"github.com/pilacorp/go-credential-trust/credential/vc"
	"github.com/pilacorp/go-credential-trust/credential/vp"
	"github.com/pilacorp/go-credential-trust/did"
	didconfig "github.com/pilacorp/go-credential-trust/did/config"
	"github.com/pilacorp/go-credential-trust/did/resolver"
	"github.com/pilacorp/go-credential-trust/did/signer"
)

const resolverCacheSize = 1024

// EngineOpt configures NewEngine.
type EngineOpt func(*engineOptions)

type engineOptions struct {
	resolver       provider.DIDResolver
	universalURL   string
	keys           provider.KeyProvider
	statusStore    credentialstatus.Store
	statusBaseURL  string
	statusFetcher  credentialstatus.Fetcher
	repository     vc.Repository
	canonicalizer  processor.Canonicalizer
	schemas        vc.SchemaValidator
	logger         *slog.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
	statusCacheTTL time.Duration
	listSize       int
}

// WithResolver replaces the default resolver, which resolves did:key
// locally.
func WithResolver(r provider.DIDResolver) EngineOpt {
	return func(o *engineOptions) {
		o.resolver = r
	}
}

// WithUniversalResolver resolves DID methods other than did:key through the
// universal resolver at url, caching documents for the configured TTL. It
// has no effect together with WithResolver.
func WithUniversalResolver(url string) EngineOpt {
	return func(o *engineOptions) {
		o.universalURL = url
	}
}

// WithKeyProvider replaces the engine's in-memory keystore.
func WithKeyProvider(keys provider.KeyProvider) EngineOpt {
	return func(o *engineOptions) {
		o.keys = keys
	}
}

// WithStatusRegistry enables status list allocation and publishing under
// baseURL, with entries kept in store (in memory when nil).
func WithStatusRegistry(baseURL string, store credentialstatus.Store) EngineOpt {
	return func(o *engineOptions) {
		o.statusBaseURL = baseURL
		o.statusStore = store
	}
}

// WithStatusListSize sets the number of entries per allocated status list.
func WithStatusListSize(bits int) EngineOpt {
	return func(o *engineOptions) {
		o.listSize = bits
	}
}

// WithStatusFetcher sets how lists outside the engine's registry are
// fetched (over HTTP by default).
func WithStatusFetcher(f credentialstatus.Fetcher) EngineOpt {
	return func(o *engineOptions) {
		o.statusFetcher = f
	}
}

// WithStatusCacheTTL sets how long fetched status lists are cached.
func WithStatusCacheTTL(ttl time.Duration) EngineOpt {
	return func(o *engineOptions) {
		o.statusCacheTTL = ttl
	}
}

// WithRepository sets where issued credentials are stored.
func WithRepository(repository vc.Repository) EngineOpt {
	return func(o *engineOptions) {
		o.repository = repository
	}
}

// WithCanonicalizer sets the canonicalizer used by both services.
func WithCanonicalizer(c processor.Canonicalizer) EngineOpt {
	return func(o *engineOptions) {
		o.canonicalizer = c
	}
}

// WithSchemaValidator enables claim validation at issuance.
func WithSchemaValidator(v vc.SchemaValidator) EngineOpt {
	return func(o *engineOptions) {
		o.schemas = v
	}
}

// WithLogger sets the logger shared by every service.
func WithLogger(logger *slog.Logger) EngineOpt {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics shared by every service.
func WithMetrics(m *metrics.Metrics) EngineOpt {
	return func(o *engineOptions) {
		o.metrics = m
	}
}

// WithClock sets the clock used for issuance dates, proofs and expiry.
func WithClock(now func() time.Time) EngineOpt {
	return func(o *engineOptions) {
		o.now = now
	}
}

// Engine bundles the services of a credential trust deployment. Registry
// is nil unless WithStatusRegistry was given; Keys is nil when a custom key
// provider was supplied.
type Engine struct {
	Credentials   *vc.Service
	Presentations *vp.Service
	Status        *credentialstatus.Service
	Registry      *credentialstatus.Registry
	Keys          *signer.Keystore
	Resolver      provider.DIDResolver
}

// NewEngine builds an Engine. Without options it resolves did:key, signs
// with an in-memory keystore, canonicalizes with URDNA2015 and checks
// status lists over HTTP.
func NewEngine(opts ...EngineOpt) (*Engine, error) {
	o := engineOptions{
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.canonicalizer == nil {
		o.canonicalizer = processor.NewLDProcessor()
	}

	e := &Engine{Resolver: o.resolver}
	if e.Resolver == nil {
		e.Resolver = defaultResolver(o.universalURL)
	}

	keys := o.keys
	if keys == nil {
		e.Keys = signer.NewKeystore()
		keys = e.Keys
	}

	remote := o.statusFetcher
	if remote == nil {
		remote = credentialstatus.NewHTTPFetcher()
	}
	fetcher := &localFirstFetcher{remote: remote}
	verifier := &listVerifier{}
	statusOpts := []credentialstatus.Opt{
		credentialstatus.WithFetcher(fetcher),
		credentialstatus.WithListVerifier(verifier),
		credentialstatus.WithLogger(o.logger),
		credentialstatus.WithMetrics(o.metrics),
	}
	if o.statusCacheTTL > 0 {
		statusOpts = append(statusOpts, credentialstatus.WithCacheTTL(o.statusCacheTTL))
	}
	e.Status = credentialstatus.NewService(statusOpts...)

	if o.statusBaseURL != "" {
		store := o.statusStore
		if store == nil {
			store = credentialstatus.NewMemoryStore()
		}
		registryOpts := []credentialstatus.RegistryOpt{
			credentialstatus.WithStatusCache(e.Status),
			credentialstatus.WithRegistryLogger(o.logger),
			credentialstatus.WithRegistryMetrics(o.metrics),
			credentialstatus.WithRegistryClock(o.now),
		}
		if o.listSize > 0 {
			registryOpts = append(registryOpts, credentialstatus.WithListSize(o.listSize))
		}
		registry, err := credentialstatus.NewRegistry(store, o.statusBaseURL, registryOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create status registry: %w", err)
		}
		e.Registry = registry
		fetcher.local = registry
	}

	proofs := provider.NewProofService(keys, provider.WithProofClock(o.now))

	credentialOpts := []vc.CredentialOpt{
		vc.WithStatus(e.Status),
		vc.WithCanonicalizer(o.canonicalizer),
		vc.WithClock(o.now),
		vc.WithLogger(o.logger),
		vc.WithMetrics(o.metrics),
	}
	if e.Registry != nil {
		credentialOpts = append(credentialOpts, vc.WithRegistry(e.Registry))
	}
	if o.repository != nil {
		credentialOpts = append(credentialOpts, vc.WithRepository(o.repository))
	}
	if o.schemas != nil {
		credentialOpts = append(credentialOpts, vc.WithSchemaValidator(o.schemas))
	}
	e.Credentials = vc.NewService(e.Resolver, proofs, credentialOpts...)
	verifier.credentials = e.Credentials

	e.Presentations = vp.NewService(e.Resolver, proofs, e.Credentials,
		vp.WithCanonicalizer(o.canonicalizer),
		vp.WithClock(o.now),
		vp.WithLogger(o.logger),
		vp.WithMetrics(o.metrics),
	)
	return e, nil
}

// NewDID generates a did:key of keyType and adds its key to the engine's
// keystore, so the DID can issue and present straight away.
func (e *Engine) NewDID(ctx context.Context, keyType did.KeyType) (*did.DID, error) {
	if e.Keys == nil {
		return nil, errors.New("credential: engine was built with an external key provider")
	}
	generated, err := did.NewDIDGenerator(keyType).GenerateDID(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.Keys.AddDID(generated); err != nil {
		return nil, err
	}
	return generated, nil
}

// AddRemoteSigner registers a secp256k1 key held by the remote signing API
// at endpoint and returns the did:key it signs for.
func (e *Engine) AddRemoteSigner(endpoint, apiKey, publicKeyHex string) (*did.DID, error) {
	if e.Keys == nil {
		return nil, errors.New("credential: engine was built with an external key provider")
	}
	return e.Keys.AddRemote(endpoint, apiKey, publicKeyHex)
}

// StatusHandler returns the HTTP handler publishing the registry's lists,
// signed by the issuing service. It is nil without a registry.
func (e *Engine) StatusHandler(logger *slog.Logger) *credentialstatus.Handler {
	if e.Registry == nil {
		return nil
	}
	return credentialstatus.NewHandler(e.Registry, e.Credentials, logger)
}

func defaultResolver(universalURL string) provider.DIDResolver {
	var fallback provider.DIDResolver
	if universalURL != "" {
		fallback = resolver.NewCachingResolver(resolver.NewHTTPResolver(universalURL), resolverCacheSize, didconfig.CacheTTL())
	}
	return resolver.NewMethodResolver(map[string]provider.DIDResolver{
		"key": resolver.KeyResolver{},
	}, fallback)
}

// localFirstFetcher serves lists of the local registry from its store and
// fetches every other list remotely.
type localFirstFetcher struct {
	local  *credentialstatus.Registry
	remote credentialstatus.Fetcher
}

func (f *localFirstFetcher) Fetch(ctx context.Context, statusListURL string) (*credentialstatus.StatusListCredential, error) {
	if f.local != nil {
		if _, err := f.local.ListID(statusListURL); err == nil {
			return f.local.Fetch(ctx, statusListURL)
		}
	}
	return f.remote.Fetch(ctx, statusListURL)
}

// listVerifier checks remote status lists with the engine's credential
// service, which is built after the status service.
type listVerifier struct {
	credentials *vc.Service
}

func (v *listVerifier) VerifyListCredential(ctx context.Context, raw []byte) error {
	if v.credentials == nil {
		return errors.New("credential: engine is not fully built")
	}
	return v.credentials.VerifyListCredential(ctx, raw)
}
