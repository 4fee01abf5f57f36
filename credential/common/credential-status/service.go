package credentialstatus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/pilacorp/go-credential-trust/credential/common/metrics"
	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/provider"
	"github.com/pilacorp/go-credential-trust/internal/batch"
)

const (
	defaultCacheTTL         = 5 * time.Minute
	defaultCacheSize        = 1024
	defaultFetchTimeout     = 30 * time.Second
	defaultBatchConcurrency = 8
)

// ListVerifier checks the issuer proof of a status list credential fetched
// from a remote endpoint. raw is the credential JSON as published.
// *vc.Service implements it.
type ListVerifier interface {
	VerifyListCredential(ctx context.Context, raw []byte) error
}

// FetcherFunc adapts a function to a Fetcher.
type FetcherFunc func(ctx context.Context, statusListURL string) (*StatusListCredential, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, statusListURL string) (*StatusListCredential, error) {
	return f(ctx, statusListURL)
}

// Opt configures a Service.
type Opt func(*Service)

// WithFetcher sets the fetcher used to retrieve status lists.
func WithFetcher(f Fetcher) Opt {
	return func(s *Service) {
		s.fetcher = f
	}
}

// WithCacheTTL sets how long a fetched status list is trusted.
func WithCacheTTL(ttl time.Duration) Opt {
	return func(s *Service) {
		s.cacheTTL = ttl
	}
}

// WithCacheSize sets the number of status lists kept in the cache.
func WithCacheSize(size int) Opt {
	return func(s *Service) {
		s.cacheSize = size
	}
}

// WithFetchTimeout bounds a single (possibly shared) status list fetch.
func WithFetchTimeout(d time.Duration) Opt {
	return func(s *Service) {
		s.fetchTimeout = d
	}
}

// WithListVerifier sets the verifier remote status lists must pass before
// they are used.
func WithListVerifier(v ListVerifier) Opt {
	return func(s *Service) {
		s.verifier = v
	}
}

// WithUnverifiedLists accepts remote status lists without checking their
// proof. Only for deployments where the transport is already trusted.
func WithUnverifiedLists() Opt {
	return func(s *Service) {
		s.unverified = true
	}
}

// WithBatchConcurrency bounds how many lookups IsRevokedBatch runs at once.
func WithBatchConcurrency(n int) Opt {
	return func(s *Service) {
		s.batchConcurrency = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Opt {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Opt {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Opt {
	return func(s *Service) {
		s.tracer = t
	}
}

// Service checks credential status against StatusList2021 lists. Lists are
// cached per URL and concurrent fetches of the same URL are coalesced.
// Remote lists must carry a proof accepted by the ListVerifier; without one
// they are rejected unless WithUnverifiedLists is set. Lists served by a
// local Registry are trusted as is.
type Service struct {
	fetcher          Fetcher
	verifier         ListVerifier
	unverified       bool
	cache            gcache.Cache
	group            singleflight.Group
	cacheTTL         time.Duration
	cacheSize        int
	fetchTimeout     time.Duration
	batchConcurrency int
	logger           *slog.Logger
	metrics          *metrics.Metrics
	tracer           trace.Tracer

	// generations counts invalidations per URL. A fetch that started before
	// an invalidation must not repopulate the cache.
	mu          sync.Mutex
	generations map[string]uint64
	epoch       uint64
}

var _ provider.StatusService = (*Service)(nil)

// NewService creates a status Service. Without WithFetcher it fetches over HTTP.
func NewService(opts ...Opt) *Service {
	s := &Service{
		cacheTTL:         defaultCacheTTL,
		cacheSize:        defaultCacheSize,
		fetchTimeout:     defaultFetchTimeout,
		batchConcurrency: defaultBatchConcurrency,
		logger:           slog.New(slog.DiscardHandler),
		tracer:           otel.Tracer("github.com/pilacorp/go-credential-trust/credential-status"),
		generations:      make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = NewHTTPFetcher()
	}
	s.cache = gcache.New(s.cacheSize).LRU().Expiration(s.cacheTTL).Build()
	return s
}

// GetCredentialStatus returns the status the entry's bit encodes. Any
// failure to determine it is an error of kind StatusIndeterminate.
func (s *Service) GetCredentialStatus(ctx context.Context, status *model.CredentialStatus) (model.Status, error) {
	return s.CheckCredentialStatus(ctx, "", status)
}

// CheckCredentialStatus is GetCredentialStatus for a credential issued by
// issuer: the status list must be issued by the same DID. An empty issuer
// skips that check.
func (s *Service) CheckCredentialStatus(ctx context.Context, issuer string, status *model.CredentialStatus) (model.Status, error) {
	if status == nil {
		return model.StatusUnknown, model.Validation("credentialStatus", "is required")
	}
	ctx, span := s.tracer.Start(ctx, "credentialstatus.CheckCredentialStatus", trace.WithAttributes(
		attribute.String("status.list", status.StatusListCredential()),
		attribute.String("status.purpose", status.StatusPurpose()),
	))
	defer span.End()

	list, err := s.list(ctx, status.StatusListCredential())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.StatusUnknown, err
	}
	if issuer != "" && list.issuer != issuer {
		err := model.NewError(model.KindStatusIndeterminate, "credentialStatus.statusListCredential",
			"status list %s is issued by %q, credential by %q", status.StatusListCredential(), list.issuer, issuer)
		span.SetStatus(codes.Error, err.Error())
		return model.StatusUnknown, err
	}
	if list.purpose != status.StatusPurpose() {
		err := model.NewError(model.KindStatusIndeterminate, "credentialStatus.statusPurpose",
			"status list %s has purpose %q, entry expects %q", status.StatusListCredential(), list.purpose, status.StatusPurpose())
		span.SetStatus(codes.Error, err.Error())
		return model.StatusUnknown, err
	}

	set, err := list.bits.Get(status.StatusListIndex())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.StatusUnknown, model.WrapError(model.KindStatusIndeterminate, err, "status list %s", status.StatusListCredential())
	}
	if !set {
		return model.StatusActive, nil
	}
	if list.purpose == model.StatusPurposeSuspension {
		return model.StatusSuspended, nil
	}
	return model.StatusRevoked, nil
}

// IsRevoked reports whether bit index of the revocation list at statusListURL is set.
func (s *Service) IsRevoked(ctx context.Context, statusListURL string, index int) (bool, error) {
	list, err := s.list(ctx, statusListURL)
	if err != nil {
		return false, err
	}
	if list.purpose != model.StatusPurposeRevocation {
		return false, model.NewError(model.KindStatusIndeterminate, "statusPurpose", "status list %s is not a revocation list", statusListURL)
	}
	set, err := list.bits.Get(index)
	if err != nil {
		return false, model.WrapError(model.KindStatusIndeterminate, err, "status list %s", statusListURL)
	}
	return set, nil
}

// StatusQuery names one bit of a revocation list.
type StatusQuery struct {
	StatusListURL string
	Index         int
}

// RevocationAnswer is the answer to the query at the same position.
type RevocationAnswer struct {
	Revoked bool
	Err     error
}

// IsRevokedBatch runs IsRevoked for every query concurrently. Queries that
// share a list share one fetch. Queries not started because ctx ended carry
// an error of kind StatusIndeterminate.
func (s *Service) IsRevokedBatch(ctx context.Context, queries []StatusQuery) []RevocationAnswer {
	return batch.Run(ctx, s.batchConcurrency, len(queries),
		func(ctx context.Context, i int) RevocationAnswer {
			revoked, err := s.IsRevoked(ctx, queries[i].StatusListURL, queries[i].Index)
			return RevocationAnswer{Revoked: revoked, Err: err}
		},
		func(i int, err error) RevocationAnswer {
			return RevocationAnswer{Err: model.WrapError(model.KindStatusIndeterminate, err, "status list %s", queries[i].StatusListURL)}
		},
	)
}

// Invalidate drops the cached list for statusListURL. A fetch of that URL
// already in flight will not be cached.
func (s *Service) Invalidate(statusListURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[statusListURL]++
	s.cache.Remove(statusListURL)
	s.group.Forget(statusListURL)
}

// ClearCache drops every cached list. Fetches in flight will not be cached.
func (s *Service) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.cache.Purge()
}

type generation struct {
	epoch, url uint64
}

// generationLocked must be called with s.mu held.
func (s *Service) generationLocked(url string) generation {
	return generation{epoch: s.epoch, url: s.generations[url]}
}

// store caches list unless url was invalidated after started.
func (s *Service) store(url string, started generation, list *decodedList) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generationLocked(url) != started {
		s.logger.Debug("status list invalidated during fetch, not caching", "url", url)
		return
	}
	if err := s.cache.Set(url, list); err != nil {
		s.logger.Warn("failed to cache status list", "url", url, "error", err)
	}
}

// verifyList checks the proof and issuer of a fetched list.
func (s *Service) verifyList(ctx context.Context, url string, credential *StatusListCredential) error {
	if credential.IssuerID() == "" {
		return model.NewError(model.KindStatusIndeterminate, "issuer", "status list %s has no issuer", url)
	}
	if credential.local || s.unverified {
		return nil
	}
	if s.verifier == nil {
		return model.NewError(model.KindStatusIndeterminate, "proof", "no verifier configured to check status list %s", url)
	}
	if err := s.verifier.VerifyListCredential(ctx, credential.raw); err != nil {
		return model.WrapError(model.KindStatusIndeterminate, err, "status list %s failed verification", url)
	}
	return nil
}

// list returns the decoded list at url from the cache, fetching it once for
// all concurrent callers on a miss.
func (s *Service) list(ctx context.Context, url string) (*decodedList, error) {
	if cached, err := s.cache.Get(url); err == nil {
		s.metrics.RecordStatusCache(true)
		return cached.(*decodedList), nil
	}
	s.metrics.RecordStatusCache(false)

	ch := s.group.DoChan(url, func() (interface{}, error) {
		// The fetch is shared, so it must not be tied to one caller's cancellation.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		s.mu.Lock()
		started := s.generationLocked(url)
		s.mu.Unlock()
		credential, err := s.fetcher.Fetch(fetchCtx, url)
		if err != nil {
			s.metrics.RecordStatusFetch(false)
			return nil, err
		}
		if err := s.verifyList(fetchCtx, url, credential); err != nil {
			s.metrics.RecordStatusFetch(false)
			return nil, err
		}
		list, err := decode(credential)
		if err != nil {
			s.metrics.RecordStatusFetch(false)
			return nil, err
		}
		s.metrics.RecordStatusFetch(true)
		s.store(url, started, list)
		return list, nil
	})

	select {
	case <-ctx.Done():
		return nil, model.WrapError(model.KindStatusIndeterminate, ctx.Err(), "status list %s", url)
	case res := <-ch:
		if res.Err != nil {
			s.logger.Warn("status list unavailable", "url", url, "error", res.Err)
			if errors.Is(res.Err, model.ErrStatusIndeterminate) {
				return nil, res.Err
			}
			return nil, model.WrapError(model.KindStatusIndeterminate, res.Err, "failed to fetch status list %s", url)
		}
		return res.Val.(*decodedList), nil
	}
}
