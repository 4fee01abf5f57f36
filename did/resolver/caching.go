package resolver

import (
	"context"
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/sync/singleflight"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/provider"
)

// CachingResolver caches resolved documents and coalesces concurrent
// resolutions of the same DID. Failures are not cached.
type CachingResolver struct {
	next  provider.DIDResolver
	cache gcache.Cache
	group singleflight.Group
}

var _ provider.DIDResolver = (*CachingResolver)(nil)

// NewCachingResolver wraps next with an LRU cache of size entries that
// expire after ttl.
func NewCachingResolver(next provider.DIDResolver, size int, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		next:  next,
		cache: gcache.New(size).LRU().Expiration(ttl).Build(),
	}
}

func (r *CachingResolver) Resolve(ctx context.Context, identifier string) (*model.DIDDocument, error) {
	if cached, err := r.cache.Get(identifier); err == nil {
		return cached.(*model.DIDDocument), nil
	}

	ch := r.group.DoChan(identifier, func() (interface{}, error) {
		doc, err := r.next.Resolve(context.WithoutCancel(ctx), identifier)
		if err != nil {
			return nil, err
		}
		_ = r.cache.Set(identifier, doc)
		return doc, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.DIDDocument), nil
	}
}

// Purge drops every cached document.
func (r *CachingResolver) Purge() {
	r.cache.Purge()
}
