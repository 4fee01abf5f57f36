// Package resolver provides DIDResolver implementations: did:key expansion,
// a static document set, a universal-resolver HTTP client, method routing
// and a caching decorator.
package resolver

import (
	"context"
	"sync"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/provider"
	"github.com/pilacorp/go-credential-trust/did"
)

// KeyResolver resolves did:key identifiers locally.
type KeyResolver struct{}

var _ provider.DIDResolver = KeyResolver{}

func (KeyResolver) Resolve(ctx context.Context, identifier string) (*model.DIDDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return did.KeyDocument(identifier)
}

// StaticResolver resolves from a fixed set of documents.
type StaticResolver struct {
	mu   sync.RWMutex
	docs map[string]*model.DIDDocument
}

var _ provider.DIDResolver = (*StaticResolver)(nil)

// NewStaticResolver creates a StaticResolver holding docs.
func NewStaticResolver(docs ...*model.DIDDocument) *StaticResolver {
	r := &StaticResolver{docs: make(map[string]*model.DIDDocument, len(docs))}
	for _, doc := range docs {
		r.Add(doc)
	}
	return r
}

// Add registers doc under its id.
func (r *StaticResolver) Add(doc *model.DIDDocument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
}

func (r *StaticResolver) Resolve(_ context.Context, identifier string) (*model.DIDDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[identifier]
	if !ok {
		return nil, model.NewError(model.KindNotFound, "did", "DID %s not found", identifier)
	}
	return doc, nil
}

// MethodResolver routes resolution by DID method. DIDs of other methods go
// to the fallback, or fail with NotFound when there is none.
type MethodResolver struct {
	methods  map[string]provider.DIDResolver
	fallback provider.DIDResolver
}

var _ provider.DIDResolver = (*MethodResolver)(nil)

// NewMethodResolver creates a MethodResolver. fallback may be nil.
func NewMethodResolver(methods map[string]provider.DIDResolver, fallback provider.DIDResolver) *MethodResolver {
	return &MethodResolver{methods: methods, fallback: fallback}
}

func (r *MethodResolver) Resolve(ctx context.Context, identifier string) (*model.DIDDocument, error) {
	parsed, err := model.ParseDID(identifier)
	if err != nil {
		return nil, model.WrapError(model.KindNotFound, err, "cannot resolve %q", identifier)
	}
	if res, ok := r.methods[parsed.Method]; ok {
		return res.Resolve(ctx, identifier)
	}
	if r.fallback != nil {
		return r.fallback.Resolve(ctx, identifier)
	}
	return nil, model.NewError(model.KindNotFound, "did", "no resolver for method %q", parsed.Method)
}
