package vc

import (
	"context"
	"sync"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
)

// Repository stores issued credentials. Get returns an error of kind
// NotFound for an unknown id; the Find methods return an empty slice when
// nothing matches. Results are ordered by issuance.
type Repository interface {
	Save(ctx context.Context, credential *model.VerifiableCredential) error
	Get(ctx context.Context, id string) (*model.VerifiableCredential, error)
	FindBySubject(ctx context.Context, subjectDID string) ([]*model.VerifiableCredential, error)
	FindByIssuer(ctx context.Context, issuerDID string) ([]*model.VerifiableCredential, error)
}

// MemoryRepository is a Repository backed by process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*model.VerifiableCredential
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*model.VerifiableCredential)}
}

// Save stores credential, replacing any credential with the same id.
func (r *MemoryRepository) Save(_ context.Context, credential *model.VerifiableCredential) error {
	if credential == nil || credential.ID() == "" {
		return model.Validation("id", "credential must have an id to be stored")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[credential.ID()]; !ok {
		r.order = append(r.order, credential.ID())
	}
	r.byID[credential.ID()] = credential
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*model.VerifiableCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	credential, ok := r.byID[id]
	if !ok {
		return nil, model.NewError(model.KindNotFound, "id", "credential %s not found", id)
	}
	return credential, nil
}

func (r *MemoryRepository) FindBySubject(_ context.Context, subjectDID string) ([]*model.VerifiableCredential, error) {
	return r.filter(func(c *model.VerifiableCredential) bool {
		return c.Subject() != nil && c.Subject().ID() == subjectDID
	}), nil
}

func (r *MemoryRepository) FindByIssuer(_ context.Context, issuerDID string) ([]*model.VerifiableCredential, error) {
	return r.filter(func(c *model.VerifiableCredential) bool {
		return c.Issuer() == issuerDID
	}), nil
}

func (r *MemoryRepository) filter(match func(*model.VerifiableCredential) bool) []*model.VerifiableCredential {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []*model.VerifiableCredential{}
	for _, id := range r.order {
		if c := r.byID[id]; match(c) {
			result = append(result, c)
		}
	}
	return result
}
