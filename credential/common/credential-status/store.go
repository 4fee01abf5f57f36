package credentialstatus

import (
	"context"
	"sync"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/util"
)

// ListInfo describes a status list owned by an issuer.
type ListInfo struct {
	ID      string
	Issuer  string
	Purpose string
	Size    int
}

// Store persists status lists for the Registry. Implementations must make
// Next and SetBit safe for concurrent use.
type Store interface {
	// Next returns the next value, starting at 0, of the allocation
	// sequence named key.
	Next(ctx context.Context, key string) (int64, error)
	// SaveList records list metadata. Saving an existing list is a no-op.
	SaveList(ctx context.Context, info ListInfo) error
	// List returns the metadata of a list, or a NotFound error.
	List(ctx context.Context, listID string) (*ListInfo, error)
	// SetBit sets or clears a bit and returns its previous value.
	SetBit(ctx context.Context, listID string, index int, value bool) (bool, error)
	// Bits returns the list's bitstring, size bits long.
	Bits(ctx context.Context, listID string, size int) (util.Bitstring, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu        sync.RWMutex
	sequences map[string]int64
	lists     map[string]ListInfo
	bits      map[string]util.Bitstring
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sequences: make(map[string]int64),
		lists:     make(map[string]ListInfo),
		bits:      make(map[string]util.Bitstring),
	}
}

func (s *MemoryStore) Next(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.sequences[key]
	s.sequences[key] = next + 1
	return next, nil
}

func (s *MemoryStore) SaveList(_ context.Context, info ListInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[info.ID]; ok {
		return nil
	}
	s.lists[info.ID] = info
	s.bits[info.ID] = util.NewBitstring(info.Size)
	return nil
}

func (s *MemoryStore) List(_ context.Context, listID string) (*ListInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.lists[listID]
	if !ok {
		return nil, model.NewError(model.KindNotFound, "listID", "status list %s not found", listID)
	}
	return &info, nil
}

func (s *MemoryStore) SetBit(_ context.Context, listID string, index int, value bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bits, ok := s.bits[listID]
	if !ok {
		return false, model.NewError(model.KindNotFound, "listID", "status list %s not found", listID)
	}
	previous, err := bits.Get(index)
	if err != nil {
		return false, model.Validation("statusListIndex", "%v", err)
	}
	if err := bits.Set(index, value); err != nil {
		return false, model.Validation("statusListIndex", "%v", err)
	}
	return previous, nil
}

func (s *MemoryStore) Bits(_ context.Context, listID string, size int) (util.Bitstring, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bits, ok := s.bits[listID]
	if !ok {
		return nil, model.NewError(model.KindNotFound, "listID", "status list %s not found", listID)
	}
	out := util.NewBitstring(size)
	copy(out, bits)
	return out, nil
}
