// Package signer provides KeyProvider implementations that hand out
// signing keys by key reference (a verification method id).
package signer

import (
	"context"
	gocrypto "crypto"
	"fmt"
	"sync"

	"github.com/pilacorp/go-credential-trust/credential/common/crypto"
	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/provider"
	"github.com/pilacorp/go-credential-trust/did"
)

// Keystore is an in-memory KeyProvider.
type Keystore struct {
	mu   sync.RWMutex
	keys map[string]gocrypto.Signer
}

var _ provider.KeyProvider = (*Keystore)(nil)

// NewKeystore creates an empty Keystore.
func NewKeystore() *Keystore {
	return &Keystore{keys: make(map[string]gocrypto.Signer)}
}

// Add registers signer under keyRef, replacing any previous key.
func (k *Keystore) Add(keyRef string, signer gocrypto.Signer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[keyRef] = signer
}

// AddDID registers the key of a generated DID under its key id.
func (k *Keystore) AddDID(d *did.DID) error {
	signer, err := d.Signer()
	if err != nil {
		return err
	}
	k.Add(d.KeyID, signer)
	return nil
}

// AddRemote registers a RemoteSigner for the secp256k1 key publicKeyHex
// behind endpoint and returns the did:key DID it signs for.
func (k *Keystore) AddRemote(endpoint, apiKey, publicKeyHex string) (*did.DID, error) {
	raw, err := crypto.KeyToBytes(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode remote signer public key: %w", err)
	}
	pub, err := crypto.ParseSecp256k1PublicKey(raw)
	if err != nil {
		return nil, err
	}
	remote, err := NewRemoteSigner(endpoint, apiKey, pub)
	if err != nil {
		return nil, err
	}
	issuer, err := did.FromPublicKey(did.KeyTypeSecp256k1, pub)
	if err != nil {
		return nil, err
	}
	k.Add(issuer.KeyID, remote)
	return issuer, nil
}

// Remove deletes the key registered under keyRef.
func (k *Keystore) Remove(keyRef string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, keyRef)
}

// SigningKey returns the key registered under keyRef.
func (k *Keystore) SigningKey(_ context.Context, keyRef string) (gocrypto.Signer, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	signer, ok := k.keys[keyRef]
	if !ok {
		return nil, model.NewError(model.KindNotFound, "keyRef", "no signing key for %s", keyRef)
	}
	return signer, nil
}
