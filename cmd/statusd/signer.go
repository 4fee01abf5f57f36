package main

import (
	"context"
	"log/slog"

	credentialstatus "github.com/pilacorp/go-credential-trust/credential/common/credential-status"
	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/did"
	"github.com/pilacorp/go-credential-trust/did/signer"
	"github.com/pilacorp/go-credential-trust/internal/platform/config"
)

// loadIssuer adds the configured issuer key to keys. A remote signer takes
// precedence over a local private key. It returns nil when neither is set.
func loadIssuer(cfg config.IssuerConfig, keys *signer.Keystore) (*did.DID, error) {
	if cfg.RemoteSignerURL != "" {
		return keys.AddRemote(cfg.RemoteSignerURL, cfg.RemoteSignerAPIKey, cfg.PublicKeyHex)
	}
	if cfg.PrivateKeyHex == "" {
		return nil, nil
	}
	issuer, err := did.FromPrivateKey(did.KeyType(cfg.KeyType), cfg.PrivateKeyHex)
	if err != nil {
		return nil, err
	}
	if err := keys.AddDID(issuer); err != nil {
		return nil, err
	}
	return issuer, nil
}

// ownListSigner signs the lists allocated by the daemon's own issuer and
// serves every other list unsigned, since it holds no key for them.
type ownListSigner struct {
	issuer string
	next   credentialstatus.ListSigner
	logger *slog.Logger
}

func (s *ownListSigner) SignCredential(ctx context.Context, credential *model.VerifiableCredential) (*model.VerifiableCredential, error) {
	if credential.Issuer() != s.issuer {
		s.logger.DebugContext(ctx, "serving foreign status list unsigned", "issuer", credential.Issuer())
		return credential, nil
	}
	return s.next.SignCredential(ctx, credential)
}
