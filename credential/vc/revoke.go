package vc

import (
	"context"
	"errors"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/internal/batch"
)

// ErrNoRegistry is returned by status changes on a Service built without
// WithRegistry.
var ErrNoRegistry = errors.New("vc: no status registry configured")

// RevocationResult aggregates a batch revocation. TotalProcessed always
// equals len(Revoked)+len(Errors).
type RevocationResult struct {
	TotalProcessed int
	Revoked        []string
	Errors         []BatchError
}

// RevokeCredential sets the revocation bit of the stored credential id.
// Revoking an already revoked credential succeeds. The change is durable in
// the registry's store when RevokeCredential returns.
func (s *Service) RevokeCredential(ctx context.Context, id string) error {
	return s.changeStatus(ctx, id, model.StatusPurposeRevocation, true)
}

// SuspendCredential sets the suspension bit of the stored credential id.
func (s *Service) SuspendCredential(ctx context.Context, id string) error {
	return s.changeStatus(ctx, id, model.StatusPurposeSuspension, true)
}

// ReinstateCredential clears the suspension bit of the stored credential
// id. Revocation cannot be undone.
func (s *Service) ReinstateCredential(ctx context.Context, id string) error {
	return s.changeStatus(ctx, id, model.StatusPurposeSuspension, false)
}

// RevokeCredentialsBatch revokes every id independently.
func (s *Service) RevokeCredentialsBatch(ctx context.Context, ids []string) RevocationResult {
	errs := batch.Run(ctx, s.opts.batchConcurrency, len(ids),
		func(ctx context.Context, i int) error {
			return s.RevokeCredential(ctx, ids[i])
		},
		func(_ int, err error) error {
			return err
		},
	)

	result := RevocationResult{TotalProcessed: len(ids)}
	for i, err := range errs {
		if err != nil {
			result.Errors = append(result.Errors, newBatchError(i, err))
			continue
		}
		result.Revoked = append(result.Revoked, ids[i])
	}
	return result
}

func (s *Service) changeStatus(ctx context.Context, id, purpose string, set bool) error {
	if s.opts.registry == nil {
		return ErrNoRegistry
	}
	credential, err := s.opts.repository.Get(ctx, id)
	if err != nil {
		return err
	}
	status := credential.Status()
	if status == nil {
		return model.NewError(model.KindNotFound, "credentialStatus", "credential %s has no status entry", id)
	}
	if status.StatusPurpose() != purpose {
		return model.Validation("credentialStatus.statusPurpose", "credential %s has a %s entry, not %s", id, status.StatusPurpose(), purpose)
	}
	if err := s.opts.registry.SetCredentialStatus(ctx, status, set); err != nil {
		return err
	}
	s.opts.logger.Info("credential status changed", "id", id, "purpose", purpose, "set", set)
	return nil
}

// GetCredential returns the stored credential id, or nil when there is none.
func (s *Service) GetCredential(ctx context.Context, id string) (*model.VerifiableCredential, error) {
	credential, err := s.opts.repository.Get(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return credential, nil
}

// GetCredentialsBySubject returns the credentials issued to subjectDID.
func (s *Service) GetCredentialsBySubject(ctx context.Context, subjectDID string) ([]*model.VerifiableCredential, error) {
	credentials, err := s.opts.repository.FindBySubject(ctx, subjectDID)
	if err != nil {
		return nil, err
	}
	if credentials == nil {
		credentials = []*model.VerifiableCredential{}
	}
	return credentials, nil
}

// GetCredentialsByIssuer returns the credentials issued by issuerDID.
func (s *Service) GetCredentialsByIssuer(ctx context.Context, issuerDID string) ([]*model.VerifiableCredential, error) {
	credentials, err := s.opts.repository.FindByIssuer(ctx, issuerDID)
	if err != nil {
		return nil, err
	}
	if credentials == nil {
		credentials = []*model.VerifiableCredential{}
	}
	return credentials, nil
}
