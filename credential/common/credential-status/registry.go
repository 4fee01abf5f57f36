package credentialstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pilacorp/go-credential-trust/credential/common/metrics"
	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/util"
)

// statusPathPrefix is the path the Handler serves status lists under.
const statusPathPrefix = "/status/"

// Invalidator drops cached status lists. *Service implements it.
type Invalidator interface {
	Invalidate(statusListURL string)
}

// RegistryOpt configures a Registry.
type RegistryOpt func(*Registry)

// WithListSize sets the number of bits per status list.
func WithListSize(bits int) RegistryOpt {
	return func(r *Registry) {
		r.listSize = bits
	}
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOpt {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithRegistryMetrics sets the registry metrics sink.
func WithRegistryMetrics(m *metrics.Metrics) RegistryOpt {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithRegistryClock sets the clock used for status list issuance dates.
func WithRegistryClock(now func() time.Time) RegistryOpt {
	return func(r *Registry) {
		r.now = now
	}
}

// WithStatusCache registers a cache to invalidate whenever a bit changes.
func WithStatusCache(cache Invalidator) RegistryOpt {
	return func(r *Registry) {
		r.caches = append(r.caches, cache)
	}
}

// Registry is the issuer side of StatusList2021: it allocates status list
// entries, flips their bits and builds the publishable list credentials.
type Registry struct {
	store    Store
	baseURL  string
	listSize int
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	caches   []Invalidator
}

var _ Fetcher = (*Registry)(nil)

// NewRegistry creates a Registry publishing lists under baseURL + "/status/".
func NewRegistry(store Store, baseURL string, opts ...RegistryOpt) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("status list store is required")
	}
	if !model.IsURI(baseURL) {
		return nil, model.Validation("baseURL", "must be an absolute URL, got %q", baseURL)
	}
	r := &Registry{
		store:    store,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		listSize: util.MinBitstringLength,
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.listSize <= 0 || r.listSize%8 != 0 {
		return nil, model.Validation("listSize", "must be a positive multiple of 8, got %d", r.listSize)
	}
	return r, nil
}

// ListURL returns the URL the list listID is published at.
func (r *Registry) ListURL(listID string) string {
	return r.baseURL + statusPathPrefix + listID
}

// ListID returns the list id of a URL produced by ListURL.
func (r *Registry) ListID(statusListURL string) (string, error) {
	prefix := r.baseURL + statusPathPrefix
	listID, ok := strings.CutPrefix(statusListURL, prefix)
	if !ok || listID == "" || strings.Contains(listID, "/") {
		return "", model.NewError(model.KindNotFound, "statusListCredential", "%s is not a list of this registry", statusListURL)
	}
	return listID, nil
}

// Allocate reserves the next free entry on the issuer's current list for
// purpose. Entries are never reused; a full list rolls over to a new one.
func (r *Registry) Allocate(ctx context.Context, issuerDID, purpose string) (*model.CredentialStatus, error) {
	if _, err := model.ParseDID(issuerDID); err != nil {
		return nil, err
	}
	if purpose == "" {
		purpose = model.StatusPurposeRevocation
	}
	if purpose != model.StatusPurposeRevocation && purpose != model.StatusPurposeSuspension {
		return nil, model.Validation("statusPurpose", "unsupported status purpose %q", purpose)
	}

	seq, err := r.store.Next(ctx, issuerDID+"|"+purpose)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate status entry: %w", err)
	}
	generation := seq / int64(r.listSize)
	index := int(seq % int64(r.listSize))
	listID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s|%s|%d", issuerDID, purpose, generation))).String()

	if err := r.store.SaveList(ctx, ListInfo{ID: listID, Issuer: issuerDID, Purpose: purpose, Size: r.listSize}); err != nil {
		return nil, fmt.Errorf("failed to allocate status entry: %w", err)
	}

	listURL := r.ListURL(listID)
	r.logger.DebugContext(ctx, "allocated status entry", "list_id", listID, "index", index, "purpose", purpose)
	return model.NewCredentialStatus(model.CredentialStatusParams{
		ID:                   listURL + "#" + strconv.Itoa(index),
		Type:                 model.StatusList2021Entry,
		StatusPurpose:        purpose,
		StatusListIndex:      index,
		StatusListCredential: listURL,
	})
}

// SetStatus sets or clears bit index of list listID. It is idempotent and
// the change is stored before it returns.
func (r *Registry) SetStatus(ctx context.Context, listID string, index int, set bool) error {
	info, err := r.store.List(ctx, listID)
	if err != nil {
		return err
	}
	previous, err := r.store.SetBit(ctx, listID, index, set)
	if err != nil {
		return err
	}
	if previous != set {
		r.metrics.RecordStatusChange(info.Purpose, set)
		r.logger.InfoContext(ctx, "status changed", "list_id", listID, "index", index, "purpose", info.Purpose, "set", set)
	}
	listURL := r.ListURL(listID)
	for _, c := range r.caches {
		c.Invalidate(listURL)
	}
	return nil
}

// Revoke sets bit index of list listID.
func (r *Registry) Revoke(ctx context.Context, listID string, index int) error {
	return r.SetStatus(ctx, listID, index, true)
}

// SetCredentialStatus sets or clears the bit a credential's status entry
// points at. The entry's purpose must match the list's.
func (r *Registry) SetCredentialStatus(ctx context.Context, status *model.CredentialStatus, set bool) error {
	if status == nil {
		return model.NewError(model.KindNotFound, "credentialStatus", "credential has no status entry")
	}
	listID, err := r.ListID(status.StatusListCredential())
	if err != nil {
		return err
	}
	info, err := r.store.List(ctx, listID)
	if err != nil {
		return err
	}
	if info.Purpose != status.StatusPurpose() {
		return model.Validation("credentialStatus.statusPurpose", "list %s has purpose %q, entry has %q", listID, info.Purpose, status.StatusPurpose())
	}
	return r.SetStatus(ctx, listID, status.StatusListIndex(), set)
}

// StatusListCredential builds the unsigned StatusList2021Credential for
// list listID.
func (r *Registry) StatusListCredential(ctx context.Context, listID string) (*model.VerifiableCredential, error) {
	info, err := r.store.List(ctx, listID)
	if err != nil {
		return nil, err
	}
	bits, err := r.store.Bits(ctx, listID, info.Size)
	if err != nil {
		return nil, err
	}
	encoded, err := bits.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode status list: %w", err)
	}

	listURL := r.ListURL(listID)
	subject, err := model.NewCredentialSubject(listURL+"#list", map[string]interface{}{
		"type":          StatusList2021,
		"statusPurpose": info.Purpose,
		"encodedList":   encoded,
	})
	if err != nil {
		return nil, err
	}
	return model.NewCredential(model.CredentialParams{
		ID:           listURL,
		Context:      []string{model.ContextCredentialsV1, model.ContextStatusList2021},
		Type:         []string{model.TypeVerifiableCredential, StatusList2021Credential},
		Issuer:       info.Issuer,
		IssuanceDate: r.now(),
		Subject:      subject,
	})
}

// Fetch serves lists of this registry without a network round trip. The
// lists are unsigned and marked local, so a Service trusts them without a
// proof check.
func (r *Registry) Fetch(ctx context.Context, statusListURL string) (*StatusListCredential, error) {
	listID, err := r.ListID(statusListURL)
	if err != nil {
		return nil, err
	}
	credential, err := r.StatusListCredential(ctx, listID)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(credential)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status list credential: %w", err)
	}
	list, err := ParseStatusListCredential(raw)
	if err != nil {
		return nil, err
	}
	list.local = true
	return list, nil
}
