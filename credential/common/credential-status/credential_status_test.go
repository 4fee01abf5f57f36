package credentialstatus

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/util"
)

const testIssuer = "did:example:issuer"

func encodedList(t *testing.T, setBits ...int) string {
	t.Helper()
	bits := util.NewBitstring(util.MinBitstringLength)
	for _, i := range setBits {
		require.NoError(t, bits.Set(i, true))
	}
	encoded, err := bits.Encode()
	require.NoError(t, err)
	return encoded
}

func statusListJSON(t *testing.T, purpose string, setBits ...int) map[string]interface{} {
	t.Helper()
	return map[string]interface{}{
		"@context": []string{model.ContextCredentialsV1, model.ContextStatusList2021},
		"id":       "https://example.com/status/1",
		"type":     []string{"VerifiableCredential", StatusList2021Credential},
		"issuer":   testIssuer,
		"credentialSubject": map[string]interface{}{
			"id":            "https://example.com/status/1#list",
			"type":          StatusList2021,
			"statusPurpose": purpose,
			"encodedList":   encodedList(t, setBits...),
		},
	}
}

func newEntry(t *testing.T, url, purpose string, index int) *model.CredentialStatus {
	t.Helper()
	status, err := model.NewCredentialStatus(model.CredentialStatusParams{
		ID:                   url + "#entry",
		Type:                 model.StatusList2021Entry,
		StatusPurpose:        purpose,
		StatusListIndex:      index,
		StatusListCredential: url,
	})
	require.NoError(t, err)
	return status
}

// countingServer serves body as JSON and counts the requests it receives.
func countingServer(t *testing.T, body interface{}) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestParseStatusListCredential(t *testing.T) {
	bare, err := json.Marshal(statusListJSON(t, "suspension", 3))
	require.NoError(t, err)
	inner, err := json.Marshal(statusListJSON(t, "revocation"))
	require.NoError(t, err)
	enveloped, err := json.Marshal(map[string]interface{}{"data": json.RawMessage(inner)})
	require.NoError(t, err)
	objectIssuer := statusListJSON(t, "revocation")
	objectIssuer["issuer"] = map[string]interface{}{"id": testIssuer, "name": "Example University"}
	withObjectIssuer, err := json.Marshal(objectIssuer)
	require.NoError(t, err)

	tests := []struct {
		name        string
		body        []byte
		wantPurpose string
		wantRaw     []byte
		wantErr     bool
	}{
		{name: "bare credential", body: bare, wantPurpose: "suspension", wantRaw: bare},
		{name: "data envelope", body: enveloped, wantPurpose: "revocation", wantRaw: inner},
		{name: "issuer object", body: withObjectIssuer, wantPurpose: "revocation", wantRaw: withObjectIssuer},
		{name: "missing encoded list", body: []byte(`{"credentialSubject":{"statusPurpose":"revocation"}}`), wantErr: true},
		{name: "malformed JSON", body: []byte(`{"credentialSubject":`), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credential, err := ParseStatusListCredential(tt.body)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPurpose, credential.CredentialSubject.Purpose())
			assert.Equal(t, testIssuer, credential.IssuerID())
			assert.JSONEq(t, string(tt.wantRaw), string(credential.Raw()))
		})
	}
}

func TestStatusListCredentialSubject_PurposeDefaultsToRevocation(t *testing.T) {
	assert.Equal(t, model.StatusPurposeRevocation, StatusListCredentialSubject{}.Purpose())
}

func TestHTTPFetcher_RetriesTransientFailures(t *testing.T) {
	body := statusListJSON(t, "revocation")
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(WithRetries(3, time.Millisecond))
	credential, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "revocation", credential.CredentialSubject.StatusPurpose)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPFetcher_PermanentFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not found", status: http.StatusNotFound},
		{name: "forbidden", status: http.StatusForbidden},
		{name: "unparseable body", status: http.StatusOK, body: "not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			fetcher := NewHTTPFetcher(WithRetries(3, time.Millisecond))
			_, err := fetcher.Fetch(context.Background(), server.URL)
			assert.Error(t, err)
			assert.Equal(t, int32(1), calls.Load(), "permanent failures must not be retried")
		})
	}
}

func TestService_GetCredentialStatus(t *testing.T) {
	revocations, _ := countingServer(t, statusListJSON(t, "revocation", 0, 42))
	suspensions, _ := countingServer(t, map[string]interface{}{"data": statusListJSON(t, "suspension", 7)})

	tests := []struct {
		name     string
		entry    func(t *testing.T) *model.CredentialStatus
		want     model.Status
		wantKind model.Kind
	}{
		{
			name:  "revoked bit",
			entry: func(t *testing.T) *model.CredentialStatus { return newEntry(t, revocations.URL, "revocation", 42) },
			want:  model.StatusRevoked,
		},
		{
			name:  "first bit is the most significant",
			entry: func(t *testing.T) *model.CredentialStatus { return newEntry(t, revocations.URL, "revocation", 0) },
			want:  model.StatusRevoked,
		},
		{
			name:  "clear bit",
			entry: func(t *testing.T) *model.CredentialStatus { return newEntry(t, revocations.URL, "revocation", 1) },
			want:  model.StatusActive,
		},
		{
			name:  "suspended bit",
			entry: func(t *testing.T) *model.CredentialStatus { return newEntry(t, suspensions.URL, "suspension", 7) },
			want:  model.StatusSuspended,
		},
		{
			name:     "purpose mismatch",
			entry:    func(t *testing.T) *model.CredentialStatus { return newEntry(t, suspensions.URL, "revocation", 7) },
			want:     model.StatusUnknown,
			wantKind: model.KindStatusIndeterminate,
		},
		{
			name: "index out of range",
			entry: func(t *testing.T) *model.CredentialStatus {
				return newEntry(t, revocations.URL, "revocation", util.MinBitstringLength)
			},
			want:     model.StatusUnknown,
			wantKind: model.KindStatusIndeterminate,
		},
	}

	svc := NewService(WithFetcher(NewHTTPFetcher(WithRetries(0, time.Millisecond))), WithUnverifiedLists())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := svc.GetCredentialStatus(context.Background(), tt.entry(t))
			assert.Equal(t, tt.want, status)
			if tt.wantKind != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, model.KindOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestService_FailsClosed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewService(WithFetcher(NewHTTPFetcher(WithRetries(1, time.Millisecond))), WithUnverifiedLists())

	status, err := svc.GetCredentialStatus(context.Background(), newEntry(t, server.URL, "revocation", 0))
	assert.Equal(t, model.StatusUnknown, status)
	assert.ErrorIs(t, err, model.ErrStatusIndeterminate)

	revoked, err := svc.IsRevoked(context.Background(), server.URL, 0)
	assert.False(t, revoked)
	assert.ErrorIs(t, err, model.ErrStatusIndeterminate)
}

func TestService_IsRevoked(t *testing.T) {
	revocations, _ := countingServer(t, statusListJSON(t, "revocation", 5))
	suspensions, _ := countingServer(t, statusListJSON(t, "suspension", 5))
	svc := NewService(WithUnverifiedLists())

	revoked, err := svc.IsRevoked(context.Background(), revocations.URL, 5)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = svc.IsRevoked(context.Background(), revocations.URL, 6)
	require.NoError(t, err)
	assert.False(t, revoked)

	_, err = svc.IsRevoked(context.Background(), suspensions.URL, 5)
	assert.ErrorIs(t, err, model.ErrStatusIndeterminate)
}

func TestService_CachesLists(t *testing.T) {
	server, calls := countingServer(t, statusListJSON(t, "revocation"))
	svc := NewService(WithCacheTTL(time.Minute), WithUnverifiedLists())
	entry := newEntry(t, server.URL, "revocation", 0)

	for i := 0; i < 3; i++ {
		_, err := svc.GetCredentialStatus(context.Background(), entry)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())

	svc.Invalidate(server.URL)
	_, err := svc.GetCredentialStatus(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

type slowFetcher struct {
	calls atomic.Int32
	delay time.Duration
	list  *StatusListCredential
}

func (f *slowFetcher) Fetch(ctx context.Context, _ string) (*StatusListCredential, error) {
	f.calls.Add(1)
	select {
	case <-time.After(f.delay):
		return f.list, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestService_CoalescesConcurrentFetches(t *testing.T) {
	raw, err := json.Marshal(statusListJSON(t, "revocation", 3))
	require.NoError(t, err)
	list, err := ParseStatusListCredential(raw)
	require.NoError(t, err)

	fetcher := &slowFetcher{delay: 50 * time.Millisecond, list: list}
	svc := NewService(WithFetcher(fetcher), WithUnverifiedLists())
	entry := newEntry(t, "https://example.com/status/1", "revocation", 3)

	var wg sync.WaitGroup
	results := make([]model.Status, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.GetCredentialStatus(context.Background(), entry)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	for _, status := range results {
		assert.Equal(t, model.StatusRevoked, status)
	}
}

func TestService_CallerCancellationDoesNotFailSharedFetch(t *testing.T) {
	raw, err := json.Marshal(statusListJSON(t, "revocation"))
	require.NoError(t, err)
	list, err := ParseStatusListCredential(raw)
	require.NoError(t, err)

	fetcher := &slowFetcher{delay: 50 * time.Millisecond, list: list}
	svc := NewService(WithFetcher(fetcher), WithUnverifiedLists())
	entry := newEntry(t, "https://example.com/status/1", "revocation", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = svc.GetCredentialStatus(ctx, entry)
	assert.ErrorIs(t, err, model.ErrStatusIndeterminate)

	status, err := svc.GetCredentialStatus(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, status)
}

type stubVerifier struct {
	err   error
	calls atomic.Int32
	raw   []byte
}

func (v *stubVerifier) VerifyListCredential(_ context.Context, raw []byte) error {
	v.calls.Add(1)
	v.raw = raw
	return v.err
}

func TestService_VerifiesRemoteLists(t *testing.T) {
	body := statusListJSON(t, "revocation", 5)
	server, _ := countingServer(t, body)
	errForged := errors.New("proof does not match")

	tests := []struct {
		name     string
		opts     func(v *stubVerifier) []Opt
		verifier *stubVerifier
		want     model.Status
		wantErr  error
	}{
		{
			name:     "signed list",
			verifier: &stubVerifier{},
			opts:     func(v *stubVerifier) []Opt { return []Opt{WithListVerifier(v)} },
			want:     model.StatusRevoked,
		},
		{
			name:     "forged list",
			verifier: &stubVerifier{err: errForged},
			opts:     func(v *stubVerifier) []Opt { return []Opt{WithListVerifier(v)} },
			want:     model.StatusUnknown,
			wantErr:  errForged,
		},
		{
			name:     "no verifier",
			verifier: &stubVerifier{},
			opts:     func(*stubVerifier) []Opt { return nil },
			want:     model.StatusUnknown,
			wantErr:  model.ErrStatusIndeterminate,
		},
		{
			name:     "unverified lists accepted",
			verifier: &stubVerifier{err: errForged},
			opts:     func(*stubVerifier) []Opt { return []Opt{WithUnverifiedLists()} },
			want:     model.StatusRevoked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append(tt.opts(tt.verifier), WithFetcher(NewHTTPFetcher(WithRetries(0, time.Millisecond))))
			svc := NewService(opts...)

			status, err := svc.GetCredentialStatus(context.Background(), newEntry(t, server.URL, "revocation", 5))
			assert.Equal(t, tt.want, status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, model.ErrStatusIndeterminate)
				return
			}
			require.NoError(t, err)
			if tt.verifier.calls.Load() > 0 {
				want, err := json.Marshal(body)
				require.NoError(t, err)
				assert.JSONEq(t, string(want), string(tt.verifier.raw))
			}
		})
	}
}

func TestService_LocalListsSkipVerification(t *testing.T) {
	ctx := context.Background()
	registry, err := NewRegistry(NewMemoryStore(), "https://issuer.example.com")
	require.NoError(t, err)
	verifier := &stubVerifier{err: errors.New("unsigned")}
	svc := NewService(WithFetcher(registry), WithListVerifier(verifier))

	entry, err := registry.Allocate(ctx, testIssuer, model.StatusPurposeRevocation)
	require.NoError(t, err)
	status, err := svc.GetCredentialStatus(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, status)
	assert.Zero(t, verifier.calls.Load())
}

func TestService_ListIssuerMustMatchCredentialIssuer(t *testing.T) {
	signed, _ := countingServer(t, statusListJSON(t, "revocation", 2))
	anonymousList := statusListJSON(t, "revocation", 2)
	delete(anonymousList, "issuer")
	anonymous, _ := countingServer(t, anonymousList)
	svc := NewService(WithFetcher(NewHTTPFetcher(WithRetries(0, time.Millisecond))), WithUnverifiedLists())

	tests := []struct {
		name     string
		url      string
		issuer   string
		want     model.Status
		wantFail bool
	}{
		{name: "same issuer", url: signed.URL, issuer: testIssuer, want: model.StatusRevoked},
		{name: "issuer not checked", url: signed.URL, want: model.StatusRevoked},
		{name: "foreign issuer", url: signed.URL, issuer: "did:example:impostor", want: model.StatusUnknown, wantFail: true},
		{name: "list without issuer", url: anonymous.URL, issuer: testIssuer, want: model.StatusUnknown, wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := svc.CheckCredentialStatus(context.Background(), tt.issuer, newEntry(t, tt.url, "revocation", 2))
			assert.Equal(t, tt.want, status)
			if tt.wantFail {
				assert.ErrorIs(t, err, model.ErrStatusIndeterminate)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestService_RejectsOversizedList(t *testing.T) {
	encoded, err := util.CompressToBase64URL(make([]byte, util.MaxBitstringBytes+1))
	require.NoError(t, err)
	body := statusListJSON(t, "revocation")
	body["credentialSubject"].(map[string]interface{})["encodedList"] = encoded
	server, _ := countingServer(t, body)
	svc := NewService(WithFetcher(NewHTTPFetcher(WithRetries(0, time.Millisecond))), WithUnverifiedLists())

	status, err := svc.GetCredentialStatus(context.Background(), newEntry(t, server.URL, "revocation", 0))
	assert.Equal(t, model.StatusUnknown, status)
	assert.ErrorIs(t, err, model.ErrStatusIndeterminate)
	assert.ErrorIs(t, err, util.ErrInflateLimit)
}

func TestService_IsRevokedBatch(t *testing.T) {
	revocations, _ := countingServer(t, statusListJSON(t, "revocation", 1, 4))
	suspensions, _ := countingServer(t, statusListJSON(t, "suspension", 1))
	svc := NewService(WithFetcher(NewHTTPFetcher(WithRetries(0, time.Millisecond))), WithUnverifiedLists(), WithBatchConcurrency(2))

	queries := []StatusQuery{
		{StatusListURL: revocations.URL, Index: 1},
		{StatusListURL: revocations.URL, Index: 2},
		{StatusListURL: revocations.URL, Index: 4},
		{StatusListURL: suspensions.URL, Index: 1},
		{StatusListURL: revocations.URL, Index: util.MinBitstringLength},
	}

	tests := []struct {
		name        string
		ctx         func() context.Context
		wantRevoked []bool
		wantFailed  []bool
	}{
		{
			name:        "mixed answers",
			ctx:         context.Background,
			wantRevoked: []bool{true, false, true, false, false},
			wantFailed:  []bool{false, false, false, true, true},
		},
		{
			name: "cancelled context",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantRevoked: []bool{false, false, false, false, false},
			wantFailed:  []bool{true, true, true, true, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers := svc.IsRevokedBatch(tt.ctx(), queries)
			require.Len(t, answers, len(queries))
			for i, answer := range answers {
				assert.Equal(t, tt.wantRevoked[i], answer.Revoked, "query %d", i)
				if tt.wantFailed[i] {
					assert.ErrorIs(t, answer.Err, model.ErrStatusIndeterminate, "query %d", i)
				} else {
					assert.NoError(t, answer.Err, "query %d", i)
				}
			}
		})
	}
}

func TestService_ClearCache(t *testing.T) {
	first, firstCalls := countingServer(t, statusListJSON(t, "revocation"))
	second, secondCalls := countingServer(t, statusListJSON(t, "revocation"))
	svc := NewService(WithCacheTTL(time.Minute), WithUnverifiedLists())

	for _, url := range []string{first.URL, second.URL, first.URL, second.URL} {
		_, err := svc.IsRevoked(context.Background(), url, 0)
		require.NoError(t, err)
	}
	svc.ClearCache()
	for _, url := range []string{first.URL, second.URL} {
		_, err := svc.IsRevoked(context.Background(), url, 0)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(2), firstCalls.Load())
	assert.Equal(t, int32(2), secondCalls.Load())
}

// gatedFetcher holds its first fetch until release is closed.
type gatedFetcher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	list    *StatusListCredential
}

func (f *gatedFetcher) Fetch(_ context.Context, _ string) (*StatusListCredential, error) {
	if f.calls.Add(1) == 1 {
		close(f.started)
		<-f.release
	}
	return f.list, nil
}

func TestService_InvalidationDuringFetchIsNotOverwritten(t *testing.T) {
	raw, err := json.Marshal(statusListJSON(t, "revocation", 3))
	require.NoError(t, err)
	list, err := ParseStatusListCredential(raw)
	require.NoError(t, err)
	const url = "https://example.com/status/1"

	tests := []struct {
		name       string
		invalidate func(svc *Service)
	}{
		{name: "invalidate", invalidate: func(svc *Service) { svc.Invalidate(url) }},
		{name: "clear cache", invalidate: func(svc *Service) { svc.ClearCache() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{}), list: list}
			svc := NewService(WithFetcher(fetcher), WithUnverifiedLists(), WithCacheTTL(time.Minute))
			entry := newEntry(t, url, "revocation", 3)

			done := make(chan model.Status, 1)
			go func() {
				status, _ := svc.GetCredentialStatus(context.Background(), entry)
				done <- status
			}()
			<-fetcher.started
			tt.invalidate(svc)
			close(fetcher.release)
			assert.Equal(t, model.StatusRevoked, <-done)

			status, err := svc.GetCredentialStatus(context.Background(), entry)
			require.NoError(t, err)
			assert.Equal(t, model.StatusRevoked, status)
			assert.Equal(t, int32(2), fetcher.calls.Load(), "a list fetched before the invalidation is not cached")

			_, err = svc.GetCredentialStatus(context.Background(), entry)
			require.NoError(t, err)
			assert.Equal(t, int32(2), fetcher.calls.Load())
		})
	}
}

func TestRegistry_Allocate(t *testing.T) {
	registry, err := NewRegistry(NewMemoryStore(), "https://issuer.example.com/", WithListSize(8))
	require.NoError(t, err)
	ctx := context.Background()

	var lists []string
	for i := 0; i < 9; i++ {
		status, err := registry.Allocate(ctx, testIssuer, "")
		require.NoError(t, err)
		assert.Equal(t, model.StatusList2021Entry, status.Type())
		assert.Equal(t, model.StatusPurposeRevocation, status.StatusPurpose())
		assert.Equal(t, i%8, status.StatusListIndex())
		lists = append(lists, status.StatusListCredential())
	}

	assert.Equal(t, lists[0], lists[7], "entries share a list until it is full")
	assert.NotEqual(t, lists[7], lists[8], "a full list rolls over")
	assert.Contains(t, lists[0], "https://issuer.example.com/status/")

	suspension, err := registry.Allocate(ctx, testIssuer, model.StatusPurposeSuspension)
	require.NoError(t, err)
	assert.Equal(t, 0, suspension.StatusListIndex())
	assert.NotEqual(t, lists[0], suspension.StatusListCredential())

	_, err = registry.Allocate(ctx, testIssuer, "expiry")
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = registry.Allocate(ctx, "not-a-did", "")
	assert.Error(t, err)
}

func TestNewRegistry_RejectsBadConfig(t *testing.T) {
	_, err := NewRegistry(NewMemoryStore(), "not a url")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = NewRegistry(NewMemoryStore(), "https://issuer.example.com", WithListSize(7))
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = NewRegistry(nil, "https://issuer.example.com")
	assert.Error(t, err)
}

func TestRegistry_RevocationRoundTrip(t *testing.T) {
	ctx := context.Background()
	var registry *Registry
	svc := NewService(WithFetcher(FetcherFunc(func(ctx context.Context, url string) (*StatusListCredential, error) {
		return registry.Fetch(ctx, url)
	})))
	registry, err := NewRegistry(NewMemoryStore(), "https://issuer.example.com", WithStatusCache(svc))
	require.NoError(t, err)

	entry, err := registry.Allocate(ctx, testIssuer, model.StatusPurposeRevocation)
	require.NoError(t, err)

	status, err := svc.GetCredentialStatus(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, status)

	require.NoError(t, registry.SetCredentialStatus(ctx, entry, true))
	require.NoError(t, registry.SetCredentialStatus(ctx, entry, true), "revocation is idempotent")

	status, err = svc.GetCredentialStatus(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRevoked, status)

	listID, err := registry.ListID(entry.StatusListCredential())
	require.NoError(t, err)
	require.NoError(t, registry.SetStatus(ctx, listID, entry.StatusListIndex(), false))

	status, err = svc.GetCredentialStatus(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, status)
}

func TestRegistry_SetStatusErrors(t *testing.T) {
	ctx := context.Background()
	registry, err := NewRegistry(NewMemoryStore(), "https://issuer.example.com", WithListSize(8))
	require.NoError(t, err)

	err = registry.Revoke(ctx, "unknown", 0)
	assert.ErrorIs(t, err, model.ErrNotFound)

	entry, err := registry.Allocate(ctx, testIssuer, model.StatusPurposeSuspension)
	require.NoError(t, err)
	listID, err := registry.ListID(entry.StatusListCredential())
	require.NoError(t, err)

	err = registry.Revoke(ctx, listID, 8)
	assert.ErrorIs(t, err, model.ErrValidation)

	mismatched := newEntry(t, entry.StatusListCredential(), model.StatusPurposeRevocation, 0)
	err = registry.SetCredentialStatus(ctx, mismatched, true)
	assert.ErrorIs(t, err, model.ErrValidation)

	foreign := newEntry(t, "https://other.example.com/status/x", model.StatusPurposeSuspension, 0)
	err = registry.SetCredentialStatus(ctx, foreign, true)
	assert.ErrorIs(t, err, model.ErrNotFound)

	err = registry.SetCredentialStatus(ctx, nil, true)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRegistry_StatusListCredential(t *testing.T) {
	ctx := context.Background()
	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	registry, err := NewRegistry(NewMemoryStore(), "https://issuer.example.com",
		WithRegistryClock(func() time.Time { return issued }))
	require.NoError(t, err)

	entry, err := registry.Allocate(ctx, testIssuer, model.StatusPurposeSuspension)
	require.NoError(t, err)
	listID, err := registry.ListID(entry.StatusListCredential())
	require.NoError(t, err)
	require.NoError(t, registry.Revoke(ctx, listID, entry.StatusListIndex()))

	credential, err := registry.StatusListCredential(ctx, listID)
	require.NoError(t, err)
	assert.Equal(t, entry.StatusListCredential(), credential.ID())
	assert.Equal(t, testIssuer, credential.Issuer())
	assert.Equal(t, issued, credential.IssuanceDate())
	assert.True(t, credential.HasType(StatusList2021Credential))

	encoded, ok := credential.Subject().Property("encodedList")
	require.True(t, ok)
	bits, err := util.DecodeBitstring(encoded.(string))
	require.NoError(t, err)
	assert.Equal(t, util.MinBitstringLength, bits.Len())
	set, err := bits.Get(entry.StatusListIndex())
	require.NoError(t, err)
	assert.True(t, set)
}

type fakeSigner struct {
	calls int
}

func (s *fakeSigner) SignCredential(_ context.Context, credential *model.VerifiableCredential) (*model.VerifiableCredential, error) {
	s.calls++
	return credential, nil
}

func TestHandler_ServesStatusLists(t *testing.T) {
	ctx := context.Background()
	router := chi.NewRouter()
	server := httptest.NewServer(router)
	defer server.Close()

	registry, err := NewRegistry(NewMemoryStore(), server.URL)
	require.NoError(t, err)
	signer := &fakeSigner{}
	NewHandler(registry, signer, nil).Register(router)

	entry, err := registry.Allocate(ctx, testIssuer, model.StatusPurposeRevocation)
	require.NoError(t, err)
	require.NoError(t, registry.SetCredentialStatus(ctx, entry, true))

	svc := NewService(WithFetcher(NewHTTPFetcher(WithRetries(0, time.Millisecond))), WithUnverifiedLists())
	status, err := svc.GetCredentialStatus(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRevoked, status)
	assert.Equal(t, 1, signer.calls)

	resp, err := http.Get(server.URL + "/status/unknown")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
