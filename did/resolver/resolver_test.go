package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/provider"
	"github.com/pilacorp/go-credential-trust/credential/common/provider/mocks"
	"github.com/pilacorp/go-credential-trust/did"
)

const webDID = "did:web:issuer.example.com"

func webDocument() *model.DIDDocument {
	return &model.DIDDocument{
		ID: webDID,
		VerificationMethod: []model.VerificationMethodEntry{{
			ID:                 webDID + "#key-1",
			Type:               "Ed25519VerificationKey2020",
			Controller:         webDID,
			PublicKeyMultibase: "z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK",
		}},
		AssertionMethod: []model.MethodRef{{ID: "#key-1"}},
	}
}

func TestKeyResolver(t *testing.T) {
	generated, err := did.NewDIDGenerator(did.KeyTypeSecp256k1).GenerateDID(context.Background())
	require.NoError(t, err)

	doc, err := KeyResolver{}.Resolve(context.Background(), generated.DID)
	require.NoError(t, err)
	assert.Equal(t, generated.Document, *doc)

	_, err = KeyResolver{}.Resolve(context.Background(), webDID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver(webDocument())

	doc, err := r.Resolve(context.Background(), webDID)
	require.NoError(t, err)
	assert.Equal(t, webDID, doc.ID)

	_, err = r.Resolve(context.Background(), "did:web:unknown.example.com")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMethodResolver(t *testing.T) {
	generated, err := did.NewDIDGenerator(did.KeyTypeEd25519).GenerateDID(context.Background())
	require.NoError(t, err)

	r := NewMethodResolver(map[string]provider.DIDResolver{"key": KeyResolver{}}, NewStaticResolver(webDocument()))

	_, err = r.Resolve(context.Background(), generated.DID)
	assert.NoError(t, err)
	_, err = r.Resolve(context.Background(), webDID)
	assert.NoError(t, err)
	_, err = r.Resolve(context.Background(), "not-a-did")
	assert.ErrorIs(t, err, model.ErrNotFound)

	noFallback := NewMethodResolver(map[string]provider.DIDResolver{"key": KeyResolver{}}, nil)
	_, err = noFallback.Resolve(context.Background(), webDID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestHTTPResolver(t *testing.T) {
	var transient atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/" + webDID:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"didDocument": webDocument()})
		case "/did:web:bare.example.com":
			doc := webDocument()
			doc.ID = "did:web:bare.example.com"
			_ = json.NewEncoder(w).Encode(doc)
		case "/did:web:flaky.example.com":
			if transient.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			doc := webDocument()
			doc.ID = "did:web:flaky.example.com"
			_ = json.NewEncoder(w).Encode(doc)
		case "/did:web:mismatch.example.com":
			_ = json.NewEncoder(w).Encode(webDocument())
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	r := NewHTTPResolver(server.URL+"/", WithRetries(2, time.Millisecond))

	tests := []struct {
		name    string
		did     string
		wantErr error
	}{
		{name: "resolution result", did: webDID},
		{name: "bare document", did: "did:web:bare.example.com"},
		{name: "transient failure is retried", did: "did:web:flaky.example.com"},
		{name: "unknown DID", did: "did:web:unknown.example.com", wantErr: model.ErrNotFound},
		{name: "document for another DID", did: "did:web:mismatch.example.com", wantErr: model.ErrNotFound},
		{name: "invalid DID", did: "nope", wantErr: model.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := r.Resolve(context.Background(), tt.did)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.did, doc.ID)
		})
	}
}

func TestCachingResolver(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockDIDResolver(ctrl)

	next.EXPECT().Resolve(gomock.Any(), webDID).DoAndReturn(func(context.Context, string) (*model.DIDDocument, error) {
		time.Sleep(20 * time.Millisecond)
		return webDocument(), nil
	}).Times(1)
	next.EXPECT().Resolve(gomock.Any(), "did:web:missing.example.com").
		Return(nil, model.NewError(model.KindNotFound, "did", "missing")).Times(2)

	r := NewCachingResolver(next, 16, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := r.Resolve(context.Background(), webDID)
			assert.NoError(t, err)
			assert.Equal(t, webDID, doc.ID)
		}()
	}
	wg.Wait()

	_, err := r.Resolve(context.Background(), webDID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), "did:web:missing.example.com")
		assert.ErrorIs(t, err, model.ErrNotFound, "failures are not cached")
	}
}
