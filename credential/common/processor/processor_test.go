package processor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContextURL = "https://example.org/ctx/v1"

const testContext = `{
	"@context": {
		"@vocab": "https://example.org/vocab#",
		"id": "@id",
		"type": "@type"
	}
}`

func newTestProcessor(t *testing.T) *LDProcessor {
	t.Helper()
	loader, err := PreloadedLoader(nil, map[string]string{testContextURL: testContext})
	require.NoError(t, err)
	return NewLDProcessor(WithDocumentLoader(loader))
}

func TestLDProcessor_Canonicalize(t *testing.T) {
	p := newTestProcessor(t)

	doc := map[string]interface{}{
		"@context": []interface{}{testContextURL},
		"id":       "urn:uuid:1",
		"name":     "Alice",
		"age":      json.Number("30"),
		"active":   true,
	}

	out, err := p.Canonicalize(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), `<urn:uuid:1> <https://example.org/vocab#name> "Alice" .`)
	assert.Contains(t, string(out), `"30"`)

	again, err := p.Canonicalize(doc)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	changed := map[string]interface{}{
		"@context": []interface{}{testContextURL},
		"id":       "urn:uuid:1",
		"name":     "Mallory",
		"age":      json.Number("30"),
		"active":   true,
	}
	other, err := p.Canonicalize(changed)
	require.NoError(t, err)
	assert.NotEqual(t, out, other)
}

func credentialDoc(subject map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"@context":          []interface{}{"https://www.w3.org/2018/credentials/v1", "https://w3id.org/vc/status-list/2021/v1"},
		"id":                "urn:uuid:3978344f-8596-4c3a-a978-8fcaba3903c5",
		"type":              []interface{}{"VerifiableCredential"},
		"issuer":            "did:example:issuer",
		"issuanceDate":      "2025-08-05T10:00:00Z",
		"credentialSubject": subject,
	}
}

func TestLDProcessor_UndefinedTerms(t *testing.T) {
	withStatus := credentialDoc(map[string]interface{}{"id": "did:example:holder"})
	withStatus["credentialStatus"] = map[string]interface{}{
		"id":                   "https://issuer.example/status/1#7",
		"type":                 "StatusList2021Entry",
		"statusPurpose":        "revocation",
		"statusListIndex":      "7",
		"statusListCredential": "https://issuer.example/status/1",
	}
	extraTop := credentialDoc(map[string]interface{}{"id": "did:example:holder"})
	extraTop["nickname"] = "ally"

	tests := []struct {
		name    string
		doc     map[string]interface{}
		opts    []ProcessorOpt
		dropped []string
	}{
		{name: "defined terms only", doc: credentialDoc(map[string]interface{}{"id": "did:example:holder"})},
		{name: "status entry", doc: withStatus},
		{
			name:    "undefined subject claim",
			doc:     credentialDoc(map[string]interface{}{"id": "did:example:holder", "degree": "BSc"}),
			dropped: []string{"credentialSubject.degree"},
		},
		{name: "undefined top level term", doc: extraTop, dropped: []string{"nickname"}},
		{
			name: "strict validation disabled",
			doc:  credentialDoc(map[string]interface{}{"id": "did:example:holder", "degree": "BSc"}),
			opts: []ProcessorOpt{WithStrictValidation(false)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewLDProcessor(tt.opts...)
			out, err := p.Canonicalize(tt.doc)
			if len(tt.dropped) == 0 {
				require.NoError(t, err)
				assert.NotEmpty(t, out)
				return
			}
			require.ErrorIs(t, err, ErrUndefinedTerms)
			for _, field := range tt.dropped {
				assert.Contains(t, err.Error(), field)
			}
		})
	}
}

func TestLDProcessor_ClaimsAreCovered(t *testing.T) {
	loader, err := PreloadedLoader(nil, map[string]string{testContextURL: testContext})
	require.NoError(t, err)
	p := NewLDProcessor(WithDocumentLoader(loader))

	doc := credentialDoc(map[string]interface{}{"id": "did:example:holder", "degree": "BSc"})
	doc["@context"] = []interface{}{"https://www.w3.org/2018/credentials/v1", testContextURL}
	out, err := p.Canonicalize(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), `<https://example.org/vocab#degree> "BSc"`)

	doc["credentialSubject"] = map[string]interface{}{"id": "did:example:holder", "degree": "PhD"}
	tampered, err := p.Canonicalize(doc)
	require.NoError(t, err)
	assert.NotEqual(t, out, tampered)
}

func TestLDProcessor_NilDocument(t *testing.T) {
	p := newTestProcessor(t)
	_, err := p.Canonicalize(nil)
	assert.Error(t, err)
}

func TestPreloadedLoader_InvalidContext(t *testing.T) {
	_, err := PreloadedLoader(nil, map[string]string{testContextURL: "{not json"})
	assert.Error(t, err)
}

func TestJCS_Canonicalize(t *testing.T) {
	out, err := JCS{}.Canonicalize(map[string]interface{}{
		"b":  json.Number("2.0"),
		"a":  []interface{}{"x", map[string]interface{}{"z": 1, "y": nil}},
		"@c": "ctx",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"@c":"ctx","a":["x",{"y":null,"z":1}],"b":2}`, string(out))

	_, err = JCS{}.Canonicalize(nil)
	assert.Error(t, err)
}

func TestComputeDigest(t *testing.T) {
	digest, err := ComputeDigest([]byte("abc"))
	require.NoError(t, err)
	assert.Len(t, digest, 32)

	_, err = ComputeDigest(nil)
	assert.Error(t, err)
}

func TestConvertToJSONLDCompatible(t *testing.T) {
	converted := convertToJSONLDCompatible(map[string]interface{}{
		"count": json.Number("5"),
		"flag":  false,
		"list":  []string{"a"},
		"typed": map[string]interface{}{"@value": "x", "@type": "urn:t"},
	}).(map[string]interface{})

	assert.Equal(t, map[string]interface{}{"@value": "5", "@type": "http://www.w3.org/2001/XMLSchema#string"}, converted["count"])
	assert.Equal(t, map[string]interface{}{"@value": "false", "@type": "http://www.w3.org/2001/XMLSchema#boolean"}, converted["flag"])
	assert.Equal(t, []interface{}{"a"}, converted["list"])
	assert.Equal(t, map[string]interface{}{"@value": "x", "@type": "urn:t"}, converted["typed"])
}
