// Package processor turns credential documents into the canonical byte form
// that proofs are computed over.
package processor

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/piprate/json-gold/ld"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-credential-trust/credential/common/jsoncanonicalizer"
)

// Canonicalizer produces a deterministic serialization of a JSON-LD document.
type Canonicalizer interface {
	Canonicalize(doc map[string]interface{}) ([]byte, error)
}

// ErrUndefinedTerms is returned when a document carries terms its @context
// does not define. Such terms are dropped by expansion and would not be
// covered by a proof.
var ErrUndefinedTerms = errors.New("document uses terms not defined by its context")

// ProcessorOpt represents an option for JSON-LD processing.
type ProcessorOpt func(*processorOptions)

type processorOptions struct {
	documentLoader ld.DocumentLoader
	algorithm      string
	httpClient     *http.Client
	strict         bool
}

// WithDocumentLoader sets the document loader used to resolve @context URLs.
func WithDocumentLoader(loader ld.DocumentLoader) ProcessorOpt {
	return func(p *processorOptions) {
		p.documentLoader = loader
	}
}

// WithAlgorithm sets the canonicalization algorithm.
func WithAlgorithm(alg string) ProcessorOpt {
	return func(p *processorOptions) {
		p.algorithm = alg
	}
}

// WithHTTPClient sets the client the default loader fetches remote contexts with.
func WithHTTPClient(client *http.Client) ProcessorOpt {
	return func(p *processorOptions) {
		p.httpClient = client
	}
}

// WithStrictValidation toggles the undefined term check. It is on by default.
func WithStrictValidation(strict bool) ProcessorOpt {
	return func(p *processorOptions) {
		p.strict = strict
	}
}

// LDProcessor canonicalizes documents with URDNA2015 over N-Quads. Each
// processor owns its document loader, so remote contexts are cached per
// instance.
type LDProcessor struct {
	processor *ld.JsonLdProcessor
	loader    ld.DocumentLoader
	algorithm string
	strict    bool
}

// NewLDProcessor returns a JSON-LD processor. Unless a loader is given, the
// credentials v1 and StatusList2021 contexts resolve from embedded copies.
func NewLDProcessor(opts ...ProcessorOpt) *LDProcessor {
	options := &processorOptions{algorithm: ld.AlgorithmURDNA2015, strict: true}
	for _, opt := range opts {
		opt(options)
	}

	loader := options.documentLoader
	if loader == nil {
		client := options.httpClient
		if client == nil {
			client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
		}
		caching := ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(client))
		if err := seedEmbedded(caching); err != nil {
			panic(err)
		}
		loader = caching
	}

	return &LDProcessor{
		processor: ld.NewJsonLdProcessor(),
		loader:    loader,
		algorithm: options.algorithm,
		strict:    options.strict,
	}
}

func (p *LDProcessor) options() *ld.JsonLdOptions {
	opts := ld.NewJsonLdOptions("")
	opts.ProcessingMode = ld.JsonLd_1_1
	opts.DocumentLoader = p.loader
	return opts
}

// Canonicalize canonicalizes a document using JSON-LD processing.
func (p *LDProcessor) Canonicalize(doc map[string]interface{}) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("failed to canonicalize document: document is nil")
	}

	if p.strict {
		if err := p.checkTerms(doc); err != nil {
			return nil, err
		}
	}

	jsonldOptions := p.options()
	jsonldOptions.Format = "application/n-quads"
	jsonldOptions.Algorithm = p.algorithm

	standardizedDoc, err := standardizeToJSONLD(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to standardize to JSON-LD: %w", err)
	}

	canonicalized, err := p.processor.Normalize(standardizedDoc, jsonldOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize document: %w", err)
	}

	out, ok := canonicalized.(string)
	if !ok {
		return nil, fmt.Errorf("failed to normalize document: unexpected output %T", canonicalized)
	}
	return []byte(out), nil
}

// checkTerms compacts doc against its own @context and reports every key
// that did not survive the round trip.
func (p *LDProcessor) checkTerms(doc map[string]interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	var plain map[string]interface{}
	if err := json.Unmarshal(raw, &plain); err != nil {
		return fmt.Errorf("failed to unmarshal document: %w", err)
	}

	compacted, err := p.processor.Compact(plain, map[string]interface{}{"@context": plain["@context"]}, p.options())
	if err != nil {
		return fmt.Errorf("failed to compact document: %w", err)
	}

	var dropped []string
	droppedTerms("", plain, compacted, &dropped)
	if len(dropped) > 0 {
		sort.Strings(dropped)
		return fmt.Errorf("%w: %s", ErrUndefinedTerms, strings.Join(dropped, ", "))
	}
	return nil
}

func droppedTerms(path string, original, compacted map[string]interface{}, out *[]string) {
	for key, value := range original {
		// Keywords compact to their aliases. Embedded proofs are verified on their own.
		if strings.HasPrefix(key, "@") || key == "proof" {
			continue
		}
		field := key
		if path != "" {
			field = path + "." + key
		}
		got, ok := compacted[key]
		if !ok {
			*out = append(*out, field)
			continue
		}
		compareTerms(field, value, got, out)
	}
}

func compareTerms(path string, original, compacted interface{}, out *[]string) {
	original, compacted = unwrapSingle(original), unwrapSingle(compacted)
	switch o := original.(type) {
	case map[string]interface{}:
		if c, ok := compacted.(map[string]interface{}); ok {
			droppedTerms(path, o, c, out)
		}
	case []interface{}:
		c, ok := compacted.([]interface{})
		if !ok || len(c) != len(o) {
			return
		}
		for i := range o {
			compareTerms(fmt.Sprintf("%s[%d]", path, i), o[i], c[i], out)
		}
	}
}

func unwrapSingle(v interface{}) interface{} {
	if arr, ok := v.([]interface{}); ok && len(arr) == 1 {
		return arr[0]
	}
	return v
}

// PreloadedLoader returns a caching loader seeded with the embedded contexts
// and the given ones, keyed by URL. Contexts that are not preloaded are
// fetched with client; a nil client uses http.DefaultClient.
func PreloadedLoader(client *http.Client, contexts map[string]string) (*ld.CachingDocumentLoader, error) {
	loader := ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(client))
	if err := seedEmbedded(loader); err != nil {
		return nil, err
	}
	for url, raw := range contexts {
		doc, err := ld.DocumentFromReader(strings.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse context %s: %w", url, err)
		}
		loader.AddDocument(url, doc)
	}
	return loader, nil
}

// JCS canonicalizes documents as sorted-key JSON. It needs no context
// resolution, which makes it suitable for offline deployments.
type JCS struct{}

// Canonicalize implements Canonicalizer.
func (JCS) Canonicalize(doc map[string]interface{}) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("failed to canonicalize document: document is nil")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	out, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize document: %w", err)
	}
	return out, nil
}

// ComputeDigest computes the SHA-256 digest of the input data.
func ComputeDigest(data []byte) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("failed to compute digest: input data is nil")
	}
	hash := sha256.Sum256(data)
	return hash[:], nil
}

// standardizeToJSONLD converts a map to a JSON-LD-compatible format.
func standardizeToJSONLD(input map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(input))
	for key, value := range input {
		// @context entries are IRIs or inline context objects and must stay as-is.
		if key == "@context" {
			result[key] = value
			continue
		}
		result[key] = convertToJSONLDCompatible(value)
	}
	return result, nil
}

// convertToJSONLDCompatible converts a value to a JSON-LD-compatible format,
// turning scalars other than strings into typed literals.
func convertToJSONLDCompatible(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return v
	case map[string]interface{}:
		if _, ok := v["@value"]; ok {
			return v
		}
		result := make(map[string]interface{}, len(v))
		for key, val := range v {
			result[key] = convertToJSONLDCompatible(val)
		}
		return result
	case []string:
		result := make([]interface{}, len(v))
		for i, val := range v {
			result[i] = val
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, val := range v {
			result[i] = convertToJSONLDCompatible(val)
		}
		return result
	case json.Number:
		return typedLiteral(v.String(), "http://www.w3.org/2001/XMLSchema#string")
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return typedLiteral(fmt.Sprintf("%v", v), "http://www.w3.org/2001/XMLSchema#string")
	case bool:
		return typedLiteral(fmt.Sprintf("%v", v), "http://www.w3.org/2001/XMLSchema#boolean")
	case nil:
		return nil
	default:
		return typedLiteral(fmt.Sprintf("%v", v), "http://www.w3.org/2001/XMLSchema#string")
	}
}

func typedLiteral(value, typ string) map[string]interface{} {
	return map[string]interface{}{
		"@value": value,
		"@type":  typ,
	}
}
