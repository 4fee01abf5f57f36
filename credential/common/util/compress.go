package util

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInflateLimit is returned when gzip data inflates past the caller's limit.
var ErrInflateLimit = errors.New("inflated data exceeds limit")

// Compress gzips data at the best compression level.
func Compress(data []byte) ([]byte, error) {
	var out bytes.Buffer
	w, err := gzip.NewWriterLevel(&out, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return out.Bytes(), nil
}

// Decompress inflates gzip data. It reads at most limit bytes of output and
// returns ErrInflateLimit when there is more.
func Decompress(data []byte, limit int64) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip header: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrInflateLimit, limit)
	}
	return out, nil
}

// CompressToBase64URL gzips data and encodes it as unpadded base64url.
func CompressToBase64URL(data []byte) (string, error) {
	compressed, err := Compress(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(compressed), nil
}

// DecompressFromBase64URL decodes base64url, padded or not, and inflates at
// most limit bytes.
func DecompressFromBase64URL(encoded string, limit int64) ([]byte, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, fmt.Errorf("base64url: %w", err)
	}
	return Decompress(compressed, limit)
}
