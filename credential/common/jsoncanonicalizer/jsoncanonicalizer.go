// Package jsoncanonicalizer produces a deterministic serialization of JSON
// documents in the style of RFC 8785: object members sorted by name, no
// insignificant whitespace, numbers in their shortest round-trip form.
package jsoncanonicalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Transform canonicalizes the JSON document in data.
func Transform(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("failed to parse JSON: trailing data")
	}

	var buf bytes.Buffer
	if err := write(&buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func write(buf *bytes.Buffer, value interface{}) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", v, err)
		}
		s, err := formatNumber(f)
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case string:
		return writeString(buf, v)
	case []interface{}:
		buf.WriteByte('[')
		for i, entry := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := write(buf, entry); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := write(buf, v[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported JSON value %T", value)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// formatNumber follows the ECMAScript Number serialization used by RFC 8785.
func formatNumber(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("number %v is not representable in JSON", f)
	}
	if f == 0 {
		return "0", nil
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// Go writes e+21 / e-07; ECMAScript drops the leading exponent zero.
		mantissa, exp, _ := bytes.Cut([]byte(s), []byte("e"))
		sign := exp[0]
		digits := bytes.TrimLeft(exp[1:], "0")
		return string(mantissa) + "e" + string(sign) + string(digits), nil
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}
