package model

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"golang.org/x/exp/slices"

	"github.com/pilacorp/go-credential-trust/credential/common/util"
)

var urnRegex = regexp.MustCompile(`^urn:[A-Za-z0-9][A-Za-z0-9-]{0,31}:\S+$`)

func requireNonBlank(field, value string) error {
	if util.IsBlank(value) {
		return Validation(field, "is required and must not be blank")
	}
	return nil
}

// optionalNonBlank accepts an absent value but rejects a supplied one that
// is only whitespace.
func optionalNonBlank(field, value string) error {
	if value != "" && util.IsBlank(value) {
		return Validation(field, "must not be blank when supplied")
	}
	return nil
}

func requireDID(field, value string) error {
	if err := requireNonBlank(field, value); err != nil {
		return err
	}
	if _, err := ParseDID(value); err != nil {
		return Validation(field, "%q is not a valid DID", value)
	}
	return nil
}

// IsURI reports whether s is an absolute URI the data model accepts as an
// identifier: a DID URL, a URN or an absolute URL.
func IsURI(s string) bool {
	switch {
	case strings.HasPrefix(s, "did:"):
		_, err := ParseDIDURL(s)
		return err == nil
	case strings.HasPrefix(s, "urn:"):
		return urnRegex.MatchString(s)
	default:
		return govalidator.IsRequestURL(s)
	}
}

func optionalURI(field, value string) error {
	if err := optionalNonBlank(field, value); err != nil {
		return err
	}
	if value != "" && !IsURI(value) {
		return Validation(field, "%q is not a valid URI", value)
	}
	return nil
}

func requireURI(field, value string) error {
	if err := requireNonBlank(field, value); err != nil {
		return err
	}
	if !IsURI(value) {
		return Validation(field, "%q is not a valid URI", value)
	}
	return nil
}

func requireTime(field string, t time.Time) error {
	if t.IsZero() {
		return Validation(field, "is required and must not be the zero time")
	}
	return nil
}

// normalizeTime drops the monotonic reading and sub-second precision so
// values survive a serialize/parse round trip unchanged.
func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC().Truncate(time.Second)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// normalizeValue deep-copies a claim value into its canonical JSON-like
// form. Numbers become json.Number so that parsed and constructed values
// compare equal.
func normalizeValue(field string, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil, string, bool:
		return v, nil
	case json.Number:
		if _, err := v.Float64(); err != nil {
			return nil, Validation(field, "invalid number %q", v.String())
		}
		return v, nil
	case int:
		return json.Number(strconv.FormatInt(int64(v), 10)), nil
	case int8:
		return json.Number(strconv.FormatInt(int64(v), 10)), nil
	case int16:
		return json.Number(strconv.FormatInt(int64(v), 10)), nil
	case int32:
		return json.Number(strconv.FormatInt(int64(v), 10)), nil
	case int64:
		return json.Number(strconv.FormatInt(v, 10)), nil
	case uint:
		return json.Number(strconv.FormatUint(uint64(v), 10)), nil
	case uint8:
		return json.Number(strconv.FormatUint(uint64(v), 10)), nil
	case uint16:
		return json.Number(strconv.FormatUint(uint64(v), 10)), nil
	case uint32:
		return json.Number(strconv.FormatUint(uint64(v), 10)), nil
	case uint64:
		return json.Number(strconv.FormatUint(v, 10)), nil
	case float32:
		return normalizeFloat(field, float64(v))
	case float64:
		return normalizeFloat(field, v)
	case []string:
		result := make([]interface{}, len(v))
		for i, s := range v {
			result[i] = s
		}
		return result, nil
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, entry := range v {
			normalized, err := normalizeValue(field, entry)
			if err != nil {
				return nil, err
			}
			result[i] = normalized
		}
		return result, nil
	case map[string]string:
		result := make(map[string]interface{}, len(v))
		for k, s := range v {
			result[k] = s
		}
		return result, nil
	case map[string]interface{}:
		return normalizeObject(field, v)
	default:
		return nil, Validation(field, "unsupported value type %T", value)
	}
}

func normalizeFloat(field string, f float64) (interface{}, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, Validation(field, "number must be finite")
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func normalizeObject(field string, obj map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(obj))
	for _, k := range sortedKeys(obj) {
		if util.IsBlank(k) {
			return nil, Validation(field, "property names must not be blank")
		}
		normalized, err := normalizeValue(field+"."+k, obj[k])
		if err != nil {
			return nil, err
		}
		result[k] = normalized
	}
	return result, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// deepCopy clones a normalized JSON-like value.
func deepCopy(value interface{}) interface{} {
	switch v := value.(type) {
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, entry := range v {
			result[i] = deepCopy(entry)
		}
		return result
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, entry := range v {
			result[k] = deepCopy(entry)
		}
		return result
	default:
		return v
	}
}

func copyObject(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	return deepCopy(m).(map[string]interface{})
}
