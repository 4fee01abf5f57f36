package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
)

type request struct {
	Issuer   string   `json:"issuer" validate:"required,did"`
	Type     string   `json:"type" validate:"notblank"`
	Purpose  string   `json:"purpose" validate:"omitempty,oneof=revocation suspension"`
	Contexts []string `json:"contexts" validate:"dive,url"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		req       request
		wantField string
	}{
		{name: "valid", req: request{Issuer: "did:example:1", Type: "T"}},
		{name: "missing issuer", req: request{Type: "T"}, wantField: "issuer"},
		{name: "issuer not a DID", req: request{Issuer: "https://example.com", Type: "T"}, wantField: "issuer"},
		{name: "blank type", req: request{Issuer: "did:example:1", Type: "  "}, wantField: "type"},
		{name: "bad purpose", req: request{Issuer: "did:example:1", Type: "T", Purpose: "expiry"}, wantField: "purpose"},
		{name: "bad context", req: request{Issuer: "did:example:1", Type: "T", Contexts: []string{"not a url"}}, wantField: "contexts[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, model.ErrValidation)
			var merr *model.Error
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, tt.wantField, merr.Field)
		})
	}
}

func TestNewValidator_RejectsBadRules(t *testing.T) {
	tests := []struct {
		name    string
		rules   map[string]validator.Func
		wantErr bool
	}{
		{name: "built-in rules", rules: rules},
		{name: "empty tag", rules: map[string]validator.Func{"": func(validator.FieldLevel) bool { return true }}, wantErr: true},
		{name: "missing function", rules: map[string]validator.Func{"always": nil}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := newValidator(tt.rules)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Panics(t, func() { mustValidator(tt.rules) })
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, v)
		})
	}
}
