package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apilink-dev/handshake/types"
)

func TestMissingFields(t *testing.T) {
	mod := &stubModule{
		meta: Metadata{Name: "stub"},
		required: []types.FieldDefinition{
			{ID: "clientId", Required: true},
			{ID: "clientSecret", Required: true},
			{ID: "tokenUrl", Required: true},
		},
	}

	tests := []struct {
		name   string
		fields map[string]any
		want   []string
	}{
		{
			name:   "all present",
			fields: map[string]any{"clientId": "c", "clientSecret": "s", "tokenUrl": "https://t"},
			want:   nil,
		},
		{
			name:   "every missing field reported, not just the first",
			fields: map[string]any{"clientId": "c"},
			want:   []string{"clientSecret", "tokenUrl"},
		},
		{
			name:   "whitespace counts as empty",
			fields: map[string]any{"clientId": "  ", "clientSecret": "s", "tokenUrl": "https://t"},
			want:   []string{"clientId"},
		},
		{
			name:   "nil fields",
			fields: nil,
			want:   []string{"clientId", "clientSecret", "tokenUrl"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MissingFields(mod, &types.Credential{Fields: tt.fields})
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestMissingFieldsHonorsVisibility verifies that a required field hidden
// by its visibility condition is not demanded.
func TestMissingFieldsHonorsVisibility(t *testing.T) {
	mod := &stubModule{
		meta: Metadata{Name: "stub"},
		required: []types.FieldDefinition{
			{ID: "apiKey", Required: true},
			{ID: "username", Required: true,
				VisibleWhen: &types.FieldCondition{Field: "placement", Equals: "basic"}},
		},
	}

	cred := &types.Credential{Fields: map[string]any{
		"apiKey":    "k",
		"placement": "header",
	}}
	assert.Nil(t, MissingFields(mod, cred), "hidden field demanded")

	cred.SetField("placement", "basic")
	assert.Equal(t, []string{"username"}, MissingFields(mod, cred))
}

func TestValidationMessage(t *testing.T) {
	assert.Equal(t,
		"missing required fields: clientId, tokenUrl",
		ValidationMessage([]string{"clientId", "tokenUrl"}))
}
